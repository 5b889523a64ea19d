package nav

import (
	"log"
	"strings"
	"sync"

	"washfleet/store"
)

// Registry holds an in-memory snapshot of beacon and room configuration.
// It is read on every robot exchange, so lookups never touch the database;
// Reload refreshes the snapshot after any beacon or room change.
type Registry struct {
	mu      sync.RWMutex
	db      *store.DB
	beacons map[string]*store.Beacon // keyed by MAC
	byRoom  map[string][]*store.Beacon
	rooms   map[string]*store.Room // keyed by lowercase name
	base    []*store.Beacon
	all     []*store.Beacon // store order: room, priority desc
}

func NewRegistry(db *store.DB) *Registry {
	return &Registry{
		db:      db,
		beacons: make(map[string]*store.Beacon),
		byRoom:  make(map[string][]*store.Beacon),
		rooms:   make(map[string]*store.Room),
	}
}

// Reload replaces the snapshot from the database.
func (r *Registry) Reload() error {
	beacons, err := r.db.ListBeacons()
	if err != nil {
		return err
	}
	rooms, err := r.db.ListRooms()
	if err != nil {
		return err
	}

	byMAC := make(map[string]*store.Beacon, len(beacons))
	byRoom := make(map[string][]*store.Beacon)
	var base []*store.Beacon
	for _, b := range beacons {
		byMAC[strings.ToUpper(b.MAC)] = b
		key := strings.ToLower(b.RoomName)
		byRoom[key] = append(byRoom[key], b)
		if b.IsBase {
			base = append(base, b)
		}
	}
	byName := make(map[string]*store.Room, len(rooms))
	for _, rm := range rooms {
		byName[strings.ToLower(rm.Name)] = rm
	}

	r.mu.Lock()
	r.beacons = byMAC
	r.byRoom = byRoom
	r.rooms = byName
	r.base = base
	r.all = beacons
	r.mu.Unlock()

	log.Printf("nav: registry loaded %d beacons, %d rooms", len(byMAC), len(byName))
	return nil
}

// Beacon looks up a beacon by MAC, case-insensitive.
func (r *Registry) Beacon(mac string) (*store.Beacon, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.beacons[strings.ToUpper(mac)]
	return b, ok
}

// All returns every configured beacon in store order.
func (r *Registry) All() []*store.Beacon {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.all
}

// RoomExists reports whether a room is configured, case-insensitive.
func (r *Registry) RoomExists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[strings.ToLower(name)]
	return ok
}

// FloorColor returns the room's stop-color hint, if configured.
func (r *Registry) FloorColor(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[strings.ToLower(name)]
	if !ok {
		return ""
	}
	return rm.FloorColor
}

// BeaconsForRoom returns the beacons of a room, case-insensitive.
func (r *Registry) BeaconsForRoom(room string) []*store.Beacon {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byRoom[strings.ToLower(room)]
}

// BaseBeacons returns every beacon flagged as a base-station beacon.
func (r *Registry) BaseBeacons() []*store.Beacon {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.base
}

// TargetBeacons resolves a navigation target to its beacon set. An unknown
// room or a room with no beacons resolves to nothing; the robot idles in
// place and a warning is logged rather than an error raised.
func (r *Registry) TargetBeacons(t Target) []*store.Beacon {
	switch t.Kind {
	case TargetBase:
		beacons := r.BaseBeacons()
		if len(beacons) == 0 {
			log.Printf("nav: no base beacons configured")
		}
		return beacons
	case TargetRoom:
		beacons := r.BeaconsForRoom(t.Room)
		if len(beacons) == 0 {
			log.Printf("nav: room %q has no beacons, no navigation target", t.Room)
		}
		return beacons
	}
	return nil
}
