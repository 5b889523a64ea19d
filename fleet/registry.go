package fleet

import (
	"log"
	"sync"
	"time"
)

// Registry is the in-memory table of connected robots, keyed by name.
// Robots register implicitly on their first exchange and iteration follows
// registration order, which is also the assignment preference order.
type Registry struct {
	mu       sync.RWMutex
	robots   map[string]*Robot
	order    []string
	tracker  TrackerConfig
	liveness time.Duration
}

func NewRegistry(tracker TrackerConfig, liveness time.Duration) *Registry {
	if liveness <= 0 {
		liveness = 5 * time.Second
	}
	return &Registry{
		robots:   make(map[string]*Robot),
		tracker:  tracker,
		liveness: liveness,
	}
}

// LivenessWindow returns the configured liveness window.
func (g *Registry) LivenessWindow() time.Duration { return g.liveness }

// Get returns a robot by name.
func (g *Registry) Get(name string) (*Robot, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.robots[name]
	return r, ok
}

// GetOrRegister returns the named robot, creating it on first contact.
func (g *Registry) GetOrRegister(name string) *Robot {
	g.mu.RLock()
	r, ok := g.robots[name]
	g.mu.RUnlock()
	if ok {
		return r
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if r, ok := g.robots[name]; ok {
		return r
	}
	r = newRobot(name, g.tracker)
	g.robots[name] = r
	g.order = append(g.order, name)
	log.Printf("fleet: robot %s registered", name)
	return r
}

// List returns all robots in registration order.
func (g *Registry) List() []*Robot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Robot, 0, len(g.robots))
	for _, name := range g.order {
		out = append(out, g.robots[name])
	}
	return out
}

// Statuses returns snapshots of all robots in registration order.
func (g *Registry) Statuses() []RobotStatus {
	robots := g.List()
	out := make([]RobotStatus, len(robots))
	for i, r := range robots {
		out[i] = r.Status(g.liveness)
	}
	return out
}

// Eligible returns robots that are online and accepting requests, in
// registration order.
func (g *Registry) Eligible() []*Robot {
	var out []*Robot
	for _, r := range g.List() {
		if !r.Offline(g.liveness) && r.CanAccept() {
			out = append(out, r)
		}
	}
	return out
}
