package fleet

import (
	"sync"
	"time"
)

// BeaconSample is one observed beacon signal from a robot's telemetry.
type BeaconSample struct {
	RSSI int       `json:"rssi"`
	At   time.Time `json:"at"`
}

// Telemetry is the last-known sensor snapshot a robot reported.
type Telemetry struct {
	Beacons     map[string]BeaconSample `json:"beacons"`
	WeightGrams int                     `json:"weight_grams"`
	ObstacleCM  int                     `json:"obstacle_cm"`
	LineFollow  bool                    `json:"line_follow"`
}

// Robot is the in-memory record for one fleet member. All mutable state is
// guarded by the robot's own lock; the telemetry path never takes a
// fleet-wide lock. Nothing here is persisted; state rebuilds as robots
// re-register on their next exchange.
type Robot struct {
	mu sync.Mutex

	name          string
	addr          string
	busy          bool
	canAccept     bool
	emergencyStop bool
	maintenance   bool
	lastSeen      time.Time
	assignedAt    time.Time
	telemetry     Telemetry

	// Independent arrival confirmation state per target kind. Room and base
	// confirmations never share a counter.
	RoomArrival *Tracker
	BaseArrival *Tracker
}

// RobotStatus is a point-in-time copy of a robot's state, safe to hand to
// web handlers and monitors without holding the robot's lock.
type RobotStatus struct {
	Name          string    `json:"name"`
	Addr          string    `json:"addr"`
	Busy          bool      `json:"busy"`
	CanAccept     bool      `json:"can_accept"`
	EmergencyStop bool      `json:"emergency_stop"`
	Maintenance   bool      `json:"maintenance"`
	Offline       bool      `json:"offline"`
	LastSeen      time.Time `json:"last_seen"`
	AssignedAt    time.Time `json:"assigned_at"`
	Telemetry     Telemetry `json:"telemetry"`
}

func newRobot(name string, cfg TrackerConfig) *Robot {
	return &Robot{
		name:        name,
		canAccept:   true,
		RoomArrival: NewTracker(cfg),
		BaseArrival: NewTracker(cfg),
	}
}

func (r *Robot) Name() string { return r.name }

// UpdateTelemetry records one exchange's telemetry and refreshes liveness.
func (r *Robot) UpdateTelemetry(addr string, at time.Time, t Telemetry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addr = addr
	r.lastSeen = at
	r.telemetry = t
}

// Offline reports whether the robot has missed its liveness window.
func (r *Robot) Offline(window time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Since(r.lastSeen) > window
}

// Assign marks the robot busy and records the assignment time, which drives
// least-recently-assigned preemption.
func (r *Robot) Assign(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.busy = true
	r.assignedAt = now
}

// Free returns the robot to Available.
func (r *Robot) Free() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.busy = false
}

func (r *Robot) Busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.busy
}

func (r *Robot) AssignedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.assignedAt
}

func (r *Robot) CanAccept() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.canAccept
}

func (r *Robot) SetCanAccept(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.canAccept = v
}

func (r *Robot) EmergencyStopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.emergencyStop
}

// SetEmergencyStop raises or clears the motion-halt directive delivered on
// the robot's next exchange.
func (r *Robot) SetEmergencyStop(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emergencyStop = v
}

func (r *Robot) Maintenance() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maintenance
}

func (r *Robot) SetMaintenance(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maintenance = v
}

// ClearArrival resets both arrival trackers, e.g. after force-stop.
func (r *Robot) ClearArrival() {
	r.RoomArrival.Clear()
	r.BaseArrival.Clear()
}

// Status returns a consistent snapshot of the robot.
func (r *Robot) Status(livenessWindow time.Duration) RobotStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RobotStatus{
		Name:          r.name,
		Addr:          r.addr,
		Busy:          r.busy,
		CanAccept:     r.canAccept,
		EmergencyStop: r.emergencyStop,
		Maintenance:   r.maintenance,
		Offline:       time.Since(r.lastSeen) > livenessWindow,
		LastSeen:      r.lastSeen,
		AssignedAt:    r.assignedAt,
		Telemetry:     r.telemetry,
	}
}
