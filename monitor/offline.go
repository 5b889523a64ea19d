package monitor

import (
	"log"
	"time"

	"washfleet/dispatch"
	"washfleet/fleet"
	"washfleet/store"
)

// OfflineMonitor reconciles requests whose robot stopped reporting in.
// Severity depends on what the robot carries: an empty robot's request is
// cancelled as a service disruption, but a robot holding laundry is never
// auto-cancelled; the request is flagged for manual intervention instead.
// Reconnection clears offline implicitly on the robot's next exchange; there
// is no event replay.
type OfflineMonitor struct {
	db       *store.DB
	d        *dispatch.Dispatcher
	robots   *fleet.Registry
	interval time.Duration
	stopChan chan struct{}
}

func NewOfflineMonitor(db *store.DB, d *dispatch.Dispatcher, robots *fleet.Registry, interval time.Duration) *OfflineMonitor {
	return &OfflineMonitor{
		db:       db,
		d:        d,
		robots:   robots,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

func (m *OfflineMonitor) Start() {
	go m.run()
}

func (m *OfflineMonitor) Stop() {
	select {
	case m.stopChan <- struct{}{}:
	default:
	}
}

func (m *OfflineMonitor) run() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Scan()
		case <-m.stopChan:
			return
		}
	}
}

// Scan makes one pass over active requests with an assigned robot.
func (m *OfflineMonitor) Scan() {
	reqs, err := m.db.ListActiveRequests()
	if err != nil {
		log.Printf("monitor: offline scan: %v", err)
		return
	}
	window := m.robots.LivenessWindow()
	for _, req := range reqs {
		if req.Robot == "" || !dispatch.RobotEngaged(req.Status) {
			continue
		}
		robot, ok := m.robots.Get(req.Robot)
		if ok && !robot.Offline(window) {
			continue
		}

		switch {
		case req.Status == dispatch.StatusCancelled:
			log.Printf("monitor: robot %s offline mid-return, releasing request %d", req.Robot, req.ID)
			if err := m.d.ReleaseCancelled(req.ID); err != nil {
				log.Printf("monitor: release request %d: %v", req.ID, err)
			}
		case dispatch.HoldsLaundry(req.Status) || req.Status == dispatch.StatusFinishedWashingArrivedAtRoom:
			// Laundry is physically on the robot; a human has to sort this out.
			log.Printf("monitor: robot %s offline holding laundry, request %d (%s) needs attention",
				req.Robot, req.ID, req.Status)
			if err := m.d.FlagAttention(req.ID); err != nil {
				log.Printf("monitor: flag request %d: %v", req.ID, err)
			}
		default:
			log.Printf("monitor: robot %s offline, cancelling request %d (was %s)",
				req.Robot, req.ID, req.Status)
			if err := m.d.Cancel(req.ID, "service disruption: robot offline", ""); err != nil {
				log.Printf("monitor: offline cancel request %d: %v", req.ID, err)
			}
		}
	}
}
