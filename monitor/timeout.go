package monitor

import (
	"log"
	"time"

	"washfleet/config"
	"washfleet/dispatch"
	"washfleet/store"
)

// TimeoutMonitor periodically cancels requests stuck in one status past its
// configured threshold. It tolerates running alongside normal mutation: the
// dispatcher re-reads status under its own lock and rejects a stale cancel,
// so a request that moved on between scan and action is simply skipped.
type TimeoutMonitor struct {
	db       *store.DB
	d        *dispatch.Dispatcher
	cfg      config.DispatchConfig
	stopChan chan struct{}
}

func NewTimeoutMonitor(db *store.DB, d *dispatch.Dispatcher, cfg config.DispatchConfig) *TimeoutMonitor {
	return &TimeoutMonitor{
		db:       db,
		d:        d,
		cfg:      cfg,
		stopChan: make(chan struct{}),
	}
}

func (m *TimeoutMonitor) Start() {
	go m.run()
}

func (m *TimeoutMonitor) Stop() {
	select {
	case m.stopChan <- struct{}{}:
	default:
	}
}

func (m *TimeoutMonitor) run() {
	ticker := time.NewTicker(m.cfg.TimeoutInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Scan(time.Now())
		case <-m.stopChan:
			return
		}
	}
}

// Scan makes one pass over active requests.
func (m *TimeoutMonitor) Scan(now time.Time) {
	reqs, err := m.db.ListActiveRequests()
	if err != nil {
		log.Printf("monitor: timeout scan: %v", err)
		return
	}
	for _, req := range reqs {
		threshold, since, reason := m.deadline(req)
		if threshold <= 0 || since.IsZero() {
			continue
		}
		if now.Sub(since) <= threshold {
			continue
		}
		log.Printf("monitor: request %d timed out in %s (robot %q, since %s): %s",
			req.ID, req.Status, req.Robot, since.Format(time.RFC3339), reason)
		if err := m.d.Cancel(req.ID, reason, ""); err != nil {
			// Already moved on or cancelled by someone else; fine.
			log.Printf("monitor: timeout cancel request %d: %v", req.ID, err)
		}
	}
}

// deadline returns the threshold, the start of the current status, and the
// cancellation reason for statuses the monitor watches.
func (m *TimeoutMonitor) deadline(req *store.Request) (time.Duration, time.Time, string) {
	switch req.Status {
	case dispatch.StatusAccepted:
		return m.cfg.NavigationTimeout, deref(req.AcceptedAt), "timed out: robot never arrived"
	case dispatch.StatusArrivedAtRoom:
		return m.cfg.LoadTimeout, deref(req.ArrivedAt), "timed out: laundry never loaded"
	case dispatch.StatusFinishedWashingArrivedAtRoom:
		return m.cfg.UnloadTimeout, deref(req.DeliveredAt), "timed out: laundry never unloaded"
	case dispatch.StatusFinishedWashingGoingToRoom:
		return m.cfg.DeliveryTimeout, req.UpdatedAt, "timed out: delivery never arrived"
	}
	return 0, time.Time{}, ""
}

func deref(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
