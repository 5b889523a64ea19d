package fleet

import (
	"sync"
	"time"
)

// Signal is the tracker's verdict for one telemetry sample.
type Signal int

const (
	SignalNone      Signal = iota
	SignalHalt             // first qualifying sample: stop motion, start counting
	SignalResume           // false alarm: signal dropped, motion resumes
	SignalConfirmed        // arrival confirmed
)

// TrackerConfig tunes the arrival debounce.
type TrackerConfig struct {
	ConfirmCount   int           // confirmations required (default 3)
	ConfirmSpacing time.Duration // minimum spacing between confirmations (default 1s)
	Grace          time.Duration // suppression window after a target is issued (default 10s)
}

// Tracker debounces noisy beacon-strength arrival detection for one robot
// against one target kind. A single sample crossing the threshold never
// confirms arrival: the first qualifying sample halts the robot and starts a
// counter, later qualifying samples spaced at least ConfirmSpacing apart
// increment it, and ConfirmCount confirmations make the arrival real. A drop
// below threshold before that is a false alarm and the robot resumes.
type Tracker struct {
	mu  sync.Mutex
	cfg TrackerConfig

	target      string // current target identity; "" means no target
	issuedAt    time.Time
	count       int
	lastConfirm time.Time
}

func NewTracker(cfg TrackerConfig) *Tracker {
	if cfg.ConfirmCount <= 0 {
		cfg.ConfirmCount = 3
	}
	if cfg.ConfirmSpacing <= 0 {
		cfg.ConfirmSpacing = time.Second
	}
	if cfg.Grace <= 0 {
		cfg.Grace = 10 * time.Second
	}
	return &Tracker{cfg: cfg}
}

// SetTarget points the tracker at a target identity (a room name, or a fixed
// key for base). A changed target resets confirmation state unconditionally;
// confirmations never carry over between destinations. Re-issuing the same
// target is a no-op so the grace window is not restarted every exchange.
func (t *Tracker) SetTarget(target string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.target == target {
		return
	}
	t.target = target
	t.issuedAt = now
	t.count = 0
	t.lastConfirm = time.Time{}
}

// Clear drops the target and all confirmation state.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reset()
}

func (t *Tracker) reset() {
	t.target = ""
	t.count = 0
	t.lastConfirm = time.Time{}
}

// Target returns the current target identity.
func (t *Tracker) Target() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.target
}

// Counting reports whether a confirmation attempt is in progress, i.e. the
// robot is currently halted waiting for confirmation.
func (t *Tracker) Counting() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count > 0
}

// Observe feeds one telemetry sample. qualifying means some beacon of the
// current target read at or above its threshold in this sample.
func (t *Tracker) Observe(qualifying bool, now time.Time) Signal {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.target == "" {
		return SignalNone
	}
	// Grace period: a robot that starts next to a beacon it is not yet meant
	// to treat as reached must not instantly "arrive".
	if now.Sub(t.issuedAt) < t.cfg.Grace {
		return SignalNone
	}

	if !qualifying {
		if t.count > 0 {
			t.count = 0
			t.lastConfirm = time.Time{}
			return SignalResume
		}
		return SignalNone
	}

	if t.count == 0 {
		t.count = 1
		t.lastConfirm = now
		return SignalHalt
	}
	if now.Sub(t.lastConfirm) < t.cfg.ConfirmSpacing {
		return SignalNone
	}
	t.count++
	t.lastConfirm = now
	if t.count >= t.cfg.ConfirmCount {
		t.reset()
		return SignalConfirmed
	}
	return SignalNone
}

// Confirm short-circuits the debounce when the robot reports its own
// debounced in-target signal. Only valid while a target is set and outside
// the grace window.
func (t *Tracker) Confirm(now time.Time) Signal {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.target == "" || now.Sub(t.issuedAt) < t.cfg.Grace {
		return SignalNone
	}
	t.reset()
	return SignalConfirmed
}
