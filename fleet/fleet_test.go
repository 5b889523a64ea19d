package fleet

import (
	"testing"
	"time"
)

func testTracker() *Tracker {
	return NewTracker(TrackerConfig{
		ConfirmCount:   3,
		ConfirmSpacing: time.Second,
		Grace:          10 * time.Second,
	})
}

func TestTrackerConfirmsAfterThreeSamples(t *testing.T) {
	tr := testTracker()
	start := time.Now()
	tr.SetTarget("203", start)

	// Past the grace window.
	now := start.Add(11 * time.Second)

	if got := tr.Observe(true, now); got != SignalHalt {
		t.Fatalf("first sample = %v, want SignalHalt", got)
	}
	if got := tr.Observe(true, now.Add(time.Second)); got != SignalNone {
		t.Fatalf("second sample = %v, want SignalNone", got)
	}
	if got := tr.Observe(true, now.Add(2*time.Second)); got != SignalConfirmed {
		t.Fatalf("third sample = %v, want SignalConfirmed", got)
	}

	// Tracker fully reset: the same telemetry does not re-confirm.
	if got := tr.Observe(true, now.Add(3*time.Second)); got != SignalNone {
		t.Errorf("post-confirm sample = %v, want SignalNone", got)
	}
}

func TestTrackerGracePeriod(t *testing.T) {
	tr := testTracker()
	start := time.Now()
	tr.SetTarget("203", start)

	// A robot that starts next to the beacon must not instantly arrive.
	for i := 0; i < 5; i++ {
		if got := tr.Observe(true, start.Add(time.Duration(i)*time.Second)); got != SignalNone {
			t.Fatalf("sample %d within grace = %v, want SignalNone", i, got)
		}
	}
	if got := tr.Observe(true, start.Add(11*time.Second)); got != SignalHalt {
		t.Errorf("first post-grace sample = %v, want SignalHalt", got)
	}
}

func TestTrackerFalseAlarmResets(t *testing.T) {
	tr := testTracker()
	start := time.Now()
	tr.SetTarget("203", start)
	now := start.Add(11 * time.Second)

	tr.Observe(true, now)
	tr.Observe(true, now.Add(time.Second)) // count = 2

	// Signal drops before the third confirmation: motion resumes, count resets.
	if got := tr.Observe(false, now.Add(1500*time.Millisecond)); got != SignalResume {
		t.Fatalf("drop = %v, want SignalResume", got)
	}

	// The attempt starts over from one.
	if got := tr.Observe(true, now.Add(2*time.Second)); got != SignalHalt {
		t.Fatalf("restart = %v, want SignalHalt", got)
	}
	if got := tr.Observe(true, now.Add(3*time.Second)); got != SignalNone {
		t.Fatalf("second = %v, want SignalNone", got)
	}
	if got := tr.Observe(true, now.Add(4*time.Second)); got != SignalConfirmed {
		t.Errorf("third = %v, want SignalConfirmed", got)
	}
}

func TestTrackerSpacingEnforced(t *testing.T) {
	tr := testTracker()
	start := time.Now()
	tr.SetTarget("203", start)
	now := start.Add(11 * time.Second)

	tr.Observe(true, now)
	// Rapid-fire samples inside the spacing window never increment.
	for i := 1; i <= 5; i++ {
		if got := tr.Observe(true, now.Add(time.Duration(i*100)*time.Millisecond)); got != SignalNone {
			t.Fatalf("rapid sample %d = %v, want SignalNone", i, got)
		}
	}
	if got := tr.Observe(true, now.Add(time.Second)); got != SignalNone {
		t.Fatalf("spaced second = %v, want SignalNone", got)
	}
	if got := tr.Observe(true, now.Add(2*time.Second)); got != SignalConfirmed {
		t.Errorf("spaced third = %v, want SignalConfirmed", got)
	}
}

func TestTrackerTargetChangeResets(t *testing.T) {
	tr := testTracker()
	start := time.Now()
	tr.SetTarget("203", start)
	now := start.Add(11 * time.Second)

	tr.Observe(true, now)
	tr.Observe(true, now.Add(time.Second)) // count = 2

	// Mid-confirmation retarget: state resets unconditionally and the new
	// target gets its own grace window.
	tr.SetTarget("305", now.Add(time.Second))
	if tr.Counting() {
		t.Error("counting should reset on target change")
	}
	if got := tr.Observe(true, now.Add(2*time.Second)); got != SignalNone {
		t.Errorf("sample within new grace = %v, want SignalNone", got)
	}

	// Re-issuing the same target does not restart grace or reset state.
	later := now.Add(12 * time.Second)
	tr.SetTarget("305", later)
	if got := tr.Observe(true, later); got != SignalHalt {
		t.Errorf("post-grace sample after re-issue = %v, want SignalHalt", got)
	}
}

func TestTrackerRobotReportedConfirm(t *testing.T) {
	tr := testTracker()
	start := time.Now()
	tr.SetTarget("203", start)

	// Robot's own in-target signal is honored immediately past grace.
	if got := tr.Confirm(start.Add(time.Second)); got != SignalNone {
		t.Errorf("confirm within grace = %v, want SignalNone", got)
	}
	if got := tr.Confirm(start.Add(11 * time.Second)); got != SignalConfirmed {
		t.Errorf("confirm = %v, want SignalConfirmed", got)
	}
	if got := tr.Confirm(start.Add(12 * time.Second)); got != SignalNone {
		t.Errorf("duplicate confirm = %v, want SignalNone", got)
	}
}

func TestTrackerNoTarget(t *testing.T) {
	tr := testTracker()
	if got := tr.Observe(true, time.Now()); got != SignalNone {
		t.Errorf("observe with no target = %v, want SignalNone", got)
	}
}

func TestRegistryRegistrationOrder(t *testing.T) {
	reg := NewRegistry(TrackerConfig{}, 5*time.Second)

	b := reg.GetOrRegister("bot-b")
	a := reg.GetOrRegister("bot-a")
	if again := reg.GetOrRegister("bot-b"); again != b {
		t.Error("re-registration should return the same robot")
	}

	robots := reg.List()
	if len(robots) != 2 {
		t.Fatalf("len = %d, want 2", len(robots))
	}
	if robots[0] != b || robots[1] != a {
		t.Error("iteration should follow registration order")
	}
}

func TestRegistryEligible(t *testing.T) {
	reg := NewRegistry(TrackerConfig{}, 5*time.Second)
	now := time.Now()

	online := reg.GetOrRegister("online")
	online.UpdateTelemetry("10.0.0.1:0", now, Telemetry{})

	offline := reg.GetOrRegister("offline")
	offline.UpdateTelemetry("10.0.0.2:0", now.Add(-time.Minute), Telemetry{})

	paused := reg.GetOrRegister("paused")
	paused.UpdateTelemetry("10.0.0.3:0", now, Telemetry{})
	paused.SetCanAccept(false)

	eligible := reg.Eligible()
	if len(eligible) != 1 || eligible[0] != online {
		t.Errorf("eligible = %v, want only the online accepting robot", eligible)
	}
}

func TestRobotLiveness(t *testing.T) {
	reg := NewRegistry(TrackerConfig{}, 5*time.Second)
	r := reg.GetOrRegister("bot-1")

	// Never seen: offline.
	if !r.Offline(5 * time.Second) {
		t.Error("unseen robot should be offline")
	}
	r.UpdateTelemetry("10.0.0.1:0", time.Now(), Telemetry{WeightGrams: 1200})
	if r.Offline(5 * time.Second) {
		t.Error("fresh telemetry should make robot online")
	}

	s := r.Status(5 * time.Second)
	if s.Telemetry.WeightGrams != 1200 {
		t.Errorf("weight = %d, want 1200", s.Telemetry.WeightGrams)
	}
}

func TestRobotAssignLifecycle(t *testing.T) {
	reg := NewRegistry(TrackerConfig{}, 5*time.Second)
	r := reg.GetOrRegister("bot-1")

	now := time.Now()
	r.Assign(now)
	if !r.Busy() {
		t.Error("assigned robot should be busy")
	}
	if !r.AssignedAt().Equal(now) {
		t.Errorf("AssignedAt = %v, want %v", r.AssignedAt(), now)
	}
	r.Free()
	if r.Busy() {
		t.Error("freed robot should be available")
	}
}
