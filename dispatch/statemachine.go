package dispatch

// Event is an externally observable occurrence that may move a request
// between statuses.
type Event string

const (
	EventAssign        Event = "assign"
	EventDecline       Event = "decline"
	EventArriveRoom    Event = "arrive-room"
	EventLoad          Event = "load"
	EventArriveBase    Event = "arrive-base"
	EventWashDone      Event = "wash-done"
	EventStartDelivery Event = "start-delivery"
	EventUnload        Event = "unload"
	EventComplete      Event = "complete"
	EventCancel        Event = "cancel"
)

// Transition describes the outcome of applying an event to a request.
type Transition struct {
	To         string
	Stamp      string // lifecycle timestamp column to set, if any
	FreesRobot bool   // robot returns to Available
	ToBase     bool   // robot should navigate to Base after this transition
}

// transitions is the single authoritative table. Cancellation is handled in
// Next directly since it applies from any non-terminal status.
var transitions = map[string]map[Event]Transition{
	StatusPending: {
		EventAssign:  {To: StatusAccepted, Stamp: "accepted_at"},
		EventDecline: {To: StatusDeclined},
	},
	StatusAccepted: {
		EventArriveRoom: {To: StatusArrivedAtRoom, Stamp: "arrived_at"},
	},
	StatusArrivedAtRoom: {
		EventLoad: {To: StatusLaundryLoaded, Stamp: "loaded_at", ToBase: true},
	},
	StatusLaundryLoaded: {
		EventArriveBase: {To: StatusWashing, FreesRobot: true},
	},
	StatusWashing: {
		EventWashDone: {To: StatusFinishedWashingReadyToDeliver, Stamp: "wash_done_at"},
	},
	StatusFinishedWashingReadyToDeliver: {
		EventStartDelivery: {To: StatusFinishedWashingGoingToRoom},
	},
	StatusFinishedWashingGoingToRoom: {
		EventArriveRoom: {To: StatusFinishedWashingArrivedAtRoom, Stamp: "delivered_at"},
	},
	StatusFinishedWashingArrivedAtRoom: {
		EventUnload: {To: StatusFinishedWashingGoingToBase, ToBase: true},
	},
	StatusFinishedWashingGoingToBase: {
		EventArriveBase: {To: StatusFinishedWashingAtBase, Stamp: "returned_at"},
	},
	StatusFinishedWashingAtBase: {
		EventComplete: {To: StatusCompleted, Stamp: "completed_at", FreesRobot: true},
	},
	StatusCancelled: {
		// A cancelled request whose robot was still away from base completes
		// once the return trip finishes.
		EventArriveBase: {To: StatusCompleted, Stamp: "completed_at", FreesRobot: true},
	},
}

// Next returns the transition for (status, event), or ErrWrongStatus when the
// event does not apply to the request's current status. Duplicate or
// out-of-order event delivery therefore collapses to a rejected no-op.
func Next(status string, ev Event) (Transition, error) {
	if ev == EventCancel {
		if IsTerminal(status) {
			return Transition{}, ErrWrongStatus
		}
		return Transition{To: StatusCancelled}, nil
	}
	m, ok := transitions[status]
	if !ok {
		return Transition{}, ErrWrongStatus
	}
	t, ok := m[ev]
	if !ok {
		return Transition{}, ErrWrongStatus
	}
	return t, nil
}
