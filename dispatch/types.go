package dispatch

import "errors"

const (
	KindFulfillment = "fulfillment"
	KindAdhoc       = "adhoc"
)

// AdhocCustomerID marks ad-hoc navigation commands, which reuse the request
// record but carry no real customer.
const AdhocCustomerID = "ADMIN_NAVIGATION"

// Request statuses. Only the state machine moves a request between them.
const (
	StatusPending                       = "Pending"
	StatusAccepted                      = "Accepted"
	StatusArrivedAtRoom                 = "ArrivedAtRoom"
	StatusLaundryLoaded                 = "LaundryLoaded"
	StatusWashing                       = "Washing"
	StatusFinishedWashingReadyToDeliver = "FinishedWashingReadyToDeliver"
	StatusFinishedWashingGoingToRoom    = "FinishedWashingGoingToRoom"
	StatusFinishedWashingArrivedAtRoom  = "FinishedWashingArrivedAtRoom"
	StatusFinishedWashingGoingToBase    = "FinishedWashingGoingToBase"
	StatusFinishedWashingAtBase         = "FinishedWashingAtBase"
	StatusCompleted                     = "Completed"
	StatusDeclined                      = "Declined"
	StatusCancelled                     = "Cancelled"
)

// Washing cancellation dispositions. An operator must choose one; there is no
// automatic path out of a mid-wash cancellation.
const (
	DispositionReturnDirty = "return-dirty"
	DispositionFinishWash  = "finish-wash"
)

var (
	ErrWrongStatus     = errors.New("request is not in the expected status")
	ErrNoRobots        = errors.New("no robot available")
	ErrUnknownRequest  = errors.New("unknown request")
	ErrUnknownRobot    = errors.New("unknown robot")
	ErrRoomUnknown     = errors.New("unknown room")
	ErrNeedDisposition = errors.New("washing cancellation requires a disposition")
)

// RobotEngaged reports whether the robot named on a request in this status
// is physically executing it. During Washing and ReadyToDeliver the request
// still remembers its robot, but the robot itself is free for other work.
func RobotEngaged(status string) bool {
	switch status {
	case StatusAccepted, StatusArrivedAtRoom, StatusLaundryLoaded,
		StatusFinishedWashingGoingToRoom, StatusFinishedWashingArrivedAtRoom,
		StatusFinishedWashingGoingToBase, StatusFinishedWashingAtBase,
		StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether a status admits no further transitions.
func IsTerminal(status string) bool {
	switch status {
	case StatusCompleted, StatusDeclined, StatusCancelled:
		return true
	}
	return false
}

// HoldsLaundry reports whether a robot in this status physically carries a
// customer's laundry. Offline handling differs for these: they are never
// auto-cancelled, only flagged for manual intervention.
func HoldsLaundry(status string) bool {
	switch status {
	case StatusLaundryLoaded, StatusFinishedWashingGoingToRoom, StatusFinishedWashingGoingToBase:
		return true
	}
	return false
}
