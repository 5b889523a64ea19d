package nav

import (
	"washfleet/dispatch"
)

// TargetKind distinguishes the two arrival-detection contexts. Room and base
// targets keep fully independent confirmation state.
type TargetKind int

const (
	TargetNone TargetKind = iota
	TargetRoom
	TargetBase
)

func (k TargetKind) String() string {
	switch k {
	case TargetRoom:
		return "room"
	case TargetBase:
		return "base"
	}
	return "none"
}

// Target is a resolved navigation destination.
type Target struct {
	Kind TargetKind
	Room string // set for TargetRoom
}

// Resolve maps a request's status to its navigation target. Pure function;
// beacon expansion happens separately in Registry.TargetBeacons.
func Resolve(kind, status, room string) Target {
	if kind == dispatch.KindAdhoc {
		switch status {
		case dispatch.StatusAccepted:
			return Target{Kind: TargetRoom, Room: room}
		case dispatch.StatusCancelled:
			return Target{Kind: TargetBase}
		}
		return Target{Kind: TargetNone}
	}
	switch status {
	case dispatch.StatusAccepted, dispatch.StatusFinishedWashingGoingToRoom:
		return Target{Kind: TargetRoom, Room: room}
	case dispatch.StatusLaundryLoaded, dispatch.StatusFinishedWashingGoingToBase, dispatch.StatusCancelled:
		return Target{Kind: TargetBase}
	}
	return Target{Kind: TargetNone}
}
