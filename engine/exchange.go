package engine

import (
	"errors"
	"log"
	"strings"
	"time"

	"washfleet/dispatch"
	"washfleet/fleet"
	"washfleet/nav"
	"washfleet/store"
)

// ExchangeRequest is one robot's ~1 Hz telemetry report.
type ExchangeRequest struct {
	Name        string          `json:"name"`
	Addr        string          `json:"addr"`
	At          time.Time       `json:"at"`
	Beacons     []BeaconReading `json:"beacons"`
	InTarget    bool            `json:"inTarget"`
	LineFollow  bool            `json:"lineFollow"`
	WeightGrams int             `json:"weightGrams"`
	ObstacleCM  int             `json:"obstacleCM"`
}

type BeaconReading struct {
	MAC  string `json:"mac"`
	RSSI int    `json:"rssi"`
}

// BeaconDirective tells the robot what a beacon means right now. IsTarget is
// recomputed every exchange from the robot's active request; it is never
// persisted.
type BeaconDirective struct {
	MAC       string `json:"mac"`
	Room      string `json:"room"`
	Threshold int    `json:"threshold"`
	IsTarget  bool   `json:"isTarget"`
	IsBase    bool   `json:"isBase"`
}

// ExchangeResponse carries the robot's standing orders back on the same poll.
type ExchangeResponse struct {
	Beacons       []BeaconDirective `json:"beacons"`
	LineFollow    bool              `json:"lineFollow"`
	LineColor     string            `json:"lineColor"`
	StopColor     string            `json:"stopColor"`
	WeightMin     int               `json:"weightMin"`
	WeightMax     int               `json:"weightMax"`
	EmergencyStop bool              `json:"emergencyStop"`
	Maintenance   bool              `json:"maintenance"`
}

const defaultLineColor = "black"

var errNoRobotName = errors.New("missing robot name")

// ProcessExchange ingests one telemetry report and returns the robot's
// directives. Unknown robots register implicitly. The exchange is stateless
// on the wire: repeating the same telemetry produces the same response and
// no duplicate transitions.
func (e *Engine) ProcessExchange(in ExchangeRequest) (*ExchangeResponse, error) {
	if in.Name == "" {
		return nil, errNoRobotName
	}
	now := in.At
	if now.IsZero() {
		now = time.Now()
	}

	robot := e.robots.GetOrRegister(in.Name)
	samples := make(map[string]fleet.BeaconSample, len(in.Beacons))
	for _, b := range in.Beacons {
		samples[strings.ToUpper(b.MAC)] = fleet.BeaconSample{RSSI: b.RSSI, At: now}
	}
	robot.UpdateTelemetry(in.Addr, now, fleet.Telemetry{
		Beacons:     samples,
		WeightGrams: in.WeightGrams,
		ObstacleCM:  in.ObstacleCM,
		LineFollow:  in.LineFollow,
	})

	req, target := e.activeTarget(in.Name)
	beacons, key := e.resolveBeacons(req, target)
	if len(beacons) == 0 {
		target.Kind = nav.TargetNone
	}

	// Point the tracker for the current target kind; the other kind's state
	// must not linger across destinations.
	switch target.Kind {
	case nav.TargetRoom:
		robot.BaseArrival.Clear()
		robot.RoomArrival.SetTarget(key, now)
	case nav.TargetBase:
		robot.RoomArrival.Clear()
		robot.BaseArrival.SetTarget(key, now)
	default:
		robot.ClearArrival()
	}

	qualifying := false
	for _, b := range beacons {
		if s, ok := samples[strings.ToUpper(b.MAC)]; ok && s.RSSI >= b.Threshold {
			qualifying = true
			break
		}
	}

	var sig fleet.Signal
	switch target.Kind {
	case nav.TargetRoom:
		if in.InTarget {
			sig = robot.RoomArrival.Confirm(now)
		} else {
			sig = robot.RoomArrival.Observe(qualifying, now)
		}
	case nav.TargetBase:
		if in.InTarget {
			sig = robot.BaseArrival.Confirm(now)
		} else {
			sig = robot.BaseArrival.Observe(qualifying, now)
		}
	}

	switch sig {
	case fleet.SignalHalt:
		log.Printf("engine: robot %s sees %s target, halting to confirm", in.Name, target.Kind)
	case fleet.SignalResume:
		log.Printf("engine: robot %s lost %s target signal, resuming", in.Name, target.Kind)
	case fleet.SignalConfirmed:
		log.Printf("engine: robot %s confirmed arrival at %s target", in.Name, target.Kind)
		var err error
		if target.Kind == nav.TargetRoom {
			err = e.dispatcher.HandleRoomArrival(in.Name)
		} else {
			err = e.dispatcher.HandleBaseArrival(in.Name)
		}
		if err != nil {
			log.Printf("engine: apply %s arrival for %s: %v", target.Kind, in.Name, err)
		}
	}

	resp := e.buildResponse(robot, in.Name)
	e.mirror.Publish(robot.Status(e.robots.LivenessWindow()))
	return resp, nil
}

// activeTarget resolves the robot's current navigation target from its
// active request, if any.
func (e *Engine) activeTarget(robotName string) (*store.Request, nav.Target) {
	req, err := e.dispatcher.ActiveRequest(robotName)
	if err != nil {
		return nil, nav.Target{Kind: nav.TargetNone}
	}
	return req, nav.Resolve(req.Kind, req.Status, req.Room)
}

// resolveBeacons expands a target to its beacon set and the tracker's target
// identity. Ad-hoc navigation may pin a single beacon instead of a room.
func (e *Engine) resolveBeacons(req *store.Request, target nav.Target) ([]*store.Beacon, string) {
	switch target.Kind {
	case nav.TargetRoom:
		if req != nil && req.Kind == dispatch.KindAdhoc && req.BeaconMAC != "" {
			if b, ok := e.nav.Beacon(req.BeaconMAC); ok {
				return []*store.Beacon{b}, strings.ToUpper(req.BeaconMAC)
			}
			log.Printf("engine: ad-hoc beacon %s not configured, no navigation target", req.BeaconMAC)
			return nil, ""
		}
		return e.nav.TargetBeacons(target), strings.ToLower(target.Room)
	case nav.TargetBase:
		return e.nav.TargetBeacons(target), "base"
	}
	return nil, ""
}

// buildResponse recomputes the robot's directives after any transitions this
// exchange caused: a confirmed arrival changes the target (or removes it)
// within the same response.
func (e *Engine) buildResponse(robot *fleet.Robot, robotName string) *ExchangeResponse {
	req, target := e.activeTarget(robotName)
	beacons, _ := e.resolveBeacons(req, target)
	if len(beacons) == 0 {
		target.Kind = nav.TargetNone
	}

	targetSet := make(map[string]struct{}, len(beacons))
	for _, b := range beacons {
		targetSet[strings.ToUpper(b.MAC)] = struct{}{}
	}

	directives := make([]BeaconDirective, 0)
	for _, b := range e.nav.All() {
		_, isTarget := targetSet[strings.ToUpper(b.MAC)]
		directives = append(directives, BeaconDirective{
			MAC:       b.MAC,
			Room:      b.RoomName,
			Threshold: b.Threshold,
			IsTarget:  isTarget,
			IsBase:    b.IsBase,
		})
	}

	counting := robot.RoomArrival.Counting() || robot.BaseArrival.Counting()
	estop := robot.EmergencyStopped()
	maint := robot.Maintenance()

	stopColor := ""
	if target.Kind == nav.TargetRoom {
		stopColor = e.nav.FloorColor(target.Room)
	}

	return &ExchangeResponse{
		Beacons:       directives,
		LineFollow:    target.Kind != nav.TargetNone && !counting && !estop && !maint,
		LineColor:     defaultLineColor,
		StopColor:     stopColor,
		WeightMin:     e.cfg.Fleet.WeightMinGrams,
		WeightMax:     e.cfg.Fleet.WeightMaxGrams,
		EmergencyStop: estop,
		Maintenance:   maint,
	}
}
