package dispatch

import (
	"database/sql"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"washfleet/fleet"
	"washfleet/store"
)

// RoomChecker validates customer-supplied room names at the intake boundary.
type RoomChecker interface {
	RoomExists(name string) bool
}

// Dispatcher owns every request mutation: creation, assignment, queueing,
// lifecycle events, cancellation and force-stop. A single mutex serializes
// assignment decisions; each operation is bounded local work, there is no
// cross-request blocking wait.
type Dispatcher struct {
	mu      sync.Mutex
	db      *store.DB
	robots  *fleet.Registry
	rooms   RoomChecker
	emitter Emitter

	autoAccept        bool
	autoStartDelivery bool
}

func NewDispatcher(db *store.DB, robots *fleet.Registry, rooms RoomChecker, emitter Emitter, autoAccept, autoStartDelivery bool) *Dispatcher {
	return &Dispatcher{
		db:                db,
		robots:            robots,
		rooms:             rooms,
		emitter:           emitter,
		autoAccept:        autoAccept,
		autoStartDelivery: autoStartDelivery,
	}
}

// CreateRequest handles customer intake. The room must exist and at least one
// robot must be online and accepting work, otherwise the request is rejected
// outright rather than queued silently.
func (d *Dispatcher) CreateRequest(customerID, customerName, room string) (*store.Request, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.rooms.RoomExists(room) {
		return nil, ErrRoomUnknown
	}
	if len(d.robots.Eligible()) == 0 {
		return nil, ErrNoRobots
	}

	req := &store.Request{
		UUID:         uuid.New().String(),
		Kind:         KindFulfillment,
		CustomerID:   customerID,
		CustomerName: customerName,
		Room:         room,
		Status:       StatusPending,
	}
	if err := d.db.CreateRequest(req); err != nil {
		return nil, err
	}
	d.emitter.EmitRequestCreated(req.ID, req.UUID, req.CustomerID, req.Room)

	// Dispatch immediately only when auto-accept is on and this is the only
	// fulfillment request in flight; otherwise it waits in the queue.
	if d.canAutoDispatchLocked(req) {
		if err := d.dispatchLocked(req, nil); err != nil {
			log.Printf("dispatch: auto-dispatch request %d: %v", req.ID, err)
		}
	} else {
		log.Printf("dispatch: request %d queued (room %s)", req.ID, req.Room)
	}
	return d.db.GetRequest(req.ID)
}

// canAutoDispatchLocked reports whether a freshly created request may skip
// operator approval.
func (d *Dispatcher) canAutoDispatchLocked(req *store.Request) bool {
	if !d.autoAccept {
		return false
	}
	n, err := d.db.CountActiveFulfillment()
	if err != nil {
		log.Printf("dispatch: count active: %v", err)
		return false
	}
	return n <= 1 // only this request
}

// Accept dispatches a pending request to a robot (operator approval).
func (d *Dispatcher) Accept(id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	req, err := d.getRequestLocked(id)
	if err != nil {
		return err
	}
	if req.Status != StatusPending {
		return ErrWrongStatus
	}
	return d.dispatchLocked(req, nil)
}

// Decline rejects a pending request with a reason.
func (d *Dispatcher) Decline(id int64, reason string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	req, err := d.getRequestLocked(id)
	if err != nil {
		return err
	}
	if _, err := d.applyLocked(req, EventDecline, reason); err != nil {
		return err
	}
	d.db.SetCancelReason(req.ID, reason)
	return nil
}

// AssignRobot dispatches a pending request to a specific robot (operator
// override), preempting the robot's current work if necessary.
func (d *Dispatcher) AssignRobot(id int64, robotName string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	req, err := d.getRequestLocked(id)
	if err != nil {
		return err
	}
	if req.Status != StatusPending {
		return ErrWrongStatus
	}
	robot, ok := d.robots.Get(robotName)
	if !ok {
		return ErrUnknownRobot
	}
	return d.dispatchLocked(req, robot)
}

// dispatchLocked assigns a robot (the given one, or the best eligible) and
// moves the request to Accepted.
func (d *Dispatcher) dispatchLocked(req *store.Request, robot *fleet.Robot) error {
	if robot == nil {
		var err error
		robot, err = d.pickRobotLocked()
		if err != nil {
			return err
		}
	}
	if robot.Busy() {
		if err := d.preemptLocked(robot); err != nil {
			return err
		}
	}

	now := time.Now()
	robot.Assign(now)
	if err := d.db.SetRequestRobot(req.ID, robot.Name()); err != nil {
		return err
	}
	req.Robot = robot.Name()
	if _, err := d.applyLocked(req, EventAssign, "assigned to "+robot.Name()); err != nil {
		return err
	}
	d.emitter.EmitRobotAssigned(req.ID, req.UUID, robot.Name())
	log.Printf("dispatch: request %d assigned to %s (room %s)", req.ID, robot.Name(), req.Room)
	return nil
}

// pickRobotLocked prefers an Available eligible robot in registration order,
// falling back to preempting the least-recently-assigned busy one.
func (d *Dispatcher) pickRobotLocked() (*fleet.Robot, error) {
	eligible := d.robots.Eligible()
	if len(eligible) == 0 {
		return nil, ErrNoRobots
	}
	for _, r := range eligible {
		if !r.Busy() {
			return r, nil
		}
	}
	victim := eligible[0]
	for _, r := range eligible[1:] {
		if r.AssignedAt().Before(victim.AssignedAt()) {
			victim = r
		}
	}
	return victim, nil
}

// preemptLocked frees a busy robot by returning its current fulfillment
// request to the queue (robot and acceptance cleared) or cancelling its
// ad-hoc navigation.
func (d *Dispatcher) preemptLocked(robot *fleet.Robot) error {
	reqs, err := d.db.ListActiveByRobot(robot.Name())
	if err != nil {
		return err
	}
	for _, req := range reqs {
		if !RobotEngaged(req.Status) {
			// Washing or awaiting delivery: the robot is not executing this
			// request, so preemption leaves it alone.
			continue
		}
		switch {
		case req.Kind == KindAdhoc:
			d.db.UpdateRequestStatus(req.ID, StatusCancelled, "preempted")
			d.db.SetRequestRobot(req.ID, "")
			d.emitter.EmitStatusChanged(req.ID, req.UUID, req.CustomerID, req.Status, StatusCancelled, "", "preempted")
		case req.Status == StatusCancelled:
			// Return trip abandoned; the request is already terminal once the
			// robot is released.
			d.db.UpdateRequestStatus(req.ID, StatusCompleted, "cancelled-returned (preempted)")
			d.db.StampRequestTime(req.ID, "completed_at")
			d.db.SetRequestRobot(req.ID, "")
		default:
			if err := d.db.ResetRequestToPending(req.ID, "preempted, returned to queue"); err != nil {
				return err
			}
			d.emitter.EmitStatusChanged(req.ID, req.UUID, req.CustomerID, req.Status, StatusPending, "", "preempted, returned to queue")
			log.Printf("dispatch: request %d preempted from %s, back to queue", req.ID, robot.Name())
		}
	}
	robot.Free()
	robot.ClearArrival()
	return nil
}

// ConfirmLoad records that the customer loaded their laundry; the robot
// heads for base.
func (d *Dispatcher) ConfirmLoad(id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	req, err := d.getRequestLocked(id)
	if err != nil {
		return err
	}
	_, err = d.applyLocked(req, EventLoad, "laundry loaded")
	return err
}

// ConfirmUnload records that the customer took their clean laundry back.
func (d *Dispatcher) ConfirmUnload(id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	req, err := d.getRequestLocked(id)
	if err != nil {
		return err
	}
	_, err = d.applyLocked(req, EventUnload, "laundry unloaded")
	return err
}

// MarkWashDone moves a washing request to ready-to-deliver and, when
// configured, immediately tries to start the delivery run.
func (d *Dispatcher) MarkWashDone(id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	req, err := d.getRequestLocked(id)
	if err != nil {
		return err
	}
	if _, err := d.applyLocked(req, EventWashDone, "wash finished"); err != nil {
		return err
	}
	if d.autoStartDelivery {
		d.kickQueueLocked()
	}
	return nil
}

// StartDelivery assigns a robot for the delivery run of a washed request.
func (d *Dispatcher) StartDelivery(id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	req, err := d.getRequestLocked(id)
	if err != nil {
		return err
	}
	return d.startDeliveryLocked(req, nil)
}

func (d *Dispatcher) startDeliveryLocked(req *store.Request, robot *fleet.Robot) error {
	if req.Status != StatusFinishedWashingReadyToDeliver {
		return ErrWrongStatus
	}
	if robot == nil {
		var err error
		robot, err = d.pickRobotLocked()
		if err != nil {
			return err
		}
	}
	if robot.Busy() {
		if err := d.preemptLocked(robot); err != nil {
			return err
		}
	}
	robot.Assign(time.Now())
	if err := d.db.SetRequestRobot(req.ID, robot.Name()); err != nil {
		return err
	}
	req.Robot = robot.Name()
	if _, err := d.applyLocked(req, EventStartDelivery, "delivery started by "+robot.Name()); err != nil {
		return err
	}
	d.emitter.EmitRobotAssigned(req.ID, req.UUID, robot.Name())
	return nil
}

// Complete finishes a request that is back at base after delivery.
func (d *Dispatcher) Complete(id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	req, err := d.getRequestLocked(id)
	if err != nil {
		return err
	}
	_, err = d.applyLocked(req, EventComplete, "completed")
	return err
}

// HandleRoomArrival applies a confirmed room arrival for the robot's active
// request. Ad-hoc navigation completes on arrival; fulfillment requests move
// to their arrived status.
func (d *Dispatcher) HandleRoomArrival(robotName string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	req, err := d.activeRequestLocked(robotName)
	if err != nil {
		return err
	}
	if req.Kind == KindAdhoc {
		d.db.UpdateRequestStatus(req.ID, StatusCompleted, "navigation target reached")
		d.db.StampRequestTime(req.ID, "completed_at")
		d.emitter.EmitStatusChanged(req.ID, req.UUID, req.CustomerID, req.Status, StatusCompleted, robotName, "navigation target reached")
		d.freeRobotLocked(robotName)
		return nil
	}
	_, err = d.applyLocked(req, EventArriveRoom, "arrival confirmed at "+req.Room)
	return err
}

// HandleBaseArrival applies a confirmed base arrival. The post-wash return
// passes through FinishedWashingAtBase and on to Completed in the same
// application; a cancelled request completes its return trip here too.
func (d *Dispatcher) HandleBaseArrival(robotName string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	req, err := d.activeRequestLocked(robotName)
	if err != nil {
		return err
	}

	wasCancelled := req.Status == StatusCancelled
	detail := "base arrival confirmed"
	if wasCancelled {
		detail = "cancelled-returned"
	}
	t, err := d.applyLocked(req, EventArriveBase, detail)
	if err != nil {
		return err
	}
	if wasCancelled {
		// The return trip is done; release the assignment.
		return d.db.SetRequestRobot(req.ID, "")
	}
	if t.To == StatusFinishedWashingAtBase {
		_, err = d.applyLocked(req, EventComplete, "returned to base, completed")
	}
	return err
}

// Cancel cancels a request from any non-terminal status. Mid-wash
// cancellations need an operator disposition: return the dirty laundry or
// finish the wash and deliver anyway.
func (d *Dispatcher) Cancel(id int64, reason, disposition string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	req, err := d.getRequestLocked(id)
	if err != nil {
		return err
	}

	if req.Status == StatusWashing {
		switch disposition {
		case DispositionFinishWash:
			// The wash continues and the laundry is delivered as normal.
			_, err := d.applyLocked(req, EventWashDone, "cancellation resolved: finish wash and deliver")
			return err
		case DispositionReturnDirty:
			// Falls through to the cancel below; the record notes the choice.
			reason = reason + " (return dirty laundry)"
		default:
			return ErrNeedDisposition
		}
	}

	prior := req.Status
	if _, err := d.applyLocked(req, EventCancel, reason); err != nil {
		return err
	}
	d.db.SetCancelReason(req.ID, reason)
	log.Printf("dispatch: request %d cancelled (was %s, robot %q): %s", req.ID, prior, req.Robot, reason)

	// A robot away from base returns there before it is freed; the Cancelled
	// status resolves to a base navigation target. If no robot was executing
	// the request the cancellation is terminal immediately.
	if req.Robot == "" {
		return nil
	}
	if !RobotEngaged(prior) {
		return d.db.SetRequestRobot(req.ID, "")
	}
	if robot, ok := d.robots.Get(req.Robot); ok && robot.Offline(d.robots.LivenessWindow()) {
		// Offline robot cannot return; release it at the data level.
		d.db.SetRequestRobot(req.ID, "")
		d.freeRobotLocked(req.Robot)
	}
	return nil
}

// ForceStop is the administrative big red button for one robot: halt its
// motion, cancel every request assigned to it (ad-hoc included) and clear
// its navigation state. The data mutations run in one transaction; a halt
// that cannot reach the robot is reported but never rolls them back.
func (d *Dispatcher) ForceStop(robotName string) ([]int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	robot, ok := d.robots.Get(robotName)
	if !ok {
		return nil, ErrUnknownRobot
	}

	ids, err := d.db.CancelAllForRobot(robotName, "force stop")
	if err != nil {
		return nil, err
	}

	robot.SetEmergencyStop(true)
	if robot.Offline(d.robots.LivenessWindow()) {
		log.Printf("dispatch: force stop %s: robot offline, halt directive will apply on reconnect", robotName)
	}
	robot.ClearArrival()
	robot.Free()

	for _, id := range ids {
		if req, err := d.db.GetRequest(id); err == nil {
			d.emitter.EmitStatusChanged(req.ID, req.UUID, req.CustomerID, "", StatusCancelled, robotName, "force stop")
		}
	}
	log.Printf("dispatch: force stop %s cancelled %d request(s)", robotName, len(ids))
	d.kickQueueLocked()
	return ids, nil
}

// ClearEmergencyStop releases a robot's halt directive.
func (d *Dispatcher) ClearEmergencyStop(robotName string) error {
	robot, ok := d.robots.Get(robotName)
	if !ok {
		return ErrUnknownRobot
	}
	robot.SetEmergencyStop(false)
	return nil
}

// Navigate sends a robot to a room outside any customer request (ad-hoc
// administrative navigation).
func (d *Dispatcher) Navigate(robotName, room, beaconMAC string) (*store.Request, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	robot, ok := d.robots.Get(robotName)
	if !ok {
		return nil, ErrUnknownRobot
	}
	if robot.Offline(d.robots.LivenessWindow()) || robot.Busy() {
		return nil, ErrNoRobots
	}
	if !d.rooms.RoomExists(room) {
		return nil, ErrRoomUnknown
	}

	req := &store.Request{
		UUID:       uuid.New().String(),
		Kind:       KindAdhoc,
		CustomerID: AdhocCustomerID,
		Robot:      robotName,
		Room:       room,
		BeaconMAC:  beaconMAC,
		Status:     StatusAccepted,
	}
	if err := d.db.CreateRequest(req); err != nil {
		return nil, err
	}
	d.db.StampRequestTime(req.ID, "accepted_at")
	robot.Assign(time.Now())
	log.Printf("dispatch: robot %s navigating to %s (ad-hoc)", robotName, room)
	return req, nil
}

// ClearNavigation cancels a robot's in-flight ad-hoc navigation.
func (d *Dispatcher) ClearNavigation(robotName string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	robot, ok := d.robots.Get(robotName)
	if !ok {
		return ErrUnknownRobot
	}
	reqs, err := d.db.ListActiveByRobot(robotName)
	if err != nil {
		return err
	}
	for _, req := range reqs {
		if req.Kind != KindAdhoc {
			continue
		}
		d.db.UpdateRequestStatus(req.ID, StatusCancelled, "navigation cleared")
		d.db.SetRequestRobot(req.ID, "")
		d.emitter.EmitStatusChanged(req.ID, req.UUID, req.CustomerID, req.Status, StatusCancelled, robotName, "navigation cleared")
	}
	robot.ClearArrival()
	robot.Free()
	return nil
}

// ReleaseCancelled abandons the return trip of a cancelled request whose
// robot went offline, releasing the robot at the data level. The offline
// monitor calls this to reconcile cancellations the robot never finished.
func (d *Dispatcher) ReleaseCancelled(id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	req, err := d.getRequestLocked(id)
	if err != nil {
		return err
	}
	if req.Status != StatusCancelled || req.Robot == "" {
		return ErrWrongStatus
	}
	if err := d.db.SetRequestRobot(req.ID, ""); err != nil {
		return err
	}
	d.db.UpdateRequestStatus(req.ID, StatusCancelled, "return trip abandoned: robot offline")
	d.freeRobotLocked(req.Robot)
	d.kickQueueLocked()
	return nil
}

// FlagAttention marks a request as needing manual intervention (robot
// offline while holding laundry).
func (d *Dispatcher) FlagAttention(id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	req, err := d.getRequestLocked(id)
	if err != nil {
		return err
	}
	if req.NeedsAttention {
		return nil
	}
	if err := d.db.SetNeedsAttention(req.ID, true); err != nil {
		return err
	}
	d.emitter.EmitNeedsAttention(req.ID, req.UUID, req.Robot)
	return nil
}

// KickQueue dispatches queued work to available robots. Called when a robot
// becomes Available and by the monitors after forced transitions.
func (d *Dispatcher) KickQueue() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.kickQueueLocked()
}

func (d *Dispatcher) kickQueueLocked() {
	if !d.autoAccept {
		return
	}
	for {
		robot := d.availableRobotLocked()
		if robot == nil {
			return
		}
		// Oldest pending fulfillment request first (strict FIFO), then
		// pending deliveries.
		if req, err := d.db.OldestPending(); err == nil && req != nil {
			if err := d.dispatchLocked(req, robot); err != nil {
				log.Printf("dispatch: queue pop request %d: %v", req.ID, err)
				return
			}
			continue
		}
		if !d.autoStartDelivery {
			return
		}
		req, err := d.db.OldestReadyToDeliver()
		if err != nil || req == nil {
			return
		}
		if err := d.startDeliveryLocked(req, robot); err != nil {
			log.Printf("dispatch: auto delivery request %d: %v", req.ID, err)
			return
		}
	}
}

func (d *Dispatcher) availableRobotLocked() *fleet.Robot {
	for _, r := range d.robots.Eligible() {
		if !r.Busy() {
			return r
		}
	}
	return nil
}

// applyLocked runs one state-machine transition: persist the new status and
// history, stamp the lifecycle timestamp, emit the change, and release the
// robot when the transition frees it.
func (d *Dispatcher) applyLocked(req *store.Request, ev Event, detail string) (Transition, error) {
	t, err := Next(req.Status, ev)
	if err != nil {
		return Transition{}, err
	}
	if err := d.db.UpdateRequestStatus(req.ID, t.To, detail); err != nil {
		return Transition{}, err
	}
	if t.Stamp != "" {
		if err := d.db.StampRequestTime(req.ID, t.Stamp); err != nil {
			log.Printf("dispatch: stamp %s on request %d: %v", t.Stamp, req.ID, err)
		}
	}
	from := req.Status
	req.Status = t.To
	d.emitter.EmitStatusChanged(req.ID, req.UUID, req.CustomerID, from, t.To, req.Robot, detail)

	if t.FreesRobot && req.Robot != "" {
		d.freeRobotLocked(req.Robot)
		d.kickQueueLocked()
	}
	return t, nil
}

func (d *Dispatcher) freeRobotLocked(robotName string) {
	if robot, ok := d.robots.Get(robotName); ok {
		robot.Free()
		robot.ClearArrival()
	}
}

func (d *Dispatcher) getRequestLocked(id int64) (*store.Request, error) {
	req, err := d.db.GetRequest(id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUnknownRequest
	}
	return req, err
}

// ActiveRequest returns the request the robot is currently executing, or
// ErrUnknownRequest when it has none.
func (d *Dispatcher) ActiveRequest(robotName string) (*store.Request, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.activeRequestLocked(robotName)
}

// activeRequestLocked finds the request the robot is currently executing.
// Requests in Washing or ReadyToDeliver remember their robot but do not
// occupy it, so they are skipped.
func (d *Dispatcher) activeRequestLocked(robotName string) (*store.Request, error) {
	reqs, err := d.db.ListActiveByRobot(robotName)
	if err != nil {
		return nil, err
	}
	for _, req := range reqs {
		if RobotEngaged(req.Status) {
			return req, nil
		}
	}
	return nil, ErrUnknownRequest
}
