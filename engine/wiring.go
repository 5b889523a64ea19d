package engine

import (
	"encoding/json"
	"time"

	"washfleet/dispatch"
)

// notice is the customer-facing notification payload drained from the outbox
// to the per-customer topic.
type notice struct {
	RequestID int64     `json:"request_id"`
	UUID      string    `json:"uuid"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Robot     string    `json:"robot,omitempty"`
	At        time.Time `json:"at"`
}

func (e *Engine) wireEventHandlers() {
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(RequestCreatedEvent)
		e.logFn("engine: request %d created by %s for room %s", ev.RequestID, ev.CustomerID, ev.Room)
		e.notify(ev.CustomerID, notice{
			RequestID: ev.RequestID,
			UUID:      ev.UUID,
			Status:    dispatch.StatusPending,
			Message:   "your laundry request has been received",
			At:        evt.Timestamp,
		})
	}, EventRequestCreated)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(RobotAssignedEvent)
		e.logFn("engine: request %d assigned to robot %s", ev.RequestID, ev.Robot)
	}, EventRobotAssigned)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(StatusChangedEvent)
		e.logFn("engine: request %d %s -> %s (%s)", ev.RequestID, ev.OldStatus, ev.NewStatus, ev.Detail)
		if ev.OldStatus == dispatch.StatusCancelled {
			// End of a cancelled request's return trip; the customer already
			// heard about the cancellation.
			return
		}
		msg := statusMessage(ev.NewStatus, ev.Detail)
		if msg == "" {
			return
		}
		e.notify(ev.CustomerID, notice{
			RequestID: ev.RequestID,
			UUID:      ev.UUID,
			Status:    ev.NewStatus,
			Message:   msg,
			Robot:     ev.Robot,
			At:        evt.Timestamp,
		})
	}, EventStatusChanged)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(NeedsAttentionEvent)
		e.logFn("engine: request %d needs attention (robot %s)", ev.RequestID, ev.Robot)
		n := notice{
			RequestID: ev.RequestID,
			UUID:      ev.UUID,
			Status:    "NeedsAttention",
			Message:   "manual intervention required",
			Robot:     ev.Robot,
			At:        evt.Timestamp,
		}
		data, err := json.Marshal(n)
		if err != nil {
			return
		}
		topic := e.cfg.Messaging.NotifyTopicPrefix + "/ops"
		if err := e.db.EnqueueOutbox(topic, data, "request.attention", ""); err != nil {
			e.logFn("engine: enqueue attention notice for request %d: %v", ev.RequestID, err)
		}
	}, EventNeedsAttention)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(ConnectionEvent)
		e.logFn("engine: %s", ev.Detail)
	}, EventMessagingConnected, EventMessagingDisconnected)
}

// notify enqueues a customer notification. Ad-hoc navigation has no customer
// to notify.
func (e *Engine) notify(customerID string, n notice) {
	if customerID == "" || customerID == dispatch.AdhocCustomerID {
		return
	}
	data, err := json.Marshal(n)
	if err != nil {
		return
	}
	topic := e.cfg.Messaging.NotifyTopicPrefix + "/" + customerID
	if err := e.db.EnqueueOutbox(topic, data, "request.status", customerID); err != nil {
		e.logFn("engine: enqueue notice for request %d: %v", n.RequestID, err)
	}
}

// statusMessage maps a status change to its customer-facing text. Statuses
// with no customer-visible meaning (internal waypoints like the return leg)
// notify nothing.
func statusMessage(status, detail string) string {
	switch status {
	case dispatch.StatusPending:
		return "your request is waiting in the queue"
	case dispatch.StatusAccepted:
		return "a robot is on its way to collect your laundry"
	case dispatch.StatusArrivedAtRoom:
		return "the robot has arrived at your room; please load your laundry"
	case dispatch.StatusWashing:
		return "your laundry is being washed"
	case dispatch.StatusFinishedWashingReadyToDeliver:
		return "your laundry is clean and ready for delivery"
	case dispatch.StatusFinishedWashingGoingToRoom:
		return "your clean laundry is on its way"
	case dispatch.StatusFinishedWashingArrivedAtRoom:
		return "the robot has arrived with your clean laundry; please unload"
	case dispatch.StatusCompleted:
		return "your laundry request is complete"
	case dispatch.StatusDeclined:
		return "your request was declined: " + detail
	case dispatch.StatusCancelled:
		return "your request was cancelled: " + detail
	}
	return ""
}
