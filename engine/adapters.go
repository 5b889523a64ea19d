package engine

// busEmitter bridges the dispatch package's emitter interface to the EventBus.
type busEmitter struct {
	bus *EventBus
}

func (e *busEmitter) EmitRequestCreated(requestID int64, uuid, customerID, room string) {
	e.bus.Emit(Event{Type: EventRequestCreated, Payload: RequestCreatedEvent{
		RequestID:  requestID,
		UUID:       uuid,
		CustomerID: customerID,
		Room:       room,
	}})
}

func (e *busEmitter) EmitStatusChanged(requestID int64, uuid, customerID, oldStatus, newStatus, robot, detail string) {
	e.bus.Emit(Event{Type: EventStatusChanged, Payload: StatusChangedEvent{
		RequestID:  requestID,
		UUID:       uuid,
		CustomerID: customerID,
		OldStatus:  oldStatus,
		NewStatus:  newStatus,
		Robot:      robot,
		Detail:     detail,
	}})
}

func (e *busEmitter) EmitRobotAssigned(requestID int64, uuid, robot string) {
	e.bus.Emit(Event{Type: EventRobotAssigned, Payload: RobotAssignedEvent{
		RequestID: requestID,
		UUID:      uuid,
		Robot:     robot,
	}})
}

func (e *busEmitter) EmitNeedsAttention(requestID int64, uuid, robot string) {
	e.bus.Emit(Event{Type: EventNeedsAttention, Payload: NeedsAttentionEvent{
		RequestID: requestID,
		UUID:      uuid,
		Robot:     robot,
	}})
}
