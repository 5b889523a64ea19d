package dispatch

// Emitter is the interface adapters must satisfy to bridge dispatch events
// to the engine's event bus.
type Emitter interface {
	EmitRequestCreated(requestID int64, uuid, customerID, room string)
	EmitStatusChanged(requestID int64, uuid, customerID, from, to, robot, detail string)
	EmitRobotAssigned(requestID int64, uuid, robot string)
	EmitNeedsAttention(requestID int64, uuid, robot string)
}
