package engine

const (
	EventRequestCreated EventType = iota + 1
	EventRobotAssigned
	EventStatusChanged
	EventNeedsAttention
	EventMessagingConnected
	EventMessagingDisconnected
)

// --- Event payloads ---

type RequestCreatedEvent struct {
	RequestID  int64
	UUID       string
	CustomerID string
	Room       string
}

type RobotAssignedEvent struct {
	RequestID int64
	UUID      string
	Robot     string
}

type StatusChangedEvent struct {
	RequestID  int64
	UUID       string
	CustomerID string
	OldStatus  string
	NewStatus  string
	Robot      string
	Detail     string
}

type NeedsAttentionEvent struct {
	RequestID int64
	UUID      string
	Robot     string
}

type ConnectionEvent struct {
	Detail string
}
