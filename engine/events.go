package engine

import "github.com/antomihe/SustainableCity/store"

const (
	EventContainerUpdated EventType = iota + 1
	EventContainerDeleted
	EventCriticalFill
	EventContainerDamaged
	EventAssignmentsChanged
	EventMessagingConnected
	EventMessagingDisconnected
)

var eventNames = map[EventType]string{
	EventContainerUpdated:      "container_updated",
	EventContainerDeleted:      "container_deleted",
	EventCriticalFill:          "critical_fill",
	EventContainerDamaged:      "container_damaged",
	EventAssignmentsChanged:    "assignments_changed",
	EventMessagingConnected:    "messaging_connected",
	EventMessagingDisconnected: "messaging_disconnected",
}

func (t EventType) String() string {
	if name, ok := eventNames[t]; ok {
		return name
	}
	return "unknown"
}

// --- Event payloads ---

type ContainerUpdatedEvent struct {
	Container *store.Container
}

type ContainerDeletedEvent struct {
	ContainerID string
}

// CriticalFillEvent is emitted once per crossing into the critical state.
type CriticalFillEvent struct {
	Container     *store.Container
	PreviousLevel int
	Threshold     int
}

type ContainerDamagedEvent struct {
	Container *store.Container
}

type AssignmentsChangedEvent struct {
	Scope    string // "operator" or "container"
	ID       string
	Assigned []string
	Dropped  []string
}

type ConnectionEvent struct {
	Detail string
}
