package engine

import "github.com/antomihe/SustainableCity/store"

// lifecycleEmitter bridges the lifecycle package's emitter interface to the EventBus.
type lifecycleEmitter struct {
	bus *EventBus
}

func (e *lifecycleEmitter) EmitContainerUpdated(c *store.Container) {
	e.bus.Emit(Event{Type: EventContainerUpdated, Payload: ContainerUpdatedEvent{Container: c}})
}

func (e *lifecycleEmitter) EmitContainerDeleted(id string) {
	e.bus.Emit(Event{Type: EventContainerDeleted, Payload: ContainerDeletedEvent{ContainerID: id}})
}

func (e *lifecycleEmitter) EmitCriticalFill(c *store.Container, previousLevel, threshold int) {
	e.bus.Emit(Event{Type: EventCriticalFill, Payload: CriticalFillEvent{
		Container:     c,
		PreviousLevel: previousLevel,
		Threshold:     threshold,
	}})
}

func (e *lifecycleEmitter) EmitContainerDamaged(c *store.Container) {
	e.bus.Emit(Event{Type: EventContainerDamaged, Payload: ContainerDamagedEvent{Container: c}})
}

// assignmentEmitter bridges assignment replacements to the EventBus.
type assignmentEmitter struct {
	bus *EventBus
}

func (e *assignmentEmitter) EmitAssignmentsChanged(scope, id string, assigned, dropped []string) {
	e.bus.Emit(Event{Type: EventAssignmentsChanged, Payload: AssignmentsChangedEvent{
		Scope:    scope,
		ID:       id,
		Assigned: assigned,
		Dropped:  dropped,
	}})
}
