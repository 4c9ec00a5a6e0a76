package lifecycle

import "github.com/antomihe/SustainableCity/store"

// Emitter is the interface adapters must satisfy to bridge lifecycle events to the engine.
type Emitter interface {
	EmitContainerUpdated(c *store.Container)
	EmitContainerDeleted(id string)
	EmitCriticalFill(c *store.Container, previousLevel, threshold int)
	EmitContainerDamaged(c *store.Container)
}
