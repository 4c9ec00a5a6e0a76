// Package lifecycle owns every container state change: status transitions,
// fill-level mutation and the edge-triggered critical and damage alerts.
package lifecycle

import (
	"strings"
	"time"

	"github.com/antomihe/SustainableCity/apperr"
	"github.com/antomihe/SustainableCity/logging"
	"github.com/antomihe/SustainableCity/metrics"
	"github.com/antomihe/SustainableCity/store"
	"github.com/antomihe/SustainableCity/validation"

	"github.com/sirupsen/logrus"
)

const (
	DefaultCapacity = 100
	MaxFillDelta    = 100
)

// Guard inspects the locked current state inside a transition and may veto it.
type Guard func(c *store.Container) error

type Engine struct {
	db        *store.DB
	emitter   Emitter
	threshold int
	locks     *keyedMutex
	now       func() time.Time
	log       *logrus.Entry
}

func New(db *store.DB, emitter Emitter, criticalFillLevel int) *Engine {
	return &Engine{
		db:        db,
		emitter:   emitter,
		threshold: criticalFillLevel,
		locks:     newKeyedMutex(),
		now:       time.Now,
		log:       logging.For("lifecycle"),
	}
}

// SetClock replaces the time source used for LastEmptiedAt.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

func (e *Engine) Threshold() int { return e.threshold }

type CreateInput struct {
	Location            string             `json:"location" validate:"required"`
	Coordinates         *store.Coordinates `json:"coordinates"`
	Capacity            int                `json:"capacity" validate:"omitempty,min=1"`
	FillLevel           int                `json:"fillLevel" validate:"min=0,max=100"`
	Type                string             `json:"type" validate:"omitempty,container_type"`
	Status              string             `json:"status" validate:"omitempty,container_status"`
	IncidentDescription string             `json:"incidentDescription"`
}

// Patch is a generic field update. Nil fields are left untouched.
type Patch struct {
	Location            *string            `json:"location" validate:"omitnil,min=1"`
	Coordinates         *store.Coordinates `json:"coordinates"`
	Capacity            *int               `json:"capacity" validate:"omitnil,min=1"`
	Type                *string            `json:"type" validate:"omitnil,container_type"`
	FillLevel           *int               `json:"fillLevel" validate:"omitnil,min=0,max=100"`
	Status              *string            `json:"status" validate:"omitnil,container_status"`
	IncidentDescription *string            `json:"incidentDescription"`
	LastEmptiedAt       *time.Time         `json:"lastEmptiedAt"`
}

// StatusPatch is the explicit fill/status update.
type StatusPatch struct {
	FillLevel *int    `json:"fillLevel" validate:"omitnil,min=0,max=100"`
	Status    *string `json:"status" validate:"omitnil,container_status"`
}

func (e *Engine) Get(id string) (*store.Container, error) {
	return e.db.GetContainer(id)
}

func (e *Engine) List() ([]*store.Container, error) {
	return e.db.ListContainers()
}

func (e *Engine) Create(in CreateInput) (*store.Container, error) {
	in.Location = strings.TrimSpace(in.Location)
	in.IncidentDescription = strings.TrimSpace(in.IncidentDescription)
	if in.Capacity == 0 {
		in.Capacity = DefaultCapacity
	}
	if in.Type == "" {
		in.Type = store.TypeGeneral
	}
	if in.Status == "" {
		in.Status = store.StatusOK
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if in.Status == store.StatusDamaged && in.IncidentDescription == "" {
		return nil, apperr.Validation("incidentDescription is required for a DAMAGED container")
	}
	if in.Status != store.StatusDamaged {
		in.IncidentDescription = ""
	}

	c := &store.Container{
		Location:            in.Location,
		Coordinates:         in.Coordinates,
		Capacity:            in.Capacity,
		FillLevel:           in.FillLevel,
		Type:                in.Type,
		Status:              in.Status,
		IncidentDescription: in.IncidentDescription,
	}
	if err := e.db.CreateContainer(c); err != nil {
		return nil, err
	}
	metrics.ContainerUpdates.WithLabelValues("create").Inc()
	e.log.WithField("container", c.ID).Infof("created at %q", c.Location)
	e.emitter.EmitContainerUpdated(c)
	return c, nil
}

// Update applies a generic patch. A patch touching fill or status that leaves
// the container at fill 0 and OK counts as an emptying.
func (e *Engine) Update(id string, p Patch) (*store.Container, error) {
	if p.Location != nil {
		loc := strings.TrimSpace(*p.Location)
		p.Location = &loc
	}
	if p.IncidentDescription != nil {
		desc := strings.TrimSpace(*p.IncidentDescription)
		p.IncidentDescription = &desc
	}
	if err := validation.Struct(p); err != nil {
		return nil, err
	}
	return e.mutate("update", id, func(c *store.Container) error {
		if p.Location != nil {
			c.Location = *p.Location
		}
		if p.Coordinates != nil {
			coords := *p.Coordinates
			c.Coordinates = &coords
		}
		if p.Capacity != nil {
			c.Capacity = *p.Capacity
		}
		if p.Type != nil {
			c.Type = *p.Type
		}
		if p.LastEmptiedAt != nil {
			t := *p.LastEmptiedAt
			c.LastEmptiedAt = &t
		}
		if p.IncidentDescription != nil {
			c.IncidentDescription = *p.IncidentDescription
		}
		return e.applyFillStatus(c, p.FillLevel, p.Status)
	})
}

// UpdateStatus applies the explicit fill/status patch.
func (e *Engine) UpdateStatus(id string, p StatusPatch) (*store.Container, error) {
	if p.FillLevel == nil && p.Status == nil {
		return nil, apperr.Validation("fillLevel or status is required")
	}
	if err := validation.Struct(p); err != nil {
		return nil, err
	}
	return e.mutate("status", id, func(c *store.Container) error {
		return e.applyFillStatus(c, p.FillLevel, p.Status)
	})
}

// applyFillStatus is shared by both patch paths.
func (e *Engine) applyFillStatus(c *store.Container, fill *int, status *string) error {
	if fill != nil {
		c.FillLevel = *fill
	}
	if status != nil {
		c.Status = *status
	}
	if c.Status != store.StatusDamaged {
		c.IncidentDescription = ""
	} else if c.IncidentDescription == "" {
		return apperr.Validation("incidentDescription is required for a DAMAGED container")
	}
	if (fill != nil || status != nil) && c.FillLevel == 0 && c.Status == store.StatusOK {
		now := e.now()
		c.LastEmptiedAt = &now
	}
	return nil
}

// MarkFull forces FULL regardless of the fill level.
func (e *Engine) MarkFull(id string, guards ...Guard) (*store.Container, error) {
	return e.mutate("mark_full", id, func(c *store.Container) error {
		if err := runGuards(c, guards); err != nil {
			return err
		}
		c.Status = store.StatusFull
		c.IncidentDescription = ""
		return nil
	})
}

// MarkDamaged forces DAMAGED with the given description.
func (e *Engine) MarkDamaged(id, description string, guards ...Guard) (*store.Container, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, apperr.Validation("description is required for a damage report")
	}
	return e.mutate("mark_damaged", id, func(c *store.Container) error {
		if err := runGuards(c, guards); err != nil {
			return err
		}
		c.Status = store.StatusDamaged
		c.IncidentDescription = description
		return nil
	})
}

// SimulateFill adds delta to the fill level, clamped to 0..100.
func (e *Engine) SimulateFill(id string, delta int) (*store.Container, error) {
	if delta > MaxFillDelta || delta < -MaxFillDelta {
		return nil, apperr.Validation("fill delta must be within -%d..%d", MaxFillDelta, MaxFillDelta)
	}
	return e.mutate("simulate_fill", id, func(c *store.Container) error {
		applyLevel(c, clamp(c.FillLevel+delta))
		return nil
	})
}

// RecordReading stores an absolute sensor fill level with the same automatic
// FULL promotion and demotion as SimulateFill.
func (e *Engine) RecordReading(id string, level int) (*store.Container, error) {
	if level < 0 || level > 100 {
		return nil, apperr.Validation("fill level must be within 0..100, got %d", level)
	}
	return e.mutate("sensor_reading", id, func(c *store.Container) error {
		applyLevel(c, level)
		return nil
	})
}

// Repair empties the container and returns it to service.
func (e *Engine) Repair(id string) (*store.Container, error) {
	zero, ok := 0, store.StatusOK
	return e.UpdateStatus(id, StatusPatch{FillLevel: &zero, Status: &ok})
}

func (e *Engine) Delete(id string) error {
	unlock := e.locks.Lock(id)
	defer unlock()
	if err := e.db.DeleteContainer(id); err != nil {
		return err
	}
	metrics.ContainerUpdates.WithLabelValues("delete").Inc()
	e.log.WithField("container", id).Info("deleted")
	e.emitter.EmitContainerDeleted(id)
	return nil
}

// mutate serializes changes per container, commits them and emits the
// resulting events while still holding the container lock, so event order
// matches commit order.
func (e *Engine) mutate(op, id string, apply func(c *store.Container) error) (*store.Container, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	before, after, err := e.db.MutateContainer(id, apply)
	if err != nil {
		return nil, err
	}
	metrics.ContainerUpdates.WithLabelValues(op).Inc()
	e.publish(before, after)
	return after, nil
}

func (e *Engine) publish(before, after *store.Container) {
	e.emitter.EmitContainerUpdated(after)
	if e.crossed(before, after) {
		e.log.WithField("container", after.ID).Debugf("critical edge %d -> %d (%s)", before.FillLevel, after.FillLevel, after.Status)
		e.emitter.EmitCriticalFill(after, before.FillLevel, e.threshold)
	}
	if before.Status != store.StatusDamaged && after.Status == store.StatusDamaged {
		e.emitter.EmitContainerDamaged(after)
	}
}

// critical is the alert condition: at or above the threshold, or flagged FULL.
func (e *Engine) critical(c *store.Container) bool {
	return c.FillLevel >= e.threshold || c.Status == store.StatusFull
}

// crossed reports a critical edge: the fill level rising through the
// threshold, or a container below it and not FULL being flagged FULL. A FULL
// status before the change never masks a numeric crossing.
func (e *Engine) crossed(before, after *store.Container) bool {
	if before.FillLevel < e.threshold && after.FillLevel >= e.threshold {
		return true
	}
	return !e.critical(before) && after.Status == store.StatusFull
}

// applyLevel sets the fill level and moves OK to FULL at 100, FULL back to OK
// whenever the level is below 100. DAMAGED is left alone.
func applyLevel(c *store.Container, level int) {
	c.FillLevel = level
	switch {
	case c.Status == store.StatusOK && level >= 100:
		c.Status = store.StatusFull
	case c.Status == store.StatusFull && level < 100:
		c.Status = store.StatusOK
	}
}

func clamp(level int) int {
	if level < 0 {
		return 0
	}
	if level > 100 {
		return 100
	}
	return level
}

func runGuards(c *store.Container, guards []Guard) error {
	for _, g := range guards {
		if err := g(c); err != nil {
			return err
		}
	}
	return nil
}
