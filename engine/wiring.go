package engine

import (
	"fmt"
	"strings"

	"github.com/antomihe/SustainableCity/messaging"
	"github.com/antomihe/SustainableCity/metrics"
	"github.com/antomihe/SustainableCity/store"

	"github.com/sirupsen/logrus"
)

func (e *Engine) wireEventHandlers() {
	// Container changes: live state, audit, outbox
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(ContainerUpdatedEvent)
		e.liveState.Refresh(ev.Container)
		e.audit("container", ev.Container.ID, "updated", "", describe(ev.Container))
		e.enqueue(messaging.TypeContainerUpdated, messaging.ContainerEvent{Container: ev.Container})
	}, EventContainerUpdated)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(ContainerDeletedEvent)
		e.liveState.Remove(ev.ContainerID)
		e.audit("container", ev.ContainerID, "deleted", "", "")
		e.enqueue(messaging.TypeContainerDeleted, messaging.ContainerDeleted{ContainerID: ev.ContainerID})
	}, EventContainerDeleted)

	// Critical fill: alert the administrator
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(CriticalFillEvent)
		c := ev.Container
		metrics.CriticalAlerts.Inc()
		log.WithFields(logrus.Fields{"container": c.ID, "fill": c.FillLevel, "status": c.Status}).
			Warnf("critical fill level at %s", c.Location)
		e.audit("container", c.ID, "critical", fmt.Sprintf("fill %d%%", ev.PreviousLevel), describe(c))
		prev, threshold := ev.PreviousLevel, ev.Threshold
		e.enqueue(messaging.TypeContainerCritical, messaging.ContainerEvent{Container: c, PreviousLevel: &prev, Threshold: &threshold})
		e.notifyAdmin(
			fmt.Sprintf("Critical fill level: %s", c.Location),
			fmt.Sprintf("Container %s at %s is at %d%% (status %s). The alert threshold is %d%%.\nPlease schedule a collection.",
				c.ID, c.Location, c.FillLevel, c.Status, ev.Threshold),
		)
	}, EventCriticalFill)

	// Damage: alert the administrator
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(ContainerDamagedEvent)
		c := ev.Container
		metrics.DamageAlerts.Inc()
		log.WithField("container", c.ID).Warnf("container damaged at %s: %s", c.Location, c.IncidentDescription)
		e.audit("container", c.ID, "damaged", "", c.IncidentDescription)
		e.enqueue(messaging.TypeContainerDamaged, messaging.ContainerEvent{Container: c})
		e.notifyAdmin(
			fmt.Sprintf("Container damaged: %s", c.Location),
			fmt.Sprintf("Container %s at %s was reported damaged.\nDescription: %s", c.ID, c.Location, c.IncidentDescription),
		)
	}, EventContainerDamaged)

	// Assignments: audit
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(AssignmentsChangedEvent)
		detail := strings.Join(ev.Assigned, ",")
		if len(ev.Dropped) > 0 {
			detail += " ignored=" + strings.Join(ev.Dropped, ",")
		}
		e.audit("assignment", ev.Scope+":"+ev.ID, "replaced", "", detail)
	}, EventAssignmentsChanged)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(ConnectionEvent)
		log.Infof("%s: %s", evt.Type, ev.Detail)
	}, EventMessagingConnected, EventMessagingDisconnected)
}

func (e *Engine) audit(entityType, entityID, action, oldValue, newValue string) {
	if err := e.db.AppendAudit(entityType, entityID, action, oldValue, newValue, "system"); err != nil {
		log.Errorf("audit %s %s %s: %v", entityType, entityID, action, err)
	}
}

// enqueue writes a container event envelope to the outbox when a broker is configured.
func (e *Engine) enqueue(msgType string, payload any) {
	if !e.msgClient.Enabled() {
		return
	}
	env := messaging.NewEnvelope(msgType, e.cfg.Messaging.SourceID, payload)
	data, err := env.Encode()
	if err != nil {
		log.Errorf("encode %s: %v", msgType, err)
		return
	}
	if err := e.db.EnqueueOutbox(e.cfg.Messaging.EventsTopic, data, msgType, e.cfg.Messaging.SourceID); err != nil {
		log.Errorf("enqueue %s: %v", msgType, err)
	}
}

// notifyAdmin sends in the background. Container events are emitted while
// the container lock is held.
func (e *Engine) notifyAdmin(subject, body string) {
	to := e.cfg.AdminEmail()
	if to == "" {
		return
	}
	e.pending.Add(1)
	go func() {
		defer e.pending.Done()
		if err := e.notifier.Notify(to, subject, body); err != nil {
			metrics.NotificationFailures.Inc()
			log.WithField("to", to).Errorf("notify %q: %v", subject, err)
		}
	}()
}

func describe(c *store.Container) string {
	return fmt.Sprintf("fill %d%% status %s", c.FillLevel, c.Status)
}
