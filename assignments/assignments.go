// Package assignments maintains which operators are responsible for which
// containers through whole-set replacement from either side.
package assignments

import (
	"github.com/antomihe/SustainableCity/apperr"
	"github.com/antomihe/SustainableCity/logging"
	"github.com/antomihe/SustainableCity/metrics"
	"github.com/antomihe/SustainableCity/store"

	"github.com/sirupsen/logrus"
)

const (
	ScopeOperator  = "operator"
	ScopeContainer = "container"
)

// Emitter is the interface adapters must satisfy to bridge assignment changes to the engine.
type Emitter interface {
	EmitAssignmentsChanged(scope, id string, assigned, dropped []string)
}

type Manager struct {
	db      *store.DB
	emitter Emitter
	log     *logrus.Entry
}

func NewManager(db *store.DB, emitter Emitter) *Manager {
	return &Manager{db: db, emitter: emitter, log: logging.For("assignments")}
}

// ValidIDs keeps the requested ids that appear in existing, in request order
// without duplicates, and returns the rest as dropped.
func ValidIDs(requested, existing []string) (valid, dropped []string) {
	known := make(map[string]bool, len(existing))
	for _, id := range existing {
		known[id] = true
	}
	seen := make(map[string]bool, len(requested))
	valid = []string{}
	for _, id := range requested {
		if seen[id] {
			continue
		}
		seen[id] = true
		if known[id] {
			valid = append(valid, id)
		} else {
			dropped = append(dropped, id)
		}
	}
	return valid, dropped
}

// AssignContainersToOperator replaces the operator's container set. Unknown
// container ids are ignored. An empty list clears the set.
func (m *Manager) AssignContainersToOperator(operatorID string, containerIDs []string) ([]*store.Assignment, error) {
	if _, err := m.operator(operatorID); err != nil {
		return nil, err
	}
	existing, err := m.db.ExistingContainerIDs(containerIDs)
	if err != nil {
		return nil, err
	}
	valid, dropped := ValidIDs(containerIDs, existing)
	m.logDropped(ScopeOperator, operatorID, dropped)

	rows, err := m.db.ReplaceOperatorAssignments(operatorID, valid)
	if err != nil {
		return nil, err
	}
	metrics.AssignmentReplacements.WithLabelValues(ScopeOperator).Inc()
	m.emitter.EmitAssignmentsChanged(ScopeOperator, operatorID, assignedIDs(rows, ScopeOperator), dropped)
	return rows, nil
}

// AssignOperatorsToContainer replaces the container's operator set. Ids that
// are unknown or not operators are ignored. An empty list clears the set.
func (m *Manager) AssignOperatorsToContainer(containerID string, operatorIDs []string) ([]*store.Assignment, error) {
	if _, err := m.db.GetContainer(containerID); err != nil {
		return nil, err
	}
	existing, err := m.db.ExistingOperatorIDs(operatorIDs)
	if err != nil {
		return nil, err
	}
	valid, dropped := ValidIDs(operatorIDs, existing)
	m.logDropped(ScopeContainer, containerID, dropped)

	rows, err := m.db.ReplaceContainerAssignments(containerID, valid)
	if err != nil {
		return nil, err
	}
	metrics.AssignmentReplacements.WithLabelValues(ScopeContainer).Inc()
	m.emitter.EmitAssignmentsChanged(ScopeContainer, containerID, assignedIDs(rows, ScopeContainer), dropped)
	return rows, nil
}

func (m *Manager) ContainersForOperator(operatorID string) ([]*store.Container, error) {
	if _, err := m.operator(operatorID); err != nil {
		return nil, err
	}
	return m.db.ListContainersForOperator(operatorID)
}

func (m *Manager) OperatorsForContainer(containerID string) ([]*store.User, error) {
	if _, err := m.db.GetContainer(containerID); err != nil {
		return nil, err
	}
	return m.db.ListOperatorsForContainer(containerID)
}

// Remove deletes a single pair. The change is announced with the operator's
// remaining container set.
func (m *Manager) Remove(operatorID, containerID string) error {
	ok, err := m.db.DeleteAssignment(operatorID, containerID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("operator %s is not assigned to container %s", operatorID, containerID)
	}
	rows, err := m.db.ListAssignmentsByOperator(operatorID)
	if err != nil {
		m.log.WithField("operator", operatorID).Warnf("list remaining assignments: %v", err)
		return nil
	}
	m.emitter.EmitAssignmentsChanged(ScopeOperator, operatorID, assignedIDs(rows, ScopeOperator), nil)
	return nil
}

// operator resolves a user and checks the Operator role.
func (m *Manager) operator(id string) (*store.User, error) {
	u, err := m.db.GetUser(id)
	if err != nil {
		return nil, err
	}
	if u.Role != store.RoleOperator {
		return nil, apperr.BadRequest("user %s is not an operator", id)
	}
	return u, nil
}

func (m *Manager) logDropped(scope, id string, dropped []string) {
	if len(dropped) == 0 {
		return
	}
	metrics.DroppedAssignmentIDs.WithLabelValues(scope).Add(float64(len(dropped)))
	m.log.WithFields(logrus.Fields{"scope": scope, "id": id}).Warnf("ignoring unknown ids: %v", dropped)
}

func assignedIDs(rows []*store.Assignment, scope string) []string {
	ids := make([]string, len(rows))
	for i, a := range rows {
		if scope == ScopeOperator {
			ids[i] = a.ContainerID
		} else {
			ids[i] = a.OperatorID
		}
	}
	return ids
}
