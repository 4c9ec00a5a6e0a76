// Package incidents validates citizen and operator problem reports against
// the current container state before routing them to the lifecycle engine.
package incidents

import (
	"strings"

	"github.com/antomihe/SustainableCity/apperr"
	"github.com/antomihe/SustainableCity/lifecycle"
	"github.com/antomihe/SustainableCity/logging"
	"github.com/antomihe/SustainableCity/metrics"
	"github.com/antomihe/SustainableCity/store"

	"github.com/sirupsen/logrus"
)

const (
	TypeFull    = "FULL"
	TypeDamaged = "DAMAGED"
)

type Report struct {
	ContainerID string `json:"containerId"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

type Validator struct {
	db        *store.DB
	lifecycle *lifecycle.Engine
	log       *logrus.Entry
}

func NewValidator(db *store.DB, lc *lifecycle.Engine) *Validator {
	return &Validator{db: db, lifecycle: lc, log: logging.For("incidents")}
}

// Report checks r against the container and applies it. Rules, in order:
// unknown container, already DAMAGED, already FULL for a non-damage report,
// then FULL or DAMAGED routing. Anything else is unsupported.
func (v *Validator) Report(r Report) (*store.Container, error) {
	r.Type = strings.ToUpper(strings.TrimSpace(r.Type))
	c, err := v.report(r)
	outcome := "accepted"
	if err != nil {
		outcome = apperr.KindOf(err).String()
	}
	metrics.IncidentReports.WithLabelValues(reportLabel(r.Type), outcome).Inc()
	if err != nil {
		v.log.WithFields(logrus.Fields{"container": r.ContainerID, "type": r.Type}).Infof("report rejected: %v", err)
	}
	return c, err
}

func (v *Validator) report(r Report) (*store.Container, error) {
	r.ContainerID = strings.TrimSpace(r.ContainerID)
	if r.ContainerID == "" {
		return nil, apperr.Validation("containerId is required")
	}
	c, err := v.db.GetContainer(r.ContainerID)
	if err != nil {
		return nil, err
	}
	if err := reportable(c, r.Type); err != nil {
		return nil, err
	}
	// the same rules run again against the locked row
	guard := func(cur *store.Container) error { return reportable(cur, r.Type) }

	switch r.Type {
	case TypeFull:
		return v.lifecycle.MarkFull(r.ContainerID, guard)
	case TypeDamaged:
		if strings.TrimSpace(r.Description) == "" {
			return nil, apperr.Validation("description is required for a damage report")
		}
		return v.lifecycle.MarkDamaged(r.ContainerID, r.Description, guard)
	default:
		return nil, apperr.Conflict("unsupported incident type %q", r.Type)
	}
}

func reportable(c *store.Container, incidentType string) error {
	switch {
	case c.Status == store.StatusDamaged:
		return apperr.Conflict("container %s is already reported as damaged", c.ID)
	case c.Status == store.StatusFull && incidentType != TypeDamaged:
		return apperr.Conflict("container %s is already reported as full", c.ID)
	}
	return nil
}

// List returns containers needing attention: above the critical threshold
// or flagged FULL or DAMAGED.
func (v *Validator) List() ([]*store.Container, error) {
	containers, err := v.db.ListContainersNeedingAttention(v.lifecycle.Threshold())
	if containers == nil && err == nil {
		containers = []*store.Container{}
	}
	return containers, err
}

func reportLabel(t string) string {
	switch t {
	case TypeFull, TypeDamaged:
		return t
	}
	return "other"
}
