// Package simulate drives demo-mode container activity on a schedule:
// gradual filling, random damage and repairs.
package simulate

import (
	"math/rand"
	"time"

	"github.com/antomihe/SustainableCity/config"
	"github.com/antomihe/SustainableCity/lifecycle"
	"github.com/antomihe/SustainableCity/logging"
	"github.com/antomihe/SustainableCity/store"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	minFillIncrement  = 5
	fillIncrementSpan = 10 // increments are 5..14
)

var damageDescriptions = []string{
	"Sensor malfunctioning, incorrect readings.",
	"Lid broken or jammed, cannot be opened/closed.",
	"Structural damage to the container body (crack/dent).",
	"Graffiti or vandalism affecting operation.",
	"Lock mechanism faulty or broken.",
	"Internal component failure (e.g., compactor).",
}

type Simulator struct {
	lc   *lifecycle.Engine
	db   *store.DB
	cfg  config.SimulationConfig
	cron *cron.Cron
	intn func(n int) int
	log  *logrus.Entry
}

func New(lc *lifecycle.Engine, db *store.DB, cfg config.SimulationConfig, loc *time.Location) *Simulator {
	if loc == nil {
		loc = time.Local
	}
	return &Simulator{
		lc:   lc,
		db:   db,
		cfg:  cfg,
		cron: cron.New(cron.WithLocation(loc)),
		intn: rand.New(rand.NewSource(time.Now().UnixNano())).Intn,
		log:  logging.For("simulate"),
	}
}

// SetRand replaces the random source. intn must return a value in [0, n).
func (s *Simulator) SetRand(intn func(n int) int) { s.intn = intn }

// Start schedules the three jobs. A bad spec fails before anything runs.
func (s *Simulator) Start() error {
	jobs := []struct {
		name string
		spec string
		fn   func()
	}{
		{"fill", s.cfg.FillSpec, func() { s.SimulateFill() }},
		{"damage", s.cfg.DamageSpec, func() { s.SimulateDamage() }},
		{"repair", s.cfg.RepairSpec, func() { s.SimulateRepair() }},
	}
	for _, j := range jobs {
		if j.spec == "" {
			continue
		}
		if _, err := s.cron.AddFunc(j.spec, j.fn); err != nil {
			return err
		}
		s.log.Infof("scheduled %s simulation (%s)", j.name, j.spec)
	}
	s.cron.Start()
	return nil
}

func (s *Simulator) Stop() {
	<-s.cron.Stop().Done()
}

// SimulateFill raises a random OK, not yet full container by 5..14 points
// when that increment fits in its remaining space.
func (s *Simulator) SimulateFill() (*store.Container, error) {
	candidates, err := s.db.ListContainersByStatus(store.StatusOK)
	if err != nil {
		s.log.Errorf("fill: list containers: %v", err)
		return nil, err
	}
	eligible := candidates[:0]
	for _, c := range candidates {
		if c.FillLevel < 100 {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		s.log.Debug("fill: no eligible containers")
		return nil, nil
	}

	c := eligible[s.intn(len(eligible))]
	increment := s.intn(fillIncrementSpan) + minFillIncrement
	if increment > 100-c.FillLevel {
		s.log.WithField("container", c.ID).Debugf("fill: skipped, no room for +%d%% at %d%%", increment, c.FillLevel)
		return nil, nil
	}
	updated, err := s.lc.SimulateFill(c.ID, increment)
	if err != nil {
		s.log.WithField("container", c.ID).Errorf("fill: %v", err)
		return nil, err
	}
	s.log.WithField("container", c.ID).Infof("filled %s by %d%%, now %d%%", c.Location, increment, updated.FillLevel)
	return updated, nil
}

// SimulateDamage marks a random OK container damaged with a stock description.
func (s *Simulator) SimulateDamage() (*store.Container, error) {
	eligible, err := s.db.ListContainersByStatus(store.StatusOK)
	if err != nil {
		s.log.Errorf("damage: list containers: %v", err)
		return nil, err
	}
	if len(eligible) == 0 {
		s.log.Debug("damage: no OK containers")
		return nil, nil
	}

	c := eligible[s.intn(len(eligible))]
	description := damageDescriptions[s.intn(len(damageDescriptions))]
	updated, err := s.lc.MarkDamaged(c.ID, description)
	if err != nil {
		s.log.WithField("container", c.ID).Errorf("damage: %v", err)
		return nil, err
	}
	s.log.WithField("container", c.ID).Infof("damaged %s: %s", c.Location, description)
	return updated, nil
}

// SimulateRepair empties a random DAMAGED or FULL container and returns it to OK.
func (s *Simulator) SimulateRepair() (*store.Container, error) {
	eligible, err := s.db.ListContainersByStatus(store.StatusDamaged, store.StatusFull)
	if err != nil {
		s.log.Errorf("repair: list containers: %v", err)
		return nil, err
	}
	if len(eligible) == 0 {
		s.log.Debug("repair: nothing to repair")
		return nil, nil
	}

	c := eligible[s.intn(len(eligible))]
	updated, err := s.lc.Repair(c.ID)
	if err != nil {
		s.log.WithField("container", c.ID).Errorf("repair: %v", err)
		return nil, err
	}
	s.log.WithField("container", c.ID).Infof("repaired %s", c.Location)
	return updated, nil
}
