package simulate

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/antomihe/SustainableCity/config"
	"github.com/antomihe/SustainableCity/lifecycle"
	"github.com/antomihe/SustainableCity/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopEmitter struct{}

func (nopEmitter) EmitContainerUpdated(*store.Container) {}
func (nopEmitter) EmitContainerDeleted(string) {}
func (nopEmitter) EmitCriticalFill(*store.Container, int, int) {}
func (nopEmitter) EmitContainerDamaged(*store.Container) {}

// sequence returns the given values in order, clamped into [0, n).
func sequence(values ...int) func(n int) int {
	i := 0
	return func(n int) int {
		v := values[i%len(values)]
		i++
		if v >= n {
			return n - 1
		}
		return v
	}
}

func testSimulator(t *testing.T) (*Simulator, *lifecycle.Engine) {
	t.Helper()
	db, err := store.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	lc := lifecycle.New(db, nopEmitter{}, 85)
	return New(lc, db, config.Defaults().Simulation, time.UTC), lc
}

func create(t *testing.T, lc *lifecycle.Engine, location string, fill int, status string) *store.Container {
	t.Helper()
	in := lifecycle.CreateInput{Location: location, FillLevel: fill, Status: status}
	if status == store.StatusDamaged {
		in.IncidentDescription = "broken"
	}
	c, err := lc.Create(in)
	require.NoError(t, err)
	return c
}

func TestSimulateFill(t *testing.T) {
	s, lc := testSimulator(t)
	create(t, lc, "A full", 100, store.StatusFull)
	target := create(t, lc, "B ok", 40, store.StatusOK)

	// only "B ok" is eligible; increment index 3 -> +8
	s.SetRand(sequence(0, 3))
	got, err := s.SimulateFill()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, target.ID, got.ID)
	assert.Equal(t, 48, got.FillLevel)
}

func TestSimulateFillSkipsWhenNoRoom(t *testing.T) {
	s, lc := testSimulator(t)
	c := create(t, lc, "Almost", 95, store.StatusOK)

	s.SetRand(sequence(0, 9)) // +14 does not fit in 5
	got, err := s.SimulateFill()
	require.NoError(t, err)
	assert.Nil(t, got)

	after, err := lc.Get(c.ID)
	require.NoError(t, err)
	assert.Equal(t, 95, after.FillLevel)
}

func TestSimulateDamage(t *testing.T) {
	s, lc := testSimulator(t)
	c := create(t, lc, "Calle Sol", 10, store.StatusOK)

	s.SetRand(sequence(0, 3))
	got, err := s.SimulateDamage()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, store.StatusDamaged, got.Status)
	assert.Equal(t, damageDescriptions[3], got.IncidentDescription)

	// nothing OK is left
	got, err = s.SimulateDamage()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSimulateRepair(t *testing.T) {
	s, lc := testSimulator(t)
	create(t, lc, "Fine", 20, store.StatusOK)
	broken := create(t, lc, "Broken", 60, store.StatusDamaged)

	s.SetRand(sequence(0))
	got, err := s.SimulateRepair()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, broken.ID, got.ID)
	assert.Equal(t, store.StatusOK, got.Status)
	assert.Equal(t, 0, got.FillLevel)
	assert.Empty(t, got.IncidentDescription)
	assert.NotNil(t, got.LastEmptiedAt)
}

func TestStartRejectsBadSpec(t *testing.T) {
	s, _ := testSimulator(t)
	s.cfg.DamageSpec = "every now and then"
	assert.Error(t, s.Start())

	s, _ = testSimulator(t)
	require.NoError(t, s.Start())
	s.Stop()
}
