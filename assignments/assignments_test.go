package assignments

import (
	"path/filepath"
	"testing"

	"github.com/antomihe/SustainableCity/apperr"
	"github.com/antomihe/SustainableCity/config"
	"github.com/antomihe/SustainableCity/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type emitChanged struct {
	scope    string
	id       string
	assigned []string
	dropped  []string
}

type mockEmitter struct {
	changed []emitChanged
}

func (m *mockEmitter) EmitAssignmentsChanged(scope, id string, assigned, dropped []string) {
	m.changed = append(m.changed, emitChanged{scope, id, assigned, dropped})
}

func testManager(t *testing.T) (*Manager, *store.DB, *mockEmitter) {
	t.Helper()
	db, err := store.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	em := &mockEmitter{}
	return NewManager(db, em), db, em
}

func addContainer(t *testing.T, db *store.DB, location string) *store.Container {
	t.Helper()
	c := &store.Container{Location: location, Capacity: 100, Type: store.TypeGeneral, Status: store.StatusOK}
	require.NoError(t, db.CreateContainer(c))
	return c
}

func addUser(t *testing.T, db *store.DB, name, role string) *store.User {
	t.Helper()
	u := &store.User{Name: name, Email: name + "@example.com", Role: role}
	require.NoError(t, db.CreateUser(u))
	return u
}

func containerIDs(rows []*store.Assignment) []string {
	var ids []string
	for _, a := range rows {
		ids = append(ids, a.ContainerID)
	}
	return ids
}

func TestValidIDs(t *testing.T) {
	valid, dropped := ValidIDs([]string{"b", "x", "a", "b", "y"}, []string{"a", "b", "c"})
	assert.Equal(t, []string{"b", "a"}, valid)
	assert.Equal(t, []string{"x", "y"}, dropped)

	valid, dropped = ValidIDs(nil, []string{"a"})
	assert.Empty(t, valid)
	assert.NotNil(t, valid)
	assert.Nil(t, dropped)
}

func TestAssignContainersToOperatorIgnoresUnknown(t *testing.T) {
	m, db, em := testManager(t)
	op := addUser(t, db, "carmen", store.RoleOperator)
	a := addContainer(t, db, "A")
	b := addContainer(t, db, "B")

	rows, err := m.AssignContainersToOperator(op.ID, []string{a.ID, b.ID, "unknown"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, containerIDs(rows))

	require.Len(t, em.changed, 1)
	assert.Equal(t, ScopeOperator, em.changed[0].scope)
	assert.Equal(t, []string{"unknown"}, em.changed[0].dropped)
}

func TestAssignContainersToOperatorReplacesAndClears(t *testing.T) {
	m, db, _ := testManager(t)
	op := addUser(t, db, "diego", store.RoleOperator)
	a := addContainer(t, db, "A")
	b := addContainer(t, db, "B")

	_, err := m.AssignContainersToOperator(op.ID, []string{a.ID})
	require.NoError(t, err)
	rows, err := m.AssignContainersToOperator(op.ID, []string{b.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, containerIDs(rows))

	rows, err = m.AssignContainersToOperator(op.ID, []string{})
	require.NoError(t, err)
	assert.Empty(t, rows)

	containers, err := m.ContainersForOperator(op.ID)
	require.NoError(t, err)
	assert.Empty(t, containers)
}

func TestAssignContainersRequiresOperator(t *testing.T) {
	m, db, _ := testManager(t)
	student := addUser(t, db, "sara", store.RoleStudent)

	_, err := m.AssignContainersToOperator(student.ID, nil)
	assert.True(t, apperr.IsBadRequest(err), "got %v", err)

	_, err = m.AssignContainersToOperator("ghost", nil)
	assert.True(t, apperr.IsNotFound(err))

	_, err = m.ContainersForOperator(student.ID)
	assert.True(t, apperr.IsBadRequest(err))
}

func TestAssignOperatorsToContainer(t *testing.T) {
	m, db, em := testManager(t)
	op1 := addUser(t, db, "op1", store.RoleOperator)
	op2 := addUser(t, db, "op2", store.RoleOperator)
	admin := addUser(t, db, "boss", store.RoleAdmin)
	c := addContainer(t, db, "C")

	rows, err := m.AssignOperatorsToContainer(c.ID, []string{op1.ID, admin.ID, op2.ID})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, []string{admin.ID}, em.changed[0].dropped)

	ops, err := m.OperatorsForContainer(c.ID)
	require.NoError(t, err)
	assert.Len(t, ops, 2)

	// the operator side sees the same relation
	containers, err := m.ContainersForOperator(op1.ID)
	require.NoError(t, err)
	require.Len(t, containers, 1)
	assert.Equal(t, c.ID, containers[0].ID)

	_, err = m.AssignOperatorsToContainer("ghost", []string{op1.ID})
	assert.True(t, apperr.IsNotFound(err))

	_, err = m.OperatorsForContainer("ghost")
	assert.True(t, apperr.IsNotFound(err))
}

func TestBothSidesLastWriterWins(t *testing.T) {
	m, db, _ := testManager(t)
	op := addUser(t, db, "op", store.RoleOperator)
	a := addContainer(t, db, "A")
	b := addContainer(t, db, "B")

	_, err := m.AssignContainersToOperator(op.ID, []string{a.ID, b.ID})
	require.NoError(t, err)
	_, err = m.AssignOperatorsToContainer(a.ID, nil)
	require.NoError(t, err)

	containers, err := m.ContainersForOperator(op.ID)
	require.NoError(t, err)
	require.Len(t, containers, 1)
	assert.Equal(t, b.ID, containers[0].ID)
}

func TestRemove(t *testing.T) {
	m, db, em := testManager(t)
	op := addUser(t, db, "op", store.RoleOperator)
	c := addContainer(t, db, "A")
	keep := addContainer(t, db, "B")
	_, err := m.AssignContainersToOperator(op.ID, []string{c.ID, keep.ID})
	require.NoError(t, err)

	require.NoError(t, m.Remove(op.ID, c.ID))
	require.Len(t, em.changed, 2)
	assert.Equal(t, emitChanged{ScopeOperator, op.ID, []string{keep.ID}, nil}, em.changed[1])

	require.NoError(t, m.Remove(op.ID, keep.ID))
	require.Len(t, em.changed, 3)
	assert.NotNil(t, em.changed[2].assigned)
	assert.Empty(t, em.changed[2].assigned)

	assert.True(t, apperr.IsNotFound(m.Remove(op.ID, c.ID)))
	assert.Len(t, em.changed, 3)
}
