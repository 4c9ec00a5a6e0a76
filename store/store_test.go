package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/antomihe/SustainableCity/apperr"
	"github.com/antomihe/SustainableCity/config"
	"github.com/antomihe/SustainableCity/geo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testDB creates a temporary SQLite database for testing.
func testDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	db, err := Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: dbPath},
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
		os.Remove(dbPath)
	})
	return db
}

func newContainer(t *testing.T, db *DB, location string, lat, lng float64) *Container {
	t.Helper()
	c := &Container{
		Location:    location,
		Coordinates: &Coordinates{Lat: lat, Lng: lng},
		Capacity:    100,
		Type:        TypeGeneral,
		Status:      StatusOK,
	}
	require.NoError(t, db.CreateContainer(c))
	return c
}

func newOperator(t *testing.T, db *DB, name string) *User {
	t.Helper()
	u := &User{Name: name, Email: name + "@example.com", Role: RoleOperator}
	require.NoError(t, db.CreateUser(u))
	return u
}

// --- Container tests ---

func TestContainerCRUD(t *testing.T) {
	db := testDB(t)

	c := newContainer(t, db, "Plaza Mayor", 40.4154, -3.7074)
	if c.ID == "" {
		t.Fatal("ID should be assigned")
	}
	if c.CreatedAt.IsZero() {
		t.Error("CreatedAt should be loaded from the store")
	}

	got, err := db.GetContainer(c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Location != "Plaza Mayor" {
		t.Errorf("Location = %q, want %q", got.Location, "Plaza Mayor")
	}
	if got.Coordinates == nil || got.Coordinates.Lat != 40.4154 {
		t.Errorf("Coordinates = %+v, want lat 40.4154", got.Coordinates)
	}
	if got.Status != StatusOK {
		t.Errorf("Status = %q, want %q", got.Status, StatusOK)
	}
	if got.LastEmptiedAt != nil {
		t.Errorf("LastEmptiedAt = %v, want nil", got.LastEmptiedAt)
	}

	all, err := db.ListContainers()
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, db.DeleteContainer(c.ID))
	_, err = db.GetContainer(c.ID)
	assert.True(t, apperr.IsNotFound(err), "got %v", err)
}

func TestContainerWithoutCoordinates(t *testing.T) {
	db := testDB(t)
	c := &Container{Location: "Legacy", Capacity: 50, Type: TypeGeneral, Status: StatusOK}
	require.NoError(t, db.CreateContainer(c))
	assert.Nil(t, c.Coordinates)
	assert.Equal(t, "", c.IncidentDescription)
}

func TestFillLevelCheckConstraint(t *testing.T) {
	db := testDB(t)
	c := &Container{Location: "Overflow", Capacity: 100, FillLevel: 101, Type: TypeGeneral, Status: StatusOK}
	assert.Error(t, db.CreateContainer(c))
}

func TestMutateContainer(t *testing.T) {
	db := testDB(t)
	c := newContainer(t, db, "Gran Via", 40.42, -3.70)

	emptied := time.Date(2025, 3, 1, 8, 30, 0, 0, time.UTC)
	before, after, err := db.MutateContainer(c.ID, func(c *Container) error {
		c.FillLevel = 0
		c.Status = StatusDamaged
		c.IncidentDescription = "lid broken"
		c.LastEmptiedAt = &emptied
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StatusOK, before.Status)
	assert.Equal(t, StatusDamaged, after.Status)
	assert.Equal(t, "lid broken", after.IncidentDescription)
	require.NotNil(t, after.LastEmptiedAt)
	assert.True(t, emptied.Equal(*after.LastEmptiedAt), "LastEmptiedAt = %v", after.LastEmptiedAt)
}

func TestMutateContainerAbortsOnError(t *testing.T) {
	db := testDB(t)
	c := newContainer(t, db, "Sol", 40.4169, -3.7035)

	boom := errors.New("veto")
	_, _, err := db.MutateContainer(c.ID, func(c *Container) error {
		c.FillLevel = 50
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := db.GetContainer(c.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.FillLevel)
}

func TestMutateContainerNotFound(t *testing.T) {
	db := testDB(t)
	_, _, err := db.MutateContainer("missing", func(c *Container) error { return nil })
	assert.True(t, apperr.IsNotFound(err))
}

func TestDeleteContainerNotFound(t *testing.T) {
	db := testDB(t)
	assert.True(t, apperr.IsNotFound(db.DeleteContainer("missing")))
}

func TestFindContainers(t *testing.T) {
	db := testDB(t)
	a := newContainer(t, db, "Calle Alcala 10", 40.4200, -3.6900)
	b := newContainer(t, db, "calle ATOCHA 5", 40.4100, -3.6950)
	far := newContainer(t, db, "Barcelona 100%", 41.3874, 2.1686)
	_, _, err := db.MutateContainer(b.ID, func(c *Container) error {
		c.Status = StatusFull
		c.Type = "PAPER"
		return nil
	})
	require.NoError(t, err)

	got, err := db.FindContainers(ContainerFilter{Text: "CALLE"})
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID, b.ID}, ids(got))

	got, err = db.FindContainers(ContainerFilter{Text: "100%"})
	require.NoError(t, err)
	assert.Equal(t, []string{far.ID}, ids(got))

	got, err = db.FindContainers(ContainerFilter{Text: "%"})
	require.NoError(t, err)
	assert.Equal(t, []string{far.ID}, ids(got), "%% must match literally")

	got, err = db.FindContainers(ContainerFilter{Statuses: []string{StatusFull}})
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, ids(got))

	got, err = db.FindContainers(ContainerFilter{Types: []string{TypeGeneral}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, far.ID}, ids(got))

	box := geo.BoundingBox(geo.Point{Lat: 40.4168, Lng: -3.7038}, 5)
	got, err = db.FindContainers(ContainerFilter{Box: &box})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, ids(got))

	avila := newContainer(t, db, "Plaza de ÁVILA", 40.6565, -4.6818)
	got, err = db.FindContainers(ContainerFilter{Text: "ávila"})
	require.NoError(t, err)
	assert.Equal(t, []string{avila.ID}, ids(got))
}

func TestListContainersNeedingAttention(t *testing.T) {
	db := testDB(t)
	quiet := newContainer(t, db, "A quiet", 0, 0)
	high := newContainer(t, db, "B high", 0, 0)
	exact := newContainer(t, db, "C exact", 0, 0)
	damaged := newContainer(t, db, "D damaged", 0, 0)
	set := func(id string, fill int, status string) {
		_, _, err := db.MutateContainer(id, func(c *Container) error {
			c.FillLevel, c.Status = fill, status
			return nil
		})
		require.NoError(t, err)
	}
	set(quiet.ID, 10, StatusOK)
	set(high.ID, 86, StatusOK)
	set(exact.ID, 85, StatusOK)
	set(damaged.ID, 0, StatusDamaged)

	got, err := db.ListContainersNeedingAttention(85)
	require.NoError(t, err)
	assert.Equal(t, []string{high.ID, damaged.ID}, ids(got))
}

// --- Assignment tests ---

func TestReplaceOperatorAssignments(t *testing.T) {
	db := testDB(t)
	op := newOperator(t, db, "ana")
	c1 := newContainer(t, db, "One", 0, 0)
	c2 := newContainer(t, db, "Two", 0, 0)

	got, err := db.ReplaceOperatorAssignments(op.ID, []string{c1.ID, c2.ID, c1.ID, "ghost"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = db.ReplaceOperatorAssignments(op.ID, []string{c2.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, c2.ID, got[0].ContainerID)

	containers, err := db.ListContainersForOperator(op.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{c2.ID}, ids(containers))

	got, err = db.ReplaceOperatorAssignments(op.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReplaceContainerAssignmentsSkipsNonOperators(t *testing.T) {
	db := testDB(t)
	op := newOperator(t, db, "luis")
	student := &User{Name: "stu", Email: "stu@example.com", Role: RoleStudent}
	require.NoError(t, db.CreateUser(student))
	c := newContainer(t, db, "Retiro", 40.41, -3.68)

	got, err := db.ReplaceContainerAssignments(c.ID, []string{op.ID, student.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, op.ID, got[0].OperatorID)

	ops, err := db.ListOperatorsForContainer(c.ID)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "luis", ops[0].Name)
}

func TestDeleteCascadesAssignments(t *testing.T) {
	db := testDB(t)
	op := newOperator(t, db, "marta")
	c1 := newContainer(t, db, "One", 0, 0)
	c2 := newContainer(t, db, "Two", 0, 0)
	_, err := db.ReplaceOperatorAssignments(op.ID, []string{c1.ID, c2.ID})
	require.NoError(t, err)

	require.NoError(t, db.DeleteContainer(c1.ID))
	rows, err := db.ListAssignmentsByOperator(op.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, c2.ID, rows[0].ContainerID)

	require.NoError(t, db.DeleteUser(op.ID))
	rows, err = db.ListAssignmentsByContainer(c2.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDeleteAssignment(t *testing.T) {
	db := testDB(t)
	op := newOperator(t, db, "pablo")
	c := newContainer(t, db, "One", 0, 0)
	_, err := db.ReplaceOperatorAssignments(op.ID, []string{c.ID})
	require.NoError(t, err)

	ok, err := db.DeleteAssignment(op.ID, c.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.DeleteAssignment(op.ID, c.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExistingIDs(t *testing.T) {
	db := testDB(t)
	op := newOperator(t, db, "eva")
	admin := &User{Name: "root", Email: "root@example.com", Role: RoleAdmin}
	require.NoError(t, db.CreateUser(admin))
	c := newContainer(t, db, "One", 0, 0)

	found, err := db.ExistingContainerIDs([]string{c.ID, "nope"})
	require.NoError(t, err)
	assert.Equal(t, []string{c.ID}, found)

	found, err = db.ExistingOperatorIDs([]string{op.ID, admin.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{op.ID}, found)
}

// --- Audit / outbox tests ---

func TestAuditLog(t *testing.T) {
	db := testDB(t)
	require.NoError(t, db.AppendAudit("container", "c-1", "updated", "OK", "FULL", "system"))
	require.NoError(t, db.AppendAudit("container", "c-2", "deleted", "", "", "admin"))

	entries, err := db.ListAuditLog(10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "c-2", entries[0].EntityID)

	entries, err = db.ListEntityAudit("container", "c-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "FULL", entries[0].NewValue)
}

func TestOutbox(t *testing.T) {
	db := testDB(t)
	require.NoError(t, db.EnqueueOutbox("events", []byte(`{"a":1}`), "container.updated", "core"))
	require.NoError(t, db.EnqueueOutbox("events", []byte(`{"a":2}`), "container.deleted", "core"))

	msgs, err := db.ListPendingOutbox(10, 5)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "container.updated", msgs[0].MsgType)

	require.NoError(t, db.AckOutbox(msgs[0].ID))
	for i := 0; i < 5; i++ {
		require.NoError(t, db.IncrementOutboxRetries(msgs[1].ID))
	}
	msgs, err = db.ListPendingOutbox(10, 5)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestAdminUsers(t *testing.T) {
	db := testDB(t)
	exists, err := db.AdminUserExists()
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, db.CreateAdminUser("admin", "hash"))
	u, err := db.GetAdminUser("admin")
	require.NoError(t, err)
	assert.Equal(t, "hash", u.PasswordHash)
}

func ids(containers []*Container) []string {
	out := make([]string, len(containers))
	for i, c := range containers {
		out[i] = c.ID
	}
	return out
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	db := testDB(t)
	newOperator(t, db, "rosa")

	dup := &User{Name: "Rosa Bis", Email: "  ROSA@example.com ", Role: RoleOperator}
	err := db.CreateUser(dup)
	assert.True(t, apperr.IsConflict(err), "got %v", err)
}
