package livestate

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/antomihe/SustainableCity/config"
	"github.com/antomihe/SustainableCity/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestManagerWithoutRedisServesSQL(t *testing.T) {
	db := testDB(t)
	m := NewManager(db, nil)
	assert.False(t, m.RedisEnabled())
	assert.NoError(t, m.Ping(context.Background()))
	assert.NoError(t, m.SyncFromSQL())

	all, err := m.All()
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.NotNil(t, all)

	for _, loc := range []string{"Calle B", "Calle A"} {
		c := &store.Container{Location: loc, Capacity: 100, Type: store.TypeGeneral, Status: store.StatusOK}
		require.NoError(t, db.CreateContainer(c))
		m.Refresh(c)
	}
	m.Remove("anything")

	all, err = m.All()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Calle A", all[0].Location)
}

func TestSortByLocation(t *testing.T) {
	cs := []*store.Container{
		{ID: "2", Location: "Norte"},
		{ID: "1", Location: "Norte"},
		{ID: "3", Location: "Este"},
	}
	sortByLocation(cs)
	assert.Equal(t, "3", cs[0].ID)
	assert.Equal(t, "1", cs[1].ID)
	assert.Equal(t, "2", cs[2].ID)
}

func TestSnapshotKey(t *testing.T) {
	assert.Equal(t, "sustainablecity:container:abc", snapshotKey("abc"))
}
