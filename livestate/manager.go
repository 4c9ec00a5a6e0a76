// Package livestate keeps a Redis snapshot of every container for the live
// dashboard. SQL stays authoritative; Redis is optional.
package livestate

import (
	"context"
	"sort"

	"github.com/antomihe/SustainableCity/logging"
	"github.com/antomihe/SustainableCity/store"
)

var log = logging.For("livestate")

// Manager provides write-through container snapshots: SQL first, then Redis.
type Manager struct {
	db    *store.DB
	redis *RedisStore
}

// NewManager builds a manager. A nil redis store serves everything from SQL.
func NewManager(db *store.DB, redis *RedisStore) *Manager {
	return &Manager{db: db, redis: redis}
}

func (m *Manager) RedisEnabled() bool { return m.redis != nil }

// Ping reports whether Redis is reachable. It is nil when Redis is disabled.
func (m *Manager) Ping(ctx context.Context) error {
	if m.redis == nil {
		return nil
	}
	return m.redis.Ping(ctx)
}

// Refresh stores the committed state of a container.
func (m *Manager) Refresh(c *store.Container) {
	if m.redis == nil || c == nil {
		return
	}
	if err := m.redis.SetContainer(context.Background(), c); err != nil {
		log.Warnf("refresh %s: %v", c.ID, err)
	}
}

func (m *Manager) Remove(id string) {
	if m.redis == nil {
		return
	}
	if err := m.redis.RemoveContainer(context.Background(), id); err != nil {
		log.Warnf("remove %s: %v", id, err)
	}
}

// All returns every container ordered by location, preferring Redis and
// falling back to SQL when Redis is absent, empty or missing a snapshot.
func (m *Manager) All() ([]*store.Container, error) {
	if m.redis != nil {
		if containers, ok := m.fromRedis(); ok {
			return containers, nil
		}
	}
	containers, err := m.db.ListContainers()
	if err != nil {
		return nil, err
	}
	if containers == nil {
		containers = []*store.Container{}
	}
	return containers, nil
}

func (m *Manager) fromRedis() ([]*store.Container, bool) {
	ctx := context.Background()
	ids, err := m.redis.GetAllContainerIDs(ctx)
	if err != nil || len(ids) == 0 {
		return nil, false
	}
	containers, err := m.redis.GetContainers(ctx, ids)
	if err != nil {
		log.Warnf("read snapshots: %v", err)
		return nil, false
	}
	for _, c := range containers {
		if c == nil {
			return nil, false
		}
	}
	sortByLocation(containers)
	return containers, true
}

// SyncFromSQL rebuilds all Redis state from SQL. Called on startup.
func (m *Manager) SyncFromSQL() error {
	if m.redis == nil {
		return nil
	}
	ctx := context.Background()
	if err := m.redis.FlushAll(ctx); err != nil {
		log.Warnf("flush: %v", err)
	}

	containers, err := m.db.ListContainers()
	if err != nil {
		return err
	}
	for _, c := range containers {
		if err := m.redis.SetContainer(ctx, c); err != nil {
			log.Warnf("sync container %s: %v", c.ID, err)
		}
	}
	log.Infof("synced %d containers to redis", len(containers))
	return nil
}

func sortByLocation(containers []*store.Container) {
	sort.SliceStable(containers, func(i, j int) bool {
		if containers[i].Location != containers[j].Location {
			return containers[i].Location < containers[j].Location
		}
		return containers[i].ID < containers[j].ID
	})
}
