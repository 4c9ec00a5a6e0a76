package livestate

import (
	"context"
	"encoding/json"

	"github.com/antomihe/SustainableCity/store"

	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

const allContainersKey = "sustainablecity:containers"

func snapshotKey(id string) string {
	return "sustainablecity:container:" + id
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) SetContainer(ctx context.Context, c *store.Container) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	pipe := r.client.Pipeline()
	pipe.Set(ctx, snapshotKey(c.ID), data, 0)
	pipe.SAdd(ctx, allContainersKey, c.ID)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisStore) GetContainer(ctx context.Context, id string) (*store.Container, error) {
	data, err := r.client.Get(ctx, snapshotKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var c store.Container
	return &c, json.Unmarshal(data, &c)
}

// GetContainers loads the snapshots of ids in one round trip. Missing keys
// come back as nil entries.
func (r *RedisStore) GetContainers(ctx context.Context, ids []string) ([]*store.Container, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = snapshotKey(id)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*store.Container, len(vals))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var c store.Container
		if err := json.Unmarshal([]byte(s), &c); err != nil {
			return nil, err
		}
		out[i] = &c
	}
	return out, nil
}

func (r *RedisStore) GetAllContainerIDs(ctx context.Context) ([]string, error) {
	return r.client.SMembers(ctx, allContainersKey).Result()
}

func (r *RedisStore) RemoveContainer(ctx context.Context, id string) error {
	pipe := r.client.Pipeline()
	pipe.Del(ctx, snapshotKey(id))
	pipe.SRem(ctx, allContainersKey, id)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisStore) FlushAll(ctx context.Context) error {
	ids, err := r.GetAllContainerIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		r.RemoveContainer(ctx, id)
	}
	return r.client.Del(ctx, allContainersKey).Err()
}
