package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-contest-engine/internal/domain"
)

// PoolLoader fetches contest pool definitions from a backing store (e.g., Postgres).
type PoolLoader interface {
	LoadPool(ctx context.Context, poolID string) (domain.ContestPool, error)
}

// PoolRepository caches contest pools in Redis as JSON blobs and falls back
// to a loader on cache miss. Key layout: contest:pool:{poolID}
type PoolRepository struct {
	client *redis.Client
	loader PoolLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewPoolRepository(client *redis.Client, loader PoolLoader, ttl time.Duration) *PoolRepository {
	return &PoolRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *PoolRepository) GetPool(ctx context.Context, poolID string) (domain.ContestPool, error) {
	key := r.key(poolID)

	if raw, err := r.client.Get(ctx, key).Result(); err == nil {
		var pool domain.ContestPool
		if err := json.Unmarshal([]byte(raw), &pool); err == nil {
			return pool, nil
		}
	}

	result, err, _ := r.sf.Do(poolID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if raw, err := r.client.Get(ctx, key).Result(); err == nil {
			var pool domain.ContestPool
			if err := json.Unmarshal([]byte(raw), &pool); err == nil {
				return pool, nil
			}
		}

		pool, err := r.loader.LoadPool(ctx, poolID)
		if err != nil {
			return domain.ContestPool{}, err
		}

		if raw, err := json.Marshal(pool); err == nil {
			_ = r.client.Set(ctx, key, raw, r.ttlWithJitter()).Err()
		}
		return pool, nil
	})
	if err != nil {
		return domain.ContestPool{}, err
	}
	return result.(domain.ContestPool), nil
}

func (r *PoolRepository) key(poolID string) string {
	return "contest:pool:" + poolID
}

func (r *PoolRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
