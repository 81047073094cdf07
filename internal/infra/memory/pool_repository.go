package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-contest-engine/internal/domain"
)

// PoolLoader fetches contest pool definitions from a backing store.
type PoolLoader interface {
	LoadPool(ctx context.Context, poolID string) (domain.ContestPool, error)
}

// PoolRepository caches pool definitions with TTL to avoid repeated DB hits.
type PoolRepository struct {
	loader PoolLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedPool
}

type cachedPool struct {
	pool      domain.ContestPool
	expiresAt time.Time
}

func NewPoolRepository(loader PoolLoader, ttl time.Duration) *PoolRepository {
	return &PoolRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedPool),
	}
}

func (r *PoolRepository) GetPool(ctx context.Context, poolID string) (domain.ContestPool, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[poolID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.pool, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(poolID, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[poolID]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.pool, nil
		}
		r.mu.RUnlock()

		pool, err := r.loader.LoadPool(ctx, poolID)
		if err != nil {
			return domain.ContestPool{}, err
		}

		r.mu.Lock()
		r.cache[poolID] = cachedPool{
			pool:      pool,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return pool, nil
	})
	if err != nil {
		return domain.ContestPool{}, err
	}
	return result.(domain.ContestPool), nil
}

func (r *PoolRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticPoolLoader is a simple loader backed by an in-memory map (useful for tests/demos).
type StaticPoolLoader struct {
	pools map[string]domain.ContestPool
}

func NewStaticPoolLoader(pools map[string]domain.ContestPool) *StaticPoolLoader {
	return &StaticPoolLoader{pools: pools}
}

func (l *StaticPoolLoader) LoadPool(_ context.Context, poolID string) (domain.ContestPool, error) {
	if pool, ok := l.pools[poolID]; ok {
		return pool, nil
	}
	return domain.ContestPool{}, domain.ErrPoolNotFound
}
