package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-contest-engine/internal/app"
)

// MatchStore is a Redis-aware implementation of MatchRepository.
// Notes:
//   - Live matches stay in a local in-memory map; the engine's timers and
//     broadcast fan-out are in-process state that cannot round-trip through Redis.
//   - Redis marks match liveness so operators (and sibling instances) can see
//     which pools are currently running.
//   - For true distribution you'd pair this with sticky routing so all players
//     of a pool land on the instance that owns the match.
type MatchStore struct {
	client  *redis.Client
	ttl     time.Duration
	mu      sync.RWMutex
	matches map[string]*app.Match
}

func NewMatchStore(client *redis.Client, ttl time.Duration) *MatchStore {
	return &MatchStore{
		client:  client,
		ttl:     ttl,
		matches: make(map[string]*app.Match),
	}
}

func (s *MatchStore) GetOrCreate(poolID string, create func() *app.Match) *app.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	if match, ok := s.matches[poolID]; ok {
		return match
	}
	match := create()
	s.matches[poolID] = match
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(poolID), match.ID(), s.ttl).Err()
	return match
}

func (s *MatchStore) Get(poolID string) (*app.Match, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	match, ok := s.matches[poolID]
	return match, ok
}

func (s *MatchStore) Delete(poolID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.matches[poolID]; !ok {
		return
	}
	delete(s.matches, poolID)
	_ = s.client.Del(context.Background(), s.key(poolID)).Err()
}

func (s *MatchStore) key(poolID string) string {
	return "contest:match:" + poolID
}
