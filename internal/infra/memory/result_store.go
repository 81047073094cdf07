package memory

import (
	"context"
	"sync"

	"quiz-contest-engine/internal/domain"
)

// ResultStore keeps finalized match results in memory. Suited to tests and
// single-node demo wiring; production uses the Redis or Postgres stores.
type ResultStore struct {
	mu      sync.RWMutex
	results map[string][]domain.PlayerMatchResult
	pools   map[string]string
}

func NewResultStore() *ResultStore {
	return &ResultStore{
		results: make(map[string][]domain.PlayerMatchResult),
		pools:   make(map[string]string),
	}
}

func (s *ResultStore) SaveResults(_ context.Context, matchID, poolID string, results []domain.PlayerMatchResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]domain.PlayerMatchResult, len(results))
	copy(stored, results)
	s.results[matchID] = stored
	s.pools[matchID] = poolID
	return nil
}

// Results returns the stored results for a match, if any.
func (s *ResultStore) Results(matchID string) ([]domain.PlayerMatchResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results, ok := s.results[matchID]
	return results, ok
}
