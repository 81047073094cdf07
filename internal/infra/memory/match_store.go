package memory

import (
	"sync"

	"quiz-contest-engine/internal/app"
)

// MatchStore is an in-memory implementation of app.MatchRepository.
type MatchStore struct {
	mu      sync.RWMutex
	matches map[string]*app.Match
}

func NewMatchStore() *MatchStore {
	return &MatchStore{
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
	delete(s.matches, poolID)
}
