package memory

import (
	"context"

	"quiz-contest-engine/internal/domain"
)

// StaticQuestionSource serves question sets from an in-memory map. It doubles
// as a QuestionLoader for the caching repositories and as a direct
// app.QuestionSource for demo/test wiring.
type StaticQuestionSource struct {
	sets map[string]domain.QuestionSet
}

func NewStaticQuestionSource(sets map[string]domain.QuestionSet) *StaticQuestionSource {
	return &StaticQuestionSource{sets: sets}
}

func (s *StaticQuestionSource) GetQuestionSet(_ context.Context, setID string) (domain.QuestionSet, error) {
	if set, ok := s.sets[setID]; ok {
		return set, nil
	}
	return domain.QuestionSet{}, domain.ErrQuestionSetNotFound
}

// LoadQuestionSet satisfies the loader interfaces of the caching layers.
func (s *StaticQuestionSource) LoadQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error) {
	return s.GetQuestionSet(ctx, setID)
}
