package app

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"quiz-contest-engine/internal/contest"
	"quiz-contest-engine/internal/domain"
	"quiz-contest-engine/internal/engine"
)

// MatchRepository abstracts how in-flight matches are stored (in-memory, Redis-backed, etc).
type MatchRepository interface {
	GetOrCreate(poolID string, create func() *Match) *Match
	Get(poolID string) (*Match, bool)
	Delete(poolID string)
}

// PoolRepository loads contest pool definitions (from cache/backing store).
type PoolRepository interface {
	GetPool(ctx context.Context, poolID string) (domain.ContestPool, error)
}

// QuestionSource supplies question banks for a pool's question set.
type QuestionSource interface {
	GetQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error)
}

// ResultStore persists finalized results for settlement and audit. Writes
// happen strictly after a match settles, never inside the timed path.
type ResultStore interface {
	SaveResults(ctx context.Context, matchID, poolID string, results []domain.PlayerMatchResult) error
}

// MatchService contains the contest match use cases.
type MatchService struct {
	pools     PoolRepository
	questions QuestionSource
	matches   MatchRepository
	results   ResultStore
	defaults  domain.MatchConfig
	clock     clockwork.Clock
}

// ServiceOption customizes a MatchService.
type ServiceOption func(*MatchService)

// WithClock injects a clock for deterministic tests.
func WithClock(clock clockwork.Clock) ServiceOption {
	return func(s *MatchService) { s.clock = clock }
}

func NewMatchService(pools PoolRepository, questions QuestionSource, matches MatchRepository,
	results ResultStore, defaults domain.MatchConfig, opts ...ServiceOption) *MatchService {
	s := &MatchService{
		pools:     pools,
		questions: questions,
		matches:   matches,
		results:   results,
		defaults:  defaults,
		clock:     clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Join validates the pool, loads its question set, and registers the player
// in the pool's match instance, starting their run.
func (s *MatchService) Join(ctx context.Context, poolID, playerID, displayName string) (domain.Standings, error) {
	pool, err := s.pools.GetPool(ctx, poolID)
	if err != nil {
		return domain.Standings{}, err
	}
	if err := contest.ValidatePool(pool); err != nil {
		return domain.Standings{}, err
	}
	questionSet, err := s.questions.GetQuestionSet(ctx, pool.QuestionSet)
	if err != nil {
		return domain.Standings{}, err
	}

	match := s.matches.GetOrCreate(poolID, func() *Match {
		return NewMatch(pool, s.matchConfig(pool), questionSet.Questions, s.clock, s.persistSettlement)
	})
	return match.join(playerID, displayName)
}

// Answer settles the player's current question, if it is still open.
func (s *MatchService) Answer(ctx context.Context, poolID, playerID string, option int) (domain.ResponseRecord, engine.Snapshot, error) {
	match, ok := s.matches.Get(poolID)
	if !ok {
		return domain.ResponseRecord{}, engine.Snapshot{}, domain.ErrMatchNotFound
	}
	return match.answer(playerID, option)
}

// Exit abandons the player's run; their partial record is kept for audit.
func (s *MatchService) Exit(ctx context.Context, poolID, playerID string) error {
	match, ok := s.matches.Get(poolID)
	if !ok {
		return domain.ErrMatchNotFound
	}
	return match.exit(playerID)
}

// CurrentQuestion returns the player's open question for rendering.
func (s *MatchService) CurrentQuestion(ctx context.Context, poolID, playerID string) (domain.Question, int, error) {
	match, ok := s.matches.Get(poolID)
	if !ok {
		return domain.Question{}, 0, domain.ErrMatchNotFound
	}
	return match.currentQuestion(playerID)
}

// Result returns the player's finalized result, including rank and prize
// once the whole match has settled.
func (s *MatchService) Result(ctx context.Context, poolID, playerID string) (domain.PlayerMatchResult, error) {
	match, ok := s.matches.Get(poolID)
	if !ok {
		return domain.PlayerMatchResult{}, domain.ErrMatchNotFound
	}
	return match.result(playerID)
}

// Subscribe returns a channel that receives standings updates for a match.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *MatchService) Subscribe(_ context.Context, poolID string) (<-chan domain.Standings, func(), error) {
	match, ok := s.matches.Get(poolID)
	if !ok {
		return nil, nil, domain.ErrMatchNotFound
	}
	ch, cancel := match.subscribe()
	return ch, cancel, nil
}

// PlayerEvents returns the stream of engine notifications for one participant:
// phase changes, countdown ticks, question reviews, and the terminal result.
func (s *MatchService) PlayerEvents(_ context.Context, poolID, playerID string) (<-chan PlayerEvent, error) {
	match, ok := s.matches.Get(poolID)
	if !ok {
		return nil, domain.ErrMatchNotFound
	}
	return match.playerEvents(playerID)
}

// persistSettlement hands the finalized results to the result store. It runs
// after the final broadcast; storage failures are logged and do not affect
// the already computed ranking.
func (s *MatchService) persistSettlement(m *Match, results []domain.PlayerMatchResult) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.results.SaveResults(ctx, m.ID(), m.Pool().ID, results); err != nil {
		log.Error().Err(err).Str("match_id", m.ID()).Str("pool_id", m.Pool().ID).
			Msg("failed to persist settlement results")
		return
	}
	log.Info().Str("match_id", m.ID()).Str("pool_id", m.Pool().ID).
		Int("players", len(results)).Msg("match settled")
	s.matches.Delete(m.Pool().ID)
}

// matchConfig builds the engine config for a pool, falling back to service
// defaults for values the pool definition leaves unset.
func (s *MatchService) matchConfig(pool domain.ContestPool) domain.MatchConfig {
	cfg := s.defaults
	if pool.QuestionCount > 0 {
		cfg.QuestionCount = pool.QuestionCount
	}
	if pool.TimePerQuestionMs > 0 {
		cfg.TimePerQuestion = time.Duration(pool.TimePerQuestionMs) * time.Millisecond
	}
	if pool.ReviewDelayMs > 0 {
		cfg.ReviewDelay = time.Duration(pool.ReviewDelayMs) * time.Millisecond
	}
	if pool.BasePoints > 0 {
		cfg.BasePoints = pool.BasePoints
	}
	if pool.BonusPerSecond > 0 {
		cfg.BonusPerSecond = pool.BonusPerSecond
	}
	return cfg
}
