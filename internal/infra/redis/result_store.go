package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-contest-engine/internal/domain"
)

// ResultStore keeps finalized match results in Redis, one hash per match:
//
//	HSET contest:results:{matchID} {playerID} {result JSON}
//
// It gives settlement consumers (payout workers, history APIs) a window to
// pick results up before the TTL reclaims the key.
type ResultStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewResultStore(client *redis.Client, ttl time.Duration) *ResultStore {
	return &ResultStore{client: client, ttl: ttl}
}

func (s *ResultStore) SaveResults(ctx context.Context, matchID, poolID string, results []domain.PlayerMatchResult) error {
	key := s.key(matchID)

	pipe := s.client.Pipeline()
	for _, res := range results {
		raw, err := json.Marshal(res)
		if err != nil {
			return err
		}
		pipe.HSet(ctx, key, res.PlayerID, raw)
	}
	pipe.Set(ctx, s.poolKey(matchID), poolID, s.ttl)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Results returns the stored results for a match, or ErrResultNotReady when
// nothing has been persisted yet.
func (s *ResultStore) Results(ctx context.Context, matchID string) ([]domain.PlayerMatchResult, error) {
	fields, err := s.client.HGetAll(ctx, s.key(matchID)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, domain.ErrResultNotReady
	}
	results := make([]domain.PlayerMatchResult, 0, len(fields))
	for _, raw := range fields {
		var res domain.PlayerMatchResult
		if err := json.Unmarshal([]byte(raw), &res); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *ResultStore) key(matchID string) string {
	return "contest:results:" + matchID
}

func (s *ResultStore) poolKey(matchID string) string {
	return "contest:results:" + matchID + ":pool"
}
