package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-contest-engine/internal/domain"
)

// ResultWriter persists finalized match results, one row per player.
// Inserts run in a single transaction so a settlement is either fully
// recorded or not at all; replays of the same match id upsert cleanly.
type ResultWriter struct {
	pool *pgxpool.Pool
}

func NewResultWriter(pool *pgxpool.Pool) *ResultWriter {
	return &ResultWriter{pool: pool}
}

func (w *ResultWriter) SaveResults(ctx context.Context, matchID, poolID string, results []domain.PlayerMatchResult) error {
	return w.pool.BeginTxFunc(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, res := range results {
			raw, err := json.Marshal(res)
			if err != nil {
				return fmt.Errorf("marshal result for %s: %w", res.PlayerID, err)
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO match_results (match_id, pool_id, player_id, rank, total_score, prize_amount, data)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (match_id, player_id) DO UPDATE
				SET rank = EXCLUDED.rank,
				    total_score = EXCLUDED.total_score,
				    prize_amount = EXCLUDED.prize_amount,
				    data = EXCLUDED.data`,
				matchID, poolID, res.PlayerID, res.Rank, res.TotalScore, res.PrizeAmount, raw)
			if err != nil {
				return fmt.Errorf("insert result for %s: %w", res.PlayerID, err)
			}
		}
		return nil
	})
}
