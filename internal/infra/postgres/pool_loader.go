package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-contest-engine/internal/domain"
)

// PoolLoader loads contest pool JSONB from Postgres.
type PoolLoader struct {
	pool *pgxpool.Pool
}

func NewPoolLoader(pool *pgxpool.Pool) *PoolLoader {
	return &PoolLoader{pool: pool}
}

func (l *PoolLoader) LoadPool(ctx context.Context, poolID string) (domain.ContestPool, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM contest_pools WHERE id=$1`, poolID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ContestPool{}, domain.ErrPoolNotFound
	}
	if err != nil {
		return domain.ContestPool{}, fmt.Errorf("load pool: %w", err)
	}
	var pool domain.ContestPool
	if err := json.Unmarshal(raw, &pool); err != nil {
		return domain.ContestPool{}, fmt.Errorf("unmarshal pool: %w", err)
	}
	pool.ID = poolID
	return pool, nil
}
