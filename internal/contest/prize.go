package contest

import (
	"fmt"

	"quiz-contest-engine/internal/domain"
)

// PrizeForRank returns the reward for a rank from the pool's fixed table:
// Rewards[rank-1] when rank is within the winner count, zero otherwise.
// Rank zero (unranked, e.g. abandoned players) never wins.
func PrizeForRank(pool domain.ContestPool, rank int) int64 {
	if rank < 1 || rank > pool.WinnerCount || rank > len(pool.Rewards) {
		return 0
	}
	return pool.Rewards[rank-1]
}

// ValidatePool checks the static well-formedness required of every pool
// accepted into the system. In particular the reward table must never pay out
// more than the net prize pool; PrizeForRank relies on this holding rather
// than re-checking it per allocation.
func ValidatePool(pool domain.ContestPool) error {
	if pool.ID == "" {
		return fmt.Errorf("%w: missing id", domain.ErrInvalidPool)
	}
	if pool.PlayerCount < 1 {
		return fmt.Errorf("%w: player count %d", domain.ErrInvalidPool, pool.PlayerCount)
	}
	if pool.EntryFee < 0 || pool.NetPrizePool < 0 {
		return fmt.Errorf("%w: negative amounts", domain.ErrInvalidPool)
	}
	if pool.WinnerCount < 1 || pool.WinnerCount > len(pool.Rewards) {
		return fmt.Errorf("%w: winner count %d for %d rewards", domain.ErrInvalidPool, pool.WinnerCount, len(pool.Rewards))
	}
	if pool.WinnerCount > pool.PlayerCount {
		return fmt.Errorf("%w: winner count %d exceeds player count %d", domain.ErrInvalidPool, pool.WinnerCount, pool.PlayerCount)
	}
	var total int64
	for rank, amount := range pool.Rewards {
		if amount < 0 {
			return fmt.Errorf("%w: negative reward at rank %d", domain.ErrInvalidPool, rank+1)
		}
		if rank < pool.WinnerCount {
			total += amount
		}
	}
	if total > pool.NetPrizePool {
		return fmt.Errorf("%w: rewards %d exceed net prize pool %d", domain.ErrInvalidPool, total, pool.NetPrizePool)
	}
	return nil
}

// SplitRewards builds a reward table from percentage shares of the net prize
// pool. Integer division truncates, so the remainder is distributed one unit
// at a time from the top rank down; the table always sums to exactly the
// portion of the pool the shares cover.
func SplitRewards(netPrizePool int64, percents []int) ([]int64, error) {
	totalPct := 0
	for _, pct := range percents {
		if pct < 0 {
			return nil, fmt.Errorf("%w: negative percentage", domain.ErrInvalidPool)
		}
		totalPct += pct
	}
	if totalPct > 100 {
		return nil, fmt.Errorf("%w: percentages sum to %d", domain.ErrInvalidPool, totalPct)
	}

	rewards := make([]int64, len(percents))
	var allocated int64
	for i, pct := range percents {
		rewards[i] = netPrizePool * int64(pct) / 100
		allocated += rewards[i]
	}
	remainder := netPrizePool*int64(totalPct)/100 - allocated
	for i := 0; remainder > 0; i++ {
		rewards[i%len(rewards)]++
		remainder--
	}
	return rewards, nil
}
