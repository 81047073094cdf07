package contest

import (
	"sort"

	"quiz-contest-engine/internal/domain"
)

// RankPlayers orders one match's results and assigns contiguous 1-based ranks
// with no ties. Ordering key: total score descending, then average response
// time ascending, then original join order. Results must be passed in join
// order; because the final key is deterministic, re-running on the same input
// always reproduces the same ranks, which matters for audit in a money-prize
// contest.
//
// Players who abandoned mid-match are kept for audit but receive no rank
// (zero) and sort after every completed player.
func RankPlayers(results []domain.PlayerMatchResult) []domain.PlayerMatchResult {
	ranked := make([]domain.PlayerMatchResult, len(results))
	copy(ranked, results)

	joinOrder := make(map[string]int, len(results))
	for i, r := range results {
		joinOrder[r.PlayerID] = i
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Completed != b.Completed {
			return a.Completed
		}
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		if a.AvgResponseTime != b.AvgResponseTime {
			return a.AvgResponseTime < b.AvgResponseTime
		}
		return joinOrder[a.PlayerID] < joinOrder[b.PlayerID]
	})

	rank := 0
	for i := range ranked {
		if !ranked[i].Completed {
			ranked[i].Rank = 0
			continue
		}
		rank++
		ranked[i].Rank = rank
	}
	return ranked
}

// Settle ranks one match's results and assigns each player's prize from the
// pool's reward table. The input order must be join order.
func Settle(pool domain.ContestPool, results []domain.PlayerMatchResult) []domain.PlayerMatchResult {
	ranked := RankPlayers(results)
	for i := range ranked {
		ranked[i].PrizeAmount = PrizeForRank(pool, ranked[i].Rank)
	}
	return ranked
}
