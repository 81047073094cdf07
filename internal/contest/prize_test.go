package contest

import (
	"errors"
	"testing"

	"quiz-contest-engine/internal/domain"
)

func validPool() domain.ContestPool {
	return domain.ContestPool{
		ID:           "pool-1",
		EntryFee:     25,
		PlayerCount:  10,
		NetPrizePool: 900,
		Rewards:      []int64{450, 270, 180},
		WinnerCount:  3,
	}
}

func TestPrizeForRank(t *testing.T) {
	pool := validPool()

	cases := []struct {
		rank int
		want int64
	}{
		{1, 450},
		{2, 270},
		{3, 180},
		{4, 0},
		{0, 0},  // unranked (abandoned)
		{-1, 0}, // defensive, never produced by ranking
	}
	for _, tc := range cases {
		if got := PrizeForRank(pool, tc.rank); got != tc.want {
			t.Fatalf("rank %d: expected %d, got %d", tc.rank, tc.want, got)
		}
	}
}

func TestValidPoolPayoutNeverExceedsNetPool(t *testing.T) {
	pool := validPool()
	if err := ValidatePool(pool); err != nil {
		t.Fatalf("validate: %v", err)
	}

	var total int64
	for rank := 1; rank <= pool.PlayerCount; rank++ {
		total += PrizeForRank(pool, rank)
	}
	if total > pool.NetPrizePool {
		t.Fatalf("total payout %d exceeds net pool %d", total, pool.NetPrizePool)
	}
}

func TestValidatePoolRejectsOverpayingTable(t *testing.T) {
	pool := validPool()
	pool.Rewards = []int64{800, 200, 100}

	if err := ValidatePool(pool); !errors.Is(err, domain.ErrInvalidPool) {
		t.Fatalf("expected invalid pool, got %v", err)
	}
}

func TestValidatePoolRejectsWinnerCountMismatch(t *testing.T) {
	pool := validPool()
	pool.WinnerCount = 5

	if err := ValidatePool(pool); !errors.Is(err, domain.ErrInvalidPool) {
		t.Fatalf("expected invalid pool for winner count beyond rewards, got %v", err)
	}

	pool = validPool()
	pool.PlayerCount = 2
	if err := ValidatePool(pool); !errors.Is(err, domain.ErrInvalidPool) {
		t.Fatalf("expected invalid pool for more winners than players, got %v", err)
	}
}

func TestSplitRewards(t *testing.T) {
	rewards, err := SplitRewards(900, []int{50, 30, 20})
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if rewards[0] != 450 || rewards[1] != 270 || rewards[2] != 180 {
		t.Fatalf("unexpected 50/30/20 split of 900: %v", rewards)
	}
}

func TestSplitRewardsDistributesRemainder(t *testing.T) {
	rewards, err := SplitRewards(100, []int{33, 33, 33})
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	var total int64
	for _, r := range rewards {
		total += r
	}
	// 99% of 100 truncates to 99; nothing may be lost to rounding.
	if total != 99 {
		t.Fatalf("expected split to preserve the covered amount, got %d from %v", total, rewards)
	}
	if rewards[0] < rewards[2] {
		t.Fatalf("remainder must be handed out from the top: %v", rewards)
	}
}

func TestSplitRewardsRejectsBadShares(t *testing.T) {
	if _, err := SplitRewards(900, []int{60, 60}); !errors.Is(err, domain.ErrInvalidPool) {
		t.Fatalf("expected rejection of shares above 100%%, got %v", err)
	}
	if _, err := SplitRewards(900, []int{-10, 50}); !errors.Is(err, domain.ErrInvalidPool) {
		t.Fatalf("expected rejection of negative share, got %v", err)
	}
}
