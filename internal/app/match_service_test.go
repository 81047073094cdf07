package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"quiz-contest-engine/internal/app"
	"quiz-contest-engine/internal/domain"
	"quiz-contest-engine/internal/infra/memory"
)

func newTestService(clock clockwork.Clock) (*app.MatchService, *memory.ResultStore) {
	pools := memory.NewPoolRepository(memory.NewStaticPoolLoader(map[string]domain.ContestPool{
		"pool-1": {
			ID:                "pool-1",
			QuestionSet:       "set-1",
			EntryFee:          25,
			PlayerCount:       2,
			NetPrizePool:      900,
			Rewards:           []int64{450, 270},
			WinnerCount:       2,
			QuestionCount:     2,
			TimePerQuestionMs: 10_000,
			ReviewDelayMs:     1_000,
			BasePoints:        100,
			BonusPerSecond:    10,
		},
	}), time.Minute)
	questions := memory.NewStaticQuestionSource(map[string]domain.QuestionSet{
		"set-1": {
			ID: "set-1",
			Questions: []domain.Question{
				{ID: "q1", Prompt: "What is 2 + 2?", Options: []string{"3", "4", "5", "6"}, CorrectIndex: 1},
				{ID: "q2", Prompt: "Capital of France?", Options: []string{"Lyon", "Nice", "Paris", "Lille"}, CorrectIndex: 2},
			},
		},
	})
	results := memory.NewResultStore()
	svc := app.NewMatchService(pools, questions, memory.NewMatchStore(), results,
		domain.MatchConfig{}, app.WithClock(clock))
	return svc, results
}

func TestMatchServiceFullFlow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	svc, results := newTestService(clock)
	ctx := context.Background()

	standings, err := svc.Join(ctx, "pool-1", "p1", "Alice")
	if err != nil {
		t.Fatalf("join p1: %v", err)
	}
	matchID := standings.MatchID
	if _, err := svc.Join(ctx, "pool-1", "p2", "Bob"); err != nil {
		t.Fatalf("join p2: %v", err)
	}

	updates, cancel, err := svc.Subscribe(ctx, "pool-1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	// Question 0: p1 answers correctly after 4s, p2 picks a wrong option.
	clock.Advance(4 * time.Second)
	rec, snap, err := svc.Answer(ctx, "pool-1", "p1", 1)
	if err != nil {
		t.Fatalf("p1 answer q0: %v", err)
	}
	if !rec.Correct || rec.Points != 160 {
		t.Fatalf("p1 q0: expected correct 160 points, got correct=%v points=%d", rec.Correct, rec.Points)
	}
	if rec.ResponseTime != 4*time.Second {
		t.Fatalf("p1 q0: expected 4s response time, got %v", rec.ResponseTime)
	}
	if snap.Phase != domain.PhaseReviewing {
		t.Fatalf("p1 q0: expected reviewing phase, got %s", snap.Phase)
	}
	if rec, _, err := svc.Answer(ctx, "pool-1", "p2", 0); err != nil {
		t.Fatalf("p2 answer q0: %v", err)
	} else if rec.Correct || rec.Points != 0 {
		t.Fatalf("p2 q0: expected incorrect 0 points, got correct=%v points=%d", rec.Correct, rec.Points)
	}

	// Review elapses, both advance to question 1.
	clock.Advance(time.Second)
	waitFor(t, func() bool {
		_, idx1, err1 := svc.CurrentQuestion(ctx, "pool-1", "p1")
		_, idx2, err2 := svc.CurrentQuestion(ctx, "pool-1", "p2")
		return err1 == nil && err2 == nil && idx1 == 1 && idx2 == 1
	})

	// Question 1: both answer correctly after 2s.
	clock.Advance(2 * time.Second)
	if rec, _, err := svc.Answer(ctx, "pool-1", "p1", 2); err != nil {
		t.Fatalf("p1 answer q1: %v", err)
	} else if rec.Points != 180 {
		t.Fatalf("p1 q1: expected 180 points, got %d", rec.Points)
	}
	if rec, _, err := svc.Answer(ctx, "pool-1", "p2", 2); err != nil {
		t.Fatalf("p2 answer q1: %v", err)
	} else if rec.Points != 180 {
		t.Fatalf("p2 q1: expected 180 points, got %d", rec.Points)
	}

	// Result is not served until the run is terminal.
	if _, err := svc.Result(ctx, "pool-1", "p1"); !errors.Is(err, domain.ErrResultNotReady) {
		t.Fatalf("expected result-not-ready mid match, got %v", err)
	}

	// Final review elapses, both complete, the match settles and persists.
	clock.Advance(time.Second)
	waitFor(t, func() bool {
		_, ok := results.Results(matchID)
		return ok
	})

	final, ok := results.Results(matchID)
	if !ok {
		t.Fatalf("expected persisted results")
	}
	if len(final) != 2 {
		t.Fatalf("expected 2 results, got %d", len(final))
	}
	byPlayer := make(map[string]domain.PlayerMatchResult, len(final))
	for _, res := range final {
		byPlayer[res.PlayerID] = res
	}
	p1, p2 := byPlayer["p1"], byPlayer["p2"]
	if p1.TotalScore != 340 || p1.Rank != 1 || p1.PrizeAmount != 450 {
		t.Fatalf("p1 final: %+v", p1)
	}
	if p2.TotalScore != 180 || p2.Rank != 2 || p2.PrizeAmount != 270 {
		t.Fatalf("p2 final: %+v", p2)
	}
	if p1.AvgResponseTime != 3*time.Second {
		t.Fatalf("p1 avg response time: %v", p1.AvgResponseTime)
	}
	var payout int64
	for _, res := range final {
		payout += res.PrizeAmount
	}
	if payout > 900 {
		t.Fatalf("payout %d exceeds prize pool", payout)
	}

	// Subscribers received the settled board.
	settled := drainUntilSettled(t, updates)
	if len(settled.Entries) != 2 || settled.Entries[0].PlayerID != "p1" {
		t.Fatalf("settled standings: %+v", settled)
	}

	// The finished match is removed from the live store.
	waitFor(t, func() bool {
		_, _, err := svc.CurrentQuestion(ctx, "pool-1", "p1")
		return errors.Is(err, domain.ErrMatchNotFound)
	})
}

func TestMatchServiceRejectsOverCapacityJoin(t *testing.T) {
	clock := clockwork.NewFakeClock()
	svc, _ := newTestService(clock)
	ctx := context.Background()

	if _, err := svc.Join(ctx, "pool-1", "p1", "Alice"); err != nil {
		t.Fatalf("join p1: %v", err)
	}
	if _, err := svc.Join(ctx, "pool-1", "p2", "Bob"); err != nil {
		t.Fatalf("join p2: %v", err)
	}
	if _, err := svc.Join(ctx, "pool-1", "p3", "Carol"); !errors.Is(err, domain.ErrMatchFull) {
		t.Fatalf("expected match-full, got %v", err)
	}

	// Rejoin of a seated player is not a new seat.
	if _, err := svc.Join(ctx, "pool-1", "p1", "Alice"); err != nil {
		t.Fatalf("rejoin p1: %v", err)
	}
}

func TestMatchServiceUnknownPoolAndMatch(t *testing.T) {
	clock := clockwork.NewFakeClock()
	svc, _ := newTestService(clock)
	ctx := context.Background()

	if _, err := svc.Join(ctx, "missing", "p1", "Alice"); !errors.Is(err, domain.ErrPoolNotFound) {
		t.Fatalf("expected pool-not-found, got %v", err)
	}
	if _, _, err := svc.Answer(ctx, "missing", "p1", 0); !errors.Is(err, domain.ErrMatchNotFound) {
		t.Fatalf("expected match-not-found, got %v", err)
	}
	if err := svc.Exit(ctx, "missing", "p1"); !errors.Is(err, domain.ErrMatchNotFound) {
		t.Fatalf("expected match-not-found, got %v", err)
	}
}

func TestMatchServiceAbandonedPlayerSettles(t *testing.T) {
	clock := clockwork.NewFakeClock()
	svc, results := newTestService(clock)
	ctx := context.Background()

	standings, err := svc.Join(ctx, "pool-1", "p1", "Alice")
	if err != nil {
		t.Fatalf("join p1: %v", err)
	}
	matchID := standings.MatchID
	if _, err := svc.Join(ctx, "pool-1", "p2", "Bob"); err != nil {
		t.Fatalf("join p2: %v", err)
	}

	// p1 answers the first question, p2 walks away immediately.
	clock.Advance(time.Second)
	if _, _, err := svc.Answer(ctx, "pool-1", "p1", 1); err != nil {
		t.Fatalf("p1 answer q0: %v", err)
	}
	if err := svc.Exit(ctx, "pool-1", "p2"); err != nil {
		t.Fatalf("p2 exit: %v", err)
	}

	clock.Advance(time.Second)
	waitFor(t, func() bool {
		_, idx, err := svc.CurrentQuestion(ctx, "pool-1", "p1")
		return err == nil && idx == 1
	})
	clock.Advance(time.Second)
	if _, _, err := svc.Answer(ctx, "pool-1", "p1", 2); err != nil {
		t.Fatalf("p1 answer q1: %v", err)
	}
	clock.Advance(time.Second)

	waitFor(t, func() bool {
		_, ok := results.Results(matchID)
		return ok
	})
	final, _ := results.Results(matchID)
	byPlayer := make(map[string]domain.PlayerMatchResult, len(final))
	for _, res := range final {
		byPlayer[res.PlayerID] = res
	}
	if !byPlayer["p1"].Completed || byPlayer["p1"].Rank != 1 {
		t.Fatalf("p1 final: %+v", byPlayer["p1"])
	}
	if byPlayer["p2"].Completed || byPlayer["p2"].Rank != 0 || byPlayer["p2"].PrizeAmount != 0 {
		t.Fatalf("p2 final: %+v", byPlayer["p2"])
	}
}

func TestMatchServiceConcurrentFailingJoins(t *testing.T) {
	clock := clockwork.NewFakeClock()
	pools := memory.NewPoolRepository(memory.NewStaticPoolLoader(map[string]domain.ContestPool{
		"pool-short": {
			ID:                "pool-short",
			QuestionSet:       "set-short",
			PlayerCount:       3,
			NetPrizePool:      100,
			Rewards:           []int64{100},
			WinnerCount:       1,
			QuestionCount:     5,
			TimePerQuestionMs: 10_000,
			ReviewDelayMs:     1_000,
			BasePoints:        100,
			BonusPerSecond:    10,
		},
	}), time.Minute)
	questions := memory.NewStaticQuestionSource(map[string]domain.QuestionSet{
		"set-short": {
			ID: "set-short",
			Questions: []domain.Question{
				{ID: "q1", Prompt: "What is 2 + 2?", Options: []string{"3", "4"}, CorrectIndex: 1},
			},
		},
	})
	svc := app.NewMatchService(pools, questions, memory.NewMatchStore(), memory.NewResultStore(),
		domain.MatchConfig{}, app.WithClock(clock))
	ctx := context.Background()

	// The short question set fails every load, so each join registers a seat
	// and then backs out while the other joins mutate the same seat list.
	for round := 0; round < 25; round++ {
		var wg sync.WaitGroup
		for i := 0; i < 3; i++ {
			wg.Add(1)
			go func(player string) {
				defer wg.Done()
				if _, err := svc.Join(ctx, "pool-short", player, "Player"); !errors.Is(err, domain.ErrNotEnoughQuestions) {
					t.Errorf("join %s: expected not-enough-questions, got %v", player, err)
				}
			}(fmt.Sprintf("p%d", i))
		}
		wg.Wait()
	}
}

func TestMatchServiceTerminalEventSurvivesSlowConsumer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	svc, results := newTestService(clock)
	ctx := context.Background()

	standings, err := svc.Join(ctx, "pool-1", "p1", "Alice")
	if err != nil {
		t.Fatalf("join p1: %v", err)
	}
	matchID := standings.MatchID
	if _, err := svc.Join(ctx, "pool-1", "p2", "Bob"); err != nil {
		t.Fatalf("join p2: %v", err)
	}
	events, err := svc.PlayerEvents(ctx, "pool-1", "p1")
	if err != nil {
		t.Fatalf("player events: %v", err)
	}

	// Nothing reads the stream while the match runs; countdown ticks are
	// allowed to overflow the buffer.
	clock.Advance(4 * time.Second)
	if _, _, err := svc.Answer(ctx, "pool-1", "p1", 1); err != nil {
		t.Fatalf("p1 answer q0: %v", err)
	}
	if _, _, err := svc.Answer(ctx, "pool-1", "p2", 0); err != nil {
		t.Fatalf("p2 answer q0: %v", err)
	}
	clock.Advance(time.Second)
	waitFor(t, func() bool {
		_, idx, err := svc.CurrentQuestion(ctx, "pool-1", "p1")
		return err == nil && idx == 1
	})
	clock.Advance(2 * time.Second)
	if _, _, err := svc.Answer(ctx, "pool-1", "p1", 2); err != nil {
		t.Fatalf("p1 answer q1: %v", err)
	}
	if _, _, err := svc.Answer(ctx, "pool-1", "p2", 2); err != nil {
		t.Fatalf("p2 answer q1: %v", err)
	}
	clock.Advance(time.Second)
	waitFor(t, func() bool {
		_, ok := results.Results(matchID)
		return ok
	})

	// The settled result must still be in the stream even though the buffer
	// was full of stale ticks when it was pushed.
	var terminal *app.PlayerEvent
drain:
	for {
		select {
		case ev := <-events:
			if ev.Type == app.EventCompleted {
				terminal = &ev
				break drain
			}
		default:
			break drain
		}
	}
	if terminal == nil || terminal.Result == nil {
		t.Fatalf("completed event lost for slow consumer")
	}
	if terminal.Result.Rank != 1 || terminal.Result.PrizeAmount != 450 {
		t.Fatalf("terminal event carries %+v, expected rank 1 prize 450", terminal.Result)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met within deadline")
}

func drainUntilSettled(t *testing.T, updates <-chan domain.Standings) domain.Standings {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case standings := <-updates:
			if standings.Settled {
				return standings
			}
		case <-timeout:
			t.Fatalf("no settled standings received")
		}
	}
}
