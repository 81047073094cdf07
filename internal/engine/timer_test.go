package engine

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestTimerTicksReportRemainingFromDeadline(t *testing.T) {
	clock := clockwork.NewFakeClock()
	ticks := make(chan time.Duration, 16)
	timer := NewQuestionTimer(clock, 100*time.Millisecond)

	timer.Start(time.Second,
		func(remaining time.Duration) { ticks <- remaining },
		func() {},
	)
	defer timer.Stop()

	clock.BlockUntil(2) // ticker plus expiry registered
	clock.Advance(100 * time.Millisecond)

	select {
	case remaining := <-ticks:
		if remaining != 900*time.Millisecond {
			t.Fatalf("expected 900ms remaining, got %v", remaining)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no tick received")
	}
}

func TestTimerExpiresExactlyOnce(t *testing.T) {
	clock := clockwork.NewFakeClock()
	expired := make(chan struct{}, 4)
	timer := NewQuestionTimer(clock, 100*time.Millisecond)

	timer.Start(time.Second, func(time.Duration) {}, func() { expired <- struct{}{} })
	clock.BlockUntil(2)
	clock.Advance(time.Second)

	select {
	case <-expired:
	case <-time.After(2 * time.Second):
		t.Fatalf("timer never expired")
	}

	clock.Advance(5 * time.Second)
	select {
	case <-expired:
		t.Fatalf("timer expired twice")
	case <-time.After(50 * time.Millisecond):
	}

	// Stop after expiry must be a safe no-op.
	timer.Stop()
	timer.Stop()
}

func TestTimerStopCancelsCallbacks(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fired := make(chan struct{}, 4)
	timer := NewQuestionTimer(clock, 100*time.Millisecond)

	timer.Start(time.Second,
		func(time.Duration) { fired <- struct{}{} },
		func() { fired <- struct{}{} },
	)
	clock.BlockUntil(2)
	timer.Stop()
	clock.Advance(2 * time.Second)

	select {
	case <-fired:
		t.Fatalf("callback fired after Stop")
	case <-time.After(50 * time.Millisecond):
	}
	if timer.Remaining() != 0 {
		t.Fatalf("stopped timer must report zero remaining")
	}
}

func TestTimerRestartSupersedesPreviousRun(t *testing.T) {
	clock := clockwork.NewFakeClock()
	first := make(chan struct{}, 4)
	second := make(chan struct{}, 4)
	timer := NewQuestionTimer(clock, 100*time.Millisecond)

	timer.Start(time.Second, func(time.Duration) {}, func() { first <- struct{}{} })
	clock.BlockUntil(2)
	timer.Start(3*time.Second, func(time.Duration) {}, func() { second <- struct{}{} })

	// The restarted run registers its fake-clock waiters asynchronously, and
	// BlockUntil cannot tell them apart from the superseded run's, so a single
	// Advance can outrun registration. Drive the clock in interval-sized steps
	// with a real-time yield between them until the restarted run's expiry
	// fires; over-advancing is harmless because a tick that observes the
	// deadline already passed also triggers expiry.
	deadline := time.After(2 * time.Second)
advancing:
	for {
		clock.Advance(100 * time.Millisecond)
		select {
		case <-second:
			break advancing
		case <-deadline:
			t.Fatalf("restarted timer never expired")
		case <-time.After(time.Millisecond):
		}
	}
	select {
	case <-first:
		t.Fatalf("superseded run fired its expiry")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTimerRemainingTracksClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	timer := NewQuestionTimer(clock, 100*time.Millisecond)

	timer.Start(10*time.Second, func(time.Duration) {}, func() {})
	defer timer.Stop()

	clock.BlockUntil(2)
	clock.Advance(4 * time.Second)
	if remaining := timer.Remaining(); remaining != 6*time.Second {
		t.Fatalf("expected 6s remaining, got %v", remaining)
	}
}
