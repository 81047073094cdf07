package engine

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultTickInterval is the cadence at which countdown progress is reported.
const DefaultTickInterval = 100 * time.Millisecond

// QuestionTimer is a drift-corrected countdown. Remaining time is always
// recomputed from the deadline, never decremented, so imprecise scheduling
// cannot accumulate error. Start while running implicitly stops the previous
// run; Stop is idempotent and safe after expiry. Each run checks a generation
// counter before invoking its callbacks so a superseded run goes silent even
// if its goroutine has not observed cancellation yet.
type QuestionTimer struct {
	clock    clockwork.Clock
	interval time.Duration

	mu       sync.Mutex
	gen      uint64
	cancel   chan struct{}
	deadline time.Time
}

func NewQuestionTimer(clock clockwork.Clock, interval time.Duration) *QuestionTimer {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &QuestionTimer{clock: clock, interval: interval}
}

// Start begins a countdown of the given duration. onTick receives the
// remaining time at each interval; onExpire fires at most once when the
// deadline is reached.
func (t *QuestionTimer) Start(duration time.Duration, onTick func(remaining time.Duration), onExpire func()) {
	t.mu.Lock()
	t.stopLocked()
	t.gen++
	gen := t.gen
	t.deadline = t.clock.Now().Add(duration)
	deadline := t.deadline
	cancel := make(chan struct{})
	t.cancel = cancel
	t.mu.Unlock()

	go t.run(gen, deadline, duration, cancel, onTick, onExpire)
}

// Stop cancels the current run. Safe to call repeatedly and after expiry.
func (t *QuestionTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

// Remaining returns the time left in the current run, zero when stopped or expired.
func (t *QuestionTimer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel == nil {
		return 0
	}
	remaining := t.deadline.Sub(t.clock.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (t *QuestionTimer) stopLocked() {
	if t.cancel != nil {
		close(t.cancel)
		t.cancel = nil
	}
}

func (t *QuestionTimer) run(gen uint64, deadline time.Time, duration time.Duration, cancel chan struct{}, onTick func(time.Duration), onExpire func()) {
	ticker := t.clock.NewTicker(t.interval)
	defer ticker.Stop()
	expiry := t.clock.NewTimer(duration)
	defer stopAndDrainTimer(expiry)

	for {
		select {
		case <-cancel:
			return
		case <-expiry.Chan():
			if t.current(gen) {
				onExpire()
			}
			return
		case <-ticker.Chan():
			remaining := deadline.Sub(t.clock.Now())
			if remaining <= 0 {
				// A tick can observe the deadline before the one-shot fires.
				if t.current(gen) {
					onExpire()
				}
				return
			}
			if t.current(gen) {
				onTick(remaining)
			}
		}
	}
}

func (t *QuestionTimer) current(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil && t.gen == gen
}

// stopAndDrainTimer stops a timer and drains its channel so an already fired
// timer cannot leak a value to a later reader.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
