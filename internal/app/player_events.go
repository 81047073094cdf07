package app

import (
	"time"

	"quiz-contest-engine/internal/domain"
	"quiz-contest-engine/internal/engine"
)

// PlayerEvent is one engine notification addressed to a single participant.
// Exactly one of the optional fields is populated, keyed by Type.
type PlayerEvent struct {
	Type          string
	Snapshot      engine.Snapshot
	QuestionIndex int
	Remaining     time.Duration
	Review        *engine.Review
	Result        *domain.PlayerMatchResult
	Err           error
}

const (
	EventPhase     = "phase"
	EventTick      = "tick"
	EventReview    = "review"
	EventCompleted = "completed"
	EventAbandoned = "abandoned"
	EventError     = "error"
)

// pushEvent delivers without blocking: when the buffer is full the oldest
// queued event is dropped so a slow consumer only loses stale countdown ticks.
func pushEvent(ch chan PlayerEvent, ev PlayerEvent) {
	select {
	case ch <- ev:
	default:
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
	}
}

// pushTerminalEvent keeps evicting the oldest queued event until the terminal
// result fits. Nothing else is pushed for a player after their run ends, so the
// loop always lands the event, consumer or not.
func pushTerminalEvent(ch chan PlayerEvent, ev PlayerEvent) {
	for {
		select {
		case ch <- ev:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
