package app

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"quiz-contest-engine/internal/contest"
	"quiz-contest-engine/internal/domain"
	"quiz-contest-engine/internal/engine"
)

// Match is one contest pool instance in flight: the shared question set, one
// engine controller per participant, and the subscriber registry for
// standings updates. Each match owns independent state; nothing is shared
// across concurrently running matches.
type Match struct {
	id        string
	pool      domain.ContestPool
	cfg       domain.MatchConfig
	questions []domain.Question
	clock     clockwork.Clock
	onSettled func(m *Match, settled []domain.PlayerMatchResult)

	mu           sync.Mutex
	players      map[string]*participant
	order        []string
	subscribers  map[chan domain.Standings]struct{}
	settled      bool
	finalResults []domain.PlayerMatchResult
}

type participant struct {
	id     string
	name   string
	ctrl   *engine.Controller
	events chan PlayerEvent
}

// NewMatch builds an empty match for the given pool. Players are admitted
// through the service join path; onSettled fires once after all of them reach
// a terminal phase.
func NewMatch(pool domain.ContestPool, cfg domain.MatchConfig, questions []domain.Question,
	clock clockwork.Clock, onSettled func(*Match, []domain.PlayerMatchResult)) *Match {
	return &Match{
		id:          uuid.NewString(),
		pool:        pool,
		cfg:         cfg,
		questions:   questions,
		clock:       clock,
		onSettled:   onSettled,
		players:     make(map[string]*participant),
		subscribers: make(map[chan domain.Standings]struct{}),
	}
}

// ID returns the unique id of this match instance.
func (m *Match) ID() string { return m.id }

// Pool returns the pool definition this match runs under.
func (m *Match) Pool() domain.ContestPool { return m.pool }

// join registers a player and starts their run through the questions.
// Rejoining an already registered player only returns the current standings.
func (m *Match) join(playerID, displayName string) (domain.Standings, error) {
	m.mu.Lock()
	if m.settled {
		m.mu.Unlock()
		return domain.Standings{}, domain.ErrMatchFinished
	}
	if _, ok := m.players[playerID]; ok {
		standings := m.standingsLocked()
		m.mu.Unlock()
		return standings, nil
	}
	if len(m.order) >= m.pool.PlayerCount {
		m.mu.Unlock()
		return domain.Standings{}, domain.ErrMatchFull
	}

	events := make(chan PlayerEvent, 32)
	ctrl := engine.NewController(playerID, displayName, m.cfg, engine.Callbacks{
		OnPhase: func(snap engine.Snapshot) {
			pushEvent(events, PlayerEvent{Type: EventPhase, Snapshot: snap})
			m.broadcast()
		},
		OnTick: func(questionIndex int, remaining time.Duration) {
			pushEvent(events, PlayerEvent{Type: EventTick, QuestionIndex: questionIndex, Remaining: remaining})
		},
		OnReview: func(review engine.Review) {
			pushEvent(events, PlayerEvent{Type: EventReview, Review: &review})
		},
		// Terminal results are delivered after settlement so the event carries
		// the final rank and prize, not the pre-ranking zero values.
		OnCompleted: func(domain.PlayerMatchResult) { m.handleTerminal() },
		OnAbandoned: func(domain.PlayerMatchResult) { m.handleTerminal() },
		OnError: func(err error) {
			pushEvent(events, PlayerEvent{Type: EventError, Err: err})
			m.broadcast()
		},
	}, engine.WithClock(m.clock))
	p := &participant{id: playerID, name: displayName, ctrl: ctrl, events: events}
	m.players[playerID] = p
	m.order = append(m.order, playerID)
	m.mu.Unlock()

	// Load outside the match lock: the controller fires phase callbacks that
	// re-enter broadcast.
	if err := ctrl.Load(m.questions); err != nil {
		m.mu.Lock()
		delete(m.players, playerID)
		// Concurrent joins may have appended behind us; remove our own
		// entry, not the tail.
		for i, id := range m.order {
			if id == playerID {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
		m.mu.Unlock()
		return domain.Standings{}, err
	}

	m.mu.Lock()
	standings := m.standingsLocked()
	m.mu.Unlock()
	return standings, nil
}

func (m *Match) controller(playerID string) (*engine.Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[playerID]
	if !ok {
		return nil, domain.ErrPlayerNotFound
	}
	return p.ctrl, nil
}

// answer forwards the selection to the player's controller.
func (m *Match) answer(playerID string, option int) (domain.ResponseRecord, engine.Snapshot, error) {
	ctrl, err := m.controller(playerID)
	if err != nil {
		return domain.ResponseRecord{}, engine.Snapshot{}, err
	}
	rec, err := ctrl.Answer(option)
	if err != nil {
		return domain.ResponseRecord{}, engine.Snapshot{}, err
	}
	return rec, ctrl.Snapshot(), nil
}

// exit abandons the player's run. The controller's terminal callback takes
// care of settlement bookkeeping.
func (m *Match) exit(playerID string) error {
	ctrl, err := m.controller(playerID)
	if err != nil {
		return err
	}
	ctrl.Exit()
	return nil
}

// playerEvents returns the participant's engine notification stream. The
// channel is never closed; consumers select against their own shutdown signal.
func (m *Match) playerEvents(playerID string) (<-chan PlayerEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[playerID]
	if !ok {
		return nil, domain.ErrPlayerNotFound
	}
	return p.events, nil
}

func (m *Match) currentQuestion(playerID string) (domain.Question, int, error) {
	ctrl, err := m.controller(playerID)
	if err != nil {
		return domain.Question{}, 0, err
	}
	question, idx, ok := ctrl.CurrentQuestion()
	if !ok {
		return domain.Question{}, 0, domain.ErrNoActiveQuestion
	}
	return question, idx, nil
}

// result returns a player's finalized result once their run is terminal.
func (m *Match) result(playerID string) (domain.PlayerMatchResult, error) {
	m.mu.Lock()
	if m.settled {
		for _, r := range m.finalResults {
			if r.PlayerID == playerID {
				m.mu.Unlock()
				return r, nil
			}
		}
	}
	p, ok := m.players[playerID]
	m.mu.Unlock()
	if !ok {
		return domain.PlayerMatchResult{}, domain.ErrPlayerNotFound
	}
	result, terminal := p.ctrl.Result()
	if !terminal {
		return domain.PlayerMatchResult{}, domain.ErrResultNotReady
	}
	return result, nil
}

// subscribe returns a channel receiving standings updates plus a cancel func.
func (m *Match) subscribe() (<-chan domain.Standings, func()) {
	ch := make(chan domain.Standings, 8)

	m.mu.Lock()
	m.subscribers[ch] = struct{}{}
	initial := m.standingsLocked()
	m.mu.Unlock()

	ch <- initial

	cancel := func() {
		m.mu.Lock()
		if _, ok := m.subscribers[ch]; ok {
			delete(m.subscribers, ch)
			close(ch)
		}
		m.mu.Unlock()
	}
	return ch, cancel
}

// broadcast pushes a fresh standings snapshot to every subscriber, dropping a
// stale buffered update rather than blocking on a slow client.
func (m *Match) broadcast() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcastLocked()
}

func (m *Match) broadcastLocked() {
	standings := m.standingsLocked()
	for ch := range m.subscribers {
		select {
		case ch <- standings:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- standings
		}
	}
}

// handleTerminal runs after any participant reaches a terminal phase. Once
// every seat is filled and every run is terminal, the match settles exactly
// once: ranking, prize allocation, final broadcast, then the settlement hook.
func (m *Match) handleTerminal() {
	m.mu.Lock()
	if m.settled || len(m.order) < m.pool.PlayerCount {
		m.broadcastLocked()
		m.mu.Unlock()
		return
	}
	for _, playerID := range m.order {
		if !m.players[playerID].ctrl.Phase().Terminal() {
			m.broadcastLocked()
			m.mu.Unlock()
			return
		}
	}

	results := make([]domain.PlayerMatchResult, 0, len(m.order))
	for _, playerID := range m.order {
		result, _ := m.players[playerID].ctrl.Result()
		results = append(results, result)
	}
	settled := contest.Settle(m.pool, results)
	m.settled = true
	m.finalResults = settled
	m.broadcastLocked()
	type delivery struct {
		ch chan PlayerEvent
		ev PlayerEvent
	}
	deliveries := make([]delivery, 0, len(settled))
	for i := range settled {
		result := settled[i]
		eventType := EventCompleted
		if !result.Completed {
			eventType = EventAbandoned
		}
		if p, ok := m.players[result.PlayerID]; ok {
			deliveries = append(deliveries, delivery{ch: p.events, ev: PlayerEvent{Type: eventType, Result: &result}})
		}
	}
	onSettled := m.onSettled
	m.mu.Unlock()

	for _, d := range deliveries {
		pushTerminalEvent(d.ch, d.ev)
	}
	if onSettled != nil {
		onSettled(m, settled)
	}
}

// Settled reports whether ranking and prizes have been assigned.
func (m *Match) Settled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settled
}

func (m *Match) standingsLocked() domain.Standings {
	standings := domain.Standings{
		MatchID:   m.id,
		PoolID:    m.pool.ID,
		Settled:   m.settled,
		UpdatedAt: m.clock.Now(),
	}
	if m.settled {
		for _, r := range m.finalResults {
			phase := domain.PhaseCompleted
			if !r.Completed {
				phase = domain.PhaseAbandoned
			}
			standings.Entries = append(standings.Entries, domain.Standing{
				PlayerID:    r.PlayerID,
				DisplayName: r.DisplayName,
				Phase:       phase,
				Score:       r.TotalScore,
				Rank:        r.Rank,
				PrizeAmount: r.PrizeAmount,
			})
		}
		return standings
	}

	entries := make([]domain.Standing, 0, len(m.order))
	for _, playerID := range m.order {
		p := m.players[playerID]
		snap := p.ctrl.Snapshot()
		entries = append(entries, domain.Standing{
			PlayerID:      p.id,
			DisplayName:   p.name,
			Phase:         snap.Phase,
			QuestionIndex: snap.QuestionIndex,
			Score:         snap.Score,
		})
	}
	// Mid-match board: score first, join order breaks ties until the final
	// ranking (which also weighs response time) is computed at settlement.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	standings.Entries = entries
	return standings
}
