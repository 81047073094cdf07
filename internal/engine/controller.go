package engine

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"quiz-contest-engine/internal/domain"
)

// Snapshot is the read-only view of the controller handed to the host shell
// on every phase change.
type Snapshot struct {
	Phase         domain.Phase  `json:"phase"`
	QuestionIndex int           `json:"questionIndex"`
	Remaining     time.Duration `json:"remainingMs"`
	Score         int           `json:"score"`
}

// Review describes the settled outcome of one question, including what the
// player may now be shown (correct option, explanation, awarded points).
type Review struct {
	QuestionIndex int                   `json:"questionIndex"`
	Record        domain.ResponseRecord `json:"record"`
	CorrectIndex  int                   `json:"correctIndex"`
	Explanation   string                `json:"explanation,omitempty"`
}

// Callbacks notify the host shell of engine progress. Any field may be nil.
// Callbacks are invoked outside the controller's lock, so they may call back
// into the controller.
type Callbacks struct {
	OnPhase     func(Snapshot)
	OnTick      func(questionIndex int, remaining time.Duration)
	OnReview    func(Review)
	OnCompleted func(domain.PlayerMatchResult)
	OnAbandoned func(domain.PlayerMatchResult)
	OnError     func(err error)
}

// Controller drives one player's match through its question phases:
// Idle -> Loading -> Playing(i) -> Reviewing(i) -> ... -> Calculating -> Completed,
// with Abandoned reachable from any non-terminal phase and Error from Loading.
//
// Concurrency discipline: every mutation happens behind one mutex, and the
// first of answer/expiry to settle a question wins. Every scheduled timer
// callback captures the epoch counter at schedule time; the epoch advances on
// each phase transition, so late ticks, redundant expiries, and second
// answers are no-ops by construction rather than by timer bookkeeping.
type Controller struct {
	playerID    string
	displayName string
	cfg         domain.MatchConfig
	policy      ScoringPolicy
	clock       clockwork.Clock
	cb          Callbacks
	timer       *QuestionTimer

	mu          sync.Mutex
	phase       domain.Phase
	questions   []domain.Question
	idx         int
	epoch       uint64
	responseLog *ResponseLog
	score       int
	reviewTimer clockwork.Timer
	result      *domain.PlayerMatchResult
}

// Option customizes a Controller.
type Option func(*Controller)

// WithClock injects a clock, used by tests for deterministic timing.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

func NewController(playerID, displayName string, cfg domain.MatchConfig, cb Callbacks, opts ...Option) *Controller {
	c := &Controller{
		playerID:    playerID,
		displayName: displayName,
		cfg:         cfg,
		policy:      ScoringPolicy{BasePoints: cfg.BasePoints, BonusPerSecond: cfg.BonusPerSecond},
		clock:       clockwork.NewRealClock(),
		cb:          cb,
		phase:       domain.PhaseIdle,
		responseLog: NewResponseLog(cfg.QuestionCount, cfg.TimePerQuestion),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.timer = NewQuestionTimer(c.clock, DefaultTickInterval)
	return c
}

// Load validates the question set and starts the first question. It is only
// valid from Idle; a malformed or short set moves the controller to the
// terminal Error phase.
func (c *Controller) Load(questions []domain.Question) error {
	c.mu.Lock()
	if c.phase != domain.PhaseIdle {
		c.mu.Unlock()
		return domain.ErrMatchFinished
	}
	c.phase = domain.PhaseLoading
	if err := validateQuestions(questions, c.cfg.QuestionCount); err != nil {
		c.phase = domain.PhaseError
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.firePhase(snap)
		if c.cb.OnError != nil {
			c.cb.OnError(err)
		}
		return err
	}
	c.questions = make([]domain.Question, c.cfg.QuestionCount)
	copy(c.questions, questions[:c.cfg.QuestionCount])
	loading := c.snapshotLocked()
	playing := c.beginQuestionLocked(0)
	c.mu.Unlock()
	c.firePhase(loading)
	c.firePhase(playing)
	return nil
}

// Answer settles the current question with the player's selection, if the
// question is still open. The answer-vs-expiry race is decided here: whoever
// reaches the lock first while the phase is still Playing wins.
func (c *Controller) Answer(option int) (domain.ResponseRecord, error) {
	c.mu.Lock()
	if c.phase != domain.PhasePlaying {
		c.mu.Unlock()
		return domain.ResponseRecord{}, domain.ErrNoActiveQuestion
	}
	if option < 0 || option >= len(c.questions[c.idx].Options) {
		c.mu.Unlock()
		return domain.ResponseRecord{}, domain.ErrOptionOutOfRange
	}
	selected := option
	rec, notify := c.settleQuestionLocked(&selected)
	c.mu.Unlock()
	notify()
	return rec, nil
}

// Exit abandons the match: all timers are cancelled, no further records are
// written, and the partial result is kept for audit. Idempotent once terminal.
func (c *Controller) Exit() {
	c.mu.Lock()
	if c.phase.Terminal() {
		c.mu.Unlock()
		return
	}
	c.cancelTimersLocked()
	c.epoch++
	c.phase = domain.PhaseAbandoned
	result := c.buildResultLocked(false)
	c.result = &result
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.firePhase(snap)
	if c.cb.OnAbandoned != nil {
		c.cb.OnAbandoned(result)
	}
}

// Snapshot returns the current read-only view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Phase returns the current phase.
func (c *Controller) Phase() domain.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// CurrentQuestion returns the open question and its index while Playing.
func (c *Controller) CurrentQuestion() (domain.Question, int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != domain.PhasePlaying {
		return domain.Question{}, 0, false
	}
	return c.questions[c.idx], c.idx, true
}

// Result returns the final result once the controller is terminal.
func (c *Controller) Result() (domain.PlayerMatchResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result == nil {
		return domain.PlayerMatchResult{}, false
	}
	return *c.result, true
}

func (c *Controller) beginQuestionLocked(i int) Snapshot {
	c.epoch++
	epoch := c.epoch
	c.idx = i
	c.phase = domain.PhasePlaying
	c.timer.Start(c.cfg.TimePerQuestion,
		func(remaining time.Duration) { c.handleTick(epoch, remaining) },
		func() { c.handleExpire(epoch) },
	)
	return c.snapshotLocked()
}

// settleQuestionLocked writes the single response record for the current
// question and moves to Reviewing. selected is nil on expiry.
func (c *Controller) settleQuestionLocked(selected *int) (domain.ResponseRecord, func()) {
	question := c.questions[c.idx]
	var remaining time.Duration
	correct := false
	if selected != nil {
		remaining = c.timer.Remaining()
		correct = *selected == question.CorrectIndex
	}
	c.timer.Stop()
	c.epoch++

	rec := domain.ResponseRecord{
		QuestionID:     question.ID,
		SelectedOption: selected,
		Correct:        correct,
		ResponseTime:   c.cfg.TimePerQuestion - remaining,
		Points:         c.policy.Score(correct, remaining),
	}
	if err := c.responseLog.Append(rec); err != nil {
		// Invariant violation: the phase guard should have made this
		// unreachable. Discard, never apply twice.
		log.Warn().Err(err).Str("player_id", c.playerID).Str("question_id", rec.QuestionID).
			Msg("discarding duplicate response record")
		return rec, func() {}
	}
	c.score += rec.Points
	c.phase = domain.PhaseReviewing

	epoch := c.epoch
	c.reviewTimer = c.clock.AfterFunc(c.cfg.ReviewDelay, func() { c.handleReviewElapsed(epoch) })

	snap := c.snapshotLocked()
	review := Review{
		QuestionIndex: c.idx,
		Record:        rec,
		CorrectIndex:  question.CorrectIndex,
		Explanation:   question.Explanation,
	}
	return rec, func() {
		c.firePhase(snap)
		if c.cb.OnReview != nil {
			c.cb.OnReview(review)
		}
	}
}

func (c *Controller) handleTick(epoch uint64, remaining time.Duration) {
	c.mu.Lock()
	stale := epoch != c.epoch || c.phase != domain.PhasePlaying
	idx := c.idx
	c.mu.Unlock()
	if stale || c.cb.OnTick == nil {
		return
	}
	c.cb.OnTick(idx, remaining)
}

func (c *Controller) handleExpire(epoch uint64) {
	c.mu.Lock()
	if epoch != c.epoch || c.phase != domain.PhasePlaying {
		c.mu.Unlock()
		return
	}
	_, notify := c.settleQuestionLocked(nil)
	c.mu.Unlock()
	notify()
}

func (c *Controller) handleReviewElapsed(epoch uint64) {
	c.mu.Lock()
	if epoch != c.epoch || c.phase != domain.PhaseReviewing {
		c.mu.Unlock()
		return
	}
	if c.idx+1 < c.cfg.QuestionCount {
		snap := c.beginQuestionLocked(c.idx + 1)
		c.mu.Unlock()
		c.firePhase(snap)
		return
	}

	c.epoch++
	c.phase = domain.PhaseCalculating
	calculating := c.snapshotLocked()
	result := c.buildResultLocked(true)
	c.result = &result
	c.phase = domain.PhaseCompleted
	completed := c.snapshotLocked()
	c.mu.Unlock()

	c.firePhase(calculating)
	c.firePhase(completed)
	if c.cb.OnCompleted != nil {
		c.cb.OnCompleted(result)
	}
}

func (c *Controller) buildResultLocked(completed bool) domain.PlayerMatchResult {
	return domain.PlayerMatchResult{
		PlayerID:        c.playerID,
		DisplayName:     c.displayName,
		Records:         c.responseLog.Records(),
		TotalScore:      c.responseLog.TotalScore(),
		CorrectCount:    c.responseLog.CorrectCount(),
		AvgResponseTime: c.responseLog.AvgResponseTime(),
		Completed:       completed,
	}
}

func (c *Controller) cancelTimersLocked() {
	c.timer.Stop()
	if c.reviewTimer != nil {
		stopAndDrainTimer(c.reviewTimer)
		c.reviewTimer = nil
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		Phase:         c.phase,
		QuestionIndex: c.idx,
		Score:         c.score,
	}
	if c.phase == domain.PhasePlaying {
		snap.Remaining = c.timer.Remaining()
	}
	return snap
}

func (c *Controller) firePhase(snap Snapshot) {
	if c.cb.OnPhase != nil {
		c.cb.OnPhase(snap)
	}
}

func validateQuestions(questions []domain.Question, count int) error {
	if count <= 0 || len(questions) < count {
		return domain.ErrNotEnoughQuestions
	}
	for _, q := range questions[:count] {
		if len(q.Options) == 0 || q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
			return domain.ErrMalformedQuestion
		}
	}
	return nil
}
