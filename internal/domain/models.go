package domain

import "time"

// Phase is a named state of the per-player match state machine.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseLoading     Phase = "loading"
	PhasePlaying     Phase = "playing"
	PhaseReviewing   Phase = "reviewing"
	PhaseCalculating Phase = "calculating"
	PhaseCompleted   Phase = "completed"
	PhaseAbandoned   Phase = "abandoned"
	PhaseError       Phase = "error"
)

// Terminal reports whether no further transitions are possible from p.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseAbandoned || p == PhaseError
}

// Question is a single multiple-choice question. Immutable once loaded into a match.
type Question struct {
	ID           string   `json:"id"`
	Prompt       string   `json:"prompt"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	Explanation  string   `json:"explanation,omitempty"`
	Difficulty   string   `json:"difficulty,omitempty"`
	Category     string   `json:"category,omitempty"`
	Language     string   `json:"language,omitempty"`
}

// QuestionSet is a named, ordered bank of questions for one contest category.
type QuestionSet struct {
	ID        string     `json:"id"`
	Questions []Question `json:"questions"`
}

// MatchConfig carries the timing and scoring constants for one match.
// Supplied once at match start and never mutated afterwards.
type MatchConfig struct {
	QuestionCount   int           `json:"questionCount"`
	TimePerQuestion time.Duration `json:"timePerQuestion"`
	ReviewDelay     time.Duration `json:"reviewDelay"`
	BasePoints      int           `json:"basePoints"`
	BonusPerSecond  int           `json:"bonusPerSecond"`
}

// ResponseRecord is the frozen outcome of one question for one player.
// SelectedOption is nil when the question timed out.
type ResponseRecord struct {
	QuestionID     string        `json:"questionId"`
	SelectedOption *int          `json:"selectedOption"`
	Correct        bool          `json:"correct"`
	ResponseTime   time.Duration `json:"responseTimeMs"`
	Points         int           `json:"points"`
}

// TimedOut reports whether the record was produced by timer expiry rather than an answer.
func (r ResponseRecord) TimedOut() bool {
	return r.SelectedOption == nil
}

// PlayerMatchResult is the per-player outcome handed to ranking and settlement.
// Rank and PrizeAmount stay zero until every participant is terminal.
type PlayerMatchResult struct {
	PlayerID        string           `json:"playerId"`
	DisplayName     string           `json:"displayName"`
	Records         []ResponseRecord `json:"records"`
	TotalScore      int              `json:"totalScore"`
	CorrectCount    int              `json:"correctCount"`
	AvgResponseTime time.Duration    `json:"avgResponseTimeMs"`
	Completed       bool             `json:"completed"`
	Rank            int              `json:"rank"`
	PrizeAmount     int64            `json:"prizeAmount"`
}

// ContestPool is an externally defined contest configuration. Amounts are in
// the smallest currency unit. Rewards[i] is the payout for rank i+1.
type ContestPool struct {
	ID           string  `json:"id"`
	QuestionSet  string  `json:"questionSet"`
	EntryFee     int64   `json:"entryFee"`
	PlayerCount  int     `json:"playerCount"`
	NetPrizePool int64   `json:"netPrizePool"`
	Rewards      []int64 `json:"rewards"`
	WinnerCount  int     `json:"winnerCount"`

	QuestionCount     int `json:"questionCount"`
	TimePerQuestionMs int `json:"timePerQuestionMs"`
	ReviewDelayMs     int `json:"reviewDelayMs"`
	BasePoints        int `json:"basePoints"`
	BonusPerSecond    int `json:"bonusPerSecond"`
}

// Standing is a snapshot-friendly view of one participant mid-match or after settlement.
type Standing struct {
	PlayerID      string `json:"playerId"`
	DisplayName   string `json:"displayName"`
	Phase         Phase  `json:"phase"`
	QuestionIndex int    `json:"questionIndex"`
	Score         int    `json:"score"`
	Rank          int    `json:"rank,omitempty"`
	PrizeAmount   int64  `json:"prizeAmount,omitempty"`
}

// Standings captures the ordered board for one match instance.
type Standings struct {
	MatchID   string     `json:"matchId"`
	PoolID    string     `json:"poolId"`
	Settled   bool       `json:"settled"`
	Entries   []Standing `json:"entries"`
	UpdatedAt time.Time  `json:"updatedAt"`
}
