package engine

import (
	"time"

	"quiz-contest-engine/internal/domain"
)

// ResponseLog is the append-only record of per-question outcomes for one
// player in one match. Exactly one record may exist per question.
type ResponseLog struct {
	questionCount    int
	questionDuration time.Duration
	records          []domain.ResponseRecord
	seen             map[string]struct{}
}

func NewResponseLog(questionCount int, questionDuration time.Duration) *ResponseLog {
	return &ResponseLog{
		questionCount:    questionCount,
		questionDuration: questionDuration,
		records:          make([]domain.ResponseRecord, 0, questionCount),
		seen:             make(map[string]struct{}, questionCount),
	}
}

// Append stores a record, rejecting a second record for the same question.
// A rejection indicates a controller bug, not a user-facing condition.
func (l *ResponseLog) Append(rec domain.ResponseRecord) error {
	if _, ok := l.seen[rec.QuestionID]; ok {
		return domain.ErrDuplicateResponse
	}
	l.seen[rec.QuestionID] = struct{}{}
	l.records = append(l.records, rec)
	return nil
}

// Len returns the number of recorded responses.
func (l *ResponseLog) Len() int {
	return len(l.records)
}

// Records returns a copy of the log in question order.
func (l *ResponseLog) Records() []domain.ResponseRecord {
	out := make([]domain.ResponseRecord, len(l.records))
	copy(out, l.records)
	return out
}

// TotalScore sums the points of every recorded response.
func (l *ResponseLog) TotalScore() int {
	total := 0
	for _, rec := range l.records {
		total += rec.Points
	}
	return total
}

// CorrectCount counts the correctly answered questions.
func (l *ResponseLog) CorrectCount() int {
	count := 0
	for _, rec := range l.records {
		if rec.Correct {
			count++
		}
	}
	return count
}

// AvgResponseTime averages response times over the full question count.
// Questions without a record contribute the whole per-question duration, so
// slow or absent play is penalized in the ranking tie-break.
func (l *ResponseLog) AvgResponseTime() time.Duration {
	if l.questionCount == 0 {
		return 0
	}
	var total time.Duration
	for _, rec := range l.records {
		total += rec.ResponseTime
	}
	missing := l.questionCount - len(l.records)
	if missing > 0 {
		total += time.Duration(missing) * l.questionDuration
	}
	return total / time.Duration(l.questionCount)
}
