package domain

import "errors"

var (
	// ErrPoolNotFound indicates the contest pool definition could not be loaded.
	ErrPoolNotFound = errors.New("contest pool not found")
	// ErrQuestionSetNotFound indicates the question bank could not be loaded.
	ErrQuestionSetNotFound = errors.New("question set not found")
	// ErrMatchNotFound is returned when a match instance has not been started.
	ErrMatchNotFound = errors.New("match not found")
	// ErrPlayerNotFound is returned when a player acts before joining.
	ErrPlayerNotFound = errors.New("player not found in match")
	// ErrMatchFull is returned when a pool already has its full player count.
	ErrMatchFull = errors.New("match already has the full player count")
	// ErrNotEnoughQuestions indicates the loaded bank is shorter than questionCount.
	ErrNotEnoughQuestions = errors.New("question set shorter than question count")
	// ErrMalformedQuestion indicates a correct-answer index outside the options.
	ErrMalformedQuestion = errors.New("question correct index out of options range")
	// ErrNoActiveQuestion is returned for an answer outside the Playing phase,
	// including a second answer to an already settled question.
	ErrNoActiveQuestion = errors.New("no question awaiting an answer")
	// ErrOptionOutOfRange is returned for an answer index outside the options.
	ErrOptionOutOfRange = errors.New("selected option out of range")
	// ErrDuplicateResponse signals a second record for an already answered
	// question. This is a controller bug, never a user-facing condition.
	ErrDuplicateResponse = errors.New("duplicate response for question")
	// ErrMatchFinished is returned for actions against a terminal match phase.
	ErrMatchFinished = errors.New("match already finished")
	// ErrResultNotReady is returned when a final result is requested before
	// the player's run reached a terminal phase.
	ErrResultNotReady = errors.New("match result not ready")
	// ErrInvalidPool indicates a pool definition that fails static validation.
	ErrInvalidPool = errors.New("invalid contest pool definition")
)
