package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"quiz-contest-engine/internal/app"
	"quiz-contest-engine/internal/domain"
	"quiz-contest-engine/internal/engine"
)

type WSHandler struct {
	service  *app.MatchService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.MatchService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Option int `json:"option"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// questionPayload is the client-facing view of a question. The correct option
// and explanation stay server-side until the review frame.
type questionPayload struct {
	Index   int      `json:"index"`
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

type phasePayload struct {
	Phase         domain.Phase `json:"phase"`
	QuestionIndex int          `json:"questionIndex"`
	RemainingMs   int64        `json:"remainingMs"`
	Score         int          `json:"score"`
}

type tickPayload struct {
	QuestionIndex int   `json:"questionIndex"`
	RemainingMs   int64 `json:"remainingMs"`
}

type reviewPayload struct {
	QuestionIndex  int    `json:"questionIndex"`
	SelectedOption *int   `json:"selectedOption"`
	Correct        bool   `json:"correct"`
	Points         int    `json:"points"`
	ResponseTimeMs int64  `json:"responseTimeMs"`
	CorrectIndex   int    `json:"correctIndex"`
	Explanation    string `json:"explanation,omitempty"`
}

type answerResult struct {
	QuestionIndex  int   `json:"questionIndex"`
	Correct        bool  `json:"correct"`
	Points         int   `json:"points"`
	TotalScore     int   `json:"totalScore"`
	ResponseTimeMs int64 `json:"responseTimeMs"`
}

type resultPayload struct {
	PlayerID          string `json:"playerId"`
	DisplayName       string `json:"displayName"`
	TotalScore        int    `json:"totalScore"`
	CorrectCount      int    `json:"correctCount"`
	AvgResponseTimeMs int64  `json:"avgResponseTimeMs"`
	Completed         bool   `json:"completed"`
	Rank              int    `json:"rank"`
	PrizeAmount       int64  `json:"prizeAmount"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the match
// use cases. One connection serves one participant; disconnecting does not
// abandon the run, the player may reconnect with the same ids.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	poolID := r.URL.Query().Get("poolId")
	playerID := r.URL.Query().Get("playerId")
	displayName := r.URL.Query().Get("name")
	if poolID == "" || playerID == "" || displayName == "" {
		http.Error(w, "missing poolId, playerId, or name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	joined, err := h.service.Join(r.Context(), poolID, playerID, displayName)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	updates, cancel, err := h.service.Subscribe(r.Context(), poolID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	events, err := h.service.PlayerEvents(r.Context(), poolID, playerID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	pumpsDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug().Err(err).Str("player_id", playerID).Msg("ws write error")
				return
			}
		}
	}()

	go func() {
		defer close(pumpsDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "standings", Payload: update}:
				case <-closeSignals:
					return
				}
			case event := <-events:
				for _, msg := range h.eventFrames(poolID, playerID, event) {
					select {
					case send <- msg:
					case <-closeSignals:
						return
					}
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "joined", Payload: joined}
	// A reconnecting player needs the open question immediately; a fresh join
	// gets it again from the buffered playing-phase event, which is harmless.
	if question, idx, err := h.service.CurrentQuestion(r.Context(), poolID, playerID); err == nil {
		send <- outboundMessage[any]{Type: "question", Payload: sanitizeQuestion(question, idx)}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
				continue
			}
			rec, snap, err := h.service.Answer(r.Context(), poolID, playerID, payload.Option)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "answerResult", Payload: answerResult{
				QuestionIndex:  snap.QuestionIndex,
				Correct:        rec.Correct,
				Points:         rec.Points,
				TotalScore:     snap.Score,
				ResponseTimeMs: rec.ResponseTime.Milliseconds(),
			}}
		case "exit":
			if err := h.service.Exit(r.Context(), poolID, playerID); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-pumpsDone
	close(send)
	<-writerDone
}

// eventFrames translates one engine notification into client frames. A playing
// phase change additionally carries the freshly opened question.
func (h *WSHandler) eventFrames(poolID, playerID string, event app.PlayerEvent) []outboundMessage[any] {
	switch event.Type {
	case app.EventPhase:
		frames := []outboundMessage[any]{{Type: "phase", Payload: phasePayload{
			Phase:         event.Snapshot.Phase,
			QuestionIndex: event.Snapshot.QuestionIndex,
			RemainingMs:   event.Snapshot.Remaining.Milliseconds(),
			Score:         event.Snapshot.Score,
		}}}
		if event.Snapshot.Phase == domain.PhasePlaying {
			if question, idx, err := h.service.CurrentQuestion(context.Background(), poolID, playerID); err == nil {
				frames = append(frames, outboundMessage[any]{Type: "question", Payload: sanitizeQuestion(question, idx)})
			}
		}
		return frames
	case app.EventTick:
		return []outboundMessage[any]{{Type: "tick", Payload: tickPayload{
			QuestionIndex: event.QuestionIndex,
			RemainingMs:   event.Remaining.Milliseconds(),
		}}}
	case app.EventReview:
		return []outboundMessage[any]{{Type: "review", Payload: reviewFrame(event.Review)}}
	case app.EventCompleted, app.EventAbandoned:
		return []outboundMessage[any]{{Type: "result", Payload: resultFrame(*event.Result)}}
	case app.EventError:
		return []outboundMessage[any]{{Type: "error", Payload: errorPayload{Message: event.Err.Error()}}}
	default:
		return nil
	}
}

func sanitizeQuestion(q domain.Question, idx int) questionPayload {
	return questionPayload{
		Index:   idx,
		ID:      q.ID,
		Prompt:  q.Prompt,
		Options: q.Options,
	}
}

func reviewFrame(review *engine.Review) reviewPayload {
	return reviewPayload{
		QuestionIndex:  review.QuestionIndex,
		SelectedOption: review.Record.SelectedOption,
		Correct:        review.Record.Correct,
		Points:         review.Record.Points,
		ResponseTimeMs: review.Record.ResponseTime.Milliseconds(),
		CorrectIndex:   review.CorrectIndex,
		Explanation:    review.Explanation,
	}
}

func resultFrame(result domain.PlayerMatchResult) resultPayload {
	return resultPayload{
		PlayerID:          result.PlayerID,
		DisplayName:       result.DisplayName,
		TotalScore:        result.TotalScore,
		CorrectCount:      result.CorrectCount,
		AvgResponseTimeMs: result.AvgResponseTime.Milliseconds(),
		Completed:         result.Completed,
		Rank:              result.Rank,
		PrizeAmount:       result.PrizeAmount,
	}
}
