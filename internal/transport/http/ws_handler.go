package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"kotoba-quiz-service/internal/app"
	"kotoba-quiz-service/internal/domain"
	"kotoba-quiz-service/internal/engine"
)

// BankRepository loads question banks (from cache/backing store).
type BankRepository interface {
	GetBank(ctx context.Context, category string) (domain.QuestionBank, error)
}

// PlayHandler drives interactive quiz sessions over a websocket. Each
// connection owns at most one engine per mode; the three modes are fully
// independent and their countdowns keep running concurrently.
type PlayHandler struct {
	service  *app.ScoreService
	banks    BankRepository
	opts     engine.Options
	upgrader websocket.Upgrader
}

func NewPlayHandler(service *app.ScoreService, banks BankRepository) *PlayHandler {
	return NewPlayHandlerWithOptions(service, banks, engine.Options{})
}

// NewPlayHandlerWithOptions lets tests inject engine scheduling.
func NewPlayHandlerWithOptions(service *app.ScoreService, banks BankRepository, opts engine.Options) *PlayHandler {
	return &PlayHandler{
		service: service,
		banks:   banks,
		opts:    opts,
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

type startPayload struct {
	Mode  domain.Mode  `json:"mode"`
	Level domain.Level `json:"level"`
}

type answerPayload struct {
	Mode   domain.Mode `json:"mode"`
	Option *int        `json:"option,omitempty"`
	Key    string      `json:"key,omitempty"`
	Tokens []string    `json:"tokens,omitempty"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type playEvent struct {
	Mode domain.Mode `json:"mode"`
	engine.Event
}

type finishedPayload struct {
	Mode    domain.Mode           `json:"mode"`
	Session *domain.SessionResult `json:"session"`
	Points  *domain.SubmitResult  `json:"points,omitempty"`
}

type playSession struct {
	eng   *engine.Engine
	level domain.Level
	done  chan struct{}
}

// ServePlay upgrades the request and runs the play loop until the client
// disconnects. Engines (and their timers) are torn down with the
// connection so no callback outlives it.
func (h *PlayHandler) ServePlay(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "authorization required")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	engines := make(map[domain.Mode]*playSession)

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "start":
			var payload startPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errorMessage("invalid start payload")
				continue
			}
			h.handleStart(claims, payload, engines, send, closeSignals)
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errorMessage("invalid answer payload")
				continue
			}
			handleAnswer(payload, engines, send)
		default:
			send <- errorMessage("unsupported message type")
		}
	}

	close(closeSignals)
	for _, sess := range engines {
		sess.eng.Close()
		<-sess.done
	}
	close(send)
	<-writerDone
}

func (h *PlayHandler) handleStart(claims Claims, payload startPayload, engines map[domain.Mode]*playSession, send chan outboundMessage[any], closeSignals chan struct{}) {
	if !payload.Mode.Valid() {
		send <- errorMessage("unknown mode")
		return
	}
	if payload.Level == "" {
		send <- errorMessage("level is required")
		return
	}

	// Restart reuses the engine when the level is unchanged; otherwise the
	// old engine is torn down and a fresh one built over the new bank.
	if sess, ok := engines[payload.Mode]; ok {
		if sess.level == payload.Level {
			sess.eng.Start()
			return
		}
		sess.eng.Close()
		<-sess.done
		delete(engines, payload.Mode)
	}

	category := domain.Category(payload.Level, payload.Mode)
	bank, err := h.banks.GetBank(context.Background(), category)
	if err != nil {
		send <- errorMessage("question bank unavailable: " + category)
		return
	}
	eng, err := engine.NewWithOptions(payload.Mode, payload.Level, bank, h.opts)
	if err != nil {
		send <- errorMessage(err.Error())
		return
	}

	done := make(chan struct{})
	go h.forward(claims, eng, send, closeSignals, done)
	engines[payload.Mode] = &playSession{eng: eng, level: payload.Level, done: done}
	eng.Start()
}

func handleAnswer(payload answerPayload, engines map[domain.Mode]*playSession, send chan outboundMessage[any]) {
	sess, ok := engines[payload.Mode]
	if !ok {
		send <- errorMessage("no session in progress for mode " + string(payload.Mode))
		return
	}
	switch {
	case payload.Tokens != nil:
		sess.eng.SubmitTokens(payload.Tokens)
	case payload.Option != nil:
		sess.eng.SubmitOption(*payload.Option)
	case payload.Key != "":
		if idx := keyToOption(payload.Key); idx >= 0 {
			sess.eng.SubmitOption(idx)
		}
	default:
		send <- errorMessage("empty answer")
	}
}

// forward relays engine events to the client and submits the score when a
// session finishes. Submission failure is logged and the finished session
// is still reported, just without the points banner.
func (h *PlayHandler) forward(claims Claims, eng *engine.Engine, send chan outboundMessage[any], closeSignals chan struct{}, done chan struct{}) {
	defer close(done)
	for ev := range eng.Events() {
		var msg outboundMessage[any]
		if ev.Type == engine.EventSessionFinished {
			payload := finishedPayload{Mode: eng.Mode(), Session: ev.Session}
			result, err := h.service.Submit(context.Background(), claims.UserID, claims.Name, ev.Session.Category, ev.Session.Score, ev.Session.Total)
			if err != nil {
				log.Printf("score submission failed for user %s category %s: %v", claims.UserID, ev.Session.Category, err)
			} else {
				payload.Points = &result
			}
			msg = outboundMessage[any]{Type: string(ev.Type), Payload: payload}
		} else {
			msg = outboundMessage[any]{Type: string(ev.Type), Payload: playEvent{Mode: eng.Mode(), Event: ev}}
		}
		select {
		case send <- msg:
		case <-closeSignals:
			return
		}
	}
}

// keyToOption maps keyboard shortcuts to option indices: digits 1-4 and
// letters A-D (either case) select the four displayed options.
func keyToOption(key string) int {
	if len(key) != 1 {
		return -1
	}
	switch c := key[0]; {
	case c >= '1' && c <= '4':
		return int(c - '1')
	case c >= 'a' && c <= 'd':
		return int(c - 'a')
	case c >= 'A' && c <= 'D':
		return int(c - 'A')
	}
	return -1
}

func errorMessage(message string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message}}
}
