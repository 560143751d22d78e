package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"kotoba-quiz-service/internal/app"
	"kotoba-quiz-service/internal/domain"
)

// Handler serves the REST surface: score submission and the leaderboard.
type Handler struct {
	service *app.ScoreService
}

func NewHandler(service *app.ScoreService) *Handler {
	return &Handler{service: service}
}

// NewRouter assembles the full HTTP surface. Everything under /quiz
// requires an authenticated user.
func NewRouter(h *Handler, ws *PlayHandler, auth *AuthMiddleware) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/quiz").Subrouter()
	api.Use(auth.Middleware)
	api.HandleFunc("/scores", h.SubmitScore).Methods(http.MethodPost)
	api.HandleFunc("/leaderboard", h.Leaderboard).Methods(http.MethodGet)
	api.HandleFunc("/play", ws.ServePlay).Methods(http.MethodGet)
	return r
}

type submitScoreRequest struct {
	Score    int    `json:"score"`
	Total    int    `json:"total"`
	QuizType string `json:"quiz_type"`
}

// SubmitScore appends a ScoreRecord for the authenticated user and
// returns the points awarded plus the new balance.
func (h *Handler) SubmitScore(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "authorization required")
		return
	}

	var req submitScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if req.QuizType == "" {
		respondWithError(w, http.StatusBadRequest, "quiz_type is required")
		return
	}

	result, err := h.service.Submit(r.Context(), claims.UserID, claims.Name, req.QuizType, req.Score, req.Total)
	if errors.Is(err, domain.ErrInvalidScore) {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		log.Printf("submit score for user %s: %v", claims.UserID, err)
		respondWithError(w, http.StatusInternalServerError, "failed to submit score")
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// Leaderboard returns the top-20 ranking plus the requester's own total.
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "authorization required")
		return
	}

	lb, err := h.service.Leaderboard(r.Context(), claims.UserID)
	if err != nil {
		log.Printf("leaderboard: %v", err)
		respondWithError(w, http.StatusInternalServerError, "failed to load leaderboard")
		return
	}
	respondWithJSON(w, http.StatusOK, lb)
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
