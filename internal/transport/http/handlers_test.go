package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"kotoba-quiz-service/internal/app"
	"kotoba-quiz-service/internal/domain"
	"kotoba-quiz-service/internal/infra/memory"
)

const testSecret = "test-secret"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	service := app.NewScoreService(memory.NewScoreStore(), memory.NewUserStore())
	banks := memory.NewBankRepository(memory.NewStaticBankLoader(map[string]domain.QuestionBank{}), time.Minute)
	router := NewRouter(NewHandler(service), NewPlayHandler(service, banks), NewAuthMiddleware(testSecret))
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func authHeader(t *testing.T, userID, name string) string {
	t.Helper()
	token, err := NewToken(testSecret, userID, name, time.Hour)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return "Bearer " + token
}

func TestSubmitScoreRequiresAuth(t *testing.T) {
	server := newTestServer(t)

	body := bytes.NewBufferString(`{"score":5,"total":10,"quiz_type":"N5_reading"}`)
	resp, err := http.Post(server.URL+"/quiz/scores", "application/json", body)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestSubmitScoreAndLeaderboard(t *testing.T) {
	server := newTestServer(t)
	header := authHeader(t, "u1", "Alice")

	submit := func(score int, quizType string) *http.Response {
		t.Helper()
		payload, _ := json.Marshal(map[string]any{"score": score, "total": 10, "quiz_type": quizType})
		req, _ := http.NewRequest(http.MethodPost, server.URL+"/quiz/scores", bytes.NewReader(payload))
		req.Header.Set("Authorization", header)
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		return resp
	}

	resp := submit(7, "N5_reading")
	var result domain.SubmitResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || result.PointsEarned != 7 || result.TotalPoints != 7 {
		t.Fatalf("expected 7/7, got status=%d result=%+v", resp.StatusCode, result)
	}

	resp = submit(9, "N5_reading")
	resp.Body.Close()

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/quiz/leaderboard", nil)
	req.Header.Set("Authorization", header)
	lbResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	defer lbResp.Body.Close()

	var lb domain.Leaderboard
	if err := json.NewDecoder(lbResp.Body).Decode(&lb); err != nil {
		t.Fatalf("decode leaderboard: %v", err)
	}
	if len(lb.Entries) != 1 || lb.Entries[0].TotalScore != 9 {
		t.Fatalf("expected best-of-category 9, got %+v", lb.Entries)
	}
	if lb.PersonalBest == nil || *lb.PersonalBest != 9 {
		t.Fatalf("expected personal best 9, got %v", lb.PersonalBest)
	}
}

func TestSubmitScoreValidation(t *testing.T) {
	server := newTestServer(t)
	header := authHeader(t, "u1", "Alice")

	cases := []string{
		`{"score":11,"total":10,"quiz_type":"N5_reading"}`,
		`{"score":-1,"total":10,"quiz_type":"N5_reading"}`,
		`{"score":5,"total":10}`,
		`not json`,
	}
	for _, body := range cases {
		req, _ := http.NewRequest(http.MethodPost, server.URL+"/quiz/scores", bytes.NewBufferString(body))
		req.Header.Set("Authorization", header)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, resp.StatusCode)
		}
	}
}

func TestAuthRejectsForgedToken(t *testing.T) {
	server := newTestServer(t)

	token, err := NewToken("some-other-secret", "u1", "Mallory", time.Hour)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	req, _ := http.NewRequest(http.MethodGet, server.URL+"/quiz/leaderboard", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for forged token, got %d", resp.StatusCode)
	}
}
