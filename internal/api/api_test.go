package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/studyquest/studyquest/internal/app/engagement"
	"github.com/studyquest/studyquest/internal/app/progress"
	"github.com/studyquest/studyquest/internal/health"
	"github.com/studyquest/studyquest/internal/infra/sqlite"
	"github.com/studyquest/studyquest/internal/security"
)

type testAPI struct {
	srv    *httptest.Server
	db     *sqlite.DB
	token  string
	tokens *security.Tokens
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	engine := engagement.NewEngine(engagement.WithLocation(time.UTC))
	svc := progress.NewService(engine, progress.NewStoreWorkspace(db, engine.NewSnapshot), progress.WithHistory(db))
	tokens, err := security.NewTokens("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	token, _ := tokens.Issue("alice")

	s := NewServer(svc, tokens)
	s.EnableMetrics()
	s.SetChecker(health.NewChecker(time.Minute).AddPinger("store", db))

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &testAPI{srv: srv, db: db, token: token, tokens: tokens}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, _ := json.Marshal(b)
		rd = bytes.NewReader(raw)
	}
	req, _ := http.NewRequest(method, a.srv.URL+path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, raw
}

func errorType(t *testing.T, raw []byte) string {
	t.Helper()
	var body struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decode error body %s: %v", raw, err)
	}
	return body.Error.Type
}

// ─── Health & Metrics ───────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	a := newTestAPI(t)
	code, raw := a.do(t, "GET", "/health", "", nil)
	if code != http.StatusOK || !strings.Contains(string(raw), `"ok"`) {
		t.Errorf("GET /health = %d %s", code, raw)
	}
}

func TestAPIHealth_NoChecksRunYet(t *testing.T) {
	a := newTestAPI(t)
	code, raw := a.do(t, "GET", "/api/health", "", nil)
	if code != http.StatusOK {
		t.Errorf("GET /api/health = %d %s", code, raw)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	a := newTestAPI(t)
	a.do(t, "GET", "/health", "", nil)
	code, raw := a.do(t, "GET", "/metrics", "", nil)
	if code != http.StatusOK {
		t.Fatalf("GET /metrics = %d", code)
	}
	if !strings.Contains(string(raw), "studyquest_api_requests_total") {
		t.Error("api request counter missing from /metrics")
	}
}

// ─── Authentication ─────────────────────────────────────────────────────────

func TestAuth(t *testing.T) {
	a := newTestAPI(t)
	other, _ := security.NewTokens("other-secret", time.Hour)
	foreign, _ := other.Issue("alice")

	tests := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"garbage", "abc.def.ghi"},
		{"wrong secret", foreign},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, raw := a.do(t, "GET", "/api/progress", tt.token, nil)
			if code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", code)
			}
			if typ := errorType(t, raw); typ != "unauthorized" {
				t.Errorf("type = %q, want unauthorized", typ)
			}
		})
	}
}

// ─── Progress ───────────────────────────────────────────────────────────────

func TestGetSnapshot_Defaults(t *testing.T) {
	a := newTestAPI(t)
	code, raw := a.do(t, "GET", "/api/progress", a.token, nil)
	if code != http.StatusOK {
		t.Fatalf("status = %d %s", code, raw)
	}
	var snap map[string]any
	json.Unmarshal(raw, &snap)
	if snap["userId"] != "alice" || snap["level"] != float64(1) {
		t.Errorf("snapshot = %v", snap)
	}
}

func TestStudy_UpdatesSnapshot(t *testing.T) {
	a := newTestAPI(t)
	code, raw := a.do(t, "POST", "/api/progress/study", a.token, map[string]any{"minutes": 20, "succeeded": true})
	if code != http.StatusOK {
		t.Fatalf("status = %d %s", code, raw)
	}
	var out engagement.Outcome
	json.Unmarshal(raw, &out)
	if out.EventDelta != 100 {
		t.Errorf("EventDelta = %d, want 100", out.EventDelta)
	}

	_, raw = a.do(t, "GET", "/api/progress", a.token, nil)
	var snap struct {
		Points         int64 `json:"points"`
		TotalStudyTime int   `json:"totalStudyTime"`
	}
	json.Unmarshal(raw, &snap)
	if snap.Points != out.Points || snap.TotalStudyTime != 20 {
		t.Errorf("snapshot points %d time %d, outcome points %d", snap.Points, snap.TotalStudyTime, out.Points)
	}
}

func TestErrorMapping(t *testing.T) {
	a := newTestAPI(t)
	tests := []struct {
		name     string
		method   string
		path     string
		body     any
		wantCode int
		wantType string
	}{
		{"bad json", "POST", "/api/progress/study", "{nope", http.StatusBadRequest, "validation_error"},
		{"negative minutes", "POST", "/api/progress/study", map[string]any{"minutes": -1, "succeeded": true}, http.StatusBadRequest, "validation_error"},
		{"too many reveals", "POST", "/api/progress/quiz", map[string]any{"correct": 1, "revealed": 4}, http.StatusBadRequest, "validation_error"},
		{"insufficient points", "POST", "/api/progress/powerups", map[string]any{"type": "double_points"}, http.StatusPaymentRequired, "insufficient_points"},
		{"unknown powerup", "POST", "/api/progress/powerups", map[string]any{"type": "nope"}, http.StatusBadRequest, "validation_error"},
		{"unknown quest", "POST", "/api/progress/quests/nope", map[string]any{"amount": 1}, http.StatusNotFound, "not_found"},
		{"zero goal", "PUT", "/api/progress/daily-goal", map[string]any{"minutes": 0}, http.StatusBadRequest, "validation_error"},
		{"no generator", "POST", "/api/progress/generate", map[string]any{"prompt": "quiz"}, http.StatusServiceUnavailable, "unavailable"},
		{"bad since", "GET", "/api/history?since=yesterday", nil, http.StatusBadRequest, "validation_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, raw := a.do(t, tt.method, tt.path, a.token, tt.body)
			if code != tt.wantCode {
				t.Errorf("status = %d, want %d (%s)", code, tt.wantCode, raw)
			}
			if typ := errorType(t, raw); typ != tt.wantType {
				t.Errorf("type = %q, want %q", typ, tt.wantType)
			}
		})
	}
}

func TestReveal_LimitReached(t *testing.T) {
	a := newTestAPI(t)
	a.do(t, "POST", "/api/progress/quiz/start", a.token, nil)
	for i := 0; i < engagement.MaxRevealsPerQuiz; i++ {
		if code, raw := a.do(t, "POST", "/api/progress/reveal", a.token, nil); code != http.StatusOK {
			t.Fatalf("reveal %d = %d %s", i+1, code, raw)
		}
	}
	code, raw := a.do(t, "POST", "/api/progress/reveal", a.token, nil)
	if code != http.StatusTooManyRequests || errorType(t, raw) != "limit_reached" {
		t.Errorf("4th reveal = %d %s", code, raw)
	}
}

func TestPowerUp_AlreadyActive(t *testing.T) {
	a := newTestAPI(t)
	a.do(t, "PUT", "/api/progress", a.token, map[string]any{"points": 500, "level": 4})

	if code, raw := a.do(t, "POST", "/api/progress/powerups", a.token, map[string]any{"type": "quiz_boost"}); code != http.StatusOK {
		t.Fatalf("purchase = %d %s", code, raw)
	}
	code, raw := a.do(t, "POST", "/api/progress/powerups", a.token, map[string]any{"type": "quiz_boost"})
	if code != http.StatusConflict || errorType(t, raw) != "already_active" {
		t.Errorf("second purchase = %d %s", code, raw)
	}
}

func TestPushSnapshot(t *testing.T) {
	a := newTestAPI(t)

	code, raw := a.do(t, "PUT", "/api/progress", a.token, map[string]any{"userId": "alice", "points": 300, "level": 3})
	if code != http.StatusNoContent {
		t.Fatalf("push = %d %s", code, raw)
	}
	_, raw = a.do(t, "GET", "/api/progress", a.token, nil)
	if !strings.Contains(string(raw), `"points":300`) {
		t.Errorf("snapshot after push = %s", raw)
	}

	code, _ = a.do(t, "PUT", "/api/progress", a.token, map[string]any{"userId": "mallory", "points": 1})
	if code != http.StatusForbidden {
		t.Errorf("foreign push = %d, want 403", code)
	}
	code, _ = a.do(t, "PUT", "/api/progress", a.token, map[string]any{"points": -5})
	if code != http.StatusBadRequest {
		t.Errorf("negative push = %d, want 400", code)
	}
}

// ─── History ────────────────────────────────────────────────────────────────

func TestHistory(t *testing.T) {
	a := newTestAPI(t)
	a.do(t, "POST", "/api/progress/study", a.token, map[string]any{"minutes": 10, "succeeded": true})
	a.do(t, "POST", "/api/progress/quiz", a.token, map[string]any{"correct": 3, "incorrect": 1})

	code, raw := a.do(t, "POST", "/api/history", a.token, map[string]any{"kind": "study_completed", "durationMinutes": 5})
	if code != http.StatusCreated {
		t.Fatalf("append = %d %s", code, raw)
	}

	code, raw = a.do(t, "GET", "/api/history?kind=study_completed&limit=10", a.token, nil)
	if code != http.StatusOK {
		t.Fatalf("list = %d %s", code, raw)
	}
	var body struct {
		Entries []struct {
			Kind   string `json:"kind"`
			UserID string `json:"userId"`
		} `json:"entries"`
	}
	json.Unmarshal(raw, &body)
	if len(body.Entries) != 2 {
		t.Fatalf("entries = %d, want 2 (%s)", len(body.Entries), raw)
	}
	for _, e := range body.Entries {
		if e.Kind != "study_completed" || e.UserID != "alice" {
			t.Errorf("entry = %+v", e)
		}
	}

	code, _ = a.do(t, "POST", "/api/history", a.token, map[string]any{"userId": "bob", "kind": "study_completed"})
	if code != http.StatusForbidden {
		t.Errorf("foreign append = %d, want 403", code)
	}
}

func TestStatusFor_Default(t *testing.T) {
	if got := statusFor(io.ErrUnexpectedEOF); got != http.StatusInternalServerError {
		t.Errorf("statusFor(unknown) = %d, want 500", got)
	}
}
