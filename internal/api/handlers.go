package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/studyquest/studyquest/internal/domain"
)

// maxBodyBytes caps request bodies; snapshots are the largest payload.
const maxBodyBytes = 1 << 20

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error(), domain.ErrorCode(domain.ErrValidation))
		return false
	}
	return true
}

// ─── Snapshot ───────────────────────────────────────────────────────────────

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	snap, err := s.svc.GetSnapshot(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handlePushSnapshot(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	var snap domain.ProgressSnapshot
	if !decode(w, r, &snap) {
		return
	}
	if snap.UserID == "" {
		snap.UserID = userID
	}
	if snap.UserID != userID {
		writeError(w, http.StatusForbidden, "snapshot belongs to another user", domain.ErrorCode(domain.ErrUnauthorized))
		return
	}
	if err := s.svc.PushSnapshot(r.Context(), snap); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Events ─────────────────────────────────────────────────────────────────

type studyRequest struct {
	Minutes   int  `json:"minutes"`
	Succeeded bool `json:"succeeded"`
}

func (s *Server) handleStudy(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	var req studyRequest
	if !decode(w, r, &req) {
		return
	}
	out, err := s.svc.ApplyStudySessionCompletion(r.Context(), userID, req.Minutes, req.Succeeded)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleQuizStart(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	out, err := s.svc.StartQuiz(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type quizRequest struct {
	Correct   int `json:"correct"`
	Incorrect int `json:"incorrect"`
	Revealed  int `json:"revealed"`
}

func (s *Server) handleQuizSubmit(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	var req quizRequest
	if !decode(w, r, &req) {
		return
	}
	out, err := s.svc.ApplyQuizResult(r.Context(), userID, req.Correct, req.Incorrect, req.Revealed)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	out, err := s.svc.UseAnswerReveal(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePowerUp(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	var req struct {
		Type string `json:"type"`
	}
	if !decode(w, r, &req) {
		return
	}
	out, err := s.svc.PurchasePowerUp(r.Context(), userID, req.Type)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleQuest(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	var req struct {
		Amount int `json:"amount"`
	}
	if !decode(w, r, &req) {
		return
	}
	out, err := s.svc.AdvanceQuest(r.Context(), userID, chi.URLParam(r, "id"), req.Amount)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDailyGoal(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	var req struct {
		Minutes int `json:"minutes"`
	}
	if !decode(w, r, &req) {
		return
	}
	out, err := s.svc.SetDailyGoal(r.Context(), userID, req.Minutes)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	var req struct {
		Prompt  string `json:"prompt"`
		Content string `json:"content"`
	}
	if !decode(w, r, &req) {
		return
	}
	quiz, out, err := s.svc.GenerateQuiz(r.Context(), userID, req.Prompt, req.Content)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"quiz":    quiz,
		"outcome": out,
	})
}

// ─── History ────────────────────────────────────────────────────────────────

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	f, err := parseHistoryFilter(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	entries, err := s.svc.History(r.Context(), userID, f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleAppendHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	var e domain.HistoryEntry
	if !decode(w, r, &e) {
		return
	}
	if e.UserID == "" {
		e.UserID = userID
	}
	if e.UserID != userID {
		writeError(w, http.StatusForbidden, "entry belongs to another user", domain.ErrorCode(domain.ErrUnauthorized))
		return
	}
	stored, err := s.svc.AppendHistory(r.Context(), e)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

// parseHistoryFilter reads kind, since, until (RFC 3339) and limit.
func parseHistoryFilter(r *http.Request) (domain.HistoryFilter, error) {
	q := r.URL.Query()
	f := domain.HistoryFilter{Kind: domain.EventKind(q.Get("kind"))}

	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"since", &f.Since}, {"until", &f.Until}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, fmt.Errorf("%w: %s must be RFC 3339", domain.ErrValidation, p.name)
		}
		*p.dst = t
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, fmt.Errorf("%w: limit must be a non-negative integer", domain.ErrValidation)
		}
		f.Limit = n
	}
	return f, nil
}
