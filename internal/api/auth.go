package api

import (
	"net/http"
	"strings"

	"github.com/studyquest/studyquest/internal/domain"
	"github.com/studyquest/studyquest/internal/security"
)

// authenticate verifies the bearer token and stores the user id in the
// request context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.tokens == nil {
			writeError(w, http.StatusUnauthorized, "authentication not configured", domain.ErrorCode(domain.ErrUnauthorized))
			return
		}
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token", domain.ErrorCode(domain.ErrUnauthorized))
			return
		}
		userID, err := s.tokens.Verify(strings.TrimSpace(token))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(security.WithUserID(r.Context(), userID)))
	})
}

// userID returns the authenticated user or writes a 401.
func (s *Server) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := s.identity.UserID(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return "", false
	}
	return id, true
}
