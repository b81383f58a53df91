package server

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/personaldrive/semidx/internal/validate"
)

type contextKey string

const userIDKey contextKey = "user_id"

// requireAPIKey rejects requests whose X-API-Key header does not match the
// configured key. When no key is configured the server refuses all API
// traffic rather than running open.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := s.config.Server.APIKey
		if key == "" {
			s.respondError(w, http.StatusUnauthorized, "server has no API key configured")
			return
		}
		got := r.Header.Get("X-API-Key")
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			s.respondError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireUser extracts and validates the X-User-Id header. File routes need a
// user identity for ownership checks; identity is asserted by the gateway in
// front of this service.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-Id")
		if err := validate.UserID(userID); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid or missing X-User-Id header")
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// userID returns the validated user from the request context.
func userID(r *http.Request) string {
	v, _ := r.Context().Value(userIDKey).(string)
	return v
}
