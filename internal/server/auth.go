package server

import (
	"net/http"
	"strings"
)

// authorized checks the API token on requests that create experiments.
// The token is accepted as a Bearer header or a token query parameter.
func (s *Server) authorized(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.token {
		return true
	}
	return r.URL.Query().Get("token") == s.token
}

// rateLimit applies a shared token bucket across the API endpoints.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
