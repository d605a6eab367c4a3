package server

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/splitpick/splitpick/internal/config"
	"github.com/splitpick/splitpick/internal/engine"
	"github.com/splitpick/splitpick/internal/store"
)

// Server exposes the engine over a narrow HTTP API.
type Server struct {
	engine    *engine.Engine
	store     *store.SQLiteStore
	cfg       config.Config
	token     string
	limiter   *rate.Limiter
	router    *http.ServeMux
	logger    *slog.Logger
	startTime time.Time
}

func New(eng *engine.Engine, s *store.SQLiteStore, cfg config.Config) *Server {
	token := cfg.AuthToken
	if token == "" {
		token = generateToken()
	}

	srv := &Server{
		engine:    eng,
		store:     s,
		cfg:       cfg,
		token:     token,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
		router:    http.NewServeMux(),
		logger:    slog.Default(),
		startTime: time.Now(),
	}

	srv.setupRoutes()
	return srv
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth)
	s.router.Handle("/api/experiments", s.rateLimit(http.HandlerFunc(s.handleExperiments)))
	s.router.Handle("/api/experiments/", s.rateLimit(http.HandlerFunc(s.handleExperimentSubpath)))
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)

	s.logger.Info("server listening", "addr", addr)
	fmt.Printf("splitpick running on http://localhost:%d\n", s.cfg.Port)
	fmt.Printf("API token: %s\n", s.token)
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop")

	return http.ListenAndServe(addr, s.router)
}

func (s *Server) Token() string {
	return s.token
}

func (s *Server) StartTime() time.Time {
	return s.startTime
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func generateToken() string {
	bytes := make([]byte, 4)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to a simple token if crypto/rand fails
		return "a1b2c3d4"
	}
	return hex.EncodeToString(bytes)
}
