// Package server assembles the SkillPath HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/HerbHall/skillpath/internal/auth"
	"github.com/HerbHall/skillpath/internal/searchlog"
	"github.com/HerbHall/skillpath/internal/session"
	"github.com/HerbHall/skillpath/internal/version"
)

// SearchLog lists persisted searches and launches.
type SearchLog interface {
	ListSearches(ctx context.Context, f searchlog.Filter) ([]searchlog.Search, error)
	ListLaunches(ctx context.Context, f searchlog.Filter) ([]searchlog.Launch, error)
}

// RouteRegistrar mounts additional API routes.
type RouteRegistrar interface {
	RegisterRoutes(mux *http.ServeMux)
}

// Deps are the collaborators the server exposes. Only Sessions is required.
type Deps struct {
	Sessions  *session.Manager
	Live      http.Handler
	SearchLog SearchLog
	Auth      *auth.Authenticator
	Gatherer  prometheus.Gatherer
	Routes    []RouteRegistrar
}

// Server is the SkillPath HTTP server.
type Server struct {
	httpServer *http.Server
	deps       Deps
	logger     *zap.Logger
	mux        *http.ServeMux
	api        *http.ServeMux
	started    time.Time
}

// New creates a Server listening on addr.
func New(addr string, readHeaderTimeout time.Duration, deps Deps, logger *zap.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		// No write timeout: websocket sessions are long-lived.
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: readHeaderTimeout,
			IdleTimeout:       60 * time.Second,
		},
		deps:    deps,
		logger:  logger,
		mux:     mux,
		api:     http.NewServeMux(),
		started: time.Now(),
	}

	s.registerCoreRoutes()
	s.registerAPIRoutes()

	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.mux }

// registerCoreRoutes sets up routes that never require a token.
func (s *Server) registerCoreRoutes() {
	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	if s.deps.Gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	}

	var api http.Handler = s.api
	if s.deps.Auth != nil {
		s.deps.Auth.Unauthorized = func(w http.ResponseWriter, r *http.Request, detail string) {
			Unauthorized(w, detail, r.URL.Path)
		}
		api = s.deps.Auth.Middleware(api)
	}
	s.mux.Handle("/api/v1/", api)
}

// registerAPIRoutes sets up the token-protected routes.
func (s *Server) registerAPIRoutes() {
	s.api.HandleFunc("GET /api/v1/sessions", s.handleSessions)
	s.api.HandleFunc("GET /api/v1/sessions/{id}", s.handleSession)
	s.api.HandleFunc("GET /api/v1/sessions/{id}/history", s.handleHistory)
	s.api.HandleFunc("GET /api/v1/searches", s.handleSearches)
	s.api.HandleFunc("GET /api/v1/launches", s.handleLaunches)
	if s.deps.Live != nil {
		s.api.Handle("GET /api/v1/live", s.deps.Live)
	}
	for _, r := range s.deps.Routes {
		r.RegisterRoutes(s.api)
	}
	s.api.HandleFunc("/api/v1/", func(w http.ResponseWriter, r *http.Request) {
		NotFound(w, "no such endpoint", r.URL.Path)
	})
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("X-SkillPath-Version", version.Short())
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"service":  "skillpath",
		"version":  version.Map(),
		"sessions": s.deps.Sessions.Count(),
		"uptime":   time.Since(s.started).Round(time.Second).String(),
	})
}

// handleSessions lists open sessions, oldest first.
func (s *Server) handleSessions(w http.ResponseWriter, _ *http.Request) {
	list := s.deps.Sessions.List()
	out := make([]session.View, len(list))
	for i, sess := range list {
		out[i] = sess.View()
	}
	writeJSON(w, http.StatusOK, out)
}

// handleSession returns one open session.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.deps.Sessions.Get(r.PathValue("id"))
	if !ok {
		NotFound(w, "session not found", r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

// historyResponse is the response for GET /api/v1/sessions/{id}/history.
type historyResponse struct {
	SessionID string           `json:"session_id"`
	Searches  []session.Record `json:"searches"`
}

// handleHistory returns the session's searches in the order they were made.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.deps.Sessions.Get(r.PathValue("id"))
	if !ok {
		NotFound(w, "session not found", r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{
		SessionID: sess.ID,
		Searches:  sess.History.Entries(),
	})
}

func (s *Server) handleSearches(w http.ResponseWriter, r *http.Request) {
	f, ok := s.searchFilter(w, r)
	if !ok {
		return
	}
	out, err := s.deps.SearchLog.ListSearches(r.Context(), f)
	if err != nil {
		s.logger.Error("list searches", zap.Error(err))
		InternalError(w, "failed to read search log", r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLaunches(w http.ResponseWriter, r *http.Request) {
	f, ok := s.searchFilter(w, r)
	if !ok {
		return
	}
	out, err := s.deps.SearchLog.ListLaunches(r.Context(), f)
	if err != nil {
		s.logger.Error("list launches", zap.Error(err))
		InternalError(w, "failed to read search log", r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// searchFilter parses session_id and limit. It writes the error response and
// returns false when the request cannot be served.
func (s *Server) searchFilter(w http.ResponseWriter, r *http.Request) (searchlog.Filter, bool) {
	if s.deps.SearchLog == nil {
		Unavailable(w, "search log is disabled", r.URL.Path)
		return searchlog.Filter{}, false
	}
	q := r.URL.Query()
	f := searchlog.Filter{SessionID: q.Get("session_id")}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > searchlog.MaxLimit {
			BadRequest(w, fmt.Sprintf("limit must be an integer between 1 and %d", searchlog.MaxLimit), r.URL.Path)
			return searchlog.Filter{}, false
		}
		f.Limit = n
	}
	return f, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
