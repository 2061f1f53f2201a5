package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/sirupsen/logrus"

	"github.com/jonathan/easy-apply-agent/internal/automation"
	"github.com/jonathan/easy-apply-agent/internal/db"
	"github.com/jonathan/easy-apply-agent/internal/registry"
	"github.com/jonathan/easy-apply-agent/internal/server/middleware"
	"github.com/jonathan/easy-apply-agent/internal/server/ratelimit"
	"github.com/jonathan/easy-apply-agent/internal/types"
)

// Store is the persistence the API reads from.
type Store interface {
	LoadProfile(ctx context.Context, caller string, sealer db.Sealer) (*types.CandidateProfile, *types.Credentials, error)
	ListApplications(ctx context.Context, caller string, limit int) ([]db.Application, error)
	ListRuns(ctx context.Context, caller string, limit int) ([]db.AutomationRun, error)
}

// Runner executes one automation run.
type Runner interface {
	Run(ctx context.Context, req automation.Request, sink types.StatusSink) (*types.RunResult, error)
}

// Config holds server configuration
type Config struct {
	Addr            string
	KeepAlive       time.Duration
	ShutdownTimeout time.Duration
}

// Deps are the collaborators a Server needs.
type Deps struct {
	Store       Store
	Sealer      db.Sealer
	Runner      Runner
	Registry    *registry.Registry
	Auth        middleware.TokenValidator
	RateLimiter *ratelimit.Limiter
	// RunContext bounds every run started through the API. Runs outlive the
	// request that starts them.
	RunContext context.Context
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	cfg        Config
	deps       Deps
	log        logrus.FieldLogger
}

// New creates a new server instance
func New(cfg Config, deps Deps, log logrus.FieldLogger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 15 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if deps.RunContext == nil {
		deps.RunContext = context.Background()
	}

	s := &Server{cfg: cfg, deps: deps, log: log}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /runs", s.handleStartRun)
	api.HandleFunc("POST /runs/stop", s.handleStopRun)
	api.HandleFunc("GET /runs/active", s.handleActiveRun)
	api.HandleFunc("GET /runs/events", s.handleRunEvents)
	api.HandleFunc("GET /runs", s.handleListRuns)
	api.HandleFunc("GET /applications", s.handleListApplications)

	var protected http.Handler = api
	if s.deps.RateLimiter != nil {
		protected = s.withRateLimit(protected)
	}
	protected = middleware.AuthMiddleware(s.deps.Auth)(protected)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("/", protected)

	return s.withLogging(s.withCORS(mux))
}

// Start serves until ctx ends, then drains active runs and shuts down.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.httpServer.Addr).Info("Server starting")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if n := s.deps.Registry.Len(); n > 0 {
		s.log.WithField("active_runs", n).Info("Stopping active runs")
	}
	if err := s.deps.Registry.Shutdown(shutdownCtx); err != nil {
		s.log.WithError(err).Warn("Active runs did not finish before shutdown")
	}
	if s.deps.RateLimiter != nil {
		s.deps.RateLimiter.Stop()
	}
	s.log.Info("Server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withLogging logs each request after it completes.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   m.Code,
			"bytes":    m.Written,
			"duration": m.Duration,
			"remote":   r.RemoteAddr,
		}).Info("Request handled")
	})
}

// withRateLimit throttles per caller, falling back to the client IP.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.deps.RateLimiter.Allow(clientID(r), r.URL.Path, r.Method)
		setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientID(r *http.Request) string {
	if caller, err := middleware.GetCaller(r); err == nil {
		return caller
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]any{
		"error":   "rate_limit_exceeded",
		"message": "Rate limit exceeded. Please try again later.",
		"limit":   info.Limit,
	}
	if info.RetryAfter > 0 {
		secs := int(info.RetryAfter.Round(time.Second).Seconds())
		response["retry_after"] = secs
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	s.log.WithField("limit", info.Limit).Warn("Rate limit exceeded")
	s.jsonResponse(w, http.StatusTooManyRequests, response)
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.WithError(err).Error("Error encoding JSON response")
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// errorFor writes err with the status HTTPStatus maps it to.
func (s *Server) errorFor(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		s.log.WithError(err).Error("Request failed")
		s.errorResponse(w, status, "internal server error")
		return
	}
	s.errorResponse(w, status, err.Error())
}
