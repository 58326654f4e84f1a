// Package http exposes the ledger, budget and recurring services as a JSON
// API.
package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
)

const (
	maxBodyBytes      = 64 << 10
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 15 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 2 * time.Minute
)

// Deps are the collaborators a Server needs. Ready may be nil, in which case
// /readyz always succeeds.
type Deps struct {
	Ledger    *services.LedgerService
	Budgets   *services.BudgetService
	Processor *services.RecurringProcessor
	Clock     core.Clock
	Location  *time.Location
	Logger    *applog.Logger
	Ready     func(ctx context.Context) error

	// WriteRequestsPerMinute caps mutating requests per client IP.
	// Zero uses the limiter default.
	WriteRequestsPerMinute int
}

// Server is an http.Server wired to the finance services.
type Server struct {
	http.Server

	ledger    *services.LedgerService
	budgets   *services.BudgetService
	processor *services.RecurringProcessor
	clock     core.Clock
	loc       *time.Location
	logger    *applog.Logger
	ready     func(ctx context.Context) error

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	metrics  *serverMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// server. Shutdown must be called to stop the limiter's cleanup goroutine.
func NewServer(addr string, d Deps) *Server {
	loc := d.Location
	if loc == nil {
		loc = time.Local
	}
	logger := d.Logger
	if logger == nil {
		logger = applog.New(applog.Config{Component: applog.ComponentHTTP})
	}

	s := &Server{
		ledger:    d.Ledger,
		budgets:   d.Budgets,
		processor: d.Processor,
		clock:     d.Clock,
		loc:       loc,
		logger:    logger,
		ready:     d.Ready,
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: d.WriteRequestsPerMinute}),
		detector:  security.NewDetector(),
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)
	s.metrics = newServerMetrics(s.limiter, s.detector)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", s.metrics.handler())

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("PUT /api/transactions/{id}/category", s.handleRecategorize)

	mux.HandleFunc("GET /api/subscriptions", s.handleListSubscriptions)
	mux.HandleFunc("POST /api/subscriptions", s.handleCreateSubscription)
	mux.HandleFunc("GET /api/subscriptions/upcoming", s.handleUpcoming)
	mux.HandleFunc("POST /api/subscriptions/{id}/toggle", s.handleToggleSubscription)
	mux.HandleFunc("DELETE /api/subscriptions/{id}", s.handleDeleteSubscription)

	mux.HandleFunc("GET /api/budgets/{month}", s.handleOverview)
	mux.HandleFunc("PUT /api/budgets/{month}", s.handleSaveBudget)
	mux.HandleFunc("DELETE /api/budgets/{month}", s.handleDeleteBudget)

	mux.HandleFunc("POST /api/process", s.handleProcess)

	limit := s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimit,
		http.MethodPost, http.MethodPut, http.MethodDelete)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.tracer.Middleware(headers.Middleware(s.metrics.middleware(s.flagSuspicious(limit(mux))))),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
	return s
}

// ListenAndServe serves until Shutdown. A clean shutdown returns nil.
func (s *Server) ListenAndServe() error {
	s.logger.Info("HTTP server listening", "addr", s.Addr)
	if err := s.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) flagSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reason := s.detector.DetectSuspiciousRequest(r); reason != "" {
			s.logger.WarnContext(r.Context(), "Suspicious request",
				"request_id", trace.GetRequestID(r.Context()),
				"reason", reason,
				"client_ip", s.detector.ExtractClientIP(r),
				"path", r.URL.Path)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		"client_ip", s.detector.ExtractClientIP(r),
		"method", r.Method,
		"path", r.URL.Path)
	writeJSON(w, http.StatusTooManyRequests, errorResponse{
		Error:     "rate limit exceeded, try again later",
		RequestID: trace.GetRequestID(r.Context()),
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", "error", err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
