// Package server exposes the web endpoint: the ?ep= router used by external automations,
// health and metrics, and token-guarded trigger runs for Cloud Scheduler.
package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"mtm-automation/email"
	"mtm-automation/metrics"
	"mtm-automation/trigger"
	"mtm-automation/video"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Notifier interface for operator emails.
type Notifier interface {
	Send(ctx context.Context, r email.Report) error
}

// Triggers runs a named trigger.
type Triggers interface {
	Run(ctx context.Context, name string) (any, error)
}

// Server handles HTTP requests.
type Server struct {
	broadcasts video.BroadcastSource
	notifier   Notifier
	triggers   Triggers
	logger     *slog.Logger
	token      string
	defaultTZ  string
	rateLimit  int
	now        func() time.Time
}

// Config holds server configuration.
type Config struct {
	Broadcasts video.BroadcastSource
	Notifier   Notifier // Optional; notifyFbPosted only logs without it
	Triggers   Triggers
	Logger     *slog.Logger
	Token      string // Shared secret; empty disables the check
	DefaultTZ  string
	RateLimit  int // Requests per minute per client IP; 0 disables
}

// New creates a new HTTP server handler.
func New(cfg *Config) *Server {
	tz := cfg.DefaultTZ
	if tz == "" {
		tz = "America/Santo_Domingo"
	}
	return &Server{
		broadcasts: cfg.Broadcasts,
		notifier:   cfg.Notifier,
		triggers:   cfg.Triggers,
		logger:     cfg.Logger,
		token:      cfg.Token,
		defaultTZ:  tz,
		rateLimit:  cfg.RateLimit,
		now:        time.Now,
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if s.rateLimit > 0 {
			r.Use(httprate.LimitByIP(s.rateLimit, time.Minute))
		}
		r.Get("/exec", s.handleExec)
		r.Post("/run/{trigger}", s.handleRun)
	})
	return r
}

// ListenAndServe serves on port until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port string) error {
	// Configure server with timeouts to prevent resource exhaustion
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           s.Handler(),
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      trigger.RunTimeout + 30*time.Second, // Trigger runs are synchronous
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", "port", port)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

type ctxKey struct{}

// requestLogger tags each request with an ID and records its latency.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		log := s.logger.With("request_id", id)
		ctx := context.WithValue(r.Context(), ctxKey{}, log)

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))

		route := chi.RouteContext(ctx).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTPRequest(route, ww.Status(), time.Since(start))
		log.Info("HTTP request",
			"method", r.Method,
			"route", route,
			"ep", r.URL.Query().Get("ep"),
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"remote_addr", r.RemoteAddr)
	})
}

func (s *Server) log(r *http.Request) *slog.Logger {
	if l, ok := r.Context().Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return s.logger
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.log(r).Error("Failed to encode response", "error", err)
		http.Error(w, `{"ok":false,"error":"internal"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		s.log(r).Warn("Failed to write response", "error", err)
	}
}

// authorized compares the supplied token with the configured one in constant time.
func (s *Server) authorized(supplied string) bool {
	if s.token == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(s.token)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleRun runs a trigger on behalf of Cloud Scheduler. The token may come as a bearer
// header or the token query parameter.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	supplied, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || supplied == "" {
		supplied = r.URL.Query().Get("token")
	}
	if !s.authorized(supplied) {
		s.writeJSON(w, r, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
		return
	}

	name := chi.URLParam(r, "trigger")
	result, err := s.triggers.Run(r.Context(), name)
	switch {
	case errors.Is(err, trigger.ErrUnknownTrigger):
		s.writeJSON(w, r, http.StatusNotFound, errorBody{Error: "not_found", Available: trigger.Names()})
	case err != nil:
		s.writeJSON(w, r, http.StatusInternalServerError, errorBody{Error: "internal", Detail: err.Error()})
	default:
		s.writeJSON(w, r, http.StatusOK, map[string]any{"ok": true, "trigger": name, "result": result})
	}
}
