// Package api serves local status endpoints for the sync engine.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"hotelsync/internal/config"
	"hotelsync/internal/metrics"
	"hotelsync/internal/models"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type PendingReader interface {
	PendingCounts(ctx context.Context) (map[models.Kind]int, int, error)
	Pending(ctx context.Context) ([]models.PendingMutation, error)
}

type SyncTrigger interface {
	Trigger()
}

// HTTPServer exposes pending counts, a manual sync trigger and metrics.
type HTTPServer struct {
	cfg     config.StatusConfig
	pending PendingReader
	trigger SyncTrigger
	limiter *rateLimiter
	server  *http.Server
	logger  *zerolog.Logger
}

func NewHTTPServer(cfg config.StatusConfig, withMetrics bool, pending PendingReader, trigger SyncTrigger, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	srv := &HTTPServer{
		cfg:     cfg,
		pending: pending,
		trigger: trigger,
		limiter: newRateLimiter(cfg.RPS, cfg.Burst),
		logger:  logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.HandleFunc("/api/v1/pending", srv.handlePending)
	mux.HandleFunc("/api/v1/sync", srv.handleSync)
	if withMetrics {
		mux.Handle("/metrics", promhttp.Handler())
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.loggingMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("status server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handlePending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	counts, stuck, err := s.pending.PendingCounts(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("pending counts failed")
		writeError(w, http.StatusInternalServerError, "failed to read pending mutations")
		return
	}

	total := 0
	byKind := make(map[string]int, len(counts))
	for _, kind := range models.AllKinds() {
		byKind[string(kind)] = counts[kind]
		total += counts[kind]
	}
	resp := map[string]any{
		"total":   total,
		"by_kind": byKind,
		"stuck":   stuck,
	}

	if r.URL.Query().Get("detail") == "1" {
		list, err := s.pending.Pending(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list pending mutations")
			return
		}
		resp["mutations"] = list
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.limiter.allow(r) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}
	s.trigger.Trigger()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		metrics.IncHTTP(endpointLabel(r.URL.Path))
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func endpointLabel(path string) string {
	switch path {
	case "/healthz", "/api/v1/pending", "/api/v1/sync", "/metrics":
		return path
	default:
		return "other"
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
