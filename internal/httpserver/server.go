// Package httpserver exposes health and status endpoints for supervision.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mpruett/feedmirror/internal/poller"
)

// LedgerReader is the read-only slice of the ledger the status endpoint needs.
type LedgerReader interface {
	Count(ctx context.Context) (int64, error)
}

// StatusSource reports the poll loop state.
type StatusSource interface {
	Status() poller.Status
}

// Server is the ops HTTP server. It never touches the ledger writer path; the
// status endpoint only reads.
type Server struct {
	ledger     LedgerReader
	pollStatus StatusSource
	logger     *slog.Logger
	httpServer *http.Server
}

// NewServer creates the ops server on the given port.
func NewServer(port int, ledger LedgerReader, pollStatus StatusSource, logger *slog.Logger) *Server {
	s := &Server{
		ledger:     ledger,
		pollStatus: pollStatus,
		logger:     logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      withLogging(logger, mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting ops HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	count, err := s.ledger.Count(r.Context())
	if err != nil {
		s.logger.Error("status: ledger count failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "ledger unavailable",
		})
		return
	}

	st := s.pollStatus.Status()
	resp := map[string]any{
		"mirrored_posts":       count,
		"consecutive_failures": st.ConsecutiveFailures,
	}
	if !st.LastTickAt.IsZero() {
		resp["last_tick_at"] = st.LastTickAt.Format(time.RFC3339)
	}
	if st.LastError != "" {
		resp["last_error"] = st.LastError
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
