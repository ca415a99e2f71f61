package statusapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/lexiqai/session-recorder/internal/catalog"
	"github.com/lexiqai/session-recorder/internal/observability"
)

// Server exposes the record catalog, health and metrics over HTTP
type Server struct {
	records        *catalog.RecordStore
	checks         map[string]observability.HealthCheckFunc
	metricsEnabled bool
	logger         zerolog.Logger
}

// NewServer creates a status server. checks feed the readiness probe.
func NewServer(records *catalog.RecordStore, checks map[string]observability.HealthCheckFunc, metricsEnabled bool, logger zerolog.Logger) *Server {
	return &Server{
		records:        records,
		checks:         checks,
		metricsEnabled: metricsEnabled,
		logger:         logger,
	}
}

// Handler returns the routes of the status API
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", observability.HealthCheckHandler())
	mux.HandleFunc("GET /ready", observability.ReadinessHandler(s.checks))
	if s.metricsEnabled {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	mux.HandleFunc("GET /records", s.handleList)
	mux.HandleFunc("GET /records/{name}", s.handleGet)
	mux.HandleFunc("GET /events", s.handleEvents)

	return mux
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().
			Str("addr", addr).
			Bool("metrics_enabled", s.metricsEnabled).
			Msg("Status API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info().Msg("Status API stopped")
	return nil
}

type recordsResponse struct {
	Records []catalog.Record `json:"records"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, recordsResponse{Records: s.records.List()})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.records.Get(r.PathValue("name"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "record not found"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
