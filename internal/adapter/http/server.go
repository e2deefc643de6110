package http

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/hydro-lag-etl/internal/adapter/export"
	"github.com/couchcryptid/hydro-lag-etl/internal/domain"
)

// ReportSource exposes the most recent completed run.
type ReportSource interface {
	Latest() (domain.Report, bool)
}

// Server exposes health, readiness, metrics and report HTTP endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// report routes:
//
//	GET /report                 latest run summary (JSON)
//	GET /report/periods/{name}  one period, "all" for the whole dataset
//	GET /report/dataset.csv     consolidated daily dataset
func NewServer(addr string, ready sharedobs.ReadinessChecker, reports ReportSource, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.HandleFunc("GET /report", handleReport(reports))
	mux.HandleFunc("GET /report/periods/{name}", handlePeriod(reports))
	mux.HandleFunc("GET /report/dataset.csv", s.handleDataset(reports))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func handleReport(reports ReportSource) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		rep, ok := reports.Latest()
		if !ok {
			sharedobs.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "no completed run yet"})
			return
		}
		sharedobs.WriteJSON(w, http.StatusOK, rep)
	}
}

func handlePeriod(reports ReportSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, ok := reports.Latest()
		if !ok {
			sharedobs.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "no completed run yet"})
			return
		}
		name := r.PathValue("name")
		if name == rep.Overall.Name {
			sharedobs.WriteJSON(w, http.StatusOK, rep.Overall)
			return
		}
		for _, p := range rep.Periods {
			if p.Name == name {
				sharedobs.WriteJSON(w, http.StatusOK, p)
				return
			}
		}
		sharedobs.WriteJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("unknown period %q", name)})
	}
}

func (s *Server) handleDataset(reports ReportSource) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		rep, ok := reports.Latest()
		if !ok {
			sharedobs.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "no completed run yet"})
			return
		}
		var buf bytes.Buffer
		if err := export.WriteDataset(&buf, rep.Dataset, export.DefaultOptions()); err != nil {
			s.logger.Error("render dataset", "run_id", rep.RunID, "error", err)
			sharedobs.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "render dataset failed"})
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+export.DatasetFile+`"`)
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes()) //nolint:errcheck // best-effort response
	}
}
