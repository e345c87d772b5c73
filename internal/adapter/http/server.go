package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/quakemap/internal/adapter/feed"
	"github.com/couchcryptid/quakemap/internal/domain"
	"github.com/couchcryptid/quakemap/internal/mapview"
	"github.com/couchcryptid/quakemap/internal/pipeline"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// SnapshotSource provides the map snapshot to serve.
type SnapshotSource interface {
	ReadinessChecker
	Current() *pipeline.Snapshot
}

// Server exposes the map page, its JSON API, the optional tile proxy, and
// health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	source     SnapshotSource
	logger     *slog.Logger
}

// NewServer creates the HTTP server. Pass a nil tiles handler to leave
// /tiles unmounted.
func NewServer(addr string, source SnapshotSource, tiles http.Handler, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		source: source,
		logger: logger,
	}

	api := cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})

	mux.HandleFunc("GET /{$}", s.handleMap)
	mux.Handle("/api/earthquakes", api(http.HandlerFunc(s.handleEarthquakes)))
	mux.Handle("/api/boundaries", api(http.HandlerFunc(s.handleBoundaries)))
	mux.Handle("/api/legend", api(http.HandlerFunc(s.handleLegend)))
	if tiles != nil {
		mux.Handle("GET /tiles/{layer}/{z}/{x}/{y}", tiles)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(source))
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

func (s *Server) handleMap(w http.ResponseWriter, _ *http.Request) {
	var buf bytes.Buffer
	if err := mapview.Render(&buf, s.source.Current().View); err != nil {
		s.logger.Error("render map failed", "error", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleEarthquakes(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	data, err := feed.EncodeStyledEvents(s.source.Current().Events)
	s.writeGeoJSON(w, data, err)
}

func (s *Server) handleBoundaries(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	data, err := feed.EncodeBoundaries(s.source.Current().Boundaries)
	s.writeGeoJSON(w, data, err)
}

func (s *Server) handleLegend(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, domain.Legend())
}

func (s *Server) writeGeoJSON(w http.ResponseWriter, data []byte, err error) {
	if err != nil {
		s.logger.Error("encode geojson failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "encode failed"})
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(data)
}

// allowGet rejects anything but GET once the CORS middleware has answered
// preflight requests.
func allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return true
	}
	w.Header().Set("Allow", "GET, HEAD, OPTIONS")
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	return false
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
