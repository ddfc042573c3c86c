// Package health serves the monitoring endpoints: liveness, readiness, the
// current quad as JSON, and Prometheus metrics.
package health

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"quadlink/internal/platform/logger"
	"quadlink/internal/platform/metrics"
	"quadlink/internal/quad"

	"github.com/go-chi/chi/v5"
)

// Server exposes read-only observability endpoints. It only ever observes
// the daemon's latest quad snapshot and never mutates it.
type Server struct {
	log      *slog.Logger
	met      *metrics.Metrics
	ready    func() bool
	snapshot func() quad.QuadState
}

// New returns a Server. ready reports whether the daemon has a loaded
// config; snapshot returns the latest computed quad state.
func New(log *slog.Logger, met *metrics.Metrics, ready func() bool, snapshot func() quad.QuadState) *Server {
	return &Server{log: log, met: met, ready: ready, snapshot: snapshot}
}

// Router builds the chi router. /health and /ready skip the request logger
// so probe traffic stays out of the logs.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(metrics.RequestMiddleware(s.met))

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.With(logger.RequestLogger(s.log)).Get("/quad", s.handleQuad)
	r.Get("/metrics", s.met.Handler(func() {
		s.met.SetOccupiedSlots(s.snapshot().OccupiedCount())
	}).ServeHTTP)

	return r
}

// handleHealth always returns 200: the process is running regardless of
// readiness state.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if s.ready() {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("READY"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	w.Write([]byte("NOT READY"))
}

type slotView struct {
	Slot      int    `json:"slot"`
	ChannelID string `json:"channel_id"`
	Author    string `json:"author"`
	Category  string `json:"category"`
	URL       string `json:"url"`
}

type quadView struct {
	Slots []*slotView `json:"slots"`
}

func (s *Server) handleQuad(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot()

	view := quadView{Slots: make([]*slotView, quad.SlotCount)}
	for i, o := range snap.Slots {
		if o.Empty() {
			continue
		}
		view.Slots[i] = &slotView{
			Slot:      i,
			ChannelID: o.ChannelID,
			Author:    o.Author,
			Category:  o.Category,
			URL:       o.URL,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(view); err != nil {
		s.log.Error("encode quad view", slog.String("error", err.Error()))
	}
}
