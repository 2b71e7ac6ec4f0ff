// Package httpapi exposes the measurement core over HTTP. It is a thin
// presentation layer: every verdict and ratio is computed by the injected
// components, never here.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"synthmeter/internal/events"
	"synthmeter/internal/gates"
	"synthmeter/internal/loc"
	"synthmeter/internal/logging"
	"synthmeter/internal/metrics"
	"synthmeter/internal/store"
)

// Server wires the core components behind a chi router. The store is
// optional: when present, accepted writes are persisted as they arrive.
type Server struct {
	collector  *events.Collector
	aggregator *gates.Aggregator
	engine     *metrics.Engine
	scanner    *loc.Scanner
	local      *store.LocalStore
	workspace  string

	mu       sync.RWMutex
	snapshot *loc.Snapshot
}

// NewServer builds a Server over the given components. local may be nil to
// run without persistence.
func NewServer(collector *events.Collector, aggregator *gates.Aggregator, engine *metrics.Engine,
	scanner *loc.Scanner, local *store.LocalStore, workspace string) *Server {
	return &Server{
		collector:  collector,
		aggregator: aggregator,
		engine:     engine,
		scanner:    scanner,
		local:      local,
		workspace:  workspace,
	}
}

// Router assembles the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/sessions", s.handleStartSession)
		r.Post("/sessions/{id}/events", s.handleSubmitEvent)
		r.Post("/sessions/{id}/observations", s.handleRecordObservations)
		r.Post("/sessions/{id}/checkpoints/{checkpoint}", s.handleCheckpoint)
		r.Get("/sessions/{id}/metrics", s.handleMetrics)
		r.Get("/sessions/{id}/trend", s.handleTrend)
		r.Get("/sessions/{id}/verification", s.handleVerification)
		r.Get("/sessions/{id}/report", s.handleReport)

		r.Get("/gates/config", s.handleGetGateConfig)
		r.Put("/gates/config", s.handleSetGateConfig)

		r.Get("/snapshot", s.handleGetSnapshot)
		r.Post("/snapshot", s.handleRescan)
	})
	return r
}

// Snapshot returns the server's current tree snapshot, scanning lazily on
// first use.
func (s *Server) Snapshot() (*loc.Snapshot, error) {
	s.mu.RLock()
	snapshot := s.snapshot
	s.mu.RUnlock()
	if snapshot != nil {
		return snapshot, nil
	}
	return s.Rescan()
}

// Rescan produces and installs a fresh snapshot of the workspace.
func (s *Server) Rescan() (*loc.Snapshot, error) {
	snapshot, err := s.scanner.Scan(s.workspace)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.snapshot = snapshot
	s.mu.Unlock()
	return snapshot, nil
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	// An empty body is fine: the collector mints an id.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	id, created := s.collector.StartSession(req.ID)
	if created && s.local != nil {
		// Persist the start event the collector stamped.
		if evs, err := s.collector.Events(id); err == nil && len(evs) > 0 {
			if err := s.local.SaveEvent(evs[0]); err != nil {
				logging.Get(logging.CategoryAPI).Error("persist session start: %v", err)
			}
		}
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleSubmitEvent(w http.ResponseWriter, r *http.Request) {
	var ev events.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ev.SessionID = chi.URLParam(r, "id")
	// Stamp before submitting so the persisted row carries the same
	// timestamp the collector folds; a zero time on disk would be
	// re-defaulted to the replay clock on restore.
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	if err := s.collector.Submit(ev); err != nil {
		writeCoreError(w, err)
		return
	}
	if s.local != nil {
		if err := s.local.SaveEvent(ev); err != nil {
			logging.Get(logging.CategoryAPI).Error("persist event: %v", err)
		}
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleRecordObservations(w http.ResponseWriter, r *http.Request) {
	var report gates.Report
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sessionID := chi.URLParam(r, "id")

	recorded, err := s.aggregator.RecordReport(sessionID, report)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	if s.local != nil {
		for _, obs := range recorded {
			if err := s.local.SaveObservation(sessionID, obs); err != nil {
				logging.Get(logging.CategoryAPI).Error("persist observation: %v", err)
			}
		}
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleCheckpoint(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	checkpoint := chi.URLParam(r, "checkpoint")

	snapshot, err := s.Rescan()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	point, err := s.engine.RecordSynthMeasurement(sessionID, checkpoint, snapshot)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	if s.local != nil {
		if err := s.local.SaveTrendPoint(sessionID, point); err != nil {
			logging.Get(logging.CategoryAPI).Error("persist trend point: %v", err)
		}
	}
	writeJSON(w, http.StatusCreated, point)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.Snapshot()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	m, err := s.engine.Calculate(chi.URLParam(r, "id"), snapshot)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	trend := s.engine.Trend(chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, trend)
}

func (s *Server) handleVerification(w http.ResponseWriter, r *http.Request) {
	file := r.URL.Query().Get("file")
	if file == "" {
		writeError(w, http.StatusBadRequest, errors.New("file query parameter required"))
		return
	}
	statuses, err := s.aggregator.LineVerification(chi.URLParam(r, "id"), file)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	if statuses == nil {
		statuses = []gates.LineStatus{}
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.Snapshot()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	report, err := s.engine.GetReport(chi.URLParam(r, "id"), snapshot)
	if err != nil {
		writeCoreError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(metrics.FormatReport(report)))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleGetGateConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.aggregator.Config())
}

func (s *Server) handleSetGateConfig(w http.ResponseWriter, r *http.Request) {
	var update gates.ConfigUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.aggregator.SetConfig(update); err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.aggregator.Config())
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.Snapshot()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleRescan(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.Rescan()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, snapshot)
}

// writeCoreError maps the core's typed failures onto HTTP statuses.
func writeCoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, events.ErrSessionNotFound), errors.Is(err, gates.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, gates.ErrInvalidGate), errors.Is(err, gates.ErrInvalidThreshold),
		errors.Is(err, metrics.ErrNoLOCData):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Get(logging.CategoryAPI).Error("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	logging.API("request failed (%d): %v", status, err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
