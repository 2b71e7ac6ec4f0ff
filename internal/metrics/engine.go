// Package metrics turns line-count snapshots, gate verdicts, and session
// counters into the headline efficiency ratios: verified LOC, verification
// rate, per-minute rates, Synth (tokens per line), and probability of error.
package metrics

import (
	"errors"
	"fmt"
	"sync"

	"synthmeter/internal/events"
	"synthmeter/internal/gates"
	"synthmeter/internal/loc"
	"synthmeter/internal/logging"
)

// ErrNoLOCData means the snapshot holds zero total lines; ratios against it
// are undefined.
var ErrNoLOCData = errors.New("snapshot has no lines of code")

// Metrics is the machine-readable result of one calculation.
type Metrics struct {
	SessionID        string  `json:"session_id"`
	TotalLOC         int     `json:"total_loc"`
	CodeLOC          int     `json:"code_loc"`
	CommentLOC       int     `json:"comment_loc"`
	BlankLOC         int     `json:"blank_loc"`
	VerifiedLOC      int     `json:"verified_loc"`
	VerificationRate float64 `json:"verification_rate"`
	TotalMinutes     float64 `json:"total_minutes"`
	LOCPerMinute     float64 `json:"loc_per_minute"`
	VLOCPerMinute    float64 `json:"vloc_per_minute"`
	TotalTokens      int     `json:"total_tokens"`
	TokensPerLOC     float64 `json:"tokens_per_loc"`
	OverallPoE       float64 `json:"overall_poe"`
}

// Engine reads the event collector and gate aggregator to produce metrics
// and maintains the per-session Synth trend. It owns no snapshot: callers
// pass the one they want measured against.
type Engine struct {
	mu     sync.RWMutex
	events *events.Collector
	gates  *gates.Aggregator
	trends map[string][]TrendPoint
}

// NewEngine wires an Engine to its collaborators.
func NewEngine(collector *events.Collector, aggregator *gates.Aggregator) *Engine {
	return &Engine{
		events: collector,
		gates:  aggregator,
		trends: make(map[string][]TrendPoint),
	}
}

// Calculate computes the headline metrics for a session against a snapshot.
// Fails with the event layer's ErrSessionNotFound for unknown sessions and
// with ErrNoLOCData for an empty snapshot. A session with no gate history is
// not an error: verified LOC and PoE default to zero.
func (e *Engine) Calculate(sessionID string, snapshot *loc.Snapshot) (Metrics, error) {
	timer := logging.StartTimer(logging.CategoryMetrics, "Calculate")
	defer timer.Stop()

	session, err := e.events.Session(sessionID)
	if err != nil {
		return Metrics{}, fmt.Errorf("calculate metrics: %w", err)
	}
	if snapshot == nil || snapshot.Totals.Total == 0 {
		return Metrics{}, fmt.Errorf("calculate metrics for %q: %w", sessionID, ErrNoLOCData)
	}

	m := Metrics{
		SessionID:  sessionID,
		TotalLOC:   snapshot.Totals.Total,
		CodeLOC:    snapshot.Totals.Code,
		CommentLOC: snapshot.Totals.Comments,
		BlankLOC:   snapshot.Totals.Blank,
	}

	if stats, err := e.gates.SessionStats(sessionID); err == nil {
		m.VerifiedLOC = stats.VerifiedLines
		m.OverallPoE = stats.OverallPoE
	} else if !errors.Is(err, gates.ErrSessionNotFound) {
		return Metrics{}, fmt.Errorf("calculate metrics: %w", err)
	}

	m.VerificationRate = float64(m.VerifiedLOC) / float64(m.TotalLOC)

	duration, err := e.events.Duration(sessionID)
	if err != nil {
		return Metrics{}, fmt.Errorf("calculate metrics: %w", err)
	}
	m.TotalMinutes = duration.Minutes()
	if m.TotalMinutes > 0 {
		m.LOCPerMinute = float64(m.TotalLOC) / m.TotalMinutes
		m.VLOCPerMinute = float64(m.VerifiedLOC) / m.TotalMinutes
	}

	m.TotalTokens = session.Counters.TotalTokens()
	m.TokensPerLOC = float64(m.TotalTokens) / float64(m.TotalLOC)

	logging.MetricsDebug("session %s: %d/%d verified, synth=%.2f poe=%.3f",
		sessionID, m.VerifiedLOC, m.TotalLOC, m.TokensPerLOC, m.OverallPoE)
	return m, nil
}
