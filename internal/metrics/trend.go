package metrics

import (
	"fmt"
	"time"

	"synthmeter/internal/loc"
	"synthmeter/internal/logging"
)

// TrendPoint is one immutable entry in a session's Synth time-series. The
// series is driven by externally declared checkpoints, not by a clock.
type TrendPoint struct {
	Checkpoint string    `json:"checkpoint"`
	Timestamp  time.Time `json:"timestamp"`
	Tokens     int       `json:"tokens"`
	TotalLOC   int       `json:"total_loc"`
	Synth      float64   `json:"synth"`
	Delta      float64   `json:"delta"`
}

// RecordSynthMeasurement appends a trend point for a checkpoint: Synth is
// cumulative tokens over the snapshot's total lines, Delta the change since
// the previous point (the raw value on the first). Recounting from a full
// snapshot each time deliberately avoids tracking which lines changed
// between checkpoints; sampled repeatedly, the ratio exposes inefficient
// checkpoints as spikes without per-line attribution.
//
// Error conditions match Calculate: unknown session, empty snapshot.
func (e *Engine) RecordSynthMeasurement(sessionID, checkpointID string, snapshot *loc.Snapshot) (TrendPoint, error) {
	session, err := e.events.Session(sessionID)
	if err != nil {
		return TrendPoint{}, fmt.Errorf("record synth measurement: %w", err)
	}
	if snapshot == nil || snapshot.Totals.Total == 0 {
		return TrendPoint{}, fmt.Errorf("record synth measurement for %q: %w", sessionID, ErrNoLOCData)
	}

	tokens := session.Counters.TotalTokens()
	point := TrendPoint{
		Checkpoint: checkpointID,
		Timestamp:  time.Now(),
		Tokens:     tokens,
		TotalLOC:   snapshot.Totals.Total,
		Synth:      float64(tokens) / float64(snapshot.Totals.Total),
	}

	e.mu.Lock()
	trend := e.trends[sessionID]
	if len(trend) > 0 {
		point.Delta = point.Synth - trend[len(trend)-1].Synth
	} else {
		point.Delta = point.Synth
	}
	e.trends[sessionID] = append(trend, point)
	e.mu.Unlock()

	logging.Metrics("checkpoint %s session %s: synth=%.2f delta=%+.2f",
		checkpointID, sessionID, point.Synth, point.Delta)
	return point, nil
}

// Trend returns a copy of the session's trend points in checkpoint order.
// A session with no checkpoints yields an empty slice, not an error.
func (e *Engine) Trend(sessionID string) []TrendPoint {
	e.mu.RLock()
	defer e.mu.RUnlock()

	trend := e.trends[sessionID]
	out := make([]TrendPoint, len(trend))
	copy(out, trend)
	return out
}

// RestoreTrend replaces a session's trend with points reloaded from
// persistence. Intended only for startup; live measurements append.
func (e *Engine) RestoreTrend(sessionID string, points []TrendPoint) {
	e.mu.Lock()
	defer e.mu.Unlock()

	trend := make([]TrendPoint, len(points))
	copy(trend, points)
	e.trends[sessionID] = trend
}
