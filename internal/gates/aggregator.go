package gates

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"synthmeter/internal/logging"
)

// lineKey identifies one observed line within a session.
type lineKey struct {
	file string
	line int
}

// Aggregator stores gate observations keyed by session and derives verdicts
// under the active policy. Sessions are independent; there is no cross-session
// interaction. The observation log is append-only and verdicts are reduced
// from it at read time, so the full history stays inspectable.
//
// A single measurement run drives one Aggregator. The mutex exists because
// the HTTP surface shares the instance across request goroutines.
type Aggregator struct {
	mu           sync.RWMutex
	observations map[string][]Observation
	policy       Policy
}

// NewAggregator creates an empty Aggregator with the default policy.
func NewAggregator() *Aggregator {
	return &Aggregator{
		observations: make(map[string][]Observation),
		policy:       DefaultPolicy(),
	}
}

// Record appends one observation to the session's log. The gate kind must be
// recognized; file and line values are not validated because duplicates and
// contradictions are expected inputs.
func (a *Aggregator) Record(sessionID string, obs Observation) error {
	if !ValidKind(obs.Gate) {
		return fmt.Errorf("%w: %q", ErrInvalidGate, obs.Gate)
	}
	if obs.Timestamp.IsZero() {
		obs.Timestamp = time.Now()
	}

	a.mu.Lock()
	a.observations[sessionID] = append(a.observations[sessionID], obs)
	a.mu.Unlock()

	logging.GatesDebug("recorded %s gate for %s:%d passed=%v session=%s",
		obs.Gate, obs.File, obs.Line, obs.Passed, sessionID)
	return nil
}

// RecordReport appends every line result of a batched gate report and
// returns the stored observations, each stamped with the record time.
// Rejected as a whole if the gate kind is unrecognized.
func (a *Aggregator) RecordReport(sessionID string, report Report) ([]Observation, error) {
	if !ValidKind(report.Gate) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidGate, report.Gate)
	}

	now := time.Now()
	recorded := make([]Observation, 0, len(report.Lines))
	a.mu.Lock()
	for _, lr := range report.Lines {
		obs := Observation{
			Gate:      report.Gate,
			File:      report.File,
			Line:      lr.Line,
			Passed:    lr.Passed,
			Message:   lr.Message,
			Timestamp: now,
		}
		a.observations[sessionID] = append(a.observations[sessionID], obs)
		recorded = append(recorded, obs)
	}
	a.mu.Unlock()

	logging.Gates("recorded %s gate report for %s: %d lines, session=%s",
		report.Gate, report.File, len(report.Lines), sessionID)
	return recorded, nil
}

// GateStats reduces one gate's history for a session. Each unique (file,
// line) key passes only if every observation ever recorded for it under this
// gate passed: one failure anywhere in the history permanently fails the
// line, even if a later observation reports success. PassRate is 1 when the
// gate checked nothing.
func (a *Aggregator) GateStats(sessionID string, gate Kind) (Stats, error) {
	if !ValidKind(gate) {
		return Stats{}, fmt.Errorf("%w: %q", ErrInvalidGate, gate)
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	obs, ok := a.observations[sessionID]
	if !ok {
		return Stats{}, fmt.Errorf("%w: %q", ErrSessionNotFound, sessionID)
	}
	return reduceGate(obs, gate), nil
}

// reduceGate computes a gate's stats from an observation list. The AND-merge
// is commutative and associative, so arrival order never matters.
func reduceGate(obs []Observation, gate Kind) Stats {
	verdicts := make(map[lineKey]bool)
	for _, o := range obs {
		if o.Gate != gate {
			continue
		}
		key := lineKey{o.File, o.Line}
		passed, seen := verdicts[key]
		if !seen {
			verdicts[key] = o.Passed
		} else {
			verdicts[key] = passed && o.Passed
		}
	}

	stats := Stats{Gate: gate, LinesChecked: len(verdicts)}
	for _, passed := range verdicts {
		if passed {
			stats.LinesPassed++
		}
	}
	if stats.LinesChecked == 0 {
		stats.PassRate = 1
	} else {
		stats.PassRate = float64(stats.LinesPassed) / float64(stats.LinesChecked)
	}
	stats.PoE = 1 - stats.PassRate
	return stats
}

// SessionStats computes every gate's stats plus the combined verdicts.
//
// A line counts as verified only if some gate checked it and every gate that
// is required, not skipped, and actually checked the line passed it. The
// session PoE composes per-gate PoEs under an independence assumption:
// 1 - product(1 - poe) over gates that are required and not skipped, 0 when
// no such gate exists.
func (a *Aggregator) SessionStats(sessionID string) (SessionStats, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	obs, ok := a.observations[sessionID]
	if !ok {
		return SessionStats{}, fmt.Errorf("%w: %q", ErrSessionNotFound, sessionID)
	}

	stats := SessionStats{Gates: make(map[Kind]Stats, len(Kinds))}
	for _, gate := range Kinds {
		stats.Gates[gate] = reduceGate(obs, gate)
	}

	for _, verdict := range a.lineVerdicts(obs) {
		if a.lineVerified(verdict) {
			stats.VerifiedLines++
		}
	}

	passProduct := 1.0
	active := false
	for _, gate := range Kinds {
		entry := a.policy[gate]
		if !entry.Required || entry.Skip {
			continue
		}
		active = true
		passProduct *= 1 - stats.Gates[gate].PoE
	}
	if active {
		stats.OverallPoE = 1 - passProduct
	}

	return stats, nil
}

// LineVerification returns the per-gate pass state and combined verdict for
// every line touched in one file, sorted by line number. An unknown file
// yields an empty table, not an error.
func (a *Aggregator) LineVerification(sessionID, file string) ([]LineStatus, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	obs, ok := a.observations[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, sessionID)
	}

	var statuses []LineStatus
	for key, verdict := range a.lineVerdicts(obs) {
		if key.file != file {
			continue
		}
		statuses = append(statuses, LineStatus{
			Line:     key.line,
			Gates:    verdict,
			Verified: a.lineVerified(verdict),
		})
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Line < statuses[j].Line
	})
	return statuses, nil
}

// lineVerdicts AND-merges observations per (file, line, gate). The inner map
// holds one entry per gate that checked the line; absence means unchecked.
// Callers must hold at least a read lock.
func (a *Aggregator) lineVerdicts(obs []Observation) map[lineKey]map[Kind]bool {
	verdicts := make(map[lineKey]map[Kind]bool)
	for _, o := range obs {
		key := lineKey{o.File, o.Line}
		perGate := verdicts[key]
		if perGate == nil {
			perGate = make(map[Kind]bool, len(Kinds))
			verdicts[key] = perGate
		}
		passed, seen := perGate[o.Gate]
		if !seen {
			perGate[o.Gate] = o.Passed
		} else {
			perGate[o.Gate] = passed && o.Passed
		}
	}
	return verdicts
}

// lineVerified applies the active policy to one line's per-gate verdicts.
// The policy is evaluated live: marking a gate skipped removes its historical
// failures from the current verdict. Callers must hold at least a read lock.
func (a *Aggregator) lineVerified(verdict map[Kind]bool) bool {
	if len(verdict) == 0 {
		return false
	}
	for gate, passed := range verdict {
		entry := a.policy[gate]
		if entry.Required && !entry.Skip && !passed {
			return false
		}
	}
	return true
}

// SetConfig validates and merges a partial policy update. Thresholds must
// lie in [0,1]; the whole update is rejected before any field is applied if
// one does not. Gates absent from the update keep their current flags.
func (a *Aggregator) SetConfig(update ConfigUpdate) error {
	for gate, entry := range update {
		if !ValidKind(gate) {
			return fmt.Errorf("%w: %q", ErrInvalidGate, gate)
		}
		if entry.Threshold != nil && (*entry.Threshold < 0 || *entry.Threshold > 1) {
			return fmt.Errorf("%w: gate %s got %v", ErrInvalidThreshold, gate, *entry.Threshold)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for gate, update := range update {
		entry := a.policy[gate]
		if update.Required != nil {
			entry.Required = *update.Required
		}
		if update.Threshold != nil {
			entry.Threshold = *update.Threshold
		}
		if update.Skip != nil {
			entry.Skip = *update.Skip
		}
		a.policy[gate] = entry
		logging.Gates("gate policy updated: %s required=%v threshold=%.2f skip=%v",
			gate, entry.Required, entry.Threshold, entry.Skip)
	}
	return nil
}

// SetPolicy installs a complete policy, validating every threshold. Used at
// startup to apply configured defaults; incremental changes go through
// SetConfig.
func (a *Aggregator) SetPolicy(policy Policy) error {
	for gate, entry := range policy {
		if !ValidKind(gate) {
			return fmt.Errorf("%w: %q", ErrInvalidGate, gate)
		}
		if entry.Threshold < 0 || entry.Threshold > 1 {
			return fmt.Errorf("%w: gate %s got %v", ErrInvalidThreshold, gate, entry.Threshold)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for gate, entry := range policy {
		a.policy[gate] = entry
	}
	return nil
}

// Config returns a copy of the active policy.
func (a *Aggregator) Config() Policy {
	a.mu.RLock()
	defer a.mu.RUnlock()

	policy := make(Policy, len(a.policy))
	for gate, entry := range a.policy {
		policy[gate] = entry
	}
	return policy
}

// Observations returns a copy of a session's raw observation log, for
// persistence and inspection. Unknown sessions yield ErrSessionNotFound.
func (a *Aggregator) Observations(sessionID string) ([]Observation, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	obs, ok := a.observations[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, sessionID)
	}
	out := make([]Observation, len(obs))
	copy(out, obs)
	return out, nil
}
