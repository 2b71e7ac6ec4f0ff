// Package gates records pass/fail observations from independent verification
// mechanisms and derives per-line verified verdicts from the accumulated
// history. Observations are append-only; verdicts are recomputed on read so
// they are always a pure function of the current history and policy.
package gates

import (
	"errors"
	"time"
)

// Kind identifies a verification gate.
type Kind string

const (
	// KindCompile is the compiler-diagnostics gate.
	KindCompile Kind = "compile"
	// KindTest is the test-coverage gate.
	KindTest Kind = "test"
	// KindRuntime is the runtime-reachability gate.
	KindRuntime Kind = "runtime"
)

// Kinds lists every recognized gate kind in a stable order.
var Kinds = []Kind{KindCompile, KindTest, KindRuntime}

// ValidKind reports whether k is one of the recognized gate kinds.
func ValidKind(k Kind) bool {
	switch k {
	case KindCompile, KindTest, KindRuntime:
		return true
	}
	return false
}

var (
	// ErrSessionNotFound means the session has no recorded observations.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidGate means an observation named an unrecognized gate kind.
	ErrInvalidGate = errors.New("invalid gate kind")
	// ErrInvalidThreshold means a policy update supplied a threshold outside [0,1].
	ErrInvalidThreshold = errors.New("threshold must be between 0 and 1")
)

// Observation is one pass/fail report about one line from one gate.
// Duplicates and contradictions for the same (gate, file, line) key are
// expected inputs, not errors.
type Observation struct {
	Gate      Kind      `json:"gate"`
	File      string    `json:"file"`
	Line      int       `json:"line"`
	Passed    bool      `json:"passed"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// LineResult is one line's outcome inside a batched gate report.
type LineResult struct {
	Line    int    `json:"line"`
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
}

// Report is the batched shape produced by the exploration collaborator:
// one gate, one file, many line results.
type Report struct {
	Gate  Kind         `json:"gate"`
	File  string       `json:"file"`
	Lines []LineResult `json:"lines"`
}

// PolicyEntry holds the three per-gate policy flags.
//
// Threshold is accepted, stored, and surfaced but not consulted when
// computing verdicts; only Required and Skip are load-bearing.
type PolicyEntry struct {
	Required  bool    `json:"required" yaml:"required"`
	Threshold float64 `json:"threshold" yaml:"threshold"`
	Skip      bool    `json:"skip" yaml:"skip"`
}

// Policy maps each gate kind to its flags.
type Policy map[Kind]PolicyEntry

// DefaultPolicy returns the starting policy: every gate required at full
// threshold, none skipped.
func DefaultPolicy() Policy {
	p := make(Policy, len(Kinds))
	for _, k := range Kinds {
		p[k] = PolicyEntry{Required: true, Threshold: 1.0}
	}
	return p
}

// EntryUpdate is a partial update to one gate's flags. Nil fields keep the
// existing value.
type EntryUpdate struct {
	Required  *bool    `json:"required,omitempty" yaml:"required,omitempty"`
	Threshold *float64 `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	Skip      *bool    `json:"skip,omitempty" yaml:"skip,omitempty"`
}

// ConfigUpdate is a partial policy update: gates absent from the map keep
// their current flags entirely.
type ConfigUpdate map[Kind]EntryUpdate

// Stats summarizes one gate's observations within a session.
type Stats struct {
	Gate         Kind    `json:"gate"`
	LinesChecked int     `json:"lines_checked"`
	LinesPassed  int     `json:"lines_passed"`
	PassRate     float64 `json:"pass_rate"`
	PoE          float64 `json:"poe"`
}

// SessionStats combines every gate's stats with the cross-gate verdicts.
type SessionStats struct {
	Gates         map[Kind]Stats `json:"gates"`
	VerifiedLines int            `json:"verified_lines"`
	OverallPoE    float64        `json:"overall_poe"`
}

// LineStatus is one row of the per-file verification table. A gate absent
// from Gates never checked the line.
type LineStatus struct {
	Line     int           `json:"line"`
	Gates    map[Kind]bool `json:"gates"`
	Verified bool          `json:"verified"`
}
