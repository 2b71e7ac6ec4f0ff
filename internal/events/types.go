// Package events collects the ordered, typed event stream for each
// measurement session and folds it into monotonic counters. Intake
// validation happens upstream; this layer trusts the records it is handed.
package events

import (
	"errors"
	"time"
)

// Kind identifies an event type.
type Kind string

const (
	SessionStart   Kind = "session_start"
	SessionEnd     Kind = "session_end"
	IterationStart Kind = "iteration_start"
	IterationEnd   Kind = "iteration_end"
	TokensIn       Kind = "tokens_in"
	TokensOut      Kind = "tokens_out"
	CompileResult  Kind = "compile_result"
	TestResult     Kind = "test_result"
	StoryComplete  Kind = "story_complete"
)

// ErrSessionNotFound means no events were ever recorded for the session.
var ErrSessionNotFound = errors.New("session not found")

// Event is one timestamped record in a session's stream. Only the fields
// relevant to the Kind carry meaning: Tokens for tokens_in/tokens_out,
// Success for compile_result/test_result/story_complete/session_end,
// Story for story_complete.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`
	Kind      Kind      `json:"kind"`
	Tokens    int       `json:"tokens,omitempty"`
	Success   bool      `json:"success,omitempty"`
	Story     string    `json:"story,omitempty"`
}

// State is a session's lifecycle state.
type State string

const (
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Counters are the fold of a session's event stream. All fields only ever
// increase; they reflect events in exact submission order.
type Counters struct {
	TokensIn         int `json:"tokens_in"`
	TokensOut        int `json:"tokens_out"`
	Iterations       int `json:"iterations"`
	CompileAttempts  int `json:"compile_attempts"`
	CompileSuccesses int `json:"compile_successes"`
	TestAttempts     int `json:"test_attempts"`
	TestSuccesses    int `json:"test_successes"`
	StoriesCompleted int `json:"stories_completed"`
	StoriesPassed    int `json:"stories_passed"`
}

// TotalTokens is the sum of input and output token counters.
func (c Counters) TotalTokens() int {
	return c.TokensIn + c.TokensOut
}

// Session is the folded view of one measurement session.
type Session struct {
	ID        string    `json:"id"`
	State     State     `json:"state"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time,omitempty"`
	Counters  Counters  `json:"counters"`
}
