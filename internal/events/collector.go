package events

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"synthmeter/internal/logging"
)

// Collector holds every session's event stream and folded counters for the
// lifetime of one measurement run. Sessions are independent map entries.
type Collector struct {
	mu       sync.RWMutex
	sessions map[string]*sessionState
}

type sessionState struct {
	session Session
	events  []Event
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{sessions: make(map[string]*sessionState)}
}

// StartSession begins a new session, returning its ID and whether the call
// created it. An empty id mints a fresh UUID. Restarting an existing session
// is a no-op returning the same id and false.
func (c *Collector) StartSession(id string) (string, bool) {
	return c.startAt(id, time.Now())
}

func (c *Collector) startAt(id string, ts time.Time) (string, bool) {
	if id == "" {
		id = uuid.NewString()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sessions[id]; ok {
		return id, false
	}

	c.sessions[id] = &sessionState{
		session: Session{ID: id, State: StateActive, StartTime: ts},
		events: []Event{{
			Timestamp: ts,
			SessionID: id,
			Kind:      SessionStart,
		}},
	}
	logging.Events("session started: %s", id)
	return id, true
}

// Submit appends one event to its session's stream and folds it into the
// counters. A session_start event creates the session; any other kind for an
// unknown session is ErrSessionNotFound.
func (c *Collector) Submit(ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	if ev.Kind == SessionStart {
		c.startAt(ev.SessionID, ev.Timestamp)
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.sessions[ev.SessionID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrSessionNotFound, ev.SessionID)
	}
	state.events = append(state.events, ev)
	fold(&state.session, ev)

	logging.EventsDebug("event %s folded into session %s", ev.Kind, ev.SessionID)
	return nil
}

// fold applies one event to the session's counters and lifecycle. Counters
// only ever increase; the end transition happens exactly once.
func fold(s *Session, ev Event) {
	switch ev.Kind {
	case SessionEnd:
		if s.State != StateActive {
			return
		}
		s.EndTime = ev.Timestamp
		if ev.Success {
			s.State = StateCompleted
		} else {
			s.State = StateFailed
		}
	case IterationStart:
		s.Counters.Iterations++
	case IterationEnd:
		// Counted on start; the end marker carries no counter.
	case TokensIn:
		s.Counters.TokensIn += ev.Tokens
	case TokensOut:
		s.Counters.TokensOut += ev.Tokens
	case CompileResult:
		s.Counters.CompileAttempts++
		if ev.Success {
			s.Counters.CompileSuccesses++
		}
	case TestResult:
		s.Counters.TestAttempts++
		if ev.Success {
			s.Counters.TestSuccesses++
		}
	case StoryComplete:
		s.Counters.StoriesCompleted++
		if ev.Success {
			s.Counters.StoriesPassed++
		}
	}
}

// Session returns a copy of the folded session view.
func (c *Collector) Session(id string) (Session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	state, ok := c.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	return state.session, nil
}

// Counters returns a copy of the session's folded counters.
func (c *Collector) Counters(id string) (Counters, error) {
	s, err := c.Session(id)
	if err != nil {
		return Counters{}, err
	}
	return s.Counters, nil
}

// Events returns a copy of the session's ordered event stream.
func (c *Collector) Events(id string) ([]Event, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	state, ok := c.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	out := make([]Event, len(state.events))
	copy(out, state.events)
	return out, nil
}

// Duration is the elapsed time from session start to its end, or to now for
// a session that has not ended.
func (c *Collector) Duration(id string) (time.Duration, error) {
	s, err := c.Session(id)
	if err != nil {
		return 0, err
	}
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime), nil
	}
	return s.EndTime.Sub(s.StartTime), nil
}
