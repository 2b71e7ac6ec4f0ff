package events

import (
	"errors"
	"testing"
	"time"
)

func TestSubmitFoldsCountersInOrder(t *testing.T) {
	c := NewCollector()
	id, created := c.StartSession("sess_1")
	if id != "sess_1" || !created {
		t.Fatalf("StartSession returned %q created=%v", id, created)
	}

	submit := func(ev Event) {
		t.Helper()
		ev.SessionID = id
		if err := c.Submit(ev); err != nil {
			t.Fatalf("Submit(%s): %v", ev.Kind, err)
		}
	}

	submit(Event{Kind: IterationStart})
	submit(Event{Kind: TokensIn, Tokens: 100})
	submit(Event{Kind: TokensOut, Tokens: 40})
	submit(Event{Kind: CompileResult, Success: false})
	submit(Event{Kind: CompileResult, Success: true})
	submit(Event{Kind: TestResult, Success: true})
	submit(Event{Kind: StoryComplete, Story: "story-1", Success: true})
	submit(Event{Kind: IterationEnd})

	counters, err := c.Counters(id)
	if err != nil {
		t.Fatalf("Counters: %v", err)
	}
	want := Counters{
		TokensIn:         100,
		TokensOut:        40,
		Iterations:       1,
		CompileAttempts:  2,
		CompileSuccesses: 1,
		TestAttempts:     1,
		TestSuccesses:    1,
		StoriesCompleted: 1,
		StoriesPassed:    1,
	}
	if counters != want {
		t.Fatalf("Counters = %+v, want %+v", counters, want)
	}
	if counters.TotalTokens() != 140 {
		t.Fatalf("TotalTokens = %d, want 140", counters.TotalTokens())
	}

	evs, err := c.Events(id)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	// session_start plus the eight submitted above, in submission order.
	if len(evs) != 9 {
		t.Fatalf("len(Events) = %d, want 9", len(evs))
	}
	if evs[0].Kind != SessionStart || evs[1].Kind != IterationStart || evs[8].Kind != IterationEnd {
		t.Fatalf("events out of order: %v %v %v", evs[0].Kind, evs[1].Kind, evs[8].Kind)
	}
}

func TestSubmitUnknownSession(t *testing.T) {
	c := NewCollector()
	err := c.Submit(Event{SessionID: "ghost", Kind: TokensIn, Tokens: 5})
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionLifecycleEndsExactlyOnce(t *testing.T) {
	c := NewCollector()
	id, _ := c.StartSession("")
	if id == "" {
		t.Fatal("StartSession must mint an id")
	}

	s, err := c.Session(id)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if s.State != StateActive {
		t.Fatalf("State = %s, want active", s.State)
	}

	end := time.Now().Add(3 * time.Minute)
	if err := c.Submit(Event{SessionID: id, Kind: SessionEnd, Success: false, Timestamp: end}); err != nil {
		t.Fatalf("Submit end: %v", err)
	}
	s, _ = c.Session(id)
	if s.State != StateFailed {
		t.Fatalf("State = %s, want failed", s.State)
	}
	if !s.EndTime.Equal(end) {
		t.Fatalf("EndTime = %v, want %v", s.EndTime, end)
	}

	// A second end event must not flip the state or move the end time.
	if err := c.Submit(Event{SessionID: id, Kind: SessionEnd, Success: true}); err != nil {
		t.Fatalf("Submit second end: %v", err)
	}
	s, _ = c.Session(id)
	if s.State != StateFailed || !s.EndTime.Equal(end) {
		t.Fatalf("second end event mutated the session: %+v", s)
	}
}

func TestDuration(t *testing.T) {
	c := NewCollector()
	start := time.Now().Add(-10 * time.Minute)
	if err := c.Submit(Event{SessionID: "s1", Kind: SessionStart, Timestamp: start}); err != nil {
		t.Fatalf("Submit start: %v", err)
	}

	// Open session: duration runs to now.
	d, err := c.Duration("s1")
	if err != nil {
		t.Fatalf("Duration: %v", err)
	}
	if d < 9*time.Minute || d > 11*time.Minute {
		t.Fatalf("open session duration = %v, want ~10m", d)
	}

	if err := c.Submit(Event{SessionID: "s1", Kind: SessionEnd, Success: true, Timestamp: start.Add(5 * time.Minute)}); err != nil {
		t.Fatalf("Submit end: %v", err)
	}
	d, err = c.Duration("s1")
	if err != nil {
		t.Fatalf("Duration: %v", err)
	}
	if d != 5*time.Minute {
		t.Fatalf("closed session duration = %v, want 5m", d)
	}
}

func TestStartSessionIdempotent(t *testing.T) {
	c := NewCollector()
	if _, created := c.StartSession("s1"); !created {
		t.Fatal("first StartSession must report creation")
	}
	if err := c.Submit(Event{SessionID: "s1", Kind: TokensIn, Tokens: 10}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, created := c.StartSession("s1"); created {
		t.Fatal("restart must not report creation")
	}

	counters, err := c.Counters("s1")
	if err != nil {
		t.Fatalf("Counters: %v", err)
	}
	if counters.TokensIn != 10 {
		t.Fatalf("restart reset counters: %+v", counters)
	}
}
