package store

import (
	"path/filepath"
	"testing"
	"time"

	"synthmeter/internal/events"
	"synthmeter/internal/gates"
	"synthmeter/internal/metrics"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(filepath.Join(t.TempDir(), ".synth", "synthmeter.db"))
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestObservationRoundTrip(t *testing.T) {
	s := newTestStore(t)

	want := gates.Observation{
		Gate:      gates.KindCompile,
		File:      "a.go",
		Line:      12,
		Passed:    false,
		Message:   "undefined: foo",
		Timestamp: time.Now().UTC().Truncate(time.Second),
	}
	if err := s.SaveObservation("s1", want); err != nil {
		t.Fatalf("SaveObservation: %v", err)
	}

	got, err := s.LoadObservations("s1")
	if err != nil {
		t.Fatalf("LoadObservations: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Gate != want.Gate || got[0].File != want.File || got[0].Line != want.Line ||
		got[0].Passed != want.Passed || got[0].Message != want.Message {
		t.Fatalf("observation = %+v, want %+v", got[0], want)
	}

	other, err := s.LoadObservations("other")
	if err != nil {
		t.Fatalf("LoadObservations(other): %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("unexpected observations for other session: %v", other)
	}
}

func TestEventOrderPreserved(t *testing.T) {
	s := newTestStore(t)

	kinds := []events.Kind{events.SessionStart, events.TokensIn, events.CompileResult, events.SessionEnd}
	for _, kind := range kinds {
		ev := events.Event{SessionID: "s1", Kind: kind, Tokens: 10, Success: true, Timestamp: time.Now()}
		if err := s.SaveEvent(ev); err != nil {
			t.Fatalf("SaveEvent(%s): %v", kind, err)
		}
	}

	got, err := s.LoadEvents("s1")
	if err != nil {
		t.Fatalf("LoadEvents: %v", err)
	}
	if len(got) != len(kinds) {
		t.Fatalf("len = %d, want %d", len(got), len(kinds))
	}
	for i, kind := range kinds {
		if got[i].Kind != kind {
			t.Fatalf("event %d = %s, want %s", i, got[i].Kind, kind)
		}
	}
}

func TestRestoreRebuildsState(t *testing.T) {
	s := newTestStore(t)

	start := time.Now().Add(-30 * time.Minute)
	eventLog := []events.Event{
		{SessionID: "s1", Kind: events.SessionStart, Timestamp: start},
		{SessionID: "s1", Kind: events.TokensIn, Tokens: 1500, Timestamp: start.Add(time.Minute)},
		{SessionID: "s1", Kind: events.TokensOut, Tokens: 500, Timestamp: start.Add(2 * time.Minute)},
		{SessionID: "s1", Kind: events.SessionEnd, Success: true, Timestamp: start.Add(10 * time.Minute)},
	}
	for _, ev := range eventLog {
		if err := s.SaveEvent(ev); err != nil {
			t.Fatalf("SaveEvent: %v", err)
		}
	}
	if err := s.SaveObservation("s1", gates.Observation{
		Gate: gates.KindTest, File: "a.go", Line: 3, Passed: true, Timestamp: start,
	}); err != nil {
		t.Fatalf("SaveObservation: %v", err)
	}
	if err := s.SaveTrendPoint("s1", metrics.TrendPoint{
		Checkpoint: "cp-1", Tokens: 2000, TotalLOC: 100, Synth: 20, Delta: 20, Timestamp: start,
	}); err != nil {
		t.Fatalf("SaveTrendPoint: %v", err)
	}

	collector := events.NewCollector()
	aggregator := gates.NewAggregator()
	engine := metrics.NewEngine(collector, aggregator)
	if err := s.Restore(collector, aggregator, engine); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	session, err := collector.Session("s1")
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if session.State != events.StateCompleted {
		t.Fatalf("State = %s, want completed", session.State)
	}
	if session.Counters.TotalTokens() != 2000 {
		t.Fatalf("TotalTokens = %d, want 2000", session.Counters.TotalTokens())
	}

	stats, err := aggregator.GateStats("s1", gates.KindTest)
	if err != nil {
		t.Fatalf("GateStats: %v", err)
	}
	if stats.LinesChecked != 1 || stats.LinesPassed != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	trend := engine.Trend("s1")
	if len(trend) != 1 || trend[0].Checkpoint != "cp-1" {
		t.Fatalf("trend = %+v", trend)
	}
}

func TestSessionsListsAllStores(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveEvent(events.Event{SessionID: "a", Kind: events.SessionStart, Timestamp: time.Now()}); err != nil {
		t.Fatalf("SaveEvent: %v", err)
	}
	if err := s.SaveObservation("b", gates.Observation{
		Gate: gates.KindCompile, File: "x.go", Line: 1, Passed: true, Timestamp: time.Now(),
	}); err != nil {
		t.Fatalf("SaveObservation: %v", err)
	}

	ids, err := s.Sessions()
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("Sessions = %v, want two ids", ids)
	}
}
