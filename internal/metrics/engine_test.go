package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"synthmeter/internal/events"
	"synthmeter/internal/gates"
	"synthmeter/internal/loc"
)

func snap(total, code, comments, blank int) *loc.Snapshot {
	return &loc.Snapshot{
		Root:      "/tmp/project",
		Timestamp: time.Now(),
		Totals: loc.TotalMetrics{
			Files:       1,
			LineMetrics: loc.LineMetrics{Total: total, Code: code, Comments: comments, Blank: blank},
		},
	}
}

func newEngine(t *testing.T) (*Engine, *events.Collector, *gates.Aggregator) {
	t.Helper()
	collector := events.NewCollector()
	aggregator := gates.NewAggregator()
	return NewEngine(collector, aggregator), collector, aggregator
}

func TestCalculateUnknownSession(t *testing.T) {
	engine, _, _ := newEngine(t)
	_, err := engine.Calculate("ghost", snap(10, 10, 0, 0))
	require.ErrorIs(t, err, events.ErrSessionNotFound)
}

func TestCalculateRejectsEmptySnapshot(t *testing.T) {
	engine, collector, _ := newEngine(t)
	collector.StartSession("s1")

	_, err := engine.Calculate("s1", snap(0, 0, 0, 0))
	require.ErrorIs(t, err, ErrNoLOCData)

	_, err = engine.Calculate("s1", nil)
	require.ErrorIs(t, err, ErrNoLOCData)
}

func TestCalculateSynthRatio(t *testing.T) {
	engine, collector, _ := newEngine(t)
	collector.StartSession("s1")
	require.NoError(t, collector.Submit(events.Event{SessionID: "s1", Kind: events.TokensIn, Tokens: 9000}))
	require.NoError(t, collector.Submit(events.Event{SessionID: "s1", Kind: events.TokensOut, Tokens: 6000}))

	m, err := engine.Calculate("s1", snap(300, 220, 50, 30))
	require.NoError(t, err)
	require.Equal(t, 15000, m.TotalTokens)
	require.InDelta(t, 50.0, m.TokensPerLOC, 1e-9)
}

func TestCalculateWithoutGateDataDefaultsToZero(t *testing.T) {
	engine, collector, _ := newEngine(t)
	collector.StartSession("s1")

	m, err := engine.Calculate("s1", snap(100, 80, 10, 10))
	require.NoError(t, err)
	require.Equal(t, 0, m.VerifiedLOC)
	require.InDelta(t, 0.0, m.VerificationRate, 1e-9)
	require.InDelta(t, 0.0, m.OverallPoE, 1e-9)
}

func TestCalculateRatesPerMinute(t *testing.T) {
	engine, collector, aggregator := newEngine(t)
	start := time.Now().Add(-time.Hour)
	require.NoError(t, collector.Submit(events.Event{SessionID: "s1", Kind: events.SessionStart, Timestamp: start}))
	require.NoError(t, collector.Submit(events.Event{
		SessionID: "s1", Kind: events.SessionEnd, Success: true, Timestamp: start.Add(10 * time.Minute),
	}))

	for line := 1; line <= 5; line++ {
		require.NoError(t, aggregator.Record("s1", gates.Observation{
			Gate: gates.KindCompile, File: "a.go", Line: line, Passed: true,
		}))
	}

	m, err := engine.Calculate("s1", snap(100, 80, 10, 10))
	require.NoError(t, err)
	require.InDelta(t, 10.0, m.TotalMinutes, 1e-6)
	require.InDelta(t, 10.0, m.LOCPerMinute, 1e-6)
	require.InDelta(t, 0.5, m.VLOCPerMinute, 1e-6)
	require.Equal(t, 5, m.VerifiedLOC)
	require.InDelta(t, 0.05, m.VerificationRate, 1e-9)
}

func TestCalculateZeroMinutesAvoidsDivision(t *testing.T) {
	engine, collector, _ := newEngine(t)
	start := time.Now().Add(-time.Hour)
	require.NoError(t, collector.Submit(events.Event{SessionID: "s1", Kind: events.SessionStart, Timestamp: start}))
	require.NoError(t, collector.Submit(events.Event{
		SessionID: "s1", Kind: events.SessionEnd, Success: true, Timestamp: start,
	}))

	m, err := engine.Calculate("s1", snap(100, 80, 10, 10))
	require.NoError(t, err)
	require.InDelta(t, 0.0, m.LOCPerMinute, 1e-9)
	require.InDelta(t, 0.0, m.VLOCPerMinute, 1e-9)
}

func TestRecordSynthMeasurementTrend(t *testing.T) {
	engine, collector, _ := newEngine(t)
	collector.StartSession("s1")

	submitTokens := func(n int) {
		t.Helper()
		require.NoError(t, collector.Submit(events.Event{SessionID: "s1", Kind: events.TokensOut, Tokens: n}))
	}

	submitTokens(1000)
	first, err := engine.RecordSynthMeasurement("s1", "story-1", snap(100, 100, 0, 0))
	require.NoError(t, err)
	require.InDelta(t, 10.0, first.Synth, 1e-9)
	require.InDelta(t, 10.0, first.Delta, 1e-9, "first delta is the raw synth value")

	submitTokens(2000)
	second, err := engine.RecordSynthMeasurement("s1", "story-2", snap(200, 200, 0, 0))
	require.NoError(t, err)
	require.InDelta(t, 15.0, second.Synth, 1e-9)
	require.InDelta(t, 5.0, second.Delta, 1e-9)

	submitTokens(1000)
	third, err := engine.RecordSynthMeasurement("s1", "story-3", snap(400, 400, 0, 0))
	require.NoError(t, err)
	require.InDelta(t, 10.0, third.Synth, 1e-9)
	require.InDelta(t, -5.0, third.Delta, 1e-9)

	trend := engine.Trend("s1")
	require.Len(t, trend, 3)

	// Deltas telescope: consecutive deltas sum to last - first.
	sum := 0.0
	for _, p := range trend[1:] {
		sum += p.Delta
	}
	require.InDelta(t, trend[2].Synth-trend[0].Synth, sum, 1e-9)
}

func TestRecordSynthMeasurementErrors(t *testing.T) {
	engine, collector, _ := newEngine(t)
	_, err := engine.RecordSynthMeasurement("ghost", "cp", snap(10, 10, 0, 0))
	require.ErrorIs(t, err, events.ErrSessionNotFound)

	collector.StartSession("s1")
	_, err = engine.RecordSynthMeasurement("s1", "cp", snap(0, 0, 0, 0))
	require.ErrorIs(t, err, ErrNoLOCData)
}

func TestTrendIsolatedPerSession(t *testing.T) {
	engine, collector, _ := newEngine(t)
	collector.StartSession("s1")
	collector.StartSession("s2")

	_, err := engine.RecordSynthMeasurement("s1", "cp-1", snap(10, 10, 0, 0))
	require.NoError(t, err)

	require.Empty(t, engine.Trend("s2"))
	require.Len(t, engine.Trend("s1"), 1)
}

func TestGetReportAndFormat(t *testing.T) {
	engine, collector, aggregator := newEngine(t)
	collector.StartSession("s1")
	require.NoError(t, collector.Submit(events.Event{SessionID: "s1", Kind: events.TokensIn, Tokens: 500}))
	require.NoError(t, aggregator.Record("s1", gates.Observation{
		Gate: gates.KindCompile, File: "a.go", Line: 1, Passed: true,
	}))
	_, err := engine.RecordSynthMeasurement("s1", "story-1", snap(50, 40, 5, 5))
	require.NoError(t, err)

	report, err := engine.GetReport("s1", snap(50, 40, 5, 5))
	require.NoError(t, err)
	require.Len(t, report.Trend, 1)
	require.Contains(t, report.Gates, gates.KindCompile)

	text := FormatReport(report)
	require.Contains(t, text, "s1")
	require.Contains(t, text, "GATES")
	require.Contains(t, text, "SYNTH TREND")
	require.Contains(t, text, "Synth (tokens/LOC):")
}

func TestFormatReportOmitsAbsentSections(t *testing.T) {
	engine, collector, _ := newEngine(t)
	collector.StartSession("s1")

	report, err := engine.GetReport("s1", snap(10, 10, 0, 0))
	require.NoError(t, err)

	text := FormatReport(report)
	require.NotContains(t, text, "SYNTH TREND")
	require.NotContains(t, text, "\nGATES\n")
	require.True(t, strings.Contains(text, "VERIFICATION"))
}

func TestRestoreTrend(t *testing.T) {
	engine, _, _ := newEngine(t)
	points := []TrendPoint{
		{Checkpoint: "cp-1", Tokens: 100, TotalLOC: 10, Synth: 10, Delta: 10},
		{Checkpoint: "cp-2", Tokens: 300, TotalLOC: 20, Synth: 15, Delta: 5},
	}
	engine.RestoreTrend("s1", points)

	trend := engine.Trend("s1")
	require.Len(t, trend, 2)
	require.Equal(t, "cp-2", trend[1].Checkpoint)
}
