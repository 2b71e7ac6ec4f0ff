package metrics

import (
	"fmt"
	"strings"

	"synthmeter/internal/events"
	"synthmeter/internal/gates"
	"synthmeter/internal/loc"
)

// Report is the full read-only composition of a session's measurements.
// Gates and Trend may legitimately be empty (no gate data ever recorded, a
// session with no checkpoints); FormatReport omits those sections.
type Report struct {
	Session events.Session             `json:"session"`
	Metrics Metrics                    `json:"metrics"`
	Gates   map[gates.Kind]gates.Stats `json:"gates,omitempty"`
	Policy  gates.Policy               `json:"policy"`
	Trend   []TrendPoint               `json:"trend,omitempty"`
}

// GetReport assembles a session's report against a snapshot. It fails only
// where Calculate fails; missing gate data and an empty trend are rendered
// as absent sections.
func (e *Engine) GetReport(sessionID string, snapshot *loc.Snapshot) (Report, error) {
	m, err := e.Calculate(sessionID, snapshot)
	if err != nil {
		return Report{}, err
	}

	session, err := e.events.Session(sessionID)
	if err != nil {
		return Report{}, fmt.Errorf("get report: %w", err)
	}

	report := Report{
		Session: session,
		Metrics: m,
		Policy:  e.gates.Config(),
		Trend:   e.Trend(sessionID),
	}
	if stats, err := e.gates.SessionStats(sessionID); err == nil {
		report.Gates = stats.Gates
	}
	return report, nil
}

const reportWidth = 62

// FormatReport renders a report as fixed-width text sections.
func FormatReport(r Report) string {
	var sb strings.Builder
	rule := strings.Repeat("=", reportWidth)
	thin := strings.Repeat("-", reportWidth)

	sb.WriteString(rule + "\n")
	sb.WriteString(center("SYNTHMETER SESSION REPORT", reportWidth) + "\n")
	sb.WriteString(rule + "\n")

	sb.WriteString(fmt.Sprintf("%-24s %s\n", "Session:", r.Session.ID))
	sb.WriteString(fmt.Sprintf("%-24s %s\n", "State:", r.Session.State))
	sb.WriteString(fmt.Sprintf("%-24s %s\n", "Started:", r.Session.StartTime.Format("2006-01-02 15:04:05")))
	if !r.Session.EndTime.IsZero() {
		sb.WriteString(fmt.Sprintf("%-24s %s\n", "Ended:", r.Session.EndTime.Format("2006-01-02 15:04:05")))
	}

	sb.WriteString(thin + "\n")
	sb.WriteString("LINES OF CODE\n")
	sb.WriteString(fmt.Sprintf("%-24s %d\n", "Total lines:", r.Metrics.TotalLOC))
	sb.WriteString(fmt.Sprintf("%-24s %d\n", "Code:", r.Metrics.CodeLOC))
	sb.WriteString(fmt.Sprintf("%-24s %d\n", "Comments:", r.Metrics.CommentLOC))
	sb.WriteString(fmt.Sprintf("%-24s %d\n", "Blank:", r.Metrics.BlankLOC))

	sb.WriteString(thin + "\n")
	sb.WriteString("VERIFICATION\n")
	sb.WriteString(fmt.Sprintf("%-24s %d\n", "Verified lines:", r.Metrics.VerifiedLOC))
	sb.WriteString(fmt.Sprintf("%-24s %.1f%%\n", "Verification rate:", r.Metrics.VerificationRate*100))
	sb.WriteString(fmt.Sprintf("%-24s %.3f\n", "Overall PoE:", r.Metrics.OverallPoE))

	if len(r.Gates) > 0 {
		sb.WriteString(thin + "\n")
		sb.WriteString("GATES\n")
		sb.WriteString(fmt.Sprintf("%-10s %10s %10s %10s %8s %6s\n",
			"gate", "checked", "passed", "rate", "poe", "flags"))
		for _, kind := range gates.Kinds {
			stats, ok := r.Gates[kind]
			if !ok {
				continue
			}
			sb.WriteString(fmt.Sprintf("%-10s %10d %10d %9.1f%% %8.3f %6s\n",
				kind, stats.LinesChecked, stats.LinesPassed,
				stats.PassRate*100, stats.PoE, policyFlags(r.Policy[kind])))
		}
	}

	sb.WriteString(thin + "\n")
	sb.WriteString("EFFICIENCY\n")
	sb.WriteString(fmt.Sprintf("%-24s %d\n", "Total tokens:", r.Metrics.TotalTokens))
	sb.WriteString(fmt.Sprintf("%-24s %.2f\n", "Synth (tokens/LOC):", r.Metrics.TokensPerLOC))
	sb.WriteString(fmt.Sprintf("%-24s %.1f\n", "Minutes elapsed:", r.Metrics.TotalMinutes))
	sb.WriteString(fmt.Sprintf("%-24s %.2f\n", "LOC/minute:", r.Metrics.LOCPerMinute))
	sb.WriteString(fmt.Sprintf("%-24s %.2f\n", "Verified LOC/minute:", r.Metrics.VLOCPerMinute))

	if len(r.Trend) > 0 {
		sb.WriteString(thin + "\n")
		sb.WriteString("SYNTH TREND\n")
		sb.WriteString(fmt.Sprintf("%-20s %10s %10s %10s %10s\n",
			"checkpoint", "tokens", "loc", "synth", "delta"))
		for _, p := range r.Trend {
			sb.WriteString(fmt.Sprintf("%-20s %10d %10d %10.2f %+10.2f\n",
				p.Checkpoint, p.Tokens, p.TotalLOC, p.Synth, p.Delta))
		}
	}

	sb.WriteString(thin + "\n")
	sb.WriteString("SESSION COUNTERS\n")
	c := r.Session.Counters
	sb.WriteString(fmt.Sprintf("%-24s %d\n", "Iterations:", c.Iterations))
	sb.WriteString(fmt.Sprintf("%-24s %d/%d\n", "Compiles (ok/total):", c.CompileSuccesses, c.CompileAttempts))
	sb.WriteString(fmt.Sprintf("%-24s %d/%d\n", "Tests (ok/total):", c.TestSuccesses, c.TestAttempts))
	sb.WriteString(fmt.Sprintf("%-24s %d/%d\n", "Stories (ok/total):", c.StoriesPassed, c.StoriesCompleted))
	sb.WriteString(rule + "\n")

	return sb.String()
}

func policyFlags(entry gates.PolicyEntry) string {
	flags := make([]byte, 0, 2)
	if entry.Required {
		flags = append(flags, 'R')
	}
	if entry.Skip {
		flags = append(flags, 'S')
	}
	if len(flags) == 0 {
		return "-"
	}
	return string(flags)
}

func center(s string, width int) string {
	if len(s) >= width {
		return s
	}
	pad := (width - len(s)) / 2
	return strings.Repeat(" ", pad) + s
}
