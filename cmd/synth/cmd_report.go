package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"synthmeter/internal/gates"
	"synthmeter/internal/metrics"
)

var reportJSON bool

var reportCmd = &cobra.Command{
	Use:   "report <session>",
	Short: "Print the efficiency report for a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		snapshot, err := a.scanner.Scan(cfg.Workspace)
		if err != nil {
			return err
		}
		report, err := a.engine.GetReport(args[0], snapshot)
		if err != nil {
			return err
		}

		if reportJSON {
			return json.NewEncoder(os.Stdout).Encode(report)
		}
		fmt.Print(metrics.FormatReport(report))
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify <session> <file>",
	Short: "Show per-line gate verdicts for one file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		statuses, err := a.aggregator.LineVerification(args[0], args[1])
		if err != nil {
			return err
		}
		if len(statuses) == 0 {
			fmt.Printf("no observations recorded for %s\n", args[1])
			return nil
		}

		fmt.Println(headerStyle.Render(args[1]))
		fmt.Printf("%6s  %-9s %-9s %-9s %s\n", "line", "compile", "test", "runtime", "verified")
		for _, status := range statuses {
			fmt.Printf("%6d  %-9s %-9s %-9s %s\n",
				status.Line,
				gateCell(status.Gates, gates.KindCompile),
				gateCell(status.Gates, gates.KindTest),
				gateCell(status.Gates, gates.KindRuntime),
				verifiedCell(status.Verified))
		}
		return nil
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List sessions with persisted measurements",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		ids, err := a.local.Sessions()
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Println("no sessions recorded")
			return nil
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

var (
	passStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// gateCell renders one gate's verdict for a line; a dash means the gate
// never checked the line.
func gateCell(verdicts map[gates.Kind]bool, gate gates.Kind) string {
	passed, checked := verdicts[gate]
	switch {
	case !checked:
		return "-"
	case passed:
		return passStyle.Render("pass")
	default:
		return failStyle.Render("FAIL")
	}
}

func verifiedCell(verified bool) string {
	if verified {
		return passStyle.Render("yes")
	}
	return failStyle.Render("no")
}

func init() {
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "emit the report as JSON")
}
