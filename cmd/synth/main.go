// Command synth measures how efficiently an automated writer produces
// verified code: it classifies every line of a source tree, merges pass/fail
// gate observations into per-line verdicts, and reports tokens spent per
// verified line.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"synthmeter/internal/config"
	"synthmeter/internal/events"
	"synthmeter/internal/gates"
	"synthmeter/internal/loc"
	"synthmeter/internal/logging"
	"synthmeter/internal/metrics"
	"synthmeter/internal/store"
)

var (
	// Global flags
	verbose    bool
	workspace  string
	configPath string

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "synth",
	Short: "synthmeter - verified lines-of-code measurement",
	Long: `synthmeter computes a verified-LOC metric for incrementally written code.

It classifies every line of a source tree (code / comment / blank), merges
repeated pass/fail observations from independent verification gates
(compile, test, runtime reachability) into one verdict per line, and turns
the result into session efficiency numbers: verification rate, probability
of error, and Synth (tokens consumed per line of code).`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapConfig := zap.NewProductionConfig()
		if verbose {
			zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapConfig.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if configPath == "" {
			configPath = config.DefaultConfigPath(workspace)
		}
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if workspace != "" {
			cfg.Workspace = workspace
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		if err := logging.Initialize(cfg.Workspace); err != nil {
			logger.Warn("file logging unavailable", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// app bundles the wired measurement components for one CLI invocation.
type app struct {
	collector  *events.Collector
	aggregator *gates.Aggregator
	engine     *metrics.Engine
	scanner    *loc.Scanner
	local      *store.LocalStore
}

// newApp wires the core and reloads any persisted state for the workspace.
func newApp() (*app, error) {
	collector := events.NewCollector()
	aggregator := gates.NewAggregator()
	if err := aggregator.SetPolicy(cfg.Gates.Policy()); err != nil {
		return nil, fmt.Errorf("apply configured gate policy: %w", err)
	}
	engine := metrics.NewEngine(collector, aggregator)

	local, err := store.NewLocalStore(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	if err := local.Restore(collector, aggregator, engine); err != nil {
		local.Close()
		return nil, fmt.Errorf("restore persisted state: %w", err)
	}

	return &app{
		collector:  collector,
		aggregator: aggregator,
		engine:     engine,
		scanner:    loc.NewScanner(loc.ScannerConfig{IgnoreDirs: cfg.Scanner.IgnoreDirs}),
		local:      local,
	}, nil
}

func (a *app) close() {
	if a.local != nil {
		_ = a.local.Close()
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "workspace root to measure (default from config, else .)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default .synth/config.yaml in the workspace)")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
