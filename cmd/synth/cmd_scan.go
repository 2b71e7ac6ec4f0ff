package main

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"synthmeter/internal/loc"
)

var (
	scanJSON  bool
	scanWatch bool
)

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Count code, comment, and blank lines in a source tree",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := cfg.Workspace
		if len(args) == 1 {
			root = args[0]
		}

		scanner := loc.NewScanner(loc.ScannerConfig{IgnoreDirs: cfg.Scanner.IgnoreDirs})
		if err := runScan(scanner, root); err != nil {
			return err
		}
		if !scanWatch {
			return nil
		}
		return watchAndRescan(scanner, root)
	},
}

func init() {
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "emit the snapshot as JSON")
	scanCmd.Flags().BoolVar(&scanWatch, "watch", false, "re-scan when files change")
}

func runScan(scanner *loc.Scanner, root string) error {
	snapshot, err := scanner.Scan(root)
	if err != nil {
		return err
	}

	if scanJSON {
		return json.NewEncoder(os.Stdout).Encode(snapshot)
	}
	printSnapshot(snapshot)
	return nil
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

func printSnapshot(snapshot *loc.Snapshot) {
	fmt.Println(headerStyle.Render(fmt.Sprintf("Snapshot of %s", snapshot.Root)))
	fmt.Println(dimStyle.Render(snapshot.Timestamp.Format(time.RFC1123)))
	fmt.Println()

	fmt.Printf("%-14s %8s %10s %10s %10s %10s\n", "language", "files", "total", "code", "comments", "blank")

	languages := make([]string, 0, len(snapshot.ByLanguage))
	for name := range snapshot.ByLanguage {
		languages = append(languages, name)
	}
	sort.Strings(languages)
	for _, name := range languages {
		lm := snapshot.ByLanguage[name]
		fmt.Printf("%-14s %8d %10d %10d %10d %10d\n",
			lm.Language, lm.Files, lm.Metrics.Total, lm.Metrics.Code, lm.Metrics.Comments, lm.Metrics.Blank)
	}

	t := snapshot.Totals
	fmt.Printf("%-14s %8d %10d %10d %10d %10d\n", "TOTAL", t.Files, t.Total, t.Code, t.Comments, t.Blank)
}

// watchAndRescan blocks, re-scanning after filesystem changes settle.
// fsnotify does not recurse, so every surviving directory of the last scan
// is watched; new directories get picked up by the rescan that their
// creation triggers.
func watchAndRescan(scanner *loc.Scanner, root string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := addWatchTree(watcher, root); err != nil {
		return err
	}

	logger.Info("watching for changes", zap.String("root", root))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	// Debounce rapid save bursts into one rescan.
	const settle = 500 * time.Millisecond
	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(settle)
				timerCh = timer.C
			} else {
				timer.Reset(settle)
			}
		case <-timerCh:
			timer = nil
			timerCh = nil
			if err := runScan(scanner, root); err != nil {
				logger.Warn("rescan failed", zap.Error(err))
			}
			_ = addWatchTree(watcher, root)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", zap.Error(err))
		case <-sigCh:
			return nil
		}
	}
}

func addWatchTree(watcher *fsnotify.Watcher, root string) error {
	ignore := loc.DefaultScannerConfig().IgnoreDirs
	if len(cfg.Scanner.IgnoreDirs) > 0 {
		ignore = cfg.Scanner.IgnoreDirs
	}
	ignored := make(map[string]bool, len(ignore))
	for _, dir := range ignore {
		ignored[dir] = true
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != root && ignored[d.Name()] {
			return filepath.SkipDir
		}
		// Already-watched paths are a no-op for fsnotify.
		if err := watcher.Add(path); err != nil {
			logger.Debug("cannot watch directory", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
}
