package loc

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"synthmeter/internal/logging"
)

// ScannerConfig controls tree scanning scope.
type ScannerConfig struct {
	// IgnoreDirs skips directories by name anywhere in the tree:
	// dependency caches, VCS metadata, build output, virtual environments.
	IgnoreDirs []string
}

// DefaultScannerConfig returns the standard deny-list for source trees.
func DefaultScannerConfig() ScannerConfig {
	return ScannerConfig{
		IgnoreDirs: []string{
			".git",
			".synth",
			"node_modules",
			"vendor",
			"dist",
			"build",
			"target",
			"bin",
			"obj",
			"__pycache__",
			".venv",
			"venv",
			".cache",
			".next",
			".terraform",
		},
	}
}

// Scanner produces whole-tree Codebase Snapshots.
type Scanner struct {
	config ScannerConfig
	ignore map[string]bool
}

// NewScanner creates a Scanner with the given config. A zero-value config
// falls back to DefaultScannerConfig.
func NewScanner(config ScannerConfig) *Scanner {
	if len(config.IgnoreDirs) == 0 {
		config = DefaultScannerConfig()
	}
	ignore := make(map[string]bool, len(config.IgnoreDirs))
	for _, dir := range config.IgnoreDirs {
		ignore[dir] = true
	}
	return &Scanner{config: config, ignore: ignore}
}

// Scan walks the tree under root depth-first and classifies every file whose
// extension maps to a known language. Unreadable files and directories are
// skipped rather than failing the scan: a measurement tool must not abort on
// an unrelated permissions problem. The resulting Snapshot is immutable.
func (s *Scanner) Scan(root string) (*Snapshot, error) {
	timer := logging.StartTimer(logging.CategoryScan, "Scan")
	defer timer.Stop()

	// Entries inside the tree are skipped on error, but an inaccessible
	// root is the caller's problem.
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("scan root: %w", err)
	}

	snapshot := &Snapshot{
		Root:       root,
		Timestamp:  time.Now(),
		ByLanguage: make(map[string]LanguageMetrics),
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logging.ScanDebug("skipping unreadable entry %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && s.ignore[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsSupported(path) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			logging.ScanDebug("skipping unreadable file %s: %v", path, err)
			return nil
		}

		lang := DetectLanguage(path)
		metrics := Classify(string(data), lang)

		snapshot.Files = append(snapshot.Files, FileMetrics{
			Path:     path,
			Language: lang.Name,
			Metrics:  metrics,
		})
		snapshot.Totals.AddFile(metrics)

		byLang := snapshot.ByLanguage[lang.Name]
		byLang.Language = lang.Name
		byLang.Files++
		byLang.Metrics.Add(metrics)
		snapshot.ByLanguage[lang.Name] = byLang

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(snapshot.Files, func(i, j int) bool {
		return snapshot.Files[i].Path < snapshot.Files[j].Path
	})

	logging.Scan("scanned %s: %d files, %d lines (%d code)",
		root, snapshot.Totals.Files, snapshot.Totals.Total, snapshot.Totals.Code)
	return snapshot, nil
}
