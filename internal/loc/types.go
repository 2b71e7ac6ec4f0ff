package loc

import "time"

// LineCategory is the classification of a single source line.
type LineCategory string

const (
	LineCode    LineCategory = "code"
	LineComment LineCategory = "comment"
	LineBlank   LineCategory = "blank"
)

// LineMetrics holds line counts for one classified body of content.
// Invariant: Total == Code + Comments + Blank.
type LineMetrics struct {
	Total    int `json:"total"`
	Code     int `json:"code"`
	Comments int `json:"comments"`
	Blank    int `json:"blank"`
}

// Add accumulates another set of counts into this one.
func (m *LineMetrics) Add(other LineMetrics) {
	m.Total += other.Total
	m.Code += other.Code
	m.Comments += other.Comments
	m.Blank += other.Blank
}

// FileMetrics is the scan result for a single file.
type FileMetrics struct {
	Path     string      `json:"path"`
	Language string      `json:"language"`
	Metrics  LineMetrics `json:"metrics"`
}

// LanguageMetrics aggregates counts across every scanned file of one language.
type LanguageMetrics struct {
	Language string      `json:"language"`
	Files    int         `json:"files"`
	Metrics  LineMetrics `json:"metrics"`
}

// TotalMetrics is the whole-tree rollup.
type TotalMetrics struct {
	Files int `json:"files"`
	LineMetrics
}

// AddFile accumulates one file's counts into the rollup.
func (m *TotalMetrics) AddFile(other LineMetrics) {
	m.Files++
	m.LineMetrics.Add(other)
}

// Snapshot is a full, point-in-time recount of every line in a source tree.
// Immutable once produced; a re-scan produces a new Snapshot rather than
// patching an old one.
type Snapshot struct {
	Root       string                     `json:"root"`
	Timestamp  time.Time                  `json:"timestamp"`
	Files      []FileMetrics              `json:"files"`
	Totals     TotalMetrics               `json:"totals"`
	ByLanguage map[string]LanguageMetrics `json:"by_language"`
}
