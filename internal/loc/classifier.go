package loc

import "strings"

// Classify counts code/comment/blank lines in content under the given
// language grammar. Pure function: no I/O, no state beyond the scan.
//
// Lines are produced by splitting on LF with a trailing CR stripped, so LF
// and CRLF content classify identically. Empty content splits into exactly
// one empty line and therefore counts as one blank line.
func Classify(content string, lang Language) LineMetrics {
	var metrics LineMetrics
	for _, cat := range ClassifyLines(content, lang) {
		metrics.Total++
		switch cat {
		case LineCode:
			metrics.Code++
		case LineComment:
			metrics.Comments++
		case LineBlank:
			metrics.Blank++
		}
	}
	return metrics
}

// ClassifyLines returns the per-line category for every line of content,
// indexed by zero-based line position (line N is element N-1).
//
// The scan is a single forward pass holding one piece of state: whether an
// unterminated block comment is open. While that state is set, line-comment
// tokens have no effect; block state always takes precedence. Block comments
// do not nest.
func ClassifyLines(content string, lang Language) []LineCategory {
	lines := splitLines(content)
	categories := make([]LineCategory, len(lines))

	inBlock := false
	for i, line := range lines {
		categories[i] = classifyLine(line, lang, &inBlock)
	}
	return categories
}

func classifyLine(line string, lang Language, inBlock *bool) LineCategory {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return LineBlank
	}

	hasBlock := lang.BlockStart != "" && lang.BlockEnd != ""

	if *inBlock {
		if !hasBlock {
			return LineComment
		}
		closeIdx := strings.Index(line, lang.BlockEnd)
		if closeIdx < 0 {
			return LineComment
		}
		*inBlock = false
		after := line[closeIdx+len(lang.BlockEnd):]
		if strings.TrimSpace(after) != "" {
			return LineCode
		}
		return LineComment
	}

	if hasBlock {
		openIdx := strings.Index(line, lang.BlockStart)
		if openIdx >= 0 {
			before := line[:openIdx]
			rest := line[openIdx+len(lang.BlockStart):]
			closeIdx := strings.Index(rest, lang.BlockEnd)
			if closeIdx < 0 {
				// Block stays open past this line.
				*inBlock = true
				if strings.TrimSpace(before) != "" {
					return LineCode
				}
				return LineComment
			}
			after := rest[closeIdx+len(lang.BlockEnd):]
			if strings.TrimSpace(before) != "" || strings.TrimSpace(after) != "" {
				return LineCode
			}
			return LineComment
		}
	}

	if lang.LineComment != "" {
		if strings.HasPrefix(trimmed, lang.LineComment) {
			return LineComment
		}
		if strings.Contains(line, lang.LineComment) {
			// Trailing inline comment: the line still carries code.
			return LineCode
		}
	}

	return LineCode
}

// splitLines splits on LF, stripping a trailing CR from each segment so CRLF
// input yields the same lines as LF input.
func splitLines(content string) []string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}
