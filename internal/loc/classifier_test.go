package loc

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

var goLang = extLanguages[".go"]

func TestClassifyEmptyContentIsOneBlankLine(t *testing.T) {
	m := Classify("", goLang)
	want := LineMetrics{Total: 1, Blank: 1}
	if m != want {
		t.Fatalf("Classify(\"\") = %+v, want %+v", m, want)
	}
}

func TestClassifyTotalsAlwaysBalance(t *testing.T) {
	contents := []string{
		"",
		"\n",
		"package main\n\nfunc main() {}\n",
		"// all\n// comments\n",
		"/* open\nstill inside\n*/\ncode()",
		"x := 1 // trailing\r\ny := 2\r\n",
	}
	for _, content := range contents {
		m := Classify(content, goLang)
		if m.Total != m.Code+m.Comments+m.Blank {
			t.Errorf("unbalanced counts for %q: %+v", content, m)
		}
	}
}

func TestClassifyGoGrammar(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    LineMetrics
	}{
		{
			name:    "plain code",
			content: "package main\nfunc main() {}",
			want:    LineMetrics{Total: 2, Code: 2},
		},
		{
			name:    "line comment",
			content: "// a comment\ncode()",
			want:    LineMetrics{Total: 2, Code: 1, Comments: 1},
		},
		{
			name:    "indented line comment",
			content: "\t// still a comment",
			want:    LineMetrics{Total: 1, Comments: 1},
		},
		{
			name:    "trailing inline comment counts as code",
			content: "x := 1 // note",
			want:    LineMetrics{Total: 1, Code: 1},
		},
		{
			name:    "block comment spanning lines",
			content: "/*\ninside\n*/",
			want:    LineMetrics{Total: 3, Comments: 3},
		},
		{
			name:    "code before block open",
			content: "x := 1 /* starts here\nends */",
			want:    LineMetrics{Total: 2, Code: 1, Comments: 1},
		},
		{
			name:    "code after block close",
			content: "/* starts\nends */ x := 1",
			want:    LineMetrics{Total: 2, Comments: 1, Code: 1},
		},
		{
			name:    "single line block comment",
			content: "/* whole line */",
			want:    LineMetrics{Total: 1, Comments: 1},
		},
		{
			name:    "single line block with code after",
			content: "/* note */ x := 1",
			want:    LineMetrics{Total: 1, Code: 1},
		},
		{
			name:    "line token inside open block does not close it",
			content: "/* open\n// still block\nstill block\n*/",
			want:    LineMetrics{Total: 4, Comments: 4},
		},
		{
			name:    "crlf separators",
			content: "code()\r\n\r\n// comment\r\n",
			want:    LineMetrics{Total: 4, Code: 1, Comments: 1, Blank: 2},
		},
		{
			name:    "whitespace only is blank",
			content: "   \n\t\n",
			want:    LineMetrics{Total: 3, Blank: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.content, goLang)
			if got != tt.want {
				t.Fatalf("Classify(%q) = %+v, want %+v", tt.content, got, tt.want)
			}
		})
	}
}

func TestClassifyUnknownLanguage(t *testing.T) {
	// No comment grammar: every non-blank line is code, even ones that look
	// like comments in other languages.
	content := "// not a comment here\n# neither\n\nanything"
	got := Classify(content, LangUnknown)
	want := LineMetrics{Total: 4, Code: 3, Blank: 1}
	if got != want {
		t.Fatalf("Classify unknown = %+v, want %+v", got, want)
	}
}

func TestClassifyPythonDocstrings(t *testing.T) {
	py := extLanguages[".py"]
	content := "def f():\n    \"\"\"\n    docs\n    \"\"\"\n    return 1  # done"
	got := Classify(content, py)
	want := LineMetrics{Total: 5, Code: 2, Comments: 3}
	if got != want {
		t.Fatalf("Classify python = %+v, want %+v", got, want)
	}
}

func TestClassifyLinesCategories(t *testing.T) {
	content := "code()\n// comment\n\n/* open\n*/ tail()"
	got := ClassifyLines(content, goLang)
	want := []LineCategory{LineCode, LineComment, LineBlank, LineComment, LineCode}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ClassifyLines mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectLanguage(t *testing.T) {
	if lang := DetectLanguage("main.go"); lang.Name != "go" {
		t.Fatalf("DetectLanguage(main.go) = %s", lang.Name)
	}
	if lang := DetectLanguage("notes.txt"); lang.Name != "unknown" {
		t.Fatalf("DetectLanguage(notes.txt) = %s", lang.Name)
	}
	if lang := DetectLanguage("SCRIPT.PY"); lang.Name != "python" {
		t.Fatalf("DetectLanguage is not case-insensitive: %s", lang.Name)
	}
}
