package loc

import (
	"path/filepath"
	"strings"
)

// Language describes the comment grammar used to classify lines: one
// line-comment token and one paired block-comment open/close token.
// Empty tokens mean the language has no comment syntax of that form.
type Language struct {
	Name        string
	LineComment string
	BlockStart  string
	BlockEnd    string
}

// LangUnknown is used for extensions outside the registry. It has no comment
// grammar, so every non-blank line counts as code.
var LangUnknown = Language{Name: "unknown"}

var cStyle = Language{LineComment: "//", BlockStart: "/*", BlockEnd: "*/"}

func cLang(name string) Language {
	l := cStyle
	l.Name = name
	return l
}

// extLanguages maps lowercase file extensions to their language grammar.
var extLanguages = map[string]Language{
	".go":    cLang("go"),
	".js":    cLang("javascript"),
	".jsx":   cLang("javascript"),
	".ts":    cLang("typescript"),
	".tsx":   cLang("typescript"),
	".java":  cLang("java"),
	".kt":    cLang("kotlin"),
	".c":     cLang("c"),
	".h":     cLang("c"),
	".cpp":   cLang("cpp"),
	".cc":    cLang("cpp"),
	".hpp":   cLang("cpp"),
	".cs":    cLang("csharp"),
	".rs":    cLang("rust"),
	".swift": cLang("swift"),
	".scala": cLang("scala"),
	".php":   cLang("php"),

	".py":   {Name: "python", LineComment: "#", BlockStart: `"""`, BlockEnd: `"""`},
	".rb":   {Name: "ruby", LineComment: "#", BlockStart: "=begin", BlockEnd: "=end"},
	".sh":   {Name: "shell", LineComment: "#"},
	".bash": {Name: "shell", LineComment: "#"},
	".lua":  {Name: "lua", LineComment: "--", BlockStart: "--[[", BlockEnd: "]]"},
	".sql":  {Name: "sql", LineComment: "--", BlockStart: "/*", BlockEnd: "*/"},
	".hs":   {Name: "haskell", LineComment: "--", BlockStart: "{-", BlockEnd: "-}"},
	".ml":   {Name: "ocaml", BlockStart: "(*", BlockEnd: "*)"},
	".ex":   {Name: "elixir", LineComment: "#"},
	".exs":  {Name: "elixir", LineComment: "#"},
	".r":    {Name: "r", LineComment: "#"},
}

// DetectLanguage maps a file path to its language grammar by extension.
// Unsupported extensions map to LangUnknown.
func DetectLanguage(path string) Language {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := extLanguages[ext]; ok {
		return lang
	}
	return LangUnknown
}

// IsSupported reports whether the path's extension maps to a known language.
func IsSupported(path string) bool {
	_, ok := extLanguages[strings.ToLower(filepath.Ext(path))]
	return ok
}
