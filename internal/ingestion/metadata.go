package ingestion

import (
	"path/filepath"
	"strings"
)

// DefaultCodeExtensions are the source file extensions indexed when no
// explicit list is configured.
var DefaultCodeExtensions = []string{".c", ".cpp", ".h", ".py", ".go"}

// languageByExtension maps a lowercase file extension to the language label
// stored in chunk metadata.
var languageByExtension = map[string]string{
	".c":    "c",
	".h":    "c",
	".cc":   "cpp",
	".cpp":  "cpp",
	".cxx":  "cpp",
	".hpp":  "cpp",
	".hh":   "cpp",
	".py":   "python",
	".go":   "go",
	".rs":   "rust",
	".java": "java",
	".js":   "javascript",
	".ts":   "typescript",
	".sh":   "shell",
	".md":   "markdown",
}

// InferLanguage returns a best-effort language label for a source file,
// or "text" when the extension is not recognised.
func InferLanguage(path string) string {
	if lang, ok := languageByExtension[strings.ToLower(filepath.Ext(path))]; ok {
		return lang
	}
	return "text"
}

// ParseExtensions turns a comma-separated list such as "py, .c,CPP" into
// normalised extensions (".py", ".c", ".cpp"). An empty input yields
// DefaultCodeExtensions.
func ParseExtensions(list string) []string {
	var out []string
	for _, part := range strings.Split(list, ",") {
		ext := strings.ToLower(strings.TrimSpace(part))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	if len(out) == 0 {
		return append([]string(nil), DefaultCodeExtensions...)
	}
	return out
}

// hasExtension reports whether path ends in one of exts (case-insensitive).
func hasExtension(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
