package chunker

import (
	"path/filepath"
	"strings"
)

var extToLanguage = map[string]string{
	".py":   "python",
	".ts":   "typescript",
	".js":   "javascript",
	".md":   "markdown",
	".rs":   "rust",
	".go":   "go",
	".java": "java",
}

// DetectLanguage maps a source path's extension to a language tag, defaulting
// to "text" for anything unrecognized.
func DetectLanguage(sourcePath string) string {
	if lang, ok := extToLanguage[strings.ToLower(filepath.Ext(sourcePath))]; ok {
		return lang
	}
	return "text"
}
