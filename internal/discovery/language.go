package discovery

import (
	"path/filepath"
	"strings"
)

// Language names shared by analyzers.
const (
	LangGo         = "go"
	LangPython     = "python"
	LangRust       = "rust"
	LangJavaScript = "javascript"
	LangTypeScript = "typescript"
	LangMakefile   = "makefile"
	LangUnknown    = "unknown"
)

var langMap = map[string]string{
	".go":    LangGo,
	".py":    LangPython,
	".js":    LangJavaScript,
	".jsx":   LangJavaScript,
	".mjs":   LangJavaScript,
	".cjs":   LangJavaScript,
	".ts":    LangTypeScript,
	".tsx":   LangTypeScript,
	".rs":    LangRust,
	".java":  "java",
	".kt":    "kotlin",
	".rb":    "ruby",
	".php":   "php",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".cc":    "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".swift": "swift",
	".scala": "scala",
	".clj":   "clojure",
	".hs":    "haskell",
	".ml":    "ocaml",
	".elm":   "elm",
	".sh":    "shell",
	".bash":  "shell",
	".mk":    LangMakefile,
	".md":    "markdown",
	".yaml":  "yaml",
	".yml":   "yaml",
	".json":  "json",
	".toml":  "toml",
	".html":  "html",
}

// sourceLanguages are the languages whose comments and control flow analyzers read.
var sourceLanguages = map[string]bool{
	LangGo: true, LangPython: true, LangRust: true, LangJavaScript: true, LangTypeScript: true,
	"java": true, "kotlin": true, "ruby": true, "php": true, "c": true, "cpp": true,
	"csharp": true, "swift": true, "scala": true, "clojure": true, "haskell": true,
	"ocaml": true, "elm": true,
}

// DetectLanguage determines the language from the file extension and name.
func DetectLanguage(path string) string {
	base := filepath.Base(path)
	switch base {
	case "Makefile", "makefile", "GNUmakefile":
		return LangMakefile
	}
	if lang, ok := langMap[strings.ToLower(filepath.Ext(path))]; ok {
		return lang
	}
	return LangUnknown
}

// IsSource reports whether lang is a programming language analyzers understand.
func IsSource(lang string) bool {
	return sourceLanguages[lang]
}

// IsTestFile determines if a file is a test file.
func IsTestFile(path string) bool {
	slash := filepath.ToSlash(path)
	base := filepath.Base(slash)
	ext := filepath.Ext(base)

	switch {
	case strings.HasSuffix(base, "_test.go"),
		strings.HasSuffix(base, "_test.py"),
		strings.HasPrefix(base, "test_") && ext == ".py",
		strings.HasSuffix(base, "Test.java"),
		strings.HasSuffix(base, "Tests.java"):
		return true
	}

	stem := strings.TrimSuffix(base, ext)
	if strings.HasSuffix(stem, ".test") || strings.HasSuffix(stem, ".spec") {
		return true
	}

	for _, part := range strings.Split(filepath.Dir(slash), "/") {
		if part == "tests" || part == "test" || part == "__tests__" {
			return IsSource(DetectLanguage(base))
		}
	}
	return false
}

// IsGeneratedArtifact reports minified or bundled files that analyzers skip.
func IsGeneratedArtifact(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	for _, marker := range []string{".min.", ".bundle.", "-min.", ".production."} {
		if strings.Contains(base, marker) {
			return true
		}
	}
	return false
}
