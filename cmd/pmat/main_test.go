package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the CLI with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--no-cache"}, args...))
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "pmat 0.21.0\n", out)
}

func TestConfigFlagDrivesFileLogging(t *testing.T) {
	ws := t.TempDir()
	t.Chdir(ws)
	cfgPath := filepath.Join(t.TempDir(), "custom.yaml")
	writeFile(t, cfgPath, "logging:\n  debug_mode: true\n  level: info\n")

	_, err := run(t, "--config", cfgPath, "list")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(ws, ".pmat", "logs", "boot.log"))

	quiet := t.TempDir()
	t.Chdir(quiet)
	_, err = run(t, "list")
	require.NoError(t, err)
	assert.NoDirExists(t, filepath.Join(quiet, ".pmat", "logs"))
}

func TestInvalidFormat(t *testing.T) {
	_, err := run(t, "--format", "yaml", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "yaml"`)
}

func TestUnsupportedFormatForCommand(t *testing.T) {
	_, err := run(t, "--format", "mermaid", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "for this command")
}

func TestAnalyzeComplexityJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "calc.go"), `package calc

func Sign(n int) int {
	if n > 0 {
		return 1
	} else if n < 0 {
		return -1
	}
	return 0
}
`)
	out, err := run(t, "-f", "json", "analyze", "complexity", dir)
	require.NoError(t, err)

	var report struct {
		Summary struct {
			TotalFunctions int `json:"total_functions"`
			MaxCyclomatic  int `json:"max_cyclomatic"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report.Summary.TotalFunctions)
	assert.Equal(t, 3, report.Summary.MaxCyclomatic)
}

func TestAnalyzeSATDToFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.go"), "package main\n\n// HACK: hardcoded port\nfunc main() {}\n")
	target := filepath.Join(t.TempDir(), "reports", "satd.csv")

	out, err := run(t, "-f", "csv", "-o", target, "analyze", "satd", dir)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "main.go")
}

func TestAnalyzeDAGRejectsUnknownType(t *testing.T) {
	_, err := run(t, "analyze", "dag", "--dag-type", "sideways", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown graph type")
}

func TestGenerate(t *testing.T) {
	out, err := run(t, "generate", "makefile", "rust", "-p", "project_name=widget")
	require.NoError(t, err)
	assert.Contains(t, out, "widget")

	_, err = run(t, "generate", "makefile", "rust")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project_name")

	_, err = run(t, "generate", "makefile", "cobol", "-p", "project_name=widget")
	assert.Error(t, err)
}

func TestScaffold(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "scaffold", "python-uv", "--dir", dir, "-p", "project_name=tool")
	require.NoError(t, err)
	for _, name := range []string{"Makefile", "README.md", ".gitignore"} {
		assert.FileExists(t, filepath.Join(dir, "tool", name))
	}
}

func TestListAndSearch(t *testing.T) {
	out, err := run(t, "list", "--toolchain", "deno")
	require.NoError(t, err)
	assert.Contains(t, out, "template://makefile/deno/cli")
	assert.NotContains(t, out, "template://makefile/rust/cli")

	out, err = run(t, "search", "gitignore")
	require.NoError(t, err)
	assert.Contains(t, out, "template://gitignore/")
}

func TestValidateReportsMissingParameters(t *testing.T) {
	out, err := run(t, "validate", "template://readme/rust/cli")
	require.Error(t, err)
	assert.Contains(t, out, "project_name")
}

func TestLintMakefile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Makefile"), ".PHONY: all clean test\nall:\n\tgo build ./...\nclean:\n\trm -rf bin\ntest:\n\tgo test ./...\n")
	out, err := run(t, "lint-makefile", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Quality score")

	bad := filepath.Join(dir, "broken.mk")
	writeFile(t, bad, "\techo orphan recipe\n")
	_, err = run(t, "lint-makefile", bad)
	assert.Error(t, err)
}
