package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmat/internal/config"
	"pmat/internal/output"
	"pmat/internal/templates"
)

func project(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"cmd/app/main.go": "package main\n\nimport \"example.com/app/lib\"\n\nfunc main() {\n\tlib.Run(3)\n}\n",
		"lib/run.go": `package lib

// FIXME: this breaks on negative input
func Run(n int) int {
	if n > 2 {
		return n
	}
	return 0
}
`,
		"Makefile": ".PHONY: all clean test\nall:\n\tgo build ./...\nclean:\n\trm -rf bin\ntest:\n\tgo test ./...\n",
	}
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
	return root
}

func testEnv() *Env {
	env := NewEnv(config.DefaultConfig())
	env.Workers = 2
	return env
}

func TestComplexityInclude(t *testing.T) {
	root := project(t)
	ctx := context.Background()

	all, err := Complexity(ctx, testEnv(), ComplexityOptions{Path: root})
	require.NoError(t, err)
	assert.Equal(t, 2, all.Summary.TotalFunctions)

	only, err := Complexity(ctx, testEnv(), ComplexityOptions{Path: root, Include: []string{"lib/**"}})
	require.NoError(t, err)
	require.Len(t, only.Files, 1)
	assert.Equal(t, "lib/run.go", only.Files[0].Path)

	_, err = Complexity(ctx, testEnv(), ComplexityOptions{Path: root, Include: []string{"[unclosed"}})
	assert.ErrorContains(t, err, "invalid include pattern")
}

func TestComplexityThresholdOverride(t *testing.T) {
	root := project(t)
	r, err := Complexity(context.Background(), testEnv(), ComplexityOptions{Path: root, MaxCyclomatic: 1})
	require.NoError(t, err)
	assert.Positive(t, r.ErrorCount())
}

func TestDAGUnknownMode(t *testing.T) {
	_, err := DAG(context.Background(), testEnv(), DAGOptions{Path: t.TempDir(), Mode: "sideways"})
	assert.ErrorContains(t, err, `unknown graph type "sideways"`)
}

func TestSystemArchitecture(t *testing.T) {
	root := project(t)
	a, err := SystemArchitecture(context.Background(), testEnv(), root)
	require.NoError(t, err)

	names := make([]string, 0, len(a.Components))
	for _, c := range a.Components {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"cmd", "lib"}, names)
	assert.Equal(t, 2, a.Languages["go"])
	assert.Equal(t, 2, a.Modules)

	var buf bytes.Buffer
	require.NoError(t, Write(output.Plain(&buf), output.FormatSummary, a))
	assert.Contains(t, buf.String(), "# System Architecture")
	assert.Contains(t, buf.String(), "| lib | 1 | 1 |")
}

func TestSATDCriticalOnly(t *testing.T) {
	root := project(t)
	r, err := SATD(context.Background(), testEnv(), SATDOptions{Path: root, CriticalOnly: true})
	require.NoError(t, err)
	assert.Empty(t, r.Items)

	r, err = SATD(context.Background(), testEnv(), SATDOptions{Path: root})
	require.NoError(t, err)
	require.Len(t, r.Items, 1)
	assert.Equal(t, "lib/run.go", r.Items[0].File)
}

func TestLintMakefileDirectory(t *testing.T) {
	root := project(t)
	r, err := LintMakefile(context.Background(), testEnv(), LintOptions{Path: root})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "Makefile"), r.Path)
	assert.False(t, r.HasErrors())
}

func TestDeepContextRejectsUnknownAnalysis(t *testing.T) {
	_, err := DeepContext(context.Background(), testEnv(), ContextOptions{Path: t.TempDir(), Analyses: []string{"coverage"}})
	assert.Error(t, err)
}

func TestWriteFormats(t *testing.T) {
	root := project(t)
	r, err := Complexity(context.Background(), testEnv(), ComplexityOptions{Path: root})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(output.Plain(&buf), output.FormatJSON, r))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Contains(t, decoded, "summary")

	buf.Reset()
	require.NoError(t, Write(output.Plain(&buf), output.FormatCSV, r))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "File,Function,Line,Cyclomatic,Cognitive,Nesting", lines[0])
	assert.Len(t, lines, 3)

	buf.Reset()
	require.NoError(t, Write(output.Plain(&buf), output.FormatTable, r))
	assert.Contains(t, buf.String(), "2 functions, 0 errors, 0 warnings")

	err = Write(output.Plain(&buf), output.FormatMermaid, r)
	assert.True(t, errors.Is(err, output.ErrInvalidFormat))

	err = Write(output.Plain(&buf), output.FormatTable, struct{}{})
	assert.True(t, errors.Is(err, output.ErrInvalidFormat))
}

func TestWriteTemplates(t *testing.T) {
	ts, err := templates.List(templates.Filter{Toolchain: "deno"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(output.Plain(&buf), output.FormatTable, ts))
	assert.Contains(t, buf.String(), "template://makefile/deno/cli")

	buf.Reset()
	res, err := templates.Validate("template://readme/deno/cli", map[string]any{})
	require.NoError(t, err)
	require.NoError(t, Write(output.Plain(&buf), output.FormatTable, res))
	assert.Contains(t, buf.String(), "Required parameter missing")
}

func TestRepoInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/octo/tool" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"full_name":"octo/tool","default_branch":"main","stargazers_count":1234,"size":2}`))
	}))
	defer srv.Close()

	env := testEnv()
	env.Config.GitHub.APIURL = srv.URL
	m, err := RepoInfo(context.Background(), env, "https://github.com/octo/tool")
	require.NoError(t, err)
	assert.Equal(t, "octo/tool", m.FullName)

	var buf bytes.Buffer
	require.NoError(t, Write(output.Plain(&buf), output.FormatTable, m))
	assert.Contains(t, buf.String(), "1,234")
	assert.Contains(t, buf.String(), "2.0 kB")

	_, err = RepoInfo(context.Background(), env, "not a repo")
	assert.Error(t, err)
}
