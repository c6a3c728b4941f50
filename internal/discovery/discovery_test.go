package discovery

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"pmat/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

func relPaths(files []File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.RelPath
	}
	return out
}

func TestDiscover_SkipsIgnoredContent(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.go":                  "package main\n",
		"main_test.go":             "package main\n",
		"lib/util.py":              "def f(): pass\n",
		"node_modules/pkg/index.js": "x\n",
		".hidden/secret.go":        "package x\n",
		".github/workflows/ci.yml": "on: push\n",
		"web/app.min.js":           "x\n",
		"gen/out.go":               "package gen\n",
		"ignored/skip.rs":          "fn main() {}\n",
		".gitignore":               "ignored/\n",
		"Makefile":                 "all:\n\techo hi\n",
	})

	cfg := config.DefaultDiscoveryConfig()
	cfg.IgnorePatterns = []string{"gen/**"}
	w, err := NewWalker(cfg)
	require.NoError(t, err)

	files, err := w.Discover(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, []string{
		".github/workflows/ci.yml",
		".gitignore",
		"Makefile",
		"lib/util.py",
		"main.go",
		"main_test.go",
	}, relPaths(files))

	byPath := map[string]File{}
	for _, f := range files {
		byPath[f.RelPath] = f
	}
	assert.True(t, byPath["main_test.go"].IsTest)
	assert.False(t, byPath["main.go"].IsTest)
	assert.Equal(t, LangMakefile, byPath["Makefile"].Language)
	assert.Equal(t, LangPython, byPath["lib/util.py"].Language)
}

func TestDiscover_ExcludeTestsAndLargeFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.go":      "package a\n",
		"a_test.go": "package a\n",
		"big.go":    string(make([]byte, 2048)),
	})

	cfg := config.DefaultDiscoveryConfig()
	cfg.IncludeTests = false
	cfg.MaxFileSize = 1024
	w, err := NewWalker(cfg)
	require.NoError(t, err)

	files, err := w.Discover(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.go"}, relPaths(files))
}

func TestDiscover_SingleFile(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"only.rs": "fn main() {}\n"})

	w, err := NewWalker(config.DefaultDiscoveryConfig())
	require.NoError(t, err)
	files, err := w.Discover(context.Background(), filepath.Join(root, "only.rs"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "only.rs", files[0].RelPath)
	assert.Equal(t, LangRust, files[0].Language)
}

func TestDiscover_CancelledContext(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.go": "package a\n"})
	w, err := NewWalker(config.DefaultDiscoveryConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = w.Discover(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewWalker_BadPattern(t *testing.T) {
	cfg := config.DefaultDiscoveryConfig()
	cfg.IgnorePatterns = []string{"[unclosed"}
	_, err := NewWalker(cfg)
	assert.Error(t, err)
}

func TestReadAll(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.go": "aa", "b.go": "bbb", "c.go": "c"})
	w, err := NewWalker(config.DefaultDiscoveryConfig())
	require.NoError(t, err)
	files, err := w.Discover(context.Background(), root)
	require.NoError(t, err)

	var mu sync.Mutex
	var seen []string
	err = ReadAll(context.Background(), files, 2, func(_ context.Context, f File, content []byte) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, f.RelPath+":"+string(content))
		return nil
	})
	require.NoError(t, err)
	sort.Strings(seen)
	assert.Equal(t, []string{"a.go:aa", "b.go:bbb", "c.go:c"}, seen)
}

func TestIsTestFile(t *testing.T) {
	cases := map[string]bool{
		"pkg/foo_test.go":        true,
		"test_util.py":           true,
		"src/app.spec.ts":        true,
		"src/app.test.jsx":       true,
		"tests/integration.rs":   true,
		"src/FooTest.java":       true,
		"src/latest.go":          false,
		"tests/fixtures/data.md": false,
	}
	for path, want := range cases {
		if got := IsTestFile(path); got != want {
			t.Errorf("IsTestFile(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestDetectLanguage(t *testing.T) {
	cases := map[string]string{
		"a.go":        LangGo,
		"b.TSX":       LangTypeScript,
		"GNUmakefile": LangMakefile,
		"rules.mk":    LangMakefile,
		"x.unknown":   LangUnknown,
	}
	for path, want := range cases {
		assert.Equal(t, want, DetectLanguage(path), path)
	}
}
