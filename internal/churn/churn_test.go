package churn

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRepo struct {
	t    *testing.T
	dir  string
	repo *git.Repository
}

func newTestRepo(t *testing.T) *testRepo {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	return &testRepo{t: t, dir: dir, repo: repo}
}

func (r *testRepo) commit(author, msg string, files map[string]string) {
	r.t.Helper()
	wt, err := r.repo.Worktree()
	require.NoError(r.t, err)
	for name, body := range files {
		p := filepath.Join(r.dir, name)
		require.NoError(r.t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(r.t, os.WriteFile(p, []byte(body), 0644))
		_, err := wt.Add(name)
		require.NoError(r.t, err)
	}
	sig := &object.Signature{Name: author, Email: author + "@example.com", When: time.Now()}
	_, err = wt.Commit(msg, &git.CommitOptions{Author: sig, Committer: sig})
	require.NoError(r.t, err)
}

func TestScore(t *testing.T) {
	assert.Equal(t, 1.0, Score(4, 100, 4, 100))
	assert.InDelta(t, 0.5, Score(2, 50, 4, 100), 1e-9)
	assert.Equal(t, 0.0, Score(3, 3, 0, 0))
}

func TestAnalyzeRepository(t *testing.T) {
	r := newTestRepo(t)
	r.commit("alice", "initial", map[string]string{
		"main.go":   "package main\n\nfunc main() {}\n",
		"README.md": "# demo\n",
	})
	r.commit("bob", "edit main", map[string]string{
		"main.go": "package main\n\nfunc main() {\n\tprintln(1)\n}\n",
	})
	r.commit("alice", "edit main again", map[string]string{
		"main.go": "package main\n\nfunc main() {\n\tprintln(2)\n}\n",
	})

	a, err := Analyze(context.Background(), r.dir, 30)
	require.NoError(t, err)

	require.Len(t, a.Files, 2)
	assert.Equal(t, 3, a.Summary.TotalCommits)
	assert.Equal(t, 2, a.Summary.TotalFilesChanged)

	top := a.Files[0]
	assert.Equal(t, "main.go", top.RelPath)
	assert.Equal(t, 3, top.CommitCount)
	assert.Equal(t, []string{"alice", "bob"}, top.UniqueAuthors)
	assert.Equal(t, 1.0, top.Score)
	assert.Equal(t, []string{"main.go"}, a.Summary.HotspotFiles)
	assert.Equal(t, 2, a.Summary.AuthorContributions["alice"])
	assert.Equal(t, 1, a.Summary.AuthorContributions["bob"])

	readme := a.ByPath()["README.md"]
	assert.Equal(t, 1, readme.CommitCount)
	assert.Equal(t, 1, readme.Additions)
}

func TestAnalyzeSubdirectory(t *testing.T) {
	r := newTestRepo(t)
	r.commit("carol", "init", map[string]string{
		"pkg/a.go": "package pkg\n",
		"top.go":   "package top\n",
	})

	a, err := Analyze(context.Background(), filepath.Join(r.dir, "pkg"), 30)
	require.NoError(t, err)
	require.Len(t, a.Files, 1)
	assert.Equal(t, "a.go", a.Files[0].RelPath)
}

func TestAnalyzeWithoutRepository(t *testing.T) {
	a, err := Analyze(context.Background(), t.TempDir(), 7)
	require.NoError(t, err)
	assert.Empty(t, a.Files)
	assert.Equal(t, 7, a.PeriodDays)
	assert.Equal(t, 0, a.Summary.TotalCommits)
}

func TestAnalyzeEmptyRepository(t *testing.T) {
	r := newTestRepo(t)
	a, err := Analyze(context.Background(), r.dir, 30)
	require.NoError(t, err)
	assert.Empty(t, a.Files)
}

func TestSummarizeStableFiles(t *testing.T) {
	files := []FileMetrics{
		{RelPath: "hot.go", CommitCount: 10, Score: 0.9},
		{RelPath: "warm.go", CommitCount: 4, Score: 0.4},
		{RelPath: "cold.go", CommitCount: 1, Score: 0.05},
	}
	s := summarize(files, 10)
	assert.Equal(t, []string{"hot.go"}, s.HotspotFiles)
	assert.Equal(t, []string{"cold.go"}, s.StableFiles)
}

func TestFormats(t *testing.T) {
	a := &Analysis{
		GeneratedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		PeriodDays:  30,
		Files: []FileMetrics{{
			RelPath: "a.go", CommitCount: 2, Additions: 5, Deletions: 1, Score: 0.75,
			UniqueAuthors: []string{"x"}, LastModified: time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC),
		}},
		Summary: Summary{TotalCommits: 2, TotalFilesChanged: 1, HotspotFiles: []string{"a.go"}},
	}

	assert.Contains(t, FormatSummary(a), "1. a.go")
	assert.Contains(t, FormatMarkdown(a), "| a.go | 2 | +5 -1 | 0.75 | 1 |")

	out, err := FormatCSV(a)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "a.go,2,5,1,0.750,1,2024-04-30", lines[1])
}
