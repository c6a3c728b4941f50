package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
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

func TestParseURL(t *testing.T) {
	valid := map[string]Repo{
		"https://github.com/rust-lang/rust":      {"rust-lang", "rust"},
		"https://github.com/rust-lang/rust.git":  {"rust-lang", "rust"},
		"https://github.com/rust-lang/rust/":     {"rust-lang", "rust"},
		"git@github.com:rust-lang/rust.git":      {"rust-lang", "rust"},
		"rust-lang/rust":                         {"rust-lang", "rust"},
		"https://github.com/user123/repo456":     {"user123", "repo456"},
		"https://github.com/a/b":                 {"a", "b"},
		"  https://github.com/owner/repo.name  ": {"owner", "repo.name"},
	}
	for url, want := range valid {
		got, err := ParseURL(url)
		if assert.NoError(t, err, url) {
			assert.Equal(t, want, got, url)
		}
	}

	invalid := []string{
		"https://gitlab.com/rust-lang/rust",
		"not-a-url",
		"https://github.com/../repo",
		"https://github.com/owner/..",
		"https://github.com/.git/config",
		"https://github.com/./repo",
		"https://github.com/owner/.",
		"https://github.com/.gitignore/repo",
		"https://github.com/owner/.gitmodules",
		"https://github.com/%2e%2e/repo",
		"https://github.com/owner%2frepo/test",
		"https://github.com//double-slash",
		"https://github.com/owner//double-slash",
		"https://github.com/.hidden/repo",
		"https://github.com/owner/repo.",
		"https://github.com/owner..name/repo",
		"https://github.com/owner/",
		"https://github.com/ /repo",
		"https://github.com/" + strings.Repeat("a", 101) + "/repo",
		"https://github.com/owner/" + strings.Repeat("b", 101),
	}
	for _, url := range invalid {
		_, err := ParseURL(url)
		assert.ErrorIs(t, err, ErrInvalidURL, url)
	}
}

func TestValidName(t *testing.T) {
	for _, ok := range []string{"rust", "rust-lang", "user_name", "repo.name", "123", "a1b2c3", "x"} {
		assert.True(t, ValidName(ok), ok)
	}
	for _, bad := range []string{
		"", ".", "..", ".hidden", "hidden.", "name..name", ".git", ".gitignore",
		"name/path", `name\path`, "name%20space", "name\x00null", "naïve", "-dash",
		strings.Repeat("a", 101),
	} {
		assert.False(t, ValidName(bad), bad)
	}
}

func TestCacheKey(t *testing.T) {
	key := CacheKey("https://github.com/rust-lang/rust.git")
	assert.Equal(t, "https___github_com_rust-lang_rust_git", key)
	assert.NotContains(t, key, "/")
	assert.NotContains(t, key, ":")
}

func TestMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/octo/tool" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"full_name":         "octo/tool",
			"description":       "a tool",
			"default_branch":    "main",
			"language":          "Go",
			"stargazers_count":  42,
			"forks_count":       3,
			"open_issues_count": 5,
			"size":              1200,
			"archived":          false,
			"pushed_at":         "2024-05-01T10:00:00Z",
		})
	}))
	defer srv.Close()

	c, err := NewClient(context.Background(), "secret").WithBaseURL(srv.URL)
	require.NoError(t, err)

	m, err := c.Metadata(context.Background(), Repo{Owner: "octo", Name: "tool"})
	require.NoError(t, err)
	assert.Equal(t, "octo/tool", m.FullName)
	assert.Equal(t, "main", m.DefaultBranch)
	assert.Equal(t, 42, m.Stars)
	assert.Equal(t, 1200, m.SizeKB)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), m.PushedAt.UTC())

	_, err = c.Metadata(context.Background(), Repo{Owner: "octo", Name: "missing"})
	assert.Error(t, err)
}

func commitRepo(t *testing.T, dir string) {
	t.Helper()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("main.go")
	require.NoError(t, err)
	_, err = wt.Commit("init", &git.CommitOptions{
		Author: &object.Signature{Name: "dev", Email: "dev@example.com", When: time.Now()},
	})
	require.NoError(t, err)
}

func TestCloneReusesFreshCache(t *testing.T) {
	cache := t.TempDir()
	url := "https://github.com/octo/tool"
	commitRepo(t, filepath.Join(cache, CacheKey(url)))

	c := NewCloner(cache, time.Minute)
	c.sourceURL = func(Repo) string { t.Fatal("must not clone"); return "" }
	cl, err := c.Clone(context.Background(), url)
	require.NoError(t, err)
	assert.True(t, cl.Cached)
	assert.Equal(t, Repo{Owner: "octo", Name: "tool"}, cl.Repo)
	assert.FileExists(t, filepath.Join(cl.Path, "main.go"))
}

func TestCloneFailureCleansUp(t *testing.T) {
	cache := t.TempDir()
	url := "octo/broken"
	target := filepath.Join(cache, CacheKey(url))
	require.NoError(t, os.MkdirAll(target, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(target, "junk"), []byte("x"), 0644))

	c := NewCloner(cache, time.Minute)
	c.sourceURL = func(Repo) string { return filepath.Join(cache, "does-not-exist") }
	_, err := c.Clone(context.Background(), url)
	require.Error(t, err)
	assert.NoDirExists(t, target)
}

func TestCloneRejectsBadURL(t *testing.T) {
	_, err := NewCloner(t.TempDir(), time.Minute).Clone(context.Background(), "https://github.com/../etc")
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestResolveLocalDirectory(t *testing.T) {
	dir := t.TempDir()
	got, err := NewCloner(t.TempDir(), time.Minute).Resolve(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, dir, got)
}
