package remote

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"

	"pmat/internal/logging"
)

// ErrCloneTimeout is returned when a clone exceeds the configured timeout.
var ErrCloneTimeout = errors.New("clone timed out")

// Cloned is a local checkout of a remote repository.
type Cloned struct {
	Path   string `json:"path"`
	URL    string `json:"url"`
	Repo   Repo   `json:"repo"`
	Cached bool   `json:"cached"`
}

// Cloner keeps shallow clones under one cache directory.
type Cloner struct {
	dir       string
	timeout   time.Duration
	freshness time.Duration
	sourceURL func(Repo) string
}

// NewCloner stores clones below dir. Cached clones younger than an hour
// are reused as-is; older ones are fetched before reuse.
func NewCloner(dir string, timeout time.Duration) *Cloner {
	return &Cloner{dir: dir, timeout: timeout, freshness: time.Hour, sourceURL: Repo.CloneURL}
}

// Resolve returns target itself when it is an existing directory and a
// clone of it otherwise.
func (c *Cloner) Resolve(ctx context.Context, target string) (string, error) {
	if fi, err := os.Stat(target); err == nil && fi.IsDir() {
		return target, nil
	}
	cl, err := c.Clone(ctx, target)
	if err != nil {
		return "", err
	}
	return cl.Path, nil
}

// Clone returns a checkout of url, cloning with depth 1 on a cache miss.
// A failed clone leaves no directory behind.
func (c *Cloner) Clone(ctx context.Context, url string) (*Cloned, error) {
	r, err := ParseURL(url)
	if err != nil {
		return nil, err
	}
	target := filepath.Join(c.dir, CacheKey(url))
	out := &Cloned{Path: target, URL: url, Repo: r}

	if _, err := os.Stat(target); err == nil {
		if repo, err := git.PlainOpen(target); err == nil {
			if c.fresh(target) {
				logging.GitDebug("clone cache hit for %s", url)
				out.Cached = true
				return out, nil
			}
			if err := c.update(ctx, repo); err == nil {
				touch(target)
				out.Cached = true
				return out, nil
			}
		}
		logging.Get(logging.CategoryGit).Warn("discarding unusable clone at %s", target)
		if err := os.RemoveAll(target); err != nil {
			return nil, fmt.Errorf("failed to remove stale clone: %w", err)
		}
	}

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create clone directory: %w", err)
	}
	cctx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	timer := logging.StartTimer(logging.CategoryGit, "clone "+r.FullName())
	_, err = git.PlainCloneContext(cctx, target, false, &git.CloneOptions{
		URL:          c.sourceURL(r),
		Depth:        1,
		SingleBranch: true,
		Tags:         git.NoTags,
	})
	timer.Stop()
	if err != nil {
		os.RemoveAll(target)
		if errors.Is(cctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s: %s", ErrCloneTimeout, c.timeout, url)
		}
		return nil, fmt.Errorf("failed to clone %s: %w", url, err)
	}
	return out, nil
}

func (c *Cloner) fresh(target string) bool {
	fi, err := os.Stat(filepath.Join(target, ".git"))
	return err == nil && time.Since(fi.ModTime()) < c.freshness
}

func (c *Cloner) update(ctx context.Context, repo *git.Repository) error {
	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	err = wt.PullContext(ctx, &git.PullOptions{Depth: 1, SingleBranch: true, Force: true})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return err
	}
	return nil
}

func touch(target string) {
	now := time.Now()
	_ = os.Chtimes(filepath.Join(target, ".git"), now, now)
}
