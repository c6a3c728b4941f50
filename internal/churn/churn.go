// Package churn measures how often files change, from git history.
package churn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"pmat/internal/logging"
)

// FileMetrics is the churn of one file over the period.
type FileMetrics struct {
	Path          string    `json:"path"`
	RelPath       string    `json:"relative_path"`
	CommitCount   int       `json:"commit_count"`
	UniqueAuthors []string  `json:"unique_authors"`
	Additions     int       `json:"additions"`
	Deletions     int       `json:"deletions"`
	Score         float64   `json:"churn_score"`
	LastModified  time.Time `json:"last_modified"`
	FirstSeen     time.Time `json:"first_seen"`
}

// Summary aggregates the period.
type Summary struct {
	TotalCommits        int            `json:"total_commits"`
	TotalFilesChanged   int            `json:"total_files_changed"`
	HotspotFiles        []string       `json:"hotspot_files"`
	StableFiles         []string       `json:"stable_files"`
	AuthorContributions map[string]int `json:"author_contributions"`
}

// Analysis is the result of a churn run.
type Analysis struct {
	GeneratedAt    time.Time     `json:"generated_at"`
	PeriodDays     int           `json:"period_days"`
	RepositoryRoot string        `json:"repository_root"`
	Files          []FileMetrics `json:"files"`
	Summary        Summary       `json:"summary"`
}

// Score combines commit frequency and line changes relative to the busiest
// file: min(0.6*commits/maxCommits + 0.4*changes/maxChanges, 1).
func Score(commits, changes, maxCommits, maxChanges int) float64 {
	var commitFactor, changeFactor float64
	if maxCommits > 0 {
		commitFactor = float64(commits) / float64(maxCommits)
	}
	if maxChanges > 0 {
		changeFactor = float64(changes) / float64(maxChanges)
	}
	return math.Min(commitFactor*0.6+changeFactor*0.4, 1.0)
}

type fileStats struct {
	commits   int
	authors   map[string]bool
	additions int
	deletions int
	first     time.Time
	last      time.Time
}

// Analyze walks commits reachable from HEAD authored in the last periodDays
// and attributes line changes to files under projectPath. A directory that is
// not inside a git repository, or a repository without commits, yields an
// empty analysis.
func Analyze(ctx context.Context, projectPath string, periodDays int) (*Analysis, error) {
	timer := logging.StartTimer(logging.CategoryGit, "churn")
	defer timer.Stop()

	abs, err := filepath.Abs(projectPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}
	if periodDays <= 0 {
		periodDays = 30
	}
	a := &Analysis{
		GeneratedAt:    time.Now().UTC(),
		PeriodDays:     periodDays,
		RepositoryRoot: abs,
		Files:          []FileMetrics{},
	}

	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			logging.Git("no git repository at %s, churn is empty", abs)
			a.Summary = summarize(a.Files, 0)
			return a, nil
		}
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}

	prefix, err := worktreePrefix(repo, abs)
	if err != nil {
		return nil, err
	}

	since := time.Now().AddDate(0, 0, -periodDays)
	iter, err := repo.Log(&git.LogOptions{Since: &since, Order: git.LogOrderCommitterTime})
	if err != nil {
		// an unborn HEAD means no commits yet
		logging.GitDebug("git log unavailable at %s: %v", abs, err)
		a.Summary = summarize(a.Files, 0)
		return a, nil
	}
	defer iter.Close()

	stats := map[string]*fileStats{}
	commits := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c, err := iter.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate commits: %w", err)
		}
		if c.NumParents() > 1 {
			continue
		}
		fs, err := c.Stats()
		if err != nil {
			logging.GitDebug("stats failed for %s: %v", c.Hash, err)
			continue
		}
		touched := record(stats, c, fs, prefix)
		if touched {
			commits++
		}
	}

	a.Files = buildMetrics(abs, stats)
	a.Summary = summarize(a.Files, commits)
	logging.Git("churn: %d commits, %d files over %d days", commits, len(a.Files), periodDays)
	return a, nil
}

func worktreePrefix(repo *git.Repository, abs string) (string, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to open worktree: %w", err)
	}
	root := wt.Filesystem.Root()
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == "." {
		return "", nil
	}
	return filepath.ToSlash(rel) + "/", nil
}

func record(stats map[string]*fileStats, c *object.Commit, fs object.FileStats, prefix string) bool {
	touched := false
	when := c.Author.When.UTC()
	for _, f := range fs {
		if prefix != "" && !strings.HasPrefix(f.Name, prefix) {
			continue
		}
		rel := strings.TrimPrefix(f.Name, prefix)
		s, ok := stats[rel]
		if !ok {
			s = &fileStats{authors: map[string]bool{}, first: when, last: when}
			stats[rel] = s
		}
		s.commits++
		s.authors[c.Author.Name] = true
		s.additions += f.Addition
		s.deletions += f.Deletion
		if when.After(s.last) {
			s.last = when
		}
		if when.Before(s.first) {
			s.first = when
		}
		touched = true
	}
	return touched
}

func buildMetrics(root string, stats map[string]*fileStats) []FileMetrics {
	maxCommits, maxChanges := 0, 0
	for _, s := range stats {
		if s.commits > maxCommits {
			maxCommits = s.commits
		}
		if ch := s.additions + s.deletions; ch > maxChanges {
			maxChanges = ch
		}
	}

	out := make([]FileMetrics, 0, len(stats))
	for rel, s := range stats {
		authors := make([]string, 0, len(s.authors))
		for name := range s.authors {
			authors = append(authors, name)
		}
		sort.Strings(authors)
		out = append(out, FileMetrics{
			Path:          filepath.Join(root, filepath.FromSlash(rel)),
			RelPath:       rel,
			CommitCount:   s.commits,
			UniqueAuthors: authors,
			Additions:     s.additions,
			Deletions:     s.deletions,
			Score:         Score(s.commits, s.additions+s.deletions, maxCommits, maxChanges),
			LastModified:  s.last,
			FirstSeen:     s.first,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].RelPath < out[j].RelPath
	})
	return out
}

// summarize expects files sorted by score descending. Hotspots are the top
// ten files scoring above 0.5; stable files are the bottom ten scoring
// below 0.1.
func summarize(files []FileMetrics, commits int) Summary {
	s := Summary{
		TotalCommits:        commits,
		TotalFilesChanged:   len(files),
		HotspotFiles:        []string{},
		StableFiles:         []string{},
		AuthorContributions: map[string]int{},
	}
	for _, f := range files {
		for _, a := range f.UniqueAuthors {
			s.AuthorContributions[a]++
		}
	}
	for i, f := range files {
		if i >= 10 {
			break
		}
		if f.Score > 0.5 {
			s.HotspotFiles = append(s.HotspotFiles, f.RelPath)
		}
	}
	for i := len(files) - 1; i >= 0 && i >= len(files)-10; i-- {
		if f := files[i]; f.Score < 0.1 && f.CommitCount > 0 {
			s.StableFiles = append(s.StableFiles, f.RelPath)
		}
	}
	return s
}

// ByPath indexes file metrics by relative path.
func (a *Analysis) ByPath() map[string]FileMetrics {
	out := make(map[string]FileMetrics, len(a.Files))
	for _, f := range a.Files {
		out[f.RelPath] = f
	}
	return out
}
