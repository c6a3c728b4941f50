// Package discovery walks a project tree and yields the files analyzers consume.
package discovery

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/gobwas/glob"
	"golang.org/x/sync/errgroup"

	"pmat/internal/config"
	"pmat/internal/logging"
)

// File is a discovered file with its classification.
type File struct {
	Path     string    `json:"path"`
	RelPath  string    `json:"relative_path"`
	Language string    `json:"language"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"modified"`
	IsTest   bool      `json:"is_test"`
}

// skipDirs are never descended into.
var skipDirs = map[string]bool{
	"node_modules": true,
	"target":       true,
	"dist":         true,
	"build":        true,
	"vendor":       true,
	"__pycache__":  true,
	".git":         true,
	".pmat":        true,
}

// allowedHidden lists hidden directories that hold analyzable content.
var allowedHidden = map[string]bool{
	".github": true,
}

// Walker discovers files under a root.
type Walker struct {
	cfg   config.DiscoveryConfig
	globs []glob.Glob
}

// NewWalker compiles the configured ignore globs.
func NewWalker(cfg config.DiscoveryConfig) (*Walker, error) {
	w := &Walker{cfg: cfg}
	for _, pattern := range cfg.IgnorePatterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", pattern, err)
		}
		w.globs = append(w.globs, g)
	}
	if w.cfg.Workers <= 0 {
		w.cfg.Workers = 1
	}
	return w, nil
}

// Discover walks root and returns files sorted by relative path.
func (w *Walker) Discover(ctx context.Context, root string) ([]File, error) {
	timer := logging.StartTimer(logging.CategoryDiscovery, "discover "+root)
	defer timer.Stop()

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root: %w", err)
	}
	if !info.IsDir() {
		return []File{w.describe(filepath.Dir(abs), abs, info)}, nil
	}

	var matcher gitignore.Matcher
	if w.cfg.RespectGitignore {
		patterns, err := gitignore.ReadPatterns(osfs.New(abs), nil)
		if err != nil {
			logging.DiscoveryDebug("gitignore read failed under %s: %v", abs, err)
		} else if len(patterns) > 0 {
			matcher = gitignore.NewMatcher(patterns)
		}
	}

	var files []File
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			logging.DiscoveryDebug("walk error at %s: %v", path, walkErr)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == abs {
			return nil
		}

		rel, _ := filepath.Rel(abs, path)
		rel = filepath.ToSlash(rel)
		name := d.Name()

		if d.IsDir() {
			if skipDirs[name] || (strings.HasPrefix(name, ".") && !allowedHidden[name]) {
				return filepath.SkipDir
			}
			if matcher != nil && matcher.Match(strings.Split(rel, "/"), true) {
				return filepath.SkipDir
			}
			if w.ignored(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}
		if matcher != nil && matcher.Match(strings.Split(rel, "/"), false) {
			return nil
		}
		if w.ignored(rel) || IsGeneratedArtifact(name) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return nil
		}
		if fi.Size() > w.cfg.MaxFileSize && w.cfg.MaxFileSize > 0 {
			logging.DiscoveryDebug("skipping large file %s (%d bytes)", rel, fi.Size())
			return nil
		}

		f := w.describe(abs, path, fi)
		if f.IsTest && !w.cfg.IncludeTests {
			return nil
		}
		files = append(files, f)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	logging.Discovery("discovered %d files under %s", len(files), abs)
	return files, nil
}

func (w *Walker) describe(root, path string, fi os.FileInfo) File {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	return File{
		Path:     path,
		RelPath:  filepath.ToSlash(rel),
		Language: DetectLanguage(path),
		Size:     fi.Size(),
		ModTime:  fi.ModTime(),
		IsTest:   IsTestFile(rel),
	}
}

func (w *Walker) ignored(rel string) bool {
	for _, g := range w.globs {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// Filter returns the files for which keep returns true.
func Filter(files []File, keep func(File) bool) []File {
	out := make([]File, 0, len(files))
	for _, f := range files {
		if keep(f) {
			out = append(out, f)
		}
	}
	return out
}

// Languages counts files per language.
func Languages(files []File) map[string]int {
	counts := make(map[string]int)
	for _, f := range files {
		counts[f.Language]++
	}
	return counts
}

// ReadAll reads every file with at most workers concurrent readers and hands
// the content to fn. Unreadable files are logged and skipped; the first error
// returned by fn cancels the remaining work.
func ReadAll(ctx context.Context, files []File, workers int, fn func(ctx context.Context, f File, content []byte) error) error {
	if workers <= 0 {
		workers = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, f := range files {
		f := f
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			content, err := os.ReadFile(f.Path)
			if err != nil {
				logging.DiscoveryDebug("read failed for %s: %v", f.RelPath, err)
				return nil
			}
			return fn(ctx, f, content)
		})
	}
	return g.Wait()
}
