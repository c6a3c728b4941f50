package actions

import (
	"context"
	"fmt"
	"runtime"

	"github.com/gobwas/glob"

	"pmat/internal/cache"
	"pmat/internal/config"
	"pmat/internal/discovery"
	"pmat/internal/logging"
	"pmat/internal/remote"
)

// Env carries the dependencies of every action.
type Env struct {
	Config *config.Config
	// Cache memoizes per-file analysis. May be nil.
	Cache *cache.Store
	// Cloner resolves GitHub targets. When nil only local paths work.
	Cloner  *remote.Cloner
	Workers int
}

// NewEnv builds an environment from cfg with a cloner rooted at the
// configured clone directory.
func NewEnv(cfg *config.Config) *Env {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Env{
		Config:  cfg,
		Cloner:  remote.NewCloner(cfg.GitHub.CloneDir, cfg.GetCloneTimeout()),
		Workers: runtime.NumCPU(),
	}
}

// OpenCache attaches the configured SQLite cache when caching is enabled.
// The caller closes the returned store.
func (e *Env) OpenCache() (*cache.Store, error) {
	if !e.Config.Cache.Enabled {
		return nil, nil
	}
	s, err := cache.Open(e.Config.Cache.Path, e.Config.GetCacheTTL())
	if err != nil {
		return nil, err
	}
	e.Cache = s
	return s, nil
}

// Resolve maps target to a local directory. An empty target is the current
// directory; anything that is not an existing directory is treated as a
// GitHub repository and cloned.
func (e *Env) Resolve(ctx context.Context, target string) (string, error) {
	if target == "" {
		return ".", nil
	}
	if e.Cloner == nil {
		return target, nil
	}
	dir, err := e.Cloner.Resolve(ctx, target)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", target, err)
	}
	return dir, nil
}

// Discover resolves target and walks it, keeping only files whose relative
// path matches one of include. An empty include keeps everything.
func (e *Env) Discover(ctx context.Context, target string, include ...string) (string, []discovery.File, error) {
	root, err := e.Resolve(ctx, target)
	if err != nil {
		return "", nil, err
	}
	w, err := discovery.NewWalker(e.Config.Discovery)
	if err != nil {
		return "", nil, err
	}
	files, err := w.Discover(ctx, root)
	if err != nil {
		return "", nil, err
	}
	if len(include) == 0 {
		return root, files, nil
	}

	globs := make([]glob.Glob, 0, len(include))
	for _, pattern := range include {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return "", nil, fmt.Errorf("invalid include pattern %q: %w", pattern, err)
		}
		globs = append(globs, g)
	}
	kept := discovery.Filter(files, func(f discovery.File) bool {
		for _, g := range globs {
			if g.Match(f.RelPath) {
				return true
			}
		}
		return false
	})
	logging.DiscoveryDebug("include filter kept %d of %d files", len(kept), len(files))
	return root, kept, nil
}

func (e *Env) workers() int {
	if e.Workers <= 0 {
		return 1
	}
	return e.Workers
}
