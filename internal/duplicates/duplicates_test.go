package duplicates

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmat/internal/config"
	"pmat/internal/discovery"
	"pmat/internal/lang"
)

const firstSource = `package first

func total(values []int, limit int) int {
	sum := 0
	for i := 0; i < len(values); i++ {
		if values[i] > limit {
			sum += values[i] * 2
		} else {
			sum -= values[i]
		}
	}
	if sum < 0 {
		return 0
	}
	return sum + len(values)
}

func tiny() int { return 1 }
`

const secondSource = `package second

func accumulate(xs []int, max int) int {
	acc := 0
	for j := 0; j < len(xs); j++ {
		if xs[j] > max {
			acc += xs[j] * 3
		} else {
			acc -= xs[j]
		}
	}
	if acc < 0 {
		return 10
	}
	return acc + len(xs)
}
`

func parse(t *testing.T, path, src string) *lang.Unit {
	t.Helper()
	u, err := lang.Parse(context.Background(), path, "go", []byte(src))
	require.NoError(t, err)
	t.Cleanup(u.Close)
	return u
}

func TestTokensNormalize(t *testing.T) {
	a := parse(t, "a.go", firstSource)
	b := parse(t, "b.go", secondSource)

	ta := Tokens(a, a.Functions[0].Node, NewNormalizer(true, true))
	tb := Tokens(b, b.Functions[0].Node, NewNormalizer(true, true))
	assert.Equal(t, ta, tb)
	assert.Contains(t, ta, literalToken)
	assert.Contains(t, ta, "VAR_0")

	raw := Tokens(a, a.Functions[0].Node, NewNormalizer(false, false))
	assert.Contains(t, raw, "total")
	assert.NotContains(t, raw, literalToken)
}

func TestDetectGroupsRenamedClones(t *testing.T) {
	d, err := NewDetector(config.DefaultDuplicatesConfig())
	require.NoError(t, err)

	var frags []Fragment
	frags = append(frags, d.FragmentsOf(parse(t, "b.go", secondSource))...)
	frags = append(frags, d.FragmentsOf(parse(t, "a.go", firstSource))...)
	require.Len(t, frags, 2, "tiny function stays below the token minimum")

	r := d.Detect(frags)
	require.Len(t, r.Groups, 1)
	g := r.Groups[0]
	assert.Equal(t, TypeParametric, g.Type)
	require.Len(t, g.Fragments, 2)
	assert.Equal(t, "a.go", g.Fragments[0].File)
	assert.Equal(t, 3, g.Fragments[0].StartLine)
	assert.Equal(t, 1.0, g.AverageSimilarity)
	assert.Equal(t, g.Fragments[0].Hash, g.Fragments[1].Hash)

	assert.Equal(t, 2, r.Summary.TotalFiles)
	assert.Equal(t, 2, r.Summary.TotalFragments)
	assert.Equal(t, 2, r.Summary.LargestGroupSize)
	assert.Equal(t, r.Summary.TotalLines, r.Summary.DuplicateLines)
	assert.Equal(t, 1.0, r.Summary.DuplicationRatio)
	assert.Len(t, r.Hotspots, 2)

	md := FormatMarkdown(r)
	assert.Contains(t, md, "### Group 1 (2 fragments")
	assert.Contains(t, md, "- `a.go:3-")
}

func TestDetectKeepsDistinctFragmentsApart(t *testing.T) {
	d, err := NewDetector(config.DefaultDuplicatesConfig())
	require.NoError(t, err)

	mk := func(file, word string) Fragment {
		tokens := make([]string, 60)
		for i := range tokens {
			tokens[i] = word + strings.Repeat("x", i)
		}
		return Fragment{File: file, StartLine: 1, EndLine: 10, Tokens: len(tokens),
			Signature: d.hasher.Signature(Shingles(tokens, 5))}
	}
	r := d.Detect([]Fragment{mk("a.go", "alpha"), mk("b.go", "beta")})
	assert.Empty(t, r.Groups)
	assert.Empty(t, r.Hotspots)
	assert.Equal(t, 0.0, r.Summary.DuplicationRatio)
}

func TestNewDetectorRejectsBadBanding(t *testing.T) {
	cfg := config.DefaultDuplicatesConfig()
	cfg.NumBands = 7
	_, err := NewDetector(cfg)
	assert.Error(t, err)
}

func TestSignatureJaccard(t *testing.T) {
	assert.Equal(t, 0.5, Signature{1, 2, 3, 4}.Jaccard(Signature{1, 2, 9, 9}))
	assert.Equal(t, 0.0, Signature{1}.Jaccard(Signature{1, 2}))
	assert.Equal(t, 0.0, Signature{}.Jaccard(Signature{}))

	m := NewMinHasher(16)
	sh := Shingles([]string{"a", "b", "c", "d"}, 2)
	assert.Len(t, sh, 3)
	assert.Equal(t, m.Signature(sh), m.Signature(sh))
	assert.Nil(t, Shingles([]string{"a"}, 2))
}

func TestUnionFind(t *testing.T) {
	uf := newUnionFind(5)
	uf.union(3, 1)
	uf.union(4, 3)
	assert.Equal(t, 1, uf.find(4))
	assert.Equal(t, 0, uf.find(0))
	assert.NotEqual(t, uf.find(2), uf.find(1))
}

func TestAnalyze(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "first.go"), []byte(firstSource), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "second.go"), []byte(secondSource), 0644))

	w, err := discovery.NewWalker(config.DefaultDiscoveryConfig())
	require.NoError(t, err)
	files, err := w.Discover(context.Background(), root)
	require.NoError(t, err)

	r, err := Analyze(context.Background(), files, config.DefaultDuplicatesConfig(), 2)
	require.NoError(t, err)
	require.Len(t, r.Groups, 1)
	assert.Greater(t, r.LinesByFile()["first.go"], 0)
}
