package duplicates

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"pmat/internal/config"
	"pmat/internal/discovery"
	"pmat/internal/lang"
	"pmat/internal/logging"
)

// CloneType labels how clones relate.
type CloneType string

// TypeParametric clones differ only in identifiers and literals.
const TypeParametric CloneType = "type2"

// Fragment is a candidate code region.
type Fragment struct {
	File      string    `json:"file"`
	StartLine int       `json:"start_line"`
	EndLine   int       `json:"end_line"`
	Tokens    int       `json:"tokens"`
	Hash      uint64    `json:"normalized_hash"`
	Signature Signature `json:"-"`
}

// Lines is the inclusive line span.
func (f Fragment) Lines() int {
	return f.EndLine - f.StartLine + 1
}

// Instance is one member of a clone group.
type Instance struct {
	File       string  `json:"file"`
	StartLine  int     `json:"start_line"`
	EndLine    int     `json:"end_line"`
	Similarity float64 `json:"similarity_to_representative"`
	Hash       uint64  `json:"normalized_hash"`
}

// Group is a set of mutually similar fragments.
type Group struct {
	ID                int        `json:"id"`
	Type              CloneType  `json:"clone_type"`
	Fragments         []Instance `json:"fragments"`
	TotalLines        int        `json:"total_lines"`
	TotalTokens       int        `json:"total_tokens"`
	AverageSimilarity float64    `json:"average_similarity"`
}

// Summary aggregates a run.
type Summary struct {
	TotalFiles       int     `json:"total_files"`
	TotalFragments   int     `json:"total_fragments"`
	DuplicateLines   int     `json:"duplicate_lines"`
	TotalLines       int     `json:"total_lines"`
	DuplicationRatio float64 `json:"duplication_ratio"`
	CloneGroups      int     `json:"clone_groups"`
	LargestGroupSize int     `json:"largest_group_size"`
}

// Hotspot is a file with many duplicated lines.
type Hotspot struct {
	File           string  `json:"file"`
	DuplicateLines int     `json:"duplicate_lines"`
	CloneGroups    int     `json:"clone_groups"`
	Severity       float64 `json:"severity"`
}

// Report is the detection result.
type Report struct {
	Summary  Summary   `json:"summary"`
	Groups   []Group   `json:"groups"`
	Hotspots []Hotspot `json:"hotspots"`
}

// Detector runs clone detection with fixed parameters.
type Detector struct {
	cfg    config.DuplicatesConfig
	hasher *MinHasher
}

// NewDetector validates cfg and prepares the hash family.
func NewDetector(cfg config.DuplicatesConfig) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Detector{cfg: cfg, hasher: NewMinHasher(cfg.NumHashes)}, nil
}

// FragmentsOf splits a unit into function fragments with at least MinTokens
// tokens, or the whole file when no function qualifies.
func (d *Detector) FragmentsOf(u *lang.Unit) []Fragment {
	var out []Fragment
	for _, fn := range u.Functions {
		if fn.Node == nil {
			continue
		}
		if f, ok := d.fragment(u, Tokens(u, fn.Node, d.normalizer()), fn.StartLine, fn.EndLine); ok {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		root := u.Root()
		if f, ok := d.fragment(u, Tokens(u, root, d.normalizer()), 1, lang.EndLineOf(root)); ok {
			out = append(out, f)
		}
	}
	return out
}

func (d *Detector) normalizer() *Normalizer {
	return NewNormalizer(d.cfg.NormalizeIdents, d.cfg.NormalizeLiterals)
}

func (d *Detector) fragment(u *lang.Unit, tokens []string, start, end int) (Fragment, bool) {
	if len(tokens) < d.cfg.MinTokens {
		return Fragment{}, false
	}
	return Fragment{
		File:      u.Path,
		StartLine: start,
		EndLine:   end,
		Tokens:    len(tokens),
		Hash:      xxhash.Sum64String(strings.Join(tokens, " ")),
		Signature: d.hasher.Signature(Shingles(tokens, d.cfg.ShingleSize)),
	}, true
}

// Detect groups similar fragments. Candidate pairs come from LSH buckets and
// are kept when their estimated Jaccard similarity reaches the threshold.
func (d *Detector) Detect(fragments []Fragment) *Report {
	sort.SliceStable(fragments, func(i, j int) bool {
		if fragments[i].File != fragments[j].File {
			return fragments[i].File < fragments[j].File
		}
		return fragments[i].StartLine < fragments[j].StartLine
	})

	type pair struct{ a, b int }
	sims := map[pair]float64{}
	uf := newUnionFind(len(fragments))

	buckets := make([]map[uint64][]int, d.cfg.NumBands)
	for b := range buckets {
		buckets[b] = map[uint64][]int{}
	}
	for i, f := range fragments {
		for b, key := range bandKeys(f.Signature, d.cfg.NumBands, d.cfg.RowsPerBand) {
			buckets[b][key] = append(buckets[b][key], i)
		}
	}
	for _, band := range buckets {
		for _, members := range band {
			for x := 0; x < len(members); x++ {
				for y := x + 1; y < len(members); y++ {
					p := pair{members[x], members[y]}
					if _, seen := sims[p]; seen {
						continue
					}
					s := fragments[p.a].Signature.Jaccard(fragments[p.b].Signature)
					sims[p] = s
					if s >= d.cfg.SimilarityThreshold {
						uf.union(p.a, p.b)
					}
				}
			}
		}
	}

	members := map[int][]int{}
	for i := range fragments {
		root := uf.find(i)
		members[root] = append(members[root], i)
	}
	roots := make([]int, 0, len(members))
	for root, m := range members {
		if len(m) >= d.cfg.MinGroupSize {
			roots = append(roots, root)
		}
	}
	sort.Ints(roots)

	r := &Report{Groups: []Group{}, Hotspots: []Hotspot{}}
	for _, root := range roots {
		g := Group{ID: len(r.Groups) + 1, Type: TypeParametric}
		var simSum float64
		for _, idx := range members[root] {
			f := fragments[idx]
			sim := 1.0
			if idx != root {
				sim = fragments[root].Signature.Jaccard(f.Signature)
			}
			simSum += sim
			g.Fragments = append(g.Fragments, Instance{
				File:       f.File,
				StartLine:  f.StartLine,
				EndLine:    f.EndLine,
				Similarity: sim,
				Hash:       f.Hash,
			})
			g.TotalLines += f.Lines()
			g.TotalTokens += f.Tokens
		}
		g.AverageSimilarity = simSum / float64(len(g.Fragments))
		r.Groups = append(r.Groups, g)
	}

	r.Summary = summarize(fragments, r.Groups)
	r.Hotspots = hotspots(r.Groups)
	return r
}

func summarize(fragments []Fragment, groups []Group) Summary {
	s := Summary{TotalFragments: len(fragments), CloneGroups: len(groups)}
	files := map[string]bool{}
	for _, f := range fragments {
		files[f.File] = true
		s.TotalLines += f.Lines()
	}
	s.TotalFiles = len(files)
	for _, g := range groups {
		s.DuplicateLines += g.TotalLines
		if len(g.Fragments) > s.LargestGroupSize {
			s.LargestGroupSize = len(g.Fragments)
		}
	}
	if s.TotalLines > 0 {
		s.DuplicationRatio = float64(s.DuplicateLines) / float64(s.TotalLines)
	}
	return s
}

// hotspots ranks files by max(ln(dupLines), 1) * sqrt(instances), top 10.
func hotspots(groups []Group) []Hotspot {
	type acc struct{ lines, count int }
	stats := map[string]*acc{}
	for _, g := range groups {
		for _, in := range g.Fragments {
			a, ok := stats[in.File]
			if !ok {
				a = &acc{}
				stats[in.File] = a
			}
			a.lines += in.EndLine - in.StartLine + 1
			a.count++
		}
	}
	out := make([]Hotspot, 0, len(stats))
	for file, a := range stats {
		out = append(out, Hotspot{
			File:           file,
			DuplicateLines: a.lines,
			CloneGroups:    a.count,
			Severity:       math.Max(math.Log(float64(a.lines)), 1) * math.Sqrt(float64(a.count)),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Severity != out[j].Severity {
			return out[i].Severity > out[j].Severity
		}
		return out[i].File < out[j].File
	})
	if len(out) > 10 {
		out = out[:10]
	}
	return out
}

// Analyze parses files and detects clones across them.
func Analyze(ctx context.Context, files []discovery.File, cfg config.DuplicatesConfig, workers int) (*Report, error) {
	d, err := NewDetector(cfg)
	if err != nil {
		return nil, err
	}
	units, err := lang.ParseFiles(ctx, files, workers)
	if err != nil {
		return nil, err
	}
	defer lang.CloseAll(units)

	var fragments []Fragment
	for _, u := range units {
		fragments = append(fragments, d.FragmentsOf(u)...)
	}
	r := d.Detect(fragments)
	logging.Analysis("duplicates: %d fragments, %d clone groups", len(fragments), len(r.Groups))
	return r, nil
}

// LinesByFile sums duplicated lines per file.
func (r *Report) LinesByFile() map[string]int {
	out := map[string]int{}
	for _, g := range r.Groups {
		for _, in := range g.Fragments {
			out[in.File] += in.EndLine - in.StartLine + 1
		}
	}
	return out
}
