package duplicates

import (
	"encoding/binary"
	"math"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Signature is a MinHash sketch.
type Signature []uint64

// Jaccard estimates set similarity as the fraction of equal slots.
func (s Signature) Jaccard(o Signature) float64 {
	if len(s) == 0 || len(s) != len(o) {
		return 0
	}
	eq := 0
	for i := range s {
		if s[i] == o[i] {
			eq++
		}
	}
	return float64(eq) / float64(len(s))
}

// MinHasher computes signatures with num universal hash permutations
// h(x) = a*x + b over uint64, seeded deterministically from xxhash.
type MinHasher struct {
	a, b []uint64
}

// NewMinHasher prepares num permutations.
func NewMinHasher(num int) *MinHasher {
	m := &MinHasher{a: make([]uint64, num), b: make([]uint64, num)}
	var buf [8]byte
	for i := 0; i < num; i++ {
		binary.LittleEndian.PutUint64(buf[:], uint64(2*i))
		m.a[i] = xxhash.Sum64(buf[:]) | 1
		binary.LittleEndian.PutUint64(buf[:], uint64(2*i+1))
		m.b[i] = xxhash.Sum64(buf[:])
	}
	return m
}

// Shingles hashes every window of k consecutive tokens.
func Shingles(tokens []string, k int) []uint64 {
	if k <= 0 || len(tokens) < k {
		return nil
	}
	out := make([]uint64, 0, len(tokens)-k+1)
	for i := 0; i+k <= len(tokens); i++ {
		out = append(out, xxhash.Sum64String(strings.Join(tokens[i:i+k], "\x00")))
	}
	return out
}

// Signature returns the per-permutation minimum over shingles.
func (m *MinHasher) Signature(shingles []uint64) Signature {
	sig := make(Signature, len(m.a))
	for i := range sig {
		sig[i] = math.MaxUint64
	}
	for _, s := range shingles {
		for i := range sig {
			if h := m.a[i]*s + m.b[i]; h < sig[i] {
				sig[i] = h
			}
		}
	}
	return sig
}

// bandKeys hashes each band of rows slots into one bucket key.
func bandKeys(sig Signature, bands, rows int) []uint64 {
	keys := make([]uint64, bands)
	buf := make([]byte, 8*(rows+1))
	for b := 0; b < bands; b++ {
		binary.LittleEndian.PutUint64(buf, uint64(b))
		for r := 0; r < rows; r++ {
			idx := b*rows + r
			var v uint64
			if idx < len(sig) {
				v = sig[idx]
			}
			binary.LittleEndian.PutUint64(buf[8*(r+1):], v)
		}
		keys[b] = xxhash.Sum64(buf)
	}
	return keys
}

// unionFind groups fragment indices.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

// union keeps the smaller index as root so group representatives are stable.
func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if rb < ra {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
}
