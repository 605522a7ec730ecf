// Package embedding provides the vector embedding contract used by graph
// search, plus the default local provider. The numeric method of the default
// provider is deliberately not a compatibility surface: any provider that is
// deterministic per text and honors the cosine contract can be swapped in,
// and callers may opt out of embeddings entirely (deterministic-only mode).
package embedding

import (
	"hash/fnv"
	"math"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Dimension is the vector length the default provider produces.
const Dimension = 256

// Provider maps a text string to a fixed-length vector. Implementations must
// be deterministic: the same text always yields the same vector.
type Provider interface {
	Embed(text string) []float32
}

// Cosine returns the cosine similarity of a and b. Mismatched dimensions or
// a zero-norm vector yield 0 rather than an error, so scoring code can add
// the result unconditionally.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// HashProvider is the default embedding provider: each token of the input is
// hashed into a handful of vector positions, the result normalized to unit
// length. It captures token overlap, nothing more. Vectors are cached by
// text for the life of the provider.
type HashProvider struct {
	cache *lru.Cache[string, []float32]
}

// cacheSize bounds the text→vector cache. Chat-scale stores hold far fewer
// distinct texts than this, so in practice nothing is ever evicted.
const cacheSize = 16384

// NewHashProvider creates a hash-projection provider with an empty cache.
func NewHashProvider() *HashProvider {
	cache, _ := lru.New[string, []float32](cacheSize)
	return &HashProvider{cache: cache}
}

// Embed returns the vector for text, computing and caching it on first use.
// Empty text yields a zero vector. The returned slice is the caller's to
// keep; mutating it does not touch the cached copy.
func (p *HashProvider) Embed(text string) []float32 {
	if cached, ok := p.cache.Get(text); ok {
		out := make([]float32, len(cached))
		copy(out, cached)
		return out
	}
	vec := project(text)
	p.cache.Add(text, vec)
	out := make([]float32, len(vec))
	copy(out, vec)
	return out
}

func project(text string) []float32 {
	vec := make([]float32, Dimension)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(token))
		seed := h.Sum64()
		// Spread each token over four positions with alternating sign so
		// that near-identical token sets land near each other.
		for k := 0; k < 4; k++ {
			idx := int((seed >> (k * 13)) % Dimension)
			if seed>>(k*7)&1 == 0 {
				vec[idx] += 1
			} else {
				vec[idx] -= 1
			}
		}
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec
}
