package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmbedDeterministic(t *testing.T) {
	p := NewHashProvider()

	a := p.Embed("the dragon sleeps")
	b := p.Embed("the dragon sleeps")

	assert.Equal(t, a, b, "same text must yield the same vector")
	assert.Len(t, a, Dimension)
}

func TestEmbedReturnsIndependentSlices(t *testing.T) {
	p := NewHashProvider()

	first := p.Embed("hello world")
	clean := make([]float32, len(first))
	copy(clean, first)

	// A caller scribbling on its result must not poison the cached vector.
	for i := range first {
		first[i] = 99
	}
	second := p.Embed("hello world")

	assert.Equal(t, clean, second)
	assert.NotSame(t, &first[0], &second[0])
}

func TestEmbedSimilarTextsScoreHigher(t *testing.T) {
	p := NewHashProvider()

	query := p.Embed("dragon cave treasure")
	near := p.Embed("the dragon guards treasure in a cave")
	far := p.Embed("quarterly revenue projections")

	assert.Greater(t, Cosine(query, near), Cosine(query, far))
}

func TestCosineContract(t *testing.T) {
	a := []float32{1, 0, 0}

	assert.Equal(t, 0.0, Cosine(a, []float32{1, 0}), "dimension mismatch yields 0")
	assert.Equal(t, 0.0, Cosine(a, []float32{0, 0, 0}), "zero norm yields 0")
	assert.Equal(t, 0.0, Cosine(nil, nil), "empty vectors yield 0")
	assert.InDelta(t, 1.0, Cosine(a, a), 1e-9)
	assert.InDelta(t, -1.0, Cosine(a, []float32{-1, 0, 0}), 1e-9)
	assert.InDelta(t, 0.0, Cosine(a, []float32{0, 1, 0}), 1e-9)
}

func TestEmbedEmptyText(t *testing.T) {
	p := NewHashProvider()

	vec := p.Embed("")
	assert.Len(t, vec, Dimension)
	for _, v := range vec {
		assert.Equal(t, float32(0), v)
	}
}
