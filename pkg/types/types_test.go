package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 1},
		{"short", "abc", 1},
		{"exactly four", "abcd", 1},
		{"eight chars", "abcdefgh", 2},
		{"longer", "The dragon sleeps beneath the mountain.", 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimateTokens(tt.text))
		})
	}
}

func TestScopeMatches(t *testing.T) {
	global := Scope{}
	scoped := Scope{ChatID: "chat-a"}

	assert.True(t, global.Matches("chat-a"), "global rows are visible everywhere")
	assert.True(t, global.Matches(""), "global rows are visible to scope-less queries")
	assert.True(t, scoped.Matches("chat-a"))
	assert.True(t, scoped.Matches(""), "scoped rows are visible to scope-less queries")
	assert.False(t, scoped.Matches("chat-b"))
}

func TestEntityHasName(t *testing.T) {
	e := &Entity{Name: "Alice", Aliases: []string{"Al", "The Gray"}}

	assert.True(t, e.HasName("alice"))
	assert.True(t, e.HasName("AL"))
	assert.True(t, e.HasName("the gray"))
	assert.False(t, e.HasName("Bob"))
}

func TestEntityCloneIsIndependent(t *testing.T) {
	e := &Entity{
		ID:        "ent:1",
		Name:      "Alice",
		Aliases:   []string{"Al"},
		Embedding: []float32{1, 2, 3},
		Scope:     Scope{ChatID: "c1", CharacterIDs: []string{"x"}},
	}
	clone := e.Clone()
	clone.Aliases[0] = "changed"
	clone.Embedding[0] = 99
	clone.CharacterIDs[0] = "changed"

	assert.Equal(t, "Al", e.Aliases[0])
	assert.Equal(t, float32(1), e.Embedding[0])
	assert.Equal(t, "x", e.CharacterIDs[0])
}

func TestRelationEndpoints(t *testing.T) {
	r := &Relation{SourceID: "ent:a", TargetID: "ent:b"}

	assert.True(t, r.Touches("ent:a"))
	assert.True(t, r.Touches("ent:b"))
	assert.False(t, r.Touches("ent:c"))
	assert.Equal(t, "ent:b", r.OtherEnd("ent:a"))
	assert.Equal(t, "ent:a", r.OtherEnd("ent:b"))
	assert.Equal(t, "", r.OtherEnd("ent:c"))
}

func TestSearchResultEmpty(t *testing.T) {
	r := NewSearchResult()
	assert.True(t, r.Empty())
	assert.Equal(t, 0, r.Len())

	r.Entities["ent:1"] = ScoredEntity{Entity: &Entity{ID: "ent:1"}, Score: 1}
	assert.False(t, r.Empty())
	assert.Equal(t, 1, r.Len())
}
