package rank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vega-holdings/voxta-graphmemory-dev/pkg/types"
)

func TestRankNilResult(t *testing.T) {
	assert.Nil(t, Rank(nil, nil))
}

func TestRankOrdersByDescendingScore(t *testing.T) {
	result := types.NewSearchResult()
	result.Entities["ent:low"] = types.ScoredEntity{
		Entity: &types.Entity{ID: "ent:low", Name: "Background Guard"},
		Score:  0.4,
	}
	result.Entities["ent:high"] = types.ScoredEntity{
		Entity: &types.Entity{ID: "ent:high", Name: "Seraphina", Summary: "Captain of the watch"},
		Score:  2.1,
	}
	result.Lore["lore:mid"] = types.ScoredLore{
		Lore:  &types.LoreNote{ID: "lore:mid", Text: "The gates close at dusk."},
		Score: 1.0,
	}

	items := Rank(result, nil)
	require.Len(t, items, 3)
	assert.Equal(t, "Seraphina: Captain of the watch", items[0].Text)
	assert.Equal(t, "The gates close at dusk.", items[1].Text)
	assert.Equal(t, "Background Guard", items[2].Text)
}

func TestRankEntityItemShape(t *testing.T) {
	result := types.NewSearchResult()
	result.Entities["ent:a"] = types.ScoredEntity{
		Entity: &types.Entity{
			ID:      "ent:a",
			Name:    "Smaug",
			Summary: "A dragon hoarding gold",
			Aliases: []string{"the dragon"},
			Weight:  3,
		},
		Score: 1.0,
	}

	items := Rank(result, nil)
	require.Len(t, items, 1)
	item := items[0]
	assert.Equal(t, "Smaug: A dragon hoarding gold", item.Text)
	assert.Equal(t, []string{"Smaug", "the dragon"}, item.Keywords)
	assert.Equal(t, 3, item.Weight)
	assert.Equal(t, types.EstimateTokens(item.Text), item.Tokens)
}

func TestRankRelationUsesNamesWithIDFallback(t *testing.T) {
	result := types.NewSearchResult()
	result.Relations["rel:r"] = types.ScoredRelation{
		Relation: &types.Relation{
			ID:       "rel:r",
			SourceID: "ent:src",
			TargetID: "ent:tgt",
			Type:     "lives_in",
			Evidence: "Smaug nests in Echo Cave",
		},
		Score: 1.0,
	}

	// Only the source has a known display name; the target renders by id.
	items := Rank(result, EntityNames{"ent:src": "Smaug"})
	require.Len(t, items, 1)
	assert.Equal(t, "Smaug lives_in ent:tgt: Smaug nests in Echo Cave", items[0].Text)
	assert.Equal(t, []string{"Smaug", "ent:tgt", "lives_in"}, items[0].Keywords)
}

func TestRankLoreTokenFallback(t *testing.T) {
	result := types.NewSearchResult()
	result.Lore["lore:stored"] = types.ScoredLore{
		Lore:  &types.LoreNote{ID: "lore:stored", Text: "short", Tokens: 42},
		Score: 2.0,
	}
	result.Lore["lore:estimated"] = types.ScoredLore{
		Lore:  &types.LoreNote{ID: "lore:estimated", Text: "a note with no stored token count"},
		Score: 1.0,
	}

	items := Rank(result, nil)
	require.Len(t, items, 2)
	assert.Equal(t, 42, items[0].Tokens)
	assert.Equal(t, types.EstimateTokens(items[1].Text), items[1].Tokens)
}

func TestNamesFromResult(t *testing.T) {
	result := types.NewSearchResult()
	result.Entities["ent:a"] = types.ScoredEntity{
		Entity: &types.Entity{ID: "ent:a", Name: "Alice"},
		Score:  1.0,
	}
	result.Entities["ent:b"] = types.ScoredEntity{
		Entity: &types.Entity{ID: "ent:b", Name: "Bob"},
		Score:  0.5,
	}

	names := NamesFromResult(result)
	assert.Equal(t, "Alice", names.name("ent:a"))
	assert.Equal(t, "Bob", names.name("ent:b"))
	assert.Equal(t, "ent:missing", names.name("ent:missing"))
}
