// Package rank turns a raw search result into the single ordered candidate
// list the hosting memory window consumes.
package rank

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vega-holdings/voxta-graphmemory-dev/pkg/types"
)

// EntityNames maps entity identifiers to display names, used to render
// relation candidates. Missing identifiers fall back to the raw id.
type EntityNames map[string]string

// Rank merges the three score maps into one list sorted by descending
// score and converts each row to the caller-facing memory-item shape.
// Relative order of equal scores is unspecified; callers must not rely
// on it.
func Rank(result *types.SearchResult, names EntityNames) []types.MemoryItem {
	if result == nil {
		return nil
	}
	type candidate struct {
		item  types.MemoryItem
		score float64
	}
	candidates := make([]candidate, 0, result.Len())

	for _, hit := range result.Entities {
		candidates = append(candidates, candidate{item: entityItem(hit.Entity), score: hit.Score})
	}
	for _, hit := range result.Relations {
		candidates = append(candidates, candidate{item: relationItem(hit.Relation, names), score: hit.Score})
	}
	for _, hit := range result.Lore {
		candidates = append(candidates, candidate{item: loreItem(hit.Lore), score: hit.Score})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	items := make([]types.MemoryItem, len(candidates))
	for i, c := range candidates {
		items[i] = c.item
	}
	return items
}

func entityItem(e *types.Entity) types.MemoryItem {
	text := e.Name
	if e.Summary != "" {
		text = e.Name + ": " + e.Summary
	}
	keywords := append([]string{e.Name}, e.Aliases...)
	return types.MemoryItem{
		Text:      text,
		Keywords:  keywords,
		Weight:    e.Weight,
		Tokens:    types.EstimateTokens(text),
		CreatedAt: e.CreatedAt,
	}
}

func relationItem(r *types.Relation, names EntityNames) types.MemoryItem {
	source := names.name(r.SourceID)
	target := names.name(r.TargetID)
	text := fmt.Sprintf("%s %s %s", source, r.Type, target)
	if r.Evidence != "" {
		text += ": " + r.Evidence
	}
	return types.MemoryItem{
		Text:      text,
		Keywords:  []string{source, target, r.Type},
		Weight:    r.Weight,
		Tokens:    types.EstimateTokens(text),
		CreatedAt: r.CreatedAt,
	}
}

func loreItem(l *types.LoreNote) types.MemoryItem {
	tokens := l.Tokens
	if tokens <= 0 {
		tokens = types.EstimateTokens(l.Text)
	}
	return types.MemoryItem{
		Text:      l.Text,
		Keywords:  append([]string(nil), l.Keywords...),
		Weight:    l.Weight,
		Tokens:    tokens,
		CreatedAt: l.CreatedAt,
	}
}

func (n EntityNames) name(id string) string {
	if name, ok := n[id]; ok && strings.TrimSpace(name) != "" {
		return name
	}
	return id
}

// NamesFromResult builds an EntityNames map from the entities present in a
// search result, so relation rendering can use display names without an
// extra store round trip.
func NamesFromResult(result *types.SearchResult) EntityNames {
	names := make(EntityNames, len(result.Entities))
	for id, hit := range result.Entities {
		names[id] = hit.Entity.Name
	}
	return names
}
