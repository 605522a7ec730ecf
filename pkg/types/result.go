package types

// ScoredEntity pairs an entity snapshot with its search score.
type ScoredEntity struct {
	Entity *Entity
	Score  float64
}

// ScoredRelation pairs a relation snapshot with its search score.
type ScoredRelation struct {
	Relation *Relation
	Score    float64
}

// ScoredLore pairs a lore note snapshot with its search score.
type ScoredLore struct {
	Lore  *LoreNote
	Score float64
}

// SearchResult is the transient outcome of one store search: three score
// maps keyed by row identifier. It is built fresh per query, holds snapshots
// only, and is never persisted. Ordering is the ranker's job.
type SearchResult struct {
	Entities  map[string]ScoredEntity
	Relations map[string]ScoredRelation
	Lore      map[string]ScoredLore
}

// NewSearchResult returns an empty result set with all maps allocated.
func NewSearchResult() *SearchResult {
	return &SearchResult{
		Entities:  make(map[string]ScoredEntity),
		Relations: make(map[string]ScoredRelation),
		Lore:      make(map[string]ScoredLore),
	}
}

// Empty reports whether the result set contains no hits at all.
func (r *SearchResult) Empty() bool {
	return len(r.Entities) == 0 && len(r.Relations) == 0 && len(r.Lore) == 0
}

// Len returns the total number of hits across all three collections.
func (r *SearchResult) Len() int {
	return len(r.Entities) + len(r.Relations) + len(r.Lore)
}
