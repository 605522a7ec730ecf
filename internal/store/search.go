package store

import (
	"strings"

	"github.com/vega-holdings/voxta-graphmemory-dev/internal/embedding"
	"github.com/vega-holdings/voxta-graphmemory-dev/pkg/types"
)

// Neighbor-expansion scores are small constants, deliberately below the
// smallest direct keyword score (0.5), so direct matches always outrank
// rows pulled in purely by graph adjacency.
const (
	neighborRelationScore = 0.1
	neighborEntityScore   = 0.05
)

// SearchOptions controls one store search.
type SearchOptions struct {
	// Terms are the query keywords, already tokenized by the caller.
	// They are lower-cased here; empty terms are dropped.
	Terms []string

	// MaxHops is the number of neighbor-expansion rounds after direct
	// matching. Zero disables expansion.
	MaxHops int

	// NeighborLimit bounds how many entities expansion may add beyond the
	// direct matches, across all hops.
	NeighborLimit int

	// Provider supplies embeddings for similarity scoring. Nil disables
	// embedding scoring entirely.
	Provider embedding.Provider

	// MinScore is the similarity floor: cosine similarity below it is not
	// added to an item's score. When positive it also acts as a retention
	// threshold of its own.
	MinScore float64

	// Deterministic restricts scoring to keyword matching even when a
	// provider is configured.
	Deterministic bool

	// ChatID scopes the search. Empty means scope-less: every row is
	// visible. Otherwise only global rows and rows of this chat match.
	ChatID string
}

// Search scores every in-scope row against the query terms and returns the
// three score maps, unranked. Direct keyword/embedding matches come first;
// if MaxHops > 0, breadth-first neighbor expansion then pulls in relations
// touching matched entities together with their far endpoints, at fixed low
// scores, bounded by NeighborLimit.
func (s *Store) Search(opts SearchOptions) *types.SearchResult {
	result := types.NewSearchResult()

	terms := normalizeTerms(opts.Terms)
	if len(terms) == 0 {
		return result
	}

	var queryVec []float32
	if !opts.Deterministic && opts.Provider != nil {
		queryVec = opts.Provider.Embed(strings.Join(terms, " "))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range sortedKeys(s.lore) {
		l := s.lore[id]
		if !l.Scope.Matches(opts.ChatID) {
			continue
		}
		score := keywordScore(terms, l.Text, "", l.Keywords)
		score += embeddingScore(queryVec, l.Embedding, opts.MinScore)
		if retain(score, opts.MinScore) {
			result.Lore[id] = types.ScoredLore{Lore: l.Clone(), Score: score}
		}
	}
	for _, id := range sortedKeys(s.entities) {
		e := s.entities[id]
		if !e.Scope.Matches(opts.ChatID) {
			continue
		}
		score := keywordScore(terms, e.Summary, e.Name, e.Aliases)
		score += embeddingScore(queryVec, e.Embedding, opts.MinScore)
		if retain(score, opts.MinScore) {
			result.Entities[id] = types.ScoredEntity{Entity: e.Clone(), Score: score}
		}
	}
	for _, id := range sortedKeys(s.relations) {
		r := s.relations[id]
		if !r.Scope.Matches(opts.ChatID) {
			continue
		}
		score := keywordScore(terms, r.Evidence, "", []string{r.Type})
		if retain(score, opts.MinScore) {
			result.Relations[id] = types.ScoredRelation{Relation: r.Clone(), Score: score}
		}
	}

	if opts.MaxHops > 0 {
		s.expandNeighbors(result, opts)
	}
	return result
}

// normalizeTerms lower-cases the query terms and drops empties.
func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// keywordScore computes the additive keyword score for one row: +1.0 per
// term contained in the primary text, +1.0 per term contained in the name,
// +0.5 per term contained in any keyword or alias. Terms compound; there is
// no per-item cap.
func keywordScore(terms []string, text, name string, keywords []string) float64 {
	text = strings.ToLower(text)
	name = strings.ToLower(name)
	var score float64
	for _, term := range terms {
		if text != "" && strings.Contains(text, term) {
			score += 1.0
		}
		if name != "" && strings.Contains(name, term) {
			score += 1.0
		}
		for _, kw := range keywords {
			if strings.Contains(strings.ToLower(kw), term) {
				score += 0.5
				break
			}
		}
	}
	return score
}

// embeddingScore returns the cosine similarity of the query and item
// vectors when both are present and the similarity clears minScore.
// Missing vectors silently contribute nothing (keyword-only fallback).
func embeddingScore(queryVec, itemVec []float32, minScore float64) float64 {
	if len(queryVec) == 0 || len(itemVec) == 0 {
		return 0
	}
	sim := embedding.Cosine(queryVec, itemVec)
	if sim < minScore {
		return 0
	}
	return sim
}

func retain(score, minScore float64) bool {
	if score > 0 {
		return true
	}
	return minScore > 0 && score >= minScore
}

// expandNeighbors performs up to opts.MaxHops breadth-first rounds: every
// in-scope relation touching an already-matched entity joins the result,
// together with its far endpoint, until opts.NeighborLimit expansion
// entities have been added. Rows already matched directly keep their
// direct score.
func (s *Store) expandNeighbors(result *types.SearchResult, opts SearchOptions) {
	frontier := make([]string, 0, len(result.Entities))
	for id := range result.Entities {
		frontier = append(frontier, id)
	}
	added := 0

	relIDs := sortedKeys(s.relations)
	for hop := 0; hop < opts.MaxHops && len(frontier) > 0; hop++ {
		inFrontier := make(map[string]bool, len(frontier))
		for _, id := range frontier {
			inFrontier[id] = true
		}
		var next []string

		for _, relID := range relIDs {
			r := s.relations[relID]
			if !r.Scope.Matches(opts.ChatID) {
				continue
			}
			var far string
			switch {
			case inFrontier[r.SourceID]:
				far = r.TargetID
			case inFrontier[r.TargetID]:
				far = r.SourceID
			default:
				continue
			}

			if _, haveFar := result.Entities[far]; !haveFar {
				farEntity, exists := s.entities[far]
				if !exists || !farEntity.Scope.Matches(opts.ChatID) {
					continue
				}
				if added >= opts.NeighborLimit {
					continue
				}
				result.Entities[far] = types.ScoredEntity{Entity: farEntity.Clone(), Score: neighborEntityScore}
				added++
				next = append(next, far)
			}
			// A relation already matched directly keeps its direct score.
			if _, ok := result.Relations[relID]; !ok {
				result.Relations[relID] = types.ScoredRelation{Relation: r.Clone(), Score: neighborRelationScore}
			}
		}
		frontier = next
	}
}
