package types

import (
	"strings"
	"time"
)

// Entity represents a named subject in the knowledge graph: a character, a
// place, an item, a faction. Entities are resolved by name or alias during
// extraction merges, so within one scope no two entities share a name or
// alias (case-insensitive).
type Entity struct {
	ID      string   `json:"id"`                // Unique identifier (format: ent:uuid), stable across merges
	Name    string   `json:"name"`              // Canonical display name
	Type    string   `json:"type,omitempty"`    // Free-text type tag (e.g. "entity", "Character")
	Aliases []string `json:"aliases,omitempty"` // Alternative names; never contains the canonical name
	Summary string   `json:"summary,omitempty"` // Free-text description, replaced by later merges

	// Embedding for similarity scoring; absent when the store runs in
	// deterministic-only mode.
	Embedding []float32 `json:"embedding,omitempty"`

	Scope

	Weight    int       `json:"weight,omitempty"` // Caller-assigned retrieval weight
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasName reports whether name equals the entity's canonical name or one of
// its aliases, compared case-insensitively.
func (e *Entity) HasName(name string) bool {
	if strings.EqualFold(e.Name, name) {
		return true
	}
	for _, alias := range e.Aliases {
		if strings.EqualFold(alias, name) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can never mutate a stored row.
func (e *Entity) Clone() *Entity {
	out := *e
	out.Aliases = cloneStrings(e.Aliases)
	out.Embedding = cloneFloats(e.Embedding)
	out.Scope = e.Scope.Clone()
	return &out
}

func cloneFloats(in []float32) []float32 {
	if in == nil {
		return nil
	}
	out := make([]float32, len(in))
	copy(out, in)
	return out
}
