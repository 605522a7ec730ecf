package types

import "time"

// LoreNote is a free-text fact or summary attached to the graph. Notes are
// retrieved independently of entities and relations; Refs lets a note point
// back at the rows it was derived from.
type LoreNote struct {
	ID       string   `json:"id"`                 // Unique identifier (format: lore:uuid)
	Text     string   `json:"text"`               // Note body
	Keywords []string `json:"keywords,omitempty"` // Retrieval keywords, matched at half weight

	Embedding []float32 `json:"embedding,omitempty"`

	Scope

	Weight    int       `json:"weight,omitempty"`
	Tokens    int       `json:"tokens,omitempty"` // Estimated token cost; 0 = estimate from text
	Refs      []string  `json:"refs,omitempty"`   // Related entity/relation identifiers
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy so callers can never mutate a stored row.
func (l *LoreNote) Clone() *LoreNote {
	out := *l
	out.Keywords = cloneStrings(l.Keywords)
	out.Embedding = cloneFloats(l.Embedding)
	out.Refs = cloneStrings(l.Refs)
	out.Scope = l.Scope.Clone()
	return &out
}
