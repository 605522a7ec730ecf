package types

import "time"

// Relation is a typed directed edge between two entities, with the text that
// evidenced it. Source and target must reference entities present in the
// same store; cross-scope edges are permitted but the resolver prefers
// same-scope matches, so they only arise from explicit payloads.
type Relation struct {
	ID       string `json:"id"`                 // Unique identifier (format: rel:uuid)
	Type     string `json:"type"`               // Relation label, free text (e.g. "ally_of")
	SourceID string `json:"sourceId"`           // Source entity identifier
	TargetID string `json:"targetId"`           // Target entity identifier
	Evidence string `json:"evidence,omitempty"` // Text the relation was extracted from

	Scope

	Weight    int       `json:"weight,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Touches reports whether the relation has entityID as either endpoint.
func (r *Relation) Touches(entityID string) bool {
	return r.SourceID == entityID || r.TargetID == entityID
}

// OtherEnd returns the endpoint opposite to entityID, or "" when entityID is
// not an endpoint of this relation.
func (r *Relation) OtherEnd(entityID string) string {
	switch entityID {
	case r.SourceID:
		return r.TargetID
	case r.TargetID:
		return r.SourceID
	}
	return ""
}

// Clone returns a deep copy so callers can never mutate a stored row.
func (r *Relation) Clone() *Relation {
	out := *r
	out.Scope = r.Scope.Clone()
	return &out
}
