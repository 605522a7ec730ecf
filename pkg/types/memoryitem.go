package types

import "time"

// MemoryItem is the caller-facing shape the ranker produces: one candidate
// for budgeted insertion into the caller's memory window. The store never
// persists MemoryItems; they are projections of graph rows.
type MemoryItem struct {
	Text      string    `json:"text"`
	Keywords  []string  `json:"keywords,omitempty"`
	Weight    int       `json:"weight,omitempty"`
	Tokens    int       `json:"tokens"` // Estimated token cost of Text
	CreatedAt time.Time `json:"createdAt"`
}

// EstimateTokens returns the token-cost heuristic for text: character count
// divided by four, never below one. Callers budget against this value, so
// the formula must stay exactly as is.
func EstimateTokens(text string) int {
	n := len(text) / 4
	if n < 1 {
		return 1
	}
	return n
}
