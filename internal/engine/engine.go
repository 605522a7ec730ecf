// Package engine wires one store, its merger and the ranker into the
// retrieval surface the hosting chat runtime talks to: register and forget
// lore, apply extraction payloads, query ranked candidates.
package engine

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/vega-holdings/voxta-graphmemory-dev/internal/embedding"
	"github.com/vega-holdings/voxta-graphmemory-dev/internal/extract"
	"github.com/vega-holdings/voxta-graphmemory-dev/internal/rank"
	"github.com/vega-holdings/voxta-graphmemory-dev/internal/store"
	"github.com/vega-holdings/voxta-graphmemory-dev/pkg/types"
)

// Config holds the engine's retrieval defaults.
type Config struct {
	// MaxHops is the neighbor-expansion depth used by Query.
	MaxHops int

	// NeighborLimit bounds expansion-added entities per query.
	NeighborLimit int

	// MinScore is the embedding similarity floor.
	MinScore float64

	// Deterministic disables embedding scoring and embedding computation
	// entirely (keyword-only retrieval).
	Deterministic bool
}

// DefaultConfig returns the retrieval defaults.
func DefaultConfig() Config {
	return Config{
		MaxHops:       2,
		NeighborLimit: 8,
		MinScore:      0.3,
	}
}

// Event describes one observable engine action, for inspection surfaces.
type Event struct {
	Kind      string `json:"kind"`   // "merge", "lore", "forget", "query"
	ChatID    string `json:"chatId,omitempty"`
	Entities  int    `json:"entities,omitempty"`
	Relations int    `json:"relations,omitempty"`
	Lore      int    `json:"lore,omitempty"`
	Hits      int    `json:"hits,omitempty"`
}

// Engine is the per-store orchestrator. All methods are safe for concurrent
// use; consistency is the store's single lock, the engine itself holds no
// mutable graph state.
type Engine struct {
	store    *store.Store
	provider embedding.Provider
	merger   *extract.Merger
	config   Config

	// sink receives events; nil means nobody is listening. Set before the
	// engine is shared across goroutines.
	sink func(Event)
}

// New creates an engine over one store. provider is ignored when
// cfg.Deterministic is set.
func New(s *store.Store, provider embedding.Provider, cfg Config) *Engine {
	if cfg.Deterministic {
		provider = nil
	}
	return &Engine{
		store:    s,
		provider: provider,
		merger:   extract.NewMerger(s, provider),
		config:   cfg,
	}
}

// Store exposes the underlying store for inspection surfaces.
func (e *Engine) Store() *store.Store {
	return e.store
}

// SetEventSink registers a callback invoked after each observable action.
func (e *Engine) SetEventSink(sink func(Event)) {
	e.sink = sink
}

func (e *Engine) emit(ev Event) {
	if e.sink != nil {
		e.sink(ev)
	}
}

// Query scores the graph against terms and returns the ranked candidate
// list for the caller's memory window.
func (e *Engine) Query(terms []string, chatID string) []types.MemoryItem {
	result := e.store.Search(store.SearchOptions{
		Terms:         terms,
		MaxHops:       e.config.MaxHops,
		NeighborLimit: e.config.NeighborLimit,
		Provider:      e.provider,
		MinScore:      e.config.MinScore,
		Deterministic: e.config.Deterministic,
		ChatID:        chatID,
	})
	items := rank.Rank(result, rank.NamesFromResult(result))
	e.emit(Event{Kind: "query", ChatID: chatID, Hits: len(items)})
	return items
}

// RegisterLore stores caller-supplied memory items as lore notes and
// returns the minted identifiers, in input order.
func (e *Engine) RegisterLore(items []types.MemoryItem, scope types.Scope) ([]string, error) {
	if len(items) == 0 {
		return nil, nil
	}
	notes := make([]*types.LoreNote, 0, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		note := &types.LoreNote{
			ID:       "lore:" + uuid.NewString(),
			Text:     item.Text,
			Keywords: item.Keywords,
			Weight:   item.Weight,
			Tokens:   item.Tokens,
			Scope:    scope.Clone(),
		}
		if note.Tokens <= 0 {
			note.Tokens = types.EstimateTokens(note.Text)
		}
		if e.provider != nil {
			note.Embedding = e.provider.Embed(note.Text)
		}
		notes = append(notes, note)
		ids = append(ids, note.ID)
	}
	if err := e.store.UpsertLore(notes); err != nil {
		return nil, err
	}
	e.emit(Event{Kind: "lore", ChatID: scope.ChatID, Lore: len(notes)})
	return ids, nil
}

// ForgetLore removes the lore notes with the given identifiers.
func (e *Engine) ForgetLore(ids []string) error {
	if err := e.store.RemoveLore(ids); err != nil {
		return err
	}
	e.emit(Event{Kind: "forget", Lore: len(ids)})
	return nil
}

// ApplyPayloadText frames and merges an out-of-band payload text block
// (inbox files, fixtures). A block without a usable payload is a logged
// no-op, not an error.
func (e *Engine) ApplyPayloadText(ctx context.Context, text string, fallback types.Scope) (*extract.Batch, error) {
	batch, err := e.merger.MergeText(ctx, text, fallback)
	if err != nil {
		return nil, err
	}
	e.emitMerge(batch, fallback.ChatID)
	return batch, nil
}

// ApplyResponse merges the raw response of a text-generation call: the
// outer code fence is stripped, the payload object extracted and merged.
// An unusable response degrades to "no extraction", not an error, unless
// the embedded JSON is syntactically broken.
func (e *Engine) ApplyResponse(ctx context.Context, raw string, fallback types.Scope) (*extract.Batch, error) {
	framed := extract.FrameResponseJSON(raw)
	if framed == "" {
		log.Printf("engine: response carried no payload object, skipping")
		return nil, nil
	}
	payload, err := extract.ParsePayload(framed)
	if err != nil {
		return nil, err
	}
	batch, err := e.merger.Merge(ctx, payload, fallback)
	if err != nil {
		return nil, err
	}
	e.emitMerge(batch, fallback.ChatID)
	return batch, nil
}

func (e *Engine) emitMerge(batch *extract.Batch, chatID string) {
	if batch == nil {
		return
	}
	e.emit(Event{
		Kind:      "merge",
		ChatID:    chatID,
		Entities:  len(batch.Entities),
		Relations: len(batch.Relations),
	})
}
