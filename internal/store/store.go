// Package store implements the graph repository: durable, thread-safe
// storage of entities, relations and lore notes, persisted as one JSON
// document per storage location, with scoped keyword/embedding search and
// bounded neighbor expansion.
//
// A Store serializes every operation behind one mutex. Mutations replace
// whole rows (value snapshots, never in-place edits) and write the full
// document back to disk before returning. Reads hand out deep copies, so a
// caller can never observe or corrupt a row mid-mutation.
package store

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vega-holdings/voxta-graphmemory-dev/pkg/types"
)

// document is the on-disk shape of one storage location. Field names are a
// compatibility surface; arrays are always present, even when empty.
type document struct {
	Entities  []*types.Entity   `json:"entities"`
	Relations []*types.Relation `json:"relations"`
	Lore      []*types.LoreNote `json:"lore"`
}

// Store owns the three graph collections for one storage location.
// All exported methods are safe for concurrent use; a single mutex fully
// serializes reads and writes on one Store. Stores for different locations
// never block each other.
type Store struct {
	path string

	mu        sync.Mutex
	entities  map[string]*types.Entity
	relations map[string]*types.Relation
	lore      map[string]*types.LoreNote

	// mergeMu serializes resolve-then-apply sequences. A merge performs
	// several resolution reads before its batch apply; two merges
	// interleaving those reads would both see a name as absent and mint
	// duplicate identifiers for it.
	mergeMu sync.Mutex
}

// open loads the document at path, treating a missing, unreadable or
// malformed file as an empty graph. Silent recovery is a compatibility
// property: a corrupt store must degrade to empty, not fail the caller.
func open(path string) *Store {
	s := &Store{
		path:      path,
		entities:  make(map[string]*types.Entity),
		relations: make(map[string]*types.Relation),
		lore:      make(map[string]*types.LoreNote),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("store: load %s: %v (starting empty)", path, err)
		}
		return s
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Printf("store: parse %s: %v (starting empty)", path, err)
		return s
	}
	for _, e := range doc.Entities {
		if e != nil && e.ID != "" {
			s.entities[e.ID] = e
		}
	}
	for _, r := range doc.Relations {
		if r != nil && r.ID != "" {
			s.relations[r.ID] = r
		}
	}
	for _, l := range doc.Lore {
		if l != nil && l.ID != "" {
			s.lore[l.ID] = l
		}
	}
	return s
}

// Path returns the storage location this store persists to.
func (s *Store) Path() string {
	return s.path
}

// LockMerges acquires the store's merge lock. Callers resolving names
// against the store must hold it from their first resolution read through
// the final batch apply. It is distinct from the store's own mutex, which
// only covers individual operations.
func (s *Store) LockMerges() {
	s.mergeMu.Lock()
}

// UnlockMerges releases the merge lock.
func (s *Store) UnlockMerges() {
	s.mergeMu.Unlock()
}

// persist writes the full document to disk. Called with s.mu held on every
// mutation; correctness over throughput.
func (s *Store) persist() error {
	doc := document{
		Entities:  make([]*types.Entity, 0, len(s.entities)),
		Relations: make([]*types.Relation, 0, len(s.relations)),
		Lore:      make([]*types.LoreNote, 0, len(s.lore)),
	}
	for _, id := range sortedKeys(s.entities) {
		doc.Entities = append(doc.Entities, s.entities[id])
	}
	for _, id := range sortedKeys(s.relations) {
		doc.Relations = append(doc.Relations, s.relations[id])
	}
	for _, id := range sortedKeys(s.lore) {
		doc.Lore = append(doc.Lore, s.lore[id])
	}

	data, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal %s: %w", s.path, err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("store: mkdir %s: %w", dir, err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("store: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("store: rename %s: %w", s.path, err)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// UpsertEntities replaces any stored entity with a matching identifier,
// stamps the update time and persists before returning. Rows without an
// identifier are skipped; empty input is a no-op.
func (s *Store) UpsertEntities(items []*types.Entity) error {
	if len(items) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	changed := false
	for _, item := range items {
		if item == nil || item.ID == "" {
			continue
		}
		row := item.Clone()
		if row.CreatedAt.IsZero() {
			if existing, ok := s.entities[row.ID]; ok {
				row.CreatedAt = existing.CreatedAt
			} else {
				row.CreatedAt = now
			}
		}
		row.UpdatedAt = now
		s.entities[row.ID] = row
		changed = true
	}
	if !changed {
		return nil
	}
	return s.persist()
}

// UpsertRelations replaces any stored relation with a matching identifier,
// stamps the update time and persists before returning.
func (s *Store) UpsertRelations(items []*types.Relation) error {
	if len(items) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	changed := false
	for _, item := range items {
		if item == nil || item.ID == "" {
			continue
		}
		row := item.Clone()
		if row.CreatedAt.IsZero() {
			if existing, ok := s.relations[row.ID]; ok {
				row.CreatedAt = existing.CreatedAt
			} else {
				row.CreatedAt = now
			}
		}
		row.UpdatedAt = now
		s.relations[row.ID] = row
		changed = true
	}
	if !changed {
		return nil
	}
	return s.persist()
}

// UpsertLore replaces any stored lore note with a matching identifier,
// stamps the update time and persists before returning.
func (s *Store) UpsertLore(items []*types.LoreNote) error {
	if len(items) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	changed := false
	for _, item := range items {
		if item == nil || item.ID == "" {
			continue
		}
		row := item.Clone()
		if row.CreatedAt.IsZero() {
			if existing, ok := s.lore[row.ID]; ok {
				row.CreatedAt = existing.CreatedAt
			} else {
				row.CreatedAt = now
			}
		}
		row.UpdatedAt = now
		s.lore[row.ID] = row
		changed = true
	}
	if !changed {
		return nil
	}
	return s.persist()
}

// UpsertBatch applies one merged extraction batch atomically: either every
// entity and relation lands in the store (and on disk) or, when persistence
// fails, the in-memory collections are rolled back to their prior rows.
func (s *Store) UpsertBatch(entities []*types.Entity, relations []*types.Relation) error {
	if len(entities) == 0 && len(relations) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prevEntities := make(map[string]*types.Entity)
	prevRelations := make(map[string]*types.Relation)
	now := time.Now().UTC()

	for _, item := range entities {
		if item == nil || item.ID == "" {
			continue
		}
		prev, had := s.entities[item.ID]
		if had {
			prevEntities[item.ID] = prev
		} else {
			prevEntities[item.ID] = nil
		}
		row := item.Clone()
		if row.CreatedAt.IsZero() {
			if had {
				row.CreatedAt = prev.CreatedAt
			} else {
				row.CreatedAt = now
			}
		}
		row.UpdatedAt = now
		s.entities[row.ID] = row
	}
	for _, item := range relations {
		if item == nil || item.ID == "" {
			continue
		}
		prev, had := s.relations[item.ID]
		if had {
			prevRelations[item.ID] = prev
		} else {
			prevRelations[item.ID] = nil
		}
		row := item.Clone()
		if row.CreatedAt.IsZero() {
			if had {
				row.CreatedAt = prev.CreatedAt
			} else {
				row.CreatedAt = now
			}
		}
		row.UpdatedAt = now
		s.relations[row.ID] = row
	}

	if err := s.persist(); err != nil {
		for id, prev := range prevEntities {
			if prev == nil {
				delete(s.entities, id)
			} else {
				s.entities[id] = prev
			}
		}
		for id, prev := range prevRelations {
			if prev == nil {
				delete(s.relations, id)
			} else {
				s.relations[id] = prev
			}
		}
		return err
	}
	return nil
}

// RemoveLore deletes the lore notes whose identifiers appear in ids and
// persists. Unknown identifiers are ignored; an empty set is a no-op.
func (s *Store) RemoveLore(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := false
	for _, id := range ids {
		if _, ok := s.lore[id]; ok {
			delete(s.lore, id)
			removed = true
		}
	}
	if !removed {
		return nil
	}
	return s.persist()
}

// Entities returns a snapshot of every stored entity. The returned rows are
// deep copies; mutating them never affects the store.
func (s *Store) Entities() []*types.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.Entity, 0, len(s.entities))
	for _, id := range sortedKeys(s.entities) {
		out = append(out, s.entities[id].Clone())
	}
	return out
}

// Relations returns a deep-copied snapshot of every stored relation.
func (s *Store) Relations() []*types.Relation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.Relation, 0, len(s.relations))
	for _, id := range sortedKeys(s.relations) {
		out = append(out, s.relations[id].Clone())
	}
	return out
}

// Lore returns a deep-copied snapshot of every stored lore note.
func (s *Store) Lore() []*types.LoreNote {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.LoreNote, 0, len(s.lore))
	for _, id := range sortedKeys(s.lore) {
		out = append(out, s.lore[id].Clone())
	}
	return out
}

// GetEntity returns a copy of the entity with the given identifier, or nil.
func (s *Store) GetEntity(id string) *types.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entities[id]; ok {
		return e.Clone()
	}
	return nil
}

// FindEntityByName resolves name (or alias, case-insensitive) to a stored
// entity visible from chatID: a global entity always matches, a scoped one
// only when its chat id equals chatID. Same-scope matches win over global
// ones so merges attach to the conversation's own rows first.
func (s *Store) FindEntityByName(name, chatID string) *types.Entity {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var global *types.Entity
	for _, id := range sortedKeys(s.entities) {
		e := s.entities[id]
		if !e.HasName(name) {
			continue
		}
		switch {
		case e.ChatID != "" && e.ChatID == chatID:
			return e.Clone()
		case e.ChatID == "" && global == nil:
			global = e
		}
	}
	if global != nil {
		return global.Clone()
	}
	return nil
}

// FindRelation returns a copy of an existing relation connecting sourceID to
// targetID with the given type label in the given scope, or nil.
func (s *Store) FindRelation(sourceID, targetID, relType, chatID string) *types.Relation {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range sortedKeys(s.relations) {
		r := s.relations[id]
		if r.SourceID == sourceID && r.TargetID == targetID &&
			strings.EqualFold(r.Type, relType) && r.ChatID == chatID {
			return r.Clone()
		}
	}
	return nil
}

// Stats reports the collection sizes, for inspection surfaces.
func (s *Store) Stats() (entities, relations, lore int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entities), len(s.relations), len(s.lore)
}
