package extract

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/vega-holdings/voxta-graphmemory-dev/internal/embedding"
	"github.com/vega-holdings/voxta-graphmemory-dev/internal/store"
	"github.com/vega-holdings/voxta-graphmemory-dev/pkg/types"
)

// Batch is the resolved outcome of one payload merge: the entity and
// relation rows to upsert, identifiers already settled. A nil batch means
// the payload yielded nothing to apply.
type Batch struct {
	Entities  []*types.Entity
	Relations []*types.Relation
}

// Merger resolves extraction payloads against one store and applies the
// resulting mutations. Resolution never creates a duplicate entity for a
// name or alias that is already known in the effective scope.
type Merger struct {
	store    *store.Store
	provider embedding.Provider
}

// NewMerger creates a merger bound to one store. provider may be nil, in
// which case merged entities carry no embeddings (deterministic-only mode).
func NewMerger(s *store.Store, provider embedding.Provider) *Merger {
	return &Merger{store: s, provider: provider}
}

// Merge resolves payload into a batch and upserts it atomically. The
// effective scope is the payload's own meta block when it carries scope
// information, otherwise fallback. A payload yielding no entities and no
// relations is not an error: Merge returns a nil batch and does nothing.
//
// Cancellation is checked before the batch is applied; a cancelled context
// leaves the store untouched.
func (m *Merger) Merge(ctx context.Context, p *Payload, fallback types.Scope) (*Batch, error) {
	if p.Empty() {
		return nil, nil
	}

	scope := fallback
	if p.Meta.Describes() {
		scope = p.Meta.Scope()
	}

	// Resolution reads and the batch apply must form one critical section;
	// a concurrent merge interleaved between them would resolve the same
	// name as absent and mint a duplicate entity.
	m.store.LockMerges()
	defer m.store.UnlockMerges()

	b := &mergeState{merger: m, scope: scope}
	b.registerScopeCharacters(p.Meta)

	for _, spec := range p.Entities {
		b.resolveEntity(spec.Name, spec.Aliases, spec.Type, spec.Summary)
	}
	for _, spec := range p.Relations {
		b.resolveRelation(spec)
	}

	if len(b.entities) == 0 && len(b.relations) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("extract: merge cancelled: %w", err)
	}
	if m.provider != nil {
		for _, e := range b.entities {
			text := e.Name
			if e.Summary != "" {
				text += " " + e.Summary
			}
			e.Embedding = m.provider.Embed(text)
		}
	}
	batch := &Batch{Entities: b.entities, Relations: b.relations}
	if err := m.store.UpsertBatch(batch.Entities, batch.Relations); err != nil {
		return nil, err
	}
	return batch, nil
}

// MergeText frames, parses and merges a raw payload-bearing text block, the
// single contract inbox-style collaborators rely on.
func (m *Merger) MergeText(ctx context.Context, text string, fallback types.Scope) (*Batch, error) {
	framed := FramePayloadText(text)
	if framed == "" {
		return nil, nil
	}
	p, err := ParsePayload(framed)
	if err != nil {
		return nil, err
	}
	return m.Merge(ctx, p, fallback)
}

// mergeState tracks the entities and relations resolved so far in one
// batch. Resolution consults the batch before the store so two mentions of
// one name inside a payload always land on the same row.
type mergeState struct {
	merger    *Merger
	scope     types.Scope
	entities  []*types.Entity
	relations []*types.Relation
	relKeys   map[string]bool
}

// registerScopeCharacters pre-registers every character and user named in
// the payload's scope metadata as a "Character" entity, before entities and
// relations are processed. Display names of the form "qualifier|Name" are
// canonicalized to the part after the bar, keeping the full original string
// as an alias.
func (b *mergeState) registerScopeCharacters(meta *MetaSpec) {
	names := make([]string, 0, len(b.scope.CharacterNames)+1)
	names = append(names, b.scope.CharacterNames...)
	if b.scope.UserName != "" {
		names = append(names, b.scope.UserName)
	}
	if meta != nil {
		for _, c := range meta.Characters {
			if c.Name != "" {
				names = append(names, c.Name)
			}
		}
		if meta.UserName != "" {
			names = append(names, meta.UserName)
		}
	}
	for _, raw := range names {
		canonical, alias := canonicalCharacterName(raw)
		if canonical == "" {
			continue
		}
		var aliases []string
		if alias != "" {
			aliases = []string{alias}
		}
		b.resolveEntity(canonical, aliases, "Character", "")
	}
}

// canonicalCharacterName strips a leading "qualifier|" prefix from a display
// name. The remainder becomes canonical; the full original string is
// returned as an alias (empty when no prefix was present).
func canonicalCharacterName(name string) (canonical, alias string) {
	name = strings.TrimSpace(name)
	if idx := strings.Index(name, "|"); idx >= 0 && idx+1 < len(name) {
		canonical = strings.TrimSpace(name[idx+1:])
		if canonical != "" {
			return canonical, name
		}
	}
	return name, ""
}

// resolveEntity resolves name (plus declared aliases) to one entity,
// reusing a batch or store row when any candidate name matches in scope and
// minting a fresh identifier otherwise. Non-empty typ/summary replace the
// existing values; alias sets are unioned case-insensitively, excluding
// whatever is canonical.
func (b *mergeState) resolveEntity(name string, aliases []string, typ, summary string) *types.Entity {
	candidates := dedupeFold(append([]string{name}, aliases...))
	if len(candidates) == 0 {
		return nil
	}

	entity := b.findResolved(candidates)
	if entity == nil {
		for _, candidate := range candidates {
			if found := b.merger.store.FindEntityByName(candidate, b.scope.ChatID); found != nil {
				entity = found
				b.entities = append(b.entities, entity)
				break
			}
		}
	}

	if entity == nil {
		if typ == "" {
			typ = "entity"
		}
		entity = &types.Entity{
			ID:      "ent:" + uuid.NewString(),
			Name:    candidates[0],
			Type:    typ,
			Aliases: withoutName(candidates[1:], candidates[0]),
			Summary: summary,
			Scope:   b.scope.Clone(),
		}
		b.entities = append(b.entities, entity)
		return entity
	}

	entity.Aliases = withoutName(dedupeFold(append(entity.Aliases, candidates...)), entity.Name)
	if typ != "" {
		entity.Type = typ
	}
	if summary != "" {
		entity.Summary = summary
	}
	mergeScope(&entity.Scope, b.scope)
	return entity
}

// findResolved searches entities already resolved in this batch, by name or
// alias under the same scope rule the store applies.
func (b *mergeState) findResolved(candidates []string) *types.Entity {
	for _, e := range b.entities {
		if e.ChatID != "" && e.ChatID != b.scope.ChatID {
			continue
		}
		for _, candidate := range candidates {
			if e.HasName(candidate) {
				return e
			}
		}
	}
	return nil
}

// resolveRelation resolves both endpoints through the entity path (minting
// placeholders when needed), deduplicates by (source, target, type) within
// the batch and reuses an existing same-scope relation's identifier when
// one already connects the same pair with the same type.
func (b *mergeState) resolveRelation(spec RelationSpec) {
	source := b.resolveEntity(spec.Source, nil, "", "")
	target := b.resolveEntity(spec.Target, nil, "", "")
	if source == nil || target == nil {
		return
	}

	key := source.ID + "\x00" + target.ID + "\x00" + strings.ToLower(spec.Type)
	if b.relKeys == nil {
		b.relKeys = make(map[string]bool)
	}
	if b.relKeys[key] {
		return
	}
	b.relKeys[key] = true

	evidence := evidenceText(spec.Attributes)
	if existing := b.merger.store.FindRelation(source.ID, target.ID, spec.Type, b.scope.ChatID); existing != nil {
		if evidence != "" {
			existing.Evidence = evidence
		}
		mergeScope(&existing.Scope, b.scope)
		b.relations = append(b.relations, existing)
		return
	}

	b.relations = append(b.relations, &types.Relation{
		ID:       "rel:" + uuid.NewString(),
		Type:     spec.Type,
		SourceID: source.ID,
		TargetID: target.ID,
		Evidence: evidence,
		Scope:    b.scope.Clone(),
	})
}

// evidenceText renders relation attributes as evidence: a dedicated
// evidence/context attribute wins, otherwise all attributes are joined as
// key=value pairs in key order.
func evidenceText(attrs map[string]string) string {
	if len(attrs) == 0 {
		return ""
	}
	for _, key := range []string{"evidence", "context"} {
		if v := strings.TrimSpace(attrs[key]); v != "" {
			return v
		}
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+attrs[k])
	}
	return strings.Join(parts, ", ")
}

// mergeScope overwrites dst fields with the batch scope's non-empty values;
// fields the batch scope leaves empty keep their existing values.
func mergeScope(dst *types.Scope, src types.Scope) {
	if src.ChatID != "" {
		dst.ChatID = src.ChatID
	}
	if src.SessionID != "" {
		dst.SessionID = src.SessionID
	}
	if src.UserID != "" {
		dst.UserID = src.UserID
	}
	if src.UserName != "" {
		dst.UserName = src.UserName
	}
	if len(src.CharacterIDs) > 0 {
		dst.CharacterIDs = cloneOrNil(src.CharacterIDs)
	}
	if len(src.CharacterNames) > 0 {
		dst.CharacterNames = cloneOrNil(src.CharacterNames)
	}
}

func cloneOrNil(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// dedupeFold trims and deduplicates names case-insensitively, keeping first
// occurrences and their original casing.
func dedupeFold(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		key := strings.ToLower(n)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, n)
	}
	return out
}

// withoutName removes name from the list, case-insensitively.
func withoutName(names []string, name string) []string {
	out := names[:0]
	for _, n := range names {
		if !strings.EqualFold(n, name) {
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
