package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vega-holdings/voxta-graphmemory-dev/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewRegistry().Open(filepath.Join(t.TempDir(), "graph.json"))
	require.NoError(t, err)
	return s
}

func TestUpsertEntityIdempotent(t *testing.T) {
	s := newTestStore(t)
	entity := &types.Entity{ID: "ent:1", Name: "Alice", Summary: "a ranger"}

	require.NoError(t, s.UpsertEntities([]*types.Entity{entity}))
	first := s.GetEntity("ent:1")
	require.NotNil(t, first)

	require.NoError(t, s.UpsertEntities([]*types.Entity{entity}))
	second := s.GetEntity("ent:1")
	require.NotNil(t, second)

	entities := s.Entities()
	assert.Len(t, entities, 1, "upserting the same row twice must not grow the collection")
	assert.Equal(t, first.Name, second.Name)
	assert.Equal(t, first.Summary, second.Summary)
	assert.Equal(t, first.CreatedAt, second.CreatedAt, "creation time survives re-upsert")
	assert.False(t, second.UpdatedAt.Before(first.UpdatedAt))
}

func TestUpsertEmptyInputIsNoop(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.UpsertEntities(nil))
	require.NoError(t, s.UpsertRelations(nil))
	require.NoError(t, s.UpsertLore(nil))
	require.NoError(t, s.RemoveLore(nil))

	entities, relations, lore := s.Stats()
	assert.Equal(t, 0, entities+relations+lore)
}

func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.json")

	s, err := NewRegistry().Open(path)
	require.NoError(t, err)

	require.NoError(t, s.UpsertEntities([]*types.Entity{
		{ID: "ent:1", Name: "Alice", Type: "Character", Aliases: []string{"Al"},
			Summary: "a ranger", Scope: types.Scope{ChatID: "c1"}, Weight: 3},
		{ID: "ent:2", Name: "Bob"},
	}))
	require.NoError(t, s.UpsertRelations([]*types.Relation{
		{ID: "rel:1", Type: "friend_of", SourceID: "ent:1", TargetID: "ent:2", Evidence: "they met at the inn"},
	}))
	require.NoError(t, s.UpsertLore([]*types.LoreNote{
		{ID: "lore:1", Text: "The inn burned down.", Keywords: []string{"inn", "fire"}, Refs: []string{"ent:1"}},
	}))

	// A fresh registry reloads the document from disk.
	reloaded, err := NewRegistry().Open(path)
	require.NoError(t, err)

	assert.Equal(t, s.Entities(), reloaded.Entities())
	assert.Equal(t, s.Relations(), reloaded.Relations())
	assert.Equal(t, s.Lore(), reloaded.Lore())
}

func TestMalformedDocumentLoadsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.json")
	require.NoError(t, writeFile(path, "{not json at all"))

	s, err := NewRegistry().Open(path)
	require.NoError(t, err, "a corrupt document must load as empty, not fail")

	entities, relations, lore := s.Stats()
	assert.Equal(t, 0, entities+relations+lore)
}

func TestRegistrySharesInstances(t *testing.T) {
	dir := t.TempDir()
	registry := NewRegistry()

	a, err := registry.Open(filepath.Join(dir, "graph.json"))
	require.NoError(t, err)
	b, err := registry.Open(filepath.Join(dir, "sub", "..", "graph.json"))
	require.NoError(t, err)
	other, err := registry.Open(filepath.Join(dir, "other.json"))
	require.NoError(t, err)

	assert.Same(t, a, b, "spellings of one location share one instance")
	assert.NotSame(t, a, other)
	assert.Equal(t, 2, registry.Len())
}

func TestRemoveLore(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertLore([]*types.LoreNote{
		{ID: "lore:1", Text: "one"},
		{ID: "lore:2", Text: "two"},
	}))

	require.NoError(t, s.RemoveLore([]string{"lore:1", "lore:missing"}))

	lore := s.Lore()
	require.Len(t, lore, 1)
	assert.Equal(t, "lore:2", lore[0].ID)
}

func TestSnapshotsAreDefensive(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertEntities([]*types.Entity{
		{ID: "ent:1", Name: "Alice", Aliases: []string{"Al"}},
	}))

	snapshot := s.Entities()
	snapshot[0].Name = "Mallory"
	snapshot[0].Aliases[0] = "Evil"

	fresh := s.GetEntity("ent:1")
	assert.Equal(t, "Alice", fresh.Name)
	assert.Equal(t, "Al", fresh.Aliases[0])
}

func TestFindEntityByName(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertEntities([]*types.Entity{
		{ID: "ent:global", Name: "Alice"},
		{ID: "ent:scoped", Name: "Alice", Scope: types.Scope{ChatID: "c1"}},
		{ID: "ent:aliased", Name: "Robert", Aliases: []string{"Bob"}},
	}))

	found := s.FindEntityByName("alice", "c1")
	require.NotNil(t, found)
	assert.Equal(t, "ent:scoped", found.ID, "same-scope match wins over global")

	found = s.FindEntityByName("Alice", "c2")
	require.NotNil(t, found)
	assert.Equal(t, "ent:global", found.ID, "foreign-scope rows are invisible")

	found = s.FindEntityByName("bob", "")
	require.NotNil(t, found)
	assert.Equal(t, "ent:aliased", found.ID, "aliases resolve too")

	assert.Nil(t, s.FindEntityByName("nobody", ""))
}

func TestUpsertBatchRollsBackOnPersistFailure(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertEntities([]*types.Entity{{ID: "ent:1", Name: "Alice"}}))

	// Make the document path a directory so the rename fails.
	s.path = t.TempDir()

	err := s.UpsertBatch([]*types.Entity{
		{ID: "ent:1", Name: "Mallory"},
		{ID: "ent:2", Name: "Bob"},
	}, nil)
	require.Error(t, err)

	assert.Nil(t, s.GetEntity("ent:2"), "failed batch must not leave new rows behind")
	assert.Equal(t, "Alice", s.GetEntity("ent:1").Name, "failed batch must not leave updates behind")
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}
