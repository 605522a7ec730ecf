package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePayloadBasic(t *testing.T) {
	p, err := ParsePayload(`{
		"entities": [{"name": "Alice", "type": "Character", "summary": "a ranger", "aliases": ["Al"]}],
		"relations": [{"source": "Alice", "target": "Bob", "relation": "friend_of"}]
	}`)
	require.NoError(t, err)

	require.Len(t, p.Entities, 1)
	assert.Equal(t, "Alice", p.Entities[0].Name)
	assert.Equal(t, "Character", p.Entities[0].Type)
	assert.Equal(t, []string{"Al"}, p.Entities[0].Aliases)

	require.Len(t, p.Relations, 1)
	assert.Equal(t, "friend_of", p.Relations[0].Type)
}

func TestParsePayloadLegacyKeys(t *testing.T) {
	p, err := ParsePayload(`{
		"characters": [{"name": "Alice"}],
		"relationships": [{"source": "Alice", "target": "Bob", "type": "knows"}]
	}`)
	require.NoError(t, err)

	assert.Len(t, p.Entities, 1)
	require.Len(t, p.Relations, 1)
	assert.Equal(t, "knows", p.Relations[0].Type)
}

func TestParsePayloadCaseInsensitiveKeys(t *testing.T) {
	p, err := ParsePayload(`{
		"Entities": [{"NAME": "Alice", "Type": "Character"}],
		"META": {"ChatId": "c1", "User": {"Name": "Dan"}}
	}`)
	require.NoError(t, err)

	require.Len(t, p.Entities, 1)
	assert.Equal(t, "Alice", p.Entities[0].Name)
	assert.Equal(t, "Character", p.Entities[0].Type)
	require.NotNil(t, p.Meta)
	assert.Equal(t, "c1", p.Meta.ChatID)
	assert.Equal(t, "Dan", p.Meta.UserName)
}

func TestParsePayloadStateSubstitutesSummary(t *testing.T) {
	p, err := ParsePayload(`{
		"entities": [{"name": "Alice", "state": {"mood": "wary", "goal": "find the vault"}}]
	}`)
	require.NoError(t, err)

	require.Len(t, p.Entities, 1)
	assert.Equal(t, "mood=wary, goal=find the vault", p.Entities[0].Summary)
}

func TestParsePayloadSummaryWinsOverState(t *testing.T) {
	p, err := ParsePayload(`{
		"entities": [{"name": "Alice", "summary": "a ranger", "state": {"mood": "wary"}}]
	}`)
	require.NoError(t, err)

	require.Len(t, p.Entities, 1)
	assert.Equal(t, "a ranger", p.Entities[0].Summary)
}

func TestParsePayloadSkipsUnusableRows(t *testing.T) {
	p, err := ParsePayload(`{
		"entities": [{"name": ""}, {"type": "Character"}, {"name": "Alice"}],
		"relations": [{"source": "Alice"}, {"source": "A", "target": "B", "relation": "knows"}]
	}`)
	require.NoError(t, err)

	assert.Len(t, p.Entities, 1, "rows without a name are skipped, not fatal")
	assert.Len(t, p.Relations, 1, "rows missing endpoints or type are skipped")
}

func TestParsePayloadMalformedJSON(t *testing.T) {
	_, err := ParsePayload(`{"entities": [`)

	assert.Error(t, err)
}

func TestParsePayloadMetaCharacters(t *testing.T) {
	p, err := ParsePayload(`{
		"entities": [{"name": "Alice"}],
		"meta": {"chatId": "c1", "characters": [{"id": "ch1", "name": "Seraphina"}]}
	}`)
	require.NoError(t, err)

	require.NotNil(t, p.Meta)
	assert.True(t, p.Meta.Describes())
	scope := p.Meta.Scope()
	assert.Equal(t, "c1", scope.ChatID)
	assert.Equal(t, []string{"ch1"}, scope.CharacterIDs)
	assert.Equal(t, []string{"Seraphina"}, scope.CharacterNames)
}

func TestParsePayloadEmpty(t *testing.T) {
	p, err := ParsePayload(`{}`)
	require.NoError(t, err)

	assert.True(t, p.Empty())
}

func TestPayloadWithOnlyMetaIsNotEmpty(t *testing.T) {
	p, err := ParsePayload(`{"meta": {"chatId": "c1", "characters": [{"id": "ch1", "name": "Seraphina"}]}}`)
	require.NoError(t, err)

	assert.False(t, p.Empty(), "scope characters are still content to register")
}

func TestParsePayloadRelationAttributes(t *testing.T) {
	p, err := ParsePayload(`{
		"relations": [{"source": "A", "target": "B", "relation": "ally_of",
			"attributes": {"Evidence": "they fought together", "since": "chapter 3"}}]
	}`)
	require.NoError(t, err)

	require.Len(t, p.Relations, 1)
	assert.Equal(t, "they fought together", p.Relations[0].Attributes["evidence"])
	assert.Equal(t, "chapter 3", p.Relations[0].Attributes["since"])
}
