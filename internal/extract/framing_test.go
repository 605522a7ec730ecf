package extract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFramePayloadTextWithMarker(t *testing.T) {
	text := "Some narration before.\n" + PayloadMarker + "\n{\"entities\":[{\"name\":\"Alice\"}]}\nand after."

	framed := FramePayloadText(text)

	require.NotEmpty(t, framed)
	assert.True(t, json.Valid([]byte(framed)), "framed payload must be valid JSON: %s", framed)
}

func TestFramePayloadTextWithoutMarker(t *testing.T) {
	framed := FramePayloadText(`prefix {"entities":[]} suffix`)

	assert.Equal(t, `{"entities":[]}`, framed)
}

func TestFramePayloadTextNoObject(t *testing.T) {
	assert.Empty(t, FramePayloadText("no json here"))
	assert.Empty(t, FramePayloadText("unbalanced { \"a\": 1"))
	assert.Empty(t, FramePayloadText(""))
}

func TestFramePayloadTextBracesInsideStrings(t *testing.T) {
	framed := FramePayloadText(`{"name":"curly } brace","x":"esc \" quote"}`)

	assert.True(t, json.Valid([]byte(framed)), "got: %s", framed)
	assert.Contains(t, framed, "curly } brace")
}

func TestFramePayloadTextTolerantJSON(t *testing.T) {
	text := `{
		// the extractor sometimes comments its output
		"entities": [
			{"name": "Alice", /* inline */ "type": "Character",},
		],
	}`

	framed := FramePayloadText(text)

	require.NotEmpty(t, framed)
	assert.True(t, json.Valid([]byte(framed)), "comments and trailing commas must be stripped: %s", framed)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(framed), &decoded))
}

func TestFramePayloadTextUnbalancedBracesInComments(t *testing.T) {
	text := PayloadMarker + `
{
	// stray { in a line comment
	"entities": [{"name": "Smaug"}] /* and a } in a block one */
}`

	framed := FramePayloadText(text)

	require.NotEmpty(t, framed, "braces inside comments must not unbalance the match")
	assert.True(t, json.Valid([]byte(framed)), "got: %s", framed)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(framed), &decoded))
	assert.Contains(t, framed, "Smaug")
}

func TestFrameResponseJSONStripsFence(t *testing.T) {
	raw := "Here is the result:\n```json\n{\"entities\":[{\"name\":\"Alice\"}]}\n```\nDone."

	framed := FrameResponseJSON(raw)

	require.NotEmpty(t, framed)
	assert.True(t, json.Valid([]byte(framed)))
}

func TestFrameResponseJSONBareObject(t *testing.T) {
	framed := FrameResponseJSON(`{"relations":[]}`)

	assert.Equal(t, `{"relations":[]}`, framed)
}

func TestFrameResponseJSONCommentedURLsSurvive(t *testing.T) {
	framed := FrameResponseJSON(`{"summary":"see https://example.com/a"}`)

	assert.Contains(t, framed, "https://example.com/a", "slashes inside strings are not comments")
}
