// Package extract converts loosely-structured extraction output — LLM
// responses, inbox payload files, hand-written fixtures — into consistent
// graph mutations. It owns the JSON framing rules, the wire-shape decoding
// (case-insensitive keys, legacy aliases) and the entity resolution / merge
// logic that keeps the graph free of duplicate nodes.
package extract

import (
	"strings"
)

// PayloadMarker introduces an embedded graph payload inside a free-text
// block. The first JSON object after the marker (or from the start of the
// text when the marker is absent) is taken as the payload.
const PayloadMarker = "#graph-memory"

// FramePayloadText locates the single scope-tagged JSON object carried by a
// free-text block: the first '{' after PayloadMarker (or from the start when
// no marker is present) through its matching '}'. The extracted object is
// cleaned of comments and trailing commas. Returns "" when no complete
// object is found.
func FramePayloadText(text string) string {
	search := text
	if idx := strings.Index(text, PayloadMarker); idx >= 0 {
		search = text[idx+len(PayloadMarker):]
	}
	obj := matchBraces(search)
	if obj == "" {
		return ""
	}
	return sanitizeJSON(obj)
}

// FrameResponseJSON extracts the payload object from a raw text-generation
// response. An outer fenced code block is stripped first (models add them
// despite instructions), then the same brace-matching extraction applies.
func FrameResponseJSON(raw string) string {
	raw = stripFence(raw)
	obj := matchBraces(raw)
	if obj == "" {
		return ""
	}
	return sanitizeJSON(obj)
}

// stripFence removes one outer markdown code fence, with or without a
// language tag, leaving the body untouched.
func stripFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return text
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if nl := strings.IndexByte(trimmed, '\n'); nl >= 0 {
		// Drop the language tag line (e.g. "json").
		trimmed = trimmed[nl+1:]
	}
	if end := strings.LastIndex(trimmed, "```"); end >= 0 {
		trimmed = trimmed[:end]
	}
	return trimmed
}

// matchBraces returns the first complete top-level JSON object in text,
// tracking strings, escapes and comments so braces inside values or inside
// the tolerated // and /* */ comments do not confuse the balance. Returns
// "" when no complete object exists.
func matchBraces(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escape := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escape:
				escape = false
			case c == '\\':
				escape = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch {
		case c == '"':
			inString = true
		case c == '/' && i+1 < len(text) && text[i+1] == '/':
			for i < len(text) && text[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(text) && text[i+1] == '*':
			i += 2
			for i+1 < len(text) && !(text[i] == '*' && text[i+1] == '/') {
				i++
			}
			i++ // land on the closing '/'
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// sanitizeJSON strips // and /* */ comments and trailing commas so the
// tolerant payload shapes produced by models and hand-written fixtures
// still decode with encoding/json. String contents are preserved verbatim.
func sanitizeJSON(text string) string {
	var out strings.Builder
	out.Grow(len(text))
	inString := false
	escape := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			out.WriteByte(c)
			if escape {
				escape = false
			} else if c == '\\' {
				escape = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch {
		case c == '"':
			inString = true
			out.WriteByte(c)
		case c == '/' && i+1 < len(text) && text[i+1] == '/':
			for i < len(text) && text[i] != '\n' {
				i++
			}
			if i < len(text) {
				out.WriteByte('\n')
			}
		case c == '/' && i+1 < len(text) && text[i+1] == '*':
			i += 2
			for i+1 < len(text) && !(text[i] == '*' && text[i+1] == '/') {
				i++
			}
			i++ // skip the closing '/'
		case c == ',':
			// Look ahead past whitespace: a comma directly before a closing
			// bracket is dropped.
			j := i + 1
			for j < len(text) && (text[j] == ' ' || text[j] == '\t' || text[j] == '\n' || text[j] == '\r') {
				j++
			}
			if j < len(text) && (text[j] == '}' || text[j] == ']') {
				continue
			}
			out.WriteByte(c)
		default:
			out.WriteByte(c)
		}
	}
	return out.String()
}
