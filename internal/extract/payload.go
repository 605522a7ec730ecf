package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vega-holdings/voxta-graphmemory-dev/pkg/types"
)

// EntitySpec is one entity description from an extraction payload.
type EntitySpec struct {
	Name    string
	Type    string
	Summary string
	Aliases []string
}

// RelationSpec is one relation description from an extraction payload.
// Source and Target are names, resolved against the graph during merge.
type RelationSpec struct {
	Source     string
	Target     string
	Type       string
	Attributes map[string]string
}

// Payload is the decoded extraction wire shape: entity and relation
// descriptions plus an optional scope block.
type Payload struct {
	Entities  []EntitySpec
	Relations []RelationSpec
	Meta      *MetaSpec
}

// MetaSpec is the optional scope block of a payload.
type MetaSpec struct {
	ChatID     string
	SessionID  string
	UserID     string
	UserName   string
	Characters []CharacterRef
}

// CharacterRef names one character participating in the chat.
type CharacterRef struct {
	ID   string
	Name string
}

// Empty reports whether the payload describes nothing at all. A payload
// whose only content is a scope-describing meta block is not empty: its
// characters still get pre-registered during merge.
func (p *Payload) Empty() bool {
	return p == nil || (len(p.Entities) == 0 && len(p.Relations) == 0 && !p.Meta.Describes())
}

// Scope converts the meta block to a types.Scope.
func (m *MetaSpec) Scope() types.Scope {
	s := types.Scope{
		ChatID:    m.ChatID,
		SessionID: m.SessionID,
		UserID:    m.UserID,
		UserName:  m.UserName,
	}
	for _, c := range m.Characters {
		s.CharacterIDs = append(s.CharacterIDs, c.ID)
		s.CharacterNames = append(s.CharacterNames, c.Name)
	}
	return s
}

// Describes reports whether the meta block actually carries scope
// information; an empty meta block does not override the caller's fallback.
func (m *MetaSpec) Describes() bool {
	return m != nil && (m.ChatID != "" || m.SessionID != "" || m.UserID != "" ||
		m.UserName != "" || len(m.Characters) > 0)
}

// ParsePayload decodes an extraction payload object. Object keys are
// matched case-insensitively; "characters" and "relationships" are accepted
// as legacy aliases for the entity/relation arrays. Rows missing required
// fields are skipped, not fatal: only malformed JSON itself is an error.
func ParsePayload(jsonStr string) (*Payload, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return nil, fmt.Errorf("extract: parse payload: %w", err)
	}

	p := &Payload{}
	for _, row := range getArray(raw, "entities", "characters") {
		if spec, ok := parseEntityRow(row); ok {
			p.Entities = append(p.Entities, spec)
		}
	}
	for _, row := range getArray(raw, "relations", "relationships") {
		if spec, ok := parseRelationRow(row); ok {
			p.Relations = append(p.Relations, spec)
		}
	}
	if meta, ok := getObject(raw, "meta"); ok {
		p.Meta = parseMeta(meta)
	}
	return p, nil
}

func parseEntityRow(row map[string]any) (EntitySpec, bool) {
	spec := EntitySpec{
		Name:    strings.TrimSpace(getString(row, "name")),
		Type:    strings.TrimSpace(getString(row, "type")),
		Summary: strings.TrimSpace(getString(row, "summary")),
	}
	if spec.Name == "" {
		return EntitySpec{}, false
	}
	for _, alias := range getStringArray(row, "aliases") {
		if alias = strings.TrimSpace(alias); alias != "" {
			spec.Aliases = append(spec.Aliases, alias)
		}
	}
	if spec.Summary == "" {
		if state, ok := getObject(row, "state"); ok {
			spec.Summary = formatState(state)
		}
	}
	return spec, true
}

// formatState substitutes a state block for a missing summary, rendering
// any of mood/status/goal as key=value pairs joined by commas.
func formatState(state map[string]any) string {
	var parts []string
	for _, key := range []string{"mood", "status", "goal"} {
		if v := strings.TrimSpace(getString(state, key)); v != "" {
			parts = append(parts, key+"="+v)
		}
	}
	return strings.Join(parts, ", ")
}

func parseRelationRow(row map[string]any) (RelationSpec, bool) {
	spec := RelationSpec{
		Source: strings.TrimSpace(getString(row, "source")),
		Target: strings.TrimSpace(getString(row, "target")),
		Type:   strings.TrimSpace(getString(row, "relation", "type")),
	}
	if spec.Source == "" || spec.Target == "" || spec.Type == "" {
		return RelationSpec{}, false
	}
	if attrs, ok := getObject(row, "attributes"); ok {
		spec.Attributes = make(map[string]string, len(attrs))
		for k, v := range attrs {
			if s, ok := v.(string); ok {
				spec.Attributes[strings.ToLower(k)] = s
			}
		}
	}
	return spec, true
}

func parseMeta(meta map[string]any) *MetaSpec {
	m := &MetaSpec{
		ChatID:    strings.TrimSpace(getString(meta, "chatId")),
		SessionID: strings.TrimSpace(getString(meta, "sessionId")),
	}
	if user, ok := getObject(meta, "user"); ok {
		m.UserID = strings.TrimSpace(getString(user, "id"))
		m.UserName = strings.TrimSpace(getString(user, "name"))
	}
	for _, row := range getArray(meta, "characters") {
		ref := CharacterRef{
			ID:   strings.TrimSpace(getString(row, "id")),
			Name: strings.TrimSpace(getString(row, "name")),
		}
		if ref.ID != "" || ref.Name != "" {
			m.Characters = append(m.Characters, ref)
		}
	}
	return m
}

// lookup finds a value under any of the given keys, case-insensitively.
func lookup(m map[string]any, keys ...string) (any, bool) {
	for _, key := range keys {
		for k, v := range m {
			if strings.EqualFold(k, key) {
				return v, true
			}
		}
	}
	return nil, false
}

func getString(m map[string]any, keys ...string) string {
	if v, ok := lookup(m, keys...); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func getObject(m map[string]any, keys ...string) (map[string]any, bool) {
	if v, ok := lookup(m, keys...); ok {
		if obj, ok := v.(map[string]any); ok {
			return obj, true
		}
	}
	return nil, false
}

func getArray(m map[string]any, keys ...string) []map[string]any {
	v, ok := lookup(m, keys...)
	if !ok {
		return nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(arr))
	for _, item := range arr {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

func getStringArray(m map[string]any, keys ...string) []string {
	v, ok := lookup(m, keys...)
	if !ok {
		return nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
