package types

// Scope identifies the conversation partition a graph row belongs to.
// It is attached to every entity, relation and lore note rather than being
// persisted as its own record. A row with an empty ChatID is global and is
// visible to every scope; a row with a ChatID is visible only to queries for
// that chat (or to scope-less queries).
type Scope struct {
	ChatID         string   `json:"chatId,omitempty"`         // Owning chat identifier (empty = global)
	SessionID      string   `json:"sessionId,omitempty"`      // Session within the chat
	UserID         string   `json:"userId,omitempty"`         // User identifier
	UserName       string   `json:"userName,omitempty"`       // User display name
	CharacterIDs   []string `json:"characterIds,omitempty"`   // Characters participating in the chat
	CharacterNames []string `json:"characterNames,omitempty"` // Display names matching CharacterIDs
}

// Matches reports whether a row carrying this scope is visible to a query
// scoped to chatID. Global rows (empty ChatID) match everything; scoped rows
// match only their own chat. An empty chatID query sees everything.
func (s Scope) Matches(chatID string) bool {
	if s.ChatID == "" || chatID == "" {
		return true
	}
	return s.ChatID == chatID
}

// IsZero reports whether the scope carries no partition information at all.
func (s Scope) IsZero() bool {
	return s.ChatID == "" && s.SessionID == "" && s.UserID == "" &&
		s.UserName == "" && len(s.CharacterIDs) == 0 && len(s.CharacterNames) == 0
}

// Clone returns a deep copy of the scope.
func (s Scope) Clone() Scope {
	out := s
	out.CharacterIDs = cloneStrings(s.CharacterIDs)
	out.CharacterNames = cloneStrings(s.CharacterNames)
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
