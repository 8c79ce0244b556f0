// Package message contains the canonical conversation data model shared by
// every provider adapter: turns, content parts, roles, and usage accounting.
// Conversion helpers here are pure and total; they never perform I/O and
// never fail.
package message

import "strings"

// Role represents the sender of a turn.
type Role string

const (
	RoleUser   Role = "user"
	RoleModel  Role = "model"
	RoleSystem Role = "system"
)

// String returns the wire representation of the role.
func (r Role) String() string {
	return string(r)
}

// NormalizeRole maps a backend-specific role string onto the canonical set.
// Backends that label model output "assistant" map to RoleModel. Unrecognized
// roles default to RoleUser so that ingestion of foreign transcripts never
// fails; normalizing an already-canonical role returns it unchanged.
func NormalizeRole(native string) Role {
	switch strings.ToLower(strings.TrimSpace(native)) {
	case "model", "assistant", "ai":
		return RoleModel
	case "system":
		return RoleSystem
	case "user", "human":
		return RoleUser
	default:
		return RoleUser
	}
}

// Part is a single content fragment within a turn. Text is the only kind
// carried today; the struct stays open to other kinds (tool calls, inline
// data) without disturbing part ordering.
type Part struct {
	Text string `json:"text,omitempty"`
}

// Usage holds token accounting for a completed turn. It is a value type:
// backends that cannot report usage produce the zero value rather than an
// absent field, so consumers never branch on presence.
type Usage struct {
	PromptTokens    int `json:"prompt_tokens"`
	CandidateTokens int `json:"candidate_tokens"`
	TotalTokens     int `json:"total_tokens"`
}

// Turn is one message in a conversation.
type Turn struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
	Usage Usage  `json:"usage,omitempty"`
}

// NewUserTurn creates a user turn with a single text part.
func NewUserTurn(text string) Turn {
	return Turn{Role: RoleUser, Parts: []Part{{Text: text}}}
}

// NewModelTurn creates a model turn with a single text part.
func NewModelTurn(text string) Turn {
	return Turn{Role: RoleModel, Parts: []Part{{Text: text}}}
}

// NewSystemTurn creates a system turn with a single text part.
func NewSystemTurn(text string) Turn {
	return Turn{Role: RoleSystem, Parts: []Part{{Text: text}}}
}

// Text flattens the turn's text-bearing parts in order.
func (t Turn) Text() string {
	return FlattenText(t.Parts)
}

// IsEmpty reports whether the turn carries no text after flattening.
func (t Turn) IsEmpty() bool {
	return strings.TrimSpace(t.Text()) == ""
}

// FlattenText concatenates the text of each part in order, skipping parts
// that carry no text. Used when a backend only accepts flat strings.
func FlattenText(parts []Part) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

// StripEmptyParts returns a copy of the turn without blank text parts, for
// backends that reject empty content blocks. Part order is preserved.
func StripEmptyParts(t Turn) Turn {
	parts := make([]Part, 0, len(t.Parts))
	for _, p := range t.Parts {
		if p.Text != "" {
			parts = append(parts, p)
		}
	}
	return Turn{Role: t.Role, Parts: parts, Usage: t.Usage}
}

// CloneHistory returns a deep copy of a history slice. Part slices are
// copied so callers can mutate the result without touching the original.
func CloneHistory(turns []Turn) []Turn {
	out := make([]Turn, len(turns))
	for i, t := range turns {
		parts := make([]Part, len(t.Parts))
		copy(parts, t.Parts)
		out[i] = Turn{Role: t.Role, Parts: parts, Usage: t.Usage}
	}
	return out
}
