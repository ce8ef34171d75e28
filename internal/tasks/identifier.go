package tasks

import (
	"strings"

	"github.com/google/uuid"
)

// IdentifierKind distinguishes human-readable references from opaque ones.
type IdentifierKind int

const (
	// Named is a reference that already is a display name.
	Named IdentifierKind = iota
	// Opaque is a UUID-shaped reference that must be resolved to a display name.
	Opaque
)

func (k IdentifierKind) String() string {
	if k == Opaque {
		return "opaque"
	}
	return "named"
}

// Identifier is a skill, staff or client reference classified once at ingestion.
// Downstream code switches on Kind and never re-inspects the string shape.
type Identifier struct {
	Kind  IdentifierKind `json:"kind"`
	Value string         `json:"value"`
}

// ParseIdentifier classifies a raw reference. UUID-shaped values become Opaque
// in canonical lower-case form; anything else is a trimmed display name.
func ParseIdentifier(raw string) Identifier {
	trimmed := strings.TrimSpace(raw)
	if u, err := uuid.Parse(trimmed); err == nil {
		return NewOpaque(u.String())
	}
	return NewNamed(trimmed)
}

// NewNamed wraps a display name.
func NewNamed(name string) Identifier {
	return Identifier{Kind: Named, Value: strings.TrimSpace(name)}
}

// NewOpaque wraps an opaque identifier without shape checks.
func NewOpaque(id string) Identifier {
	return Identifier{Kind: Opaque, Value: strings.TrimSpace(id)}
}

// IsOpaque reports whether the identifier needs resolution.
func (i Identifier) IsOpaque() bool {
	return i.Kind == Opaque
}

// IsZero reports whether the identifier carries no value.
func (i Identifier) IsZero() bool {
	return i.Value == ""
}

func (i Identifier) String() string {
	return i.Value
}

// FoldName returns the comparison key for display names: trimmed and lower-cased.
func FoldName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ParseIdentifiers classifies a list of raw references, dropping blanks.
func ParseIdentifiers(raw []string) []Identifier {
	out := make([]Identifier, 0, len(raw))
	for _, r := range raw {
		id := ParseIdentifier(r)
		if id.IsZero() {
			continue
		}
		out = append(out, id)
	}
	return out
}
