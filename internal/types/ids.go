// Package types defines the entity model shared by the store, workflow
// engine, template engine, dependency graph, export pipeline, and tool
// dispatch layer.
package types

import (
	"fmt"

	"github.com/google/uuid"
)

// ID is an opaque 128-bit entity identifier.
type ID uuid.UUID

// Nil is the zero ID, used to mean "no id" (e.g. an unset projectId).
var Nil = ID(uuid.Nil)

// NewID generates a fresh random identifier.
func NewID() ID {
	return ID(uuid.New())
}

// ParseID parses a canonical UUID string into an ID.
func ParseID(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("parsing id %q: %w", s, err)
	}
	return ID(u), nil
}

// IsZero reports whether the ID is the nil ID.
func (id ID) IsZero() bool {
	return id == Nil
}

func (id ID) String() string {
	return uuid.UUID(id).String()
}

// MarshalText implements encoding.TextMarshaler so IDs serialize as plain
// strings in JSON/YAML output.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(b []byte) error {
	parsed, err := ParseID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
