// Package ids generates the stable, lexicographically-sortable identifiers
// used for every logical entity in the profile (sources, targets, routes'
// owning ids, plugin instances). Host-assigned integer ids are a separate
// concern and are never represented by this type (see hostgraph.HostID).
package ids

import (
	"fmt"

	"github.com/google/uuid"
)

// ID is a 128-bit identifier, generated with UUIDv7 so that ids created
// later sort after ids created earlier when compared as strings, which gives
// logs and persisted ids a naturally chronological key. Device-order groups
// do not depend on it; they use each entity's Position.
type ID uuid.UUID

// Nil is the zero value, used as the sentinel for "no id" in optional fields.
var Nil ID

// New generates a fresh id. It never fails in practice (UUIDv7 generation
// only errors if the system clock/entropy source is unavailable); callers
// that can tolerate a panic in that exceedingly rare case may use MustNew.
func New() (ID, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return Nil, fmt.Errorf("ids: generate uuidv7: %w", err)
	}
	return ID(u), nil
}

// MustNew generates a fresh id and panics on failure. Used at call sites
// that cannot propagate an error (e.g. package-level defaults).
func MustNew() ID {
	id, err := New()
	if err != nil {
		panic(err)
	}
	return id
}

func (id ID) String() string {
	return uuid.UUID(id).String()
}

// IsNil reports whether id is the zero value.
func (id ID) IsNil() bool {
	return id == Nil
}

func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ID) UnmarshalText(text []byte) error {
	u, err := uuid.ParseBytes(text)
	if err != nil {
		return fmt.Errorf("ids: parse %q: %w", string(text), err)
	}
	*id = ID(u)
	return nil
}

// Parse parses a canonical id string, such as one round-tripped through the
// persisted profile or the command surface.
func Parse(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("ids: parse %q: %w", s, err)
	}
	return ID(u), nil
}

// Less reports whether id sorts before other, comparing canonical string
// forms.
func (id ID) Less(other ID) bool {
	return id.String() < other.String()
}
