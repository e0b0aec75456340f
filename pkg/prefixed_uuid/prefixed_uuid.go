// Package prefixed_uuid provides UUIDs carrying a readable prefix, such as
// "relay-9b2f...". Prefixes may themselves contain dashes.
package prefixed_uuid

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const uuidLen = 36

// PrefixedUUID represents a UUID with a prefix string.
type PrefixedUUID struct {
	Prefix string
	UUID   uuid.UUID
}

// New creates a PrefixedUUID with a freshly generated random UUID.
func New(prefix string) PrefixedUUID {
	return PrefixedUUID{Prefix: prefix, UUID: uuid.New()}
}

func FromUUID(prefix string, id uuid.UUID) PrefixedUUID {
	return PrefixedUUID{Prefix: prefix, UUID: id}
}

// FromString parses "prefix-uuid". The UUID is always the last 36 characters.
func FromString(s string) (PrefixedUUID, error) {
	if len(s) < uuidLen+2 || s[len(s)-uuidLen-1] != '-' {
		return PrefixedUUID{}, fmt.Errorf("invalid prefixed UUID format: %q", s)
	}

	prefix := s[:len(s)-uuidLen-1]
	id, err := uuid.Parse(s[len(s)-uuidLen:])
	if err != nil {
		return PrefixedUUID{}, fmt.Errorf("invalid UUID: %w", err)
	}
	return PrefixedUUID{Prefix: prefix, UUID: id}, nil
}

// HasPrefix reports whether s is a well formed id with the given prefix
func HasPrefix(s, prefix string) bool {
	p, err := FromString(s)
	return err == nil && p.Prefix == prefix
}

func (p PrefixedUUID) String() string {
	return p.Prefix + "-" + p.UUID.String()
}

func (p PrefixedUUID) IsZero() bool {
	return p.Prefix == "" && p.UUID == uuid.Nil
}

func (p PrefixedUUID) Equal(other PrefixedUUID) bool {
	return p.Prefix == other.Prefix && p.UUID == other.UUID
}

// MarshalText implements encoding.TextMarshaler, which also covers JSON and YAML.
func (p PrefixedUUID) MarshalText() ([]byte, error) {
	if p.IsZero() {
		return []byte{}, nil
	}
	return []byte(p.String()), nil
}

func (p *PrefixedUUID) UnmarshalText(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "" {
		*p = PrefixedUUID{}
		return nil
	}
	parsed, err := FromString(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
