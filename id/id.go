// Package id defines TypeID-based identity types for griddispatch entities.
//
// Identifiers are K-sortable (UUIDv7-based), globally unique, and URL-safe
// in the format "prefix_suffix". The prefix names the entity kind, so a
// task id can never be mistaken for a job id when parsed.
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

// Prefix constants for all entity kinds.
const (
	PrefixJob     Prefix = "job"
	PrefixTask    Prefix = "task"
	PrefixNode    Prefix = "node"
	PrefixFailure Prefix = "fail"
)

// ID wraps a TypeID. The zero value is Nil.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new ID with the given prefix. It panics on an invalid
// prefix, which is a programming error.
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}
	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string such as "job_01h2xcejqtf2nbrexx3vqjhp41".
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses s and checks that its prefix is expected.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}
	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}
	return parsed, nil
}

// MustParse is like Parse but panics on error. Use for hardcoded values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}
	return parsed
}

// JobID identifies a single submission (prefix: "job").
type JobID = ID

// TaskID groups the jobs of one logical task (prefix: "task").
type TaskID = ID

// NodeID identifies a cluster node (prefix: "node").
type NodeID = ID

// FailureID identifies a failure record (prefix: "fail").
type FailureID = ID

// NewJobID generates a new job ID.
func NewJobID() ID { return New(PrefixJob) }

// NewTaskID generates a new task ID.
func NewTaskID() ID { return New(PrefixTask) }

// NewNodeID generates a new node ID.
func NewNodeID() ID { return New(PrefixNode) }

// NewFailureID generates a new failure record ID.
func NewFailureID() ID { return New(PrefixFailure) }

// ParseJobID parses s and validates the "job" prefix.
func ParseJobID(s string) (ID, error) { return ParseWithPrefix(s, PrefixJob) }

// ParseTaskID parses s and validates the "task" prefix.
func ParseTaskID(s string) (ID, error) { return ParseWithPrefix(s, PrefixTask) }

// ParseNodeID parses s and validates the "node" prefix.
func ParseNodeID(s string) (ID, error) { return ParseWithPrefix(s, PrefixNode) }

// ParseFailureID parses s and validates the "fail" prefix.
func ParseFailureID(s string) (ID, error) { return ParseWithPrefix(s, PrefixFailure) }

// String returns "prefix_suffix", or "" for Nil.
func (i ID) String() string {
	if !i.valid {
		return ""
	}
	return i.inner.String()
}

// Prefix returns the prefix component, or "" for Nil.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}
	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool { return !i.valid }

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}
	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty input yields Nil.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Value implements driver.Valuer. Nil is stored as NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}
	return i.inner.String(), nil
}

// Scan implements sql.Scanner.
func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Nil
		return nil
	case string:
		return i.UnmarshalText([]byte(v))
	case []byte:
		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
