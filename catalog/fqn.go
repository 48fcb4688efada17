// Package catalog holds the passive, immutable data types that describe a
// relational database's structural metadata: tables, columns, constraints,
// indexes, views and routines. Everything here is a snapshot assembled once
// by a connector and then frozen; no type in this package mutates itself
// after a Catalog has been built.
package catalog

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FQN is a fully-qualified schema object name. Equality is case-insensitive
// but the original casing is preserved for display.
type FQN struct {
	Schema string `json:"schema"`
	Name   string `json:"name"`
}

// NewFQN builds an FQN from its parts.
func NewFQN(schema, name string) FQN {
	return FQN{Schema: schema, Name: name}
}

// String renders the FQN in "schema.name" display form, preserving case.
func (f FQN) String() string {
	if f.Schema == "" {
		return f.Name
	}
	return f.Schema + "." + f.Name
}

// Equal reports whether two FQNs refer to the same object, ignoring case.
func (f FQN) Equal(other FQN) bool {
	return strings.EqualFold(f.Schema, other.Schema) && strings.EqualFold(f.Name, other.Name)
}

// key returns a case-normalized representation suitable for use as a map key.
func (f FQN) key() string {
	return strings.ToLower(f.Schema) + "." + strings.ToLower(f.Name)
}

// Compare orders FQNs lexicographically (schema, then name), case-insensitive.
// Used wherever the spec requires a stable, deterministic ordering.
func (f FQN) Compare(other FQN) int {
	if c := strings.Compare(strings.ToLower(f.Schema), strings.ToLower(other.Schema)); c != 0 {
		return c
	}
	return strings.Compare(strings.ToLower(f.Name), strings.ToLower(other.Name))
}

// ObjectKind distinguishes the kinds of objects that participate in the
// dependency graph.
type ObjectKind int

const (
	KindTable ObjectKind = iota
	KindView
	KindProcedure
	KindFunction
)

func (k ObjectKind) String() string {
	switch k {
	case KindTable:
		return "table"
	case KindView:
		return "view"
	case KindProcedure:
		return "procedure"
	case KindFunction:
		return "function"
	default:
		return "unknown"
	}
}

// MarshalJSON renders ObjectKind as its lowercase name.
func (k ObjectKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON parses ObjectKind back from its lowercase name.
func (k *ObjectKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "table":
		*k = KindTable
	case "view":
		*k = KindView
	case "procedure":
		*k = KindProcedure
	case "function":
		*k = KindFunction
	default:
		return fmt.Errorf("catalog: unknown object kind %q", s)
	}
	return nil
}

// ObjectRef names a specific schema object by kind and FQN.
type ObjectRef struct {
	Kind ObjectKind `json:"kind"`
	FQN  FQN        `json:"fqn"`
}

func (r ObjectRef) String() string {
	return r.Kind.String() + ":" + r.FQN.String()
}

// key is used for map lookups and set membership across the graph package.
func (r ObjectRef) key() string {
	return r.Kind.String() + ":" + r.FQN.key()
}

// Key exposes the normalized lookup key for use by packages (graph, diff)
// that need ObjectRef identity without exposing FQN internals.
func (r ObjectRef) Key() string { return r.key() }

// Compare orders ObjectRefs by kind then FQN, for deterministic output.
func (r ObjectRef) Compare(other ObjectRef) int {
	if r.Kind != other.Kind {
		if r.Kind < other.Kind {
			return -1
		}
		return 1
	}
	return r.FQN.Compare(other.FQN)
}
