// Package document provides the in-memory representation of a loaded
// configuration: an insertion-ordered mapping from string keys to values.
//
// A Document preserves the key order of the source text, so that a
// configuration file survives a load/save cycle without its sections
// being rearranged. Values are plain Go values (nil, bool, int64,
// uint64, float64, string, []byte, []any), nested *Document mappings,
// *FrozenSet values, and array values from the ndarray package.
package document

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Document is an insertion-ordered mapping from string keys to values.
// The zero value is not usable; create instances with New.
//
// Lookup and insert are O(1) amortized. Iteration order equals insertion
// order. Keys are always strings; there is no implicit key coercion.
type Document struct {
	keys   []string
	values map[string]any
}

// New creates a new empty Document.
func New() *Document {
	return &Document{
		values: make(map[string]any),
	}
}

// FromPairs creates a Document from alternating key/value arguments.
// It is mainly a convenience for building test fixtures and defaults.
//
// Example:
//
//	doc := document.FromPairs("host", "localhost", "port", 8080)
func FromPairs(pairs ...any) *Document {
	if len(pairs)%2 != 0 {
		panic("document.FromPairs: odd number of arguments")
	}
	doc := New()
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			panic(fmt.Sprintf("document.FromPairs: key at index %d is %T, want string", i, pairs[i]))
		}
		doc.Set(key, pairs[i+1])
	}
	return doc
}

// Set stores value under key. If the key already exists, its value is
// replaced but its position in the iteration order is kept. This is the
// duplicate-key policy for the whole codec: within one mapping the last
// value wins, at the position of the first occurrence.
func (d *Document) Set(key string, value any) {
	if _, exists := d.values[key]; !exists {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
}

// Get returns the value stored under key.
// Returns the value and true if found, or nil and false if not found.
func (d *Document) Get(key string) (any, bool) {
	v, ok := d.values[key]
	return v, ok
}

// Delete removes key and its value. Deleting a missing key is a no-op
// (idempotent).
func (d *Document) Delete(key string) {
	if _, exists := d.values[key]; !exists {
		return
	}
	delete(d.values, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			return
		}
	}
}

// Keys returns the keys in insertion order. The returned slice is a copy.
func (d *Document) Keys() []string {
	keys := make([]string, len(d.keys))
	copy(keys, d.keys)
	return keys
}

// Len returns the number of keys.
func (d *Document) Len() int {
	return len(d.keys)
}

// Range calls fn for each key/value pair in insertion order.
// If fn returns false, iteration stops.
func (d *Document) Range(fn func(key string, value any) bool) {
	for _, k := range d.keys {
		if !fn(k, d.values[k]) {
			return
		}
	}
}

// Equal reports whether two documents hold the same keys in the same
// order with deeply equal values.
func (d *Document) Equal(other *Document) bool {
	if d == nil || other == nil {
		return d == other
	}
	if len(d.keys) != len(other.keys) {
		return false
	}
	for i, k := range d.keys {
		if other.keys[i] != k {
			return false
		}
		if !valueEqual(d.values[k], other.values[k]) {
			return false
		}
	}
	return true
}

// String returns a compact single-line rendering, mainly for debugging
// and test failure messages.
func (d *Document) String() string {
	var sb strings.Builder
	sb.WriteString("{")
	for i, k := range d.keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s: %v", k, d.values[k])
	}
	sb.WriteString("}")
	return sb.String()
}

// valueEqual compares two values, descending into nested documents,
// sequences, and sets. Scalars are compared with reflect.DeepEqual, so
// numeric values of different widths are not equal; callers that need
// width-insensitive comparison should normalize first.
func valueEqual(a, b any) bool {
	switch av := a.(type) {
	case *Document:
		bv, ok := b.(*Document)
		return ok && av.Equal(bv)
	case *FrozenSet:
		bv, ok := b.(*FrozenSet)
		return ok && av.Equal(bv)
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !valueEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(a, b)
	}
}

// sortedMembers returns set members in a deterministic order for
// serialization and display. Members are ordered by their formatted
// representation, which is stable across runs.
func sortedMembers(members map[any]struct{}) []any {
	out := make([]any, 0, len(members))
	for m := range members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		return fmt.Sprint(out[i]) < fmt.Sprint(out[j])
	})
	return out
}
