package document

import (
	"reflect"
	"testing"
)

// TestSetPreservesInsertionOrder tests that keys iterate in the order
// they were first inserted.
func TestSetPreservesInsertionOrder(t *testing.T) {
	doc := New()
	keys := []string{"gamma", "alpha", "zeta", "beta"}
	for i, k := range keys {
		doc.Set(k, i)
	}

	if got := doc.Keys(); !reflect.DeepEqual(got, keys) {
		t.Errorf("Keys() = %v, want %v", got, keys)
	}
	if doc.Len() != len(keys) {
		t.Errorf("Len() = %d, want %d", doc.Len(), len(keys))
	}
}

// TestSetDuplicateKey tests the duplicate-key policy: last value wins
// at the position of the first occurrence.
func TestSetDuplicateKey(t *testing.T) {
	doc := New()
	doc.Set("a", 1)
	doc.Set("b", 2)
	doc.Set("a", 3)

	if got := doc.Keys(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Keys() = %v, want [a b]", got)
	}
	v, ok := doc.Get("a")
	if !ok || v != 3 {
		t.Errorf("Get(a) = %v, %v, want 3, true", v, ok)
	}
}

func TestGetMissing(t *testing.T) {
	doc := New()
	if v, ok := doc.Get("missing"); ok || v != nil {
		t.Errorf("Get(missing) = %v, %v, want nil, false", v, ok)
	}
}

func TestDelete(t *testing.T) {
	doc := FromPairs("a", 1, "b", 2, "c", 3)

	doc.Delete("b")
	if got := doc.Keys(); !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Errorf("Keys() after delete = %v, want [a c]", got)
	}

	// Deleting a missing key is a no-op.
	doc.Delete("missing")
	if doc.Len() != 2 {
		t.Errorf("Len() after deleting missing key = %d, want 2", doc.Len())
	}
}

func TestRange(t *testing.T) {
	doc := FromPairs("a", 1, "b", 2, "c", 3)

	t.Run("full iteration in order", func(t *testing.T) {
		var keys []string
		doc.Range(func(key string, value any) bool {
			keys = append(keys, key)
			return true
		})
		if !reflect.DeepEqual(keys, []string{"a", "b", "c"}) {
			t.Errorf("Range visited %v, want [a b c]", keys)
		}
	})

	t.Run("early stop", func(t *testing.T) {
		count := 0
		doc.Range(func(key string, value any) bool {
			count++
			return false
		})
		if count != 1 {
			t.Errorf("Range visited %d keys after stop, want 1", count)
		}
	})
}

// TestEqual tests document comparison including nested structures.
func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b *Document
		want bool
	}{
		{
			name: "equal flat documents",
			a:    FromPairs("x", int64(1), "y", "two"),
			b:    FromPairs("x", int64(1), "y", "two"),
			want: true,
		},
		{
			name: "same pairs different order",
			a:    FromPairs("x", 1, "y", 2),
			b:    FromPairs("y", 2, "x", 1),
			want: false,
		},
		{
			name: "nested documents",
			a:    FromPairs("sub", FromPairs("k", "v")),
			b:    FromPairs("sub", FromPairs("k", "v")),
			want: true,
		},
		{
			name: "nested sequence mismatch",
			a:    FromPairs("seq", []any{int64(1), int64(2)}),
			b:    FromPairs("seq", []any{int64(1), int64(3)}),
			want: false,
		},
		{
			name: "sets compare by membership",
			a:    FromPairs("s", NewFrozenSet("a", "b")),
			b:    FromPairs("s", NewFrozenSet("b", "a")),
			want: true,
		},
		{
			name: "different key count",
			a:    FromPairs("x", 1),
			b:    FromPairs("x", 1, "y", 2),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFromPairsPanics(t *testing.T) {
	t.Run("odd argument count", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("FromPairs with odd arguments did not panic")
			}
		}()
		FromPairs("a")
	})

	t.Run("non-string key", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("FromPairs with non-string key did not panic")
			}
		}()
		FromPairs(42, "value")
	})
}
