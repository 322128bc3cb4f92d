package codec

import (
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/Bienpang/qudi/document"
	"github.com/Bienpang/qudi/ndarray"
)

func decodeString(t *testing.T, input string) *document.Document {
	t.Helper()
	doc, err := NewDecoder(nil).DecodeBytes([]byte(input))
	if err != nil {
		t.Fatalf("DecodeBytes() error = %v", err)
	}
	return doc
}

// TestDecodeEmptyInput tests that empty input decodes to an empty
// document rather than nil or an error.
func TestDecodeEmptyInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty string", ""},
		{"whitespace only", "   \n\t\n"},
		{"explicit null document", "null\n"},
		{"comment only", "# nothing here\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := decodeString(t, tt.input)
			if doc == nil {
				t.Fatal("DecodeBytes() = nil document")
			}
			if doc.Len() != 0 {
				t.Errorf("Len() = %d, want 0", doc.Len())
			}
		})
	}
}

// TestDecodePreservesKeyOrder tests that mapping keys keep their
// source order, including in nested mappings.
func TestDecodePreservesKeyOrder(t *testing.T) {
	input := `
zebra: 1
apple: 2
mango:
  second: x
  first: y
banana: 4
`
	doc := decodeString(t, input)
	if got := doc.Keys(); !reflect.DeepEqual(got, []string{"zebra", "apple", "mango", "banana"}) {
		t.Errorf("Keys() = %v, want source order", got)
	}

	v, _ := doc.Get("mango")
	sub, ok := v.(*document.Document)
	if !ok {
		t.Fatalf("nested mapping decoded to %T, want *document.Document", v)
	}
	if got := sub.Keys(); !reflect.DeepEqual(got, []string{"second", "first"}) {
		t.Errorf("nested Keys() = %v, want source order", got)
	}
}

func TestDecodeScalars(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  any
	}{
		{"string", "k: hello", "hello"},
		{"bool true", "k: true", true},
		{"bool false", "k: false", false},
		{"int", "k: 42", int64(42)},
		{"negative int", "k: -7", int64(-7)},
		{"hex int", "k: 0x1f", int64(31)},
		{"float", "k: 2.5", 2.5},
		{"null", "k: null", nil},
		{"empty value", "k:", nil},
		{"float with exponent and point", "k: 1.5e3", 1500.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := decodeString(t, tt.input)
			v, ok := doc.Get("k")
			if !ok {
				t.Fatal("key not decoded")
			}
			if !reflect.DeepEqual(v, tt.want) {
				t.Errorf("value = %v (%T), want %v (%T)", v, v, tt.want, tt.want)
			}
		})
	}
}

// TestScientificNotationResolution tests the corrected numeric
// grammar: a bare exponent form without a decimal point or sign must
// resolve as a float, while the quoted form stays a string.
func TestScientificNotationResolution(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  any
	}{
		{"bare exponent", "k: 1e10", 1e10},
		{"exponent with sign", "k: 1e+10", 1e10},
		{"negative mantissa", "k: -3e2", -300.0},
		{"fraction and exponent", "k: 2.5e-1", 0.25},
		{"single quoted stays string", "k: '1e10'", "1e10"},
		{"double quoted stays string", `k: "1e10"`, "1e10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := decodeString(t, tt.input)
			v, _ := doc.Get("k")
			if !reflect.DeepEqual(v, tt.want) {
				t.Errorf("value = %v (%T), want %v (%T)", v, v, tt.want, tt.want)
			}
		})
	}
}

// TestResolverOffKeepsBaseGrammar tests that the repair is a decoder
// configuration, not hidden global state.
func TestResolverOffKeepsBaseGrammar(t *testing.T) {
	dec := NewDecoder(nil, WithDecoderResolver(nil))
	doc, err := dec.DecodeBytes([]byte("k: 1e10"))
	if err != nil {
		t.Fatalf("DecodeBytes() error = %v", err)
	}
	v, _ := doc.Get("k")
	// Depending on the base grammar the scalar is a string or already
	// a float; with the resolver disabled it must simply not be
	// repaired by us, so a string result is acceptable and a float
	// result means the base grammar handled it.
	switch v.(type) {
	case string, float64:
	default:
		t.Errorf("value = %v (%T), want string or float64", v, v)
	}
}

func TestDecodeSequence(t *testing.T) {
	doc := decodeString(t, "items:\n  - 1\n  - two\n  - 3.5\n")
	v, _ := doc.Get("items")
	want := []any{int64(1), "two", 3.5}
	if !reflect.DeepEqual(v, want) {
		t.Errorf("sequence = %#v, want %#v", v, want)
	}
}

func TestDecodeDuplicateKeysLastWins(t *testing.T) {
	doc := decodeString(t, "a: 1\nb: 2\na: 3\n")
	if got := doc.Keys(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Keys() = %v, want [a b]", got)
	}
	v, _ := doc.Get("a")
	if v != int64(3) {
		t.Errorf("duplicate key value = %v, want 3", v)
	}
}

// TestDecodeAliases tests that anchors and aliases in hand-edited
// input decode to full values.
func TestDecodeAliases(t *testing.T) {
	input := `
base: &b
  timeout: 5
copy: *b
`
	doc := decodeString(t, input)
	v, _ := doc.Get("copy")
	sub, ok := v.(*document.Document)
	if !ok {
		t.Fatalf("alias decoded to %T, want *document.Document", v)
	}
	timeout, _ := sub.Get("timeout")
	if timeout != int64(5) {
		t.Errorf("aliased value = %v, want 5", timeout)
	}
}

func TestDecodeMergeKeys(t *testing.T) {
	input := `
defaults: &d
  retries: 3
  timeout: 5
module:
  <<: *d
  timeout: 10
`
	doc := decodeString(t, input)
	v, _ := doc.Get("module")
	sub := v.(*document.Document)

	timeout, _ := sub.Get("timeout")
	if timeout != int64(10) {
		t.Errorf("explicit key = %v, want 10 (must beat merged value)", timeout)
	}
	retries, _ := sub.Get("retries")
	if retries != int64(3) {
		t.Errorf("merged key = %v, want 3", retries)
	}
}

// TestDecodeFrozenSet tests both the populated and the empty set,
// which must stay distinguishable from null and from a sequence.
func TestDecodeFrozenSet(t *testing.T) {
	t.Run("populated", func(t *testing.T) {
		doc := decodeString(t, "s: !frozenset\n  a: null\n  b: null\n")
		v, _ := doc.Get("s")
		set, ok := v.(*document.FrozenSet)
		if !ok {
			t.Fatalf("decoded to %T, want *document.FrozenSet", v)
		}
		if set.Len() != 2 || !set.Has("a") || !set.Has("b") {
			t.Errorf("set = %v, want {a b}", set.Values())
		}
	})

	t.Run("empty", func(t *testing.T) {
		doc := decodeString(t, "s: !frozenset {}\n")
		v, _ := doc.Get("s")
		set, ok := v.(*document.FrozenSet)
		if !ok {
			t.Fatalf("decoded to %T, want *document.FrozenSet", v)
		}
		if set.Len() != 0 {
			t.Errorf("Len() = %d, want 0", set.Len())
		}
	})

	// Set membership is by value; mappings and sequences would only
	// compare by identity, so they are rejected at load.
	t.Run("non-scalar members rejected", func(t *testing.T) {
		inputs := []string{
			"s: !frozenset\n  ? {a: 1}\n  : null\n",
			"s: !frozenset\n  - [1, 2]\n",
		}
		for _, input := range inputs {
			_, err := NewDecoder(nil).DecodeBytes([]byte(input))
			var perr *document.ParseError
			if !errors.As(err, &perr) {
				t.Errorf("DecodeBytes(%q) error = %v, want *document.ParseError", input, err)
			}
		}
	})
}

// TestDecodeArrayLiteralHeuristic tests both branches of the legacy
// string-to-array path: successful reconstruction and silent fallback.
func TestDecodeArrayLiteralHeuristic(t *testing.T) {
	t.Run("reconstructs", func(t *testing.T) {
		doc := decodeString(t, `k: "array([1, 2, 3])"`)
		v, _ := doc.Get("k")
		a, ok := v.(*ndarray.Array)
		if !ok {
			t.Fatalf("decoded to %T, want *ndarray.Array", v)
		}
		if a.Len() != 3 || a.Int64(0) != 1 || a.Int64(2) != 3 {
			t.Errorf("array = %v", a)
		}
		if a.DType() != ndarray.Int64 {
			t.Errorf("DType() = %v, want int64", a.DType())
		}
	})

	t.Run("falls back to string on malformed payload", func(t *testing.T) {
		input := `k: "array([1, 2,)"`
		doc := decodeString(t, input)
		v, _ := doc.Get("k")
		if v != "array([1, 2,)" {
			t.Errorf("value = %v (%T), want the literal string", v, v)
		}
	})

	t.Run("never evaluates arbitrary code", func(t *testing.T) {
		doc := decodeString(t, `k: "array(__import__('os').system('true'))"`)
		v, _ := doc.Get("k")
		if _, isString := v.(string); !isString {
			t.Errorf("value = %T, want string fallback", v)
		}
	})
}

func TestDecodeInlineNDArray(t *testing.T) {
	a := ndarray.FromInt64s(ndarray.Int32, []int64{10, 20, 30})
	blob, err := ndarray.EncodeNPZBytes(a)
	if err != nil {
		t.Fatalf("EncodeNPZBytes() error = %v", err)
	}
	input := fmt.Sprintf("k: !ndarray %s\n", base64.StdEncoding.EncodeToString(blob))

	doc := decodeString(t, input)
	v, _ := doc.Get("k")
	got, ok := v.(*ndarray.Array)
	if !ok {
		t.Fatalf("decoded to %T, want *ndarray.Array", v)
	}
	if !got.Equal(a) {
		t.Errorf("array = %v, want %v", got, a)
	}
}

func TestDecodeExternalNDArray(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg-000000.npz")
	a := ndarray.FromFloat64s(ndarray.Float64, []float64{1.5, 2.5})
	if err := ndarray.WriteNPZ(path, a); err != nil {
		t.Fatalf("WriteNPZ() error = %v", err)
	}

	doc := decodeString(t, fmt.Sprintf("k: !extndarray %s\n", path))
	v, _ := doc.Get("k")
	got, ok := v.(*ndarray.Array)
	if !ok {
		t.Fatalf("decoded to %T, want *ndarray.Array", v)
	}
	if !got.Equal(a) {
		t.Errorf("array = %v, want %v", got, a)
	}
}

// TestDecodeErrors tests the failure taxonomy: malformed input and
// unresolvable tags propagate as ParseError, never a partial document.
func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"malformed yaml", "k: [unclosed\n"},
		{"unknown custom tag", "k: !mystery 1\n"},
		{"corrupt inline array", "k: !ndarray bm90IGFuIGFyY2hpdmU=\n"},
		{"invalid base64 payload", "k: !ndarray '***'\n"},
		{"missing external array", "k: !extndarray /nonexistent/path.npz\n"},
		{"scalar root", "just a scalar\n"},
		{"sequence root", "- 1\n- 2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := NewDecoder(nil).DecodeBytes([]byte(tt.input))
			if err == nil {
				t.Fatal("DecodeBytes() expected error, got nil")
			}
			if doc != nil {
				t.Error("DecodeBytes() returned a partial document alongside the error")
			}
			var perr *document.ParseError
			if !errors.As(err, &perr) {
				t.Errorf("error type = %T, want *document.ParseError", err)
			}
		})
	}
}

func TestDecodeUnknownTagGetsTagError(t *testing.T) {
	_, err := NewDecoder(nil).DecodeBytes([]byte("k: !mystery 1\n"))
	var terr *document.UnknownTagError
	if !errors.As(err, &terr) {
		t.Fatalf("error %v does not wrap UnknownTagError", err)
	}
	if terr.Tag != "!mystery" {
		t.Errorf("Tag = %q, want !mystery", terr.Tag)
	}
}
