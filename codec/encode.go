package codec

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"math"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Bienpang/qudi/document"
	"github.com/Bienpang/qudi/ndarray"
)

// externalArrayExt is the extension of externalized array archives.
const externalArrayExt = ".npz"

// Encoder turns ordered documents into YAML text using a tag registry.
// Construction freezes the registry.
//
// Every value is encoded into a freshly built node, so repeated
// references to equal substructures serialize in full at each
// occurrence; the output never contains anchors or aliases.
//
// An Encoder is single-use per dump call when a destination is set:
// the external array counter starts at zero and advances across the
// arrays of that one call.
type Encoder struct {
	registry *Registry
	resolver *Resolver

	// destPath is the destination file, when known. Arrays are
	// externalized next to it; with no destination they embed inline.
	destPath string

	// arrayCounter numbers externalized arrays within this dump call.
	arrayCounter int
}

// EncoderOption configures an Encoder.
type EncoderOption func(*Encoder)

// WithDestination tells the encoder the file the dump is headed for,
// enabling array externalization to sibling archive files.
func WithDestination(path string) EncoderOption {
	return func(e *Encoder) {
		e.destPath = path
	}
}

// NewEncoder creates an Encoder backed by the given registry.
// A nil registry selects Default(). The registry is frozen so that tag
// bindings cannot change while encoding is possible.
func NewEncoder(registry *Registry, opts ...EncoderOption) *Encoder {
	if registry == nil {
		registry = Default()
	}
	e := &Encoder{
		registry: registry,
		resolver: NewResolver(),
	}
	for _, opt := range opts {
		opt(e)
	}
	registry.freeze()
	return e
}

// EncodeBytes serializes a document to YAML text.
func (e *Encoder) EncodeBytes(doc *document.Document) ([]byte, error) {
	node, err := e.EncodeDocument(doc)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		enc.Close()
		return nil, fmt.Errorf("failed to emit YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to emit YAML: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeDocument builds a mapping node from a document in its stored
// key order.
func (e *Encoder) EncodeDocument(doc *document.Document) (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	var encodeErr error
	doc.Range(func(key string, value any) bool {
		valueNode, err := e.EncodeValue(value)
		if err != nil {
			encodeErr = fmt.Errorf("key %q: %w", key, err)
			return false
		}
		node.Content = append(node.Content, e.stringNode(key), valueNode)
		return true
	})
	if encodeErr != nil {
		return nil, encodeErr
	}
	return node, nil
}

// EncodeValue builds a node for one value. Registered representers are
// consulted first, keyed by the value's type; built-in scalars,
// sequences, and mappings are handled natively.
func (e *Encoder) EncodeValue(value any) (*yaml.Node, error) {
	if value == nil {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	}

	if fn, ok := e.registry.representer(value); ok {
		return fn(e, value)
	}

	switch v := value.(type) {
	case bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(v)}, nil
	case int64:
		return intNode(v), nil
	case uint64:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatUint(v, 10)}, nil
	case float64:
		return floatNode(v), nil
	case string:
		return e.stringNode(v), nil
	case []byte:
		return binaryNode(v), nil
	case []any:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for i, item := range v {
			itemNode, err := e.EncodeValue(item)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			node.Content = append(node.Content, itemNode)
		}
		return node, nil
	case *document.Document:
		return e.EncodeDocument(v)
	case map[string]any:
		// Plain Go maps have no insertion order; sort keys so the
		// output is deterministic.
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, k := range keys {
			valueNode, err := e.EncodeValue(v[k])
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			node.Content = append(node.Content, e.stringNode(k), valueNode)
		}
		return node, nil
	default:
		return nil, &document.UnsupportedTypeError{Type: fmt.Sprintf("%T", value)}
	}
}

// stringNode builds a string scalar. Strings that would be mistaken
// for numbers under the corrected grammar are quoted so they come back
// as strings.
func (e *Encoder) stringNode(s string) *yaml.Node {
	node := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
	if e.resolver.LooksNumeric(s) {
		node.Style = yaml.SingleQuotedStyle
	}
	return node
}

func intNode(v int64) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(v, 10)}
}

func floatNode(v float64) *yaml.Node {
	var text string
	switch {
	case math.IsInf(v, 1):
		text = ".inf"
	case math.IsInf(v, -1):
		text = "-.inf"
	case math.IsNaN(v):
		text = ".nan"
	default:
		text = strconv.FormatFloat(v, 'g', -1, 64)
		// Keep the scalar recognizable as a float after reparsing.
		if !strings.ContainsAny(text, ".eE") {
			text += ".0"
		}
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: text}
}

// binaryNode builds a base64 binary scalar, folded into 76-column
// lines in the conventional binary layout.
func binaryNode(data []byte) *yaml.Node {
	return &yaml.Node{
		Kind:  yaml.ScalarNode,
		Tag:   "!!binary",
		Value: foldBase64(base64.StdEncoding.EncodeToString(data)),
		Style: yaml.LiteralStyle,
	}
}

func foldBase64(s string) string {
	const width = 76
	if len(s) <= width {
		return s
	}
	var sb strings.Builder
	for len(s) > width {
		sb.WriteString(s[:width])
		sb.WriteByte('\n')
		s = s[width:]
	}
	sb.WriteString(s)
	return sb.String()
}

// representIntScalar encodes any fixed-width integer value as a plain
// base-grammar integer scalar. The width is not preserved.
func representIntScalar(enc *Encoder, value any) (*yaml.Node, error) {
	rv := reflect.ValueOf(value)
	if rv.CanUint() {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatUint(rv.Uint(), 10)}, nil
	}
	return intNode(rv.Int()), nil
}

// representFloatScalar encodes a fixed-width float value as a plain
// base-grammar float scalar. The width is not preserved.
func representFloatScalar(enc *Encoder, value any) (*yaml.Node, error) {
	rv := reflect.ValueOf(value)
	return floatNode(rv.Float()), nil
}

// representFrozenSet encodes an immutable set as a tagged set node:
// a mapping whose keys are the members and whose values are null.
func representFrozenSet(enc *Encoder, value any) (*yaml.Node, error) {
	set := value.(*document.FrozenSet)
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: TagFrozenSet}
	for _, member := range set.Values() {
		memberNode, err := enc.EncodeValue(member)
		if err != nil {
			return nil, fmt.Errorf("set member %v: %w", member, err)
		}
		node.Content = append(node.Content,
			memberNode,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"},
		)
	}
	return node, nil
}

// representNDArray encodes an array. With a known destination the
// array is written to a sibling archive file and referenced by path;
// each array of the dump call gets the next zero-padded counter value.
// If no destination is set, or writing the archive fails for any
// reason, the array embeds inline as a base64 compressed blob. The
// fallback is unconditional: externalization failure never aborts the
// dump.
func representNDArray(enc *Encoder, value any) (*yaml.Node, error) {
	a := value.(*ndarray.Array)

	if enc.destPath != "" {
		path := enc.externalArrayPath()
		if err := ndarray.WriteNPZ(path, a); err == nil {
			enc.arrayCounter++
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: TagExternalNDArray, Value: path}, nil
		}
	}

	blob, err := ndarray.EncodeNPZBytes(a)
	if err != nil {
		return nil, fmt.Errorf("failed to encode array: %w", err)
	}
	node := binaryNode(blob)
	node.Tag = TagNDArray
	return node, nil
}

// externalArrayPath names the next external archive: the destination
// file's base name plus a zero-padded counter, as a sibling file.
func (e *Encoder) externalArrayPath() string {
	dir := filepath.Dir(e.destPath)
	base := filepath.Base(e.destPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, fmt.Sprintf("%s-%06d%s", base, e.arrayCounter, externalArrayExt))
}
