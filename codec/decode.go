package codec

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Bienpang/qudi/document"
	"github.com/Bienpang/qudi/ndarray"
)

// Decoder turns YAML text into ordered documents using a tag registry
// and a scalar resolver. Construction freezes the registry.
//
// Decoding is safe by construction: only base scalars, sequences, and
// mappings plus the registered extension tags are recognized; any other
// custom tag fails with UnknownTagError.
type Decoder struct {
	registry *Registry
	resolver *Resolver
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithDecoderResolver replaces the scalar resolver. Passing nil
// disables the scientific-notation repair, leaving the base grammar's
// scalar resolution untouched.
func WithDecoderResolver(r *Resolver) DecoderOption {
	return func(d *Decoder) {
		d.resolver = r
	}
}

// NewDecoder creates a Decoder backed by the given registry.
// A nil registry selects Default(). The registry is frozen so that tag
// bindings cannot change while decoding is possible.
func NewDecoder(registry *Registry, opts ...DecoderOption) *Decoder {
	if registry == nil {
		registry = Default()
	}
	d := &Decoder{
		registry: registry,
		resolver: NewResolver(),
	}
	for _, opt := range opts {
		opt(d)
	}
	registry.freeze()
	return d
}

// DecodeBytes parses YAML text into a Document. Empty input (or input
// holding only a null document) decodes to an empty Document. The root
// of non-empty input must be a mapping.
func (d *Decoder) DecodeBytes(data []byte) (*document.Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return document.New(), nil
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &document.ParseError{Err: err}
	}

	// Comment-only input parses to a zero-kind root node; it counts as
	// an empty document, like a missing or null one.
	node := documentContent(&root)
	if node == nil || node.Kind == 0 || node.Tag == "!!null" {
		return document.New(), nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, &document.ParseError{Reason: fmt.Sprintf("root must be a mapping, got %s", nodeKindString(node.Kind))}
	}

	value, err := d.DecodeNode(node)
	if err != nil {
		return nil, err
	}
	doc, ok := value.(*document.Document)
	if !ok {
		return nil, &document.ParseError{Reason: fmt.Sprintf("root decoded to %T, want mapping", value)}
	}
	return doc, nil
}

// DecodeNode decodes one node into a native value using the registry's
// tag bindings and the base scalar grammar.
func (d *Decoder) DecodeNode(node *yaml.Node) (any, error) {
	node = resolveAlias(node)
	if node == nil {
		return nil, &document.ParseError{Reason: "unresolvable alias node"}
	}

	// Registered extension tags take precedence over node kind: a
	// frozenset arrives as a tagged mapping, an inline array as a
	// tagged scalar.
	if isCustomTag(node.Tag) {
		fn, ok := d.registry.constructor(node.Tag)
		if !ok {
			return nil, &document.ParseError{
				Reason: fmt.Sprintf("line %d", node.Line),
				Err:    &document.UnknownTagError{Tag: node.Tag},
			}
		}
		return fn(d, node)
	}

	switch node.Kind {
	case yaml.MappingNode:
		return d.decodeMapping(node)
	case yaml.SequenceNode:
		return d.decodeSequence(node)
	case yaml.ScalarNode:
		return d.decodeScalar(node)
	default:
		return nil, &document.ParseError{Reason: fmt.Sprintf("unexpected %s node at line %d", nodeKindString(node.Kind), node.Line)}
	}
}

// decodeMapping decodes a mapping node into an ordered Document.
// Merge keys ("<<") are flattened before the pairs are read: merged
// pairs never override keys spelled out in the mapping itself.
// Duplicate keys follow the Document.Set policy (last value wins,
// first position kept).
func (d *Decoder) decodeMapping(node *yaml.Node) (*document.Document, error) {
	doc := document.New()

	merged := document.New()
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode := node.Content[i]
		valueNode := node.Content[i+1]

		if keyNode.Tag == "!!merge" {
			if err := d.flattenMerge(valueNode, merged); err != nil {
				return nil, err
			}
			continue
		}

		if keyNode.Kind != yaml.ScalarNode {
			return nil, &document.ParseError{Reason: fmt.Sprintf("non-scalar mapping key at line %d", keyNode.Line)}
		}
		value, err := d.DecodeNode(valueNode)
		if err != nil {
			return nil, err
		}
		doc.Set(keyNode.Value, value)
	}

	// Merged pairs fill in only the keys the mapping itself lacks.
	merged.Range(func(key string, value any) bool {
		if _, exists := doc.Get(key); !exists {
			doc.Set(key, value)
		}
		return true
	})
	return doc, nil
}

// flattenMerge collects pairs from a "<<" merge value, which is either
// a mapping or a sequence of mappings. Earlier entries win.
func (d *Decoder) flattenMerge(node *yaml.Node, into *document.Document) error {
	node = resolveAlias(node)
	switch node.Kind {
	case yaml.MappingNode:
		sub, err := d.decodeMapping(node)
		if err != nil {
			return err
		}
		sub.Range(func(key string, value any) bool {
			if _, exists := into.Get(key); !exists {
				into.Set(key, value)
			}
			return true
		})
		return nil
	case yaml.SequenceNode:
		for _, item := range node.Content {
			if err := d.flattenMerge(item, into); err != nil {
				return err
			}
		}
		return nil
	default:
		return &document.ParseError{Reason: fmt.Sprintf("merge value must be a mapping or sequence of mappings at line %d", node.Line)}
	}
}

func (d *Decoder) decodeSequence(node *yaml.Node) ([]any, error) {
	out := make([]any, len(node.Content))
	for i, item := range node.Content {
		value, err := d.DecodeNode(item)
		if err != nil {
			return nil, err
		}
		out[i] = value
	}
	return out, nil
}

// decodeScalar decodes a base-grammar scalar. Plain strings go through
// the resolver's scientific-notation repair and then the legacy array
// literal heuristic; a string that fails the heuristic is kept as-is.
func (d *Decoder) decodeScalar(node *yaml.Node) (any, error) {
	switch node.Tag {
	case "!!null", "":
		return nil, nil
	case "!!bool":
		switch strings.ToLower(node.Value) {
		case "true", "yes", "on":
			return true, nil
		case "false", "no", "off":
			return false, nil
		}
		return nil, &document.ParseError{Reason: fmt.Sprintf("malformed bool %q at line %d", node.Value, node.Line)}
	case "!!int":
		v, err := parseInt(node.Value)
		if err != nil {
			return nil, &document.ParseError{Reason: fmt.Sprintf("malformed integer %q at line %d", node.Value, node.Line), Err: err}
		}
		return v, nil
	case "!!float":
		v, err := parseFloat(node.Value)
		if err != nil {
			return nil, &document.ParseError{Reason: fmt.Sprintf("malformed float %q at line %d", node.Value, node.Line), Err: err}
		}
		return v, nil
	case "!!binary":
		raw, err := decodeBase64(node.Value)
		if err != nil {
			return nil, &document.ParseError{Reason: fmt.Sprintf("malformed binary scalar at line %d", node.Line), Err: err}
		}
		return raw, nil
	case "!!timestamp":
		// Timestamps stay textual; the document model has no time type.
		return node.Value, nil
	case "!!str":
		return d.decodeString(node), nil
	default:
		return nil, &document.ParseError{Reason: fmt.Sprintf("line %d", node.Line), Err: &document.UnknownTagError{Tag: node.Tag}}
	}
}

// decodeString applies the two string repair paths: the corrected
// scientific-notation grammar for plain scalars, and the best-effort
// reconstruction of stringified arrays. Both fall back to the literal
// string; reconstruction failure is not an error.
func (d *Decoder) decodeString(node *yaml.Node) any {
	value := node.Value

	// Quoted scalars are deliberate strings; only plain scalars are
	// candidates for numeric repair.
	if node.Style == 0 {
		if repaired := d.resolver.ResolveString(value); repaired != nil {
			if _, isString := repaired.(string); !isString {
				return repaired
			}
		}
	}

	if ndarray.HasLiteralPrefix(value) {
		if a, err := ndarray.ParseLiteral(value); err == nil {
			return a
		}
	}
	return value
}

// constructNDArray decodes an inline array: the scalar payload is a
// base64-encoded compressed archive.
func constructNDArray(dec *Decoder, node *yaml.Node) (any, error) {
	if node.Kind != yaml.ScalarNode {
		return nil, &document.ParseError{Reason: fmt.Sprintf("%s payload must be a binary scalar at line %d", TagNDArray, node.Line)}
	}
	raw, err := decodeBase64(node.Value)
	if err != nil {
		return nil, &document.ParseError{Reason: fmt.Sprintf("malformed %s payload at line %d", TagNDArray, node.Line), Err: err}
	}
	a, err := ndarray.DecodeNPZBytes(raw)
	if err != nil {
		return nil, &document.ParseError{Reason: fmt.Sprintf("corrupt %s payload at line %d", TagNDArray, node.Line), Err: err}
	}
	return a, nil
}

// constructExternalNDArray decodes an externally stored array: the
// scalar payload names the archive file. The path must be resolvable
// on its own (absolute, or relative to the working directory).
func constructExternalNDArray(dec *Decoder, node *yaml.Node) (any, error) {
	if node.Kind != yaml.ScalarNode {
		return nil, &document.ParseError{Reason: fmt.Sprintf("%s payload must be a path string at line %d", TagExternalNDArray, node.Line)}
	}
	a, err := ndarray.ReadNPZ(node.Value)
	if err != nil {
		return nil, &document.ParseError{Reason: fmt.Sprintf("failed to load external array at line %d", node.Line), Err: err}
	}
	return a, nil
}

// constructFrozenSet decodes a set node into an immutable set. The
// payload is a base set node: a mapping whose values are all null. An
// empty node decodes to the empty set.
func constructFrozenSet(dec *Decoder, node *yaml.Node) (any, error) {
	var members []any
	collect := func(n *yaml.Node) error {
		value, err := dec.DecodeNode(n)
		if err != nil {
			return err
		}
		switch value.(type) {
		case nil, bool, int64, uint64, float64, string:
		default:
			// Pointer members would compare by identity, breaking set
			// equality across a round trip.
			return &document.ParseError{Reason: fmt.Sprintf("%s member at line %d is not a scalar", TagFrozenSet, n.Line)}
		}
		members = append(members, value)
		return nil
	}

	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			if err := collect(node.Content[i]); err != nil {
				return nil, err
			}
		}
	case yaml.SequenceNode:
		for _, item := range node.Content {
			if err := collect(item); err != nil {
				return nil, err
			}
		}
	case yaml.ScalarNode:
		if node.Value != "" && node.Tag != "!!null" {
			return nil, &document.ParseError{Reason: fmt.Sprintf("%s payload must be a set node at line %d", TagFrozenSet, node.Line)}
		}
	}
	return document.NewFrozenSet(members...), nil
}

// decodeBase64 decodes a base64 scalar, tolerating the line breaks and
// indentation the emitter inserts into long payloads.
func decodeBase64(value string) ([]byte, error) {
	compact := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, value)
	return base64.StdEncoding.DecodeString(compact)
}

// isCustomTag reports whether a tag is an application extension tag
// ("!name") rather than a base-grammar tag ("!!name") or no tag.
func isCustomTag(tag string) bool {
	return strings.HasPrefix(tag, "!") && !strings.HasPrefix(tag, "!!")
}

// resolveAlias follows an alias node to its anchor target.
func resolveAlias(node *yaml.Node) *yaml.Node {
	if node != nil && node.Kind == yaml.AliasNode && node.Alias != nil {
		return node.Alias
	}
	return node
}

// documentContent unwraps the document node around the root content.
func documentContent(root *yaml.Node) *yaml.Node {
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return nil
		}
		return root.Content[0]
	}
	return root
}

// nodeKindString returns a human-readable name for a node kind.
func nodeKindString(kind yaml.Kind) string {
	switch kind {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "unknown"
	}
}
