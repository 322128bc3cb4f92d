package codec

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/Bienpang/qudi/document"
	"github.com/Bienpang/qudi/ndarray"
)

// Extension tags carried by configuration files beyond the base
// scalar/sequence/mapping grammar.
const (
	// TagNDArray marks an inline array: a compressed archive embedded
	// as a base64 binary scalar.
	TagNDArray = "!ndarray"

	// TagExternalNDArray marks an externally stored array: the scalar
	// value is the path of a sibling archive file.
	TagExternalNDArray = "!extndarray"

	// TagFrozenSet marks an immutable set, wrapping a base set node.
	TagFrozenSet = "!frozenset"
)

// ConstructFunc decodes a tagged node into a native value.
type ConstructFunc func(dec *Decoder, node *yaml.Node) (any, error)

// RepresentFunc encodes a native value into a tagged node.
type RepresentFunc func(enc *Encoder, value any) (*yaml.Node, error)

// Registry maps extension tags to construct functions and native types
// to represent functions.
//
// A Registry must be fully populated before its first use by a Decoder
// or Encoder; construction of either freezes the registry, and all
// later Register calls fail. This keeps the tag bindings immutable for
// the remainder of the process without any locking on the hot path.
type Registry struct {
	mu           sync.Mutex
	constructors map[string]ConstructFunc
	representers map[reflect.Type]RepresentFunc
	frozen       atomic.Bool
}

// NewRegistry creates an empty Registry.
// Most callers want Default instead.
func NewRegistry() *Registry {
	return &Registry{
		constructors: make(map[string]ConstructFunc),
		representers: make(map[reflect.Type]RepresentFunc),
	}
}

// RegisterConstructor binds a construct function to a tag name.
// Registering a tag twice or registering after the registry is frozen
// returns an error.
func (r *Registry) RegisterConstructor(tag string, fn ConstructFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen.Load() {
		return fmt.Errorf("codec: registry is frozen, cannot register tag %q", tag)
	}
	if _, exists := r.constructors[tag]; exists {
		return fmt.Errorf("codec: tag %q already has a constructor", tag)
	}
	r.constructors[tag] = fn
	return nil
}

// RegisterRepresenter binds a represent function to a native type.
// At most one binding may claim a given type; a second registration or
// a registration after freezing returns an error.
func (r *Registry) RegisterRepresenter(t reflect.Type, fn RepresentFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen.Load() {
		return fmt.Errorf("codec: registry is frozen, cannot register type %v", t)
	}
	if _, exists := r.representers[t]; exists {
		return fmt.Errorf("codec: type %v already has a representer", t)
	}
	r.representers[t] = fn
	return nil
}

// freeze marks the registry read-only. Called on first use.
func (r *Registry) freeze() {
	r.frozen.Store(true)
}

// constructor returns the construct function for a tag.
func (r *Registry) constructor(tag string) (ConstructFunc, bool) {
	fn, ok := r.constructors[tag]
	return fn, ok
}

// representer returns the represent function claiming the value's type.
func (r *Registry) representer(value any) (RepresentFunc, bool) {
	fn, ok := r.representers[reflect.TypeOf(value)]
	return fn, ok
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the process-wide registry holding the standard
// extension tag bindings. It is built once and frozen on first use by
// a Decoder or Encoder.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
		mustRegister(defaultRegistry)
	})
	return defaultRegistry
}

// mustRegister installs the standard bindings. The registry is freshly
// created by the caller, so none of the registrations can fail.
func mustRegister(r *Registry) {
	for tag, fn := range map[string]ConstructFunc{
		TagNDArray:         constructNDArray,
		TagExternalNDArray: constructExternalNDArray,
		TagFrozenSet:       constructFrozenSet,
	} {
		if err := r.RegisterConstructor(tag, fn); err != nil {
			panic(err)
		}
	}

	represent := func(v any, fn RepresentFunc) {
		if err := r.RegisterRepresenter(reflect.TypeOf(v), fn); err != nil {
			panic(err)
		}
	}

	represent((*ndarray.Array)(nil), representNDArray)
	represent((*document.FrozenSet)(nil), representFrozenSet)

	// Fixed-width numeric values serialize as plain base-grammar
	// scalars. Widths are not preserved in text form; only the value
	// survives the round trip.
	for _, v := range []any{int8(0), int16(0), int32(0), int(0), uint8(0), uint16(0), uint32(0), uint(0), uint64(0)} {
		represent(v, representIntScalar)
	}
	represent(float32(0), representFloatScalar)
}
