// Package ndarray provides a dense numeric array value for configuration
// documents, together with its on-disk archive format and a parser for
// legacy textual array literals.
//
// An Array has a shape and a fixed element type (8/16/32/64-bit signed
// and unsigned integers, 16/32/64-bit floats). The element payload is
// stored as little-endian bytes, matching the archive format, so
// reading and writing archives never copies element by element.
package ndarray

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DType identifies the element type of an Array.
type DType uint8

const (
	Int8 DType = iota
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Int64
	Uint64
	Float16
	Float32
	Float64
)

// dtypeNames is the fixed, auditable vocabulary of element type names.
// The same names form the allow-list for the legacy literal parser.
var dtypeNames = map[DType]string{
	Int8:    "int8",
	Uint8:   "uint8",
	Int16:   "int16",
	Uint16:  "uint16",
	Int32:   "int32",
	Uint32:  "uint32",
	Int64:   "int64",
	Uint64:  "uint64",
	Float16: "float16",
	Float32: "float32",
	Float64: "float64",
}

// String returns the type name, e.g. "float32".
func (d DType) String() string {
	if name, ok := dtypeNames[d]; ok {
		return name
	}
	return fmt.Sprintf("dtype(%d)", uint8(d))
}

// Size returns the element size in bytes.
func (d DType) Size() int {
	switch d {
	case Int8, Uint8:
		return 1
	case Int16, Uint16, Float16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	default:
		return 8
	}
}

// IsFloat reports whether the type is a floating point type.
func (d DType) IsFloat() bool {
	return d == Float16 || d == Float32 || d == Float64
}

// DTypeFromName returns the DType for a type name from the fixed
// vocabulary. Returns false for any other name.
func DTypeFromName(name string) (DType, bool) {
	for d, n := range dtypeNames {
		if n == name {
			return d, true
		}
	}
	return 0, false
}

// Array is a dense numeric array with a shape and an element type.
// Elements are stored as little-endian bytes in row-major order.
type Array struct {
	dtype DType
	shape []int
	data  []byte
}

// New creates an Array from raw little-endian element bytes.
// The data length must equal the product of the shape dimensions times
// the element size.
func New(dtype DType, shape []int, data []byte) (*Array, error) {
	count := 1
	for _, dim := range shape {
		if dim < 0 {
			return nil, fmt.Errorf("ndarray: negative dimension %d", dim)
		}
		count *= dim
	}
	if want := count * dtype.Size(); len(data) != want {
		return nil, fmt.Errorf("ndarray: data length %d does not match shape %v of %s (want %d)",
			len(data), shape, dtype, want)
	}
	a := &Array{
		dtype: dtype,
		shape: make([]int, len(shape)),
		data:  make([]byte, len(data)),
	}
	copy(a.shape, shape)
	copy(a.data, data)
	return a, nil
}

// Zeros creates a zero-filled Array with the given type and shape.
func Zeros(dtype DType, shape ...int) *Array {
	count := 1
	for _, dim := range shape {
		count *= dim
	}
	a := &Array{
		dtype: dtype,
		shape: make([]int, len(shape)),
		data:  make([]byte, count*dtype.Size()),
	}
	copy(a.shape, shape)
	return a
}

// FromInt64s creates a one-dimensional Array of the given integer type
// from int64 element values. Values are truncated to the element width.
func FromInt64s(dtype DType, values []int64) *Array {
	a := Zeros(dtype, len(values))
	for i, v := range values {
		a.SetInt64(i, v)
	}
	return a
}

// FromFloat64s creates a one-dimensional Array of the given float type
// from float64 element values.
func FromFloat64s(dtype DType, values []float64) *Array {
	a := Zeros(dtype, len(values))
	for i, v := range values {
		a.SetFloat64(i, v)
	}
	return a
}

// DType returns the element type.
func (a *Array) DType() DType {
	return a.dtype
}

// Shape returns a copy of the dimensions.
func (a *Array) Shape() []int {
	shape := make([]int, len(a.shape))
	copy(shape, a.shape)
	return shape
}

// Len returns the total element count across all dimensions.
func (a *Array) Len() int {
	count := 1
	for _, dim := range a.shape {
		count *= dim
	}
	return count
}

// Bytes returns the raw little-endian element payload. The returned
// slice must not be modified.
func (a *Array) Bytes() []byte {
	return a.data
}

// Int64 returns the element at flat index i as an int64.
// Float elements are truncated toward zero.
func (a *Array) Int64(i int) int64 {
	off := i * a.dtype.Size()
	switch a.dtype {
	case Int8:
		return int64(int8(a.data[off]))
	case Uint8:
		return int64(a.data[off])
	case Int16:
		return int64(int16(binary.LittleEndian.Uint16(a.data[off:])))
	case Uint16:
		return int64(binary.LittleEndian.Uint16(a.data[off:]))
	case Int32:
		return int64(int32(binary.LittleEndian.Uint32(a.data[off:])))
	case Uint32:
		return int64(binary.LittleEndian.Uint32(a.data[off:]))
	case Int64:
		return int64(binary.LittleEndian.Uint64(a.data[off:]))
	case Uint64:
		return int64(binary.LittleEndian.Uint64(a.data[off:]))
	default:
		return int64(a.Float64(i))
	}
}

// Float64 returns the element at flat index i as a float64.
func (a *Array) Float64(i int) float64 {
	off := i * a.dtype.Size()
	switch a.dtype {
	case Float16:
		return float16ToFloat64(binary.LittleEndian.Uint16(a.data[off:]))
	case Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(a.data[off:])))
	case Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(a.data[off:]))
	case Uint64:
		return float64(binary.LittleEndian.Uint64(a.data[off:]))
	default:
		return float64(a.Int64(i))
	}
}

// SetInt64 stores v at flat index i, truncating to the element width.
func (a *Array) SetInt64(i int, v int64) {
	off := i * a.dtype.Size()
	switch a.dtype {
	case Int8, Uint8:
		a.data[off] = byte(v)
	case Int16, Uint16:
		binary.LittleEndian.PutUint16(a.data[off:], uint16(v))
	case Int32, Uint32:
		binary.LittleEndian.PutUint32(a.data[off:], uint32(v))
	case Int64, Uint64:
		binary.LittleEndian.PutUint64(a.data[off:], uint64(v))
	default:
		a.SetFloat64(i, float64(v))
	}
}

// SetFloat64 stores v at flat index i. For integer element types the
// value is truncated toward zero.
func (a *Array) SetFloat64(i int, v float64) {
	off := i * a.dtype.Size()
	switch a.dtype {
	case Float16:
		binary.LittleEndian.PutUint16(a.data[off:], float64ToFloat16(v))
	case Float32:
		binary.LittleEndian.PutUint32(a.data[off:], math.Float32bits(float32(v)))
	case Float64:
		binary.LittleEndian.PutUint64(a.data[off:], math.Float64bits(v))
	default:
		a.SetInt64(i, int64(v))
	}
}

// Equal reports whether two arrays have the same element type, shape,
// and element bytes.
func (a *Array) Equal(other *Array) bool {
	if a == nil || other == nil {
		return a == other
	}
	if a.dtype != other.dtype || len(a.shape) != len(other.shape) {
		return false
	}
	for i, dim := range a.shape {
		if other.shape[i] != dim {
			return false
		}
	}
	if len(a.data) != len(other.data) {
		return false
	}
	for i, b := range a.data {
		if other.data[i] != b {
			return false
		}
	}
	return true
}

// String returns a short description for debugging, e.g.
// "ndarray(int16, shape=[2 3])".
func (a *Array) String() string {
	return fmt.Sprintf("ndarray(%s, shape=%v)", a.dtype, a.shape)
}
