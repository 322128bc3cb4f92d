package ndarray

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// NPY serialization for a single array. The format is the NumPy .npy
// v1.0 layout: a magic prefix, a version, a little-endian header length,
// a Python-dict header describing dtype/order/shape padded to a 64-byte
// boundary, then the raw element bytes. Only little-endian (or
// byte-order-independent) C-order payloads are produced and accepted.

var npyMagic = []byte("\x93NUMPY")

// descrTable maps DType to the npy descr string and back.
var descrTable = map[DType]string{
	Int8:    "|i1",
	Uint8:   "|u1",
	Int16:   "<i2",
	Uint16:  "<u2",
	Int32:   "<i4",
	Uint32:  "<u4",
	Int64:   "<i8",
	Uint64:  "<u8",
	Float16: "<f2",
	Float32: "<f4",
	Float64: "<f8",
}

// encodeNPY serializes the array into the npy byte layout.
func encodeNPY(a *Array) []byte {
	var shape strings.Builder
	shape.WriteString("(")
	for i, dim := range a.shape {
		if i > 0 {
			shape.WriteString(", ")
		}
		shape.WriteString(strconv.Itoa(dim))
	}
	if len(a.shape) == 1 {
		shape.WriteString(",")
	}
	shape.WriteString(")")

	header := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': %s, }",
		descrTable[a.dtype], shape.String())

	// Pad so that magic+version+len+header is a multiple of 64 and the
	// header ends with a newline.
	total := len(npyMagic) + 2 + 2 + len(header) + 1
	if pad := total % 64; pad != 0 {
		header += strings.Repeat(" ", 64-pad)
	}
	header += "\n"

	buf := bytes.NewBuffer(make([]byte, 0, len(npyMagic)+4+len(header)+len(a.data)))
	buf.Write(npyMagic)
	buf.WriteByte(1) // major version
	buf.WriteByte(0) // minor version
	var hlen [2]byte
	binary.LittleEndian.PutUint16(hlen[:], uint16(len(header)))
	buf.Write(hlen[:])
	buf.WriteString(header)
	buf.Write(a.data)
	return buf.Bytes()
}

// decodeNPY parses an npy byte payload into an Array.
func decodeNPY(data []byte) (*Array, error) {
	if len(data) < len(npyMagic)+4 || !bytes.Equal(data[:len(npyMagic)], npyMagic) {
		return nil, fmt.Errorf("ndarray: not an npy payload")
	}
	major := data[len(npyMagic)]
	if major != 1 {
		return nil, fmt.Errorf("ndarray: unsupported npy version %d", major)
	}
	hlen := int(binary.LittleEndian.Uint16(data[len(npyMagic)+2:]))
	headerStart := len(npyMagic) + 4
	if len(data) < headerStart+hlen {
		return nil, fmt.Errorf("ndarray: truncated npy header")
	}
	header := string(data[headerStart : headerStart+hlen])

	descr, err := headerField(header, "descr")
	if err != nil {
		return nil, err
	}
	dtype, ok := dtypeFromDescr(descr)
	if !ok {
		return nil, fmt.Errorf("ndarray: unsupported npy dtype %q", descr)
	}

	order, err := headerField(header, "fortran_order")
	if err != nil {
		return nil, err
	}
	if order != "False" {
		return nil, fmt.Errorf("ndarray: fortran-order arrays are not supported")
	}

	shapeStr, err := headerField(header, "shape")
	if err != nil {
		return nil, err
	}
	shape, err := parseShape(shapeStr)
	if err != nil {
		return nil, err
	}

	return New(dtype, shape, data[headerStart+hlen:])
}

// headerField extracts the raw value of one key from the npy header
// dict. Values are either quoted strings, True/False, or tuples; the
// returned string has surrounding quotes removed.
func headerField(header, key string) (string, error) {
	marker := "'" + key + "':"
	idx := strings.Index(header, marker)
	if idx < 0 {
		return "", fmt.Errorf("ndarray: npy header missing %q", key)
	}
	rest := strings.TrimLeft(header[idx+len(marker):], " ")
	if rest == "" {
		return "", fmt.Errorf("ndarray: npy header missing value for %q", key)
	}
	switch rest[0] {
	case '\'':
		end := strings.IndexByte(rest[1:], '\'')
		if end < 0 {
			return "", fmt.Errorf("ndarray: unterminated string in npy header")
		}
		return rest[1 : 1+end], nil
	case '(':
		end := strings.IndexByte(rest, ')')
		if end < 0 {
			return "", fmt.Errorf("ndarray: unterminated tuple in npy header")
		}
		return rest[:end+1], nil
	default:
		end := strings.IndexAny(rest, ",}")
		if end < 0 {
			end = len(rest)
		}
		return strings.TrimSpace(rest[:end]), nil
	}
}

// dtypeFromDescr maps an npy descr string to a DType. Big-endian
// payloads are rejected.
func dtypeFromDescr(descr string) (DType, bool) {
	for d, s := range descrTable {
		if s == descr {
			return d, true
		}
		// Single-byte types are sometimes written with an explicit '<'.
		if len(s) == 3 && s[0] == '|' && descr == "<"+s[1:] {
			return d, true
		}
	}
	return 0, false
}

// parseShape parses a Python shape tuple like "(3,)" or "(2, 3)".
func parseShape(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return nil, fmt.Errorf("ndarray: malformed npy shape %q", s)
	}
	inner := strings.TrimSpace(s[1 : len(s)-1])
	inner = strings.TrimSuffix(inner, ",")
	if inner == "" {
		// 0-d scalar array.
		return []int{}, nil
	}
	parts := strings.Split(inner, ",")
	shape := make([]int, len(parts))
	for i, p := range parts {
		dim, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("ndarray: malformed npy shape %q: %w", s, err)
		}
		shape[i] = dim
	}
	return shape, nil
}
