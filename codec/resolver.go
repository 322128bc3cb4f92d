// Package codec implements the YAML-based wire codec for configuration
// documents: scalar resolution, the extension tag registry, and the
// node-level decoder and encoder.
//
// The codec operates on gopkg.in/yaml.v3 node ASTs. Decoding turns a
// node tree into an insertion-ordered document.Document; encoding
// builds a fresh node tree from a document, so the emitted text never
// contains anchors or aliases.
package codec

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Resolver infers the type of a plain scalar from its textual form.
//
// The base YAML 1.1 grammar only recognizes a float when the literal
// carries a decimal point, so common scientific notation like "1e10"
// silently resolves to a string. The Resolver carries an explicit
// corrected pattern instead of patching any shared parser state: the
// grammar choice is visible at construction time and per-decoder.
type Resolver struct {
	scientificFloat *regexp.Regexp
}

// scientificFloatPattern matches a number in scientific notation:
// optional sign, integer part, optional fractional part, exponent
// marker, optional exponent sign, exponent digits. This includes the
// forms the base grammar misses (no decimal point, no sign).
const scientificFloatPattern = `^[-+]?[0-9]+(\.[0-9]*)?[eE][-+]?[0-9]+$`

// NewResolver creates a Resolver with the corrected numeric grammar.
func NewResolver() *Resolver {
	return &Resolver{
		scientificFloat: regexp.MustCompile(scientificFloatPattern),
	}
}

// ResolveString is applied to plain scalars that the base grammar
// resolved as strings. It returns the repaired value: a float64 when
// the text is scientific notation the base grammar failed to
// recognize, otherwise the string unchanged.
func (r *Resolver) ResolveString(value string) any {
	if r != nil && r.scientificFloat.MatchString(value) {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return value
}

// LooksNumeric reports whether a string would be mistaken for a number
// when emitted as a plain scalar under the corrected grammar. The
// encoder quotes such strings so they survive a round trip as strings.
func (r *Resolver) LooksNumeric(value string) bool {
	return r != nil && r.scientificFloat.MatchString(value)
}

// parseInt parses a YAML integer scalar. Decimal, hexadecimal (0x),
// and octal (0o) forms are accepted. Values above the int64 range come
// back as uint64.
func parseInt(value string) (any, error) {
	if i, err := strconv.ParseInt(value, 10, 64); err == nil {
		return i, nil
	}
	if i, err := strconv.ParseInt(value, 0, 64); err == nil {
		return i, nil
	}
	u, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// parseFloat parses a YAML float scalar, including the ".inf" and
// ".nan" forms.
func parseFloat(value string) (float64, error) {
	switch strings.ToLower(value) {
	case ".inf", "+.inf":
		return math.Inf(1), nil
	case "-.inf":
		return math.Inf(-1), nil
	case ".nan":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(value, 64)
}
