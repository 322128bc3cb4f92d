package ndarray

import (
	"fmt"
	"strconv"
	"strings"
)

// Legacy literal reconstruction. Old configuration files can contain
// array values that were stringified as "array([1, 2, 3])", optionally
// with a ", dtype=int16" suffix. ParseLiteral recognizes exactly that
// form with a fixed vocabulary of type names; it is not an expression
// evaluator and rejects anything else.

// LiteralPrefix is the textual marker of a stringified array.
const LiteralPrefix = "array("

// HasLiteralPrefix reports whether s looks like a stringified array and
// is worth handing to ParseLiteral.
func HasLiteralPrefix(s string) bool {
	return strings.HasPrefix(s, LiteralPrefix)
}

// ParseLiteral parses a stringified array back into an Array.
//
// The accepted grammar is:
//
//	array( list [ , dtype= NAME ] )
//	list  = "[" (number | list) ("," (number | list))* "]" | "[" "]"
//
// where NAME is one of the fixed element type names (int8 ... float64),
// bare or quoted. Nested lists must be rectangular. Without an explicit
// dtype the element type is int64 if every number is an integer literal,
// float64 otherwise.
//
// Any deviation from this grammar returns an error; the caller is
// expected to keep the original string in that case.
func ParseLiteral(s string) (*Array, error) {
	p := &literalParser{input: s}
	a, err := p.parse()
	if err != nil {
		return nil, fmt.Errorf("ndarray: invalid array literal: %w", err)
	}
	return a, nil
}

type literalParser struct {
	input string
	pos   int
}

func (p *literalParser) parse() (*Array, error) {
	if !strings.HasPrefix(p.input, LiteralPrefix) {
		return nil, fmt.Errorf("missing %q prefix", LiteralPrefix)
	}
	p.pos = len(LiteralPrefix)
	p.skipSpace()

	values, shape, sawFloat, err := p.parseList(0)
	if err != nil {
		return nil, err
	}

	dtype := Int64
	if sawFloat {
		dtype = Float64
	}
	explicit, ok, err := p.parseDTypeSuffix()
	if err != nil {
		return nil, err
	}
	if ok {
		dtype = explicit
	}

	p.skipSpace()
	if p.pos >= len(p.input) || p.input[p.pos] != ')' {
		return nil, fmt.Errorf("expected ')' at offset %d", p.pos)
	}
	p.pos++
	p.skipSpace()
	if p.pos != len(p.input) {
		return nil, fmt.Errorf("trailing input at offset %d", p.pos)
	}

	a := Zeros(dtype, shape...)
	for i, v := range values {
		if dtype.IsFloat() {
			a.SetFloat64(i, v)
		} else {
			a.SetInt64(i, int64(v))
		}
	}
	return a, nil
}

// parseList parses a possibly nested bracketed list, returning flat
// values in row-major order and the shape of this level. depth guards
// against pathological nesting.
func (p *literalParser) parseList(depth int) (values []float64, shape []int, sawFloat bool, err error) {
	if depth > 32 {
		return nil, nil, false, fmt.Errorf("list nesting too deep")
	}
	if p.pos >= len(p.input) || p.input[p.pos] != '[' {
		return nil, nil, false, fmt.Errorf("expected '[' at offset %d", p.pos)
	}
	p.pos++
	p.skipSpace()

	// Empty list.
	if p.pos < len(p.input) && p.input[p.pos] == ']' {
		p.pos++
		return nil, []int{0}, false, nil
	}

	var childShape []int
	count := 0
	for {
		p.skipSpace()
		if p.pos >= len(p.input) {
			return nil, nil, false, fmt.Errorf("unterminated list")
		}
		if p.input[p.pos] == '[' {
			childValues, cs, cf, cerr := p.parseList(depth + 1)
			if cerr != nil {
				return nil, nil, false, cerr
			}
			if childShape == nil {
				childShape = cs
			} else if !shapeEqual(childShape, cs) {
				return nil, nil, false, fmt.Errorf("ragged nested list")
			}
			values = append(values, childValues...)
			sawFloat = sawFloat || cf
		} else {
			if childShape != nil && len(childShape) > 0 {
				return nil, nil, false, fmt.Errorf("mixed scalars and lists")
			}
			childShape = []int{}
			v, isFloat, verr := p.parseNumber()
			if verr != nil {
				return nil, nil, false, verr
			}
			values = append(values, v)
			sawFloat = sawFloat || isFloat
		}
		count++

		p.skipSpace()
		if p.pos >= len(p.input) {
			return nil, nil, false, fmt.Errorf("unterminated list")
		}
		switch p.input[p.pos] {
		case ',':
			p.pos++
		case ']':
			p.pos++
			return values, append([]int{count}, childShape...), sawFloat, nil
		default:
			return nil, nil, false, fmt.Errorf("unexpected %q at offset %d", p.input[p.pos], p.pos)
		}
	}
}

// parseNumber parses one numeric token. isFloat reports whether the
// token had a fractional part or an exponent.
func (p *literalParser) parseNumber() (v float64, isFloat bool, err error) {
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.' || c == 'e' || c == 'E' {
			p.pos++
			continue
		}
		break
	}
	token := p.input[start:p.pos]
	if token == "" {
		return 0, false, fmt.Errorf("expected number at offset %d", start)
	}
	v, err = strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, false, fmt.Errorf("malformed number %q", token)
	}
	return v, strings.ContainsAny(token, ".eE"), nil
}

// parseDTypeSuffix parses an optional ", dtype=NAME" clause. The name
// must come from the fixed vocabulary; it may be bare or quoted.
func (p *literalParser) parseDTypeSuffix() (DType, bool, error) {
	p.skipSpace()
	if p.pos >= len(p.input) || p.input[p.pos] != ',' {
		return 0, false, nil
	}
	p.pos++
	p.skipSpace()
	if !strings.HasPrefix(p.input[p.pos:], "dtype") {
		return 0, false, fmt.Errorf("unexpected argument at offset %d", p.pos)
	}
	p.pos += len("dtype")
	p.skipSpace()
	if p.pos >= len(p.input) || p.input[p.pos] != '=' {
		return 0, false, fmt.Errorf("expected '=' after dtype")
	}
	p.pos++
	p.skipSpace()

	quote := byte(0)
	if p.pos < len(p.input) && (p.input[p.pos] == '\'' || p.input[p.pos] == '"') {
		quote = p.input[p.pos]
		p.pos++
	}
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c >= 'a' && c <= 'z' || c >= '0' && c <= '9' {
			p.pos++
			continue
		}
		break
	}
	name := p.input[start:p.pos]
	if quote != 0 {
		if p.pos >= len(p.input) || p.input[p.pos] != quote {
			return 0, false, fmt.Errorf("unterminated dtype name")
		}
		p.pos++
	}
	dtype, ok := DTypeFromName(name)
	if !ok {
		return 0, false, fmt.Errorf("unknown dtype %q", name)
	}
	return dtype, true, nil
}

func (p *literalParser) skipSpace() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t' || p.input[p.pos] == '\n') {
		p.pos++
	}
}

func shapeEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
