package document

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// maxDepth bounds object/array nesting so hostile input cannot exhaust the stack.
const maxDepth = 512

// ErrSyntax matches every SyntaxError.
var ErrSyntax = errors.New("document: syntax error")

// SyntaxError describes malformed input and the byte offset where it was found.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("document: %s at offset %d", e.Msg, e.Offset)
}

// Is implements errors.Is support
func (e *SyntaxError) Is(target error) bool {
	return target == ErrSyntax
}

var literals = [...][]byte{[]byte("true"), []byte("false"), []byte("null")}

type parser struct {
	data []byte
	pos  int
}

// Parse decodes a single JSON value. Parsing is all-or-nothing: on error no
// partial document is returned.
func Parse(data []byte) (Document, error) {
	p := &parser{data: data}
	doc, err := p.parseValue(0)
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.data) {
		return nil, p.errorf("unexpected data after value")
	}
	return doc, nil
}

// ParseString is Parse for string input.
func ParseString(s string) (Document, error) {
	return Parse([]byte(s))
}

// IsBlank reports whether data holds nothing but whitespace.
func IsBlank(data []byte) bool {
	return len(bytes.TrimLeft(data, " \t\r\n\v\f")) == 0
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Offset: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) skipSpace() {
	for p.pos < len(p.data) {
		switch p.data[p.pos] {
		case ' ', '\t', '\r', '\n', '\v', '\f':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) consume(c byte) bool {
	if p.pos < len(p.data) && p.data[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *parser) parseValue(depth int) (Document, error) {
	p.skipSpace()
	if p.pos >= len(p.data) {
		return nil, p.errorf("unexpected end of input")
	}

	c := p.data[p.pos]
	switch {
	case c == '{':
		p.pos++
		return p.parseObject(depth + 1)
	case c == '[':
		p.pos++
		return p.parseArray(depth + 1)
	case c == '"':
		p.pos++
		s, err := p.parseString()
		if err != nil {
			return nil, err
		}
		return Scalar(s), nil
	case isDigit(c) || c == '-':
		return p.parseNumber(), nil
	}

	for _, lit := range literals {
		if bytes.HasPrefix(p.data[p.pos:], lit) {
			p.pos += len(lit)
			return Scalar(lit), nil
		}
	}
	return nil, p.errorf("unexpected character %q", c)
}

func (p *parser) parseObject(depth int) (Document, error) {
	if depth > maxDepth {
		return nil, p.errorf("nesting deeper than %d", maxDepth)
	}

	obj := Object{}
	p.skipSpace()
	if p.consume('}') {
		return obj, nil
	}

	for {
		p.skipSpace()
		if !p.consume('"') {
			return nil, p.errorf("expected '\"' to open object key")
		}
		key, err := p.parseString()
		if err != nil {
			return nil, err
		}

		p.skipSpace()
		if !p.consume(':') {
			return nil, p.errorf("expected ':' after object key")
		}

		val, err := p.parseValue(depth)
		if err != nil {
			return nil, err
		}
		obj[key] = val

		p.skipSpace()
		switch {
		case p.consume('}'):
			return reinterpretObjectID(obj), nil
		case p.consume(','):
		default:
			return nil, p.errorf("expected ',' or '}' in object")
		}
	}
}

// reinterpretObjectID turns {"$oid":"<24 hex>"} into an ObjectID.
func reinterpretObjectID(obj Object) Document {
	if len(obj) != 1 {
		return obj
	}
	hex, ok := obj.Scalar("$oid")
	if !ok || !isHexID(hex) {
		return obj
	}
	id, err := ObjectIDFromHex(string(hex))
	if err != nil {
		return obj
	}
	return id
}

func (p *parser) parseArray(depth int) (Document, error) {
	if depth > maxDepth {
		return nil, p.errorf("nesting deeper than %d", maxDepth)
	}

	arr := Array{}
	p.skipSpace()
	if p.consume(']') {
		return arr, nil
	}

	for {
		val, err := p.parseValue(depth)
		if err != nil {
			return nil, err
		}
		arr = append(arr, val)

		p.skipSpace()
		switch {
		case p.consume(']'):
			return arr, nil
		case p.consume(','):
		default:
			return nil, p.errorf("expected ',' or ']' in array")
		}
	}
}

// parseString reads up to and including the closing quote; the opening
// quote has already been consumed.
func (p *parser) parseString() (string, error) {
	start := p.pos
	if end := bytes.IndexByte(p.data[p.pos:], '"'); end >= 0 && bytes.IndexByte(p.data[p.pos:p.pos+end], '\\') < 0 {
		p.pos += end + 1
		return string(p.data[start : p.pos-1]), nil
	}

	var sb strings.Builder
	for {
		if p.pos >= len(p.data) {
			return "", &SyntaxError{Offset: start, Msg: "unterminated string"}
		}
		c := p.data[p.pos]
		p.pos++

		switch c {
		case '"':
			return sb.String(), nil
		case '\\':
			if p.pos >= len(p.data) {
				return "", &SyntaxError{Offset: start, Msg: "unterminated escape"}
			}
			e := p.data[p.pos]
			p.pos++
			switch e {
			case '"', '\\', '/':
				sb.WriteByte(e)
			case 'b':
				sb.WriteByte('\b')
			case 'f':
				sb.WriteByte('\f')
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case 'u':
				if r, ok := p.unicodeEscape(); ok {
					sb.WriteRune(r)
				} else {
					sb.WriteByte('u')
				}
			default:
				// unknown escapes are kept as the escaped character
				sb.WriteByte(e)
			}
		default:
			sb.WriteByte(c)
		}
	}
}

// unicodeEscape decodes the XXXX of a \uXXXX escape, joining surrogate
// pairs. Nothing is consumed when the digits are malformed.
func (p *parser) unicodeEscape() (rune, bool) {
	r, ok := hex4(p.data[p.pos:])
	if !ok {
		return 0, false
	}
	p.pos += 4

	if utf16.IsSurrogate(r) {
		rest := p.data[p.pos:]
		if len(rest) >= 6 && rest[0] == '\\' && rest[1] == 'u' {
			if r2, ok := hex4(rest[2:]); ok {
				if dec := utf16.DecodeRune(r, r2); dec != utf8.RuneError {
					p.pos += 6
					return dec, true
				}
			}
		}
		return utf8.RuneError, true
	}
	return r, true
}

func hex4(b []byte) (rune, bool) {
	if len(b) < 4 {
		return 0, false
	}
	var r rune
	for _, c := range b[:4] {
		var v byte
		switch {
		case '0' <= c && c <= '9':
			v = c - '0'
		case 'a' <= c && c <= 'f':
			v = c - 'a' + 10
		case 'A' <= c && c <= 'F':
			v = c - 'A' + 10
		default:
			return 0, false
		}
		r = r<<4 | rune(v)
	}
	return r, true
}

// parseNumber consumes greedily while the next byte can belong to a number.
// Shapes like "1.2.3" or "--1" are accepted as scalar text.
func (p *parser) parseNumber() Document {
	start := p.pos
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		if !isDigit(c) && c != '-' && c != '.' && c != 'e' && c != 'E' && c != '+' {
			break
		}
		p.pos++
	}
	return Scalar(p.data[start:p.pos])
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}
