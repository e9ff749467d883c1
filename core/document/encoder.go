package document

import (
	"fmt"
)

const hexDigits = "0123456789abcdef"

// Encode serializes doc as JSON.
func Encode(doc Document) []byte {
	return AppendEncode(nil, doc)
}

// String returns the JSON text of doc.
func String(doc Document) string {
	return string(Encode(doc))
}

// AppendEncode appends the JSON text of doc to dst.
func AppendEncode(dst []byte, doc Document) []byte {
	switch v := doc.(type) {
	case nil:
		return append(dst, "null"...)
	case Scalar:
		if IsBare(string(v)) {
			return append(dst, v...)
		}
		return appendQuoted(dst, string(v))
	case Object:
		dst = append(dst, '{')
		for i, k := range v.Keys() {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = appendQuoted(dst, k)
			dst = append(dst, ':')
			dst = AppendEncode(dst, v[k])
		}
		return append(dst, '}')
	case Array:
		dst = append(dst, '[')
		for i, el := range v {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = AppendEncode(dst, el)
		}
		return append(dst, ']')
	case ObjectID:
		dst = append(dst, `{"$oid":"`...)
		dst = append(dst, v.Hex()...)
		return append(dst, `"}`...)
	default:
		panic(fmt.Sprintf("document: unsupported variant %T", doc))
	}
}

// IsBare reports whether a scalar is written without quotes: the literals
// true, false and null, or a number of the form -?D+(.D*)?([eE][+-]?D+)?.
func IsBare(s string) bool {
	switch s {
	case "true", "false", "null":
		return true
	}
	return isNumber(s)
}

func isNumber(s string) bool {
	i := 0
	if i < len(s) && s[i] == '-' {
		i++
	}

	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if digits == 0 {
		return false
	}

	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
		}
	}

	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			i++
		}
		exp := 0
		for i < len(s) && isDigit(s[i]) {
			i++
			exp++
		}
		if exp == 0 {
			return false
		}
	}

	return i == len(s)
}

func appendQuoted(dst []byte, s string) []byte {
	dst = append(dst, '"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			dst = append(dst, '\\', '"')
		case '\\':
			dst = append(dst, '\\', '\\')
		case '\b':
			dst = append(dst, '\\', 'b')
		case '\f':
			dst = append(dst, '\\', 'f')
		case '\n':
			dst = append(dst, '\\', 'n')
		case '\r':
			dst = append(dst, '\\', 'r')
		case '\t':
			dst = append(dst, '\\', 't')
		default:
			if c < 0x20 {
				dst = append(dst, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xf])
				continue
			}
			dst = append(dst, c)
		}
	}
	return append(dst, '"')
}
