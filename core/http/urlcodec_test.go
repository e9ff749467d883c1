package http

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestURLDecode(t *testing.T) {
	tests := map[string]string{
		"%2F":       "/",
		"a+b":       "a b",
		"%41%62":    "Ab",
		"%4a%4A":    "JJ",
		"100%":      "100%",
		"%zz":       "%zz",
		"%4":        "%4",
		"plain":     "plain",
		"%25%2B+%3": "%+ %3",
	}

	for in, want := range tests {
		assert.Equal(t, want, URLDecode(in), in)
	}
}

func TestURLEncode(t *testing.T) {
	assert.Equal(t, "a-b_c.d~e", URLEncode("a-b_c.d~e"))
	assert.Equal(t, "hello+world", URLEncode("hello world"))
	assert.Equal(t, "%2F%3F%26%3D%2B%25", URLEncode("/?&=+%"))
	assert.Equal(t, "%C3%A9", URLEncode("é"))
}

func TestURLRoundTripPrintableASCII(t *testing.T) {
	var all []byte
	for c := byte(0x20); c < 0x7f; c++ {
		all = append(all, c)
		s := string([]byte{c, 'x', c})
		assert.Equal(t, s, URLDecode(URLEncode(s)), "%q", s)
	}
	assert.Equal(t, string(all), URLDecode(URLEncode(string(all))))
}
