package http

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/Ceapa-git/anidle/core/document"
)

// ErrMalformedRequest matches every ParseError.
var ErrMalformedRequest = errors.New("malformed HTTP request")

// ParseError reports which part of the request could not be parsed.
type ParseError struct {
	Part string
	Msg  string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.Part, e.Msg, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", e.Part, e.Msg)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *ParseError) Is(target error) bool {
	return target == ErrMalformedRequest
}

type parseConfig struct {
	decodeLine bool
}

// ParseOption adjusts ParseRequest.
type ParseOption func(*parseConfig)

// WithLineDecoding percent-decodes the whole request line before the target
// is split into path and query. A decoded '?', '&' or '=' then moves the
// split points, and query pairs are decoded a second time. Only useful for
// bit-compatibility with older clients.
func WithLineDecoding() ParseOption {
	return func(c *parseConfig) {
		c.decodeLine = true
	}
}

// ParseRequest parses a raw request: request line, headers up to the first
// blank line, and a JSON body made of the remaining bytes.
func ParseRequest(data []byte, opts ...ParseOption) (*Request, error) {
	var cfg parseConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	line, rest := nextLine(data)
	if len(line) == 0 {
		return nil, &ParseError{Part: "request line", Msg: "empty request line"}
	}

	req := &Request{
		Query:   make(map[string]string),
		Headers: make(map[string]string),
	}
	if err := parseRequestLine(req, string(line), cfg.decodeLine); err != nil {
		return nil, err
	}

	rest = parseHeaders(req, rest)

	if document.IsBlank(rest) {
		req.Body = document.Object{}
		return req, nil
	}
	body, err := document.Parse(rest)
	if err != nil {
		return nil, &ParseError{Part: "body", Msg: "invalid document", Err: err}
	}
	req.Body = body

	return req, nil
}

// nextLine splits off the first line, dropping "\n" and a preceding "\r".
func nextLine(data []byte) (line, rest []byte) {
	end := bytes.IndexByte(data, '\n')
	if end == -1 {
		line, rest = data, nil
	} else {
		line, rest = data[:end], data[end+1:]
	}
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	return line, rest
}

func parseRequestLine(req *Request, line string, decodeLine bool) error {
	if decodeLine {
		line = URLDecode(line)
	}

	fields := strings.Fields(line)
	if len(fields) < 3 || (!decodeLine && len(fields) != 3) {
		return &ParseError{Part: "request line", Msg: fmt.Sprintf("want METHOD TARGET VERSION, got %d fields", len(fields))}
	}
	if !strings.HasPrefix(fields[2], "HTTP/") {
		return &ParseError{Part: "request line", Msg: fmt.Sprintf("bad protocol version %q", fields[2])}
	}

	req.MethodText = fields[0]
	req.Method = ParseMethod(fields[0])
	req.Proto = fields[2]

	target := fields[1]
	path, query, hasQuery := strings.Cut(target, "?")
	if decodeLine {
		req.Path = path
	} else {
		req.Path = URLDecode(path)
	}
	if hasQuery {
		parseQuery(req.Query, query)
	}
	return nil
}

// parseQuery decodes key=value pairs separated by '&'. A pair without '='
// is a key with an empty value.
func parseQuery(dst map[string]string, query string) {
	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		dst[URLDecode(k)] = URLDecode(v)
	}
}

// parseHeaders consumes header lines up to and including the first blank
// line and returns what follows. Lines without ':' are skipped and a
// repeated key overwrites the earlier value.
func parseHeaders(req *Request, data []byte) []byte {
	for len(data) > 0 {
		var line []byte
		line, data = nextLine(data)
		if len(line) == 0 {
			break
		}

		colon := bytes.IndexByte(line, ':')
		if colon < 0 {
			continue
		}
		key := string(bytes.TrimSpace(line[:colon]))
		value := string(bytes.TrimSpace(line[colon+1:]))
		req.Headers[key] = value
	}
	return data
}
