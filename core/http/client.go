package http

import (
	"context"
	"fmt"
	"io"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Ceapa-git/anidle/core/document"
)

// CreateRequest serializes an outbound request. Query pairs are URL-encoded
// in key order and the body is encoded only when it is not an empty object.
func CreateRequest(host string, req *Request) []byte {
	method := req.MethodText
	if method == "" {
		method = req.Method.String()
	}
	path := req.Path
	if path == "" {
		path = "/"
	}

	buf := make([]byte, 0, 256)
	buf = append(buf, method...)
	buf = append(buf, ' ')
	buf = append(buf, path...)
	if len(req.Query) > 0 {
		keys := make([]string, 0, len(req.Query))
		for k := range req.Query {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for i, k := range keys {
			if i == 0 {
				buf = append(buf, '?')
			} else {
				buf = append(buf, '&')
			}
			buf = append(buf, URLEncode(k)...)
			buf = append(buf, '=')
			buf = append(buf, URLEncode(req.Query[k])...)
		}
	}
	buf = append(buf, " HTTP/1.1\r\nHost: "...)
	buf = append(buf, host...)
	buf = append(buf, "\r\nConnection: close\r\n"...)

	keys := make([]string, 0, len(req.Headers))
	for k := range req.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.EqualFold(k, "Host") || strings.EqualFold(k, "Connection") {
			continue
		}
		buf = append(buf, k...)
		buf = append(buf, ": "...)
		buf = append(buf, req.Headers[k]...)
		buf = append(buf, "\r\n"...)
	}

	var body []byte
	if obj, ok := req.Body.(document.Object); req.Body != nil && (!ok || len(obj) > 0) {
		body = document.Encode(req.Body)
	}
	if len(body) > 0 {
		buf = append(buf, "Content-Type: application/json\r\nContent-Length: "...)
		buf = strconv.AppendInt(buf, int64(len(body)), 10)
		buf = append(buf, "\r\n"...)
	}
	buf = append(buf, "\r\n"...)
	return append(buf, body...)
}

// ClientResponse is a response read back from a peer.
type ClientResponse struct {
	Status  Status
	Headers map[string]string
	Body    document.Document
}

// ParseResponse parses a raw response. A text/plain body becomes a Scalar
// holding the raw text; anything else is parsed as a document.
func ParseResponse(data []byte) (*ClientResponse, error) {
	line, rest := nextLine(data)
	fields := strings.Fields(string(line))
	if len(fields) < 2 || !strings.HasPrefix(fields[0], "HTTP/") {
		return nil, &ParseError{Part: "status line", Msg: "want VERSION CODE [REASON]"}
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, &ParseError{Part: "status line", Msg: "bad status code", Err: err}
	}

	holder := &Request{Headers: make(map[string]string)}
	rest = parseHeaders(holder, rest)

	resp := &ClientResponse{Status: Status(code), Headers: holder.Headers}
	if ct := holder.Headers["Content-Type"]; strings.HasPrefix(ct, "text/plain") {
		if n, err := strconv.Atoi(holder.Headers["Content-Length"]); err == nil && n >= 0 && n < len(rest) {
			rest = rest[:n]
		}
		resp.Body = document.Scalar(rest)
		return resp, nil
	}

	if document.IsBlank(rest) {
		resp.Body = document.Object{}
		return resp, nil
	}
	body, err := document.Parse(rest)
	if err != nil {
		return nil, &ParseError{Part: "body", Msg: "invalid document", Err: err}
	}
	resp.Body = body
	return resp, nil
}

// Client defaults.
const (
	DefaultClientTimeout = 5 * time.Second
	// DefaultMaxResponseSize caps the bytes read back from a peer.
	DefaultMaxResponseSize = 1 << 20
)

// Client sends one request per connection to a fixed host and reads the
// response until the peer closes.
type Client struct {
	host    string
	addr    string
	timeout time.Duration
	maxSize int64
	dialer  net.Dialer
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientTimeout bounds dialing plus the whole exchange.
func WithClientTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxResponseSize caps the response bytes read.
func WithMaxResponseSize(n int64) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxSize = n
		}
	}
}

// NewClient creates a client for host. Port 80 is assumed when host has
// none.
func NewClient(host string, opts ...ClientOption) *Client {
	addr := host
	if _, _, err := net.SplitHostPort(host); err != nil {
		addr = net.JoinHostPort(host, "80")
	}
	c := &Client{
		host:    host,
		addr:    addr,
		timeout: DefaultClientTimeout,
		maxSize: DefaultMaxResponseSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Host returns the host the client was created for.
func (c *Client) Host() string {
	return c.host
}

// Do dials the host, writes req with CreateRequest and parses the reply
// with ParseResponse.
func (c *Client) Do(ctx context.Context, req *Request) (*ClientResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return nil, fmt.Errorf("set deadline: %w", err)
		}
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := conn.Write(CreateRequest(c.host, req)); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	raw, err := io.ReadAll(io.LimitReader(conn, c.maxSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return ParseResponse(raw)
}
