package http

import (
	"context"

	"github.com/Ceapa-git/anidle/core/document"
)

// Method is the request method resolved through a fixed lookup.
type Method uint8

const (
	MethodUnknown Method = iota
	MethodGet
	MethodPost
	MethodPut
	MethodDelete
)

var methods = map[string]Method{
	"GET":    MethodGet,
	"POST":   MethodPost,
	"PUT":    MethodPut,
	"DELETE": MethodDelete,
}

// ParseMethod resolves a method token. Unrecognized tokens map to
// MethodUnknown instead of failing.
func ParseMethod(s string) Method {
	if m, ok := methods[s]; ok {
		return m
	}
	return MethodUnknown
}

func (m Method) String() string {
	switch m {
	case MethodGet:
		return "GET"
	case MethodPost:
		return "POST"
	case MethodPut:
		return "PUT"
	case MethodDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// Request is a parsed request. It is created per connection and discarded
// once the response is written.
type Request struct {
	Method     Method
	MethodText string
	Path       string
	Proto      string

	Query   map[string]string
	Headers map[string]string
	Body    document.Document

	// Source is the peer address the request arrived from.
	Source string

	ctx context.Context
}

// Header gets a request header
func (r *Request) Header(key string) (string, bool) {
	v, ok := r.Headers[key]
	return v, ok
}

// QueryValue gets a query parameter
func (r *Request) QueryValue(key string) (string, bool) {
	v, ok := r.Query[key]
	return v, ok
}

// Context returns the request's context, never nil.
func (r *Request) Context() context.Context {
	if r.ctx != nil {
		return r.ctx
	}
	return context.Background()
}

// WithContext returns a shallow copy of r carrying ctx.
func (r *Request) WithContext(ctx context.Context) *Request {
	r2 := *r
	r2.ctx = ctx
	return &r2
}

// BodyObject returns the body when it is an object.
func (r *Request) BodyObject() (document.Object, bool) {
	obj, ok := r.Body.(document.Object)
	return obj, ok
}
