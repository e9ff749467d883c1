// Package middleware composes wrappers around request handlers.
package middleware

import (
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"

	"github.com/Ceapa-git/anidle/core/http"
)

// Middleware wraps a handler.
type Middleware func(http.HandlerFunc) http.HandlerFunc

// Pipeline is an ordered list of middlewares. The first one added is the
// outermost.
type Pipeline struct {
	middlewares []Middleware
}

// NewPipeline creates a pipeline from mws.
func NewPipeline(mws ...Middleware) *Pipeline {
	p := &Pipeline{middlewares: make([]Middleware, 0, len(mws))}
	for _, mw := range mws {
		p.Use(mw)
	}
	return p
}

// Use appends a middleware. Nil middlewares are ignored.
func (p *Pipeline) Use(mw Middleware) *Pipeline {
	if mw != nil {
		p.middlewares = append(p.middlewares, mw)
	}
	return p
}

// Len returns the number of middlewares
func (p *Pipeline) Len() int {
	if p == nil {
		return 0
	}
	return len(p.middlewares)
}

// Then wraps h with every middleware. A nil handler stays nil.
func (p *Pipeline) Then(h http.HandlerFunc) http.HandlerFunc {
	if h == nil || p == nil {
		return h
	}
	for i := len(p.middlewares) - 1; i >= 0; i-- {
		h = p.middlewares[i](h)
	}
	return h
}

// Recovery turns a handler panic into a 500 response and logs the stack
// through the request's logger.
func Recovery() Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(req *http.Request) (resp http.Response) {
			defer func() {
				if r := recover(); r != nil {
					zerolog.Ctx(req.Context()).Error().
						Interface("panic", r).
						Bytes("stack", debug.Stack()).
						Str("path", req.Path).
						Msg("handler panicked")
					resp = http.Text(http.StatusInternalServerError, "internal server error")
				}
			}()
			return next(req)
		}
	}
}

// SlowRequests warns about handlers that take longer than threshold.
func SlowRequests(threshold time.Duration) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(req *http.Request) http.Response {
			start := time.Now()
			resp := next(req)
			if elapsed := time.Since(start); elapsed > threshold {
				zerolog.Ctx(req.Context()).Warn().
					Str("method", req.MethodText).
					Str("path", req.Path).
					Dur("duration", elapsed).
					Msg("slow handler")
			}
			return resp
		}
	}
}
