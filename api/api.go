// Package api holds the account, token and daily handlers and the route
// tree that binds them.
package api

import (
	"time"

	"github.com/Ceapa-git/anidle/auth"
	"github.com/Ceapa-git/anidle/core/http"
	"github.com/Ceapa-git/anidle/core/router"
	"github.com/Ceapa-git/anidle/store"
)

// Collections used by the handlers.
const (
	CollectionUsers   = "users"
	CollectionDailies = "dailies"
	CollectionScores  = "scores"
	CollectionJWT     = "jwt"
)

// Collections lists every collection that must exist before serving.
var Collections = []string{CollectionUsers, CollectionDailies, CollectionScores, CollectionJWT}

// Response texts.
const (
	textRunning       = "running"
	textInvalid       = "request not valid"
	textMismatch      = "username and password do not match"
	textTaken         = "username already registered"
	textJWTValid      = "jwt valid"
	textJWTInvalid    = "jwt invalid"
	textNoDaily       = "daily not available"
	textInternalError = "internal server error"
)

// Server carries what the handlers share.
type Server struct {
	store   store.Store
	tokens  *auth.TokenService
	dailies DailySource
	now     func() time.Time
}

// Option adjusts a Server.
type Option func(*Server)

// WithClock replaces time.Now when deciding what today is.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// WithDailySource consults src for days missing from the store.
func WithDailySource(src DailySource) Option {
	return func(s *Server) {
		s.dailies = src
	}
}

// New creates the handler set.
func New(st store.Store, tokens *auth.TokenService, opts ...Option) *Server {
	s := &Server{store: st, tokens: tokens, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes builds the route tree:
//
//	GET  /          status
//	POST /login
//	POST /register
//	POST /validate
//	POST /refresh
//	GET  /daily
func (s *Server) Routes() (*router.Tree, error) {
	return router.New(router.Route{
		Method:  http.MethodGet,
		Handler: s.status,
		Children: []router.Route{
			{Segment: "login", Method: http.MethodPost, Handler: s.login},
			{Segment: "register", Method: http.MethodPost, Handler: s.register},
			{Segment: "validate", Method: http.MethodPost, Handler: s.validate},
			{Segment: "refresh", Method: http.MethodPost, Handler: s.refresh},
			{Segment: "daily", Method: http.MethodGet, Handler: s.daily},
		},
	})
}

func (s *Server) status(*http.Request) http.Response {
	return http.Text(http.StatusOK, textRunning)
}
