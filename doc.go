/*
Package anidle is the backend of the anidle guessing game: a small HTTP/1.1
server built directly on sockets, serving account, token and daily puzzle
endpoints backed by MongoDB.

Each connection carries exactly one request. The engine reads it, parses
the request line, headers and JSON body into a document, routes it by path
segment and writes a response before closing the connection.

Quick Start

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	routes := router.MustNew(router.Route{
		Method:  http.MethodGet,
		Handler: func(*http.Request) http.Response { return http.Text(http.StatusOK, "running") },
	})
	err := core.CreateServer(ctx, core.Options{Port: 8080, Routes: routes})

Modules

  - cmd/anidle: command line entry point
  - app: wiring of store, tokens, handlers and engine
  - api: business handlers and their route tree
  - auth: token issuing and verification, password digests
  - store: MongoDB and in-memory document stores
  - config: layered configuration
  - logging: logger construction
  - core: listener, accept loop and connection handling
  - core/http: wire codec, requests and responses
  - core/document: document model and JSON codec
  - core/router: path-segment route tree
  - core/middleware: handler wrappers
  - core/pools: worker and buffer pools
  - core/poller: epoll/kqueue readiness
  - core/observability: per-route request statistics
*/
package anidle
