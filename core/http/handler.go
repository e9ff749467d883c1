package http

// HandlerFunc maps a request to a response. The engine only needs the
// returned Response to be serializable.
type HandlerFunc func(*Request) Response
