package core

import "time"

// Accepted port range for the listener.
const (
	MinPort = 1000
	MaxPort = 9999
)

const (
	// DefaultMaxRequestSize is the read ceiling for one request.
	DefaultMaxRequestSize = 64 << 10

	// readChunk is the size of each read. A shorter read ends the request.
	readChunk = 1024

	listenBacklog = 64

	// acceptBackoff bounds how long the accept loop parks when no
	// connection is pending.
	acceptBackoff = 100 * time.Millisecond
)
