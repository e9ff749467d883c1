// Package poller waits for readiness on a small set of descriptors. The
// engine uses it to park the accept loop until the listener is readable or
// a short timeout elapses.
package poller

// Poller is the readiness multiplexing interface
type Poller interface {
	Add(fd int) error
	Remove(fd int) error
	// Wait blocks for at most timeout milliseconds and returns the ready
	// descriptors. An interrupted wait returns no descriptors and no error.
	Wait(timeout int) ([]int, error)
	Close() error
}
