package core

import (
	"errors"
	"fmt"
)

var (
	// ErrSetup matches every SetupError.
	ErrSetup = errors.New("server setup failed")

	ErrInvalidPort    = errors.New("port out of range")
	ErrAlreadyStarted = errors.New("server already started")
	ErrServerClosed   = errors.New("server closed")
)

// SetupError is returned by Start when the listener cannot be created.
// Setup errors are fatal and never retried.
type SetupError struct {
	Op  string
	Err error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup %s: %v", e.Op, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *SetupError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *SetupError) Is(target error) bool {
	return target == ErrSetup
}
