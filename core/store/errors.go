package store

import (
	"errors"
	"fmt"
)

// --- Error Definitions ---

var (
	ErrNilKey      = errors.New("key must not be nil")
	ErrReadOnlyKey = errors.New("derived key is read-only")
	ErrNotDerived  = errors.New("key has no compute function")
)

// ComputeError reports a derived key whose compute function failed while the
// store was evaluating it.
type ComputeError struct {
	Key string
	Err error
}

func (e *ComputeError) Error() string {
	return fmt.Sprintf("compute derived key %q: %v", e.Key, e.Err)
}

func (e *ComputeError) Unwrap() error { return e.Err }
