package transaction

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// --- Error Definitions ---

var (
	ErrInvalidState       = errors.New("transaction is in an invalid state for this operation")
	ErrDerivedNotWritable = errors.New("derived keys cannot be staged")
)

// Operation names used in InvalidStateError messages.
const (
	OpModify   = "modify"
	OpCommit   = "commit"
	OpRollback = "rollback"
)

// InvalidStateError is returned when Set, Commit or Rollback is called on a
// transaction that is no longer pending.
type InvalidStateError struct {
	Op     string
	Status Status
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s a transaction that is %s", e.Op, e.Status)
}

func (e *InvalidStateError) Is(target error) bool { return target == ErrInvalidState }

// ApplyError is returned by Commit when the store rejects a staged write.
// By the time it is returned the transaction has been rolled back; any writes
// that could not be undone are listed in UndoFailures.
type ApplyError struct {
	Key          string
	Err          error
	UndoFailures []*UndoError
}

func (e *ApplyError) Error() string {
	msg := fmt.Sprintf("apply %q: %v", e.Key, e.Err)
	if n := len(e.UndoFailures); n > 0 {
		msg += fmt.Sprintf(" (%d write(s) could not be undone: %v)", n, e.Undo())
	}
	return msg
}

func (e *ApplyError) Unwrap() error { return e.Err }

// Undo combines the undo failures into a single error, or nil.
func (e *ApplyError) Undo() error {
	var combined error
	for _, u := range e.UndoFailures {
		combined = multierr.Append(combined, u)
	}
	return combined
}

// UndoError reports a write that failed while restoring a key to its
// pre-transaction value.
type UndoError struct {
	Key string
	Err error
}

func (e *UndoError) Error() string {
	return fmt.Sprintf("undo %q: %v", e.Key, e.Err)
}

func (e *UndoError) Unwrap() error { return e.Err }

// DerivedReadError is returned by Get when a derived key's compute function
// fails against the transaction's overlay view.
type DerivedReadError struct {
	Key string
	Err error
}

func (e *DerivedReadError) Error() string {
	return fmt.Sprintf("read derived key %q: %v", e.Key, e.Err)
}

func (e *DerivedReadError) Unwrap() error { return e.Err }
