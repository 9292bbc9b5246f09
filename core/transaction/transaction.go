// Package transaction stages writes against a store.Store and applies them
// all-or-nothing.
//
// A Transaction is meant for exclusive use by one writer and is not safe for
// concurrent use. Outside readers of the store never observe staged writes
// until Commit applies them.
package transaction

import (
	"errors"
	"fmt"

	"github.com/sushant-115/txstage/core/store"
	"go.uber.org/zap"
)

// Status represents the lifecycle state of a transaction.
type Status int

const (
	StatusPending    Status = iota // Writes may be staged
	StatusCommitted                // Every staged write was applied to the store
	StatusRolledBack               // Staged writes were discarded or undone
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusCommitted:
		return "committed"
	case StatusRolledBack:
		return "rolled-back"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Operation is the last staged write for a key.
type Operation struct {
	Key      *store.Key
	NewValue any
	// PreviousValue is the store's value when the key was first staged. It is
	// what the key is restored to if a commit has to be undone.
	PreviousValue any
}

// Transaction is an in-memory staging area bound to one store.
type Transaction struct {
	id     string
	status Status

	order      []string // first-staging order
	operations map[string]*Operation
	staged     map[string]any

	store    store.Store
	opts     Options
	logger   *zap.Logger
	undoErrs []*UndoError
}

func (t *Transaction) ID() string     { return t.id }
func (t *Transaction) Status() Status { return t.status }
func (t *Transaction) Label() string  { return t.opts.Label }

// Len returns the number of distinct keys staged.
func (t *Transaction) Len() int { return len(t.order) }

// Set stages value for key. The store is not touched, except to capture the
// key's current value the first time it is staged.
func (t *Transaction) Set(key *store.Key, value any) error {
	if t.status != StatusPending {
		return &InvalidStateError{Op: OpModify, Status: t.status}
	}
	if key == nil {
		return store.ErrNilKey
	}
	if key.IsDerived() {
		return fmt.Errorf("%w: %s", ErrDerivedNotWritable, key.Name())
	}

	name := key.Name()
	if op, ok := t.operations[name]; ok {
		op.NewValue = value
	} else {
		prev, err := t.store.Get(key)
		if err != nil {
			return fmt.Errorf("capture previous value of %q: %w", name, err)
		}
		t.operations[name] = &Operation{Key: key, NewValue: value, PreviousValue: prev}
		t.order = append(t.order, name)
	}
	t.staged[name] = value
	return nil
}

// Get reads key as if the transaction were already committed. Staged values
// win; derived keys are recomputed over the staged view; everything else comes
// from the store. A failing derived computation is returned as a
// *DerivedReadError rather than falling back to the store's value.
//
// Get is valid in any status. After commit or rollback it reflects the log as
// it was at that moment.
func (t *Transaction) Get(key *store.Key) (any, error) {
	return t.read(key)
}

// read is the transaction-aware store.Getter handed to derived keys.
func (t *Transaction) read(key *store.Key) (any, error) {
	if key == nil {
		return nil, store.ErrNilKey
	}
	if v, ok := t.staged[key.Name()]; ok {
		return v, nil
	}
	if !key.IsDerived() {
		return t.store.Get(key)
	}

	v, err := key.Compute(t.read)
	if err != nil {
		var dre *DerivedReadError
		if errors.As(err, &dre) {
			// Already attributed to the innermost failing key.
			return nil, err
		}
		t.logger.Debug("derived read failed",
			zap.String("txn_id", t.id), zap.String("key", key.Name()), zap.Error(err))
		return nil, &DerivedReadError{Key: key.Name(), Err: err}
	}
	return v, nil
}

// Operations returns a copy of the staged writes in staging order.
func (t *Transaction) Operations() []Operation {
	out := make([]Operation, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, *t.operations[name])
	}
	return out
}

// UndoErrors lists the writes that could not be undone when a failed commit
// rolled the transaction back.
func (t *Transaction) UndoErrors() []*UndoError {
	out := make([]*UndoError, len(t.undoErrs))
	copy(out, t.undoErrs)
	return out
}
