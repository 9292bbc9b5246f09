// Package store defines the key-value contract that transactions are staged
// against, together with an in-memory reactive implementation.
package store

import "sync"

// Store is the external collaborator holding committed state.
//
// Get must be side-effect free. Set must be atomic per key: when it returns an
// error the write has not been applied.
type Store interface {
	Get(key *Key) (any, error)
	Set(key *Key, value any) error
}

var (
	defaultMu    sync.Mutex
	defaultStore Store
)

// Default returns the process-wide store, creating an empty MemStore on first use.
func Default() Store {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultStore == nil {
		defaultStore = NewMemStore(nil)
	}
	return defaultStore
}

// SetDefault replaces the process-wide store and returns a function restoring
// the previous one. Passing nil resets to lazy initialization.
func SetDefault(s Store) (restore func()) {
	defaultMu.Lock()
	prev := defaultStore
	defaultStore = s
	defaultMu.Unlock()
	return func() {
		defaultMu.Lock()
		defaultStore = prev
		defaultMu.Unlock()
	}
}
