package main

import (
	"errors"
	"sync"

	"github.com/sushant-115/txstage/core/store"
)

var errInjected = errors.New("injected store failure")

// faultyStore is a MemStore whose writes can be made to fail per key, so the
// shell can demonstrate automatic rollback.
type faultyStore struct {
	*store.MemStore
	mu      sync.Mutex
	failing map[string]bool
}

func newFaultyStore(mem *store.MemStore) *faultyStore {
	return &faultyStore{MemStore: mem, failing: make(map[string]bool)}
}

func (s *faultyStore) setFailing(key string, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if on {
		s.failing[key] = true
	} else {
		delete(s.failing, key)
	}
}

func (s *faultyStore) Set(key *store.Key, value any) error {
	s.mu.Lock()
	fail := key != nil && s.failing[key.Name()]
	s.mu.Unlock()
	if fail {
		return errInjected
	}
	return s.MemStore.Set(key, value)
}
