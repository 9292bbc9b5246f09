package store

import (
	"sync"

	"go.uber.org/zap"
)

// Listener is notified with the new value after a plain key changes.
type Listener func(value any)

// MemStore is an in-memory reactive Store. Plain keys hold values directly;
// derived keys are recomputed from their dependencies on every read.
type MemStore struct {
	mu        sync.RWMutex
	values    map[string]any
	listeners map[string]map[uint64]Listener
	nextSub   uint64
	logger    *zap.Logger
}

// NewMemStore creates an empty store. A nil logger disables logging.
func NewMemStore(logger *zap.Logger) *MemStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemStore{
		values:    make(map[string]any),
		listeners: make(map[string]map[uint64]Listener),
		logger:    logger.Named("memstore"),
	}
}

// Get returns the key's current value. Derived keys are evaluated against the
// store itself; the lock is not held during evaluation so compute functions may
// read other keys freely.
func (s *MemStore) Get(key *Key) (any, error) {
	if key == nil {
		return nil, ErrNilKey
	}
	if key.IsDerived() {
		v, err := key.Compute(s.Get)
		if err != nil {
			return nil, &ComputeError{Key: key.Name(), Err: err}
		}
		return v, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.values[key.Name()]; ok {
		return v, nil
	}
	return key.Initial(), nil
}

// Set stores value under a plain key and notifies its subscribers.
func (s *MemStore) Set(key *Key, value any) error {
	if key == nil {
		return ErrNilKey
	}
	if key.IsDerived() {
		return ErrReadOnlyKey
	}

	s.mu.Lock()
	s.values[key.Name()] = value
	subs := make([]Listener, 0, len(s.listeners[key.Name()]))
	for _, fn := range s.listeners[key.Name()] {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	s.logger.Debug("key set", zap.String("key", key.Name()), zap.Int("subscribers", len(subs)))
	for _, fn := range subs {
		fn(value)
	}
	return nil
}

// Subscribe registers fn to run after key is set. The returned function
// removes the subscription.
func (s *MemStore) Subscribe(key *Key, fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	id := s.nextSub
	name := key.Name()
	if s.listeners[name] == nil {
		s.listeners[name] = make(map[uint64]Listener)
	}
	s.listeners[name][id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners[name], id)
		if len(s.listeners[name]) == 0 {
			delete(s.listeners, name)
		}
	}
}

// Snapshot copies every explicitly set plain value.
func (s *MemStore) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
