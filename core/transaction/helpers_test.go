package transaction

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/sushant-115/txstage/core/store"
	"go.uber.org/zap"
)

// --- Test Helpers ---

// storeCall records one call made into recordingStore.
type storeCall struct {
	Op    string // "get" or "set"
	Key   string
	Value any
}

// recordingStore wraps a MemStore, records every call, and lets a test make
// individual writes fail through setHook.
type recordingStore struct {
	*store.MemStore
	calls   []storeCall
	setHook func(key string, value any) error
}

func newRecordingStore(t *testing.T) *recordingStore {
	t.Helper()
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)
	return &recordingStore{MemStore: store.NewMemStore(logger)}
}

func (s *recordingStore) Get(key *store.Key) (any, error) {
	s.calls = append(s.calls, storeCall{Op: "get", Key: key.Name()})
	return s.MemStore.Get(key)
}

func (s *recordingStore) Set(key *store.Key, value any) error {
	s.calls = append(s.calls, storeCall{Op: "set", Key: key.Name(), Value: value})
	if s.setHook != nil {
		if err := s.setHook(key.Name(), value); err != nil {
			return err
		}
	}
	return s.MemStore.Set(key, value)
}

// sets returns only the recorded set calls.
func (s *recordingStore) sets() []storeCall {
	var out []storeCall
	for _, c := range s.calls {
		if c.Op == "set" {
			out = append(out, c)
		}
	}
	return out
}

// mustSeed writes directly to the underlying store without recording.
func (s *recordingStore) mustSeed(t *testing.T, key *store.Key, value any) {
	t.Helper()
	require.NoError(t, s.MemStore.Set(key, value))
}

// live reads the committed value straight from the underlying store.
func (s *recordingStore) live(t *testing.T, key *store.Key) any {
	t.Helper()
	v, err := s.MemStore.Get(key)
	require.NoError(t, err)
	return v
}

func beginOn(t *testing.T, s store.Store, opts Options) *Transaction {
	t.Helper()
	opts.Store = s
	if opts.Logger == nil {
		logger, err := zap.NewDevelopment()
		require.NoError(t, err)
		opts.Logger = logger
	}
	return Begin(opts)
}

func mustGet(t *testing.T, tx *Transaction, key *store.Key) any {
	t.Helper()
	v, err := tx.Get(key)
	require.NoError(t, err)
	return v
}

func doubled(dep *store.Key) store.ComputeFunc {
	return func(get store.Getter) (any, error) {
		v, err := get(dep)
		if err != nil {
			return nil, err
		}
		return v.(int) * 2, nil
	}
}
