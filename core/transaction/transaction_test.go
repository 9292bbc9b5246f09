package transaction

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/sushant-115/txstage/core/store"
)

func TestBegin_UniqueIDsAndPending(t *testing.T) {
	s := newRecordingStore(t)
	tx1 := beginOn(t, s, Options{})
	tx2 := beginOn(t, s, Options{})

	require.NotEmpty(t, tx1.ID())
	require.NotEmpty(t, tx2.ID())
	require.NotEqual(t, tx1.ID(), tx2.ID())
	require.Equal(t, StatusPending, tx1.Status())
	require.Equal(t, StatusPending, tx2.Status())
	require.Empty(t, s.calls, "begin must not touch the store")
}

func TestBegin_FallsBackToDefaultStore(t *testing.T) {
	s := newRecordingStore(t)
	restore := store.SetDefault(s)
	defer restore()

	count := store.Plain("count", 0)
	tx := Begin(Options{Label: "default"})
	require.NoError(t, tx.Set(count, 5))
	require.NoError(t, Commit(context.Background(), tx))

	require.Equal(t, 5, s.live(t, count))
	require.Equal(t, "default", tx.Label())
}

func TestSet_IsolatedFromStore(t *testing.T) {
	s := newRecordingStore(t)
	count := store.Plain("count", 0)
	tx := beginOn(t, s, Options{})

	require.NoError(t, tx.Set(count, 5))

	require.Equal(t, 5, mustGet(t, tx, count))
	require.Equal(t, 0, s.live(t, count))
	require.Empty(t, s.sets(), "staging must never write through")
	require.Equal(t, StatusPending, tx.Status())
}

func TestSet_ReadYourWritesLastWins(t *testing.T) {
	s := newRecordingStore(t)
	count := store.Plain("count", 0)
	tx := beginOn(t, s, Options{})

	for _, v := range []int{5, 10, 15} {
		require.NoError(t, tx.Set(count, v))
		require.Equal(t, v, mustGet(t, tx, count))
	}
	require.NoError(t, Commit(context.Background(), tx))
	require.Equal(t, 15, s.live(t, count))
}

func TestSet_RestagingKeepsOrderAndFirstPreviousValue(t *testing.T) {
	s := newRecordingStore(t)
	a := store.Plain("a", "a0")
	b := store.Plain("b", "b0")
	tx := beginOn(t, s, Options{})

	require.NoError(t, tx.Set(a, "a1"))
	require.NoError(t, tx.Set(b, "b1"))
	// An outside writer changes a; the captured previous value must not move.
	s.mustSeed(t, a, "outside")
	require.NoError(t, tx.Set(a, "a2"))

	ops := tx.Operations()
	require.Len(t, ops, 2)
	require.Equal(t, 2, tx.Len())
	require.Equal(t, "a", ops[0].Key.Name())
	require.Equal(t, "a2", ops[0].NewValue)
	require.Equal(t, "a0", ops[0].PreviousValue)
	require.Equal(t, "b", ops[1].Key.Name())
	require.Equal(t, "b0", ops[1].PreviousValue)
}

func TestSet_OperationsIsACopy(t *testing.T) {
	s := newRecordingStore(t)
	a := store.Plain("a", 0)
	tx := beginOn(t, s, Options{})
	require.NoError(t, tx.Set(a, 1))

	ops := tx.Operations()
	ops[0].NewValue = 999

	require.Equal(t, 1, mustGet(t, tx, a))
	require.Equal(t, 1, tx.Operations()[0].NewValue)
}

func TestSet_RejectsDerivedAndNilKeys(t *testing.T) {
	s := newRecordingStore(t)
	base := store.Plain("base", 1)
	d := store.Derived("d", doubled(base))
	tx := beginOn(t, s, Options{})

	require.ErrorIs(t, tx.Set(d, 10), ErrDerivedNotWritable)
	require.ErrorIs(t, tx.Set(nil, 10), store.ErrNilKey)
	require.Zero(t, tx.Len())

	_, err := tx.Get(nil)
	require.ErrorIs(t, err, store.ErrNilKey)
}

func TestSet_NilAndUnsetValues(t *testing.T) {
	s := newRecordingStore(t)
	nullable := store.Plain("nullable", nil)
	tx := beginOn(t, s, Options{})

	require.Nil(t, mustGet(t, tx, nullable))
	require.NoError(t, tx.Set(nullable, "not null"))
	require.Equal(t, "not null", mustGet(t, tx, nullable))
	require.Nil(t, s.live(t, nullable))

	require.NoError(t, Commit(context.Background(), tx))
	require.Equal(t, "not null", s.live(t, nullable))
}

func TestGet_DerivedOverlay(t *testing.T) {
	s := newRecordingStore(t)
	base := store.Plain("base", 10)
	derived := store.Derived("derived", doubled(base))
	tx := beginOn(t, s, Options{})

	require.Equal(t, 20, mustGet(t, tx, derived))
	require.NoError(t, tx.Set(base, 20))
	require.Equal(t, 40, mustGet(t, tx, derived), "derived read must see staged dependency")
	require.Equal(t, 20, s.live(t, derived), "store must still see committed dependency")
	require.Empty(t, s.sets())

	require.NoError(t, Commit(context.Background(), tx))
	require.Equal(t, 40, s.live(t, derived))
}

func TestGet_DerivedOverlayMixesStagedAndStoreValues(t *testing.T) {
	s := newRecordingStore(t)
	a := store.Plain("a", 5)
	b := store.Plain("b", 10)
	c := store.Derived("c", func(get store.Getter) (any, error) {
		av, err := get(a)
		if err != nil {
			return nil, err
		}
		bv, err := get(b)
		if err != nil {
			return nil, err
		}
		return av.(int) + bv.(int), nil
	})
	d := store.Derived("d", doubled(c))

	tx := beginOn(t, s, Options{})
	require.NoError(t, tx.Set(a, 15))

	// d = 2 * (a' + b_store)
	require.Equal(t, 25, mustGet(t, tx, c))
	require.Equal(t, 50, mustGet(t, tx, d))

	require.NoError(t, tx.Set(b, 20))
	require.Equal(t, 70, mustGet(t, tx, d))

	require.NoError(t, Commit(context.Background(), tx))
	require.Equal(t, 35, s.live(t, c))
	require.Equal(t, 70, s.live(t, d))
}

func TestGet_DerivedReadErrorIsSurfaced(t *testing.T) {
	s := newRecordingStore(t)
	limit := errors.New("value over limit")
	base := store.Plain("base", 1)
	guarded := store.Derived("guarded", func(get store.Getter) (any, error) {
		v, err := get(base)
		if err != nil {
			return nil, err
		}
		if v.(int) > 10 {
			return nil, limit
		}
		return v, nil
	})
	outer := store.Derived("outer", func(get store.Getter) (any, error) {
		v, err := get(guarded)
		if err != nil {
			return nil, fmt.Errorf("outer: %w", err)
		}
		return v, nil
	})

	tx := beginOn(t, s, Options{})
	require.Equal(t, 1, mustGet(t, tx, outer))

	require.NoError(t, tx.Set(base, 11))
	v, err := tx.Get(outer)
	require.Nil(t, v, "a failed read must not fall back to the store value")
	require.ErrorIs(t, err, limit)

	var dre *DerivedReadError
	require.ErrorAs(t, err, &dre)
	require.Equal(t, "guarded", dre.Key, "error is attributed to the failing key")

	// The store still computes fine against committed state.
	require.Equal(t, 1, s.live(t, outer))
}

func TestGet_IsPure(t *testing.T) {
	s := newRecordingStore(t)
	base := store.Plain("base", 3)
	derived := store.Derived("derived", doubled(base))
	tx := beginOn(t, s, Options{})
	require.NoError(t, tx.Set(base, 4))

	before := tx.Operations()
	for i := 0; i < 3; i++ {
		require.Equal(t, 8, mustGet(t, tx, derived))
	}
	require.Equal(t, before, tx.Operations())
	require.Empty(t, s.sets())
}

func TestGet_AfterTerminalReflectsLog(t *testing.T) {
	s := newRecordingStore(t)
	count := store.Plain("count", 0)
	tx := beginOn(t, s, Options{})
	require.NoError(t, tx.Set(count, 5))
	require.NoError(t, Rollback(context.Background(), tx))

	// Rolled back: the log is still inspectable, the store unchanged.
	require.Equal(t, 5, mustGet(t, tx, count))
	require.Equal(t, 0, s.live(t, count))
}

func TestStatus_String(t *testing.T) {
	require.Equal(t, "pending", StatusPending.String())
	require.Equal(t, "committed", StatusCommitted.String())
	require.Equal(t, "rolled-back", StatusRolledBack.String())
	require.Equal(t, "Status(7)", Status(7).String())
}
