package transaction

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sushant-115/txstage/core/store"
	internaltelemetry "github.com/sushant-115/txstage/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/sushant-115/txstage/core/transaction"

// Options configures a transaction at Begin. Every field is optional.
type Options struct {
	// Store receives the writes on commit. Defaults to store.Default().
	Store store.Store
	// OnCommit runs after a successful commit.
	OnCommit func()
	// OnRollback runs after an explicit rollback or a failed commit.
	OnRollback func()
	// Label is free-form metadata carried in logs, spans and metrics.
	Label string

	Logger   *zap.Logger
	Metrics  *internaltelemetry.TxnMetrics
	Tracer   trace.Tracer
	Registry *Registry
}

// Begin starts a pending transaction bound to the resolved store. It has no
// effect on the store.
func Begin(opts Options) *Transaction {
	if opts.Store == nil {
		opts.Store = store.Default()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = internaltelemetry.NoopTxnMetrics()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}

	tx := &Transaction{
		id:         uuid.NewString(),
		status:     StatusPending,
		operations: make(map[string]*Operation),
		staged:     make(map[string]any),
		store:      opts.Store,
		opts:       opts,
	}
	tx.logger = opts.Logger.Named("transaction").With(zap.String("txn_id", tx.id))
	if opts.Label != "" {
		tx.logger = tx.logger.With(zap.String("label", opts.Label))
	}

	if opts.Registry != nil {
		opts.Registry.Register(tx.id)
	}
	opts.Metrics.RecordBegin(context.Background(), opts.Label)
	tx.logger.Debug("transaction begun")
	return tx
}

// Commit applies every staged write to the store in staging order.
//
// If the store rejects a write, the writes already applied are undone in
// reverse order, the transaction is rolled back and the store's error is
// returned wrapped in an *ApplyError. A failed commit is never reported as
// success.
func Commit(ctx context.Context, tx *Transaction) error {
	if tx.status != StatusPending {
		return &InvalidStateError{Op: OpCommit, Status: tx.status}
	}

	ctx, span := tx.opts.Tracer.Start(ctx, "txstage.commit", trace.WithAttributes(
		attribute.String("txn.id", tx.id),
		attribute.String("txn.label", tx.opts.Label),
		attribute.Int("txn.operations", len(tx.order)),
	))
	defer span.End()
	start := time.Now()

	for i, name := range tx.order {
		op := tx.operations[name]
		err := tx.store.Set(op.Key, op.NewValue)
		if err == nil {
			continue
		}

		applyErr := &ApplyError{Key: name, Err: err}
		tx.logger.Warn("apply failed, undoing applied writes",
			zap.String("key", name), zap.Int("applied", i), zap.Error(err))
		applyErr.UndoFailures = undoApplied(tx, tx.order[:i])
		tx.undoErrs = applyErr.UndoFailures

		span.RecordError(applyErr)
		span.SetStatus(codes.Error, "apply failed")
		span.SetAttributes(attribute.Int("txn.undo_failures", len(applyErr.UndoFailures)))

		tx.status = StatusRolledBack
		tx.unregister()
		tx.opts.Metrics.RecordRollback(ctx, tx.opts.Label, len(applyErr.UndoFailures))
		tx.logger.Info("transaction rolled back after failed commit",
			zap.Int("undo_failures", len(applyErr.UndoFailures)))
		if tx.opts.OnRollback != nil {
			tx.opts.OnRollback()
		}
		return applyErr
	}

	tx.status = StatusCommitted
	tx.unregister()
	tx.opts.Metrics.RecordCommit(ctx, tx.opts.Label, time.Since(start).Milliseconds())
	tx.logger.Info("transaction committed", zap.Int("operations", len(tx.order)))
	if tx.opts.OnCommit != nil {
		tx.opts.OnCommit()
	}
	return nil
}

// undoApplied restores applied keys to their previous values, last applied
// first. Undo is collect-and-report: a failing undo is logged and recorded,
// and the unwind carries on with the remaining keys. It never replaces the
// apply error that triggered it.
func undoApplied(tx *Transaction, applied []string) []*UndoError {
	var failures []*UndoError
	for i := len(applied) - 1; i >= 0; i-- {
		op := tx.operations[applied[i]]
		if err := tx.store.Set(op.Key, op.PreviousValue); err != nil {
			ue := &UndoError{Key: applied[i], Err: err}
			tx.logger.Error("undo failed, continuing", zap.String("key", applied[i]), zap.Error(err))
			failures = append(failures, ue)
		}
	}
	return failures
}

// Rollback discards the staged writes. The store is never touched since
// nothing was written through.
func Rollback(ctx context.Context, tx *Transaction) error {
	if tx.status != StatusPending {
		return &InvalidStateError{Op: OpRollback, Status: tx.status}
	}

	_, span := tx.opts.Tracer.Start(ctx, "txstage.rollback", trace.WithAttributes(
		attribute.String("txn.id", tx.id),
		attribute.String("txn.label", tx.opts.Label),
		attribute.Int("txn.operations", len(tx.order)),
	))
	defer span.End()

	tx.status = StatusRolledBack
	tx.unregister()
	tx.opts.Metrics.RecordRollback(ctx, tx.opts.Label, 0)
	tx.logger.Info("transaction rolled back", zap.Int("discarded", len(tx.order)))
	if tx.opts.OnRollback != nil {
		tx.opts.OnRollback()
	}
	return nil
}

func (t *Transaction) unregister() {
	if t.opts.Registry != nil {
		t.opts.Registry.Unregister(t.id)
	}
}
