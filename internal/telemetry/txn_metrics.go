package internaltelemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// TxnMetrics holds all the metric instruments for staged transactions.
type TxnMetrics struct {
	BegunCounter           metric.Int64Counter
	CommittedCounter       metric.Int64Counter
	RolledBackCounter      metric.Int64Counter
	UndoFailuresCounter    metric.Int64Counter
	ActiveUpDownCounter    metric.Int64UpDownCounter
	CommitLatencyHistogram metric.Int64Histogram
}

// NewTxnMetrics creates and registers all the metrics for transactions.
func NewTxnMetrics(meter metric.Meter) (*TxnMetrics, error) {
	begunCounter, err := meter.Int64Counter(
		"txstage.txn.begun_total",
		metric.WithDescription("Total number of transactions begun."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	committedCounter, err := meter.Int64Counter(
		"txstage.txn.committed_total",
		metric.WithDescription("Total number of transactions committed."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	rolledBackCounter, err := meter.Int64Counter(
		"txstage.txn.rolled_back_total",
		metric.WithDescription("Total number of transactions rolled back, explicitly or after a failed apply."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	undoFailuresCounter, err := meter.Int64Counter(
		"txstage.txn.undo_failures_total",
		metric.WithDescription("Total number of writes that could not be undone during automatic rollback."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	activeUpDownCounter, err := meter.Int64UpDownCounter(
		"txstage.txn.active",
		metric.WithDescription("Number of pending transactions."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	commitLatencyHistogram, err := meter.Int64Histogram(
		"txstage.txn.commit.duration",
		metric.WithDescription("The latency of commit, including any undo work."),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &TxnMetrics{
		BegunCounter:           begunCounter,
		CommittedCounter:       committedCounter,
		RolledBackCounter:      rolledBackCounter,
		UndoFailuresCounter:    undoFailuresCounter,
		ActiveUpDownCounter:    activeUpDownCounter,
		CommitLatencyHistogram: commitLatencyHistogram,
	}, nil
}

// NoopTxnMetrics returns instruments that record nothing.
func NoopTxnMetrics() *TxnMetrics {
	m, _ := NewTxnMetrics(noop.NewMeterProvider().Meter(""))
	return m
}

// LabelAttr tags a measurement with the transaction label.
func LabelAttr(label string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("txn.label", label))
}

// RecordBegin counts a new pending transaction.
func (m *TxnMetrics) RecordBegin(ctx context.Context, label string) {
	m.BegunCounter.Add(ctx, 1, LabelAttr(label))
	m.ActiveUpDownCounter.Add(ctx, 1, LabelAttr(label))
}

// RecordCommit counts a successful commit and its latency.
func (m *TxnMetrics) RecordCommit(ctx context.Context, label string, ms int64) {
	m.CommittedCounter.Add(ctx, 1, LabelAttr(label))
	m.ActiveUpDownCounter.Add(ctx, -1, LabelAttr(label))
	m.CommitLatencyHistogram.Record(ctx, ms, LabelAttr(label))
}

// RecordRollback counts a rollback. undoFailures is zero for explicit rollbacks.
func (m *TxnMetrics) RecordRollback(ctx context.Context, label string, undoFailures int) {
	m.RolledBackCounter.Add(ctx, 1, LabelAttr(label))
	m.ActiveUpDownCounter.Add(ctx, -1, LabelAttr(label))
	if undoFailures > 0 {
		m.UndoFailuresCounter.Add(ctx, int64(undoFailures), LabelAttr(label))
	}
}
