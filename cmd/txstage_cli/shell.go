package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/sushant-115/txstage/core/store"
	"github.com/sushant-115/txstage/core/transaction"
	internaltelemetry "github.com/sushant-115/txstage/internal/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// shell holds the state of one CLI session: the defined keys, the store and
// the current transaction, if any.
type shell struct {
	out      io.Writer
	store    *faultyStore
	keys     map[string]*store.Key
	registry *transaction.Registry
	tx       *transaction.Transaction

	logger  *zap.Logger
	metrics *internaltelemetry.TxnMetrics
	tracer  trace.Tracer
}

func newShell(out io.Writer, logger *zap.Logger, metrics *internaltelemetry.TxnMetrics, tracer trace.Tracer) *shell {
	return &shell{
		out:      out,
		store:    newFaultyStore(store.NewMemStore(logger)),
		keys:     make(map[string]*store.Key),
		registry: transaction.NewRegistry(),
		logger:   logger,
		metrics:  metrics,
		tracer:   tracer,
	}
}

// parseValue reads an integer when possible, otherwise keeps the text.
func parseValue(parts []string) any {
	raw := strings.Join(parts, " ")
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	return raw
}

func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return strconv.Quote(s)
	}
	if v == nil {
		return "<nil>"
	}
	return fmt.Sprint(v)
}

func (sh *shell) printf(format string, args ...any) {
	fmt.Fprintf(sh.out, format, args...)
}

// processCommand handles a single command. It returns true when the session should end.
func (sh *shell) processCommand(args []string) bool {
	if len(args) == 0 {
		sh.printf("Error: No command provided.\n")
		return false
	}

	command := strings.ToLower(args[0])
	switch command {
	case "def":
		if len(args) < 3 {
			sh.printf("Error: def requires a key and an initial value.\n")
			return false
		}
		sh.define(args[1], parseValue(args[2:]))
	case "derive":
		if len(args) < 4 {
			sh.printf("Error: derive requires <key> sum|product|concat <dep>...\n")
			return false
		}
		sh.derive(args[1], strings.ToLower(args[2]), args[3:])
	case "keys":
		sh.listKeys()
	case "begin":
		sh.begin(strings.Join(args[1:], " "))
	case "set":
		if len(args) < 3 {
			sh.printf("Error: set requires a key and a value.\n")
			return false
		}
		sh.set(args[1], parseValue(args[2:]))
	case "get":
		if len(args) < 2 {
			sh.printf("Error: get requires a key.\n")
			return false
		}
		sh.get(args[1], sh.tx != nil)
	case "peek":
		if len(args) < 2 {
			sh.printf("Error: peek requires a key.\n")
			return false
		}
		sh.get(args[1], false)
	case "ops":
		sh.listOps()
	case "commit":
		sh.commit()
	case "rollback":
		sh.rollback()
	case "status":
		sh.status()
	case "active":
		sh.printf("Active transactions (%d): %s\n", sh.registry.Count(), strings.Join(sh.registry.Active(), ", "))
	case "fail":
		if len(args) < 2 {
			sh.printf("Error: fail requires a key.\n")
			return false
		}
		on := len(args) < 3 || strings.ToLower(args[2]) != "off"
		sh.store.setFailing(args[1], on)
		sh.printf("Writes to %s will %s.\n", args[1], map[bool]string{true: "fail", false: "succeed"}[on])
	case "help":
		sh.printf("Commands:\n")
		sh.printf("  def <key> <initial>                    define a plain key\n")
		sh.printf("  derive <key> sum|product|concat <dep>... define a derived key\n")
		sh.printf("  keys                                   list defined keys\n")
		sh.printf("  begin [label]                          start a transaction\n")
		sh.printf("  set <key> <value>                      stage a write\n")
		sh.printf("  get <key>                              read through the transaction\n")
		sh.printf("  peek <key>                             read the store directly\n")
		sh.printf("  ops                                    list staged writes\n")
		sh.printf("  commit | rollback                      finish the transaction\n")
		sh.printf("  status | active                        transaction state\n")
		sh.printf("  fail <key> [on|off]                    make store writes to key fail\n")
		sh.printf("  help\n")
		sh.printf("  exit / quit\n")
	case "exit", "quit":
		return true
	default:
		sh.printf("Error: Unknown command. Type 'help' for a list of commands.\n")
	}
	return false
}

func (sh *shell) define(name string, initial any) {
	if _, exists := sh.keys[name]; exists {
		sh.printf("Error: key %s already defined.\n", name)
		return
	}
	sh.keys[name] = store.Plain(name, initial)
	sh.printf("Defined %s = %s\n", name, formatValue(initial))
}

func (sh *shell) derive(name, fn string, depNames []string) {
	if _, exists := sh.keys[name]; exists {
		sh.printf("Error: key %s already defined.\n", name)
		return
	}
	deps := make([]*store.Key, 0, len(depNames))
	for _, d := range depNames {
		k, ok := sh.keys[d]
		if !ok {
			sh.printf("Error: unknown dependency %s.\n", d)
			return
		}
		deps = append(deps, k)
	}

	var compute store.ComputeFunc
	switch fn {
	case "sum":
		compute = foldInts(deps, 0, func(acc, v int64) int64 { return acc + v })
	case "product":
		compute = foldInts(deps, 1, func(acc, v int64) int64 { return acc * v })
	case "concat":
		compute = func(get store.Getter) (any, error) {
			var b strings.Builder
			for _, k := range deps {
				v, err := get(k)
				if err != nil {
					return nil, err
				}
				fmt.Fprint(&b, v)
			}
			return b.String(), nil
		}
	default:
		sh.printf("Error: unknown function %s. Supported: sum, product, concat.\n", fn)
		return
	}
	sh.keys[name] = store.Derived(name, compute)
	sh.printf("Derived %s = %s(%s)\n", name, fn, strings.Join(depNames, ", "))
}

// foldInts builds a compute function over integer dependencies.
func foldInts(deps []*store.Key, start int64, op func(acc, v int64) int64) store.ComputeFunc {
	return func(get store.Getter) (any, error) {
		acc := start
		for _, k := range deps {
			v, err := get(k)
			if err != nil {
				return nil, err
			}
			n, ok := v.(int64)
			if !ok {
				return nil, fmt.Errorf("%s is %s, not an integer", k.Name(), formatValue(v))
			}
			acc = op(acc, n)
		}
		return acc, nil
	}
}

func (sh *shell) listKeys() {
	names := make([]string, 0, len(sh.keys))
	for name := range sh.keys {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sh.printf("  %s (%s)\n", name, sh.keys[name].Kind())
	}
}

func (sh *shell) lookup(name string) (*store.Key, bool) {
	k, ok := sh.keys[name]
	if !ok {
		sh.printf("Error: unknown key %s. Define it with def or derive.\n", name)
	}
	return k, ok
}

func (sh *shell) begin(label string) {
	if sh.tx != nil && sh.tx.Status() == transaction.StatusPending {
		sh.printf("Error: transaction %s is still pending.\n", sh.tx.ID())
		return
	}
	sh.tx = transaction.Begin(transaction.Options{
		Store:    sh.store,
		Label:    label,
		Logger:   sh.logger,
		Metrics:  sh.metrics,
		Tracer:   sh.tracer,
		Registry: sh.registry,
		OnCommit: func() { sh.printf("Committed.\n") },
		OnRollback: func() {
			sh.printf("Rolled back.\n")
		},
	})
	sh.printf("Begun transaction %s\n", sh.tx.ID())
}

func (sh *shell) requireTx() bool {
	if sh.tx == nil {
		sh.printf("Error: no transaction. Use begin first.\n")
		return false
	}
	return true
}

func (sh *shell) set(name string, value any) {
	if !sh.requireTx() {
		return
	}
	k, ok := sh.lookup(name)
	if !ok {
		return
	}
	if err := sh.tx.Set(k, value); err != nil {
		sh.printf("Error: %v\n", err)
		return
	}
	sh.printf("Staged %s = %s\n", name, formatValue(value))
}

func (sh *shell) get(name string, throughTx bool) {
	k, ok := sh.lookup(name)
	if !ok {
		return
	}
	var (
		v   any
		err error
	)
	if throughTx {
		v, err = sh.tx.Get(k)
	} else {
		v, err = sh.store.Get(k)
	}
	if err != nil {
		sh.printf("Error: %v\n", err)
		return
	}
	sh.printf("%s = %s\n", name, formatValue(v))
}

func (sh *shell) listOps() {
	if !sh.requireTx() {
		return
	}
	for i, op := range sh.tx.Operations() {
		sh.printf("  %d. %s: %s -> %s\n", i+1, op.Key.Name(), formatValue(op.PreviousValue), formatValue(op.NewValue))
	}
}

func (sh *shell) commit() {
	if !sh.requireTx() {
		return
	}
	err := transaction.Commit(context.Background(), sh.tx)
	var applyErr *transaction.ApplyError
	switch {
	case err == nil:
	case errors.As(err, &applyErr):
		sh.printf("Error: commit failed, store restored: %v\n", err)
	default:
		sh.printf("Error: %v\n", err)
	}
}

func (sh *shell) rollback() {
	if !sh.requireTx() {
		return
	}
	if err := transaction.Rollback(context.Background(), sh.tx); err != nil {
		sh.printf("Error: %v\n", err)
	}
}

func (sh *shell) status() {
	if sh.tx == nil {
		sh.printf("No transaction.\n")
		return
	}
	sh.printf("Transaction %s label=%q status=%s staged=%d\n",
		sh.tx.ID(), sh.tx.Label(), sh.tx.Status(), sh.tx.Len())
}
