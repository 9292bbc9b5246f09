package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/sushant-115/txstage/core/transaction"
	internaltelemetry "github.com/sushant-115/txstage/internal/telemetry"
	"github.com/sushant-115/txstage/pkg/config"
	"github.com/sushant-115/txstage/pkg/logger"
	"github.com/sushant-115/txstage/pkg/telemetry"
	"go.uber.org/zap"
)

var configPath = flag.String("config", "", "Path to a YAML configuration file")

func main() {
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatalf("CRITICAL: %v", err)
		}
	}

	zlogger, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("CRITICAL: Can't initialize zap logger: %v", err)
	}
	defer func() { _ = zlogger.Sync() }()

	tel, shutdown, err := telemetry.New(cfg.Telemetry)
	if err != nil {
		zlogger.Fatal("CRITICAL: Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			zlogger.Error("Failed to shut down telemetry", zap.Error(err))
		}
	}()

	metrics, err := internaltelemetry.NewTxnMetrics(tel.Meter)
	if err != nil {
		zlogger.Fatal("CRITICAL: Failed to register transaction metrics", zap.Error(err))
	}

	sh := newShell(os.Stdout, zlogger, metrics, tel.Tracer)

	// Non-interactive: commands separated by ';' on the command line.
	if args := flag.Args(); len(args) > 0 {
		runScript(sh, strings.Join(args, " "))
		return
	}

	if err := runInteractive(sh, cfg.CLI); err != nil {
		zlogger.Error("Interactive shell failed", zap.Error(err))
	}
}

// runScript executes ';'-separated commands and stops at exit.
func runScript(sh *shell, script string) {
	for _, line := range strings.Split(script, ";") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if sh.processCommand(fields) {
			return
		}
	}
}

func runInteractive(sh *shell, cfg config.CLIConfig) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          cfg.Prompt,
		HistoryFile:     cfg.HistoryFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    newCompleter(),
	})
	if err != nil {
		return fmt.Errorf("failed to start readline: %w", err)
	}
	defer rl.Close()
	sh.out = rl.Stdout()

	fmt.Fprintln(sh.out, "txstage CLI (interactive mode). Type 'help' for commands, 'exit' or 'quit' to leave.")
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if len(line) == 0 {
				break
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if sh.processCommand(fields) {
			break
		}
	}

	if sh.tx != nil && sh.tx.Status() == transaction.StatusPending {
		fmt.Fprintf(sh.out, "Discarding pending transaction %s.\n", sh.tx.ID())
		sh.rollback()
	}
	fmt.Fprintln(sh.out, "Exiting txstage CLI.")
	return nil
}

func newCompleter() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("def"),
		readline.PcItem("derive"),
		readline.PcItem("keys"),
		readline.PcItem("begin"),
		readline.PcItem("set"),
		readline.PcItem("get"),
		readline.PcItem("peek"),
		readline.PcItem("ops"),
		readline.PcItem("commit"),
		readline.PcItem("rollback"),
		readline.PcItem("status"),
		readline.PcItem("active"),
		readline.PcItem("fail", readline.PcItem("on"), readline.PcItem("off")),
		readline.PcItem("help"),
		readline.PcItem("exit"),
		readline.PcItem("quit"),
	)
}
