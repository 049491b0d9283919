package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/givemart/givemart"
	"github.com/givemart/givemart/integrations/telemetry"
	"github.com/givemart/givemart/internal/config"
	"github.com/givemart/givemart/sudoapi/flags"
	"github.com/joho/godotenv"
)

var (
	confPath    = flag.String("config", "./config.toml", "Config path")
	envPath     = flag.String("env", ".env", "Environment file loaded before the config")
	memoryStore = flag.Bool("memory", false, "Use an in-memory ledger instead of PostgreSQL")
	logToFile   = flag.Bool("log_file", true, "Also write JSON logs to a rotated file in common.log_dir")
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, args []string) error
}

var commands = []command{
	{"serve", "Run the ledger API server", runServe},
	{"migrate", "Apply pending PostgreSQL migrations", runMigrate},
	{"pending", "Show what every nonprofit is owed", runPending},
	{"payout", "Record a payout for a set of pending donations", runPayout},
	{"reconcile", "Audit payouts against their donations", runReconcile},
	{"token", "Mint an operator bearer token", runToken},
	{"flags", "List runtime flags, or change one with -set name=value", runFlags},
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: givemart [flags] <command> [command flags]\n\nCommands:\n")
	for _, cmd := range commands {
		fmt.Fprintf(flag.CommandLine.Output(), "  %-10s %s\n", cmd.name, cmd.usage)
	}
	fmt.Fprintf(flag.CommandLine.Output(), "\nFlags:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx)
	stop()
	if err != nil {
		slog.ErrorContext(ctx, "givemart exited with error", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.WarnContext(ctx, "Couldn't load env file", slog.Any("err", err))
	}

	if err := config.Load(*confPath); err != nil {
		return err
	}

	config.SetFlagsPath(config.Common.FlagsPath)
	if err := config.LoadFlags(ctx, true); err != nil {
		return fmt.Errorf("couldn't load flags: %w", err)
	}

	closeLogs, err := setupLogging()
	if err != nil {
		return err
	}
	defer closeLogs.Close()

	if flags.OtelEnabled.Value() {
		shutdown, err := telemetry.Setup(ctx)
		if err != nil {
			return fmt.Errorf("couldn't set up telemetry: %w", err)
		}
		defer func() {
			if err := shutdown(context.WithoutCancel(ctx)); err != nil {
				slog.WarnContext(ctx, "Couldn't flush telemetry", slog.Any("err", err))
			}
		}()
	}

	name, args := "serve", flag.Args()
	if len(args) > 0 {
		name, args = args[0], args[1:]
	}
	for _, cmd := range commands {
		if cmd.name == name {
			return cmd.run(ctx, args)
		}
	}
	usage()
	return fmt.Errorf("unknown command %q", name)
}

func setupLogging() (io.Closer, error) {
	opts := givemart.LogOptions{Debug: config.Common.Debug, Console: os.Stdout}
	if *logToFile {
		if err := os.MkdirAll(config.Common.LogDir, 0755); err != nil {
			return nil, fmt.Errorf("couldn't create log directory: %w", err)
		}
		opts.File = path.Join(config.Common.LogDir, "givemart.log")
	}
	if flags.OtelEnabled.Value() {
		opts.Extra = append(opts.Extra, telemetry.SlogHandler())
	}

	logger, closer := givemart.NewLogger(opts)
	slog.SetDefault(logger)
	return closer, nil
}
