// Package main runs the Master's Touch Meditation automation service: a Cloud Run style HTTP
// service with optional timers, plus one-shot commands for operators.
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
	"syscall"
	_ "time/tzdata"

	"mtm-automation/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	name := "serve"
	if len(args) > 0 {
		name, args = args[0], args[1:]
	}
	if name == "help" || name == "-h" || name == "--help" {
		usage(stdout)
		return 0
	}
	cmd, ok := lookup(name)
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", name)
		usage(stderr)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		bootstrapLogger().Error("Failed to load configuration", "error", err)
		return 1
	}
	// One-shot commands print their result on stdout.
	logOut := stderr
	if name == "serve" {
		logOut = stdout
	}
	logger, sink := newLogger(logOut, cfg.Log)
	defer func() {
		_ = sink.Close()
	}()
	slog.SetDefault(logger)

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize", "error", err)
		return 1
	}
	defer a.Close()

	if err := cmd.run(ctx, a, args, stdout); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, flag.ErrHelp) {
			return 0
		}
		if isUsage(err) {
			fmt.Fprintln(stderr, err)
			return 2
		}
		logger.Error("Command failed", "command", name, "error", err)
		return 1
	}
	return 0
}
