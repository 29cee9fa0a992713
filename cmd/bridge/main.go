package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/HsiangNianian/aieda-bridge/internal/bridge"
	"github.com/HsiangNianian/aieda-bridge/internal/config"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "bridge: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flagSet := pflag.NewFlagSet("bridge", pflag.ContinueOnError)
	configPath := flagSet.String("config", os.Getenv("AIEDA_CONFIG"), "path to a HuJSON config file")
	bridgeURL := flagSet.String("url", "", "controller websocket url (overrides config)")
	token := flagSet.String("token", "", "bearer token appended as ?token= (overrides config)")
	allowWrites := flagSet.Bool("allow-writes", true, "allow write actions such as update_schema")
	requireConfirm := flagSet.Bool("require-confirmation", true, "require meta.confirm or payload.confirm on write actions")
	redisAddr := flagSet.String("redis-addr", "", "redis address for the command ledger (overrides config)")
	logLevel := flagSet.String("log-level", "", "debug, info, warn or error (overrides config)")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *bridgeURL != "" {
		cfg.Bridge.URL = *bridgeURL
	}
	if *token != "" {
		cfg.Bridge.Token = *token
	}
	if flagSet.Changed("allow-writes") {
		cfg.Policy.AllowWriteActions = *allowWrites
	}
	if flagSet.Changed("require-confirmation") {
		cfg.Policy.RequireWriteConfirmation = *requireConfirm
	}
	if *redisAddr != "" {
		cfg.Ledger.RedisAddr = *redisAddr
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	logger.Info("starting bridge",
		"url", cfg.Bridge.URL,
		"allow_writes", cfg.Policy.AllowWriteActions,
		"require_confirmation", cfg.Policy.RequireWriteConfirmation)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Host API bindings are supplied by the embedding application; a
	// standalone process has none and serves the in-memory schematic.
	b, err := bridge.Ensure(ctx, cfg, nil, logger)
	if err != nil {
		return err
	}
	defer bridge.Shutdown()

	select {
	case <-ctx.Done():
		logger.Info("shutting down", "reason", context.Cause(ctx))
	case <-b.Client().Done():
	}
	return nil
}
