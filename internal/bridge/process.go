package bridge

import (
	"context"
	"log/slog"
	"sync"

	"github.com/HsiangNianian/aieda-bridge/internal/capability"
	"github.com/HsiangNianian/aieda-bridge/internal/config"
)

// One bridge runs per process. Ensure creates and starts it on first use;
// Shutdown stops it and clears the slot so a later Ensure builds a fresh one.
var (
	processMu sync.Mutex
	process   *Bridge
)

func Ensure(ctx context.Context, cfg config.Config, host capability.Host, logger *slog.Logger) (*Bridge, error) {
	processMu.Lock()
	defer processMu.Unlock()
	if process != nil {
		return process, nil
	}
	b := New(cfg, host, logger)
	if err := b.Start(ctx); err != nil {
		b.Stop()
		return nil, err
	}
	process = b
	return b, nil
}

func Current() *Bridge {
	processMu.Lock()
	defer processMu.Unlock()
	return process
}

func Shutdown() {
	processMu.Lock()
	b := process
	process = nil
	processMu.Unlock()
	if b != nil {
		b.Stop()
	}
}
