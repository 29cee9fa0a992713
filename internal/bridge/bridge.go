// Package bridge assembles the transport, dispatcher and adapter into one
// running instance.
package bridge

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/HsiangNianian/aieda-bridge/internal/adapter"
	"github.com/HsiangNianian/aieda-bridge/internal/capability"
	"github.com/HsiangNianian/aieda-bridge/internal/config"
	"github.com/HsiangNianian/aieda-bridge/internal/dispatch"
	"github.com/HsiangNianian/aieda-bridge/internal/protocol"
	"github.com/HsiangNianian/aieda-bridge/internal/store"
	"github.com/HsiangNianian/aieda-bridge/internal/ws"
)

const ClientName = "aieda-bridge"

type Bridge struct {
	cfg        config.Config
	logger     *slog.Logger
	sessionID  string
	adapter    adapter.Adapter
	dispatcher *dispatch.Dispatcher
	client     *ws.Client
	redis      *store.RedisLedger
}

// New probes host once and wires an adapter, a dispatcher and a transport
// client. A nil or incomplete host selects the mock adapter.
func New(cfg config.Config, host capability.Host, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	b := &Bridge{
		cfg:       cfg,
		logger:    logger,
		sessionID: uuid.NewString(),
		adapter:   adapter.Select(host),
	}
	if b.adapter.Type() == adapter.TypeMock {
		logger.Warn("host runtime unavailable, using mock adapter")
	} else {
		logger.Info("using host adapter", "adapter", b.adapter.Type())
	}

	b.dispatcher = dispatch.New(b.adapter,
		dispatch.WithPolicy(dispatch.Policy{
			AllowWriteActions:        cfg.Policy.AllowWriteActions,
			RequireWriteConfirmation: cfg.Policy.RequireWriteConfirmation,
		}),
		dispatch.WithLedger(b.ledger(), cfg.Ledger.TTL()),
		dispatch.WithLogger(logger),
	)

	b.client = ws.NewClient(ws.Config{
		URL:            cfg.Bridge.URL,
		Token:          cfg.Bridge.Token,
		ReconnectDelay: cfg.Bridge.ReconnectDelay(),
		PingInterval:   cfg.Bridge.PingInterval(),
		WriteTimeout:   cfg.Bridge.WriteTimeout(),
		Announce:       b.announce,
	}, b.dispatcher, logger)
	return b
}

func (b *Bridge) ledger() store.Ledger {
	if b.cfg.Ledger.RedisAddr == "" {
		return store.NewMemoryLedger()
	}
	r := store.NewRedisLedger(b.cfg.Ledger.RedisAddr)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Ping(ctx); err != nil {
		b.logger.Warn("redis ledger unreachable, using memory ledger", "addr", b.cfg.Ledger.RedisAddr, "error", err)
		_ = r.Close()
		return store.NewMemoryLedger()
	}
	b.logger.Info("use redis ledger", "addr", b.cfg.Ledger.RedisAddr)
	b.redis = r
	return r
}

func (b *Bridge) announce() any {
	actions := make([]string, 0, len(protocol.SupportedActions))
	for _, a := range protocol.SupportedActions {
		actions = append(actions, string(a))
	}
	return map[string]any{
		"client":           ClientName,
		"adapter":          b.adapter.Type(),
		"available":        b.adapter.IsAvailable(),
		"protocol_version": protocol.ProtocolVersion,
		"session_id":       b.sessionID,
		"actions":          actions,
	}
}

func (b *Bridge) Start(ctx context.Context) error {
	return b.client.Start(ctx)
}

// Stop closes the link and releases the ledger. It does not wait for host
// calls started by a command already in flight beyond that command's end.
func (b *Bridge) Stop() {
	b.client.Stop()
	if b.redis != nil {
		_ = b.redis.Close()
	}
}

func (b *Bridge) Adapter() adapter.Adapter { return b.adapter }

func (b *Bridge) Dispatcher() *dispatch.Dispatcher { return b.dispatcher }

func (b *Bridge) Client() *ws.Client { return b.client }

func (b *Bridge) SessionID() string { return b.sessionID }
