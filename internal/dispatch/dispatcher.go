// Package dispatch turns decoded messages into result envelopes. Every
// failure raised while processing a command ends here as a failed result;
// nothing escapes to the transport.
package dispatch

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/zeebo/blake3"

	"github.com/HsiangNianian/aieda-bridge/internal/adapter"
	"github.com/HsiangNianian/aieda-bridge/internal/handler"
	"github.com/HsiangNianian/aieda-bridge/internal/protocol"
	"github.com/HsiangNianian/aieda-bridge/internal/store"
)

type Dispatcher struct {
	adapter   adapter.Adapter
	handlers  map[protocol.Action]handler.Func
	policy    Policy
	ledger    store.Ledger
	ledgerTTL time.Duration
	logger    *slog.Logger
}

type Option func(*Dispatcher)

func WithPolicy(p Policy) Option {
	return func(d *Dispatcher) { d.policy = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithLedger enables replay of completed write commands for ttl.
func WithLedger(l store.Ledger, ttl time.Duration) Option {
	return func(d *Dispatcher) {
		d.ledger = l
		d.ledgerTTL = ttl
	}
}

// WithHandlers replaces the handler table. Actions absent from it are
// rejected with a no-handler failure.
func WithHandlers(h map[protocol.Action]handler.Func) Option {
	return func(d *Dispatcher) { d.handlers = h }
}

func New(a adapter.Adapter, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		adapter:  a,
		handlers: handler.Registry(),
		policy:   DefaultPolicy(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) Adapter() adapter.Adapter { return d.adapter }

// Dispatch normalizes raw and runs it.
func (d *Dispatcher) Dispatch(ctx context.Context, raw any) protocol.Result {
	cmd, nerr := protocol.NormalizeIncoming(raw)
	if nerr != nil {
		d.logger.Warn("command rejected", "id", nerr.ID, "code", nerr.Code, "error", nerr.Message)
		return protocol.Failure(nerr.ID, nerr.Message, errorDetails(nerr))
	}
	return d.DispatchCommand(ctx, cmd)
}

func (d *Dispatcher) DispatchCommand(ctx context.Context, cmd protocol.Command) protocol.Result {
	fn, ok := d.handlers[cmd.Action]
	if !ok {
		d.logger.Warn("no handler", "id", cmd.ID, "action", cmd.Action)
		return protocol.Failure(cmd.ID, fmt.Sprintf("no handler registered for action %s", cmd.Action),
			map[string]any{"name": "NoHandler", "action": string(cmd.Action)})
	}

	if err := d.policy.Authorize(cmd); err != nil {
		d.logger.Warn("policy denied", "id", cmd.ID, "action", cmd.Action, "error", err)
		return protocol.Failure(cmd.ID, err.Error(), errorDetails(err))
	}

	guarded := d.ledger != nil && protocol.IsWriteAction(cmd.Action) && !isDryRun(cmd)
	var digest string
	if guarded {
		digest = fingerprint(cmd)
		prev, found, err := d.ledger.Lookup(ctx, cmd.ID)
		switch {
		case err != nil:
			d.logger.Warn("ledger lookup failed", "id", cmd.ID, "error", err)
		case found && prev.Fingerprint == digest:
			d.logger.Info("replaying completed command", "id", cmd.ID, "action", cmd.Action)
			return replayed(prev.Result)
		case found:
			d.logger.Warn("command id reused for a different command", "id", cmd.ID, "action", cmd.Action)
		}
	}

	res := d.execute(ctx, cmd, fn)

	if guarded && res.OK {
		entry := store.Entry{Fingerprint: digest, Result: res}
		if err := d.ledger.Record(ctx, cmd.ID, entry, d.ledgerTTL); err != nil {
			d.logger.Warn("ledger record failed", "id", cmd.ID, "error", err)
		}
	}
	return res
}

func (d *Dispatcher) execute(ctx context.Context, cmd protocol.Command, fn handler.Func) (res protocol.Result) {
	start := time.Now()
	env := handler.Env{Command: cmd, Adapter: d.adapter}

	defer func() {
		if r := recover(); r != nil {
			elapsed := time.Since(start).Milliseconds()
			d.logger.Error("handler panic", "id", cmd.ID, "action", cmd.Action, "panic", r)
			res = protocol.MakeResult(cmd.ID, protocol.Body{
				DurationMS: elapsed,
				Error:      fmt.Sprintf("handler panic: %v", r),
				Details:    map[string]any{"name": "Panic", "stack": string(debug.Stack())},
			})
		}
	}()

	out, err := fn(ctx, cmd.Payload, env)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		d.logger.Error("handler failed", "id", cmd.ID, "action", cmd.Action, "duration_ms", elapsed, "error", err)
		return protocol.MakeResult(cmd.ID, protocol.Body{DurationMS: elapsed, Error: err.Error(), Details: errorDetails(err)})
	}
	d.logger.Info("handler completed", "id", cmd.ID, "action", cmd.Action, "duration_ms", elapsed)
	return protocol.MakeResult(cmd.ID, protocol.Body{OK: true, DurationMS: elapsed, Result: out})
}

func isDryRun(cmd protocol.Command) bool {
	if cmd.Meta.DryRun {
		return true
	}
	v, _ := cmd.Payload["dry_run"].(bool)
	return v
}

// fingerprint identifies a command by what it asks for, independent of its id.
func fingerprint(cmd protocol.Command) string {
	raw, err := json.Marshal(map[string]any{
		"action":  cmd.Action,
		"payload": cmd.Payload,
		"meta":    cmd.Meta,
	})
	if err != nil {
		return ""
	}
	sum := blake3.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func replayed(prev protocol.Result) protocol.Result {
	details := map[string]any{"replayed": true}
	if m, ok := prev.Details.(map[string]any); ok {
		for k, v := range m {
			details[k] = v
		}
		details["replayed"] = true
	}
	prev.Details = details
	return prev
}

type detailer interface {
	Details() map[string]any
}

// errorDetails describes err for the result envelope: its class, the
// messages along its wrap chain and any fields the error carries.
func errorDetails(err error) map[string]any {
	details := map[string]any{}
	var d detailer
	if errors.As(err, &d) {
		for k, v := range d.Details() {
			details[k] = v
		}
	}
	details["name"] = errorName(err)
	var chain []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		chain = append(chain, e.Error())
	}
	if len(chain) > 1 {
		details["chain"] = chain
	}
	return details
}

func errorName(err error) string {
	var (
		normErr   *protocol.NormalizeError
		policyErr *PolicyError
		batchErr  *handler.BatchItemError
		validErr  *handler.ValidationError
		inputErr  *adapter.InputError
		capErr    *adapter.CapabilityError
		hostErr   *adapter.HostCallError
		createErr *adapter.CreateComponentError
	)
	switch {
	case errors.As(err, &normErr):
		return "ProtocolError"
	case errors.As(err, &policyErr):
		return "PolicyDenied"
	case errors.As(err, &batchErr):
		return "BatchItemError"
	case errors.As(err, &validErr), errors.As(err, &inputErr):
		return "ValidationError"
	case errors.As(err, &capErr):
		return "CapabilityError"
	case errors.As(err, &hostErr), errors.As(err, &createErr):
		return "HostCallError"
	case errors.Is(err, adapter.ErrNotFound):
		return "NotFound"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "Canceled"
	default:
		return "Error"
	}
}
