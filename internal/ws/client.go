// Package ws keeps one websocket link to the controller alive and feeds
// every incoming message through a dispatcher.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/HsiangNianian/aieda-bridge/internal/protocol"
)

var (
	ErrNotOpen        = errors.New("websocket not open")
	ErrAlreadyStarted = errors.New("client already started")
	ErrStopped        = errors.New("client stopped")
)

// EventConnected is announced on every successful connect.
const EventConnected = "bridge_connected"

type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type Dispatcher interface {
	Dispatch(ctx context.Context, raw any) protocol.Result
}

type Config struct {
	URL            string
	Token          string
	ReconnectDelay time.Duration
	// PingInterval enables websocket keepalive pings. Zero disables them.
	PingInterval time.Duration
	WriteTimeout time.Duration
	// Announce builds the payload of the connected event.
	Announce func() any
}

type Client struct {
	cfg        Config
	dispatcher Dispatcher
	logger     *slog.Logger
	dialer     *websocket.Dialer

	state atomic.Int32

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}

	writeMu sync.Mutex
}

func NewClient(cfg Config, d Dispatcher, logger *slog.Logger) *Client {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 3 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		cfg:        cfg,
		dispatcher: d,
		logger:     logger,
		dialer:     websocket.DefaultDialer,
	}
}

// DialURL appends token as a query parameter when it is set.
func DialURL(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse bridge url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("bridge url %q: scheme must be ws or wss", base)
	}
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (c *Client) State() State { return State(c.state.Load()) }

func (c *Client) setState(s State) {
	for {
		cur := c.state.Load()
		if State(cur) == StateStopped {
			return
		}
		if c.state.CompareAndSwap(cur, int32(s)) {
			return
		}
	}
}

// Start launches the connect loop. It returns once the loop is running;
// connection failures are logged and retried, never returned.
func (c *Client) Start(ctx context.Context) error {
	target, err := DialURL(c.cfg.URL, c.cfg.Token)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.State() == StateStopped {
		return ErrStopped
	}
	if c.done != nil {
		return ErrAlreadyStarted
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(runCtx, target)
	return nil
}

// Stop cancels any pending reconnect, closes the link cleanly and waits for
// the message loop to exit. A command already being handled runs to
// completion; its result is dropped.
func (c *Client) Stop() {
	c.mu.Lock()
	cancel, done, conn := c.cancel, c.done, c.conn
	c.mu.Unlock()

	c.state.Store(int32(StateStopped))
	if cancel == nil {
		return
	}
	if conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bridge stopped")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	}
	cancel()
	<-done
}

// Done is closed when the connect loop has exited.
func (c *Client) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

func (c *Client) run(ctx context.Context, target string) {
	defer close(c.done)
	for {
		if ctx.Err() != nil {
			return
		}
		c.setState(StateConnecting)
		c.logger.Info("dial controller", "url", c.cfg.URL)
		conn, _, err := c.dialer.DialContext(ctx, target, c.header())
		if err != nil {
			c.setState(StateIdle)
			c.logger.Warn("connect controller failed", "error", err, "retry_in", c.cfg.ReconnectDelay)
		} else {
			c.serve(ctx, conn)
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("controller disconnected", "retry_in", c.cfg.ReconnectDelay)
		}
		if !c.wait(ctx) {
			return
		}
	}
}

func (c *Client) header() http.Header {
	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	return header
}

func (c *Client) wait(ctx context.Context) bool {
	t := time.NewTimer(c.cfg.ReconnectDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Client) serve(ctx context.Context, conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.setState(StateOpen)
	c.logger.Info("controller connected", "url", c.cfg.URL)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	defer func() {
		close(stop)
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		c.setState(StateIdle)
		_ = conn.Close()
		wg.Wait()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	extend := func() error {
		if c.cfg.PingInterval <= 0 {
			return nil
		}
		return conn.SetReadDeadline(time.Now().Add(2 * c.cfg.PingInterval))
	}
	if c.cfg.PingInterval > 0 {
		_ = extend()
		conn.SetPongHandler(func(string) error { return extend() })
		wg.Add(1)
		go c.keepalive(conn, stop, &wg)
	}

	var payload any
	if c.cfg.Announce != nil {
		payload = c.cfg.Announce()
	}
	if err := c.Send(protocol.MakeEvent(EventConnected, payload)); err != nil {
		c.logger.Warn("announce failed", "error", err)
	}

	// Handlers run outside the link's lifetime: a stop does not abort them.
	handleCtx := context.WithoutCancel(ctx)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("read controller failed", "error", err)
			}
			return
		}
		c.handle(handleCtx, data)
		// A slow handler keeps the read loop away from pongs.
		_ = extend()
	}
}

func (c *Client) keepalive(conn *websocket.Conn, stop <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	t := time.NewTicker(c.cfg.PingInterval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout)); err != nil {
				c.logger.Warn("keepalive ping failed", "error", err)
				_ = conn.Close()
				return
			}
		}
	}
}

func (c *Client) handle(ctx context.Context, data []byte) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		c.logger.Warn("invalid json from controller", "error", err, "size", len(data))
		res := protocol.Failure(protocol.NewErrorID(), "invalid JSON message", map[string]any{
			"name":  "ProtocolError",
			"code":  "InvalidJSON",
			"cause": err.Error(),
		})
		c.reply(res.ID, res)
		return
	}

	if obj, ok := raw.(map[string]any); ok {
		switch obj["type"] {
		case protocol.TypePing:
			id := protocol.ReadID(obj["id"])
			c.reply(id, protocol.MakePong(id))
			return
		case protocol.TypePong:
			return
		case protocol.TypeEvent:
			c.logger.Debug("ignoring controller event", "event", obj["event"])
			return
		}
	}

	res := c.dispatcher.Dispatch(ctx, protocol.AdaptLegacy(raw))
	c.reply(res.ID, res)
}

func (c *Client) reply(id string, v any) {
	if err := c.Send(v); err != nil {
		c.logger.Warn("send to controller failed", "id", id, "error", err)
		return
	}
	c.logger.Debug("sent to controller", "id", id)
}

// Send writes one envelope. It is a no-op returning ErrNotOpen while the
// link is down.
func (c *Client) Send(v any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil || c.State() != StateOpen {
		return ErrNotOpen
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return conn.WriteJSON(v)
}
