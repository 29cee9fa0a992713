package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HsiangNianian/aieda-bridge/internal/adapter"
	"github.com/HsiangNianian/aieda-bridge/internal/capability"
	"github.com/HsiangNianian/aieda-bridge/internal/config"
)

func controllerURL(t *testing.T, conns chan<- *websocket.Conn) string {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- conn
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestNewSelectsAdapter(t *testing.T) {
	b := New(config.Default(), nil, nil)
	assert.Equal(t, adapter.TypeMock, b.Adapter().Type())
	assert.NotEmpty(t, b.SessionID())

	host := capability.MapHost{
		capability.ComponentGetAll: func(context.Context, ...any) (any, error) { return []any{}, nil },
		capability.WireGetAll:      func(context.Context, ...any) (any, error) { return []any{}, nil },
	}
	b = New(config.Default(), host, nil)
	assert.Equal(t, adapter.TypeEasyEDA, b.Adapter().Type())
}

func TestEnsureAnnouncesAndShutsDown(t *testing.T) {
	conns := make(chan *websocket.Conn, 4)
	cfg := config.Default()
	cfg.Bridge.URL = controllerURL(t, conns)
	cfg.Bridge.ReconnectDelayMS = 20

	b, err := Ensure(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	t.Cleanup(Shutdown)

	again, err := Ensure(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	assert.Same(t, b, again)
	assert.Same(t, b, Current())

	var conn *websocket.Conn
	select {
	case conn = <-conns:
	case <-time.After(5 * time.Second):
		t.Fatal("bridge did not connect")
	}
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var hello map[string]any
	require.NoError(t, json.Unmarshal(data, &hello))
	payload := hello["payload"].(map[string]any)
	assert.Equal(t, ClientName, payload["client"])
	assert.Equal(t, adapter.TypeMock, payload["adapter"])
	assert.Equal(t, b.SessionID(), payload["session_id"])

	require.NoError(t, conn.WriteJSON(map[string]any{
		"id":      "u-1",
		"action":  "update_schema",
		"payload": map[string]any{"operations": []any{map[string]any{"kind": "create_wire", "input": map[string]any{"line": []any{0, 0, 10, 0}}}}},
	}))
	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	var res map[string]any
	require.NoError(t, json.Unmarshal(data, &res))
	assert.Equal(t, "u-1", res["id"])
	assert.Equal(t, false, res["ok"], "default policy asks for confirmation")

	Shutdown()
	assert.Nil(t, Current())
}
