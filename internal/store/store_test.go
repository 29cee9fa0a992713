package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HsiangNianian/aieda-bridge/internal/protocol"
)

func TestMemoryLedgerExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1000, 0)
	l := NewMemoryLedger()
	l.now = func() time.Time { return now }

	e := Entry{
		Fingerprint: "f1",
		Result:      protocol.MakeResult("cmd-1", protocol.Body{OK: true, Result: map[string]any{"applied": 1}}),
	}
	require.NoError(t, l.Record(ctx, "cmd-1", e, time.Minute))

	got, ok, err := l.Lookup(ctx, "cmd-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, e, got)

	now = now.Add(2 * time.Minute)
	_, ok, err = l.Lookup(ctx, "cmd-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisLedger(t *testing.T) {
	addr := os.Getenv("AIEDA_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("AIEDA_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	l := NewRedisLedger(addr)
	t.Cleanup(func() { _ = l.Close() })
	require.NoError(t, l.Ping(ctx))

	id := protocol.NewCommandID()
	res := protocol.MakeResult(id, protocol.Body{OK: true, Result: map[string]any{"applied": 2.0}})
	require.NoError(t, l.Record(ctx, id, Entry{Fingerprint: "f2", Result: res}, time.Minute))

	got, ok, err := l.Lookup(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "f2", got.Fingerprint)
	assert.True(t, got.Result.OK)
	assert.Equal(t, id, got.Result.ID)
	assert.Equal(t, 2.0, got.Result.Result.(map[string]any)["applied"])

	_, ok, err = l.Lookup(ctx, "missing-"+id)
	require.NoError(t, err)
	assert.False(t, ok)
}
