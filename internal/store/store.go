// Package store keeps the results of completed write commands so a command
// redelivered after a reconnect is answered instead of applied twice.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/HsiangNianian/aieda-bridge/internal/protocol"
)

// Entry is a completed command. Fingerprint identifies what was asked so a
// reused id carrying a different command is not answered with this result.
type Entry struct {
	Fingerprint string          `json:"fingerprint"`
	Result      protocol.Result `json:"result"`
}

type Ledger interface {
	Lookup(ctx context.Context, commandID string) (Entry, bool, error)
	Record(ctx context.Context, commandID string, e Entry, ttl time.Duration) error
}

type entry struct {
	Entry
	expireAt time.Time
}

type MemoryLedger struct {
	mu      sync.Mutex
	now     func() time.Time
	results map[string]entry
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		now:     time.Now,
		results: make(map[string]entry),
	}
}

func (m *MemoryLedger) Lookup(_ context.Context, commandID string) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.results[commandID]
	if !ok {
		return Entry{}, false, nil
	}
	if !m.now().Before(e.expireAt) {
		delete(m.results, commandID)
		return Entry{}, false, nil
	}
	return e.Entry, true, nil
}

func (m *MemoryLedger) Record(_ context.Context, commandID string, e Entry, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for id, old := range m.results {
		if !now.Before(old.expireAt) {
			delete(m.results, id)
		}
	}
	m.results[commandID] = entry{Entry: e, expireAt: now.Add(ttl)}
	return nil
}
