package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisLedger struct {
	client *redis.Client
}

func NewRedisLedger(addr string) *RedisLedger {
	return &RedisLedger{
		client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

func resultKey(commandID string) string { return "aieda:result:" + commandID }

func (r *RedisLedger) Lookup(ctx context.Context, commandID string) (Entry, bool, error) {
	raw, err := r.client.Get(ctx, resultKey(commandID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, false, fmt.Errorf("decode ledger entry %s: %w", commandID, err)
	}
	return e, true, nil
}

func (r *RedisLedger) Record(ctx context.Context, commandID string, e Entry, ttl time.Duration) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, resultKey(commandID), raw, ttl).Err()
}

func (r *RedisLedger) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisLedger) Close() error {
	return r.client.Close()
}
