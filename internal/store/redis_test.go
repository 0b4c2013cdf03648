package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/signal"
)

func TestNewRedisDefaults(t *testing.T) {
	r := NewRedis(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}), "", "", 0)
	defer r.Close()
	assert.Equal(t, "pairbot:records", r.stream)
	assert.Equal(t, "pairbot:records:pub", r.channel)
}

func TestStreamValues(t *testing.T) {
	ts := time.Date(2018, 10, 1, 1, 0, 0, 0, time.UTC)
	rec := signal.Record{RunID: "r1", Ts: ts, AReturn: 0.1, ZScore: 2}
	payload, err := json.Marshal(rec)
	require.NoError(t, err)

	v := streamValues(rec, payload)
	assert.Equal(t, "r1", v["run_id"])
	assert.Equal(t, ts.UnixMilli(), v["ts_ms"])
	assert.JSONEq(t, string(payload), v["payload"].(string))
}

func TestRecordFailsWithoutServer(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond, MaxRetries: -1})
	r := NewRedis(rdb, "s", "c", 10)
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.Error(t, r.Record(ctx, signal.Record{RunID: "r1"}))
}
