package store

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/signal"
)

// Redis publishes diagnostics to a capped stream and a pub/sub channel.
type Redis struct {
	rdb     *redis.Client
	stream  string
	channel string
	maxLen  int64
}

func NewRedis(rdb *redis.Client, stream, channel string, maxLen int64) *Redis {
	if strings.TrimSpace(stream) == "" {
		stream = "pairbot:records"
	}
	if strings.TrimSpace(channel) == "" {
		channel = stream + ":pub"
	}
	return &Redis{rdb: rdb, stream: stream, channel: channel, maxLen: maxLen}
}

// Record appends rec to the stream, then publishes its JSON form.
func (r *Redis) Record(ctx context.Context, rec signal.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	args := &redis.XAddArgs{
		Stream: r.stream,
		Values: streamValues(rec, payload),
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}
	if err := r.rdb.XAdd(ctx, args).Err(); err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.channel, payload).Err()
}

func (r *Redis) Close() error { return r.rdb.Close() }

func streamValues(rec signal.Record, payload []byte) map[string]any {
	return map[string]any{
		"run_id":  rec.RunID,
		"ts_ms":   rec.Ts.UnixMilli(),
		"payload": string(payload),
	}
}
