package report

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"minibet/internal/game"
)

// RedisStream appends reports to a capped Redis stream for host-side
// consumers.
type RedisStream struct {
	rdb    *redis.Client
	stream string
	maxLen int64
}

func NewRedisStream(rdb *redis.Client, stream string, maxLen int64) *RedisStream {
	if stream == "" {
		stream = "minibet:reports"
	}
	if maxLen <= 0 {
		maxLen = 10_000
	}
	return &RedisStream{rdb: rdb, stream: stream, maxLen: maxLen}
}

func (s *RedisStream) Name() string { return "redis" }

func (s *RedisStream) Send(ctx context.Context, r game.Report) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}
	err = s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]any{
			"action":  r.Action,
			"user_id": r.RawUserID,
			"payload": string(raw),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis: xadd %s: %w", s.stream, err)
	}
	return nil
}
