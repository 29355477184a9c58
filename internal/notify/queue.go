package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/nidhogg/lovebook/internal/content"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const queueKey = "lovebook:notifications"

// Queue is a Redis sorted set of pending notifications scored by their
// event date in unix milliseconds.
type Queue struct {
	rdb    *redis.Client
	key    string
	logger *zap.Logger
}

// NewQueue connects to Redis and returns a ready Queue.
func NewQueue(ctx context.Context, redisURL string, logger *zap.Logger) (*Queue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Queue{rdb: rdb, key: queueKey, logger: logger}, nil
}

// Delivery is a queued notification together with how many delivery
// attempts have already failed.
type Delivery struct {
	Notification *content.Notification `json:"notification"`
	Attempts     int                   `json:"attempts,omitempty"`
}

// Schedule queues n for delivery at its event date. Notifications without
// an event date are ignored.
func (q *Queue) Schedule(ctx context.Context, n *content.Notification) error {
	if n.EventDate == nil {
		return nil
	}
	return q.Requeue(ctx, &Delivery{Notification: n}, *n.EventDate)
}

// Requeue queues d for delivery at the given time.
func (q *Queue) Requeue(ctx context.Context, d *Delivery, at time.Time) error {
	id := d.Notification.ID
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal notification %s: %w", id, err)
	}

	err = q.rdb.ZAdd(ctx, q.key, redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: string(data),
	}).Err()
	if err != nil {
		return fmt.Errorf("schedule notification %s: %w", id, err)
	}

	q.logger.Debug("notification scheduled",
		zap.String("id", id),
		zap.Time("at", at),
		zap.Int("attempts", d.Attempts))
	return nil
}

// Due claims up to limit deliveries scheduled at or before now. Each member
// is claimed with ZREM, so concurrent callers never receive the same
// notification. On error, the deliveries claimed so far are still returned
// and the caller owns them.
func (q *Queue) Due(ctx context.Context, now time.Time, limit int) ([]*Delivery, error) {
	members, err := q.rdb.ZRangeByScore(ctx, q.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list due notifications: %w", err)
	}

	var due []*Delivery
	for _, m := range members {
		removed, err := q.rdb.ZRem(ctx, q.key, m).Result()
		if err != nil {
			return due, fmt.Errorf("claim notification: %w", err)
		}
		if removed == 0 {
			continue // claimed by another dispatcher
		}
		var d Delivery
		if err := json.Unmarshal([]byte(m), &d); err != nil || d.Notification == nil {
			q.logger.Warn("dropping malformed queue entry", zap.String("member", m), zap.Error(err))
			continue
		}
		due = append(due, &d)
	}
	return due, nil
}

// Pending returns the number of queued notifications.
func (q *Queue) Pending(ctx context.Context) (int64, error) {
	return q.rdb.ZCard(ctx, q.key).Result()
}

// Close shuts down the Redis connection.
func (q *Queue) Close() error {
	return q.rdb.Close()
}
