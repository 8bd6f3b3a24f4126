// Package audit records every routed event into Redis streams for
// operational inspection. It is the catch-all observability sink the
// router fans out to; the scheduling path never depends on it.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/EducloudHQ/ai-writer-scheduler/internal/domain"
)

// DefaultRetention is how long audit streams are kept.
const DefaultRetention = 7 * 24 * time.Hour

// streamMaxLen caps each per-day stream to bound memory.
const streamMaxLen = 100_000

// RedisObserver appends an audit envelope for every observed event to
// a per-day Redis stream.
type RedisObserver struct {
	client    *redis.Client
	retention time.Duration
	clock     func() time.Time
}

// NewRedisObserver creates an observer writing to the given client.
func NewRedisObserver(client *redis.Client) *RedisObserver {
	return &RedisObserver{
		client:    client,
		retention: DefaultRetention,
		clock:     time.Now,
	}
}

// WithRetention overrides the stream retention period.
func (o *RedisObserver) WithRetention(d time.Duration) *RedisObserver {
	o.retention = d
	return o
}

// envelope is the stream entry payload.
type envelope struct {
	EntryID    string `json:"entryId"`
	Source     string `json:"source"`
	DetailType string `json:"detailType"`
	RecordID   string `json:"recordId"`
	UserID     string `json:"userId"`
	ObservedAt string `json:"observedAt"`
}

// Observe appends the event to the current day's audit stream.
func (o *RedisObserver) Observe(ctx context.Context, event domain.Event) error {
	now := o.clock().UTC()
	record := event.Detail.ScheduledContent

	body, err := json.Marshal(envelope{
		EntryID:    uuid.New().String(),
		Source:     event.Source,
		DetailType: event.DetailType,
		RecordID:   record.ID,
		UserID:     record.UserID,
		ObservedAt: now.Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	key := streamKey(now)

	pipe := o.client.Pipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: key,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{"event": string(body)},
	})
	pipe.Expire(ctx, key, o.retention)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}

func streamKey(t time.Time) string {
	return "audit:events:" + t.Format("20060102")
}
