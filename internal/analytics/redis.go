// Package analytics keeps daily per-source import counters in Redis.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/FuJacob/mapletenders-sub000/internal/domain"
)

const dayLayout = "20060102"

type RedisSink struct {
	client    *redis.Client
	retention time.Duration
}

func NewRedisSink(client *redis.Client, retention time.Duration) *RedisSink {
	return &RedisSink{client: client, retention: retention}
}

// RecordImport adds imported to the source's counter for the day of at.
// Errors are logged and dropped.
func (s *RedisSink) RecordImport(ctx context.Context, source domain.SourceKind, imported int, at time.Time) {
	if err := s.Write(ctx, source, imported, at); err != nil {
		log.Printf("analytics: source=%s: %v", source, err)
	}
}

func (s *RedisSink) Write(ctx context.Context, source domain.SourceKind, imported int, at time.Time) error {
	key := buildKey(source, at)

	pipe := s.client.Pipeline()
	pipe.IncrBy(ctx, key, int64(imported))
	pipe.Expire(ctx, key, s.retention)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}

	return nil
}

// DayCount is the number of tenders imported for a source on one UTC day.
type DayCount struct {
	Day      string `json:"day"`
	Imported int64  `json:"imported"`
}

// Recent returns counters for the last days UTC days ending at now, oldest
// first. Missing days count as zero.
func (s *RedisSink) Recent(ctx context.Context, source domain.SourceKind, now time.Time, days int) ([]DayCount, error) {
	if days <= 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, days)
	out := make([]DayCount, days)
	for i := 0; i < days; i++ {
		at := now.AddDate(0, 0, i-days+1)
		out[i].Day = at.UTC().Format("2006-01-02")
		cmds[i] = pipe.Get(ctx, buildKey(source, at))
	}

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis pipeline: %w", err)
	}

	for i, cmd := range cmds {
		n, err := cmd.Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("read %s: %w", out[i].Day, err)
		}
		out[i].Imported = n
	}
	return out, nil
}

func buildKey(source domain.SourceKind, t time.Time) string {
	return fmt.Sprintf("tenders:imported:%s:%s", source, t.UTC().Format(dayLayout))
}
