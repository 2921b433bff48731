package data

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stake-plus/validai/src/types"
)

const (
	streamVerifications = "validai.verifications"
	streamMaxLen        = 10000
)

// ConnectRedis parses url and pings the server.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	rdb := redis.NewClient(opt)
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return rdb, nil
}

// EventPublisher appends a summary of every finished verification to a capped Redis stream.
type EventPublisher struct {
	rdb    *redis.Client
	stream string
}

func NewEventPublisher(rdb *redis.Client) *EventPublisher {
	return &EventPublisher{rdb: rdb, stream: streamVerifications}
}

func (p *EventPublisher) Publish(ctx context.Context, rec *VerificationRecord) error {
	if p == nil || p.rdb == nil {
		return nil
	}
	_, err := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: eventValues(rec),
	}).Result()
	return err
}

func eventValues(rec *VerificationRecord) map[string]any {
	v := map[string]any{
		"id":           rec.ID,
		"request_id":   rec.RequestID,
		"status":       rec.Status,
		"input_type":   rec.InputType,
		"processed_at": rec.ProcessedAt.Unix(),
	}
	if rec.Status == string(types.StatusSuccess) {
		v["classification"] = rec.Classification
		v["confidence"] = rec.ConfidencePercentage
	} else {
		v["error_code"] = rec.ErrorCode
	}
	if rec.ContentHash != "" {
		v["content_hash"] = rec.ContentHash
	}
	return v
}
