package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

const (
	fieldData        = "data"
	fieldPublishedAt = "published_at"
)

// NewRedisClient parses a redis:// URL and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return client, nil
}

// RedisPublisher appends readings to a Redis stream.
type RedisPublisher struct {
	client *redis.Client
	stream string
}

func NewRedisPublisher(client *redis.Client, stream string) *RedisPublisher {
	return &RedisPublisher{client: client, stream: stream}
}

// Publish adds data to the stream and returns the entry id.
func (p *RedisPublisher) Publish(ctx context.Context, data []byte) (string, error) {
	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			fieldData:        string(data),
			fieldPublishedAt: time.Now().UTC().Format(time.RFC3339Nano),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("adding to stream %s: %w", p.stream, err)
	}
	return id, nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// RedisConsumerConfig configures a consumer-group reader.
type RedisConsumerConfig struct {
	Stream   string
	Group    string
	Consumer string
	// Count is the maximum number of entries read per poll.
	Count int64
	// Block is how long a poll waits for new entries. Negative means no wait.
	Block time.Duration
}

// RedisConsumer reads a stream through a consumer group. Entries are acked
// once handled; failed entries stay pending for another consumer.
type RedisConsumer struct {
	client *redis.Client
	cfg    RedisConsumerConfig
	logger zerolog.Logger
}

func NewRedisConsumer(client *redis.Client, cfg RedisConsumerConfig, logger zerolog.Logger) *RedisConsumer {
	if cfg.Count <= 0 {
		cfg.Count = 10
	}
	return &RedisConsumer{client: client, cfg: cfg, logger: logger}
}

// EnsureGroup creates the consumer group and the stream if needed.
func (c *RedisConsumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("creating consumer group %s: %w", c.cfg.Group, err)
	}
	return nil
}

// Poll reads one batch of new entries and hands each to handle. It returns
// the number of entries acknowledged.
func (c *RedisConsumer) Poll(ctx context.Context, handle Handler) (int, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.cfg.Stream, ">"},
		Count:    c.cfg.Count,
		Block:    c.cfg.Block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading stream %s: %w", c.cfg.Stream, err)
	}

	acked := 0
	for _, stream := range streams {
		for _, entry := range stream.Messages {
			msg := Message{ID: entry.ID}
			if data, ok := entry.Values[fieldData].(string); ok {
				msg.Data = []byte(data)
			}
			if ts, ok := entry.Values[fieldPublishedAt].(string); ok {
				msg.PublishTime, _ = time.Parse(time.RFC3339Nano, ts)
			}

			herr := handle(ctx, msg)
			if !shouldAck(herr) {
				c.logger.Warn().Err(herr).Str("entry_id", entry.ID).Msg("leaving entry pending")
				continue
			}
			if herr != nil {
				c.logger.Warn().Err(herr).Str("entry_id", entry.ID).Msg("dropping poison entry")
			}
			if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, entry.ID).Err(); err != nil {
				return acked, fmt.Errorf("acking entry %s: %w", entry.ID, err)
			}
			acked++
		}
	}
	return acked, nil
}

// Run polls until ctx is cancelled. Read errors are logged and retried after
// a short pause.
func (c *RedisConsumer) Run(ctx context.Context, handle Handler) error {
	if err := c.EnsureGroup(ctx); err != nil {
		return err
	}
	c.logger.Info().
		Str("stream", c.cfg.Stream).
		Str("group", c.cfg.Group).
		Str("consumer", c.cfg.Consumer).
		Msg("consuming")

	for {
		if ctx.Err() != nil {
			return nil
		}
		if _, err := c.Poll(ctx, handle); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error().Err(err).Msg("poll failed")
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (c *RedisConsumer) Close() error {
	return c.client.Close()
}
