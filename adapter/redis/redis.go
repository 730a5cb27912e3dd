// Package redis implements a Redis pub/sub adapter.
//
// Events are published as JSON to a channel. With a stream configured,
// each event is also appended to a capped Redis stream so consumers that
// were offline can catch up.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pithecene-io/bundlesync/adapter"
)

// DefaultChannel is the default pub/sub channel name.
const DefaultChannel = "bundlesync:events"

// DefaultTimeout is the default per-publish timeout.
const DefaultTimeout = 5 * time.Second

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 3

// DefaultStreamMaxLen caps the stream when one is configured.
const DefaultStreamMaxLen = 1000

// Config configures the Redis adapter.
type Config struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// Channel is the pub/sub channel name (default: bundlesync:events).
	Channel string
	// Stream, when set, is a stream key every event is also appended to.
	Stream string
	// StreamMaxLen caps the stream length (approximate trimming).
	StreamMaxLen int64
	// Timeout is the per-publish timeout (default 5s).
	Timeout time.Duration
	// Retries is the number of retry attempts on failure.
	Retries int
	// Backoff is the delay before the first retry (default adapter.BaseBackoff).
	Backoff time.Duration
}

// Adapter publishes events via Redis PUBLISH and, optionally, XADD.
type Adapter struct {
	config Config
	client *goredis.Client
}

// New creates a Redis adapter from the given config.
// Returns an error if the URL is empty or invalid.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis adapter requires a URL")
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis adapter: invalid URL: %w", err)
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}

	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = adapter.BaseBackoff
	}
	if cfg.Stream != "" && cfg.StreamMaxLen <= 0 {
		cfg.StreamMaxLen = DefaultStreamMaxLen
	}

	return &Adapter{
		config: cfg,
		client: goredis.NewClient(opts),
	}, nil
}

// Publish sends the event to the channel, and to the stream when configured.
func (a *Adapter) Publish(ctx context.Context, event *adapter.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}

	err = adapter.Retry(ctx, a.config.Retries, a.config.Backoff, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
		return a.send(ctx, event.EventType, body)
	})
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

func (a *Adapter) send(ctx context.Context, eventType string, body []byte) error {
	if a.config.Stream == "" {
		return a.client.Publish(ctx, a.config.Channel, body).Err()
	}

	pipe := a.client.Pipeline()
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: a.config.Stream,
		MaxLen: a.config.StreamMaxLen,
		Approx: true,
		Values: map[string]any{"event_type": eventType, "payload": string(body)},
	})
	pipe.Publish(ctx, a.config.Channel, body)
	_, err := pipe.Exec(ctx)
	return err
}

// Close releases adapter resources.
func (a *Adapter) Close() error {
	return a.client.Close()
}

var _ adapter.Adapter = (*Adapter)(nil)
