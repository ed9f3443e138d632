package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-pos-ws/pkg/config"
	"go-pos-ws/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const (
	feedPrefix     = "feed"
	settingsPrefix = "settings"
)

// ErrCacheMiss is returned by Get when the key does not exist.
var ErrCacheMiss = errors.New("cache miss")

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Publish(context.Context, string, interface{}) *redis.IntCmd
	Set(context.Context, string, interface{}, time.Duration) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	Del(context.Context, ...string) *redis.IntCmd
}

// Client publishes transaction feed events to other API instances and
// caches store settings.
type Client struct {
	store  cmdable
	raw    *redis.Client
	prefix string
	log    *logger.Logger
}

// New connects to Redis and verifies connectivity.
func New(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (*Client, error) {
	if !cfg.Enabled() {
		return nil, errors.New("redis url is required")
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Client{store: raw, raw: raw, prefix: cfg.ChannelPrefix, log: log}, nil
}

// Publish sends payload on the feed channel of topic.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	if c == nil || c.store == nil {
		return errors.New("redis client not initialized")
	}
	return c.store.Publish(ctx, c.FeedChannel(topic), payload).Err()
}

// Set stores a value with an optional TTL.
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c == nil || c.store == nil {
		return errors.New("redis client not initialized")
	}
	return c.store.Set(ctx, key, value, ttl).Err()
}

// Get returns the value stored at key, or ErrCacheMiss.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if c == nil || c.store == nil {
		return "", errors.New("redis client not initialized")
	}
	value, err := c.store.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return value, err
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if c == nil || c.store == nil {
		return errors.New("redis client not initialized")
	}
	return c.store.Del(ctx, keys...).Err()
}

// Forward subscribes to every feed channel and hands each message to fn with
// its topic until ctx is cancelled. Messages published by this instance come
// back too; receivers must tolerate duplicates.
func (c *Client) Forward(ctx context.Context, fn func(topic string, payload []byte)) error {
	if c == nil || c.raw == nil {
		return errors.New("redis client not initialized")
	}
	pubsub := c.raw.PSubscribe(ctx, c.FeedChannel("*"))
	defer pubsub.Close()

	channelPrefix := c.FeedChannel("")
	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			fn(strings.TrimPrefix(msg.Channel, channelPrefix), []byte(msg.Payload))
		}
	}
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.store == nil {
		return errors.New("redis client not initialized")
	}
	return c.store.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if c == nil || c.raw == nil {
		return nil
	}
	return c.raw.Close()
}

func (c *Client) FeedChannel(topic string) string {
	return c.key(feedPrefix, topic)
}

func (c *Client) SettingsKey() string {
	return c.key(settingsPrefix, "store")
}

func (c *Client) key(parts ...string) string {
	prefix := c.prefix
	if prefix == "" {
		prefix = "pos"
	}
	return prefix + ":" + strings.Join(parts, ":")
}
