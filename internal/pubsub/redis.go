package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannel is the Redis channel events are relayed on.
const DefaultChannel = "eddez:events"

// Connect parses a redis:// URL and verifies the server is reachable.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// RedisBridge publishes events through Redis so every server process
// re-broadcasts them to its own hub.
type RedisBridge struct {
	rdb     *redis.Client
	channel string
	hub     *Hub
	logger  *zap.Logger
}

// NewRedisBridge relays events between rdb and hub.
func NewRedisBridge(rdb *redis.Client, channel string, hub *Hub, logger *zap.Logger) *RedisBridge {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBridge{
		rdb:     rdb,
		channel: channel,
		hub:     hub,
		logger:  logger.With(zap.String("component", "redis-bridge"), zap.String("channel", channel)),
	}
}

// Publish sends evt to every process subscribed to the channel, this one
// included.
func (b *RedisBridge) Publish(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Run forwards channel messages to the local hub until ctx is done.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.logger.Info("relaying events")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var evt Event
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				b.logger.Warn("discarding malformed event", zap.Error(err))
				continue
			}
			b.hub.Broadcast(evt)
		}
	}
}
