package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisBridge spreads the presence bus across server replicas via a Redis
// pub/sub channel. Publish goes to Redis only; a background forwarder feeds
// every received payload (including this replica's own) into the local Hub,
// so each replica's subscribers see the full event stream exactly as a
// single-process deployment would.
type RedisBridge struct {
	rdb     *redis.Client
	channel string
	hub     *Hub
}

// NewRedisBridge connects to Redis and verifies the connection with a ping.
func NewRedisBridge(addr, channel string, hub *Hub) (*RedisBridge, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("bus: missing redis address")
	}
	if strings.TrimSpace(channel) == "" {
		channel = "yamifit.events"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("bus: redis ping: %w", err)
	}

	return &RedisBridge{rdb: rdb, channel: channel, hub: hub}, nil
}

// Publish marshals the event and sends it to the shared channel. On a Redis
// failure the event is delivered to the local hub directly so single-replica
// consumers keep working while the bridge is down.
func (b *RedisBridge) Publish(ctx context.Context, ev Event) {
	raw, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("event_type", ev.Type).Msg("bus: marshal event")
		return
	}
	if err := b.rdb.Publish(ctx, b.channel, raw).Err(); err != nil {
		log.Warn().Err(err).Msg("bus: redis publish failed, delivering locally")
		b.hub.Publish(ctx, ev)
	}
}

// Start subscribes to the shared channel and forwards every payload into the
// local hub until ctx is cancelled. It returns once the subscription is
// confirmed.
func (b *RedisBridge) Start(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("bus: redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					log.Warn().Err(err).Msg("bus: bad redis payload")
					continue
				}
				b.hub.Publish(ctx, ev)
			}
		}
	}()

	return nil
}

// Close releases the Redis connection.
func (b *RedisBridge) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
