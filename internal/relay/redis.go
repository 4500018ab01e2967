// Package relay republishes created alerts on a Redis pub/sub channel so
// processes outside this one can follow them.
package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/hamed0406/sensoralert/internal/domain"
)

const DefaultChannel = "sensoralert.alerts"

// Message is the payload published per alert.
type Message struct {
	Event string       `json:"event"`
	Alert domain.Alert `json:"alert"`
}

type Redis struct {
	client  *redis.Client
	channel string
}

// NewRedis connects to addr and pings it.
func NewRedis(ctx context.Context, addr, channel string) (*Redis, error) {
	if channel == "" {
		channel = DefaultChannel
	}
	c := redis.NewClient(&redis.Options{Addr: addr})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &Redis{client: c, channel: channel}, nil
}

func (r *Redis) Channel() string { return r.channel }

// Publish is a fanout.SinkFunc.
func (r *Redis) Publish(ctx context.Context, a domain.Alert) error {
	b, err := json.Marshal(Message{Event: "alert.created", Alert: a})
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel, b).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
