// Package redissink mirrors presence snapshots onto a Redis pub/sub channel
// so dashboards served by other processes can follow the roster.
package redissink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BrandonDHaskell/eventgate/server/internal/eventgate/types"
)

const DefaultChannel = "eventgate:presence"

// Config holds the connection parameters for NewClient.
type Config struct {
	URL          string
	DialTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewClient parses cfg.URL and pings the server.  It returns nil, nil when
// no URL is configured.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// Sink publishes every snapshot as JSON on one channel.
type Sink struct {
	client  redis.UniversalClient
	channel string
}

func New(client redis.UniversalClient, channel string) *Sink {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Sink{client: client, channel: channel}
}

func (s *Sink) Name() string { return "redis" }

func (s *Sink) Channel() string { return s.channel }

func (s *Sink) Publish(ctx context.Context, snap types.Snapshot) error {
	payload, err := Encode(snap)
	if err != nil {
		return err
	}
	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", s.channel, err)
	}
	return nil
}

// Encode is the wire form shared with HTTP clients.
func Encode(snap types.Snapshot) ([]byte, error) {
	b, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return b, nil
}

// Decode is the inverse of Encode, for consumers of the channel.
func Decode(payload []byte) (types.Snapshot, error) {
	var snap types.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return types.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}
