// Package sessioncache persists per-call conversation state to Redis so
// history survives short process restarts. Each call owns exactly one key;
// writes are last-writer-wins because only that call's bridge ever writes it.
package sessioncache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/frontdeskai/switchboard/pkg/types"
)

// State is the cached conversation state for one call.
type State struct {
	History []types.ConversationTurn `json:"history"`
	Phase   types.Phase              `json:"phase"`
}

// Cache loads and saves per-call [State].
type Cache interface {
	// Load returns the state for callID. found is false for a brand-new
	// call; that is not an error.
	Load(ctx context.Context, callID string) (state State, found bool, err error)

	// Save overwrites the state for callID, refreshing its TTL.
	Save(ctx context.Context, callID string, state State) error
}

// Config configures the Redis-backed cache.
type Config struct {
	// Addr is the Redis host:port. Default "localhost:6379".
	Addr string

	// Password is optional.
	Password string

	// DB selects the Redis logical database.
	DB int

	// TTL is the per-key expiry, refreshed on every save. Default 2 hours.
	TTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.TTL <= 0 {
		c.TTL = 2 * time.Hour
	}
	return c
}

// Redis is the production [Cache] backed by go-redis.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Cache = (*Redis)(nil)

// Connect opens a Redis client and verifies the connection with a ping.
func Connect(ctx context.Context, cfg Config) (*Redis, error) {
	cfg = cfg.withDefaults()
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("sessioncache: ping %s: %w", cfg.Addr, err)
	}
	return &Redis{client: client, ttl: cfg.TTL}, nil
}

// Ping reports Redis reachability, for readiness probes.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Disconnect closes the underlying client.
func (r *Redis) Disconnect() error {
	return r.client.Close()
}

func key(callID string) string {
	return "call:" + callID
}

// Load implements [Cache].
func (r *Redis) Load(ctx context.Context, callID string) (State, bool, error) {
	data, err := r.client.Get(ctx, key(callID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("sessioncache: load %s: %w", callID, err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, false, fmt.Errorf("sessioncache: decode %s: %w", callID, err)
	}
	return st, true, nil
}

// Save implements [Cache].
func (r *Redis) Save(ctx context.Context, callID string, st State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("sessioncache: encode %s: %w", callID, err)
	}
	if err := r.client.Set(ctx, key(callID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("sessioncache: save %s: %w", callID, err)
	}
	return nil
}
