// Package redisstore keeps OAuth states in Redis so callbacks can land on any node.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-social"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces the state keys.
const DefaultPrefix = "social:oauth_state"

// Config holds the connection settings used by NewClient.
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redisstore: ping failed: %w", err)
	}
	return rdb, nil
}

// Store implements social.StateStore on Redis keys with a TTL.
type Store struct {
	client redis.Cmdable
	prefix string
	now    func() time.Time
}

var _ social.StateStore = (*Store)(nil)

// New creates a store over client. An empty prefix uses DefaultPrefix.
func New(client redis.Cmdable, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix, now: time.Now}
}

func (s *Store) key(state string) string {
	return s.prefix + ":" + state
}

// Save implements social.StateStore. The key expires with the state.
func (s *Store) Save(ctx context.Context, state *social.OAuthState) error {
	if state == nil || state.State == "" {
		return social.ErrInvalidState
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("redisstore: encode state: %w", err)
	}

	ttl := state.ExpiresAt.Sub(s.now())
	if ttl < time.Second {
		ttl = time.Second
	}

	ok, err := s.client.SetNX(ctx, s.key(state.State), payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("redisstore: save state: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: state already issued", social.ErrInvalidState)
	}
	return nil
}

// Consume implements social.StateStore with GETDEL, so concurrent callbacks
// cannot both read the same state.
func (s *Store) Consume(ctx context.Context, state string) (*social.OAuthState, error) {
	raw, err := s.client.GetDel(ctx, s.key(state)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, social.ErrInvalidState
		}
		return nil, fmt.Errorf("redisstore: consume state: %w", err)
	}

	var out social.OAuthState
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("redisstore: decode state: %w", err)
	}
	return &out, nil
}
