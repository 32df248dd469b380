// Package redisstore keeps each profile's session in one redis hash so several desk hosts can
// share it. Like the file store, concurrent writers race and the last write wins.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/go-underwriter/tokenstore"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var _ tokenstore.Store = (*Store)(nil)

const keyPrefix = "underwriter:"

// Config holds the configuration for the Redis client
type Config struct {
	Addr     string
	Password string
	DB       int
	Profile  string
	Timeout  time.Duration
}

type Store struct {
	client  *redis.Client
	hash    string
	timeout time.Duration
}

// NewClient builds a client and pings it so a bad address fails at startup rather than on first use.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("[redisstore NewClient] ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}

func New(client *redis.Client, profile string, timeout time.Duration) *Store {
	if profile == "" {
		profile = "default"
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Store{
		client:  client,
		hash:    keyPrefix + profile,
		timeout: timeout,
	}
}

func (s *Store) Get(key string) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	v, err := s.client.HGet(ctx, s.hash, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		log.Err(err).Str("hash", s.hash).Str("key", key).Msg("redisstore: get failed")
		return "", false
	}
	return v, true
}

func (s *Store) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.client.HSet(ctx, s.hash, key, value).Err(); err != nil {
		return fmt.Errorf("[redisstore Set] %s: %w", key, err)
	}
	return nil
}

func (s *Store) Remove(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.client.HDel(ctx, s.hash, key).Err(); err != nil {
		return fmt.Errorf("[redisstore Remove] %s: %w", key, err)
	}
	return nil
}
