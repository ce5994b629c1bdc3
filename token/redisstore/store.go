// Package redisstore keeps the shared token store in Redis. Writes are
// published on a per-key channel so other windows refresh their mirror.
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/jrsteele09/mlredact-addin/token"
)

var _ token.Store = (*Store)(nil)

type Store struct {
	client *redis.Client
	prefix string
}

// New creates a new store backed by Redis.
func New(addr string, password string, db int) *Store {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewWithClient(rdb)
}

func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client, prefix: "mlredact:"}
}

func (s *Store) Name() string {
	return "redis"
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redisstore.Get: %w", err)
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.prefix+key, value, 0)
	pipe.Publish(ctx, s.channel(key), value)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redisstore.Set: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.prefix+key)
	pipe.Publish(ctx, s.channel(key), "")
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redisstore.Delete: %w", err)
	}
	return nil
}

func (s *Store) Subscribe(ctx context.Context, key string, fn func(string)) (func(), error) {
	sub := s.client.Subscribe(ctx, s.channel(key))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("redisstore.Subscribe: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range sub.Channel() {
			fn(msg.Payload)
		}
	}()

	return func() {
		sub.Close()
		<-done
	}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) channel(key string) string {
	return s.prefix + "changed:" + key
}
