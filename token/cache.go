package token

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	interrors "github.com/jrsteele09/mlredact-addin/internal/errors"
	"github.com/jrsteele09/mlredact-addin/internal/logging"
)

// Cache is the token cache shared by the task pane and the auth dialog. The
// in-memory mirror is a cache-aside layer over one or more durable stores;
// every write goes to all of them and values published by other windows
// replace the mirror (last write wins).
type Cache struct {
	mu      sync.RWMutex
	current CachedToken
	stores  []Store
	key     string
	nowFunc func() time.Time

	watchMu  sync.Mutex
	watchers []func()
}

type CacheOption func(*Cache)

func WithCacheNowFunc(now func() time.Time) CacheOption {
	return func(c *Cache) {
		c.nowFunc = now
	}
}

func WithStorageKey(key string) CacheOption {
	return func(c *Cache) {
		c.key = key
	}
}

func NewCache(stores []Store, options ...CacheOption) *Cache {
	c := &Cache{
		stores: stores,
		key:    StorageKey,
	}
	for _, opt := range options {
		opt(c)
	}
	if c.nowFunc == nil {
		c.nowFunc = time.Now
	}
	return c
}

// GetValidToken reads the in-memory mirror only.
func (c *Cache) GetValidToken(skew time.Duration) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.current.Usable(c.nowFunc(), skew) {
		return "", false
	}
	return c.current.Value, true
}

// Current returns the mirrored token, valid or not.
func (c *Cache) Current() CachedToken {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Seed loads the mirror from the first store holding a usable token. It
// reports whether a usable token was found.
func (c *Cache) Seed(ctx context.Context) bool {
	now := c.nowFunc()
	for _, s := range c.stores {
		raw, ok, err := s.Get(ctx, c.key)
		if err != nil {
			log.Warn().Err(err).Str("store", s.Name()).Msg("token cache: seed read failed")
			continue
		}
		if !ok || raw == "" {
			continue
		}
		t := CachedToken{Value: raw, ExpiryEpochSeconds: ExpiryOf(raw)}
		if !t.Usable(now, 0) {
			continue
		}
		c.mu.Lock()
		if t.ExpiryEpochSeconds >= c.current.ExpiryEpochSeconds || !c.current.Usable(now, 0) {
			c.current = t
		}
		c.mu.Unlock()
		return true
	}
	return false
}

// Set decodes the token's expiry from its exp claim and persists it.
func (c *Cache) Set(ctx context.Context, raw string) error {
	exp := ExpiryOf(raw)
	if exp == 0 {
		return fmt.Errorf("token.Cache.Set: %w", interrors.ErrInvalidToken)
	}
	return c.SetWithExpiry(ctx, raw, time.Unix(exp, 0))
}

// SetWithExpiry stores an opaque token whose expiry is known out of band.
// The mirror is always updated; an error is returned only when no durable
// store accepted the write.
func (c *Cache) SetWithExpiry(ctx context.Context, raw string, expiry time.Time) error {
	if raw == "" {
		return fmt.Errorf("token.Cache.SetWithExpiry: %w", interrors.ErrInvalidToken)
	}
	c.mu.Lock()
	c.current = CachedToken{Value: raw, ExpiryEpochSeconds: expiry.Unix()}
	c.mu.Unlock()

	var errs []error
	for _, s := range c.stores {
		if err := s.Set(ctx, c.key, raw); err != nil {
			log.Warn().Err(err).Str("store", s.Name()).Str("token", logging.TokenDigest(raw)).Msg("token cache: write failed")
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	if len(c.stores) > 0 && len(errs) == len(c.stores) {
		return fmt.Errorf("token.Cache.SetWithExpiry: %w", errors.Join(errs...))
	}
	log.Debug().Str("token", logging.TokenDigest(raw)).Time("expiry", expiry).Msg("token cache: stored")
	return nil
}

// Clear drops the token from the mirror and every store.
func (c *Cache) Clear(ctx context.Context) {
	c.mu.Lock()
	c.current = CachedToken{}
	c.mu.Unlock()
	for _, s := range c.stores {
		if err := s.Delete(ctx, c.key); err != nil {
			log.Warn().Err(err).Str("store", s.Name()).Msg("token cache: delete failed")
		}
	}
}

// Watch subscribes the mirror to every store. Values written by other windows
// replace the mirror; an empty value clears it.
func (c *Cache) Watch(ctx context.Context) error {
	for _, s := range c.stores {
		store := s
		cancel, err := store.Subscribe(ctx, c.key, func(value string) {
			c.apply(value)
		})
		if err != nil {
			c.Close()
			return fmt.Errorf("token.Cache.Watch %s: %w", store.Name(), err)
		}
		c.watchMu.Lock()
		c.watchers = append(c.watchers, cancel)
		c.watchMu.Unlock()
	}
	return nil
}

// Close cancels every subscription started by Watch.
func (c *Cache) Close() {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	for _, cancel := range c.watchers {
		cancel()
	}
	c.watchers = nil
}

func (c *Cache) apply(value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if value == "" {
		c.current = CachedToken{}
		return
	}
	if value == c.current.Value {
		return
	}
	c.current = CachedToken{Value: value, ExpiryEpochSeconds: ExpiryOf(value)}
}
