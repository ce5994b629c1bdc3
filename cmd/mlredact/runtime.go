package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/mlredact-addin/auth"
	"github.com/jrsteele09/mlredact-addin/internal/config"
	"github.com/jrsteele09/mlredact-addin/redaction"
	"github.com/jrsteele09/mlredact-addin/token"
	"github.com/jrsteele09/mlredact-addin/token/redisstore"
	"github.com/jrsteele09/mlredact-addin/token/refresh"
	"github.com/jrsteele09/mlredact-addin/token/sqlitestore"
	"github.com/jrsteele09/mlredact-addin/token/storefake"
)

// runtime is the wired add-in core for one CLI invocation. Sign-in is
// silent only: there is no host to open a dialog in.
type runtime struct {
	config   config.Config
	store    token.Store
	closer   func() error
	cache    *token.Cache
	accounts *refresh.StoreRepo
	manager  *refresh.Manager
	provider *auth.Provider
	client   *redaction.Client
}

func newRuntime(ctx context.Context, c config.Config) (*runtime, error) {
	store, closer, err := openStore(ctx, c)
	if err != nil {
		return nil, err
	}
	rt := &runtime{
		config:   c,
		store:    store,
		closer:   closer,
		cache:    token.NewCache([]token.Store{store}),
		accounts: refresh.NewStoreRepo(store),
	}

	var refresher auth.Refresher
	if clientID := c.GetClientID(); clientID != "" {
		endpoint := refresh.EndpointFor(ctx, c.GetAuthority(), c.GetTenantID())
		oauthConfig := refresh.NewOAuthConfig(clientID, endpoint, scopes(c)...)
		rt.manager = refresh.NewManager(rt.accounts, oauthConfig, rt.cache)
		refresher = rt.manager
	} else {
		log.Debug().Msg("AAD_CLIENT_ID not set, silent refresh disabled")
	}
	rt.provider = auth.NewProvider(rt.cache, refresher)

	rt.client = redaction.NewClient(c.GetAPIBaseURL(), c.GetSubscriptionKey(),
		redaction.WithTokenSource(rt.provider),
		redaction.WithTimeout(c.GetAPITimeout()),
		redaction.WithBackoff(c.GetRetryBackoff()),
	)
	return rt, nil
}

func (rt *runtime) Close() {
	if rt.manager != nil {
		rt.manager.Stop()
	}
	rt.cache.Close()
	if rt.closer != nil {
		if err := rt.closer(); err != nil {
			log.Warn().Err(err).Str("store", rt.store.Name()).Msg("token store close failed")
		}
	}
}

func scopes(c config.Config) []string {
	if s := c.GetAPIScope(); s != "" {
		return []string{s}
	}
	return nil
}

func openStore(ctx context.Context, c config.Config) (token.Store, func() error, error) {
	switch kind := c.GetTokenStore(); kind {
	case "memory":
		return storefake.NewFakeStore("memory"), nil, nil
	case "sqlite":
		path := c.GetTokenStorePath()
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, nil, fmt.Errorf("sqlite token store: %w", err)
		}
		s, err := sqlitestore.Open(ctx, path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "redis":
		s := redisstore.New(c.GetRedisAddr(), c.GetRedisPassword(), c.GetRedisDB())
		if err := s.Ping(ctx); err != nil {
			s.Close()
			return nil, nil, fmt.Errorf("redis token store: %w", err)
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown TOKEN_STORE %q", kind)
	}
}
