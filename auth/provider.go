// Package auth is the single entry point for access tokens: cache first, then
// silent refresh, then the interactive dialog when the caller allows it.
package auth

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/jrsteele09/mlredact-addin/auth/dialog"
	interrors "github.com/jrsteele09/mlredact-addin/internal/errors"
	"github.com/jrsteele09/mlredact-addin/internal/logging"
	"github.com/jrsteele09/mlredact-addin/token"
	"github.com/jrsteele09/mlredact-addin/token/refresh"
)

// Refresher acquires a token without UI; *refresh.Manager implements it.
type Refresher interface {
	Refresh(ctx context.Context) (token.CachedToken, error)
}

// Interactive shows sign-in UI; *dialog.Bridge implements it.
type Interactive interface {
	Open(ctx context.Context) (string, error)
}

type Options struct {
	AllowInteractive bool
}

type Provider struct {
	cache       *token.Cache
	refresher   Refresher
	interactive Interactive

	refreshTimeout time.Duration
	silent         singleflight.Group
}

type ProviderOption func(*Provider)

// WithInteractive enables the dialog fallback.
func WithInteractive(i Interactive) ProviderOption {
	return func(p *Provider) {
		p.interactive = i
	}
}

// silentRefreshTimeout bounds one shared silent refresh, which runs detached
// from the caller that started it.
const silentRefreshTimeout = 30 * time.Second

func NewProvider(cache *token.Cache, refresher Refresher, options ...ProviderOption) *Provider {
	p := &Provider{cache: cache, refresher: refresher, refreshTimeout: silentRefreshTimeout}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// GetValidToken returns the cached token when it is still usable. It never
// touches the network.
func (p *Provider) GetValidToken() (string, bool) {
	return p.cache.GetValidToken(token.CacheSkew)
}

// GetAccessToken returns a token usable for at least AcquireSkew. When silent
// refresh needs the user, the dialog is shown only if opts allows it;
// otherwise the error wraps ErrInteractiveDisabled.
func (p *Provider) GetAccessToken(ctx context.Context, opts Options) (string, error) {
	if tok, ok := p.cache.GetValidToken(token.AcquireSkew); ok {
		return tok, nil
	}
	if p.cache.Seed(ctx) {
		if tok, ok := p.cache.GetValidToken(token.AcquireSkew); ok {
			return tok, nil
		}
	}

	tok, err := p.refreshSilently(ctx)
	if err == nil {
		return tok, nil
	}
	if !refresh.IsInteractionRequired(err) {
		return "", errors.Wrap(err, "Provider.GetAccessToken Refresh")
	}
	if !opts.AllowInteractive || p.interactive == nil {
		return "", errors.Wrap(interrors.ErrInteractiveDisabled, err.Error())
	}

	log.Info().Msg("auth: silent refresh needs the user, opening sign-in dialog")
	tok, err = p.interactive.Open(ctx)
	if err != nil {
		return "", errors.Wrap(err, "Provider.GetAccessToken Open")
	}
	return tok, nil
}

// ForceRefresh skips the cache and refreshes silently.
func (p *Provider) ForceRefresh(ctx context.Context) (string, error) {
	return p.refreshSilently(ctx)
}

// WarmUp acquires a token in the background without UI. Failures are logged
// and dropped.
func (p *Provider) WarmUp(ctx context.Context) {
	tok, err := p.GetAccessToken(ctx, Options{AllowInteractive: false})
	if err != nil {
		log.Debug().Err(err).Msg("auth: warm-up found no token")
		return
	}
	log.Debug().Str("token", logging.TokenDigest(tok)).Msg("auth: warm-up ready")
}

// Token is GetAccessToken with interaction allowed unless ctx was marked
// non-interactive.
func (p *Provider) Token(ctx context.Context) (string, error) {
	return p.GetAccessToken(ctx, Options{AllowInteractive: !dialog.IsNonInteractive(ctx)})
}

// Refresh is ForceRefresh under the name the API client expects.
func (p *Provider) Refresh(ctx context.Context) (string, error) {
	return p.ForceRefresh(ctx)
}

func (p *Provider) refreshSilently(ctx context.Context) (string, error) {
	if p.refresher == nil {
		return "", interrors.ErrNoAccount
	}
	// The flight outlives any single caller; each caller waits on its own ctx.
	ch := p.silent.DoChan("silent", func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.refreshTimeout)
		defer cancel()
		ct, err := p.refresher.Refresh(runCtx)
		if err != nil {
			return "", err
		}
		return ct.Value, nil
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return "", r.Err
		}
		return r.Val.(string), nil
	}
}
