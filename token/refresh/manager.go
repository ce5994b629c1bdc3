package refresh

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	interrors "github.com/jrsteele09/mlredact-addin/internal/errors"
	"github.com/jrsteele09/mlredact-addin/internal/logging"
	"github.com/jrsteele09/mlredact-addin/token"
)

// interactionCodes are OAuth error codes that can only be resolved by the user
// signing in again.
var interactionCodes = map[string]struct{}{
	"interaction_required": {},
	"login_required":       {},
	"consent_required":     {},
	"invalid_grant":        {},
}

// TokenSink receives freshly acquired tokens; *token.Cache implements it.
type TokenSink interface {
	SetWithExpiry(ctx context.Context, raw string, expiry time.Time) error
}

// Manager acquires access tokens silently from the held account and keeps one
// proactive renewal scheduled ahead of expiry.
type Manager struct {
	accounts       Repo
	oauth          *oauth2.Config
	sink           TokenSink
	scheduler      *Scheduler
	nowFunc        func() time.Time
	renewalTimeout time.Duration
	flight         singleflight.Group
}

type ManagerOption func(*Manager)

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func WithScheduler(s *Scheduler) ManagerOption {
	return func(m *Manager) {
		m.scheduler = s
	}
}

func WithRenewalTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.renewalTimeout = d
	}
}

func NewManager(accounts Repo, oauthConfig *oauth2.Config, sink TokenSink, options ...ManagerOption) *Manager {
	m := &Manager{
		accounts: accounts,
		oauth:    oauthConfig,
		sink:     sink,
	}
	for _, opt := range options {
		opt(m)
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	if m.scheduler == nil {
		m.scheduler = NewScheduler(nil)
	}
	if m.renewalTimeout == 0 {
		m.renewalTimeout = 30 * time.Second
	}
	return m
}

// Refresh always contacts the token endpoint. Errors the user can fix by
// signing in wrap ErrInteractionRequired (or ErrNoAccount); all others are
// returned as they are. Concurrent calls, the proactive renewal included,
// share one request.
func (m *Manager) Refresh(ctx context.Context) (token.CachedToken, error) {
	ch := m.flight.DoChan("refresh", func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.renewalTimeout)
		defer cancel()
		return m.refresh(runCtx)
	})
	select {
	case <-ctx.Done():
		return token.CachedToken{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return token.CachedToken{}, r.Err
		}
		return r.Val.(token.CachedToken), nil
	}
}

func (m *Manager) refresh(ctx context.Context) (token.CachedToken, error) {
	account, err := m.accounts.Active()
	if err != nil {
		return token.CachedToken{}, err
	}
	if account.RefreshToken == "" {
		return token.CachedToken{}, errors.Wrap(interrors.ErrInteractionRequired, "Manager.Refresh no refresh token")
	}

	src := m.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: account.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		if IsInteractionRequired(err) {
			return token.CachedToken{}, errors.Wrap(interrors.ErrInteractionRequired, err.Error())
		}
		return token.CachedToken{}, errors.Wrap(err, "Manager.Refresh Token")
	}

	if tok.RefreshToken != "" && tok.RefreshToken != account.RefreshToken {
		rotated := *account
		rotated.RefreshToken = tok.RefreshToken
		if err := m.accounts.Upsert(&rotated); err != nil {
			log.Warn().Err(err).Str("account", logging.MaskEmail(account.Username)).Msg("refresh: failed to store rotated refresh token")
		}
	}

	expiry := m.expiryOf(tok)
	if err := m.sink.SetWithExpiry(ctx, tok.AccessToken, expiry); err != nil {
		log.Warn().Err(err).Msg("refresh: token not persisted")
	}

	m.scheduleRenewal(expiry)
	log.Debug().
		Str("account", logging.MaskEmail(account.Username)).
		Str("token", logging.TokenDigest(tok.AccessToken)).
		Time("expiry", expiry).
		Msg("refresh: acquired token silently")

	return token.CachedToken{Value: tok.AccessToken, ExpiryEpochSeconds: expiry.Unix()}, nil
}

// Stop cancels the pending renewal.
func (m *Manager) Stop() {
	m.scheduler.Stop()
}

func (m *Manager) RenewalPending() bool {
	return m.scheduler.Pending()
}

func (m *Manager) scheduleRenewal(expiry time.Time) {
	delay := RenewalDelay(expiry, m.nowFunc())
	m.scheduler.Schedule(delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.renewalTimeout)
		defer cancel()
		if _, err := m.Refresh(ctx); err != nil {
			log.Warn().Err(err).Msg("refresh: proactive renewal failed")
		}
	})
}

func (m *Manager) expiryOf(tok *oauth2.Token) time.Time {
	if exp := token.ExpiryOf(tok.AccessToken); exp > 0 {
		return time.Unix(exp, 0)
	}
	if !tok.Expiry.IsZero() {
		return tok.Expiry
	}
	return m.nowFunc().Add(time.Hour)
}

// IsInteractionRequired reports whether err is an OAuth error only a fresh
// sign-in can resolve.
func IsInteractionRequired(err error) bool {
	if interrors.Is(err, interrors.ErrInteractionRequired) || interrors.Is(err, interrors.ErrNoAccount) {
		return true
	}
	var re *oauth2.RetrieveError
	if interrors.As(err, &re) {
		_, ok := interactionCodes[re.ErrorCode]
		return ok
	}
	return false
}
