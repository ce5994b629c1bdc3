package refresh_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	interrors "github.com/jrsteele09/mlredact-addin/internal/errors"
	"github.com/jrsteele09/mlredact-addin/token"
	"github.com/jrsteele09/mlredact-addin/token/refresh"
	refreshrepofake "github.com/jrsteele09/mlredact-addin/token/refresh/repofake"
	"github.com/jrsteele09/mlredact-addin/token/storefake"
	"github.com/jrsteele09/mlredact-addin/token/tokentest"
)

var now = time.Unix(1_800_000_000, 0)

// fakeTimers records scheduled timers instead of running them.
type fakeTimers struct {
	mu     sync.Mutex
	delays []time.Duration
	fns    []func()
	stops  int
}

type fakeTimer struct {
	owner *fakeTimers
}

func (f fakeTimer) Stop() bool {
	f.owner.mu.Lock()
	defer f.owner.mu.Unlock()
	f.owner.stops++
	return true
}

func (f *fakeTimers) AfterFunc(d time.Duration, fn func()) refresh.Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delays = append(f.delays, d)
	f.fns = append(f.fns, fn)
	return fakeTimer{owner: f}
}

func (f *fakeTimers) fire(i int) {
	f.mu.Lock()
	fn := f.fns[i]
	f.mu.Unlock()
	fn()
}

type tokenServer struct {
	*httptest.Server
	calls    atomic.Int32
	status   int
	errCode  string
	gate     chan struct{}
	response func() map[string]any
}

func newTokenServer(t *testing.T) *tokenServer {
	t.Helper()
	ts := &tokenServer{status: http.StatusOK}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.calls.Add(1)
		if ts.gate != nil {
			<-ts.gate
		}
		w.Header().Set("Content-Type", "application/json")
		if r.ParseForm() != nil || r.PostForm.Get("grant_type") != "refresh_token" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "unsupported_grant_type"})
			return
		}
		if ts.status != http.StatusOK {
			w.WriteHeader(ts.status)
			json.NewEncoder(w).Encode(map[string]string{"error": ts.errCode, "error_description": "AADSTS: test"})
			return
		}
		json.NewEncoder(w).Encode(ts.response())
	}))
	t.Cleanup(ts.Close)
	return ts
}

type fixture struct {
	server   *tokenServer
	accounts *refreshrepofake.FakeAccountRepo
	cache    *token.Cache
	timers   *fakeTimers
	manager  *refresh.Manager
}

func setupManager(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		server: newTokenServer(t),
		accounts: refreshrepofake.NewFakeAccountRepo(&refresh.Account{
			HomeAccountID: "acct-1",
			Username:      "alice@example.com",
			RefreshToken:  "rt-1",
		}),
		cache:  token.NewCache([]token.Store{storefake.NewFakeStore("memory")}, token.WithCacheNowFunc(func() time.Time { return now })),
		timers: &fakeTimers{},
	}
	f.server.response = func() map[string]any {
		return map[string]any{
			"access_token":  tokentest.JWT(t, now.Add(time.Hour), "tenant-1"),
			"token_type":    "Bearer",
			"expires_in":    3600,
			"refresh_token": "rt-2",
		}
	}
	cfg := refresh.NewOAuthConfig("client-1", oauth2.Endpoint{TokenURL: f.server.URL + "/token", AuthStyle: oauth2.AuthStyleInParams}, "api://x/api.access")
	f.manager = refresh.NewManager(f.accounts, cfg, f.cache,
		refresh.WithNowFunc(func() time.Time { return now }),
		refresh.WithScheduler(refresh.NewScheduler(f.timers.AfterFunc)),
	)
	return f
}

func TestManager_RefreshCachesAndSchedules(t *testing.T) {
	f := setupManager(t)

	tok, err := f.manager.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, now.Add(time.Hour).Unix(), tok.ExpiryEpochSeconds)

	cached, ok := f.cache.GetValidToken(token.CacheSkew)
	require.True(t, ok)
	require.Equal(t, tok.Value, cached)

	require.Equal(t, []time.Duration{55 * time.Minute}, f.timers.delays)
	require.True(t, f.manager.RenewalPending())

	acct, err := f.accounts.Active()
	require.NoError(t, err)
	require.Equal(t, "rt-2", acct.RefreshToken, "rotated refresh token is kept")
}

func TestManager_RescheduleReplacesTimer(t *testing.T) {
	f := setupManager(t)
	ctx := context.Background()

	_, err := f.manager.Refresh(ctx)
	require.NoError(t, err)
	_, err = f.manager.Refresh(ctx)
	require.NoError(t, err)

	require.Len(t, f.timers.delays, 2)
	require.Equal(t, 1, f.timers.stops, "previous timer is stopped")

	f.timers.fire(0)
	require.Equal(t, int32(2), f.server.calls.Load(), "stale timer does not refresh")

	f.timers.fire(1)
	require.Equal(t, int32(3), f.server.calls.Load())
}

func TestManager_RenewalJoinsInFlightRefresh(t *testing.T) {
	f := setupManager(t)
	ctx := context.Background()

	_, err := f.manager.Refresh(ctx)
	require.NoError(t, err)
	require.Len(t, f.timers.delays, 1)

	f.server.gate = make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	var directErr error
	go func() {
		defer wg.Done()
		_, directErr = f.manager.Refresh(ctx)
	}()
	require.Eventually(t, func() bool { return f.server.calls.Load() == 2 }, time.Second, 5*time.Millisecond)

	go func() {
		defer wg.Done()
		f.timers.fire(0)
	}()
	time.Sleep(20 * time.Millisecond)
	close(f.server.gate)
	wg.Wait()

	require.NoError(t, directErr)
	require.Equal(t, int32(2), f.server.calls.Load(), "renewal shares the in-flight request")
	require.True(t, f.manager.RenewalPending())
}

func TestManager_InteractionRequired(t *testing.T) {
	for _, code := range []string{"interaction_required", "invalid_grant", "login_required", "consent_required"} {
		t.Run(code, func(t *testing.T) {
			f := setupManager(t)
			f.server.status = http.StatusBadRequest
			f.server.errCode = code

			_, err := f.manager.Refresh(context.Background())
			require.ErrorIs(t, err, interrors.ErrInteractionRequired)
			require.True(t, refresh.IsInteractionRequired(err))
			require.False(t, f.manager.RenewalPending())
		})
	}
}

func TestManager_OtherErrorsPropagate(t *testing.T) {
	f := setupManager(t)
	f.server.status = http.StatusInternalServerError
	f.server.errCode = "temporarily_unavailable"

	_, err := f.manager.Refresh(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, interrors.ErrInteractionRequired)
	require.False(t, refresh.IsInteractionRequired(err))
}

func TestManager_NoAccount(t *testing.T) {
	f := setupManager(t)
	require.NoError(t, f.accounts.Delete("acct-1"))

	_, err := f.manager.Refresh(context.Background())
	require.ErrorIs(t, err, interrors.ErrNoAccount)
	require.True(t, refresh.IsInteractionRequired(err))
	require.Zero(t, f.server.calls.Load())
}

func TestRenewalDelay(t *testing.T) {
	require.Equal(t, 55*time.Minute, refresh.RenewalDelay(now.Add(time.Hour), now))
	require.Equal(t, 15*time.Second, refresh.RenewalDelay(now.Add(5*time.Minute), now))
	require.Equal(t, 15*time.Second, refresh.RenewalDelay(now.Add(-time.Minute), now))
	require.Equal(t, 15*time.Second, refresh.RenewalDelay(now.Add(5*time.Minute+15*time.Second), now))
}

func TestScheduler_Stop(t *testing.T) {
	timers := &fakeTimers{}
	s := refresh.NewScheduler(timers.AfterFunc)
	ran := false
	s.Schedule(time.Second, func() { ran = true })
	require.True(t, s.Pending())

	s.Stop()
	require.False(t, s.Pending())
	timers.fire(0)
	require.False(t, ran)
}

func TestDiscoverEndpoint(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/openid-configuration" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"issuer":                 srv.URL,
			"authorization_endpoint": srv.URL + "/authorize",
			"token_endpoint":         srv.URL + "/token",
			"jwks_uri":               srv.URL + "/keys",
		})
	}))
	defer srv.Close()

	ep, err := refresh.DiscoverEndpoint(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, srv.URL+"/token", ep.TokenURL)
	require.Equal(t, srv.URL+"/authorize", ep.AuthURL)

	fallback := refresh.EndpointFor(context.Background(), srv.URL+"/missing", "tenant-1")
	require.Equal(t, "https://login.microsoftonline.com/tenant-1/oauth2/v2.0/token", fallback.TokenURL)
}
