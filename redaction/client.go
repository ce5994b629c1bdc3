package redaction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	ProcessPath           = "/ProcessEmail"
	SubscriptionKeyHeader = "Ocp-Apim-Subscription-Key"
	IdempotencyKeyHeader  = "Idempotency-Key"

	maxResponseBytes = 4 << 20
)

// TokenSource supplies bearer tokens; *auth.Provider implements it. Refresh
// must skip any cached value.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// SleepFunc waits d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Client posts messages to the service. Each logical call gets one
// idempotency key shared by all its attempts; transient failures and
// unauthorized responses each get at most one extra attempt.
type Client struct {
	baseURL         string
	subscriptionKey string
	httpClient      *http.Client
	tokens          TokenSource
	timeout         time.Duration
	backoff         time.Duration
	sleep           SleepFunc
	nowFunc         func() time.Time
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTokenSource enables the Authorization header.
func WithTokenSource(ts TokenSource) ClientOption {
	return func(c *Client) {
		c.tokens = ts
	}
}

// WithTimeout bounds each attempt.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithBackoff(d time.Duration) ClientOption {
	return func(c *Client) {
		c.backoff = d
	}
}

func WithSleepFunc(fn SleepFunc) ClientOption {
	return func(c *Client) {
		c.sleep = fn
	}
}

func WithNowFunc(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.nowFunc = now
	}
}

func NewClient(baseURL, subscriptionKey string, options ...ClientOption) *Client {
	c := &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		subscriptionKey: subscriptionKey,
		timeout:         45 * time.Second,
		backoff:         1200 * time.Millisecond,
	}
	for _, opt := range options {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.sleep == nil {
		c.sleep = sleepCtx
	}
	if c.nowFunc == nil {
		c.nowFunc = time.Now
	}
	return c
}

var lastKeyMillis atomic.Int64

// IdempotencyKey returns msg-<messageID>-<millis>. The millisecond part
// strictly increases within the process, so two calls never share a key.
func (c *Client) IdempotencyKey(messageID string) string {
	now := c.nowFunc().UnixMilli()
	for {
		last := lastKeyMillis.Load()
		next := now
		if next <= last {
			next = last + 1
		}
		if lastKeyMillis.CompareAndSwap(last, next) {
			return fmt.Sprintf("msg-%s-%d", messageID, next)
		}
	}
}

// ProcessMessage posts req to ProcessPath.
func (c *Client) ProcessMessage(ctx context.Context, req Request) (Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, errors.Wrap(err, "Client.ProcessMessage Marshal")
	}
	key := c.IdempotencyKey(req.MessageID)

	var bearer string
	if c.tokens != nil {
		if bearer, err = c.tokens.Token(ctx); err != nil {
			return Response{}, errors.Wrap(err, "Client.ProcessMessage Token")
		}
	}

	authRetried, transientRetried := false, false
	for attempt := 1; ; attempt++ {
		var resp Response
		uerr := c.post(ctx, ProcessPath, key, bearer, body, &resp)
		if uerr == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return Response{}, uerr
		}

		switch {
		case uerr.Kind == KindAuth && !authRetried && c.tokens != nil:
			authRetried = true
			fresh, err := c.tokens.Refresh(ctx)
			if err != nil {
				log.Warn().Err(err).Int("attempt", attempt).Msg("redaction: silent re-auth failed")
				return Response{}, uerr
			}
			bearer = fresh
			log.Info().Int("attempt", attempt).Str("idempotency_key", key).Msg("redaction: retrying with refreshed token")
		case uerr.Retryable() && !transientRetried:
			transientRetried = true
			log.Info().Str("kind", string(uerr.Kind)).Int("status", uerr.Status).Int("attempt", attempt).
				Dur("backoff", c.backoff).Str("idempotency_key", key).Msg("redaction: retrying transient failure")
			if err := c.sleep(ctx, c.backoff); err != nil {
				return Response{}, uerr
			}
		default:
			return Response{}, uerr
		}
	}
}

// Audit makes a single best-effort POST of req to path.
func (c *Client) Audit(ctx context.Context, path string, req Request) error {
	body, err := json.Marshal(req)
	if err != nil {
		return errors.Wrap(err, "Client.Audit Marshal")
	}
	var bearer string
	if c.tokens != nil {
		if bearer, err = c.tokens.Token(ctx); err != nil {
			return errors.Wrap(err, "Client.Audit Token")
		}
	}
	if uerr := c.post(ctx, path, c.IdempotencyKey(req.MessageID), bearer, body, nil); uerr != nil {
		return uerr
	}
	return nil
}

func (c *Client) post(ctx context.Context, path, key, bearer string, body []byte, out any) *UpstreamError {
	endpoint := c.baseURL + path
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &UpstreamError{Kind: KindUnknown, Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SubscriptionKeyHeader, c.subscriptionKey)
	req.Header.Set(IdempotencyKeyHeader, key)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &UpstreamError{Kind: classifyTransport(err), Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &UpstreamError{Kind: classifyTransport(err), Status: resp.StatusCode, Endpoint: endpoint, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &UpstreamError{
			Kind:          classifyStatus(resp.StatusCode, string(data)),
			Status:        resp.StatusCode,
			CorrelationID: correlationID(resp.Header),
			Endpoint:      endpoint,
			Body:          string(data),
		}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &UpstreamError{
			Kind:          KindUnknown,
			Status:        resp.StatusCode,
			CorrelationID: correlationID(resp.Header),
			Endpoint:      endpoint,
			Body:          string(data),
			Err:           fmt.Errorf("decode response: %w", err),
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
