package redaction_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	interrors "github.com/jrsteele09/mlredact-addin/internal/errors"
	"github.com/jrsteele09/mlredact-addin/redaction"
)

func TestNormalize(t *testing.T) {
	endpoint := "https://api.example.com/ProcessEmail"

	tests := []struct {
		name string
		err  error
		kind redaction.Kind
		user string
	}{
		{"auth", &redaction.UpstreamError{Kind: redaction.KindAuth, Status: 401, Endpoint: endpoint}, redaction.KindAuth, redaction.AuthUserMessage},
		{"rate limit", &redaction.UpstreamError{Kind: redaction.KindRateLimit, Status: 429, Endpoint: endpoint}, redaction.KindRateLimit, redaction.RateLimitUserMessage},
		{"server", &redaction.UpstreamError{Kind: redaction.KindServer, Status: 502, Endpoint: endpoint}, redaction.KindServer, redaction.DefaultUserMessage},
		{"timeout", &redaction.UpstreamError{Kind: redaction.KindTimeout, Endpoint: endpoint}, redaction.KindTimeout, redaction.TimeoutUserMessage},
		{"network", &redaction.UpstreamError{Kind: redaction.KindNetwork, Endpoint: endpoint, Err: errors.New("refused")}, redaction.KindNetwork, redaction.NetworkUserMessage},
		{"client", &redaction.UpstreamError{Kind: redaction.KindClient, Status: 404, Endpoint: endpoint}, redaction.KindClient, redaction.DefaultUserMessage},
		{"wrapped upstream", fmt.Errorf("send: %w", &redaction.UpstreamError{Kind: redaction.KindRateLimit, Status: 429}), redaction.KindRateLimit, redaction.RateLimitUserMessage},
		{"missing sign-in", fmt.Errorf("token: %w", interrors.ErrInteractiveDisabled), redaction.KindAuth, redaction.SignInUserMessage},
		{"untrusted dialog domain", fmt.Errorf("Provider.GetAccessToken Open: %w", interrors.ErrDomainNotTrusted), redaction.KindAuth,
			"The sign-in page is not on a trusted domain. Ask your administrator to add it to the add-in's AppDomains."},
		{"dialog blocked", fmt.Errorf("open: %w", interrors.ErrDialogBlocked), redaction.KindAuth,
			"The sign-in window was blocked. Allow pop-ups for Outlook and try again."},
		{"dialog closed early", interrors.ErrDialogClosedEarly, redaction.KindAuth, "Dialog was closed before sign-in finished."},
		{"no option selected", interrors.ErrNoOptionSelected, redaction.KindClient, redaction.NoOptionUserMessage},
		{"deadline", context.DeadlineExceeded, redaction.KindTimeout, redaction.TimeoutUserMessage},
		{"anything else", errors.New("boom"), redaction.KindUnknown, redaction.DefaultUserMessage},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			n := redaction.Normalize(tc.err)
			require.Equal(t, tc.kind, n.Kind)
			require.Equal(t, tc.user, n.UserMessage)
			require.NotEmpty(t, n.DevMessage)
		})
	}

	t.Run("dev message truncates the body and carries the correlation id", func(t *testing.T) {
		n := redaction.Normalize(&redaction.UpstreamError{
			Kind:          redaction.KindServer,
			Status:        500,
			CorrelationID: "corr-9",
			Endpoint:      endpoint,
			Body:          strings.Repeat("e", 500),
		})
		require.Equal(t, "corr-9", n.CorrelationID)
		require.Equal(t, 500, n.Status)
		require.Contains(t, n.DevMessage, strings.Repeat("e", 200))
		require.NotContains(t, n.DevMessage, strings.Repeat("e", 201))
		require.Contains(t, n.DevMessage, "corr-9")
	})
}

func TestUpstreamError_Retryable(t *testing.T) {
	require.True(t, (&redaction.UpstreamError{Kind: redaction.KindRateLimit}).Retryable())
	require.True(t, (&redaction.UpstreamError{Kind: redaction.KindServer}).Retryable())
	require.True(t, (&redaction.UpstreamError{Kind: redaction.KindTimeout}).Retryable())
	require.False(t, (&redaction.UpstreamError{Kind: redaction.KindAuth}).Retryable())
	require.False(t, (&redaction.UpstreamError{Kind: redaction.KindClient}).Retryable())
	require.False(t, (&redaction.UpstreamError{Kind: redaction.KindNetwork}).Retryable())
}
