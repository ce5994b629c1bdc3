package redaction

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/jrsteele09/mlredact-addin/auth/dialog"
	interrors "github.com/jrsteele09/mlredact-addin/internal/errors"
)

type Kind string

const (
	KindAuth      Kind = "auth"
	KindRateLimit Kind = "rate-limit"
	KindServer    Kind = "server"
	KindTimeout   Kind = "timeout"
	KindNetwork   Kind = "network"
	KindClient    Kind = "client"
	KindUnknown   Kind = "unknown"
)

// User-facing messages per kind.
const (
	DefaultUserMessage   = "ML-Redact temporarily unavailable. Review before sending?"
	AuthUserMessage      = "Please sign in to ML-Redact before sending."
	RateLimitUserMessage = "ML-Redact is busy. Please try again in a moment."
	TimeoutUserMessage   = "ML-Redact took too long to respond. Please try again."
	NetworkUserMessage   = "Network problem reaching ML-Redact. Check your connection."
	SignInUserMessage    = "Please open ML-Redact and sign in before sending."
	NoOptionUserMessage  = "You need to choose at least one option."
)

const devBodyLimit = 200

var correlationHeaders = []string{"x-correlation-id", "request-id", "request-context"}

// UpstreamError is an unrecovered failure calling the service.
type UpstreamError struct {
	Kind          Kind
	Status        int
	CorrelationID string
	Endpoint      string
	Body          string
	Err           error
}

func (e *UpstreamError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "redaction %s error", e.Kind)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Endpoint != "" {
		fmt.Fprintf(&b, " at %s", e.Endpoint)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is transient: rate limiting, a
// server error or a client-side timeout.
func (e *UpstreamError) Retryable() bool {
	switch e.Kind {
	case KindRateLimit, KindServer, KindTimeout:
		return true
	}
	return false
}

// looksUnauthorized covers 401 and the service's 400 responses whose body
// says "unauthorized".
func looksUnauthorized(status int, body string) bool {
	return status == http.StatusUnauthorized ||
		(status == http.StatusBadRequest && strings.Contains(strings.ToLower(body), "unauthorized"))
}

func classifyStatus(status int, body string) Kind {
	switch {
	case looksUnauthorized(status, body):
		return KindAuth
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status >= 500:
		return KindServer
	case status >= 400:
		return KindClient
	default:
		return KindUnknown
	}
}

func classifyTransport(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	return KindNetwork
}

func correlationID(h http.Header) string {
	for _, name := range correlationHeaders {
		if v := h.Get(name); v != "" {
			return v
		}
	}
	return ""
}

// NormalizedError is what callers show (UserMessage) and log (DevMessage).
type NormalizedError struct {
	Kind          Kind
	Status        int
	CorrelationID string
	UserMessage   string
	DevMessage    string
}

// Normalize maps any error from a processing attempt onto the taxonomy.
// Missing sign-in and sign-in dialog failures count as auth.
func Normalize(err error) NormalizedError {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return normalizeUpstream(ue)
	}
	switch {
	case err == nil:
		return NormalizedError{Kind: KindUnknown, UserMessage: DefaultUserMessage}
	case isSignInError(err):
		return NormalizedError{Kind: KindAuth, UserMessage: SignInUserMessage, DevMessage: err.Error()}
	case errors.Is(err, interrors.ErrNoOptionSelected):
		return NormalizedError{Kind: KindClient, UserMessage: NoOptionUserMessage, DevMessage: err.Error()}
	}
	if msg := dialog.UserMessage(err); msg != "" {
		return NormalizedError{Kind: KindAuth, UserMessage: msg, DevMessage: err.Error()}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NormalizedError{Kind: KindTimeout, UserMessage: TimeoutUserMessage, DevMessage: err.Error()}
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return NormalizedError{Kind: KindNetwork, UserMessage: NetworkUserMessage, DevMessage: err.Error()}
	}
	return NormalizedError{Kind: KindUnknown, UserMessage: DefaultUserMessage, DevMessage: err.Error()}
}

func normalizeUpstream(e *UpstreamError) NormalizedError {
	n := NormalizedError{Kind: e.Kind, Status: e.Status, CorrelationID: e.CorrelationID}
	body := truncate(e.Body, devBodyLimit)
	switch e.Kind {
	case KindAuth:
		n.UserMessage = AuthUserMessage
		n.DevMessage = fmt.Sprintf("Auth failed (%d) at %s, body: %s", e.Status, e.Endpoint, body)
	case KindRateLimit:
		n.UserMessage = RateLimitUserMessage
		n.DevMessage = fmt.Sprintf("Rate limited at %s", e.Endpoint)
	case KindServer:
		n.UserMessage = DefaultUserMessage
		n.DevMessage = fmt.Sprintf("Server error %d at %s, body: %s", e.Status, e.Endpoint, body)
	case KindTimeout:
		n.UserMessage = TimeoutUserMessage
		n.DevMessage = fmt.Sprintf("Timeout calling %s", e.Endpoint)
	case KindNetwork:
		n.UserMessage = NetworkUserMessage
		n.DevMessage = fmt.Sprintf("Network error calling %s: %v", e.Endpoint, e.Err)
	case KindClient:
		n.UserMessage = DefaultUserMessage
		n.DevMessage = fmt.Sprintf("Client error %d at %s, body: %s", e.Status, e.Endpoint, body)
	default:
		n.UserMessage = DefaultUserMessage
		n.DevMessage = e.Error()
	}
	if n.CorrelationID != "" {
		n.DevMessage += " [correlation " + n.CorrelationID + "]"
	}
	return n
}

func isSignInError(err error) bool {
	for _, target := range []error{
		interrors.ErrNoValidToken,
		interrors.ErrNoAccount,
		interrors.ErrInteractionRequired,
		interrors.ErrInteractiveDisabled,
		interrors.ErrNonInteractiveContext,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
