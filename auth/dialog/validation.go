package dialog

import (
	"fmt"
	"net/url"
	"strings"

	interrors "github.com/jrsteele09/mlredact-addin/internal/errors"
)

// ValidateDialogURL checks a sign-in page URL before it is handed to the
// host. Plain http is only accepted for localhost outside production.
func ValidateDialogURL(raw string, production bool) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("dialog URL is required: %w", interrors.ErrInvalidConfig)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("dialog URL %q: %w", raw, interrors.ErrInvalidConfig)
	}
	if u.Fragment != "" {
		return fmt.Errorf("dialog URL must not contain fragments: %w", interrors.ErrInvalidConfig)
	}
	switch u.Scheme {
	case "https":
		return nil
	case "http":
		if !production && isLoopback(u.Hostname()) {
			return nil
		}
		return interrors.ErrHTTPSRequired
	default:
		return fmt.Errorf("dialog URL must use https: %w", interrors.ErrInvalidConfig)
	}
}

func isLoopback(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

// ValidateTokenFormat checks tok looks like a JWT: three non-empty parts.
func ValidateTokenFormat(tok string) error {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return fmt.Errorf("token is empty: %w", interrors.ErrInvalidToken)
	}
	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		return fmt.Errorf("token must be a JWT: %w", interrors.ErrInvalidToken)
	}
	for i, part := range parts {
		if part == "" {
			return fmt.Errorf("token part %d is empty: %w", i+1, interrors.ErrInvalidToken)
		}
	}
	return nil
}
