package token

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	interrors "github.com/jrsteele09/mlredact-addin/internal/errors"
)

// Claims holds the parts of an access token the add-in reads. Signatures are
// not verified here; the redaction service does that.
type Claims struct {
	Expiry   int64
	TenantID string
	Subject  string
	Username string
}

func DecodeClaims(raw string) (Claims, error) {
	if strings.TrimSpace(raw) == "" {
		return Claims{}, interrors.ErrInvalidToken
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return Claims{}, errors.Wrap(interrors.ErrInvalidToken, err.Error())
	}

	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, interrors.ErrInvalidToken
	}

	var c Claims
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.Expiry = exp.Unix()
	}
	c.Subject, _ = mc.GetSubject()
	c.TenantID, _ = mc["tid"].(string)
	c.Username, _ = mc["preferred_username"].(string)
	return c, nil
}

// ExpiryOf returns the exp claim, or 0 when the token cannot be decoded.
func ExpiryOf(raw string) int64 {
	c, err := DecodeClaims(raw)
	if err != nil {
		return 0
	}
	return c.Expiry
}

// TenantIDFromJWT returns the tid claim or "" when absent.
func TenantIDFromJWT(raw string) string {
	c, err := DecodeClaims(raw)
	if err != nil {
		return ""
	}
	return c.TenantID
}
