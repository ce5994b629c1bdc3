package token_test

import (
	"testing"
	"time"

	interrors "github.com/jrsteele09/mlredact-addin/internal/errors"
	"github.com/jrsteele09/mlredact-addin/token"
	"github.com/jrsteele09/mlredact-addin/token/tokentest"
	"github.com/stretchr/testify/require"
)

func TestDecodeClaims(t *testing.T) {
	exp := time.Unix(1_900_000_000, 0)
	raw := tokentest.JWT(t, exp, "tenant-42", map[string]any{"preferred_username": "alice@example.com"})

	c, err := token.DecodeClaims(raw)
	require.NoError(t, err)
	require.Equal(t, exp.Unix(), c.Expiry)
	require.Equal(t, "tenant-42", c.TenantID)
	require.Equal(t, "user-1", c.Subject)
	require.Equal(t, "alice@example.com", c.Username)
}

func TestDecodeClaims_Invalid(t *testing.T) {
	for _, raw := range []string{"", "   ", "abc", "a.b.c"} {
		_, err := token.DecodeClaims(raw)
		require.ErrorIs(t, err, interrors.ErrInvalidToken, raw)
		require.Zero(t, token.ExpiryOf(raw))
	}
}

func TestTenantIDFromJWT(t *testing.T) {
	require.Equal(t, "tid-1", token.TenantIDFromJWT(tokentest.JWT(t, time.Now().Add(time.Hour), "tid-1")))
	require.Empty(t, token.TenantIDFromJWT(tokentest.JWT(t, time.Now().Add(time.Hour), "")))
	require.Empty(t, token.TenantIDFromJWT("garbage"))
}
