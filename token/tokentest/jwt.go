// Package tokentest builds unsigned-verification JWTs for tests.
package tokentest

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// JWT returns an HS256 token expiring at exp with the given tenant id and any extra claims.
func JWT(t testing.TB, exp time.Time, tenantID string, extra ...map[string]any) string {
	t.Helper()
	claims := jwt.MapClaims{
		"exp": exp.Unix(),
		"sub": "user-1",
	}
	if tenantID != "" {
		claims["tid"] = tenantID
	}
	for _, m := range extra {
		for k, v := range m {
			claims[k] = v
		}
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}
