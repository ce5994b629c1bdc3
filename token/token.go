package token

import (
	"time"
)

// StorageKey is the single durable key holding the raw access token.
const StorageKey = "mlr:aad_token"

const (
	// CacheSkew is applied by GetValidToken.
	CacheSkew = 60 * time.Second
	// AcquireSkew is applied before an outbound call needs the token.
	AcquireSkew = 120 * time.Second
)

// CachedToken is an access token with its decoded expiry.
type CachedToken struct {
	Value              string
	ExpiryEpochSeconds int64
}

// Usable reports whether the token is still valid at now+skew.
// A token expiring exactly at now+skew is not usable.
func (t CachedToken) Usable(now time.Time, skew time.Duration) bool {
	if t.Value == "" {
		return false
	}
	return t.ExpiryEpochSeconds > now.Add(skew).Unix()
}

// Expiry returns the expiry as a time.Time.
func (t CachedToken) Expiry() time.Time {
	return time.Unix(t.ExpiryEpochSeconds, 0)
}
