package logging

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// MaskEmail keeps the first and last rune of each part: "alice@example.com" -> "a***e@e*****e.c*m".
func MaskEmail(s string) string {
	s = strings.TrimSpace(s)
	at := strings.IndexByte(s, '@')
	if at <= 0 || at == len(s)-1 {
		return s
	}
	mask := func(part string) string {
		if len(part) <= 1 {
			return "*"
		}
		return part[:1] + strings.Repeat("*", max(0, len(part)-2)) + part[len(part)-1:]
	}
	dParts := strings.Split(s[at+1:], ".")
	for i, p := range dParts {
		dParts[i] = mask(p)
	}
	return mask(s[:at]) + "@" + strings.Join(dParts, ".")
}

// MaskEmails applies MaskEmail to every address.
func MaskEmails(addrs []string) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = MaskEmail(a)
	}
	return out
}

// TokenDigest returns a short stable digest of a token that is safe to log.
func TokenDigest(token string) string {
	if token == "" {
		return ""
	}
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:6])
}
