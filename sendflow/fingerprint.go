package sendflow

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/jrsteele09/mlredact-addin/recipients"
)

const bodyPrefixRunes = 4096

var whitespace = regexp.MustCompile(`\s+`)

func collapse(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// Fingerprint is a cheap equality digest of what the user is about to send.
// Whitespace runs collapse, subject and addresses compare case-insensitively
// and address order does not matter. The body contributes its length and a
// hash of its first 4096 characters.
func Fingerprint(subject, bodyText string, r recipients.Set) string {
	subj := strings.ToLower(collapse(subject))
	body := []rune(collapse(bodyText))
	prefix := body
	if len(prefix) > bodyPrefixRunes {
		prefix = prefix[:bodyPrefixRunes]
	}
	sig := xxhash.Sum64String(fmt.Sprintf("%d:%s", len(body), string(prefix)))
	return fmt.Sprintf("%s||%s|%s|%s||%016x",
		subj,
		strings.Join(recipients.Canonical(r.To), ","),
		strings.Join(recipients.Canonical(r.Cc), ","),
		strings.Join(recipients.Canonical(r.Bcc), ","),
		sig)
}
