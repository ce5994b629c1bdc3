// Package recipients reads the To/Cc/Bcc of a compose item. Hosts report
// recipients in several shapes and sometimes not at all right after load, so
// reading is an ordered list of strategies over a monotonic cache.
package recipients

import (
	"sort"
	"strings"
)

// Set holds recipient addresses per field.
type Set struct {
	To  []string `json:"to"`
	Cc  []string `json:"cc"`
	Bcc []string `json:"bcc"`
}

func (s Set) Empty() bool {
	return len(s.To) == 0 && len(s.Cc) == 0 && len(s.Bcc) == 0
}

// Clone returns a deep copy with non-nil slices.
func (s Set) Clone() Set {
	return Set{To: clone(s.To), Cc: clone(s.Cc), Bcc: clone(s.Bcc)}
}

func clone(v []string) []string {
	out := make([]string, len(v))
	copy(out, v)
	return out
}

// addressKeys are the field names hosts use for a recipient's address, in
// lookup order.
var addressKeys = []string{"emailAddress", "EmailAddress", "address", "Address", "email", "smtpAddress", "SmtpAddress"}

// Address extracts the address from a host recipient value: a plain string
// or a map keyed by one of the address field names, possibly nested as in
// {"EmailAddress": {"Address": "..."}}. It returns "" when none is found.
func Address(v any) string {
	switch r := v.(type) {
	case string:
		return strings.TrimSpace(r)
	case map[string]any:
		for _, k := range addressKeys {
			if inner, ok := r[k]; ok {
				if a := Address(inner); a != "" {
					return a
				}
			}
		}
	case map[string]string:
		for _, k := range addressKeys {
			if a := strings.TrimSpace(r[k]); a != "" {
				return a
			}
		}
	}
	return ""
}

// Addresses normalizes a host recipient list, dropping entries without an address.
func Addresses(values []any) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if a := Address(v); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// Canonical returns the trimmed, lower-cased, sorted addresses used for
// comparisons.
func Canonical(addrs []string) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
			out = append(out, a)
		}
	}
	sort.Strings(out)
	return out
}
