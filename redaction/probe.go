package redaction

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Probe checks that url answers a plain GET and a text/plain POST, the two
// requests that need no CORS preflight. It returns one note per request.
func Probe(ctx context.Context, hc *http.Client, url string) []string {
	if hc == nil {
		hc = http.DefaultClient
	}
	notes := make([]string, 0, 2)
	notes = append(notes, probeOnce(ctx, hc, http.MethodGet, url, "GET"))
	notes = append(notes, probeOnce(ctx, hc, http.MethodPost, url, "POST(text/plain)"))
	return notes
}

func probeOnce(ctx context.Context, hc *http.Client, method, url, label string) string {
	var req *http.Request
	var err error
	if method == http.MethodPost {
		req, err = http.NewRequestWithContext(ctx, method, url, strings.NewReader("probe"))
		if err == nil {
			req.Header.Set("Content-Type", "text/plain")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, method, url, nil)
	}
	if err != nil {
		return fmt.Sprintf("%s %s failed: %v", label, url, err)
	}
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Sprintf("%s %s failed: %v", label, url, err)
	}
	resp.Body.Close()
	return fmt.Sprintf("%s %s -> %d", label, url, resp.StatusCode)
}
