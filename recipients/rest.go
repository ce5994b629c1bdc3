package recipients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/jrsteele09/mlredact-addin/mailbox"
)

// REST reads recipients from the mailbox REST endpoint using the item's
// callback token. It needs a saved item and a REST URL.
type REST struct {
	// HTTPClient is the base transport under the bearer token. Nil uses the
	// default client.
	HTTPClient *http.Client
}

func (REST) Name() string {
	return "rest"
}

type restMessage struct {
	To  []map[string]any `json:"ToRecipients"`
	Cc  []map[string]any `json:"CcRecipients"`
	Bcc []map[string]any `json:"BccRecipients"`
}

func (s REST) Read(ctx context.Context, item mailbox.Item) (Set, error) {
	base := strings.TrimRight(item.RestURL(), "/")
	if base == "" {
		return Set{}, fmt.Errorf("recipients.REST: no REST URL")
	}
	id, err := item.ItemID(ctx)
	if err != nil || id == "" {
		return Set{}, noItemID("recipients.REST", err)
	}
	tok, err := item.CallbackToken(ctx)
	if err != nil {
		return Set{}, fmt.Errorf("recipients.REST callback token: %w", err)
	}

	if s.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.HTTPClient)
	}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: tok, TokenType: "Bearer"}))

	endpoint := fmt.Sprintf("%s/v2.0/me/messages/%s?$select=ToRecipients,CcRecipients,BccRecipients",
		base, url.PathEscape(RestID(id)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Set{}, fmt.Errorf("recipients.REST: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return Set{}, fmt.Errorf("recipients.REST: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Set{}, fmt.Errorf("recipients.REST: status %d: %s", resp.StatusCode, body)
	}

	var msg restMessage
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return Set{}, fmt.Errorf("recipients.REST decode: %w", err)
	}
	return Set{To: mapAddresses(msg.To), Cc: mapAddresses(msg.Cc), Bcc: mapAddresses(msg.Bcc)}, nil
}

// RestID converts an EWS item id to the REST form.
func RestID(ewsID string) string {
	return strings.NewReplacer("/", "-", "+", "_").Replace(ewsID)
}

func mapAddresses(values []map[string]any) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if a := Address(v); a != "" {
			out = append(out, a)
		}
	}
	return out
}
