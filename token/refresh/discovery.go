package refresh

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// DiscoverEndpoint resolves the authority's endpoints from its OpenID
// configuration.
func DiscoverEndpoint(ctx context.Context, authority string) (oauth2.Endpoint, error) {
	provider, err := oidc.NewProvider(ctx, authority)
	if err != nil {
		return oauth2.Endpoint{}, fmt.Errorf("refresh.DiscoverEndpoint NewProvider: %w", err)
	}
	return provider.Endpoint(), nil
}

// EndpointFor tries discovery and falls back to the well-known Azure AD v2
// endpoints for tenantID. Multi-tenant authorities ("common") publish a
// templated issuer that discovery rejects, so the fallback is expected there.
func EndpointFor(ctx context.Context, authority, tenantID string) oauth2.Endpoint {
	ep, err := DiscoverEndpoint(ctx, authority)
	if err == nil {
		return ep
	}
	log.Warn().Err(err).Str("authority", authority).Msg("oidc discovery failed, using Azure AD endpoints")
	return endpoints.AzureAD(tenantID)
}

// NewOAuthConfig builds the public-client config used for silent refresh.
func NewOAuthConfig(clientID string, endpoint oauth2.Endpoint, scopes ...string) *oauth2.Config {
	return &oauth2.Config{
		ClientID: clientID,
		Endpoint: endpoint,
		Scopes:   append([]string{oidc.ScopeOfflineAccess}, scopes...),
	}
}
