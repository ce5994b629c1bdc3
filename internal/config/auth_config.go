package config

import "fmt"

type Auth struct{}

var _ AuthConfig = Auth{}

func (Auth) GetTenantID() string {
	return GetEnv("AAD_TENANT_ID", "common")
}

func (Auth) GetClientID() string {
	return GetEnv("AAD_CLIENT_ID", "")
}

func (Auth) GetAPIScope() string {
	return GetEnv("AAD_API_SCOPE", "")
}

func (a Auth) GetAuthority() string {
	return GetEnv("AAD_AUTHORITY", fmt.Sprintf("https://login.microsoftonline.com/%s/v2.0", a.GetTenantID()))
}

func (Auth) GetDialogURL() string {
	return GetEnv("AUTH_DIALOG_URL", "")
}

// GetDialogFallbackURL is only honoured outside production.
func (Auth) GetDialogFallbackURL() string {
	return GetEnv("AUTH_DIALOG_FALLBACK_URL", "")
}
