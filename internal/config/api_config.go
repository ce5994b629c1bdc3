package config

import (
	"time"

	"github.com/jrsteele09/mlredact-addin/redaction"
)

const (
	devAPIBaseURL  = "https://localhost:4000/dev-api/function-mlredact"
	prodAPIBaseURL = "https://mlredact-apim.azure-api.net/function-mlredact"
)

type API struct{}

var _ APIConfig = API{}

func (API) GetAPIBaseURL() string {
	def := devAPIBaseURL
	if (EnvVars{}).IsProduction() {
		def = prodAPIBaseURL
	}
	return GetEnv("MLREDACT_API_BASE_URL", def)
}

// GetSubscriptionKey has no default; the key is injected at deploy time.
func (API) GetSubscriptionKey() string {
	return GetEnv("MLREDACT_SUBSCRIPTION_KEY", "")
}

func (API) GetAPITimeout() time.Duration {
	return GetEnvDuration("MLREDACT_API_TIMEOUT", 45*time.Second)
}

func (API) GetRetryBackoff() time.Duration {
	return GetEnvDuration("MLREDACT_RETRY_BACKOFF", 1200*time.Millisecond)
}

func (API) GetAuditPath() string {
	return GetEnv("MLREDACT_AUDIT_PATH", "")
}

func (API) GetDefaultTenant() string {
	return GetEnv("MLREDACT_DEFAULT_TENANT", redaction.DefaultTenantID)
}
