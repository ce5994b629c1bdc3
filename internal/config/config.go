package config

import "time"

type Config interface {
	EnvConfig
	APIConfig
	AuthConfig
	StoreConfig
	SendConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	IsProduction() bool
	GetLogLevel() string
}

type APIConfig interface {
	GetAPIBaseURL() string
	GetSubscriptionKey() string
	GetAPITimeout() time.Duration
	GetRetryBackoff() time.Duration
	GetAuditPath() string
	GetDefaultTenant() string
}

type AuthConfig interface {
	GetTenantID() string
	GetClientID() string
	GetAPIScope() string
	GetAuthority() string
	GetDialogURL() string
	GetDialogFallbackURL() string
}

type StoreConfig interface {
	GetTokenStore() string
	GetTokenStorePath() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
}

type SendConfig interface {
	GetFailureCap() int
}

type mainConfig struct {
	EnvVars
	API
	Auth
	Store
	Send
}

func New() Config {
	return mainConfig{}
}

// NewFromFile loads a YAML overlay and returns a Config that consults it
// after the process environment.
func NewFromFile(path string) (Config, error) {
	if path == "" {
		return New(), nil
	}
	if err := LoadFile(path); err != nil {
		return nil, err
	}
	return New(), nil
}
