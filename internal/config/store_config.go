package config

type Store struct{}

var _ StoreConfig = Store{}

func (Store) GetTokenStore() string {
	return GetEnv("TOKEN_STORE", "sqlite")
}

func (Store) GetTokenStorePath() string {
	return GetEnv("TOKEN_STORE_PATH", "./data/tokens.db")
}

func (Store) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Store) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

func (Store) GetRedisDB() int {
	return GetEnvInt("REDIS_DB", 0)
}

type Send struct{}

var _ SendConfig = Send{}

func (Send) GetFailureCap() int {
	if n := GetEnvInt("MLREDACT_FAILURE_CAP", 2); n > 0 {
		return n
	}
	return 2
}
