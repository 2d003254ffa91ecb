package config

type Config interface {
	EnvConfig
	AuthConfig
	TenantConfig
}

type mainConfig struct {
	EnvVars
	Auth
	Tenancy
}

// New loads .env (when present) and returns the composed configuration.
func New() Config {
	loadDotEnv()
	return mainConfig{}
}
