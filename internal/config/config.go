package config

type Config interface {
	EnvConfig
	BackendConfig
	CorsConfig
	OAuthConfig
	StoreConfig
}

type EnvConfig interface {
	GetAppName() string
	GetDataFolder() string
	GetProfile() string
	GetLogLevel() string
	GetEnv() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Backend
	Cors
	OAuth
	Store
}

func New() Config {
	return mainConfig{}
}
