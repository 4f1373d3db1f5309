package config

type Config interface {
	EnvConfig
	OIDCConfig
	SessionConfig
	CorsConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetAppBaseURL() string
	GetRedisURL() string
	GetEnv() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	OIDC
	Session
	Cors
}

func New() Config {
	return mainConfig{}
}
