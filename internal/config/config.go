package config

type Config interface {
	EnvConfig
	APIConfig
	SessionConfig
	CallbackConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetDataFolder() string
	GetLogFile() string
	GetLogLevel() string
}

type mainConfig struct {
	EnvVars
	API
	Session
	Callback
}

func New() Config {
	return mainConfig{}
}
