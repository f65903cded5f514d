package config

import "time"

type CallbackConfig interface {
	GetCallbackAddr() string
	GetCallbackTimeout() time.Duration
}

type Callback struct{}

var _ CallbackConfig = Callback{}

// GetCallbackAddr is the loopback address the federated login redirect lands on
func (Callback) GetCallbackAddr() string {
	return GetEnv("CALLBACK_ADDR", "127.0.0.1:8765")
}

func (Callback) GetCallbackTimeout() time.Duration {
	return GetEnvDuration("CALLBACK_TIMEOUT", 5*time.Minute)
}
