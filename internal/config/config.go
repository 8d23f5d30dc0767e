package config

import (
	"fmt"
	"time"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

const (
	DefaultProvider        = "discord"
	DefaultHistoryLimit    = 50
	DefaultRetryCeiling    = 3
	DefaultRetryDelay      = 5 * time.Second
	DefaultTimestampFormat = "01/02/2006 3:04 PM"
	DefaultGatewayPort     = 18790
)

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	cfg := Config{}
	applyDefaults(&cfg)
	return cfg
}

// RetryDelay returns the configured base delay between reconnect attempts.
func (r RetryConfig) RetryDelay() time.Duration {
	if r.DelayMs <= 0 {
		return DefaultRetryDelay
	}
	return time.Duration(r.DelayMs) * time.Millisecond
}

// MaxDelay returns the cap applied by the exponential policy.
func (r RetryConfig) MaxDelay() time.Duration {
	if r.MaxDelayMs <= 0 {
		return 8 * r.RetryDelay()
	}
	return time.Duration(r.MaxDelayMs) * time.Millisecond
}

// Location resolves the configured timezone, falling back to local time.
func (u UIConfig) Location() *time.Location {
	if u.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
