package http

import (
	"fmt"
	"time"

	"github.com/securenotify/notify-core/internal/ratelimit"
)

type Config struct {
	Port      uint            `mapstructure:"port"`
	JWTSecret string          `mapstructure:"jwt_secret"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig declares the admission policy per endpoint class.
type RateLimitConfig struct {
	Auth   ClassConfig `mapstructure:"auth"`
	Keys   ClassConfig `mapstructure:"keys"`
	Revoke ClassConfig `mapstructure:"revoke"`
}

type ClassConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxRequests   int `mapstructure:"max_requests"`
}

func (c ClassConfig) Limiter() ratelimit.Config {
	return ratelimit.Config{
		Window:      time.Duration(c.WindowSeconds) * time.Second,
		MaxRequests: c.MaxRequests,
	}
}

func (c RateLimitConfig) Validate() error {
	for name, class := range map[string]ClassConfig{
		"auth":   c.Auth,
		"keys":   c.Keys,
		"revoke": c.Revoke,
	} {
		if err := class.Limiter().Validate(); err != nil {
			return fmt.Errorf("rate limit class %q: %w", name, err)
		}
	}
	return nil
}
