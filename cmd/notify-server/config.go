package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/securenotify/notify-core/internal/api/http"
	"github.com/securenotify/notify-core/internal/cleanup"
	"github.com/securenotify/notify-core/internal/db"
	"github.com/securenotify/notify-core/internal/secure"
	"github.com/spf13/viper"
)

type Config struct {
	Log        LogConfig
	Http       http.Config
	Database   db.Config
	Redis      RedisConfig
	Auth       AuthConfig
	Revocation RevocationConfig
	Cleanup    CleanupConfig
	Delivery   DeliveryConfig
}

// RedisConfig points the rate limiter at a shared Redis. An empty addr
// falls back to the in-process limiter, which only makes sense for a
// single replica.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AuthConfig struct {
	TokenTTLMinutes int `mapstructure:"token_ttl_minutes"`
}

type RevocationConfig struct {
	HashIterations int `mapstructure:"hash_iterations"`
	MaxAttempts    int `mapstructure:"max_attempts"`
	LockoutMinutes int `mapstructure:"lockout_minutes"`
}

type CleanupConfig struct {
	Secret          string `mapstructure:"secret"`
	RetentionDays   int    `mapstructure:"retention_days"`
	BatchSize       int    `mapstructure:"batch_size"`
	IntervalMinutes int    `mapstructure:"interval_minutes"`
}

type DeliveryConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
}

var config Config

func InitConfig() {
	var err error

	_ = godotenv.Load()

	viper.SetConfigName("application")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./cmd/notify-server")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	_ = viper.BindEnv("http.jwt_secret", "JWT_SECRET")
	_ = viper.BindEnv("database.url", "DATABASE_URL")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("cleanup.secret", "CLEANUP_SECRET")

	if err := viper.ReadInConfig(); err != nil {
		panic(err)
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		panic(err)
	}

	initLogger(config.Log.Level)
}

func (c Config) Validate() error {
	if c.Http.JWTSecret == "" {
		return fmt.Errorf("http.jwt_secret must be set")
	}
	if c.Database.Url == "" {
		return fmt.Errorf("database.url must be set")
	}
	if c.Delivery.WebhookURL == "" {
		return fmt.Errorf("delivery.webhook_url must be set")
	}
	if err := c.Http.RateLimit.Validate(); err != nil {
		return err
	}
	if err := cleanup.ValidateSecret(c.Cleanup.Secret); err != nil {
		return err
	}
	if it := c.Revocation.HashIterations; it != 0 && (it < secure.MinIterations || it > secure.MaxIterations) {
		return fmt.Errorf("revocation.hash_iterations must be between %d and %d", secure.MinIterations, secure.MaxIterations)
	}
	if c.Cleanup.RetentionDays != 0 {
		retention := time.Duration(c.Cleanup.RetentionDays) * 24 * time.Hour
		if retention < cleanup.MinRetention || retention > cleanup.MaxRetention {
			return fmt.Errorf("cleanup.retention_days must be between 1 and 365")
		}
	}
	return nil
}
