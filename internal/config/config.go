// Package config loads process configuration from an optional config.yaml overridden by
// environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type DatabaseConfig struct {
	URL         string        `mapstructure:"url"`
	LockTimeout time.Duration `mapstructure:"lockTimeout"`
	MaxConns    int32         `mapstructure:"maxConns"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Environment string `mapstructure:"environment"`
}

type ValidationConfig struct {
	MaxAttempts int `mapstructure:"maxAttempts"`
}

type ReservationsConfig struct {
	SweepInterval time.Duration `mapstructure:"sweepInterval"`
	DefaultTTL    time.Duration `mapstructure:"defaultTTL"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	CORS         CORSConfig         `mapstructure:"cors"`
	Log          LogConfig          `mapstructure:"log"`
	Validation   ValidationConfig   `mapstructure:"validation"`
	Reservations ReservationsConfig `mapstructure:"reservations"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
}

var envBindings = map[string]string{
	"server.port":                "SERVER_PORT",
	"database.url":               "DATABASE_URL",
	"database.lockTimeout":       "DB_LOCK_TIMEOUT",
	"database.maxConns":          "DB_MAX_CONNS",
	"jwt.secret":                 "JWT_SECRET",
	"jwt.expiration":             "JWT_EXPIRATION",
	"cors.allowedOrigins":        "ALLOWED_ORIGINS",
	"log.level":                  "LOG_LEVEL",
	"log.environment":            "ENVIRONMENT",
	"validation.maxAttempts":     "VALIDATION_MAX_ATTEMPTS",
	"reservations.sweepInterval": "RESERVATION_SWEEP_INTERVAL",
	"reservations.defaultTTL":    "RESERVATION_DEFAULT_TTL",
	"kafka.brokers":              "KAFKA_BROKERS",
	"kafka.topic":                "KAFKA_TOPIC",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("database.url", "")
	v.SetDefault("database.lockTimeout", 5*time.Second)
	v.SetDefault("database.maxConns", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiration", time.Hour)
	v.SetDefault("cors.allowedOrigins", []string{})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.environment", "development")
	v.SetDefault("validation.maxAttempts", 4)
	v.SetDefault("reservations.sweepInterval", time.Minute)
	v.SetDefault("reservations.defaultTTL", 7*24*time.Hour)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "stock-events")
}

// Load reads config.yaml from path when present, then applies environment overrides.
// A missing file is not an error. The result is not validated; call Validate.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Validate reports settings the server cannot start without.
func (c Config) Validate() error {
	var errs []error
	if c.Database.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.JWT.Expiration <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRATION must be positive"))
	}
	if c.Validation.MaxAttempts < 1 {
		errs = append(errs, errors.New("VALIDATION_MAX_ATTEMPTS must be at least 1"))
	}
	if c.Reservations.SweepInterval <= 0 {
		errs = append(errs, errors.New("RESERVATION_SWEEP_INTERVAL must be positive"))
	}
	return errors.Join(errs...)
}

// KafkaEnabled reports whether domain events should be published to Kafka.
func (c Config) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0 && c.Kafka.Brokers[0] != ""
}
