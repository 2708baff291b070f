// Package config loads service configuration from an optional YAML file,
// an optional .env file and environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/liamcoop/visarules/eligibility"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Log         LogConfig         `mapstructure:"log"`
	Engine      EngineConfig      `mapstructure:"engine"`
	Eligibility EligibilityConfig `mapstructure:"eligibility"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBatchSize    int           `mapstructure:"max_batch_size"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

// DatabaseConfig selects PostgreSQL storage when URL is set; otherwise the
// service runs on in-memory stores seeded with the built-in catalogs
type DatabaseConfig struct {
	URL          string `mapstructure:"url"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// RedisConfig enables the shared Redis catalog cache when Addr is set
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CacheConfig struct {
	TTL    time.Duration `mapstructure:"ttl"`
	Prefix string        `mapstructure:"prefix"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	SampleRate int    `mapstructure:"sample_rate"`
}

type EngineConfig struct {
	Parallelism int `mapstructure:"parallelism"`
}

type EligibilityConfig struct {
	PassScore       int `mapstructure:"pass_score"`
	BorderlineScore int `mapstructure:"borderline_score"`
}

// Thresholds returns the eligibility thresholds
func (c EligibilityConfig) Thresholds() eligibility.Thresholds {
	return eligibility.Thresholds{Pass: c.PassScore, Borderline: c.BorderlineScore}
}

// Environment variables bound to config keys
var envBindings = map[string]string{
	"server.port":                  "PORT",
	"server.max_batch_size":        "MAX_BATCH_SIZE",
	"server.max_body_bytes":        "MAX_BODY_BYTES",
	"database.url":                 "DATABASE_URL",
	"redis.addr":                   "REDIS_ADDR",
	"redis.password":               "REDIS_PASSWORD",
	"redis.db":                     "REDIS_DB",
	"cache.ttl":                    "CACHE_TTL",
	"log.level":                    "LOG_LEVEL",
	"log.sample_rate":              "ERROR_SAMPLE_RATE",
	"engine.parallelism":           "ENGINE_PARALLELISM",
	"eligibility.pass_score":       "PASS_SCORE",
	"eligibility.borderline_score": "BORDERLINE_SCORE",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.max_batch_size", 1000)
	v.SetDefault("server.max_body_bytes", 8<<20)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("cache.ttl", time.Hour)
	v.SetDefault("cache.prefix", "visarules:catalog:")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.sample_rate", 1)

	v.SetDefault("engine.parallelism", 1)

	v.SetDefault("eligibility.pass_score", eligibility.DefaultPassScore)
	v.SetDefault("eligibility.borderline_score", eligibility.DefaultBorderlineScore)
}

// Load reads configuration. configFile may be empty, in which case
// config.yaml is looked up in ./configs and the working directory and is
// optional. A .env file in the working directory is loaded when present;
// it never overrides variables already set in the environment.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for values the service cannot run with
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Server.MaxBatchSize <= 0 {
		return fmt.Errorf("server.max_batch_size must be positive")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive")
	}
	if c.Engine.Parallelism < 1 {
		return fmt.Errorf("engine.parallelism must be at least 1")
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl cannot be negative")
	}
	if err := c.Eligibility.Thresholds().Validate(); err != nil {
		return fmt.Errorf("eligibility: %w", err)
	}
	return nil
}
