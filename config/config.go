// Package config holds all configuration for the console.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration object.
type Config struct {
	Agent    AgentConfig    `mapstructure:"agent"`
	Server   ServerConfig   `mapstructure:"server"`
	Session  SessionConfig  `mapstructure:"session"`
	Liveness LivenessConfig `mapstructure:"liveness"`
}

// AgentConfig locates the analysis backend.
type AgentConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	StreamRetry time.Duration `mapstructure:"stream_retry"`
}

// ServerConfig contains console HTTP server settings.
type ServerConfig struct {
	Address        string `mapstructure:"address"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
}

// SessionConfig selects and tunes the session state store.
type SessionConfig struct {
	Store string        `mapstructure:"store"` // memory or redis
	TTL   time.Duration `mapstructure:"ttl"`
	Redis RedisConfig   `mapstructure:"redis"`
}

// RedisConfig configures the optional shared session store.
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// LivenessConfig tunes the periodic backend probe.
type LivenessConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// Validate rejects configurations the console cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Agent.BaseURL) == "" {
		return errors.New("agent.base_url must be set")
	}
	switch c.Session.Store {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.Session.Redis.Addr) == "" {
			return errors.New("session.redis.addr must be set when session.store is redis")
		}
	default:
		return fmt.Errorf("session.store must be memory or redis, got %q", c.Session.Store)
	}
	return nil
}

// LoadConfig loads config from file and CMRCONSOLE_* environment variables.
// A missing file is fine when no explicit path was given; defaults cover a
// local backend.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetDefault("agent.base_url", "http://localhost:8000")
	v.SetDefault("agent.timeout", 60*time.Second)
	v.SetDefault("agent.stream_retry", 2*time.Second)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.metrics_enabled", true)
	v.SetDefault("session.store", "memory")
	v.SetDefault("session.ttl", 30*time.Minute)
	v.SetDefault("session.redis.addr", "")
	v.SetDefault("session.redis.db", 0)
	v.SetDefault("session.redis.dial_timeout", 5*time.Second)
	v.SetDefault("liveness.interval", 30*time.Second)

	if path == "" {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("CMRCONSOLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
