package config

import (
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config is the process configuration: where the pricing backend lives, how
// long cached responses stay fresh, and where the UI-facing server listens.
type Config struct {
	Server  ServerConfig  `json:"server"`
	Backend BackendConfig `json:"backend"`
	Cache   CacheConfig   `json:"cache"`
}

type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type BackendConfig struct {
	BaseURL string `json:"base_url"`
	// APIToken is an opaque bearer token handed to us by the embedding
	// application; acquisition is not this client's concern.
	APIToken            string        `json:"api_token,omitempty"`
	HealthCheckInterval time.Duration `json:"health_check_interval"`
}

type CacheConfig struct {
	TTL time.Duration `json:"ttl"`
}

// Load reads config.json from the working directory or ./config, falling
// back to defaults, then applies environment overrides.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 3000)
	viper.SetDefault("backend.base_url", "http://localhost:8000")
	viper.SetDefault("backend.health_check_interval", 30*time.Second)
	viper.SetDefault("cache.ttl", time.Hour)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	loadEnvOverrides(&cfg)
	return &cfg, nil
}

func loadEnvOverrides(cfg *Config) {
	if v := os.Getenv("REMODEL_BACKEND_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv("REMODEL_API_TOKEN"); v != "" {
		cfg.Backend.APIToken = v
	}
	if v := os.Getenv("REMODEL_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("REMODEL_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
}
