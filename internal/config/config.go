package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config maps the entire application configuration. Values come from
// ./configs/config.yaml with environment variable overrides (dots become
// underscores, e.g. SERVER_PORT).
type Config struct {
	Server struct {
		Port    int    `mapstructure:"port"`
		BaseURL string `mapstructure:"base_url"`
	} `mapstructure:"server"`

	Database struct {
		Name string `mapstructure:"name"`
	} `mapstructure:"database"`

	// Analytics tunes the asynchronous click recording pipeline.
	Analytics struct {
		BufferSize  int `mapstructure:"buffer_size"`
		WorkerCount int `mapstructure:"worker_count"`
	} `mapstructure:"analytics"`

	// Monitor drives the background sweep: expiry deactivation and
	// destination health checks.
	Monitor struct {
		IntervalMinutes int `mapstructure:"interval_minutes"`
	} `mapstructure:"monitor"`

	Links struct {
		CodeLength int `mapstructure:"code_length"`
		MaxRetries int `mapstructure:"max_retries"`
	} `mapstructure:"links"`

	Security struct {
		// IntegritySecret keys the tamper-detection hash. Changing it
		// invalidates every stored hash.
		IntegritySecret    string `mapstructure:"integrity_secret"`
		SafeBrowsingAPIKey string `mapstructure:"safe_browsing_api_key"`
	} `mapstructure:"security"`

	GeoIP struct {
		DatabasePath   string `mapstructure:"database_path"`
		TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	} `mapstructure:"geoip"`

	Redis struct {
		Addr            string `mapstructure:"addr"`
		Password        string `mapstructure:"password"`
		CacheTTLSeconds int    `mapstructure:"cache_ttl_seconds"`
	} `mapstructure:"redis"`
}

// LoadConfig loads the application configuration using Viper.
// A missing config file is not fatal; defaults cover every key.
func LoadConfig() (*Config, error) {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.AddConfigPath("./configs")
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.base_url", "http://localhost:8080")
	viper.SetDefault("database.name", "urlbriefr.db")
	viper.SetDefault("analytics.buffer_size", 1000)
	viper.SetDefault("analytics.worker_count", 5)
	viper.SetDefault("monitor.interval_minutes", 5)
	viper.SetDefault("links.code_length", 6)
	viper.SetDefault("links.max_retries", 10)
	viper.SetDefault("security.integrity_secret", "change-me-in-production")
	viper.SetDefault("security.safe_browsing_api_key", "")
	viper.SetDefault("geoip.database_path", "")
	viper.SetDefault("geoip.timeout_seconds", 2)
	viper.SetDefault("redis.addr", "")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.cache_ttl_seconds", 600)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("Config file not found, using default values")
		} else {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	log.Printf("Configuration loaded: Server Port=%d, DB Name=%s, Analytics Buffer=%d, Monitor Interval=%dmin",
		cfg.Server.Port, cfg.Database.Name, cfg.Analytics.BufferSize, cfg.Monitor.IntervalMinutes)

	return &cfg, nil
}
