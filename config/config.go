package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// HardMaxPerPage is the server-side ceiling on page size. Configuration may
// lower it but never raise it.
const HardMaxPerPage = 100

// Config is the complete service configuration.
type Config struct {
	HTTP       HTTPConfig       `mapstructure:"http"`
	API        APIConfig        `mapstructure:"api"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Cache      CacheConfig      `mapstructure:"cache"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Log        LogConfig        `mapstructure:"log"`
	Pagination PaginationConfig `mapstructure:"pagination"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type APIConfig struct {
	Version string `mapstructure:"version"`
}

// DatabaseConfig configures the relational store. URLs starting with
// postgres:// or postgresql:// select the Postgres driver, anything else is
// treated as a SQLite path.
type DatabaseConfig struct {
	URL          string        `mapstructure:"url"`
	Migrate      bool          `mapstructure:"migrate"`
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
}

// CacheConfig configures the analytics/profile cache.
type CacheConfig struct {
	Backend  string        `mapstructure:"backend"` // redis, sql or none
	RedisURL string        `mapstructure:"redis_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	PoolSize int           `mapstructure:"pool_size"`
}

type CORSConfig struct {
	Origins []string `mapstructure:"origins"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type PaginationConfig struct {
	DefaultPerPage int `mapstructure:"default_per_page"`
	MaxPerPage     int `mapstructure:"max_per_page"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:            ":8000",
			ShutdownTimeout: 10 * time.Second,
		},
		API: APIConfig{Version: "v1"},
		Database: DatabaseConfig{
			URL:          "dei-tracker.db",
			Migrate:      true,
			QueryTimeout: 5 * time.Second,
			MaxOpenConns: 10,
		},
		Cache: CacheConfig{
			Backend:  "sql",
			RedisURL: "redis://localhost:6379/0",
			Timeout:  500 * time.Millisecond,
			PoolSize: 20,
		},
		CORS: CORSConfig{Origins: []string{"*"}},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Pagination: PaginationConfig{
			DefaultPerPage: 20,
			MaxPerPage:     HardMaxPerPage,
		},
	}
}

// Load reads configuration from defaults, an optional config file and DEI_*
// environment variables (DEI_DATABASE_URL, DEI_CACHE_BACKEND, ...). An empty
// path searches the working directory for dei-tracker.{yaml,json,toml}.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix("DEI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("dei-tracker")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("http.addr", d.HTTP.Addr)
	v.SetDefault("http.shutdown_timeout", d.HTTP.ShutdownTimeout)
	v.SetDefault("api.version", d.API.Version)
	v.SetDefault("database.url", d.Database.URL)
	v.SetDefault("database.migrate", d.Database.Migrate)
	v.SetDefault("database.query_timeout", d.Database.QueryTimeout)
	v.SetDefault("database.max_open_conns", d.Database.MaxOpenConns)
	v.SetDefault("cache.backend", d.Cache.Backend)
	v.SetDefault("cache.redis_url", d.Cache.RedisURL)
	v.SetDefault("cache.timeout", d.Cache.Timeout)
	v.SetDefault("cache.pool_size", d.Cache.PoolSize)
	v.SetDefault("cors.origins", d.CORS.Origins)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("pagination.default_per_page", d.Pagination.DefaultPerPage)
	v.SetDefault("pagination.max_per_page", d.Pagination.MaxPerPage)
}

// Validate checks ranges and clamps the page-size ceiling.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Database.QueryTimeout <= 0 {
		return errors.New("database.query_timeout must be positive")
	}
	if c.Cache.Timeout <= 0 {
		return errors.New("cache.timeout must be positive")
	}
	switch c.Cache.Backend {
	case "redis", "sql", "none":
	default:
		return fmt.Errorf("cache.backend must be redis, sql or none, got %q", c.Cache.Backend)
	}
	if c.Cache.Backend == "redis" && c.Cache.RedisURL == "" {
		return errors.New("cache.redis_url is required for the redis backend")
	}
	if c.Pagination.MaxPerPage <= 0 || c.Pagination.MaxPerPage > HardMaxPerPage {
		c.Pagination.MaxPerPage = HardMaxPerPage
	}
	if c.Pagination.DefaultPerPage <= 0 {
		c.Pagination.DefaultPerPage = 20
	}
	if c.Pagination.DefaultPerPage > c.Pagination.MaxPerPage {
		c.Pagination.DefaultPerPage = c.Pagination.MaxPerPage
	}
	return nil
}

// IsPostgres reports whether the database URL points at Postgres.
func (d DatabaseConfig) IsPostgres() bool {
	return strings.HasPrefix(d.URL, "postgres://") || strings.HasPrefix(d.URL, "postgresql://")
}
