// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Search   SearchConfig   `mapstructure:"search"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Server   ServerConfig   `mapstructure:"server"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// SearchConfig holds the ranking engine's tunables.
type SearchConfig struct {
	DebounceMs       int      `mapstructure:"debounce_ms"`
	MinQueryLength   int      `mapstructure:"min_query_length"`
	InstantSearch    bool     `mapstructure:"instant_search"`
	CacheTTLMs       int      `mapstructure:"cache_ttl_ms"`
	ComputeTimeoutMs int      `mapstructure:"compute_timeout_ms"`
	MaxResults       int      `mapstructure:"max_results"`
	SuggestionLimit  int      `mapstructure:"suggestion_limit"`
	PreloadQueries   []string `mapstructure:"preload_queries"`
}

// DebounceWindow returns the debounce window, honoring instant search.
func (s SearchConfig) DebounceWindow() time.Duration {
	if s.InstantSearch {
		return 0
	}
	return time.Duration(s.DebounceMs) * time.Millisecond
}

// CacheTTL returns the cache entry time-to-live.
func (s SearchConfig) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLMs) * time.Millisecond
}

// ComputeTimeout returns the per-computation deadline.
func (s SearchConfig) ComputeTimeout() time.Duration {
	return time.Duration(s.ComputeTimeoutMs) * time.Millisecond
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	SSLEnabled bool     `mapstructure:"ssl_enabled"`
	Index      string   `mapstructure:"index"`
	URL        string   `mapstructure:"url"` // Single URL for backwards compatibility
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// ServerConfig holds settings for the metrics/pprof HTTP listener.
type ServerConfig struct {
	MetricsAddr string `mapstructure:"metrics_addr"`
}
