package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	DB        DBConfig        `mapstructure:"db"`
	Cron      CronConfig      `mapstructure:"cron"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	Resolver  ResolverConfig  `mapstructure:"resolver"`
	Trend     TrendConfig     `mapstructure:"trend"`
	PriceSync PriceSyncConfig `mapstructure:"price_sync"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	PriceSync string `mapstructure:"price_sync"`
}

// ProviderConfig points at the open-data price resource. An empty APIKey is
// accepted; the provider then serves its public sample quota.
type ProviderConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	ResourceID string        `mapstructure:"resource_id"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	PageLimit  int           `mapstructure:"page_limit"`
	MaxPages   int           `mapstructure:"max_pages"`
}

type ResolverConfig struct {
	MemoryTTL      time.Duration `mapstructure:"memory_ttl"`
	LookbackDays   int           `mapstructure:"lookback_days"`
	ProbeBatchSize int           `mapstructure:"probe_batch_size"`
	DefaultLimit   int           `mapstructure:"default_limit"`
}

type TrendConfig struct {
	WindowDays int `mapstructure:"window_days"`
	BatchSize  int `mapstructure:"batch_size"`
}

// PriceSyncConfig drives the scheduled bulk ingestion. Scopes are
// "State" or "State/Commodity" pairs synced independently.
type PriceSyncConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Scopes  []string `mapstructure:"scopes"`
	Limit   int      `mapstructure:"limit"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MANDI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.price_sync", "0 30 * * * *")
	v.SetDefault("provider.base_url", "https://api.data.gov.in")
	v.SetDefault("provider.resource_id", "9ef84268-d588-465a-a308-a864a43d0070")
	v.SetDefault("provider.timeout", "15s")
	v.SetDefault("provider.page_limit", 500)
	v.SetDefault("provider.max_pages", 4)
	v.SetDefault("resolver.memory_ttl", "10m")
	v.SetDefault("resolver.lookback_days", 30)
	v.SetDefault("resolver.probe_batch_size", 7)
	v.SetDefault("resolver.default_limit", 100)
	v.SetDefault("trend.window_days", 7)
	v.SetDefault("trend.batch_size", 7)
	v.SetDefault("price_sync.enabled", true)
	v.SetDefault("price_sync.limit", 2000)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
