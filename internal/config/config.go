package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Server       ServerConfig       `mapstructure:"server"`
	Log          LogConfig          `mapstructure:"log"`
	DB           DBConfig           `mapstructure:"db"`
	Trading      TradingConfig      `mapstructure:"trading"`
	PriceUpdater PriceUpdaterConfig `mapstructure:"price_updater"`
	Cron         CronConfig         `mapstructure:"cron"`
	Gamma        GammaConfig        `mapstructure:"gamma"`
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

type TradingConfig struct {
	DefaultStartingBalance float64 `mapstructure:"default_starting_balance"`
	SignalBatchLimit       int     `mapstructure:"signal_batch_limit"`
}

type PriceUpdaterConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Interval       time.Duration `mapstructure:"interval"`
	FetchBatchSize int           `mapstructure:"fetch_batch_size"`
	MarketSnapshot bool          `mapstructure:"market_snapshot"`
}

type CronConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	DailySnapshot string `mapstructure:"daily_snapshot"`
}

type GammaConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PT")
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
	// dsn must be registered for AutomaticEnv to surface PT_DB_DSN through
	// Unmarshal; viper only binds keys it already knows about.
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("trading.default_starting_balance", 10000)
	v.SetDefault("trading.signal_batch_limit", 500)
	v.SetDefault("price_updater.enabled", true)
	v.SetDefault("price_updater.interval", "300s")
	v.SetDefault("price_updater.fetch_batch_size", 10)
	v.SetDefault("price_updater.market_snapshot", true)
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.daily_snapshot", "@daily")
	v.SetDefault("gamma.base_url", "https://gamma-api.polymarket.com")
	v.SetDefault("gamma.timeout", "30s")

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
