package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	DB         DBConfig         `mapstructure:"db"`
	Yahoo      YahooConfig      `mapstructure:"yahoo"`
	Screener   ScreenerConfig   `mapstructure:"screener"`
	TickerLoad TickerLoadConfig `mapstructure:"ticker_load"`
	PriceSync  PriceSyncConfig  `mapstructure:"price_sync"`
	Cron       CronConfig       `mapstructure:"cron"`
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
	Path            string        `mapstructure:"path"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

type YahooConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

type ScreenerConfig struct {
	URL       string        `mapstructure:"url"`
	OutputDir string        `mapstructure:"output_dir"`
	Headless  bool          `mapstructure:"headless"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type TickerLoadConfig struct {
	CSVPath string `mapstructure:"csv_path"`
}

type PriceSyncConfig struct {
	ChunkSize int           `mapstructure:"chunk_size"`
	Pause     time.Duration `mapstructure:"pause"`
	Resume    bool          `mapstructure:"resume"`
}

type CronConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	PriceSync string `mapstructure:"price_sync"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STOCKDATA")
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
	v.SetDefault("db.path", "stockdata.db")
	v.SetDefault("db.busy_timeout", "5s")
	v.SetDefault("db.max_open_conns", 1)
	v.SetDefault("db.max_idle_conns", 1)
	v.SetDefault("db.conn_max_lifetime", "0")
	v.SetDefault("db.conn_max_idle_time", "0")
	v.SetDefault("yahoo.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("yahoo.timeout", "20s")
	v.SetDefault("yahoo.max_retries", 3)
	v.SetDefault("screener.url", "https://www.nasdaq.com/market-activity/stocks/screener?page=1&rows_per_page=25")
	v.SetDefault("screener.output_dir", "data/tickers")
	v.SetDefault("screener.headless", true)
	v.SetDefault("screener.timeout", "45s")
	v.SetDefault("ticker_load.csv_path", "data/tickers/nasdaq_screener.csv")
	v.SetDefault("price_sync.chunk_size", 50)
	v.SetDefault("price_sync.pause", "500ms")
	v.SetDefault("price_sync.resume", false)
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.price_sync", "0 0 22 * * MON-FRI")

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
