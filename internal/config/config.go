package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"CrossSentinel/internal/strategy"
)

// DefaultPath is used when neither --config nor CONFIG_PATH is set.
const DefaultPath = "configs/config.yaml"

// DefaultSymbols is the watched universe: crypto, US equities and ETFs.
var DefaultSymbols = []string{
	"BTC-USD", "ETH-USD", "SOL-USD", "LINK-USD", "BNB-USD", "AAVE-USD", "TAO-USD",
	"NVDA", "META", "IONQ", "ENPH", "TSLA", "AAPL", "TSM", "ASML", "CRM",
	"VOO", "QQQ", "MELI", "MSFT", "GOOGL",
}

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	DataSource struct {
		LookbackYears     int           `yaml:"lookback_years"`
		RequestsPerSecond float64       `yaml:"requests_per_second"`
		Timeout           time.Duration `yaml:"timeout"`
	} `yaml:"data_source"`
	Symbols  []string `yaml:"symbols"`
	Strategy struct {
		FastWindow        int     `yaml:"fast_window"`
		SlowWindow        int     `yaml:"slow_window"`
		RSIWindow         int     `yaml:"rsi_window"`
		VolumeWindow      int     `yaml:"volume_window"`
		MomentumThreshold float64 `yaml:"momentum_threshold"`
	} `yaml:"strategy"`
	Schedule struct {
		Cron string `yaml:"cron"`
	} `yaml:"schedule"`
	Runner struct {
		Concurrency int `yaml:"concurrency"`
	} `yaml:"runner"`
	Cache struct {
		SQLitePath string        `yaml:"sqlite_path"`
		TTL        time.Duration `yaml:"ttl"`
	} `yaml:"cache"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// envOverrides lists the environment variables that win over the file.
type envOverrides struct {
	BotToken    string   `envconfig:"TELEGRAM_BOT_TOKEN"`
	ChatID      string   `envconfig:"TELEGRAM_CHAT_ID"`
	Proxy       string   `envconfig:"HTTPS_PROXY"`
	Cron        string   `envconfig:"CRON_SCHEDULE"`
	SQLitePath  string   `envconfig:"SQLITE_PATH"`
	LogLevel    string   `envconfig:"LOG_LEVEL"`
	Symbols     []string `envconfig:"SYMBOLS"`
	MetricsAddr string   `envconfig:"METRICS_ADDR"`
}

// ResolvePath picks the config file: explicit flag, then CONFIG_PATH, then DefaultPath.
func ResolvePath(flag string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads .env, then the YAML file, then applies environment variable
// overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	cfg.applyEnv(env)
	cfg.applyDefaults()

	return cfg, nil
}

func (c *Config) applyEnv(env envOverrides) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Telegram.BotToken, env.BotToken)
	set(&c.Telegram.ChatID, env.ChatID)
	set(&c.Proxy, env.Proxy)
	set(&c.Schedule.Cron, env.Cron)
	set(&c.Cache.SQLitePath, env.SQLitePath)
	set(&c.Log.Level, env.LogLevel)
	set(&c.Metrics.Addr, env.MetricsAddr)
	if len(env.Symbols) > 0 {
		c.Symbols = env.Symbols
	}
}

func (c *Config) applyDefaults() {
	symbols := make([]string, 0, len(c.Symbols))
	for _, s := range c.Symbols {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			symbols = append(symbols, s)
		}
	}
	c.Symbols = symbols
	if len(c.Symbols) == 0 {
		c.Symbols = append([]string(nil), DefaultSymbols...)
	}

	if c.DataSource.LookbackYears == 0 {
		c.DataSource.LookbackYears = 3
	}
	if c.DataSource.RequestsPerSecond == 0 {
		c.DataSource.RequestsPerSecond = 2
	}
	if c.DataSource.Timeout == 0 {
		c.DataSource.Timeout = 30 * time.Second
	}

	def := strategy.DefaultParams()
	if c.Strategy.FastWindow == 0 {
		c.Strategy.FastWindow = def.FastWindow
	}
	if c.Strategy.SlowWindow == 0 {
		c.Strategy.SlowWindow = def.SlowWindow
	}
	if c.Strategy.RSIWindow == 0 {
		c.Strategy.RSIWindow = def.RSIWindow
	}
	if c.Strategy.VolumeWindow == 0 {
		c.Strategy.VolumeWindow = def.VolumeWindow
	}
	if c.Strategy.MomentumThreshold == 0 {
		c.Strategy.MomentumThreshold = def.MomentumThreshold
	}

	if c.Schedule.Cron == "" {
		c.Schedule.Cron = "0 0 */8 * * *"
	}
	if c.Runner.Concurrency == 0 {
		c.Runner.Concurrency = 4
	}
	if c.Cache.SQLitePath == "" {
		c.Cache.SQLitePath = "data/crosssentinel.db"
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 6 * time.Hour
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks that all fields are usable. Missing Telegram credentials
// are allowed: messages are then written to the log.
func (c *Config) Validate() error {
	s := c.Strategy
	if s.FastWindow <= 0 || s.SlowWindow <= 0 || s.RSIWindow <= 0 || s.VolumeWindow <= 0 {
		return fmt.Errorf("strategy windows must be positive")
	}
	if s.FastWindow >= s.SlowWindow {
		return fmt.Errorf("strategy.fast_window (%d) must be below slow_window (%d)", s.FastWindow, s.SlowWindow)
	}
	if s.MomentumThreshold <= 0 || s.MomentumThreshold >= 100 {
		return fmt.Errorf("strategy.momentum_threshold must be between 0 and 100")
	}
	if len(c.Symbols) == 0 {
		return fmt.Errorf("symbols must not be empty")
	}
	if c.Runner.Concurrency < 1 {
		return fmt.Errorf("runner.concurrency must be at least 1")
	}
	if c.Schedule.Cron == "" {
		return fmt.Errorf("schedule.cron is required")
	}
	if c.DataSource.LookbackYears < 1 {
		return fmt.Errorf("data_source.lookback_years must be at least 1")
	}
	return nil
}

// StrategyParams converts the strategy section.
func (c *Config) StrategyParams() strategy.Params {
	return strategy.Params{
		FastWindow:        c.Strategy.FastWindow,
		SlowWindow:        c.Strategy.SlowWindow,
		RSIWindow:         c.Strategy.RSIWindow,
		VolumeWindow:      c.Strategy.VolumeWindow,
		MomentumThreshold: c.Strategy.MomentumThreshold,
	}
}
