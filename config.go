package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	providerTWSE  = "twse"
	providerYahoo = "yahoo"
)

// Config holds all application configuration.
type Config struct {
	Server struct {
		Port      string `yaml:"port"`
		StaticDir string `yaml:"static_dir"`
	} `yaml:"server"`
	Upstream struct {
		TWSEBaseURL  string        `yaml:"twse_base_url"`
		YahooBaseURL string        `yaml:"yahoo_base_url"`
		MISBaseURL   string        `yaml:"mis_base_url"`
		UserAgent    string        `yaml:"user_agent"`
		Timeout      time.Duration `yaml:"timeout"`
		QuoteTimeout time.Duration `yaml:"quote_timeout"`
		PageDelay    time.Duration `yaml:"page_delay"`
		BufferDays   int           `yaml:"buffer_days"`
		Providers    []string      `yaml:"providers"`
		MaxMonths    int           `yaml:"max_months"`
	} `yaml:"upstream"`
	Directory struct {
		CSVPath  string   `yaml:"csv_path"`
		ISINURLs []string `yaml:"isin_urls"`
	} `yaml:"directory"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Schedule struct {
		Enabled       bool   `yaml:"enabled"`
		QuoteCron     string `yaml:"quote_cron"`
		DirectoryCron string `yaml:"directory_cron"`
	} `yaml:"schedule"`
	Log struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"log"`
}

// LoadConfig reads .env and the YAML file at path (both optional), then
// applies environment overrides and defaults.
func LoadConfig(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

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

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("TWSE_BASE_URL"); v != "" {
		c.Upstream.TWSEBaseURL = v
	}
	if v := os.Getenv("YAHOO_BASE_URL"); v != "" {
		c.Upstream.YahooBaseURL = v
	}
	if v := os.Getenv("MIS_BASE_URL"); v != "" {
		c.Upstream.MISBaseURL = v
	}
	if v := os.Getenv("STOCK_PROVIDERS"); v != "" {
		var providers []string
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				providers = append(providers, strings.ToLower(p))
			}
		}
		c.Upstream.Providers = providers
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8888"
	}
	if c.Server.StaticDir == "" {
		c.Server.StaticDir = "./static"
	}
	if c.Upstream.TWSEBaseURL == "" {
		c.Upstream.TWSEBaseURL = "https://www.twse.com.tw"
	}
	if c.Upstream.YahooBaseURL == "" {
		c.Upstream.YahooBaseURL = "https://query1.finance.yahoo.com"
	}
	if c.Upstream.MISBaseURL == "" {
		c.Upstream.MISBaseURL = "https://mis.twse.com.tw"
	}
	if c.Upstream.UserAgent == "" {
		c.Upstream.UserAgent = "Mozilla/5.0"
	}
	if c.Upstream.Timeout == 0 {
		c.Upstream.Timeout = 10 * time.Second
	}
	if c.Upstream.QuoteTimeout == 0 {
		c.Upstream.QuoteTimeout = 8 * time.Second
	}
	if c.Upstream.PageDelay == 0 {
		c.Upstream.PageDelay = 300 * time.Millisecond
	}
	if c.Upstream.BufferDays == 0 {
		c.Upstream.BufferDays = 5
	}
	if len(c.Upstream.Providers) == 0 {
		c.Upstream.Providers = []string{providerYahoo, providerTWSE}
	}
	if c.Upstream.MaxMonths == 0 {
		c.Upstream.MaxMonths = 24
	}
	if c.Directory.CSVPath == "" {
		c.Directory.CSVPath = "stocks.csv"
	}
	if c.Schedule.QuoteCron == "" {
		c.Schedule.QuoteCron = "*/5 9-13 * * 1-5"
	}
	if c.Schedule.DirectoryCron == "" {
		c.Schedule.DirectoryCron = "0 8 * * 1-5"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks that the loaded values are usable.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if len(c.Upstream.Providers) == 0 {
		return fmt.Errorf("upstream.providers must not be empty")
	}
	for _, p := range c.Upstream.Providers {
		if p != providerTWSE && p != providerYahoo {
			return fmt.Errorf("unknown provider %q (want %s or %s)", p, providerTWSE, providerYahoo)
		}
	}
	if c.Upstream.Timeout < 0 || c.Upstream.QuoteTimeout < 0 || c.Upstream.PageDelay < 0 {
		return fmt.Errorf("upstream durations must not be negative")
	}
	if c.Upstream.MaxMonths < 1 {
		return fmt.Errorf("upstream.max_months must be positive")
	}
	return nil
}
