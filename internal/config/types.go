package config

import (
	"strings"
	"time"

	"pricewatch/internal/scheduler"
	"pricewatch/internal/types"
)

// Config is the immutable run configuration handed to the app builder.
type Config struct {
	App      AppConfig       `toml:"app"`
	Store    StoreConfig     `toml:"store"`
	Watch    WatchConfig     `toml:"watch"`
	Notify   NotifyConfig    `toml:"notify"`
	HTTP     HTTPConfig      `toml:"http"`
	Sources  []SourceConfig  `toml:"sources"`
	Products []ProductConfig `toml:"products"`
}

type AppConfig struct {
	Env       string `toml:"env"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	LogPath   string `toml:"log_path"`
}

// StoreConfig selects the observation store backend.
//
//	sqlite      gorm + mattn/go-sqlite3
//	sqlite_pure gorm + modernc.org/sqlite (no cgo)
//	mysql       gorm + go-sql-driver/mysql, uses dsn
//	sqlite_raw  database/sql + modernc.org/sqlite with hand written DDL
type StoreConfig struct {
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
	DSN    string `toml:"dsn"`
}

type WatchConfig struct {
	Window              string `toml:"window"`
	FetchTimeoutSeconds int    `toml:"fetch_timeout_seconds"`
	Concurrency         int    `toml:"concurrency"`
	Interval            string `toml:"interval"`
	CatalogPath         string `toml:"catalog_path"`
}

// WindowDuration returns the trailing-low window. Validation guarantees it
// parses once Load has returned.
func (w WatchConfig) WindowDuration() time.Duration {
	d, _ := ParseDuration(w.Window)
	return d
}

func (w WatchConfig) FetchTimeout() time.Duration {
	return time.Duration(w.FetchTimeoutSeconds) * time.Second
}

// IntervalDuration returns the loop cadence; ok is false for single-pass runs.
func (w WatchConfig) IntervalDuration() (time.Duration, bool) {
	if strings.TrimSpace(w.Interval) == "" {
		return 0, false
	}
	return ParseDuration(w.Interval)
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
	Twilio   TwilioConfig   `toml:"twilio"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

type TwilioConfig struct {
	Enabled    bool   `toml:"enabled"`
	AccountSID string `toml:"account_sid"`
	AuthToken  string `toml:"auth_token"`
	From       string `toml:"from"`
	To         string `toml:"to"`
}

type HTTPConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// SourceConfig registers one fetch capability under a locator match token.
// Order in the file is registration order; the first matching token wins.
type SourceConfig struct {
	Match string `toml:"match"`
	Kind  string `toml:"kind"`
	Site  string `toml:"site"`

	// static
	Price     float64 `toml:"price"`
	Shipping  float64 `toml:"shipping"`
	Available *bool   `toml:"available"`

	// json
	Endpoint      string            `toml:"endpoint"`
	PricePath     string            `toml:"price_path"`
	ShippingPath  string            `toml:"shipping_path"`
	AvailablePath string            `toml:"available_path"`
	Headers       map[string]string `toml:"headers"`

	// browser
	PriceSelector     string `toml:"price_selector"`
	ShippingSelector  string `toml:"shipping_selector"`
	AvailableSelector string `toml:"available_selector"`

	// binance
	BaseURL string `toml:"base_url"`

	RatePerMinute         int `toml:"rate_per_minute"`
	BreakerThreshold      int `toml:"breaker_threshold"`
	BreakerTimeoutSeconds int `toml:"breaker_timeout_seconds"`
}

type ProductConfig struct {
	SKU  string `toml:"sku"`
	Name string `toml:"name"`
	URL  string `toml:"url"`
}

// TrackedProducts converts the inline product list into core values.
func (c *Config) TrackedProducts() []types.Product {
	if c == nil || len(c.Products) == 0 {
		return nil
	}
	out := make([]types.Product, 0, len(c.Products))
	for _, p := range c.Products {
		out = append(out, types.Product{
			SKU:     strings.TrimSpace(p.SKU),
			Name:    strings.TrimSpace(p.Name),
			Locator: strings.TrimSpace(p.URL),
		})
	}
	return out
}

// ParseDuration accepts the scheduler shorthand ("1d", "52w") and falls back
// to time.ParseDuration.
func ParseDuration(raw string) (time.Duration, bool) {
	if d, ok := scheduler.ParseIntervalDuration(raw); ok {
		return d, true
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
