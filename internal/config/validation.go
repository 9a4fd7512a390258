package config

import (
	"fmt"
	"strings"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.Store.validate(); err != nil {
		return err
	}
	if err := c.Watch.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	if err := validateSources(c.Sources); err != nil {
		return err
	}
	if err := validateProducts(c.Products, c.Watch.CatalogPath); err != nil {
		return err
	}
	return nil
}

func (s *StoreConfig) validate() error {
	switch s.Driver {
	case DriverSQLite, DriverSQLitePure, DriverSQLiteRaw:
		if strings.TrimSpace(s.Path) == "" {
			return fmt.Errorf("store.path is required for driver %s", s.Driver)
		}
	case DriverMySQL:
		if strings.TrimSpace(s.DSN) == "" {
			return fmt.Errorf("store.dsn is required for driver mysql")
		}
	default:
		return fmt.Errorf("unsupported store.driver: %s", s.Driver)
	}
	return nil
}

func (w *WatchConfig) validate() error {
	if _, ok := ParseDuration(w.Window); !ok {
		return fmt.Errorf("watch.window is not a valid duration: %q", w.Window)
	}
	if w.FetchTimeoutSeconds <= 0 {
		return fmt.Errorf("watch.fetch_timeout_seconds must be > 0")
	}
	if w.Concurrency <= 0 {
		return fmt.Errorf("watch.concurrency must be >= 1")
	}
	if strings.TrimSpace(w.Interval) != "" {
		if _, ok := ParseDuration(w.Interval); !ok {
			return fmt.Errorf("watch.interval is not a valid duration: %q", w.Interval)
		}
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	if n.Telegram.Enabled {
		if strings.TrimSpace(n.Telegram.BotToken) == "" || strings.TrimSpace(n.Telegram.ChatID) == "" {
			return fmt.Errorf("notify.telegram enabled but bot_token or chat_id missing")
		}
	}
	if n.Twilio.Enabled {
		tw := n.Twilio
		if tw.AccountSID == "" || tw.AuthToken == "" || tw.From == "" || tw.To == "" {
			return fmt.Errorf("notify.twilio enabled but account_sid, auth_token, from and to are all required")
		}
	}
	return nil
}

func validateSources(sources []SourceConfig) error {
	seen := make(map[string]int, len(sources))
	for i, src := range sources {
		key := strings.ToLower(strings.TrimSpace(src.Match))
		if key == "" {
			return fmt.Errorf("sources[%d] missing match", i)
		}
		if prev, ok := seen[key]; ok {
			return fmt.Errorf("sources[%d] match %q duplicates sources[%d] and would never be selected", i, src.Match, prev)
		}
		seen[key] = i
		switch src.Kind {
		case KindStatic, KindBinance:
		case KindJSON:
			if strings.TrimSpace(src.PricePath) == "" {
				return fmt.Errorf("sources[%d] (%s) kind json requires price_path", i, src.Match)
			}
		case KindBrowser:
			if strings.TrimSpace(src.PriceSelector) == "" {
				return fmt.Errorf("sources[%d] (%s) kind browser requires price_selector", i, src.Match)
			}
		default:
			return fmt.Errorf("sources[%d] (%s) has unsupported kind %q", i, src.Match, src.Kind)
		}
		if src.RatePerMinute < 0 || src.BreakerThreshold < 0 {
			return fmt.Errorf("sources[%d] (%s) rate_per_minute and breaker_threshold must be >= 0", i, src.Match)
		}
	}
	return nil
}

func validateProducts(products []ProductConfig, catalogPath string) error {
	if len(products) == 0 && strings.TrimSpace(catalogPath) == "" {
		return fmt.Errorf("no products configured: set products or watch.catalog_path")
	}
	seen := make(map[string]bool, len(products))
	for i, p := range products {
		sku := strings.TrimSpace(p.SKU)
		if sku == "" {
			return fmt.Errorf("products[%d] missing sku", i)
		}
		if seen[sku] {
			return fmt.Errorf("products[%d] duplicate sku %s", i, sku)
		}
		seen[sku] = true
		if strings.TrimSpace(p.URL) == "" {
			return fmt.Errorf("products[%d] (%s) missing url", i, sku)
		}
	}
	return nil
}
