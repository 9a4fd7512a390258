package config

import (
	"fmt"
	"strings"
)

// 默认值常量
const (
	defaultAppEnv         = "dev"
	defaultAppLogLevel    = "info"
	defaultAppLogFormat   = "text"
	defaultStoreDriver    = DriverSQLite
	defaultStorePath      = "data/price_history.db"
	defaultWatchWindow    = "52w"
	defaultFetchTimeout   = 30
	defaultConcurrency    = 1
	defaultHTTPAddr       = ":9992"
	defaultBreakerTimeout = 300
)

// Store drivers understood by the app builder.
const (
	DriverSQLite     = "sqlite"
	DriverSQLitePure = "sqlite_pure"
	DriverMySQL      = "mysql"
	DriverSQLiteRaw  = "sqlite_raw"
)

// Source kinds understood by the capability factory.
const (
	KindStatic  = "static"
	KindJSON    = "json"
	KindBrowser = "browser"
	KindBinance = "binance"
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Store.applyDefaults(keys)
	c.Watch.applyDefaults(keys)
	c.HTTP.applyDefaults(keys)
	for i := range c.Sources {
		c.Sources[i].applyDefaults(i)
	}
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.log_format", &a.LogFormat, defaultAppLogFormat),
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.driver", &s.Driver, defaultStoreDriver),
	)
	s.Driver = strings.ToLower(strings.TrimSpace(s.Driver))
	if s.Driver != DriverMySQL && strings.TrimSpace(s.Path) == "" {
		s.Path = defaultStorePath
	}
}

func (w *WatchConfig) applyDefaults(keys keySet) {
	if w == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("watch.window", &w.Window, defaultWatchWindow),
		fieldDefault{
			key:   "watch.fetch_timeout_seconds",
			need:  func() bool { return w.FetchTimeoutSeconds <= 0 },
			apply: func() { w.FetchTimeoutSeconds = defaultFetchTimeout },
		},
		fieldDefault{
			key:   "watch.concurrency",
			need:  func() bool { return w.Concurrency <= 0 },
			apply: func() { w.Concurrency = defaultConcurrency },
		},
	)
}

func (h *HTTPConfig) applyDefaults(keys keySet) {
	if h == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("http.addr", &h.Addr, defaultHTTPAddr),
	)
}

func (s *SourceConfig) applyDefaults(idx int) {
	s.Match = strings.TrimSpace(s.Match)
	s.Kind = strings.ToLower(strings.TrimSpace(s.Kind))
	if s.Kind == "" {
		s.Kind = KindStatic
	}
	if strings.TrimSpace(s.Site) == "" {
		if s.Match != "" {
			s.Site = s.Match
		} else {
			s.Site = fmt.Sprintf("source_%d", idx)
		}
	}
	if s.BreakerThreshold > 0 && s.BreakerTimeoutSeconds <= 0 {
		s.BreakerTimeoutSeconds = defaultBreakerTimeout
	}
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
