package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"pricewatch/internal/catalog"
	"pricewatch/internal/config"
	"pricewatch/internal/gateway/notifier"
	"pricewatch/internal/logger"
	"pricewatch/internal/monitor"
	"pricewatch/internal/source"
	"pricewatch/internal/store"
	"pricewatch/internal/store/gormstore"
	"pricewatch/internal/store/sqlitestore"
	statushttp "pricewatch/internal/transport/http/status"
)

type AppBuilder struct {
	cfg *config.Config

	storeFn    func(config.StoreConfig) (store.ObservationStore, error)
	registryFn func([]config.SourceConfig) (*source.Registry, error)
	notifierFn func(config.NotifyConfig) notifier.Notifier
	nowFn      func() time.Time

	watchCatalog bool
}

type AppBuilderOption func(*AppBuilder)

// WithStore replaces the configured store backend.
func WithStore(s store.ObservationStore) AppBuilderOption {
	return func(b *AppBuilder) {
		b.storeFn = func(config.StoreConfig) (store.ObservationStore, error) { return s, nil }
	}
}

func WithRegistry(r *source.Registry) AppBuilderOption {
	return func(b *AppBuilder) {
		b.registryFn = func([]config.SourceConfig) (*source.Registry, error) { return r, nil }
	}
}

func WithNotifier(n notifier.Notifier) AppBuilderOption {
	return func(b *AppBuilder) {
		b.notifierFn = func(config.NotifyConfig) notifier.Notifier { return n }
	}
}

func WithClock(now func() time.Time) AppBuilderOption {
	return func(b *AppBuilder) { b.nowFn = now }
}

// WithCatalogWatch reloads the catalog file on change; meant for loop mode.
func WithCatalogWatch(watch bool) AppBuilderOption {
	return func(b *AppBuilder) { b.watchCatalog = watch }
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:        cfg,
		storeFn:    openStore,
		registryFn: buildRegistry,
		notifierFn: buildNotifier,
		nowFn:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func openStore(cfg config.StoreConfig) (store.ObservationStore, error) {
	if strings.EqualFold(cfg.Driver, config.DriverSQLiteRaw) {
		return sqlitestore.Open(cfg.Path)
	}
	return gormstore.Open(cfg)
}

func buildRegistry(sources []config.SourceConfig) (*source.Registry, error) {
	return source.NewRegistryFromConfig(sources, &http.Client{Timeout: 60 * time.Second})
}

func buildNotifier(cfg config.NotifyConfig) notifier.Notifier {
	return notifier.FromConfig(cfg, os.Stdout)
}

// Build opens the store and wires the pipeline. The store is closed again if
// any later step fails.
func (b *AppBuilder) Build(_ context.Context) (*App, error) {
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	st, err := b.storeFn(b.cfg.Store)
	if err != nil {
		return nil, &monitor.StorageInitError{Err: err}
	}
	app, err := b.assemble(st)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return app, nil
}

func (b *AppBuilder) assemble(st store.ObservationStore) (*App, error) {
	cfg := b.cfg
	registry, err := b.registryFn(cfg.Sources)
	if err != nil {
		return nil, fmt.Errorf("build source registry: %w", err)
	}
	logger.Infof("✓ %d sources registered: %v", registry.Len(), registry.Matches())

	n := b.notifierFn(cfg.Notify)

	var cat *catalog.Catalog
	if path := strings.TrimSpace(cfg.Watch.CatalogPath); path != "" {
		cat, err = catalog.Open(path, b.watchCatalog)
		if err != nil {
			return nil, err
		}
	}

	mon, err := monitor.NewMonitor(monitor.Params{
		Store:    st,
		Sources:  registry,
		Notifier: n,
		Options: monitor.Options{
			Window:       cfg.Watch.WindowDuration(),
			FetchTimeout: cfg.Watch.FetchTimeout(),
			Concurrency:  cfg.Watch.Concurrency,
		},
		Now: b.nowFn,
	})
	if err != nil {
		return nil, err
	}

	app := &App{
		cfg:     cfg,
		store:   st,
		monitor: mon,
		catalog: cat,
		reports: newReportCache(),
	}
	if cfg.HTTP.Enabled {
		srv, err := statushttp.NewServer(statushttp.ServerConfig{
			Addr:     cfg.HTTP.Addr,
			Store:    st,
			Products: app.Products,
			Window:   mon.Options().Window,
			Reports:  app.reports,
			Now:      b.nowFn,
		})
		if err != nil {
			return nil, fmt.Errorf("init status http: %w", err)
		}
		app.statusHTTP = srv
	}
	if cat != nil {
		cat.OnChange(func(snap catalog.Snapshot) {
			logger.Infof("catalog v%d reloaded, next pass tracks %d products", snap.Version, len(app.Products()))
		})
	}
	app.Summary = buildSummary(cfg, registry, n, mon.Options(), len(app.Products()))
	return app, nil
}
