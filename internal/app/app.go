package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pricewatch/internal/catalog"
	"pricewatch/internal/config"
	"pricewatch/internal/logger"
	"pricewatch/internal/monitor"
	"pricewatch/internal/scheduler"
	"pricewatch/internal/store"
	"pricewatch/internal/types"
	statushttp "pricewatch/internal/transport/http/status"

	"golang.org/x/sync/errgroup"
)

// DefaultLoopInterval is used by loop mode when watch.interval is unset.
const DefaultLoopInterval = 24 * time.Hour

// App 负责应用级编排：持有 store / monitor，执行单次或循环巡检。
type App struct {
	cfg        *config.Config
	store      store.ObservationStore
	monitor    *monitor.Monitor
	catalog    *catalog.Catalog
	statusHTTP *statushttp.Server
	reports    *reportCache
	Summary    *StartupSummary
}

// NewApp builds the application without running a pass.
func NewApp(cfg *config.Config, opts ...AppBuilderOption) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg, opts)
}

// Products is the inline list overlaid with the catalog file, if any.
func (a *App) Products() []types.Product {
	inline := a.cfg.TrackedProducts()
	if a.catalog == nil {
		return inline
	}
	return catalog.Merge(inline, a.catalog.Products())
}

// RunOnce performs one pass over the current product list.
func (a *App) RunOnce(ctx context.Context) (monitor.PassReport, error) {
	report, err := a.monitor.RunPass(ctx, a.Products())
	if err == nil {
		a.reports.Set(report)
	}
	return report, err
}

// Run executes a single pass, or with loop set keeps running passes on the
// configured interval (and serves the status API when enabled) until ctx ends.
func (a *App) Run(ctx context.Context, loop bool) error {
	if a == nil || a.monitor == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.Summary != nil {
		a.Summary.Print()
	}
	interval, ok := a.cfg.Watch.IntervalDuration()
	if !loop && !ok {
		_, err := a.RunOnce(ctx)
		return err
	}
	if !ok || interval <= 0 {
		interval = DefaultLoopInterval
	}

	group, ctx := errgroup.WithContext(ctx)
	if a.statusHTTP != nil {
		group.Go(func() error {
			if err := a.statusHTTP.Start(ctx); err != nil {
				return fmt.Errorf("status http server error: %w", err)
			}
			return nil
		})
	}
	group.Go(func() error {
		sched := scheduler.NewIntervalScheduler(ctx, interval)
		sched.Name = "price-pass"
		sched.Start(func(passCtx context.Context) {
			if _, err := a.RunOnce(passCtx); err != nil {
				var initErr *monitor.StorageInitError
				if errors.As(err, &initErr) {
					logger.Errorf("pass aborted: %v", err)
					return
				}
				logger.Errorf("pass failed: %v", err)
			}
		})
		return nil
	})
	return group.Wait()
}

// LastReport returns the most recent completed pass.
func (a *App) LastReport() (monitor.PassReport, bool) {
	return a.reports.Get()
}

func (a *App) Close() error {
	if a == nil || a.store == nil {
		return nil
	}
	return a.store.Close()
}
