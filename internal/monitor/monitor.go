// Package monitor runs the observation pipeline: dispatch, fetch, persist,
// evaluate and notify, once per product per pass.
package monitor

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"pricewatch/internal/gateway/notifier"
	"pricewatch/internal/logger"
	"pricewatch/internal/source"
	"pricewatch/internal/store"
	"pricewatch/internal/types"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultWindow       = 52 * 7 * 24 * time.Hour
	DefaultFetchTimeout = 30 * time.Second
)

// Resolver maps a locator to the capability that can fetch it.
type Resolver interface {
	Resolve(locator string) (source.Capability, bool)
}

type Options struct {
	Window       time.Duration
	FetchTimeout time.Duration
	// Concurrency above 1 processes products in parallel.
	Concurrency int
}

func (o Options) withDefaults() Options {
	if o.Window <= 0 {
		o.Window = DefaultWindow
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = DefaultFetchTimeout
	}
	if o.Concurrency < 1 {
		o.Concurrency = 1
	}
	return o
}

type Params struct {
	Store    store.ObservationStore
	Sources  Resolver
	Notifier notifier.Notifier
	Options  Options
	// Now defaults to time.Now.
	Now func() time.Time
}

type Monitor struct {
	store     store.ObservationStore
	sources   Resolver
	notifier  notifier.Notifier
	evaluator *Evaluator
	opts      Options
	nowFn     func() time.Time
}

func NewMonitor(p Params) (*Monitor, error) {
	if p.Store == nil {
		return nil, errors.New("monitor: store is required")
	}
	if p.Sources == nil {
		return nil, errors.New("monitor: source resolver is required")
	}
	if p.Notifier == nil {
		return nil, errors.New("monitor: notifier is required")
	}
	opts := p.Options.withDefaults()
	nowFn := p.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Monitor{
		store:     p.Store,
		sources:   p.Sources,
		notifier:  p.Notifier,
		evaluator: NewEvaluator(p.Store, opts.Window),
		opts:      opts,
		nowFn:     nowFn,
	}, nil
}

func (m *Monitor) Options() Options { return m.opts }

func (m *Monitor) now() time.Time { return m.nowFn().UTC() }

// RunPass processes every product once. Per-product failures are logged and
// recorded in the report; only a store initialization failure is returned.
// When ctx is canceled the remaining products are marked skipped.
func (m *Monitor) RunPass(ctx context.Context, products []types.Product) (PassReport, error) {
	report := PassReport{RunID: uuid.NewString(), StartedAt: m.now()}
	if err := m.store.Initialize(ctx); err != nil {
		report.FinishedAt = m.now()
		logger.Errorw("store initialization failed, pass aborted", "run_id", report.RunID, "error", err)
		return report, &StorageInitError{Err: err}
	}

	results := make([]ProductResult, len(products))
	if m.opts.Concurrency <= 1 {
		for i, p := range products {
			results[i] = m.runOne(ctx, report.RunID, p)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(m.opts.Concurrency)
		for i, p := range products {
			i, p := i, p
			g.Go(func() error {
				results[i] = m.runOne(ctx, report.RunID, p)
				return nil
			})
		}
		_ = g.Wait()
	}

	report.Results = results
	report.FinishedAt = m.now()
	if ctx.Err() != nil {
		report.Canceled = true
		logger.Warnw("pass canceled", "run_id", report.RunID, "skipped", report.Count(StatusSkipped), "error", ctx.Err())
	}
	logger.Infof("[monitor] %s", report.Summary())
	return report, nil
}

func (m *Monitor) runOne(ctx context.Context, runID string, p types.Product) ProductResult {
	if err := ctx.Err(); err != nil {
		res := ProductResult{SKU: p.SKU, Name: p.Name, Locator: p.Locator}
		res.fail(StatusSkipped, err)
		return res
	}
	return m.processProduct(ctx, runID, p)
}

func (m *Monitor) processProduct(ctx context.Context, runID string, p types.Product) ProductResult {
	res := ProductResult{SKU: p.SKU, Name: p.Name, Locator: p.Locator}

	capability, ok := m.sources.Resolve(p.Locator)
	if !ok {
		err := &DispatchMissError{SKU: p.SKU, Locator: p.Locator}
		logger.Warnw("no source for product, skipped", "sku", p.SKU, "url", p.Locator)
		res.fail(StatusDispatchMiss, err)
		return res
	}
	res.Source = capability.Name()

	fetchCtx, cancel := context.WithTimeout(ctx, m.opts.FetchTimeout)
	quote, err := capability.Fetch(fetchCtx, p.Locator)
	cancel()
	if err != nil {
		ferr := &FetchError{SKU: p.SKU, Locator: p.Locator, Source: capability.Name(), Err: err}
		logger.Warnw("fetch failed, skipped", "sku", p.SKU, "url", p.Locator, "source", capability.Name(), "error", err)
		res.fail(StatusFetchFailed, ferr)
		return res
	}

	obs := Coerce(p.SKU, quote, m.now())
	decision, err := m.evaluator.Evaluate(ctx, obs)
	if err != nil {
		logger.Errorw("storage failed, observation lost", "sku", p.SKU, "url", p.Locator, "price", priceField(obs), "error", err)
		res.fail(StatusStoreFailed, err)
		return res
	}
	res.Observation = &obs
	res.Decision = &decision
	res.Status = StatusObserved
	logger.Debugf("[monitor] sku=%s site=%s price=%s available=%t reason=%s", p.SKU, obs.Site, priceField(obs), obs.Available, decision.Reason)

	if !decision.NewLow {
		return res
	}
	if err := m.notify(ctx, runID, p, obs, decision); err != nil {
		res.fail(StatusNotifyFailed, err)
		return res
	}
	res.Status = StatusNotified
	return res
}

// notify makes one delivery attempt and logs it to the store. The log write
// is best effort.
func (m *Monitor) notify(ctx context.Context, runID string, p types.Product, obs types.Observation, d Decision) error {
	alert := notifier.Alert{
		Product:     p,
		Price:       obs.Price,
		Shipping:    obs.Shipping,
		Site:        obs.Site,
		PreviousLow: d.Prior,
		HadPrevious: d.HasPrior,
		ObservedAt:  obs.Timestamp,
		RunID:       runID,
	}
	channel := m.notifier.Name()
	sendErr := m.notifier.Notify(ctx, alert)

	rec := store.NotificationRecord{
		ID:        uuid.NewString(),
		SKU:       p.SKU,
		Price:     obs.Price,
		Channel:   channel,
		Delivered: sendErr == nil,
		Message:   alert.Text(),
		Payload:   alert.Payload(),
		CreatedAt: m.now(),
	}
	var result error
	if sendErr != nil {
		rec.Error = sendErr.Error()
		result = &NotifyError{SKU: p.SKU, Channel: channel, Message: alert.Text(), Err: sendErr}
		logger.Errorw("Failed to send notification", "sku", p.SKU, "channel", channel, "message", alert.Text(), "error", sendErr)
	} else {
		logger.Infow("new low notified", "sku", p.SKU, "price", obs.Price, "channel", channel)
	}
	if err := m.store.RecordNotification(ctx, rec); err != nil {
		logger.Warnw("notification log write failed", "sku", p.SKU, "error", err)
	}
	return result
}

// Coerce turns a capability quote into a storable observation: missing or
// invalid price becomes UnknownPrice, shipping defaults to 0, availability
// to false and the site to UnknownSite.
func Coerce(sku string, q source.Quote, at time.Time) types.Observation {
	obs := types.Observation{
		SKU:       sku,
		Site:      strings.TrimSpace(q.Site),
		Price:     types.UnknownPrice,
		Timestamp: at.UTC(),
	}
	if q.Price != nil && types.IsKnownPrice(*q.Price) {
		obs.Price = *q.Price
	}
	if q.Shipping != nil && !math.IsNaN(*q.Shipping) && !math.IsInf(*q.Shipping, 0) && *q.Shipping >= 0 {
		obs.Shipping = *q.Shipping
	}
	if q.Available != nil {
		obs.Available = *q.Available
	}
	if obs.Site == "" {
		obs.Site = types.UnknownSite
	}
	return obs
}

func priceField(obs types.Observation) string {
	if obs.PriceKnown() {
		return strconv.FormatFloat(obs.Price, 'f', 2, 64)
	}
	return "unknown"
}
