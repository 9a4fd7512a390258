package source

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/chromedp/chromedp"
)

// BrowserConfig describes a retailer page that only renders its price with
// JavaScript. Selectors are CSS queries.
type BrowserConfig struct {
	Name              string
	Site              string
	PriceSelector     string
	ShippingSelector  string
	AvailableSelector string
}

// BrowserCapability drives a headless Chrome through chromedp. Each fetch
// gets its own browser context so products never share cookies.
type BrowserCapability struct {
	cfg         BrowserConfig
	allocatorFn func(ctx context.Context) (context.Context, context.CancelFunc)
}

func NewBrowserCapability(cfg BrowserConfig) *BrowserCapability {
	return &BrowserCapability{cfg: cfg, allocatorFn: headlessAllocator}
}

func headlessAllocator(ctx context.Context) (context.Context, context.CancelFunc) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
	)
	return chromedp.NewExecAllocator(ctx, opts...)
}

func (b *BrowserCapability) Name() string { return b.cfg.Name }

func (b *BrowserCapability) Fetch(ctx context.Context, locator string) (Quote, error) {
	allocCtx, cancelAlloc := b.allocatorFn(ctx)
	defer cancelAlloc()
	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	var (
		priceText    string
		shippingText string
		available    bool
	)
	tasks := chromedp.Tasks{
		chromedp.Navigate(locator),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(textOf(b.cfg.PriceSelector), &priceText),
	}
	if sel := strings.TrimSpace(b.cfg.ShippingSelector); sel != "" {
		tasks = append(tasks, chromedp.Evaluate(textOf(sel), &shippingText))
	}
	if sel := strings.TrimSpace(b.cfg.AvailableSelector); sel != "" {
		tasks = append(tasks, chromedp.Evaluate(exists(sel), &available))
	}
	if err := chromedp.Run(browserCtx, tasks); err != nil {
		return Quote{}, fmt.Errorf("render %s: %w", locator, err)
	}
	return b.quoteFromText(priceText, shippingText, available), nil
}

func (b *BrowserCapability) quoteFromText(priceText, shippingText string, available bool) Quote {
	q := Quote{Site: b.cfg.Site}
	if v, ok := ParsePriceText(priceText); ok {
		q.Price = Float(v)
	}
	if strings.TrimSpace(b.cfg.ShippingSelector) != "" {
		if v, ok := ParsePriceText(shippingText); ok {
			q.Shipping = Float(v)
		}
	}
	switch {
	case strings.TrimSpace(b.cfg.AvailableSelector) != "":
		q.Available = Bool(available)
	case q.Price != nil:
		q.Available = Bool(true)
	}
	return q
}

func textOf(selector string) string {
	return fmt.Sprintf(`(function(){var n=document.querySelector(%s);return n?n.textContent:"";})()`, strconv.Quote(selector))
}

func exists(selector string) string {
	return fmt.Sprintf(`document.querySelector(%s) !== null`, strconv.Quote(selector))
}
