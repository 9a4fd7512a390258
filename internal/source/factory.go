package source

import (
	"fmt"
	"net/http"
	"time"

	"pricewatch/internal/config"
	"pricewatch/internal/logger"
)

// NewRegistryFromConfig builds the dispatch table in file order and freezes it.
func NewRegistryFromConfig(sources []config.SourceConfig, client *http.Client) (*Registry, error) {
	reg := NewRegistry()
	for i, src := range sources {
		c, err := newCapability(src, client)
		if err != nil {
			return nil, fmt.Errorf("sources[%d] (%s): %w", i, src.Match, err)
		}
		c = Guard(c, GuardOptions{
			RatePerMinute:    src.RatePerMinute,
			BreakerThreshold: src.BreakerThreshold,
			BreakerTimeout:   time.Duration(src.BreakerTimeoutSeconds) * time.Second,
		})
		if err := reg.Register(src.Match, c); err != nil {
			return nil, err
		}
		logger.Debugf("source registered match=%s kind=%s site=%s", src.Match, src.Kind, src.Site)
	}
	reg.Freeze()
	return reg, nil
}

func newCapability(src config.SourceConfig, client *http.Client) (Capability, error) {
	name := src.Kind + ":" + src.Match
	switch src.Kind {
	case config.KindStatic:
		available := true
		if src.Available != nil {
			available = *src.Available
		}
		return NewStatic(name, Quote{
			Price:     Float(src.Price),
			Shipping:  Float(src.Shipping),
			Available: Bool(available),
			Site:      src.Site,
		}), nil
	case config.KindJSON:
		return NewJSONCapability(JSONConfig{
			Name:          name,
			Site:          src.Site,
			Endpoint:      src.Endpoint,
			PricePath:     src.PricePath,
			ShippingPath:  src.ShippingPath,
			AvailablePath: src.AvailablePath,
			Headers:       src.Headers,
		}, client), nil
	case config.KindBrowser:
		return NewBrowserCapability(BrowserConfig{
			Name:              name,
			Site:              src.Site,
			PriceSelector:     src.PriceSelector,
			ShippingSelector:  src.ShippingSelector,
			AvailableSelector: src.AvailableSelector,
		}), nil
	case config.KindBinance:
		return NewBinanceCapability(name, src.Site, src.BaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported kind %q", src.Kind)
	}
}
