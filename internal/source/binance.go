package source

import (
	"context"
	"fmt"
	"strings"

	"pricewatch/internal/pkg/symbol"

	"github.com/adshao/go-binance/v2"
)

// BinanceCapability quotes spot tickers, letting crypto assets be tracked
// alongside retail products. Locators end with the pair, e.g.
// https://www.binance.com/en/trade/BTC_USDT.
type BinanceCapability struct {
	name   string
	site   string
	client *binance.Client
}

func NewBinanceCapability(name, site, baseURL string) *BinanceCapability {
	client := binance.NewClient("", "")
	if strings.TrimSpace(baseURL) != "" {
		client.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if strings.TrimSpace(site) == "" {
		site = "Binance"
	}
	return &BinanceCapability{name: name, site: site, client: client}
}

func (b *BinanceCapability) Name() string { return b.name }

func (b *BinanceCapability) Fetch(ctx context.Context, locator string) (Quote, error) {
	pair := symbolFromLocator(locator)
	if pair == "" {
		return Quote{}, fmt.Errorf("no trading pair in locator %s", locator)
	}
	prices, err := b.client.NewListPricesService().Symbol(pair).Do(ctx)
	if err != nil {
		return Quote{}, fmt.Errorf("binance ticker %s: %w", pair, err)
	}
	for _, p := range prices {
		if p == nil || !strings.EqualFold(p.Symbol, pair) {
			continue
		}
		q := Quote{Site: b.site, Shipping: Float(0), Available: Bool(true)}
		if v, ok := ParsePriceText(p.Price); ok {
			q.Price = Float(v)
		}
		return q, nil
	}
	return Quote{}, fmt.Errorf("binance ticker %s: symbol not returned", pair)
}

func symbolFromLocator(locator string) string {
	return symbol.FromLocator(locator).Binance()
}
