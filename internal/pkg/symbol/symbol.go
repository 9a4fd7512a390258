// Package symbol parses exchange trading pairs out of free-form text such as
// product locators ("BTC_USDT", "btc-usdt", "BTC/USDT", "BTCUSDT").
package symbol

import (
	"net/url"
	"path"
	"strings"
)

var quoteCurrencies = []string{"USDT", "BUSD", "USDC", "TUSD", "FDUSD", "BTC", "ETH", "BNB", "EUR"}

type Symbol struct {
	Base  string
	Quote string
}

func (s Symbol) Valid() bool { return s.Base != "" && s.Quote != "" }

func (s Symbol) Internal() string {
	if !s.Valid() {
		return ""
	}
	return s.Base + "/" + s.Quote
}

func (s Symbol) Binance() string {
	if !s.Valid() {
		return ""
	}
	return s.Base + s.Quote
}

func Parse(s string) Symbol {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Symbol{}
	}
	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[:idx]
	}
	for _, sep := range []string{"/", "_", "-"} {
		if parts := strings.SplitN(s, sep, 2); len(parts) == 2 {
			return Symbol{
				Base:  strings.TrimSpace(parts[0]),
				Quote: strings.TrimSpace(parts[1]),
			}
		}
	}
	for _, quote := range quoteCurrencies {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return Symbol{Base: s[:len(s)-len(quote)], Quote: quote}
		}
	}
	return Symbol{}
}

// FromLocator reads the pair from the last path segment of a URL, falling
// back to the raw string. Query strings and fragments are ignored.
func FromLocator(locator string) Symbol {
	raw := strings.TrimSpace(locator)
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		raw = u.Path
	}
	last := path.Base(strings.TrimRight(raw, "/"))
	if last == "." || last == "/" {
		return Symbol{}
	}
	return Parse(last)
}
