package types

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// UnknownSite marks observations whose capability did not report a site.
const UnknownSite = "unknown source"

// UnknownPrice is the sentinel stored in Observation.Price when a capability
// could not produce a usable price. It compares above every real price and is
// persisted as NULL.
var UnknownPrice = math.Inf(1)

// Product 是一个被跟踪的商品，由配置提供，核心流程不负责持久化。
type Product struct {
	SKU     string `json:"sku" yaml:"sku"`
	Name    string `json:"name" yaml:"name"`
	Locator string `json:"url" yaml:"url"`
}

// Label returns a short human readable identity for log lines.
func (p Product) Label() string {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return p.SKU
	}
	return name + " (" + p.SKU + ")"
}

// Observation is one immutable price sample for one product from one source.
type Observation struct {
	SKU       string    `json:"sku"`
	Site      string    `json:"site"`
	Price     float64   `json:"price"`
	Shipping  float64   `json:"shipping"`
	Available bool      `json:"available"`
	Timestamp time.Time `json:"timestamp"`
}

// PriceKnown reports whether Price carries a real value rather than the
// unknown sentinel.
func (o Observation) PriceKnown() bool {
	return IsKnownPrice(o.Price)
}

// IsKnownPrice reports whether v is a finite, non-negative price.
func IsKnownPrice(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v) && v >= 0
}

type observationJSON struct {
	SKU       string    `json:"sku"`
	Site      string    `json:"site"`
	Price     *float64  `json:"price"`
	Shipping  float64   `json:"shipping"`
	Available bool      `json:"available"`
	Timestamp time.Time `json:"timestamp"`
}

// MarshalJSON writes an unknown price as null; encoding/json cannot encode
// the +Inf sentinel.
func (o Observation) MarshalJSON() ([]byte, error) {
	out := observationJSON{
		SKU:       o.SKU,
		Site:      o.Site,
		Shipping:  o.Shipping,
		Available: o.Available,
		Timestamp: o.Timestamp,
	}
	if o.PriceKnown() {
		p := o.Price
		out.Price = &p
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a null or missing price back as UnknownPrice.
func (o *Observation) UnmarshalJSON(data []byte) error {
	var in observationJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*o = Observation{
		SKU:       in.SKU,
		Site:      in.Site,
		Price:     UnknownPrice,
		Shipping:  in.Shipping,
		Available: in.Available,
		Timestamp: in.Timestamp,
	}
	if in.Price != nil {
		o.Price = *in.Price
	}
	return nil
}
