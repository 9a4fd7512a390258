package notifier

import (
	"fmt"
	"strings"
	"time"

	"pricewatch/internal/types"
)

// Alert describes a product whose current price undercut its trailing low.
type Alert struct {
	Product     types.Product
	Price       float64
	Shipping    float64
	Site        string
	PreviousLow float64
	HadPrevious bool
	ObservedAt  time.Time
	RunID       string
}

// Text is the canonical single-line message every channel carries.
func (a Alert) Text() string {
	return fmt.Sprintf("Price alert: '%s' (SKU %s) has a new low price of %.2f. See %s for details.",
		a.Product.Name, a.Product.SKU, a.Price, a.Product.Locator)
}

// chat wraps Text with the supporting figures for Markdown chat channels.
func (a Alert) chat() chatMessage {
	lines := []string{fmt.Sprintf("Price: %.2f", a.Price)}
	if a.Shipping > 0 {
		lines = append(lines, fmt.Sprintf("Shipping: %.2f", a.Shipping))
	}
	if a.HadPrevious {
		lines = append(lines, fmt.Sprintf("Previous low: %.2f", a.PreviousLow))
	} else {
		lines = append(lines, "Previous low: none recorded")
	}
	if site := strings.TrimSpace(a.Site); site != "" {
		lines = append(lines, "Source: "+site)
	}
	return chatMessage{
		Header:  "📉 " + a.Text(),
		Details: lines,
		At:      a.ObservedAt,
	}
}

// Payload is the JSON body stored with the notification log entry.
func (a Alert) Payload() map[string]any {
	out := map[string]any{
		"sku":         a.Product.SKU,
		"name":        a.Product.Name,
		"url":         a.Product.Locator,
		"price":       a.Price,
		"shipping":    a.Shipping,
		"site":        a.Site,
		"observed_at": a.ObservedAt.UTC().Format(time.RFC3339Nano),
	}
	if a.HadPrevious {
		out["previous_low"] = a.PreviousLow
	}
	if a.RunID != "" {
		out["run_id"] = a.RunID
	}
	return out
}
