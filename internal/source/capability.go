// Package source holds the fetch capabilities that retrieve current price and
// availability for a product locator, and the registry that dispatches a
// locator to one of them.
package source

import "context"

// Capability retrieves the current quote for a locator. Implementations must
// honour ctx cancellation; callers apply the per-fetch timeout.
type Capability interface {
	Name() string
	Fetch(ctx context.Context, locator string) (Quote, error)
}

// Quote is what a capability managed to read. Nil fields mean the source did
// not report them; the monitor coerces them to safe defaults.
type Quote struct {
	Price     *float64
	Shipping  *float64
	Available *bool
	Site      string
}

// Func adapts a plain function to the Capability interface.
type Func struct {
	ID string
	Fn func(ctx context.Context, locator string) (Quote, error)
}

func (f Func) Name() string { return f.ID }

func (f Func) Fetch(ctx context.Context, locator string) (Quote, error) {
	return f.Fn(ctx, locator)
}

func Float(v float64) *float64 { return &v }

func Bool(v bool) *bool { return &v }
