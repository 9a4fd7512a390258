package source

import (
	"context"
	"fmt"
	"time"

	"pricewatch/internal/pkg/circuit"

	"golang.org/x/time/rate"
)

// Guarded wraps a capability with an optional per-source rate limit and
// circuit breaker. A tripped breaker fails fast without touching the network.
type Guarded struct {
	inner   Capability
	limiter *rate.Limiter
	breaker *circuit.CircuitBreaker
}

type GuardOptions struct {
	RatePerMinute    int
	BreakerThreshold int
	BreakerTimeout   time.Duration
}

// Guard returns c unchanged when opts enables nothing.
func Guard(c Capability, opts GuardOptions) Capability {
	if opts.RatePerMinute <= 0 && opts.BreakerThreshold <= 0 {
		return c
	}
	g := &Guarded{inner: c}
	if opts.RatePerMinute > 0 {
		g.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RatePerMinute)), 1)
	}
	if opts.BreakerThreshold > 0 {
		g.breaker = circuit.NewCircuitBreaker(c.Name(), opts.BreakerThreshold, opts.BreakerTimeout)
	}
	return g
}

func (g *Guarded) Name() string { return g.inner.Name() }

func (g *Guarded) Fetch(ctx context.Context, locator string) (Quote, error) {
	if g.breaker != nil && !g.breaker.Allow() {
		return Quote{}, fmt.Errorf("%s: %w", g.inner.Name(), circuit.ErrOpen)
	}
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return Quote{}, fmt.Errorf("%s rate limit: %w", g.inner.Name(), err)
		}
	}
	q, err := g.inner.Fetch(ctx, locator)
	if g.breaker != nil {
		if err != nil {
			g.breaker.RecordFailure()
		} else {
			g.breaker.RecordSuccess()
		}
	}
	return q, err
}
