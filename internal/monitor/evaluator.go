package monitor

import (
	"context"
	"time"

	"pricewatch/internal/store"
	"pricewatch/internal/types"
)

// Decision is the outcome of comparing one observation to its trailing low.
type Decision struct {
	NewLow   bool    `json:"new_low"`
	Prior    float64 `json:"prior,omitempty"`
	HasPrior bool    `json:"has_prior"`
	Reason   string  `json:"reason"`
}

const (
	ReasonUnavailable  = "unavailable"
	ReasonUnknownPrice = "unknown_price"
	ReasonFirstSeen    = "first_observation"
	ReasonBelowLow     = "below_trailing_low"
	ReasonNotBelow     = "not_below_trailing_low"
)

// Evaluator persists observations and decides whether each one is a new low.
//
// The trailing low is read before the observation is appended, so the
// comparison is against history only; an equal price is not a new low.
type Evaluator struct {
	store  store.ObservationStore
	window time.Duration
}

func NewEvaluator(s store.ObservationStore, window time.Duration) *Evaluator {
	return &Evaluator{store: s, window: window}
}

// Evaluate queries the prior low, appends obs and returns the decision. A
// read failure leaves the store untouched; a write failure yields no decision.
func (e *Evaluator) Evaluate(ctx context.Context, obs types.Observation) (Decision, error) {
	prior, ok, err := e.store.TrailingLow(ctx, obs.SKU, e.window, obs.Timestamp)
	if err != nil {
		return Decision{}, &StorageReadError{SKU: obs.SKU, Err: err}
	}
	if err := e.store.Append(ctx, obs); err != nil {
		return Decision{}, &StorageWriteError{SKU: obs.SKU, Err: err}
	}
	return Decide(obs, prior, ok), nil
}

// Decide applies the notification rule to an observation and the trailing
// low that preceded it.
func Decide(obs types.Observation, prior float64, hasPrior bool) Decision {
	d := Decision{Prior: prior, HasPrior: hasPrior}
	switch {
	case !obs.Available:
		d.Reason = ReasonUnavailable
	case !obs.PriceKnown():
		d.Reason = ReasonUnknownPrice
	case !hasPrior:
		d.NewLow = true
		d.Reason = ReasonFirstSeen
	case obs.Price < prior:
		d.NewLow = true
		d.Reason = ReasonBelowLow
	default:
		d.Reason = ReasonNotBelow
	}
	return d
}
