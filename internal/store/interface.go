package store

import (
	"context"
	"errors"
	"time"

	"pricewatch/internal/types"
)

// ErrOutOfOrder rejects an observation older than the newest row already
// stored for the same SKU; history is append-only in timestamp order.
var ErrOutOfOrder = errors.New("observation older than latest stored for sku")

// ObservationStore is the append-only price history.
type ObservationStore interface {
	// Initialize creates the schema when missing. Safe to call on every run.
	Initialize(ctx context.Context) error
	// Append durably persists one observation; visible to queries on return.
	Append(ctx context.Context, obs types.Observation) error
	// TrailingLow returns MIN(price) over [asOf-window, asOf] for sku, ignoring
	// unknown prices. ok is false when no row qualifies.
	TrailingLow(ctx context.Context, sku string, window time.Duration, asOf time.Time) (low float64, ok bool, err error)
	// History returns observations newer than since, newest first.
	History(ctx context.Context, sku string, since time.Time, limit int) ([]types.Observation, error)
	// RecordNotification appends one delivery attempt to the notification log.
	RecordNotification(ctx context.Context, rec NotificationRecord) error
	Close() error
}

// NotificationRecord is one attempt to announce a new low.
type NotificationRecord struct {
	ID        string
	SKU       string
	Price     float64
	Channel   string
	Delivered bool
	Error     string
	Message   string
	Payload   map[string]any
	CreatedAt time.Time
}

// WindowBounds converts a trailing window into the inclusive ts range used by
// every backend.
func WindowBounds(window time.Duration, asOf time.Time) (from, to int64) {
	to = asOf.UTC().UnixNano()
	from = asOf.Add(-window).UTC().UnixNano()
	return from, to
}

// NotificationLog is implemented by stores that can list past notification
// attempts.
type NotificationLog interface {
	Notifications(ctx context.Context, sku string, limit int) ([]NotificationRecord, error)
}
