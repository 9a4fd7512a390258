// Package storetest holds the behaviour every ObservationStore backend must
// share. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"pricewatch/internal/store"
	"pricewatch/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Opener returns a fresh, uninitialized store rooted in t's temp dir.
type Opener func(t *testing.T) store.ObservationStore

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func obs(sku string, price float64, at time.Time) types.Observation {
	return types.Observation{SKU: sku, Site: "test", Price: price, Available: true, Timestamp: at}
}

func Run(t *testing.T, open Opener) {
	t.Run("InitializeIsIdempotent", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		require.NoError(t, s.Initialize(ctx))
		require.NoError(t, s.Append(ctx, obs("A", 10, base)))
		require.NoError(t, s.Initialize(ctx))
		low, ok, err := s.TrailingLow(ctx, "A", time.Hour, base)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 10.0, low)
	})

	t.Run("TrailingLowEmpty", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		require.NoError(t, s.Initialize(ctx))
		_, ok, err := s.TrailingLow(ctx, "missing", time.Hour, base)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("TrailingLowWindowBounds", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		require.NoError(t, s.Initialize(ctx))
		require.NoError(t, s.Append(ctx, obs("A", 5, base.Add(-2*time.Hour))))
		require.NoError(t, s.Append(ctx, obs("A", 9, base.Add(-time.Hour))))
		require.NoError(t, s.Append(ctx, obs("A", 12, base)))

		low, ok, err := s.TrailingLow(ctx, "A", time.Hour, base)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 9.0, low, "row exactly at asOf-window is inside")

		low, ok, err = s.TrailingLow(ctx, "A", 3*time.Hour, base)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 5.0, low)

		_, ok, err = s.TrailingLow(ctx, "A", time.Minute, base.Add(-3*time.Hour))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("UnknownPriceIgnored", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		require.NoError(t, s.Initialize(ctx))
		unknown := obs("A", types.UnknownPrice, base)
		unknown.Available = false
		require.NoError(t, s.Append(ctx, unknown))

		_, ok, err := s.TrailingLow(ctx, "A", time.Hour, base)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.Append(ctx, obs("A", 20, base.Add(time.Second))))
		low, ok, err := s.TrailingLow(ctx, "A", time.Hour, base.Add(time.Second))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 20.0, low)

		hist, err := s.History(ctx, "A", base.Add(-time.Hour), 0)
		require.NoError(t, err)
		require.Len(t, hist, 2)
		assert.False(t, hist[1].PriceKnown())
		assert.False(t, hist[1].Available)
	})

	t.Run("SKUIsolation", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		require.NoError(t, s.Initialize(ctx))
		require.NoError(t, s.Append(ctx, obs("A", 1, base)))
		require.NoError(t, s.Append(ctx, obs("B", 100, base)))
		low, ok, err := s.TrailingLow(ctx, "B", time.Hour, base)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 100.0, low)
	})

	t.Run("OutOfOrderRejected", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		require.NoError(t, s.Initialize(ctx))
		require.NoError(t, s.Append(ctx, obs("A", 10, base)))
		err := s.Append(ctx, obs("A", 8, base.Add(-time.Second)))
		assert.ErrorIs(t, err, store.ErrOutOfOrder)
		// equal timestamps are accepted
		require.NoError(t, s.Append(ctx, obs("A", 11, base)))
		// other SKUs are unaffected
		require.NoError(t, s.Append(ctx, obs("B", 8, base.Add(-time.Second))))
	})

	t.Run("HistoryNewestFirst", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		require.NoError(t, s.Initialize(ctx))
		for i := 0; i < 5; i++ {
			o := obs("A", float64(10+i), base.Add(time.Duration(i)*time.Minute))
			o.Shipping = 2.5
			require.NoError(t, s.Append(ctx, o))
		}
		hist, err := s.History(ctx, "A", base, 3)
		require.NoError(t, err)
		require.Len(t, hist, 3)
		assert.Equal(t, 14.0, hist[0].Price)
		assert.Equal(t, 12.0, hist[2].Price)
		assert.Equal(t, 2.5, hist[0].Shipping)
		assert.Equal(t, "test", hist[0].Site)
		assert.True(t, hist[0].Timestamp.Equal(base.Add(4*time.Minute)))
	})

	t.Run("ConcurrentAppends", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		require.NoError(t, s.Initialize(ctx))
		var wg sync.WaitGroup
		errs := make(chan error, 16)
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs <- s.Append(ctx, obs(fmt.Sprintf("SKU-%d", i%4), float64(i), base))
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}
		total := 0
		for i := 0; i < 4; i++ {
			hist, err := s.History(ctx, fmt.Sprintf("SKU-%d", i), base, 0)
			require.NoError(t, err)
			total += len(hist)
		}
		assert.Equal(t, 16, total)
	})

	t.Run("RecordNotification", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		require.NoError(t, s.Initialize(ctx))
		rec := store.NotificationRecord{
			ID:        "n-1",
			SKU:       "A",
			Price:     9.99,
			Channel:   "console",
			Delivered: true,
			Message:   "hello",
			Payload:   map[string]any{"run_id": "r1"},
			CreatedAt: base,
		}
		require.NoError(t, s.RecordNotification(ctx, rec))
		require.NoError(t, s.RecordNotification(ctx, rec), "duplicate id is ignored")

		log, ok := s.(store.NotificationLog)
		if !ok {
			return
		}
		got, err := log.Notifications(ctx, "A", 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "console", got[0].Channel)
		assert.True(t, got[0].Delivered)
		assert.Equal(t, "r1", got[0].Payload["run_id"])
	})
}
