package monitor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"pricewatch/internal/gateway/notifier"
	"pricewatch/internal/source"
	"pricewatch/internal/store"
	"pricewatch/internal/store/sqlitestore"
	"pricewatch/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Name() string { return "mock" }

func (m *mockNotifier) Notify(ctx context.Context, alert notifier.Alert) error {
	return m.Called(ctx, alert).Error(0)
}

func newStore(t *testing.T) *sqlitestore.Store {
	t.Helper()
	s, err := sqlitestore.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Initialize(context.Background()))
	return s
}

func registryWith(t *testing.T, pairs ...any) *source.Registry {
	t.Helper()
	r := source.NewRegistry()
	for i := 0; i < len(pairs); i += 2 {
		require.NoError(t, r.Register(pairs[i].(string), pairs[i+1].(source.Capability)))
	}
	r.Freeze()
	return r
}

func staticQuote(price float64, available bool) *source.Static {
	return source.NewStatic("static", source.Quote{
		Price:     source.Float(price),
		Shipping:  source.Float(0),
		Available: source.Bool(available),
		Site:      "example.com",
	})
}

func newTestMonitor(t *testing.T, s store.ObservationStore, reg Resolver, n notifier.Notifier, opts Options) *Monitor {
	t.Helper()
	m, err := NewMonitor(Params{Store: s, Sources: reg, Notifier: n, Options: opts, Now: func() time.Time { return testNow }})
	require.NoError(t, err)
	return m
}

func seed(t *testing.T, s store.ObservationStore, sku string, price float64, at time.Time) {
	t.Helper()
	require.NoError(t, s.Append(context.Background(), types.Observation{
		SKU: sku, Site: "example.com", Price: price, Available: true, Timestamp: at,
	}))
}

func TestDecide(t *testing.T) {
	avail := func(p float64) types.Observation { return types.Observation{Price: p, Available: true} }
	cases := []struct {
		name     string
		obs      types.Observation
		prior    float64
		hasPrior bool
		newLow   bool
		reason   string
	}{
		{"below prior", avail(9), 10, true, true, ReasonBelowLow},
		{"tie", avail(10), 10, true, false, ReasonNotBelow},
		{"above prior", avail(11), 10, true, false, ReasonNotBelow},
		{"no history", avail(11), 0, false, true, ReasonFirstSeen},
		{"unavailable below", types.Observation{Price: 9}, 10, true, false, ReasonUnavailable},
		{"unavailable first", types.Observation{Price: 9}, 0, false, false, ReasonUnavailable},
		{"unknown price", avail(types.UnknownPrice), 10, true, false, ReasonUnknownPrice},
		{"unknown price first", avail(types.UnknownPrice), 0, false, false, ReasonUnknownPrice},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Decide(tc.obs, tc.prior, tc.hasPrior)
			assert.Equal(t, tc.newLow, d.NewLow)
			assert.Equal(t, tc.reason, d.Reason)
			assert.Equal(t, tc.hasPrior, d.HasPrior)
		})
	}
}

func TestRunPassNewLowBelowHistory(t *testing.T) {
	s := newStore(t)
	seed(t, s, "X1", 50, testNow.Add(-100*24*time.Hour))

	n := &mockNotifier{}
	n.On("Notify", mock.Anything, mock.MatchedBy(func(a notifier.Alert) bool {
		return a.Product.SKU == "X1" && a.Price == 40 && a.HadPrevious && a.PreviousLow == 50
	})).Return(nil).Once()

	m := newTestMonitor(t, s, registryWith(t, "example.com", staticQuote(40, true)), n, Options{})
	report, err := m.RunPass(context.Background(), []types.Product{
		{SKU: "X1", Name: "Widget", Locator: "https://www.example.com/product/X1"},
	})
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, StatusNotified, report.Results[0].Status)
	assert.NotEmpty(t, report.RunID)
	n.AssertExpectations(t)

	low, ok, err := s.TrailingLow(context.Background(), "X1", DefaultWindow, testNow)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 40.0, low)

	logs, err := s.Notifications(context.Background(), "X1", 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.True(t, logs[0].Delivered)
	assert.Equal(t, "mock", logs[0].Channel)
	assert.Equal(t, report.RunID, logs[0].Payload["run_id"])
}

func TestRunPassUnavailablePersistedWithoutNotify(t *testing.T) {
	s := newStore(t)
	n := &mockNotifier{}
	m := newTestMonitor(t, s, registryWith(t, "example.com", staticQuote(30, false)), n, Options{})

	report, err := m.RunPass(context.Background(), []types.Product{{SKU: "X2", Locator: "https://example.com/x2"}})
	require.NoError(t, err)
	assert.Equal(t, StatusObserved, report.Results[0].Status)
	assert.Equal(t, ReasonUnavailable, report.Results[0].Decision.Reason)
	n.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)

	hist, err := s.History(context.Background(), "X2", time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.False(t, hist[0].Available)
	assert.Equal(t, 30.0, hist[0].Price)
}

func TestRunPassDispatchMiss(t *testing.T) {
	s := newStore(t)
	n := &mockNotifier{}
	m := newTestMonitor(t, s, registryWith(t, "example.com", staticQuote(10, true)), n, Options{})

	report, err := m.RunPass(context.Background(), []types.Product{{SKU: "U1", Locator: "foo.bar/item"}})
	require.NoError(t, err)
	res := report.Results[0]
	assert.Equal(t, StatusDispatchMiss, res.Status)
	assert.ErrorIs(t, res.Err, ErrDispatchMiss)
	var miss *DispatchMissError
	require.ErrorAs(t, res.Err, &miss)
	assert.Equal(t, "foo.bar/item", miss.Locator)

	hist, err := s.History(context.Background(), "U1", time.Time{}, 0)
	require.NoError(t, err)
	assert.Empty(t, hist)
	n.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}

func TestRunPassIsolatesFetchFailure(t *testing.T) {
	s := newStore(t)
	broken := source.Func{ID: "broken", Fn: func(context.Context, string) (source.Quote, error) {
		return source.Quote{}, errors.New("connection reset")
	}}
	n := &mockNotifier{}
	n.On("Notify", mock.Anything, mock.Anything).Return(nil).Once()
	m := newTestMonitor(t, s, registryWith(t, "a.example", broken, "b.example", staticQuote(12, true)), n, Options{})

	report, err := m.RunPass(context.Background(), []types.Product{
		{SKU: "A", Locator: "https://a.example/1"},
		{SKU: "B", Locator: "https://b.example/2"},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusFetchFailed, report.Results[0].Status)
	var ferr *FetchError
	require.ErrorAs(t, report.Results[0].Err, &ferr)
	assert.Equal(t, "broken", ferr.Source)
	assert.Equal(t, StatusNotified, report.Results[1].Status)
	assert.Equal(t, 1, report.Failed())
	n.AssertExpectations(t)
}

func TestRunPassTieDoesNotNotify(t *testing.T) {
	s := newStore(t)
	seed(t, s, "T", 40, testNow.Add(-24*time.Hour))
	n := &mockNotifier{}
	m := newTestMonitor(t, s, registryWith(t, "example.com", staticQuote(40, true)), n, Options{})

	report, err := m.RunPass(context.Background(), []types.Product{{SKU: "T", Locator: "example.com/t"}})
	require.NoError(t, err)
	assert.Equal(t, StatusObserved, report.Results[0].Status)
	assert.Equal(t, ReasonNotBelow, report.Results[0].Decision.Reason)
	n.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}

func TestRunPassWindowExcludesOldLows(t *testing.T) {
	s := newStore(t)
	seed(t, s, "W", 10, testNow.Add(-400*24*time.Hour))
	seed(t, s, "W", 60, testNow.Add(-30*24*time.Hour))
	n := &mockNotifier{}
	n.On("Notify", mock.Anything, mock.MatchedBy(func(a notifier.Alert) bool { return a.PreviousLow == 60 })).Return(nil).Once()
	m := newTestMonitor(t, s, registryWith(t, "example.com", staticQuote(45, true)), n, Options{})

	report, err := m.RunPass(context.Background(), []types.Product{{SKU: "W", Locator: "example.com/w"}})
	require.NoError(t, err)
	assert.Equal(t, StatusNotified, report.Results[0].Status)
	n.AssertExpectations(t)
}

type failingStore struct {
	store.ObservationStore
	initErr   error
	appendErr error
}

func (f *failingStore) Initialize(ctx context.Context) error {
	if f.initErr != nil {
		return f.initErr
	}
	return f.ObservationStore.Initialize(ctx)
}

func (f *failingStore) Append(ctx context.Context, obs types.Observation) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	return f.ObservationStore.Append(ctx, obs)
}

func TestRunPassInitFailureAborts(t *testing.T) {
	var fetches int32
	counting := source.Func{ID: "count", Fn: func(context.Context, string) (source.Quote, error) {
		atomic.AddInt32(&fetches, 1)
		return source.Quote{}, nil
	}}
	fs := &failingStore{ObservationStore: newStore(t), initErr: errors.New("disk full")}
	m := newTestMonitor(t, fs, registryWith(t, "example.com", counting), &mockNotifier{}, Options{})

	report, err := m.RunPass(context.Background(), []types.Product{{SKU: "A", Locator: "example.com/a"}})
	var initErr *StorageInitError
	require.ErrorAs(t, err, &initErr)
	assert.EqualError(t, initErr.Unwrap(), "disk full")
	assert.Empty(t, report.Results)
	assert.Zero(t, atomic.LoadInt32(&fetches))
}

func TestRunPassStoreWriteFailure(t *testing.T) {
	fs := &failingStore{ObservationStore: newStore(t), appendErr: errors.New("locked")}
	n := &mockNotifier{}
	m := newTestMonitor(t, fs, registryWith(t, "example.com", staticQuote(5, true)), n, Options{})

	report, err := m.RunPass(context.Background(), []types.Product{
		{SKU: "A", Locator: "example.com/a"},
		{SKU: "B", Locator: "example.com/b"},
	})
	require.NoError(t, err)
	for _, res := range report.Results {
		assert.Equal(t, StatusStoreFailed, res.Status)
		var werr *StorageWriteError
		assert.ErrorAs(t, res.Err, &werr)
	}
	n.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}

func TestRunPassNotifyFailureRecorded(t *testing.T) {
	s := newStore(t)
	n := &mockNotifier{}
	n.On("Notify", mock.Anything, mock.Anything).Return(errors.New("smtp down")).Once()
	m := newTestMonitor(t, s, registryWith(t, "example.com", staticQuote(7, true)), n, Options{})

	report, err := m.RunPass(context.Background(), []types.Product{{SKU: "N", Name: "Thing", Locator: "example.com/n"}})
	require.NoError(t, err)
	res := report.Results[0]
	assert.Equal(t, StatusNotifyFailed, res.Status)
	var nerr *NotifyError
	require.ErrorAs(t, res.Err, &nerr)
	assert.Contains(t, nerr.Message, "new low price of 7.00")

	hist, err := s.History(context.Background(), "N", time.Time{}, 0)
	require.NoError(t, err)
	assert.Len(t, hist, 1, "observation stays committed")

	logs, err := s.Notifications(context.Background(), "N", 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.False(t, logs[0].Delivered)
	assert.Equal(t, "smtp down", logs[0].Error)
}

func TestRunPassFetchTimeout(t *testing.T) {
	s := newStore(t)
	slow := source.Func{ID: "slow", Fn: func(ctx context.Context, _ string) (source.Quote, error) {
		<-ctx.Done()
		return source.Quote{}, ctx.Err()
	}}
	m := newTestMonitor(t, s, registryWith(t, "example.com", slow), &mockNotifier{}, Options{FetchTimeout: 20 * time.Millisecond})

	report, err := m.RunPass(context.Background(), []types.Product{{SKU: "S", Locator: "example.com/s"}})
	require.NoError(t, err)
	assert.Equal(t, StatusFetchFailed, report.Results[0].Status)
	assert.ErrorIs(t, report.Results[0].Err, context.DeadlineExceeded)
}

func TestRunPassCanceledSkipsRemaining(t *testing.T) {
	s := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	first := source.Func{ID: "first", Fn: func(context.Context, string) (source.Quote, error) {
		cancel()
		return source.Quote{Price: source.Float(3), Available: source.Bool(false)}, nil
	}}
	m := newTestMonitor(t, s, registryWith(t, "example.com", first), &mockNotifier{}, Options{})

	report, err := m.RunPass(ctx, []types.Product{
		{SKU: "A", Locator: "example.com/a"},
		{SKU: "B", Locator: "example.com/b"},
	})
	require.NoError(t, err)
	assert.True(t, report.Canceled)
	assert.Equal(t, StatusStoreFailed, report.Results[0].Status, "store calls see the canceled context")
	assert.Equal(t, StatusSkipped, report.Results[1].Status)
	assert.Contains(t, report.Summary(), "(canceled)")
}

func TestRunPassConcurrentKeepsOrder(t *testing.T) {
	s := newStore(t)
	n := &mockNotifier{}
	n.On("Notify", mock.Anything, mock.Anything).Return(nil)
	m := newTestMonitor(t, s, registryWith(t, "example.com", staticQuote(20, true)), n, Options{Concurrency: 4})

	var products []types.Product
	for i := 0; i < 8; i++ {
		products = append(products, types.Product{SKU: fmt.Sprintf("P%d", i), Locator: "example.com/p"})
	}
	report, err := m.RunPass(context.Background(), products)
	require.NoError(t, err)
	require.Len(t, report.Results, len(products))
	for i, res := range report.Results {
		assert.Equal(t, products[i].SKU, res.SKU)
		assert.Equal(t, StatusNotified, res.Status)
	}
	n.AssertNumberOfCalls(t, "Notify", 8)
}

func TestSecondPassSamePriceIsQuiet(t *testing.T) {
	s := newStore(t)
	n := &mockNotifier{}
	n.On("Notify", mock.Anything, mock.Anything).Return(nil).Once()
	clock := testNow
	m, err := NewMonitor(Params{
		Store:    s,
		Sources:  registryWith(t, "example.com", staticQuote(15, true)),
		Notifier: n,
		Now:      func() time.Time { return clock },
	})
	require.NoError(t, err)
	products := []types.Product{{SKU: "R", Locator: "example.com/r"}}

	first, err := m.RunPass(context.Background(), products)
	require.NoError(t, err)
	assert.Equal(t, StatusNotified, first.Results[0].Status)

	clock = clock.Add(time.Hour)
	second, err := m.RunPass(context.Background(), products)
	require.NoError(t, err)
	assert.Equal(t, StatusObserved, second.Results[0].Status)
	n.AssertExpectations(t)
}

func TestCoerce(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.FixedZone("x", 3600))
	obs := Coerce("S", source.Quote{}, at)
	assert.False(t, obs.PriceKnown())
	assert.Equal(t, 0.0, obs.Shipping)
	assert.False(t, obs.Available)
	assert.Equal(t, types.UnknownSite, obs.Site)
	assert.Equal(t, time.UTC, obs.Timestamp.Location())

	obs = Coerce("S", source.Quote{Price: source.Float(-1), Shipping: source.Float(-2)}, at)
	assert.False(t, obs.PriceKnown())
	assert.Equal(t, 0.0, obs.Shipping)

	obs = Coerce("S", source.Quote{Price: source.Float(9.5), Shipping: source.Float(1.25), Available: source.Bool(true), Site: " shop "}, at)
	assert.Equal(t, 9.5, obs.Price)
	assert.Equal(t, 1.25, obs.Shipping)
	assert.True(t, obs.Available)
	assert.Equal(t, "shop", obs.Site)
}

func TestNewMonitorRequiresCollaborators(t *testing.T) {
	_, err := NewMonitor(Params{})
	assert.Error(t, err)
	m, err := NewMonitor(Params{Store: newStore(t), Sources: source.NewRegistry(), Notifier: &mockNotifier{}})
	require.NoError(t, err)
	assert.Equal(t, DefaultWindow, m.Options().Window)
	assert.Equal(t, DefaultFetchTimeout, m.Options().FetchTimeout)
	assert.Equal(t, 1, m.Options().Concurrency)
}
