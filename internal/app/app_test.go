package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pricewatch/internal/config"
	"pricewatch/internal/gateway/notifier"
	"pricewatch/internal/monitor"
	"pricewatch/internal/source"
	"pricewatch/internal/store"
	"pricewatch/internal/store/sqlitestore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		App:   config.AppConfig{Env: "test", LogLevel: "error"},
		Store: config.StoreConfig{Driver: config.DriverSQLiteRaw},
		Watch: config.WatchConfig{Window: "52w", FetchTimeoutSeconds: 5, Concurrency: 1},
		Products: []config.ProductConfig{
			{SKU: "12345", Name: "Example Product 1", URL: "https://www.example.com/product/12345"},
			{SKU: "99999", Name: "Nowhere", URL: "https://foo.bar/item"},
		},
	}
}

func testOptions(t *testing.T, out *bytes.Buffer) []AppBuilderOption {
	t.Helper()
	s, err := sqlitestore.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	reg := source.NewRegistry()
	require.NoError(t, reg.Register("example.com", source.NewStatic("example.com", source.Quote{
		Price:     source.Float(19.99),
		Available: source.Bool(true),
		Site:      "example.com",
	})))
	reg.Freeze()
	return []AppBuilderOption{
		WithStore(s),
		WithRegistry(reg),
		WithNotifier(notifier.NewConsole(out)),
		WithClock(func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }),
	}
}

func TestRunOnceSinglePass(t *testing.T) {
	var out bytes.Buffer
	a, err := NewApp(testConfig(), testOptions(t, &out)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	_, ok := a.LastReport()
	assert.False(t, ok)

	report, err := a.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Results, 2)
	assert.Equal(t, monitor.StatusNotified, report.Results[0].Status)
	assert.Equal(t, monitor.StatusDispatchMiss, report.Results[1].Status)
	assert.Contains(t, out.String(), "[NOTIFICATION] Price alert: 'Example Product 1' (SKU 12345) has a new low price of 19.99.")

	last, ok := a.LastReport()
	require.True(t, ok)
	assert.Equal(t, report.RunID, last.RunID)
}

func TestRunWithoutLoopRunsOnce(t *testing.T) {
	var out bytes.Buffer
	a, err := NewApp(testConfig(), testOptions(t, &out)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	a.Summary = nil

	require.NoError(t, a.Run(context.Background(), false))
	_, ok := a.LastReport()
	assert.True(t, ok)
}

func TestProductsMergeCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "products.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`products:
  - sku: "12345"
    name: Renamed
    url: https://www.example.com/product/12345
  - sku: "777"
    url: https://www.example.com/product/777
`), 0o644))
	cfg := testConfig()
	cfg.Watch.CatalogPath = path

	var out bytes.Buffer
	a, err := NewApp(cfg, testOptions(t, &out)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	products := a.Products()
	require.Len(t, products, 3)
	assert.Equal(t, "Renamed", products[0].Name)
	assert.Equal(t, "777", products[2].SKU)
	assert.Equal(t, 3, a.Summary.Products)

	require.NoError(t, os.WriteFile(path, []byte(`products:
  - sku: "888"
    url: https://www.example.com/product/888
`), 0o644))
	require.NoError(t, a.catalog.Reload())
	products = a.Products()
	require.Len(t, products, 3)
	assert.Equal(t, "Example Product 1", products[0].Name)
	assert.Equal(t, "888", products[2].SKU)
}

func TestBuildStoreFailure(t *testing.T) {
	failing := func(b *AppBuilder) {
		b.storeFn = func(config.StoreConfig) (store.ObservationStore, error) {
			return nil, errors.New("permission denied")
		}
	}
	_, err := NewApp(testConfig(), failing)
	var initErr *monitor.StorageInitError
	assert.ErrorAs(t, err, &initErr)
}

func TestBuildWithStatusHTTP(t *testing.T) {
	cfg := testConfig()
	cfg.HTTP = config.HTTPConfig{Enabled: true, Addr: "127.0.0.1:0"}
	var out bytes.Buffer
	a, err := NewApp(cfg, testOptions(t, &out)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	require.NotNil(t, a.statusHTTP)
	assert.Equal(t, "127.0.0.1:0", a.Summary.HTTPAddr)
}

func TestSummaryPrint(t *testing.T) {
	var out bytes.Buffer
	a, err := NewApp(testConfig(), testOptions(t, &out)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	var buf bytes.Buffer
	a.Summary.Fprint(&buf)
	assert.Contains(t, buf.String(), "STARTUP SUMMARY")
	assert.Contains(t, buf.String(), "1. example.com")
	assert.Contains(t, buf.String(), "console")
}

func TestOpenStoreSelectsBackend(t *testing.T) {
	s, err := openStore(config.StoreConfig{Driver: config.DriverSQLiteRaw, Path: filepath.Join(t.TempDir(), "raw.db")})
	require.NoError(t, err)
	_, isRaw := s.(*sqlitestore.Store)
	assert.True(t, isRaw)
	require.NoError(t, s.Close())

	s, err = openStore(config.StoreConfig{Driver: config.DriverSQLitePure, Path: filepath.Join(t.TempDir(), "gorm.db")})
	require.NoError(t, err)
	_, isRaw = s.(*sqlitestore.Store)
	assert.False(t, isRaw)
	require.NoError(t, s.Close())
}
