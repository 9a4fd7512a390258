package sqlitestore

import (
	"path/filepath"
	"testing"

	"pricewatch/internal/store"
	"pricewatch/internal/store/storetest"

	"github.com/stretchr/testify/require"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.ObservationStore {
		s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	require.Error(t, err)
}
