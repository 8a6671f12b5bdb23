package testsupport

import (
	"context"
	"testing"

	"audiovault/internal/catalog"
	"audiovault/internal/config"
)

// MustOpenCatalog opens a catalog.Store for tests and registers cleanup.
func MustOpenCatalog(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// RecordAsset inserts an asset row for tests using the provided store.
func RecordAsset(t testing.TB, store *catalog.Store, asset catalog.Asset) {
	t.Helper()

	if err := store.Record(context.Background(), asset); err != nil {
		t.Fatalf("store.Record: %v", err)
	}
}
