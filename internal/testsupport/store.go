package testsupport

import (
	"context"
	"testing"
	"time"

	"fieldbook/internal/config"
	"fieldbook/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewOuting creates an outing for tests using the provided store.
func NewOuting(t testing.TB, st *store.Store, start, end time.Time) *store.Outing {
	t.Helper()

	outing, err := st.CreateOuting(context.Background(), &store.Outing{
		StartTime: start,
		EndTime:   end,
	})
	if err != nil {
		t.Fatalf("store.CreateOuting: %v", err)
	}
	return outing
}
