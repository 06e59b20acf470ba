package usage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/polaris-gw/polaris/pkg/dispatch"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "usage.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteInsertAndCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := store.Insert(ctx, dispatch.UsageEvent{
			Status:     200,
			Elapsed:    42 * time.Millisecond,
			Credential: "ab...yz",
			Stream:     i%2 == 0,
		}, time.Now())
		if err != nil {
			t.Fatalf("Insert() #%d error = %v", i, err)
		}
	}

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 5 {
		t.Errorf("Count() = %d, want 5", n)
	}
}

func TestSQLitePrune(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now()

	for i := 0; i < 3; i++ {
		if err := store.Insert(ctx, dispatch.UsageEvent{Status: 200}, old); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}
	if err := store.Insert(ctx, dispatch.UsageEvent{Status: 200}, recent); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	pruned, err := store.Prune(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if pruned != 3 {
		t.Errorf("Prune() = %d, want 3", pruned)
	}

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Count() after prune = %d, want 1", n)
	}
}
