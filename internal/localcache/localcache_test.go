package localcache

import (
	"context"
	"path/filepath"
	"testing"

	"campushub/statesync/internal/state"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	cache, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestGetBeforeFirstPut(t *testing.T) {
	cache := openTestCache(t)
	st, err := cache.Get(context.Background())
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if st != nil {
		t.Fatalf("expected no cached copy, got %+v", st)
	}
}

func TestPutThenGetRoundTrip(t *testing.T) {
	cache := openTestCache(t)
	ctx := context.Background()

	st := state.Default()
	st.Events = append(st.Events, state.Event{ID: "e-1", Title: "Orientation"})
	if err := cache.Put(ctx, st); err != nil {
		t.Fatalf("put error: %v", err)
	}
	got, err := cache.Get(ctx)
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if !st.Equal(got) {
		t.Fatalf("cached copy differs from what was stored")
	}
}

func TestPutReplacesPreviousCopy(t *testing.T) {
	cache := openTestCache(t)
	ctx := context.Background()

	first := state.Default()
	first.Events = append(first.Events, state.Event{ID: "e-1", Title: "Old"})
	if err := cache.Put(ctx, first); err != nil {
		t.Fatalf("put error: %v", err)
	}
	second := state.Default()
	second.Events = append(second.Events, state.Event{ID: "e-2", Title: "New"})
	if err := cache.Put(ctx, second); err != nil {
		t.Fatalf("second put error: %v", err)
	}
	got, err := cache.Get(ctx)
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if len(got.Events) != 1 || got.Events[0].ID != "e-2" {
		t.Fatalf("expected replacement, got %+v", got.Events)
	}
}

func TestCorruptCacheReportsError(t *testing.T) {
	cache := openTestCache(t)
	ctx := context.Background()
	if _, err := cache.db.ExecContext(ctx,
		"INSERT INTO documents (key, body, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)",
		documentKey, []byte(`["not","an","aggregate"]`)); err != nil {
		t.Fatalf("seed corrupt row: %v", err)
	}
	if _, err := cache.Get(ctx); err == nil {
		t.Fatalf("expected corrupt cache to error")
	}
}
