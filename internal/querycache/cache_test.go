package querycache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
)

func TestLookupCachesUntilInvalidated(t *testing.T) {
	cache := New(NewMemoryStore())
	ctx := context.Background()

	var fetches int32
	fetch := func(context.Context) (string, error) {
		atomic.AddInt32(&fetches, 1)
		return "value", nil
	}

	for i := 0; i < 3; i++ {
		got, err := Lookup(ctx, cache, "k", fetch)
		if err != nil {
			t.Fatalf("lookup: %v", err)
		}
		if got != "value" {
			t.Fatalf("got %q, want value", got)
		}
	}
	if n := atomic.LoadInt32(&fetches); n != 1 {
		t.Fatalf("expected one fetch for repeated lookups, got %d", n)
	}

	if err := cache.Invalidate(ctx, "k"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := Lookup(ctx, cache, "k", fetch); err != nil {
		t.Fatalf("lookup after invalidate: %v", err)
	}
	if n := atomic.LoadInt32(&fetches); n != 2 {
		t.Fatalf("expected refetch after invalidate, got %d fetches", n)
	}
}

func TestRemoveDeletesEntryWithoutRefetch(t *testing.T) {
	store := NewMemoryStore()
	cache := New(store)
	ctx := context.Background()

	if _, err := Lookup(ctx, cache, "k", func(context.Context) (int, error) { return 7, nil }); err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if err := cache.Remove(ctx, "k"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Fatal("entry should be gone after remove")
	}
}

func TestInvalidateMissingKeyIsNoOp(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.Invalidate(ctx, "absent"); err != nil {
		t.Fatalf("invalidate absent key: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "absent"); ok {
		t.Fatal("invalidate must not create an entry")
	}
}

func TestLookupDeduplicatesConcurrentFetches(t *testing.T) {
	cache := New(NewMemoryStore())
	ctx := context.Background()

	var fetches int32
	release := make(chan struct{})
	fetch := func(context.Context) (string, error) {
		atomic.AddInt32(&fetches, 1)
		<-release
		return "shared", nil
	}

	const callers = 16
	var wg sync.WaitGroup
	results := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = Lookup(ctx, cache, "dedup", fetch)
		}()
	}
	// Let the goroutines pile up behind the in-flight fetch, then release.
	close(release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if results[i] != "shared" {
			t.Fatalf("caller %d got %q", i, results[i])
		}
	}
	if n := atomic.LoadInt32(&fetches); n != 1 {
		t.Fatalf("expected one shared fetch, got %d", n)
	}
}

func TestLookupErrorLeavesPriorEntryInPlace(t *testing.T) {
	store := NewMemoryStore()
	cache := New(store)
	ctx := context.Background()

	if _, err := Lookup(ctx, cache, "k", func(context.Context) (string, error) { return "old", nil }); err != nil {
		t.Fatalf("seed lookup: %v", err)
	}
	if err := cache.Invalidate(ctx, "k"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	failing := func(context.Context) (string, error) {
		return "", context.DeadlineExceeded
	}
	if _, err := Lookup(ctx, cache, "k", failing); err == nil {
		t.Fatal("expected fetch error to propagate")
	}
	entry, ok, err := store.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("prior entry should survive a failed refetch: ok=%v err=%v", ok, err)
	}
	if string(entry.Data) != `"old"` {
		t.Fatalf("prior data overwritten: %s", entry.Data)
	}
}

func TestSetReplacesEntryEntirely(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Set(ctx, "k", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Invalidate(ctx, "k"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if err := store.Set(ctx, "k", []byte(`{"b":2}`)); err != nil {
		t.Fatalf("second set: %v", err)
	}
	entry, ok, _ := store.Get(ctx, "k")
	if !ok {
		t.Fatal("entry missing")
	}
	if entry.Stale {
		t.Fatal("set must clear staleness")
	}
	if string(entry.Data) != `{"b":2}` {
		t.Fatalf("unexpected data: %s", entry.Data)
	}
}
