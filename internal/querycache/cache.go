package querycache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Entry is one materialized query result. A write fully replaces the
// prior entry for its key; there are no partial merges.
type Entry struct {
	Key       string
	Data      json.RawMessage
	Stale     bool
	UpdatedAt time.Time
}

// Store is the keyed cache backing a Cache. Invalidate marks an entry
// stale so the next read refetches; Remove deletes it outright so
// nothing is served until a fresh fetch completes.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, data json.RawMessage) error
	Invalidate(ctx context.Context, key string) error
	Remove(ctx context.Context, key string) error
}

// MemoryStore keeps entries in-process for the lifetime of the
// process. This is the default backend.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	return e, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, data json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = Entry{
		Key:       key,
		Data:      data,
		UpdatedAt: time.Now().UTC(),
	}
	return nil
}

func (m *MemoryStore) Invalidate(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok {
		e.Stale = true
		m.entries[key] = e
	}
	return nil
}

func (m *MemoryStore) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Cache fronts a Store with per-key fetch de-duplication: concurrent
// lookups of the same key while a fetch is in flight share one network
// call. There is one Cache per process.
type Cache struct {
	store Store
	group singleflight.Group
}

func New(store Store) *Cache {
	return &Cache{store: store}
}

// Invalidate marks the entry stale; the next Lookup refetches.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	return c.store.Invalidate(ctx, key)
}

// Remove deletes the entry entirely. Used on logout so a stale session
// is never served before a fresh login.
func (c *Cache) Remove(ctx context.Context, key string) error {
	return c.store.Remove(ctx, key)
}

// Peek returns the raw entry without triggering a fetch.
func (c *Cache) Peek(ctx context.Context, key string) (Entry, bool, error) {
	return c.store.Get(ctx, key)
}

// Lookup returns the fresh cached value for key, or runs fetch once
// (shared across concurrent callers), stores the result, and returns
// it. A fetch error is reported to every waiter and leaves any prior
// entry in place. When the caller's context is canceled the wait ends,
// but the in-flight fetch still completes and populates the store for
// later readers.
func Lookup[T any](ctx context.Context, c *Cache, key string, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	entry, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return zero, err
	}
	if ok && !entry.Stale {
		var v T
		if err := json.Unmarshal(entry.Data, &v); err == nil {
			return v, nil
		}
		// Undecodable entry: fall through and refetch.
	}

	ch := c.group.DoChan(key, func() (any, error) {
		// Detached from the caller: a torn-down view must not cancel
		// a fetch other readers may still want.
		fctx := context.WithoutCancel(ctx)
		if e, ok, err := c.store.Get(fctx, key); err == nil && ok && !e.Stale {
			return e.Data, nil
		}
		v, err := fetch(fctx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		if err := c.store.Set(fctx, key, data); err != nil {
			return nil, err
		}
		return json.RawMessage(data), nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		var v T
		if err := json.Unmarshal(res.Val.(json.RawMessage), &v); err != nil {
			return zero, err
		}
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
