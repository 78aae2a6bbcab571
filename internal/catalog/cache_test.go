package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

type fakeCache struct {
	entries map[string][]byte
	getErr  error
	setErr  error
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	val, ok := c.entries[key]
	return val, ok, nil
}

func (c *fakeCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.entries[key] = value
	return nil
}

func (c *fakeCache) InvalidatePrefix(_ context.Context, prefix string) error {
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	return nil
}

type countingLister struct {
	services     []ServiceItem
	staff        []StaffItem
	serviceCalls int
	staffCalls   int
}

func (l *countingLister) ListServices(_ context.Context, _ Query) ([]ServiceItem, error) {
	l.serviceCalls++
	return l.services, nil
}

func (l *countingLister) ListStaff(_ context.Context, _ Query) ([]StaffItem, error) {
	l.staffCalls++
	return l.staff, nil
}

func testCachedLister(next Lister, cache Cache) *CachedLister {
	return NewCachedLister(next, cache, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestQueryNormalize(t *testing.T) {
	q := Query{Search: "  Cut ", Page: 0, PageSize: 1000}.Normalize()
	if q.Search != "cut" {
		t.Fatalf("search = %q, want cut", q.Search)
	}
	if q.Page != 1 {
		t.Fatalf("page = %d, want 1", q.Page)
	}
	if q.PageSize != MaxPageSize {
		t.Fatalf("page size = %d, want %d", q.PageSize, MaxPageSize)
	}
}

func TestCacheKeyDerivation(t *testing.T) {
	q := Query{Search: "cut", Page: 2, PageSize: 20}
	if got := cacheKey("services", q); got != "catalog:services:cut:2:20" {
		t.Fatalf("key = %q", got)
	}
	// Equivalent queries normalize to the same key.
	a := cacheKey("staff", Query{Search: " Cut ", Page: 0, PageSize: 0}.Normalize())
	b := cacheKey("staff", Query{Search: "cut", Page: 1, PageSize: DefaultPageSize})
	if a != b {
		t.Fatalf("equivalent queries diverged: %q vs %q", a, b)
	}
}

func TestCachedListerServesFromCache(t *testing.T) {
	next := &countingLister{services: []ServiceItem{{ID: "svc-1", Name: "Cut", DurationMinutes: 45, PriceCents: 3500}}}
	cache := newFakeCache()
	lister := testCachedLister(next, cache)
	ctx := context.Background()

	q := Query{Page: 1, PageSize: 20}
	first, err := lister.ListServices(ctx, q)
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	second, err := lister.ListServices(ctx, q)
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if next.serviceCalls != 1 {
		t.Fatalf("backing lister called %d times, want 1", next.serviceCalls)
	}
	if len(first) != 1 || len(second) != 1 || second[0].ID != "svc-1" {
		t.Fatalf("results diverged: %+v vs %+v", first, second)
	}
}

func TestCachedListerDistinctPages(t *testing.T) {
	next := &countingLister{}
	lister := testCachedLister(next, newFakeCache())
	ctx := context.Background()

	if _, err := lister.ListStaff(ctx, Query{Page: 1, PageSize: 20}); err != nil {
		t.Fatal(err)
	}
	if _, err := lister.ListStaff(ctx, Query{Page: 2, PageSize: 20}); err != nil {
		t.Fatal(err)
	}
	if next.staffCalls != 2 {
		t.Fatalf("backing lister called %d times, want 2 (distinct pages)", next.staffCalls)
	}
}

func TestCachedListerInvalidation(t *testing.T) {
	next := &countingLister{staff: []StaffItem{{ID: "staff-1", Name: "Dana"}}}
	cache := newFakeCache()
	lister := testCachedLister(next, cache)
	ctx := context.Background()

	q := Query{Page: 1, PageSize: 20}
	if _, err := lister.ListStaff(ctx, q); err != nil {
		t.Fatal(err)
	}
	if _, err := lister.ListServices(ctx, q); err != nil {
		t.Fatal(err)
	}

	if err := lister.InvalidateStaff(ctx); err != nil {
		t.Fatal(err)
	}

	if _, err := lister.ListStaff(ctx, q); err != nil {
		t.Fatal(err)
	}
	if next.staffCalls != 2 {
		t.Fatalf("staff calls = %d, want 2 (reload after invalidation)", next.staffCalls)
	}

	// Service pages survive a staff invalidation.
	if _, err := lister.ListServices(ctx, q); err != nil {
		t.Fatal(err)
	}
	if next.serviceCalls != 1 {
		t.Fatalf("service calls = %d, want 1", next.serviceCalls)
	}
}

func TestCachedListerDegradesWhenCacheDown(t *testing.T) {
	next := &countingLister{services: []ServiceItem{{ID: "svc-1", Name: "Cut"}}}
	cache := newFakeCache()
	cache.getErr = errors.New("redis down")
	cache.setErr = errors.New("redis down")
	lister := testCachedLister(next, cache)

	got, err := lister.ListServices(context.Background(), Query{Page: 1, PageSize: 20})
	if err != nil {
		t.Fatalf("listing must survive a dead cache, got %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("results = %+v", got)
	}
}
