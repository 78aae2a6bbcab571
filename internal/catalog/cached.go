package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/salonbook/salonbook/internal/metrics"
)

const defaultTTL = 5 * time.Minute

// CachedLister decorates a Lister with the Redis page cache. A broken cache
// degrades to direct reads; it never fails a listing.
type CachedLister struct {
	next   Lister
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedLister(next Lister, cache Cache, logger *slog.Logger) *CachedLister {
	return &CachedLister{next: next, cache: cache, ttl: defaultTTL, logger: logger}
}

var _ Lister = (*CachedLister)(nil)

func (l *CachedLister) ListServices(ctx context.Context, q Query) ([]ServiceItem, error) {
	q = q.Normalize()
	var out []ServiceItem
	err := l.through(ctx, cacheKey("services", q), &out, func() (any, error) {
		return l.next.ListServices(ctx, q)
	})
	return out, err
}

func (l *CachedLister) ListStaff(ctx context.Context, q Query) ([]StaffItem, error) {
	q = q.Normalize()
	var out []StaffItem
	err := l.through(ctx, cacheKey("staff", q), &out, func() (any, error) {
		return l.next.ListStaff(ctx, q)
	})
	return out, err
}

// InvalidateServices / InvalidateStaff drop every cached page of the listing.
func (l *CachedLister) InvalidateServices(ctx context.Context) error {
	return l.cache.InvalidatePrefix(ctx, kindPrefix("services"))
}

func (l *CachedLister) InvalidateStaff(ctx context.Context) error {
	return l.cache.InvalidatePrefix(ctx, kindPrefix("staff"))
}

func (l *CachedLister) through(ctx context.Context, key string, out any, load func() (any, error)) error {
	if raw, ok, err := l.cache.Get(ctx, key); err != nil {
		l.logger.Warn("catalog cache read failed", "key", key, "err", err)
	} else if ok {
		if err := json.Unmarshal(raw, out); err == nil {
			metrics.CatalogCacheHits.WithLabelValues("hit").Inc()
			return nil
		}
		l.logger.Warn("catalog cache entry corrupt, reloading", "key", key)
	}
	metrics.CatalogCacheHits.WithLabelValues("miss").Inc()

	fresh, err := load()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(fresh)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return err
	}
	if err := l.cache.Set(ctx, key, raw, l.ttl); err != nil {
		l.logger.Warn("catalog cache write failed", "key", key, "err", err)
	}
	return nil
}
