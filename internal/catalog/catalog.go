// Package catalog serves the read-only listings clients browse before
// booking: offered services and bookable staff. Listings are paginated,
// optionally filtered by a search term, and cached.
package catalog

import (
	"context"
	"strings"

	"github.com/salonbook/salonbook/internal/apperr"
	"github.com/salonbook/salonbook/libs/db"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Query selects a listing page. Search matches name substrings,
// case-insensitively. Page is 1-based.
type Query struct {
	Search   string
	Page     int
	PageSize int
}

// Normalize clamps the query into valid bounds so every equivalent request
// derives the same cache key.
func (q Query) Normalize() Query {
	q.Search = strings.ToLower(strings.TrimSpace(q.Search))
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	return q
}

type ServiceItem struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	PriceCents      int    `json:"price_cents"`
}

type StaffItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Lister is the listing read model. CachedLister decorates it; handlers
// consume the interface.
type Lister interface {
	ListServices(ctx context.Context, q Query) ([]ServiceItem, error)
	ListStaff(ctx context.Context, q Query) ([]StaffItem, error)
}

type PostgresLister struct {
	pool *db.Pool
}

func NewPostgresLister(pool *db.Pool) *PostgresLister {
	return &PostgresLister{pool: pool}
}

var _ Lister = (*PostgresLister)(nil)

func (l *PostgresLister) ListServices(ctx context.Context, q Query) ([]ServiceItem, error) {
	q = q.Normalize()
	rows, err := l.pool.Query(ctx, `
		SELECT id, name, duration_minutes, price_cents
		FROM services
		WHERE $1 = '' OR lower(name) LIKE '%' || $1 || '%'
		ORDER BY name, id
		LIMIT $2 OFFSET $3`,
		q.Search, q.PageSize, (q.Page-1)*q.PageSize)
	if err != nil {
		return nil, apperr.Persistence("list services", false, err)
	}
	defer rows.Close()

	var out []ServiceItem
	for rows.Next() {
		var item ServiceItem
		if err := rows.Scan(&item.ID, &item.Name, &item.DurationMinutes, &item.PriceCents); err != nil {
			return nil, apperr.Persistence("scan service", false, err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("list services", false, err)
	}
	return out, nil
}

func (l *PostgresLister) ListStaff(ctx context.Context, q Query) ([]StaffItem, error) {
	q = q.Normalize()
	rows, err := l.pool.Query(ctx, `
		SELECT id, name
		FROM staff
		WHERE $1 = '' OR lower(name) LIKE '%' || $1 || '%'
		ORDER BY name, id
		LIMIT $2 OFFSET $3`,
		q.Search, q.PageSize, (q.Page-1)*q.PageSize)
	if err != nil {
		return nil, apperr.Persistence("list staff", false, err)
	}
	defer rows.Close()

	var out []StaffItem
	for rows.Next() {
		var item StaffItem
		if err := rows.Scan(&item.ID, &item.Name); err != nil {
			return nil, apperr.Persistence("scan staff", false, err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("list staff", false, err)
	}
	return out, nil
}
