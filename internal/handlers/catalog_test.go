package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/salonbook/salonbook/internal/catalog"
)

type fixedLister struct {
	gotQuery catalog.Query
	services []catalog.ServiceItem
	staff    []catalog.StaffItem
}

func (l *fixedLister) ListServices(_ context.Context, q catalog.Query) ([]catalog.ServiceItem, error) {
	l.gotQuery = q
	return l.services, nil
}

func (l *fixedLister) ListStaff(_ context.Context, q catalog.Query) ([]catalog.StaffItem, error) {
	l.gotQuery = q
	return l.staff, nil
}

func catalogMux(lister catalog.Lister) *http.ServeMux {
	mux := http.NewServeMux()
	NewCatalogHandler(lister, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(mux)
	return mux
}

func TestServicesListing(t *testing.T) {
	lister := &fixedLister{services: []catalog.ServiceItem{{ID: "svc-1", Name: "Cut", DurationMinutes: 45, PriceCents: 3500}}}
	mux := catalogMux(lister)

	req := httptest.NewRequest(http.MethodGet, "/services?search=Cut&page=2&page_size=10", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if lister.gotQuery.Search != "cut" || lister.gotQuery.Page != 2 || lister.gotQuery.PageSize != 10 {
		t.Fatalf("query = %+v", lister.gotQuery)
	}
	var items []catalog.ServiceItem
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].ID != "svc-1" {
		t.Fatalf("items = %+v", items)
	}
}

func TestStaffListingEmptyIsArray(t *testing.T) {
	mux := catalogMux(&fixedLister{})

	req := httptest.NewRequest(http.MethodGet, "/staff", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := rec.Body.String(); body != "[]\n" {
		t.Fatalf("empty listing must encode as [], got %q", body)
	}
}
