package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/salonbook/salonbook/internal/catalog"
)

// CatalogHandler serves the public listings clients browse before booking.
// No authentication: the catalog carries nothing sensitive.
type CatalogHandler struct {
	lister catalog.Lister
	logger *slog.Logger
}

func NewCatalogHandler(lister catalog.Lister, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{lister: lister, logger: logger}
}

func (h *CatalogHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /services", h.Services)
	mux.HandleFunc("GET /staff", h.Staff)
}

func (h *CatalogHandler) Services(w http.ResponseWriter, r *http.Request) {
	items, err := h.lister.ListServices(r.Context(), queryFrom(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if items == nil {
		items = []catalog.ServiceItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *CatalogHandler) Staff(w http.ResponseWriter, r *http.Request) {
	items, err := h.lister.ListStaff(r.Context(), queryFrom(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if items == nil {
		items = []catalog.StaffItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func queryFrom(r *http.Request) catalog.Query {
	q := catalog.Query{Search: r.URL.Query().Get("search")}
	if page, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
		q.Page = page
	}
	if size, err := strconv.Atoi(r.URL.Query().Get("page_size")); err == nil {
		q.PageSize = size
	}
	return q.Normalize()
}
