package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/getreststore/api/internal/platform/httpx"
	"github.com/getreststore/api/internal/services"
)

// CatalogHandlers exposes the public product browsing endpoints.
type CatalogHandlers struct {
	catalog services.CatalogService
}

// NewCatalogHandlers constructs handlers serving the storefront catalog.
func NewCatalogHandlers(catalog services.CatalogService) *CatalogHandlers {
	return &CatalogHandlers{catalog: catalog}
}

// Routes wires the /catalog endpoints onto the provided router.
func (h *CatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.browse)
	r.Get("/heroes", h.heroes)
}

func (h *CatalogHandlers) browse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	query, err := parseCatalogQuery(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.catalog.Browse(ctx, query)
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, page)
}

func (h *CatalogHandlers) heroes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	heroes, err := h.catalog.Heroes(ctx)
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}
	if heroes == nil {
		heroes = []string{}
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"heroes": heroes})
}

func parseCatalogQuery(r *http.Request) (services.CatalogQuery, error) {
	values := r.URL.Query()
	query := services.CatalogQuery{
		Search: strings.TrimSpace(values.Get("search")),
		Hero:   strings.TrimSpace(values.Get("hero")),
		Sort:   services.SortOption(strings.TrimSpace(values.Get("sort"))),
	}

	if raw := strings.TrimSpace(values.Get("minPrice")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return query, errors.New("minPrice must be an integer")
		}
		query.MinPrice = parsed
	}
	if raw := strings.TrimSpace(values.Get("maxPrice")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return query, errors.New("maxPrice must be an integer")
		}
		query.MaxPrice = parsed
	}
	if raw := strings.TrimSpace(values.Get("visibleCount")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return query, errors.New("visibleCount must be an integer")
		}
		query.VisibleCount = parsed
	}

	return query, nil
}

func (h *CatalogHandlers) writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCatalogUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "price data is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "failed to load catalog", http.StatusInternalServerError))
	}
}
