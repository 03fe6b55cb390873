package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/getreststore/api/internal/platform/httpx"
	"github.com/getreststore/api/internal/services"
)

// PromoHandlers exposes the flash sale and lucky draw endpoints.
type PromoHandlers struct {
	promos services.PromoService
}

// NewPromoHandlers constructs handlers for the promotional panels.
func NewPromoHandlers(promos services.PromoService) *PromoHandlers {
	return &PromoHandlers{promos: promos}
}

// Routes wires the /promos endpoints onto the provided router.
func (h *PromoHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/flash-sale", h.flashSale)
	r.Get("/lucky-draw", h.luckyDraw)
}

func (h *PromoHandlers) flashSale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.promos == nil {
		httpx.WriteError(ctx, w, httpx.NewError("promo_service_unavailable", "promo service is unavailable", http.StatusServiceUnavailable))
		return
	}

	sale, err := h.promos.FlashSale(ctx)
	if err != nil {
		h.writePromoError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, sale)
}

func (h *PromoHandlers) luckyDraw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.promos == nil {
		httpx.WriteError(ctx, w, httpx.NewError("promo_service_unavailable", "promo service is unavailable", http.StatusServiceUnavailable))
		return
	}

	result, err := h.promos.LuckyDraw(ctx)
	if err != nil {
		h.writePromoError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, result)
}

func (h *PromoHandlers) writePromoError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrPromoEmptyCatalog):
		httpx.WriteError(ctx, w, httpx.NewError("empty_catalog", "no purchasable items available", http.StatusNotFound))
	case errors.Is(err, services.ErrCatalogUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "price data is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("promo_error", "failed to compute promotion", http.StatusInternalServerError))
	}
}
