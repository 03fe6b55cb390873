package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/getreststore/api/internal/images"
	"github.com/getreststore/api/internal/platform/httpx"
)

// ImageHandlers resolves item names to hosted artwork URLs.
type ImageHandlers struct {
	resolver *images.Resolver
}

// NewImageHandlers constructs handlers around the image resolver.
func NewImageHandlers(resolver *images.Resolver) *ImageHandlers {
	return &ImageHandlers{resolver: resolver}
}

// Routes wires the /images endpoints onto the provided router.
func (h *ImageHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/resolve", h.resolve)
}

func (h *ImageHandlers) resolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.resolver == nil {
		httpx.WriteError(ctx, w, httpx.NewError("image_service_unavailable", "image resolver is unavailable", http.StatusServiceUnavailable))
		return
	}

	item := strings.TrimSpace(r.URL.Query().Get("item"))
	if item == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "item query parameter is required", http.StatusBadRequest))
		return
	}

	// Resolution never fails outward; lookup misses degrade to the placeholder.
	writeJSONResponse(w, http.StatusOK, h.resolver.Resolve(ctx, item))
}
