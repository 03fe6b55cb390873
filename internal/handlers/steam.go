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

// SteamHandlers proxies the shop owner's Steam presence to the storefront.
type SteamHandlers struct {
	steam   services.SteamService
	steamID string
}

// NewSteamHandlers constructs handlers around the Steam service. The default
// steam id backs the profile endpoint when the query omits one.
func NewSteamHandlers(steam services.SteamService, steamID string) *SteamHandlers {
	return &SteamHandlers{
		steam:   steam,
		steamID: strings.TrimSpace(steamID),
	}
}

// Routes wires the /steam endpoints onto the provided router.
func (h *SteamHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/profile", h.profile)
	r.Get("/inventory", h.inventory)
	r.Get("/comments", h.comments)
}

func (h *SteamHandlers) profile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.steam == nil {
		httpx.WriteError(ctx, w, httpx.NewError("steam_service_unavailable", "steam service is unavailable", http.StatusServiceUnavailable))
		return
	}

	steamID := strings.TrimSpace(r.URL.Query().Get("steamId"))
	if steamID == "" {
		steamID = h.steamID
	}
	if steamID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "steamId query parameter is required", http.StatusBadRequest))
		return
	}

	profile, err := h.steam.Profile(ctx, steamID)
	if err != nil {
		h.writeSteamError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, profile)
}

func (h *SteamHandlers) inventory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.steam == nil {
		httpx.WriteError(ctx, w, httpx.NewError("steam_service_unavailable", "steam service is unavailable", http.StatusServiceUnavailable))
		return
	}

	items, err := h.steam.Inventory(ctx)
	if err != nil {
		h.writeSteamError(ctx, w, err)
		return
	}
	if items == nil {
		items = []services.InventoryItem{}
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": items})
}

func (h *SteamHandlers) comments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.steam == nil {
		httpx.WriteError(ctx, w, httpx.NewError("steam_service_unavailable", "steam service is unavailable", http.StatusServiceUnavailable))
		return
	}

	values := r.URL.Query()
	page, err := parsePositiveQueryInt(values.Get("page"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "page must be a positive integer", http.StatusBadRequest))
		return
	}
	limit, err := parsePositiveQueryInt(values.Get("limit"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be a positive integer", http.StatusBadRequest))
		return
	}

	comments, err := h.steam.Comments(ctx, page, limit)
	if err != nil {
		h.writeSteamError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, comments)
}

// parsePositiveQueryInt treats an absent value as zero, letting the service
// apply its defaults.
func parsePositiveQueryInt(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return 0, errors.New("must be a positive integer")
	}
	return parsed, nil
}

func (h *SteamHandlers) writeSteamError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrSteamInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrSteamProfileNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("profile_not_found", "steam profile not found", http.StatusNotFound))
	case errors.Is(err, services.ErrSteamUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("steam_unavailable", "steam is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("steam_error", "failed to reach steam", http.StatusInternalServerError))
	}
}
