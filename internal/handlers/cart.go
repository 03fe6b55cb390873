package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/getreststore/api/internal/platform/httpx"
	"github.com/getreststore/api/internal/services"
)

// CartHandlers exposes the server-held cart endpoints and the WhatsApp
// checkout link derived from the current selection.
type CartHandlers struct {
	carts    services.CartService
	checkout services.CheckoutService
}

const maxCartBodySize = 16 * 1024

var (
	errEmptyBody    = errors.New("request body is empty")
	errBodyTooLarge = errors.New("request body too large")
)

// NewCartHandlers constructs handlers around the cart and checkout services.
func NewCartHandlers(carts services.CartService, checkout services.CheckoutService) *CartHandlers {
	return &CartHandlers{
		carts:    carts,
		checkout: checkout,
	}
}

// Routes wires the /carts endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createCart)
	r.Get("/inquiry-link", h.inquiryLink)
	r.Route("/{cartID}", func(cart chi.Router) {
		cart.Get("/", h.getCart)
		cart.Post("/items", h.addItem)
		cart.Post("/items/increment", h.incrementItem)
		cart.Post("/items/decrement", h.decrementItem)
		cart.Post("/items/quantity", h.setItemQuantity)
		cart.Post("/items/remove", h.removeItems)
		cart.Post("/selection/toggle", h.toggleSelect)
		cart.Post("/selection/toggle-all", h.toggleSelectAll)
		cart.Post("/pending-delete/confirm", h.confirmPendingDelete)
		cart.Post("/pending-delete/cancel", h.cancelPendingDelete)
		cart.Get("/checkout-link", h.checkoutLink)
	})
}

type cartItemRequest struct {
	ProductID string `json:"productId"`
	Value     string `json:"value"`
}

type removeItemsRequest struct {
	IDs []string `json:"ids"`
}

type cartItemPayload struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Hero     string `json:"hero,omitempty"`
	Qty      int    `json:"qty"`
	Price    int64  `json:"price"`
	CartQty  int    `json:"cartQty"`
	Selected bool   `json:"selected"`
}

type cartPayload struct {
	ID               string            `json:"id"`
	Items            []cartItemPayload `json:"items"`
	PendingDeleteIDs []string          `json:"pendingDeleteIds,omitempty"`
	SelectedTotal    int64             `json:"selectedTotal"`
	ItemCount        int               `json:"itemCount"`
	UpdatedAt        string            `json:"updatedAt,omitempty"`
}

func (h *CartHandlers) createCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	cart, err := h.carts.CreateCart(ctx)
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildCartPayload(cart))
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	h.respondWithCart(w, r, func(ctx context.Context, cartID string) (services.Cart, error) {
		return h.carts.GetCart(ctx, cartID)
	})
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeItemRequest(w, r)
	if !ok {
		return
	}
	h.respondWithCart(w, r, func(ctx context.Context, cartID string) (services.Cart, error) {
		return h.carts.AddToCart(ctx, cartID, req.ProductID)
	})
}

func (h *CartHandlers) incrementItem(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeItemRequest(w, r)
	if !ok {
		return
	}
	h.respondWithCart(w, r, func(ctx context.Context, cartID string) (services.Cart, error) {
		return h.carts.IncrementQty(ctx, cartID, req.ProductID)
	})
}

func (h *CartHandlers) decrementItem(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeItemRequest(w, r)
	if !ok {
		return
	}
	h.respondWithCart(w, r, func(ctx context.Context, cartID string) (services.Cart, error) {
		return h.carts.DecrementQty(ctx, cartID, req.ProductID)
	})
}

func (h *CartHandlers) setItemQuantity(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeItemRequest(w, r)
	if !ok {
		return
	}
	h.respondWithCart(w, r, func(ctx context.Context, cartID string) (services.Cart, error) {
		return h.carts.SetQtyDirect(ctx, cartID, req.ProductID, req.Value)
	})
}

func (h *CartHandlers) removeItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, err := readLimitedBody(r, maxCartBodySize)
	if err != nil {
		h.writeBodyError(ctx, w, err)
		return
	}
	var req removeItemsRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}
	h.respondWithCart(w, r, func(ctx context.Context, cartID string) (services.Cart, error) {
		return h.carts.RemoveItems(ctx, cartID, req.IDs)
	})
}

func (h *CartHandlers) toggleSelect(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeItemRequest(w, r)
	if !ok {
		return
	}
	h.respondWithCart(w, r, func(ctx context.Context, cartID string) (services.Cart, error) {
		return h.carts.ToggleSelect(ctx, cartID, req.ProductID)
	})
}

func (h *CartHandlers) toggleSelectAll(w http.ResponseWriter, r *http.Request) {
	h.respondWithCart(w, r, func(ctx context.Context, cartID string) (services.Cart, error) {
		return h.carts.ToggleSelectAll(ctx, cartID)
	})
}

func (h *CartHandlers) confirmPendingDelete(w http.ResponseWriter, r *http.Request) {
	h.respondWithCart(w, r, func(ctx context.Context, cartID string) (services.Cart, error) {
		return h.carts.ConfirmPendingDelete(ctx, cartID)
	})
}

func (h *CartHandlers) cancelPendingDelete(w http.ResponseWriter, r *http.Request) {
	h.respondWithCart(w, r, func(ctx context.Context, cartID string) (services.Cart, error) {
		return h.carts.CancelPendingDelete(ctx, cartID)
	})
}

func (h *CartHandlers) checkoutLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_service_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
		return
	}

	cartID := strings.TrimSpace(chi.URLParam(r, "cartID"))
	link, err := h.checkout.BuildCheckoutLink(ctx, cartID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCheckoutEmptySelection):
			httpx.WriteError(ctx, w, httpx.NewError("empty_selection", "no items selected", http.StatusBadRequest))
		default:
			h.writeCartError(ctx, w, err)
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, link)
}

func (h *CartHandlers) inquiryLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_service_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
		return
	}

	item := strings.TrimSpace(r.URL.Query().Get("item"))
	if item == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "item query parameter is required", http.StatusBadRequest))
		return
	}
	writeJSONResponse(w, http.StatusOK, h.checkout.BuildInquiryLink(item))
}

func (h *CartHandlers) respondWithCart(w http.ResponseWriter, r *http.Request, op func(context.Context, string) (services.Cart, error)) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	cartID := strings.TrimSpace(chi.URLParam(r, "cartID"))
	cart, err := op(ctx, cartID)
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCartPayload(cart))
}

func (h *CartHandlers) decodeItemRequest(w http.ResponseWriter, r *http.Request) (cartItemRequest, bool) {
	ctx := r.Context()
	var req cartItemRequest

	body, err := readLimitedBody(r, maxCartBodySize)
	if err != nil {
		h.writeBodyError(ctx, w, err)
		return req, false
	}
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return req, false
	}
	if strings.TrimSpace(req.ProductID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "productId is required", http.StatusBadRequest))
		return req, false
	}
	req.ProductID = strings.TrimSpace(req.ProductID)
	return req, true
}

func (h *CartHandlers) writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errEmptyBody):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}

func (h *CartHandlers) writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCartItemNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("item_not_found", "item is not in the cart", http.StatusNotFound))
	case errors.Is(err, services.ErrCartProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product is not in the catalog", http.StatusNotFound))
	case errors.Is(err, services.ErrCartStockLimit):
		httpx.WriteError(ctx, w, httpx.NewError("stock_limit", "quantity limited by available stock", http.StatusConflict))
	case errors.Is(err, services.ErrCartUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("cart_error", "failed to update cart", http.StatusInternalServerError))
	}
}

func buildCartPayload(cart services.Cart) cartPayload {
	payload := cartPayload{
		ID:            strings.TrimSpace(cart.ID),
		Items:         make([]cartItemPayload, 0, len(cart.Items)),
		SelectedTotal: cart.SelectedTotal(),
		ItemCount:     cart.ItemCount(),
	}
	for _, item := range cart.Items {
		payload.Items = append(payload.Items, cartItemPayload{
			ID:       item.ID,
			Name:     item.Name,
			Hero:     item.Hero,
			Qty:      item.Qty,
			Price:    item.Price,
			CartQty:  item.CartQty,
			Selected: cart.Selected(item.ID),
		})
	}
	if len(cart.PendingDeleteIDs) > 0 {
		payload.PendingDeleteIDs = append([]string(nil), cart.PendingDeleteIDs...)
	}
	if !cart.UpdatedAt.IsZero() {
		payload.UpdatedAt = formatTime(cart.UpdatedAt)
	}
	return payload
}

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = maxCartBodySize
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
