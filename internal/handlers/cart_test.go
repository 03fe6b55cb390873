package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/getreststore/api/internal/domain"
	"github.com/getreststore/api/internal/services"
)

type stubCartService struct {
	createFunc    func(ctx context.Context) (services.Cart, error)
	getFunc       func(ctx context.Context, cartID string) (services.Cart, error)
	addFunc       func(ctx context.Context, cartID, productID string) (services.Cart, error)
	setQtyFunc    func(ctx context.Context, cartID, productID, raw string) (services.Cart, error)
	removeFunc    func(ctx context.Context, cartID string, ids []string) (services.Cart, error)
	toggleFunc    func(ctx context.Context, cartID, productID string) (services.Cart, error)
	toggleAllFunc func(ctx context.Context, cartID string) (services.Cart, error)
	pendingFunc   func(ctx context.Context, cartID string) (services.Cart, error)
}

func (s *stubCartService) CreateCart(ctx context.Context) (services.Cart, error) {
	if s.createFunc != nil {
		return s.createFunc(ctx)
	}
	return services.Cart{}, nil
}

func (s *stubCartService) GetCart(ctx context.Context, cartID string) (services.Cart, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, cartID)
	}
	return services.Cart{ID: cartID}, nil
}

func (s *stubCartService) AddToCart(ctx context.Context, cartID, productID string) (services.Cart, error) {
	if s.addFunc != nil {
		return s.addFunc(ctx, cartID, productID)
	}
	return services.Cart{ID: cartID}, nil
}

func (s *stubCartService) IncrementQty(ctx context.Context, cartID, productID string) (services.Cart, error) {
	return s.AddToCart(ctx, cartID, productID)
}

func (s *stubCartService) DecrementQty(ctx context.Context, cartID, productID string) (services.Cart, error) {
	return s.AddToCart(ctx, cartID, productID)
}

func (s *stubCartService) SetQtyDirect(ctx context.Context, cartID, productID, rawValue string) (services.Cart, error) {
	if s.setQtyFunc != nil {
		return s.setQtyFunc(ctx, cartID, productID, rawValue)
	}
	return services.Cart{ID: cartID}, nil
}

func (s *stubCartService) RemoveItems(ctx context.Context, cartID string, productIDs []string) (services.Cart, error) {
	if s.removeFunc != nil {
		return s.removeFunc(ctx, cartID, productIDs)
	}
	return services.Cart{ID: cartID}, nil
}

func (s *stubCartService) ToggleSelect(ctx context.Context, cartID, productID string) (services.Cart, error) {
	if s.toggleFunc != nil {
		return s.toggleFunc(ctx, cartID, productID)
	}
	return services.Cart{ID: cartID}, nil
}

func (s *stubCartService) ToggleSelectAll(ctx context.Context, cartID string) (services.Cart, error) {
	if s.toggleAllFunc != nil {
		return s.toggleAllFunc(ctx, cartID)
	}
	return services.Cart{ID: cartID}, nil
}

func (s *stubCartService) ConfirmPendingDelete(ctx context.Context, cartID string) (services.Cart, error) {
	if s.pendingFunc != nil {
		return s.pendingFunc(ctx, cartID)
	}
	return services.Cart{ID: cartID}, nil
}

func (s *stubCartService) CancelPendingDelete(ctx context.Context, cartID string) (services.Cart, error) {
	if s.pendingFunc != nil {
		return s.pendingFunc(ctx, cartID)
	}
	return services.Cart{ID: cartID}, nil
}

type stubCheckoutService struct {
	linkFunc func(ctx context.Context, cartID string) (services.CheckoutLink, error)
}

func (s *stubCheckoutService) BuildCheckoutLink(ctx context.Context, cartID string) (services.CheckoutLink, error) {
	if s.linkFunc != nil {
		return s.linkFunc(ctx, cartID)
	}
	return services.CheckoutLink{}, nil
}

func (s *stubCheckoutService) BuildInquiryLink(itemName string) services.CheckoutLink {
	return services.CheckoutLink{Message: "inquiry: " + itemName, URL: "https://wa.me/628123?text=x"}
}

func newCartTestRouter(carts services.CartService, checkout services.CheckoutService) chi.Router {
	r := chi.NewRouter()
	NewCartHandlers(carts, checkout).Routes(r)
	return r
}

func cartHandlerFixture() services.Cart {
	return services.Cart{
		ID: "cart-1",
		Items: []domain.CartItem{
			{
				Product: domain.Product{ID: "Dragonclaw Hook", Name: "Dragonclaw Hook", Hero: "Pudge", Qty: 2, Price: 750000},
				CartQty: 2,
			},
			{
				Product: domain.Product{ID: "Fiery Soul", Name: "Fiery Soul", Hero: "Lina", Qty: 5, Price: 150000},
				CartQty: 1,
			},
		},
		SelectedIDs: map[string]struct{}{"Dragonclaw Hook": {}},
		UpdatedAt:   time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestCartCreate(t *testing.T) {
	router := newCartTestRouter(&stubCartService{
		createFunc: func(context.Context) (services.Cart, error) {
			return services.Cart{ID: "01NEWCART"}, nil
		},
	}, &stubCheckoutService{})

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}
	var payload cartPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload.ID != "01NEWCART" {
		t.Errorf("unexpected cart id %q", payload.ID)
	}
	if payload.Items == nil {
		t.Errorf("items must serialize as an empty array")
	}
}

func TestCartAddItem(t *testing.T) {
	var gotCartID, gotProductID string
	router := newCartTestRouter(&stubCartService{
		addFunc: func(_ context.Context, cartID, productID string) (services.Cart, error) {
			gotCartID, gotProductID = cartID, productID
			return cartHandlerFixture(), nil
		},
	}, &stubCheckoutService{})

	req := httptest.NewRequest(http.MethodPost, "/cart-1/items", strings.NewReader(`{"productId":"Dragonclaw Hook"}`))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotCartID != "cart-1" || gotProductID != "Dragonclaw Hook" {
		t.Errorf("unexpected call: cart=%q product=%q", gotCartID, gotProductID)
	}

	var payload cartPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload.SelectedTotal != 1500000 {
		t.Errorf("expected selected total 1500000, got %d", payload.SelectedTotal)
	}
	if payload.ItemCount != 3 {
		t.Errorf("expected item count 3, got %d", payload.ItemCount)
	}
	if !payload.Items[0].Selected || payload.Items[1].Selected {
		t.Errorf("selection flags not reflected: %+v", payload.Items)
	}
}

func TestCartAddItemValidation(t *testing.T) {
	router := newCartTestRouter(&stubCartService{}, &stubCheckoutService{})

	cases := []struct {
		name string
		body string
	}{
		{"missing body", ""},
		{"invalid json", "{"},
		{"blank product", `{"productId":"  "}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/cart-1/items", strings.NewReader(tc.body))
			rr := httptest.NewRecorder()

			router.ServeHTTP(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", rr.Code)
			}
		})
	}
}

func TestCartStockLimitConflict(t *testing.T) {
	router := newCartTestRouter(&stubCartService{
		addFunc: func(context.Context, string, string) (services.Cart, error) {
			return cartHandlerFixture(), services.ErrCartStockLimit
		},
	}, &stubCheckoutService{})

	req := httptest.NewRequest(http.MethodPost, "/cart-1/items", strings.NewReader(`{"productId":"Dragonclaw Hook"}`))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["error"] != "stock_limit" {
		t.Errorf("expected stock_limit code, got %v", body["error"])
	}
}

func TestCartSetQuantityPassesRawValue(t *testing.T) {
	var gotRaw string
	router := newCartTestRouter(&stubCartService{
		setQtyFunc: func(_ context.Context, _, _, raw string) (services.Cart, error) {
			gotRaw = raw
			return cartHandlerFixture(), nil
		},
	}, &stubCheckoutService{})

	req := httptest.NewRequest(http.MethodPost, "/cart-1/items/quantity", strings.NewReader(`{"productId":"Dragonclaw Hook","value":"007"}`))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if gotRaw != "007" {
		t.Errorf("raw value must reach the service untouched, got %q", gotRaw)
	}
}

func TestCartRemoveItems(t *testing.T) {
	var gotIDs []string
	router := newCartTestRouter(&stubCartService{
		removeFunc: func(_ context.Context, _ string, ids []string) (services.Cart, error) {
			gotIDs = ids
			return services.Cart{ID: "cart-1"}, nil
		},
	}, &stubCheckoutService{})

	req := httptest.NewRequest(http.MethodPost, "/cart-1/items/remove", strings.NewReader(`{"ids":["Dragonclaw Hook","Fiery Soul"]}`))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if len(gotIDs) != 2 {
		t.Errorf("expected both ids forwarded, got %v", gotIDs)
	}
}

func TestCartItemNotFound(t *testing.T) {
	router := newCartTestRouter(&stubCartService{
		toggleFunc: func(context.Context, string, string) (services.Cart, error) {
			return services.Cart{}, services.ErrCartItemNotFound
		},
	}, &stubCheckoutService{})

	req := httptest.NewRequest(http.MethodPost, "/cart-1/selection/toggle", strings.NewReader(`{"productId":"Ghost"}`))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestCartPendingDeleteSurfaces(t *testing.T) {
	cart := cartHandlerFixture()
	cart.PendingDeleteIDs = []string{"Fiery Soul"}
	router := newCartTestRouter(&stubCartService{
		getFunc: func(context.Context, string) (services.Cart, error) {
			return cart, nil
		},
	}, &stubCheckoutService{})

	req := httptest.NewRequest(http.MethodGet, "/cart-1/", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	var payload cartPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(payload.PendingDeleteIDs) != 1 || payload.PendingDeleteIDs[0] != "Fiery Soul" {
		t.Errorf("pending delete ids not surfaced: %v", payload.PendingDeleteIDs)
	}
}

func TestCartCheckoutLink(t *testing.T) {
	router := newCartTestRouter(&stubCartService{}, &stubCheckoutService{
		linkFunc: func(_ context.Context, cartID string) (services.CheckoutLink, error) {
			return services.CheckoutLink{
				Message: "Halo kak",
				URL:     "https://wa.me/628123?text=Halo",
				Total:   1500000,
				Lines:   1,
			}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/cart-1/checkout-link", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var link services.CheckoutLink
	if err := json.Unmarshal(rr.Body.Bytes(), &link); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if link.Total != 1500000 || !strings.HasPrefix(link.URL, "https://wa.me/") {
		t.Errorf("unexpected link: %+v", link)
	}
}

func TestCartCheckoutLinkEmptySelection(t *testing.T) {
	router := newCartTestRouter(&stubCartService{}, &stubCheckoutService{
		linkFunc: func(context.Context, string) (services.CheckoutLink, error) {
			return services.CheckoutLink{}, services.ErrCheckoutEmptySelection
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/cart-1/checkout-link", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["error"] != "empty_selection" {
		t.Errorf("expected empty_selection code, got %v", body["error"])
	}
}

func TestCartInquiryLink(t *testing.T) {
	router := newCartTestRouter(&stubCartService{}, &stubCheckoutService{})

	t.Run("missing item", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/inquiry-link", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("builds link", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/inquiry-link?item=Dragonclaw+Hook", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		var link services.CheckoutLink
		if err := json.Unmarshal(rr.Body.Bytes(), &link); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if !strings.Contains(link.Message, "Dragonclaw Hook") {
			t.Errorf("item name missing from message: %q", link.Message)
		}
	})
}
