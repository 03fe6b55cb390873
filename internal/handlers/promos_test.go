package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/getreststore/api/internal/domain"
	"github.com/getreststore/api/internal/services"
)

type stubPromoService struct {
	flashFunc func(ctx context.Context) (services.FlashSale, error)
	drawFunc  func(ctx context.Context) (services.LuckyDrawResult, error)
}

func (s *stubPromoService) FlashSale(ctx context.Context) (services.FlashSale, error) {
	if s.flashFunc != nil {
		return s.flashFunc(ctx)
	}
	return services.FlashSale{}, nil
}

func (s *stubPromoService) LuckyDraw(ctx context.Context) (services.LuckyDrawResult, error) {
	if s.drawFunc != nil {
		return s.drawFunc(ctx)
	}
	return services.LuckyDrawResult{}, nil
}

func newPromoTestRouter(svc services.PromoService) chi.Router {
	r := chi.NewRouter()
	NewPromoHandlers(svc).Routes(r)
	return r
}

func TestPromoFlashSale(t *testing.T) {
	endsAt := time.Date(2025, 6, 10, 23, 59, 59, 0, time.UTC)
	router := newPromoTestRouter(&stubPromoService{
		flashFunc: func(context.Context) (services.FlashSale, error) {
			return services.FlashSale{
				Items: []services.FlashSaleItem{
					{
						Product:       domain.Product{ID: "Fiery Soul", Name: "Fiery Soul", Price: 133500, Qty: 1},
						OriginalPrice: 150000,
					},
				},
				EndsAt: endsAt,
			}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/flash-sale", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var sale services.FlashSale
	if err := json.Unmarshal(rr.Body.Bytes(), &sale); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(sale.Items) != 1 || sale.Items[0].OriginalPrice != 150000 {
		t.Errorf("unexpected sale payload: %+v", sale)
	}
	if !sale.EndsAt.Equal(endsAt) {
		t.Errorf("unexpected endsAt: %v", sale.EndsAt)
	}
}

func TestPromoLuckyDraw(t *testing.T) {
	router := newPromoTestRouter(&stubPromoService{
		drawFunc: func(context.Context) (services.LuckyDrawResult, error) {
			return services.LuckyDrawResult{
				Product: domain.Product{ID: "Dragonclaw Hook", Name: "Dragonclaw Hook", Price: 750000, Qty: 1},
				Rarity:  domain.RarityMythical,
			}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/lucky-draw", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var result services.LuckyDrawResult
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if result.Rarity != domain.RarityMythical {
		t.Errorf("expected MYTHICAL rarity, got %s", result.Rarity)
	}
}

func TestPromoErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"empty catalog", services.ErrPromoEmptyCatalog, http.StatusNotFound, "empty_catalog"},
		{"catalog down", services.ErrCatalogUnavailable, http.StatusServiceUnavailable, "catalog_unavailable"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newPromoTestRouter(&stubPromoService{
				flashFunc: func(context.Context) (services.FlashSale, error) {
					return services.FlashSale{}, tc.err
				},
			})

			req := httptest.NewRequest(http.MethodGet, "/flash-sale", nil)
			rr := httptest.NewRecorder()

			router.ServeHTTP(rr, req)

			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rr.Code)
			}
			var body map[string]any
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("failed to parse response: %v", err)
			}
			if body["error"] != tc.code {
				t.Errorf("expected error code %s, got %v", tc.code, body["error"])
			}
		})
	}
}
