package services

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	domain "github.com/getreststore/api/internal/domain"
)

type stubCartLoader struct {
	cart domain.Cart
	err  error
}

func (s *stubCartLoader) GetCart(ctx context.Context, cartID string) (domain.Cart, error) {
	return s.cart, s.err
}

func checkoutFixtureCart() domain.Cart {
	return domain.Cart{
		ID: "cart-1",
		Items: []domain.CartItem{
			{Product: domain.Product{ID: "Arcana A", Name: "Arcana A", Price: 600000}, CartQty: 2},
			{Product: domain.Product{ID: "Bundle C", Name: "Bundle C", Price: 150000}, CartQty: 1},
		},
		SelectedIDs: map[string]struct{}{
			"Arcana A": {},
		},
	}
}

func newTestCheckout(t *testing.T, carts cartLoader) CheckoutService {
	t.Helper()
	svc, err := NewCheckoutService(CheckoutServiceDeps{
		Carts:         carts,
		WhatsAppPhone: "6281388883983",
	})
	if err != nil {
		t.Fatalf("unexpected error constructing checkout service: %v", err)
	}
	return svc
}

func TestCheckoutLinkSelectedLinesOnly(t *testing.T) {
	svc := newTestCheckout(t, &stubCartLoader{cart: checkoutFixtureCart()})

	link, err := svc.BuildCheckoutLink(context.Background(), "cart-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if link.Lines != 1 {
		t.Errorf("expected 1 selected line, got %d", link.Lines)
	}
	if link.Total != 1200000 {
		t.Errorf("expected total 1200000, got %d", link.Total)
	}
	if !strings.Contains(link.Message, "Arcana A x2") {
		t.Errorf("message missing selected line: %q", link.Message)
	}
	if strings.Contains(link.Message, "Bundle C") {
		t.Errorf("unselected line leaked into message: %q", link.Message)
	}
	if !strings.Contains(link.Message, "Halo kak") {
		t.Errorf("expected Indonesian greeting, got %q", link.Message)
	}
	if !strings.Contains(link.Message, "Rp1.200.000") {
		t.Errorf("expected grouped Rupiah total, got %q", link.Message)
	}
}

func TestCheckoutLinkURLEncoding(t *testing.T) {
	svc := newTestCheckout(t, &stubCartLoader{cart: checkoutFixtureCart()})

	link, err := svc.BuildCheckoutLink(context.Background(), "cart-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(link.URL, "https://wa.me/6281388883983?text=") {
		t.Fatalf("unexpected deep link prefix: %s", link.URL)
	}

	parsed, err := url.Parse(link.URL)
	if err != nil {
		t.Fatalf("deep link does not parse: %v", err)
	}
	if got := parsed.Query().Get("text"); got != link.Message {
		t.Errorf("encoded text does not round-trip:\n%q\n%q", got, link.Message)
	}
}

func TestCheckoutEmptySelection(t *testing.T) {
	cart := checkoutFixtureCart()
	cart.SelectedIDs = map[string]struct{}{}
	svc := newTestCheckout(t, &stubCartLoader{cart: cart})

	if _, err := svc.BuildCheckoutLink(context.Background(), "cart-1"); !errors.Is(err, ErrCheckoutEmptySelection) {
		t.Errorf("expected ErrCheckoutEmptySelection, got %v", err)
	}
}

func TestCheckoutPropagatesCartErrors(t *testing.T) {
	svc := newTestCheckout(t, &stubCartLoader{err: ErrCartUnavailable})

	if _, err := svc.BuildCheckoutLink(context.Background(), "cart-1"); !errors.Is(err, ErrCartUnavailable) {
		t.Errorf("expected cart error to pass through, got %v", err)
	}
}

func TestCheckoutInquiryLink(t *testing.T) {
	svc := newTestCheckout(t, &stubCartLoader{})

	link := svc.BuildInquiryLink("Dragonclaw Hook")
	if !strings.Contains(link.Message, `"Dragonclaw Hook"`) {
		t.Errorf("expected quoted item name, got %q", link.Message)
	}
	if !strings.Contains(link.Message, "masih tersedia") {
		t.Errorf("expected availability question, got %q", link.Message)
	}
	if !strings.HasPrefix(link.URL, "https://wa.me/6281388883983?text=") {
		t.Errorf("unexpected deep link: %s", link.URL)
	}
}

func TestNewCheckoutServiceValidation(t *testing.T) {
	if _, err := NewCheckoutService(CheckoutServiceDeps{WhatsAppPhone: "628"}); err == nil {
		t.Error("expected error for missing cart service")
	}
	if _, err := NewCheckoutService(CheckoutServiceDeps{Carts: &stubCartLoader{}}); err == nil {
		t.Error("expected error for missing phone")
	}
}
