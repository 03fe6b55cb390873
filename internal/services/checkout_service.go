package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	errCheckoutCartsRequired = errors.New("checkout service: cart service is required")
	errCheckoutPhoneRequired = errors.New("checkout service: whatsapp phone is required")

	// ErrCheckoutEmptySelection indicates no cart lines are selected.
	ErrCheckoutEmptySelection = errors.New("checkout service: no items selected")
)

// CheckoutLink is the WhatsApp hand-off for the selected cart lines. No
// server-side order record is created.
type CheckoutLink struct {
	Message string `json:"message"`
	URL     string `json:"url"`
	Total   int64  `json:"total"`
	Lines   int    `json:"lines"`
}

type cartLoader interface {
	GetCart(ctx context.Context, cartID string) (Cart, error)
}

// CheckoutServiceDeps bundles constructor inputs for the checkout dispatcher.
type CheckoutServiceDeps struct {
	Carts         cartLoader
	WhatsAppPhone string
	Logger        func(context.Context, string, map[string]any)
}

type checkoutService struct {
	carts   cartLoader
	phone   string
	printer *message.Printer
	logger  func(context.Context, string, map[string]any)
}

// NewCheckoutService constructs the checkout dispatcher.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Carts == nil {
		return nil, errCheckoutCartsRequired
	}
	phone := strings.TrimSpace(deps.WhatsAppPhone)
	if phone == "" {
		return nil, errCheckoutPhoneRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &checkoutService{
		carts:   deps.Carts,
		phone:   phone,
		printer: message.NewPrinter(language.Indonesian),
		logger:  logger,
	}, nil
}

// BuildCheckoutLink formats the selected lines and total into an
// Indonesian-language message behind a wa.me deep link.
func (s *checkoutService) BuildCheckoutLink(ctx context.Context, cartID string) (CheckoutLink, error) {
	cart, err := s.carts.GetCart(ctx, cartID)
	if err != nil {
		return CheckoutLink{}, err
	}

	var lines []string
	for _, item := range cart.Items {
		if !cart.Selected(item.ID) {
			continue
		}
		lines = append(lines, fmt.Sprintf("%d. %s x%d @%s",
			len(lines)+1, item.Name, item.CartQty, s.rupiah(item.Price)))
	}
	if len(lines) == 0 {
		return CheckoutLink{}, ErrCheckoutEmptySelection
	}

	total := cart.SelectedTotal()
	msg := fmt.Sprintf(
		"Halo kak, saya mau beli item berikut:\n\n%s\n\nTotal: %s\n\nApakah itemnya masih ada? Transfernya kemana ya kak?",
		strings.Join(lines, "\n"), s.rupiah(total))

	s.logger(ctx, "checkout.link_built", map[string]any{
		"cart_id": cart.ID,
		"lines":   len(lines),
		"total":   total,
	})

	return CheckoutLink{
		Message: msg,
		URL:     s.deepLink(msg),
		Total:   total,
		Lines:   len(lines),
	}, nil
}

// BuildInquiryLink builds the single-item availability question used from the
// catalog page.
func (s *checkoutService) BuildInquiryLink(itemName string) CheckoutLink {
	itemName = strings.TrimSpace(itemName)
	msg := fmt.Sprintf("Halo kak, saya berminat untuk item %q, apakah masih tersedia?", itemName)
	return CheckoutLink{
		Message: msg,
		URL:     s.deepLink(msg),
	}
}

func (s *checkoutService) deepLink(msg string) string {
	return "https://wa.me/" + s.phone + "?text=" + url.QueryEscape(msg)
}

// rupiah renders a whole-Rupiah amount with Indonesian digit grouping.
func (s *checkoutService) rupiah(amount int64) string {
	return "Rp" + s.printer.Sprintf("%d", amount)
}
