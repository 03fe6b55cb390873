package services

import (
	"context"
	"io"

	domain "github.com/getreststore/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	PriceRecord   = domain.PriceRecord
	Product       = domain.Product
	Cart          = domain.Cart
	CartItem      = domain.CartItem
	FlashSaleItem = domain.FlashSaleItem
	SteamComment  = domain.SteamComment
	SteamProfile  = domain.SteamProfile
	InventoryItem = domain.InventoryItem
	SortOption    = domain.SortOption
)

// CatalogService derives purchasable products from the Price Store and applies
// the browse pipeline (search, hero filter, price range, sort, visible-count
// pagination).
type CatalogService interface {
	Browse(ctx context.Context, query CatalogQuery) (CatalogPage, error)
	Products(ctx context.Context) ([]Product, error)
	Heroes(ctx context.Context) ([]string, error)
}

// CartService manages server-held carts: stock-clamped quantities, the
// selection set, and the two-step pending-delete flow.
type CartService interface {
	CreateCart(ctx context.Context) (Cart, error)
	GetCart(ctx context.Context, cartID string) (Cart, error)
	AddToCart(ctx context.Context, cartID, productID string) (Cart, error)
	IncrementQty(ctx context.Context, cartID, productID string) (Cart, error)
	DecrementQty(ctx context.Context, cartID, productID string) (Cart, error)
	SetQtyDirect(ctx context.Context, cartID, productID, rawValue string) (Cart, error)
	RemoveItems(ctx context.Context, cartID string, productIDs []string) (Cart, error)
	ToggleSelect(ctx context.Context, cartID, productID string) (Cart, error)
	ToggleSelectAll(ctx context.Context, cartID string) (Cart, error)
	ConfirmPendingDelete(ctx context.Context, cartID string) (Cart, error)
	CancelPendingDelete(ctx context.Context, cartID string) (Cart, error)
}

// CheckoutService formats the selected cart lines into a WhatsApp deep link.
type CheckoutService interface {
	BuildCheckoutLink(ctx context.Context, cartID string) (CheckoutLink, error)
	BuildInquiryLink(itemName string) CheckoutLink
}

// PromoService computes the daily flash sale and the lucky draw pick.
type PromoService interface {
	FlashSale(ctx context.Context) (FlashSale, error)
	LuckyDraw(ctx context.Context) (LuckyDrawResult, error)
}

// SteamService proxies the shop owner's Steam presence: profile summary,
// priced inventory, and scraped profile comments.
type SteamService interface {
	Profile(ctx context.Context, steamID string) (SteamProfile, error)
	Inventory(ctx context.Context) ([]InventoryItem, error)
	Comments(ctx context.Context, page, limit int) (CommentsPage, error)
}

// PriceAdminService performs wholesale reads and replacements of the Price
// Store, including spreadsheet import/export.
type PriceAdminService interface {
	ListPrices(ctx context.Context) ([]PriceRecord, error)
	ReplacePrices(ctx context.Context, records []PriceRecord) (int, error)
	ImportSpreadsheet(ctx context.Context, r io.Reader) (int, error)
	ExportTemplate(ctx context.Context) ([]byte, error)
}
