package services

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	domain "github.com/getreststore/api/internal/domain"
)

const (
	defaultFlashSaleSize   = 4
	defaultDiscountPercent = 11
)

var (
	errPromoCatalogRequired = errors.New("promo service: catalog is required")
	errPromoClockRequired   = errors.New("promo service: clock is required")

	// ErrPromoEmptyCatalog indicates no purchasable products exist to promote.
	ErrPromoEmptyCatalog = errors.New("promo service: catalog is empty")
)

// FlashSale is the daily discounted selection together with its expiry.
type FlashSale struct {
	Items  []FlashSaleItem `json:"items"`
	EndsAt time.Time       `json:"endsAt"`
}

// LuckyDrawResult is a uniformly drawn purchasable product and its rarity tier.
type LuckyDrawResult struct {
	Product Product       `json:"product"`
	Rarity  domain.Rarity `json:"rarity"`
}

// PromoServiceDeps bundles constructor inputs for the promotions service.
type PromoServiceDeps struct {
	Catalog         ProductProvider
	Clock           func() time.Time
	FlashSaleSize   int
	DiscountPercent int
	// TicketMinPrice floors lucky-draw eligibility; items below it stay out
	// of the draw unless nothing else qualifies.
	TicketMinPrice int64
	// Rand drives the lucky draw; defaults to math/rand time seeding.
	Rand *rand.Rand
}

type promoService struct {
	catalog   ProductProvider
	now       func() time.Time
	size      int
	discount  int64
	ticketMin int64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewPromoService constructs the promotions service.
func NewPromoService(deps PromoServiceDeps) (PromoService, error) {
	if deps.Catalog == nil {
		return nil, errPromoCatalogRequired
	}
	if deps.Clock == nil {
		return nil, errPromoClockRequired
	}

	size := deps.FlashSaleSize
	if size <= 0 {
		size = defaultFlashSaleSize
	}
	discount := deps.DiscountPercent
	if discount <= 0 || discount >= 100 {
		discount = defaultDiscountPercent
	}
	rng := deps.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	ticketMin := deps.TicketMinPrice
	if ticketMin < 0 {
		ticketMin = 0
	}

	return &promoService{
		catalog:   deps.Catalog,
		now:       deps.Clock,
		size:      size,
		discount:  int64(discount),
		ticketMin: ticketMin,
		rng:       rng,
	}, nil
}

// FlashSale deterministically picks the day's discounted items: the shuffle is
// seeded from the YYYY-MM-DD date string so every request on the same day
// sees the same selection, and the sale ends at local midnight.
func (s *promoService) FlashSale(ctx context.Context) (FlashSale, error) {
	products, err := s.catalog.Products(ctx)
	if err != nil {
		return FlashSale{}, err
	}
	if len(products) == 0 {
		return FlashSale{}, ErrPromoEmptyCatalog
	}

	now := s.now()
	seed := dateSeed(now)

	shuffled := make([]Product, len(products))
	copy(shuffled, products)
	dayRng := rand.New(rand.NewSource(seed))
	dayRng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	size := s.size
	if size > len(shuffled) {
		size = len(shuffled)
	}

	items := make([]FlashSaleItem, 0, size)
	for _, product := range shuffled[:size] {
		discounted := product
		discounted.Price = product.Price * (100 - s.discount) / 100
		items = append(items, FlashSaleItem{
			Product:       discounted,
			OriginalPrice: product.Price,
		})
	}

	return FlashSale{
		Items:  items,
		EndsAt: endOfDay(now),
	}, nil
}

// LuckyDraw returns a uniformly random purchasable product with its
// price-derived rarity tier. Items below the ticket minimum are excluded
// from the pool; if nothing clears the floor the full catalog is used.
func (s *promoService) LuckyDraw(ctx context.Context) (LuckyDrawResult, error) {
	products, err := s.catalog.Products(ctx)
	if err != nil {
		return LuckyDrawResult{}, err
	}
	if len(products) == 0 {
		return LuckyDrawResult{}, ErrPromoEmptyCatalog
	}

	pool := products
	if s.ticketMin > 0 {
		eligible := make([]Product, 0, len(products))
		for _, product := range products {
			if product.Price >= s.ticketMin {
				eligible = append(eligible, product)
			}
		}
		if len(eligible) > 0 {
			pool = eligible
		}
	}

	s.mu.Lock()
	pick := s.rng.Intn(len(pool))
	s.mu.Unlock()

	product := pool[pick]
	return LuckyDrawResult{
		Product: product,
		Rarity:  domain.RarityForPrice(product.Price),
	}, nil
}

// dateSeed folds the date string into a numeric seed, matching the
// presentation-layer trick of summing character codes.
func dateSeed(now time.Time) int64 {
	var seed int64
	for _, b := range []byte(now.Format("2006-01-02")) {
		seed += int64(b)
	}
	return seed
}

func endOfDay(now time.Time) time.Time {
	year, month, day := now.Date()
	return time.Date(year, month, day, 23, 59, 59, 0, now.Location())
}
