package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	domain "github.com/getreststore/api/internal/domain"
	"github.com/getreststore/api/internal/repositories"
)

const (
	defaultInitialVisible = 10
	defaultPageSize       = 10
	defaultCatalogLocale  = "id"

	storeRetryInterval = 200 * time.Millisecond
	storeMaxRetries    = 1
)

var (
	errCatalogStoreRequired = errors.New("catalog service: price store is required")

	// ErrCatalogInvalidInput indicates the caller supplied an invalid query.
	ErrCatalogInvalidInput = errors.New("catalog service: invalid input")
	// ErrCatalogUnavailable indicates the Price Store could not be read.
	ErrCatalogUnavailable = errors.New("catalog service: price store unavailable")
)

// CatalogQuery is a browse request against the derived product list.
type CatalogQuery struct {
	Search   string
	Hero     string
	MinPrice int64
	MaxPrice int64 // 0 means unbounded
	Sort     SortOption
	// VisibleCount is the pagination cursor; 0 requests the initial page.
	VisibleCount int
}

// CatalogPage is the visible slice of the filtered, sorted product list.
// NextVisibleCount is the cursor value that reveals the next page; clients
// changing any filter input send VisibleCount 0 to start over from the
// initial page.
type CatalogPage struct {
	Products         []Product `json:"products"`
	Total            int       `json:"total"`
	VisibleCount     int       `json:"visibleCount"`
	NextVisibleCount int       `json:"nextVisibleCount"`
	HasMore          bool      `json:"hasMore"`
}

// CatalogServiceDeps bundles constructor inputs for the catalog service.
type CatalogServiceDeps struct {
	Store          repositories.PriceStore
	Locale         string
	InitialVisible int
	PageSize       int
	Logger         func(context.Context, string, map[string]any)
}

type catalogService struct {
	store          repositories.PriceStore
	collator       *collate.Collator
	initialVisible int
	pageSize       int
	logger         func(context.Context, string, map[string]any)
}

// NewCatalogService constructs the catalog service with the supplied dependencies.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Store == nil {
		return nil, errCatalogStoreRequired
	}

	locale := strings.TrimSpace(deps.Locale)
	if locale == "" {
		locale = defaultCatalogLocale
	}
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Indonesian
	}

	initial := deps.InitialVisible
	if initial <= 0 {
		initial = defaultInitialVisible
	}
	pageSize := deps.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &catalogService{
		store:          deps.Store,
		collator:       collate.New(tag, collate.IgnoreCase),
		initialVisible: initial,
		pageSize:       pageSize,
		logger:         logger,
	}, nil
}

// Products loads the Price Store and derives the purchasable product list,
// sorted by price descending. Transient store failures get one bounded retry.
func (s *catalogService) Products(ctx context.Context) ([]Product, error) {
	var records []PriceRecord

	operation := func() error {
		loaded, err := s.store.Load(ctx)
		if err != nil {
			if repositories.IsNotFound(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		records = loaded
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(storeRetryInterval), storeMaxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		s.logger(ctx, "catalog.load_failed", map[string]any{"error": err.Error()})
		return nil, ErrCatalogUnavailable
	}

	seen := make(map[string]struct{}, len(records))
	products := make([]Product, 0, len(records))
	for _, record := range records {
		name := strings.TrimSpace(record.Name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			s.logger(ctx, "catalog.duplicate_name", map[string]any{"name": name})
			continue
		}
		seen[name] = struct{}{}

		product := Product{
			ID:    name,
			Name:  name,
			Hero:  strings.TrimSpace(record.Hero),
			Price: record.Price,
		}
		if record.Qty != nil {
			product.Qty = *record.Qty
		}
		if !product.Purchasable() {
			continue
		}
		products = append(products, product)
	}

	sort.SliceStable(products, func(i, j int) bool {
		return products[i].Price > products[j].Price
	})
	return products, nil
}

// Heroes returns the distinct hero names present in the purchasable catalog,
// collated for the configured locale.
func (s *catalogService) Heroes(ctx context.Context) ([]string, error) {
	products, err := s.Products(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	heroes := make([]string, 0)
	for _, product := range products {
		if product.Hero == "" {
			continue
		}
		if _, ok := seen[product.Hero]; ok {
			continue
		}
		seen[product.Hero] = struct{}{}
		heroes = append(heroes, product.Hero)
	}

	s.collator.SortStrings(heroes)
	return heroes, nil
}

// Browse applies the filter pipeline (search ∧ hero ∧ price range), then the
// requested sort, then the visible-count cursor.
func (s *catalogService) Browse(ctx context.Context, query CatalogQuery) (CatalogPage, error) {
	if query.MinPrice < 0 || query.MaxPrice < 0 {
		return CatalogPage{}, ErrCatalogInvalidInput
	}
	if query.MaxPrice > 0 && query.MinPrice > query.MaxPrice {
		return CatalogPage{}, ErrCatalogInvalidInput
	}

	products, err := s.Products(ctx)
	if err != nil {
		return CatalogPage{}, err
	}

	search := strings.ToLower(strings.TrimSpace(query.Search))
	hero := strings.TrimSpace(query.Hero)

	filtered := make([]Product, 0, len(products))
	for _, product := range products {
		if search != "" &&
			!strings.Contains(strings.ToLower(product.Name), search) &&
			!strings.Contains(strings.ToLower(product.Hero), search) {
			continue
		}
		if hero != "" && hero != domain.HeroAll && product.Hero != hero {
			continue
		}
		if product.Price < query.MinPrice {
			continue
		}
		if query.MaxPrice > 0 && product.Price > query.MaxPrice {
			continue
		}
		filtered = append(filtered, product)
	}

	s.sortProducts(filtered, query.Sort)

	visible := query.VisibleCount
	if visible <= 0 {
		visible = s.initialVisible
	}
	if visible > len(filtered) {
		visible = len(filtered)
	}

	next := visible
	if visible < len(filtered) {
		next = visible + s.pageSize
	}

	return CatalogPage{
		Products:         filtered[:visible],
		Total:            len(filtered),
		VisibleCount:     visible,
		NextVisibleCount: next,
		HasMore:          visible < len(filtered),
	}, nil
}

func (s *catalogService) sortProducts(products []Product, option SortOption) {
	switch option {
	case domain.SortPriceAsc:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].Price < products[j].Price
		})
	case domain.SortNameAsc:
		sort.SliceStable(products, func(i, j int) bool {
			return s.collator.CompareString(products[i].Name, products[j].Name) < 0
		})
	case domain.SortNameDesc:
		sort.SliceStable(products, func(i, j int) bool {
			return s.collator.CompareString(products[i].Name, products[j].Name) > 0
		})
	default: // price-desc, the initial presentation order
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].Price > products[j].Price
		})
	}
}
