package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/getreststore/api/internal/repositories"
)

var (
	errCartRepositoryRequired = errors.New("cart service: repository is required")
	errCartCatalogRequired    = errors.New("cart service: catalog is required")
	errCartClockRequired      = errors.New("cart service: clock is required")
)

// ErrCartInvalidInput indicates the caller supplied invalid input.
var ErrCartInvalidInput = errors.New("cart service: invalid input")

// ErrCartUnavailable indicates the cart backend cannot fulfil the request.
var ErrCartUnavailable = errors.New("cart service: unavailable")

// ErrCartItemNotFound indicates the product is not in the cart.
var ErrCartItemNotFound = errors.New("cart service: item not in cart")

// ErrCartProductNotFound indicates the product is not in the purchasable catalog.
var ErrCartProductNotFound = errors.New("cart service: product not found")

// ErrCartStockLimit indicates an add was rejected because the line already
// sits at the product's stock ceiling. State is left unchanged.
var ErrCartStockLimit = errors.New("cart service: stock limit reached")

// ProductProvider supplies the current purchasable catalog for snapshotting
// and stock-ceiling checks.
type ProductProvider interface {
	Products(ctx context.Context) ([]Product, error)
}

// CartServiceDeps wires the repository and catalog dependencies for cart operations.
type CartServiceDeps struct {
	Repository  repositories.CartRepository
	Catalog     ProductProvider
	Clock       func() time.Time
	Logger      func(context.Context, string, map[string]any)
	IDGenerator func() string
}

type cartService struct {
	repo    repositories.CartRepository
	catalog ProductProvider
	newID   func() string
	now     func() time.Time
	logger  func(context.Context, string, map[string]any)

	// pendingDelete is deliberately transient: the two-step removal guard
	// survives between requests but not across restarts.
	mu            sync.Mutex
	pendingDelete map[string][]string
}

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Repository == nil {
		return nil, errCartRepositoryRequired
	}
	if deps.Catalog == nil {
		return nil, errCartCatalogRequired
	}
	if deps.Clock == nil {
		return nil, errCartClockRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	return &cartService{
		repo:          deps.Repository,
		catalog:       deps.Catalog,
		newID:         idGen,
		now:           func() time.Time { return deps.Clock().UTC() },
		logger:        logger,
		pendingDelete: make(map[string][]string),
	}, nil
}

func (s *cartService) CreateCart(ctx context.Context) (Cart, error) {
	cart := Cart{
		ID:          s.newID(),
		SelectedIDs: map[string]struct{}{},
		UpdatedAt:   s.now(),
	}
	if err := s.repo.Save(ctx, cart); err != nil {
		return Cart{}, s.translateRepoError(err)
	}
	return cart, nil
}

func (s *cartService) GetCart(ctx context.Context, cartID string) (Cart, error) {
	cart, err := s.loadCart(ctx, cartID)
	if err != nil {
		return Cart{}, err
	}
	return cart, nil
}

func (s *cartService) AddToCart(ctx context.Context, cartID, productID string) (Cart, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Cart{}, ErrCartInvalidInput
	}

	cart, err := s.loadCart(ctx, cartID)
	if err != nil {
		return Cart{}, err
	}

	product, found, err := s.findProduct(ctx, productID)
	if err != nil {
		return Cart{}, err
	}

	if i := cart.ItemIndex(productID); i >= 0 {
		ceiling := s.stockCeiling(cart.Items[i], product, found)
		// Pure read before the mutation: at the ceiling the cart is left
		// untouched and the caller gets the stock-limit signal.
		if cart.Items[i].CartQty >= ceiling {
			return cart, ErrCartStockLimit
		}
		s.refreshSnapshot(&cart.Items[i], product, found)
		cart.Items[i].CartQty++
		return s.commit(ctx, cart)
	}

	if !found {
		return Cart{}, ErrCartProductNotFound
	}

	cart.Items = append(cart.Items, CartItem{
		Product: product,
		CartQty: 1,
		AddedAt: s.now(),
	})
	// Newly added items default to selected.
	cart.SelectedIDs[productID] = struct{}{}
	return s.commit(ctx, cart)
}

func (s *cartService) IncrementQty(ctx context.Context, cartID, productID string) (Cart, error) {
	cart, err := s.loadCart(ctx, cartID)
	if err != nil {
		return Cart{}, err
	}
	i := cart.ItemIndex(productID)
	if i < 0 {
		return Cart{}, ErrCartItemNotFound
	}

	product, found, err := s.findProduct(ctx, productID)
	if err != nil {
		return Cart{}, err
	}
	s.refreshSnapshot(&cart.Items[i], product, found)

	ceiling := s.stockCeiling(cart.Items[i], product, found)
	if cart.Items[i].CartQty < ceiling {
		cart.Items[i].CartQty++
	}
	return s.commit(ctx, cart)
}

func (s *cartService) DecrementQty(ctx context.Context, cartID, productID string) (Cart, error) {
	cart, err := s.loadCart(ctx, cartID)
	if err != nil {
		return Cart{}, err
	}
	i := cart.ItemIndex(productID)
	if i < 0 {
		return Cart{}, ErrCartItemNotFound
	}

	if cart.Items[i].CartQty > 1 {
		cart.Items[i].CartQty--
		return s.commit(ctx, cart)
	}

	// Decrement at one raises the removal confirmation instead of deleting.
	s.setPending(cart.ID, []string{productID})
	cart.PendingDeleteIDs = []string{productID}
	return cart, nil
}

func (s *cartService) SetQtyDirect(ctx context.Context, cartID, productID, rawValue string) (Cart, error) {
	cart, err := s.loadCart(ctx, cartID)
	if err != nil {
		return Cart{}, err
	}
	i := cart.ItemIndex(productID)
	if i < 0 {
		return Cart{}, ErrCartItemNotFound
	}

	rawValue = strings.TrimSpace(rawValue)
	if rawValue == "" {
		// In-progress typing, not a deletion intent.
		return cart, nil
	}

	value, err := strconv.Atoi(rawValue)
	if err != nil || value < 0 {
		return cart, nil
	}
	if value == 0 {
		s.setPending(cart.ID, []string{productID})
		cart.PendingDeleteIDs = []string{productID}
		return cart, nil
	}

	product, found, ferr := s.findProduct(ctx, productID)
	if ferr != nil {
		return Cart{}, ferr
	}
	s.refreshSnapshot(&cart.Items[i], product, found)

	ceiling := s.stockCeiling(cart.Items[i], product, found)
	if value > ceiling {
		value = ceiling
	}
	if value < 1 {
		value = 1
	}
	cart.Items[i].CartQty = value
	return s.commit(ctx, cart)
}

func (s *cartService) RemoveItems(ctx context.Context, cartID string, productIDs []string) (Cart, error) {
	cart, err := s.loadCart(ctx, cartID)
	if err != nil {
		return Cart{}, err
	}

	remove := make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		id = strings.TrimSpace(id)
		if id != "" {
			remove[id] = struct{}{}
		}
	}
	if len(remove) == 0 {
		return Cart{}, ErrCartInvalidInput
	}

	kept := cart.Items[:0]
	for _, item := range cart.Items {
		if _, drop := remove[item.ID]; !drop {
			kept = append(kept, item)
		}
	}
	cart.Items = kept
	return s.commit(ctx, cart)
}

func (s *cartService) ToggleSelect(ctx context.Context, cartID, productID string) (Cart, error) {
	cart, err := s.loadCart(ctx, cartID)
	if err != nil {
		return Cart{}, err
	}
	if cart.ItemIndex(productID) < 0 {
		return Cart{}, ErrCartItemNotFound
	}

	if _, selected := cart.SelectedIDs[productID]; selected {
		delete(cart.SelectedIDs, productID)
	} else {
		cart.SelectedIDs[productID] = struct{}{}
	}
	return s.commit(ctx, cart)
}

func (s *cartService) ToggleSelectAll(ctx context.Context, cartID string) (Cart, error) {
	cart, err := s.loadCart(ctx, cartID)
	if err != nil {
		return Cart{}, err
	}

	if len(cart.SelectedIDs) == len(cart.Items) {
		cart.SelectedIDs = map[string]struct{}{}
	} else {
		cart.SelectedIDs = make(map[string]struct{}, len(cart.Items))
		for _, item := range cart.Items {
			cart.SelectedIDs[item.ID] = struct{}{}
		}
	}
	return s.commit(ctx, cart)
}

func (s *cartService) ConfirmPendingDelete(ctx context.Context, cartID string) (Cart, error) {
	pending := s.takePending(strings.TrimSpace(cartID))
	if len(pending) == 0 {
		return s.loadCart(ctx, cartID)
	}
	return s.RemoveItems(ctx, cartID, pending)
}

func (s *cartService) CancelPendingDelete(ctx context.Context, cartID string) (Cart, error) {
	s.takePending(strings.TrimSpace(cartID))
	return s.loadCart(ctx, cartID)
}

// loadCart fetches the persisted cart. A missing or discarded payload yields
// a fresh cart under the same id rather than an error.
func (s *cartService) loadCart(ctx context.Context, cartID string) (Cart, error) {
	cartID = strings.TrimSpace(cartID)
	if cartID == "" {
		return Cart{}, ErrCartInvalidInput
	}

	cart, err := s.repo.Load(ctx, cartID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return Cart{
				ID:          cartID,
				SelectedIDs: map[string]struct{}{},
				UpdatedAt:   s.now(),
			}, nil
		}
		return Cart{}, s.translateRepoError(err)
	}

	if cart.SelectedIDs == nil {
		cart.SelectedIDs = map[string]struct{}{}
	}
	cart.PendingDeleteIDs = s.peekPending(cartID)
	return cart, nil
}

// commit runs the reactive invariant pass, persists the cart, and stamps it.
func (s *cartService) commit(ctx context.Context, cart Cart) (Cart, error) {
	normalizeSelection(&cart)
	cart.UpdatedAt = s.now()

	if err := s.repo.Save(ctx, cart); err != nil {
		return Cart{}, s.translateRepoError(err)
	}
	cart.PendingDeleteIDs = s.peekPending(cart.ID)
	return cart, nil
}

// normalizeSelection enforces selection ⊆ cart ids after every mutation.
func normalizeSelection(cart *Cart) {
	if cart.SelectedIDs == nil {
		cart.SelectedIDs = map[string]struct{}{}
		return
	}
	present := make(map[string]struct{}, len(cart.Items))
	for _, item := range cart.Items {
		present[item.ID] = struct{}{}
	}
	for id := range cart.SelectedIDs {
		if _, ok := present[id]; !ok {
			delete(cart.SelectedIDs, id)
		}
	}
}

func (s *cartService) findProduct(ctx context.Context, productID string) (Product, bool, error) {
	products, err := s.catalog.Products(ctx)
	if err != nil {
		return Product{}, false, ErrCartUnavailable
	}
	for _, product := range products {
		if product.ID == productID {
			return product, true, nil
		}
	}
	return Product{}, false, nil
}

// stockCeiling prefers the live catalog quantity; items whose product has
// left the catalog keep their snapshot ceiling.
func (s *cartService) stockCeiling(item CartItem, product Product, found bool) int {
	if found {
		return product.Qty
	}
	return item.Qty
}

// refreshSnapshot re-pins the line to the live catalog record. A stock drop
// below the held quantity clamps cartQty so 1 <= cartQty <= qty survives the
// refresh.
func (s *cartService) refreshSnapshot(item *CartItem, product Product, found bool) {
	if !found {
		return
	}
	item.Price = product.Price
	item.Qty = product.Qty
	item.Hero = product.Hero
	if item.CartQty > product.Qty {
		item.CartQty = product.Qty
	}
}

func (s *cartService) setPending(cartID string, ids []string) {
	s.mu.Lock()
	s.pendingDelete[cartID] = ids
	s.mu.Unlock()
}

func (s *cartService) peekPending(cartID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := s.pendingDelete[cartID]
	if len(pending) == 0 {
		return nil
	}
	out := make([]string, len(pending))
	copy(out, pending)
	return out
}

func (s *cartService) takePending(cartID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := s.pendingDelete[cartID]
	delete(s.pendingDelete, cartID)
	return pending
}

func (s *cartService) translateRepoError(err error) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsUnavailable() {
		return ErrCartUnavailable
	}
	return err
}
