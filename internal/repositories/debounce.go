package repositories

import (
	"context"
	"errors"
	"sync"
	"time"

	domain "github.com/getreststore/api/internal/domain"
)

const debounceFlushTimeout = 5 * time.Second

// DebouncedCartRepository coalesces the save-after-every-mutation write
// pattern: rapid-fire quantity edits collapse into a single wholesale write
// per cart once the debounce window elapses. Loads and deletes flush the
// pending state first so callers always read their own writes.
type DebouncedCartRepository struct {
	inner    CartRepository
	interval time.Duration
	onError  func(error)

	mu      sync.Mutex
	pending map[string]domain.Cart
	timers  map[string]*time.Timer
	closed  bool
}

// NewDebouncedCartRepository wraps inner with a debounce window. An interval
// of zero disables debouncing and returns the inner repository unchanged.
// onError receives failures from asynchronous flushes and may be nil.
func NewDebouncedCartRepository(inner CartRepository, interval time.Duration, onError func(error)) (CartRepository, error) {
	if inner == nil {
		return nil, errors.New("debounced cart repository: inner repository is required")
	}
	if interval <= 0 {
		return inner, nil
	}
	if onError == nil {
		onError = func(error) {}
	}
	return &DebouncedCartRepository{
		inner:    inner,
		interval: interval,
		onError:  onError,
		pending:  make(map[string]domain.Cart),
		timers:   make(map[string]*time.Timer),
	}, nil
}

// Load flushes any pending write for the cart and delegates.
func (r *DebouncedCartRepository) Load(ctx context.Context, cartID string) (domain.Cart, error) {
	if err := r.flush(cartID); err != nil {
		return domain.Cart{}, err
	}
	return r.inner.Load(ctx, cartID)
}

// Save records the cart as the latest state and (re)arms the flush timer.
func (r *DebouncedCartRepository) Save(_ context.Context, cart domain.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return NewUnavailableError("cart save", errors.New("repository closed"))
	}

	r.pending[cart.ID] = cart
	if timer, ok := r.timers[cart.ID]; ok {
		timer.Reset(r.interval)
		return nil
	}
	id := cart.ID
	r.timers[id] = time.AfterFunc(r.interval, func() {
		if err := r.flush(id); err != nil {
			r.onError(err)
		}
	})
	return nil
}

// Delete drops any pending write and delegates.
func (r *DebouncedCartRepository) Delete(ctx context.Context, cartID string) error {
	r.mu.Lock()
	delete(r.pending, cartID)
	if timer, ok := r.timers[cartID]; ok {
		timer.Stop()
		delete(r.timers, cartID)
	}
	r.mu.Unlock()
	return r.inner.Delete(ctx, cartID)
}

// Close flushes every pending cart and closes the inner repository.
func (r *DebouncedCartRepository) Close() error {
	r.mu.Lock()
	r.closed = true
	ids := make([]string, 0, len(r.pending))
	for id := range r.pending {
		ids = append(ids, id)
	}
	for _, timer := range r.timers {
		timer.Stop()
	}
	r.timers = make(map[string]*time.Timer)
	r.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := r.flush(id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := r.inner.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (r *DebouncedCartRepository) flush(cartID string) error {
	r.mu.Lock()
	cart, ok := r.pending[cartID]
	if ok {
		delete(r.pending, cartID)
	}
	if timer, exists := r.timers[cartID]; exists {
		timer.Stop()
		delete(r.timers, cartID)
	}
	r.mu.Unlock()

	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), debounceFlushTimeout)
	defer cancel()
	return r.inner.Save(ctx, cart)
}
