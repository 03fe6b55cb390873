package repositories

import (
	"context"

	domain "github.com/getreststore/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// PriceStore is the authoritative, wholesale-read/write record of
// name/price/qty/hero per item. There is no per-record API.
type PriceStore interface {
	// Load returns every record in stored order.
	Load(ctx context.Context) ([]domain.PriceRecord, error)
	// Replace overwrites the entire store with the given records.
	Replace(ctx context.Context, records []domain.PriceRecord) error
}

// CartRepository persists carts wholesale: the full item list plus selection
// state is the unit of persistence. PendingDeleteIDs is transient and must
// not survive a round trip.
type CartRepository interface {
	// Load rehydrates the cart with the given id. Returns a RepositoryError
	// with IsNotFound when no cart has been saved under the id.
	Load(ctx context.Context, cartID string) (domain.Cart, error)
	// Save writes the cart wholesale, overwriting any previous state.
	Save(ctx context.Context, cart domain.Cart) error
	// Delete removes the persisted cart if present.
	Delete(ctx context.Context, cartID string) error
	// Close flushes pending writes and releases resources.
	Close() error
}
