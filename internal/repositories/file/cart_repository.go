package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	domain "github.com/getreststore/api/internal/domain"
	"github.com/getreststore/api/internal/repositories"
)

const cartSchemaVersion = 1

var errCartIDRequired = errors.New("cart repository: cart id is required")

// persistedCart is the durable envelope for a cart. The version field guards
// against rehydrating a payload written by an incompatible schema; selection
// state is stored as a plain id list, pending-delete state is never written.
type persistedCart struct {
	Version     int               `json:"version"`
	ID          string            `json:"id"`
	Items       []domain.CartItem `json:"items"`
	SelectedIDs []string          `json:"selectedIds"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// CartRepository stores one JSON document per cart under a directory. It is
// the server-side analogue of a client-side key-value slot: the whole cart is
// the unit of persistence, rewritten on every save.
type CartRepository struct {
	mu  sync.Mutex
	dir string
}

// NewCartRepository constructs the repository rooted at dir, creating it when absent.
func NewCartRepository(dir string) (*CartRepository, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, errors.New("cart repository: directory is required")
	}
	if err := os.MkdirAll(trimmed, 0o755); err != nil {
		return nil, fmt.Errorf("cart repository: create directory: %w", err)
	}
	return &CartRepository{dir: trimmed}, nil
}

// Load rehydrates the cart. A corrupted or schema-incompatible payload is
// discarded rather than blocking startup: the caller gets not-found and
// starts from an empty cart.
func (r *CartRepository) Load(ctx context.Context, cartID string) (domain.Cart, error) {
	if err := ctx.Err(); err != nil {
		return domain.Cart{}, repositories.NewUnavailableError("cart load", err)
	}
	path, err := r.cartPath(cartID)
	if err != nil {
		return domain.Cart{}, repositories.NewUnavailableError("cart load", err)
	}

	r.mu.Lock()
	raw, err := os.ReadFile(path)
	r.mu.Unlock()
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Cart{}, repositories.NewNotFoundError("cart load", err)
		}
		return domain.Cart{}, repositories.NewUnavailableError("cart load", err)
	}

	var envelope persistedCart
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return domain.Cart{}, repositories.NewNotFoundError("cart load", fmt.Errorf("discarding corrupted cart: %w", err))
	}
	if envelope.Version > cartSchemaVersion {
		return domain.Cart{}, repositories.NewNotFoundError("cart load", fmt.Errorf("discarding cart with unknown schema version %d", envelope.Version))
	}

	cart := domain.Cart{
		ID:          cartID,
		Items:       envelope.Items,
		SelectedIDs: make(map[string]struct{}, len(envelope.SelectedIDs)),
		UpdatedAt:   envelope.UpdatedAt,
	}
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}
	for _, id := range envelope.SelectedIDs {
		cart.SelectedIDs[id] = struct{}{}
	}
	return cart, nil
}

// Save writes the cart wholesale through a temp file and rename.
func (r *CartRepository) Save(ctx context.Context, cart domain.Cart) error {
	if err := ctx.Err(); err != nil {
		return repositories.NewUnavailableError("cart save", err)
	}
	path, err := r.cartPath(cart.ID)
	if err != nil {
		return repositories.NewUnavailableError("cart save", err)
	}

	envelope := persistedCart{
		Version:     cartSchemaVersion,
		ID:          cart.ID,
		Items:       cart.Items,
		SelectedIDs: make([]string, 0, len(cart.SelectedIDs)),
		UpdatedAt:   cart.UpdatedAt,
	}
	if envelope.Items == nil {
		envelope.Items = []domain.CartItem{}
	}
	for _, item := range cart.Items {
		if cart.Selected(item.ID) {
			envelope.SelectedIDs = append(envelope.SelectedIDs, item.ID)
		}
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return repositories.NewUnavailableError("cart save", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tmp, err := os.CreateTemp(r.dir, ".cart-*.json")
	if err != nil {
		return repositories.NewUnavailableError("cart save", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return repositories.NewUnavailableError("cart save", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return repositories.NewUnavailableError("cart save", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return repositories.NewUnavailableError("cart save", err)
	}
	return nil
}

// Delete removes the persisted cart. Deleting an absent cart is not an error.
func (r *CartRepository) Delete(ctx context.Context, cartID string) error {
	if err := ctx.Err(); err != nil {
		return repositories.NewUnavailableError("cart delete", err)
	}
	path, err := r.cartPath(cartID)
	if err != nil {
		return repositories.NewUnavailableError("cart delete", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return repositories.NewUnavailableError("cart delete", err)
	}
	return nil
}

// Close implements repositories.CartRepository; the file store has nothing to flush.
func (r *CartRepository) Close() error { return nil }

func (r *CartRepository) cartPath(cartID string) (string, error) {
	id := strings.TrimSpace(cartID)
	if id == "" {
		return "", errCartIDRequired
	}
	if strings.ContainsAny(id, "/\\.") {
		return "", fmt.Errorf("cart repository: invalid cart id %q", cartID)
	}
	return filepath.Join(r.dir, id+".json"), nil
}
