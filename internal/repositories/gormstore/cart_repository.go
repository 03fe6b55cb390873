package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	domain "github.com/getreststore/api/internal/domain"
	"github.com/getreststore/api/internal/repositories"
)

// cartRow is the cart header table.
type cartRow struct {
	ID        string    `gorm:"primarykey;size:64"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for cartRow.
func (cartRow) TableName() string { return "carts" }

// cartItemRow stores one cart line per row. The wholesale Save contract is
// preserved at the API level; per-record rows keep the door open for larger
// catalogs without changing callers.
type cartItemRow struct {
	CartID    string    `gorm:"primarykey;size:64"`
	ProductID string    `gorm:"primarykey;size:256"`
	Name      string    `gorm:"size:256;not null"`
	Hero      string    `gorm:"size:128"`
	Qty       int       `gorm:"not null"`
	Price     int64     `gorm:"not null"`
	CartQty   int       `gorm:"not null"`
	Selected  bool      `gorm:"not null;default:false"`
	Position  int       `gorm:"not null"`
	AddedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for cartItemRow.
func (cartItemRow) TableName() string { return "cart_items" }

// CartRepository persists carts in SQLite via GORM. Save replaces all rows
// for the cart in a single transaction so the wholesale-write semantics of
// the file store are preserved.
type CartRepository struct {
	db *gorm.DB
}

// NewCartRepository opens (or creates) the SQLite database at dsn and
// migrates the cart tables.
func NewCartRepository(dsn string) (*CartRepository, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, errors.New("gorm cart repository: dsn is required")
	}
	db, err := gorm.Open(sqlite.Open(trimmed), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("gorm cart repository: open database: %w", err)
	}
	if err := db.AutoMigrate(&cartRow{}, &cartItemRow{}); err != nil {
		return nil, fmt.Errorf("gorm cart repository: migrate: %w", err)
	}
	return &CartRepository{db: db}, nil
}

// Load rehydrates the cart with its lines in saved order.
func (r *CartRepository) Load(ctx context.Context, cartID string) (domain.Cart, error) {
	id := strings.TrimSpace(cartID)
	if id == "" {
		return domain.Cart{}, repositories.NewUnavailableError("cart load", errors.New("cart id is required"))
	}

	var header cartRow
	if err := r.db.WithContext(ctx).First(&header, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Cart{}, repositories.NewNotFoundError("cart load", err)
		}
		return domain.Cart{}, repositories.NewUnavailableError("cart load", err)
	}

	var rows []cartItemRow
	if err := r.db.WithContext(ctx).Where("cart_id = ?", id).Order("position asc").Find(&rows).Error; err != nil {
		return domain.Cart{}, repositories.NewUnavailableError("cart load", err)
	}

	cart := domain.Cart{
		ID:          id,
		Items:       make([]domain.CartItem, 0, len(rows)),
		SelectedIDs: make(map[string]struct{}, len(rows)),
		UpdatedAt:   header.UpdatedAt,
	}
	for _, row := range rows {
		cart.Items = append(cart.Items, domain.CartItem{
			Product: domain.Product{
				ID:    row.ProductID,
				Name:  row.Name,
				Hero:  row.Hero,
				Qty:   row.Qty,
				Price: row.Price,
			},
			CartQty: row.CartQty,
			AddedAt: row.AddedAt,
		})
		if row.Selected {
			cart.SelectedIDs[row.ProductID] = struct{}{}
		}
	}
	return cart, nil
}

// Save replaces the cart header and every line in one transaction.
func (r *CartRepository) Save(ctx context.Context, cart domain.Cart) error {
	id := strings.TrimSpace(cart.ID)
	if id == "" {
		return repositories.NewUnavailableError("cart save", errors.New("cart id is required"))
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&cartRow{ID: id, UpdatedAt: cart.UpdatedAt}).Error; err != nil {
			return err
		}
		if err := tx.Where("cart_id = ?", id).Delete(&cartItemRow{}).Error; err != nil {
			return err
		}
		for i, item := range cart.Items {
			row := cartItemRow{
				CartID:    id,
				ProductID: item.ID,
				Name:      item.Name,
				Hero:      item.Hero,
				Qty:       item.Qty,
				Price:     item.Price,
				CartQty:   item.CartQty,
				Selected:  cart.Selected(item.ID),
				Position:  i,
				AddedAt:   item.AddedAt,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return repositories.NewUnavailableError("cart save", err)
	}
	return nil
}

// Delete removes the cart and its lines. Deleting an absent cart is not an error.
func (r *CartRepository) Delete(ctx context.Context, cartID string) error {
	id := strings.TrimSpace(cartID)
	if id == "" {
		return repositories.NewUnavailableError("cart delete", errors.New("cart id is required"))
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("cart_id = ?", id).Delete(&cartItemRow{}).Error; err != nil {
			return err
		}
		return tx.Delete(&cartRow{}, "id = ?", id).Error
	})
	if err != nil {
		return repositories.NewUnavailableError("cart delete", err)
	}
	return nil
}

// Close closes the underlying SQLite handle.
func (r *CartRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
