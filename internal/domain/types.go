package domain

import (
	"time"
)

// PriceRecord is the wire/file representation of a single Price Store entry.
// The store is read and written wholesale as a JSON array of these records.
type PriceRecord struct {
	Name  string `json:"name"`
	Price int64  `json:"price"`
	Qty   *int   `json:"qty,omitempty"`
	Hero  string `json:"hero,omitempty"`
}

// Product is a purchasable catalog entry derived from a PriceRecord.
// Its ID equals the record name and doubles as the cart key, so two products
// must never share a name.
type Product struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Hero  string `json:"hero,omitempty"`
	Qty   int    `json:"qty"`
	Price int64  `json:"price"`
}

// Purchasable reports whether the product may appear anywhere in the UI,
// promotional panels included.
func (p Product) Purchasable() bool {
	return p.Price > 0 && p.Qty > 0
}

// SortOption enumerates supported catalog orderings.
type SortOption string

const (
	// SortPriceDesc orders products by price, highest first.
	SortPriceDesc SortOption = "price-desc"
	// SortPriceAsc orders products by price, lowest first.
	SortPriceAsc SortOption = "price-asc"
	// SortNameAsc orders products by collated name, A first.
	SortNameAsc SortOption = "name-asc"
	// SortNameDesc orders products by collated name, Z first.
	SortNameDesc SortOption = "name-desc"
)

// HeroAll is the sentinel hero filter value that disables hero filtering.
const HeroAll = "all"

// CartItem is a Product snapshot plus a user-chosen, stock-clamped quantity.
type CartItem struct {
	Product
	CartQty int       `json:"cartQty"`
	AddedAt time.Time `json:"addedAt"`
}

// Cart aggregates the mutable shopping state for one client.
//
// SelectedIDs is always a subset of the item ids; PendingDeleteIDs models the
// transient two-step removal confirmation and is never persisted.
type Cart struct {
	ID               string
	Items            []CartItem
	SelectedIDs      map[string]struct{}
	PendingDeleteIDs []string
	UpdatedAt        time.Time
}

// ItemIndex returns the position of the item with the given product id, or -1.
func (c Cart) ItemIndex(id string) int {
	for i, item := range c.Items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

// Selected reports whether the given item id is part of the checkout selection.
func (c Cart) Selected(id string) bool {
	if c.SelectedIDs == nil {
		return false
	}
	_, ok := c.SelectedIDs[id]
	return ok
}

// SelectedTotal sums price x cartQty over the selected lines only.
func (c Cart) SelectedTotal() int64 {
	var total int64
	for _, item := range c.Items {
		if c.Selected(item.ID) {
			total += item.Price * int64(item.CartQty)
		}
	}
	return total
}

// ItemCount sums cartQty over every line regardless of selection. Feeds the
// cart badge, not the checkout total.
func (c Cart) ItemCount() int {
	var count int
	for _, item := range c.Items {
		count += item.CartQty
	}
	return count
}

// FlashSaleItem is a Product carrying a temporary discount.
type FlashSaleItem struct {
	Product
	OriginalPrice int64 `json:"originalPrice"`
}

// Rarity buckets a product price into gacha-style tiers.
type Rarity string

const (
	RarityMythical  Rarity = "MYTHICAL"
	RarityLegendary Rarity = "LEGENDARY"
	RarityRare      Rarity = "RARE"
	RarityUncommon  Rarity = "UNCOMMON"
	RarityCommon    Rarity = "COMMON"
)

// RarityForPrice maps a whole-Rupiah price to its rarity tier.
func RarityForPrice(price int64) Rarity {
	switch {
	case price >= 500000:
		return RarityMythical
	case price >= 200000:
		return RarityLegendary
	case price >= 100000:
		return RarityRare
	case price >= 50000:
		return RarityUncommon
	default:
		return RarityCommon
	}
}

// SteamComment is a single scraped testimonial from the owner's Steam profile.
type SteamComment struct {
	Author  string `json:"author"`
	Avatar  string `json:"avatar"`
	Comment string `json:"comment"`
	Date    string `json:"date"`
}

// SteamProfile carries the subset of GetPlayerSummaries fields the UI shows.
type SteamProfile struct {
	SteamID      string `json:"steamid"`
	PersonaName  string `json:"personaname"`
	AvatarMedium string `json:"avatarmedium"`
	ProfileURL   string `json:"profileurl"`
}

// InventoryItem is a Steam inventory asset merged with its description and
// joined against the Price Store.
type InventoryItem struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Hero  string `json:"hero,omitempty"`
	Icon  string `json:"icon,omitempty"`
	Qty   int    `json:"qty"`
	Price int64  `json:"price"`
}

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusError indicates a critical dependency is unavailable.
	HealthStatusError = "error"
)
