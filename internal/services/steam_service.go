package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/getreststore/api/internal/clients/steam"
	"github.com/getreststore/api/internal/platform/cache"
	"github.com/getreststore/api/internal/repositories"
)

const (
	defaultCommentsLimit = 20
	maxCommentsLimit     = 100

	commentsCacheKey  = "steam:comments"
	inventoryCacheKey = "steam:inventory"
)

var (
	errSteamClientRequired = errors.New("steam service: client is required")
	errSteamStoreRequired  = errors.New("steam service: price store is required")
	errSteamClockRequired  = errors.New("steam service: clock is required")

	// ErrSteamInvalidInput indicates a missing or malformed request parameter.
	ErrSteamInvalidInput = errors.New("steam service: invalid input")
	// ErrSteamProfileNotFound indicates the Steam API knows no such player.
	ErrSteamProfileNotFound = errors.New("steam service: profile not found")
	// ErrSteamUnavailable indicates the upstream could not be reached.
	ErrSteamUnavailable = errors.New("steam service: upstream unavailable")
)

// CommentsPage is a slice of the scraped comment thread.
type CommentsPage struct {
	Comments   []SteamComment     `json:"comments"`
	Pagination CommentsPagination `json:"pagination"`
}

// CommentsPagination mirrors the slice arithmetic of the comments endpoint.
type CommentsPagination struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Total   int  `json:"total"`
	HasMore bool `json:"hasMore"`
}

// SteamGateway is the outbound surface of the Steam client consumed here.
type SteamGateway interface {
	GetProfile(ctx context.Context, steamID string) (SteamProfile, error)
	GetInventory(ctx context.Context, steamID string) ([]InventoryItem, error)
	GetComments(ctx context.Context) ([]steam.RawComment, error)
}

// SteamServiceDeps bundles constructor inputs for the Steam surface.
type SteamServiceDeps struct {
	Client       SteamGateway
	Store        repositories.PriceStore
	Cache        cache.Cache
	SteamID      string
	CommentsTTL  time.Duration
	InventoryTTL time.Duration
	Clock        func() time.Time
	Logger       func(context.Context, string, map[string]any)
}

type steamService struct {
	client       SteamGateway
	store        repositories.PriceStore
	cache        cache.Cache
	steamID      string
	commentsTTL  time.Duration
	inventoryTTL time.Duration
	sanitizer    *bluemonday.Policy
	now          func() time.Time
	logger       func(context.Context, string, map[string]any)
}

// NewSteamService constructs the Steam proxy service.
func NewSteamService(deps SteamServiceDeps) (SteamService, error) {
	if deps.Client == nil {
		return nil, errSteamClientRequired
	}
	if deps.Store == nil {
		return nil, errSteamStoreRequired
	}
	if deps.Clock == nil {
		return nil, errSteamClockRequired
	}

	c := deps.Cache
	if c == nil {
		c = cache.NewMemoryCache()
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &steamService{
		client:       deps.Client,
		store:        deps.Store,
		cache:        c,
		steamID:      strings.TrimSpace(deps.SteamID),
		commentsTTL:  deps.CommentsTTL,
		inventoryTTL: deps.InventoryTTL,
		sanitizer:    bluemonday.StrictPolicy(),
		now:          func() time.Time { return deps.Clock().UTC() },
		logger:       logger,
	}, nil
}

func (s *steamService) Profile(ctx context.Context, steamID string) (SteamProfile, error) {
	steamID = strings.TrimSpace(steamID)
	if steamID == "" {
		return SteamProfile{}, ErrSteamInvalidInput
	}

	profile, err := s.client.GetProfile(ctx, steamID)
	if err != nil {
		if errors.Is(err, steam.ErrProfileNotFound) {
			return SteamProfile{}, ErrSteamProfileNotFound
		}
		s.logger(ctx, "steam.profile_failed", map[string]any{"error": err.Error()})
		return SteamProfile{}, ErrSteamUnavailable
	}
	return profile, nil
}

// Inventory fetches the shop's merged inventory and joins each stack against
// the Price Store; unpriced items carry price 0.
func (s *steamService) Inventory(ctx context.Context) ([]InventoryItem, error) {
	if cached, err := s.cache.Get(ctx, inventoryCacheKey); err == nil {
		var items []InventoryItem
		if jsonErr := json.Unmarshal(cached, &items); jsonErr == nil {
			return items, nil
		}
	}

	items, err := s.client.GetInventory(ctx, s.steamID)
	if err != nil {
		s.logger(ctx, "steam.inventory_failed", map[string]any{"error": err.Error()})
		return nil, ErrSteamUnavailable
	}

	prices := s.priceIndex(ctx)
	for i := range items {
		items[i].Price = prices[items[i].Name]
	}

	s.cachePut(ctx, inventoryCacheKey, items, s.inventoryTTL)
	return items, nil
}

func (s *steamService) Comments(ctx context.Context, page, limit int) (CommentsPage, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultCommentsLimit
	}
	if limit > maxCommentsLimit {
		limit = maxCommentsLimit
	}

	all, err := s.allComments(ctx)
	if err != nil {
		return CommentsPage{}, err
	}

	start := (page - 1) * limit
	end := start + limit
	if start > len(all) {
		start = len(all)
	}
	if end > len(all) {
		end = len(all)
	}

	return CommentsPage{
		Comments: all[start:end],
		Pagination: CommentsPagination{
			Page:    page,
			Limit:   limit,
			Total:   len(all),
			HasMore: end < len(all),
		},
	}, nil
}

func (s *steamService) allComments(ctx context.Context) ([]SteamComment, error) {
	if cached, err := s.cache.Get(ctx, commentsCacheKey); err == nil {
		var comments []SteamComment
		if jsonErr := json.Unmarshal(cached, &comments); jsonErr == nil {
			return comments, nil
		}
	}

	raw, err := s.client.GetComments(ctx)
	if err != nil {
		s.logger(ctx, "steam.comments_failed", map[string]any{"error": err.Error()})
		return nil, ErrSteamUnavailable
	}

	now := s.now()
	comments := make([]SteamComment, 0, len(raw))
	for _, comment := range raw {
		avatar := strings.TrimSpace(comment.AvatarURL)
		if avatar == "" {
			avatar = "/icon.png"
		}
		comments = append(comments, SteamComment{
			Author:  s.sanitizer.Sanitize(comment.Author),
			Avatar:  avatar,
			Comment: s.sanitizer.Sanitize(comment.Text),
			Date:    relativeDate(now, comment.PostedAt),
		})
	}

	s.cachePut(ctx, commentsCacheKey, comments, s.commentsTTL)
	return comments, nil
}

func (s *steamService) priceIndex(ctx context.Context) map[string]int64 {
	records, err := s.store.Load(ctx)
	if err != nil {
		s.logger(ctx, "steam.price_join_failed", map[string]any{"error": err.Error()})
		return map[string]int64{}
	}
	index := make(map[string]int64, len(records))
	for _, record := range records {
		name := strings.TrimSpace(record.Name)
		if name == "" {
			continue
		}
		if _, ok := index[name]; !ok {
			index[name] = record.Price
		}
	}
	return index
}

func (s *steamService) cachePut(ctx context.Context, key string, value any, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, ttl); err != nil {
		s.logger(ctx, "steam.cache_put_failed", map[string]any{"key": key, "error": err.Error()})
	}
}

// relativeDate renders the coarse age labels the testimonial wall shows.
func relativeDate(now, postedAt time.Time) string {
	if postedAt.IsZero() || postedAt.After(now) {
		return "Recently"
	}

	days := int(now.Sub(postedAt).Hours() / 24)
	switch {
	case days == 0:
		return "Today"
	case days == 1:
		return "1 day ago"
	case days < 7:
		return fmt.Sprintf("%d days ago", days)
	case days < 30:
		return pluralAgo(days/7, "week")
	case days < 365:
		return pluralAgo(days/30, "month")
	default:
		return pluralAgo(days/365, "year")
	}
}

func pluralAgo(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
