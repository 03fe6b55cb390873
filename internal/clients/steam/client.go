package steam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"

	"github.com/getreststore/api/internal/domain"
)

const (
	defaultProfileBaseURL   = "https://api.steampowered.com"
	defaultCommunityBaseURL = "https://steamcommunity.com"
	defaultIconBaseURL      = "https://steamcommunity-a.akamaihd.net/economy/image/"
	defaultUserAgent        = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	defaultTimeout          = 10 * time.Second
	defaultMaxRetries       = 2

	dotaAppID          = 570
	inventoryContextID = 2
	inventoryPageSize  = 5000
)

var (
	// ErrProfileNotFound indicates the Steam API returned no player for the id.
	ErrProfileNotFound = errors.New("steam: profile not found")
	// ErrUnavailable indicates Steam could not be reached or answered with an error status.
	ErrUnavailable = errors.New("steam: upstream unavailable")
)

// RawComment is a profile comment as scraped, before presentation formatting.
type RawComment struct {
	Author    string
	AvatarURL string
	Text      string
	PostedAt  time.Time
}

// Client talks to the Steam Web API and scrapes the community profile pages.
type Client struct {
	httpClient *http.Client
	apiKey     string

	profileBaseURL   string
	communityBaseURL string
	iconBaseURL      string
	commentsURL      string
	userAgent        string
	maxRetries       uint64
}

// ClientOption customises Client behaviour.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client used for all requests.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// WithProfileBaseURL overrides the Steam Web API base URL.
func WithProfileBaseURL(base string) ClientOption {
	return func(cl *Client) {
		base = strings.TrimRight(strings.TrimSpace(base), "/")
		if base != "" {
			cl.profileBaseURL = base
		}
	}
}

// WithCommunityBaseURL overrides the steamcommunity.com base URL.
func WithCommunityBaseURL(base string) ClientOption {
	return func(cl *Client) {
		base = strings.TrimRight(strings.TrimSpace(base), "/")
		if base != "" {
			cl.communityBaseURL = base
		}
	}
}

// WithCommentsURL overrides the full profile comments page URL.
func WithCommentsURL(u string) ClientOption {
	return func(cl *Client) {
		u = strings.TrimSpace(u)
		if u != "" {
			cl.commentsURL = u
		}
	}
}

// WithMaxRetries bounds the retry attempts for transient upstream failures.
func WithMaxRetries(n uint64) ClientOption {
	return func(cl *Client) {
		cl.maxRetries = n
	}
}

// NewClient constructs a Steam client with the given Web API key.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient:       &http.Client{Timeout: defaultTimeout},
		apiKey:           strings.TrimSpace(apiKey),
		profileBaseURL:   defaultProfileBaseURL,
		communityBaseURL: defaultCommunityBaseURL,
		iconBaseURL:      defaultIconBaseURL,
		userAgent:        defaultUserAgent,
		maxRetries:       defaultMaxRetries,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// GetProfile fetches the public player summary for a Steam id.
func (c *Client) GetProfile(ctx context.Context, steamID string) (domain.SteamProfile, error) {
	steamID = strings.TrimSpace(steamID)
	if steamID == "" {
		return domain.SteamProfile{}, errors.New("steam: steam id is required")
	}

	endpoint := fmt.Sprintf("%s/ISteamUser/GetPlayerSummaries/v2/?key=%s&steamids=%s",
		c.profileBaseURL, url.QueryEscape(c.apiKey), url.QueryEscape(steamID))

	var payload struct {
		Response struct {
			Players []domain.SteamProfile `json:"players"`
		} `json:"response"`
	}
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return domain.SteamProfile{}, err
	}
	if len(payload.Response.Players) == 0 {
		return domain.SteamProfile{}, ErrProfileNotFound
	}
	return payload.Response.Players[0], nil
}

// GetInventory fetches the Dota 2 inventory for a Steam id and merges each
// asset with its description, grouping stacks by market hash name.
func (c *Client) GetInventory(ctx context.Context, steamID string) ([]domain.InventoryItem, error) {
	steamID = strings.TrimSpace(steamID)
	if steamID == "" {
		return nil, errors.New("steam: steam id is required")
	}

	endpoint := fmt.Sprintf("%s/inventory/%s/%d/%d?l=english&count=%d",
		c.communityBaseURL, url.PathEscape(steamID), dotaAppID, inventoryContextID, inventoryPageSize)

	var payload struct {
		Assets []struct {
			AssetID    string `json:"assetid"`
			ClassID    string `json:"classid"`
			InstanceID string `json:"instanceid"`
			Amount     string `json:"amount"`
		} `json:"assets"`
		Descriptions []struct {
			ClassID        string `json:"classid"`
			InstanceID     string `json:"instanceid"`
			MarketHashName string `json:"market_hash_name"`
			Type           string `json:"type"`
			IconURL        string `json:"icon_url"`
		} `json:"descriptions"`
	}
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, err
	}

	type descKey struct{ classID, instanceID string }
	descriptions := make(map[descKey]int, len(payload.Descriptions))
	for i, desc := range payload.Descriptions {
		descriptions[descKey{desc.ClassID, desc.InstanceID}] = i
	}

	grouped := make(map[string]*domain.InventoryItem)
	order := make([]string, 0, len(payload.Assets))
	for _, asset := range payload.Assets {
		item := domain.InventoryItem{
			ID:   asset.AssetID,
			Name: "Unknown Item",
			Qty:  1,
		}
		if amount, err := strconv.Atoi(asset.Amount); err == nil && amount > 0 {
			item.Qty = amount
		}
		if i, ok := descriptions[descKey{asset.ClassID, asset.InstanceID}]; ok {
			desc := payload.Descriptions[i]
			if desc.MarketHashName != "" {
				item.Name = desc.MarketHashName
			}
			item.Hero = desc.Type
			if desc.IconURL != "" {
				item.Icon = c.iconBaseURL + desc.IconURL
			}
		}

		if existing, ok := grouped[item.Name]; ok {
			existing.Qty += item.Qty
			continue
		}
		grouped[item.Name] = &item
		order = append(order, item.Name)
	}

	items := make([]domain.InventoryItem, 0, len(order))
	for _, name := range order {
		items = append(items, *grouped[name])
	}
	return items, nil
}

// GetComments scrapes the profile comment thread and returns every comment in
// page order.
func (c *Client) GetComments(ctx context.Context) ([]RawComment, error) {
	endpoint := c.commentsURL
	if endpoint == "" {
		return nil, errors.New("steam: comments url is not configured")
	}

	body, err := c.getHTML(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("steam: parsing comments page: %w", err)
	}

	var comments []RawComment
	doc.Find(".commentthread_comment").Each(func(_ int, sel *goquery.Selection) {
		author := strings.TrimSpace(sel.Find(".commentthread_author_link").Text())
		text := strings.TrimSpace(sel.Find(".commentthread_comment_text").Text())
		if author == "" || text == "" {
			return
		}

		comment := RawComment{
			Author: author,
			Text:   text,
		}
		if avatar, ok := sel.Find(".playerAvatar img").Attr("src"); ok {
			comment.AvatarURL = strings.TrimSpace(avatar)
		}
		if raw, ok := sel.Find(".commentthread_comment_timestamp").Attr("data-timestamp"); ok {
			if unix, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil && unix > 0 {
				comment.PostedAt = time.Unix(unix, 0).UTC()
			}
		}
		comments = append(comments, comment)
	})
	return comments, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	body, err := c.getHTML(ctx, endpoint)
	if err != nil {
		return err
	}
	defer body.Close()

	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("steam: decoding response from %s: %w", endpoint, err)
	}
	return nil
}

func (c *Client) getHTML(ctx context.Context, endpoint string) (io.ReadCloser, error) {
	var body io.ReadCloser

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("steam: building request: %w", err))
		}
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return backoff.Permanent(fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode))
		}

		body = resp.Body
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return body, nil
}
