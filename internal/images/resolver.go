package images

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	defaultLiquipediaBaseURL = "https://liquipedia.net/dota2"
	defaultPlaceholder       = "/icon.png"
	defaultUserAgent         = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	defaultLookupTimeout     = 10 * time.Second
)

// cosmeticIconPattern matches the hosted cosmetic icon URLs embedded in a
// Liquipedia article page.
var cosmeticIconPattern = regexp.MustCompile(`(?i)https://liquipedia\.net/commons/images/[a-f0-9]/[a-f0-9]{2}/Cosmetic_icon_[^"'\s]+\.png`)

type mappingState int

const (
	mappingUninitialized mappingState = iota
	mappingLoading
	mappingReady
)

// Resolution is the outcome of an image lookup.
type Resolution struct {
	ItemName      string `json:"itemName"`
	ImageURL      string `json:"imageUrl"`
	LiquipediaURL string `json:"liquipediaUrl,omitempty"`
}

// Resolver maps item names to hosted artwork URLs. It consults a local
// mapping file first and falls back to a live Liquipedia page scrape,
// deduplicating concurrent lookups for the same item.
type Resolver struct {
	mappingPath string
	placeholder string
	baseURL     string
	httpClient  *http.Client
	userAgent   string
	logger      func(context.Context, string, map[string]any)

	mu      sync.Mutex
	state   mappingState
	mapping map[string]string
	loaded  chan struct{}

	group singleflight.Group
}

// ResolverOption customises Resolver behaviour.
type ResolverOption func(*Resolver)

// WithLiquipediaBaseURL overrides the article base URL used for live lookups.
func WithLiquipediaBaseURL(base string) ResolverOption {
	return func(r *Resolver) {
		base = strings.TrimRight(strings.TrimSpace(base), "/")
		if base != "" {
			r.baseURL = base
		}
	}
}

// WithHTTPClient overrides the HTTP client used for live lookups.
func WithHTTPClient(c *http.Client) ResolverOption {
	return func(r *Resolver) {
		if c != nil {
			r.httpClient = c
		}
	}
}

// WithPlaceholder overrides the fallback image path.
func WithPlaceholder(placeholder string) ResolverOption {
	return func(r *Resolver) {
		placeholder = strings.TrimSpace(placeholder)
		if placeholder != "" {
			r.placeholder = placeholder
		}
	}
}

// WithLogger injects the structured logger used for mapping load diagnostics.
func WithLogger(logger func(context.Context, string, map[string]any)) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResolver constructs a Resolver reading the mapping file at mappingPath.
func NewResolver(mappingPath string, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		mappingPath: strings.TrimSpace(mappingPath),
		placeholder: defaultPlaceholder,
		baseURL:     defaultLiquipediaBaseURL,
		httpClient:  &http.Client{Timeout: defaultLookupTimeout},
		userAgent:   defaultUserAgent,
		logger:      func(context.Context, string, map[string]any) {},
		mapping:     map[string]string{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Resolve returns the artwork URL for an item name. The mapping file wins;
// unmapped items trigger a live lookup, and every failure path degrades to
// the placeholder rather than an error.
func (r *Resolver) Resolve(ctx context.Context, itemName string) Resolution {
	itemName = strings.TrimSpace(itemName)
	resolution := Resolution{
		ItemName: itemName,
		ImageURL: r.placeholder,
	}
	if itemName == "" {
		return resolution
	}
	resolution.LiquipediaURL = r.articleURL(itemName)

	if err := r.ensureMapping(ctx); err != nil {
		r.logger(ctx, "image mapping unavailable", map[string]any{"error": err.Error()})
	}

	r.mu.Lock()
	mapped, ok := r.mapping[itemName]
	r.mu.Unlock()
	if ok && mapped != "" {
		resolution.ImageURL = mapped
		return resolution
	}

	found, err, _ := r.group.Do(itemName, func() (interface{}, error) {
		return r.lookupLive(ctx, itemName)
	})
	if err != nil {
		r.logger(ctx, "live image lookup failed", map[string]any{
			"item":  itemName,
			"error": err.Error(),
		})
		return resolution
	}

	liveURL, _ := found.(string)
	if liveURL == "" {
		return resolution
	}

	r.mu.Lock()
	r.mapping[itemName] = liveURL
	r.mu.Unlock()

	resolution.ImageURL = liveURL
	return resolution
}

// ensureMapping loads the mapping file exactly once; concurrent callers wait
// for the in-flight load instead of re-reading the file.
func (r *Resolver) ensureMapping(ctx context.Context) error {
	r.mu.Lock()
	switch r.state {
	case mappingReady:
		r.mu.Unlock()
		return nil
	case mappingLoading:
		loaded := r.loaded
		r.mu.Unlock()
		select {
		case <-loaded:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.state = mappingLoading
	r.loaded = make(chan struct{})
	loaded := r.loaded
	r.mu.Unlock()

	mapping, err := readMappingFile(r.mappingPath)

	r.mu.Lock()
	for name, u := range mapping {
		r.mapping[name] = u
	}
	r.state = mappingReady
	r.mu.Unlock()
	close(loaded)

	return err
}

func readMappingFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("images: reading mapping file: %w", err)
	}

	mapping := make(map[string]string)
	if err := json.Unmarshal(data, &mapping); err != nil {
		return nil, fmt.Errorf("images: parsing mapping file: %w", err)
	}
	return mapping, nil
}

func (r *Resolver) lookupLive(ctx context.Context, itemName string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.articleURL(itemName), nil)
	if err != nil {
		return "", fmt.Errorf("images: building request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("images: fetching article: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("images: reading article: %w", err)
	}

	if match := cosmeticIconPattern.Find(body); match != nil {
		return string(match), nil
	}
	return "", nil
}

func (r *Resolver) articleURL(itemName string) string {
	slug := strings.ReplaceAll(itemName, " ", "_")
	return r.baseURL + "/" + url.PathEscape(slug)
}
