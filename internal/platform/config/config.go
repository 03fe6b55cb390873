package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile            = ".env"
	defaultPort               = "8080"
	defaultReadTimeout        = 15 * time.Second
	defaultWriteTimeout       = 30 * time.Second
	defaultIdleTimeout        = 120 * time.Second
	defaultPricesPath         = "data/prices.json"
	defaultCartBackend        = "file"
	defaultCartsDir           = "data/carts"
	defaultCartSQLiteDSN      = "data/carts.db"
	defaultCartDebounce       = 400 * time.Millisecond
	defaultSessionTTL         = 24 * time.Hour
	defaultSteamTimeout       = 10 * time.Second
	defaultCatalogLocale      = "id"
	defaultInitialVisible     = 10
	defaultCatalogPageSize    = 10
	defaultImageMappingPath   = "data/image_urls.json"
	defaultImagePlaceholder   = "/icon.png"
	defaultFlashSaleSize      = 4
	defaultFlashSaleDiscount  = 11
	defaultCommentsTTL        = 5 * time.Minute
	defaultSteamInventoryTTL  = 10 * time.Minute
	defaultLuckyDrawTicketMin = 50000
)

// CartBackend values accepted by STORE_CART_BACKEND.
const (
	CartBackendFile   = "file"
	CartBackendSQLite = "sqlite"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Admin    AdminConfig
	Steam    SteamConfig
	Catalog  CatalogConfig
	Checkout CheckoutConfig
	Images   ImagesConfig
	Promos   PromoConfig
	Cache    CacheConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// StoreConfig locates the price catalog file and the cart persistence backend.
type StoreConfig struct {
	PricesPath    string
	CartBackend   string
	CartsDir      string
	CartSQLiteDSN string
	CartDebounce  time.Duration
}

// AdminConfig holds the shared admin credential pair and session signing material.
type AdminConfig struct {
	Username       string
	Password       string
	UploadPassword string
	SessionSecret  string
	SessionTTL     time.Duration
}

// SteamConfig identifies the storefront's Steam account and API access.
type SteamConfig struct {
	SteamID        string
	APIKey         string
	CommentsURL    string
	RequestTimeout time.Duration
}

// CatalogConfig tunes listing pagination and sort collation.
type CatalogConfig struct {
	InitialVisible int
	PageSize       int
	Locale         string
}

// CheckoutConfig carries the WhatsApp destination for checkout hand-off.
type CheckoutConfig struct {
	WhatsAppPhone string
}

// ImagesConfig controls the item image mapping cache.
type ImagesConfig struct {
	MappingPath string
	Placeholder string
}

// PromoConfig tunes the flash sale and lucky draw promotions.
type PromoConfig struct {
	FlashSaleSize      int
	DiscountPercent    int
	LuckyDrawTicketMin int
}

// CacheConfig configures the optional Redis-backed cache.
type CacheConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CommentsTTL   time.Duration
	InventoryTTL  time.Duration
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the application configuration by combining defaults, .env overrides,
// and environment variables.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	_ = ctx

	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}

	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "API_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Store: StoreConfig{
			PricesPath:    stringWithDefault(lookup, "PRICES_PATH", defaultPricesPath),
			CartBackend:   strings.ToLower(stringWithDefault(lookup, "STORE_CART_BACKEND", defaultCartBackend)),
			CartsDir:      stringWithDefault(lookup, "STORE_CARTS_DIR", defaultCartsDir),
			CartSQLiteDSN: stringWithDefault(lookup, "STORE_CART_SQLITE_DSN", defaultCartSQLiteDSN),
			CartDebounce:  durationWithDefault(lookup, "STORE_CART_DEBOUNCE", defaultCartDebounce),
		},
		Admin: AdminConfig{
			Username:       stringWithDefault(lookup, "ADMIN_USERNAME", ""),
			Password:       stringWithDefault(lookup, "ADMIN_PASSWORD", ""),
			UploadPassword: stringWithDefault(lookup, "ADMIN_UPLOAD_PASSWORD", ""),
			SessionSecret:  stringWithDefault(lookup, "JWT_SECRET", ""),
			SessionTTL:     durationWithDefault(lookup, "ADMIN_SESSION_TTL", defaultSessionTTL),
		},
		Steam: SteamConfig{
			SteamID:        stringWithDefault(lookup, "STEAM_ID", ""),
			APIKey:         stringWithDefault(lookup, "STEAM_API_KEY", ""),
			CommentsURL:    stringWithDefault(lookup, "STEAM_COMMENTS_URL", ""),
			RequestTimeout: durationWithDefault(lookup, "STEAM_REQUEST_TIMEOUT", defaultSteamTimeout),
		},
		Catalog: CatalogConfig{
			InitialVisible: intWithDefault(lookup, "CATALOG_INITIAL_VISIBLE", defaultInitialVisible),
			PageSize:       intWithDefault(lookup, "CATALOG_PAGE_SIZE", defaultCatalogPageSize),
			Locale:         stringWithDefault(lookup, "CATALOG_LOCALE", defaultCatalogLocale),
		},
		Checkout: CheckoutConfig{
			WhatsAppPhone: stringWithDefault(lookup, "WHATSAPP_PHONE", ""),
		},
		Images: ImagesConfig{
			MappingPath: stringWithDefault(lookup, "IMAGES_MAPPING_PATH", defaultImageMappingPath),
			Placeholder: stringWithDefault(lookup, "IMAGES_PLACEHOLDER", defaultImagePlaceholder),
		},
		Promos: PromoConfig{
			FlashSaleSize:      intWithDefault(lookup, "PROMO_FLASH_SALE_SIZE", defaultFlashSaleSize),
			DiscountPercent:    intWithDefault(lookup, "PROMO_DISCOUNT_PERCENT", defaultFlashSaleDiscount),
			LuckyDrawTicketMin: intWithDefault(lookup, "PROMO_LUCKY_DRAW_TICKET_MIN", defaultLuckyDrawTicketMin),
		},
		Cache: CacheConfig{
			RedisAddr:     stringWithDefault(lookup, "REDIS_ADDR", ""),
			RedisPassword: stringWithDefault(lookup, "REDIS_PASSWORD", ""),
			RedisDB:       intWithDefault(lookup, "REDIS_DB", 0),
			CommentsTTL:   durationWithDefault(lookup, "CACHE_COMMENTS_TTL", defaultCommentsTTL),
			InventoryTTL:  durationWithDefault(lookup, "CACHE_INVENTORY_TTL", defaultSteamInventoryTTL),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if strings.TrimSpace(cfg.Store.PricesPath) == "" {
		missing = append(missing, "Store.PricesPath")
	}
	switch cfg.Store.CartBackend {
	case CartBackendFile, CartBackendSQLite:
	default:
		missing = append(missing, "Store.CartBackend")
	}
	if strings.TrimSpace(cfg.Admin.Username) == "" {
		missing = append(missing, "Admin.Username")
	}
	if strings.TrimSpace(cfg.Admin.Password) == "" {
		missing = append(missing, "Admin.Password")
	}
	if strings.TrimSpace(cfg.Admin.SessionSecret) == "" {
		missing = append(missing, "Admin.SessionSecret")
	}
	if cfg.Admin.SessionTTL <= 0 {
		missing = append(missing, "Admin.SessionTTL")
	}
	if strings.TrimSpace(cfg.Checkout.WhatsAppPhone) == "" {
		missing = append(missing, "Checkout.WhatsAppPhone")
	}
	if cfg.Catalog.InitialVisible <= 0 {
		missing = append(missing, "Catalog.InitialVisible")
	}
	if cfg.Catalog.PageSize <= 0 {
		missing = append(missing, "Catalog.PageSize")
	}
	if cfg.Promos.FlashSaleSize <= 0 {
		missing = append(missing, "Promos.FlashSaleSize")
	}
	if cfg.Promos.DiscountPercent <= 0 || cfg.Promos.DiscountPercent >= 100 {
		missing = append(missing, "Promos.DiscountPercent")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		value = strings.Trim(value, "\"'")
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
