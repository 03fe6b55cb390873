package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/getreststore/api/internal/clients/steam"
	"github.com/getreststore/api/internal/handlers"
	"github.com/getreststore/api/internal/images"
	"github.com/getreststore/api/internal/platform/auth"
	"github.com/getreststore/api/internal/platform/cache"
	"github.com/getreststore/api/internal/platform/config"
	"github.com/getreststore/api/internal/platform/observability"
	"github.com/getreststore/api/internal/repositories"
	filerepo "github.com/getreststore/api/internal/repositories/file"
	"github.com/getreststore/api/internal/repositories/gormstore"
	"github.com/getreststore/api/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load(ctx)
	if err != nil {
		var validation *config.ValidationError
		if errors.As(err, &validation) {
			logger.Fatal("invalid configuration", zap.Strings("fields", validation.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	priceStore, err := filerepo.NewPriceStore(cfg.Store.PricesPath)
	if err != nil {
		logger.Fatal("failed to open price store", zap.Error(err))
	}

	cartRepo, err := newCartRepository(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialise cart repository", zap.Error(err))
	}

	appCache, err := newCache(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialise cache", zap.Error(err))
	}

	events := eventLogger(logger)

	catalogService, err := services.NewCatalogService(services.CatalogServiceDeps{
		Store:          priceStore,
		Locale:         cfg.Catalog.Locale,
		InitialVisible: cfg.Catalog.InitialVisible,
		PageSize:       cfg.Catalog.PageSize,
		Logger:         events,
	})
	if err != nil {
		logger.Fatal("failed to initialise catalog service", zap.Error(err))
	}

	cartService, err := services.NewCartService(services.CartServiceDeps{
		Repository: cartRepo,
		Catalog:    catalogService,
		Clock:      time.Now,
		Logger:     events,
	})
	if err != nil {
		logger.Fatal("failed to initialise cart service", zap.Error(err))
	}

	checkoutService, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Carts:         cartService,
		WhatsAppPhone: cfg.Checkout.WhatsAppPhone,
		Logger:        events,
	})
	if err != nil {
		logger.Fatal("failed to initialise checkout service", zap.Error(err))
	}

	promoService, err := services.NewPromoService(services.PromoServiceDeps{
		Catalog:         catalogService,
		Clock:           time.Now,
		FlashSaleSize:   cfg.Promos.FlashSaleSize,
		DiscountPercent: cfg.Promos.DiscountPercent,
		TicketMinPrice:  int64(cfg.Promos.LuckyDrawTicketMin),
	})
	if err != nil {
		logger.Fatal("failed to initialise promo service", zap.Error(err))
	}

	steamOptions := []steam.ClientOption{
		steam.WithHTTPClient(&http.Client{Timeout: cfg.Steam.RequestTimeout}),
	}
	if cfg.Steam.CommentsURL != "" {
		steamOptions = append(steamOptions, steam.WithCommentsURL(cfg.Steam.CommentsURL))
	}
	steamClient := steam.NewClient(cfg.Steam.APIKey, steamOptions...)

	steamService, err := services.NewSteamService(services.SteamServiceDeps{
		Client:       steamClient,
		Store:        priceStore,
		Cache:        appCache,
		SteamID:      cfg.Steam.SteamID,
		CommentsTTL:  cfg.Cache.CommentsTTL,
		InventoryTTL: cfg.Cache.InventoryTTL,
		Clock:        time.Now,
		Logger:       events,
	})
	if err != nil {
		logger.Fatal("failed to initialise steam service", zap.Error(err))
	}

	priceAdminService, err := services.NewPriceAdminService(services.PriceAdminServiceDeps{
		Store:  priceStore,
		Logger: events,
	})
	if err != nil {
		logger.Fatal("failed to initialise price admin service", zap.Error(err))
	}

	sessions, err := auth.NewSessionManager(
		cfg.Admin.SessionSecret,
		cfg.Admin.Username,
		cfg.Admin.Password,
		auth.WithSessionTTL(cfg.Admin.SessionTTL),
	)
	if err != nil {
		logger.Fatal("failed to initialise session manager", zap.Error(err))
	}

	resolver := images.NewResolver(cfg.Images.MappingPath,
		images.WithPlaceholder(cfg.Images.Placeholder),
		images.WithLogger(events),
	)

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(handlers.BuildInfo{
			Version:     os.Getenv("API_VERSION"),
			CommitSHA:   os.Getenv("API_COMMIT_SHA"),
			Environment: os.Getenv("API_ENVIRONMENT"),
			StartedAt:   startedAt,
		}),
		handlers.WithHealthReadinessCheck("price_store", func(ctx context.Context) error {
			_, err := priceStore.Load(ctx)
			return err
		}),
	)

	catalogHandlers := handlers.NewCatalogHandlers(catalogService)
	cartHandlers := handlers.NewCartHandlers(cartService, checkoutService)
	promoHandlers := handlers.NewPromoHandlers(promoService)
	steamHandlers := handlers.NewSteamHandlers(steamService, cfg.Steam.SteamID)
	imageHandlers := handlers.NewImageHandlers(resolver)
	authHandlers := handlers.NewAuthHandlers(sessions)
	adminHandlers := handlers.NewAdminPriceHandlers(priceAdminService, cfg.Admin.UploadPassword)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger),
			observability.TraceMiddleware(),
			observability.RequestLoggerMiddleware(),
			observability.RecoveryMiddleware(logger),
		),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithCatalogRoutes(catalogHandlers.Routes),
		handlers.WithCartRoutes(cartHandlers.Routes),
		handlers.WithPromoRoutes(promoHandlers.Routes),
		handlers.WithSteamRoutes(steamHandlers.Routes),
		handlers.WithImageRoutes(imageHandlers.Routes),
		handlers.WithAuthRoutes(authHandlers.Routes),
		handlers.WithAdminMiddlewares(sessions.RequireAdmin()),
		handlers.WithAdminRoutes(adminHandlers.Routes),
		handlers.WithLegacyRoutes(adminHandlers.LegacyRoutes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("getreststore api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	sig := <-shutdown
	logger.Info("shutdown signal received", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	if err := cartRepo.Close(); err != nil {
		logger.Warn("cart repository close error", zap.Error(err))
	}
}

// newCartRepository selects the persistence backend and wraps it with the
// debounced writer so rapid cart mutations coalesce into fewer disk writes.
func newCartRepository(cfg config.Config, logger *zap.Logger) (repositories.CartRepository, error) {
	var (
		inner repositories.CartRepository
		err   error
	)
	switch cfg.Store.CartBackend {
	case config.CartBackendSQLite:
		inner, err = gormstore.NewCartRepository(cfg.Store.CartSQLiteDSN)
	default:
		inner, err = filerepo.NewCartRepository(cfg.Store.CartsDir)
	}
	if err != nil {
		return nil, err
	}

	return repositories.NewDebouncedCartRepository(inner, cfg.Store.CartDebounce, func(err error) {
		logger.Warn("cart flush failed", zap.Error(err))
	})
}

// newCache prefers Redis when configured and falls back to the in-process map.
func newCache(cfg config.Config, logger *zap.Logger) (cache.Cache, error) {
	if cfg.Cache.RedisAddr == "" {
		return cache.NewMemoryCache(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.RedisAddr,
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
	})
	logger.Info("using redis cache", zap.String("addr", cfg.Cache.RedisAddr))
	return cache.NewRedisCache(client)
}

// eventLogger adapts the zap logger to the event-style callback the services use.
func eventLogger(logger *zap.Logger) func(context.Context, string, map[string]any) {
	return func(_ context.Context, event string, fields map[string]any) {
		zapFields := make([]zap.Field, 0, len(fields))
		for key, value := range fields {
			zapFields = append(zapFields, zap.Any(key, value))
		}
		logger.Info(event, zapFields...)
	}
}
