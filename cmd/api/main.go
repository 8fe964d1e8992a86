package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nomadsim/esim_api/internal/cache"
	"github.com/nomadsim/esim_api/internal/config"
	"github.com/nomadsim/esim_api/internal/database"
	"github.com/nomadsim/esim_api/internal/handler"
	"github.com/nomadsim/esim_api/internal/middleware"
	"github.com/nomadsim/esim_api/internal/repository"
	"github.com/nomadsim/esim_api/internal/service"
	"github.com/nomadsim/esim_api/internal/sse"
	"github.com/nomadsim/esim_api/internal/worker"
	"github.com/nomadsim/esim_api/pkg/mailer"
	"github.com/nomadsim/esim_api/pkg/mobimatter"
	"github.com/nomadsim/esim_api/pkg/qpay"
)

// main is the application entrypoint for the NomadSIM API.
func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Setup logger
	setupLogger(cfg.Env)
	log.Info().Str("env", cfg.Env).Msg("starting nomadsim api")

	// 3. Connect Postgres (admin users, settings, catalog snapshot)
	db, err := database.Connect(&cfg.DB)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		fmt.Fprintf(os.Stderr, "database connection failed: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	// 3a. Run migrations
	if err := runMigrations(db.DB); err != nil {
		log.Error().Err(err).Msg("migration failed")
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}
	log.Info().Msg("migrations completed successfully")

	// 3b. Connect MongoDB (orders, eSIM profiles)
	mongoDB, err := database.ConnectMongo(&cfg.Mongo)
	if err != nil {
		log.Error().Err(err).Msg("mongodb connection failed")
		fmt.Fprintf(os.Stderr, "mongodb connection failed: %v\n", err)
		os.Exit(1)
	}
	defer database.DisconnectMongo(mongoDB)
	log.Info().Msg("mongodb connected successfully")

	// 3c. Connect Redis (catalog feed cache)
	redisClient, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Error().Err(err).Msg("redis connection failed")
		fmt.Fprintf(os.Stderr, "redis connection failed: %v\n", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected successfully")

	catalogCache := cache.NewCatalogCache(redisClient, cfg.Catalog.CacheTTL)

	// 4. Initialize provider clients
	mobimatterClient := mobimatter.NewClient(mobimatter.Config{
		BaseURL:    cfg.Mobimatter.BaseURL,
		APIKey:     cfg.Mobimatter.APIKey,
		MerchantID: cfg.Mobimatter.MerchantID,
	})
	qpayClient := qpay.NewClient(qpay.Config{
		BaseURL:     cfg.QPay.BaseURL,
		Username:    cfg.QPay.Username,
		Password:    cfg.QPay.Password,
		InvoiceCode: cfg.QPay.InvoiceCode,
		CallbackURL: cfg.QPay.CallbackURL,
	})

	var mail mailer.Mailer
	if cfg.SMTP.Host != "" {
		mail = mailer.NewSMTPMailer(mailer.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	} else {
		mail = mailer.NewLogMailer()
		log.Warn().Msg("SMTP not configured - email delivery is log-only")
	}

	// 5. Initialize repositories
	adminRepo := repository.NewAdminUserRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	packageRepo := repository.NewPackageRepository(db)
	orderRepo := repository.NewOrderRepository(mongoDB)
	esimRepo := repository.NewESIMRepository(mongoDB)

	// 5a. SSE hub for the admin back office
	hub := sse.NewHub()
	notifier := sse.NewHubNotifier(hub)

	// 6. Create context for graceful shutdown (workers and payment watchers)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 7. Initialize services
	adminAuthSvc := service.NewAdminAuthService(adminRepo)
	settingsSvc := service.NewSettingsService(settingsRepo, cfg.Catalog.DefaultUSDToMNTRate, cfg.Catalog.DefaultMarginPercent)
	catalogSvc := service.NewCatalogService(mobimatterClient, catalogCache, settingsSvc, packageRepo)
	esimSvc := service.NewESIMService(mobimatterClient, orderRepo, esimRepo, mail, notifier)
	orderSvc := service.NewOrderService(orderRepo, esimRepo, esimSvc, qpayClient, notifier)
	checkoutSvc := service.NewCheckoutService(ctx, catalogSvc, orderRepo, qpayClient, notifier, service.CheckoutConfig{
		PollInterval:    cfg.Checkout.PollInterval,
		PollTimeout:     cfg.Checkout.PollTimeout,
		ProcessingDelay: cfg.Checkout.ProcessingDelay,
		SessionTTL:      cfg.Checkout.SessionTTL,
	})

	var assistantSvc *service.AssistantService
	if cfg.Gemini.APIKey != "" {
		assistantSvc, err = service.NewAssistantService(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			log.Warn().Err(err).Msg("Assistant initialization failed - travel tools will be disabled")
		}
	} else {
		log.Warn().Msg("GEMINI_API_KEY not set - travel tools will be disabled")
	}

	// 8. Initialize handlers
	handlers := &Handlers{
		Health:        handler.NewHealthHandler(mobimatterClient, checkoutSvc),
		Package:       handler.NewPackageHandler(catalogSvc),
		Checkout:      handler.NewCheckoutHandler(checkoutSvc),
		Order:         handler.NewOrderHandler(orderSvc, esimSvc),
		Assistant:     handler.NewAssistantHandler(assistantSvc),
		Webhook:       handler.NewWebhookHandler(checkoutSvc, cfg.QPay.WebhookSecret),
		Auth:          handler.NewAuthHandler(adminAuthSvc),
		AdminOrder:    handler.NewAdminOrderHandler(orderSvc),
		AdminCatalog:  handler.NewAdminCatalogHandler(catalogSvc, packageRepo),
		AdminSettings: handler.NewAdminSettingsHandler(settingsSvc),
		AdminUser:     handler.NewAdminUserHandler(adminAuthSvc),
		SSE:           handler.NewSSEHandler(hub),
	}

	// 9. Initialize middleware
	jwtMw := middleware.NewJWTMiddleware()
	loginLimiter := middleware.NewLoginRateLimiter()

	// 10. Setup router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.LoggingMiddleware())
	setupRoutes(router, handlers, jwtMw, loginLimiter)

	// 11. Start workers
	go worker.NewCatalogSyncWorker(catalogSvc, cfg.Worker.CatalogSyncInterval).Start(ctx)
	go worker.NewProvisionWorker(esimSvc, orderRepo, cfg.Worker.ProvisionInterval, cfg.Worker.ProvisionStaleAfter, cfg.Worker.ProvisionMaxAge).Start(ctx)
	go settingsSvc.RunRefresher(ctx, cfg.Worker.SettingsRefreshInterval)

	// 12. Start HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// 13. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// 14. Cancel context to stop workers and payment watchers
	cancel()

	// 15. Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}

// Handlers groups all HTTP handlers used by the server.
type Handlers struct {
	Health        *handler.HealthHandler
	Package       *handler.PackageHandler
	Checkout      *handler.CheckoutHandler
	Order         *handler.OrderHandler
	Assistant     *handler.AssistantHandler
	Webhook       *handler.WebhookHandler
	Auth          *handler.AuthHandler
	AdminOrder    *handler.AdminOrderHandler
	AdminCatalog  *handler.AdminCatalogHandler
	AdminSettings *handler.AdminSettingsHandler
	AdminUser     *handler.AdminUserHandler
	SSE           *handler.SSEHandler
}

// setupRoutes registers all routes.
func setupRoutes(router *gin.Engine, handlers *Handlers, jwtMiddleware *middleware.JWTMiddleware, loginLimiter *middleware.LoginRateLimiter) {
	// Payment gateway webhook
	router.POST("/webhook/qpay", handlers.Webhook.HandleQPayCallback)

	router.GET("/v1/health", handlers.Health.GetHealth)

	// Storefront routes (public)
	store := router.Group("/v1")
	{
		store.GET("/packages", handlers.Package.GetPackages)
		store.GET("/packages/:sku", handlers.Package.GetPackage)
		store.GET("/countries", handlers.Package.GetCountries)

		store.POST("/checkout", handlers.Checkout.StartCheckout)
		store.GET("/checkout/:id", handlers.Checkout.GetCheckout)
		store.POST("/checkout/:id/check", handlers.Checkout.RecheckPayment)

		store.GET("/orders", handlers.Order.GetOrders)
		store.GET("/orders/:id", handlers.Order.GetOrder)
		store.GET("/orders/:id/esims", handlers.Order.GetOrderESIMs)
		store.GET("/esims", handlers.Order.GetESIMs)

		store.POST("/assistant/travel-plan", handlers.Assistant.TravelPlan)
		store.POST("/assistant/data-estimate", handlers.Assistant.EstimateData)
	}

	// Admin SSE stream (token via query param, EventSource cannot set headers)
	router.GET("/v1/admin/sse", handlers.SSE.Stream)

	// Admin routes
	admin := router.Group("/v1/admin")
	admin.POST("/auth/login", loginLimiter.Handle(), handlers.Auth.Login)
	admin.Use(jwtMiddleware.Handle())
	{
		admin.GET("/auth/me", handlers.Auth.Me)

		// Order Management
		admin.GET("/orders", handlers.AdminOrder.GetOrders)
		admin.GET("/orders/stats", handlers.AdminOrder.GetStats)
		admin.GET("/orders/:id", handlers.AdminOrder.GetOrder)

		operate := admin.Group("")
		operate.Use(jwtMiddleware.RequireRole("admin", "operator"))
		{
			operate.POST("/orders/:id/resend", handlers.AdminOrder.ResendDelivery)
			operate.POST("/orders/:id/retry", handlers.AdminOrder.RetryProvisioning)
			operate.POST("/orders/:id/refund", handlers.AdminOrder.Refund)
			operate.POST("/orders/:id/hide", handlers.AdminOrder.Hide)

			// Catalog Management
			operate.POST("/catalog/resync", handlers.AdminCatalog.Resync)
			operate.PUT("/catalog/packages/:sku/status", handlers.AdminCatalog.UpdatePackageStatus)

			// Pricing
			operate.PUT("/settings/pricing", handlers.AdminSettings.UpdatePricing)
		}

		admin.GET("/catalog/packages", handlers.AdminCatalog.GetPackages)
		admin.GET("/settings", handlers.AdminSettings.GetSettings)
		admin.GET("/settings/pricing", handlers.AdminSettings.GetPricing)

		// Team Management (admin role only)
		team := admin.Group("")
		team.Use(jwtMiddleware.RequireRole("admin"))
		{
			team.GET("/users", handlers.AdminUser.GetUsers)
			team.POST("/users", handlers.AdminUser.CreateUser)
			team.PUT("/users/:id", handlers.AdminUser.UpdateUser)
			team.PUT("/users/:id/password", handlers.AdminUser.ChangePassword)
		}
	}
}

// runMigrations runs database migrations using golang-migrate.
func runMigrations(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migration instance: %w", err)
	}

	// Run migrations
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func setupLogger(env string) {
	if env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}
