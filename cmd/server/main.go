package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appmetering "github.com/vaultio/backend/internal/application/metering"
	"github.com/vaultio/backend/internal/domain/metering"
	"github.com/vaultio/backend/internal/domain/shared"
	"github.com/vaultio/backend/internal/infrastructure/auth"
	"github.com/vaultio/backend/internal/infrastructure/billing"
	"github.com/vaultio/backend/internal/infrastructure/cache"
	"github.com/vaultio/backend/internal/infrastructure/config"
	"github.com/vaultio/backend/internal/infrastructure/event"
	"github.com/vaultio/backend/internal/infrastructure/logger"
	"github.com/vaultio/backend/internal/infrastructure/notification"
	"github.com/vaultio/backend/internal/infrastructure/persistence"
	"github.com/vaultio/backend/internal/infrastructure/telemetry"
	"github.com/vaultio/backend/internal/interfaces/http/handler"
	"github.com/vaultio/backend/internal/interfaces/http/middleware"
	"github.com/vaultio/backend/internal/interfaces/http/router"
)

//	@title			Vault Metering API
//	@version		1.0
//	@description	Usage metering and quota enforcement for the document vault platform

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting metering service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Distributed tracing, no-op when disabled
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Initialize database connection
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLogLevel)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Query tracing on the persistence layer, spans join the HTTP trace
	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:          cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:       cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh:  cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:         "postgresql",
		WithoutVariables: !cfg.Telemetry.DBLogFullSQL,
	}, log)
	if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	// Initialize repositories
	ledgerRepo := persistence.NewQuotaLedgerRepository(db.DB)
	receiptRepo := persistence.NewRefundReceiptRepository(db.DB)
	dedupRepo := persistence.NewNotificationDedupRepository(db.DB)
	vaultStore := persistence.NewVaultStore(db.DB)

	// Refund idempotency fast path lives in Redis; the durable receipt table
	// remains the source of truth, so a degraded start without Redis is safe.
	var idempotencyStore shared.IdempotencyStore
	redisStore, err := cache.NewRedisIdempotencyStore(cache.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Warn("Redis unavailable, using in-memory idempotency store", zap.Error(err))
		idempotencyStore = cache.NewInMemoryIdempotencyStore()
	} else {
		idempotencyStore = redisStore
		log.Info("Redis idempotency store connected")
	}
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	// In-process event bus with an audit-trail subscriber
	bus := event.NewInProcessBus(log)
	bus.Subscribe(event.NewAuditLogger(logger.Named(log, "audit")))

	// Notification delivery
	inApp := notification.NewInAppNotifier(db.DB)
	emailGateway := notification.NewEmailGateway(db.DB)
	notifierService := appmetering.NewNotifierService(
		dedupRepo, inApp, emailGateway, emailGateway, bus, log,
		appmetering.NotifierServiceConfig{
			DedupWindow: cfg.Notification.DedupWindow,
			PurgeAge:    cfg.Notification.PurgeAge,
		},
	)

	// Automatic top-up purchasing, enabled only when a payment key is set
	var topUpService *appmetering.TopUpService
	if cfg.Stripe.APIKey != "" {
		stripeProvider, err := billing.NewStripeProvider(&billing.StripeConfig{
			SecretKey:       cfg.Stripe.APIKey,
			IsTestMode:      cfg.App.Env != "production",
			DefaultCurrency: cfg.Stripe.Currency,
		}, log)
		if err != nil {
			log.Fatal("Failed to initialize payment provider", zap.Error(err))
		}
		topUpService = appmetering.NewTopUpService(
			ledgerRepo, metering.DefaultPackCatalog(), stripeProvider, bus, log,
			appmetering.TopUpServiceConfig{
				TriggerPercent:  cfg.TopUp.TriggerPercent,
				PurchaseTimeout: cfg.TopUp.PurchaseTimeout,
				MaxGrantRetries: cfg.TopUp.MaxGrantRetries,
			},
		)
		log.Info("Automatic top-up enabled")
	} else {
		log.Warn("No payment provider key configured, automatic top-up disabled")
	}

	// Application services
	catalog := metering.DefaultCatalog()
	admissionService := appmetering.NewAdmissionService(
		ledgerRepo, receiptRepo, catalog, vaultStore,
		topUpService, notifierService, idempotencyStore, bus, log,
		appmetering.AdmissionServiceConfig{
			MaxCommitRetries: cfg.Quota.MaxCommitRetries,
			RefundReceiptTTL: cfg.Quota.RefundWindow,
		},
	)
	snapshotService := appmetering.NewSnapshotService(ledgerRepo, catalog, vaultStore, log)
	provisionService := appmetering.NewProvisionService(ledgerRepo, log)

	jwtService := auth.NewJWTService(cfg.JWT)

	// Initialize handlers
	meteringHandler := handler.NewMeteringHandler(admissionService, snapshotService)
	tenantHandler := handler.NewTenantHandler(provisionService)
	systemHandler := handler.NewSystemHandler()

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	engine := gin.New()

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware stack, outermost first
	engine.Use(middleware.RequestID())
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORS())
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, log))

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Service-to-service authentication for the API surface
	r.Use(middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
		JWTService: jwtService,
		SkipPaths: []string{
			"/api/v1/ping",
			"/api/v1/system/ping",
			"/api/v1/system/info",
		},
		Logger: log,
	}))

	// Tenant context is optional at the middleware level: admission and
	// refund requests carry the tenant in the body, only the usage query
	// reads it from the request context.
	r.Use(middleware.OptionalTenantMiddleware())

	// Runs after auth and tenant resolution so spans carry the validated
	// tenant and calling service.
	r.Use(middleware.TracingAttributeInjector())

	r.Register(meteringHandler).
		Register(tenantHandler)

	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)
	r.Register(systemRoutes)

	r.Setup()

	// Simple ping at root API level for basic liveness checks
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
