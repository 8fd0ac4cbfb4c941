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

	pricingapp "github.com/tymon3568/anthill-pricing/internal/application/pricing"
	"github.com/tymon3568/anthill-pricing/internal/domain/pricing"
	"github.com/tymon3568/anthill-pricing/internal/infrastructure/cache"
	"github.com/tymon3568/anthill-pricing/internal/infrastructure/config"
	"github.com/tymon3568/anthill-pricing/internal/infrastructure/logger"
	"github.com/tymon3568/anthill-pricing/internal/infrastructure/persistence"
	"github.com/tymon3568/anthill-pricing/internal/interfaces/http/handler"
	"github.com/tymon3568/anthill-pricing/internal/interfaces/http/middleware"
	"github.com/tymon3568/anthill-pricing/internal/interfaces/http/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting pricing service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected")

	// Repositories and providers
	listRepo := persistence.NewGormPriceListRepository(db.DB())
	ruleRepo := persistence.NewGormPricingRuleRepository(db.DB())
	usageStore := persistence.NewGormUsageStore(db.DB())
	catalogProvider := persistence.NewGormCatalogProvider(db.DB())
	customerProvider := persistence.NewGormCustomerContextProvider(db.DB())
	historyProvider := persistence.NewGormOrderHistoryProvider(db.DB())

	// Exchange rates: SQL source behind a redis cache
	var rateSource pricing.RateSource = persistence.NewGormRateSource(db.DB())
	cachedRates, err := cache.NewRedisRateSource(cfg.Redis, rateSource, cfg.Pricing.RateCacheTTL)
	if err != nil {
		log.Warn("Redis unavailable, exchange rates are uncached", zap.Error(err))
	} else {
		defer func() { _ = cachedRates.Close() }()
		rateSource = cachedRates
	}

	// Engine assembly
	limiter := pricing.NewUsageLimiter(usageStore, cfg.Pricing.ReserveAttempts)
	selector := pricing.NewPriceListSelector(listRepo, customerProvider)
	resolver := pricing.NewBasePriceResolver(listRepo)
	evaluator := pricing.NewRuleEvaluator(ruleRepo, limiter, historyProvider)
	converter := pricing.NewCurrencyConverter(rateSource)
	calculator := pricing.NewCalculator(
		catalogProvider, customerProvider, selector, resolver, evaluator, converter, limiter)

	pricingService := pricingapp.NewPricingService(calculator, log)
	pricingHandler := handler.NewPricingHandler(pricingService)

	// HTTP surface
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))
	engine.Use(middleware.Tenant(middleware.TenantConfig{
		SkipPaths: []string{"/health"},
	}))

	engine.GET("/health", healthHandler(db))

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(pricingHandler)
	r.Setup()

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

func healthHandler(db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(c.Request.Context()); err != nil {
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
