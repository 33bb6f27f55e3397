package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"mandi/internal/cache"
	"mandi/internal/client/agmarknet"
	"mandi/internal/config"
	cronrunner "mandi/internal/cron"
	"mandi/internal/db"
	"mandi/internal/handler"
	"mandi/internal/httpmw"
	"mandi/internal/logger"
	gormrepository "mandi/internal/repository/gorm"
	"mandi/internal/resolver"
	"mandi/internal/service"
	"mandi/internal/trend"

	_ "mandi/docs"
)

func main() {
	cfgPath := os.Getenv("MANDI_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("MANDI_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// The store is optional: without a DSN the resolver runs on the memory
	// and provider tiers alone.
	var dbConn *db.DB
	if strings.TrimSpace(cfg.DB.DSN) != "" {
		dbConn, err = db.Open(cfg.DB)
		if err != nil {
			logger.Warn("db open failed, continuing without persistence", zap.Error(err))
			dbConn = nil
		}
	} else {
		logger.Info("no db dsn configured, running without persistence")
	}
	defer db.Close(dbConn)

	if dbConn != nil {
		if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
			logger.Warn("failed to set timezone", zap.Error(err))
		}
		if err := db.AutoMigrate(dbConn); err != nil {
			logger.Fatal("auto-migrate failed", zap.Error(err))
		}
	}

	var gormDB *gorm.DB
	if dbConn != nil {
		gormDB = dbConn.Gorm
	}
	store := gormrepository.New(gormDB)

	provider := agmarknet.NewClient(agmarknet.Options{
		BaseURL:    cfg.Provider.BaseURL,
		ResourceID: cfg.Provider.ResourceID,
		APIKey:     cfg.Provider.APIKey,
		Timeout:    cfg.Provider.Timeout,
		PageLimit:  cfg.Provider.PageLimit,
		MaxPages:   cfg.Provider.MaxPages,
		Logger:     logger,
	})

	writer := &cache.Writer{Repo: store, Logger: logger}
	priceResolver := &resolver.Resolver{
		Repo:     store,
		Provider: provider,
		Writer:   writer,
		Memory:   resolver.NewMemoryCache(cfg.Resolver.MemoryTTL),
		Logger:   logger,
		Opts: resolver.Options{
			LookbackDays:   cfg.Resolver.LookbackDays,
			ProbeBatchSize: cfg.Resolver.ProbeBatchSize,
			DefaultLimit:   cfg.Resolver.DefaultLimit,
		},
	}
	trendAggregator := &trend.Aggregator{
		Days:   priceResolver,
		Cache:  store,
		Logger: logger,
		Opts: trend.Options{
			WindowDays: cfg.Trend.WindowDays,
			BatchSize:  cfg.Trend.BatchSize,
		},
	}
	queryService := &service.QueryService{
		Resolver: priceResolver,
		Trends:   trendAggregator,
		Store:    store,
	}
	syncService := &service.PriceSyncService{
		Store:    store,
		Provider: provider,
		Logger:   logger,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(httpmw.RequestID())
	engine.Use(httpmw.AccessLog(logger))

	healthHandler := &handler.HealthHandler{DB: gormDB}
	healthHandler.Register(engine)
	priceHandler := &handler.PriceHandler{
		Query:      queryService,
		Sync:       syncService,
		Logger:     logger,
		SyncScopes: cfg.PriceSync.Scopes,
		SyncLimit:  cfg.PriceSync.Limit,
	}
	priceHandler.Register(engine)

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled && cfg.PriceSync.Enabled && dbConn != nil {
		_, err = cronRunner.Add(cfg.Cron.PriceSync, func(ctx context.Context) {
			result, err := syncService.Sync(ctx, service.SyncOptions{
				Scopes: cfg.PriceSync.Scopes,
				Limit:  cfg.PriceSync.Limit,
			})
			if err != nil {
				logger.Warn("cron price sync failed", zap.Error(err))
				return
			}
			logger.Info("cron price sync ok",
				zap.String("date", result.Date),
				zap.Int("records", result.Records),
				zap.Int("errors", result.Errors),
			)
		})
		if err != nil {
			logger.Warn("cron register price sync failed", zap.Error(err))
		}
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	errCh := make(chan error, 2)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
