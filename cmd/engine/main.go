package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"prescient/internal/client/gamma"
	"prescient/internal/config"
	cronrunner "prescient/internal/cron"
	"prescient/internal/db"
	"prescient/internal/handler"
	"prescient/internal/logger"
	gormrepository "prescient/internal/repository/gorm"
	"prescient/internal/service"
)

func main() {
	cfgPath := os.Getenv("PT_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("PT_ENV_ONLY"); envOnlyRaw != "" {
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

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)
	locks := service.NewPortfolioLocks()

	gammaHTTP := &http.Client{Timeout: cfg.Gamma.Timeout}
	gammaClient := gamma.NewClient(gammaHTTP, cfg.Gamma.BaseURL).
		WithBatchSize(cfg.PriceUpdater.FetchBatchSize)

	executor := &service.SignalExecutor{
		Repo:             store,
		Logger:           logger,
		Locks:            locks,
		SignalBatchLimit: cfg.Trading.SignalBatchLimit,
	}
	priceUpdater := &service.PriceUpdater{
		Repo:                  store,
		Prices:                gammaClient,
		Logger:                logger,
		Locks:                 locks,
		Interval:              cfg.PriceUpdater.Interval,
		RecordMarketSnapshots: cfg.PriceUpdater.MarketSnapshot,
	}
	snapshots := &service.SnapshotService{Repo: store, Logger: logger, Locks: locks}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm, Updater: priceUpdater}
	healthHandler.Register(engine)
	portfolioHandler := &handler.PortfolioHandler{
		Repo:                   store,
		Snapshots:              snapshots,
		Logger:                 logger,
		DefaultStartingBalance: decimal.NewFromFloat(cfg.Trading.DefaultStartingBalance),
	}
	portfolioHandler.Register(engine)
	tradingHandler := &handler.TradingHandler{Repo: store, Executor: executor, Logger: logger}
	tradingHandler.Register(engine)
	schedulerHandler := &handler.SchedulerHandler{Updater: priceUpdater, Logger: logger}
	schedulerHandler.Register(engine)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.PriceUpdater.Enabled {
		if err := priceUpdater.Start(); err != nil {
			logger.Fatal("price updater start failed", zap.Error(err))
		}
	}

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		if _, err := cronRunner.Add("daily_snapshot", cfg.Cron.DailySnapshot, func(ctx context.Context) {
			snapshots.RecordAll(ctx)
		}); err != nil {
			logger.Warn("cron register daily snapshot failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", zap.Error(err))
	}
	if cfg.PriceUpdater.Enabled {
		if err := priceUpdater.Stop(shutdownCtx); err != nil && !errors.Is(err, service.ErrSchedulerNotRunning) {
			logger.Warn("price updater stop failed", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
