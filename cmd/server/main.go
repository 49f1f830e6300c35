package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/binopt-server/internal/config"
	"github.com/binopt-server/internal/feed"
	"github.com/binopt-server/internal/handler"
	"github.com/binopt-server/internal/middleware"
	"github.com/binopt-server/internal/models"
	"github.com/binopt-server/internal/repository"
	"github.com/binopt-server/internal/service"
	"github.com/binopt-server/internal/worker"
	"github.com/binopt-server/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Build info (injected at build time via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	if err := middleware.InitLogger(cfg.Logging.Dir, cfg.Logging.Level); err != nil {
		logrus.Fatalf("Failed to init logger: %v", err)
	}

	gin.SetMode(cfg.Server.Mode)

	db, err := initDatabase(cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}

	rdb := initRedis(cfg)

	if err := autoMigrate(db); err != nil {
		logrus.Fatalf("Failed to migrate database: %v", err)
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	tradeRepo := repository.NewTradeRepository(db)
	assetRepo := repository.NewAssetRepository(db)

	if err := assetRepo.SeedDefaults(); err != nil {
		logrus.Fatalf("Failed to seed assets: %v", err)
	}

	// Notification hub
	hub := ws.NewHub()
	hubCtx, hubCancel := context.WithCancel(context.Background())
	go hub.Run(hubCtx)

	// Initialize services
	authService := service.NewAuthService(userRepo, cfg.JWT, cfg.Trading)

	priceService := service.NewPriceService(assetRepo, rdb, hub, cfg.Feed)
	priceService.RegisterSource(models.AssetClassCrypto, feed.NewBinanceSource(cfg.Feed.BinanceURL))
	priceService.RegisterSource(models.AssetClassForex, feed.NewFrankfurterSource(cfg.Feed.FrankfurterURL))
	// commodities have no public feed wired; they run on simulation only

	tradeService := service.NewTradeService(userRepo, tradeRepo, assetRepo, priceService, hub, cfg.Trading)

	// Settlement sweep
	settlementWorker := worker.NewSettlementWorker(tradeService, cfg.Trading.SweepInterval())
	go settlementWorker.Start()

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authService)
	tradeHandler := handler.NewTradeHandler(tradeService)
	priceHandler := handler.NewPriceHandler(priceService)
	assetHandler := handler.NewAssetHandler(assetRepo)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(corsMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "ok",
			"version":    Version,
			"commit":     Commit,
			"build_time": BuildTime,
			"time":       time.Now().Unix(),
			"clients":    hub.ClientCount(),
		})
	})

	authMiddleware := middleware.AuthMiddleware(authService)

	v1 := router.Group("/api/v1")
	{
		authHandler.RegisterRoutes(v1, authMiddleware)
		priceHandler.RegisterRoutes(v1)
		assetHandler.RegisterRoutes(v1)
		tradeHandler.RegisterRoutes(v1, authMiddleware)
	}

	router.GET("/ws", ws.HandleWebSocket(hub, authService))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start price service
	if err := priceService.Start(context.Background()); err != nil {
		logrus.Fatalf("Failed to start price service: %v", err)
	}

	go func() {
		logrus.Infof("Starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	settlementWorker.Stop()
	priceService.Stop()
	hubCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Fatalf("Server forced to shutdown: %v", err)
	}

	if err := rdb.Close(); err != nil {
		logrus.Errorf("Error closing Redis connection: %v", err)
	}

	logrus.Info("Server exited properly")
}

func initDatabase(cfg *config.Config) (*gorm.DB, error) {
	gormLogger := logger.Default.LogMode(logger.Info)
	if cfg.Server.Mode == "release" {
		gormLogger = logger.Default.LogMode(logger.Warn)
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Asset{},
		&models.Trade{},
	)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
