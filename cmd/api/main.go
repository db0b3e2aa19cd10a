package main

import (
	"context"
	"os"
	"strconv"
	"time"

	_ "retailpos/api/swagger" // swagger docs
	"retailpos/internal/database"
	"retailpos/internal/handler"
	"retailpos/internal/middleware"
	"retailpos/internal/repository"
	"retailpos/internal/service"
	"retailpos/internal/websocket"
	"retailpos/pkg/clock"
	"retailpos/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// @title           Retail POS Stock Engine API
// @version         1.0
// @description     Batch-based inventory allocation and consistency engine for a retail POS.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Running without a .env file is fine in containers
	_ = godotenv.Load("configs/.env")

	log := logger.New(logger.Config{
		Env:   envOr("APP_ENV", "development"),
		Level: envOr("LOG_LEVEL", "info"),
	})

	dsn := "postgres://" + envOr("DB_USER", "postgres") +
		":" + envOr("DB_PASSWORD", "postgres") +
		"@" + envOr("DB_HOST", "localhost") +
		":" + envOr("DB_PORT", "5432") +
		"/" + envOr("DB_NAME", "postgres") +
		"?sslmode=" + envOr("DB_SSLMODE", "disable")

	db, err := database.NewConnection(dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	log.Info().Msg("connected to PostgreSQL")

	cfg := service.Config{
		ExpiryWarningDays:   envIntOr("EXPIRY_WARNING_DAYS", 30),
		ReturnWindowHours:   envIntOr("RETURN_WINDOW_HOURS", 24),
		AllowRestockExpired: envOr("ALLOW_RESTOCK_EXPIRED", "false") == "true",
		LockTimeoutMS:       envIntOr("LOCK_TIMEOUT_MS", 3000),
	}

	// Set up WebSocket Hub
	wsHub := websocket.NewHub()
	go wsHub.Run()

	clk := clock.System{}

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	productRepo := repository.NewProductRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	saleRepo := repository.NewSaleRepository(db)
	supplierRepo := repository.NewSupplierRepository(db)
	poRepo := repository.NewPurchaseOrderRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	invTxRepo := repository.NewInventoryTxRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	statsRepo := repository.NewStatsRepository(db)

	reconciler := service.NewReconcileService(txManager, productRepo, batchRepo, auditRepo, log, clk, cfg)
	productService := service.NewProductService(txManager, productRepo, auditRepo, log)
	batchService := service.NewBatchService(txManager, batchRepo, productRepo, supplierRepo, poRepo, invTxRepo, auditRepo, reconciler, wsHub, log, clk, cfg)
	allocationService := service.NewAllocationService(txManager, batchRepo, productRepo, saleRepo, walletRepo, invTxRepo, auditRepo, reconciler, wsHub, log, clk, cfg)
	returnService := service.NewReturnService(txManager, saleRepo, batchRepo, productRepo, walletRepo, invTxRepo, auditRepo, reconciler, wsHub, log, clk, cfg)
	ledgerService := service.NewLedgerService(invTxRepo, auditRepo, walletRepo, statsRepo)

	// Initialize Handlers
	productHandler := handler.NewProductHandler(productService, batchService, reconciler)
	batchHandler := handler.NewBatchHandler(batchService)
	saleHandler := handler.NewSaleHandler(allocationService, returnService)
	ledgerHandler := handler.NewLedgerHandler(ledgerService)
	maintenanceHandler := handler.NewMaintenanceHandler(reconciler)

	// Periodic resync: statuses drift as time passes (lots expire overnight
	// with no write touching them), so the reconciler runs on a ticker.
	maintenanceInterval := envIntOr("MAINTENANCE_INTERVAL_MINUTES", 60)
	maintenancePrune := envOr("MAINTENANCE_PRUNE", "false") == "true"
	if maintenanceInterval > 0 {
		go func() {
			ticker := time.NewTicker(time.Duration(maintenanceInterval) * time.Minute)
			defer ticker.Stop()
			for range ticker.C {
				if err := reconciler.ReconcileAll(context.Background()); err != nil {
					log.Error().Err(err).Msg("scheduled reconcile failed")
				}
				if maintenancePrune {
					if _, err := reconciler.PruneEmptyBatches(context.Background(), nil); err != nil {
						log.Error().Err(err).Msg("scheduled prune failed")
					}
				}
			}
		}()
	}

	// Set up Gin Router
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173", "http://localhost:5174"} // Frontend URL
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, middleware.GetJWTSecret())
	})

	// Register API Routes
	productHandler.RegisterRoutes(router.Group(""))
	batchHandler.RegisterRoutes(router.Group(""))
	saleHandler.RegisterRoutes(router.Group(""))
	ledgerHandler.RegisterRoutes(router.Group(""))
	maintenanceHandler.RegisterRoutes(router.Group(""))

	port := envOr("PORT", "8080")
	log.Info().Str("port", port).Msg("server listening")
	if err := router.Run(":" + port); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}
