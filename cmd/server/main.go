package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shop_ledger/internal/config"
	"shop_ledger/internal/database"
	"shop_ledger/internal/handlers"
	"shop_ledger/internal/migrations"
	"shop_ledger/internal/redis"
	"shop_ledger/internal/repository"
	"shop_ledger/internal/services"
	"shop_ledger/pkg/whatsapp"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	// Initialize database
	db, err := database.Initialize(cfg.DatabaseURL, database.Options{
		LogLevel:     cfg.DBLogLevel,
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
	})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	if err := migrations.RunMigrations(db); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize Redis
	redisClient, err := redis.Initialize(cfg.RedisURL, time.Duration(cfg.ReportCacheTTL)*time.Second)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer redisClient.Close()

	// Receipts go out over WhatsApp only when enabled
	notifier := services.NewNopNotifier()
	if cfg.NotifyEnabled && cfg.WhatsAppAPIURL == "" {
		log.Println("NOTIFY_ENABLED is set but WHATSAPP_API_URL is empty, receipts are disabled")
	} else if cfg.NotifyEnabled {
		whatsappClient := whatsapp.NewClient(cfg.WhatsAppAPIURL, cfg.WhatsAppUsername, cfg.WhatsAppPassword, cfg.WhatsAppPath, cfg.WhatsAppCountry)
		notifier = services.NewWhatsAppNotifier(whatsappClient, 15*time.Second)
	}
	if cfg.AdminKeyHash == "" {
		log.Println("ADMIN_KEY_HASH not set, only order owners can act on orders")
	}

	// Initialize services
	uow := repository.NewUnitOfWork(db)
	policy := services.NewAuthorizationPolicy(cfg.AdminKeyHash)
	orderService := services.NewOrderService(uow, policy, redisClient, notifier, services.OrderServiceOptions{
		StrictStock: cfg.StrictStock,
	})
	ledgerService := services.NewLedgerService(uow, redisClient, nil)

	// Initialize handlers
	apiHandler := handlers.NewAPIHandler(orderService, ledgerService,
		handlers.HealthCheck{Name: "database", Check: uow.Ping},
		handlers.HealthCheck{Name: "redis", Check: redisClient.Ping},
	)

	router := gin.Default()
	apiHandler.Register(router)

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
}
