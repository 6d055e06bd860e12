package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/skyrent/backend/docs"
	appconfig "github.com/skyrent/backend/internal/config"
	"github.com/skyrent/backend/internal/database"
	"github.com/skyrent/backend/internal/handlers"
	mW "github.com/skyrent/backend/internal/middleware"
	"github.com/skyrent/backend/internal/services"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title SkyRent Payments API
// @version 1.0
// @description Deposit and payment reconciliation API for the SkyRent platform
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")

	viper.BindEnv("processor.secret", "PROCESSOR_SECRET")
	viper.BindEnv("processor.checkout_base_url", "PROCESSOR_CHECKOUT_BASE_URL")
	viper.BindEnv("processor.signature_header", "PROCESSOR_SIGNATURE_HEADER")
	viper.BindEnv("notifier.queue", "NOTIFIER_QUEUE")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	processorCfg := appconfig.LoadProcessorConfig()
	if processorCfg.Secret == "" {
		log.Fatal("PROCESSOR_SECRET is required; unsigned notifications are always rejected")
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "SkyRent Payments API"
	docs.SwaggerInfo.Description = "Deposit and payment reconciliation API for the SkyRent platform"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	// Initialize services
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	notifier := services.NewNotifier(redisClient, appconfig.LoadNotifierConfig())
	verifier := services.NewSignatureVerifier(processorCfg)
	reconciliationService := services.NewReconciliationService(db, notifier)
	depositService := services.NewDepositService(db, processorCfg)
	webhookHandler := handlers.NewWebhookHandler(verifier, reconciliationService, processorCfg)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// Processor webhook, authenticated by signature rather than bearer token
	r.Post("/webhooks/payments", webhookHandler.HandleNotification)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Post("/deposits", depositService.CreateDeposit)
			r.Get("/deposits", depositService.ListDeposits)
			r.Get("/deposits/{txId}", depositService.GetDeposit)
			r.Get("/accounts/balance", depositService.AccountBalance)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
