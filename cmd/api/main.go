package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/releasedesk/backend/internal/config"
	"github.com/releasedesk/backend/internal/handlers"
	"github.com/releasedesk/backend/internal/models"
	"github.com/releasedesk/backend/internal/pkg/logger"
	"github.com/releasedesk/backend/internal/services"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.New()

	appLog, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLog.Sync()

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := models.InitDB(cfg, appLog)
	if err != nil {
		appLog.Fatal("Failed to initialize database", "error", err)
	}
	if err := models.Migrate(db); err != nil {
		appLog.Fatal("Failed to run migrations", "error", err)
	}

	redisClient := models.InitRedis(cfg, appLog)
	defer redisClient.Close()

	// Asset storage: S3-compatible bucket when configured, local disk otherwise
	var store services.ObjectStore
	if cfg.S3Enabled() {
		s3Store, err := services.NewS3Store(cfg)
		if err != nil {
			appLog.Fatal("Failed to init S3 storage", "error", err)
		}
		store = s3Store
		appLog.Info("Using S3 asset storage", "bucket", cfg.AssetsBucket)
	} else {
		store = services.NewLocalStore(cfg)
		appLog.Info("Using local asset storage", "path", cfg.LocalAssetsPath)
	}

	// Task generation: model-backed when a key is set, canned tasks otherwise
	var generator services.TaskGenerator = services.NewFallbackGenerator()
	if cfg.OpenAIAPIKey != "" {
		generator = services.NewAIGenerator(cfg)
		appLog.Info("Using AI task generator", "model", cfg.OpenAIModel)
	}

	var gateway services.PaymentGateway
	switch cfg.PaymentProvider {
	case "paypal":
		gateway, err = services.NewPayPalGateway(cfg)
		if err != nil {
			appLog.Fatal("Failed to init PayPal", "error", err)
		}
	default:
		gateway = services.NewStripeGateway(cfg)
	}

	authService := services.NewAuthService(db, services.NewRedisBlacklist(redisClient), cfg, appLog)
	fileService := services.NewFileService(db, cfg, store, appLog)
	campaignService := services.NewCampaignService(db, cfg, generator, appLog)

	router := handlers.NewRouter(cfg, appLog, db, redisClient, handlers.Services{
		Auth:         authService,
		Users:        services.NewUserService(db),
		Releases:     services.NewReleaseService(db, fileService, appLog),
		Tasks:        services.NewTaskService(db, appLog),
		Files:        fileService,
		Profiles:     services.NewProfileService(db, appLog),
		Campaigns:    campaignService,
		Reports:      services.NewReportService(cfg, campaignService),
		Subscription: services.NewSubscriptionService(db, gateway, appLog),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Periodic cleanup of expired refresh tokens
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := authService.CleanupExpiredTokens(ctx); err != nil {
					appLog.Warn("Refresh token cleanup failed", "error", err)
				}
			}
		}
	}()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  120 * time.Second, // large audio uploads
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		appLog.Info("Starting server", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal("Failed to start server", "error", err)
		}
	}()

	<-ctx.Done()
	appLog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("Server forced to shutdown", "error", err)
	}
	appLog.Info("Server exited")
	_ = os.Stdout.Sync()
}
