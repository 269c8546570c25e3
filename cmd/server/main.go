package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/baminashop/backend/internal/api"
	"github.com/baminashop/backend/internal/auth"
	"github.com/baminashop/backend/internal/config"
	"github.com/baminashop/backend/internal/db"
	apperrors "github.com/baminashop/backend/internal/errors"
	"github.com/baminashop/backend/internal/health"
	"github.com/baminashop/backend/internal/logger"
	"github.com/baminashop/backend/internal/mailer"
	"github.com/baminashop/backend/internal/metrics"
	"github.com/baminashop/backend/internal/middleware"
	"github.com/baminashop/backend/internal/ratelimit"
	"github.com/baminashop/backend/internal/storage"
)

const version = "1.0.0"

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	logger.SetDefault(logger.New(os.Stdout, logger.ParseLevel(cfg.LogLevel), "server"))

	database, err := db.New(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	limiter, err := ratelimit.New(cfg.RedisAddr)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer limiter.Close()

	store, err := storage.New(&storage.Config{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		log.Fatalf("Failed to create storage client: %v", err)
	}
	if err := store.EnsureBucket(context.Background()); err != nil {
		log.Fatalf("Failed to ensure storage bucket: %v", err)
	}

	mailClient, err := mailer.New(&mailer.Config{
		APIKey:     cfg.SendGridAPIKey,
		Sender:     cfg.EmailSender,
		SenderName: cfg.EmailSenderName,
	})
	if err != nil {
		log.Fatalf("Failed to create mail client: %v", err)
	}

	userRepo := db.NewUserRepository(database)
	authService := auth.NewService(userRepo, mailClient, auth.Config{
		JWTSecret:       cfg.JWTSecret,
		FrontendBaseURL: cfg.FrontendBaseURL,
		ResetTokenTTL:   cfg.ResetTokenTTL,
	})
	authHandlers := auth.NewHandlers(authService, limiter)
	profileHandlers := api.NewProfileHandlers(store, userRepo)

	checker := health.NewChecker(&health.CheckerConfig{
		DB:      database.DB,
		Redis:   limiter.Client(),
		Storage: store.Ping,
		Version: version,
	})

	router := api.NewRouter(authHandlers, authService, profileHandlers, health.NewHandler(checker))

	handler := middleware.Chain(router,
		apperrors.RequestIDMiddleware,
		logger.LoggingMiddleware,
		logger.RecoveryMiddleware,
		middleware.CORS(cfg.CORSAllowedOrigins),
		metrics.Default().Middleware,
	)

	log.Printf("Starting server on %s", cfg.ServerAddr)
	if err := http.ListenAndServe(cfg.ServerAddr, handler); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
