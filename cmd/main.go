package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rememory-app/backend/internal/clients/redis"
	"github.com/rememory-app/backend/internal/db"
	"github.com/rememory-app/backend/internal/handlers"
	"github.com/rememory-app/backend/internal/jobs"
	"github.com/rememory-app/backend/internal/logger"
	"github.com/rememory-app/backend/internal/middleware"
	"github.com/rememory-app/backend/internal/observability"
	"github.com/rememory-app/backend/internal/platform/sendgrid"
	"github.com/rememory-app/backend/internal/repos"
	"github.com/rememory-app/backend/internal/server"
	"github.com/rememory-app/backend/internal/services"
	"github.com/rememory-app/backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Tracing
	shutdownOtel := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "rememory-backend",
		Environment: os.Getenv("APP_ENV"),
		Version:     os.Getenv("APP_VERSION"),
	})
	if shutdownOtel != nil {
		defer func() { _ = shutdownOtel(context.Background()) }()
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	personaRepo := repos.NewPersonaRepo(thePG, log)
	messageRepo := repos.NewMessageRepo(thePG, log)
	summaryRepo := repos.NewSummaryRepo(thePG, log)
	notificationRepo := repos.NewNotificationRepo(thePG, log)
	deletionAuditRepo := repos.NewDeletionAuditRepo(thePG, log)

	// Clients
	log.Info("Setting up clients from main...")
	geminiClient, err := services.NewGeminiClient(log)
	if err != nil {
		log.Error("Could not init GeminiClient", "error", err)
		os.Exit(1)
	}
	mailer, err := sendgrid.NewFromEnv(log)
	if err != nil {
		log.Warn("SendGrid unavailable, notifications will be recorded undelivered", "error", err)
		mailer = nil
	}
	redisClient, err := redis.New(log)
	if err != nil {
		log.Warn("Redis unavailable, rate limiting falls back to in-process counters", "error", err)
		redisClient = nil
	}

	// Services
	log.Info("Setting up Services from main...")
	personaService := services.NewPersonaService(thePG, log, personaRepo, messageRepo, summaryRepo, deletionAuditRepo)
	timerService := services.NewTimerService(thePG, log, personaRepo)
	guidanceService := services.NewGuidanceService(thePG, log, personaRepo, messageRepo)
	conversationService := services.NewConversationService(thePG, log, messageRepo, summaryRepo, geminiClient)
	chatService := services.NewChatService(thePG, log, personaService, timerService, guidanceService, conversationService, geminiClient)
	notifierService := services.NewNotifierService(log, notificationRepo, mailer)

	// Jobs
	sweep := jobs.NewExpirationSweep(thePG, log, personaRepo, notifierService)
	sweep.Start(context.Background())

	// Handlers
	log.Info("Setting up handlers from main...")
	personaHandler := handlers.NewPersonaHandler(personaService, timerService)
	chatHandler := handlers.NewChatHandler(chatService)
	notificationHandler := handlers.NewNotificationHandler(notifierService)

	// Middleware
	log.Info("Setting up middleware from main...")
	authMiddleware := middleware.NewAuthMiddleware(log)
	rateLimit := middleware.NewRateLimitMiddleware(log, redisClient)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		AuthMiddleware:      authMiddleware,
		RateLimit:           rateLimit,
		PersonaHandler:      personaHandler,
		ChatHandler:         chatHandler,
		NotificationHandler: notificationHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Warn("Server failed", "error", err)
	}
}
