package server

import (
	"os"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/rememory-app/backend/internal/handlers"
	"github.com/rememory-app/backend/internal/middleware"
)

type RouterConfig struct {
	AuthMiddleware      *middleware.AuthMiddleware
	RateLimit           *middleware.RateLimitMiddleware
	PersonaHandler      *handlers.PersonaHandler
	ChatHandler         *handlers.ChatHandler
	NotificationHandler *handlers.NotificationHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware("rememory-backend"))

	// Cors
	allowOrigins := []string{
		"http://localhost:80",
		"http://localhost:3000",
		"http://localhost:5174",
	}
	if raw := strings.TrimSpace(os.Getenv("CORS_ALLOW_ORIGINS")); raw != "" {
		allowOrigins = strings.Split(raw, ",")
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)

	// ===============
	// || Protected ||
	// ===============
	protected := router.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	// Persona
	protected.POST("/persona", cfg.PersonaHandler.Create)
	protected.GET("/persona", cfg.PersonaHandler.Get)
	protected.PUT("/persona/:id", cfg.PersonaHandler.Update)
	protected.DELETE("/persona/:id", cfg.PersonaHandler.Delete)
	protected.POST("/persona/:id/start", cfg.PersonaHandler.StartSession)
	// Chat
	protected.GET("/persona/:id/chat", cfg.ChatHandler.ListMessages)
	protected.POST("/persona/:id/chat", cfg.RateLimit.Limit(), cfg.ChatHandler.SendMessage)
	// Notifications
	protected.GET("/notifications", cfg.NotificationHandler.List)

	return router
}
