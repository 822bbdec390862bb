package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/pageza/storefront-assistant/backend/internal/database"
	"github.com/pageza/storefront-assistant/backend/internal/middleware"
	"github.com/pageza/storefront-assistant/backend/internal/service"
	"github.com/pageza/storefront-assistant/backend/internal/types"
)

// StorefrontPrefix is where the chat routes live
const StorefrontPrefix = "/api/v1/storefront"

// BreakerReporter lists the circuit breaker state per connected shop
type BreakerReporter interface {
	BreakerStates() map[string]string
}

// HealthHandler reports whether the backing services answer
type HealthHandler struct {
	db        *gorm.DB
	redis     *redis.Client
	ai        string
	platforms BreakerReporter
}

// NewHealthHandler creates the health handler; redisClient and platforms may be nil
func NewHealthHandler(db *gorm.DB, redisClient *redis.Client, aiProvider string, platforms BreakerReporter) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient, ai: aiProvider, platforms: platforms}
}

// HealthCheck returns 503 when the database is down. Redis and the AI
// provider are optional and only reported.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := types.HealthResponse{Status: "healthy", Database: "up", Redis: "disabled", AI: h.ai}
	if resp.AI == "" {
		resp.AI = "none"
	}
	status := http.StatusOK

	if err := database.HealthCheck(ctx, h.db); err != nil {
		middleware.LoggerFrom(c).WithError(err).Error("[Health] database check failed")
		resp.Status = "unhealthy"
		resp.Database = "down"
		status = http.StatusServiceUnavailable
	}
	if h.redis != nil {
		resp.Redis = "up"
		if err := h.redis.Ping(ctx).Err(); err != nil {
			resp.Redis = "down"
		}
	}
	if h.platforms != nil {
		resp.Platforms = h.platforms.BreakerStates()
	}
	c.JSON(status, resp)
}

// Dependencies are the services behind the HTTP API
type Dependencies struct {
	DB          *gorm.DB
	Redis       *redis.Client
	Assistant   *service.AssistantService
	Shops       *service.ShopService
	Transcripts *service.TranscriptService
	Tokens      middleware.TokenValidator
	// ChatLimiter may be nil
	ChatLimiter    *middleware.RateLimiter
	AdminLimiter   *middleware.RateLimiter
	AllowedOrigins []string
	ProxySecret    string
	AIProvider     string
	// Platforms may be nil
	Platforms BreakerReporter
}

// RegisterRoutes registers all API routes
func RegisterRoutes(router *gin.Engine, deps Dependencies) error {
	health := NewHealthHandler(deps.DB, deps.Redis, deps.AIProvider, deps.Platforms)
	router.GET("/health", health.HealthCheck)
	router.GET("/api/health", health.HealthCheck)

	widget, err := NewWidgetHandler(StorefrontPrefix)
	if err != nil {
		return err
	}
	widget.RegisterRoutes(router)

	storefront := router.Group(StorefrontPrefix)
	NewChatHandler(deps.Assistant, deps.ChatLimiter, deps.AllowedOrigins, deps.ProxySecret).RegisterRoutes(storefront)

	v1 := router.Group("/api/v1")
	NewAdminHandler(deps.Shops, deps.Transcripts, deps.Tokens, deps.AdminLimiter).RegisterRoutes(v1)
	return nil
}
