package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pageza/storefront-assistant/backend/internal/middleware"
	"github.com/pageza/storefront-assistant/backend/internal/service"
	"github.com/pageza/storefront-assistant/backend/internal/types"
)

const archiveLinkTTL = 15 * time.Minute

// AdminHandler serves the merchant panel. Every route runs behind
// AuthMiddleware and is scoped to the shop named by the session token.
type AdminHandler struct {
	shops       *service.ShopService
	transcripts *service.TranscriptService
	tokens      middleware.TokenValidator
	limiter     *middleware.RateLimiter
}

// NewAdminHandler creates the admin handler; limiter may be nil
func NewAdminHandler(shops *service.ShopService, transcripts *service.TranscriptService, tokens middleware.TokenValidator, limiter *middleware.RateLimiter) *AdminHandler {
	return &AdminHandler{shops: shops, transcripts: transcripts, tokens: tokens, limiter: limiter}
}

func (h *AdminHandler) RegisterRoutes(router *gin.RouterGroup) {
	admin := router.Group("/admin")
	admin.Use(middleware.AuthMiddleware(h.tokens))
	if h.limiter != nil {
		admin.Use(h.limiter.RateLimitMiddleware(middleware.ClientKey))
	}
	{
		admin.GET("/shop", h.GetShop)
		admin.POST("/shop", h.InstallShop)
		admin.DELETE("/shop", h.UninstallShop)
		admin.GET("/conversations", h.ListConversations)
		admin.GET("/conversations/:session_id", h.GetConversation)
		admin.POST("/conversations/:session_id/archive", h.ArchiveConversation)
	}
}

func tokenShop(c *gin.Context) string {
	return c.GetString(middleware.ShopDomainKey)
}

// GetShop returns the shop the token was issued for
func (h *AdminHandler) GetShop(c *gin.Context) {
	shop, err := h.shops.Get(c.Request.Context(), tokenShop(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, shop)
}

// InstallShop stores the shop's Admin API token. The domain always comes
// from the session token; a different domain in the body is rejected.
func (h *AdminHandler) InstallShop(c *gin.Context) {
	var req service.InstallShopRequest
	req.Domain = tokenShop(c)
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	want, err := service.NormalizeShopDomain(tokenShop(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if got, err := service.NormalizeShopDomain(req.Domain); err != nil || got != want {
		c.JSON(http.StatusForbidden, gin.H{"error": "token does not belong to this shop"})
		return
	}

	shop, err := h.shops.Install(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, shop)
}

// UninstallShop removes the shop and its stored token
func (h *AdminHandler) UninstallShop(c *gin.Context) {
	if err := h.shops.Uninstall(c.Request.Context(), tokenShop(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListConversations pages through the shop's conversations
func (h *AdminHandler) ListConversations(c *gin.Context) {
	var q types.ListConversationsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	summaries, err := h.transcripts.ListConversations(c.Request.Context(), tokenShop(c), q.Limit, q.Offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": summaries})
}

// GetConversation returns every message of one conversation
func (h *AdminHandler) GetConversation(c *gin.Context) {
	messages, err := h.transcripts.GetConversation(c.Request.Context(), tokenShop(c), c.Param("session_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": c.Param("session_id"), "messages": messages})
}

// ArchiveConversation uploads the transcript to object storage
func (h *AdminHandler) ArchiveConversation(c *gin.Context) {
	key, err := h.transcripts.Archive(c.Request.Context(), tokenShop(c), c.Param("session_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	resp := types.ArchiveResponse{SessionID: c.Param("session_id"), Key: key}
	if url, err := h.transcripts.DownloadURL(c.Request.Context(), key, archiveLinkTTL); err != nil {
		middleware.LoggerFrom(c).WithError(err).Warn("[Admin] failed to sign transcript link")
	} else {
		resp.URL = url
	}
	c.JSON(http.StatusOK, resp)
}
