package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pageza/storefront-assistant/backend/internal/commerce"
	"github.com/pageza/storefront-assistant/backend/internal/middleware"
	"github.com/pageza/storefront-assistant/backend/internal/service"
	"github.com/pageza/storefront-assistant/backend/internal/types"
)

// ChatHandler serves the storefront chat
type ChatHandler struct {
	assistant *service.AssistantService
	// limiter is nil when Redis is unavailable
	limiter     *middleware.RateLimiter
	wsOrigins   []string
	proxySecret string
}

// NewChatHandler creates the chat handler. allowedOrigins gates websocket
// upgrades the same way CORS gates requests.
func NewChatHandler(assistant *service.AssistantService, limiter *middleware.RateLimiter, allowedOrigins []string, proxySecret string) *ChatHandler {
	return &ChatHandler{
		assistant:   assistant,
		limiter:     limiter,
		wsOrigins:   originPatterns(allowedOrigins),
		proxySecret: proxySecret,
	}
}

func (h *ChatHandler) RegisterRoutes(router *gin.RouterGroup) {
	chat := router.Group("/chat")
	chat.Use(middleware.AppProxy(h.proxySecret))
	{
		chat.POST("", h.SendMessage)
		chat.GET("/ws", h.Stream)
		chat.GET("/:session_id", h.GetSession)
		chat.DELETE("/:session_id", h.ResetSession)
	}
}

// shopFor prefers the shop signed by the app proxy over the one the client
// claims
func shopFor(c *gin.Context, claimed string) string {
	if shop := c.GetString(middleware.ShopDomainKey); shop != "" {
		return shop
	}
	if claimed != "" {
		return claimed
	}
	return c.Query("shop")
}

func (h *ChatHandler) limitSubject(c *gin.Context, shop, sessionID string) string {
	if sessionID == "" {
		sessionID = c.ClientIP()
	}
	return strings.ToLower(shop) + ":" + sessionID
}

// SendMessage handles one shopper message
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req types.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	shop := shopFor(c, req.Shop)

	if h.limiter != nil && !h.limiter.Check(c, h.limitSubject(c, shop, req.SessionID)) {
		return
	}

	reply, err := h.assistant.HandleMessage(c.Request.Context(), service.ChatInput{
		ShopDomain: shop,
		SessionID:  req.SessionID,
		Message:    req.Message,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

// sessionResponse is a session as shown to the storefront panel
type sessionResponse struct {
	SessionID       string              `json:"session_id"`
	Messages        []service.Message   `json:"messages"`
	Cart            service.CartSummary `json:"cart"`
	LastResults     []commerce.Product  `json:"last_results,omitempty"`
	LastCheckoutURL string              `json:"last_checkout_url,omitempty"`
	UpdatedAt       time.Time           `json:"updated_at"`
	// MessagesRemaining is left out when rate limiting is off
	MessagesRemaining *int `json:"messages_remaining,omitempty"`
}

// GetSession returns the history and cart of a session
func (h *ChatHandler) GetSession(c *gin.Context) {
	session, err := h.assistant.GetSession(c.Request.Context(), shopFor(c, ""), c.Param("session_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	messages := session.Messages
	if messages == nil {
		messages = []service.Message{}
	}
	resp := sessionResponse{
		SessionID:       session.ID,
		Messages:        messages,
		Cart:            service.SummarizeCart(session.Cart),
		LastResults:     session.LastResults,
		LastCheckoutURL: session.LastCheckoutURL,
		UpdatedAt:       session.UpdatedAt,
	}
	if h.limiter != nil {
		remaining, _, err := h.limiter.GetRemainingRequests(c.Request.Context(), h.limitSubject(c, session.ShopDomain, session.ID))
		if err != nil {
			middleware.LoggerFrom(c).WithError(err).Warn("[Chat] failed to read rate limit")
		} else {
			resp.MessagesRemaining = &remaining
		}
	}
	c.JSON(http.StatusOK, resp)
}

// ResetSession forgets a session and its cart
func (h *ChatHandler) ResetSession(c *gin.Context) {
	if err := h.assistant.ResetSession(c.Request.Context(), shopFor(c, ""), c.Param("session_id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
