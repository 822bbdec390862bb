package api

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"

	"github.com/pageza/storefront-assistant/backend/internal/middleware"
	"github.com/pageza/storefront-assistant/backend/internal/service"
	"github.com/pageza/storefront-assistant/backend/internal/types"
)

const wsReadLimitBytes = 16 << 10

// wsError is sent in place of a reply when a message fails
type wsError struct {
	Error     string `json:"error"`
	SessionID string `json:"session_id,omitempty"`
}

// originPatterns turns allowed origins into websocket host patterns.
// nil means every origin is accepted.
func originPatterns(origins []string) []string {
	var patterns []string
	for _, o := range origins {
		if o == "*" {
			return nil
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
		} else {
			patterns = append(patterns, strings.TrimSuffix(o, "/"))
		}
	}
	return patterns
}

// Stream upgrades to a websocket and answers every JSON ChatRequest frame
// with a Reply frame. The session carries over between frames.
func (h *ChatHandler) Stream(c *gin.Context) {
	log := middleware.LoggerFrom(c)
	shop := shopFor(c, "")
	sessionID := c.Query("session_id")

	opts := &websocket.AcceptOptions{OriginPatterns: h.wsOrigins}
	if h.wsOrigins == nil {
		opts.InsecureSkipVerify = true
	}
	conn, err := websocket.Accept(c.Writer, c.Request, opts)
	if err != nil {
		log.WithError(err).Warn("[Chat] websocket upgrade failed")
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(wsReadLimitBytes)

	ctx := c.Request.Context()
	for {
		var req types.ChatRequest
		if err := wsjson.Read(ctx, conn, &req); err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				log.WithError(err).Debug("[Chat] websocket read ended")
			}
			return
		}

		if req.SessionID == "" {
			req.SessionID = sessionID
		}
		reqShop := shop
		if reqShop == "" {
			reqShop = req.Shop
		}

		if h.limiter != nil {
			allowed, _, _, err := h.limiter.IsAllowed(ctx, h.limitSubject(c, reqShop, req.SessionID))
			if err == nil && !allowed {
				if err := wsjson.Write(ctx, conn, wsError{Error: fmt.Sprintf("rate limit exceeded, %d messages per minute", h.limiter.Limit()), SessionID: req.SessionID}); err != nil {
					return
				}
				continue
			}
		}

		reply, err := h.assistant.HandleMessage(ctx, service.ChatInput{
			ShopDomain: reqShop,
			SessionID:  req.SessionID,
			Message:    req.Message,
		})
		if err != nil {
			status := statusFor(err)
			if status >= 500 {
				log.WithError(err).Error("[Chat] websocket message failed")
			}
			if err := wsjson.Write(ctx, conn, wsError{Error: errorMessage(err, status), SessionID: req.SessionID}); err != nil {
				return
			}
			continue
		}

		sessionID = reply.SessionID
		if err := wsjson.Write(ctx, conn, reply); err != nil {
			return
		}
	}
}
