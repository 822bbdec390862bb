package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pageza/storefront-assistant/backend/config"
	"github.com/pageza/storefront-assistant/backend/internal/middleware"
	"github.com/pageza/storefront-assistant/backend/internal/service"
)

// statusFor maps service errors to HTTP statuses
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrEmptyMessage),
		errors.Is(err, service.ErrMessageTooLong),
		errors.Is(err, service.ErrMissingShop),
		errors.Is(err, service.ErrInvalidSession),
		errors.Is(err, service.ErrInvalidShopDomain),
		errors.Is(err, service.ErrMissingAccessToken):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrShopNotInstalled),
		errors.Is(err, service.ErrShopNotFound),
		errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrConversationNotFound):
		return http.StatusNotFound
	case errors.Is(err, config.ErrArchiveDisabled),
		errors.Is(err, service.ErrEncryptionNotEnabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage hides internal errors from clients
func errorMessage(err error, status int) string {
	if status == http.StatusInternalServerError {
		return "internal server error"
	}
	return err.Error()
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		middleware.LoggerFrom(c).WithError(err).Error("[API] request failed")
	}
	c.JSON(status, gin.H{"error": errorMessage(err, status)})
}
