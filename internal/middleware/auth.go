package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/pageza/storefront-assistant/backend/internal/types"
)

// Context keys set by the auth and proxy middleware
const (
	ShopDomainKey = "shop_domain"
	UserIDKey     = "user_id"
)

var (
	ErrMissingShopClaim = errors.New("token has no shop")
	ErrInvalidToken     = errors.New("invalid token")
)

// TokenValidator is an interface for validating session tokens
type TokenValidator interface {
	ValidateToken(token string) (*types.SessionTokenClaims, error)
}

// SessionTokens signs and validates HS256 session tokens with the app secret
type SessionTokens struct {
	secret []byte
	leeway time.Duration
}

// NewSessionTokens creates a validator for tokens signed with secret
func NewSessionTokens(secret string) *SessionTokens {
	return &SessionTokens{secret: []byte(secret), leeway: 5 * time.Second}
}

// ValidateToken implements TokenValidator
func (s *SessionTokens) ValidateToken(tokenString string) (*types.SessionTokenClaims, error) {
	claims := &types.SessionTokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithLeeway(s.leeway), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.ShopDomain() == "" {
		return nil, ErrMissingShopClaim
	}
	return claims, nil
}

// Sign issues a token for shop that expires after ttl. Used by chatctl and
// tests; in production the platform issues the tokens.
func (s *SessionTokens) Sign(shop, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := types.SessionTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://" + shop + "/admin",
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Dest: "https://" + shop,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// AuthMiddleware creates a middleware that validates session tokens and
// stores the shop they were issued for
func AuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			return
		}

		claims, err := validator.ValidateToken(parts[1])
		if err != nil {
			LoggerFrom(c).WithError(err).Warn("[Auth] rejected session token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session token"})
			return
		}

		c.Set(ShopDomainKey, claims.ShopDomain())
		c.Set(UserIDKey, claims.Subject)
		c.Next()
	}
}
