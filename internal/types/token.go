package types

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// SessionTokenClaims are the claims of a platform session token. The
// admin panel embedded in the merchant's dashboard sends one with every
// request; Dest names the shop it was issued for.
type SessionTokenClaims struct {
	jwt.RegisteredClaims
	Dest string `json:"dest"`
	Sid  string `json:"sid,omitempty"`
}

// ShopDomain is Dest without scheme or path
func (c *SessionTokenClaims) ShopDomain() string {
	d := strings.ToLower(strings.TrimSpace(c.Dest))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	if i := strings.Index(d, "/"); i >= 0 {
		d = d[:i]
	}
	return d
}
