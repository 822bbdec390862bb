package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestProxySignature(t *testing.T) {
	query := url.Values{
		"extra":       {"1", "2"},
		"shop":        {"shop-name.myshopify.com"},
		"path_prefix": {"/apps/awesome_reviews"},
		"timestamp":   {"1317327555"},
		"signature":   {"ignored"},
	}
	assert.Equal(t, "a9718877bea71c2484f91608a7eaea1532bdf71f5c56825065fa4ccabe549ef3", ProxySignature(query, "hush"))
}

func TestAppProxy(t *testing.T) {
	newRouter := func(secret string) *gin.Engine {
		router := gin.New()
		router.GET("/proxy", AppProxy(secret), func(c *gin.Context) {
			c.String(http.StatusOK, c.GetString(ShopDomainKey))
		})
		return router
	}

	signed := url.Values{"shop": {"Acme.myshopify.com"}, "timestamp": {"1700000000"}}
	signed.Set("signature", ProxySignature(signed, "hush"))

	tests := []struct {
		name   string
		secret string
		query  string
		status int
		body   string
	}{
		{name: "valid signature", secret: "hush", query: signed.Encode(), status: http.StatusOK, body: "acme.myshopify.com"},
		{name: "tampered shop", secret: "hush", query: signed.Encode() + "&shop=evil.myshopify.com", status: http.StatusUnauthorized},
		{name: "missing signature", secret: "hush", query: "shop=acme.myshopify.com", status: http.StatusUnauthorized},
		{name: "disabled", secret: "", query: "shop=acme.myshopify.com", status: http.StatusOK, body: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			newRouter(tt.secret).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/proxy?"+tt.query, nil))
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}
