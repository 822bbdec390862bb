package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pageza/storefront-assistant/backend/internal/commerce"
	"github.com/pageza/storefront-assistant/backend/internal/logging"
	"github.com/pageza/storefront-assistant/backend/internal/middleware"
	"github.com/pageza/storefront-assistant/backend/internal/models"
	"github.com/pageza/storefront-assistant/backend/internal/service"
	"github.com/pageza/storefront-assistant/backend/internal/testhelpers"
)

const (
	testShop   = "acme.myshopify.com"
	testSecret = "test-secret"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeArchive struct {
	keys []string
}

func (a *fakeArchive) PutObject(_ context.Context, key string, _ []byte, _ string) error {
	a.keys = append(a.keys, key)
	return nil
}

type envOptions struct {
	noLocalCatalog bool
	noArchive      bool
	proxySecret    string
}

type testEnv struct {
	router  *gin.Engine
	db      *gorm.DB
	tokens  *middleware.SessionTokens
	archive *fakeArchive
}

// newTestEnv wires the API against SQLite with testShop served from a
// seeded local catalog
func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()
	db := testhelpers.NewSQLiteDB(t)
	log := logging.Discard()

	catalog := commerce.NewLocalCatalog(db, commerce.HashEmbedder{}, testShop, "https://shop.example", log)
	for _, p := range []models.Product{
		{Handle: "trail-runner", Title: "Trail Runner", Description: "Lightweight running shoes", PriceCents: 12900, Currency: "USD", InventoryQuantity: 10},
		{Handle: "wool-socks", Title: "Merino Wool Socks", Description: "Warm hiking socks", PriceCents: 1800, Currency: "USD", InventoryQuantity: 40},
	} {
		p := p
		require.NoError(t, catalog.SaveProduct(context.Background(), &p))
	}

	cipher, err := service.NewTokenCipher(strings.Repeat("ab", 32))
	require.NoError(t, err)
	shops := service.NewShopService(db, cipher, log)
	registry := service.NewPlatformRegistry(shops, db, commerce.HashEmbedder{}, service.RegistryOptions{
		LocalCatalogEnabled: !opts.noLocalCatalog,
		PublicBaseURL:       "https://shop.example",
	}, log)

	env := &testEnv{db: db, tokens: middleware.NewSessionTokens(testSecret)}
	var archive service.ObjectStore
	if !opts.noArchive {
		env.archive = &fakeArchive{}
		archive = env.archive
	}
	transcripts := service.NewTranscriptService(db, archive, log)

	sessions := service.NewMemorySessionStore(time.Hour, log)
	t.Cleanup(func() { sessions.Close() })

	assistant := service.NewAssistantService(service.AssistantDeps{
		Sessions:    sessions,
		Platforms:   registry,
		Transcripts: transcripts,
	}, service.AssistantOptions{MaxMessageLength: 200}, log)

	env.router = gin.New()
	env.router.Use(middleware.RequestLogger(log), middleware.ErrorHandler())
	require.NoError(t, RegisterRoutes(env.router, Dependencies{
		DB:          db,
		Assistant:   assistant,
		Shops:       shops,
		Transcripts: transcripts,
		Tokens:      env.tokens,
		ProxySecret: opts.proxySecret,
		AIProvider:  "none",
		Platforms:   registry,
	}))
	return env
}

func (e *testEnv) token(t *testing.T, shop string) string {
	t.Helper()
	token, err := e.tokens.Sign(shop, "1", time.Minute)
	require.NoError(t, err)
	return token
}

// PerformRequest sends body as JSON, with a bearer token when one is given
func PerformRequest(r http.Handler, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}
