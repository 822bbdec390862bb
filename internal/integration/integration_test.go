package integration

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
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pageza/storefront-assistant/backend/config"
	"github.com/pageza/storefront-assistant/backend/internal/api"
	"github.com/pageza/storefront-assistant/backend/internal/commerce"
	"github.com/pageza/storefront-assistant/backend/internal/logging"
	"github.com/pageza/storefront-assistant/backend/internal/middleware"
	"github.com/pageza/storefront-assistant/backend/internal/mocks"
	"github.com/pageza/storefront-assistant/backend/internal/models"
	"github.com/pageza/storefront-assistant/backend/internal/server"
	"github.com/pageza/storefront-assistant/backend/internal/service"
	"github.com/pageza/storefront-assistant/backend/internal/testhelpers"
	"github.com/pageza/storefront-assistant/backend/internal/types"
)

const shop = "acme.myshopify.com"

var socks = commerce.Product{
	ID:     "gid://shopify/Product/1",
	Handle: "wool-socks",
	Title:  "Merino Wool Socks",
	Price:  commerce.Money{Amount: 1800, Currency: "USD"},
	Variants: []commerce.Variant{
		{ID: "gid://shopify/ProductVariant/11", Title: "Default Title", Price: commerce.Money{Amount: 1800, Currency: "USD"}, Available: true, InventoryQuantity: 7},
	},
}

type harness struct {
	router    *gin.Engine
	platform  *mocks.MockPlatform
	generator *mocks.MockGenerator
	archive   *mocks.MockObjectStore
	tokens    *mocks.MockTokenValidator
}

func setupHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testhelpers.NewSQLiteDB(t)
	log := logging.Discard()

	h := &harness{
		platform:  new(mocks.MockPlatform),
		generator: new(mocks.MockGenerator),
		archive:   new(mocks.MockObjectStore),
		tokens:    new(mocks.MockTokenValidator),
	}
	resolver := new(mocks.MockResolver)
	resolver.On("ForShop", mock.Anything, shop).Return(h.platform, nil)

	transcripts := service.NewTranscriptService(db, h.archive, log)
	sessions := service.NewMemorySessionStore(time.Hour, log)
	t.Cleanup(func() { sessions.Close() })

	assistant := service.NewAssistantService(service.AssistantDeps{
		Sessions:    sessions,
		Platforms:   resolver,
		Synthesizer: service.NewSynthesizer(h.generator, "Acme", 6, time.Second, log),
		Transcripts: transcripts,
	}, service.AssistantOptions{}, log)

	h.router = gin.New()
	h.router.Use(middleware.RequestLogger(log), middleware.ErrorHandler())
	require.NoError(t, api.RegisterRoutes(h.router, api.Dependencies{
		DB:          db,
		Assistant:   assistant,
		Shops:       service.NewShopService(db, nil, log),
		Transcripts: transcripts,
		Tokens:      h.tokens,
		AIProvider:  "mock",
	}))
	return h
}

func (h *harness) chat(t *testing.T, sessionID, message string) service.Reply {
	t.Helper()
	body, _ := json.Marshal(types.ChatRequest{Shop: shop, SessionID: sessionID, Message: message})
	req := httptest.NewRequest(http.MethodPost, api.StorefrontPrefix+"/chat", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var reply service.Reply
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reply))
	return reply
}

func TestShoppingFlow(t *testing.T) {
	h := setupHarness(t)

	h.platform.On("SearchProducts", mock.Anything, "socks", 5).Return([]commerce.Product{socks}, nil).Once()
	h.platform.On("GetProduct", mock.Anything, socks.ID).Return(&socks, nil).Once()
	h.platform.On("CreateCheckout", mock.Anything, mock.MatchedBy(func(req commerce.CheckoutRequest) bool {
		return len(req.Lines) == 1 && req.Lines[0].VariantID == socks.Variants[0].ID && req.Lines[0].Quantity == 2
	})).Return(&commerce.Checkout{
		ID:    "cart-1",
		URL:   "https://acme.myshopify.com/cart/c/1",
		Total: commerce.Money{Amount: 3600, Currency: "USD"},
	}, nil).Once()
	h.generator.On("Generate", mock.Anything, mock.MatchedBy(func(req service.GenerationRequest) bool {
		return strings.Contains(req.Prompt, "Merino Wool Socks")
	})).Return("We have Merino Wool Socks for $18.00.", nil)
	h.generator.On("Generate", mock.Anything, mock.Anything).Return("Done!", nil)

	reply := h.chat(t, "", "do you have socks")
	assert.Equal(t, service.IntentSearch, reply.Intent)
	assert.Equal(t, "We have Merino Wool Socks for $18.00.", reply.Message)
	sessionID := reply.SessionID

	reply = h.chat(t, sessionID, "add two of the first one")
	assert.Equal(t, 2, reply.Cart.ItemCount)
	assert.Equal(t, commerce.Money{Amount: 3600, Currency: "USD"}, reply.Cart.Subtotal)

	reply = h.chat(t, sessionID, "checkout")
	assert.Equal(t, "https://acme.myshopify.com/cart/c/1", reply.CheckoutURL)
	assert.Contains(t, reply.Actions, service.ActionOpenCheckout)

	h.platform.AssertExpectations(t)
}

func TestPlatformOutage(t *testing.T) {
	h := setupHarness(t)
	h.platform.On("SearchProducts", mock.Anything, mock.Anything, mock.Anything).Return(nil, commerce.ErrPlatformUnavailable)

	reply := h.chat(t, "", "show me socks")
	assert.Equal(t, commerce.ErrPlatformUnavailable.Error(), reply.Error)
	assert.NotEmpty(t, reply.Message)
	h.generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestOrderStatus(t *testing.T) {
	h := setupHarness(t)
	h.generator.On("Generate", mock.Anything, mock.Anything).Return("", service.ErrEmptyGeneration)
	h.platform.On("GetOrder", mock.Anything, "1001", "shopper@example.com").Return(&commerce.Order{
		ID:                "gid://shopify/Order/9",
		Number:            "1001",
		FinancialStatus:   "paid",
		FulfillmentStatus: "fulfilled",
		Total:             commerce.Money{Amount: 3600, Currency: "USD"},
		Tracking:          []commerce.Tracking{{Company: "UPS", Number: "1Z999"}},
	}, nil).Once()

	reply := h.chat(t, "", "where is order #1001? my email is shopper@example.com")
	assert.Equal(t, service.IntentOrderStatus, reply.Intent)
	require.NotNil(t, reply.Order)
	assert.Contains(t, reply.Message, "1Z999", "template reply is used when generation fails")
	h.platform.AssertExpectations(t)
}

func TestArchiveConversation(t *testing.T) {
	h := setupHarness(t)
	h.generator.On("Generate", mock.Anything, mock.Anything).Return("Hello from Acme!", nil)
	h.tokens.On("ValidateToken", "merchant-token").Return(&types.SessionTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "42"},
		Dest:             "https://" + shop,
	}, nil)

	reply := h.chat(t, "", "hello")
	key := service.ArchiveKey(shop, reply.SessionID)
	h.archive.On("PutObject", mock.Anything, key, mock.MatchedBy(func(body []byte) bool {
		var transcript service.Transcript
		return json.Unmarshal(body, &transcript) == nil && len(transcript.Messages) == 2
	}), "application/json").Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/conversations/"+reply.SessionID+"/archive", nil)
	req.Header.Set("Authorization", "Bearer merchant-token")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	h.archive.AssertExpectations(t)
}

// TestPostgresCatalog runs the assembled server against pgvector
func TestPostgresCatalog(t *testing.T) {
	db := testhelpers.SetupTestDatabase(t)
	log := logging.Discard()

	catalog := commerce.NewLocalCatalog(db, commerce.HashEmbedder{}, shop, "https://shop.example", log)
	for _, p := range []models.Product{
		{Handle: "wool-socks", Title: "Merino Wool Socks", Description: "Warm hiking socks", PriceCents: 1800, Currency: "USD", InventoryQuantity: 4},
		{Handle: "rain-jacket", Title: "Rain Jacket", Description: "Waterproof shell", PriceCents: 18900, Currency: "USD", InventoryQuantity: 2},
	} {
		p := p
		require.NoError(t, catalog.SaveProduct(context.Background(), &p))
	}

	cfg := &config.Config{
		Environment:         config.Test,
		ServerHost:          "127.0.0.1",
		ServerPort:          "0",
		StoreName:           "Acme",
		LocalCatalogEnabled: true,
		SearchResultLimit:   5,
		SessionTTL:          time.Hour,
		AllowedOrigins:      []string{"*"},
	}
	srv, err := server.New(cfg, server.Backends{DB: db}, log)
	require.NoError(t, err)

	body, _ := json.Marshal(types.ChatRequest{Shop: shop, Message: "show me waterproof jackets"})
	req := httptest.NewRequest(http.MethodPost, api.StorefrontPrefix+"/chat", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var reply service.Reply
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reply))
	require.NotEmpty(t, reply.Products)
	assert.Equal(t, "Rain Jacket", reply.Products[0].Title)
}
