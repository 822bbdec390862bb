package commerce

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageza/storefront-assistant/backend/internal/logging"
)

const productJSON = `{
  "id": "gid://shopify/Product/1",
  "handle": "trail-runner",
  "title": "Trail Runner",
  "description": "Grippy shoes",
  "vendor": "Acme",
  "productType": "Shoes",
  "onlineStoreUrl": "https://acme.example/products/trail-runner",
  "featuredImage": {"url": "https://cdn.example/trail.jpg"},
  "priceRangeV2": {"minVariantPrice": {"amount": "129.0", "currencyCode": "USD"}},
  "variants": {"edges": [
    {"node": {"id": "gid://shopify/ProductVariant/10", "title": "8", "price": "129.00", "availableForSale": false, "inventoryQuantity": 0}},
    {"node": {"id": "gid://shopify/ProductVariant/11", "title": "9", "price": "129.00", "availableForSale": true, "inventoryQuantity": 4}}
  ]}
}`

type capturedRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

// newShopifyStub answers each GraphQL operation with the body registered for
// the first keyword found in the query text.
func newShopifyStub(t *testing.T, responses map[string]string, captured *[]capturedRequest) *ShopifyClient {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "shpat_test", r.Header.Get("X-Shopify-Access-Token"))
		assert.Equal(t, http.MethodPost, r.Method)

		var req capturedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if captured != nil {
			*captured = append(*captured, req)
		}

		for keyword, body := range responses {
			if strings.Contains(req.Query, keyword) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(body))
				return
			}
		}
		w.WriteHeader(http.StatusBadRequest)
	}))
	t.Cleanup(ts.Close)

	return NewShopifyClient("acme.myshopify.com", "shpat_test", "2024-10", logging.Discard(), WithEndpoint(ts.URL))
}

func TestShopifySearchProducts(t *testing.T) {
	var captured []capturedRequest
	client := newShopifyStub(t, map[string]string{
		"SearchProducts": `{"data": {"products": {"edges": [{"node": ` + productJSON + `}]}}}`,
	}, &captured)

	products, err := client.SearchProducts(context.Background(), `trail "runner"`, 3)
	require.NoError(t, err)
	require.Len(t, products, 1)

	p := products[0]
	assert.Equal(t, "Trail Runner", p.Title)
	assert.Equal(t, Money{Amount: 12900, Currency: "USD"}, p.Price)
	assert.Equal(t, "https://cdn.example/trail.jpg", p.ImageURL)
	require.Len(t, p.Variants, 2)

	v, ok := p.FirstAvailableVariant()
	require.True(t, ok)
	assert.Equal(t, "gid://shopify/ProductVariant/11", v.ID)

	require.Len(t, captured, 1)
	assert.Equal(t, "trail  runner  status:active", captured[0].Variables["query"])
	assert.Equal(t, float64(3), captured[0].Variables["first"])
}

func TestShopifyGetProductNotFound(t *testing.T) {
	var captured []capturedRequest
	client := newShopifyStub(t, map[string]string{
		"GetProduct": `{"data": {"product": null}}`,
	}, &captured)

	_, err := client.GetProduct(context.Background(), "42")
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.Equal(t, "gid://shopify/Product/42", captured[0].Variables["id"])
}

func TestShopifyCreateCheckout(t *testing.T) {
	var captured []capturedRequest
	client := newShopifyStub(t, map[string]string{
		"draftOrderCreate": `{"data": {"draftOrderCreate": {
			"draftOrder": {"id": "gid://shopify/DraftOrder/7", "invoiceUrl": "https://acme.example/invoices/7",
				"totalPriceSet": {"shopMoney": {"amount": "258.00", "currencyCode": "USD"}}},
			"userErrors": []}}}`,
	}, &captured)

	checkout, err := client.CreateCheckout(context.Background(), CheckoutRequest{
		Lines: []CartLine{{VariantID: "gid://shopify/ProductVariant/11", Quantity: 2}},
		Email: "sam@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://acme.example/invoices/7", checkout.URL)
	assert.Equal(t, int64(25800), checkout.Total.Amount)

	input := captured[0].Variables["input"].(map[string]interface{})
	assert.Equal(t, "sam@example.com", input["email"])
	lines := input["lineItems"].([]interface{})
	require.Len(t, lines, 1)
	assert.Equal(t, float64(2), lines[0].(map[string]interface{})["quantity"])
}

func TestShopifyCreateCheckoutUserErrors(t *testing.T) {
	client := newShopifyStub(t, map[string]string{
		"draftOrderCreate": `{"data": {"draftOrderCreate": {"draftOrder": null,
			"userErrors": [{"field": ["lineItems"], "message": "Variant is invalid"}]}}}`,
	}, nil)

	_, err := client.CreateCheckout(context.Background(), CheckoutRequest{
		Lines: []CartLine{{VariantID: "bogus", Quantity: 1}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Variant is invalid")

	_, err = client.CreateCheckout(context.Background(), CheckoutRequest{})
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestShopifyGetOrder(t *testing.T) {
	var captured []capturedRequest
	client := newShopifyStub(t, map[string]string{
		"FindOrder": `{"data": {"orders": {"edges": [{"node": {
			"id": "gid://shopify/Order/5", "name": "#1001", "email": "Sam@Example.com",
			"createdAt": "2024-05-01T10:00:00Z",
			"displayFinancialStatus": "PAID", "displayFulfillmentStatus": "PARTIALLY_FULFILLED",
			"totalPriceSet": {"shopMoney": {"amount": "42.50", "currencyCode": "USD"}},
			"fulfillments": [{"trackingInfo": [{"company": "UPS", "number": "1Z999", "url": "https://ups.example/1Z999"}]}]
		}}]}}}`,
	}, &captured)

	order, err := client.GetOrder(context.Background(), "#1001", "sam@example.com")
	require.NoError(t, err)
	assert.Equal(t, "#1001", order.Number)
	assert.Equal(t, "paid", order.FinancialStatus)
	assert.Equal(t, "partially fulfilled", order.FulfillmentStatus)
	require.Len(t, order.Tracking, 1)
	assert.Equal(t, "1Z999", order.Tracking[0].Number)
	assert.Equal(t, 2024, order.CreatedAt.Year())
	assert.Equal(t, "name:#1001", captured[0].Variables["query"])

	_, err = client.GetOrder(context.Background(), "1001", "someone@else.com")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	// without an email the store is never asked
	_, err = client.GetOrder(context.Background(), "1001", "")
	assert.ErrorIs(t, err, ErrOrderNotFound)
	assert.Len(t, captured, 2)
}

func TestShopifyGetOrderMissing(t *testing.T) {
	client := newShopifyStub(t, map[string]string{
		"FindOrder": `{"data": {"orders": {"edges": []}}}`,
	}, nil)

	_, err := client.GetOrder(context.Background(), "9999", "sam@example.com")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = client.GetOrder(context.Background(), "", "sam@example.com")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestShopifyErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"errors":"bad token"}`, ErrUnauthorized},
		{"throttled status", http.StatusTooManyRequests, ``, ErrThrottled},
		{"throttled graphql", http.StatusOK, `{"errors":[{"message":"Throttled","extensions":{"code":"THROTTLED"}}]}`, ErrThrottled},
		{"server error", http.StatusBadGateway, ``, ErrPlatformUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			client := NewShopifyClient("acme.myshopify.com", "shpat_test", "2024-10", logging.Discard(), WithEndpoint(ts.URL))
			_, err := client.SearchProducts(context.Background(), "socks", 5)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestShopifyGraphQLErrorMessage(t *testing.T) {
	client := newShopifyStub(t, map[string]string{
		"SearchProducts": `{"errors":[{"message":"Field 'bogus' doesn't exist"}]}`,
	}, nil)

	_, err := client.SearchProducts(context.Background(), "socks", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "doesn't exist")
}
