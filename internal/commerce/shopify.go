package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const maxResponseBytes = 4 << 20

// ShopifyClient talks to one shop through the Shopify Admin GraphQL API
type ShopifyClient struct {
	shopDomain  string
	accessToken string
	endpoint    string
	httpClient  *http.Client
	log         logrus.FieldLogger
}

// ShopifyOption customises a ShopifyClient
type ShopifyOption func(*ShopifyClient)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) ShopifyOption {
	return func(s *ShopifyClient) { s.httpClient = c }
}

// WithEndpoint overrides the GraphQL endpoint URL
func WithEndpoint(url string) ShopifyOption {
	return func(s *ShopifyClient) { s.endpoint = url }
}

// NewShopifyClient creates a client for shopDomain using an Admin API access token
func NewShopifyClient(shopDomain, accessToken, apiVersion string, log logrus.FieldLogger, opts ...ShopifyOption) *ShopifyClient {
	c := &ShopifyClient{
		shopDomain:  shopDomain,
		accessToken: accessToken,
		endpoint:    fmt.Sprintf("https://%s/admin/api/%s/graphql.json", shopDomain, apiVersion),
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		log:         log.WithField("shop", shopDomain),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements Platform
func (c *ShopifyClient) Name() string { return "shopify" }

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// do posts one GraphQL operation and decodes data into out
func (c *ShopifyClient) do(ctx context.Context, query string, vars map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.accessToken)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPlatformUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.log.WithFields(logrus.Fields{
		"status":  resp.StatusCode,
		"elapsed": time.Since(start).String(),
	}).Debug("[Shopify] graphql call")

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrThrottled
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrPlatformUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var gqlResp graphQLResponse
	if err := json.Unmarshal(respBody, &gqlResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if len(gqlResp.Errors) > 0 {
		msgs := make([]string, 0, len(gqlResp.Errors))
		for _, e := range gqlResp.Errors {
			if e.Extensions.Code == "THROTTLED" {
				return ErrThrottled
			}
			msgs = append(msgs, e.Message)
		}
		return fmt.Errorf("graphql error: %s", strings.Join(msgs, "; "))
	}

	if err := json.Unmarshal(gqlResp.Data, out); err != nil {
		return fmt.Errorf("failed to decode data: %w", err)
	}
	return nil
}

// SearchProducts implements Platform
func (c *ShopifyClient) SearchProducts(ctx context.Context, query string, limit int) ([]Product, error) {
	search := "status:active"
	if q := strings.TrimSpace(query); q != "" {
		search = fmt.Sprintf("%s %s", escapeSearch(q), search)
	}

	var data searchProductsData
	if err := c.do(ctx, searchProductsQuery, map[string]interface{}{
		"first": limit,
		"query": search,
	}, &data); err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}

	products := make([]Product, 0, len(data.Products.Edges))
	for _, edge := range data.Products.Edges {
		p, err := edge.Node.toProduct()
		if err != nil {
			c.log.WithError(err).WithField("product", edge.Node.ID).Warn("[Shopify] skipping product with bad price")
			continue
		}
		products = append(products, p)
	}
	return products, nil
}

// GetProduct implements Platform
func (c *ShopifyClient) GetProduct(ctx context.Context, id string) (*Product, error) {
	var data getProductData
	if err := c.do(ctx, getProductQuery, map[string]interface{}{
		"id": productGID(id),
	}, &data); err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if data.Product == nil {
		return nil, ErrProductNotFound
	}
	p, err := data.Product.toProduct()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateCheckout implements Platform by creating a draft order and returning its invoice URL
func (c *ShopifyClient) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	if len(req.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	lineItems := make([]map[string]interface{}, 0, len(req.Lines))
	for _, l := range req.Lines {
		lineItems = append(lineItems, map[string]interface{}{
			"variantId": l.VariantID,
			"quantity":  l.Quantity,
		})
	}
	input := map[string]interface{}{
		"lineItems": lineItems,
		"tags":      []string{"storefront-assistant"},
	}
	if req.Email != "" {
		input["email"] = req.Email
	}
	if req.Note != "" {
		input["note"] = req.Note
	}

	var data createCheckoutData
	if err := c.do(ctx, createCheckoutMutation, map[string]interface{}{"input": input}, &data); err != nil {
		return nil, fmt.Errorf("failed to create checkout: %w", err)
	}

	result := data.DraftOrderCreate
	if len(result.UserErrors) > 0 {
		msgs := make([]string, 0, len(result.UserErrors))
		for _, e := range result.UserErrors {
			msgs = append(msgs, e.Message)
		}
		return nil, fmt.Errorf("failed to create checkout: %s", strings.Join(msgs, "; "))
	}
	if result.DraftOrder == nil {
		return nil, fmt.Errorf("failed to create checkout: no draft order returned")
	}

	total, err := ParseMoney(result.DraftOrder.TotalPriceSet.ShopMoney.Amount, result.DraftOrder.TotalPriceSet.ShopMoney.CurrencyCode)
	if err != nil {
		return nil, err
	}
	return &Checkout{
		ID:    result.DraftOrder.ID,
		URL:   result.DraftOrder.InvoiceURL,
		Total: total,
	}, nil
}

// GetOrder implements Platform
func (c *ShopifyClient) GetOrder(ctx context.Context, number, email string) (*Order, error) {
	number = strings.TrimPrefix(strings.TrimSpace(number), "#")
	email = strings.TrimSpace(email)
	if number == "" || email == "" {
		return nil, ErrOrderNotFound
	}

	var data findOrderData
	if err := c.do(ctx, findOrderQuery, map[string]interface{}{
		"query": fmt.Sprintf("name:#%s", number),
	}, &data); err != nil {
		return nil, fmt.Errorf("failed to find order: %w", err)
	}
	if len(data.Orders.Edges) == 0 {
		return nil, ErrOrderNotFound
	}

	node := data.Orders.Edges[0].Node
	if !strings.EqualFold(email, node.Email) {
		return nil, ErrOrderNotFound
	}

	total, err := ParseMoney(node.TotalPriceSet.ShopMoney.Amount, node.TotalPriceSet.ShopMoney.CurrencyCode)
	if err != nil {
		return nil, err
	}
	created, _ := time.Parse(time.RFC3339, node.CreatedAt)

	order := &Order{
		ID:                node.ID,
		Number:            node.Name,
		Email:             node.Email,
		FinancialStatus:   humanizeStatus(node.DisplayFinancialStatus),
		FulfillmentStatus: humanizeStatus(node.DisplayFulfillmentStatus),
		Total:             total,
		CreatedAt:         created,
	}
	for _, f := range node.Fulfillments {
		for _, t := range f.TrackingInfo {
			order.Tracking = append(order.Tracking, Tracking{Company: t.Company, Number: t.Number, URL: t.URL})
		}
	}
	return order, nil
}

func (n productNode) toProduct() (Product, error) {
	currency := n.PriceRangeV2.MinVariantPrice.CurrencyCode
	price, err := ParseMoney(n.PriceRangeV2.MinVariantPrice.Amount, currency)
	if err != nil {
		return Product{}, err
	}

	p := Product{
		ID:          n.ID,
		Handle:      n.Handle,
		Title:       n.Title,
		Description: n.Description,
		Vendor:      n.Vendor,
		ProductType: n.ProductType,
		URL:         n.OnlineStoreURL,
		Price:       price,
	}
	if n.FeaturedImage != nil {
		p.ImageURL = n.FeaturedImage.URL
	}
	for _, edge := range n.Variants.Edges {
		vp, err := ParseMoney(edge.Node.Price, currency)
		if err != nil {
			return Product{}, err
		}
		p.Variants = append(p.Variants, Variant{
			ID:                edge.Node.ID,
			Title:             edge.Node.Title,
			Price:             vp,
			Available:         edge.Node.AvailableForSale,
			InventoryQuantity: edge.Node.InventoryQuantity,
		})
	}
	return p, nil
}

// productGID accepts a numeric id or a full gid
func productGID(id string) string {
	if strings.HasPrefix(id, "gid://") {
		return id
	}
	return "gid://shopify/Product/" + id
}

// escapeSearch strips characters with meaning in the Shopify search syntax
func escapeSearch(q string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '"', '\\', ':', '(', ')':
			return ' '
		}
		return r
	}, q)
}

// humanizeStatus turns PARTIALLY_FULFILLED into "partially fulfilled"
func humanizeStatus(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "_", " "))
}
