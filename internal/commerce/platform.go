// Package commerce is the thin client layer between the assistant and the
// store's commerce platform. Everything the assistant can do to a store goes
// through the Platform interface.
package commerce

import (
	"context"
	"errors"
	"time"
)

var (
	ErrProductNotFound     = errors.New("product not found")
	ErrOrderNotFound       = errors.New("order not found")
	ErrEmptyCart           = errors.New("cart is empty")
	ErrOutOfStock          = errors.New("product is out of stock")
	ErrUnauthorized        = errors.New("platform rejected the access token")
	ErrThrottled           = errors.New("platform rate limit reached")
	ErrPlatformUnavailable = errors.New("commerce platform unavailable")
)

// Platform is the set of commerce actions the assistant can perform
type Platform interface {
	Name() string
	SearchProducts(ctx context.Context, query string, limit int) ([]Product, error)
	GetProduct(ctx context.Context, id string) (*Product, error)
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)
	// GetOrder finds an order by its shop-facing number. email must match
	// the order's email; an empty email never matches.
	GetOrder(ctx context.Context, number, email string) (*Order, error)
}

// Product is a sellable item as the assistant sees it
type Product struct {
	ID          string    `json:"id"`
	Handle      string    `json:"handle"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Vendor      string    `json:"vendor,omitempty"`
	ProductType string    `json:"product_type,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	URL         string    `json:"url,omitempty"`
	Price       Money     `json:"price"`
	Variants    []Variant `json:"variants"`
}

// Variant is one purchasable option of a product
type Variant struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	Price             Money  `json:"price"`
	Available         bool   `json:"available"`
	InventoryQuantity int    `json:"inventory_quantity"`
}

// FirstAvailableVariant returns the first variant that can be bought
func (p Product) FirstAvailableVariant() (Variant, bool) {
	for _, v := range p.Variants {
		if v.Available {
			return v, true
		}
	}
	return Variant{}, false
}

// CheckoutRequest asks the platform for a payable checkout
type CheckoutRequest struct {
	Lines []CartLine `json:"lines"`
	Email string     `json:"email,omitempty"`
	Note  string     `json:"note,omitempty"`
}

// Checkout is a hosted checkout the shopper completes on the platform
type Checkout struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Total Money  `json:"total"`
}

// Order is the shopper-visible status of a placed order
type Order struct {
	ID                string     `json:"id"`
	Number            string     `json:"number"`
	Email             string     `json:"-"`
	FinancialStatus   string     `json:"financial_status"`
	FulfillmentStatus string     `json:"fulfillment_status"`
	Total             Money      `json:"total"`
	CreatedAt         time.Time  `json:"created_at"`
	Tracking          []Tracking `json:"tracking,omitempty"`
}

// Tracking is a shipment tracking reference
type Tracking struct {
	Company string `json:"company,omitempty"`
	Number  string `json:"number"`
	URL     string `json:"url,omitempty"`
}
