package service

import (
	"context"
	"strings"
	"sync"

	"github.com/pageza/storefront-assistant/backend/internal/commerce"
)

const testShopDomain = "acme.myshopify.com"

func usd(cents int64) commerce.Money {
	return commerce.Money{Amount: cents, Currency: "USD"}
}

func testProducts() []commerce.Product {
	return []commerce.Product{
		{ID: "p1", Title: "Trail Runner", Price: usd(12900), Variants: []commerce.Variant{{ID: "v1", Title: "Default", Price: usd(12900), Available: true}}},
		{ID: "p2", Title: "Merino Wool Socks", Price: usd(1800), Variants: []commerce.Variant{{ID: "v2", Title: "Default", Price: usd(1800), Available: true}}},
		{ID: "p3", Title: "Rain Jacket", Price: usd(8900), Variants: []commerce.Variant{{ID: "v3", Title: "Default", Price: usd(8900), Available: false}}},
	}
}

// fakePlatform is an in-memory commerce.Platform
type fakePlatform struct {
	mu           sync.Mutex
	products     []commerce.Product
	orders       map[string]*commerce.Order
	err          error
	checkouts    []commerce.CheckoutRequest
	orderLookups int
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		products: testProducts(),
		orders: map[string]*commerce.Order{
			"1001": {ID: "o1", Number: "#1001", Email: "sam@example.com", FinancialStatus: "paid", FulfillmentStatus: "fulfilled",
				Total: usd(4250), Tracking: []commerce.Tracking{{Company: "UPS", Number: "1Z999"}}},
		},
	}
}

func (f *fakePlatform) Name() string { return "fake" }

func (f *fakePlatform) SearchProducts(_ context.Context, query string, limit int) ([]commerce.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []commerce.Product
	for _, p := range f.products {
		title := strings.ToLower(p.Title)
		for _, word := range strings.Fields(strings.ToLower(query)) {
			if len(word) >= 3 && strings.Contains(title, strings.TrimSuffix(word, "s")) {
				out = append(out, p)
				break
			}
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakePlatform) GetProduct(_ context.Context, id string) (*commerce.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, p := range f.products {
		if p.ID == id {
			p := p
			return &p, nil
		}
	}
	return nil, commerce.ErrProductNotFound
}

func (f *fakePlatform) CreateCheckout(_ context.Context, req commerce.CheckoutRequest) (*commerce.Checkout, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(req.Lines) == 0 {
		return nil, commerce.ErrEmptyCart
	}
	f.mu.Lock()
	f.checkouts = append(f.checkouts, req)
	f.mu.Unlock()

	var total commerce.Money
	for _, l := range req.Lines {
		total = total.Add(l.LineTotal())
	}
	return &commerce.Checkout{ID: "chk_1", URL: "https://shop.example/checkout/chk_1", Total: total}, nil
}

func (f *fakePlatform) GetOrder(_ context.Context, number, email string) (*commerce.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.orderLookups++
	o, ok := f.orders[strings.TrimPrefix(number, "#")]
	if !ok || email == "" || !strings.EqualFold(email, o.Email) {
		return nil, commerce.ErrOrderNotFound
	}
	return o, nil
}

// staticResolver serves one platform for every shop
type staticResolver struct {
	platform commerce.Platform
	err      error
}

func (r staticResolver) ForShop(context.Context, string) (commerce.Platform, error) {
	return r.platform, r.err
}

// fakeGenerator records the last request and answers with text or err
type fakeGenerator struct {
	text  string
	err   error
	calls int
	last  GenerationRequest
}

func (g *fakeGenerator) Name() string { return "fake" }

func (g *fakeGenerator) Generate(_ context.Context, req GenerationRequest) (string, error) {
	g.calls++
	g.last = req
	return g.text, g.err
}

type recordedTurn struct {
	shop, session string
	messages      []Message
}

type fakeRecorder struct {
	mu    sync.Mutex
	turns []recordedTurn
	err   error
}

func (r *fakeRecorder) Record(_ context.Context, shop, session string, messages ...Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.turns = append(r.turns, recordedTurn{shop: shop, session: session, messages: messages})
	return nil
}
