package commerce

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pageza/storefront-assistant/backend/internal/logging"
	"github.com/pageza/storefront-assistant/backend/internal/models"
	"github.com/pageza/storefront-assistant/backend/internal/testhelpers"
)

const testShop = "acme.myshopify.com"

func seedCatalog(t *testing.T, db *gorm.DB) *LocalCatalog {
	t.Helper()
	catalog := NewLocalCatalog(db, HashEmbedder{}, testShop, "https://shop.example/", logging.Discard())
	ctx := context.Background()

	products := []models.Product{
		{Handle: "trail-runner", Title: "Trail Runner", Description: "Lightweight running shoes with a grippy sole", ProductType: "Shoes", Tags: models.JSONBStringArray{"running", "outdoor"}, PriceCents: 12900, Currency: "USD", InventoryQuantity: 10},
		{Handle: "wool-socks", Title: "Merino Wool Socks", Description: "Warm socks for hiking", ProductType: "Socks", Tags: models.JSONBStringArray{"hiking"}, PriceCents: 1800, Currency: "USD", InventoryQuantity: 50},
		{Handle: "rain-jacket", Title: "Rain Jacket", Description: "Packable waterproof shell for running in the rain", ProductType: "Outerwear", PriceCents: 8900, Currency: "USD", InventoryQuantity: 0},
	}
	for i := range products {
		require.NoError(t, catalog.SaveProduct(ctx, &products[i]))
	}
	return catalog
}

func TestLocalCatalogSearch(t *testing.T) {
	catalog := seedCatalog(t, testhelpers.NewSQLiteDB(t))
	ctx := context.Background()

	products, err := catalog.SearchProducts(ctx, "running shoes", 5)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Trail Runner", products[0].Title, "more matched terms rank first")
	assert.Equal(t, "https://shop.example/products/trail-runner", products[0].URL)
	assert.Equal(t, Money{Amount: 12900, Currency: "USD"}, products[0].Price)

	products, err = catalog.SearchProducts(ctx, "HIKING", 5)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Merino Wool Socks", products[0].Title)

	products, err = catalog.SearchProducts(ctx, "the", 2)
	require.NoError(t, err)
	assert.Len(t, products, 2, "stop-word only query lists the catalog")

	products, err = catalog.SearchProducts(ctx, "telescope", 5)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestLocalCatalogScopesByShop(t *testing.T) {
	db := testhelpers.NewSQLiteDB(t)
	seedCatalog(t, db)
	other := NewLocalCatalog(db, HashEmbedder{}, "other.myshopify.com", "https://other.example", logging.Discard())

	products, err := other.SearchProducts(context.Background(), "shoes", 5)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestLocalCatalogSaveProductUpdatesByHandle(t *testing.T) {
	db := testhelpers.NewSQLiteDB(t)
	catalog := seedCatalog(t, db)
	ctx := context.Background()

	updated := models.Product{Handle: "wool-socks", Title: "Merino Wool Socks", PriceCents: 1500, Currency: "USD", InventoryQuantity: 5}
	require.NoError(t, catalog.SaveProduct(ctx, &updated))

	var count int64
	require.NoError(t, db.Model(&models.Product{}).Where("handle = ?", "wool-socks").Count(&count).Error)
	assert.Equal(t, int64(1), count)

	p, err := catalog.GetProduct(ctx, updated.ID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(1500), p.Price.Amount)
}

func TestLocalCatalogGetProductNotFound(t *testing.T) {
	catalog := seedCatalog(t, testhelpers.NewSQLiteDB(t))

	_, err := catalog.GetProduct(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ErrProductNotFound)

	_, err = catalog.GetProduct(context.Background(), "00000000-0000-0000-0000-000000000001")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestLocalCatalogCheckoutAndOrderLookup(t *testing.T) {
	catalog := seedCatalog(t, testhelpers.NewSQLiteDB(t))
	ctx := context.Background()

	found, err := catalog.SearchProducts(ctx, "socks", 1)
	require.NoError(t, err)
	require.Len(t, found, 1)
	socks := found[0]

	var cart Cart
	v, ok := socks.FirstAvailableVariant()
	require.True(t, ok)
	cart.Add(socks, v, 3)
	// a tampered cart price must not reach the order total
	cart.Lines[0].UnitPrice.Amount = 1

	checkout, err := catalog.CreateCheckout(ctx, CheckoutRequest{Lines: cart.Lines, Email: "sam@example.com"})
	require.NoError(t, err)
	assert.Equal(t, int64(5400), checkout.Total.Amount)
	assert.Contains(t, checkout.URL, "https://shop.example/checkout/")

	second, err := catalog.CreateCheckout(ctx, CheckoutRequest{Lines: cart.Lines, Email: "ana@example.com"})
	require.NoError(t, err)
	assert.NotEqual(t, checkout.ID, second.ID)

	order, err := catalog.GetOrder(ctx, "#1001", "SAM@example.com")
	require.NoError(t, err)
	assert.Equal(t, "#1001", order.Number)
	assert.Equal(t, models.OrderStatusPending, order.FinancialStatus)
	assert.Empty(t, order.Tracking)

	order, err = catalog.GetOrder(ctx, "1002", "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, "#1002", order.Number)

	// the order number alone is not enough
	_, err = catalog.GetOrder(ctx, "1002", "")
	assert.ErrorIs(t, err, ErrOrderNotFound)
	_, err = catalog.GetOrder(ctx, "1002", "   ")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = catalog.GetOrder(ctx, "1001", "mallory@example.com")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = catalog.GetOrder(ctx, "abc", "")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestLocalCatalogCheckoutRetriesTakenOrderNumber(t *testing.T) {
	db := testhelpers.NewSQLiteDB(t)
	catalog := seedCatalog(t, db)
	ctx := context.Background()

	// another checkout grabs the allocated number right before the insert
	attempts := 0
	err := db.Callback().Create().Before("gorm:create").Register("test:take_number", func(tx *gorm.DB) {
		order, ok := tx.Statement.Dest.(*models.Order)
		if !ok || order.Email != "sam@example.com" {
			return
		}
		attempts++
		if attempts > 1 {
			return
		}
		tx.AddError(tx.Session(&gorm.Session{NewDB: true}).Create(&models.Order{
			ShopDomain:        testShop,
			Number:            order.Number,
			Email:             "other@example.com",
			FinancialStatus:   models.OrderStatusPending,
			FulfillmentStatus: models.FulfillmentUnfulfilled,
			Currency:          "USD",
		}).Error)
	})
	require.NoError(t, err)

	found, err := catalog.SearchProducts(ctx, "socks", 1)
	require.NoError(t, err)
	require.Len(t, found, 1)
	v, ok := found[0].FirstAvailableVariant()
	require.True(t, ok)

	checkout, err := catalog.CreateCheckout(ctx, CheckoutRequest{
		Lines: []CartLine{{VariantID: v.ID, Quantity: 1}},
		Email: "sam@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, int64(1800), checkout.Total.Amount)

	order, err := catalog.GetOrder(ctx, "1001", "sam@example.com")
	require.NoError(t, err)
	assert.Equal(t, checkout.ID, order.ID)
}

func TestLocalCatalogCheckoutRejectsOutOfStock(t *testing.T) {
	catalog := seedCatalog(t, testhelpers.NewSQLiteDB(t))
	ctx := context.Background()

	found, err := catalog.SearchProducts(ctx, "rain jacket", 1)
	require.NoError(t, err)
	require.Len(t, found, 1)

	_, err = catalog.CreateCheckout(ctx, CheckoutRequest{Lines: []CartLine{{VariantID: found[0].ID, Quantity: 1}}})
	assert.ErrorIs(t, err, ErrOutOfStock)

	_, err = catalog.CreateCheckout(ctx, CheckoutRequest{})
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestLocalCatalogPostgresSimilaritySearch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	catalog := seedCatalog(t, testhelpers.SetupTestDatabase(t))

	products, err := catalog.SearchProducts(context.Background(), "running shoes", 5)
	require.NoError(t, err)
	require.NotEmpty(t, products)
	assert.Equal(t, "Trail Runner", products[0].Title)
}
