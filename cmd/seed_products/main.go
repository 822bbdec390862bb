package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/pageza/storefront-assistant/backend/config"
	"github.com/pageza/storefront-assistant/backend/internal/commerce"
	"github.com/pageza/storefront-assistant/backend/internal/database"
	"github.com/pageza/storefront-assistant/backend/internal/logging"
	"github.com/pageza/storefront-assistant/backend/internal/models"
)

// seedFile is the layout of a -file catalog
type seedFile struct {
	Products []seedProduct `yaml:"products"`
}

type seedProduct struct {
	Handle      string   `yaml:"handle"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Vendor      string   `yaml:"vendor"`
	ProductType string   `yaml:"product_type"`
	Tags        []string `yaml:"tags"`
	Price       string   `yaml:"price"`
	Currency    string   `yaml:"currency"`
	Inventory   int      `yaml:"inventory"`
	ImageURL    string   `yaml:"image_url"`
}

var demoProducts = []models.Product{
	{Handle: "trail-runner", Title: "Trail Runner", Description: "Lightweight trail running shoes with a grippy outsole", Vendor: "Ridgeline", ProductType: "Shoes", Tags: []string{"running", "trail", "shoes"}, PriceCents: 12900, Currency: "USD", InventoryQuantity: 24},
	{Handle: "road-racer", Title: "Road Racer", Description: "Cushioned road running shoes for daily miles", Vendor: "Ridgeline", ProductType: "Shoes", Tags: []string{"running", "road", "shoes"}, PriceCents: 11500, Currency: "USD", InventoryQuantity: 18},
	{Handle: "rain-jacket", Title: "Storm Shell Rain Jacket", Description: "Waterproof breathable jacket that packs into its own pocket", Vendor: "Northpeak", ProductType: "Jackets", Tags: []string{"rain", "jacket", "waterproof"}, PriceCents: 18900, Currency: "USD", InventoryQuantity: 9},
	{Handle: "down-parka", Title: "Summit Down Parka", Description: "Warm 700-fill down parka for winter", Vendor: "Northpeak", ProductType: "Jackets", Tags: []string{"winter", "jacket", "down"}, PriceCents: 27900, Currency: "USD", InventoryQuantity: 0},
	{Handle: "wool-socks", Title: "Merino Wool Socks", Description: "Cushioned hiking socks that stay warm when wet", Vendor: "Trailhead", ProductType: "Socks", Tags: []string{"hiking", "socks", "wool"}, PriceCents: 1800, Currency: "USD", InventoryQuantity: 120},
	{Handle: "day-pack", Title: "Daylight 22L Pack", Description: "Light day pack with a hydration sleeve", Vendor: "Trailhead", ProductType: "Bags", Tags: []string{"hiking", "backpack"}, PriceCents: 8900, Currency: "USD", InventoryQuantity: 30},
	{Handle: "water-bottle", Title: "Insulated Water Bottle", Description: "Keeps drinks cold for 24 hours", Vendor: "Trailhead", ProductType: "Accessories", Tags: []string{"bottle", "hydration"}, PriceCents: 3200, Currency: "USD", InventoryQuantity: 75},
	{Handle: "headlamp", Title: "Beacon Headlamp", Description: "Rechargeable 400 lumen headlamp", Vendor: "Lumen Co", ProductType: "Accessories", Tags: []string{"light", "camping"}, PriceCents: 4500, Currency: "USD", InventoryQuantity: 40},
}

func loadProducts(path string) ([]models.Product, error) {
	if path == "" {
		return demoProducts, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	products := make([]models.Product, 0, len(file.Products))
	for _, p := range file.Products {
		if p.Currency == "" {
			p.Currency = "USD"
		}
		price, err := commerce.ParseMoney(p.Price, p.Currency)
		if err != nil {
			return nil, fmt.Errorf("product %s: %w", p.Handle, err)
		}
		products = append(products, models.Product{
			Handle:            p.Handle,
			Title:             p.Title,
			Description:       p.Description,
			Vendor:            p.Vendor,
			ProductType:       p.ProductType,
			Tags:              p.Tags,
			PriceCents:        price.Amount,
			Currency:          price.Currency,
			InventoryQuantity: p.Inventory,
			ImageURL:          p.ImageURL,
		})
	}
	return products, nil
}

// seedOrder adds a shipped sample order so order lookups have something to find
func seedOrder(ctx context.Context, db *gorm.DB, shop string) error {
	order := models.Order{
		ShopDomain:        shop,
		Number:            1001,
		Email:             "shopper@example.com",
		FinancialStatus:   models.OrderStatusPaid,
		FulfillmentStatus: models.FulfillmentFulfilled,
		TrackingNumber:    "1Z999AA10123456784",
		TrackingURL:       "https://www.ups.com/track?tracknum=1Z999AA10123456784",
		Carrier:           "UPS",
		TotalCents:        14700,
		Currency:          "USD",
		Lines: models.OrderLines{
			{Title: "Trail Runner", Quantity: 1, PriceCents: 12900},
			{Title: "Merino Wool Socks", Quantity: 1, PriceCents: 1800},
		},
	}
	return db.WithContext(ctx).
		Where("shop_domain = ? AND number = ?", shop, order.Number).
		FirstOrCreate(&order).Error
}

func main() {
	shop := flag.String("shop", "", "Shop domain to seed (defaults to SHOPIFY_SHOP_DOMAIN)")
	file := flag.String("file", "", "YAML file with a products list; the demo catalog is used when empty")
	withOrder := flag.Bool("order", true, "Also seed sample order #1001")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := logging.New(cfg)

	domain := strings.ToLower(strings.TrimSpace(*shop))
	if domain == "" {
		domain = strings.ToLower(cfg.ShopifyShopDomain)
	}
	if domain == "" {
		logger.Fatal("[Seed] no shop given, use -shop or SHOPIFY_SHOP_DOMAIN")
	}

	products, err := loadProducts(*file)
	if err != nil {
		logger.WithError(err).Fatal("[Seed] failed to load products")
	}

	db, err := database.New(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("[Seed] failed to connect to database")
	}
	if err := database.RunMigrations(db, logger); err != nil {
		logger.WithError(err).Fatal("[Seed] failed to run migrations")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	embedder, err := commerce.NewEmbedder(ctx, cfg.EmbeddingProvider, cfg.GeminiAPIKey)
	if err != nil {
		logger.WithError(err).Fatal("[Seed] failed to create embedder")
	}

	catalog := commerce.NewLocalCatalog(db, embedder, domain, cfg.PublicBaseURL, logger)
	saved := 0
	for i := range products {
		if err := catalog.SaveProduct(ctx, &products[i]); err != nil {
			logger.WithError(err).WithField("handle", products[i].Handle).Error("[Seed] failed to save product")
			continue
		}
		saved++
	}

	if *withOrder {
		if err := seedOrder(ctx, db, domain); err != nil {
			logger.WithError(err).Error("[Seed] failed to seed sample order")
		}
	}

	logger.WithField("shop", domain).Infof("[Seed] saved %d of %d products", saved, len(products))
}
