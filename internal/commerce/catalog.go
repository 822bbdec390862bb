package commerce

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pageza/storefront-assistant/backend/internal/models"
)

const (
	firstOrderNumber = 1001
	checkoutAttempts = 3
)

var searchStopWords = map[string]bool{
	"a": true, "an": true, "the": true, "for": true, "and": true, "or": true,
	"of": true, "with": true, "in": true, "on": true, "to": true, "some": true,
	"any": true, "me": true, "my": true,
}

// LocalCatalog is a Platform backed by the application's own database.
// It serves shops that have not connected a commerce platform yet.
type LocalCatalog struct {
	db         *gorm.DB
	embedder   Embedder
	shopDomain string
	baseURL    string
	log        logrus.FieldLogger
}

// NewLocalCatalog creates a catalog scoped to shopDomain. baseURL prefixes
// product and checkout links.
func NewLocalCatalog(db *gorm.DB, embedder Embedder, shopDomain, baseURL string, log logrus.FieldLogger) *LocalCatalog {
	return &LocalCatalog{
		db:         db,
		embedder:   embedder,
		shopDomain: shopDomain,
		baseURL:    strings.TrimRight(baseURL, "/"),
		log:        log.WithFields(logrus.Fields{"shop": shopDomain, "platform": "local"}),
	}
}

// Name implements Platform
func (c *LocalCatalog) Name() string { return "local" }

// SaveProduct inserts or updates a product by handle and refreshes its embedding
func (c *LocalCatalog) SaveProduct(ctx context.Context, p *models.Product) error {
	p.ShopDomain = c.shopDomain
	vec, err := c.embedder.Embed(ctx, p.SearchText())
	if err != nil {
		return fmt.Errorf("failed to embed product %s: %w", p.Handle, err)
	}
	p.Embedding = &vec

	var existing models.Product
	err = c.db.WithContext(ctx).Where("shop_domain = ? AND handle = ?", c.shopDomain, p.Handle).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := c.db.WithContext(ctx).Create(p).Error; err != nil {
			return fmt.Errorf("failed to create product %s: %w", p.Handle, err)
		}
	case err != nil:
		return fmt.Errorf("failed to look up product %s: %w", p.Handle, err)
	default:
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
		if err := c.db.WithContext(ctx).Save(p).Error; err != nil {
			return fmt.Errorf("failed to update product %s: %w", p.Handle, err)
		}
	}
	return nil
}

// SearchProducts implements Platform. On Postgres matches are ordered by
// embedding distance; elsewhere by how many query terms they contain.
func (c *LocalCatalog) SearchProducts(ctx context.Context, query string, limit int) ([]Product, error) {
	terms := searchTerms(query)
	postgres := c.db.Dialector.Name() == "postgres"

	dbQuery := c.db.WithContext(ctx).Model(&models.Product{}).Where("shop_domain = ?", c.shopDomain)

	if len(terms) > 0 {
		tagsColumn := "tags"
		if postgres {
			tagsColumn = "tags::text"
		}
		var (
			conds []string
			args  []interface{}
		)
		for _, term := range terms {
			like := "%" + term + "%"
			conds = append(conds, fmt.Sprintf(
				"LOWER(title) LIKE ? OR LOWER(description) LIKE ? OR LOWER(product_type) LIKE ? OR LOWER(vendor) LIKE ? OR LOWER(%s) LIKE ?", tagsColumn))
			args = append(args, like, like, like, like, like)
		}
		dbQuery = dbQuery.Where("("+strings.Join(conds, " OR ")+")", args...)
	}

	var rows []models.Product
	if postgres && len(terms) > 0 {
		vec, err := c.embedder.Embed(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("failed to embed query: %w", err)
		}
		dbQuery = dbQuery.Clauses(clause.OrderBy{
			Expression: clause.Expr{SQL: "embedding <-> ?", Vars: []interface{}{vec}, WithoutParentheses: true},
		}).Limit(limit)
		if err := dbQuery.Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to search products: %w", err)
		}
	} else {
		if err := dbQuery.Order("title ASC").Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to search products: %w", err)
		}
		rankByTerms(rows, terms)
		if len(rows) > limit {
			rows = rows[:limit]
		}
	}

	products := make([]Product, 0, len(rows))
	for i := range rows {
		products = append(products, c.toProduct(&rows[i]))
	}
	return products, nil
}

// GetProduct implements Platform
func (c *LocalCatalog) GetProduct(ctx context.Context, id string) (*Product, error) {
	row, err := c.findProduct(c.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	p := c.toProduct(row)
	return &p, nil
}

func (c *LocalCatalog) findProduct(db *gorm.DB, id string) (*models.Product, error) {
	pid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrProductNotFound
	}
	var row models.Product
	err = db.Where("shop_domain = ? AND id = ?", c.shopDomain, pid).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &row, nil
}

// CreateCheckout implements Platform by recording a pending order. Prices are
// taken from the catalog, not from the cart. Order numbers are MAX+1 per shop;
// a concurrent checkout taking the same number makes this one retry.
func (c *LocalCatalog) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	if len(req.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	var (
		order *models.Order
		err   error
	)
	for attempt := 1; attempt <= checkoutAttempts; attempt++ {
		order, err = c.placeOrder(ctx, req)
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
		c.log.WithField("attempt", attempt).Warn("[Catalog] order number taken, retrying")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout: %w", err)
	}

	c.log.WithFields(logrus.Fields{"order": order.Number, "total_cents": order.TotalCents}).Info("[Catalog] checkout created")

	return &Checkout{
		ID:    order.ID.String(),
		URL:   fmt.Sprintf("%s/checkout/%s", c.baseURL, order.ID),
		Total: Money{Amount: order.TotalCents, Currency: order.Currency},
	}, nil
}

func (c *LocalCatalog) placeOrder(ctx context.Context, req CheckoutRequest) (*models.Order, error) {
	order := &models.Order{
		ShopDomain:        c.shopDomain,
		Email:             req.Email,
		FinancialStatus:   models.OrderStatusPending,
		FulfillmentStatus: models.FulfillmentUnfulfilled,
	}

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, line := range req.Lines {
			row, err := c.findProduct(tx, line.VariantID)
			if err != nil {
				return err
			}
			if row.InventoryQuantity < line.Quantity {
				return fmt.Errorf("%w: %s", ErrOutOfStock, row.Title)
			}
			order.Currency = row.Currency
			order.TotalCents += row.PriceCents * int64(line.Quantity)
			order.Lines = append(order.Lines, models.OrderLine{
				ProductID:  row.ID.String(),
				VariantID:  row.ID.String(),
				Title:      row.Title,
				Quantity:   line.Quantity,
				PriceCents: row.PriceCents,
			})
		}

		var maxNumber int64
		row := tx.Model(&models.Order{}).Where("shop_domain = ?", c.shopDomain).Select("COALESCE(MAX(number), 0)").Row()
		if err := row.Scan(&maxNumber); err != nil {
			return fmt.Errorf("failed to allocate order number: %w", err)
		}
		order.Number = firstOrderNumber
		if maxNumber >= firstOrderNumber {
			order.Number = maxNumber + 1
		}

		return tx.Create(order).Error
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// GetOrder implements Platform
func (c *LocalCatalog) GetOrder(ctx context.Context, number, email string) (*Order, error) {
	email = strings.TrimSpace(email)
	n, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(number), "#"), 10, 64)
	if err != nil || email == "" {
		return nil, ErrOrderNotFound
	}

	var row models.Order
	err = c.db.WithContext(ctx).Where("shop_domain = ? AND number = ?", c.shopDomain, n).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find order: %w", err)
	}
	if !strings.EqualFold(email, row.Email) {
		return nil, ErrOrderNotFound
	}

	order := &Order{
		ID:                row.ID.String(),
		Number:            fmt.Sprintf("#%d", row.Number),
		Email:             row.Email,
		FinancialStatus:   row.FinancialStatus,
		FulfillmentStatus: row.FulfillmentStatus,
		Total:             Money{Amount: row.TotalCents, Currency: row.Currency},
		CreatedAt:         row.CreatedAt,
	}
	if row.TrackingNumber != "" {
		order.Tracking = []Tracking{{Company: row.Carrier, Number: row.TrackingNumber, URL: row.TrackingURL}}
	}
	return order, nil
}

func (c *LocalCatalog) toProduct(row *models.Product) Product {
	price := Money{Amount: row.PriceCents, Currency: row.Currency}
	return Product{
		ID:          row.ID.String(),
		Handle:      row.Handle,
		Title:       row.Title,
		Description: row.Description,
		Vendor:      row.Vendor,
		ProductType: row.ProductType,
		ImageURL:    row.ImageURL,
		URL:         fmt.Sprintf("%s/products/%s", c.baseURL, row.Handle),
		Price:       price,
		Variants: []Variant{{
			ID:                row.ID.String(),
			Title:             "Default",
			Price:             price,
			Available:         row.InventoryQuantity > 0,
			InventoryQuantity: row.InventoryQuantity,
		}},
	}
}

// searchTerms lower-cases the query and drops stop words and single letters
func searchTerms(query string) []string {
	var terms []string
	seen := map[string]bool{}
	for _, tok := range tokenize(query) {
		if len(tok) < 2 || searchStopWords[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		terms = append(terms, strings.TrimSuffix(tok, "s"))
	}
	return terms
}

// rankByTerms orders rows by matched terms, title hits counting double
func rankByTerms(rows []models.Product, terms []string) {
	if len(terms) == 0 {
		return
	}
	score := func(p *models.Product) int {
		title := strings.ToLower(p.Title)
		text := strings.ToLower(p.SearchText())
		s := 0
		for _, t := range terms {
			if strings.Contains(title, t) {
				s += 2
			} else if strings.Contains(text, t) {
				s++
			}
		}
		return s
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return score(&rows[i]) > score(&rows[j])
	})
}
