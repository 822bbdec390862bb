package models

import (
	"time"

	"github.com/google/uuid"
	pgvector "github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// Product is an entry in the built-in demo catalog
type Product struct {
	ID                uuid.UUID        `gorm:"type:varchar(36);primarykey" json:"id"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
	DeletedAt         gorm.DeletedAt   `gorm:"index" json:"-"`
	ShopDomain        string           `gorm:"size:255;not null;index" json:"shop_domain"`
	Handle            string           `gorm:"size:255;not null" json:"handle"`
	Title             string           `gorm:"size:255;not null" json:"title"`
	Description       string           `gorm:"type:text" json:"description"`
	Vendor            string           `gorm:"size:255" json:"vendor"`
	ProductType       string           `gorm:"size:255" json:"product_type"`
	Tags              JSONBStringArray `gorm:"type:jsonb;not null;default:'[]'" json:"tags"`
	PriceCents        int64            `gorm:"not null" json:"price_cents"`
	Currency          string           `gorm:"size:3;not null;default:'USD'" json:"currency"`
	InventoryQuantity int              `gorm:"not null;default:0" json:"inventory_quantity"`
	ImageURL          string           `gorm:"size:512" json:"image_url"`
	Embedding         *pgvector.Vector `gorm:"type:vector(768)" json:"-"`
}

// BeforeCreate assigns an ID when none was set
func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// SearchText is the text indexed for similarity search
func (p *Product) SearchText() string {
	text := p.Title + " " + p.Description + " " + p.ProductType + " " + p.Vendor
	for _, tag := range p.Tags {
		text += " " + tag
	}
	return text
}
