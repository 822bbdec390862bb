package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Order statuses used by the demo catalog
const (
	OrderStatusPending  = "pending"
	OrderStatusPaid     = "paid"
	OrderStatusRefunded = "refunded"

	FulfillmentUnfulfilled = "unfulfilled"
	FulfillmentFulfilled   = "fulfilled"
)

// Order is a checkout placed against the demo catalog
type Order struct {
	ID                uuid.UUID  `gorm:"type:varchar(36);primarykey" json:"id"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	ShopDomain        string     `gorm:"size:255;not null;uniqueIndex:idx_orders_shop_number" json:"shop_domain"`
	Number            int64      `gorm:"not null;uniqueIndex:idx_orders_shop_number" json:"number"`
	Email             string     `gorm:"size:255" json:"email"`
	FinancialStatus   string     `gorm:"size:32;not null" json:"financial_status"`
	FulfillmentStatus string     `gorm:"size:32;not null" json:"fulfillment_status"`
	TrackingNumber    string     `gorm:"size:128" json:"tracking_number"`
	TrackingURL       string     `gorm:"size:512" json:"tracking_url"`
	Carrier           string     `gorm:"size:64" json:"carrier"`
	TotalCents        int64      `gorm:"not null" json:"total_cents"`
	Currency          string     `gorm:"size:3;not null" json:"currency"`
	Lines             OrderLines `gorm:"type:jsonb;not null;default:'[]'" json:"lines"`
}

// BeforeCreate assigns an ID when none was set
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
