package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConversationMessage is one persisted turn of a storefront chat
type ConversationMessage struct {
	ID         uuid.UUID `gorm:"type:varchar(36);primarykey" json:"id"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
	SessionID  string    `gorm:"size:64;not null;index" json:"session_id"`
	ShopDomain string    `gorm:"size:255;not null;index" json:"shop_domain"`
	Role       string    `gorm:"size:16;not null" json:"role"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	Intent     string    `gorm:"size:32" json:"intent,omitempty"`
}

// BeforeCreate assigns an ID when none was set
func (m *ConversationMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// ConversationSummary is one row of the merchant conversation list
type ConversationSummary struct {
	SessionID     string    `json:"session_id"`
	ShopDomain    string    `json:"shop_domain"`
	MessageCount  int64     `json:"message_count"`
	StartedAt     time.Time `json:"started_at"`
	LastMessageAt time.Time `json:"last_message_at"`
}

// AllModels lists every table for auto-migration
func AllModels() []interface{} {
	return []interface{}{
		&Shop{},
		&Product{},
		&Order{},
		&ConversationMessage{},
	}
}
