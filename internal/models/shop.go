package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Shop is a merchant store that installed the assistant
type Shop struct {
	ID                   uuid.UUID      `gorm:"type:varchar(36);primarykey" json:"id"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"-"`
	Domain               string         `gorm:"size:255;not null;uniqueIndex" json:"domain"`
	Name                 string         `gorm:"size:255" json:"name"`
	Platform             string         `gorm:"size:32;not null;default:'shopify'" json:"platform"`
	EncryptedAccessToken string         `gorm:"type:text" json:"-"`
	Scopes               string         `gorm:"size:512" json:"scopes"`
	InstalledAt          time.Time      `json:"installed_at"`
}

// BeforeCreate assigns an ID when none was set
func (s *Shop) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
