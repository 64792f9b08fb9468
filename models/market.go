package models

import (
	"time"

	"github.com/adscope-labs/spotgrid/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Market represents a broadcast market served by exactly one active
// programming grid at any point in time
type Market struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UUID      uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uk_markets_uuid" json:"uuid"`
	Code      string     `gorm:"size:16;not null;uniqueIndex:uk_markets_code" json:"code"`
	Name      string     `gorm:"size:128;not null" json:"name"`
	Region    *string    `gorm:"size:64" json:"region,omitempty"`
	IsActive  bool       `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (Market) TableName() string {
	return "markets"
}

// BeforeCreate is called before creating a new record
func (m *Market) BeforeCreate(tx *gorm.DB) error {
	if m.UUID == uuid.Nil {
		m.UUID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (m *Market) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	m.UpdatedAt = &now
	return nil
}

// MarketFilter represents filter criteria for markets
type MarketFilter struct {
	ID       *uint      `json:"id,omitempty"`
	UUID     *uuid.UUID `json:"uuid,omitempty"`
	Code     *string    `json:"code,omitempty"`
	IsActive *bool      `json:"is_active,omitempty"`
}
