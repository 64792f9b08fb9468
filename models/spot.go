package models

import (
	"time"

	"github.com/adscope-labs/spotgrid/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Spot is one ingested broadcast advertising transaction. Revenue fields are
// carried through untouched: revenue classification (including trade) is a
// reporting concern and never influences assignment.
type Spot struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UUID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_spots_uuid" json:"uuid"`
	MarketID    uint      `gorm:"not null;index:idx_spots_market_air_date,priority:1" json:"market_id"`
	AirDate     time.Time `gorm:"type:date;not null;index:idx_spots_market_air_date,priority:2" json:"air_date"`
	DayOfWeek   DayOfWeek `gorm:"not null" json:"day_of_week"`
	TimeIn      TimeOfDay `gorm:"not null" json:"time_in"`
	TimeOut     TimeOfDay `gorm:"not null" json:"time_out"`
	Advertiser  string    `gorm:"size:256" json:"advertiser"`
	GrossRate   int64     `gorm:"not null;default:0" json:"gross_rate"`
	RevenueType string    `gorm:"size:32" json:"revenue_type"`
	CreatedAt   time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`

	// Relations
	Market *Market `gorm:"foreignKey:MarketID;references:ID" json:"market,omitempty"`
}

// TableName returns the table name for the model
func (Spot) TableName() string {
	return "spots"
}

// BeforeCreate is called before creating a new record
func (s *Spot) BeforeCreate(tx *gorm.DB) error {
	if s.UUID == uuid.Nil {
		s.UUID = uuid.New()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = utils.UTCNow()
	}
	return nil
}

// MinuteRange returns the spot's half-open airing window within its day.
func (s *Spot) MinuteRange() MinuteRange {
	return MinuteRange{In: s.TimeIn, Out: s.TimeOut}
}

// SpotFilter represents filter criteria for spots
type SpotFilter struct {
	ID           *uint      `json:"id,omitempty"`
	UUID         *uuid.UUID `json:"uuid,omitempty"`
	MarketID     *uint      `json:"market_id,omitempty"`
	AirDateFrom  *time.Time `json:"air_date_from,omitempty"`
	AirDateUntil *time.Time `json:"air_date_until,omitempty"`
	RevenueType  *string    `json:"revenue_type,omitempty"`
}
