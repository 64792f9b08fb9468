package models

import (
	"time"

	"github.com/adscope-labs/spotgrid/utils"
	"gorm.io/gorm"
)

// DayOfWeek follows time.Weekday numbering: Sunday = 0.
type DayOfWeek int16

const (
	Sunday DayOfWeek = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

var dayNames = [...]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// String returns the English day name
func (d DayOfWeek) String() string {
	if !d.Valid() {
		return "Unknown"
	}
	return dayNames[d]
}

// Valid checks the day is within range
func (d DayOfWeek) Valid() bool {
	return d >= Sunday && d <= Saturday
}

// LanguageBlock is a recurring weekly time window within a grid, tagged with
// a language and day-part. Blocks never span midnight: a late block stops at
// end-of-day (minute 1440) and the next day starts a new block.
type LanguageBlock struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	GridID       uint       `gorm:"not null;index:idx_language_blocks_grid_day_start,priority:1;uniqueIndex:uk_language_blocks_active_range,priority:1,where:is_active" json:"grid_id"`
	DayOfWeek    DayOfWeek  `gorm:"not null;index:idx_language_blocks_grid_day_start,priority:2;uniqueIndex:uk_language_blocks_active_range,priority:2" json:"day_of_week"`
	StartMinute  TimeOfDay  `gorm:"not null;index:idx_language_blocks_grid_day_start,priority:3;uniqueIndex:uk_language_blocks_active_range,priority:3" json:"start_minute"`
	EndMinute    TimeOfDay  `gorm:"not null;uniqueIndex:uk_language_blocks_active_range,priority:4" json:"end_minute"`
	LanguageCode string     `gorm:"size:16;not null" json:"language_code"`
	Name         string     `gorm:"size:128;not null" json:"name"`
	Category     string     `gorm:"size:64" json:"category"`
	DayPart      string     `gorm:"size:32" json:"day_part"`
	DisplayOrder int        `gorm:"not null;default:0" json:"display_order"`
	IsActive     bool       `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`

	// Relations
	Grid *ProgrammingGrid `gorm:"foreignKey:GridID;references:ID" json:"grid,omitempty"`
}

// TableName returns the table name for the model
func (LanguageBlock) TableName() string {
	return "language_blocks"
}

// BeforeCreate is called before creating a new record
func (b *LanguageBlock) BeforeCreate(tx *gorm.DB) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = utils.UTCNow()
	}
	return b.ValidateWindow()
}

// BeforeUpdate is called before updating a record
func (b *LanguageBlock) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	b.UpdatedAt = &now
	return b.ValidateWindow()
}

// ValidateWindow enforces start < end within a single day.
func (b *LanguageBlock) ValidateWindow() error {
	if !b.DayOfWeek.Valid() {
		return gorm.ErrInvalidData
	}
	if !b.StartMinute.Valid() || !b.EndMinute.Valid() || b.StartMinute >= b.EndMinute {
		return gorm.ErrInvalidData
	}
	return nil
}

// MinuteRange returns the block's half-open window within its day.
func (b *LanguageBlock) MinuteRange() MinuteRange {
	return MinuteRange{In: b.StartMinute, Out: b.EndMinute}
}

// LanguageBlockFilter represents filter criteria for language blocks
type LanguageBlockFilter struct {
	ID           *uint      `json:"id,omitempty"`
	GridID       *uint      `json:"grid_id,omitempty"`
	DayOfWeek    *DayOfWeek `json:"day_of_week,omitempty"`
	LanguageCode *string    `json:"language_code,omitempty"`
	IsActive     *bool      `json:"is_active,omitempty"`
}
