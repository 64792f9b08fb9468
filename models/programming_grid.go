// Package models defines the persisted entities of the scheduling store:
// programming grids, market assignments, language blocks, spots, spot
// assignments, and the collision log.
package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/adscope-labs/spotgrid/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ScheduleKind represents the kind of a programming grid
type ScheduleKind string

const (
	ScheduleKindStandard       ScheduleKind = "standard"
	ScheduleKindMarketSpecific ScheduleKind = "market_specific"
	ScheduleKindSeasonal       ScheduleKind = "seasonal"
)

// String returns the string representation of the kind
func (k ScheduleKind) String() string {
	return string(k)
}

// Valid checks if the kind is valid
func (k ScheduleKind) Valid() bool {
	switch k {
	case ScheduleKindStandard, ScheduleKindMarketSpecific, ScheduleKindSeasonal:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for ScheduleKind
func (k *ScheduleKind) Scan(value any) error {
	if value == nil {
		*k = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*k = ScheduleKind(v)
	case []byte:
		*k = ScheduleKind(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ScheduleKind", value)
	}
	return nil
}

// Value implements the driver.Valuer interface for ScheduleKind
func (k ScheduleKind) Value() (driver.Value, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid ScheduleKind: %s", k)
	}
	return string(k), nil
}

// ProgrammingGrid is a named, versioned set of recurring weekly language
// blocks. Grids are never edited in place once blocks are populated; a
// schedule change is a new grid record with its own effective range.
type ProgrammingGrid struct {
	ID                 uint         `gorm:"primaryKey" json:"id"`
	UUID               uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:uk_programming_grids_uuid" json:"uuid"`
	Name               string       `gorm:"size:128;not null;index:idx_programming_grids_name" json:"name"`
	Version            string       `gorm:"size:32;not null;default:'v1'" json:"version"`
	Kind               ScheduleKind `gorm:"size:32;not null;default:'standard'" json:"kind"`
	EffectiveStartDate time.Time    `gorm:"type:date;not null" json:"effective_start_date"`
	EffectiveEndDate   *time.Time   `gorm:"type:date" json:"effective_end_date,omitempty"`
	IsActive           bool         `gorm:"not null;default:true" json:"is_active"`
	CreatedAt          time.Time    `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt          *time.Time   `json:"updated_at,omitempty"`

	// Relations
	Blocks []LanguageBlock `gorm:"foreignKey:GridID" json:"blocks,omitempty"`
}

// TableName returns the table name for the model
func (ProgrammingGrid) TableName() string {
	return "programming_grids"
}

// BeforeCreate is called before creating a new record
func (g *ProgrammingGrid) BeforeCreate(tx *gorm.DB) error {
	if g.UUID == uuid.Nil {
		g.UUID = uuid.New()
	}
	if g.Kind == "" {
		g.Kind = ScheduleKindStandard
	}
	if g.Version == "" {
		g.Version = "v1"
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = utils.UTCNow()
	}
	return g.ValidateDates()
}

// BeforeUpdate is called before updating a record
func (g *ProgrammingGrid) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	g.UpdatedAt = &now
	return g.ValidateDates()
}

// ValidateDates enforces that the end date, when present, falls strictly
// after the start date.
func (g *ProgrammingGrid) ValidateDates() error {
	if g.EffectiveEndDate != nil && !DateOf(*g.EffectiveEndDate).After(DateOf(g.EffectiveStartDate)) {
		return fmt.Errorf("grid %q: effective end date must be after start date", g.Name)
	}
	return nil
}

// DisplayLabel returns the grid name with its version label
func (g *ProgrammingGrid) DisplayLabel() string {
	return fmt.Sprintf("%s (%s)", g.Name, g.Version)
}

// ProgrammingGridFilter represents filter criteria for programming grids
type ProgrammingGridFilter struct {
	ID       *uint         `json:"id,omitempty"`
	UUID     *uuid.UUID    `json:"uuid,omitempty"`
	Name     *string       `json:"name,omitempty"`
	Kind     *ScheduleKind `json:"kind,omitempty"`
	IsActive *bool         `json:"is_active,omitempty"`
}
