package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/adscope-labs/spotgrid/utils"
	"gorm.io/gorm"
)

// CollisionType classifies a detected schedule conflict
type CollisionType string

const (
	CollisionMarketOverlap        CollisionType = "market_overlap"
	CollisionScheduleGap          CollisionType = "schedule_gap"
	CollisionScheduleDateConflict CollisionType = "schedule_date_conflict"
)

// String returns the string representation of the type
func (t CollisionType) String() string {
	return string(t)
}

// Valid checks if the type is valid
func (t CollisionType) Valid() bool {
	switch t {
	case CollisionMarketOverlap, CollisionScheduleGap, CollisionScheduleDateConflict:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for CollisionType
func (t *CollisionType) Scan(value any) error {
	if value == nil {
		*t = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*t = CollisionType(v)
	case []byte:
		*t = CollisionType(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CollisionType", value)
	}
	return nil
}

// Value implements the driver.Valuer interface for CollisionType
func (t CollisionType) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid CollisionType: %s", t)
	}
	return string(t), nil
}

// CollisionSeverity grades a collision record
type CollisionSeverity string

const (
	SeverityError   CollisionSeverity = "error"
	SeverityWarning CollisionSeverity = "warning"
	SeverityInfo    CollisionSeverity = "info"
)

// Valid checks if the severity is valid
func (s CollisionSeverity) Valid() bool {
	switch s {
	case SeverityError, SeverityWarning, SeverityInfo:
		return true
	default:
		return false
	}
}

// ResolutionStatus tracks the manual lifecycle of a collision record
type ResolutionStatus string

const (
	ResolutionUnresolved ResolutionStatus = "unresolved"
	ResolutionResolved   ResolutionStatus = "resolved"
	ResolutionIgnored    ResolutionStatus = "ignored"
)

// Valid checks if the status is valid
func (s ResolutionStatus) Valid() bool {
	switch s {
	case ResolutionUnresolved, ResolutionResolved, ResolutionIgnored:
		return true
	default:
		return false
	}
}

// CollisionRecord is an append-only log entry describing a detected schedule
// conflict. Records are closed only by an explicit resolution action, never
// automatically; detection must not block the write that triggered it.
type CollisionRecord struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	MarketID        uint              `gorm:"not null;index:idx_collision_records_market" json:"market_id"`
	Type            CollisionType     `gorm:"size:32;not null" json:"type"`
	Severity        CollisionSeverity `gorm:"size:16;not null" json:"severity"`
	AssignmentAID   *uint             `json:"assignment_a_id,omitempty"`
	AssignmentBID   *uint             `json:"assignment_b_id,omitempty"`
	ConflictStart   time.Time         `gorm:"type:date;not null" json:"conflict_start"`
	ConflictEnd     *time.Time        `gorm:"type:date" json:"conflict_end,omitempty"`
	Description     string            `gorm:"type:text;not null" json:"description"`
	Status          ResolutionStatus  `gorm:"size:16;not null;default:'unresolved';index:idx_collision_records_status" json:"status"`
	ResolvedBy      *string           `gorm:"size:64" json:"resolved_by,omitempty"`
	ResolutionNotes *string           `gorm:"type:text" json:"resolution_notes,omitempty"`
	CreatedAt       time.Time         `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	ResolvedAt      *time.Time        `json:"resolved_at,omitempty"`

	// Relations
	Market *Market `gorm:"foreignKey:MarketID;references:ID" json:"market,omitempty"`
}

// TableName returns the table name for the model
func (CollisionRecord) TableName() string {
	return "collision_records"
}

// BeforeCreate is called before creating a new record
func (c *CollisionRecord) BeforeCreate(tx *gorm.DB) error {
	if c.Status == "" {
		c.Status = ResolutionUnresolved
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	return nil
}

// PairKey normalizes the two assignment references so that A-vs-B and B-vs-A
// dedupe to the same open record.
func (c *CollisionRecord) PairKey() (lo, hi uint) {
	var a, b uint
	if c.AssignmentAID != nil {
		a = *c.AssignmentAID
	}
	if c.AssignmentBID != nil {
		b = *c.AssignmentBID
	}
	if a > b {
		a, b = b, a
	}
	return a, b
}

// IsOpen reports whether the record still needs manual attention.
func (c *CollisionRecord) IsOpen() bool {
	return c.Status == ResolutionUnresolved
}

// CollisionRecordFilter represents filter criteria for collision records
type CollisionRecordFilter struct {
	ID       *uint              `json:"id,omitempty"`
	MarketID *uint              `json:"market_id,omitempty"`
	Type     *CollisionType     `json:"type,omitempty"`
	Severity *CollisionSeverity `json:"severity,omitempty"`
	Status   *ResolutionStatus  `json:"status,omitempty"`
}
