package models

import (
	"time"

	"github.com/adscope-labs/spotgrid/utils"
	"gorm.io/gorm"
)

// MarketGridAssignment binds one market to one grid for a bounded or
// open-ended date range. Overlapping ranges for the same market are tolerated
// at write time and flagged by the collision detector; the resolver breaks
// ties deterministically. An assignment is ended by setting its end date,
// never deleted.
type MarketGridAssignment struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	MarketID           uint       `gorm:"not null;index:idx_market_grid_assignments_market_start,priority:1" json:"market_id"`
	GridID             uint       `gorm:"not null;index:idx_market_grid_assignments_grid" json:"grid_id"`
	EffectiveStartDate time.Time  `gorm:"type:date;not null;index:idx_market_grid_assignments_market_start,priority:2" json:"effective_start_date"`
	EffectiveEndDate   *time.Time `gorm:"type:date" json:"effective_end_date,omitempty"`
	Priority           int        `gorm:"not null;default:0" json:"priority"`
	CreatedBy          *string    `gorm:"size:64" json:"created_by,omitempty"`
	CreatedAt          time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt          *time.Time `json:"updated_at,omitempty"`

	// Relations
	Market *Market          `gorm:"foreignKey:MarketID;references:ID" json:"market,omitempty"`
	Grid   *ProgrammingGrid `gorm:"foreignKey:GridID;references:ID" json:"grid,omitempty"`
}

// TableName returns the table name for the model
func (MarketGridAssignment) TableName() string {
	return "market_grid_assignments"
}

// BeforeCreate is called before creating a new record
func (a *MarketGridAssignment) BeforeCreate(tx *gorm.DB) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (a *MarketGridAssignment) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	a.UpdatedAt = &now
	return nil
}

// DateRange returns the assignment's effective window. The persisted end
// date is inclusive; open-ended assignments have a nil end.
func (a *MarketGridAssignment) DateRange() DateRange {
	return DateRange{Start: a.EffectiveStartDate, End: a.EffectiveEndDate}
}

// Covers reports whether the assignment is effective on the given day.
func (a *MarketGridAssignment) Covers(day time.Time) bool {
	return a.DateRange().Covers(day)
}

// ConflictWindow returns the intersection of two assignments' effective
// ranges. The window is symmetric: a.ConflictWindow(b) == b.ConflictWindow(a).
func (a *MarketGridAssignment) ConflictWindow(other *MarketGridAssignment) (start time.Time, end *time.Time, ok bool) {
	return a.DateRange().Intersection(other.DateRange())
}

// MarketGridAssignmentFilter represents filter criteria for assignments
type MarketGridAssignmentFilter struct {
	ID          *uint      `json:"id,omitempty"`
	MarketID    *uint      `json:"market_id,omitempty"`
	GridID      *uint      `json:"grid_id,omitempty"`
	CoversDate  *time.Time `json:"covers_date,omitempty"`
	StartAfter  *time.Time `json:"start_after,omitempty"`
	StartBefore *time.Time `json:"start_before,omitempty"`
}
