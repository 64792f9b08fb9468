package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/adscope-labs/spotgrid/utils"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// CustomerIntent represents the inferred advertiser targeting behavior
type CustomerIntent string

const (
	IntentLanguageSpecific CustomerIntent = "language_specific"
	IntentTimeSpecific     CustomerIntent = "time_specific"
	IntentIndifferent      CustomerIntent = "indifferent"
	IntentNoGridCoverage   CustomerIntent = "no_grid_coverage"
)

// String returns the string representation of the intent
func (i CustomerIntent) String() string {
	return string(i)
}

// Valid checks if the intent is valid
func (i CustomerIntent) Valid() bool {
	switch i {
	case IntentLanguageSpecific, IntentTimeSpecific, IntentIndifferent, IntentNoGridCoverage:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for CustomerIntent
func (i *CustomerIntent) Scan(value any) error {
	if value == nil {
		*i = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*i = CustomerIntent(v)
	case []byte:
		*i = CustomerIntent(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CustomerIntent", value)
	}
	return nil
}

// Value implements the driver.Valuer interface for CustomerIntent
func (i CustomerIntent) Value() (driver.Value, error) {
	if !i.Valid() {
		return nil, fmt.Errorf("invalid CustomerIntent: %s", i)
	}
	return string(i), nil
}

// AssignmentMethod records how an assignment was produced
type AssignmentMethod string

const (
	MethodAutoComputed    AssignmentMethod = "auto_computed"
	MethodNoGridAvailable AssignmentMethod = "no_grid_available"
	MethodManualOverride  AssignmentMethod = "manual_override"
)

// String returns the string representation of the method
func (m AssignmentMethod) String() string {
	return string(m)
}

// Valid checks if the method is valid
func (m AssignmentMethod) Valid() bool {
	switch m {
	case MethodAutoComputed, MethodNoGridAvailable, MethodManualOverride:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for AssignmentMethod
func (m *AssignmentMethod) Scan(value any) error {
	if value == nil {
		*m = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*m = AssignmentMethod(v)
	case []byte:
		*m = AssignmentMethod(string(v))
	default:
		return fmt.Errorf("cannot scan %T into AssignmentMethod", value)
	}
	return nil
}

// Value implements the driver.Valuer interface for AssignmentMethod
func (m AssignmentMethod) Value() (driver.Value, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid AssignmentMethod: %s", m)
	}
	return string(m), nil
}

// SpotAssignment is the single resolved outcome for one spot. GridID records
// the grid version actually used at assignment time; historical rows are
// never re-derived from current schedule state. Exactly one row exists per
// spot; re-assignment replaces the row through an explicit, audited
// operation.
type SpotAssignment struct {
	ID                uint             `gorm:"primaryKey" json:"id"`
	SpotID            uint             `gorm:"not null;uniqueIndex:uk_spot_assignments_spot_id" json:"spot_id"`
	GridID            *uint            `gorm:"index:idx_spot_assignments_grid" json:"grid_id,omitempty"`
	BlockID           *uint            `json:"block_id,omitempty"`
	Intent            CustomerIntent   `gorm:"size:32;not null" json:"intent"`
	Confidence        float64          `gorm:"not null;default:0" json:"confidence"`
	MultiBlock        bool             `gorm:"not null;default:false" json:"multi_block"`
	SpannedBlockIDs   pq.Int64Array    `gorm:"type:bigint[]" json:"spanned_block_ids,omitempty"`
	PrimaryBlockID    *uint            `json:"primary_block_id,omitempty"`
	Method            AssignmentMethod `gorm:"size:32;not null" json:"method"`
	RequiresAttention bool             `gorm:"not null;default:false;index:idx_spot_assignments_attention" json:"requires_attention"`
	AttentionReason   *string          `gorm:"type:text" json:"attention_reason,omitempty"`
	AssignedAt        time.Time        `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"assigned_at"`
	UpdatedAt         *time.Time       `json:"updated_at,omitempty"`

	// Relations
	Spot  *Spot            `gorm:"foreignKey:SpotID;references:ID" json:"spot,omitempty"`
	Grid  *ProgrammingGrid `gorm:"foreignKey:GridID;references:ID" json:"grid,omitempty"`
	Block *LanguageBlock   `gorm:"foreignKey:BlockID;references:ID" json:"block,omitempty"`
}

// TableName returns the table name for the model
func (SpotAssignment) TableName() string {
	return "spot_assignments"
}

// BeforeCreate is called before creating a new record
func (a *SpotAssignment) BeforeCreate(tx *gorm.DB) error {
	if a.AssignedAt.IsZero() {
		a.AssignedAt = utils.UTCNow()
	}
	return a.Validate()
}

// BeforeUpdate is called before updating a record
func (a *SpotAssignment) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	a.UpdatedAt = &now
	return a.Validate()
}

// Validate enforces the structural invariants of an assignment row.
func (a *SpotAssignment) Validate() error {
	if !a.Intent.Valid() {
		return fmt.Errorf("spot %d: invalid intent %q", a.SpotID, a.Intent)
	}
	if !a.Method.Valid() {
		return fmt.Errorf("spot %d: invalid method %q", a.SpotID, a.Method)
	}
	if a.MultiBlock {
		if a.BlockID != nil {
			return fmt.Errorf("spot %d: multi-block assignment must not carry a single block", a.SpotID)
		}
		if len(a.SpannedBlockIDs) == 0 {
			return fmt.Errorf("spot %d: multi-block assignment requires a spanned block set", a.SpotID)
		}
	}
	if a.Intent == IntentNoGridCoverage && a.BlockID != nil {
		return fmt.Errorf("spot %d: no-coverage assignment must not carry a block", a.SpotID)
	}
	return nil
}

// SpotAssignmentFilter represents filter criteria for spot assignments
type SpotAssignmentFilter struct {
	ID                *uint             `json:"id,omitempty"`
	SpotID            *uint             `json:"spot_id,omitempty"`
	GridID            *uint             `json:"grid_id,omitempty"`
	Intent            *CustomerIntent   `json:"intent,omitempty"`
	Method            *AssignmentMethod `json:"method,omitempty"`
	RequiresAttention *bool             `json:"requires_attention,omitempty"`
}
