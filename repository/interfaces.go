// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/adscope-labs/spotgrid/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// MarketRepository defines operations for markets
type MarketRepository interface {
	Repository[models.Market, models.MarketFilter]
	ByCode(ctx context.Context, code string) (*models.Market, error)
	ByUUID(ctx context.Context, uuid string) (*models.Market, error)
}

// ProgrammingGridRepository defines operations for programming grids
type ProgrammingGridRepository interface {
	Repository[models.ProgrammingGrid, models.ProgrammingGridFilter]
	ByUUID(ctx context.Context, uuid string) (*models.ProgrammingGrid, error)
}

// MarketGridAssignmentRepository defines operations for market-grid assignments
type MarketGridAssignmentRepository interface {
	Repository[models.MarketGridAssignment, models.MarketGridAssignmentFilter]
	// CoveringDate returns every assignment effective for the market on the
	// given day; overlapping schedules can yield more than one row.
	CoveringDate(ctx context.Context, marketID uint, date time.Time) ([]*models.MarketGridAssignment, error)
	ListByMarket(ctx context.Context, marketID uint) ([]*models.MarketGridAssignment, error)
	EndAssignment(ctx context.Context, id uint, endDate time.Time) error
	// MarketIDsWithAssignments lists markets that have ever been bound to a
	// grid; the schedule-gap scan is scoped to these.
	MarketIDsWithAssignments(ctx context.Context) ([]uint, error)
}

// LanguageBlockRepository defines operations for language blocks
type LanguageBlockRepository interface {
	Repository[models.LanguageBlock, models.LanguageBlockFilter]
	ActiveByGridAndDay(ctx context.Context, gridID uint, day models.DayOfWeek) ([]*models.LanguageBlock, error)
	Deactivate(ctx context.Context, id uint) error
	ByIDs(ctx context.Context, ids []uint) ([]*models.LanguageBlock, error)
}

// SpotRepository defines operations for spots
type SpotRepository interface {
	Repository[models.Spot, models.SpotFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Spot, error)
	// ListUnassigned pages through spots that have no assignment row yet,
	// ordered by market so batch workers get contiguous partitions.
	ListUnassigned(ctx context.Context, limit, offset int) ([]*models.Spot, error)
	CountUnassigned(ctx context.Context) (int64, error)
}

// SpotAssignmentRepository defines operations for spot assignments
type SpotAssignmentRepository interface {
	Repository[models.SpotAssignment, models.SpotAssignmentFilter]
	BySpotID(ctx context.Context, spotID uint) (*models.SpotAssignment, error)
	// Upsert writes the single assignment row for a spot, replacing any
	// previous row atomically (keyed by the unique spot reference).
	Upsert(ctx context.Context, assignment *models.SpotAssignment) error
}

// CollisionRecordRepository defines operations for collision records
type CollisionRecordRepository interface {
	Repository[models.CollisionRecord, models.CollisionRecordFilter]
	// OpenMarketOverlap finds an existing open record for the same market,
	// normalized assignment pair, and conflict window.
	OpenMarketOverlap(ctx context.Context, marketID, pairLo, pairHi uint, conflictStart time.Time, conflictEnd *time.Time) (*models.CollisionRecord, error)
	// OpenScheduleGap finds an existing open gap record for the market and day.
	OpenScheduleGap(ctx context.Context, marketID uint, day time.Time) (*models.CollisionRecord, error)
	ListOpen(ctx context.Context, limit, offset int) ([]*models.CollisionRecord, error)
	Resolve(ctx context.Context, id uint, status models.ResolutionStatus, resolvedBy, notes string) error
}
