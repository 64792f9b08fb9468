package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/adscope-labs/spotgrid/models"
	"gorm.io/gorm"
)

// MarketGridAssignmentRepositoryImpl implements the MarketGridAssignmentRepository interface
type MarketGridAssignmentRepositoryImpl struct {
	*BaseRepository[models.MarketGridAssignment, models.MarketGridAssignmentFilter]
}

// NewMarketGridAssignmentRepository creates a new market-grid assignment repository
func NewMarketGridAssignmentRepository(db *gorm.DB) MarketGridAssignmentRepository {
	return &MarketGridAssignmentRepositoryImpl{
		BaseRepository: NewBaseRepository[models.MarketGridAssignment, models.MarketGridAssignmentFilter](db),
	}
}

// CoveringDate returns every assignment effective for the market on the given
// day. Overlaps are tolerated at write time, so the result can hold more than
// one row; the resolver applies the tie-break.
func (r *MarketGridAssignmentRepositoryImpl) CoveringDate(ctx context.Context, marketID uint, date time.Time) ([]*models.MarketGridAssignment, error) {
	db := r.getDB(ctx)

	day := models.DateOf(date)
	var assignments []*models.MarketGridAssignment
	err := db.Preload("Grid").
		Where("market_id = ? AND effective_start_date <= ? AND (effective_end_date IS NULL OR effective_end_date >= ?)",
			marketID, day, day).
		Order("priority DESC, effective_start_date DESC, id DESC").
		Find(&assignments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find assignments covering %s for market %d: %w",
			day.Format("2006-01-02"), marketID, err)
	}

	return assignments, nil
}

// ListByMarket returns every assignment ever created for the market
func (r *MarketGridAssignmentRepositoryImpl) ListByMarket(ctx context.Context, marketID uint) ([]*models.MarketGridAssignment, error) {
	filter := models.MarketGridAssignmentFilter{MarketID: &marketID}
	return r.ByFilter(ctx, filter, "effective_start_date ASC, id ASC", 0, 0)
}

// EndAssignment closes an assignment by setting its end date; rows are never deleted
func (r *MarketGridAssignmentRepositoryImpl) EndAssignment(ctx context.Context, id uint, endDate time.Time) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	err = db.Model(&models.MarketGridAssignment{}).
		Where("id = ?", id).
		Update("effective_end_date", models.DateOf(endDate)).Error
	if err != nil {
		return fmt.Errorf("failed to end assignment %d: %w", id, err)
	}

	return nil
}

// MarketIDsWithAssignments lists the distinct markets that have ever been assigned a grid
func (r *MarketGridAssignmentRepositoryImpl) MarketIDsWithAssignments(ctx context.Context) ([]uint, error) {
	db := r.getDB(ctx)

	var ids []uint
	err := db.Model(&models.MarketGridAssignment{}).
		Distinct("market_id").
		Order("market_id").
		Pluck("market_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list assigned market ids: %w", err)
	}

	return ids, nil
}

// ByFilter retrieves assignments based on filter criteria
func (r *MarketGridAssignmentRepositoryImpl) ByFilter(ctx context.Context, filter models.MarketGridAssignmentFilter, orderBy string, limit, offset int) ([]*models.MarketGridAssignment, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.MarketGridAssignment{}), filter)

	if orderBy == "" {
		orderBy = "id DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var assignments []*models.MarketGridAssignment
	err := query.Find(&assignments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find assignments by filter: %w", err)
	}

	return assignments, nil
}

// Count returns the number of assignments matching the filter
func (r *MarketGridAssignmentRepositoryImpl) Count(ctx context.Context, filter models.MarketGridAssignmentFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.MarketGridAssignment{}), filter)

	var count int64
	err := query.Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count assignments: %w", err)
	}

	return count, nil
}

// Exists checks if any assignment matching the filter exists
func (r *MarketGridAssignmentRepositoryImpl) Exists(ctx context.Context, filter models.MarketGridAssignmentFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *MarketGridAssignmentRepositoryImpl) applyFilter(query *gorm.DB, filter models.MarketGridAssignmentFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.MarketID != nil {
		query = query.Where("market_id = ?", *filter.MarketID)
	}
	if filter.GridID != nil {
		query = query.Where("grid_id = ?", *filter.GridID)
	}
	if filter.CoversDate != nil {
		day := models.DateOf(*filter.CoversDate)
		query = query.Where("effective_start_date <= ? AND (effective_end_date IS NULL OR effective_end_date >= ?)", day, day)
	}
	if filter.StartAfter != nil {
		query = query.Where("effective_start_date >= ?", models.DateOf(*filter.StartAfter))
	}
	if filter.StartBefore != nil {
		query = query.Where("effective_start_date <= ?", models.DateOf(*filter.StartBefore))
	}
	return query
}
