package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adscope-labs/spotgrid/models"
	"github.com/adscope-labs/spotgrid/utils"
	"gorm.io/gorm"
)

// CollisionRecordRepositoryImpl implements the CollisionRecordRepository interface
type CollisionRecordRepositoryImpl struct {
	*BaseRepository[models.CollisionRecord, models.CollisionRecordFilter]
}

// NewCollisionRecordRepository creates a new collision record repository
func NewCollisionRecordRepository(db *gorm.DB) CollisionRecordRepository {
	return &CollisionRecordRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CollisionRecord, models.CollisionRecordFilter](db),
	}
}

// OpenMarketOverlap finds an existing open overlap record for the market, the
// normalized assignment pair, and the exact conflict window. Used to dedupe
// re-detection over an unchanged assignment set.
func (r *CollisionRecordRepositoryImpl) OpenMarketOverlap(ctx context.Context, marketID, pairLo, pairHi uint, conflictStart time.Time, conflictEnd *time.Time) (*models.CollisionRecord, error) {
	db := r.getDB(ctx)

	query := db.Where("market_id = ? AND type = ? AND status = ?",
		marketID, models.CollisionMarketOverlap, models.ResolutionUnresolved).
		Where("LEAST(assignment_a_id, assignment_b_id) = ? AND GREATEST(assignment_a_id, assignment_b_id) = ?",
			pairLo, pairHi).
		Where("conflict_start = ?", models.DateOf(conflictStart))
	if conflictEnd == nil {
		query = query.Where("conflict_end IS NULL")
	} else {
		query = query.Where("conflict_end = ?", models.DateOf(*conflictEnd))
	}

	var record models.CollisionRecord
	err := query.Last(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find open overlap record: %w", err)
	}

	return &record, nil
}

// OpenScheduleGap finds an existing open gap record for the market and day
func (r *CollisionRecordRepositoryImpl) OpenScheduleGap(ctx context.Context, marketID uint, day time.Time) (*models.CollisionRecord, error) {
	db := r.getDB(ctx)

	var record models.CollisionRecord
	err := db.Where("market_id = ? AND type = ? AND status = ? AND conflict_start = ?",
		marketID, models.CollisionScheduleGap, models.ResolutionUnresolved, models.DateOf(day)).
		Last(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find open gap record: %w", err)
	}

	return &record, nil
}

// ListOpen returns unresolved collision records, oldest first
func (r *CollisionRecordRepositoryImpl) ListOpen(ctx context.Context, limit, offset int) ([]*models.CollisionRecord, error) {
	status := models.ResolutionUnresolved
	filter := models.CollisionRecordFilter{Status: &status}
	return r.ByFilter(ctx, filter, "created_at ASC, id ASC", limit, offset)
}

// Resolve closes a collision record with an explicit resolution action.
// Records are append-only otherwise and never closed automatically.
func (r *CollisionRecordRepositoryImpl) Resolve(ctx context.Context, id uint, status models.ResolutionStatus, resolvedBy, notes string) error {
	if status != models.ResolutionResolved && status != models.ResolutionIgnored {
		return fmt.Errorf("invalid resolution status %q", status)
	}

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

	updates := map[string]any{
		"status":      status,
		"resolved_by": resolvedBy,
		"resolved_at": utils.UTCNow(),
	}
	if notes != "" {
		updates["resolution_notes"] = notes
	}

	err = db.Model(&models.CollisionRecord{}).
		Where("id = ? AND status = ?", id, models.ResolutionUnresolved).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("failed to resolve collision record %d: %w", id, err)
	}

	return nil
}

// ByFilter retrieves collision records based on filter criteria
func (r *CollisionRecordRepositoryImpl) ByFilter(ctx context.Context, filter models.CollisionRecordFilter, orderBy string, limit, offset int) ([]*models.CollisionRecord, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.CollisionRecord{}), filter)

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

	var records []*models.CollisionRecord
	err := query.Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find collision records by filter: %w", err)
	}

	return records, nil
}

// Count returns the number of collision records matching the filter
func (r *CollisionRecordRepositoryImpl) Count(ctx context.Context, filter models.CollisionRecordFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.CollisionRecord{}), filter)

	var count int64
	err := query.Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count collision records: %w", err)
	}

	return count, nil
}

// Exists checks if any collision record matching the filter exists
func (r *CollisionRecordRepositoryImpl) Exists(ctx context.Context, filter models.CollisionRecordFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *CollisionRecordRepositoryImpl) applyFilter(query *gorm.DB, filter models.CollisionRecordFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.MarketID != nil {
		query = query.Where("market_id = ?", *filter.MarketID)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.Severity != nil {
		query = query.Where("severity = ?", *filter.Severity)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	return query
}
