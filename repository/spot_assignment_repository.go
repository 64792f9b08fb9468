package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/adscope-labs/spotgrid/models"
	"github.com/adscope-labs/spotgrid/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SpotAssignmentRepositoryImpl implements the SpotAssignmentRepository interface
type SpotAssignmentRepositoryImpl struct {
	*BaseRepository[models.SpotAssignment, models.SpotAssignmentFilter]
}

// NewSpotAssignmentRepository creates a new spot assignment repository
func NewSpotAssignmentRepository(db *gorm.DB) SpotAssignmentRepository {
	return &SpotAssignmentRepositoryImpl{
		BaseRepository: NewBaseRepository[models.SpotAssignment, models.SpotAssignmentFilter](db),
	}
}

// BySpotID retrieves the single assignment for a spot
func (r *SpotAssignmentRepositoryImpl) BySpotID(ctx context.Context, spotID uint) (*models.SpotAssignment, error) {
	db := r.getDB(ctx)

	var assignment models.SpotAssignment
	err := db.Where("spot_id = ?", spotID).Last(&assignment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find assignment for spot %d: %w", spotID, err)
	}

	return &assignment, nil
}

// Upsert writes the single assignment row for a spot. The row transitions
// atomically from absent/previous to new; readers never observe a partial
// write.
func (r *SpotAssignmentRepositoryImpl) Upsert(ctx context.Context, assignment *models.SpotAssignment) error {
	if err := assignment.Validate(); err != nil {
		return err
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

	if assignment.AssignedAt.IsZero() {
		assignment.AssignedAt = utils.UTCNow()
	}

	err = db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "spot_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"grid_id", "block_id", "intent", "confidence", "multi_block",
			"spanned_block_ids", "primary_block_id", "method",
			"requires_attention", "attention_reason", "updated_at",
		}),
	}).Create(assignment).Error
	if err != nil {
		return fmt.Errorf("failed to upsert assignment for spot %d: %w", assignment.SpotID, err)
	}

	return nil
}

// ByFilter retrieves spot assignments based on filter criteria
func (r *SpotAssignmentRepositoryImpl) ByFilter(ctx context.Context, filter models.SpotAssignmentFilter, orderBy string, limit, offset int) ([]*models.SpotAssignment, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.SpotAssignment{}), filter)

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

	var assignments []*models.SpotAssignment
	err := query.Find(&assignments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find spot assignments by filter: %w", err)
	}

	return assignments, nil
}

// Count returns the number of spot assignments matching the filter
func (r *SpotAssignmentRepositoryImpl) Count(ctx context.Context, filter models.SpotAssignmentFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.SpotAssignment{}), filter)

	var count int64
	err := query.Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count spot assignments: %w", err)
	}

	return count, nil
}

// Exists checks if any spot assignment matching the filter exists
func (r *SpotAssignmentRepositoryImpl) Exists(ctx context.Context, filter models.SpotAssignmentFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *SpotAssignmentRepositoryImpl) applyFilter(query *gorm.DB, filter models.SpotAssignmentFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.SpotID != nil {
		query = query.Where("spot_id = ?", *filter.SpotID)
	}
	if filter.GridID != nil {
		query = query.Where("grid_id = ?", *filter.GridID)
	}
	if filter.Intent != nil {
		query = query.Where("intent = ?", *filter.Intent)
	}
	if filter.Method != nil {
		query = query.Where("method = ?", *filter.Method)
	}
	if filter.RequiresAttention != nil {
		query = query.Where("requires_attention = ?", *filter.RequiresAttention)
	}
	return query
}
