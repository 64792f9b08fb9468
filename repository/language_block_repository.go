package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/adscope-labs/spotgrid/models"
	"github.com/adscope-labs/spotgrid/utils"
	"gorm.io/gorm"
)

// ErrDuplicateBlockRange is returned when an active block with an identical
// start/end window already exists in the same grid and day-of-week. Identical
// ranges are a data-integrity violation the store rejects at write time;
// overlapping-but-not-identical ranges are tolerated and left to the matcher.
// The pre-insert check gives the caller a clean error; the partial unique
// index uk_language_blocks_active_range closes the race between concurrent
// writers.
var ErrDuplicateBlockRange = errors.New("active block with identical time range already exists for this grid and day")

// LanguageBlockRepositoryImpl implements the LanguageBlockRepository interface
type LanguageBlockRepositoryImpl struct {
	*BaseRepository[models.LanguageBlock, models.LanguageBlockFilter]
}

// NewLanguageBlockRepository creates a new language block repository
func NewLanguageBlockRepository(db *gorm.DB) LanguageBlockRepository {
	return &LanguageBlockRepositoryImpl{
		BaseRepository: NewBaseRepository[models.LanguageBlock, models.LanguageBlockFilter](db),
	}
}

// Save inserts a new block after rejecting identical active ranges
func (r *LanguageBlockRepositoryImpl) Save(ctx context.Context, block *models.LanguageBlock) error {
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

	var count int64
	err = db.Model(&models.LanguageBlock{}).
		Where("grid_id = ? AND day_of_week = ? AND start_minute = ? AND end_minute = ? AND is_active = true",
			block.GridID, block.DayOfWeek, block.StartMinute, block.EndMinute).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("failed to check for duplicate block range: %w", err)
	}
	if count > 0 {
		err = ErrDuplicateBlockRange
		return err
	}

	err = db.Create(block).Error
	if err != nil {
		// A concurrent writer can slip past the count; the unique index
		// catches it.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			err = ErrDuplicateBlockRange
			return err
		}
		return fmt.Errorf("failed to save language block: %w", err)
	}

	return nil
}

// ActiveByGridAndDay returns the active blocks for a grid and day-of-week,
// ordered by start time
func (r *LanguageBlockRepositoryImpl) ActiveByGridAndDay(ctx context.Context, gridID uint, day models.DayOfWeek) ([]*models.LanguageBlock, error) {
	db := r.getDB(ctx)

	var blocks []*models.LanguageBlock
	err := db.Where("grid_id = ? AND day_of_week = ? AND is_active = true", gridID, day).
		Order("start_minute ASC, id ASC").
		Find(&blocks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find blocks for grid %d day %s: %w", gridID, day, err)
	}

	return blocks, nil
}

// Deactivate marks a block inactive; blocks are never deleted
func (r *LanguageBlockRepositoryImpl) Deactivate(ctx context.Context, id uint) error {
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

	err = db.Model(&models.LanguageBlock{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_active": false, "updated_at": utils.UTCNow()}).Error
	if err != nil {
		return fmt.Errorf("failed to deactivate block %d: %w", id, err)
	}

	return nil
}

// ByIDs retrieves blocks by a set of IDs
func (r *LanguageBlockRepositoryImpl) ByIDs(ctx context.Context, ids []uint) ([]*models.LanguageBlock, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	db := r.getDB(ctx)

	var blocks []*models.LanguageBlock
	err := db.Where("id IN ?", ids).Order("start_minute ASC, id ASC").Find(&blocks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find blocks by ids: %w", err)
	}

	return blocks, nil
}

// ByFilter retrieves language blocks based on filter criteria
func (r *LanguageBlockRepositoryImpl) ByFilter(ctx context.Context, filter models.LanguageBlockFilter, orderBy string, limit, offset int) ([]*models.LanguageBlock, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.LanguageBlock{}), filter)

	if orderBy == "" {
		orderBy = "grid_id ASC, day_of_week ASC, start_minute ASC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var blocks []*models.LanguageBlock
	err := query.Find(&blocks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find language blocks by filter: %w", err)
	}

	return blocks, nil
}

// Count returns the number of language blocks matching the filter
func (r *LanguageBlockRepositoryImpl) Count(ctx context.Context, filter models.LanguageBlockFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.LanguageBlock{}), filter)

	var count int64
	err := query.Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count language blocks: %w", err)
	}

	return count, nil
}

// Exists checks if any language block matching the filter exists
func (r *LanguageBlockRepositoryImpl) Exists(ctx context.Context, filter models.LanguageBlockFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *LanguageBlockRepositoryImpl) applyFilter(query *gorm.DB, filter models.LanguageBlockFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.GridID != nil {
		query = query.Where("grid_id = ?", *filter.GridID)
	}
	if filter.DayOfWeek != nil {
		query = query.Where("day_of_week = ?", *filter.DayOfWeek)
	}
	if filter.LanguageCode != nil {
		query = query.Where("language_code = ?", *filter.LanguageCode)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	return query
}
