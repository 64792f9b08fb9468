package repository

import (
	"context"
	"fmt"

	"github.com/adscope-labs/spotgrid/models"
	"github.com/adscope-labs/spotgrid/utils"
	"gorm.io/gorm"
)

// ProgrammingGridRepositoryImpl implements the ProgrammingGridRepository interface
type ProgrammingGridRepositoryImpl struct {
	*BaseRepository[models.ProgrammingGrid, models.ProgrammingGridFilter]
}

// NewProgrammingGridRepository creates a new programming grid repository
func NewProgrammingGridRepository(db *gorm.DB) ProgrammingGridRepository {
	return &ProgrammingGridRepositoryImpl{
		BaseRepository: NewBaseRepository[models.ProgrammingGrid, models.ProgrammingGridFilter](db),
	}
}

// ByUUID retrieves a programming grid by UUID
func (r *ProgrammingGridRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.ProgrammingGrid, error) {
	parsedUUID, err := utils.ParseUUID(uuid)
	if err != nil {
		return nil, err
	}

	filter := models.ProgrammingGridFilter{UUID: &parsedUUID}
	grids, err := r.ByFilter(ctx, filter, "", 0, 0)
	if err != nil {
		return nil, err
	}

	if len(grids) == 0 {
		return nil, nil
	}

	return grids[0], nil
}

// ByFilter retrieves programming grids based on filter criteria
func (r *ProgrammingGridRepositoryImpl) ByFilter(ctx context.Context, filter models.ProgrammingGridFilter, orderBy string, limit, offset int) ([]*models.ProgrammingGrid, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ProgrammingGrid{}), filter)

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

	var grids []*models.ProgrammingGrid
	err := query.Find(&grids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find programming grids by filter: %w", err)
	}

	return grids, nil
}

// Count returns the number of programming grids matching the filter
func (r *ProgrammingGridRepositoryImpl) Count(ctx context.Context, filter models.ProgrammingGridFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ProgrammingGrid{}), filter)

	var count int64
	err := query.Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count programming grids: %w", err)
	}

	return count, nil
}

// Exists checks if any programming grid matching the filter exists
func (r *ProgrammingGridRepositoryImpl) Exists(ctx context.Context, filter models.ProgrammingGridFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *ProgrammingGridRepositoryImpl) applyFilter(query *gorm.DB, filter models.ProgrammingGridFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.Name != nil {
		query = query.Where("name = ?", *filter.Name)
	}
	if filter.Kind != nil {
		query = query.Where("kind = ?", *filter.Kind)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	return query
}
