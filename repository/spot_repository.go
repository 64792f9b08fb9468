package repository

import (
	"context"
	"fmt"

	"github.com/adscope-labs/spotgrid/models"
	"github.com/adscope-labs/spotgrid/utils"
	"gorm.io/gorm"
)

// SpotRepositoryImpl implements the SpotRepository interface
type SpotRepositoryImpl struct {
	*BaseRepository[models.Spot, models.SpotFilter]
}

// NewSpotRepository creates a new spot repository
func NewSpotRepository(db *gorm.DB) SpotRepository {
	return &SpotRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Spot, models.SpotFilter](db),
	}
}

// ByUUID retrieves a spot by UUID
func (r *SpotRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Spot, error) {
	parsedUUID, err := utils.ParseUUID(uuid)
	if err != nil {
		return nil, err
	}

	filter := models.SpotFilter{UUID: &parsedUUID}
	spots, err := r.ByFilter(ctx, filter, "", 0, 0)
	if err != nil {
		return nil, err
	}

	if len(spots) == 0 {
		return nil, nil
	}

	return spots[0], nil
}

// ListUnassigned pages through spots with no assignment row yet. Ordering by
// market keeps each market's spots contiguous so the batch scheduler can
// partition work per market.
func (r *SpotRepositoryImpl) ListUnassigned(ctx context.Context, limit, offset int) ([]*models.Spot, error) {
	db := r.getDB(ctx)

	query := db.Model(&models.Spot{}).
		Joins("LEFT JOIN spot_assignments ON spot_assignments.spot_id = spots.id").
		Where("spot_assignments.id IS NULL").
		Order("spots.market_id ASC, spots.id ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var spots []*models.Spot
	err := query.Find(&spots).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list unassigned spots: %w", err)
	}

	return spots, nil
}

// CountUnassigned returns the number of spots still missing an assignment
func (r *SpotRepositoryImpl) CountUnassigned(ctx context.Context) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	err := db.Model(&models.Spot{}).
		Joins("LEFT JOIN spot_assignments ON spot_assignments.spot_id = spots.id").
		Where("spot_assignments.id IS NULL").
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count unassigned spots: %w", err)
	}

	return count, nil
}

// ByFilter retrieves spots based on filter criteria
func (r *SpotRepositoryImpl) ByFilter(ctx context.Context, filter models.SpotFilter, orderBy string, limit, offset int) ([]*models.Spot, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Spot{}), filter)

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

	var spots []*models.Spot
	err := query.Find(&spots).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find spots by filter: %w", err)
	}

	return spots, nil
}

// Count returns the number of spots matching the filter
func (r *SpotRepositoryImpl) Count(ctx context.Context, filter models.SpotFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Spot{}), filter)

	var count int64
	err := query.Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count spots: %w", err)
	}

	return count, nil
}

// Exists checks if any spot matching the filter exists
func (r *SpotRepositoryImpl) Exists(ctx context.Context, filter models.SpotFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *SpotRepositoryImpl) applyFilter(query *gorm.DB, filter models.SpotFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.MarketID != nil {
		query = query.Where("market_id = ?", *filter.MarketID)
	}
	if filter.AirDateFrom != nil {
		query = query.Where("air_date >= ?", models.DateOf(*filter.AirDateFrom))
	}
	if filter.AirDateUntil != nil {
		query = query.Where("air_date <= ?", models.DateOf(*filter.AirDateUntil))
	}
	if filter.RevenueType != nil {
		query = query.Where("revenue_type = ?", *filter.RevenueType)
	}
	return query
}
