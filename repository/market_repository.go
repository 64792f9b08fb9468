package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/adscope-labs/spotgrid/models"
	"github.com/adscope-labs/spotgrid/utils"
	"gorm.io/gorm"
)

// MarketRepositoryImpl implements the MarketRepository interface
type MarketRepositoryImpl struct {
	*BaseRepository[models.Market, models.MarketFilter]
}

// NewMarketRepository creates a new market repository
func NewMarketRepository(db *gorm.DB) MarketRepository {
	return &MarketRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Market, models.MarketFilter](db),
	}
}

// ByCode retrieves a market by its short code
func (r *MarketRepositoryImpl) ByCode(ctx context.Context, code string) (*models.Market, error) {
	db := r.getDB(ctx)

	var market models.Market
	err := db.Where("code = ?", code).Last(&market).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find market by code: %w", err)
	}

	return &market, nil
}

// ByUUID retrieves a market by UUID
func (r *MarketRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Market, error) {
	parsedUUID, err := utils.ParseUUID(uuid)
	if err != nil {
		return nil, err
	}

	filter := models.MarketFilter{UUID: &parsedUUID}
	markets, err := r.ByFilter(ctx, filter, "", 0, 0)
	if err != nil {
		return nil, err
	}

	if len(markets) == 0 {
		return nil, nil
	}

	return markets[0], nil
}

// ByFilter retrieves markets based on filter criteria
func (r *MarketRepositoryImpl) ByFilter(ctx context.Context, filter models.MarketFilter, orderBy string, limit, offset int) ([]*models.Market, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Market{}), filter)

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

	var markets []*models.Market
	err := query.Find(&markets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find markets by filter: %w", err)
	}

	return markets, nil
}

// Count returns the number of markets matching the filter
func (r *MarketRepositoryImpl) Count(ctx context.Context, filter models.MarketFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Market{}), filter)

	var count int64
	err := query.Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count markets: %w", err)
	}

	return count, nil
}

// Exists checks if any market matching the filter exists
func (r *MarketRepositoryImpl) Exists(ctx context.Context, filter models.MarketFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *MarketRepositoryImpl) applyFilter(query *gorm.DB, filter models.MarketFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.Code != nil {
		query = query.Where("code = ?", *filter.Code)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	return query
}
