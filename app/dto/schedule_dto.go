package dto

// CreateMarketRequest creates a new market
type CreateMarketRequest struct {
	Code   string `json:"code" validate:"required,min=2,max=16"`
	Name   string `json:"name" validate:"required,max=128"`
	Region string `json:"region" validate:"omitempty,max=64"`
}

// CreateGridRequest creates a new programming grid version
type CreateGridRequest struct {
	Name               string `json:"name" validate:"required,max=128"`
	Version            string `json:"version" validate:"omitempty,max=32"`
	Kind               string `json:"kind" validate:"required,oneof=standard market_specific seasonal"`
	EffectiveStartDate string `json:"effective_start_date" validate:"required,datetime=2006-01-02"`
	EffectiveEndDate   string `json:"effective_end_date" validate:"omitempty,datetime=2006-01-02"`
}

// CreateBlockRequest adds a language block to a grid
type CreateBlockRequest struct {
	GridID       uint   `json:"grid_id" validate:"required,gte=1"`
	DayOfWeek    int    `json:"day_of_week" validate:"gte=0,lte=6"`
	StartTime    string `json:"start_time" validate:"required"`
	EndTime      string `json:"end_time" validate:"required"`
	LanguageCode string `json:"language_code" validate:"required,min=2,max=8"`
	Name         string `json:"name" validate:"omitempty,max=128"`
	Category     string `json:"category" validate:"omitempty,max=64"`
	DayPart      string `json:"day_part" validate:"omitempty,max=32"`
	DisplayOrder int    `json:"display_order" validate:"omitempty,gte=0"`
}

// CreateAssignmentRequest binds a market to a grid for a date range
type CreateAssignmentRequest struct {
	MarketID           uint   `json:"market_id" validate:"required,gte=1"`
	GridID             uint   `json:"grid_id" validate:"required,gte=1"`
	EffectiveStartDate string `json:"effective_start_date" validate:"required,datetime=2006-01-02"`
	EffectiveEndDate   string `json:"effective_end_date" validate:"omitempty,datetime=2006-01-02"`
	Priority           int    `json:"priority" validate:"omitempty,gte=0"`
}

// EndAssignmentRequest closes an open assignment on a date
type EndAssignmentRequest struct {
	EndDate string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

// MigrateMarketRequest moves a market to a new grid
type MigrateMarketRequest struct {
	MarketID  uint   `json:"market_id" validate:"required,gte=1"`
	NewGridID uint   `json:"new_grid_id" validate:"required,gte=1"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

// ResolveCollisionRequest closes a collision record
type ResolveCollisionRequest struct {
	Status string `json:"status" validate:"required,oneof=resolved ignored"`
	Notes  string `json:"notes" validate:"omitempty,max=1024"`
}
