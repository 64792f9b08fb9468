package businessflow

import (
	"context"
	"log"
	"time"

	"github.com/adscope-labs/spotgrid/models"
	"github.com/adscope-labs/spotgrid/repository"
	"github.com/adscope-labs/spotgrid/utils"
	"gorm.io/gorm"
)

// ScheduleAdminFlow is the thin administrative surface over the schedule
// store: the only legitimate writer of grid and assignment data the engine
// reads. Writes trigger collision detection and cache invalidation but are
// never blocked by findings.
type ScheduleAdminFlow interface {
	CreateMarket(ctx context.Context, market *models.Market) error
	ListMarkets(ctx context.Context, limit, offset int) ([]*models.Market, error)
	CreateGrid(ctx context.Context, grid *models.ProgrammingGrid) error
	CreateBlock(ctx context.Context, block *models.LanguageBlock) error
	DeactivateBlock(ctx context.Context, blockID uint) error
	// CreateAssignment binds a market to a grid; overlap findings are logged
	// and returned alongside success.
	CreateAssignment(ctx context.Context, assignment *models.MarketGridAssignment) ([]*models.CollisionRecord, error)
	// EndAssignment closes an open assignment on endDate. Assignments are
	// never deleted; history stays queryable for past air dates.
	EndAssignment(ctx context.Context, id uint, endDate time.Time) error
	// MigrateMarket ends the market's open assignment on endDate and starts
	// a successor assignment to the new grid the next day, atomically.
	MigrateMarket(ctx context.Context, marketID, newGridID uint, endDate time.Time, actor string) (*models.MarketGridAssignment, error)
	ListOpenCollisions(ctx context.Context, limit, offset int) ([]*models.CollisionRecord, error)
	ResolveCollision(ctx context.Context, id uint, status models.ResolutionStatus, resolvedBy, notes string) error
}

// ScheduleAdminFlowImpl implements ScheduleAdminFlow
type ScheduleAdminFlowImpl struct {
	db             *gorm.DB
	marketRepo     repository.MarketRepository
	gridRepo       repository.ProgrammingGridRepository
	blockRepo      repository.LanguageBlockRepository
	assignmentRepo repository.MarketGridAssignmentRepository
	collisionRepo  repository.CollisionRecordRepository
	collisions     CollisionFlow
	resolver       GridResolverFlow
	logger         *log.Logger
}

// NewScheduleAdminFlow creates a new schedule administration flow
func NewScheduleAdminFlow(
	db *gorm.DB,
	marketRepo repository.MarketRepository,
	gridRepo repository.ProgrammingGridRepository,
	blockRepo repository.LanguageBlockRepository,
	assignmentRepo repository.MarketGridAssignmentRepository,
	collisionRepo repository.CollisionRecordRepository,
	collisions CollisionFlow,
	resolver GridResolverFlow,
	logger *log.Logger,
) ScheduleAdminFlow {
	if logger == nil {
		logger = log.Default()
	}
	return &ScheduleAdminFlowImpl{
		db:             db,
		marketRepo:     marketRepo,
		gridRepo:       gridRepo,
		blockRepo:      blockRepo,
		assignmentRepo: assignmentRepo,
		collisionRepo:  collisionRepo,
		collisions:     collisions,
		resolver:       resolver,
		logger:         logger,
	}
}

// CreateMarket persists a new market after checking code uniqueness
func (s *ScheduleAdminFlowImpl) CreateMarket(ctx context.Context, market *models.Market) error {
	if market.Code == "" {
		return NewBusinessError("MARKET_VALIDATION_FAILED", "Market validation failed", ErrMarketCodeRequired)
	}
	existing, err := s.marketRepo.ByCode(ctx, market.Code)
	if err != nil {
		return NewBusinessError("MARKET_LOOKUP_FAILED", "Failed to lookup market", err)
	}
	if existing != nil {
		return NewBusinessError("MARKET_CODE_TAKEN", "Market code already in use", ErrMarketCodeTaken)
	}
	if err := s.marketRepo.Save(ctx, market); err != nil {
		return NewBusinessError("MARKET_CREATION_FAILED", "Market creation failed", err)
	}
	return nil
}

// ListMarkets returns markets ordered by code
func (s *ScheduleAdminFlowImpl) ListMarkets(ctx context.Context, limit, offset int) ([]*models.Market, error) {
	limit, offset, err := normalizePagination(limit, offset)
	if err != nil {
		return nil, NewBusinessError("INVALID_PAGINATION", "Invalid pagination", err)
	}
	markets, err := s.marketRepo.ByFilter(ctx, models.MarketFilter{}, "code ASC", limit, offset)
	if err != nil {
		return nil, NewBusinessError("MARKET_LIST_FAILED", "Failed to list markets", err)
	}
	return markets, nil
}

// CreateGrid persists a new programming grid version
func (s *ScheduleAdminFlowImpl) CreateGrid(ctx context.Context, grid *models.ProgrammingGrid) error {
	if grid.Name == "" {
		return NewBusinessError("GRID_VALIDATION_FAILED", "Grid validation failed", ErrGridNameRequired)
	}
	if err := grid.ValidateDates(); err != nil {
		return NewBusinessError("GRID_VALIDATION_FAILED", "Grid validation failed", err)
	}
	if err := s.gridRepo.Save(ctx, grid); err != nil {
		return NewBusinessError("GRID_CREATION_FAILED", "Grid creation failed", err)
	}
	return nil
}

// CreateBlock persists a new language block after validating its window
func (s *ScheduleAdminFlowImpl) CreateBlock(ctx context.Context, block *models.LanguageBlock) error {
	if block.LanguageCode == "" {
		return NewBusinessError("BLOCK_VALIDATION_FAILED", "Block validation failed", ErrBlockLanguageRequired)
	}
	if err := block.ValidateWindow(); err != nil {
		return NewBusinessError("BLOCK_VALIDATION_FAILED", "Block validation failed", ErrBlockWindowInvalid)
	}
	grid, err := s.gridRepo.ByID(ctx, block.GridID)
	if err != nil {
		return NewBusinessError("GRID_LOOKUP_FAILED", "Failed to lookup grid", err)
	}
	if grid == nil {
		return NewBusinessError("GRID_NOT_FOUND", "Programming grid not found", ErrGridNotFound)
	}
	if !grid.IsActive {
		return NewBusinessError("GRID_INACTIVE", "Programming grid is inactive", ErrGridInactive)
	}
	if err := s.blockRepo.Save(ctx, block); err != nil {
		return NewBusinessError("BLOCK_CREATION_FAILED", "Block creation failed", err)
	}
	return nil
}

// DeactivateBlock marks a block inactive
func (s *ScheduleAdminFlowImpl) DeactivateBlock(ctx context.Context, blockID uint) error {
	block, err := s.blockRepo.ByID(ctx, blockID)
	if err != nil {
		return NewBusinessError("BLOCK_LOOKUP_FAILED", "Failed to lookup block", err)
	}
	if block == nil {
		return NewBusinessError("BLOCK_NOT_FOUND", "Language block not found", ErrBlockNotFound)
	}
	if err := s.blockRepo.Deactivate(ctx, blockID); err != nil {
		return NewBusinessError("BLOCK_DEACTIVATION_FAILED", "Block deactivation failed", err)
	}
	return nil
}

// CreateAssignment binds a market to a grid for a date range. The write
// always lands; collision findings are logged for manual resolution because
// operational continuity outranks schedule purity.
func (s *ScheduleAdminFlowImpl) CreateAssignment(ctx context.Context, assignment *models.MarketGridAssignment) ([]*models.CollisionRecord, error) {
	market, err := s.marketRepo.ByID(ctx, assignment.MarketID)
	if err != nil {
		return nil, NewBusinessError("MARKET_LOOKUP_FAILED", "Failed to lookup market", err)
	}
	if market == nil {
		return nil, NewBusinessError("MARKET_NOT_FOUND", "Market not found", ErrMarketNotFound)
	}
	if !market.IsActive {
		return nil, NewBusinessError("MARKET_INACTIVE", "Market is inactive", ErrMarketInactive)
	}
	grid, err := s.gridRepo.ByID(ctx, assignment.GridID)
	if err != nil {
		return nil, NewBusinessError("GRID_LOOKUP_FAILED", "Failed to lookup grid", err)
	}
	if grid == nil {
		return nil, NewBusinessError("GRID_NOT_FOUND", "Programming grid not found", ErrGridNotFound)
	}
	if !grid.IsActive {
		return nil, NewBusinessError("GRID_INACTIVE", "Programming grid is inactive", ErrGridInactive)
	}
	if assignment.EffectiveStartDate.IsZero() {
		return nil, NewBusinessError("ASSIGNMENT_VALIDATION_FAILED", "Assignment validation failed", ErrStartDateRequired)
	}
	if assignment.EffectiveEndDate != nil &&
		models.DateOf(*assignment.EffectiveEndDate).Before(models.DateOf(assignment.EffectiveStartDate)) {
		return nil, NewBusinessError("ASSIGNMENT_VALIDATION_FAILED", "Assignment validation failed", ErrEndDateBeforeStart)
	}

	if err := s.assignmentRepo.Save(ctx, assignment); err != nil {
		return nil, NewBusinessError("ASSIGNMENT_CREATION_FAILED", "Assignment creation failed", err)
	}

	if err := s.resolver.InvalidateMarket(ctx, assignment.MarketID); err != nil {
		s.logger.Printf("resolution cache invalidation failed for market %d: %v", assignment.MarketID, err)
	}

	findings, err := s.collisions.OnWrite(ctx, assignment)
	if err != nil {
		// Detection is observability; the assignment write stands.
		s.logger.Printf("collision detection failed for assignment %d (market %d): %v",
			assignment.ID, assignment.MarketID, err)
		return nil, nil
	}
	for _, finding := range findings {
		s.logger.Printf("collision logged: %s", finding.Description)
	}

	return findings, nil
}

// EndAssignment closes an open assignment on endDate
func (s *ScheduleAdminFlowImpl) EndAssignment(ctx context.Context, id uint, endDate time.Time) error {
	assignment, err := s.assignmentRepo.ByID(ctx, id)
	if err != nil {
		return NewBusinessError("ASSIGNMENT_LOOKUP_FAILED", "Failed to lookup assignment", err)
	}
	if assignment == nil {
		return NewBusinessError("ASSIGNMENT_NOT_FOUND", "Market grid assignment not found", ErrAssignmentNotFound)
	}
	if assignment.EffectiveEndDate != nil {
		return NewBusinessError("ASSIGNMENT_ALREADY_ENDED", "Market grid assignment already ended", ErrAssignmentAlreadyEnded)
	}
	if models.DateOf(endDate).Before(models.DateOf(assignment.EffectiveStartDate)) {
		return NewBusinessError("ASSIGNMENT_VALIDATION_FAILED", "Assignment validation failed", ErrEndDateBeforeStart)
	}
	if err := s.assignmentRepo.EndAssignment(ctx, id, endDate); err != nil {
		return NewBusinessError("ASSIGNMENT_END_FAILED", "Failed to end assignment", err)
	}

	if err := s.resolver.InvalidateMarket(ctx, assignment.MarketID); err != nil {
		s.logger.Printf("resolution cache invalidation failed for market %d: %v", assignment.MarketID, err)
	}
	return nil
}

// MigrateMarket moves a market to a new grid: every open assignment is ended
// on endDate and a successor starts the next day. Both writes commit in one
// transaction so the market is never left without a row mid-migration.
func (s *ScheduleAdminFlowImpl) MigrateMarket(ctx context.Context, marketID, newGridID uint, endDate time.Time, actor string) (*models.MarketGridAssignment, error) {
	if newGridID == 0 {
		return nil, NewBusinessError("MIGRATION_VALIDATION_FAILED", "Migration validation failed", ErrSuccessorGridRequired)
	}
	grid, err := s.gridRepo.ByID(ctx, newGridID)
	if err != nil {
		return nil, NewBusinessError("GRID_LOOKUP_FAILED", "Failed to lookup grid", err)
	}
	if grid == nil {
		return nil, NewBusinessError("GRID_NOT_FOUND", "Programming grid not found", ErrGridNotFound)
	}
	if !grid.IsActive {
		return nil, NewBusinessError("GRID_INACTIVE", "Programming grid is inactive", ErrGridInactive)
	}

	successor := &models.MarketGridAssignment{
		MarketID:           marketID,
		GridID:             newGridID,
		EffectiveStartDate: models.DateOf(endDate).AddDate(0, 0, 1),
		CreatedBy:          utils.ToPtr(actor),
	}

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		open, err := s.assignmentRepo.ListByMarket(txCtx, marketID)
		if err != nil {
			return err
		}
		for _, assignment := range open {
			if assignment.EffectiveEndDate != nil {
				continue
			}
			if err := s.assignmentRepo.EndAssignment(txCtx, assignment.ID, endDate); err != nil {
				return err
			}
		}
		return s.assignmentRepo.Save(txCtx, successor)
	})
	if err != nil {
		return nil, NewBusinessError("MARKET_MIGRATION_FAILED", "Market migration failed", err)
	}

	if err := s.resolver.InvalidateMarket(ctx, marketID); err != nil {
		s.logger.Printf("resolution cache invalidation failed for market %d: %v", marketID, err)
	}

	if _, err := s.collisions.OnWrite(ctx, successor); err != nil {
		s.logger.Printf("collision detection failed for assignment %d (market %d): %v",
			successor.ID, marketID, err)
	}

	return successor, nil
}

// ListOpenCollisions returns unresolved collision records
func (s *ScheduleAdminFlowImpl) ListOpenCollisions(ctx context.Context, limit, offset int) ([]*models.CollisionRecord, error) {
	limit, offset, err := normalizePagination(limit, offset)
	if err != nil {
		return nil, NewBusinessError("INVALID_PAGINATION", "Invalid pagination", err)
	}
	records, err := s.collisionRepo.ListOpen(ctx, limit, offset)
	if err != nil {
		return nil, NewBusinessError("COLLISION_LIST_FAILED", "Failed to list collisions", err)
	}
	return records, nil
}

// ResolveCollision closes a collision record with an explicit action
func (s *ScheduleAdminFlowImpl) ResolveCollision(ctx context.Context, id uint, status models.ResolutionStatus, resolvedBy, notes string) error {
	record, err := s.collisionRepo.ByID(ctx, id)
	if err != nil {
		return NewBusinessError("COLLISION_LOOKUP_FAILED", "Failed to lookup collision record", err)
	}
	if record == nil {
		return NewBusinessError("COLLISION_NOT_FOUND", "Collision record not found", ErrCollisionRecordNotFound)
	}
	if !record.IsOpen() {
		return NewBusinessError("COLLISION_ALREADY_RESOLVED", "Collision record already closed", ErrCollisionAlreadyResolved)
	}
	if err := s.collisionRepo.Resolve(ctx, id, status, resolvedBy, notes); err != nil {
		return NewBusinessError("COLLISION_RESOLUTION_FAILED", "Collision resolution failed", err)
	}
	return nil
}
