package businessflow

import (
	"context"
	"fmt"
	"time"

	"github.com/adscope-labs/spotgrid/models"
	"github.com/adscope-labs/spotgrid/repository"
	"github.com/adscope-labs/spotgrid/utils"
)

// CollisionFlow detects overlapping market-grid assignments and coverage
// gaps. Findings are observability, not validation gates: spots must keep
// importing, so detection never blocks the write that triggered it.
type CollisionFlow interface {
	// Check computes the collisions a candidate assignment would raise,
	// without persisting anything.
	Check(ctx context.Context, candidate *models.MarketGridAssignment) ([]*models.CollisionRecord, error)
	// OnWrite runs Check after an assignment insert/update and persists any
	// findings not already logged as open records.
	OnWrite(ctx context.Context, candidate *models.MarketGridAssignment) ([]*models.CollisionRecord, error)
	// ScanGaps emits schedule_gap warnings for onboarded markets with no
	// assignment covering the given day.
	ScanGaps(ctx context.Context, day time.Time) ([]*models.CollisionRecord, error)
}

// CollisionFlowImpl implements CollisionFlow
type CollisionFlowImpl struct {
	assignmentRepo repository.MarketGridAssignmentRepository
	collisionRepo  repository.CollisionRecordRepository
	gridRepo       repository.ProgrammingGridRepository
}

// NewCollisionFlow creates a new collision flow
func NewCollisionFlow(
	assignmentRepo repository.MarketGridAssignmentRepository,
	collisionRepo repository.CollisionRecordRepository,
	gridRepo repository.ProgrammingGridRepository,
) CollisionFlow {
	return &CollisionFlowImpl{
		assignmentRepo: assignmentRepo,
		collisionRepo:  collisionRepo,
		gridRepo:       gridRepo,
	}
}

// Check finds every existing assignment for the candidate's market whose date
// range intersects the candidate's. The conflict window is symmetric:
// checking A against B yields the same window as B against A.
func (f *CollisionFlowImpl) Check(ctx context.Context, candidate *models.MarketGridAssignment) ([]*models.CollisionRecord, error) {
	existing, err := f.assignmentRepo.ListByMarket(ctx, candidate.MarketID)
	if err != nil {
		return nil, NewBusinessError("COLLISION_CHECK_FAILED", "Failed to load market assignments", err)
	}

	var findings []*models.CollisionRecord
	for _, other := range existing {
		if other.ID == candidate.ID {
			continue
		}
		start, end, ok := candidate.ConflictWindow(other)
		if !ok {
			continue
		}
		findings = append(findings, &models.CollisionRecord{
			MarketID:      candidate.MarketID,
			Type:          models.CollisionMarketOverlap,
			Severity:      models.SeverityError,
			AssignmentAID: utils.ToPtr(candidate.ID),
			AssignmentBID: utils.ToPtr(other.ID),
			ConflictStart: start,
			ConflictEnd:   end,
			Description:   f.describeOverlap(ctx, candidate, other, start, end),
		})
	}

	return findings, nil
}

// OnWrite persists the findings of Check, deduping by (market, assignment
// pair, conflict range) against open records so re-detection over an
// unchanged assignment set stays idempotent.
func (f *CollisionFlowImpl) OnWrite(ctx context.Context, candidate *models.MarketGridAssignment) ([]*models.CollisionRecord, error) {
	mu := lockMarket(candidate.MarketID)
	defer mu.Unlock()

	findings, err := f.Check(ctx, candidate)
	if err != nil {
		return nil, err
	}

	var persisted []*models.CollisionRecord
	for _, finding := range findings {
		lo, hi := finding.PairKey()
		open, err := f.collisionRepo.OpenMarketOverlap(ctx, finding.MarketID, lo, hi, finding.ConflictStart, finding.ConflictEnd)
		if err != nil {
			return persisted, NewBusinessError("COLLISION_DEDUPE_FAILED", "Failed to dedupe collision record", err)
		}
		if open != nil {
			continue
		}
		if err := f.collisionRepo.Save(ctx, finding); err != nil {
			return persisted, NewBusinessError("COLLISION_PERSIST_FAILED", "Failed to persist collision record", err)
		}
		persisted = append(persisted, finding)
	}

	return persisted, nil
}

// ScanGaps checks every market that has ever been assigned a grid for
// coverage on the given day. Markets never onboarded are not gaps.
func (f *CollisionFlowImpl) ScanGaps(ctx context.Context, day time.Time) ([]*models.CollisionRecord, error) {
	marketIDs, err := f.assignmentRepo.MarketIDsWithAssignments(ctx)
	if err != nil {
		return nil, NewBusinessError("GAP_SCAN_FAILED", "Failed to list assigned markets", err)
	}

	day = models.DateOf(day)
	var persisted []*models.CollisionRecord
	for _, marketID := range marketIDs {
		covering, err := f.assignmentRepo.CoveringDate(ctx, marketID, day)
		if err != nil {
			return persisted, NewBusinessError("GAP_SCAN_FAILED", "Failed to check market coverage", err)
		}
		if len(covering) > 0 {
			continue
		}

		open, err := f.collisionRepo.OpenScheduleGap(ctx, marketID, day)
		if err != nil {
			return persisted, NewBusinessError("GAP_SCAN_FAILED", "Failed to dedupe gap record", err)
		}
		if open != nil {
			continue
		}

		record := &models.CollisionRecord{
			MarketID:      marketID,
			Type:          models.CollisionScheduleGap,
			Severity:      models.SeverityWarning,
			ConflictStart: day,
			ConflictEnd:   utils.ToPtr(day),
			Description: fmt.Sprintf("market %d has no grid assignment covering %s",
				marketID, day.Format(utils.DateLayout)),
		}
		if err := f.collisionRepo.Save(ctx, record); err != nil {
			return persisted, NewBusinessError("COLLISION_PERSIST_FAILED", "Failed to persist gap record", err)
		}
		persisted = append(persisted, record)
	}

	return persisted, nil
}

// describeOverlap names both grids in a human-readable conflict description.
func (f *CollisionFlowImpl) describeOverlap(ctx context.Context, candidate, other *models.MarketGridAssignment, start time.Time, end *time.Time) string {
	nameOf := func(gridID uint) string {
		grid, err := f.gridRepo.ByID(ctx, gridID)
		if err != nil || grid == nil {
			return fmt.Sprintf("grid %d", gridID)
		}
		return grid.DisplayLabel()
	}

	window := start.Format(utils.DateLayout) + " onward"
	if end != nil {
		window = fmt.Sprintf("%s to %s", start.Format(utils.DateLayout), end.Format(utils.DateLayout))
	}

	return fmt.Sprintf("market %d is assigned to both %s (assignment %d) and %s (assignment %d) from %s",
		candidate.MarketID, nameOf(candidate.GridID), candidate.ID, nameOf(other.GridID), other.ID, window)
}
