package businessflow

import (
	"context"
	"fmt"
	"math"

	"github.com/adscope-labs/spotgrid/models"
	"github.com/adscope-labs/spotgrid/repository"
	"github.com/adscope-labs/spotgrid/utils"
	"github.com/lib/pq"
)

// SpotOutcome is the per-spot result variant the batch orchestrator
// aggregates. Data-quality problems mark the outcome failed instead of
// returning an error so they never cross spot boundaries as control flow.
type SpotOutcome struct {
	SpotUUID   string
	Assignment *models.SpotAssignment
	Failed     bool
	Reason     string
}

// AssignmentFlow classifies advertiser intent for a spot and persists exactly
// one assignment row for it. Only store-level failures surface as errors;
// everything else is folded into the outcome.
type AssignmentFlow interface {
	Assign(ctx context.Context, spot *models.Spot) (*SpotOutcome, error)
	// Reassign explicitly re-runs classification for one spot. By default it
	// reuses the grid version recorded at original assignment time; grids
	// that changed since never retroactively alter attribution. Passing
	// forceCurrentGrid re-resolves against the live schedule, which is why
	// the operation is explicit and audited rather than a side effect of
	// grid edits.
	Reassign(ctx context.Context, spotUUID string, forceCurrentGrid bool, actor string) (*models.SpotAssignment, error)
	// AssignmentForSpot returns the recorded assignment for a spot.
	AssignmentForSpot(ctx context.Context, spotUUID string) (*models.SpotAssignment, error)
}

// AssignmentFlowImpl implements AssignmentFlow
type AssignmentFlowImpl struct {
	resolver       GridResolverFlow
	matcher        BlockMatcherFlow
	spotRepo       repository.SpotRepository
	assignmentRepo repository.SpotAssignmentRepository
}

// NewAssignmentFlow creates a new assignment flow
func NewAssignmentFlow(
	resolver GridResolverFlow,
	matcher BlockMatcherFlow,
	spotRepo repository.SpotRepository,
	assignmentRepo repository.SpotAssignmentRepository,
) AssignmentFlow {
	return &AssignmentFlowImpl{
		resolver:       resolver,
		matcher:        matcher,
		spotRepo:       spotRepo,
		assignmentRepo: assignmentRepo,
	}
}

// Assign runs the classification state machine for one spot and upserts the
// resulting row. The returned error is reserved for store failures; per-spot
// problems come back as a flagged outcome.
func (f *AssignmentFlowImpl) Assign(ctx context.Context, spot *models.Spot) (*SpotOutcome, error) {
	outcome := &SpotOutcome{SpotUUID: spot.UUID.String()}

	// A malformed spot counts against the batch error count, not the
	// coverage counts. The row is still written as unattributable so the
	// run stays idempotent and the spot stays visible for cleanup.
	if reason := validateSpot(spot); reason != "" {
		outcome.Failed = true
		outcome.Reason = reason
	}

	assignment, err := f.classify(ctx, spot)
	if err != nil {
		// Resolution and matching only fail when the store does; partial
		// progress is resumable but guessing at assignments is not.
		return nil, err
	}

	if err := f.assignmentRepo.Upsert(ctx, assignment); err != nil {
		return nil, NewBusinessError("ASSIGNMENT_WRITE_FAILED", "Failed to write spot assignment",
			fmt.Errorf("%w: %w", ErrStoreUnavailable, err))
	}

	outcome.Assignment = assignment
	return outcome, nil
}

// classify implements the per-spot state machine; terminal after one pass.
func (f *AssignmentFlowImpl) classify(ctx context.Context, spot *models.Spot) (*models.SpotAssignment, error) {
	assignment := &models.SpotAssignment{SpotID: spot.ID}

	if reason := validateSpot(spot); reason != "" {
		assignment.Intent = models.IntentNoGridCoverage
		assignment.Method = models.MethodNoGridAvailable
		assignment.RequiresAttention = true
		assignment.AttentionReason = utils.ToPtr(reason)
		return assignment, nil
	}

	resolution, err := f.resolver.Resolve(ctx, spot.MarketID, spot.AirDate)
	if err != nil {
		return nil, err
	}
	if resolution.NoCoverage {
		assignment.Intent = models.IntentNoGridCoverage
		assignment.Method = models.MethodNoGridAvailable
		return assignment, nil
	}

	return f.classifyWithGrid(ctx, spot, resolution.GridID)
}

// classifyWithGrid classifies a spot against a known grid version.
func (f *AssignmentFlowImpl) classifyWithGrid(ctx context.Context, spot *models.Spot, gridID uint) (*models.SpotAssignment, error) {
	assignment := &models.SpotAssignment{
		SpotID: spot.ID,
		GridID: utils.ToPtr(gridID),
	}

	matched, err := f.matcher.Match(ctx, gridID, spot.DayOfWeek, spot.TimeIn, spot.TimeOut)
	if err != nil {
		return nil, err
	}

	spotRange := spot.MinuteRange()

	switch {
	case len(matched) == 0:
		// Grid exists but nothing is defined for this slot: a coverage gap,
		// reported rather than fatal.
		assignment.Intent = models.IntentNoGridCoverage
		assignment.Method = models.MethodNoGridAvailable
		if spotRange.IsZeroLength() {
			assignment.RequiresAttention = true
			assignment.AttentionReason = utils.ToPtr(fmt.Sprintf(
				"zero-length time range %s-%s", spot.TimeIn, spot.TimeOut))
		}

	case len(matched) == 1:
		block := matched[0]
		assignment.BlockID = utils.ToPtr(block.ID)
		assignment.Method = models.MethodAutoComputed
		if block.MinuteRange().Contains(spotRange) {
			// The advertiser bought inside a single language block.
			assignment.Intent = models.IntentLanguageSpecific
			assignment.Confidence = utils.ConfidenceExact
		} else {
			// Edge spillover past the block boundary: the buy is tied to a
			// clock window, not the language. Confidence reflects how much
			// of the spot the block actually covers.
			assignment.Intent = models.IntentTimeSpecific
			assignment.Confidence = overlapConfidence(block, spotRange)
		}

	default:
		// Spanning multiple language blocks means the advertiser is
		// indifferent to specific language targeting.
		assignment.Intent = models.IntentIndifferent
		assignment.Method = models.MethodAutoComputed
		assignment.Confidence = utils.ConfidenceExact
		assignment.MultiBlock = true
		assignment.SpannedBlockIDs = make(pq.Int64Array, 0, len(matched))
		best := matched[0]
		bestOverlap := best.MinuteRange().OverlapMinutes(spotRange)
		for _, block := range matched {
			assignment.SpannedBlockIDs = append(assignment.SpannedBlockIDs, int64(block.ID))
			if o := block.MinuteRange().OverlapMinutes(spotRange); o > bestOverlap {
				best, bestOverlap = block, o
			}
		}
		assignment.PrimaryBlockID = utils.ToPtr(best.ID)
	}

	return assignment, nil
}

// Reassign replaces the assignment row for one spot.
func (f *AssignmentFlowImpl) Reassign(ctx context.Context, spotUUID string, forceCurrentGrid bool, actor string) (*models.SpotAssignment, error) {
	spot, err := f.spotRepo.ByUUID(ctx, spotUUID)
	if err != nil {
		return nil, NewBusinessError("SPOT_LOOKUP_FAILED", "Failed to lookup spot", err)
	}
	if spot == nil {
		return nil, NewBusinessError("SPOT_NOT_FOUND", "Spot not found", ErrSpotNotFound)
	}

	existing, err := f.assignmentRepo.BySpotID(ctx, spot.ID)
	if err != nil {
		return nil, NewBusinessError("ASSIGNMENT_LOOKUP_FAILED", "Failed to lookup assignment", err)
	}
	if existing == nil {
		return nil, NewBusinessError("SPOT_NOT_YET_ASSIGNED", "Spot has no assignment to replace", ErrSpotNotYetAssigned)
	}

	var assignment *models.SpotAssignment
	switch {
	case forceCurrentGrid:
		assignment, err = f.classify(ctx, spot)
		if err != nil {
			return nil, err
		}
		assignment.Method = models.MethodManualOverride
		assignment.AttentionReason = utils.ToPtr(fmt.Sprintf("reassigned against current grid by %s", actor))
	case existing.GridID != nil:
		// Honor the grid version that was live when the spot was first
		// finalized; the fix being picked up is block-level, not a grid
		// migration.
		assignment, err = f.classifyWithGrid(ctx, spot, *existing.GridID)
		if err != nil {
			return nil, err
		}
	default:
		// Original run found no coverage; a plain re-run is the only
		// meaningful repair.
		assignment, err = f.classify(ctx, spot)
		if err != nil {
			return nil, err
		}
	}

	if err := f.assignmentRepo.Upsert(ctx, assignment); err != nil {
		return nil, NewBusinessError("ASSIGNMENT_WRITE_FAILED", "Failed to write spot assignment", err)
	}

	return assignment, nil
}

// AssignmentForSpot returns the recorded assignment for a spot.
func (f *AssignmentFlowImpl) AssignmentForSpot(ctx context.Context, spotUUID string) (*models.SpotAssignment, error) {
	spot, err := f.spotRepo.ByUUID(ctx, spotUUID)
	if err != nil {
		return nil, NewBusinessError("SPOT_LOOKUP_FAILED", "Failed to lookup spot", err)
	}
	if spot == nil {
		return nil, NewBusinessError("SPOT_NOT_FOUND", "Spot not found", ErrSpotNotFound)
	}

	assignment, err := f.assignmentRepo.BySpotID(ctx, spot.ID)
	if err != nil {
		return nil, NewBusinessError("ASSIGNMENT_LOOKUP_FAILED", "Failed to lookup assignment", err)
	}
	if assignment == nil {
		return nil, NewBusinessError("SPOT_NOT_YET_ASSIGNED", "Spot has not been assigned yet", ErrSpotNotYetAssigned)
	}
	return assignment, nil
}

// validateSpot returns a non-empty attention reason for malformed spots.
// Zero-length ranges are handled downstream by the matcher so the grid
// reference is still recorded for them.
func validateSpot(spot *models.Spot) string {
	if spot.MarketID == 0 {
		return "spot has no market reference"
	}
	if !spot.DayOfWeek.Valid() {
		return fmt.Sprintf("day of week %d out of range", spot.DayOfWeek)
	}
	if !spot.TimeIn.Valid() || !spot.TimeOut.Valid() {
		return fmt.Sprintf("time range %d-%d out of range", spot.TimeIn, spot.TimeOut)
	}
	if spot.TimeOut < spot.TimeIn {
		return fmt.Sprintf("inverted time range %s-%s", spot.TimeIn, spot.TimeOut)
	}
	return ""
}

// overlapConfidence is the fraction of the spot covered by the block,
// rounded so repeated assignment of unchanged data is byte-for-byte
// identical.
func overlapConfidence(block *models.LanguageBlock, spotRange models.MinuteRange) float64 {
	duration := spotRange.Minutes()
	if duration == 0 {
		return 0
	}
	fraction := float64(block.MinuteRange().OverlapMinutes(spotRange)) / float64(duration)
	return math.Round(fraction*10000) / 10000
}
