package businessflow

import (
	"context"

	"github.com/adscope-labs/spotgrid/models"
	"github.com/adscope-labs/spotgrid/repository"
)

// BlockMatcherFlow finds the language blocks whose windows intersect a spot's
// airing range. It returns the full intersecting set ordered by block start
// time; choosing a "best" block is the intent classifier's job, which needs
// every candidate to judge advertiser intent.
type BlockMatcherFlow interface {
	Match(ctx context.Context, gridID uint, day models.DayOfWeek, timeIn, timeOut models.TimeOfDay) ([]*models.LanguageBlock, error)
}

// BlockMatcherFlowImpl implements BlockMatcherFlow
type BlockMatcherFlowImpl struct {
	blockRepo repository.LanguageBlockRepository
}

// NewBlockMatcherFlow creates a new block matcher flow
func NewBlockMatcherFlow(blockRepo repository.LanguageBlockRepository) BlockMatcherFlow {
	return &BlockMatcherFlowImpl{blockRepo: blockRepo}
}

// Match returns the active blocks for the grid and day whose ranges intersect
// [timeIn, timeOut). A zero-length range matches nothing: that is a data
// anomaly to flag, not a crash. Overlapping-but-not-identical block ranges
// are a data-quality condition and simply yield multiple matches. Callers
// only ever pass same-day ranges; midnight-spanning spots are split upstream.
func (f *BlockMatcherFlowImpl) Match(ctx context.Context, gridID uint, day models.DayOfWeek, timeIn, timeOut models.TimeOfDay) ([]*models.LanguageBlock, error) {
	spotRange := models.MinuteRange{In: timeIn, Out: timeOut}
	if spotRange.IsZeroLength() {
		return nil, nil
	}

	blocks, err := f.blockRepo.ActiveByGridAndDay(ctx, gridID, day)
	if err != nil {
		return nil, NewBusinessError("BLOCK_MATCH_FAILED", "Failed to load blocks for grid", err)
	}

	var matched []*models.LanguageBlock
	for _, block := range blocks {
		if block.MinuteRange().Overlaps(spotRange) {
			matched = append(matched, block)
		}
	}

	return matched, nil
}
