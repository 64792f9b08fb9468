// Package businessflow contains the business logic for the application.
package businessflow

import (
	"context"
	"time"

	"github.com/adscope-labs/spotgrid/models"
)

const RequestIDKey = "X-Request-ID"

// Pagination bounds for listing flows. A zero limit means the default page.
const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// normalizePagination validates and defaults list paging arguments.
func normalizePagination(limit, offset int) (int, int, error) {
	if offset < 0 {
		return 0, 0, ErrInvalidPage
	}
	if limit < 0 || limit > MaxPageSize {
		return 0, 0, ErrInvalidPageSize
	}
	if limit == 0 {
		limit = DefaultPageSize
	}
	return limit, offset, nil
}

// GridResolution is the outcome of resolving a market and date to a grid.
// NoCoverage is a first-class, reportable state, not an error.
type GridResolution struct {
	GridID     uint
	NoCoverage bool
}

// Covered reports whether a grid was resolved.
func (r GridResolution) Covered() bool {
	return !r.NoCoverage
}

// TieBreakPolicy selects among overlapping market assignments covering the
// same date. Overlaps are tolerated at write time, so resolution must be
// deterministic; the rule is configurable because priority-then-recency is
// inferred business policy, not confirmed as authoritative.
type TieBreakPolicy string

const (
	// TieBreakPriorityRecency picks the highest priority, then the most
	// recent effective start date, then the highest id as the stable key.
	TieBreakPriorityRecency TieBreakPolicy = "priority_recency"
	// TieBreakRecencyOnly ignores priority and picks the most recent start.
	TieBreakRecencyOnly TieBreakPolicy = "recency_only"
)

// Valid checks if the policy is known
func (p TieBreakPolicy) Valid() bool {
	return p == TieBreakPriorityRecency || p == TieBreakRecencyOnly
}

// ScheduleCache is the narrow caching interface the resolver needs. Kept
// minimal so flows stay independent of the cache backend and easy to test.
type ScheduleCache interface {
	GetResolution(ctx context.Context, marketID uint, date time.Time) (GridResolution, bool)
	SetResolution(ctx context.Context, marketID uint, date time.Time, res GridResolution)
	// InvalidateMarket reports failure instead of swallowing it: a missed
	// invalidation serves stale resolutions until TTL expiry, which the
	// schedule writer needs to know about.
	InvalidateMarket(ctx context.Context, marketID uint) error
}

// BatchSummary aggregates per-spot outcomes of one assignment batch run.
// Ingestion is never blocked on these counts; coverage gaps are reported,
// not fatal.
type BatchSummary struct {
	Total            int       `json:"total"`
	Assigned         int       `json:"assigned"`
	NoGridCoverage   int       `json:"no_grid_coverage"`
	MultiBlock       int       `json:"multi_block"`
	Failed           int       `json:"failed"`
	AttentionSpotIDs []string  `json:"attention_spot_ids,omitempty"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
	Aborted          bool      `json:"aborted"`
}

// Record folds one assignment outcome into the summary.
func (s *BatchSummary) Record(outcome *SpotOutcome) {
	s.Total++
	switch {
	case outcome.Failed:
		s.Failed++
	case outcome.Assignment.Intent == models.IntentNoGridCoverage:
		s.NoGridCoverage++
	case outcome.Assignment.MultiBlock:
		s.MultiBlock++
		s.Assigned++
	default:
		s.Assigned++
	}
	if outcome.Failed || (outcome.Assignment != nil && outcome.Assignment.RequiresAttention) {
		s.AttentionSpotIDs = append(s.AttentionSpotIDs, outcome.SpotUUID)
	}
}
