package businessflow

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/adscope-labs/spotgrid/models"
	"github.com/adscope-labs/spotgrid/repository"
)

// GridResolverFlow resolves the single programming grid effective for a
// market on a date. Resolution is called once per spot across batches of up
// to hundreds of thousands of rows, so results are cached per (market, date)
// and invalidated per market whenever an assignment is written.
type GridResolverFlow interface {
	Resolve(ctx context.Context, marketID uint, date time.Time) (GridResolution, error)
	// ResetRunCache drops the in-process cache; called at the start of each
	// batch run so no state survives across runs.
	ResetRunCache()
	// InvalidateMarket drops every cached resolution for a market. A
	// non-nil error means the shared cache may keep serving stale
	// resolutions until TTL expiry.
	InvalidateMarket(ctx context.Context, marketID uint) error
}

// GridResolverFlowImpl implements GridResolverFlow
type GridResolverFlowImpl struct {
	assignmentRepo repository.MarketGridAssignmentRepository
	cache          ScheduleCache
	tieBreak       TieBreakPolicy

	mu       sync.RWMutex
	runCache map[string]GridResolution
}

// NewGridResolverFlow creates a new grid resolver flow. cache may be nil, in
// which case only the per-run in-process cache is used.
func NewGridResolverFlow(
	assignmentRepo repository.MarketGridAssignmentRepository,
	cache ScheduleCache,
	tieBreak TieBreakPolicy,
) (GridResolverFlow, error) {
	if !tieBreak.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTieBreakPolicy, tieBreak)
	}
	return &GridResolverFlowImpl{
		assignmentRepo: assignmentRepo,
		cache:          cache,
		tieBreak:       tieBreak,
		runCache:       make(map[string]GridResolution),
	}, nil
}

// Resolve returns the grid effective for the market on the date, or the
// NoCoverage outcome when no assignment covers it. A market with zero
// assignments is not an error.
func (f *GridResolverFlowImpl) Resolve(ctx context.Context, marketID uint, date time.Time) (GridResolution, error) {
	key := resolutionKey(marketID, date)

	f.mu.RLock()
	if res, ok := f.runCache[key]; ok {
		f.mu.RUnlock()
		return res, nil
	}
	f.mu.RUnlock()

	if f.cache != nil {
		if res, ok := f.cache.GetResolution(ctx, marketID, date); ok {
			f.storeRun(key, res)
			return res, nil
		}
	}

	covering, err := f.assignmentRepo.CoveringDate(ctx, marketID, date)
	if err != nil {
		return GridResolution{}, NewBusinessError("GRID_RESOLUTION_FAILED", "Failed to resolve grid", err)
	}

	var res GridResolution
	if len(covering) == 0 {
		res = GridResolution{NoCoverage: true}
	} else {
		winner := pickAssignment(covering, f.tieBreak)
		res = GridResolution{GridID: winner.GridID}
	}

	f.storeRun(key, res)
	if f.cache != nil {
		f.cache.SetResolution(ctx, marketID, date, res)
	}
	return res, nil
}

// ResetRunCache drops the in-process cache
func (f *GridResolverFlowImpl) ResetRunCache() {
	f.mu.Lock()
	f.runCache = make(map[string]GridResolution)
	f.mu.Unlock()
}

// InvalidateMarket drops cached resolutions for one market. The in-process
// cache is keyed by (market, date) with no per-market index, so the whole run
// cache is reset; assignment writes are rare relative to resolutions.
func (f *GridResolverFlowImpl) InvalidateMarket(ctx context.Context, marketID uint) error {
	f.ResetRunCache()
	if f.cache != nil {
		return f.cache.InvalidateMarket(ctx, marketID)
	}
	return nil
}

func (f *GridResolverFlowImpl) storeRun(key string, res GridResolution) {
	f.mu.Lock()
	f.runCache[key] = res
	f.mu.Unlock()
}

func resolutionKey(marketID uint, date time.Time) string {
	return fmt.Sprintf("%d|%s", marketID, models.DateOf(date).Format("2006-01-02"))
}

// pickAssignment applies the configured tie-break to overlapping covering
// assignments. The final id comparison makes the choice stable across
// repeated calls even when priority and start date tie.
func pickAssignment(covering []*models.MarketGridAssignment, policy TieBreakPolicy) *models.MarketGridAssignment {
	if len(covering) == 1 {
		return covering[0]
	}

	sorted := make([]*models.MarketGridAssignment, len(covering))
	copy(sorted, covering)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if policy == TieBreakPriorityRecency && a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		ai, bi := models.DateOf(a.EffectiveStartDate), models.DateOf(b.EffectiveStartDate)
		if !ai.Equal(bi) {
			return ai.After(bi)
		}
		return a.ID > b.ID
	})

	return sorted[0]
}
