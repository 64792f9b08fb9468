package tests

import (
	"log"
	"testing"

	"github.com/adscope-labs/spotgrid/app/scheduler"
	businessflow "github.com/adscope-labs/spotgrid/business_flow"
	"github.com/adscope-labs/spotgrid/models"
	"github.com/adscope-labs/spotgrid/repository"
	testingutil "github.com/adscope-labs/spotgrid/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScheduler(t *testing.T, testDB *testingutil.TestDB) *scheduler.AssignmentScheduler {
	t.Helper()
	spotRepo := repository.NewSpotRepository(testDB.DB)
	gridAssignmentRepo := repository.NewMarketGridAssignmentRepository(testDB.DB)

	resolver, err := businessflow.NewGridResolverFlow(gridAssignmentRepo, nil, businessflow.TieBreakPriorityRecency)
	require.NoError(t, err)
	matcher := businessflow.NewBlockMatcherFlow(repository.NewLanguageBlockRepository(testDB.DB))
	assignFlow := businessflow.NewAssignmentFlow(
		resolver,
		matcher,
		spotRepo,
		repository.NewSpotAssignmentRepository(testDB.DB),
	)
	collisions := businessflow.NewCollisionFlow(
		gridAssignmentRepo,
		repository.NewCollisionRecordRepository(testDB.DB),
		repository.NewProgrammingGridRepository(testDB.DB),
	)

	return scheduler.NewAssignmentScheduler(
		spotRepo, assignFlow, resolver, collisions,
		log.Default(), 0, 2, 10,
	)
}

func TestAssignmentSchedulerRunBatch(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()
		sched := newScheduler(t, testDB)

		// Covered market with a Monday morning block; 2025-06-02 is a Monday.
		covered, err := fixtures.CreateTestMarket("Fresno")
		require.NoError(t, err)
		grid, err := fixtures.CreateTestGrid("Fresno Standard", mustDate(t, "2025-01-01"), nil)
		require.NoError(t, err)
		_, err = fixtures.CreateTestAssignment(covered.ID, grid.ID, mustDate(t, "2025-01-01"), nil, 0)
		require.NoError(t, err)
		_, err = fixtures.CreateTestBlock(grid.ID, models.Monday, "06:00", "10:00", "es", "Morning Spanish")
		require.NoError(t, err)

		// Market with no schedule at all.
		uncovered, err := fixtures.CreateTestMarket("Orphan")
		require.NoError(t, err)

		_, err = fixtures.CreateTestSpot(covered.ID, mustDate(t, "2025-06-02"), "07:00", "08:00")
		require.NoError(t, err)
		_, err = fixtures.CreateTestSpot(covered.ID, mustDate(t, "2025-06-02"), "08:30", "09:00")
		require.NoError(t, err)
		_, err = fixtures.CreateTestSpot(uncovered.ID, mustDate(t, "2025-06-02"), "07:00", "08:00")
		require.NoError(t, err)

		summary, err := sched.RunBatch(ctx)
		require.NoError(t, err)

		assert.Equal(t, 3, summary.Total)
		assert.Equal(t, 2, summary.Assigned)
		assert.Equal(t, 1, summary.NoGridCoverage)
		assert.Equal(t, 0, summary.Failed)
		assert.False(t, summary.Aborted)
		assert.False(t, summary.FinishedAt.Before(summary.StartedAt))

		// Every spot now has exactly one assignment row.
		spotRepo := repository.NewSpotRepository(testDB.DB)
		remaining, err := spotRepo.CountUnassigned(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), remaining)

		t.Run("SecondRunIsEmpty", func(t *testing.T) {
			summary, err := sched.RunBatch(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0, summary.Total)
		})

		t.Run("NewSpotsGetPickedUp", func(t *testing.T) {
			_, err := fixtures.CreateTestSpot(covered.ID, mustDate(t, "2025-06-02"), "06:30", "07:00")
			require.NoError(t, err)

			summary, err := sched.RunBatch(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, summary.Total)
			assert.Equal(t, 1, summary.Assigned)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestAssignmentSchedulerLogsGaps(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()
		sched := newScheduler(t, testDB)

		// Onboarded market whose only assignment lapsed in the past.
		market, err := fixtures.CreateTestMarket("Lapsed")
		require.NoError(t, err)
		grid, err := fixtures.CreateTestGrid("Lapsed Grid", mustDate(t, "2020-01-01"), nil)
		require.NoError(t, err)
		end := mustDate(t, "2020-12-31")
		_, err = fixtures.CreateTestAssignment(market.ID, grid.ID, mustDate(t, "2020-01-01"), &end, 0)
		require.NoError(t, err)

		_, err = sched.RunBatch(ctx)
		require.NoError(t, err)

		collisionRepo := repository.NewCollisionRecordRepository(testDB.DB)
		gapType := models.CollisionScheduleGap
		count, err := collisionRepo.Count(ctx, models.CollisionRecordFilter{
			MarketID: &market.ID,
			Type:     &gapType,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		// Gap scan stays idempotent while the record is open.
		_, err = sched.RunBatch(ctx)
		require.NoError(t, err)
		count, err = collisionRepo.Count(ctx, models.CollisionRecordFilter{
			MarketID: &market.ID,
			Type:     &gapType,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		return nil
	})
	require.NoError(t, err)
}

func TestAssignmentSchedulerCountsFailures(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()
		sched := newScheduler(t, testDB)

		market, err := fixtures.CreateTestMarket("Fresno")
		require.NoError(t, err)
		grid, err := fixtures.CreateTestGrid("Fresno Standard", mustDate(t, "2025-01-01"), nil)
		require.NoError(t, err)
		_, err = fixtures.CreateTestAssignment(market.ID, grid.ID, mustDate(t, "2025-01-01"), nil, 0)
		require.NoError(t, err)
		_, err = fixtures.CreateTestBlock(grid.ID, models.Monday, "06:00", "10:00", "es", "Morning Spanish")
		require.NoError(t, err)

		good, err := fixtures.CreateTestSpot(market.ID, mustDate(t, "2025-06-02"), "07:00", "08:00")
		require.NoError(t, err)

		// Inverted time range; the intake boundary rejects these, but rows
		// from older loads can still carry them.
		bad := &models.Spot{
			MarketID:   market.ID,
			AirDate:    mustDate(t, "2025-06-02"),
			DayOfWeek:  models.Monday,
			TimeIn:     480,
			TimeOut:    420,
			Advertiser: "Valley Motors",
		}
		require.NoError(t, testDB.DB.Create(bad).Error)

		summary, err := sched.RunBatch(ctx)
		require.NoError(t, err)

		assert.Equal(t, 2, summary.Total)
		assert.Equal(t, 1, summary.Assigned)
		assert.Equal(t, 1, summary.Failed)
		assert.Equal(t, 0, summary.NoGridCoverage)
		assert.Contains(t, summary.AttentionSpotIDs, bad.UUID.String())
		assert.NotContains(t, summary.AttentionSpotIDs, good.UUID.String())

		// The failed spot was still written, so the next run is empty.
		summary, err = sched.RunBatch(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, summary.Total)

		return nil
	})
	require.NoError(t, err)
}

func TestAssignmentSchedulerAbortsWhenStoreFails(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()
		sched := newScheduler(t, testDB)

		market, err := fixtures.CreateTestMarket("Fresno")
		require.NoError(t, err)
		grid, err := fixtures.CreateTestGrid("Fresno Standard", mustDate(t, "2025-01-01"), nil)
		require.NoError(t, err)
		_, err = fixtures.CreateTestAssignment(market.ID, grid.ID, mustDate(t, "2025-01-01"), nil, 0)
		require.NoError(t, err)
		_, err = fixtures.CreateTestSpot(market.ID, mustDate(t, "2025-06-02"), "07:00", "08:00")
		require.NoError(t, err)

		// Break assignment writes without touching the unassigned-spot scan.
		require.NoError(t, testDB.DB.Exec("ALTER TABLE spot_assignments DROP COLUMN confidence").Error)

		summary, err := sched.RunBatch(ctx)
		require.Error(t, err)
		assert.True(t, businessflow.IsStoreUnavailable(err))
		require.NotNil(t, summary)
		assert.True(t, summary.Aborted)

		return nil
	})
	require.NoError(t, err)
}
