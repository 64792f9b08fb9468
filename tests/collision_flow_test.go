package tests

import (
	"testing"

	businessflow "github.com/adscope-labs/spotgrid/business_flow"
	"github.com/adscope-labs/spotgrid/models"
	"github.com/adscope-labs/spotgrid/repository"
	testingutil "github.com/adscope-labs/spotgrid/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollisionFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		assignmentRepo := repository.NewMarketGridAssignmentRepository(testDB.DB)
		collisionRepo := repository.NewCollisionRecordRepository(testDB.DB)
		gridRepo := repository.NewProgrammingGridRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()

		flow := businessflow.NewCollisionFlow(assignmentRepo, collisionRepo, gridRepo)

		t.Run("CheckFindsOverlapWindow", func(t *testing.T) {
			market, err := fixtures.CreateTestMarket("Sacramento")
			require.NoError(t, err)
			gridA, err := fixtures.CreateTestGrid("Sac A", mustDate(t, "2025-01-01"), nil)
			require.NoError(t, err)
			gridB, err := fixtures.CreateTestGrid("Sac B", mustDate(t, "2025-06-01"), nil)
			require.NoError(t, err)

			endA := mustDate(t, "2025-06-30")
			a, err := fixtures.CreateTestAssignment(market.ID, gridA.ID, mustDate(t, "2025-01-01"), &endA, 0)
			require.NoError(t, err)
			b, err := fixtures.CreateTestAssignment(market.ID, gridB.ID, mustDate(t, "2025-06-01"), nil, 0)
			require.NoError(t, err)

			findings, err := flow.Check(ctx, b)
			require.NoError(t, err)
			require.Len(t, findings, 1)

			finding := findings[0]
			assert.Equal(t, models.CollisionMarketOverlap, finding.Type)
			assert.Equal(t, models.SeverityError, finding.Severity)
			assert.Equal(t, mustDate(t, "2025-06-01"), finding.ConflictStart)
			require.NotNil(t, finding.ConflictEnd)
			assert.Equal(t, mustDate(t, "2025-06-30"), *finding.ConflictEnd)

			// Checking from the other side yields the same window.
			reverse, err := flow.Check(ctx, a)
			require.NoError(t, err)
			require.Len(t, reverse, 1)
			assert.Equal(t, finding.ConflictStart, reverse[0].ConflictStart)
			assert.Equal(t, *finding.ConflictEnd, *reverse[0].ConflictEnd)
		})

		t.Run("DisjointAssignmentsRaiseNothing", func(t *testing.T) {
			market, err := fixtures.CreateTestMarket("Redding")
			require.NoError(t, err)
			gridA, err := fixtures.CreateTestGrid("Redding A", mustDate(t, "2025-01-01"), nil)
			require.NoError(t, err)
			gridB, err := fixtures.CreateTestGrid("Redding B", mustDate(t, "2025-06-01"), nil)
			require.NoError(t, err)

			endA := mustDate(t, "2025-05-31")
			_, err = fixtures.CreateTestAssignment(market.ID, gridA.ID, mustDate(t, "2025-01-01"), &endA, 0)
			require.NoError(t, err)
			b, err := fixtures.CreateTestAssignment(market.ID, gridB.ID, mustDate(t, "2025-06-01"), nil, 0)
			require.NoError(t, err)

			findings, err := flow.Check(ctx, b)
			require.NoError(t, err)
			assert.Empty(t, findings)
		})

		t.Run("OnWriteDedupesOpenRecords", func(t *testing.T) {
			market, err := fixtures.CreateTestMarket("Eureka")
			require.NoError(t, err)
			gridA, err := fixtures.CreateTestGrid("Eureka A", mustDate(t, "2025-01-01"), nil)
			require.NoError(t, err)
			gridB, err := fixtures.CreateTestGrid("Eureka B", mustDate(t, "2025-06-01"), nil)
			require.NoError(t, err)

			_, err = fixtures.CreateTestAssignment(market.ID, gridA.ID, mustDate(t, "2025-01-01"), nil, 0)
			require.NoError(t, err)
			b, err := fixtures.CreateTestAssignment(market.ID, gridB.ID, mustDate(t, "2025-06-01"), nil, 0)
			require.NoError(t, err)

			persisted, err := flow.OnWrite(ctx, b)
			require.NoError(t, err)
			require.Len(t, persisted, 1)

			// Re-detection over the unchanged assignment set persists nothing.
			again, err := flow.OnWrite(ctx, b)
			require.NoError(t, err)
			assert.Empty(t, again)

			count, err := collisionRepo.Count(ctx, models.CollisionRecordFilter{MarketID: &market.ID})
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)
		})

		t.Run("ResolvedRecordReopensOnRedetection", func(t *testing.T) {
			market, err := fixtures.CreateTestMarket("Salinas")
			require.NoError(t, err)
			gridA, err := fixtures.CreateTestGrid("Salinas A", mustDate(t, "2025-01-01"), nil)
			require.NoError(t, err)
			gridB, err := fixtures.CreateTestGrid("Salinas B", mustDate(t, "2025-06-01"), nil)
			require.NoError(t, err)

			_, err = fixtures.CreateTestAssignment(market.ID, gridA.ID, mustDate(t, "2025-01-01"), nil, 0)
			require.NoError(t, err)
			b, err := fixtures.CreateTestAssignment(market.ID, gridB.ID, mustDate(t, "2025-06-01"), nil, 0)
			require.NoError(t, err)

			persisted, err := flow.OnWrite(ctx, b)
			require.NoError(t, err)
			require.Len(t, persisted, 1)

			// Dedupe only consults open records; once resolved, the same
			// overlap is logged fresh.
			err = collisionRepo.Resolve(ctx, persisted[0].ID, models.ResolutionIgnored, "ops", "known overlap")
			require.NoError(t, err)

			again, err := flow.OnWrite(ctx, b)
			require.NoError(t, err)
			assert.Len(t, again, 1)
		})

		t.Run("ScanGapsOnlyCoversOnboardedMarkets", func(t *testing.T) {
			// Onboarded market whose only assignment ended before the scan day.
			lapsed, err := fixtures.CreateTestMarket("Lapsed")
			require.NoError(t, err)
			grid, err := fixtures.CreateTestGrid("Lapsed Grid", mustDate(t, "2025-01-01"), nil)
			require.NoError(t, err)
			end := mustDate(t, "2025-03-31")
			_, err = fixtures.CreateTestAssignment(lapsed.ID, grid.ID, mustDate(t, "2025-01-01"), &end, 0)
			require.NoError(t, err)

			// Market never bound to any grid: not a gap.
			_, err = fixtures.CreateTestMarket("Never Onboarded")
			require.NoError(t, err)

			records, err := flow.ScanGaps(ctx, mustDate(t, "2025-07-15"))
			require.NoError(t, err)

			var found bool
			for _, record := range records {
				require.Equal(t, models.CollisionScheduleGap, record.Type)
				assert.Equal(t, models.SeverityWarning, record.Severity)
				if record.MarketID == lapsed.ID {
					found = true
				}
			}
			assert.True(t, found, "lapsed market should be flagged")

			// Idempotent while the gap record stays open.
			again, err := flow.ScanGaps(ctx, mustDate(t, "2025-07-15"))
			require.NoError(t, err)
			for _, record := range again {
				assert.NotEqual(t, lapsed.ID, record.MarketID)
			}
		})

		return nil
	})
	require.NoError(t, err)
}
