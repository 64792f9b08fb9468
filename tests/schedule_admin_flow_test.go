package tests

import (
	"log"
	"testing"

	businessflow "github.com/adscope-labs/spotgrid/business_flow"
	"github.com/adscope-labs/spotgrid/models"
	"github.com/adscope-labs/spotgrid/repository"
	testingutil "github.com/adscope-labs/spotgrid/testing"
	"github.com/adscope-labs/spotgrid/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScheduleAdminFlow(t *testing.T, testDB *testingutil.TestDB) businessflow.ScheduleAdminFlow {
	t.Helper()

	gridAssignmentRepo := repository.NewMarketGridAssignmentRepository(testDB.DB)
	collisionRepo := repository.NewCollisionRecordRepository(testDB.DB)
	gridRepo := repository.NewProgrammingGridRepository(testDB.DB)

	resolver, err := businessflow.NewGridResolverFlow(gridAssignmentRepo, nil, businessflow.TieBreakPriorityRecency)
	require.NoError(t, err)
	collisions := businessflow.NewCollisionFlow(gridAssignmentRepo, collisionRepo, gridRepo)

	return businessflow.NewScheduleAdminFlow(
		testDB.DB,
		repository.NewMarketRepository(testDB.DB),
		gridRepo,
		repository.NewLanguageBlockRepository(testDB.DB),
		gridAssignmentRepo,
		collisionRepo,
		collisions,
		resolver,
		log.Default(),
	)
}

func TestScheduleAdminFlowMarkets(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newScheduleAdminFlow(t, testDB)
		ctx := testingutil.CreateTestContext()

		t.Run("CreateAndList", func(t *testing.T) {
			require.NoError(t, flow.CreateMarket(ctx, &models.Market{Code: "FRS", Name: "Fresno", IsActive: true}))
			require.NoError(t, flow.CreateMarket(ctx, &models.Market{Code: "BAK", Name: "Bakersfield", IsActive: true}))

			markets, err := flow.ListMarkets(ctx, 0, 0)
			require.NoError(t, err)
			require.Len(t, markets, 2)
			assert.Equal(t, "BAK", markets[0].Code)
			assert.Equal(t, "FRS", markets[1].Code)
		})

		t.Run("DuplicateCode", func(t *testing.T) {
			err := flow.CreateMarket(ctx, &models.Market{Code: "FRS", Name: "Fresno Again", IsActive: true})
			require.Error(t, err)
			assert.True(t, businessflow.IsMarketCodeTaken(err))
		})

		t.Run("MissingCode", func(t *testing.T) {
			err := flow.CreateMarket(ctx, &models.Market{Name: "Nameless", IsActive: true})
			assert.Error(t, err)
		})

		t.Run("RejectsBadPagination", func(t *testing.T) {
			_, err := flow.ListMarkets(ctx, -1, 0)
			assert.ErrorIs(t, err, businessflow.ErrInvalidPageSize)

			_, err = flow.ListMarkets(ctx, businessflow.MaxPageSize+1, 0)
			assert.ErrorIs(t, err, businessflow.ErrInvalidPageSize)

			_, err = flow.ListMarkets(ctx, 0, -1)
			assert.ErrorIs(t, err, businessflow.ErrInvalidPage)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestScheduleAdminFlowGridsAndBlocks(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newScheduleAdminFlow(t, testDB)
		ctx := testingutil.CreateTestContext()

		grid := &models.ProgrammingGrid{
			Name:               "Fresno Standard",
			EffectiveStartDate: mustDate(t, "2025-01-01"),
			IsActive:           true,
		}

		t.Run("CreateGrid", func(t *testing.T) {
			require.NoError(t, flow.CreateGrid(ctx, grid))
			assert.NotZero(t, grid.ID)
		})

		t.Run("GridEndBeforeStart", func(t *testing.T) {
			end := mustDate(t, "2024-12-31")
			err := flow.CreateGrid(ctx, &models.ProgrammingGrid{
				Name:               "Backwards",
				EffectiveStartDate: mustDate(t, "2025-01-01"),
				EffectiveEndDate:   &end,
				IsActive:           true,
			})
			assert.Error(t, err)
		})

		t.Run("CreateBlock", func(t *testing.T) {
			block := &models.LanguageBlock{
				GridID:       grid.ID,
				DayOfWeek:    models.Monday,
				StartMinute:  360,
				EndMinute:    600,
				LanguageCode: "es",
				Name:         "Morning Spanish",
				IsActive:     true,
			}
			require.NoError(t, flow.CreateBlock(ctx, block))
			assert.NotZero(t, block.ID)
		})

		t.Run("BlockAgainstMissingGrid", func(t *testing.T) {
			err := flow.CreateBlock(ctx, &models.LanguageBlock{
				GridID:       99999,
				DayOfWeek:    models.Monday,
				StartMinute:  360,
				EndMinute:    600,
				LanguageCode: "es",
				Name:         "Orphan Block",
				IsActive:     true,
			})
			require.Error(t, err)
			assert.True(t, businessflow.IsGridNotFound(err))
		})

		t.Run("BlockWindowInverted", func(t *testing.T) {
			err := flow.CreateBlock(ctx, &models.LanguageBlock{
				GridID:       grid.ID,
				DayOfWeek:    models.Monday,
				StartMinute:  600,
				EndMinute:    360,
				LanguageCode: "es",
				Name:         "Inverted Block",
				IsActive:     true,
			})
			require.Error(t, err)
			assert.True(t, businessflow.IsBlockWindowInvalid(err))
		})

		t.Run("DeactivateBlock", func(t *testing.T) {
			block := &models.LanguageBlock{
				GridID:       grid.ID,
				DayOfWeek:    models.Tuesday,
				StartMinute:  360,
				EndMinute:    600,
				LanguageCode: "hmn",
				Name:         "Tuesday Hmong",
				IsActive:     true,
			}
			require.NoError(t, flow.CreateBlock(ctx, block))
			require.NoError(t, flow.DeactivateBlock(ctx, block.ID))

			blockRepo := repository.NewLanguageBlockRepository(testDB.DB)
			active, err := blockRepo.ActiveByGridAndDay(ctx, grid.ID, models.Tuesday)
			require.NoError(t, err)
			assert.Empty(t, active)
		})

		t.Run("DeactivateMissingBlock", func(t *testing.T) {
			err := flow.DeactivateBlock(ctx, 99999)
			require.Error(t, err)
			assert.True(t, businessflow.IsBlockNotFound(err))
		})

		t.Run("BlockOnInactiveGrid", func(t *testing.T) {
			retired := &models.ProgrammingGrid{
				Name:               "Retired Grid",
				EffectiveStartDate: mustDate(t, "2020-01-01"),
				IsActive:           true,
			}
			require.NoError(t, flow.CreateGrid(ctx, retired))
			require.NoError(t, testDB.DB.Model(retired).Update("is_active", false).Error)

			err := flow.CreateBlock(ctx, &models.LanguageBlock{
				GridID:       retired.ID,
				DayOfWeek:    models.Monday,
				StartMinute:  360,
				EndMinute:    600,
				LanguageCode: "es",
				Name:         "Retired Block",
				IsActive:     true,
			})
			require.Error(t, err)
			assert.True(t, businessflow.IsGridInactive(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestScheduleAdminFlowAssignments(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newScheduleAdminFlow(t, testDB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		market, err := fixtures.CreateTestMarket("Fresno")
		require.NoError(t, err)
		gridA, err := fixtures.CreateTestGrid("Grid A", mustDate(t, "2025-01-01"), nil)
		require.NoError(t, err)
		gridB, err := fixtures.CreateTestGrid("Grid B", mustDate(t, "2025-06-01"), nil)
		require.NoError(t, err)

		t.Run("CreateCleanAssignment", func(t *testing.T) {
			findings, err := flow.CreateAssignment(ctx, &models.MarketGridAssignment{
				MarketID:           market.ID,
				GridID:             gridA.ID,
				EffectiveStartDate: mustDate(t, "2025-01-01"),
			})
			require.NoError(t, err)
			assert.Empty(t, findings)
		})

		t.Run("OverlapIsLoggedNotRejected", func(t *testing.T) {
			findings, err := flow.CreateAssignment(ctx, &models.MarketGridAssignment{
				MarketID:           market.ID,
				GridID:             gridB.ID,
				EffectiveStartDate: mustDate(t, "2025-06-01"),
			})
			require.NoError(t, err)
			require.Len(t, findings, 1)
			assert.Equal(t, models.CollisionMarketOverlap, findings[0].Type)

			// The write itself stood despite the finding.
			assignmentRepo := repository.NewMarketGridAssignmentRepository(testDB.DB)
			covering, err := assignmentRepo.CoveringDate(ctx, market.ID, mustDate(t, "2025-07-01"))
			require.NoError(t, err)
			assert.Len(t, covering, 2)
		})

		t.Run("UnknownMarket", func(t *testing.T) {
			_, err := flow.CreateAssignment(ctx, &models.MarketGridAssignment{
				MarketID:           99999,
				GridID:             gridA.ID,
				EffectiveStartDate: mustDate(t, "2025-01-01"),
			})
			require.Error(t, err)
			assert.True(t, businessflow.IsMarketNotFound(err))
		})

		t.Run("UnknownGrid", func(t *testing.T) {
			_, err := flow.CreateAssignment(ctx, &models.MarketGridAssignment{
				MarketID:           market.ID,
				GridID:             99999,
				EffectiveStartDate: mustDate(t, "2025-01-01"),
			})
			require.Error(t, err)
			assert.True(t, businessflow.IsGridNotFound(err))
		})

		t.Run("EndBeforeStart", func(t *testing.T) {
			end := mustDate(t, "2024-12-31")
			_, err := flow.CreateAssignment(ctx, &models.MarketGridAssignment{
				MarketID:           market.ID,
				GridID:             gridA.ID,
				EffectiveStartDate: mustDate(t, "2025-01-01"),
				EffectiveEndDate:   &end,
			})
			require.Error(t, err)
			assert.True(t, businessflow.IsEndDateBeforeStart(err))
		})

		t.Run("InactiveMarket", func(t *testing.T) {
			retired, err := fixtures.CreateTestMarket("Retired")
			require.NoError(t, err)
			require.NoError(t, testDB.DB.Model(retired).Update("is_active", false).Error)

			_, err = flow.CreateAssignment(ctx, &models.MarketGridAssignment{
				MarketID:           retired.ID,
				GridID:             gridA.ID,
				EffectiveStartDate: mustDate(t, "2025-01-01"),
			})
			require.Error(t, err)
			assert.True(t, businessflow.IsMarketInactive(err))
		})

		t.Run("InactiveGrid", func(t *testing.T) {
			retired, err := fixtures.CreateTestGrid("Retired Grid", mustDate(t, "2020-01-01"), nil)
			require.NoError(t, err)
			require.NoError(t, testDB.DB.Model(retired).Update("is_active", false).Error)

			_, err = flow.CreateAssignment(ctx, &models.MarketGridAssignment{
				MarketID:           market.ID,
				GridID:             retired.ID,
				EffectiveStartDate: mustDate(t, "2025-01-01"),
			})
			require.Error(t, err)
			assert.True(t, businessflow.IsGridInactive(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestScheduleAdminFlowEndAssignment(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newScheduleAdminFlow(t, testDB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		market, err := fixtures.CreateTestMarket("Fresno")
		require.NoError(t, err)
		grid, err := fixtures.CreateTestGrid("Fresno Standard", mustDate(t, "2025-01-01"), nil)
		require.NoError(t, err)
		open, err := fixtures.CreateTestAssignment(market.ID, grid.ID, mustDate(t, "2025-01-01"), nil, 0)
		require.NoError(t, err)

		t.Run("NotFound", func(t *testing.T) {
			err := flow.EndAssignment(ctx, 99999, mustDate(t, "2025-06-30"))
			require.Error(t, err)
			assert.True(t, businessflow.IsAssignmentNotFound(err))
		})

		t.Run("EndBeforeStart", func(t *testing.T) {
			err := flow.EndAssignment(ctx, open.ID, mustDate(t, "2024-12-31"))
			require.Error(t, err)
			assert.True(t, businessflow.IsEndDateBeforeStart(err))
		})

		t.Run("EndsTheAssignment", func(t *testing.T) {
			require.NoError(t, flow.EndAssignment(ctx, open.ID, mustDate(t, "2025-06-30")))

			assignmentRepo := repository.NewMarketGridAssignmentRepository(testDB.DB)
			reloaded, err := assignmentRepo.ByID(ctx, open.ID)
			require.NoError(t, err)
			require.NotNil(t, reloaded.EffectiveEndDate)
			assert.Equal(t, mustDate(t, "2025-06-30"), models.DateOf(*reloaded.EffectiveEndDate))
		})

		t.Run("AlreadyEnded", func(t *testing.T) {
			err := flow.EndAssignment(ctx, open.ID, mustDate(t, "2025-07-31"))
			require.Error(t, err)
			assert.True(t, businessflow.IsAssignmentAlreadyEnded(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestScheduleAdminFlowMigrateMarket(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newScheduleAdminFlow(t, testDB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		market, err := fixtures.CreateTestMarket("Fresno")
		require.NoError(t, err)
		gridA, err := fixtures.CreateTestGrid("Grid A", mustDate(t, "2025-01-01"), nil)
		require.NoError(t, err)
		gridB, err := fixtures.CreateTestGrid("Grid B", mustDate(t, "2025-06-01"), nil)
		require.NoError(t, err)
		old, err := fixtures.CreateTestAssignment(market.ID, gridA.ID, mustDate(t, "2025-01-01"), nil, 0)
		require.NoError(t, err)

		t.Run("MissingSuccessorGrid", func(t *testing.T) {
			_, err := flow.MigrateMarket(ctx, market.ID, 0, mustDate(t, "2025-05-31"), "ops")
			require.Error(t, err)
			assert.ErrorIs(t, err, businessflow.ErrSuccessorGridRequired)
		})

		t.Run("UnknownSuccessorGrid", func(t *testing.T) {
			_, err := flow.MigrateMarket(ctx, market.ID, 99999, mustDate(t, "2025-05-31"), "ops")
			require.Error(t, err)
			assert.True(t, businessflow.IsGridNotFound(err))
		})

		t.Run("EndsOldAndStartsSuccessor", func(t *testing.T) {
			successor, err := flow.MigrateMarket(ctx, market.ID, gridB.ID, mustDate(t, "2025-05-31"), "ops")
			require.NoError(t, err)
			require.NotNil(t, successor)
			assert.Equal(t, gridB.ID, successor.GridID)
			assert.Equal(t, mustDate(t, "2025-06-01"), models.DateOf(successor.EffectiveStartDate))
			require.NotNil(t, successor.CreatedBy)
			assert.Equal(t, "ops", *successor.CreatedBy)

			assignmentRepo := repository.NewMarketGridAssignmentRepository(testDB.DB)
			ended, err := assignmentRepo.ByID(ctx, old.ID)
			require.NoError(t, err)
			require.NotNil(t, ended.EffectiveEndDate)
			assert.Equal(t, mustDate(t, "2025-05-31"), models.DateOf(*ended.EffectiveEndDate))

			// No date is covered by both grids after the cutover.
			before, err := assignmentRepo.CoveringDate(ctx, market.ID, mustDate(t, "2025-05-31"))
			require.NoError(t, err)
			require.Len(t, before, 1)
			assert.Equal(t, gridA.ID, before[0].GridID)

			after, err := assignmentRepo.CoveringDate(ctx, market.ID, mustDate(t, "2025-06-01"))
			require.NoError(t, err)
			require.Len(t, after, 1)
			assert.Equal(t, gridB.ID, after[0].GridID)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestScheduleAdminFlowCollisions(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newScheduleAdminFlow(t, testDB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		market, err := fixtures.CreateTestMarket("Fresno")
		require.NoError(t, err)
		gridA, err := fixtures.CreateTestGrid("Grid A", mustDate(t, "2025-01-01"), nil)
		require.NoError(t, err)
		gridB, err := fixtures.CreateTestGrid("Grid B", mustDate(t, "2025-06-01"), nil)
		require.NoError(t, err)

		a, err := fixtures.CreateTestAssignment(market.ID, gridA.ID, mustDate(t, "2025-01-01"), nil, 0)
		require.NoError(t, err)
		b, err := fixtures.CreateTestAssignment(market.ID, gridB.ID, mustDate(t, "2025-06-01"), nil, 0)
		require.NoError(t, err)
		record, err := fixtures.CreateTestCollision(market.ID, a.ID, b.ID, mustDate(t, "2025-06-01"), utils.ToPtr(mustDate(t, "2025-06-30")))
		require.NoError(t, err)

		t.Run("ListOpen", func(t *testing.T) {
			open, err := flow.ListOpenCollisions(ctx, 0, 0)
			require.NoError(t, err)
			require.Len(t, open, 1)
			assert.Equal(t, record.ID, open[0].ID)
		})

		t.Run("ResolveNotFound", func(t *testing.T) {
			err := flow.ResolveCollision(ctx, 99999, models.ResolutionResolved, "ops", "")
			require.Error(t, err)
			assert.True(t, businessflow.IsCollisionNotFound(err))
		})

		t.Run("Resolve", func(t *testing.T) {
			require.NoError(t, flow.ResolveCollision(ctx, record.ID, models.ResolutionResolved, "ops", "adjusted end dates"))

			open, err := flow.ListOpenCollisions(ctx, 0, 0)
			require.NoError(t, err)
			assert.Empty(t, open)

			reloaded, err := repository.NewCollisionRecordRepository(testDB.DB).ByID(ctx, record.ID)
			require.NoError(t, err)
			assert.Equal(t, models.ResolutionResolved, reloaded.Status)
			require.NotNil(t, reloaded.ResolvedBy)
			assert.Equal(t, "ops", *reloaded.ResolvedBy)
		})

		t.Run("ResolveTwice", func(t *testing.T) {
			err := flow.ResolveCollision(ctx, record.ID, models.ResolutionIgnored, "ops", "")
			require.Error(t, err)
			assert.True(t, businessflow.IsCollisionAlreadyResolved(err))
		})

		return nil
	})
	require.NoError(t, err)
}
