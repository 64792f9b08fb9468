package tests

import (
	"testing"

	"github.com/adscope-labs/spotgrid/models"
	"github.com/adscope-labs/spotgrid/repository"
	testingutil "github.com/adscope-labs/spotgrid/testing"
	"github.com/adscope-labs/spotgrid/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestMarketRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewMarketRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		t.Run("SaveAndByCode", func(t *testing.T) {
			market, err := fixtures.CreateTestMarket("Fresno")
			require.NoError(t, err)
			assert.NotZero(t, market.ID)
			assert.NotEmpty(t, market.UUID)

			found, err := repo.ByCode(ctx, market.Code)
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, market.ID, found.ID)
		})

		t.Run("ByCodeNotFound", func(t *testing.T) {
			found, err := repo.ByCode(ctx, "ZZZZ")
			assert.NoError(t, err)
			assert.Nil(t, found)
		})

		t.Run("ByUUID", func(t *testing.T) {
			market, err := fixtures.CreateTestMarket("Visalia")
			require.NoError(t, err)

			found, err := repo.ByUUID(ctx, market.UUID.String())
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, market.ID, found.ID)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestLanguageBlockRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewLanguageBlockRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		grid, err := fixtures.CreateTestGrid("Fresno Standard", mustDate(t, "2025-01-01"), nil)
		require.NoError(t, err)

		t.Run("RejectsIdenticalActiveRange", func(t *testing.T) {
			_, err := fixtures.CreateTestBlock(grid.ID, models.Monday, "06:00", "10:00", "es", "Morning Spanish")
			require.NoError(t, err)

			dup := &models.LanguageBlock{
				GridID:       grid.ID,
				DayOfWeek:    models.Monday,
				StartMinute:  360,
				EndMinute:    600,
				LanguageCode: "hmn",
				Name:         "Clashing Range",
				IsActive:     true,
			}
			err = repo.Save(ctx, dup)
			require.Error(t, err)
			assert.ErrorIs(t, err, repository.ErrDuplicateBlockRange)
		})

		t.Run("DatabaseEnforcesTheRange", func(t *testing.T) {
			// Writers that bypass Save still hit the partial unique index.
			dup := &models.LanguageBlock{
				GridID:       grid.ID,
				DayOfWeek:    models.Monday,
				StartMinute:  360,
				EndMinute:    600,
				LanguageCode: "hmn",
				Name:         "Raced Range",
				IsActive:     true,
			}
			err := testDB.DB.Create(dup).Error
			require.Error(t, err)
			assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
		})

		t.Run("ToleratesOverlappingRange", func(t *testing.T) {
			// Overlapping but not identical windows are a matcher concern.
			overlapping := &models.LanguageBlock{
				GridID:       grid.ID,
				DayOfWeek:    models.Monday,
				StartMinute:  420,
				EndMinute:    600,
				LanguageCode: "hmn",
				Name:         "Overlapping Range",
				IsActive:     true,
			}
			assert.NoError(t, repo.Save(ctx, overlapping))
		})

		t.Run("SameRangeOtherDayIsFine", func(t *testing.T) {
			block := &models.LanguageBlock{
				GridID:       grid.ID,
				DayOfWeek:    models.Tuesday,
				StartMinute:  360,
				EndMinute:    600,
				LanguageCode: "es",
				Name:         "Tuesday Spanish",
				IsActive:     true,
			}
			assert.NoError(t, repo.Save(ctx, block))
		})

		t.Run("DeactivateFreesTheRange", func(t *testing.T) {
			block, err := fixtures.CreateTestBlock(grid.ID, models.Wednesday, "06:00", "10:00", "es", "Wednesday Spanish")
			require.NoError(t, err)

			require.NoError(t, repo.Deactivate(ctx, block.ID))

			replacement := &models.LanguageBlock{
				GridID:       grid.ID,
				DayOfWeek:    models.Wednesday,
				StartMinute:  360,
				EndMinute:    600,
				LanguageCode: "hmn",
				Name:         "Wednesday Hmong",
				IsActive:     true,
			}
			assert.NoError(t, repo.Save(ctx, replacement))

			active, err := repo.ActiveByGridAndDay(ctx, grid.ID, models.Wednesday)
			require.NoError(t, err)
			require.Len(t, active, 1)
			assert.Equal(t, replacement.ID, active[0].ID)
		})

		t.Run("ActiveByGridAndDayOrdersByStart", func(t *testing.T) {
			_, err := fixtures.CreateTestBlock(grid.ID, models.Friday, "12:00", "14:00", "es", "Friday Midday")
			require.NoError(t, err)
			_, err = fixtures.CreateTestBlock(grid.ID, models.Friday, "06:00", "10:00", "hmn", "Friday Morning")
			require.NoError(t, err)

			blocks, err := repo.ActiveByGridAndDay(ctx, grid.ID, models.Friday)
			require.NoError(t, err)
			require.Len(t, blocks, 2)
			assert.True(t, blocks[0].StartMinute < blocks[1].StartMinute)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestMarketGridAssignmentRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewMarketGridAssignmentRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		market, err := fixtures.CreateTestMarket("Fresno")
		require.NoError(t, err)
		grid, err := fixtures.CreateTestGrid("Fresno Standard", mustDate(t, "2025-01-01"), nil)
		require.NoError(t, err)

		t.Run("CoveringDate", func(t *testing.T) {
			end := mustDate(t, "2025-06-30")
			bounded, err := fixtures.CreateTestAssignment(market.ID, grid.ID, mustDate(t, "2025-01-01"), &end, 0)
			require.NoError(t, err)

			covering, err := repo.CoveringDate(ctx, market.ID, mustDate(t, "2025-06-30"))
			require.NoError(t, err)
			require.Len(t, covering, 1)
			assert.Equal(t, bounded.ID, covering[0].ID)

			// End date is inclusive: the day after is uncovered.
			covering, err = repo.CoveringDate(ctx, market.ID, mustDate(t, "2025-07-01"))
			require.NoError(t, err)
			assert.Empty(t, covering)
		})

		t.Run("EndAssignment", func(t *testing.T) {
			open, err := fixtures.CreateTestAssignment(market.ID, grid.ID, mustDate(t, "2025-07-01"), nil, 0)
			require.NoError(t, err)

			require.NoError(t, repo.EndAssignment(ctx, open.ID, mustDate(t, "2025-09-30")))

			reloaded, err := repo.ByID(ctx, open.ID)
			require.NoError(t, err)
			require.NotNil(t, reloaded.EffectiveEndDate)
			assert.Equal(t, mustDate(t, "2025-09-30"), models.DateOf(*reloaded.EffectiveEndDate))
		})

		t.Run("MarketIDsWithAssignments", func(t *testing.T) {
			unbound, err := fixtures.CreateTestMarket("Unbound")
			require.NoError(t, err)

			ids, err := repo.MarketIDsWithAssignments(ctx)
			require.NoError(t, err)
			assert.Contains(t, ids, market.ID)
			assert.NotContains(t, ids, unbound.ID)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestSpotRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		spotRepo := repository.NewSpotRepository(testDB.DB)
		assignmentRepo := repository.NewSpotAssignmentRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		market, err := fixtures.CreateTestMarket("Fresno")
		require.NoError(t, err)

		t.Run("ListUnassignedShrinksAsAssignmentsLand", func(t *testing.T) {
			a, err := fixtures.CreateTestSpot(market.ID, mustDate(t, "2025-06-02"), "07:00", "08:00")
			require.NoError(t, err)
			_, err = fixtures.CreateTestSpot(market.ID, mustDate(t, "2025-06-02"), "08:00", "09:00")
			require.NoError(t, err)

			count, err := spotRepo.CountUnassigned(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(2), count)

			err = assignmentRepo.Upsert(ctx, &models.SpotAssignment{
				SpotID: a.ID,
				Intent: models.IntentNoGridCoverage,
				Method: models.MethodNoGridAvailable,
			})
			require.NoError(t, err)

			remaining, err := spotRepo.ListUnassigned(ctx, 0, 0)
			require.NoError(t, err)
			require.Len(t, remaining, 1)
			assert.NotEqual(t, a.ID, remaining[0].ID)
		})

		t.Run("ByUUID", func(t *testing.T) {
			spot, err := fixtures.CreateTestSpot(market.ID, mustDate(t, "2025-06-03"), "07:00", "08:00")
			require.NoError(t, err)

			found, err := spotRepo.ByUUID(ctx, spot.UUID.String())
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, spot.ID, found.ID)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestSpotAssignmentRepositoryUpsert(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewSpotAssignmentRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		market, err := fixtures.CreateTestMarket("Fresno")
		require.NoError(t, err)
		spot, err := fixtures.CreateTestSpot(market.ID, mustDate(t, "2025-06-02"), "07:00", "08:00")
		require.NoError(t, err)

		first := &models.SpotAssignment{
			SpotID: spot.ID,
			Intent: models.IntentNoGridCoverage,
			Method: models.MethodNoGridAvailable,
		}
		require.NoError(t, repo.Upsert(ctx, first))

		// A later upsert for the same spot replaces the row in place.
		second := &models.SpotAssignment{
			SpotID:     spot.ID,
			GridID:     utils.ToPtr(uint(1)),
			BlockID:    utils.ToPtr(uint(1)),
			Intent:     models.IntentLanguageSpecific,
			Method:     models.MethodAutoComputed,
			Confidence: 1.0,
		}
		require.NoError(t, repo.Upsert(ctx, second))

		stored, err := repo.BySpotID(ctx, spot.ID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, models.IntentLanguageSpecific, stored.Intent)
		assert.Equal(t, first.ID, stored.ID)

		count, err := repo.Count(ctx, models.SpotAssignmentFilter{SpotID: &spot.ID})
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		t.Run("RejectsInvalidRow", func(t *testing.T) {
			bad := &models.SpotAssignment{
				SpotID:     spot.ID,
				Intent:     models.IntentIndifferent,
				Method:     models.MethodAutoComputed,
				MultiBlock: true, // no spanned set
			}
			assert.Error(t, repo.Upsert(ctx, bad))
		})

		return nil
	})
	require.NoError(t, err)
}
