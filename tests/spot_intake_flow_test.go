package tests

import (
	"bytes"
	"testing"

	businessflow "github.com/adscope-labs/spotgrid/business_flow"
	"github.com/adscope-labs/spotgrid/models"
	"github.com/adscope-labs/spotgrid/repository"
	testingutil "github.com/adscope-labs/spotgrid/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// buildSpotSheet renders rows into an in-memory xlsx the way the traffic
// system exports them: one header row, then one row per spot.
func buildSpotSheet(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()

	xl := excelize.NewFile()
	defer xl.Close()

	header := []any{"market_code", "air_date", "time_in", "time_out", "advertiser", "gross_rate", "revenue_type"}
	require.NoError(t, xl.SetSheetRow("Sheet1", "A1", &header))

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, xl.SetSheetRow("Sheet1", cell, &row))
	}

	buf, err := xl.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestSpotIntakeFlowImport(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		spotRepo := repository.NewSpotRepository(testDB.DB)
		flow := businessflow.NewSpotIntakeFlow(spotRepo, repository.NewMarketRepository(testDB.DB))

		market, err := fixtures.CreateTestMarket("Fresno")
		require.NoError(t, err)

		t.Run("ImportsValidRowsSkipsBadOnes", func(t *testing.T) {
			sheet := buildSpotSheet(t, [][]any{
				{market.Code, "2025-06-02", "07:00", "08:00", "Valley Motors", "12500", "cash"},
				{market.Code, "2025-06-02", "08:00", "08:30", "Valley Motors", "", "trade"},
				{"NOPE", "2025-06-02", "07:00", "08:00", "Ghost Adv", "100", "cash"},
				{market.Code, "not-a-date", "07:00", "08:00", "Valley Motors", "100", "cash"},
				{market.Code, "2025-06-02", "27:00", "08:00", "Valley Motors", "100", "cash"},
			})

			summary, err := flow.ImportSpotsFromExcel(ctx, sheet)
			require.NoError(t, err)

			assert.Equal(t, 2, summary.Imported)
			assert.Equal(t, 3, summary.Skipped)
			require.Len(t, summary.RowMessages, 3)
			assert.Contains(t, summary.RowMessages[0], "unknown market code")
			assert.Contains(t, summary.RowMessages[1], "invalid air date")
			assert.Contains(t, summary.RowMessages[2], "invalid time in")

			spots, err := spotRepo.ByFilter(ctx, models.SpotFilter{MarketID: &market.ID}, "id ASC", 0, 0)
			require.NoError(t, err)
			require.Len(t, spots, 2)

			// Day of week is derived from the air date; 2025-06-02 is a Monday.
			first := spots[0]
			assert.Equal(t, models.Monday, first.DayOfWeek)
			assert.Equal(t, models.TimeOfDay(420), first.TimeIn)
			assert.Equal(t, int64(12500), first.GrossRate)
			assert.Equal(t, "cash", first.RevenueType)

			// Missing gross rate defaults to zero, trade rows import like any other.
			assert.Equal(t, int64(0), spots[1].GrossRate)
			assert.Equal(t, "trade", spots[1].RevenueType)
		})

		t.Run("SkipsInactiveMarketRows", func(t *testing.T) {
			retired, err := fixtures.CreateTestMarket("Retired")
			require.NoError(t, err)
			require.NoError(t, testDB.DB.Model(retired).Update("is_active", false).Error)

			sheet := buildSpotSheet(t, [][]any{
				{retired.Code, "2025-06-02", "07:00", "08:00", "Valley Motors", "100", "cash"},
			})

			summary, err := flow.ImportSpotsFromExcel(ctx, sheet)
			require.NoError(t, err)
			assert.Equal(t, 0, summary.Imported)
			assert.Equal(t, 1, summary.Skipped)
			require.Len(t, summary.RowMessages, 1)
			assert.Contains(t, summary.RowMessages[0], "inactive market")
		})

		t.Run("HeaderOnlySheetImportsNothing", func(t *testing.T) {
			summary, err := flow.ImportSpotsFromExcel(ctx, buildSpotSheet(t, nil))
			require.NoError(t, err)
			assert.Equal(t, 0, summary.Imported)
			assert.Equal(t, 0, summary.Skipped)
		})

		t.Run("GarbageFileFails", func(t *testing.T) {
			_, err := flow.ImportSpotsFromExcel(ctx, bytes.NewBufferString("not a spreadsheet"))
			assert.Error(t, err)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestSpotIntakeFlowCreateSpot(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		flow := businessflow.NewSpotIntakeFlow(
			repository.NewSpotRepository(testDB.DB),
			repository.NewMarketRepository(testDB.DB),
		)

		market, err := fixtures.CreateTestMarket("Fresno")
		require.NoError(t, err)

		t.Run("DerivesDayOfWeek", func(t *testing.T) {
			spot := &models.Spot{
				MarketID:   market.ID,
				AirDate:    mustDate(t, "2025-06-02"),
				TimeIn:     420,
				TimeOut:    480,
				Advertiser: "Valley Motors",
			}
			require.NoError(t, flow.CreateSpot(ctx, spot))
			assert.NotZero(t, spot.ID)
			assert.Equal(t, models.Monday, spot.DayOfWeek)
		})

		t.Run("UnknownMarket", func(t *testing.T) {
			spot := &models.Spot{
				MarketID: 99999,
				AirDate:  mustDate(t, "2025-06-02"),
				TimeIn:   420,
				TimeOut:  480,
			}
			err := flow.CreateSpot(ctx, spot)
			require.Error(t, err)
			assert.True(t, businessflow.IsMarketNotFound(err))
		})

		t.Run("InvertedTimeRange", func(t *testing.T) {
			spot := &models.Spot{
				MarketID:   market.ID,
				AirDate:    mustDate(t, "2025-06-02"),
				TimeIn:     480,
				TimeOut:    420,
				Advertiser: "Valley Motors",
			}
			err := flow.CreateSpot(ctx, spot)
			require.Error(t, err)
			assert.True(t, businessflow.IsSpotTimeRangeInvalid(err))
		})

		t.Run("InvalidDayOfWeek", func(t *testing.T) {
			// No air date to derive from, so the explicit day stands alone.
			spot := &models.Spot{
				MarketID:   market.ID,
				DayOfWeek:  models.DayOfWeek(9),
				TimeIn:     420,
				TimeOut:    480,
				Advertiser: "Valley Motors",
			}
			err := flow.CreateSpot(ctx, spot)
			require.Error(t, err)
			assert.ErrorIs(t, err, businessflow.ErrSpotDayOfWeekInvalid)
		})

		t.Run("InactiveMarket", func(t *testing.T) {
			retired, err := fixtures.CreateTestMarket("Retired")
			require.NoError(t, err)
			require.NoError(t, testDB.DB.Model(retired).Update("is_active", false).Error)

			spot := &models.Spot{
				MarketID:   retired.ID,
				AirDate:    mustDate(t, "2025-06-02"),
				TimeIn:     420,
				TimeOut:    480,
				Advertiser: "Valley Motors",
			}
			err = flow.CreateSpot(ctx, spot)
			require.Error(t, err)
			assert.ErrorIs(t, err, businessflow.ErrMarketInactive)
		})

		return nil
	})
	require.NoError(t, err)
}
