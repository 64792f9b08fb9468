package businessflow

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/adscope-labs/spotgrid/models"
	"github.com/adscope-labs/spotgrid/repository"
	"github.com/adscope-labs/spotgrid/utils"
	"github.com/xuri/excelize/v2"
)

// SpotImportSummary reports the outcome of one spreadsheet import. Bad rows
// are skipped with a reason instead of failing the upload; traffic exports
// routinely carry a few malformed lines.
type SpotImportSummary struct {
	Imported    int      `json:"imported"`
	Skipped     int      `json:"skipped"`
	RowMessages []string `json:"row_messages,omitempty"`
}

// SpotIntakeFlow ingests spots from the traffic system. The spreadsheet
// columns are fixed: market_code, air_date, time_in, time_out, advertiser,
// gross_rate, revenue_type. Day of week is derived from the air date, never
// trusted from the export.
type SpotIntakeFlow interface {
	ImportSpotsFromExcel(ctx context.Context, r io.Reader) (*SpotImportSummary, error)
	CreateSpot(ctx context.Context, spot *models.Spot) error
}

// SpotIntakeFlowImpl implements SpotIntakeFlow
type SpotIntakeFlowImpl struct {
	spotRepo   repository.SpotRepository
	marketRepo repository.MarketRepository
}

// NewSpotIntakeFlow creates a new spot intake flow
func NewSpotIntakeFlow(
	spotRepo repository.SpotRepository,
	marketRepo repository.MarketRepository,
) SpotIntakeFlow {
	return &SpotIntakeFlowImpl{
		spotRepo:   spotRepo,
		marketRepo: marketRepo,
	}
}

const spotSheetColumns = 7

// ImportSpotsFromExcel reads the first sheet of an xlsx export and persists
// one spot per valid row. Rows that cannot be parsed or reference unknown
// markets are reported in the summary and skipped.
func (f *SpotIntakeFlowImpl) ImportSpotsFromExcel(ctx context.Context, r io.Reader) (*SpotImportSummary, error) {
	xl, err := excelize.OpenReader(r)
	if err != nil {
		return nil, NewBusinessError("SPOT_IMPORT_FAILED", "Failed to open spreadsheet", err)
	}
	defer xl.Close()

	sheets := xl.GetSheetList()
	if len(sheets) == 0 {
		return nil, NewBusinessError("SPOT_IMPORT_FAILED", "Spreadsheet has no sheets", nil)
	}

	rows, err := xl.GetRows(sheets[0])
	if err != nil {
		return nil, NewBusinessError("SPOT_IMPORT_FAILED", "Failed to read sheet rows", err)
	}
	if len(rows) < 2 {
		return &SpotImportSummary{}, nil
	}

	summary := &SpotImportSummary{}
	marketsByCode := make(map[string]*models.Market)
	var spots []*models.Spot

	// Row 1 is the header.
	for ri, row := range rows[1:] {
		rowNum := ri + 2

		spot, reason, err := f.parseRow(ctx, row, marketsByCode)
		if err != nil {
			return nil, err
		}
		if reason != "" {
			summary.Skipped++
			summary.RowMessages = append(summary.RowMessages, fmt.Sprintf("row %d: %s", rowNum, reason))
			continue
		}
		spots = append(spots, spot)
	}

	if len(spots) > 0 {
		if err := f.spotRepo.SaveBatch(ctx, spots); err != nil {
			return nil, NewBusinessError("SPOT_IMPORT_FAILED", "Failed to persist imported spots", err)
		}
	}
	summary.Imported = len(spots)

	return summary, nil
}

// parseRow converts one sheet row into a spot. A non-empty reason means the
// row is skipped; an error means the store failed and the import aborts.
func (f *SpotIntakeFlowImpl) parseRow(ctx context.Context, row []string, marketsByCode map[string]*models.Market) (*models.Spot, string, error) {
	if len(row) < spotSheetColumns {
		return nil, fmt.Sprintf("expected %d columns, got %d", spotSheetColumns, len(row)), nil
	}

	code := strings.TrimSpace(row[0])
	if code == "" {
		return nil, "missing market code", nil
	}

	market, ok := marketsByCode[code]
	if !ok {
		var err error
		market, err = f.marketRepo.ByCode(ctx, code)
		if err != nil {
			return nil, "", NewBusinessError("MARKET_LOOKUP_FAILED", "Failed to lookup market", err)
		}
		marketsByCode[code] = market
	}
	if market == nil {
		return nil, fmt.Sprintf("unknown market code %q", code), nil
	}
	if !market.IsActive {
		return nil, fmt.Sprintf("inactive market %q", code), nil
	}

	airDate, err := utils.ParseDate(strings.TrimSpace(row[1]))
	if err != nil {
		return nil, fmt.Sprintf("invalid air date %q", row[1]), nil
	}

	timeIn, err := models.ParseTimeOfDay(strings.TrimSpace(row[2]))
	if err != nil {
		return nil, fmt.Sprintf("invalid time in %q", row[2]), nil
	}
	timeOut, err := models.ParseTimeOfDay(strings.TrimSpace(row[3]))
	if err != nil {
		return nil, fmt.Sprintf("invalid time out %q", row[3]), nil
	}

	grossRate := int64(0)
	if raw := strings.TrimSpace(row[5]); raw != "" {
		grossRate, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Sprintf("invalid gross rate %q", row[5]), nil
		}
	}

	return &models.Spot{
		MarketID:    market.ID,
		AirDate:     models.DateOf(airDate),
		DayOfWeek:   models.DayOfWeek(airDate.Weekday()),
		TimeIn:      timeIn,
		TimeOut:     timeOut,
		Advertiser:  strings.TrimSpace(row[4]),
		GrossRate:   grossRate,
		RevenueType: strings.TrimSpace(row[6]),
	}, "", nil
}

// CreateSpot persists a single spot submitted over the API
func (f *SpotIntakeFlowImpl) CreateSpot(ctx context.Context, spot *models.Spot) error {
	if spot.MarketID == 0 {
		return NewBusinessError("SPOT_VALIDATION_FAILED", "Spot validation failed", ErrSpotMarketMissing)
	}
	market, err := f.marketRepo.ByID(ctx, spot.MarketID)
	if err != nil {
		return NewBusinessError("MARKET_LOOKUP_FAILED", "Failed to lookup market", err)
	}
	if market == nil {
		return NewBusinessError("MARKET_NOT_FOUND", "Market not found", ErrMarketNotFound)
	}
	if !market.IsActive {
		return NewBusinessError("MARKET_INACTIVE", "Market is inactive", ErrMarketInactive)
	}
	if !spot.TimeIn.Valid() || !spot.TimeOut.Valid() || spot.TimeOut < spot.TimeIn {
		return NewBusinessError("SPOT_VALIDATION_FAILED", "Spot validation failed", ErrSpotTimeRangeInvalid)
	}
	if !spot.AirDate.IsZero() {
		spot.AirDate = models.DateOf(spot.AirDate)
		spot.DayOfWeek = models.DayOfWeek(spot.AirDate.Weekday())
	}
	if !spot.DayOfWeek.Valid() {
		return NewBusinessError("SPOT_VALIDATION_FAILED", "Spot validation failed", ErrSpotDayOfWeekInvalid)
	}
	if err := f.spotRepo.Save(ctx, spot); err != nil {
		return NewBusinessError("SPOT_CREATION_FAILED", "Spot creation failed", err)
	}
	return nil
}
