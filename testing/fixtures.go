// Package testing provides test utilities and database setup for testing the assignment engine
package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/adscope-labs/spotgrid/models"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestMarket creates a market with a unique code
func (tf *TestFixtures) CreateTestMarket(name string) (*models.Market, error) {
	market := &models.Market{
		Code:     fmt.Sprintf("M%04d", rand.Intn(10000)),
		Name:     name,
		IsActive: true,
	}
	if err := tf.DB.DB.Create(market).Error; err != nil {
		return nil, fmt.Errorf("failed to create test market: %w", err)
	}
	return market, nil
}

// CreateTestGrid creates a programming grid effective from start. A nil end
// leaves the grid open-ended.
func (tf *TestFixtures) CreateTestGrid(name string, start time.Time, end *time.Time) (*models.ProgrammingGrid, error) {
	grid := &models.ProgrammingGrid{
		Name:               name,
		Kind:               models.ScheduleKindStandard,
		EffectiveStartDate: models.DateOf(start),
		IsActive:           true,
	}
	if end != nil {
		e := models.DateOf(*end)
		grid.EffectiveEndDate = &e
	}
	if err := tf.DB.DB.Create(grid).Error; err != nil {
		return nil, fmt.Errorf("failed to create test grid: %w", err)
	}
	return grid, nil
}

// CreateTestBlock creates an active language block on the given grid and day.
// Times are "HH:MM" strings for readability at call sites.
func (tf *TestFixtures) CreateTestBlock(gridID uint, day models.DayOfWeek, startTime, endTime, languageCode, name string) (*models.LanguageBlock, error) {
	start, err := models.ParseTimeOfDay(startTime)
	if err != nil {
		return nil, err
	}
	end, err := models.ParseTimeOfDay(endTime)
	if err != nil {
		return nil, err
	}

	block := &models.LanguageBlock{
		GridID:       gridID,
		DayOfWeek:    day,
		StartMinute:  start,
		EndMinute:    end,
		LanguageCode: languageCode,
		Name:         name,
		IsActive:     true,
	}
	if err := tf.DB.DB.Create(block).Error; err != nil {
		return nil, fmt.Errorf("failed to create test block: %w", err)
	}
	return block, nil
}

// CreateTestAssignment binds a market to a grid over a date range. A nil end
// creates an open-ended assignment.
func (tf *TestFixtures) CreateTestAssignment(marketID, gridID uint, start time.Time, end *time.Time, priority int) (*models.MarketGridAssignment, error) {
	assignment := &models.MarketGridAssignment{
		MarketID:           marketID,
		GridID:             gridID,
		EffectiveStartDate: models.DateOf(start),
		Priority:           priority,
	}
	if end != nil {
		e := models.DateOf(*end)
		assignment.EffectiveEndDate = &e
	}
	if err := tf.DB.DB.Create(assignment).Error; err != nil {
		return nil, fmt.Errorf("failed to create test assignment: %w", err)
	}
	return assignment, nil
}

// CreateTestSpot creates a spot airing on the given date and window. The day
// of week is derived from the air date the same way intake does it.
func (tf *TestFixtures) CreateTestSpot(marketID uint, airDate time.Time, timeIn, timeOut string) (*models.Spot, error) {
	in, err := models.ParseTimeOfDay(timeIn)
	if err != nil {
		return nil, err
	}
	out, err := models.ParseTimeOfDay(timeOut)
	if err != nil {
		return nil, err
	}

	day := models.DateOf(airDate)
	spot := &models.Spot{
		MarketID:    marketID,
		AirDate:     day,
		DayOfWeek:   models.DayOfWeek(day.Weekday()),
		TimeIn:      in,
		TimeOut:     out,
		Advertiser:  "Test Advertiser",
		GrossRate:   125_00,
		RevenueType: "cash",
	}
	if err := tf.DB.DB.Create(spot).Error; err != nil {
		return nil, fmt.Errorf("failed to create test spot: %w", err)
	}
	return spot, nil
}

// CreateTestCollision creates an open overlap record between two assignments
func (tf *TestFixtures) CreateTestCollision(marketID uint, aID, bID uint, start time.Time, end *time.Time) (*models.CollisionRecord, error) {
	record := &models.CollisionRecord{
		MarketID:      marketID,
		Type:          models.CollisionMarketOverlap,
		Severity:      models.SeverityError,
		AssignmentAID: &aID,
		AssignmentBID: &bID,
		ConflictStart: models.DateOf(start),
		Description:   "test overlap",
		Status:        models.ResolutionUnresolved,
	}
	if end != nil {
		e := models.DateOf(*end)
		record.ConflictEnd = &e
	}
	if err := tf.DB.DB.Create(record).Error; err != nil {
		return nil, fmt.Errorf("failed to create test collision: %w", err)
	}
	return record, nil
}
