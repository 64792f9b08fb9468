// Package businessflow contains the core business logic for grid resolution,
// collision detection, block matching, and spot assignment.
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Market and grid errors
	ErrMarketNotFound     = errors.New("market not found")
	ErrMarketInactive     = errors.New("market is inactive")
	ErrMarketCodeRequired = errors.New("market code is required")
	ErrMarketCodeTaken    = errors.New("market code already in use")
	ErrGridNotFound       = errors.New("programming grid not found")
	ErrGridInactive       = errors.New("programming grid is inactive")
	ErrGridNameRequired   = errors.New("grid name is required")

	// Assignment administration errors
	ErrAssignmentNotFound       = errors.New("market grid assignment not found")
	ErrAssignmentAlreadyEnded   = errors.New("market grid assignment already ended")
	ErrEndDateBeforeStart       = errors.New("end date cannot be before start date")
	ErrStartDateRequired        = errors.New("effective start date is required")
	ErrSuccessorGridRequired    = errors.New("successor grid is required for a migration")
	ErrBlockNotFound            = errors.New("language block not found")
	ErrBlockWindowInvalid       = errors.New("block start time must be before end time within one day")
	ErrBlockLanguageRequired    = errors.New("block language code is required")
	ErrCollisionRecordNotFound  = errors.New("collision record not found")
	ErrCollisionAlreadyResolved = errors.New("collision record already closed")

	// Spot and assignment engine errors
	ErrSpotNotFound          = errors.New("spot not found")
	ErrSpotTimeRangeInvalid  = errors.New("spot time range is inverted or out of range")
	ErrSpotDayOfWeekInvalid  = errors.New("spot day of week is out of range")
	ErrSpotMarketMissing     = errors.New("spot has no market reference")
	ErrSpotNotYetAssigned    = errors.New("spot has no assignment to replace")
	ErrBatchAlreadyRunning   = errors.New("an assignment batch is already running")
	ErrStoreUnavailable      = errors.New("assignment store is unavailable")
	ErrUnknownTieBreakPolicy = errors.New("unknown tie-break policy")

	// Pagination errors
	ErrInvalidPage     = errors.New("offset must not be negative")
	ErrInvalidPageSize = errors.New("page size must be between 1 and 500")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func IsMarketNotFound(err error) bool {
	return errors.Is(err, ErrMarketNotFound)
}

func IsGridNotFound(err error) bool {
	return errors.Is(err, ErrGridNotFound)
}

func IsAssignmentNotFound(err error) bool {
	return errors.Is(err, ErrAssignmentNotFound)
}

func IsSpotNotFound(err error) bool {
	return errors.Is(err, ErrSpotNotFound)
}

func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

func IsMarketCodeTaken(err error) bool {
	return errors.Is(err, ErrMarketCodeTaken)
}

func IsBlockNotFound(err error) bool {
	return errors.Is(err, ErrBlockNotFound)
}

func IsBlockWindowInvalid(err error) bool {
	return errors.Is(err, ErrBlockWindowInvalid)
}

func IsAssignmentAlreadyEnded(err error) bool {
	return errors.Is(err, ErrAssignmentAlreadyEnded)
}

func IsEndDateBeforeStart(err error) bool {
	return errors.Is(err, ErrEndDateBeforeStart)
}

func IsCollisionNotFound(err error) bool {
	return errors.Is(err, ErrCollisionRecordNotFound)
}

func IsCollisionAlreadyResolved(err error) bool {
	return errors.Is(err, ErrCollisionAlreadyResolved)
}

func IsSpotNotYetAssigned(err error) bool {
	return errors.Is(err, ErrSpotNotYetAssigned)
}

func IsMarketInactive(err error) bool {
	return errors.Is(err, ErrMarketInactive)
}

func IsGridInactive(err error) bool {
	return errors.Is(err, ErrGridInactive)
}

func IsSpotTimeRangeInvalid(err error) bool {
	return errors.Is(err, ErrSpotTimeRangeInvalid)
}
