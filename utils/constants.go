package utils

import (
	"time"
)

// Token and session time constants
const (
	// AccessTokenTTL is the time-to-live for admin access tokens (24 hours)
	AccessTokenTTL = 24 * time.Hour

	// AccessTokenTTLSeconds is the time-to-live for admin access tokens in seconds
	AccessTokenTTLSeconds = 86400
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Engine constants
const (
	// DefaultBatchWorkers is the worker pool size when no value is configured
	DefaultBatchWorkers = 4

	// DefaultSpotPageSize is the page size used when draining unassigned spots
	DefaultSpotPageSize = 1000

	// ConfidenceExact is the confidence score for unambiguous classifications
	ConfidenceExact = 1.0

	// DateLayout is the wire format for effective dates and air dates
	DateLayout = "2006-01-02"
)
