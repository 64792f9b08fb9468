package dto

// CreateSpotRequest submits a single spot over the API
type CreateSpotRequest struct {
	MarketID    uint   `json:"market_id" validate:"required,gte=1"`
	AirDate     string `json:"air_date" validate:"required,datetime=2006-01-02"`
	TimeIn      string `json:"time_in" validate:"required"`
	TimeOut     string `json:"time_out" validate:"required"`
	Advertiser  string `json:"advertiser" validate:"omitempty,max=256"`
	GrossRate   int64  `json:"gross_rate" validate:"omitempty,gte=0"`
	RevenueType string `json:"revenue_type" validate:"omitempty,max=32"`
}

// ReassignSpotRequest re-runs classification for one spot
type ReassignSpotRequest struct {
	// ForceCurrentGrid re-resolves against the live schedule instead of the
	// grid version recorded at original assignment time.
	ForceCurrentGrid bool `json:"force_current_grid"`
}

// SpotAssignmentResponse is the recorded assignment for one spot
type SpotAssignmentResponse struct {
	SpotUUID          string  `json:"spot_uuid"`
	GridID            *uint   `json:"grid_id,omitempty"`
	BlockID           *uint   `json:"block_id,omitempty"`
	Intent            string  `json:"intent"`
	Confidence        float64 `json:"confidence"`
	MultiBlock        bool    `json:"multi_block"`
	SpannedBlockIDs   []int64 `json:"spanned_block_ids,omitempty"`
	PrimaryBlockID    *uint   `json:"primary_block_id,omitempty"`
	Method            string  `json:"method"`
	RequiresAttention bool    `json:"requires_attention"`
	AttentionReason   *string `json:"attention_reason,omitempty"`
	AssignedAt        string  `json:"assigned_at"`
}
