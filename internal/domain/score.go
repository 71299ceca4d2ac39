package domain

import "time"

// RatingSource is the ephemeral input to score aggregation: one provider's
// current rating and review volume.
type RatingSource struct {
	Source      Source
	Rating      float64
	ReviewCount int
}

type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// SourceScore is the persisted per-source breakdown of one score computation.
type SourceScore struct {
	Source     Source  `json:"source"`
	Rating     float64 `json:"rating"`
	Weight     float64 `json:"weight"`
	Confidence float64 `json:"confidence"`
}

// ScoreRecord is one row of the append-only Eywa score time series.
type ScoreRecord struct {
	HotelID    int64
	EywaScore  float64
	PerSource  []SourceScore
	Trend      Trend
	TrendDelta float64
	ComputedAt time.Time
}
