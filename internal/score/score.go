// Package score derives the Eywa score: a single normalized aggregate over
// heterogeneous per-source ratings, plus trend classification against history.
package score

import (
	"math"
	"sort"
	"time"

	"eywa/internal/domain"
)

// TrendDeadBand is the score-change window treated as no meaningful movement.
const TrendDeadBand = 0.1

// targetScale is the scale the Eywa score is expressed on.
const targetScale = 5.0

// fullConfidenceReviews is the review volume at which a source reaches full
// confidence. Below it, confidence scales linearly with a floor so a source
// with a handful of reviews still contributes.
const (
	fullConfidenceReviews = 500
	minConfidence         = 0.25
)

// Base weight and native scale per provider. Unknown sources get the default
// weight and a 5-point scale.
var (
	sourceWeights = map[domain.Source]float64{
		domain.SourceGoogle:      1.0,
		domain.SourceTripadvisor: 0.9,
	}
	sourceScales = map[domain.Source]float64{
		domain.SourceGoogle:      5.0,
		domain.SourceTripadvisor: 5.0,
	}
	defaultWeight = 0.8
)

// Aggregate is one score computation: the Eywa score and the per-source
// breakdown that is persisted alongside it.
type Aggregate struct {
	EywaScore float64
	PerSource []domain.SourceScore
}

// Compute aggregates the given per-source ratings into one Eywa score: the
// confidence-weighted mean of normalized ratings. With a single source the
// aggregate equals that source's normalized rating. Returns ok=false when no
// sources are given; the caller must not persist a score in that case.
func Compute(sources []domain.RatingSource) (Aggregate, bool) {
	if len(sources) == 0 {
		return Aggregate{}, false
	}
	var (
		sum, wsum float64
		breakdown = make([]domain.SourceScore, 0, len(sources))
	)
	for _, s := range sources {
		norm := normalize(s.Source, s.Rating)
		conf := confidence(s.ReviewCount)
		base := weight(s.Source)
		w := base * conf
		sum += norm * w
		wsum += w
		breakdown = append(breakdown, domain.SourceScore{
			Source:     s.Source,
			Rating:     round2(norm),
			Weight:     base,
			Confidence: round2(conf),
		})
	}
	if wsum == 0 {
		return Aggregate{}, false
	}
	return Aggregate{EywaScore: round2(sum / wsum), PerSource: breakdown}, true
}

// Trend classifies the movement from previous to current. A nil previous means
// first computation: no trend, zero delta.
func Trend(current float64, previous *float64) (domain.Trend, float64) {
	if previous == nil {
		return domain.TrendStable, 0
	}
	delta := round2(current - *previous)
	switch {
	case delta > TrendDeadBand:
		return domain.TrendUp, delta
	case delta < -TrendDeadBand:
		return domain.TrendDown, delta
	default:
		return domain.TrendStable, delta
	}
}

// TrendSummary is the windowed trend over a score history.
type TrendSummary struct {
	Trend         domain.Trend `json:"trend"`
	Change        float64      `json:"change"`
	ChangePercent float64      `json:"changePercent"`
	DataPoints    int          `json:"dataPoints"`
}

// TrendOverWindow reduces the score snapshots falling inside [now-period, now]
// to a single trend: change from oldest to newest, percent change relative to
// the oldest, classified with the same dead-band as Trend.
func TrendOverWindow(scores []domain.ScoreRecord, period time.Duration, now time.Time) TrendSummary {
	cutoff := now.Add(-period)
	var in []domain.ScoreRecord
	for _, s := range scores {
		if !s.ComputedAt.Before(cutoff) && !s.ComputedAt.After(now) {
			in = append(in, s)
		}
	}
	if len(in) == 0 {
		return TrendSummary{Trend: domain.TrendStable}
	}
	sort.Slice(in, func(i, j int) bool { return in[i].ComputedAt.Before(in[j].ComputedAt) })

	start, end := in[0].EywaScore, in[len(in)-1].EywaScore
	change := round2(end - start)
	var pct float64
	if start > 0 {
		pct = round1(change / start * 100)
	}
	t := domain.TrendStable
	switch {
	case change > TrendDeadBand:
		t = domain.TrendUp
	case change < -TrendDeadBand:
		t = domain.TrendDown
	}
	return TrendSummary{Trend: t, Change: change, ChangePercent: pct, DataPoints: len(in)}
}

// Window maps a reporting period tag to its duration.
func Window(period string) (time.Duration, bool) {
	switch period {
	case "7d":
		return 7 * 24 * time.Hour, true
	case "30d":
		return 30 * 24 * time.Hour, true
	case "90d":
		return 90 * 24 * time.Hour, true
	}
	return 0, false
}

func normalize(s domain.Source, rating float64) float64 {
	scale, ok := sourceScales[s]
	if !ok || scale <= 0 {
		scale = targetScale
	}
	return rating / scale * targetScale
}

func confidence(reviewCount int) float64 {
	c := float64(reviewCount) / fullConfidenceReviews
	if c < minConfidence {
		return minConfidence
	}
	if c > 1 {
		return 1
	}
	return c
}

func weight(s domain.Source) float64 {
	if w, ok := sourceWeights[s]; ok {
		return w
	}
	return defaultWeight
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round1(v float64) float64 { return math.Round(v*10) / 10 }
