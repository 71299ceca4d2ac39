// Package anomaly flags significant score swings, review-volume spikes and
// single very negative reviews. Pure computation over score history and
// recent review activity.
package anomaly

import (
	"fmt"
	"time"

	"eywa/internal/domain"
)

type AlertType string

const (
	AlertScoreDrop      AlertType = "score_drop"
	AlertScoreRise      AlertType = "score_rise"
	AlertReviewSpike    AlertType = "review_spike"
	AlertNegativeReview AlertType = "negative_review"
)

type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
)

// Detection thresholds. Score deltas at or beyond the high bound outrank the
// medium bound; a spike needs at least twice the normal daily review rate.
const (
	scoreDeltaHigh   = 0.5
	scoreDeltaMedium = 0.3
	spikeFactor      = 2.0
	recentWindow     = 24 * time.Hour
	negativeCutoff   = 2.0
)

type Alert struct {
	Type     AlertType `json:"type"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
}

// Detect evaluates all rules independently; one invocation may emit several
// alerts. previousScore nil means first computation: no delta rule applies.
// normalReviewRate is the caller-supplied baseline, see NormalReviewRate.
func Detect(currentScore float64, previousScore *float64, recentReviews []domain.ReviewRecord, normalReviewRate float64, now time.Time) []Alert {
	var alerts []Alert

	if previousScore != nil {
		delta := currentScore - *previousScore
		switch {
		case delta <= -scoreDeltaHigh:
			alerts = append(alerts, Alert{AlertScoreDrop, SeverityHigh,
				fmt.Sprintf("score dropped by %.2f", -delta)})
		case delta <= -scoreDeltaMedium:
			alerts = append(alerts, Alert{AlertScoreDrop, SeverityMedium,
				fmt.Sprintf("score dropped by %.2f", -delta)})
		case delta >= scoreDeltaHigh:
			alerts = append(alerts, Alert{AlertScoreRise, SeverityHigh,
				fmt.Sprintf("score rose by %.2f", delta)})
		case delta >= scoreDeltaMedium:
			alerts = append(alerts, Alert{AlertScoreRise, SeverityMedium,
				fmt.Sprintf("score rose by %.2f", delta)})
		}
	}

	cutoff := now.Add(-recentWindow)
	var last24h []domain.ReviewRecord
	for _, r := range recentReviews {
		if r.PublishedAt.After(cutoff) && !r.PublishedAt.After(now) {
			last24h = append(last24h, r)
		}
	}

	if normalReviewRate > 0 && float64(len(last24h)) >= normalReviewRate*spikeFactor {
		alerts = append(alerts, Alert{AlertReviewSpike, SeverityMedium,
			fmt.Sprintf("%d reviews in 24h against a normal rate of %.1f/day", len(last24h), normalReviewRate)})
	}

	// One alert per qualifying review, deliberately not aggregated.
	for _, r := range last24h {
		if r.Rating > negativeCutoff {
			continue
		}
		sev := SeverityMedium
		if r.Rating <= 1 {
			sev = SeverityHigh
		}
		alerts = append(alerts, Alert{AlertNegativeReview, sev,
			fmt.Sprintf("review %s rated %.0f", r.ExternalReviewID, r.Rating)})
	}

	return alerts
}

// NormalReviewRate is reviews per day over the trailing 30 days excluding the
// most recent day, so the spike being measured cannot inflate its own
// baseline.
func NormalReviewRate(reviews []domain.ReviewRecord, now time.Time) float64 {
	from := now.Add(-30 * 24 * time.Hour)
	to := now.Add(-recentWindow)
	var n int
	for _, r := range reviews {
		if r.PublishedAt.After(from) && !r.PublishedAt.After(to) {
			n++
		}
	}
	return float64(n) / 29.0
}
