package app

import (
	"context"
	"fmt"
	"time"

	"eywa/internal/anomaly"
	"eywa/internal/domain"
	"eywa/internal/score"
)

func scoreKey(hotelID int64) string { return fmt.Sprintf("score:%d", hotelID) }
func trendKey(hotelID int64, period string) string {
	return fmt.Sprintf("trend:%d:%s", hotelID, period)
}

// QueryService serves the reporting reads: latest score, windowed trend and
// current alerts. Score and trend reads are cache-fronted; sync invalidates
// them after every recomputation.
type QueryService struct {
	repo     domain.RatingsRepository
	cache    domain.Cache
	cacheTTL time.Duration
	now      func() time.Time
}

func NewQueryService(r domain.RatingsRepository, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{repo: r, cache: c, cacheTTL: ttl, now: time.Now}
}

func (s *QueryService) GetScore(ctx context.Context, hotelID int64) (domain.ScoreRecord, error) {
	key := scoreKey(hotelID)
	var rec domain.ScoreRecord
	if ok, _ := s.cache.Get(ctx, key, &rec); ok {
		return rec, nil
	}
	latest, err := s.repo.LatestScore(ctx, hotelID)
	if err != nil {
		return domain.ScoreRecord{}, err
	}
	if latest == nil {
		return domain.ScoreRecord{}, domain.ErrNotFound
	}
	_ = s.cache.Set(ctx, key, *latest, int(s.cacheTTL.Seconds()))
	return *latest, nil
}

func (s *QueryService) GetTrend(ctx context.Context, hotelID int64, period string) (score.TrendSummary, error) {
	window, ok := score.Window(period)
	if !ok {
		return score.TrendSummary{}, fmt.Errorf("unknown period %q", period)
	}
	key := trendKey(hotelID, period)
	var sum score.TrendSummary
	if ok, _ := s.cache.Get(ctx, key, &sum); ok {
		return sum, nil
	}
	now := s.now()
	scores, err := s.repo.ScoresSince(ctx, hotelID, now.Add(-window))
	if err != nil {
		return score.TrendSummary{}, err
	}
	sum = score.TrendOverWindow(scores, window, now)
	_ = s.cache.Set(ctx, key, sum, int(s.cacheTTL.Seconds()))
	return sum, nil
}

// GetAlerts evaluates the anomaly rules against the hotel's score history and
// the last 30 days of review activity. Always computed fresh: alerts must
// reflect the latest sync, not a cached view.
func (s *QueryService) GetAlerts(ctx context.Context, hotelID int64) ([]anomaly.Alert, error) {
	now := s.now()
	scores, err := s.repo.ScoresSince(ctx, hotelID, now.Add(-90*24*time.Hour))
	if err != nil {
		return nil, err
	}
	if len(scores) == 0 {
		return nil, nil
	}
	current := scores[len(scores)-1].EywaScore
	var previous *float64
	if len(scores) > 1 {
		previous = &scores[len(scores)-2].EywaScore
	}

	reviews, err := s.repo.ReviewsSince(ctx, hotelID, now.Add(-30*24*time.Hour))
	if err != nil {
		return nil, err
	}
	rate := anomaly.NormalReviewRate(reviews, now)
	return anomaly.Detect(current, previous, reviews, rate, now), nil
}
