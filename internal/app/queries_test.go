package app_test

import (
	"context"
	"testing"
	"time"

	"eywa/internal/app"
	"eywa/internal/domain"
)

// ---- cache fake ----

type fakeCache struct {
	store map[string]any
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	if c.store == nil {
		return false, nil
	}
	v, ok := c.store[key]
	if !ok {
		return false, nil
	}
	switch d := dst.(type) {
	case *domain.ScoreRecord:
		*d = v.(domain.ScoreRecord)
	default:
		return false, nil
	}
	return true, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	if c.store == nil {
		c.store = map[string]any{}
	}
	c.store[key] = v
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	delete(c.store, key)
	return nil
}

// ---- tests ----

func TestGetScore_CacheMissThenHit(t *testing.T) {
	repo := newFakeRepo()
	repo.scores = append(repo.scores, domain.ScoreRecord{
		HotelID: 42, EywaScore: 4.4, Trend: domain.TrendStable, ComputedAt: time.Now(),
	})
	cache := &fakeCache{}
	q := app.NewQueryService(repo, cache, 10*time.Minute)

	// Miss (first time, populates cache)
	s, err := q.GetScore(context.Background(), 42)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if s.EywaScore != 4.4 {
		t.Fatalf("unexpected score: %+v", s)
	}

	// Mutate repo to prove the second read is served from cache
	repo.scores[0].EywaScore = 1.0

	s2, err := q.GetScore(context.Background(), 42)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if s2.EywaScore != 4.4 {
		t.Fatalf("expected cached score 4.4, got %v", s2.EywaScore)
	}
}

func TestGetScore_NoHistory(t *testing.T) {
	q := app.NewQueryService(newFakeRepo(), &fakeCache{}, time.Minute)
	if _, err := q.GetScore(context.Background(), 1); err != domain.ErrNotFound {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestGetTrend(t *testing.T) {
	repo := newFakeRepo()
	now := time.Now()
	repo.scores = append(repo.scores,
		domain.ScoreRecord{HotelID: 1, EywaScore: 4.0, ComputedAt: now.Add(-20 * 24 * time.Hour)},
		domain.ScoreRecord{HotelID: 1, EywaScore: 4.3, ComputedAt: now.Add(-time.Hour)},
	)
	q := app.NewQueryService(repo, &fakeCache{}, time.Minute)

	sum, err := q.GetTrend(context.Background(), 1, "30d")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if sum.Trend != domain.TrendUp || sum.DataPoints != 2 {
		t.Fatalf("unexpected summary: %+v", sum)
	}

	if _, err := q.GetTrend(context.Background(), 1, "2y"); err == nil {
		t.Fatal("expected error for unknown period")
	}
}

func TestGetAlerts_ScoreDropAndNegativeReview(t *testing.T) {
	repo := newFakeRepo()
	now := time.Now()
	repo.scores = append(repo.scores,
		domain.ScoreRecord{HotelID: 1, EywaScore: 4.6, ComputedAt: now.Add(-48 * time.Hour)},
		domain.ScoreRecord{HotelID: 1, EywaScore: 4.0, ComputedAt: now.Add(-time.Hour)},
	)
	repo.reviews["1|google|bad"] = domain.ReviewRecord{
		HotelID: 1, Source: domain.SourceGoogle, ExternalReviewID: "bad",
		Rating: 1, PublishedAt: now.Add(-2 * time.Hour),
	}
	q := app.NewQueryService(repo, &fakeCache{}, time.Minute)

	alerts, err := q.GetAlerts(context.Background(), 1)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	types := map[string]bool{}
	for _, a := range alerts {
		types[string(a.Type)] = true
	}
	if !types["score_drop"] || !types["negative_review"] {
		t.Fatalf("expected score_drop and negative_review, got %+v", alerts)
	}
}

func TestGetAlerts_NoScoresNoAlerts(t *testing.T) {
	q := app.NewQueryService(newFakeRepo(), &fakeCache{}, time.Minute)
	alerts, err := q.GetAlerts(context.Background(), 1)
	if err != nil || len(alerts) != 0 {
		t.Fatalf("want none, got %v, %v", alerts, err)
	}
}
