package score_test

import (
	"math"
	"testing"
	"time"

	"eywa/internal/domain"
	"eywa/internal/score"
)

func almostEq(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestCompute_NoSources(t *testing.T) {
	if _, ok := score.Compute(nil); ok {
		t.Fatal("expected ok=false for empty input")
	}
}

func TestCompute_SingleSourceEqualsNormalizedRating(t *testing.T) {
	agg, ok := score.Compute([]domain.RatingSource{
		{Source: domain.SourceGoogle, Rating: 4.3, ReviewCount: 12},
	})
	if !ok {
		t.Fatal("expected a score")
	}
	if !almostEq(agg.EywaScore, 4.3) {
		t.Fatalf("single-source score = %v, want 4.3", agg.EywaScore)
	}
	if len(agg.PerSource) != 1 || agg.PerSource[0].Source != domain.SourceGoogle {
		t.Fatalf("unexpected breakdown: %+v", agg.PerSource)
	}
}

func TestCompute_WeightedTowardHigherVolumeSource(t *testing.T) {
	agg, ok := score.Compute([]domain.RatingSource{
		{Source: domain.SourceGoogle, Rating: 5.0, ReviewCount: 1000},
		{Source: domain.SourceTripadvisor, Rating: 3.0, ReviewCount: 10},
	})
	if !ok {
		t.Fatal("expected a score")
	}
	// Google has full confidence and the higher base weight; the aggregate
	// must land much closer to 5 than the plain mean of 4.
	if agg.EywaScore <= 4.0 || agg.EywaScore >= 5.0 {
		t.Fatalf("score = %v, want in (4.0, 5.0)", agg.EywaScore)
	}
}

func TestTrend(t *testing.T) {
	prev := 4.0
	cases := []struct {
		current  float64
		previous *float64
		want     domain.Trend
	}{
		{4.0, nil, domain.TrendStable},
		{4.05, &prev, domain.TrendStable}, // inside dead-band
		{4.2, &prev, domain.TrendUp},
		{3.8, &prev, domain.TrendDown},
	}
	for _, c := range cases {
		got, _ := score.Trend(c.current, c.previous)
		if got != c.want {
			t.Errorf("Trend(%v, %v) = %v, want %v", c.current, c.previous, got, c.want)
		}
	}
	if _, delta := score.Trend(4.6, &prev); !almostEq(delta, 0.6) {
		t.Errorf("delta = %v, want 0.6", delta)
	}
}

func TestTrendOverWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	hist := []domain.ScoreRecord{
		{EywaScore: 4.0, ComputedAt: now.Add(-20 * 24 * time.Hour)},
		{EywaScore: 4.2, ComputedAt: now.Add(-10 * 24 * time.Hour)},
		{EywaScore: 4.5, ComputedAt: now.Add(-1 * 24 * time.Hour)},
		{EywaScore: 2.0, ComputedAt: now.Add(-80 * 24 * time.Hour)}, // outside 30d
	}

	sum := score.TrendOverWindow(hist, 30*24*time.Hour, now)
	if sum.DataPoints != 3 {
		t.Fatalf("dataPoints = %d, want 3", sum.DataPoints)
	}
	if sum.Trend != domain.TrendUp || !almostEq(sum.Change, 0.5) {
		t.Fatalf("summary = %+v, want up/0.5", sum)
	}
	if !almostEq(sum.ChangePercent, 12.5) {
		t.Fatalf("changePercent = %v, want 12.5", sum.ChangePercent)
	}

	empty := score.TrendOverWindow(nil, 7*24*time.Hour, now)
	if empty.DataPoints != 0 || empty.Trend != domain.TrendStable {
		t.Fatalf("empty window summary = %+v", empty)
	}
}

func TestWindow(t *testing.T) {
	if d, ok := score.Window("30d"); !ok || d != 30*24*time.Hour {
		t.Fatalf("Window(30d) = %v, %v", d, ok)
	}
	if _, ok := score.Window("1y"); ok {
		t.Fatal("Window(1y) should be rejected")
	}
}
