package domain

import (
	"context"
	"time"
)

// ListingSummary is one candidate returned by the provider's text search.
type ListingSummary struct {
	ExternalID       string
	Name             string
	FormattedAddress string
	Rating           float64
	ReviewCount      int
}

type ListingReview struct {
	ExternalID  string
	Author      string
	Rating      float64
	Text        string
	Language    string
	PublishedAt time.Time
}

// ListingDetails is the full listing payload used during sync: the aggregate
// rating plus a bounded list of individual reviews.
type ListingDetails struct {
	ListingSummary
	Reviews []ListingReview
}

// ListingProvider abstracts the external ratings provider.
//
// Search fails with ErrNotConfigured when no credentials are present and with
// *ProviderError for error statuses other than "no results". FetchDetails
// returns (nil, nil) when the listing no longer exists upstream.
type ListingProvider interface {
	Search(ctx context.Context, name, city, country string) ([]ListingSummary, error)
	FetchDetails(ctx context.Context, externalID string) (*ListingDetails, error)
}

type RatingsRepository interface {
	// Hotels & links
	GetHotel(ctx context.Context, id int64) (Hotel, error)
	UpsertLink(ctx context.Context, l ReviewSourceLink) error
	Links(ctx context.Context, hotelID int64) ([]ReviewSourceLink, error)
	UpdateLinkSync(ctx context.Context, l ReviewSourceLink) error

	// Due selection: hotel ids with at least one due linked source, oldest
	// lastSyncAt first, capped at limit.
	DueHotels(ctx context.Context, now time.Time, limit int) ([]int64, error)

	// Sync write paths
	UpsertSnapshot(ctx context.Context, s RatingSnapshot) error
	UpsertReviews(ctx context.Context, rs []ReviewRecord) error

	// Score time series
	InsertScore(ctx context.Context, s ScoreRecord) error
	LatestScore(ctx context.Context, hotelID int64) (*ScoreRecord, error)
	ScoresSince(ctx context.Context, hotelID int64, since time.Time) ([]ScoreRecord, error)
	LatestSnapshots(ctx context.Context, hotelID int64) ([]RatingSnapshot, error)
	ReviewsSince(ctx context.Context, hotelID int64, since time.Time) ([]ReviewRecord, error)

	// Job bookkeeping
	CreateJob(ctx context.Context, j SyncJob) error
	FinishJob(ctx context.Context, j SyncJob) error
	InsertSyncError(ctx context.Context, e SyncError) error
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}
