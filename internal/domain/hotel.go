package domain

import "time"

// Source identifies an external ratings provider.
type Source string

const (
	SourceGoogle      Source = "google"
	SourceTripadvisor Source = "tripadvisor"
)

// SupportedSources are the providers the sync path can actually fetch from.
// Tripadvisor links may exist but are skipped during sync.
var SupportedSources = map[Source]bool{
	SourceGoogle: true,
}

type Hotel struct {
	ID      int64
	Name    string
	Address *string
	City    string
	Country string
}

type SyncStatus string

const (
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusFailed  SyncStatus = "failed"
)

// ReviewSourceLink is one (hotel, source) association with an external listing.
// Created by the linking workflow, mutated by every sync attempt.
type ReviewSourceLink struct {
	HotelID          int64
	Source           Source
	ExternalID       string
	Name             string
	Verified         bool
	LastSyncAt       *time.Time
	LastSyncStatus   *SyncStatus
	SyncErrorMessage *string
	SyncErrorCount   int
	NextSyncAt       *time.Time
}

// RatingSnapshot is the per-day rating observation for one (hotel, source).
// At most one logical row per (hotel, source, day); later syncs upsert it.
type RatingSnapshot struct {
	HotelID     int64
	Source      Source
	Rating      float64
	ReviewCount int
	FetchedAt   time.Time
}

type ReviewRecord struct {
	HotelID          int64
	Source           Source
	ExternalReviewID string
	Author           *string
	Rating           float64
	Text             *string
	Language         *string
	PublishedAt      time.Time
	FetchedAt        time.Time
}
