package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"eywa/internal/domain"
	"eywa/internal/match"
)

// LinkService owns the linking workflow: resolving a hotel against external
// listings and confirming a (hotel, source) association. The first sync and
// first score computation of a fresh link happen here.
type LinkService struct {
	repo     domain.RatingsRepository
	resolver *match.Resolver
	sync     *SyncService
}

func NewLinkService(repo domain.RatingsRepository, resolver *match.Resolver, sync *SyncService) *LinkService {
	return &LinkService{repo: repo, resolver: resolver, sync: sync}
}

// ResolveHotel ranks candidate listings for a hotel. Resolution itself never
// fails; only an unknown hotel id is an error.
func (s *LinkService) ResolveHotel(ctx context.Context, hotelID int64) (match.Result, error) {
	h, err := s.repo.GetHotel(ctx, hotelID)
	if err != nil {
		return match.Result{}, fmt.Errorf("load hotel %d: %w", hotelID, err)
	}
	return s.resolver.Resolve(ctx, h), nil
}

// LinkHotel confirms an association between a hotel and an external listing
// (resolver acceptance or manual entry) and runs the link's first sync
// immediately, which also computes the hotel's first Eywa score. A failed
// first sync leaves the link in place with its error bookkeeping set.
func (s *LinkService) LinkHotel(ctx context.Context, hotelID int64, source domain.Source, externalID, name string, verified bool) error {
	if externalID == "" {
		return fmt.Errorf("external id is required")
	}
	now := s.sync.now()
	if err := s.repo.UpsertLink(ctx, domain.ReviewSourceLink{
		HotelID:    hotelID,
		Source:     source,
		ExternalID: externalID,
		Name:       name,
		Verified:   verified,
		NextSyncAt: &now, // due immediately
	}); err != nil {
		return fmt.Errorf("upsert source link: %w", err)
	}

	ok, errs := s.sync.SyncHotel(ctx, "", hotelID)
	if !ok {
		for _, e := range errs {
			log.Warn().
				Int64("hotel_id", hotelID).
				Str("source", string(e.Source)).
				Str("error_type", e.ErrorType).
				Msg("first sync after linking failed")
		}
	}
	return nil
}

// AcceptMatch links the hotel to a resolved candidate, marking it verified
// when the candidate's confidence clears the auto-link bar.
func (s *LinkService) AcceptMatch(ctx context.Context, hotelID int64, source domain.Source, c match.Candidate) error {
	return s.LinkHotel(ctx, hotelID, source, c.ExternalID, c.Name, match.IsAutoLinkable(c.Confidence))
}
