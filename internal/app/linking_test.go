package app_test

import (
	"context"
	"testing"

	"eywa/internal/app"
	"eywa/internal/domain"
	"eywa/internal/match"
)

func TestResolveHotel_UnknownHotel(t *testing.T) {
	repo := newFakeRepo()
	svc := app.NewLinkService(repo, match.NewResolver(&fakeProvider{}), newSyncService(repo, &fakeProvider{}))
	if _, err := svc.ResolveHotel(context.Background(), 999); err == nil {
		t.Fatal("expected error for unknown hotel")
	}
}

func TestLinkHotel_FirstSyncComputesFirstScore(t *testing.T) {
	repo := newFakeRepo()
	repo.hotels[1] = domain.Hotel{ID: 1, Name: "Grand Hotel Paris", City: "Paris", Country: "France"}
	p := &fakeProvider{details: map[string]*domain.ListingDetails{
		"g1": details("g1", 4.5, 200),
	}}
	sync := newSyncService(repo, p)
	svc := app.NewLinkService(repo, match.NewResolver(p), sync)

	if err := svc.LinkHotel(context.Background(), 1, domain.SourceGoogle, "g1", "Grand Hotel Paris", true); err != nil {
		t.Fatalf("LinkHotel: %v", err)
	}

	l := repo.links[linkKey(1, domain.SourceGoogle)]
	if l.ExternalID != "g1" || !l.Verified {
		t.Fatalf("unexpected link: %+v", l)
	}
	if l.LastSyncStatus == nil || *l.LastSyncStatus != domain.SyncStatusSuccess {
		t.Fatalf("first sync did not run: %+v", l)
	}
	if len(repo.scores) != 1 || repo.scores[0].EywaScore != 4.5 {
		t.Fatalf("first score missing: %+v", repo.scores)
	}
	if repo.scores[0].Trend != domain.TrendStable || repo.scores[0].TrendDelta != 0 {
		t.Fatalf("first computation must have no trend: %+v", repo.scores[0])
	}
	// First sync ran outside a job: no SyncError rows even on failure paths.
	if len(repo.syncErrs) != 0 {
		t.Fatalf("unexpected sync errors: %+v", repo.syncErrs)
	}
}

func TestLinkHotel_RequiresExternalID(t *testing.T) {
	repo := newFakeRepo()
	svc := app.NewLinkService(repo, match.NewResolver(&fakeProvider{}), newSyncService(repo, &fakeProvider{}))
	if err := svc.LinkHotel(context.Background(), 1, domain.SourceGoogle, "", "x", false); err == nil {
		t.Fatal("expected error for empty external id")
	}
}
