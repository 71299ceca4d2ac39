package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"eywa/internal/adapters/observability"
	"eywa/internal/domain"
	"eywa/internal/score"
)

// SyncConfig carries the tunable levers of the sync policy.
type SyncConfig struct {
	Interval          time.Duration // normal refresh spacing (nextSyncAt advance)
	BackoffMultiplier int           // nextSyncAt spacing after a failure
	MaxHotels         int           // cap per run without explicit ids
	HotelDelay        time.Duration // throttle between hotels
}

func (c *SyncConfig) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = 24 * time.Hour
	}
	if c.BackoffMultiplier <= 0 {
		c.BackoffMultiplier = 2
	}
	if c.MaxHotels <= 0 {
		c.MaxHotels = 100
	}
}

type SyncRequest struct {
	TriggeredBy string
	JobType     domain.JobType
	HotelIDs    []int64
}

type SyncResult struct {
	JobID         string             `json:"jobId"`
	Status        domain.JobStatus   `json:"status"`
	HotelsTotal   int                `json:"hotelsTotal"`
	HotelsSuccess int                `json:"hotelsSuccess"`
	HotelsFailed  int                `json:"hotelsFailed"`
	Duration      time.Duration      `json:"duration"`
	Errors        []domain.SyncError `json:"errors"`
}

// SyncService drives one run of syncing N hotels: due selection, sequential
// per-hotel/per-source fetching, link bookkeeping, snapshot/review upserts and
// best-effort score recomputation.
type SyncService struct {
	repo     domain.RatingsRepository
	provider domain.ListingProvider
	cache    domain.Cache
	cfg      SyncConfig

	// Weight-1 guard: overlapping runs (scheduled vs manual) fail fast with
	// ErrSyncInProgress instead of interleaving writes.
	running *semaphore.Weighted

	now func() time.Time
}

func NewSyncService(repo domain.RatingsRepository, provider domain.ListingProvider, cache domain.Cache, cfg SyncConfig) *SyncService {
	cfg.applyDefaults()
	return &SyncService{
		repo:     repo,
		provider: provider,
		cache:    cache,
		cfg:      cfg,
		running:  semaphore.NewWeighted(1),
		now:      time.Now,
	}
}

// RunSyncJob executes one sync job and always returns a structured result.
// The only errors it returns are ErrSyncInProgress and job-level failures
// (due selection or job bookkeeping); per-hotel failures are folded into the
// result counts.
func (s *SyncService) RunSyncJob(ctx context.Context, req SyncRequest) (SyncResult, error) {
	if !s.running.TryAcquire(1) {
		return SyncResult{}, domain.ErrSyncInProgress
	}
	defer s.running.Release(1)

	start := s.now()
	if req.JobType == "" {
		req.JobType = domain.JobTypeManual
	}
	job := domain.SyncJob{
		ID:          uuid.NewString(),
		JobType:     req.JobType,
		Status:      domain.JobStatusRunning,
		TriggeredBy: req.TriggeredBy,
		StartedAt:   start,
	}
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return SyncResult{}, fmt.Errorf("create sync job: %w", err)
	}

	result := SyncResult{JobID: job.ID}
	log.Info().
		Str("job_id", job.ID).
		Str("job_type", string(job.JobType)).
		Str("triggered_by", job.TriggeredBy).
		Msg("sync job started")

	hotelIDs := req.HotelIDs
	if len(hotelIDs) == 0 {
		ids, err := s.repo.DueHotels(ctx, start, s.cfg.MaxHotels)
		if err != nil {
			// Job-level failure: persist what we have, then surface the error.
			s.finishJob(ctx, job, &result, start, err)
			return result, fmt.Errorf("select due hotels: %w", err)
		}
		hotelIDs = ids
	}
	result.HotelsTotal = len(hotelIDs)

	for i, id := range hotelIDs {
		if i > 0 && s.cfg.HotelDelay > 0 {
			if !sleepCtx(ctx, s.cfg.HotelDelay) {
				s.finishJob(ctx, job, &result, start, ctx.Err())
				return result, ctx.Err()
			}
		}
		ok, errs := s.SyncHotel(ctx, job.ID, id)
		result.Errors = append(result.Errors, errs...)
		if ok {
			result.HotelsSuccess++
			observability.ObserveSyncHotel("success")
		} else {
			result.HotelsFailed++
			observability.ObserveSyncHotel("failed")
		}
	}

	s.finishJob(ctx, job, &result, start, nil)
	log.Info().
		Str("job_id", job.ID).
		Str("status", string(result.Status)).
		Int("total", result.HotelsTotal).
		Int("success", result.HotelsSuccess).
		Int("failed", result.HotelsFailed).
		Dur("duration", result.Duration).
		Msg("sync job finished")
	return result, nil
}

func (s *SyncService) finishJob(ctx context.Context, job domain.SyncJob, result *SyncResult, start time.Time, jobErr error) {
	done := s.now()
	result.Duration = done.Sub(start)

	switch {
	case jobErr != nil:
		result.Status = domain.JobStatusFailed
	case result.HotelsFailed == 0:
		result.Status = domain.JobStatusCompleted
	case result.HotelsSuccess == 0:
		result.Status = domain.JobStatusFailed
	default:
		result.Status = domain.JobStatusPartial
	}

	job.Status = result.Status
	job.CompletedAt = &done
	job.HotelsTotal = result.HotelsTotal
	job.HotelsSuccess = result.HotelsSuccess
	job.HotelsFailed = result.HotelsFailed
	if jobErr != nil {
		msg := jobErr.Error()
		job.ErrorMessage = &msg
	}
	if err := s.repo.FinishJob(ctx, job); err != nil {
		log.Error().Err(err).Str("job_id", job.ID).Msg("finalize sync job failed")
	}
	observability.ObserveSyncJob(string(job.JobType), string(job.Status), result.Duration)
}

// SyncHotel syncs every supported linked source of one hotel. A hotel counts
// as success only when at least one source synced and zero sources errored.
// With an empty jobID (linking workflow's immediate first sync) errors are
// returned but not persisted as SyncError rows.
func (s *SyncService) SyncHotel(ctx context.Context, jobID string, hotelID int64) (bool, []domain.SyncError) {
	links, err := s.repo.Links(ctx, hotelID)
	if err != nil {
		log.Error().Err(err).Int64("hotel_id", hotelID).Msg("load source links failed")
		return false, []domain.SyncError{{
			JobID:        jobID,
			HotelID:      hotelID,
			ErrorType:    "storage",
			ErrorMessage: err.Error(),
			CreatedAt:    s.now(),
		}}
	}

	var (
		synced int
		errs   []domain.SyncError
	)
	for _, link := range links {
		if !domain.SupportedSources[link.Source] {
			// Not an error: providers without a sync path are skipped.
			continue
		}
		if err := s.syncSource(ctx, link); err != nil {
			se := domain.SyncError{
				JobID:        jobID,
				HotelID:      hotelID,
				Source:       link.Source,
				ErrorType:    classifyError(err),
				ErrorMessage: err.Error(),
				CreatedAt:    s.now(),
			}
			if jobID != "" {
				if ierr := s.repo.InsertSyncError(ctx, se); ierr != nil {
					log.Error().Err(ierr).Str("job_id", jobID).Msg("record sync error failed")
				}
			}
			observability.ObserveSyncError(string(link.Source), se.ErrorType)
			errs = append(errs, se)
			continue
		}
		synced++
	}

	if synced > 0 {
		// Best-effort: a scoring failure is logged and never flips the
		// hotel's sync outcome.
		s.recomputeScore(ctx, hotelID)
	}
	return synced > 0 && len(errs) == 0, errs
}

func (s *SyncService) syncSource(ctx context.Context, link domain.ReviewSourceLink) error {
	details, err := s.provider.FetchDetails(ctx, link.ExternalID)
	if err != nil {
		s.markLinkFailed(ctx, link, err.Error())
		return err
	}
	if details == nil {
		err := errors.New("place not found")
		s.markLinkFailed(ctx, link, err.Error())
		return err
	}

	now := s.now()
	if err := s.repo.UpsertSnapshot(ctx, domain.RatingSnapshot{
		HotelID:     link.HotelID,
		Source:      link.Source,
		Rating:      details.Rating,
		ReviewCount: details.ReviewCount,
		FetchedAt:   now,
	}); err != nil {
		s.markLinkFailed(ctx, link, err.Error())
		return fmt.Errorf("upsert snapshot: %w", err)
	}

	if len(details.Reviews) > 0 {
		reviews := make([]domain.ReviewRecord, 0, len(details.Reviews))
		for _, rv := range details.Reviews {
			reviews = append(reviews, domain.ReviewRecord{
				HotelID:          link.HotelID,
				Source:           link.Source,
				ExternalReviewID: rv.ExternalID,
				Author:           ptrStr(rv.Author),
				Rating:           rv.Rating,
				Text:             ptrStr(rv.Text),
				Language:         ptrStr(rv.Language),
				PublishedAt:      rv.PublishedAt,
				FetchedAt:        now,
			})
		}
		if err := s.repo.UpsertReviews(ctx, reviews); err != nil {
			s.markLinkFailed(ctx, link, err.Error())
			return fmt.Errorf("upsert reviews: %w", err)
		}
	}

	next := now.Add(s.cfg.Interval)
	status := domain.SyncStatusSuccess
	link.LastSyncAt = &now
	link.LastSyncStatus = &status
	link.SyncErrorMessage = nil
	link.SyncErrorCount = 0
	link.NextSyncAt = &next
	if err := s.repo.UpdateLinkSync(ctx, link); err != nil {
		return fmt.Errorf("update source link: %w", err)
	}
	return nil
}

// markLinkFailed records the failed attempt on the link: status, message,
// incremented strike count and a backed-off nextSyncAt.
func (s *SyncService) markLinkFailed(ctx context.Context, link domain.ReviewSourceLink, msg string) {
	now := s.now()
	next := now.Add(s.cfg.Interval * time.Duration(s.cfg.BackoffMultiplier))
	status := domain.SyncStatusFailed
	link.LastSyncAt = &now
	link.LastSyncStatus = &status
	link.SyncErrorMessage = &msg
	link.SyncErrorCount++
	link.NextSyncAt = &next
	if err := s.repo.UpdateLinkSync(ctx, link); err != nil {
		log.Error().Err(err).
			Int64("hotel_id", link.HotelID).
			Str("source", string(link.Source)).
			Msg("update source link after failure failed")
	}
}

func (s *SyncService) recomputeScore(ctx context.Context, hotelID int64) {
	snaps, err := s.repo.LatestSnapshots(ctx, hotelID)
	if err != nil {
		log.Error().Err(err).Int64("hotel_id", hotelID).Msg("load snapshots for scoring failed")
		return
	}
	sources := make([]domain.RatingSource, 0, len(snaps))
	for _, sn := range snaps {
		sources = append(sources, domain.RatingSource{
			Source:      sn.Source,
			Rating:      sn.Rating,
			ReviewCount: sn.ReviewCount,
		})
	}
	agg, ok := score.Compute(sources)
	if !ok {
		return
	}

	var prevScore *float64
	prev, err := s.repo.LatestScore(ctx, hotelID)
	if err != nil {
		log.Error().Err(err).Int64("hotel_id", hotelID).Msg("load previous score failed")
		return
	}
	if prev != nil {
		prevScore = &prev.EywaScore
	}
	trend, delta := score.Trend(agg.EywaScore, prevScore)

	rec := domain.ScoreRecord{
		HotelID:    hotelID,
		EywaScore:  agg.EywaScore,
		PerSource:  agg.PerSource,
		Trend:      trend,
		TrendDelta: delta,
		ComputedAt: s.now(),
	}
	if err := s.repo.InsertScore(ctx, rec); err != nil {
		log.Error().Err(err).Int64("hotel_id", hotelID).Msg("insert score failed")
		return
	}
	s.invalidateScoreCaches(ctx, hotelID)
}

func (s *SyncService) invalidateScoreCaches(ctx context.Context, hotelID int64) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, scoreKey(hotelID))
	for _, period := range []string{"7d", "30d", "90d"} {
		_ = s.cache.Del(ctx, trendKey(hotelID, period))
	}
}

func classifyError(err error) string {
	var pe *domain.ProviderError
	switch {
	case errors.Is(err, domain.ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &pe):
		return "provider"
	case err != nil && err.Error() == "place not found":
		return "not_found"
	default:
		return "provider"
	}
}

func ptrStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// sleepCtx pauses for d or returns false if ctx is done first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
