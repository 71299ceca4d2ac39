package main

import (
	"context"
	"database/sql"
	"errors"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"eywa/internal/adapters/observability"
	"eywa/internal/adapters/places"
	redisad "eywa/internal/adapters/redis"
	"eywa/internal/app"
	"eywa/internal/domain"
	"eywa/internal/scheduler"
	"eywa/internal/shared"
	mysqlrepo "eywa/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	log.Info().
		Str("base", cfg.PlacesBase).
		Str("cron", cfg.SyncCronSchedule).
		Int("max_hotels", cfg.SyncMaxHotels).
		Msg("syncd starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db, mysqlrepo.Policy{
		MaxErrors:  cfg.SyncMaxErrors,
		DeadLetter: cfg.SyncDeadLetter,
	})
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	provider := places.New(cfg.PlacesBase, cfg.PlacesKey, cfg.PlacesRPS)

	syncSvc := app.NewSyncService(repo, provider, cache, app.SyncConfig{
		Interval:          cfg.SyncInterval,
		BackoffMultiplier: cfg.SyncBackoffMult,
		MaxHotels:         cfg.SyncMaxHotels,
		HotelDelay:        cfg.SyncHotelDelay,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	triggers := scheduler.NewRegistry()
	err = triggers.Register("scheduled-sync", cfg.SyncCronSchedule, func() {
		res, err := syncSvc.RunSyncJob(ctx, app.SyncRequest{
			JobType:     domain.JobTypeScheduled,
			TriggeredBy: "scheduler",
		})
		if err != nil {
			if errors.Is(err, domain.ErrSyncInProgress) {
				log.Warn().Msg("scheduled sync skipped: previous run still in progress")
				return
			}
			log.Error().Err(err).Msg("scheduled sync failed")
			return
		}
		log.Info().
			Str("job_id", res.JobID).
			Str("status", string(res.Status)).
			Int("total", res.HotelsTotal).
			Msg("scheduled sync finished")
	})
	if err != nil {
		log.Fatal().Err(err).Msg("register scheduled sync failed")
	}

	<-ctx.Done()
	log.Info().Msg("shutting down")
	triggers.StopAll()
}
