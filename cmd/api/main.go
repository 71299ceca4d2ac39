package main

import (
	"database/sql"
	"net/http"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	server "eywa/internal/adapters/http_server"
	"eywa/internal/adapters/observability"
	"eywa/internal/adapters/places"
	redisad "eywa/internal/adapters/redis"
	"eywa/internal/app"
	"eywa/internal/match"
	"eywa/internal/shared"
	mysqlrepo "eywa/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	observability.Serve()

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// deps
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
	linkSvc := app.NewLinkService(repo, match.NewResolver(provider), syncSvc)
	q := app.NewQueryService(repo, cache, cfg.CacheTTL)

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Q: q, L: linkSvc, S: syncSvc})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
