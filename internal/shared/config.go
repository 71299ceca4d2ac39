package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	PlacesBase  string
	PlacesKey   string
	PlacesRPS   int
	CacheTTL    time.Duration

	// Sync tuning. Defaults match the documented policy: 24h refresh, 2x
	// backoff after a failure, 3 strikes before a source is parked, 7-day
	// dead-letter retry, 100 hotels per run.
	SyncInterval     time.Duration
	SyncBackoffMult  int
	SyncMaxErrors    int
	SyncDeadLetter   time.Duration
	SyncMaxHotels    int
	SyncHotelDelay   time.Duration
	SyncCronSchedule string
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/eywa?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:   env("REDIS_ADDR", "localhost:6379"),
		RedisDB:     atoi("REDIS_DB", 0),
		RedisPass:   env("REDIS_PASSWORD", ""),
		PlacesBase:  env("PLACES_BASE_URL", "https://maps.googleapis.com/maps/api/place"),
		PlacesKey:   env("PLACES_API_KEY", ""),
		PlacesRPS:   atoi("PLACES_RPS", 5),
		CacheTTL:    time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,

		SyncInterval:     time.Duration(atoi("SYNC_INTERVAL_HOURS", 24)) * time.Hour,
		SyncBackoffMult:  atoi("SYNC_BACKOFF_MULTIPLIER", 2),
		SyncMaxErrors:    atoi("SYNC_MAX_ERRORS", 3),
		SyncDeadLetter:   time.Duration(atoi("SYNC_DEAD_LETTER_DAYS", 7)) * 24 * time.Hour,
		SyncMaxHotels:    atoi("SYNC_MAX_HOTELS_PER_RUN", 100),
		SyncHotelDelay:   time.Duration(atoi("SYNC_HOTEL_DELAY_MS", 500)) * time.Millisecond,
		SyncCronSchedule: env("SYNC_CRON", "0 3 * * *"),
	}
	if c.PlacesKey == "" {
		log.Warn().Msg("PLACES_API_KEY is empty; listing search and sync will be degraded")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
