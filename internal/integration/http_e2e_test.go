//go:build integration || !unit

package integration

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"eywa/internal/adapters/http_server"
	redisad "eywa/internal/adapters/redis"
	"eywa/internal/app"
	"eywa/internal/domain"
	"eywa/internal/match"
	mysqlrepo "eywa/internal/storage/mysql"
)

// ---------- helpers ----------
func mustEnv(t *testing.T, k string) string {
	t.Helper()
	v := os.Getenv(k)
	if v == "" {
		t.Fatalf("%s not set; export it (e.g. MIGRATIONS_DIR=/path/to/sql)", k)
	}
	return v
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := mustEnv(t, "MIGRATIONS_DIR")

	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		t.Fatalf("MIGRATIONS_DIR=%s is not a directory or missing", dir)
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)
	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

// stubProvider serves canned listing data in place of the real Places client.
type stubProvider struct {
	listings []domain.ListingSummary
	details  map[string]*domain.ListingDetails
}

func (p *stubProvider) Search(ctx context.Context, name, city, country string) ([]domain.ListingSummary, error) {
	return p.listings, nil
}

func (p *stubProvider) FetchDetails(ctx context.Context, externalID string) (*domain.ListingDetails, error) {
	return p.details[externalID], nil
}

// ---------- the test ----------
func TestHTTP_EndToEnd_LinkSyncScore(t *testing.T) {
	// Start isolated MySQL container
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}
	runOpts := &dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=eywa",
		},
	}
	resource, err := pool.RunWithOptions(runOpts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	hostPort := resource.GetPort("3306/tcp")
	dsn := fmt.Sprintf("root:%s@tcp(127.0.0.1:%s)/%s?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC",
		"root", hostPort, "eywa")

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	// Apply your real migrations
	applyMigrations(t, db)

	repo := mysqlrepo.New(db, mysqlrepo.Policy{})
	ctx := context.Background()

	hotelID := int64(30001)
	if _, err := db.Exec(
		`INSERT INTO hotels (id, name, address, city, country) VALUES (?, ?, ?, ?, ?)`,
		hotelID, "Grand Plaza Hotel", "15 Harbour Road", "Lisbon", "Portugal"); err != nil {
		t.Fatalf("seed hotel: %v", err)
	}

	provider := &stubProvider{
		listings: []domain.ListingSummary{{
			ExternalID:       "place-grand",
			Name:             "Grand Plaza Hotel",
			FormattedAddress: "15 Harbour Road, Lisbon, Portugal",
			Rating:           4.4,
			ReviewCount:      900,
		}},
		details: map[string]*domain.ListingDetails{
			"place-grand": {
				ListingSummary: domain.ListingSummary{
					ExternalID:  "place-grand",
					Name:        "Grand Plaza Hotel",
					Rating:      4.4,
					ReviewCount: 900,
				},
				Reviews: []domain.ListingReview{{
					ExternalID:  "rv-1",
					Author:      "Ana",
					Rating:      5,
					Text:        "Great stay.",
					Language:    "en",
					PublishedAt: time.Now().UTC().Add(-48 * time.Hour),
				}},
			},
		},
	}

	mr := miniredis.RunT(t)
	cache := redisad.New(mr.Addr(), "", 0)

	syncSvc := app.NewSyncService(repo, provider, cache, app.SyncConfig{})
	linkSvc := app.NewLinkService(repo, match.NewResolver(provider), syncSvc)
	querySvc := app.NewQueryService(repo, cache, time.Minute)

	srv := httpserver.New()
	srv.MountHandlers(&httpserver.Handlers{Q: querySvc, L: linkSvc, S: syncSvc})
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	// Resolve: the stub listing must rank as an auto-linkable best match.
	res, err := http.Post(fmt.Sprintf("%s/v1/hotels/%d/match", ts.URL, hotelID), "application/json", nil)
	if err != nil {
		t.Fatalf("POST match: %v", err)
	}
	var matchBody struct {
		BestMatch    *struct{ ExternalID string } `json:"bestMatch"`
		AutoLinkable bool                         `json:"autoLinkable"`
	}
	if err := json.NewDecoder(res.Body).Decode(&matchBody); err != nil {
		t.Fatalf("decode match: %v", err)
	}
	res.Body.Close()
	if matchBody.BestMatch == nil || matchBody.BestMatch.ExternalID != "place-grand" || !matchBody.AutoLinkable {
		t.Fatalf("unexpected match result: %+v", matchBody)
	}

	// Link: runs the first sync and computes the first score.
	linkPayload := []byte(`{"source":"google","externalId":"place-grand","name":"Grand Plaza Hotel","verified":true}`)
	res, err = http.Post(fmt.Sprintf("%s/v1/hotels/%d/links", ts.URL, hotelID), "application/json", bytes.NewReader(linkPayload))
	if err != nil {
		t.Fatalf("POST links: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("link status %d", res.StatusCode)
	}

	// Score is served with an ETag; a matching If-None-Match short-circuits.
	res, err = http.Get(fmt.Sprintf("%s/v1/hotels/%d/score", ts.URL, hotelID))
	if err != nil {
		t.Fatalf("GET score: %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("score status %d", res.StatusCode)
	}
	etag := res.Header.Get("ETag")
	var scoreBody struct {
		HotelID   int64   `json:"hotelId"`
		EywaScore float64 `json:"eywaScore"`
		Trend     string  `json:"trend"`
	}
	if err := json.NewDecoder(res.Body).Decode(&scoreBody); err != nil {
		t.Fatalf("decode score: %v", err)
	}
	res.Body.Close()
	if scoreBody.HotelID != hotelID || scoreBody.EywaScore != 4.4 || scoreBody.Trend != "stable" {
		t.Fatalf("unexpected score body: %+v", scoreBody)
	}
	if etag == "" {
		t.Fatal("expected an ETag on the score response")
	}

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/v1/hotels/%d/score", ts.URL, hotelID), nil)
	req.Header.Set("If-None-Match", etag)
	res, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET score 304: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", res.StatusCode)
	}

	// A second sync run over the due set: nothing is due right after linking.
	res, err = http.Post(ts.URL+"/v1/sync/jobs", "application/json", bytes.NewReader([]byte(`{"triggeredBy":"e2e"}`)))
	if err != nil {
		t.Fatalf("POST sync: %v", err)
	}
	var syncBody struct {
		Status      string `json:"status"`
		HotelsTotal int    `json:"hotelsTotal"`
	}
	if err := json.NewDecoder(res.Body).Decode(&syncBody); err != nil {
		t.Fatalf("decode sync: %v", err)
	}
	res.Body.Close()
	if syncBody.Status != "completed" || syncBody.HotelsTotal != 0 {
		t.Fatalf("unexpected sync result: %+v", syncBody)
	}

	// Trend over 30 days: a single data point, stable.
	res, err = http.Get(fmt.Sprintf("%s/v1/hotels/%d/score/trend?period=30d", ts.URL, hotelID))
	if err != nil {
		t.Fatalf("GET trend: %v", err)
	}
	var trendBody struct {
		Trend      string `json:"trend"`
		DataPoints int    `json:"dataPoints"`
	}
	if err := json.NewDecoder(res.Body).Decode(&trendBody); err != nil {
		t.Fatalf("decode trend: %v", err)
	}
	res.Body.Close()
	if trendBody.Trend != "stable" || trendBody.DataPoints != 1 {
		t.Fatalf("unexpected trend: %+v", trendBody)
	}
}
