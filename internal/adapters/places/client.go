package places

import (
	"context"
	crand "crypto/rand"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"eywa/internal/adapters/observability"
	"eywa/internal/domain"
)

const (
	statusOK          = "OK"
	statusZeroResults = "ZERO_RESULTS"
	statusNotFound    = "NOT_FOUND"
)

// Client talks to a Places-style listing API (text search + details) with
// client-side rate limiting and retries.
type Client struct {
	base string
	hc   *http.Client
	key  string
	rl   *rate.Limiter
}

// New builds a client. An empty key is allowed: every call then fails with
// domain.ErrNotConfigured, which the resolver and orchestrator handle.
func New(base, key string, rps int) *Client {
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		hc:   &http.Client{Timeout: 20 * time.Second},
		key:  key,
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
	}
}

type listingPayload struct {
	PlaceID          string          `json:"place_id"`
	Name             string          `json:"name"`
	FormattedAddress string          `json:"formatted_address"`
	Rating           any             `json:"rating"`
	UserRatingsTotal int             `json:"user_ratings_total"`
	Reviews          []reviewPayload `json:"reviews"`
}

type reviewPayload struct {
	AuthorName string `json:"author_name"`
	Rating     any    `json:"rating"`
	Text       string `json:"text"`
	Language   string `json:"language"`
	Time       int64  `json:"time"`
}

type searchResponse struct {
	Status  string           `json:"status"`
	Results []listingPayload `json:"results"`
}

type detailsResponse struct {
	Status string          `json:"status"`
	Result *listingPayload `json:"result"`
}

// Search runs a text search for name+city+country. ZERO_RESULTS is a valid
// empty answer; any other non-OK status becomes a *domain.ProviderError.
func (c *Client) Search(ctx context.Context, name, city, country string) ([]domain.ListingSummary, error) {
	if c.key == "" {
		return nil, domain.ErrNotConfigured
	}
	query := strings.TrimSpace(strings.Join(nonEmpty(name, city, country), " "))
	u := fmt.Sprintf("%s/textsearch/json?query=%s&key=%s",
		c.base, url.QueryEscape(query), url.QueryEscape(c.key))

	var resp searchResponse
	if err := c.get(ctx, "textsearch", u, &resp); err != nil {
		return nil, err
	}
	switch resp.Status {
	case statusOK:
	case statusZeroResults:
		return nil, nil
	default:
		return nil, &domain.ProviderError{Status: resp.Status}
	}

	out := make([]domain.ListingSummary, 0, len(resp.Results))
	for _, p := range resp.Results {
		out = append(out, summaryFrom(p))
	}
	return out, nil
}

// FetchDetails returns the full listing or (nil, nil) when the listing no
// longer exists upstream.
func (c *Client) FetchDetails(ctx context.Context, externalID string) (*domain.ListingDetails, error) {
	if c.key == "" {
		return nil, domain.ErrNotConfigured
	}
	u := fmt.Sprintf("%s/details/json?place_id=%s&key=%s",
		c.base, url.QueryEscape(externalID), url.QueryEscape(c.key))

	var resp detailsResponse
	if err := c.get(ctx, "details", u, &resp); err != nil {
		return nil, err
	}
	switch resp.Status {
	case statusOK:
	case statusNotFound, statusZeroResults:
		return nil, nil
	default:
		return nil, &domain.ProviderError{Status: resp.Status}
	}
	if resp.Result == nil {
		return nil, nil
	}

	d := &domain.ListingDetails{ListingSummary: summaryFrom(*resp.Result)}
	for _, rv := range resp.Result.Reviews {
		published := time.Unix(rv.Time, 0).UTC()
		d.Reviews = append(d.Reviews, domain.ListingReview{
			ExternalID:  reviewID(resp.Result.PlaceID, rv.AuthorName, rv.Time),
			Author:      rv.AuthorName,
			Rating:      floatFrom(rv.Rating),
			Text:        rv.Text,
			Language:    rv.Language,
			PublishedAt: published,
		})
	}
	return d, nil
}

func summaryFrom(p listingPayload) domain.ListingSummary {
	return domain.ListingSummary{
		ExternalID:       p.PlaceID,
		Name:             p.Name,
		FormattedAddress: p.FormattedAddress,
		Rating:           floatFrom(p.Rating),
		ReviewCount:      p.UserRatingsTotal,
	}
}

// The provider exposes no review ids, so derive a stable one: re-syncs must
// upsert the same row.
func reviewID(placeID, author string, published int64) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%s|%s|%d", placeID, author, published)))
	return hex.EncodeToString(sum[:8])
}

// floatFrom tolerates numbers serialized as float, int or string ("4,5").
func floatFrom(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(n, ",", "."))
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return 0
}

func nonEmpty(parts ...string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// get performs a GET with rate limiting, retries on 429/transient 5xx
// honoring Retry-After, and a JSON decode into out.
func (c *Client) get(ctx context.Context, endpoint, u string, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	start := time.Now()
	var lastErr error
	for i := 0; i < 4; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "eywa/1.0")

		resp, err := c.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}

		switch resp.StatusCode {
		case http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			observability.ObserveExternal("places", endpoint, resp.StatusCode, time.Since(start))
			return err

		case http.StatusNotFound:
			resp.Body.Close()
			observability.ObserveExternal("places", endpoint, resp.StatusCode, time.Since(start))
			return domain.ErrNotFound

		case http.StatusUnauthorized, http.StatusForbidden:
			resp.Body.Close()
			observability.ObserveExternal("places", endpoint, resp.StatusCode, time.Since(start))
			return &domain.ProviderError{Status: http.StatusText(resp.StatusCode)}

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			observability.ObserveExternal("places", endpoint, resp.StatusCode, time.Since(start))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			observability.ObserveExternal("places", endpoint, resp.StatusCode, time.Since(start))
			return fmt.Errorf("bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}

	return lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After (seconds or HTTP-date). 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff doubles each attempt (200ms, 400ms, 800ms...) with up to +50%
// crypto/rand jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	j := time.Duration(0.5 * f * float64(base))
	return base + j
}
