// Package match ranks external listings against a hotel record and decides
// whether the best candidate is safe to auto-link.
package match

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"eywa/internal/domain"
	"eywa/internal/similarity"
)

// The two tunable levers of matching: candidates below MinConfidenceThreshold
// are dropped, candidates at or above AutoLinkThreshold may be linked without
// human review.
const (
	MinConfidenceThreshold = 0.50
	AutoLinkThreshold      = 0.85
)

// Confidence formula weights.
const (
	nameWeight       = 0.65
	addressWeight    = 0.25
	ratingBonus      = 0.05
	reviewBonusCap   = 0.05
	reviewBonusScale = 2000.0
)

type Breakdown struct {
	NameScore        float64 `json:"nameScore"`
	AddressScore     float64 `json:"addressScore"`
	HasRating        bool    `json:"hasRating"`
	ReviewCountBonus float64 `json:"reviewCountBonus"`
}

// Candidate is computed fresh on every resolution request, never persisted.
type Candidate struct {
	ExternalID  string    `json:"externalId"`
	Name        string    `json:"name"`
	Address     string    `json:"address"`
	Rating      float64   `json:"rating,omitempty"`
	ReviewCount int       `json:"reviewCount,omitempty"`
	Confidence  float64   `json:"confidence"`
	Breakdown   Breakdown `json:"breakdown"`
}

type Result struct {
	BestMatch    *Candidate  `json:"bestMatch"`
	AllMatches   []Candidate `json:"allMatches"`
	AutoLinkable bool        `json:"autoLinkable"`
	SearchQuery  string      `json:"searchQuery"`
}

// Why a search came back empty. Flattened out of the public contract but kept
// diagnosable in logs.
type searchReason string

const (
	reasonOK                  searchReason = "ok"
	reasonNoResults           searchReason = "no_results"
	reasonProviderUnavailable searchReason = "provider_unavailable"
	reasonProviderError       searchReason = "provider_error"
)

type Resolver struct {
	provider domain.ListingProvider
}

func NewResolver(p domain.ListingProvider) *Resolver { return &Resolver{provider: p} }

// Resolve searches the provider for the hotel and ranks every candidate by
// confidence. It never returns an error: provider failures degrade to an
// empty result, because a matching failure must not abort the caller's
// linking workflow.
func (r *Resolver) Resolve(ctx context.Context, h domain.Hotel) Result {
	query := buildQuery(h)
	listings, reason := r.search(ctx, h)
	if reason != reasonOK {
		log.Warn().
			Int64("hotel_id", h.ID).
			Str("query", query).
			Str("reason", string(reason)).
			Msg("listing search degraded to empty result")
	}

	candidates := make([]Candidate, 0, len(listings))
	for _, l := range listings {
		candidates = append(candidates, scoreCandidate(h, l))
	}
	// Stable: equal confidence keeps provider order, no extra tie-break.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
	kept := candidates[:0]
	for _, c := range candidates {
		if c.Confidence >= MinConfidenceThreshold {
			kept = append(kept, c)
		}
	}

	res := Result{AllMatches: kept, SearchQuery: query}
	if len(kept) > 0 {
		best := kept[0]
		res.BestMatch = &best
		res.AutoLinkable = IsAutoLinkable(best.Confidence)
	}
	return res
}

func (r *Resolver) search(ctx context.Context, h domain.Hotel) ([]domain.ListingSummary, searchReason) {
	listings, err := r.provider.Search(ctx, h.Name, h.City, h.Country)
	if err != nil {
		if errors.Is(err, domain.ErrNotConfigured) {
			return nil, reasonProviderUnavailable
		}
		var pe *domain.ProviderError
		if errors.As(err, &pe) {
			return nil, reasonProviderError
		}
		return nil, reasonProviderError
	}
	if len(listings) == 0 {
		return nil, reasonNoResults
	}
	return listings, reasonOK
}

// IsAutoLinkable reports whether a confidence clears the auto-link bar.
func IsAutoLinkable(confidence float64) bool { return confidence >= AutoLinkThreshold }

// FormatConfidence renders a confidence as a whole percent, e.g. 0.333 -> "33%".
func FormatConfidence(confidence float64) string {
	return fmt.Sprintf("%d%%", int(math.Round(confidence*100)))
}

func buildQuery(h domain.Hotel) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{h.Name, h.City, h.Country} {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

func scoreCandidate(h domain.Hotel, l domain.ListingSummary) Candidate {
	ns := nameScore(h.Name, l.Name)
	as := addressScore(h, l.FormattedAddress)

	bonus := math.Min(reviewBonusCap, float64(l.ReviewCount)/reviewBonusScale)
	conf := ns*nameWeight + as*addressWeight + bonus
	if l.Rating > 0 {
		conf += ratingBonus
	}
	conf = math.Min(1.0, conf)

	return Candidate{
		ExternalID:  l.ExternalID,
		Name:        l.Name,
		Address:     l.FormattedAddress,
		Rating:      l.Rating,
		ReviewCount: l.ReviewCount,
		Confidence:  conf,
		Breakdown: Breakdown{
			NameScore:        ns,
			AddressScore:     as,
			HasRating:        l.Rating > 0,
			ReviewCountBonus: bonus,
		},
	}
}

// nameScore: 1.0 on exact normalized equality; 0.8..0.95 when one name
// contains the other, scaled by length ratio; otherwise a 0.6/0.4 blend of
// keyword Jaccard and Levenshtein ratio.
func nameScore(a, b string) float64 {
	na, nb := similarity.Normalize(a), similarity.Normalize(b)
	if na == nb {
		return 1.0
	}
	if na != "" && nb != "" && (strings.Contains(na, nb) || strings.Contains(nb, na)) {
		shorter, longer := float64(len(na)), float64(len(nb))
		if shorter > longer {
			shorter, longer = longer, shorter
		}
		return 0.8 + 0.15*(shorter/longer)
	}
	return 0.6*similarity.Jaccard(similarity.Keywords(a), similarity.Keywords(b)) +
		0.4*similarity.LevenshteinRatio(na, nb)
}

// addressScore builds additively toward 1.0: city and country presence in the
// candidate's formatted address, a matching leading street number, and word
// overlap between the two addresses. Without a hotel address, a flat 0.2
// substitutes for the number and overlap terms.
func addressScore(h domain.Hotel, formatted string) float64 {
	addr := similarity.Normalize(formatted)
	var s float64
	if city := similarity.Normalize(h.City); city != "" && strings.Contains(addr, city) {
		s += 0.4
	}
	if country := similarity.Normalize(h.Country); country != "" && strings.Contains(addr, country) {
		s += 0.2
	}
	if h.Address != nil && strings.TrimSpace(*h.Address) != "" {
		own := similarity.Normalize(*h.Address)
		if n := leadingNumber(own); n != "" && n == leadingNumber(addr) {
			s += 0.2
		}
		s += 0.2 * similarity.Jaccard(longWords(own), longWords(addr))
	} else {
		s += 0.2
	}
	return math.Min(1.0, s)
}

// leadingNumber returns the first token when it is purely numeric.
func leadingNumber(normalized string) string {
	tok, _, _ := strings.Cut(normalized, " ")
	if tok == "" {
		return ""
	}
	for _, r := range tok {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return tok
}

func longWords(normalized string) []string {
	var out []string
	for _, w := range strings.Fields(normalized) {
		if len(w) > 2 {
			out = append(out, w)
		}
	}
	return out
}
