package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"eywa/internal/anomaly"
	"eywa/internal/app"
	"eywa/internal/domain"
	"eywa/internal/scheduler"
)

type Handlers struct {
	Q        *app.QueryService
	L        *app.LinkService
	S        *app.SyncService
	Triggers *scheduler.Registry // nil when this process hosts no scheduler
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/v1/hotels/{id}/score", h.getScore)
	s.mux.Get("/v1/hotels/{id}/score/trend", h.getTrend)
	s.mux.Get("/v1/hotels/{id}/alerts", h.getAlerts)
	s.mux.Post("/v1/hotels/{id}/match", h.matchHotel)
	s.mux.Post("/v1/hotels/{id}/links", h.linkHotel)
	s.mux.Post("/v1/sync/jobs", h.runSync)
	if h.Triggers != nil {
		s.mux.Get("/v1/sync/triggers", h.listTriggers)
		s.mux.Delete("/v1/sync/triggers/{name}", h.stopTrigger)
	}
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		// Log but don't fail the whole response; return empty ETag and best-effort body.
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func hotelID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

type scoreResponse struct {
	HotelID    int64                `json:"hotelId"`
	EywaScore  float64              `json:"eywaScore"`
	PerSource  []domain.SourceScore `json:"perSource"`
	Trend      domain.Trend         `json:"trend"`
	TrendDelta float64              `json:"trendDelta"`
	ComputedAt time.Time            `json:"computedAt"`
}

func (h *Handlers) getScore(w http.ResponseWriter, r *http.Request) {
	id, ok := hotelID(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}
	rec, err := h.Q.GetScore(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Not Found", "no score for hotel")
			return
		}
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "score lookup failed")
		return
	}
	resp := scoreResponse{
		HotelID:    rec.HotelID,
		EywaScore:  rec.EywaScore,
		PerSource:  rec.PerSource,
		Trend:      rec.Trend,
		TrendDelta: rec.TrendDelta,
		ComputedAt: rec.ComputedAt,
	}

	etag, body := calcETagAndBody(resp)
	// If client already has this version, short-circuit.
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag) // include ETag on 304
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write getScore body")
	}
}

func (h *Handlers) getTrend(w http.ResponseWriter, r *http.Request) {
	id, ok := hotelID(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "30d"
	}
	sum, err := h.Q.GetTrend(r.Context(), id, period)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid period", "period must be one of 7d, 30d, 90d")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *Handlers) getAlerts(w http.ResponseWriter, r *http.Request) {
	id, ok := hotelID(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}
	alerts, err := h.Q.GetAlerts(r.Context(), id)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "alert evaluation failed")
		return
	}
	if alerts == nil {
		alerts = []anomaly.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (h *Handlers) matchHotel(w http.ResponseWriter, r *http.Request) {
	id, ok := hotelID(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}
	res, err := h.L.ResolveHotel(r.Context(), id)
	if err != nil {
		writeProblem(w, http.StatusNotFound, "Not Found", "hotel not found")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type linkRequest struct {
	Source     string `json:"source"`
	ExternalID string `json:"externalId"`
	Name       string `json:"name"`
	Verified   bool   `json:"verified"`
}

func (h *Handlers) linkHotel(w http.ResponseWriter, r *http.Request) {
	id, ok := hotelID(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}
	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "request body must be JSON")
		return
	}
	if req.Source == "" || req.ExternalID == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "source and externalId are required")
		return
	}
	if err := h.L.LinkHotel(r.Context(), id, domain.Source(req.Source), req.ExternalID, req.Name, req.Verified); err != nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "linking failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "linked"})
}

type syncRequest struct {
	JobType     string  `json:"jobType,omitempty"`
	TriggeredBy string  `json:"triggeredBy,omitempty"`
	HotelIDs    []int64 `json:"hotelIds,omitempty"`
}

func (h *Handlers) runSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid body", "request body must be JSON")
			return
		}
	}
	if req.TriggeredBy == "" {
		req.TriggeredBy = "api"
	}
	res, err := h.S.RunSyncJob(r.Context(), app.SyncRequest{
		TriggeredBy: req.TriggeredBy,
		JobType:     domain.JobType(req.JobType),
		HotelIDs:    req.HotelIDs,
	})
	if err != nil {
		if errors.Is(err, domain.ErrSyncInProgress) {
			writeProblem(w, http.StatusConflict, "Sync In Progress", "another sync job is already running")
			return
		}
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "sync job failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) listTriggers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Triggers.Statuses())
}

func (h *Handlers) stopTrigger(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !h.Triggers.Stop(name) {
		writeProblem(w, http.StatusNotFound, "Not Found", "no such trigger")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
