// Package httpapi implements the REST surface used by the web frontend.
//
// Routes:
//
//	GET  /api/health                 → liveness + current time
//	GET  /api/jobs                   → paginated, filtered posting list
//	GET  /api/jobs/{id}              → one posting with tracking state
//	POST /api/jobs/{id}/favorite     → toggle favorite
//	PUT  /api/jobs/{id}/status       → set tracking status
//	PUT  /api/jobs/{id}/notes        → replace notes
//	POST /api/scrape                 → run ingestion now
//	GET  /api/scrape/status          → latest scrape audit
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"jobmate/jobhunt/internal/model"
	"jobmate/jobhunt/internal/query"
	"jobmate/jobhunt/internal/tracking"
)

const maxBodyBytes = 1 << 20

// Ingester is the manual ingestion trigger.
type Ingester interface {
	Run(ctx context.Context) (model.IngestResult, error)
}

// Handler holds shared dependencies.
type Handler struct {
	queries  *query.Service
	mutator  *tracking.Mutator
	ingester Ingester
	logger   *slog.Logger
	now      func() time.Time
}

// NewHandler returns a configured Handler.
func NewHandler(queries *query.Service, mutator *tracking.Mutator, ingester Ingester, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		queries:  queries,
		mutator:  mutator,
		ingester: ingester,
		logger:   logger.With("component", "http"),
		now:      time.Now,
	}
}

// RegisterRoutes mounts all routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/health", h.handleHealth)
	mux.HandleFunc("/api/jobs", h.handleJobs)
	mux.HandleFunc("/api/jobs/", h.handleJob)
	mux.HandleFunc("/api/scrape", h.handleScrape)
	mux.HandleFunc("/api/scrape/status", h.handleScrapeStatus)
}

// ─── Route dispatch ───────────────────────────────────────────────────────────

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	jsonOK(w, map[string]string{
		"status":    "ok",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

// handleJobs handles GET /api/jobs
func (h *Handler) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.listJobs(w, r)
}

// handleJob handles /api/jobs/{id} and /api/jobs/{id}/favorite|status|notes
func (h *Handler) handleJob(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 3 || len(parts) > 4 {
		jsonError(w, "invalid path", http.StatusNotFound)
		return
	}

	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || id < 1 {
		jsonError(w, fmt.Sprintf("invalid job id %q", parts[2]), http.StatusBadRequest)
		return
	}

	if len(parts) == 3 {
		if r.Method != http.MethodGet {
			jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.getJob(w, r, id)
		return
	}

	switch action := parts[3]; action {
	case "favorite":
		if r.Method != http.MethodPost {
			jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.toggleFavorite(w, r, id)
	case "status":
		if r.Method != http.MethodPut {
			jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.setStatus(w, r, id)
	case "notes":
		if r.Method != http.MethodPut {
			jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.setNotes(w, r, id)
	default:
		jsonError(w, fmt.Sprintf("unknown action %q", action), http.StatusNotFound)
	}
}

// handleScrape handles POST /api/scrape
func (h *Handler) handleScrape(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.runScrape(w, r)
}

// handleScrapeStatus handles GET /api/scrape/status
func (h *Handler) handleScrapeStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.scrapeStatus(w, r)
}

// ─── Individual handlers ──────────────────────────────────────────────────────

func (h *Handler) listJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, err := positiveParam(q.Get("page"), "page")
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	sizeRaw := q.Get("pageSize")
	if sizeRaw == "" {
		sizeRaw = q.Get("limit")
	}
	pageSize, err := positiveParam(sizeRaw, "pageSize")
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	filter := query.ListFilter{
		Location: q.Get("location"),
		Search:   q.Get("search"),
		Status:   q.Get("status"),
		Favorite: q.Get("favorite") == "true",
	}

	res, err := h.queries.ListPostings(r.Context(), filter, page, pageSize)
	if err != nil {
		h.writeError(w, "listJobs", err)
		return
	}
	jsonOK(w, res)
}

func (h *Handler) getJob(w http.ResponseWriter, r *http.Request, id int64) {
	v, err := h.queries.GetPosting(r.Context(), id)
	if err != nil {
		h.writeError(w, "getJob", err)
		return
	}
	jsonOK(w, v)
}

func (h *Handler) toggleFavorite(w http.ResponseWriter, r *http.Request, id int64) {
	rec, err := h.mutator.ToggleFavorite(r.Context(), id)
	if err != nil {
		h.writeError(w, "toggleFavorite", err)
		return
	}
	jsonOK(w, rec)
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request, id int64) {
	var body statusRequest
	if msg, ok := decodeBody(w, r, &body); !ok {
		jsonError(w, msg, http.StatusBadRequest)
		return
	}

	rec, err := h.mutator.SetStatus(r.Context(), id, body.Status)
	if err != nil {
		h.writeError(w, "setStatus", err)
		return
	}
	jsonOK(w, rec)
}

type notesRequest struct {
	// Pointer so that an explicit "" is accepted and a missing key is not.
	Notes *string `json:"notes" validate:"required,max=20000"`
}

func (h *Handler) setNotes(w http.ResponseWriter, r *http.Request, id int64) {
	var body notesRequest
	if msg, ok := decodeBody(w, r, &body); !ok {
		jsonError(w, msg, http.StatusBadRequest)
		return
	}

	rec, err := h.mutator.SetNotes(r.Context(), id, *body.Notes)
	if err != nil {
		h.writeError(w, "setNotes", err)
		return
	}
	jsonOK(w, rec)
}

type scrapeResponse struct {
	Success bool `json:"success"`
	model.IngestResult
}

func (h *Handler) runScrape(w http.ResponseWriter, r *http.Request) {
	if h.ingester == nil {
		jsonError(w, "ingestion is not configured", http.StatusServiceUnavailable)
		return
	}
	res, err := h.ingester.Run(r.Context())
	if err != nil {
		h.writeError(w, "runScrape", err)
		return
	}
	jsonOK(w, scrapeResponse{Success: true, IngestResult: res})
}

func (h *Handler) scrapeStatus(w http.ResponseWriter, r *http.Request) {
	a, err := h.queries.LatestAudit(r.Context())
	if err != nil {
		h.writeError(w, "scrapeStatus", err)
		return
	}
	if a == nil {
		jsonOK(w, map[string]string{"message": "No scrapes yet"})
		return
	}
	jsonOK(w, a)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// writeError maps domain errors to HTTP status codes.
func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	var ve *model.ValidationError
	switch {
	case errors.Is(err, model.ErrNotFound):
		jsonError(w, "job not found", http.StatusNotFound)
	case errors.As(err, &ve):
		jsonError(w, ve.Msg, http.StatusBadRequest)
	case errors.Is(err, model.ErrUpstreamUnavailable):
		h.logger.Warn(op+" upstream unavailable", "err", err)
		jsonError(w, err.Error(), http.StatusBadGateway)
	default:
		h.logger.Error(op+" failed", "err", err)
		jsonError(w, "internal server error", http.StatusInternalServerError)
	}
}

// positiveParam parses an optional positive integer query parameter.
// An empty value yields 0, which the query service treats as the default.
func positiveParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return v, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) (string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return "invalid JSON body", false
	}
	if err := validate.Struct(dst); err != nil {
		return strings.Join(formatValidationErrors(err), ", "), false
	}
	return "", true
}

func jsonOK(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
