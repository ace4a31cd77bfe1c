// Package api serves the read-only status and query HTTP API: stored
// entries, proteins, and isoforms, plus live rate limit and cache
// statistics.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"biocollect/internal/ratelimit"
	"biocollect/internal/respcache"
	"biocollect/internal/storage"
	"biocollect/internal/version"
)

// Handlers contains HTTP handlers for the status API.
type Handlers struct {
	store      storage.Storage
	rateLimits *ratelimit.Manager
	cache      *respcache.Cache
	logger     *slog.Logger
	startedAt  time.Time
}

// NewHandlers creates a new handlers instance. The cache may be nil when
// caching is disabled.
func NewHandlers(store storage.Storage, rateLimits *ratelimit.Manager, cache *respcache.Cache, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		store:      store,
		rateLimits: rateLimits,
		cache:      cache,
		logger:     logger,
		startedAt:  time.Now(),
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// HealthCheck reports service liveness and storage reachability.
// GET /healthz
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "storage unreachable")
		return
	}

	h.writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Version: version.GetInfo().Version,
		Uptime:  time.Since(h.startedAt).Round(time.Second).String(),
	})
}

// ListEntries returns all stored entries.
// GET /api/v1/entries
func (h *Handlers) ListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.Entries(r.Context())
	if err != nil {
		h.logger.Error("failed to list entries", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list entries")
		return
	}

	h.writeJSON(w, http.StatusOK, entries)
}

// GetEntry returns one entry by accession.
// GET /api/v1/entries/{accession}
func (h *Handlers) GetEntry(w http.ResponseWriter, r *http.Request) {
	accession := mux.Vars(r)["accession"]

	entry, err := h.store.GetEntry(r.Context(), accession)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "entry not found")
			return
		}
		h.logger.Error("failed to get entry", "accession", accession, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get entry")
		return
	}

	h.writeJSON(w, http.StatusOK, entry)
}

// ListProteins returns stored proteins, optionally filtered by owning entry
// via the entry query parameter.
// GET /api/v1/proteins?entry={accession}
func (h *Handlers) ListProteins(w http.ResponseWriter, r *http.Request) {
	proteins, err := h.store.Proteins(r.Context(), r.URL.Query().Get("entry"))
	if err != nil {
		h.logger.Error("failed to list proteins", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list proteins")
		return
	}

	h.writeJSON(w, http.StatusOK, proteins)
}

// GetProtein returns one protein by UniProt accession.
// GET /api/v1/proteins/{accession}
func (h *Handlers) GetProtein(w http.ResponseWriter, r *http.Request) {
	accession := mux.Vars(r)["accession"]

	protein, err := h.store.GetProtein(r.Context(), accession)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "protein not found")
			return
		}
		h.logger.Error("failed to get protein", "accession", accession, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get protein")
		return
	}

	h.writeJSON(w, http.StatusOK, protein)
}

// ListIsoforms returns the isoforms of a protein.
// GET /api/v1/proteins/{accession}/isoforms
func (h *Handlers) ListIsoforms(w http.ResponseWriter, r *http.Request) {
	accession := mux.Vars(r)["accession"]

	isoforms, err := h.store.Isoforms(r.Context(), accession)
	if err != nil {
		h.logger.Error("failed to list isoforms", "accession", accession, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list isoforms")
		return
	}

	h.writeJSON(w, http.StatusOK, isoforms)
}

// StorageStats returns record counts across all tables.
// GET /api/v1/stats/storage
func (h *Handlers) StorageStats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.store.Counts(r.Context())
	if err != nil {
		h.logger.Error("failed to count records", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to count records")
		return
	}

	h.writeJSON(w, http.StatusOK, counts)
}

type rateLimitStatsResponse struct {
	Limiters         map[string]ratelimit.LimiterStats `json:"limiters"`
	RecentViolations []ratelimit.Violation             `json:"recent_violations"`
}

// RateLimitStats returns per-API limiter statistics and the last hour of
// violations.
// GET /api/v1/stats/ratelimit
func (h *Handlers) RateLimitStats(w http.ResponseWriter, r *http.Request) {
	resp := rateLimitStatsResponse{
		Limiters:         h.rateLimits.AllStats(),
		RecentViolations: h.rateLimits.RecentViolations(time.Hour),
	}
	if resp.RecentViolations == nil {
		resp.RecentViolations = []ratelimit.Violation{}
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// RateLimitReport returns the full monitoring report.
// GET /api/v1/stats/ratelimit/report
func (h *Handlers) RateLimitReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.rateLimits.GenerateReport()
	if err != nil {
		if errors.Is(err, ratelimit.ErrReportingDisabled) {
			h.writeError(w, http.StatusNotFound, "rate limit reporting not enabled")
			return
		}
		h.logger.Error("failed to generate rate limit report", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to generate report")
		return
	}

	h.writeJSON(w, http.StatusOK, report)
}

// CacheStats returns response cache occupancy and effectiveness counters.
// GET /api/v1/stats/cache
func (h *Handlers) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusNotFound, "response cache not enabled")
		return
	}

	h.writeJSON(w, http.StatusOK, h.cache.Stats())
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, errorResponse{Error: message})
}
