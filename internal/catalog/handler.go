package catalog

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/HerbHall/skillpath/internal/match"
	pkgcatalog "github.com/HerbHall/skillpath/pkg/catalog"
)

// EntriesResponse is the response for GET /api/v1/sessions/{id}/catalog.
type EntriesResponse struct {
	SessionID string             `json:"session_id"`
	Count     int                `json:"count"`
	Entries   []pkgcatalog.Entry `json:"entries"`
}

// RankedEntry is one row of a ranking preview.
type RankedEntry struct {
	pkgcatalog.Entry
	Similarity float64 `json:"similarity"`
	Position   int     `json:"catalog_position"`
}

// RankResponse is the response for GET /api/v1/sessions/{id}/catalog/rank.
type RankResponse struct {
	Query   string        `json:"query"`
	Count   int           `json:"count"`
	Entries []RankedEntry `json:"entries"`
}

// Handler exposes a session's catalog snapshot for inspection. It never
// triggers a fetch and never records searches.
type Handler struct {
	engine *Engine
	logger *zap.Logger
}

// NewHandler creates a new catalog API handler.
func NewHandler(engine *Engine, logger *zap.Logger) *Handler {
	return &Handler{engine: engine, logger: logger}
}

// RegisterRoutes mounts the catalog routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/sessions/{id}/catalog", h.handleListEntries)
	mux.HandleFunc("GET /api/v1/sessions/{id}/catalog/rank", h.handleRank)
}

// handleListEntries returns the session's catalog snapshot in catalog order.
func (h *Handler) handleListEntries(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	entries, ok := h.engine.Entries(id)
	if !ok {
		writeError(w, http.StatusNotFound, "no catalog loaded for session")
		return
	}

	writeJSON(w, http.StatusOK, EntriesResponse{
		SessionID: id,
		Count:     len(entries),
		Entries:   entries,
	})
}

// handleRank returns the full similarity ranking for q without applying the
// search quota. Useful to explain why an entry was or was not selected.
func (h *Handler) handleRank(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be an integer between 1 and 1000")
			return
		}
		limit = n
	}

	entries, ok := h.engine.Entries(id)
	if !ok {
		writeError(w, http.StatusNotFound, "no catalog loaded for session")
		return
	}

	ranking := match.Rank(q, entries, entryTitle)
	if len(ranking) > limit {
		ranking = ranking[:limit]
	}

	out := make([]RankedEntry, len(ranking))
	for i, s := range ranking {
		out[i] = RankedEntry{Entry: s.Item, Similarity: s.Score, Position: s.Index}
	}

	h.logger.Debug("rank preview", zap.String("session_id", id), zap.String("query", q), zap.Int("count", len(out)))
	writeJSON(w, http.StatusOK, RankResponse{Query: q, Count: len(out), Entries: out})
}

// -- helpers --

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "https://skillpath.dev/problems/catalog-error",
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}
