package retrieval

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/pulsewire/newsplatform/internal/enrich"
	"github.com/pulsewire/newsplatform/internal/news"
	apperrors "github.com/pulsewire/newsplatform/pkg/errors"
	"github.com/pulsewire/newsplatform/pkg/logger"
)

// AnalysisRequester is the on-demand enrichment trigger.
type AnalysisRequester interface {
	Request(ctx context.Context, id int64) (enrich.Status, error)
}

// Handler exposes the retrieval service over HTTP.
type Handler struct {
	svc     *Service
	trigger AnalysisRequester
	tiers   TierResolver
}

// NewHandler creates a Handler. trigger may be nil when the deployment has
// no enrichment service; the analyze route then returns 503.
func NewHandler(svc *Service, trigger AnalysisRequester, tiers TierResolver) *Handler {
	return &Handler{
		svc:     svc,
		trigger: trigger,
		tiers:   tiers,
	}
}

// Register attaches all news routes to the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/news", h.listAll)
	mux.HandleFunc("GET /api/v1/news/{vertical}", h.listVertical)
	mux.HandleFunc("GET /api/v1/news/{id}/ai", h.getAnalysis)
	mux.HandleFunc("POST /api/v1/news/{id}/analyze", h.requestAnalysis)
	mux.HandleFunc("GET /api/v1/tier/{userId}", h.getTier)
}

func (h *Handler) listAll(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, news.Vertical(r.URL.Query().Get("vertical")))
}

func (h *Handler) listVertical(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, news.Vertical(r.PathValue("vertical")))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, vertical news.Vertical) {
	q := Query{
		Vertical: vertical,
		Ticker:   r.URL.Query().Get("ticker"),
		UserID:   r.URL.Query().Get("userId"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, r, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
				"limit %q must be a non-negative integer", raw))
			return
		}
		q.Limit = limit
	}

	result, err := h.svc.List(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) getAnalysis(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	item, err := h.svc.GetAnalysis(r.Context(), id, r.URL.Query().Get("userId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":           item.ID,
		"processed":    item.AIProcessed,
		"sentiment":    item.AISentiment,
		"price_impact": item.AIPriceImpact,
		"summary":      item.AISummary,
		"processed_at": item.AIProcessedAt,
	})
}

func (h *Handler) requestAnalysis(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	userTier := h.tiers.GetTier(r.Context(), r.URL.Query().Get("userId"))
	if !userTier.CanRequestAnalysis() {
		writeError(w, r, apperrors.New(apperrors.ErrTierRequired, http.StatusForbidden,
			"on-demand analysis requires the pro tier"))
		return
	}
	if h.trigger == nil {
		writeError(w, r, apperrors.New(apperrors.ErrStoreUnavailable, http.StatusServiceUnavailable,
			"analysis is not available"))
		return
	}

	status, err := h.trigger.Request(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	switch status {
	case enrich.StatusNotFound:
		writeError(w, r, apperrors.ErrItemNotFound)
	case enrich.StatusAlreadyProcessed:
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": status})
	default:
		writeJSON(w, http.StatusAccepted, map[string]any{"id": id, "status": status})
	}
}

func (h *Handler) getTier(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	userTier := h.tiers.GetTier(r.Context(), userID)
	writeJSON(w, http.StatusOK, map[string]any{
		"userId":       userID,
		"tier":         userTier,
		"delayMinutes": h.tiers.DeliveryDelay(userTier),
	})
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"id %q must be a positive integer", raw))
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Default().Error("encoding response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
