// Package httpx exposes the entity metrics cache over a small JSON API.
package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/target/entity-metrics/internal/domain/model"
	apperrors "github.com/target/entity-metrics/internal/errors"
	"github.com/target/entity-metrics/internal/service"
)

// MetricsHandlers provides HTTP handlers for reading and maintaining cached entity metrics.
type MetricsHandlers struct {
	Svc    *service.EntityMetricsService
	MaxIDs int
	Logger *slog.Logger
}

type populateResponse struct {
	service.PopulateResult
	Error string `json:"error,omitempty"`
}

type prewarmResponse struct {
	EntityType model.EntityType `json:"entityType"`
	Candidates int              `json:"candidates"`
	Populate   populateResponse `json:"populate"`
	Error      string           `json:"error,omitempty"`
}

func newPopulateResponse(res service.PopulateResult) populateResponse {
	out := populateResponse{PopulateResult: res}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}

// Fetch handles GET /api/metrics/{entityType}?ids=1,2,3.
func (h *MetricsHandlers) Fetch(w http.ResponseWriter, r *http.Request) {
	accessor, ids, ok := h.accessorAndIDs(w, r)
	if !ok {
		return
	}

	records, err := accessor.Fetch(r.Context(), ids)
	if err != nil {
		h.logger().ErrorContext(r.Context(), "fetch metrics failed",
			"entity_type", accessor.EntityType(),
			"ids", len(ids),
			"error", err,
		)
		WriteError(w, ErrorParams{Code: statusForError(err), ErrCode: ErrCodeFetchFailed, Err: err})
		return
	}
	WriteJSON(w, http.StatusOK, records)
}

// Bust handles DELETE /api/metrics/{entityType}?ids=1,2,3.
func (h *MetricsHandlers) Bust(w http.ResponseWriter, r *http.Request) {
	accessor, ids, ok := h.accessorAndIDs(w, r)
	if !ok {
		return
	}

	if err := accessor.Bust(r.Context(), ids); err != nil {
		WriteError(w, ErrorParams{Code: statusForError(err), ErrCode: ErrCodeBustFailed, Err: err})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Refresh handles POST /api/metrics/{entityType}/refresh?ids=1,2,3.
func (h *MetricsHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	accessor, ids, ok := h.accessorAndIDs(w, r)
	if !ok {
		return
	}

	res := accessor.Refresh(r.Context(), ids)
	WriteJSON(w, http.StatusAccepted, newPopulateResponse(res))
}

// Flush handles POST /api/metrics/{entityType}/flush. Flushing is never supported.
func (h *MetricsHandlers) Flush(w http.ResponseWriter, r *http.Request) {
	accessor, ok := h.accessor(w, r)
	if !ok {
		return
	}

	err := accessor.Flush(r.Context())
	if errors.Is(err, service.ErrFlushUnsupported) {
		WriteError(w, ErrorParams{Code: http.StatusNotImplemented, ErrCode: ErrCodeFlushUnsupported, Err: err})
		return
	}
	if err != nil {
		WriteError(w, ErrorParams{Code: statusForError(err), ErrCode: ErrCodeFlushUnsupported, Err: err})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Prewarm handles POST /api/metrics/{entityType}/prewarm?limit=N.
func (h *MetricsHandlers) Prewarm(w http.ResponseWriter, r *http.Request) {
	entityType, ok := parseEntityType(w, r)
	if !ok {
		return
	}

	limit, err := parseIntQuery(r, "limit", 0)
	if err == nil && limit < 0 {
		err = errors.New("limit must be non-negative")
	}
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: ErrCodeInvalidLimit, Err: err})
		return
	}

	res := h.Svc.Prewarmer.PreWarm(r.Context(), entityType, limit)
	out := prewarmResponse{
		EntityType: res.EntityType,
		Candidates: res.Candidates,
		Populate:   newPopulateResponse(res.Populate),
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	WriteJSON(w, http.StatusAccepted, out)
}

func (h *MetricsHandlers) accessor(w http.ResponseWriter, r *http.Request) (*service.MetricAccessor, bool) {
	entityType, ok := parseEntityType(w, r)
	if !ok {
		return nil, false
	}
	accessor, err := h.Svc.Accessor(entityType)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: ErrCodeInvalidEntityType, Err: err})
		return nil, false
	}
	return accessor, true
}

func (h *MetricsHandlers) accessorAndIDs(
	w http.ResponseWriter,
	r *http.Request,
) (*service.MetricAccessor, []int64, bool) {
	accessor, ok := h.accessor(w, r)
	if !ok {
		return nil, nil, false
	}

	maxIDs := h.MaxIDs
	if maxIDs <= 0 {
		maxIDs = DefaultMaxIDsPerRequest
	}
	ids, err := parseIDsQuery(r, maxIDs)
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: ErrCodeInvalidIDs,
			Err:     apperrors.ValidationField("ids", err.Error()),
		})
		return nil, nil, false
	}
	return accessor, ids, true
}

func (h *MetricsHandlers) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func parseEntityType(w http.ResponseWriter, r *http.Request) (model.EntityType, bool) {
	entityType, err := model.ParseEntityType(r.PathValue("entityType"))
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: ErrCodeInvalidEntityType, Err: err})
		return "", false
	}
	return entityType, true
}
