package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/target/entity-metrics/internal/domain/model"
	apperrors "github.com/target/entity-metrics/internal/errors"
	"github.com/target/entity-metrics/internal/util"
)

// parseIntQuery returns the integer value of a query param or a default.
// Missing values yield def; malformed values are reported.
func parseIntQuery(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return i, nil
}

// parseIDsQuery reads the comma-separated "ids" query param, collapsing duplicates and
// enforcing maxIDs on the distinct count.
func parseIDsQuery(r *http.Request, maxIDs int) ([]int64, error) {
	raw := r.URL.Query().Get("ids")
	if raw == "" {
		return nil, errors.New("ids is required")
	}
	ids, err := util.ParseIDList(raw)
	if err != nil {
		return nil, err
	}
	ids = model.UniqueIDs(ids)
	if len(ids) == 0 {
		return nil, errors.New("ids is required")
	}
	if maxIDs > 0 && len(ids) > maxIDs {
		return nil, fmt.Errorf("ids cannot exceed %d entries", maxIDs)
	}
	return ids, nil
}

// statusForError maps application error codes onto HTTP status codes.
func statusForError(err error) int {
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeValidation:
		return http.StatusBadRequest
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeUnsupported:
		return http.StatusNotImplemented
	case apperrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case apperrors.ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
