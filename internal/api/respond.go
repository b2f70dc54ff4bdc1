package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"learnhub/internal/apperr"
	"learnhub/internal/models"

	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, errorResponse{Error: message})
}

// writeServiceError maps the error taxonomy onto HTTP statuses. Unclassified
// errors are logged and hidden behind a generic 500.
func writeServiceError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	resp := errorResponse{Error: err.Error()}
	var status int

	var verr *apperr.ValidationError
	switch {
	case errors.As(err, &verr):
		status, resp.Code, resp.Field = http.StatusBadRequest, "validation", verr.Field
	case errors.Is(err, apperr.ErrValidation):
		status, resp.Code = http.StatusBadRequest, "validation"
	case errors.Is(err, apperr.ErrNotFound):
		status, resp.Code = http.StatusNotFound, "not_found"
	case errors.Is(err, apperr.ErrCapacityExceeded):
		status, resp.Code = http.StatusConflict, "slot_full"
	case errors.Is(err, apperr.ErrConcurrentModification):
		status, resp.Code = http.StatusConflict, "concurrent_modification"
	case errors.Is(err, apperr.ErrInvalidTransition):
		status, resp.Code = http.StatusConflict, "invalid_transition"
	case errors.Is(err, apperr.ErrRateLimited):
		status, resp.Code = http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, apperr.ErrForbidden):
		status, resp.Code = http.StatusForbidden, "forbidden"
	case errors.Is(err, apperr.ErrExternalService):
		logger.Error().Err(err).Msg("Upstream failure")
		status, resp = http.StatusBadGateway, errorResponse{Error: "upstream service unavailable", Code: "external"}
	default:
		logger.Error().Err(err).Msg("Unhandled error")
		status, resp = http.StatusInternalServerError, errorResponse{Error: "internal error"}
	}
	writeJSON(w, status, resp)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return apperr.Validation("body", "invalid JSON body: %v", err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation(name, "expected a positive integer, got %q", raw)
	}
	return id, nil
}

func queryDate(r *http.Request, name string) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return time.Time{}, nil
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		return time.Time{}, apperr.Validation(name, "expected YYYY-MM-DD, got %q", raw)
	}
	return d, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperr.Validation(name, "expected a non-negative integer, got %q", raw)
	}
	return n, nil
}

func contentDisposition(fileName string) string {
	return fmt.Sprintf("attachment; filename=%q", fileName)
}
