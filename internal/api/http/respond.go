package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"boxrental-backend/internal/domain"
	"boxrental-backend/internal/logger"
)

type errorBody struct {
	Error     string           `json:"error"`
	Kind      domain.ErrorKind `json:"kind"`
	Retriable bool             `json:"retriable"`
	Available *int32           `json:"available,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to write response", "error", err)
	}
}

// StatusFor maps an engine error to an HTTP status code.
func StatusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindInvalidInput:
		return http.StatusBadRequest
	case domain.KindInsufficientInventory, domain.KindInvalidStateTransition:
		return http.StatusUnprocessableEntity
	case domain.KindConcurrentModification:
		return http.StatusConflict
	case domain.KindAllocationTimeout:
		return http.StatusServiceUnavailable
	case domain.KindCredentialMismatch, domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindRateLimited:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := StatusFor(err)
	body := errorBody{Error: err.Error(), Kind: domain.KindOf(err), Retriable: domain.Retriable(err)}
	if code == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		body.Error = "internal error"
	}
	var short *domain.InsufficientInventoryError
	if errors.As(err, &short) {
		body.Available = &short.Available
	}
	switch code {
	case http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", "1")
	case http.StatusTooManyRequests:
		w.Header().Set("Retry-After", "60")
	}
	writeJSON(w, code, body)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.InvalidInput("malformed request body: %v", err)
	}
	return nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.InvalidInput("invalid id %q", raw)
	}
	return id, nil
}
