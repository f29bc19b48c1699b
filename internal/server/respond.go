package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/desertthunder/tapedeck/internal/shared"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

// classify maps domain errors to an HTTP status and a stable error code.
//
// Refresh failures are checked before provider errors since a RefreshError may wrap a ProviderError.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, shared.ErrValidation),
		errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrMissingArgument),
		errors.Is(err, shared.ErrInvalidArgument):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, shared.ErrNoCredential):
		return http.StatusConflict, "not_linked"
	case errors.Is(err, shared.ErrInvalidGrant):
		return http.StatusUnauthorized, "relink_required"
	case errors.Is(err, shared.ErrRefreshFailed):
		return http.StatusServiceUnavailable, "refresh_unavailable"
	case errors.Is(err, shared.ErrUnauthorized):
		return http.StatusUnauthorized, "provider_unauthorized"
	case errors.Is(err, shared.ErrForbidden):
		return http.StatusForbidden, "provider_forbidden"
	case errors.Is(err, shared.ErrProviderUnknown):
		return http.StatusBadGateway, "provider_error"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// decodeJSON reads a JSON request body, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(shared.ErrInvalidInput, err)
	}
	return nil
}
