package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/picvault/picvault/internal/common"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeServiceError maps sentinel errors to HTTP statuses. A wrong password
// and an unknown account share one message; everything unrecognized becomes
// a generic 500 with the detail kept in the logs only.
func (s *HTTPServer) writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, common.ErrMfaCodeInvalid):
		writeError(w, http.StatusUnauthorized, "invalid code")
	case errors.Is(err, common.ErrorNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, common.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email already registered")
	case errors.Is(err, common.ErrRefreshTokenNotFound):
		writeError(w, http.StatusForbidden, "refresh token not found")
	case errors.Is(err, common.ErrRefreshTokenExpired):
		writeError(w, http.StatusForbidden, "refresh token expired")
	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrTokenExpired):
		writeError(w, http.StatusUnauthorized, "invalid token")
	default:
		s.logger.Error(ctx, "request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON parses the request body into dst; a malformed body is the
// caller's fault, not the server's.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return false
	}
	return true
}
