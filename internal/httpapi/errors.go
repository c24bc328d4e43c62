// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Noteful Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/noteful/noteful-auth/internal/auth"
	"github.com/noteful/noteful-auth/pkg/errutil"
)

// errorBody is the JSON shape of every non-2xx response.
type errorBody struct {
	Code     int    `json:"code"`
	Reason   string `json:"reason,omitempty"`
	Message  string `json:"message"`
	Location string `json:"location,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // client may have gone away
	json.NewEncoder(w).Encode(body)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Code: status, Message: message})
}

// writeError maps an error from the auth package onto a status code. Anything
// unrecognized is logged and rendered as an opaque 500.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *auth.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{
			Code:     http.StatusUnprocessableEntity,
			Reason:   "ValidationError",
			Message:  verr.Error(),
			Location: verr.Field,
		})
	case errors.Is(err, auth.ErrDuplicateUsername):
		writeJSON(w, http.StatusBadRequest, errorBody{
			Code:     http.StatusBadRequest,
			Reason:   "ValidationError",
			Message:  auth.ErrDuplicateUsername.Error(),
			Location: "username",
		})
	case errors.Is(err, auth.ErrMissingCredentials):
		writeMessage(w, http.StatusBadRequest, "Bad Request")
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		w.Header().Set("WWW-Authenticate", `Bearer realm="noteful-auth"`)
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, auth.ErrTooManyAttempts):
		if seconds, ok := errutil.ContextValue(err, "retry_after_seconds"); ok {
			if n, ok := seconds.(int); ok {
				w.Header().Set("Retry-After", strconv.Itoa(n))
			}
		}
		writeMessage(w, http.StatusTooManyRequests, auth.ErrTooManyAttempts.Error())
	default:
		errutil.LogErrorContext(r.Context(), h.logger, "request failed", err)
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
	}
}
