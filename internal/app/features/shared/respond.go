// internal/app/features/shared/respond.go

// Package shared holds the JSON response helpers every feature handler
// uses, including the mapping from business errors to HTTP statuses.
package shared

import (
	"encoding/json"
	"net/http"

	"github.com/dalemusser/groupdeal/internal/app/system/bizerr"
	"go.uber.org/zap"
)

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorBody is the uniform error payload.
type errorBody struct {
	Error   string `json:"error"`             // machine-readable code
	Message string `json:"message,omitempty"` // human-readable detail
}

// Error renders err. Business errors map to their taxonomy status and
// code; anything else is an infrastructure fault rendered as a generic
// 500 (the detail goes to the log, not the client).
func Error(w http.ResponseWriter, log *zap.Logger, err error) {
	kind := bizerr.KindOf(err)
	if kind == bizerr.KindUnknown {
		log.Error("request failed", zap.Error(err))
		JSON(w, http.StatusInternalServerError, errorBody{
			Error:   "internal_error",
			Message: "something went wrong",
		})
		return
	}
	JSON(w, kind.HTTPStatus(), errorBody{
		Error:   kind.String(),
		Message: err.Error(),
	})
}

// BadRequest renders a 400 for malformed request bodies or parameters.
func BadRequest(w http.ResponseWriter, msg string) {
	JSON(w, http.StatusBadRequest, errorBody{Error: "bad_request", Message: msg})
}
