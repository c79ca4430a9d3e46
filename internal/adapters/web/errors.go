package web

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"proforma/internal/core"
	"proforma/internal/observability"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeServiceError maps a service error onto the HTTP status for its kind.
// Internal errors are logged and their details withheld from the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	kind := core.KindOf(err)
	status := statusForKind(kind)
	if status == http.StatusInternalServerError {
		observability.FromContext(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, r, "internal server error", string(kind), status)
		return
	}
	writeError(w, r, err.Error(), string(kind), status)
}

func statusForKind(kind core.ErrorKind) int {
	switch kind {
	case core.KindValidation:
		return http.StatusBadRequest
	case core.KindInvalidQuantity:
		return http.StatusUnprocessableEntity
	case core.KindInvalidTransition, core.KindConcurrency:
		return http.StatusConflict
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindDocumentNotAllowed:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
