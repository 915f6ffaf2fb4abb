// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sdsinventory/backend/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807. Internal
// failures are logged and reported without detail.
func RespondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	kind := shared.Kind(err)
	switch kind {
	case "not_found":
		problem(w, http.StatusNotFound, kind, "Not Found", err.Error())
	case "insufficient_stock":
		resp := ProblemDetail{Type: kind, Title: "Insufficient Stock", Status: http.StatusConflict, Detail: err.Error()}
		var stockErr *shared.InsufficientStockError
		if errors.As(err, &stockErr) {
			resp.SupplyID = stockErr.SupplyID
			resp.Required = &stockErr.Required
			resp.Available = &stockErr.Available
		}
		JSON(w, http.StatusConflict, resp)
	case "invalid_formula", "unknown_variable", "missing_variable", "missing_option", "invalid_option", "out_of_range":
		problem(w, http.StatusUnprocessableEntity, kind, "Cost Resolution Failed", err.Error())
	case "invalid_input":
		problem(w, http.StatusBadRequest, kind, "Validation Failed", err.Error())
	case "busy":
		w.Header().Set("Retry-After", "1")
		problem(w, http.StatusServiceUnavailable, kind, "Resource Busy", "the resource is locked by another operation, retry shortly")
	default:
		if logger != nil {
			logger.Error("request failed", slog.Any("error", err))
		}
		problem(w, http.StatusInternalServerError, "internal", "Internal Error", "")
	}
}

func problem(w http.ResponseWriter, status int, kind, title, detail string) {
	JSON(w, status, ProblemDetail{Type: kind, Title: title, Status: status, Detail: detail})
}
