package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/facegate/facegate/internal/gateerrors"
)

// RespondServiceError maps an engine error to its RFC 7807 response. Unknown
// errors are logged and masked as 500.
func RespondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gateerrors.ErrValidation):
		RespondBadRequest(w, err.Error())
	case errors.Is(err, gateerrors.ErrNotFound):
		RespondNotFound(w, err.Error())
	case errors.Is(err, gateerrors.ErrUnauthorized):
		RespondUnauthorized(w, err.Error())
	case errors.Is(err, gateerrors.ErrDetectionFailed):
		RespondUnprocessableEntity(w, err.Error())
	case errors.Is(err, gateerrors.ErrAlreadyReconciled):
		RespondConflict(w, err.Error())
	case errors.Is(err, gateerrors.ErrConflict):
		RespondConflict(w, err.Error())
	default:
		slog.Error("Unhandled service error", "error", err)
		RespondInternalServerError(w, "An unexpected error occurred")
	}
}
