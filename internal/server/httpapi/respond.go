package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/and161185/bookshelf/internal/errs"
	"github.com/and161185/bookshelf/internal/gateway"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the {statusCode, message, error} body clients expect.
func writeError(w http.ResponseWriter, status int, msgs ...string) {
	if len(msgs) == 0 {
		msgs = []string{http.StatusText(status)}
	}
	writeJSON(w, status, gateway.APIError{
		StatusCode: status,
		Message:    msgs,
		Error:      http.StatusText(status),
	})
}

// fail maps a service error onto a status code.
func fail(w http.ResponseWriter, log *zap.Logger, err error) {
	var e *errs.Error
	switch {
	case errors.As(err, &e) && e.Kind == errs.KindValidation:
		msgs := e.Details
		if len(msgs) == 0 {
			msgs = []string{e.Message}
		}
		writeError(w, http.StatusBadRequest, msgs...)
	case errors.Is(err, errs.ErrNotFound):
		writeError(w, http.StatusNotFound)
	case errors.Is(err, errs.ErrVersionConflict):
		writeError(w, http.StatusPreconditionFailed, "version is not current")
	case errors.Is(err, errs.ErrPreconditionRequired):
		writeError(w, http.StatusPreconditionRequired, "If-Match header is required")
	case errors.Is(err, errs.ErrAlreadyExists):
		writeError(w, http.StatusUnprocessableEntity, "isbn already exists")
	case errors.Is(err, errs.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized)
	case errors.Is(err, errs.ErrForbidden):
		writeError(w, http.StatusForbidden)
	default:
		log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal")
	}
}
