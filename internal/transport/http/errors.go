package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alone-wolf/rutify/internal/domain"
	"github.com/alone-wolf/rutify/internal/dto"
	"github.com/alone-wolf/rutify/internal/observability/middleware"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, dto.StatusResponse{Status: dto.StatusOK})
}

func writeData(w http.ResponseWriter, data, meta any) {
	writeJSON(w, http.StatusOK, dto.DataResponse{Status: dto.StatusOK, Data: data, Meta: meta})
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, dto.ErrorResponse{Errors: msg})
}

// writeError maps service errors onto status codes. Storage detail is logged
// and replaced by a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error, notFoundMsg string) {
	var (
		verr *domain.ValidationError
		cerr *domain.ConflictError
	)
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		writeMessage(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeMessage(w, http.StatusUnauthorized, domain.ErrInvalidCredentials.Error())
	case errors.As(err, &cerr):
		writeMessage(w, http.StatusConflict, cerr.Error())
	case errors.Is(err, domain.ErrConflict):
		writeMessage(w, http.StatusConflict, domain.ErrConflict.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeMessage(w, http.StatusForbidden, "forbidden")
	case errors.As(err, &verr):
		writeMessage(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeMessage(w, http.StatusNotFound, notFoundMsg)
	default:
		slog.Error("request failed",
			"err", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.RequestIDFromContext(r.Context()),
			"trace_id", middleware.TraceIDFromContext(r.Context()),
		)
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}
