package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alone-wolf/rutify/internal/domain"
	"github.com/alone-wolf/rutify/internal/dto"

	"github.com/stretchr/testify/require"
)

func TestWriteErrorStatusAndMessage(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{name: "username conflict", err: domain.Conflict("username"), status: http.StatusConflict, message: "username already exists"},
		{name: "token conflict", err: domain.Conflict("token"), status: http.StatusConflict, message: "token already exists"},
		{name: "bare conflict", err: domain.ErrConflict, status: http.StatusConflict, message: "already exists"},
		{name: "forbidden", err: domain.ErrForbidden, status: http.StatusForbidden, message: "forbidden"},
		{name: "not found", err: domain.ErrNotFound, status: http.StatusNotFound, message: "thing not found"},
		{name: "validation", err: domain.Invalid("usage", "is required"), status: http.StatusBadRequest, message: "usage: is required"},
		{name: "storage", err: &domain.StorageError{Op: "tokens.create", Err: errors.New("disk full")}, status: http.StatusInternalServerError, message: "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/auth/tokens", nil)
			writeError(rec, req, tt.err, "thing not found")

			require.Equal(t, tt.status, rec.Code)
			var body dto.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Equal(t, tt.message, body.Errors)
		})
	}
}
