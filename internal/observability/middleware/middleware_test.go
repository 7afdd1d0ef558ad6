package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func TestWithRequestAndTraceHonoursIncomingHeaders(t *testing.T) {
	var gotReq, gotTrace string
	h := WithRequestAndTrace(PropagateRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq = RequestIDFromContext(r.Context())
		gotTrace = TraceIDFromContext(r.Context())
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("X-Request-ID", "req-1")
	req.Header.Set("X-Trace-ID", "trace-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, "req-1", gotReq)
	require.Equal(t, "trace-1", gotTrace)
	require.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))
	require.Equal(t, "trace-1", rec.Header().Get("X-Trace-ID"))
}

func TestWithRequestAndTraceGeneratesIDs(t *testing.T) {
	var gotReq string
	h := WithRequestAndTrace(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq = RequestIDFromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Len(t, gotReq, 16)
}

func TestContextHelpersOnEmptyContext(t *testing.T) {
	require.Empty(t, RequestIDFromContext(context.Background()))
	require.Empty(t, TraceIDFromContext(context.Background()))
}

func TestWithMetricsRecordsStatusAndRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(WithMetrics)
	var pattern string
	r.Get("/api/notifies/{id}", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		pattern = chi.RouteContext(req.Context()).RoutePattern()
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/notifies/42", nil))

	require.Equal(t, http.StatusTeapot, rec.Code)
	require.Equal(t, "/api/notifies/{id}", pattern)
}
