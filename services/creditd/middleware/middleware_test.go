package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"ghostcredit/observability"
)

func TestTokenAuth(t *testing.T) {
	handler := NewTokenAuth([]string{" alpha ", "beta"}, false, nil).Middleware(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/accounts", nil)
	require.Equal(t, http.StatusUnauthorized, serve(handler, req))

	req.Header.Set("Authorization", "Bearer gamma")
	require.Equal(t, http.StatusUnauthorized, serve(handler, req))

	req.Header.Set("Authorization", "bearer alpha")
	require.Equal(t, http.StatusOK, serve(handler, req))

	anon := NewTokenAuth(nil, true, nil).Middleware(okHandler())
	require.Equal(t, http.StatusOK, serve(anon, httptest.NewRequest(http.MethodGet, "/", nil)))
}

func TestRequestIDPropagates(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, "abc-123", seen)
	require.Equal(t, "abc-123", res.Header().Get(HeaderRequestID))

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Len(t, seen, 36)
	require.Equal(t, seen, res.Header().Get(HeaderRequestID))
}

func TestObservabilityLabelsRoutePattern(t *testing.T) {
	obs := NewObservability(ObservabilityConfig{LogRequests: true}, nil)
	r := chi.NewRouter()
	r.Use(obs.Middleware)
	r.Get("/v1/accounts/{address}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	counter := observability.API().Errors().WithLabelValues("/v1/accounts/{address}", http.MethodGet, "404")
	before := testutil.ToFloat64(counter)
	require.Equal(t, http.StatusNotFound, serve(r, httptest.NewRequest(http.MethodGet, "/v1/accounts/ghost1xyz", nil)))
	require.Equal(t, before+1, testutil.ToFloat64(counter))
}
