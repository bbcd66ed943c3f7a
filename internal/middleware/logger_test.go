package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func TestStructuredLogger_ReportsRoutePattern(t *testing.T) {
	var gotRoute string
	var gotStatus int

	r := chi.NewRouter()
	r.Use(NewStructuredLogger(slog.Default(), func(method, route string, status int, _ time.Duration) {
		gotRoute = route
		gotStatus = status
	}))
	r.Get("/orders/{orderID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/1001", nil))

	require.Equal(t, http.StatusTeapot, w.Code)
	require.Equal(t, "/orders/{orderID}", gotRoute)
	require.Equal(t, http.StatusTeapot, gotStatus)
}

func TestStructuredLogger_DefaultsToOK(t *testing.T) {
	var gotStatus int

	r := chi.NewRouter()
	r.Use(NewStructuredLogger(slog.Default(), func(_, _ string, status int, _ time.Duration) {
		gotStatus = status
	}))
	r.Get("/-/live", func(w http.ResponseWriter, r *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/-/live", nil))

	require.Equal(t, http.StatusOK, gotStatus)
}
