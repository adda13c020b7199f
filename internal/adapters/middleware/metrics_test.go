package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/IANDYI/vitals-service/internal/adapters/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsMiddleware_LabelsByPattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("PATCH /alerts/{alert_id}/acknowledge", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	handler := middleware.MetricsMiddleware(mux)

	for _, id := range []string{"a", "b", "c"} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("PATCH", "/alerts/"+id+"/acknowledge", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	}

	expected := `
# HELP http_requests_total Total number of HTTP requests
# TYPE http_requests_total counter
http_requests_total{method="PATCH",path="PATCH /alerts/{alert_id}/acknowledge",status="404"} 3
`
	err := testutil.GatherAndCompare(prometheus.DefaultGatherer, strings.NewReader(expected), "http_requests_total")
	require.NoError(t, err)
}

func TestMetricsMiddleware_ExposesUnderlyingWriter(t *testing.T) {
	handler := middleware.MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// the recorder supports Flush only through Unwrap
		assert.NoError(t, http.NewResponseController(w).Flush())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/ws", nil))
	assert.True(t, w.Flushed)
}
