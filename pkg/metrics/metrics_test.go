package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndServe(t *testing.T) {
	registry := prometheus.NewRegistry()
	Register(registry)
	Register(registry)
	assert.Equal(t, registry, GetRegisterer())

	SessionRejected.WithLabelValues(RejectReasonLimit).Inc()
	assert.GreaterOrEqual(t, testutil.ToFloat64(SessionRejected.WithLabelValues(RejectReasonLimit)), 1.0)

	rec := httptest.NewRecorder()
	Handler(registry).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gamepad_session_rejected_total")
}
