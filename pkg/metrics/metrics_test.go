package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordFlagEvaluation("enabled")
		m.RecordAssignment("new")
		m.RecordAssignmentUpsertFailure()
		m.RecordEvaluationLogFailure()
		m.RecordEvaluationLogsPruned(3)
		m.RecordDBQuery("get_flag", time.Millisecond, errors.New("boom"))
		m.RecordCacheHit("flag")
		m.RecordCacheMiss("flag")
	})
}

func TestRecorders(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.RecordFlagEvaluation("enabled")
	m.RecordFlagEvaluation("enabled")
	m.RecordFlagEvaluation("not_in_rollout")
	assert.Equal(t, float64(2), testutil.ToFloat64(m.FlagEvaluations.WithLabelValues("enabled")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FlagEvaluations.WithLabelValues("not_in_rollout")))

	m.RecordAssignment("existing")
	m.RecordAssignment("new")
	m.RecordAssignment("new")
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ExperimentAssignments.WithLabelValues("new")))

	m.RecordAssignmentUpsertFailure()
	m.RecordEvaluationLogFailure()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AssignmentUpsertFailure))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EvaluationLogFailures))

	m.RecordEvaluationLogsPruned(10)
	m.RecordEvaluationLogsPruned(0)
	assert.Equal(t, float64(10), testutil.ToFloat64(m.EvaluationLogsPruned))

	m.RecordDBQuery("get_flag", 2*time.Millisecond, nil)
	m.RecordDBQuery("get_flag", 3*time.Millisecond, errors.New("timeout"))
	assert.Equal(t, 1, testutil.CollectAndCount(m.DBQueryDuration))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.StorageErrors.WithLabelValues("get_flag")))

	m.RecordCacheHit("flag")
	m.RecordCacheMiss("variants")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheHits.WithLabelValues("flag")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheMisses.WithLabelValues("variants")))
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/api/v1/experiments/:id", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	for _, id := range []string{"a", "b", "c"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/experiments/"+id, nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	assert.Equal(t, float64(3), testutil.ToFloat64(
		m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/experiments/:id", "200")))

	expected := `
# HELP http_requests_total Total number of HTTP requests
# TYPE http_requests_total counter
http_requests_total{method="GET",path="/api/v1/experiments/:id",status="200"} 3
`
	assert.NoError(t, testutil.CollectAndCompare(m.HTTPRequestsTotal, strings.NewReader(expected)))
}

func TestNewWithRegistry_Isolated(t *testing.T) {
	assert.NotPanics(t, func() {
		NewWithRegistry(prometheus.NewRegistry())
		NewWithRegistry(prometheus.NewRegistry())
	})
}
