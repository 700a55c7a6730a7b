package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	m := Init(true)
	require.NotNil(t, m)

	metrics, ok := m.(*Metrics)
	require.True(t, ok, "Init(true) should return *Metrics")
	assert.NotNil(t, metrics.TokensIssuedTotal)
	assert.NotNil(t, metrics.RevocationChecksTotal)
	assert.NotNil(t, metrics.HTTPRequestsTotal)

	assert.Same(t, metrics, Init(true), "Init registers metrics once")
}

func TestInitNoop(t *testing.T) {
	m := Init(false)
	require.NotNil(t, m)

	_, ok := m.(*NoopMetrics)
	assert.True(t, ok, "Init(false) should return *NoopMetrics")
}

func TestTokenCounters(t *testing.T) {
	m := Init(true).(*Metrics)

	before := testutil.ToFloat64(m.TokensIssuedTotal.WithLabelValues("access", "refresh_token"))
	m.RecordTokenIssued("access", "refresh_token")
	assert.InDelta(t, before+1,
		testutil.ToFloat64(m.TokensIssuedTotal.WithLabelValues("access", "refresh_token")), 0)

	before = testutil.ToFloat64(m.TokensRefreshedTotal.WithLabelValues(resultError))
	m.RecordTokenRefresh(false)
	assert.InDelta(t, before+1, testutil.ToFloat64(m.TokensRefreshedTotal.WithLabelValues(resultError)), 0)
}

func TestSetRevocationMode(t *testing.T) {
	m := Init(true).(*Metrics)

	m.SetRevocationMode("primary")
	m.SetRevocationMode("local")

	assert.InDelta(t, 1, testutil.ToFloat64(m.RevocationMode.WithLabelValues("local")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.RevocationMode), "only the active mode is reported")
}

func TestRecordReaperRun(t *testing.T) {
	m := Init(true).(*Metrics)

	purged := testutil.ToFloat64(m.ReaperPurgedTotal)
	failures := testutil.ToFloat64(m.ReaperRunsTotal.WithLabelValues(resultError))

	m.RecordReaperRun(3, nil)
	m.RecordReaperRun(0, errors.New("boom"))

	assert.InDelta(t, purged+3, testutil.ToFloat64(m.ReaperPurgedTotal), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.ReaperLastPurged), 0)
	assert.InDelta(t, failures+1, testutil.ToFloat64(m.ReaperRunsTotal.WithLabelValues(resultError)), 0)
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := Init(true).(*Metrics)

	r := gin.New()
	r.Use(HTTPMetricsMiddleware(m))
	r.GET("/users/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	counter := m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/users/:id", "200")
	before := testutil.ToFloat64(counter)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/42", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, before+1, testutil.ToFloat64(counter), 0)

	unknown := m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "unknown", "404")
	before = testutil.ToFloat64(unknown)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.InDelta(t, before+1, testutil.ToFloat64(unknown), 0)
}

func TestHTTPMetricsMiddlewareNoop(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(HTTPMetricsMiddleware(NewNoopMetrics()))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}
