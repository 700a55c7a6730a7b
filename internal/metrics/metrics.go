package metrics

import (
	"sync"

	"github.com/go-authgate/ssocenter/internal/core"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is the metrics interface used by every component.
type Recorder = core.Recorder

// Ensure Metrics implements Recorder interface at compile time
var _ Recorder = (*Metrics)(nil)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Token Metrics
	TokensIssuedTotal     *prometheus.CounterVec
	TokensRevokedTotal    *prometheus.CounterVec
	TokensRefreshedTotal  *prometheus.CounterVec
	CodeExchangesTotal    *prometheus.CounterVec
	TokenValidationsTotal *prometheus.CounterVec

	// Session Metrics
	LoginsTotal           *prometheus.CounterVec
	LogoutsTotal          prometheus.Counter
	SessionsRejectedTotal *prometheus.CounterVec

	// Revocation Metrics
	RevocationChecksTotal *prometheus.CounterVec
	RevocationErrorsTotal *prometheus.CounterVec
	RevocationMode        *prometheus.GaugeVec
	ReaperRunsTotal       *prometheus.CounterVec
	ReaperPurgedTotal     prometheus.Counter
	ReaperLastPurged      prometheus.Gauge

	// HTTP Request Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Init initializes metrics based on enabled flag
// If enabled=true, returns Prometheus-based Metrics
// If enabled=false, returns NoopMetrics (zero overhead)
// Uses sync.Once to ensure Prometheus metrics are only registered once
func Init(enabled bool) Recorder {
	if !enabled {
		return NewNoopMetrics()
	}

	once.Do(func() {
		defaultMetrics = initMetrics()
	})
	return defaultMetrics
}

// initMetrics creates and registers all Prometheus metrics
func initMetrics() *Metrics {
	return &Metrics{
		TokensIssuedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_tokens_issued_total",
				Help: "Total number of tokens issued",
			},
			[]string{"kind", "grant_type"}, // kind: authorization_code, access, refresh
		),
		TokensRevokedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_tokens_revoked_total",
				Help: "Total number of tokens revoked",
			},
			[]string{"kind", "reason"}, // reason: exchange, rotation, user_request
		),
		TokensRefreshedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_tokens_refreshed_total",
				Help: "Total number of refresh token rotations",
			},
			[]string{"result"}, // success, error
		),
		CodeExchangesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_code_exchanges_total",
				Help: "Total number of authorization code exchanges",
			},
			[]string{"result"}, // success, invalid_client, invalid_grant, replay, error
		),
		TokenValidationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_token_validations_total",
				Help: "Total number of access token validations",
			},
			[]string{"result"}, // valid, invalid, expired, revoked, error
		),

		LoginsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_logins_total",
				Help: "Total number of login attempts",
			},
			[]string{"result"},
		),
		LogoutsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "auth_logouts_total",
				Help: "Total number of logouts",
			},
		),
		SessionsRejectedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessions_rejected_total",
				Help: "Total number of sessions rejected during validation",
			},
			[]string{"reason"}, // missing_claims, revoked
		),

		RevocationChecksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "revocation_checks_total",
				Help: "Total number of revocation lookups",
			},
			[]string{"backend", "result"}, // result: revoked, clear, fail_open, fail_closed
		),
		RevocationErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "revocation_backend_errors_total",
				Help: "Total number of shared revocation backend failures",
			},
			[]string{"operation"}, // get, set
		),
		RevocationMode: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "revocation_cache_mode",
				Help: "Revocation cache backend in use (1 for the active mode)",
			},
			[]string{"mode"},
		),
		ReaperRunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "revocation_reaper_runs_total",
				Help: "Total number of reaper passes",
			},
			[]string{"result"},
		),
		ReaperPurgedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "revocation_reaper_purged_total",
				Help: "Total number of expired local revocations purged",
			},
		),
		ReaperLastPurged: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "revocation_reaper_last_purged",
				Help: "Entries purged by the most recent reaper pass",
			},
		),

		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of HTTP requests being processed",
			},
		),
	}
}

func resultLabel(success bool) string {
	if success {
		return resultSuccess
	}
	return resultError
}

// RecordTokenIssued records token issuance
func (m *Metrics) RecordTokenIssued(kind, grantType string) {
	m.TokensIssuedTotal.WithLabelValues(kind, grantType).Inc()
}

// RecordTokenRevoked records token revocation
func (m *Metrics) RecordTokenRevoked(kind, reason string) {
	m.TokensRevokedTotal.WithLabelValues(kind, reason).Inc()
}

func (m *Metrics) RecordTokenRefresh(success bool) {
	m.TokensRefreshedTotal.WithLabelValues(resultLabel(success)).Inc()
}

func (m *Metrics) RecordCodeExchange(result string) {
	m.CodeExchangesTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordTokenValidation(result string) {
	m.TokenValidationsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordLogin(success bool) {
	m.LoginsTotal.WithLabelValues(resultLabel(success)).Inc()
}

func (m *Metrics) RecordLogout() {
	m.LogoutsTotal.Inc()
}

func (m *Metrics) RecordSessionRejected(reason string) {
	m.SessionsRejectedTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordRevocationCheck(backend, result string) {
	m.RevocationChecksTotal.WithLabelValues(backend, result).Inc()
}

func (m *Metrics) RecordRevocationBackendError(operation string) {
	m.RevocationErrorsTotal.WithLabelValues(operation).Inc()
}

// SetRevocationMode marks mode as the active revocation backend
func (m *Metrics) SetRevocationMode(mode string) {
	m.RevocationMode.Reset()
	m.RevocationMode.WithLabelValues(mode).Set(1)
}

// RecordReaperRun records one reaper pass
func (m *Metrics) RecordReaperRun(purged int, err error) {
	if err != nil {
		m.ReaperRunsTotal.WithLabelValues(resultError).Inc()
		return
	}
	m.ReaperRunsTotal.WithLabelValues(resultSuccess).Inc()
	m.ReaperPurgedTotal.Add(float64(purged))
	m.ReaperLastPurged.Set(float64(purged))
}
