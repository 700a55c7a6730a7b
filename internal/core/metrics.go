package core

// Recorder defines the interface for recording application metrics.
// Implementations include Metrics (Prometheus-based) and NoopMetrics (no-op).
type Recorder interface {
	// Token lifecycle
	RecordTokenIssued(kind, grantType string)
	RecordTokenRevoked(kind, reason string)
	RecordTokenRefresh(success bool)
	RecordCodeExchange(result string)
	RecordTokenValidation(result string)

	// Sessions
	RecordLogin(success bool)
	RecordLogout()
	RecordSessionRejected(reason string)

	// Revocation cache
	RecordRevocationCheck(backend, result string)
	RecordRevocationBackendError(operation string)
	SetRevocationMode(mode string)
	RecordReaperRun(purged int, err error)
}
