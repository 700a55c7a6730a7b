package metrics

// NoopMetrics is a no-operation implementation of Recorder
// All methods are empty and do nothing, providing zero overhead when metrics are disabled
type NoopMetrics struct{}

// Ensure NoopMetrics implements Recorder interface at compile time
var _ Recorder = (*NoopMetrics)(nil)

// NewNoopMetrics creates a new no-operation metrics recorder
func NewNoopMetrics() Recorder {
	return &NoopMetrics{}
}

// Token lifecycle - noop implementations
func (n *NoopMetrics) RecordTokenIssued(kind, grantType string) {}
func (n *NoopMetrics) RecordTokenRevoked(kind, reason string)   {}
func (n *NoopMetrics) RecordTokenRefresh(success bool)          {}
func (n *NoopMetrics) RecordCodeExchange(result string)         {}
func (n *NoopMetrics) RecordTokenValidation(result string)      {}

// Sessions - noop implementations
func (n *NoopMetrics) RecordLogin(success bool)            {}
func (n *NoopMetrics) RecordLogout()                       {}
func (n *NoopMetrics) RecordSessionRejected(reason string) {}

// Revocation cache - noop implementations
func (n *NoopMetrics) RecordRevocationCheck(backend, result string)  {}
func (n *NoopMetrics) RecordRevocationBackendError(operation string) {}
func (n *NoopMetrics) SetRevocationMode(mode string)                 {}
func (n *NoopMetrics) RecordReaperRun(purged int, err error)         {}
