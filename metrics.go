package authkit

import "sync/atomic"

// MetricID identifies one in-process counter.
type MetricID uint8

const (
	// MetricLoginSuccess counts logins that returned a token pair.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts logins denied for bad credentials.
	MetricLoginFailure
	// MetricRenewSuccess counts refresh-token renewals that issued a
	// fresh access token.
	MetricRenewSuccess
	// MetricRenewFailure counts denied renewals (all causes folded).
	MetricRenewFailure
	// MetricSessionCreated counts session records created at login.
	MetricSessionCreated
	// MetricSessionInvalidated counts explicit session revocations.
	MetricSessionInvalidated
	// MetricIssuanceFault counts signing failures after successful
	// authentication. These are server faults, worth alerting on.
	MetricIssuanceFault
	// MetricConfigFault counts verifications aborted because the signing
	// key was unavailable.
	MetricConfigFault

	metricIDCount
)

// CounterDef names a counter for exporters.
type CounterDef struct {
	ID   MetricID
	Name string
	Help string
}

// CounterDefs is the stable export surface consumed by the OTel bridge.
var CounterDefs = []CounterDef{
	{MetricLoginSuccess, "authkit_login_success_total", "Logins that returned a token pair."},
	{MetricLoginFailure, "authkit_login_failure_total", "Logins denied for invalid credentials."},
	{MetricRenewSuccess, "authkit_renew_success_total", "Refresh renewals that issued a fresh access token."},
	{MetricRenewFailure, "authkit_renew_failure_total", "Denied refresh renewals."},
	{MetricSessionCreated, "authkit_session_created_total", "Session records created at login."},
	{MetricSessionInvalidated, "authkit_session_invalidated_total", "Explicit session revocations."},
	{MetricIssuanceFault, "authkit_issuance_fault_total", "Token signing failures after successful authentication."},
	{MetricConfigFault, "authkit_config_fault_total", "Verifications aborted by an unavailable signing key."},
}

// Metrics is a fixed-size set of lock-free counters. A nil *Metrics is
// a valid no-op sink.
type Metrics struct {
	counters [metricIDCount]atomic.Uint64
}

// NewMetrics returns an empty counter set.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Inc adds one to the counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id >= metricIDCount {
		return
	}
	m.counters[id].Add(1)
}

// Value reads a single counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.counters[id].Load()
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// Snapshot copies every counter. Counters advance independently, so the
// snapshot is per-counter accurate, not globally transactional.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{Counters: make(map[MetricID]uint64, int(metricIDCount))}
	if m == nil {
		return s
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = m.counters[id].Load()
	}
	return s
}
