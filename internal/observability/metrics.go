package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the search client and the daemon.
type Metrics struct {
	registry *prometheus.Registry

	SessionsStarted  prometheus.Counter
	SessionsFinished *prometheus.CounterVec
	ClientActive     prometheus.Gauge
	Frames           *prometheus.CounterVec
	DecodeErrors     prometheus.Counter

	AnalysisRuns     *prometheus.CounterVec
	AnalysisDuration *prometheus.HistogramVec
	ActiveSession    *prometheus.GaugeVec
	TransportErrs    *prometheus.CounterVec
	ModelUsage       *prometheus.CounterVec
	ModelFailures    *prometheus.CounterVec
}

// NewMetrics constructs a metrics registry with client and daemon collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	started := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "searchrank_client_sessions_started_total",
		Help: "Search sessions started by the client",
	})

	finished := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "searchrank_client_sessions_finished_total",
		Help: "Search sessions finished by outcome (complete, error, transport_error, superseded)",
	}, []string{"outcome"})

	clientActive := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "searchrank_client_active_sessions",
		Help: "Client sessions still waiting for a terminal frame",
	})

	frames := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "searchrank_client_frames_total",
		Help: "Decoded frames received by the client, by event type",
	}, []string{"type"})

	decodeErrs := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "searchrank_client_decode_errors_total",
		Help: "Frames the client could not decode",
	})

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "searchrank_analysis_runs_total",
		Help: "Analysis pipeline runs by outcome",
	}, []string{"outcome"})

	durs := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "searchrank_analysis_duration_seconds",
		Help:    "Analysis pipeline duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	active := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "searchrank_transport_active_sessions",
		Help: "Active streaming sessions by transport",
	}, []string{"transport"})

	trErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "searchrank_transport_errors_total",
		Help: "Transport-level errors (handler/streaming) by transport and reason",
	}, []string{"transport", "reason"})

	modelUsage := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "searchrank_model_usage_total",
		Help: "Model calls by analysis role",
	}, []string{"role", "model"})

	modelFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "searchrank_model_failures_total",
		Help: "Model failures by analysis role and model",
	}, []string{"role", "model"})

	reg.MustRegister(started, finished, clientActive, frames, decodeErrs,
		runs, durs, active, trErrors, modelUsage, modelFailures)

	return &Metrics{
		registry:         reg,
		SessionsStarted:  started,
		SessionsFinished: finished,
		ClientActive:     clientActive,
		Frames:           frames,
		DecodeErrors:     decodeErrs,
		AnalysisRuns:     runs,
		AnalysisDuration: durs,
		ActiveSession:    active,
		TransportErrs:    trErrors,
		ModelUsage:       modelUsage,
		ModelFailures:    modelFailures,
	}
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordSessionStarted counts a new client session.
func (m *Metrics) RecordSessionStarted() {
	if m == nil {
		return
	}
	m.SessionsStarted.Inc()
	m.ClientActive.Inc()
}

// RecordSessionFinished counts a session that reached a terminal condition.
func (m *Metrics) RecordSessionFinished(outcome string) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.SessionsFinished.WithLabelValues(outcome).Inc()
	m.ClientActive.Dec()
}

// RecordFrame counts a decoded frame by its type tag.
func (m *Metrics) RecordFrame(eventType string) {
	if m == nil {
		return
	}
	if eventType == "" {
		eventType = "unknown"
	}
	m.Frames.WithLabelValues(eventType).Inc()
}

// RecordDecodeError counts an undecodable frame.
func (m *Metrics) RecordDecodeError() {
	if m == nil {
		return
	}
	m.DecodeErrors.Inc()
}

// RecordAnalysisRun records count and duration of one pipeline run.
func (m *Metrics) RecordAnalysisRun(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.AnalysisRuns.WithLabelValues(outcome).Inc()
	m.AnalysisDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// IncActiveSessions increments the active session gauge.
func (m *Metrics) IncActiveSessions(transport string) {
	if m == nil {
		return
	}
	m.ActiveSession.WithLabelValues(transport).Inc()
}

// DecActiveSessions decrements the active session gauge.
func (m *Metrics) DecActiveSessions(transport string) {
	if m == nil {
		return
	}
	m.ActiveSession.WithLabelValues(transport).Dec()
}

// RecordTransportError records a transport-level error.
func (m *Metrics) RecordTransportError(transport, reason string) {
	if m == nil {
		return
	}
	if transport == "" {
		transport = "unknown"
	}
	if reason == "" {
		reason = "unknown"
	}
	m.TransportErrs.WithLabelValues(transport, reason).Inc()
}

// RecordModelUsage increments usage counter for a role/model selection.
func (m *Metrics) RecordModelUsage(role, model string) {
	if m == nil {
		return
	}
	if role == "" {
		role = "unknown"
	}
	if model == "" {
		model = "unknown"
	}
	m.ModelUsage.WithLabelValues(role, model).Inc()
}

// RecordModelFailure increments failure counter for a role/model selection.
func (m *Metrics) RecordModelFailure(role, model string) {
	if m == nil {
		return
	}
	if role == "" {
		role = "unknown"
	}
	if model == "" {
		model = "unknown"
	}
	m.ModelFailures.WithLabelValues(role, model).Inc()
}
