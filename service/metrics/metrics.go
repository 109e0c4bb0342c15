package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Solana RPC Metrics
	solanaRPCCallsTotal   *prometheus.CounterVec
	solanaRPCCallDuration *prometheus.HistogramVec

	// Transfer Metrics
	transfersTotal        *prometheus.CounterVec
	transferDuration      *prometheus.HistogramVec
	tokenAccountsCreated  *prometheus.CounterVec
	submitQueueDepth      prometheus.Gauge
	submitQueueWait       prometheus.Histogram
	submissionsTotal      *prometheus.CounterVec
	signerConfiguredGauge prometheus.Gauge

	// Workflow Metrics
	transferWorkflowDuration        *prometheus.HistogramVec
	transferWorkflowExecutionsTotal *prometheus.CounterVec

	// HTTP Metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Solana RPC Metrics
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),

		// Transfer Metrics
		transfersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transfers_total",
				Help: "Total number of transfer requests by kind and outcome",
			},
			[]string{"kind", "status"},
		),
		transferDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "transfer_duration_seconds",
				Help:    "End-to-end duration of transfer requests in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"kind"},
		),
		tokenAccountsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "token_accounts_created_total",
				Help: "Total number of recipient associated token accounts created",
			},
			[]string{"mode"},
		),
		submitQueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "submit_queue_depth",
				Help: "Number of jobs waiting in the signer submission queue",
			},
		),
		submitQueueWait: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "submit_queue_wait_seconds",
				Help:    "Time a job spent waiting in the submission queue before running",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
			},
		),
		submissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transaction_submissions_total",
				Help: "Total number of signed transactions sent to the cluster",
			},
			[]string{"purpose", "status"},
		),
		signerConfiguredGauge: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "signer_configured",
				Help: "1 if a signing key was loaded at startup, 0 otherwise",
			},
		),

		// Workflow Metrics
		transferWorkflowDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "transfer_activity_duration_seconds",
				Help:    "Duration of async transfer activities in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"kind", "status"},
		),
		transferWorkflowExecutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transfer_workflow_executions_total",
				Help: "Total number of async transfer workflows started",
			},
			[]string{"kind", "status"},
		),

		// HTTP Metrics
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),

		// NATS Metrics
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// Transfer metric helpers

// RecordTransfer records the outcome of a transfer request.
// Status is "success" or the error kind that failed it.
func (m *Metrics) RecordTransfer(kind, status string, duration float64) {
	m.transfersTotal.WithLabelValues(kind, status).Inc()
	m.transferDuration.WithLabelValues(kind).Observe(duration)
}

// RecordTokenAccountCreated records creation of a recipient token account.
func (m *Metrics) RecordTokenAccountCreated(mode string) {
	m.tokenAccountsCreated.WithLabelValues(mode).Inc()
}

// RecordSubmission records one signed transaction sent to the cluster.
func (m *Metrics) RecordSubmission(purpose, status string) {
	m.submissionsTotal.WithLabelValues(purpose, status).Inc()
}

// SetQueueDepth sets the current submission queue depth.
func (m *Metrics) SetQueueDepth(depth int) {
	m.submitQueueDepth.Set(float64(depth))
}

// RecordQueueWait records how long a job waited before the worker picked it up.
func (m *Metrics) RecordQueueWait(duration float64) {
	m.submitQueueWait.Observe(duration)
}

// SetSignerConfigured exports whether signing is enabled.
func (m *Metrics) SetSignerConfigured(configured bool) {
	if configured {
		m.signerConfiguredGauge.Set(1)
		return
	}
	m.signerConfiguredGauge.Set(0)
}

// Workflow metric helpers

// RecordWorkflowStarted records an async transfer workflow being started.
func (m *Metrics) RecordWorkflowStarted(kind, status string) {
	m.transferWorkflowExecutionsTotal.WithLabelValues(kind, status).Inc()
}

// RecordActivityDuration records transfer activity execution duration.
func (m *Metrics) RecordActivityDuration(kind, status string, duration float64) {
	m.transferWorkflowDuration.WithLabelValues(kind, status).Observe(duration)
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

// Helper functions

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
