// Package metrics provides Prometheus metrics for the moderation service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the moderation service.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	enabled        bool
	constLabels    map[string]string
	registry       prometheus.Registerer

	// Scoring pipeline
	scorerRequests   *prometheus.CounterVec
	scorerLatency    *prometheus.HistogramVec
	scoresIngested   *prometheus.CounterVec
	ingestErrors     *prometheus.CounterVec
	commentsScored   prometheus.Counter
	webhookDuplicate prometheus.Counter

	// Moderation outcomes
	decisions     *prometheus.CounterVec
	ruleOutcomes  *prometheus.CounterVec
	hookFailures  prometheus.Counter
	resendSweeps  prometheus.Counter
	resendResults *prometheus.CounterVec

	// Task runner
	queueSize          *prometheus.GaugeVec
	queueCapacity      *prometheus.GaugeVec
	queueEnqueued      *prometheus.CounterVec
	queueDequeued      *prometheus.CounterVec
	queueEnqueueErrors *prometheus.CounterVec
	taskProcessed      *prometheus.CounterVec
	taskLatency        *prometheus.HistogramVec
	taskRetries        *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "moderator",
		subsystem:      "pipeline",
		latencyBuckets: prometheus.DefBuckets,
		enabled:        true,
		constLabels:    make(map[string]string),
		registry:       prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.latencyBuckets,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	auto := promauto.With(m.registry)

	m.scorerRequests = auto.NewCounterVec(m.counterOpts(
		"scorer_requests_total", "Comments sent to scorers by outcome"),
		[]string{"scorer", "outcome"})
	m.scorerLatency = auto.NewHistogramVec(m.histogramOpts(
		"scorer_request_duration_seconds", "Time spent in a scorer shim call"),
		[]string{"scorer"})
	m.scoresIngested = auto.NewCounterVec(m.counterOpts(
		"scores_ingested_total", "Score payloads ingested"),
		[]string{"scorer"})
	m.ingestErrors = auto.NewCounterVec(m.counterOpts(
		"ingest_errors_total", "Score payloads that failed ingestion"),
		[]string{"reason"})
	m.commentsScored = auto.NewCounter(m.counterOpts(
		"comments_scored_total", "Comments whose scoring completed"))
	m.webhookDuplicate = auto.NewCounter(m.counterOpts(
		"webhook_duplicates_total", "Repeated score deliveries acknowledged without processing"))

	m.decisions = auto.NewCounterVec(m.counterOpts(
		"decisions_total", "Recorded moderation decisions"),
		[]string{"status", "source"})
	m.ruleOutcomes = auto.NewCounterVec(m.counterOpts(
		"rule_resolutions_total", "Rule engine outcomes"),
		[]string{"outcome"})
	m.hookFailures = auto.NewCounter(m.counterOpts(
		"moderated_hook_failures_total", "Moderated hooks that returned an error"))
	m.resendSweeps = auto.NewCounter(m.counterOpts(
		"resend_sweeps_total", "Resend sweeps run"))
	m.resendResults = auto.NewCounterVec(m.counterOpts(
		"resend_comments_total", "Comments re-dispatched by the resend sweep"),
		[]string{"outcome"})

	m.queueSize = auto.NewGaugeVec(m.gaugeOpts(
		"queue_size", "Tasks waiting in a queue"),
		[]string{"queue"})
	m.queueCapacity = auto.NewGaugeVec(m.gaugeOpts(
		"queue_capacity", "Maximum tasks a queue holds"),
		[]string{"queue"})
	m.queueEnqueued = auto.NewCounterVec(m.counterOpts(
		"queue_enqueued_total", "Tasks enqueued"),
		[]string{"queue"})
	m.queueDequeued = auto.NewCounterVec(m.counterOpts(
		"queue_dequeued_total", "Tasks dequeued"),
		[]string{"queue"})
	m.queueEnqueueErrors = auto.NewCounterVec(m.counterOpts(
		"queue_enqueue_errors_total", "Tasks rejected by a queue"),
		[]string{"queue", "reason"})
	m.taskProcessed = auto.NewCounterVec(m.counterOpts(
		"tasks_processed_total", "Tasks handled by workers"),
		[]string{"kind", "outcome"})
	m.taskLatency = auto.NewHistogramVec(m.histogramOpts(
		"task_duration_seconds", "Time spent handling a task"),
		[]string{"kind"})
	m.taskRetries = auto.NewCounterVec(m.counterOpts(
		"task_retries_total", "Tasks re-enqueued after a failure"),
		[]string{"kind"})

	m.httpRequests = auto.NewCounterVec(m.counterOpts(
		"http_requests_total", "HTTP requests by endpoint, method and status"),
		[]string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts(
		"http_request_duration_seconds", "HTTP request duration"),
		[]string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(m.counterOpts(
		"errors_by_component_total", "Errors by component and type"),
		[]string{"component", "error_type"})
}

func active() bool {
	return globalManager != nil && globalManager.enabled
}

// RecordScorerRequest counts one shim call and its duration in seconds.
func RecordScorerRequest(scorer, outcome string, seconds float64) {
	if !active() {
		return
	}
	globalManager.scorerRequests.WithLabelValues(scorer, outcome).Inc()
	globalManager.scorerLatency.WithLabelValues(scorer).Observe(seconds)
}

// RecordScoreIngested counts a score payload stored for scorer.
func RecordScoreIngested(scorer string) {
	if active() {
		globalManager.scoresIngested.WithLabelValues(scorer).Inc()
	}
}

// RecordIngestError counts a failed ingestion.
func RecordIngestError(reason string) {
	if active() {
		globalManager.ingestErrors.WithLabelValues(reason).Inc()
	}
}

// RecordCommentScored counts a comment whose scoring completed.
func RecordCommentScored() {
	if active() {
		globalManager.commentsScored.Inc()
	}
}

// RecordWebhookDuplicate counts a repeated delivery.
func RecordWebhookDuplicate() {
	if active() {
		globalManager.webhookDuplicate.Inc()
	}
}

// RecordDecision counts a recorded moderation decision.
func RecordDecision(status, source string) {
	if active() {
		globalManager.decisions.WithLabelValues(status, source).Inc()
	}
}

// RecordRuleOutcome counts a rule engine result.
func RecordRuleOutcome(outcome string) {
	if active() {
		globalManager.ruleOutcomes.WithLabelValues(outcome).Inc()
	}
}

// RecordHookFailure counts a failed moderated hook.
func RecordHookFailure() {
	if active() {
		globalManager.hookFailures.Inc()
	}
}

// RecordResendSweep counts a resend sweep.
func RecordResendSweep() {
	if active() {
		globalManager.resendSweeps.Inc()
	}
}

// RecordResendResult counts one comment handled by a sweep.
func RecordResendResult(outcome string) {
	if active() {
		globalManager.resendResults.WithLabelValues(outcome).Inc()
	}
}

// UpdateQueueSize sets the current depth of queue.
func UpdateQueueSize(queue string, size int) {
	if active() {
		globalManager.queueSize.WithLabelValues(queue).Set(float64(size))
	}
}

// UpdateQueueCapacity sets the capacity of queue.
func UpdateQueueCapacity(queue string, capacity int) {
	if active() {
		globalManager.queueCapacity.WithLabelValues(queue).Set(float64(capacity))
	}
}

// RecordQueueEnqueue counts an accepted task.
func RecordQueueEnqueue(queue string) {
	if active() {
		globalManager.queueEnqueued.WithLabelValues(queue).Inc()
	}
}

// RecordQueueDequeue counts a task handed to a worker.
func RecordQueueDequeue(queue string) {
	if active() {
		globalManager.queueDequeued.WithLabelValues(queue).Inc()
	}
}

// RecordQueueEnqueueError counts a rejected task.
func RecordQueueEnqueueError(queue, reason string) {
	if active() {
		globalManager.queueEnqueueErrors.WithLabelValues(queue, reason).Inc()
	}
}

// RecordTaskProcessed counts a handled task and its duration in seconds.
func RecordTaskProcessed(kind, outcome string, seconds float64) {
	if !active() {
		return
	}
	globalManager.taskProcessed.WithLabelValues(kind, outcome).Inc()
	globalManager.taskLatency.WithLabelValues(kind).Observe(seconds)
}

// RecordTaskRetry counts a re-enqueued task.
func RecordTaskRetry(kind string) {
	if active() {
		globalManager.taskRetries.WithLabelValues(kind).Inc()
	}
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if active() {
		globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

// RecordHTTPRequestDuration records HTTP request duration in seconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if active() {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
	}
}

// RecordErrorByComponent records errors by component.
func RecordErrorByComponent(component, errorType string) {
	if active() {
		globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
	}
}

// GetRegistry returns the custom registry for metrics exposure.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
