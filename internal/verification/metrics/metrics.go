package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification workflow.
type Metrics struct {
	// Sessions started by tier
	SessionsStarted *prometheus.CounterVec

	// Step transitions by step and resulting status
	StepTransitions *prometheus.CounterVec

	// Submissions rejected by the validator, by step
	ValidationFailures *prometheus.CounterVec

	// Final decisions by decision and tier
	Outcomes *prometheus.CounterVec

	// Sessions ended without a decision, by status (expired, abandoned)
	SessionsEnded *prometheus.CounterVec

	// External verifier call latency by operation
	GatewayLatency *prometheus.HistogramVec

	// Optimistic concurrency conflicts on save
	Conflicts prometheus.Counter
}

// New registers the verification metrics with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the verification metrics with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SessionsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kycflow_sessions_started_total",
			Help: "Total verification sessions started by tier",
		}, []string{"tier"}),

		StepTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kycflow_step_transitions_total",
			Help: "Step status changes by step and status",
		}, []string{"step", "status"}),

		ValidationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kycflow_validation_failures_total",
			Help: "Step submissions rejected by validation",
		}, []string{"step"}),

		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kycflow_outcomes_total",
			Help: "Verification outcomes by decision and tier",
		}, []string{"decision", "tier"}),

		SessionsEnded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kycflow_sessions_ended_total",
			Help: "Sessions ended without a decision by status",
		}, []string{"status"}),

		GatewayLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kycflow_gateway_duration_seconds",
			Help:    "Duration of external verifier calls by operation",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation"}), // operation: "submit", "poll"

		Conflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "kycflow_session_conflicts_total",
			Help: "Session saves rejected because of a concurrent update",
		}),
	}
}

func (m *Metrics) IncrementSessionsStarted(tier string) {
	if m != nil {
		m.SessionsStarted.WithLabelValues(tier).Inc()
	}
}

func (m *Metrics) IncrementStepTransition(step, status string) {
	if m != nil {
		m.StepTransitions.WithLabelValues(step, status).Inc()
	}
}

func (m *Metrics) IncrementValidationFailure(step string) {
	if m != nil {
		m.ValidationFailures.WithLabelValues(step).Inc()
	}
}

func (m *Metrics) IncrementOutcome(decision, tier string) {
	if m != nil {
		m.Outcomes.WithLabelValues(decision, tier).Inc()
	}
}

func (m *Metrics) IncrementSessionEnded(status string) {
	if m != nil {
		m.SessionsEnded.WithLabelValues(status).Inc()
	}
}

// ObserveGatewayLatency records how long an operation that may call the
// external verifier took.
func (m *Metrics) ObserveGatewayLatency(operation string, d time.Duration) {
	if m != nil {
		m.GatewayLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementConflict() {
	if m != nil {
		m.Conflicts.Inc()
	}
}
