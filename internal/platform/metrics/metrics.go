package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// Metrics holds the Prometheus collectors for the saga. A nil *Metrics is
// valid and records nothing, which keeps unit tests free of registry setup.
type Metrics struct {
	PolicyTransitions   *prometheus.CounterVec
	PaymentFastPath     prometheus.Counter
	MessagesPublished   *prometheus.CounterVec
	MessagesConsumed    *prometheus.CounterVec
	HandlerDuration     *prometheus.HistogramVec
	OutboxRelayed       prometheus.Counter
	OutboxFailures      prometheus.Counter
	OutboxLag           prometheus.Histogram
	PricingCalculations prometheus.Counter
	PricingRulesApplied prometheus.Histogram
	RuleCacheLookups    *prometheus.CounterVec
	SettlementOutcomes  *prometheus.CounterVec
}

// New registers all collectors with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers all collectors with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PolicyTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "surety_policy_transitions_total",
			Help: "Policy state machine operations by operation and outcome",
		}, []string{"operation", "outcome"}),
		PaymentFastPath: f.NewCounter(prometheus.CounterOpts{
			Name: "surety_policy_payment_fast_path_total",
			Help: "Payments that activated a policy directly from draft",
		}),
		MessagesPublished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "surety_messages_published_total",
			Help: "Messages published to the bus by destination and outcome",
		}, []string{"destination", "outcome"}),
		MessagesConsumed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "surety_messages_consumed_total",
			Help: "Messages consumed from the bus by destination and outcome (ack or nack)",
		}, []string{"destination", "outcome"}),
		HandlerDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "surety_message_handler_duration_seconds",
			Help:    "Duration of bus message handlers",
			Buckets: durationBuckets,
		}, []string{"destination"}),
		OutboxRelayed: f.NewCounter(prometheus.CounterOpts{
			Name: "surety_outbox_relayed_total",
			Help: "Outbox entries published and marked processed",
		}),
		OutboxFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "surety_outbox_relay_failures_total",
			Help: "Outbox entries that failed to publish and remain pending",
		}),
		OutboxLag: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "surety_outbox_lag_seconds",
			Help:    "Time between outbox enqueue and publish",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		PricingCalculations: f.NewCounter(prometheus.CounterOpts{
			Name: "surety_pricing_calculations_total",
			Help: "Premium calculations performed by the rule engine",
		}),
		PricingRulesApplied: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "surety_pricing_rules_applied",
			Help:    "Number of rules applied per calculation",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
		}),
		RuleCacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "surety_pricing_rule_cache_lookups_total",
			Help: "Rule cache lookups by result (hit, miss, bypass, error)",
		}, []string{"result"}),
		SettlementOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "surety_settlement_outcomes_total",
			Help: "Settlement consumer outcomes (processed, duplicate, echo, failed)",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) IncrementTransition(operation, outcome string) {
	if m == nil {
		return
	}
	m.PolicyTransitions.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) IncrementPaymentFastPath() {
	if m == nil {
		return
	}
	m.PaymentFastPath.Inc()
}

func (m *Metrics) IncrementPublished(destination, outcome string) {
	if m == nil {
		return
	}
	m.MessagesPublished.WithLabelValues(destination, outcome).Inc()
}

// ObserveConsumed records a handled message and its duration.
// Call with time.Now() taken before the handler ran.
func (m *Metrics) ObserveConsumed(destination, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.MessagesConsumed.WithLabelValues(destination, outcome).Inc()
	m.HandlerDuration.WithLabelValues(destination).Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveRelayed(createdAt time.Time) {
	if m == nil {
		return
	}
	m.OutboxRelayed.Inc()
	m.OutboxLag.Observe(time.Since(createdAt).Seconds())
}

func (m *Metrics) IncrementRelayFailure() {
	if m == nil {
		return
	}
	m.OutboxFailures.Inc()
}

func (m *Metrics) ObserveCalculation(rulesApplied int) {
	if m == nil {
		return
	}
	m.PricingCalculations.Inc()
	m.PricingRulesApplied.Observe(float64(rulesApplied))
}

func (m *Metrics) IncrementRuleCache(result string) {
	if m == nil {
		return
	}
	m.RuleCacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementSettlement(outcome string) {
	if m == nil {
		return
	}
	m.SettlementOutcomes.WithLabelValues(outcome).Inc()
}
