package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ScoutMetrics exposes counters/histograms for suggestion, feedback and
// external dependency calls. All methods are safe on a nil receiver.
type ScoutMetrics struct {
	suggestOutcomes  *prometheus.CounterVec
	topicResolutions *prometheus.CounterVec
	externalLatency  *prometheus.HistogramVec
	externalErrors   *prometheus.CounterVec
	feedbackTotal    *prometheus.CounterVec
	recommendations  prometheus.Histogram
}

func NewScoutMetrics(reg prometheus.Registerer) *ScoutMetrics {
	m := &ScoutMetrics{
		suggestOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scout",
			Name:      "suggest_outcomes_total",
			Help:      "Predictive suggestion results by outcome",
		}, []string{"outcome"}),
		topicResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scout",
			Name:      "topic_resolutions_total",
			Help:      "Topic resolutions by the tier that produced them",
		}, []string{"tier"}),
		externalLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "scout",
			Name:      "external_call_seconds",
			Help:      "Latency of calls to OpenAI, Pinecone and fallback providers",
			Buckets:   []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"dependency", "operation"}),
		externalErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scout",
			Name:      "external_call_errors_total",
			Help:      "Failed calls to external dependencies",
		}, []string{"dependency", "operation"}),
		feedbackTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scout",
			Name:      "feedback_total",
			Help:      "Accepted feedback events by type",
		}, []string{"type"}),
		recommendations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "scout",
			Name:      "recommendations_returned",
			Help:      "Number of recommendations returned per request",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.suggestOutcomes, m.topicResolutions, m.externalLatency, m.externalErrors, m.feedbackTotal, m.recommendations)
	return m
}

func (m *ScoutMetrics) ObserveSuggestOutcome(outcome string) {
	if m == nil {
		return
	}
	m.suggestOutcomes.WithLabelValues(outcome).Inc()
}

func (m *ScoutMetrics) ObserveTopicResolution(tier string) {
	if m == nil {
		return
	}
	m.topicResolutions.WithLabelValues(tier).Inc()
}

// ObserveExternalCall records latency and, when err is set, a failure.
func (m *ScoutMetrics) ObserveExternalCall(dependency, operation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.externalLatency.WithLabelValues(dependency, operation).Observe(d.Seconds())
	if err != nil {
		m.externalErrors.WithLabelValues(dependency, operation).Inc()
	}
}

func (m *ScoutMetrics) ObserveFeedback(feedbackType string) {
	if m == nil {
		return
	}
	m.feedbackTotal.WithLabelValues(feedbackType).Inc()
}

func (m *ScoutMetrics) ObserveRecommendations(n int) {
	if m == nil {
		return
	}
	m.recommendations.Observe(float64(n))
}
