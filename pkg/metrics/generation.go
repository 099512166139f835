package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// GenerationMetrics records outcomes of provider calls and guard decisions.
type GenerationMetrics struct {
	duration  *prometheus.HistogramVec
	outcomes  *prometheus.CounterVec
	fallbacks *prometheus.CounterVec
	budget    *prometheus.CounterVec
	imageJobs *prometheus.CounterVec
}

// NewGenerationMetrics registers the generation metrics on the provided
// registerer. A nil registerer yields a no-op collector.
func NewGenerationMetrics(reg prometheus.Registerer) *GenerationMetrics {
	if reg == nil {
		return &GenerationMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "generation_duration_seconds",
		Help:    "Duration of provider generation calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "generation_outcomes_total",
		Help: "Generation call outcomes by provider and result.",
	}, []string{"provider", "result"})
	fallbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "generation_fallbacks_total",
		Help: "Times a request fell through to a lower-priority provider.",
	}, []string{"from", "to"})
	budget := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "budget_guard_decisions_total",
		Help: "Budget guard allow/warn/deny decisions by dimension.",
	}, []string{"dimension", "decision"})
	imageJobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "image_job_terminal_total",
		Help: "Image jobs reaching a terminal state.",
	}, []string{"state"})
	reg.MustRegister(duration, outcomes, fallbacks, budget, imageJobs)
	return &GenerationMetrics{
		duration:  duration,
		outcomes:  outcomes,
		fallbacks: fallbacks,
		budget:    budget,
		imageJobs: imageJobs,
	}
}

// ObserveCall records one provider call with its duration and result.
func (g *GenerationMetrics) ObserveCall(provider string, duration time.Duration, result string) {
	if g == nil || g.duration == nil {
		return
	}
	g.duration.WithLabelValues(normalizeLabel(provider)).Observe(duration.Seconds())
	g.outcomes.WithLabelValues(normalizeLabel(provider), normalizeLabel(result)).Inc()
}

// IncFallback counts a handoff from one provider to the next in the chain.
func (g *GenerationMetrics) IncFallback(from, to string) {
	if g == nil || g.fallbacks == nil {
		return
	}
	g.fallbacks.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// IncBudgetDecision counts a budget guard decision for one dimension.
func (g *GenerationMetrics) IncBudgetDecision(dimension, decision string) {
	if g == nil || g.budget == nil {
		return
	}
	g.budget.WithLabelValues(normalizeLabel(dimension), normalizeLabel(decision)).Inc()
}

// IncImageJobTerminal counts an image job reaching a terminal state.
func (g *GenerationMetrics) IncImageJobTerminal(state string) {
	if g == nil || g.imageJobs == nil {
		return
	}
	g.imageJobs.WithLabelValues(normalizeLabel(state)).Inc()
}
