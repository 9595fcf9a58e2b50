package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks the operational counters exposed on /metrics
type Metrics struct {
	MessagesProcessed *prometheus.CounterVec
	CardsCreated      prometheus.Counter
	CardsResolved     *prometheus.CounterVec
	TriageFailures    prometheus.Counter
	AgentRuns         *prometheus.CounterVec
	AgentIterations   prometheus.Histogram
	ActiveAgents      prometheus.GaugeFunc
	WSSubscribers     *prometheus.GaugeVec
}

// NewMetrics registers the service metrics on the given registerer
func NewMetrics(reg prometheus.Registerer, tracker *ActiveAgentTracker) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		MessagesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aiassist_messages_processed_total",
			Help: "Inbound messages processed by the triage pipeline, by outcome",
		}, []string{"outcome"}),
		CardsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "aiassist_cards_created_total",
			Help: "Approval cards minted by the triage pipeline",
		}),
		CardsResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aiassist_cards_resolved_total",
			Help: "Cards resolved out of the pending queue, by resolution",
		}, []string{"resolution"}),
		TriageFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "aiassist_triage_parse_failures_total",
			Help: "Triage runs abandoned after exhausting JSON parse retries",
		}),
		AgentRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aiassist_agent_runs_total",
			Help: "Agent worker runs, by result",
		}, []string{"result"}),
		AgentIterations: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "aiassist_agent_iterations",
			Help:    "Tool-loop iterations used per agent run",
			Buckets: prometheus.LinearBuckets(1, 3, 10),
		}),
		WSSubscribers: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aiassist_ws_subscribers",
			Help: "Active WebSocket subscribers per topic",
		}, []string{"topic"}),
	}

	if tracker != nil {
		m.ActiveAgents = factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "aiassist_active_agents",
			Help: "Agent workers currently running",
		}, func() float64 { return float64(tracker.Active()) })
	}

	return m
}
