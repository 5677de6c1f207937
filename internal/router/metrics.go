package router

import "github.com/prometheus/client_golang/prometheus"

var (
	// routedTotal counts ingested lines by how they were routed
	// (new, pending, unrouted).
	routedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbot_lines_routed_total",
			Help: "Ingested lines by routing result.",
		},
		[]string{"result"},
	)

	parsedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbot_lines_parsed_total",
			Help: "Parse outcomes by status.",
		},
		[]string{"status"},
	)

	deniedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbot_commands_denied_total",
			Help: "Commands refused by access checks.",
		},
		[]string{"command"},
	)

	// responsesTotal is labelled by command name; names come from the
	// registered initiators so cardinality stays bounded.
	responsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbot_command_responses_total",
			Help: "Command runs by command and response kind.",
		},
		[]string{"command", "kind"},
	)

	runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatbot_command_run_duration_seconds",
			Help:    "Time spent in command handlers.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)

	expiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatbot_commands_expired_total",
			Help: "Pending commands dropped for inactivity.",
		},
	)

	pendingGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatbot_commands_pending",
			Help: "Commands waiting on user input.",
		},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatbot_queue_depth",
			Help: "Jobs in the scheduling queue.",
		},
	)
)

func init() {
	prometheus.MustRegister(routedTotal, parsedTotal, deniedTotal, responsesTotal, runDuration, expiredTotal, pendingGauge, queueDepth)
}
