package roster

import "github.com/prometheus/client_golang/prometheus"

// lookups counts Unmap calls by entity type and result (hit, stale, miss).
var lookups = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chatbot_roster_lookups_total",
		Help: "Roster lookups by entity type and result.",
	},
	[]string{"type", "result"},
)

func init() {
	prometheus.MustRegister(lookups)
}
