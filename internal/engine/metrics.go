package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	inboundTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbot_engine_events_total",
			Help: "Inbound transport events accepted by the engine, by kind.",
		},
		[]string{"kind"},
	)

	ticksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatbot_engine_ticks_total",
			Help: "Scheduler ticks run by the engine.",
		},
	)

	reloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbot_roster_seed_reloads_total",
			Help: "Roster seed file reloads by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(inboundTotal, ticksTotal, reloadsTotal)
}
