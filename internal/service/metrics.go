package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minefield_actions_total",
			Help: "Player actions by kind and outcome (applied, noop, rejected, error)",
		},
		[]string{"action", "outcome"},
	)
	ConflictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minefield_write_conflicts_total",
			Help: "Conditional writes that lost a race and were retried",
		},
		[]string{"action"},
	)
	ActionAttempts = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "minefield_action_attempts",
			Help:    "Read-apply-write attempts needed to commit an action",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"action"},
	)
	GamesFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minefield_games_finished_total",
			Help: "Games that reached won or lost",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(ActionsTotal)
	prometheus.MustRegister(ConflictsTotal)
	prometheus.MustRegister(ActionAttempts)
	prometheus.MustRegister(GamesFinished)
}
