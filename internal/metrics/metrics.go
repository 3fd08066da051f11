package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"minibet/internal/game"
)

type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequests        *prometheus.CounterVec
	Rounds              *prometheus.CounterVec
	Staked              *prometheus.CounterVec
	Transitions         *prometheus.CounterVec
	PersistenceFailures prometheus.Counter
	Reports             *prometheus.CounterVec
	ReportsDropped      prometheus.Counter
	ActiveSessions      prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "minibet_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		Rounds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "minibet_rounds_total",
				Help: "Settled rounds by game and result",
			},
			[]string{"game", "result"},
		),
		Staked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "minibet_staked_amount_total",
				Help: "Sum of settled stakes by game",
			},
			[]string{"game"},
		),
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "minibet_session_transitions_total",
				Help: "Session state changes by target state",
			},
			[]string{"to"},
		),
		PersistenceFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "minibet_persistence_failures_total",
				Help: "Balance writes rejected by the store",
			},
		),
		Reports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "minibet_reports_total",
				Help: "Report deliveries by sink and status",
			},
			[]string{"sink", "status"},
		),
		ReportsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "minibet_reports_dropped_total",
				Help: "Reports dropped because the dispatch queue was full",
			},
		),
		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "minibet_active_sessions",
				Help: "Users with a live session controller",
			},
		),
	}
	m.Registry.MustRegister(
		m.HTTPRequests,
		m.Rounds,
		m.Staked,
		m.Transitions,
		m.PersistenceFailures,
		m.Reports,
		m.ReportsDropped,
		m.ActiveSessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveEvent is meant to be registered as a session event listener.
func (m *Metrics) ObserveEvent(ev game.Event) {
	m.Transitions.WithLabelValues(string(ev.To)).Inc()
	if ev.Round == nil {
		return
	}
	result := game.ResultLose
	if ev.Round.Outcome.Won {
		result = game.ResultWin
	}
	m.Rounds.WithLabelValues(string(ev.Round.Game), result).Inc()
	m.Staked.WithLabelValues(string(ev.Round.Game)).Add(ev.Round.Stake)
}

// ObserveError counts errors that matter operationally; others are ignored.
func (m *Metrics) ObserveError(err error) {
	if errors.Is(err, game.ErrPersistence) {
		m.PersistenceFailures.Inc()
	}
}

func (m *Metrics) ReportDelivered(sink string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.Reports.WithLabelValues(sink, status).Inc()
}

func (m *Metrics) ReportDropped() {
	m.ReportsDropped.Inc()
}
