package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the reminder counters exported on /metrics.
type Metrics struct {
	Scheduled *prometheus.CounterVec
	Skipped   *prometheus.CounterVec
	Sent      *prometheus.CounterVec
	Failed    *prometheus.CounterVec
	Pending   prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Scheduled: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reminders_scheduled_total",
				Help: "Reminders armed for a future trigger time",
			},
			[]string{"category", "kind"},
		),
		Skipped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reminders_skipped_total",
				Help: "Reminders not armed because their trigger time had passed",
			},
			[]string{"category", "kind"},
		),
		Sent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reminders_sent_total",
				Help: "Reminders accepted by the notification gateway",
			},
			[]string{"category", "kind"},
		),
		Failed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reminders_failed_total",
				Help: "Reminder deliveries that failed, by stage (rate, send, status)",
			},
			[]string{"category", "kind", "stage"},
		),
		Pending: f.NewGauge(prometheus.GaugeOpts{
			Name: "reminders_pending",
			Help: "Reminders currently armed",
		}),
	}
}
