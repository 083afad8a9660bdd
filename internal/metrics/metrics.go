package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Dose recording kinds
const (
	DoseInWindow  = "in_window"
	DoseConfirmed = "confirmed_outside_window"
	DoseManual    = "manual"
	DoseAdvisory  = "advisory_rejected"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "medtrack_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
	doseEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medtrack_dose_events_total",
			Help: "Dose recording attempts by kind",
		},
		[]string{"kind"},
	)
	authAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medtrack_auth_attempts_total",
			Help: "Authentication attempts by event and outcome",
		},
		[]string{"event", "success"},
	)
	authorizationDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medtrack_authorization_denials_total",
			Help: "Operations rejected by the authorization gate",
		},
		[]string{"action"},
	)
)

func RecordDoseEvent(kind string) {
	doseEvents.WithLabelValues(kind).Inc()
}

func RecordAuthAttempt(event string, success bool) {
	authAttempts.WithLabelValues(event, strconv.FormatBool(success)).Inc()
}

func RecordDenial(action string) {
	authorizationDenials.WithLabelValues(action).Inc()
}
