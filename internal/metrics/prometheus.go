// Package metrics exposes panel activity counters to prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "srvpanel_actions_total",
			Help: "Host commands issued, by command and outcome",
		},
		[]string{"command", "outcome"},
	)

	ActionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "srvpanel_action_duration_seconds",
			Help:    "Duration of host command requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)

	StreamMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "srvpanel_stream_messages_total",
			Help: "Messages received per stream",
		},
		[]string{"stream"},
	)

	StreamDecodeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "srvpanel_stream_decode_errors_total",
			Help: "Stream payloads that failed to decode",
		},
		[]string{"stream"},
	)

	StreamReconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "srvpanel_stream_reconnects_total",
			Help: "Reconnect attempts per stream",
		},
		[]string{"stream"},
	)

	StreamOpen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "srvpanel_stream_open",
			Help: "1 while the stream is open",
		},
		[]string{"stream"},
	)
)

func init() {
	prometheus.MustRegister(ActionsTotal)
	prometheus.MustRegister(ActionDuration)
	prometheus.MustRegister(StreamMessages)
	prometheus.MustRegister(StreamDecodeErrors)
	prometheus.MustRegister(StreamReconnects)
	prometheus.MustRegister(StreamOpen)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func ObserveAction(command, outcome string, seconds float64) {
	ActionsTotal.WithLabelValues(command, outcome).Inc()
	ActionDuration.WithLabelValues(command).Observe(seconds)
}

func IncStreamMessage(stream string) {
	StreamMessages.WithLabelValues(stream).Inc()
}

func IncDecodeError(stream string) {
	StreamDecodeErrors.WithLabelValues(stream).Inc()
}

func IncReconnect(stream string) {
	StreamReconnects.WithLabelValues(stream).Inc()
}

func SetStreamOpen(stream string, open bool) {
	v := 0.0
	if open {
		v = 1
	}
	StreamOpen.WithLabelValues(stream).Set(v)
}
