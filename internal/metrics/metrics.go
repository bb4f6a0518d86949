package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Connections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ws_active_connections",
		Help: "Active websocket connections",
	})
	MessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_sent_total",
		Help: "Messages appended to conversations",
	})
	EventsDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_events_delivered_total",
		Help: "Live events pushed to connected clients",
	})
)

func Init() {
	prometheus.MustRegister(Connections, MessagesSent, EventsDelivered)
}

// Handler returns an http.Handler for Prometheus scraping
func Handler() http.Handler {
	return promhttp.Handler()
}
