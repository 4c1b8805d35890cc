package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConnectionsOpened = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "veilchat_connections_opened_total",
			Help: "Connections that completed the handshake",
		},
	)

	ConnectionsClosed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "veilchat_connections_closed_total",
			Help: "Connections torn down",
		},
	)

	ConnectionsRefused = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veilchat_connections_refused_total",
			Help: "Handshakes refused",
		},
		[]string{"reason"}, // missing_credential or invalid_credential
	)

	MessagesStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "veilchat_messages_stored_total",
			Help: "Messages persisted by the relay engine",
		},
	)

	EventsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veilchat_events_delivered_total",
			Help: "Events fanned out to live connections",
		},
		[]string{"event"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veilchat_events_dropped_total",
			Help: "Events lost to slow or full connections",
		},
		[]string{"event"},
	)
)
