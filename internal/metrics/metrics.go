// Package metrics exposes relay counters to prometheus.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "relay"

// Drop reasons.
const (
	DropTargetNotInRoom = "target_not_in_room"
	DropBackpressure    = "backpressure"
	DropClosed          = "connection_closed"
	DropRateLimited     = "rate_limited"
	DropBadPayload      = "bad_payload"
)

var (
	ConnectionsCurrent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "connection",
		Name:      "total",
		Help:      "Live signaling connections.",
	})
	RoomsCurrent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "room",
		Name:      "total",
		Help:      "Non-empty rooms.",
	})
	EventsReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "event",
		Name:      "received_total",
		Help:      "Inbound events by type.",
	}, []string{"type"})
	FramesDelivered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "event",
		Name:      "delivered_total",
		Help:      "Outbound frames enqueued by event type.",
	}, []string{"type"})
	FramesDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "event",
		Name:      "dropped_total",
		Help:      "Frames not delivered by reason.",
	}, []string{"reason"})
	HandlerPanics = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "handler_panics_total",
		Help:      "Recovered faults at the event dispatch boundary.",
	})
)

var registerOnce sync.Once

// Register adds every collector to reg once per process.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(
			ConnectionsCurrent,
			RoomsCurrent,
			EventsReceived,
			FramesDelivered,
			FramesDropped,
			HandlerPanics,
		)
	})
}
