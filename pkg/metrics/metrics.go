// Package metrics exposes the receive-side counters. A nil *RxMetrics is a
// valid no-op handle, so the core runs without a registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Drop reasons, the label values of s3tp_rx_frames_dropped_total.
const (
	DropInactive    = "inactive"
	DropMalformed   = "malformed"
	DropCRC         = "crc"
	DropInvalidType = "invalid_type"
	DropPortClosed  = "port_closed"
	DropQueueFull   = "queue_full"
	DropWindow      = "window"
	DropTelemetry   = "telemetry_channel"
)

type RxMetrics struct {
	framesReceived    prometheus.Counter
	framesDropped     *prometheus.CounterVec
	messagesDelivered prometheus.Counter
	queuesPurged      prometheus.Counter
	syncsReceived     prometheus.Counter
}

// New builds the counters and registers them with reg.
func New(reg prometheus.Registerer) *RxMetrics {
	m := &RxMetrics{
		framesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "s3tp_rx_frames_total",
			Help: "Frames delivered by the link driver.",
		}),
		framesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "s3tp_rx_frames_dropped_total",
			Help: "Frames dropped before admission, by reason.",
		}, []string{"reason"}),
		messagesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "s3tp_rx_messages_delivered_total",
			Help: "Complete reassembled messages handed to consumers.",
		}),
		queuesPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "s3tp_rx_queues_purged_total",
			Help: "Per-port queues dropped by the window flush.",
		}),
		syncsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "s3tp_rx_syncs_total",
			Help: "SYNC frames applied.",
		}),
	}
	reg.MustRegister(m.framesReceived, m.framesDropped, m.messagesDelivered, m.queuesPurged, m.syncsReceived)
	return m
}

func (m *RxMetrics) FrameReceived() {
	if m != nil {
		m.framesReceived.Inc()
	}
}

func (m *RxMetrics) FrameDropped(reason string) {
	if m != nil {
		m.framesDropped.WithLabelValues(reason).Inc()
	}
}

func (m *RxMetrics) MessageDelivered() {
	if m != nil {
		m.messagesDelivered.Inc()
	}
}

func (m *RxMetrics) QueuePurged() {
	if m != nil {
		m.queuesPurged.Inc()
	}
}

func (m *RxMetrics) SyncReceived() {
	if m != nil {
		m.syncsReceived.Inc()
	}
}
