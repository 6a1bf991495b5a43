package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilHandleIsNoOp(t *testing.T) {
	var m *RxMetrics
	assert.NotPanics(t, func() {
		m.FrameReceived()
		m.FrameDropped(DropCRC)
		m.MessageDelivered()
		m.QueuePurged()
		m.SyncReceived()
	})
}

func TestCountersRegisterAndCount(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	m := New(reg)

	m.FrameReceived()
	m.FrameReceived()
	m.FrameDropped(DropCRC)
	m.FrameDropped(DropQueueFull)
	m.MessageDelivered()

	families, err := reg.Gather()
	require.NoError(t, err)
	byName := map[string]float64{}
	for _, mf := range families {
		total := 0.0
		for _, metric := range mf.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
		byName[mf.GetName()] = total
	}
	assert.Equal(t, 2.0, byName["s3tp_rx_frames_total"])
	assert.Equal(t, 2.0, byName["s3tp_rx_frames_dropped_total"])
	assert.Equal(t, 1.0, byName["s3tp_rx_messages_delivered_total"])
}

func TestDoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
