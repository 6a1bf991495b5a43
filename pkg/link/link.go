// Package link defines the contracts to the transceiver driver below the
// core and to the status owner above it, plus the adapter between them.
package link

import "context"

// TelemetryChannel is transmit-only; the receive side never sees traffic
// on it.
const TelemetryChannel = 7

// ReceiveCallback is invoked by the driver once per received frame, possibly
// on an interrupt-serviced thread. The data slice is only valid for the
// duration of the call.
type ReceiveCallback func(arq bool, channel uint8, data []byte)

// Driver is the surface the transceiver driver exposes to us. ARQ,
// retransmission and hardware framing all live behind it.
type Driver interface {
	// RegisterCallback installs the single receive callback.
	RegisterCallback(cb ReceiveCallback)

	// RegisterLinkStatus installs the link up/down callback.
	RegisterLinkStatus(cb func(up bool))

	// RegisterBufferEmpty installs the callback fired when a logical
	// channel's transmit buffer drains.
	RegisterBufferEmpty(cb func(channel uint8))

	Close() error
}

// FrameHandler is what the adapter drives: the receive core.
type FrameHandler interface {
	// HandleFrame ingests one frame. The data is owned by the caller and
	// must already be safe to retain.
	HandleFrame(ctx context.Context, channel uint8, arq bool, data []byte) error
}

// StatusInterface is the outbound contract towards the owner of the core.
// Implementations must not call back into the core from these methods, or
// must tolerate running on the delivering goroutine; the core guarantees
// its own mutex is never held across a call.
type StatusInterface interface {
	// OnLinkStatusChanged reports link up/down transitions.
	OnLinkStatusChanged(up bool)

	// OnChannelStatusChanged reports that a logical channel became
	// available again: its transmit buffer drained, or its receive queue
	// was purged by a window flush.
	OnChannelStatusChanged(channel uint8, available bool)

	// OnSynchronization reports a completed sync with the transmitter.
	OnSynchronization(syncID uint16)
}
