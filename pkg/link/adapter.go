package link

import (
	"context"

	"github.com/datawire/dlib/derror"
	"github.com/datawire/dlib/dlog"
)

// Adapter translates the driver's callback surface into core invocations.
// The driver may fire callbacks from an interrupt-serviced thread, so the
// adapter never blocks on the driver's behalf and never lets a panic
// propagate back into it.
type Adapter struct {
	// ctx is captured at construction because driver callbacks carry no
	// context of their own.
	ctx     context.Context
	handler FrameHandler
	sink    StatusInterface
}

func NewAdapter(ctx context.Context, handler FrameHandler, sink StatusInterface) *Adapter {
	return &Adapter{ctx: ctx, handler: handler, sink: sink}
}

// Attach registers the adapter's callbacks with the driver.
func (a *Adapter) Attach(d Driver) {
	d.RegisterCallback(a.HandleFrame)
	d.RegisterLinkStatus(a.HandleLinkStatus)
	d.RegisterBufferEmpty(a.HandleBufferEmpty)
}

// HandleFrame copies the frame out of the driver's buffer and feeds it to
// the core. The driver's memory is never retained past the call. Frame
// errors are logged, not returned; ARQ is the link's business, not ours.
func (a *Adapter) HandleFrame(arq bool, channel uint8, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			dlog.Errorf(a.ctx, "%+v", derror.PanicToError(r))
		}
	}()
	if channel == TelemetryChannel {
		dlog.Debugf(a.ctx, "LNK: dropped %d bytes received on telemetry channel", len(data))
		return
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	if err := a.handler.HandleFrame(a.ctx, channel, arq, buf); err != nil {
		dlog.Debugf(a.ctx, "LNK: frame on channel %d dropped: %v", channel, err)
	}
}

// HandleLinkStatus forwards link up/down transitions to the status sink.
func (a *Adapter) HandleLinkStatus(up bool) {
	defer func() {
		if r := recover(); r != nil {
			dlog.Errorf(a.ctx, "%+v", derror.PanicToError(r))
		}
	}()
	dlog.Debugf(a.ctx, "LNK: link %s", map[bool]string{true: "up", false: "down"}[up])
	if a.sink != nil {
		a.sink.OnLinkStatusChanged(up)
	}
}

// HandleBufferEmpty forwards a drained transmit channel as
// channel-available to the status sink.
func (a *Adapter) HandleBufferEmpty(channel uint8) {
	defer func() {
		if r := recover(); r != nil {
			dlog.Errorf(a.ctx, "%+v", derror.PanicToError(r))
		}
	}()
	if a.sink != nil {
		a.sink.OnChannelStatusChanged(channel, true)
	}
}
