// Package rx implements the receive-side core: header validation, per-port
// reordering under the sliding global window, fragment reassembly, and the
// blocking consumer surface.
package rx

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/datawire/dlib/dlog"

	"github.com/nanolink-io/s3tp/pkg/buffer"
	"github.com/nanolink-io/s3tp/pkg/link"
	"github.com/nanolink-io/s3tp/pkg/metrics"
	"github.com/nanolink-io/s3tp/pkg/pqueue"
	"github.com/nanolink-io/s3tp/pkg/seqn"
	"github.com/nanolink-io/s3tp/pkg/wire"
)

// Core is the receive state machine. One coarse mutex guards all state; the
// condition variable wakes consumers blocked in NextMessage. Status-sink
// callbacks are collected while the mutex is held and fired after release,
// so a sink may call back into the core.
type Core struct {
	mu   sync.Mutex
	cond *sync.Cond

	// id is a short session identifier for the logs.
	id string

	cfg      Config
	checksum wire.Checksum
	mx       *metrics.RxMetrics
	sink     link.StatusInterface

	// in-buffer queues, keyed by port
	buf *buffer.Buffer

	active bool

	// toConsumeSeq anchors the sliding global window: the lowest global
	// sequence still considered in-window.
	toConsumeSeq uint8

	// lastReceivedSeq is the highest in-window global sequence seen since
	// the last flush. It becomes the new anchor when the window flushes.
	lastReceivedSeq uint8

	// receivingWindow counts admitted data packets; at
	// cfg.ReceivingWindowSize the queues are flushed and it restarts.
	receivingWindow uint16

	// portSeq holds the next expected per-port sequence, created on first
	// use. The queue comparators read it through the closures installed
	// at queue creation.
	portSeq map[uint8]uint8

	openPorts map[uint8]struct{}

	// available is the set of ports whose queue head holds a complete
	// contiguous message.
	available map[uint8]struct{}

	// pending are sink notifications to fire once the mutex is released.
	pending []func()
}

// New creates a stopped core. A nil checksum selects wire.CRC16; a nil
// metrics handle disables counting. The configuration must be valid.
func New(cfg Config, sum wire.Checksum, mx *metrics.RxMetrics) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sum == nil {
		sum = wire.CRC16
	}
	c := &Core{
		id:        uuid.New().String()[:8],
		cfg:       cfg,
		checksum:  sum,
		mx:        mx,
		portSeq:   make(map[uint8]uint8),
		openPorts: make(map[uint8]struct{}),
		available: make(map[uint8]struct{}),
	}
	c.cond = sync.NewCond(&c.mu)
	c.buf = buffer.New(c.newQueue, c.queueDrained)
	return c, nil
}

// newQueue builds the reordering queue for a port. The comparator keys on
// the window-relative per-port sequence (it reads the expected-sequence
// map and is therefore only invoked while the RX mutex is held; all buffer
// writes come from HandleFrame). The guard rejects packets whose global
// sequence strays more than the reordering window from the queue head;
// packets that age out relative to the consume anchor are purged by the
// window flush instead.
func (c *Core) newQueue(port uint8) *buffer.Queue {
	q := pqueue.New(c.cfg.MaxQueueCapacity, func(a, b *wire.Packet) int {
		anchor := c.portSeq[port]
		da := seqn.Distance(a.Header().SeqPort(), anchor)
		db := seqn.Distance(b.Header().SeqPort(), anchor)
		switch {
		case da < db:
			return -1
		case da > db:
			return 1
		default:
			return 0
		}
	})
	q.SetGuard(func(head, pkt *wire.Packet) error {
		if uint16(seqn.Apart(pkt.Header().GlobalSeq(), head.Header().GlobalSeq())) > c.cfg.MaxReorderingWindow {
			return ErrWindowExceeded
		}
		return nil
	})
	return q
}

// queueDrained runs under the RX mutex when the buffer drops a port's
// queue; the sink hears about it once the mutex is released.
func (c *Core) queueDrained(port uint8) {
	c.mx.QueuePurged()
	if sink := c.sink; sink != nil {
		c.pending = append(c.pending, func() { sink.OnChannelStatusChanged(port, true) })
	}
}

// unlockAndNotify releases the mutex and fires the sink notifications
// collected during the critical section.
func (c *Core) unlockAndNotify() {
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, notify := range pending {
		notify()
	}
}

// SetStatusInterface installs the outbound callback sink.
func (c *Core) SetStatusInterface(sink link.StatusInterface) {
	c.mu.Lock()
	c.sink = sink
	c.mu.Unlock()
}

// Start activates the core and resets the window counters.
func (c *Core) Start(ctx context.Context) {
	c.mu.Lock()
	c.active = true
	c.receivingWindow = 0
	c.lastReceivedSeq = c.toConsumeSeq
	c.mu.Unlock()
	dlog.Debugf(ctx, "RX %s: started", c.id)
}

// Stop deactivates the core. Blocked consumers wake up and observe the
// inactivity.
func (c *Core) Stop(ctx context.Context) {
	c.mu.Lock()
	c.active = false
	c.cond.Broadcast()
	c.mu.Unlock()
	dlog.Debugf(ctx, "RX %s: stopped", c.id)
}

// Reset stops the core and drops all buffered data, per-port counters,
// open ports, and availability state.
func (c *Core) Reset(ctx context.Context) {
	c.mu.Lock()
	c.active = false
	c.buf.Clear()
	c.portSeq = make(map[uint8]uint8)
	c.openPorts = make(map[uint8]struct{})
	c.available = make(map[uint8]struct{})
	c.toConsumeSeq = 0
	c.lastReceivedSeq = 0
	c.receivingWindow = 0
	c.cond.Broadcast()
	c.mu.Unlock()
	dlog.Debugf(ctx, "RX %s: reset", c.id)
}

// Active reports whether the core accepts frames.
func (c *Core) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// OpenPort admits future data frames for the port.
func (c *Core) OpenPort(port uint8) error {
	if port >= wire.MaxPorts {
		return errors.Errorf("port %d outside 0..%d", port, wire.MaxPorts-1)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return CodeModuleInactive
	}
	if _, ok := c.openPorts[port]; ok {
		return CodePortAlreadyOpen
	}
	c.openPorts[port] = struct{}{}
	return nil
}

// ClosePort stops admitting frames for the port. Data already queued stays
// consumable; only newly arriving frames are dropped.
func (c *Core) ClosePort(port uint8) error {
	if port >= wire.MaxPorts {
		return errors.Errorf("port %d outside 0..%d", port, wire.MaxPorts-1)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return CodeModuleInactive
	}
	if _, ok := c.openPorts[port]; !ok {
		return CodePortAlreadyClosed
	}
	delete(c.openPorts, port)
	return nil
}

// IsPortOpen reports whether the port currently admits frames.
func (c *Core) IsPortOpen(port uint8) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.openPorts[port]
	return ok && c.active
}

// HandleFrame ingests one frame from the link. The data slice must already
// be core-owned (the adapter copies before calling). Frame-level failures
// drop the frame and return the reason without touching core state.
func (c *Core) HandleFrame(ctx context.Context, channel uint8, arq bool, data []byte) error {
	c.mx.FrameReceived()
	if len(data) > c.cfg.MaxPacketLen {
		c.mx.FrameDropped(metrics.DropMalformed)
		return errors.Errorf("frame length %d exceeds maximum %d", len(data), c.cfg.MaxPacketLen)
	}

	c.mu.Lock()
	defer c.unlockAndNotify()

	if !c.active {
		c.mx.FrameDropped(metrics.DropInactive)
		return CodeModuleInactive
	}
	pkt, err := wire.Parse(data, channel)
	if err != nil {
		c.mx.FrameDropped(metrics.DropMalformed)
		return err
	}
	hdr := pkt.Header()
	if sum := c.checksum(pkt.Payload()); sum != hdr.CRC() {
		dlog.Debugf(ctx, "RX %s: bad checksum %#04x, want %#04x (%s)", c.id, hdr.CRC(), sum, hdr)
		c.mx.FrameDropped(metrics.DropCRC)
		return CodeErrorCRCInvalid
	}
	switch hdr.MessageType() {
	case wire.TypeSync:
		return c.handleSyncLocked(ctx, pkt)
	case wire.TypeData:
		return c.handleDataLocked(ctx, pkt)
	default:
		c.mx.FrameDropped(metrics.DropInvalidType)
		return CodeErrorInvalidType
	}
}

func (c *Core) handleDataLocked(ctx context.Context, pkt *wire.Packet) error {
	hdr := pkt.Header()
	port := hdr.Port()
	if _, open := c.openPorts[port]; !open {
		c.mx.FrameDropped(metrics.DropPortClosed)
		return CodeErrorPortClosed
	}
	if err := c.buf.Write(pkt); err != nil {
		switch {
		case errors.Is(err, pqueue.ErrQueueFull):
			dlog.Debugf(ctx, "RX %s: queue full on port %d", c.id, port)
			c.mx.FrameDropped(metrics.DropQueueFull)
			return CodeQueueFull
		case errors.Is(err, ErrWindowExceeded):
			dlog.Debugf(ctx, "RX %s: glob_seq %d outside window anchored at %d", c.id, hdr.GlobalSeq(), c.toConsumeSeq)
			c.mx.FrameDropped(metrics.DropWindow)
			return err
		default:
			return err
		}
	}
	dlog.Debugf(ctx, "RX %s: admitted %s", c.id, pkt)

	if _, ready := c.available[port]; !ready && c.completeMessageLocked(port) {
		c.available[port] = struct{}{}
		c.cond.Broadcast()
	}

	g := hdr.GlobalSeq()
	if seqn.InWindow(g, c.toConsumeSeq, c.cfg.ReceivingWindowSize) &&
		seqn.Less(c.lastReceivedSeq, g, c.toConsumeSeq) {
		c.lastReceivedSeq = g
	}
	c.receivingWindow++
	if c.receivingWindow >= c.cfg.ReceivingWindowSize {
		c.flushQueuesLocked(ctx)
		c.receivingWindow = 0
	}
	return nil
}

// handleSyncLocked realigns the per-port and global anchors to the
// transmitter-asserted state. Buffered data and open-port state are left
// alone, but the availability set is recomputed against the new counters.
func (c *Core) handleSyncLocked(ctx context.Context, pkt *wire.Packet) error {
	rec, err := wire.ParseSyncRecord(pkt.Payload())
	if err != nil {
		c.mx.FrameDropped(metrics.DropMalformed)
		return err
	}
	for port, seq := range rec.PortSeq {
		if seq != 0 {
			c.portSeq[uint8(port)] = seq
		}
	}
	c.lastReceivedSeq = rec.TxGlobalSeq
	c.mx.SyncReceived()
	dlog.Debugf(ctx, "RX %s: sync %d: tx glob_seq %d", c.id, rec.ID, rec.TxGlobalSeq)

	c.refreshAvailabilityLocked()

	if sink := c.sink; sink != nil {
		id := rec.ID
		c.pending = append(c.pending, func() { sink.OnSynchronization(id) })
	}
	return nil
}

// refreshAvailabilityLocked recomputes the availability set for every port
// holding data. Counter re-anchoring (sync) can both complete and break
// head runs.
func (c *Core) refreshAvailabilityLocked() {
	woken := false
	for _, port := range c.buf.ActivePorts() {
		if c.completeMessageLocked(port) {
			if _, ready := c.available[port]; !ready {
				c.available[port] = struct{}{}
				woken = true
			}
		} else {
			delete(c.available, port)
		}
	}
	if woken {
		c.cond.Broadcast()
	}
}

// completeMessageLocked reports whether the head of the port's queue holds
// a contiguous fragment run forming a complete message: per-port sequences
// starting at the expected value, sub-sequences 0,1,...,k, and no
// more-fragments flag on the k-th.
func (c *Core) completeMessageLocked(port uint8) bool {
	q := c.buf.Queue(port)
	if q == nil {
		return false
	}
	expected := c.portSeq[port]
	q.Lock()
	defer q.Unlock()
	fragment := uint8(0)
	for n := q.Head(); n != nil; n = n.Next() {
		hdr := n.Value.Header()
		if hdr.SeqPort() != expected+fragment {
			// Head run broken: the next expected packet is missing.
			return false
		}
		if hdr.MoreFragments() {
			if hdr.SubSeq() != fragment {
				// A fragment of this message is still missing.
				return false
			}
		} else if hdr.SubSeq() == fragment {
			return true
		}
		fragment++
	}
	return false
}

// flushQueuesLocked advances the sliding window. Queue heads that fell out
// of the reordering window are considered lost and their queues dropped;
// then the consume anchor moves up to the highest sequence seen.
func (c *Core) flushQueuesLocked(ctx context.Context) {
	for _, port := range c.buf.ActivePorts() {
		q := c.buf.Queue(port)
		head, ok := q.Peek()
		if !ok {
			continue
		}
		g := head.Header().GlobalSeq()
		if !seqn.InWindow(g, c.toConsumeSeq, c.cfg.MaxReorderingWindow) {
			dlog.Debugf(ctx, "RX %s: port %d aged out (head glob_seq %d, anchor %d), dropping %d packets",
				c.id, port, g, c.toConsumeSeq, q.Len())
			c.buf.ClearPort(port)
			delete(c.available, port)
		}
	}
	dlog.Debugf(ctx, "RX %s: window advanced %d -> %d", c.id, c.toConsumeSeq, c.lastReceivedSeq)
	c.toConsumeSeq = c.lastReceivedSeq
}

// IsMessageAvailable reports whether some port has a complete message at
// the head of its queue.
func (c *Core) IsMessageAvailable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.available) > 0
}

// NextMessage blocks until a complete message is available, the core stops,
// or the context is done, then returns the reassembled message and its
// port.
func (c *Core) NextMessage(ctx context.Context) (uint8, []byte, error) {
	if done := ctx.Done(); done != nil {
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			select {
			case <-done:
				// Broadcast under the mutex so the wakeup cannot fall
				// between the consumer's context check and its Wait.
				c.mu.Lock()
				c.cond.Broadcast()
				c.mu.Unlock()
			case <-stop:
			}
		}()
	}

	c.mu.Lock()
	defer c.unlockAndNotify()
	for c.active && ctx.Err() == nil && len(c.available) == 0 {
		c.cond.Wait()
	}
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	return c.nextCompleteLocked(ctx)
}

// GetNextCompleteMessage is the non-blocking form of NextMessage.
func (c *Core) GetNextCompleteMessage(ctx context.Context) (uint8, []byte, error) {
	c.mu.Lock()
	defer c.unlockAndNotify()
	return c.nextCompleteLocked(ctx)
}

func (c *Core) nextCompleteLocked(ctx context.Context) (uint8, []byte, error) {
	if !c.active {
		return 0, nil, CodeModuleInactive
	}
	if len(c.available) == 0 {
		return 0, nil, CodeNoMessagesAvailable
	}

	// Lowest ready port wins, for determinism.
	port := uint8(0)
	first := true
	for p := range c.available {
		if first || p < port {
			port = p
			first = false
		}
	}

	data, err := c.assembleLocked(ctx, port)
	if err != nil {
		return port, nil, err
	}

	// The head may hold a further complete message; keep the port ready
	// and wake the next consumer if so.
	if c.completeMessageLocked(port) {
		c.cond.Broadcast()
	} else {
		delete(c.available, port)
	}
	c.mx.MessageDelivered()
	dlog.Debugf(ctx, "RX %s: delivered %d bytes from port %d", c.id, len(data), port)
	return port, data, nil
}

// assembleLocked pops the head run for the port and concatenates the
// fragment payloads. A sequence mismatch here means an invariant was lost
// between the availability check and consumption; the affected message is
// gone but the core stays usable.
func (c *Core) assembleLocked(ctx context.Context, port uint8) ([]byte, error) {
	var assembled []byte
	for {
		pkt := c.buf.NextPacket(port)
		if pkt == nil {
			dlog.Errorf(ctx, "RX %s: port %d ran dry mid-message", c.id, port)
			delete(c.available, port)
			return nil, CodeErrorInconsistentState
		}
		hdr := pkt.Header()
		if hdr.SeqPort() != c.portSeq[port] {
			dlog.Errorf(ctx, "RX %s: port %d: popped port_seq %d, expected %d", c.id, port, hdr.SeqPort(), c.portSeq[port])
			delete(c.available, port)
			return nil, CodeErrorInconsistentState
		}
		assembled = append(assembled, pkt.Payload()...)
		c.portSeq[port]++
		if !hdr.MoreFragments() {
			return assembled, nil
		}
	}
}
