// Package buffer routes admitted packets into one reordering queue per
// destination port.
package buffer

import (
	"sort"

	"github.com/nanolink-io/s3tp/pkg/pqueue"
	"github.com/nanolink-io/s3tp/pkg/wire"
)

// Queue is the per-port reordering queue.
type Queue = pqueue.Queue[*wire.Packet]

// QueueFactory creates the queue for a port on first use. The factory is
// the owner's hook for installing the port-anchored comparator and the
// window admission guard (the buffer itself knows nothing about sequence
// arithmetic).
type QueueFactory func(port uint8) *Queue

// DrainFunc is invoked after a port's queue has been dropped.
type DrainFunc func(port uint8)

// Buffer owns the port-to-queue mapping. It is not self-locking: the owner
// serializes all calls (the RX mutex). Individual queues carry their own
// lock for head traversals.
type Buffer struct {
	queues   map[uint8]*Queue
	active   map[uint8]struct{}
	newQueue QueueFactory
	onDrain  DrainFunc
}

func New(newQueue QueueFactory, onDrain DrainFunc) *Buffer {
	return &Buffer{
		queues:   make(map[uint8]*Queue),
		active:   make(map[uint8]struct{}),
		newQueue: newQueue,
		onDrain:  onDrain,
	}
}

// Write routes pkt to its port's queue, creating the queue lazily.
// Ownership of pkt transfers to the buffer when the push succeeds.
func (b *Buffer) Write(pkt *wire.Packet) error {
	port := pkt.Header().Port()
	q, ok := b.queues[port]
	if !ok {
		q = b.newQueue(port)
		b.queues[port] = q
	}
	if err := q.Push(pkt); err != nil {
		return err
	}
	b.active[port] = struct{}{}
	return nil
}

// Queue returns the port's queue for a read-only traversal under the
// queue's own lock, or nil when the port has never held data.
func (b *Buffer) Queue(port uint8) *Queue {
	return b.queues[port]
}

// NextPacket pops the head packet for the port. Ownership moves to the
// caller. A port whose queue drains out is removed from the active set.
func (b *Buffer) NextPacket(port uint8) *wire.Packet {
	q, ok := b.queues[port]
	if !ok {
		return nil
	}
	pkt, ok := q.Pop()
	if !ok {
		return nil
	}
	if q.Empty() {
		delete(b.active, port)
	}
	return pkt
}

// ClearPort drops all packets queued for the port and reports the drain.
func (b *Buffer) ClearPort(port uint8) {
	q, ok := b.queues[port]
	if !ok {
		return
	}
	q.Clear()
	delete(b.active, port)
	if b.onDrain != nil {
		b.onDrain(port)
	}
}

// ActivePorts returns a sorted snapshot of the ports that currently hold
// data.
func (b *Buffer) ActivePorts() []uint8 {
	ports := make([]uint8, 0, len(b.active))
	for p := range b.active {
		ports = append(ports, p)
	}
	sort.Slice(ports, func(i, j int) bool { return ports[i] < ports[j] })
	return ports
}

// Size returns the number of packets queued for the port.
func (b *Buffer) Size(port uint8) int {
	if q, ok := b.queues[port]; ok {
		return q.Len()
	}
	return 0
}

// Clear drops all packets in all queues without drain notifications.
func (b *Buffer) Clear() {
	for _, q := range b.queues {
		q.Clear()
	}
	b.queues = make(map[uint8]*Queue)
	b.active = make(map[uint8]struct{})
}
