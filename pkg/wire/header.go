package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

// HeaderLen is the size of the packed wire header.
const HeaderLen = 8

// MaxPorts is the number of logical ports. The port field is 7 bits wide,
// the eighth bit of the port byte carries the fragmentation flag.
const MaxPorts = 128

// MessageType occupies the two high bits of the pdu-length word.
type MessageType uint8

const (
	TypeData = MessageType(iota)
	TypeSync
)

func (t MessageType) String() string {
	switch t {
	case TypeData:
		return "DATA"
	case TypeSync:
		return "SYNC"
	default:
		return fmt.Sprintf("** unknown message type: %d **", uint8(t))
	}
}

const (
	pduLengthMask = 0x3fff
	msgTypeShift  = 14
	fragmentBit   = 0x80
	portMask      = 0x7f
)

// Header is a view of the 8-byte packed header at the start of a frame.
// Multi-byte fields are little-endian on the wire. Layout:
//
//	offset 0  crc        uint16
//	offset 2  global_seq uint8
//	offset 3  sub_seq    uint8
//	offset 4  pdu_length uint16 (low 14 bits length, high 2 bits message type)
//	offset 6  seq_port   uint8
//	offset 7  port       uint8  (low 7 bits port, high bit more-fragments)
type Header []byte

func (h Header) CRC() uint16 {
	return binary.LittleEndian.Uint16(h)
}

func (h Header) SetCRC(crc uint16) {
	binary.LittleEndian.PutUint16(h, crc)
}

func (h Header) GlobalSeq() uint8 {
	return h[2]
}

func (h Header) SetGlobalSeq(seq uint8) {
	h[2] = seq
}

func (h Header) SubSeq() uint8 {
	return h[3]
}

func (h Header) SetSubSeq(seq uint8) {
	h[3] = seq
}

func (h Header) lengthWord() uint16 {
	return binary.LittleEndian.Uint16(h[4:])
}

func (h Header) PDULength() uint16 {
	return h.lengthWord() & pduLengthMask
}

func (h Header) SetPDULength(n uint16) {
	binary.LittleEndian.PutUint16(h[4:], h.lengthWord()&^uint16(pduLengthMask)|n&pduLengthMask)
}

func (h Header) MessageType() MessageType {
	return MessageType(h.lengthWord() >> msgTypeShift)
}

func (h Header) SetMessageType(t MessageType) {
	binary.LittleEndian.PutUint16(h[4:], h.lengthWord()&pduLengthMask|uint16(t)<<msgTypeShift)
}

func (h Header) SeqPort() uint8 {
	return h[6]
}

func (h Header) SetSeqPort(seq uint8) {
	h[6] = seq
}

func (h Header) MoreFragments() bool {
	return h[7]&fragmentBit != 0
}

func (h Header) SetMoreFragments(more bool) {
	if more {
		h[7] |= fragmentBit
	} else {
		h[7] &^= fragmentBit
	}
}

func (h Header) Port() uint8 {
	return h[7] & portMask
}

func (h Header) SetPort(port uint8) {
	h[7] = h[7]&fragmentBit | port&portMask
}

// String renders the fields the way the rx logs want them.
func (h Header) String() string {
	return fmt.Sprintf("port %d, glob_seq %d, port_seq %d, sub_seq %d, len %d, type %s, more %t",
		h.Port(), h.GlobalSeq(), h.SeqPort(), h.SubSeq(), h.PDULength(), h.MessageType(), h.MoreFragments())
}

// ErrFrameTooShort is returned when a frame is smaller than its header
// claims the packet to be.
var ErrFrameTooShort = errors.New("frame shorter than header plus pdu length")

// Packet is a frame after admission into the core: one contiguous buffer
// holding header and payload, plus the out-of-band link channel tag. The
// buffer is owned by the packet; the driver's frame memory is never
// retained.
type Packet struct {
	buf     []byte
	Channel uint8
}

// Parse copies data into a new Packet. It fails when data cannot hold the
// header or the payload length the header declares. Trailing padding beyond
// the declared payload is discarded.
func Parse(data []byte, channel uint8) (*Packet, error) {
	if len(data) < HeaderLen {
		return nil, errors.Wrapf(ErrFrameTooShort, "%d bytes", len(data))
	}
	pduLen := int(Header(data).PDULength())
	if len(data) < HeaderLen+pduLen {
		return nil, errors.Wrapf(ErrFrameTooShort, "%d bytes, pdu length %d", len(data), pduLen)
	}
	buf := make([]byte, HeaderLen+pduLen)
	copy(buf, data)
	return &Packet{buf: buf, Channel: channel}, nil
}

// New creates a packet for the given port and payload with a zeroed CRC and
// sequence fields.
func New(port uint8, payload []byte) *Packet {
	buf := make([]byte, HeaderLen+len(payload))
	copy(buf[HeaderLen:], payload)
	h := Header(buf)
	h.SetPort(port)
	h.SetPDULength(uint16(len(payload)))
	return &Packet{buf: buf}
}

func (p *Packet) Header() Header {
	return Header(p.buf[:HeaderLen])
}

func (p *Packet) Payload() []byte {
	return p.buf[HeaderLen:]
}

// Len is the total wire length, header included.
func (p *Packet) Len() int {
	return len(p.buf)
}

// Bytes returns the packet's wire form, header included. The slice aliases
// the packet's storage.
func (p *Packet) Bytes() []byte {
	return p.buf
}

func (p *Packet) String() string {
	return fmt.Sprintf("chan %d, %s", p.Channel, p.Header())
}
