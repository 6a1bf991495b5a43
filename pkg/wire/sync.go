package wire

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// SyncRecordLen is the wire size of a sync payload: id, transmitter global
// sequence, a reserved byte, and one expected port sequence per port.
const SyncRecordLen = 4 + MaxPorts

// ErrSyncTooShort is returned for a SYNC payload smaller than SyncRecordLen.
var ErrSyncTooShort = errors.New("sync payload too short")

// SyncRecord realigns the receiver to transmitter-asserted state. A zero
// PortSeq entry means the transmitter has no information for that port.
type SyncRecord struct {
	ID          uint16
	TxGlobalSeq uint8
	PortSeq     [MaxPorts]uint8
}

// ParseSyncRecord decodes a SYNC payload. Trailing bytes are ignored.
func ParseSyncRecord(data []byte) (*SyncRecord, error) {
	if len(data) < SyncRecordLen {
		return nil, errors.Wrapf(ErrSyncTooShort, "%d bytes", len(data))
	}
	r := &SyncRecord{
		ID:          binary.LittleEndian.Uint16(data),
		TxGlobalSeq: data[2],
	}
	copy(r.PortSeq[:], data[4:4+MaxPorts])
	return r, nil
}

// Marshal encodes the record into its fixed wire form.
func (r *SyncRecord) Marshal() []byte {
	buf := make([]byte, SyncRecordLen)
	binary.LittleEndian.PutUint16(buf, r.ID)
	buf[2] = r.TxGlobalSeq
	copy(buf[4:], r.PortSeq[:])
	return buf
}
