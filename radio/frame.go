package radio

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/ystepanoff/tsch/queue"
)

// Frame sizing, generalised from the teacher's protocol/constants.go /
// protocol/frame.go layout:
//
//	Length(1) | Dest(8) | Src(8) | Type(1) | Seq(1) | Flags(1) | IE(0-7) | Payload(0-...) | CRC32(4) | Terminal(1)
//
// Length counts everything after the length byte.
const (
	lengthFieldSize = 1
	addrSize        = 8
	typeFieldSize   = 1
	seqFieldSize    = 1
	flagsFieldSize  = 1
	crcSize         = 4
	terminalSize    = 1

	// FrameHeaderSize is everything before the optional IE and payload.
	FrameHeaderSize = lengthFieldSize + addrSize*2 + typeFieldSize + seqFieldSize + flagsFieldSize

	ieSyncSize = 1 + 5 + 1 // kind tag, ASN (40 bits), join priority
	ieAckSize  = 1 + 4 + 1 // kind tag, drift (int32), nack flag

	// MaxFrameSize is the maximum on-air size of a frame, including every
	// field above.
	MaxFrameSize = 128

	// MaxPayloadSize is the largest application payload that still fits
	// after header, the larger of the two IE shapes, CRC and terminal.
	MaxPayloadSize = MaxFrameSize - FrameHeaderSize - ieSyncSize - crcSize - terminalSize

	frameTerminal = 0x55
)

// FrameType distinguishes the frame kinds the MAC exchanges (spec.md §3,
// §4.6, §6).
type FrameType uint8

const (
	FrameData FrameType = iota + 1
	FrameBeacon
	FrameAck
	FrameKeepalive
)

// FrameFlags is a bitset carried in the single flags byte.
type FrameFlags uint8

const (
	FlagAckRequested FrameFlags = 1 << iota
	FlagHasSyncIE
	FlagHasAckIE
	FlagNACK
)

func (f FrameFlags) has(bit FrameFlags) bool { return f&bit != 0 }

// SyncIE is the Synchronisation Information Element carried inside an
// Enhanced Beacon, stamped with the current ASN at transmit time so
// receivers can align (spec.md §6).
type SyncIE struct {
	ASN          uint64 // 40 bits significant
	JoinPriority uint8
}

// AckIE is the information element carried inside an Enhanced ACK,
// conveying the sender's drift estimate and an optional NACK bit
// (spec.md §6).
type AckIE struct {
	DriftTicks int32
	NACK       bool
}

// Frame is the on-air unit the MAC exchanges with its peers (spec.md §3,
// §6), generalising the teacher's protocol.Frame (which only carried a
// sender ID, type, sequence number and payload) with addressing, an
// ACK-request flag, and the optional Sync/Ack information elements TSCH
// needs.
type Frame struct {
	Dest  queue.Addr
	Src   queue.Addr
	Type  FrameType
	Seq   uint8
	Flags FrameFlags

	Sync *SyncIE
	Ack  *AckIE

	Payload []byte

	CRC uint32 // populated on decode only
}

// Encode serialises a Frame into on-air bytes: length-prefixed, CRC32 over
// the IE and payload bytes (the header fields after the length byte are
// not covered by it), terminated with a fixed sentinel byte
// — the same shape as the teacher's EncodeFrame, extended with addressing
// and an optional IE.
func Encode(f *Frame) ([]byte, error) {
	flags := f.Flags
	var ie []byte
	switch {
	case f.Sync != nil:
		flags |= FlagHasSyncIE
		ie = encodeSyncIE(f.Sync)
	case f.Ack != nil:
		flags |= FlagHasAckIE
		if f.Ack.NACK {
			flags |= FlagNACK
		}
		ie = encodeAckIE(f.Ack)
	}

	payload := f.Payload
	bodyLen := (FrameHeaderSize - lengthFieldSize) + len(ie) + len(payload) + crcSize + terminalSize
	if FrameHeaderSize+len(ie)+len(payload)+crcSize+terminalSize > MaxFrameSize {
		return nil, ErrPayloadTooLong
	}

	total := lengthFieldSize + bodyLen
	data := make([]byte, total)
	data[0] = byte(bodyLen)
	copy(data[1:9], f.Dest[:])
	copy(data[9:17], f.Src[:])
	data[17] = byte(f.Type)
	data[18] = f.Seq
	data[19] = byte(flags)

	off := FrameHeaderSize
	copy(data[off:], ie)
	off += len(ie)
	copy(data[off:], payload)
	off += len(payload)

	crc := crc32.ChecksumIEEE(data[FrameHeaderSize:off])
	binary.LittleEndian.PutUint32(data[off:off+crcSize], crc)
	data[total-1] = frameTerminal

	return data, nil
}

// Decode parses on-air bytes back into a Frame, validating the terminal
// byte and CRC32 the way the teacher's DecodeFrame does.
func Decode(data []byte) (*Frame, error) {
	if len(data) < FrameHeaderSize+crcSize+terminalSize {
		return nil, ErrShortFrame
	}
	bodyLen := int(data[0])
	total := lengthFieldSize + bodyLen
	if total > len(data) {
		return nil, ErrShortFrame
	}
	if data[total-1] != frameTerminal {
		return nil, ErrBadTerminal
	}

	f := &Frame{
		Type:  FrameType(data[17]),
		Seq:   data[18],
		Flags: FrameFlags(data[19]),
	}
	copy(f.Dest[:], data[1:9])
	copy(f.Src[:], data[9:17])

	off := FrameHeaderSize
	crcOffset := total - terminalSize - crcSize

	switch {
	case f.Flags.has(FlagHasSyncIE):
		if off+ieSyncSize > crcOffset {
			return nil, ErrShortFrame
		}
		f.Sync = decodeSyncIE(data[off : off+ieSyncSize])
		off += ieSyncSize
	case f.Flags.has(FlagHasAckIE):
		if off+ieAckSize > crcOffset {
			return nil, ErrShortFrame
		}
		f.Ack = decodeAckIE(data[off : off+ieAckSize])
		off += ieAckSize
	}

	payloadLen := crcOffset - off
	if payloadLen < 0 {
		return nil, ErrShortFrame
	}
	if payloadLen > 0 {
		f.Payload = make([]byte, payloadLen)
		copy(f.Payload, data[off:crcOffset])
	} else {
		f.Payload = make([]byte, 0)
	}

	gotCRC := binary.LittleEndian.Uint32(data[crcOffset : crcOffset+crcSize])
	wantCRC := crc32.ChecksumIEEE(data[FrameHeaderSize:crcOffset])
	if gotCRC != wantCRC {
		return nil, ErrBadCRC
	}
	f.CRC = gotCRC

	return f, nil
}

const asnByteWidth = 5 // 40 bits

func encodeSyncIE(s *SyncIE) []byte {
	buf := make([]byte, ieSyncSize)
	buf[0] = byte(FlagHasSyncIE)
	putUint40(buf[1:1+asnByteWidth], s.ASN)
	buf[1+asnByteWidth] = s.JoinPriority
	return buf
}

func decodeSyncIE(buf []byte) *SyncIE {
	return &SyncIE{
		ASN:          getUint40(buf[1 : 1+asnByteWidth]),
		JoinPriority: buf[1+asnByteWidth],
	}
}

func encodeAckIE(a *AckIE) []byte {
	buf := make([]byte, ieAckSize)
	buf[0] = byte(FlagHasAckIE)
	binary.LittleEndian.PutUint32(buf[1:5], uint32(a.DriftTicks))
	if a.NACK {
		buf[5] = 1
	}
	return buf
}

func decodeAckIE(buf []byte) *AckIE {
	return &AckIE{
		DriftTicks: int32(binary.LittleEndian.Uint32(buf[1:5])),
		NACK:       buf[5] != 0,
	}
}

func putUint40(buf []byte, v uint64) {
	for i := 0; i < asnByteWidth; i++ {
		buf[i] = byte(v >> (8 * i))
	}
}

func getUint40(buf []byte) uint64 {
	var v uint64
	for i := 0; i < asnByteWidth; i++ {
		v |= uint64(buf[i]) << (8 * i)
	}
	return v
}
