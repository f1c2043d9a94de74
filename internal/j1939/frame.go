// Package j1939 decodes the 19-byte J1939 message blob produced by the
// RP1210 ReadMessage call (RP1210C section 15.5) and rebuilds the 29-bit
// extended CAN identifier from its fields.
package j1939

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
)

// Field masks for the extended CAN identifier layout:
// bits 28-26 priority, bits 25-8 PGN, bits 7-0 source address.
const (
	PriorityMask = 0x7
	PGNMask      = 0x3FFFF
	SourceMask   = 0xFF
	EFFIDMask    = 0x1FFFFFFF
)

// BlobLen is the fixed size of the RP1210 J1939 message blob.
const BlobLen = 19

var ErrShortBlob = errors.New("j1939: blob shorter than 19 bytes")

// Frame is one decoded J1939 message. Values are normalized at decode
// time: PGN is masked to 18 bits and Priority to 3.
type Frame struct {
	Timestamp   float32 `json:"timestamp"`
	Echo        byte    `json:"echo"`
	PGN         uint32  `json:"pgn"`
	Priority    uint8   `json:"priority"`
	Source      uint8   `json:"source"`
	Destination uint8   `json:"destination"`
	Data        [8]byte `json:"data"`
}

// Decode parses the RP1210 blob layout:
//
//	[0:4]   timestamp, big-endian IEEE-754 float32
//	[4]     echo byte
//	[5:8]   PGN, little-endian (low byte first)
//	[8]     priority (low 3 bits)
//	[9]     source address
//	[10]    destination address
//	[11:19] payload, 8 bytes
//
// Bytes beyond the first 19 are ignored. The layout is fixed by the
// vendor hardware; decoding cannot fail for a correctly sized input.
func Decode(blob []byte) (Frame, error) {
	if len(blob) < BlobLen {
		return Frame{}, fmt.Errorf("%w: got %d", ErrShortBlob, len(blob))
	}
	var f Frame
	f.Timestamp = math.Float32frombits(binary.BigEndian.Uint32(blob[0:4]))
	f.Echo = blob[4]
	// PGN is stored low byte first; reassemble big-endian before masking.
	f.PGN = (uint32(blob[7])<<16 | uint32(blob[6])<<8 | uint32(blob[5])) & PGNMask
	f.Priority = blob[8] & PriorityMask
	f.Source = blob[9]
	f.Destination = blob[10]
	copy(f.Data[:], blob[11:19])
	return f, nil
}

// DecodeHex parses a contiguous hex string (two digits per byte) and
// decodes the resulting blob.
func DecodeHex(s string) (Frame, error) {
	if len(s)%2 != 0 {
		return Frame{}, fmt.Errorf("j1939: odd hex length %d", len(s))
	}
	blob, err := hex.DecodeString(s)
	if err != nil {
		return Frame{}, fmt.Errorf("j1939: bad hex: %w", err)
	}
	return Decode(blob)
}

// ID packs priority, PGN and source address into the 29-bit extended
// CAN identifier. Out-of-range inputs are clamped by masking, matching
// the bitfield semantics of the protocol.
func ID(priority uint8, pgn uint32, source uint8) uint32 {
	return uint32(priority&PriorityMask)<<26 | (pgn&PGNMask)<<8 | uint32(source)&SourceMask
}

// CANID returns the frame's extended CAN identifier.
func (f Frame) CANID() uint32 { return ID(f.Priority, f.PGN, f.Source) }
