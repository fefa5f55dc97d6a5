// Package codec implements the EDL transfer-frame wire format: the outer
// variable-length envelope with an insert-zone sequence number and frame
// CRC, wrapping an inner payload authenticated by a keyed MAC.
package codec

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
)

// SpacecraftID identifies this spacecraft in the primary header ("OS" in
// ASCII).
const SpacecraftID uint16 = 0x4F53

// Vcid selects the virtual channel a frame's data field is routed to.
type Vcid uint8

const (
	VcidCommand      Vcid = 0
	VcidFileTransfer Vcid = 1
)

const (
	primaryHeaderLen = 7
	seqNumLen        = 4
	dfhLen           = 1
	macLen           = 32
	crcLen           = 2

	// MinFrameLen is the minimum valid transfer frame length: header +
	// insert zone + data-field header + MAC + CRC, with a zero-length
	// command payload.
	MinFrameLen = primaryHeaderLen + seqNumLen + dfhLen + macLen + crcLen

	// dataFieldHeader is a fixed, non-segmented construction rule marker
	// for the single mission-specific protocol this C3 core speaks; there
	// is exactly one data-field shape, so the value is a constant rather
	// than a parsed bitfield.
	dataFieldHeader byte = 0x01
)

// Errors returned by Unpack, matching the protocol error taxonomy
//.
var (
	ErrTooShort    = errors.New("codec: frame shorter than minimum length")
	ErrBadFraming  = errors.New("codec: malformed frame header")
	ErrBadCRC      = errors.New("codec: frame CRC mismatch")
	ErrBadAuth     = errors.New("codec: MAC mismatch")
)

// Key is a 32-byte EDL MAC key.
type Key [32]byte

// Pack serializes payload (command-id ∥ command payload, or a response's
// equivalent) into a complete transfer frame: computes a keyed MAC over
// payload, embeds both in the data field, builds the primary header with
// frame_len = payload_len + MinFrameLen − 1, writes seqNum into the
// little-endian insert zone, and appends a CRC-CCITT(seed 0) over the
// frame built so far.
func Pack(payload []byte, seqNum uint32, vcid Vcid, srcDest bool, key Key) []byte {
	mac := hmac.New(sha256.New, key[:])
	mac.Write(payload)
	tag := mac.Sum(nil) // 32 bytes (sha256), matches HMAC_LEN

	dataField := make([]byte, 0, len(payload)+macLen)
	dataField = append(dataField, payload...)
	dataField = append(dataField, tag...)

	frameLen := uint16(len(payload) + MinFrameLen - 1)

	frame := make([]byte, 0, MinFrameLen+len(payload))
	frame = append(frame, packPrimaryHeader(vcid, srcDest, frameLen)...)

	seq := make([]byte, seqNumLen)
	binary.LittleEndian.PutUint32(seq, seqNum)
	frame = append(frame, seq...)

	frame = append(frame, dataFieldHeader)
	frame = append(frame, dataField...)

	crc := crcCCITT(frame, 0)
	crcBytes := make([]byte, crcLen)
	binary.LittleEndian.PutUint16(crcBytes, crc)
	frame = append(frame, crcBytes...)

	return frame
}

// Unpacked is the result of a successful Unpack.
type Unpacked struct {
	Payload []byte
	SeqNum  uint32
	Vcid    Vcid
	SrcDest bool
}

// Unpack validates and strips a transfer frame's outer and inner
// envelopes. allowUnauth skips the MAC check (development only, never set
// in flight).
func Unpack(raw []byte, key Key, allowUnauth bool) (Unpacked, error) {
	if len(raw) < MinFrameLen {
		return Unpacked{}, ErrTooShort
	}

	body, gotCRC := raw[:len(raw)-crcLen], raw[len(raw)-crcLen:]
	wantCRC := crcCCITT(body, 0)
	if binary.LittleEndian.Uint16(gotCRC) != wantCRC {
		return Unpacked{}, ErrBadCRC
	}

	vcid, srcDest, frameLen, err := unpackPrimaryHeader(body[:primaryHeaderLen])
	if err != nil {
		return Unpacked{}, err
	}
	// frame_len is payload_len + MinFrameLen - 1, measured over the whole
	// frame including the CRC that Unpack was called with.
	if int(frameLen)+1 != len(raw) {
		return Unpacked{}, ErrBadFraming
	}

	seqNum := binary.LittleEndian.Uint32(body[primaryHeaderLen : primaryHeaderLen+seqNumLen])

	dfhOffset := primaryHeaderLen + seqNumLen
	if body[dfhOffset] != dataFieldHeader {
		return Unpacked{}, ErrBadFraming
	}
	dataField := body[dfhOffset+dfhLen:]
	if len(dataField) < macLen {
		return Unpacked{}, ErrBadFraming
	}

	payload := dataField[:len(dataField)-macLen]
	gotTag := dataField[len(dataField)-macLen:]

	if !allowUnauth {
		mac := hmac.New(sha256.New, key[:])
		mac.Write(payload)
		wantTag := mac.Sum(nil)
		if !hmac.Equal(gotTag, wantTag) {
			return Unpacked{}, ErrBadAuth
		}
	}

	return Unpacked{
		Payload: payload,
		SeqNum:  seqNum,
		Vcid:    vcid,
		SrcDest: srcDest,
	}, nil
}

// packPrimaryHeader builds the 7-byte primary header: spacecraft id,
// virtual-channel id, source/destination origin tag, and frame length.
// Byte-aligned rather than USLP's dense bitfield packing — ground-segment
// wire compatibility with the original USLP encoding is not a goal here,
// only the fields this spec names.
func packPrimaryHeader(vcid Vcid, srcDest bool, frameLen uint16) []byte {
	h := make([]byte, primaryHeaderLen)
	binary.BigEndian.PutUint16(h[0:2], SpacecraftID)
	var flags byte
	if srcDest {
		flags |= 0x01
	}
	flags |= byte(vcid) << 1
	h[2] = flags
	binary.BigEndian.PutUint16(h[3:5], frameLen)
	// h[5], h[6] reserved (version/map-id), always 0.
	return h
}

func unpackPrimaryHeader(h []byte) (vcid Vcid, srcDest bool, frameLen uint16, err error) {
	if len(h) != primaryHeaderLen {
		return 0, false, 0, ErrBadFraming
	}
	scid := binary.BigEndian.Uint16(h[0:2])
	if scid != SpacecraftID {
		return 0, false, 0, fmt.Errorf("%w: spacecraft id %#04x", ErrBadFraming, scid)
	}
	flags := h[2]
	srcDest = flags&0x01 != 0
	vcid = Vcid((flags >> 1) & 0x07)
	frameLen = binary.BigEndian.Uint16(h[3:5])
	return vcid, srcDest, frameLen, nil
}
