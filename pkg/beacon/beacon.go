// Package beacon assembles and emits the periodic telemetry downlink
// packet: a fixed, ordered OD field snapshot framed inside an amateur-radio
// link-layer header and trailed by a CRC-32 over the body.
package beacon

import (
	"encoding/binary"
	"hash/crc32"
	"log"
	"time"

	"oresat.org/c3/pkg/od"
)

const (
	maxBodyLen = 255

	callsignLen = 6
	headerLen   = 2*callsignLen + 2 + 1 + 1 // dest+destSSID, src+srcSSID, control, pid
	crcLen      = 4

	control = 0x03 // AX.25 UI frame
	pid     = 0xF0 // no layer 3 protocol
)

// Sender hands a complete downlink packet to the radio endpoint.
type Sender interface {
	Send([]byte) error
}

// Service periodically assembles and sends the beacon packet.
type Service struct {
	dict   *od.Dictionary
	out    Sender
	logger *log.Logger
	stopCh chan struct{}
}

// New constructs a beacon Service and wires its BEACON_SEND_NOW write
// callback to trigger an immediate send, bypassing the delay check.
func New(dict *od.Dictionary, out Sender, logger *log.Logger) *Service {
	s := &Service{dict: dict, out: out, logger: logger, stopCh: make(chan struct{})}
	dict.AddWriteCallback(od.BEACON_SEND_NOW, func(v od.Value) error {
		if !v.AsBool() {
			return nil
		}
		s.send()
		return dict.Write(od.BEACON_SEND_NOW, od.Bool(false))
	})
	return s
}

// Stop signals Run to exit at its next sleep.
func (s *Service) Stop() { close(s.stopCh) }

// Run is the beacon loop: read beacon_delay; if <= 0, idle 1s and retry;
// otherwise send while transmit is permitted and the mission is in BEACON
// state, then sleep the configured delay.
func (s *Service) Run() {
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		delay := s.dict.Read(od.BEACON_DELAY).AsInt64()
		if delay <= 0 {
			if !s.sleep(1 * time.Second) {
				return
			}
			continue
		}

		if s.dict.Read(od.TX_CONTROL_ENABLE).AsBool() && s.dict.Read(od.STATUS).AsInt64() == od.StatusBeacon {
			s.send()
		}

		if !s.sleep(time.Duration(delay) * time.Second) {
			return
		}
	}
}

func (s *Service) sleep(d time.Duration) bool {
	select {
	case <-s.stopCh:
		return false
	case <-time.After(d):
		return true
	}
}

// send assembles and emits one beacon packet: a per-field snapshot in body
// order, a CRC-32 over that body, and the fixed link-layer header.
func (s *Service) send() {
	body := make([]byte, 0, maxBodyLen)
	for _, name := range od.BeaconBodyNames {
		raw, err := s.dict.ByName(name).Encode()
		if err != nil {
			s.logf("encode %s: %v", name, err)
			return
		}
		body = append(body, raw...)
	}
	if len(body) > maxBodyLen {
		s.logf("body %d bytes exceeds %d byte limit, dropping", len(body), maxBodyLen)
		return
	}

	crc := crc32.Update(0, crc32.IEEETable, body)
	crcBytes := make([]byte, crcLen)
	binary.LittleEndian.PutUint32(crcBytes, crc)

	packet := make([]byte, 0, headerLen+len(body)+crcLen)
	packet = append(packet, s.header()...)
	packet = append(packet, body...)
	packet = append(packet, crcBytes...)

	_ = s.dict.Write(od.BEACON_LAST_TIMESTAMP, od.U32(uint32(time.Now().Unix())))

	if err := s.out.Send(packet); err != nil {
		s.logf("send: %v", err)
	}
}

// header builds the 16-byte AX.25 UI-frame header (dest callsign+SSID, src
// callsign+SSID, control, PID) and left-shifts the whole block by 1 bit.
func (s *Service) header() []byte {
	h := make([]byte, 0, headerLen)
	h = append(h, padCallsign(s.dict.Read(od.BEACON_DEST_CALLSIGN).AsString())...)
	h = append(h, s.dict.Read(od.BEACON_DEST_SSID).AsU8())
	h = append(h, padCallsign(s.dict.Read(od.BEACON_SRC_CALLSIGN).AsString())...)
	h = append(h, s.dict.Read(od.BEACON_SRC_SSID).AsU8())
	h = append(h, control, pid)
	shiftLeft1(h)
	return h
}

func padCallsign(cs string) []byte {
	b := make([]byte, callsignLen)
	for i := range b {
		b[i] = ' '
	}
	copy(b, cs)
	return b
}

// shiftLeft1 treats b as one big-endian multi-byte integer and shifts it
// left by one bit, carrying the high bit of each byte into the byte before
// it.
func shiftLeft1(b []byte) {
	for i := 0; i < len(b); i++ {
		var nextBit byte
		if i+1 < len(b) {
			nextBit = (b[i+1] >> 7) & 1
		}
		b[i] = (b[i] << 1) | nextBit
	}
}

func (s *Service) logf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Printf("[beacon] "+format, args...)
	}
}
