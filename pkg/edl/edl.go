// Package edl runs the EDL uplink/downlink service: dequeue a transfer
// frame, unpack and authenticate it, apply the flight-mode sequence policy,
// route by virtual-channel-id, and pack+emit any response.
package edl

import (
	"fmt"
	"log"
	"time"

	"oresat.org/c3/pkg/codec"
	"oresat.org/c3/pkg/od"
	"oresat.org/c3/pkg/registry"
)

const idleSleep = 50 * time.Millisecond

// FileTransfer handles vcid=1 frames; the file-transfer protocol itself is
// a separate concern from the command-and-control core.
type FileTransfer interface {
	Handle(payload []byte) (resp []byte, hasResp bool, err error)
}

// Receiver dequeues one inbound transfer frame, or (nil, nil) if none is
// waiting — satisfied by *radio.Receiver.
type Receiver interface {
	Receive() ([]byte, error)
}

// Sender emits one outbound transfer frame — satisfied by *radio.Sender.
type Sender interface {
	Send([]byte) error
}

var keyNames = [4]string{od.EDL_KEY_0, od.EDL_KEY_1, od.EDL_KEY_2, od.EDL_KEY_3}

// Service runs the EDL command/response loop over a pair of UDP endpoints.
type Service struct {
	dict   *od.Dictionary
	disp   *registry.Dispatcher
	in     Receiver
	out    Sender
	ft     FileTransfer
	logger *log.Logger
	stopCh chan struct{}
}

// New constructs an EDL Service. ft may be nil if file-transfer frames are
// never expected to arrive.
func New(dict *od.Dictionary, disp *registry.Dispatcher, in Receiver, out Sender, ft FileTransfer, logger *log.Logger) *Service {
	return &Service{
		dict:   dict,
		disp:   disp,
		in:     in,
		out:    out,
		ft:     ft,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Stop signals Run to exit at its next dequeue.
func (s *Service) Stop() { close(s.stopCh) }

// InjectFrame handles one transfer frame as if it had arrived over the
// uplink radio endpoint — used by ground-support tooling to feed EDL
// commands in without an actual over-the-air hop.
func (s *Service) InjectFrame(raw []byte) { s.handle(raw) }

// Run dequeues and handles transfer frames until Stop is called.
func (s *Service) Run() {
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		raw, err := s.in.Receive()
		if err != nil {
			s.logf("receive: %v", err)
			continue
		}
		if raw == nil {
			time.Sleep(idleSleep)
			continue
		}
		s.handle(raw)
	}
}

func (s *Service) handle(raw []byte) {
	key := s.activeKey()
	unpacked, err := codec.Unpack(raw, key, false)
	if err != nil {
		s.logf("unpack: %v", err)
		s.reject()
		return
	}

	_ = s.dict.Write(od.EDL_LAST_TIMESTAMP, od.U32(uint32(time.Now().Unix())))

	if s.dict.Read(od.FLIGHT_MODE).AsBool() {
		last := s.dict.Read(od.EDL_SEQUENCE_COUNT).AsU32()
		if unpacked.SeqNum <= last {
			s.logf("dropping replayed/stale seq %d (last %d)", unpacked.SeqNum, last)
			s.reject()
			return
		}
		_ = s.dict.Write(od.EDL_SEQUENCE_COUNT, od.U32(unpacked.SeqNum))
	}

	var (
		respPayload []byte
		hasResp     bool
	)
	switch unpacked.Vcid {
	case codec.VcidCommand:
		respPayload, hasResp, err = s.disp.Dispatch(unpacked.Payload)
	case codec.VcidFileTransfer:
		if s.ft == nil {
			err = fmt.Errorf("edl: no file-transfer collaborator configured")
			break
		}
		respPayload, hasResp, err = s.ft.Handle(unpacked.Payload)
	default:
		err = fmt.Errorf("edl: unknown vcid %d", unpacked.Vcid)
	}
	if err != nil {
		s.logf("route vcid %d: %v", unpacked.Vcid, err)
		s.reject()
		return
	}
	if !hasResp {
		return
	}

	frame := codec.Pack(respPayload, unpacked.SeqNum, unpacked.Vcid, !unpacked.SrcDest, key)
	if err := s.out.Send(frame); err != nil {
		s.logf("send: %v", err)
	}
}

func (s *Service) reject() {
	count := s.dict.Read(od.EDL_REJECTED_COUNT).AsU32()
	_ = s.dict.Write(od.EDL_REJECTED_COUNT, od.U32(count+1))
}

// activeKey returns the currently-selected EDL MAC key.
func (s *Service) activeKey() codec.Key {
	idx := s.dict.Read(od.EDL_ACTIVE_KEY_INDEX).AsU8()
	if int(idx) >= len(keyNames) {
		idx = 0
	}
	raw := s.dict.Read(keyNames[idx]).AsBytes()
	var key codec.Key
	copy(key[:], raw)
	return key
}

// SetActiveKey writes one of the four key slots and selects it atomically,
// so a reader can never observe a mismatched (index, key bytes) pair.
func (s *Service) SetActiveKey(index uint8, key codec.Key) error {
	if int(index) >= len(keyNames) {
		return fmt.Errorf("edl: key index %d out of range", index)
	}
	if err := s.dict.Write(keyNames[index], od.Bytes(key[:])); err != nil {
		return err
	}
	return s.dict.Write(od.EDL_ACTIVE_KEY_INDEX, od.U8(index))
}

func (s *Service) logf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Printf("[edl] "+format, args...)
	}
}
