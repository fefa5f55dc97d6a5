package edl

import (
	"testing"

	"oresat.org/c3/pkg/codec"
	"oresat.org/c3/pkg/od"
	"oresat.org/c3/pkg/registry"
)

type fakeReceiver struct {
	frames [][]byte
}

func (f *fakeReceiver) Receive() ([]byte, error) {
	if len(f.frames) == 0 {
		return nil, nil
	}
	next := f.frames[0]
	f.frames = f.frames[1:]
	return next, nil
}

type fakeSender struct {
	sent [][]byte
}

func (f *fakeSender) Send(b []byte) error {
	cp := make([]byte, len(b))
	copy(cp, b)
	f.sent = append(f.sent, cp)
	return nil
}

func pingFrame(seq uint32, arg uint32, key codec.Key) []byte {
	payload := []byte{registry.CmdPing, byte(arg), byte(arg >> 8), byte(arg >> 16), byte(arg >> 24)}
	return codec.Pack(payload, seq, codec.VcidCommand, false, key)
}

func newTestService(rx *fakeReceiver, tx *fakeSender) (*Service, *od.Dictionary) {
	dict := od.NewC3Dictionary()
	disp := &registry.Dispatcher{Dict: dict}
	return New(dict, disp, rx, tx, nil, nil), dict
}

func TestPingRoundTripsThroughRegistry(t *testing.T) {
	var key codec.Key
	frame := pingFrame(1, 0xDEADBEEF, key)
	tx := &fakeSender{}
	svc, _ := newTestService(&fakeReceiver{}, tx)

	svc.handle(frame)

	if len(tx.sent) != 1 {
		t.Fatalf("expected 1 response sent, got %d", len(tx.sent))
	}
	unpacked, err := codec.Unpack(tx.sent[0], key, false)
	if err != nil {
		t.Fatalf("unpack response: %v", err)
	}
	if len(unpacked.Payload) != 5 || unpacked.Payload[0] != registry.CmdPing {
		t.Fatalf("unexpected response payload %x", unpacked.Payload)
	}
}

func TestBadMacIncrementsRejectedCount(t *testing.T) {
	var wrongKey codec.Key
	wrongKey[0] = 0xFF
	frame := pingFrame(1, 42, wrongKey)

	tx := &fakeSender{}
	svc, dict := newTestService(&fakeReceiver{}, tx)

	svc.handle(frame)

	if len(tx.sent) != 0 {
		t.Fatalf("expected no response for a bad MAC, got %d", len(tx.sent))
	}
	if dict.Read(od.EDL_REJECTED_COUNT).AsU32() != 1 {
		t.Fatalf("expected EDL_REJECTED_COUNT=1, got %d", dict.Read(od.EDL_REJECTED_COUNT).AsU32())
	}
}

func TestFlightModeRejectsNonIncreasingSequence(t *testing.T) {
	var key codec.Key
	tx := &fakeSender{}
	svc, dict := newTestService(&fakeReceiver{}, tx)

	_ = dict.Write(od.FLIGHT_MODE, od.Bool(true))
	_ = dict.Write(od.EDL_SEQUENCE_COUNT, od.U32(5))

	svc.handle(pingFrame(5, 1, key))

	if len(tx.sent) != 0 {
		t.Fatalf("expected stale/replayed sequence to be dropped, got %d responses", len(tx.sent))
	}
	if dict.Read(od.EDL_REJECTED_COUNT).AsU32() != 1 {
		t.Fatalf("expected EDL_REJECTED_COUNT=1, got %d", dict.Read(od.EDL_REJECTED_COUNT).AsU32())
	}

	svc.handle(pingFrame(6, 1, key))
	if len(tx.sent) != 1 {
		t.Fatalf("expected a response once the sequence advances, got %d", len(tx.sent))
	}
	if dict.Read(od.EDL_SEQUENCE_COUNT).AsU32() != 6 {
		t.Fatalf("expected EDL_SEQUENCE_COUNT updated to 6, got %d", dict.Read(od.EDL_SEQUENCE_COUNT).AsU32())
	}
}

func TestSetActiveKeySelectsNewKeyAtomically(t *testing.T) {
	tx := &fakeSender{}
	svc, dict := newTestService(&fakeReceiver{}, tx)

	var newKey codec.Key
	newKey[0] = 0x42
	if err := svc.SetActiveKey(2, newKey); err != nil {
		t.Fatalf("SetActiveKey: %v", err)
	}
	if dict.Read(od.EDL_ACTIVE_KEY_INDEX).AsU8() != 2 {
		t.Fatalf("expected active key index 2, got %d", dict.Read(od.EDL_ACTIVE_KEY_INDEX).AsU8())
	}
	if got := svc.activeKey(); got != newKey {
		t.Fatalf("activeKey() did not return the newly-set key")
	}

	frame := pingFrame(1, 7, newKey)
	svc.handle(frame)
	if len(tx.sent) != 1 {
		t.Fatalf("expected ping authenticated under the new active key to succeed")
	}
}
