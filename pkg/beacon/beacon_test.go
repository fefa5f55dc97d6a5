package beacon

import (
	"encoding/binary"
	"hash/crc32"
	"testing"

	"oresat.org/c3/pkg/od"
)

type fakeSender struct {
	packets [][]byte
}

func (f *fakeSender) Send(b []byte) error {
	cp := make([]byte, len(b))
	copy(cp, b)
	f.packets = append(f.packets, cp)
	return nil
}

func TestSendBodyLayoutAndCRC(t *testing.T) {
	dict := od.NewC3Dictionary()
	sender := &fakeSender{}
	svc := New(dict, sender, nil)

	svc.send()
	if len(sender.packets) != 1 {
		t.Fatalf("expected 1 packet, got %d", len(sender.packets))
	}
	pkt := sender.packets[0]

	wantHeader := svc.header()
	if string(pkt[:headerLen]) != string(wantHeader) {
		t.Fatalf("header mismatch")
	}

	body := pkt[headerLen : len(pkt)-crcLen]
	gotCRC := binary.LittleEndian.Uint32(pkt[len(pkt)-crcLen:])
	wantCRC := crc32.Update(0, crc32.IEEETable, body)
	if gotCRC != wantCRC {
		t.Fatalf("crc mismatch: got %#x want %#x", gotCRC, wantCRC)
	}
}

func TestSendNowWriteCallbackTriggersImmediateSend(t *testing.T) {
	dict := od.NewC3Dictionary()
	sender := &fakeSender{}
	_ = New(dict, sender, nil)

	if err := dict.Write(od.BEACON_SEND_NOW, od.Bool(true)); err != nil {
		t.Fatalf("write BEACON_SEND_NOW: %v", err)
	}
	if len(sender.packets) != 1 {
		t.Fatalf("expected 1 packet from send-now, got %d", len(sender.packets))
	}
	if dict.Read(od.BEACON_SEND_NOW).AsBool() {
		t.Fatalf("BEACON_SEND_NOW should reset to false after send")
	}
}

func TestShiftLeft1(t *testing.T) {
	b := []byte{0x80, 0x01}
	shiftLeft1(b)
	if b[0] != 0x00 || b[1] != 0x02 {
		t.Fatalf("shiftLeft1: got %02x %02x", b[0], b[1])
	}
}
