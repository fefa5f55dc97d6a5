package registry

import (
	"errors"
	"testing"

	"oresat.org/c3/pkg/od"
)

type fakeNodes struct{}

func (fakeNodes) Enable(nodeID uint8, enable bool) (uint8, error)  { return 1, nil }
func (fakeNodes) Status(nodeID uint8) (uint8, error)               { return 1, nil }
func (fakeNodes) OPDSysEnable(enable bool) error                   { return nil }
func (fakeNodes) OPDScan() (uint8, error)                          { return 3, nil }
func (fakeNodes) OPDProbe(addr uint8) (bool, error)                { return true, nil }
func (fakeNodes) OPDEnable(addr uint8, enable bool) (uint8, error) { return 1, nil }
func (fakeNodes) OPDReset(addr uint8) (uint8, error)               { return 0, nil }
func (fakeNodes) OPDStatus(addr uint8) (uint8, error)              { return 1, nil }

type fakeCAN struct {
	failSDO bool
}

func (c fakeCAN) SDOWrite(nodeID uint8, index uint16, subindex uint8, data []byte) (uint32, error) {
	if c.failSDO {
		return 0, errors.New("no such node")
	}
	return uint32(len(data)), nil
}

func (c fakeCAN) SDORead(nodeID uint8, index uint16, subindex uint8) (uint32, []byte, error) {
	if c.failSDO {
		return 0, nil, errors.New("no such node")
	}
	return 4, []byte{1, 2, 3, 4}, nil
}

func (fakeCAN) Sync() error { return nil }

func newTestDispatcher(failSDO bool) *Dispatcher {
	return &Dispatcher{
		Dict:  od.NewC3Dictionary(),
		Nodes: fakeNodes{},
		Can:   fakeCAN{failSDO: failSDO},
	}
}

func TestDispatchPingRoundTrip(t *testing.T) {
	d := newTestDispatcher(false)
	req := []od.Value{od.U32(0xDEADBEEF)}
	payload := append([]byte{CmdPing}, must(encodeSchema(Schema{od.TypeU32}, req))...)

	resp, hasResp, err := d.Dispatch(payload)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !hasResp {
		t.Fatal("expected a response")
	}
	if resp[0] != CmdPing {
		t.Fatalf("response id mismatch: got %#02x", resp[0])
	}
	got, err := decodeSchema(Schema{od.TypeU32}, resp[1:])
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got[0].AsU32() != 0xDEADBEEF {
		t.Fatalf("ping value mismatch: got %#08x", got[0].AsU32())
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	d := newTestDispatcher(false)
	if _, _, err := d.Dispatch([]byte{0xFF}); err == nil {
		t.Fatal("expected an error for an unknown command id")
	}
}

func TestDispatchSDOReadAbortOnNoSuchNode(t *testing.T) {
	d := newTestDispatcher(true)
	req := []od.Value{od.U8(99), od.U16(0x2000), od.U8(0)}
	payload := append([]byte{CmdSDORead}, must(encodeSchema(Schema{od.TypeU8, od.TypeU16, od.TypeU8}, req))...)

	resp, hasResp, err := d.Dispatch(payload)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !hasResp {
		t.Fatal("SDO_READ always carries an abort-capable response")
	}
	got, err := decodeSchema(Schema{od.TypeU32, od.TypeU32, od.TypeBytes}, resp[1:])
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got[1].AsU32() != SDOAbortNoSuchNode {
		t.Fatalf("expected abort code %#08x, got %#08x", SDOAbortNoSuchNode, got[1].AsU32())
	}
}

func TestDispatchSDOWriteAbortOnNoSuchNode(t *testing.T) {
	d := newTestDispatcher(true)
	req := []od.Value{od.U8(99), od.U16(0x2000), od.U8(0), od.U32(7), od.Bytes([]byte{1, 2, 3, 4})}
	schema := Schema{od.TypeU8, od.TypeU16, od.TypeU8, od.TypeU32, od.TypeBytes}
	payload := append([]byte{CmdSDOWrite}, must(encodeSchema(schema, req))...)

	resp, hasResp, err := d.Dispatch(payload)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !hasResp {
		t.Fatal("SDO_WRITE always carries an abort-capable response")
	}
	got, err := decodeSchema(Schema{od.TypeU32}, resp[1:])
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got[0].AsU32() != SDOAbortNoSuchNode {
		t.Fatalf("expected abort code %#08x, got %#08x", SDOAbortNoSuchNode, got[0].AsU32())
	}
}

func must(b []byte, err error) []byte {
	if err != nil {
		panic(err)
	}
	return b
}
