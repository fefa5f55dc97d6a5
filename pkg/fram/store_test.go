package fram

import (
	"bytes"
	"testing"

	"oresat.org/c3/pkg/hw"
	"oresat.org/c3/pkg/od"
)

func TestRestoreAllZeroYieldsPreDeploy(t *testing.T) {
	drv := hw.NewMockDriver()
	f := New(drv, 0, Addr)
	dict := od.NewC3Dictionary()
	store := NewStore(f, dict)

	if err := store.Restore(); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if dict.Read(od.STATUS).AsInt64() != od.StatusPreDeploy {
		t.Fatalf("status after all-zero restore: got %d want PRE_DEPLOY", dict.Read(od.STATUS).AsInt64())
	}
}

func TestPersistRestoreRoundTrip(t *testing.T) {
	drv := hw.NewMockDriver()
	f := New(drv, 0, Addr)
	dict := od.NewC3Dictionary()
	store := NewStore(f, dict)

	if err := dict.Write(od.STATUS, od.U8(uint8(od.StatusBeacon))); err != nil {
		t.Fatalf("write status: %v", err)
	}
	if err := dict.Write(od.EDL_SEQUENCE_COUNT, od.U32(12345)); err != nil {
		t.Fatalf("write seq: %v", err)
	}
	if err := store.Persist(); err != nil {
		t.Fatalf("persist: %v", err)
	}

	fresh := od.NewC3Dictionary()
	freshStore := NewStore(f, fresh)
	if err := freshStore.Restore(); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if fresh.Read(od.STATUS).AsInt64() != od.StatusBeacon {
		t.Fatalf("status round-trip: got %d want BEACON", fresh.Read(od.STATUS).AsInt64())
	}
	if fresh.Read(od.EDL_SEQUENCE_COUNT).AsU32() != 12345 {
		t.Fatalf("seq round-trip: got %d want 12345", fresh.Read(od.EDL_SEQUENCE_COUNT).AsU32())
	}
}

func TestClearPreservesCryptoKeys(t *testing.T) {
	drv := hw.NewMockDriver()
	f := New(drv, 0, Addr)
	dict := od.NewC3Dictionary()
	store := NewStore(f, dict)

	key := bytes.Repeat([]byte{0x42}, 32)
	if err := dict.Write(od.EDL_KEY_0, od.Bytes(key)); err != nil {
		t.Fatalf("write key: %v", err)
	}
	if err := dict.Write(od.EDL_SEQUENCE_COUNT, od.U32(999)); err != nil {
		t.Fatalf("write seq: %v", err)
	}
	if err := store.Persist(); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}

	fresh := od.NewC3Dictionary()
	freshStore := NewStore(f, fresh)
	if err := freshStore.Restore(); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !bytes.Equal(fresh.Read(od.EDL_KEY_0).AsBytes(), key) {
		t.Fatalf("crypto key not preserved across clear_state")
	}
	if fresh.Read(od.EDL_SEQUENCE_COUNT).AsU32() != 0 {
		t.Fatalf("seq count not cleared: got %d", fresh.Read(od.EDL_SEQUENCE_COUNT).AsU32())
	}
}
