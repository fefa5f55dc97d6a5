package codec

import (
	"bytes"
	"testing"
)

func testKey() Key {
	var k Key
	for i := range k {
		k[i] = byte(i)
	}
	return k
}

func TestPackUnpackRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{0x01},
		bytes.Repeat([]byte{0xAB}, 64),
		bytes.Repeat([]byte{0x00}, 900), // near the ~950-byte practical max frame
	}
	key := testKey()
	for _, payload := range cases {
		frame := Pack(payload, 42, VcidCommand, true, key)
		got, err := Unpack(frame, key, false)
		if err != nil {
			t.Fatalf("unpack(pack(payload len %d)): %v", len(payload), err)
		}
		if !bytes.Equal(got.Payload, payload) {
			t.Fatalf("payload mismatch: got %x want %x", got.Payload, payload)
		}
		if got.SeqNum != 42 {
			t.Fatalf("seq num mismatch: got %d want 42", got.SeqNum)
		}
		if got.Vcid != VcidCommand || !got.SrcDest {
			t.Fatalf("vcid/srcDest mismatch: got %v/%v", got.Vcid, got.SrcDest)
		}
	}
}

func TestUnpackBadCRC(t *testing.T) {
	key := testKey()
	frame := Pack([]byte("hello"), 1, VcidCommand, false, key)
	frame[len(frame)-1] ^= 0xFF
	if _, err := Unpack(frame, key, false); err != ErrBadCRC {
		t.Fatalf("expected ErrBadCRC, got %v", err)
	}
}

func TestUnpackBadMAC(t *testing.T) {
	key := testKey()
	frame := Pack([]byte("hello"), 1, VcidCommand, false, key)
	// Flip the last byte of the 32-byte MAC (just before the CRC) and
	// repair the CRC so only the MAC is corrupted.
	macEnd := len(frame) - crcLen
	frame[macEnd-1] ^= 0xFF
	fixed := crcCCITT(frame[:macEnd], 0)
	frame[macEnd] = byte(fixed)
	frame[macEnd+1] = byte(fixed >> 8)

	if _, err := Unpack(frame, key, false); err != ErrBadAuth {
		t.Fatalf("expected ErrBadAuth, got %v", err)
	}
}

func TestUnpackTooShort(t *testing.T) {
	key := testKey()
	frame := Pack(nil, 1, VcidCommand, false, key)
	short := frame[:MinFrameLen-1]
	if _, err := Unpack(short, key, false); err != ErrTooShort {
		t.Fatalf("expected ErrTooShort, got %v", err)
	}
}

func TestUnpackAllowUnauth(t *testing.T) {
	key := testKey()
	frame := Pack([]byte("hello"), 1, VcidCommand, false, key)
	macEnd := len(frame) - crcLen
	frame[macEnd-1] ^= 0xFF
	fixed := crcCCITT(frame[:macEnd], 0)
	frame[macEnd] = byte(fixed)
	frame[macEnd+1] = byte(fixed >> 8)

	if _, err := Unpack(frame, key, true); err != nil {
		t.Fatalf("allowUnauth should skip the MAC check, got %v", err)
	}
}
