package radio

import (
	"bytes"
	"net"
	"testing"
)

func TestSenderReceiverRoundTrip(t *testing.T) {
	rx, err := NewReceiver(0)
	if err != nil {
		t.Fatalf("new receiver: %v", err)
	}
	defer rx.Close()

	port := rx.conn.LocalAddr().(*net.UDPAddr).Port
	tx, err := NewSender(port)
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}
	defer tx.Close()

	want := []byte("hello edl")
	if err := tx.Send(want); err != nil {
		t.Fatalf("send: %v", err)
	}
	got, err := rx.Receive()
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("round trip: got %q want %q", got, want)
	}
}

func TestReceiveTimesOutWithNoError(t *testing.T) {
	rx, err := NewReceiver(0)
	if err != nil {
		t.Fatalf("new receiver: %v", err)
	}
	defer rx.Close()

	got, err := rx.Receive()
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil on timeout, got %v", got)
	}
}
