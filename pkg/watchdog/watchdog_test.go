package watchdog

import (
	"testing"
	"time"
)

type fakeSender struct {
	sent [][]byte
}

func (f *fakeSender) Send(b []byte) error {
	cp := make([]byte, len(b))
	copy(cp, b)
	f.sent = append(f.sent, cp)
	return nil
}

func TestRunSendsPetUntilStopped(t *testing.T) {
	sender := &fakeSender{}
	p := New(sender, nil)

	done := make(chan struct{})
	go func() {
		p.Run()
		close(done)
	}()

	time.Sleep(2500 * time.Millisecond)
	if err := p.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	<-done

	if len(sender.sent) < 2 {
		t.Fatalf("expected at least 2 PET datagrams, got %d", len(sender.sent))
	}
	for _, pkt := range sender.sent {
		if string(pkt) != petPayload {
			t.Fatalf("expected payload %q, got %q", petPayload, pkt)
		}
	}
}

func TestStopIsIdempotent(t *testing.T) {
	p := New(&fakeSender{}, nil)
	if err := p.Stop(); err != nil {
		t.Fatalf("first stop: %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}
