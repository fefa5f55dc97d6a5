// Package watchdog sends the periodic "PET" keepalive datagram that keeps
// an external supervisor from resetting this process, and lets the state
// service stop petting to let a reset actually happen.
package watchdog

import (
	"log"
	"sync"
	"time"
)

const (
	petInterval = 1 * time.Second
	petPayload  = "PET"
)

// Sender emits one datagram to the watchdog supervisor.
type Sender interface {
	Send([]byte) error
}

// Petter sends PET on a fixed interval until Stop is called.
type Petter struct {
	out    Sender
	logger *log.Logger
	stopCh chan struct{}
	once   sync.Once
}

// New constructs a Petter bound to its UDP sender.
func New(out Sender, logger *log.Logger) *Petter {
	return &Petter{out: out, logger: logger, stopCh: make(chan struct{})}
}

// Run sends PET every second until Stop is called.
func (p *Petter) Run() {
	ticker := time.NewTicker(petInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			if err := p.out.Send([]byte(petPayload)); err != nil {
				p.logf("send: %v", err)
			}
		}
	}
}

// Stop halts petting. Safe to call more than once or concurrently with
// Run; a reset-triggering caller and a shutdown path can both call it.
func (p *Petter) Stop() error {
	p.once.Do(func() { close(p.stopCh) })
	return nil
}

func (p *Petter) logf(format string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Printf("[watchdog] "+format, args...)
	}
}
