// Package uart arbitrates the single shared debug UART the node manager
// routes to one node at a time.
package uart

import (
	"fmt"
	"sync"

	"go.bug.st/serial"
)

// Shared owns the one physical UART resource, standardized on
// go.bug.st/serial instead of the per-file github.com/tarm/serial usage
// this package grew out of (DESIGN.md "pkg/uart" entry).
type Shared struct {
	devicePath string
	baud       int

	mu      sync.Mutex
	port    serial.Port
	routed  string // name of the node currently routed to the UART, "" if none
	stopped chan struct{}
}

// New constructs a Shared UART bound to devicePath, unopened until Route
// is first called.
func New(devicePath string, baud int) *Shared {
	return &Shared{devicePath: devicePath, baud: baud}
}

// Route switches the UART to the named node, closing any previous
// connection first — only one node is ever connected at a time.
func (s *Shared) Route(nodeName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port != nil {
		_ = s.port.Close()
		s.port = nil
	}

	mode := &serial.Mode{BaudRate: s.baud, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit}
	port, err := serial.Open(s.devicePath, mode)
	if err != nil {
		return fmt.Errorf("uart: open %s for node %s: %w", s.devicePath, nodeName, err)
	}
	s.port = port
	s.routed = nodeName
	return nil
}

// Unroute closes the UART, leaving no node connected.
func (s *Shared) Unroute() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	s.routed = ""
	return err
}

// Routed returns the name of the node currently connected, or "".
func (s *Shared) Routed() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.routed
}

// Write sends data to whichever node is currently routed.
func (s *Shared) Write(data []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return 0, fmt.Errorf("uart: no node routed")
	}
	return s.port.Write(data)
}

// Read reads from whichever node is currently routed.
func (s *Shared) Read(buf []byte) (int, error) {
	s.mu.Lock()
	port := s.port
	s.mu.Unlock()
	if port == nil {
		return 0, fmt.Errorf("uart: no node routed")
	}
	return port.Read(buf)
}
