// Package fram drives the F-RAM non-volatile store and implements the
// persistent entry set codec used to reflect a declared subset of the
// Object Dictionary across power cycles.
package fram

import (
	"fmt"

	"oresat.org/c3/pkg/hw"
)

const (
	// Addr is the default 7-bit I²C address (0x50..0x5E, even);
	// overridable via the FRAM_ADDR environment variable.
	Addr uint16 = 0x50
	// Capacity is the F-RAM's total addressable size in bytes.
	Capacity = 8 * 1024
)

// FRAM is the raw byte-addressable F-RAM device.
type FRAM struct {
	drv    hw.Driver
	busNum int
	addr   uint16
}

// New constructs a FRAM bound to the given I²C bus/address.
func New(drv hw.Driver, busNum int, addr uint16) *FRAM {
	return &FRAM{drv: drv, busNum: busNum, addr: addr}
}

// Read reads n bytes starting at offset (2-byte little-endian offset
// prefix on the wire).
func (f *FRAM) Read(offset int, n int) ([]byte, error) {
	if offset < 0 || offset+n > Capacity {
		return nil, fmt.Errorf("fram: read [%d, %d) out of range (capacity %d)", offset, offset+n, Capacity)
	}
	r, err := f.drv.I2CReadAt(f.busNum, f.addr, uint16(offset), n)
	if err != nil {
		return nil, fmt.Errorf("fram: read at %d: %w", offset, err)
	}
	return r, nil
}

// Write writes data starting at offset.
func (f *FRAM) Write(offset int, data []byte) error {
	if offset < 0 || offset+len(data) > Capacity {
		return fmt.Errorf("fram: write [%d, %d) out of range (capacity %d)", offset, offset+len(data), Capacity)
	}
	if err := f.drv.I2CWriteAt(f.busNum, f.addr, uint16(offset), data); err != nil {
		return fmt.Errorf("fram: write at %d: %w", offset, err)
	}
	return nil
}
