package hw

import (
	"fmt"
	"sync"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/host"
)

// RealDriver drives actual silicon through periph.io: one i2c.BusCloser per
// bus number (opened lazily and cached, since host.Init() enumerates buses
// once for the process), named GPIO pins resolved through gpioreg, and ADC
// channels resolved the same way the lepton driver in the pack resolves
// its chip-select line (other_examples/...google-periph...lepton.go:
// gpio.PinOut obtained via a board-specific registry lookup).
type RealDriver struct {
	mu    sync.Mutex
	buses map[int]i2c.BusCloser
	gpios map[string]gpio.PinIO
	adcs  map[string]ADCChannel
}

// ADCChannel abstracts a single analog input. periph.io has no built-in
// generic ADC interface; callers supply one per board (e.g. an I²C ADC
// like an ADS1115) via RegisterADC.
type ADCChannel interface {
	Read() (int, error)
}

// NewRealDriver initializes the periph.io host drivers once for the
// process and returns a Driver that resolves I²C buses and GPIO pins on
// demand.
func NewRealDriver() (*RealDriver, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("hw: periph host init: %w", err)
	}
	return &RealDriver{
		buses: make(map[int]i2c.BusCloser),
		gpios: make(map[string]gpio.PinIO),
		adcs:  make(map[string]ADCChannel),
	}, nil
}

// RegisterADC wires a named analog channel (e.g. "BATTERY_CURRENT") to its
// backing implementation. cmd/c3 registers no channels, so ADCRead on a
// RealDriver returns ErrNotConfigured until a caller registers one.
func (d *RealDriver) RegisterADC(name string, ch ADCChannel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.adcs[name] = ch
}

func (d *RealDriver) bus(busNum int) (i2c.BusCloser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if b, ok := d.buses[busNum]; ok {
		return b, nil
	}
	b, err := i2creg.Open(fmt.Sprintf("%d", busNum))
	if err != nil {
		return nil, fmt.Errorf("hw: open i2c bus %d: %w", busNum, err)
	}
	d.buses[busNum] = b
	return b, nil
}

func (d *RealDriver) dev(busNum int, addr uint16) (*i2c.Dev, error) {
	b, err := d.bus(busNum)
	if err != nil {
		return nil, err
	}
	return &i2c.Dev{Addr: addr, Bus: b}, nil
}

// I2CReadAt issues the F-RAM wire transaction: write a 2-byte little-endian
// offset, then read n bytes.
func (d *RealDriver) I2CReadAt(busNum int, addr uint16, offset uint16, n int) ([]byte, error) {
	dev, err := d.dev(busNum, addr)
	if err != nil {
		return nil, err
	}
	w := []byte{byte(offset), byte(offset >> 8)}
	r := make([]byte, n)
	if err := dev.Tx(w, r); err != nil {
		return nil, err
	}
	return r, nil
}

// I2CWriteAt issues the F-RAM wire transaction: write the 2-byte
// little-endian offset immediately followed by data, in one transaction.
func (d *RealDriver) I2CWriteAt(busNum int, addr uint16, offset uint16, data []byte) error {
	dev, err := d.dev(busNum, addr)
	if err != nil {
		return err
	}
	w := make([]byte, 0, 2+len(data))
	w = append(w, byte(offset), byte(offset>>8))
	w = append(w, data...)
	return dev.Tx(w, nil)
}

// I2CReadReg issues the GPIO-expander wire transaction: write the 1-byte
// register address, then read its single-byte value.
func (d *RealDriver) I2CReadReg(busNum int, addr uint16, reg byte) (byte, error) {
	dev, err := d.dev(busNum, addr)
	if err != nil {
		return 0, err
	}
	r := make([]byte, 1)
	if err := dev.Tx([]byte{reg}, r); err != nil {
		return 0, err
	}
	return r[0], nil
}

// I2CWriteReg issues the GPIO-expander wire transaction: write the
// register address immediately followed by its value.
func (d *RealDriver) I2CWriteReg(busNum int, addr uint16, reg byte, value byte) error {
	dev, err := d.dev(busNum, addr)
	if err != nil {
		return err
	}
	return dev.Tx([]byte{reg, value}, nil)
}

func (d *RealDriver) pin(name string) (gpio.PinIO, error) {
	d.mu.Lock()
	if p, ok := d.gpios[name]; ok {
		d.mu.Unlock()
		return p, nil
	}
	d.mu.Unlock()

	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("%w: gpio %s", ErrNotConfigured, name)
	}
	d.mu.Lock()
	d.gpios[name] = p
	d.mu.Unlock()
	return p, nil
}

func (d *RealDriver) GPIORead(name string) (bool, error) {
	p, err := d.pin(name)
	if err != nil {
		return false, err
	}
	return p.Read() == gpio.High, nil
}

func (d *RealDriver) GPIOWrite(name string, high bool) error {
	p, err := d.pin(name)
	if err != nil {
		return err
	}
	return p.Out(gpio.Level(high))
}

func (d *RealDriver) ADCRead(name string) (int, error) {
	d.mu.Lock()
	ch, ok := d.adcs[name]
	d.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("%w: adc %s", ErrNotConfigured, name)
	}
	return ch.Read()
}

func (d *RealDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var firstErr error
	for _, b := range d.buses {
		if err := b.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
