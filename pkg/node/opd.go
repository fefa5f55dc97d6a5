package node

import (
	"fmt"
	"time"

	"oresat.org/c3/pkg/hw"
)

// GPIO-expander register offsets for the power-domain node.
const (
	regInput    = 0x00
	regOutput   = 0x01
	regPolarity = 0x02
	regConfig   = 0x03
	regTimeout  = 0x04
)

// Pin assignments common to every on-bus node, plus the microcontroller-
// and app-processor-specific extras.
const (
	pinNotFault   = 2 // input
	pinEnable     = 3 // output
	pinCBReset    = 4 // output
	pinBootSelect = 5 // output (MCU and app-processor nodes)
	pinBootSCL    = 0 // input (MCU nodes only)
	pinBootSDA    = 1 // input (MCU nodes only)
	pinUARTRoute  = 7 // output (MCU and app-processor nodes)
)

const (
	opdBusNum    = 1
	opdAddrBase  = 0x18 // inclusive
	opdAddrLimit = 0x23 // inclusive

	maxCOResets  = 3
	resetTimeout = 5 * time.Second
)

// systemEnableGPIO is the single system-enable line gating the whole power
// domain.
const systemEnableGPIO = "OPD_SYS_ENABLE"

// currentADCChannel backs current().
const currentADCChannel = "OPD_CURRENT"

// Fixed scaling applied to the raw ADC sample to produce milliamps,
// matching the documented OPD current-sense network.
const (
	currentRatio       = 1000.0 // mA per V at the sense amp output
	currentSenseOhms   = 0.01
	adcFullScaleVolts  = 3.3
	adcFullScaleCounts = 4096.0
)

// PowerDomain drives the OPD GPIO-expander bus: one expander per on-bus
// node plus the system-enable line.
type PowerDomain struct {
	drv       hw.Driver
	busEnabled bool
	busDead    bool
}

// NewPowerDomain constructs a PowerDomain bound to a hw.Driver.
func NewPowerDomain(drv hw.Driver) *PowerDomain {
	return &PowerDomain{drv: drv}
}

// EnableBus drives the system-enable line high.
func (p *PowerDomain) EnableBus() error {
	if err := p.drv.GPIOWrite(systemEnableGPIO, true); err != nil {
		return fmt.Errorf("opd: enable_bus: %w", err)
	}
	p.busEnabled = true
	p.busDead = false
	return nil
}

// DisableBus drives the system-enable line low.
func (p *PowerDomain) DisableBus() error {
	if err := p.drv.GPIOWrite(systemEnableGPIO, false); err != nil {
		return fmt.Errorf("opd: disable_bus: %w", err)
	}
	p.busEnabled = false
	return nil
}

func (p *PowerDomain) readReg(addr uint8, reg byte) (byte, error) {
	return p.drv.I2CReadReg(opdBusNum, uint16(addr), reg)
}

func (p *PowerDomain) writeReg(addr uint8, reg byte, value byte) error {
	return p.drv.I2CWriteReg(opdBusNum, uint16(addr), reg, value)
}

func (p *PowerDomain) setBit(addr uint8, reg byte, pin uint, high bool) error {
	cur, err := p.readReg(addr, reg)
	if err != nil {
		return err
	}
	if high {
		cur |= 1 << pin
	} else {
		cur &^= 1 << pin
	}
	return p.writeReg(addr, reg, cur)
}

func (p *PowerDomain) readBit(addr uint8, reg byte, pin uint) (bool, error) {
	cur, err := p.readReg(addr, reg)
	if err != nil {
		return false, err
	}
	return cur&(1<<pin) != 0, nil
}

// Probe verifies the node's expander is responsive and configures its
// direction/polarity register bank.
func (p *PowerDomain) Probe(r *Record, reset bool) error {
	if r.OPDAddr == 0 {
		return fmt.Errorf("opd: %s is not on the power bus", r.Name)
	}
	if _, err := p.readReg(r.OPDAddr, regInput); err != nil {
		r.Status = StatusNotFound
		return fmt.Errorf("opd: probe %s: %w", r.Name, err)
	}

	// Configure direction: inputs (not-fault, and for MCU nodes the
	// bootloader SCL/SDA lines) vs outputs (enable, CB-reset, boot-select,
	// UART route).
	var dirInputs byte = 1 << pinNotFault
	if r.Class == ProcMicrocontroller {
		dirInputs |= 1<<pinBootSCL | 1<<pinBootSDA
	}
	if err := p.writeReg(r.OPDAddr, regConfig, dirInputs); err != nil {
		return fmt.Errorf("opd: probe %s: configure direction: %w", r.Name, err)
	}
	if err := p.writeReg(r.OPDAddr, regPolarity, 0); err != nil {
		return fmt.Errorf("opd: probe %s: configure polarity: %w", r.Name, err)
	}

	if reset {
		if err := p.Reset(r, 1); err != nil {
			return err
		}
	}

	r.Status = StatusOff
	return nil
}

// Enable sets the expander's output-enable pin; microcontroller and
// app-processor nodes additionally drive the boot-select pin to
// bootloaderMode.
func (p *PowerDomain) Enable(r *Record, bootloaderMode bool) error {
	return p.enableLocked(r, bootloaderMode)
}

func (p *PowerDomain) enableLocked(r *Record, bootloaderMode bool) error {
	if r.OPDAddr == 0 {
		r.Status = StatusOn
		r.LastEnable = time.Now()
		return nil
	}
	if err := p.setBit(r.OPDAddr, regOutput, pinEnable, true); err != nil {
		return fmt.Errorf("opd: enable %s: %w", r.Name, err)
	}
	if r.Class == ProcMicrocontroller || r.Class == ProcAppProcessor {
		if err := p.setBit(r.OPDAddr, regOutput, pinBootSelect, bootloaderMode); err != nil {
			return fmt.Errorf("opd: enable %s: boot-select: %w", r.Name, err)
		}
	}
	r.LastEnable = time.Now()
	r.Status = StatusOn
	if bootloaderMode {
		r.Status = StatusBootloader
	}
	return nil
}

// Disable clears the output-enable pin.
func (p *PowerDomain) Disable(r *Record) error {
	return p.disableLocked(r)
}

func (p *PowerDomain) disableLocked(r *Record) error {
	if r.OPDAddr != 0 {
		if err := p.setBit(r.OPDAddr, regOutput, pinEnable, false); err != nil {
			return fmt.Errorf("opd: disable %s: %w", r.Name, err)
		}
	}
	r.Status = StatusOff
	return nil
}

// Reset pulses the circuit-breaker reset pin for 250ms up to attempts
// times, checking the not-fault input between attempts; on permanent
// fault the node is marked DEAD.
func (p *PowerDomain) Reset(r *Record, attempts int) error {
	if r.OPDAddr == 0 {
		return nil
	}
	for i := 0; i < attempts; i++ {
		if err := p.setBit(r.OPDAddr, regOutput, pinCBReset, true); err != nil {
			return fmt.Errorf("opd: reset %s: %w", r.Name, err)
		}
		time.Sleep(250 * time.Millisecond)
		if err := p.setBit(r.OPDAddr, regOutput, pinCBReset, false); err != nil {
			return fmt.Errorf("opd: reset %s: %w", r.Name, err)
		}
		r.ResetCount++

		notFault, err := p.readBit(r.OPDAddr, regInput, pinNotFault)
		if err != nil {
			return fmt.Errorf("opd: reset %s: read not-fault: %w", r.Name, err)
		}
		if notFault {
			return nil
		}
	}
	r.Status = StatusDead
	return fmt.Errorf("opd: %s: permanent fault after %d reset attempts", r.Name, attempts)
}

// OPDScan probes every known address; battery nodes are auto-enabled
// afterward.
func (m *Manager) OPDScan() (uint8, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found uint8
	for _, r := range m.records {
		if r.OPDAddr == 0 {
			continue
		}
		if err := m.opd.Probe(r, false); err == nil {
			found++
		}
	}
	for _, r := range m.records {
		if r.Battery && r.Status == StatusOff {
			_ = m.opd.enableLocked(r, false)
		}
	}
	return found, nil
}

// OPDSysEnable implements EDL OPD_SYSENABLE.
func (m *Manager) OPDSysEnable(enable bool) error {
	if enable {
		return m.opd.EnableBus()
	}
	return m.opd.DisableBus()
}

// OPDProbe implements EDL OPD_PROBE.
func (m *Manager) OPDProbe(addr uint8) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, err := m.byAddr(addr)
	if err != nil {
		return false, err
	}
	err = m.opd.Probe(r, false)
	return err == nil, nil
}

// OPDEnable implements EDL OPD_ENABLE.
func (m *Manager) OPDEnable(addr uint8, enable bool) (uint8, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, err := m.byAddr(addr)
	if err != nil {
		return uint8(StatusNotFound), err
	}
	if enable {
		err = m.opd.enableLocked(r, false)
	} else {
		err = m.opd.disableLocked(r)
	}
	return uint8(r.Status), err
}

// OPDReset implements EDL OPD_RESET.
func (m *Manager) OPDReset(addr uint8) (uint8, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, err := m.byAddr(addr)
	if err != nil {
		return uint8(StatusNotFound), err
	}
	err = m.opd.Reset(r, maxCOResets)
	return uint8(r.Status), err
}

// OPDStatus implements EDL OPD_STATUS.
func (m *Manager) OPDStatus(addr uint8) (uint8, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, err := m.byAddr(addr)
	if err != nil {
		return uint8(StatusNotFound), err
	}
	return uint8(r.Status), nil
}

// Current implements current(): reads the OPD current-sense ADC channel
// and scales it to milliamps.
func (p *PowerDomain) Current() (float64, error) {
	raw, err := p.drv.ADCRead(currentADCChannel)
	if err != nil {
		return 0, fmt.Errorf("opd: current: %w", err)
	}
	volts := float64(raw) / adcFullScaleCounts * adcFullScaleVolts
	return volts * currentRatio / currentSenseOhms / 1000.0, nil
}
