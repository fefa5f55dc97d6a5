package hw

import "sync"

// MockDriver is an in-memory stand-in for Driver, selected via --mock-hw
// or the MOCK_HW environment override. It lets tests
// and ground-bench runs exercise the full node manager / F-RAM / RTC stack
// without real silicon.
type MockDriver struct {
	mu   sync.Mutex
	mem  map[int]map[uint16][]byte // busNum -> addr -> byte-addressable memory (F-RAM)
	regs map[int]map[uint16]map[byte]byte // busNum -> addr -> register -> value (GPIO expander)
	gpio map[string]bool
	adc  map[string]int
}

// NewMockDriver constructs an empty mock. Memory/registers for an address
// are created lazily on first access so tests only need to seed the
// specific addresses they exercise.
func NewMockDriver() *MockDriver {
	return &MockDriver{
		mem:  make(map[int]map[uint16][]byte),
		regs: make(map[int]map[uint16]map[byte]byte),
		gpio: make(map[string]bool),
		adc:  make(map[string]int),
	}
}

func (m *MockDriver) memFor(busNum int, addr uint16, minLen int) []byte {
	if m.mem[busNum] == nil {
		m.mem[busNum] = make(map[uint16][]byte)
	}
	buf := m.mem[busNum][addr]
	if len(buf) < minLen {
		grown := make([]byte, minLen)
		copy(grown, buf)
		buf = grown
		m.mem[busNum][addr] = buf
	}
	return buf
}

// SeedMem pre-loads byte-addressable memory (F-RAM) contents at addr.
func (m *MockDriver) SeedMem(busNum int, addr uint16, offset uint16, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := m.memFor(busNum, addr, int(offset)+len(data))
	copy(buf[offset:], data)
}

func (m *MockDriver) I2CReadAt(busNum int, addr uint16, offset uint16, n int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := m.memFor(busNum, addr, int(offset)+n)
	out := make([]byte, n)
	copy(out, buf[offset:int(offset)+n])
	return out, nil
}

func (m *MockDriver) I2CWriteAt(busNum int, addr uint16, offset uint16, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := m.memFor(busNum, addr, int(offset)+len(data))
	copy(buf[offset:], data)
	return nil
}

func (m *MockDriver) regsFor(busNum int, addr uint16) map[byte]byte {
	if m.regs[busNum] == nil {
		m.regs[busNum] = make(map[uint16]map[byte]byte)
	}
	if m.regs[busNum][addr] == nil {
		m.regs[busNum][addr] = make(map[byte]byte)
	}
	return m.regs[busNum][addr]
}

func (m *MockDriver) I2CReadReg(busNum int, addr uint16, reg byte) (byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regsFor(busNum, addr)[reg], nil
}

func (m *MockDriver) I2CWriteReg(busNum int, addr uint16, reg byte, value byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regsFor(busNum, addr)[reg] = value
	return nil
}

// SeedReg pre-loads a single expander register's value, e.g. to simulate
// a not-fault input already asserted high.
func (m *MockDriver) SeedReg(busNum int, addr uint16, reg byte, value byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regsFor(busNum, addr)[reg] = value
}

func (m *MockDriver) GPIORead(name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.gpio[name]
	if !ok {
		return false, ErrNotConfigured
	}
	return v, nil
}

func (m *MockDriver) GPIOWrite(name string, high bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gpio[name] = high
	return nil
}

func (m *MockDriver) ADCRead(name string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.adc[name]
	if !ok {
		return 0, ErrNotConfigured
	}
	return v, nil
}

// SeedADC sets the sample a subsequent ADCRead(name) returns.
func (m *MockDriver) SeedADC(name string, value int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adc[name] = value
}

func (m *MockDriver) Close() error { return nil }
