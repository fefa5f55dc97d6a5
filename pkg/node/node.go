// Package node implements the power-domain node manager: a dictionary of
// peripheral-card records and the I²C GPIO-expander power-domain
// controller that gates them.
package node

import (
	"fmt"
	"sync"
	"time"
)

// ProcClass distinguishes how a node's firmware boots and how long it is
// given to come up.
type ProcClass int

const (
	ProcNone ProcClass = iota
	ProcMicrocontroller
	ProcAppProcessor
)

// BootTimeout returns the class's allowed boot window: 10s for
// microcontroller-class, 90s for app-processor-class.
func (c ProcClass) BootTimeout() time.Duration {
	switch c {
	case ProcMicrocontroller:
		return 10 * time.Second
	case ProcAppProcessor:
		return 90 * time.Second
	default:
		return 0
	}
}

// Status is a node's derived health state.
type Status uint8

const (
	StatusNotFound Status = iota
	StatusOff
	StatusBoot
	StatusOn
	StatusError
	StatusBootloader
	StatusDead
)

func (s Status) String() string {
	switch s {
	case StatusNotFound:
		return "NOT_FOUND"
	case StatusOff:
		return "OFF"
	case StatusBoot:
		return "BOOT"
	case StatusOn:
		return "ON"
	case StatusError:
		return "ERROR"
	case StatusBootloader:
		return "BOOTLOADER"
	case StatusDead:
		return "DEAD"
	default:
		return "UNKNOWN"
	}
}

const emcyQueueCap = 16

// EmcyEvent is one bounded CANopen emergency message recorded against a
// node record.
type EmcyEvent struct {
	Code     uint16
	Register byte
	At       time.Time
}

// Record is one known peripheral card. Owned exclusively by the Manager
// goroutine; other services only observe it through Manager's read
// accessors.
type Record struct {
	Name      string
	CANNodeID uint8 // 0 = none
	OPDAddr   uint8 // 0 = not on the power bus
	Class     ProcClass
	Child     string // child node's key, resolved on demand (Design Notes: cyclic refs -> stored key)
	AlwaysOn  bool
	Battery   bool // auto-enabled after an OPD scan")

	Status        Status
	ResetCount    int
	LastEnable    time.Time
	LastHeartbeat time.Time
	HeartbeatState byte
	Emcy          []EmcyEvent

	bootDeadline time.Time
}

func (r *Record) pushEmcy(e EmcyEvent) {
	r.Emcy = append(r.Emcy, e)
	if len(r.Emcy) > emcyQueueCap {
		r.Emcy = r.Emcy[len(r.Emcy)-emcyQueueCap:]
	}
}

// Manager is the power-domain node manager.
type Manager struct {
	mu      sync.Mutex
	records map[string]*Record
	opd     *PowerDomain

	lastProbeSweep time.Time
}

// NewManager builds a Manager over the given node records and power-domain
// controller.
func NewManager(records []*Record, opd *PowerDomain) *Manager {
	m := &Manager{records: make(map[string]*Record, len(records)), opd: opd}
	for _, r := range records {
		r.Status = StatusNotFound
		m.records[r.Name] = r
	}
	return m
}

func (m *Manager) byAddr(addr uint8) (*Record, error) {
	for _, r := range m.records {
		if r.OPDAddr == addr {
			return r, nil
		}
	}
	return nil, fmt.Errorf("node: no record for OPD address %#02x", addr)
}

func (m *Manager) byName(name string) (*Record, error) {
	r, ok := m.records[name]
	if !ok {
		return nil, fmt.Errorf("node: unknown node %q", name)
	}
	return r, nil
}

// Enable implements the EDL NODE_ENABLE command: enable/disable by name
// looked up through CAN node id.
func (m *Manager) Enable(nodeID uint8, enable bool) (uint8, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var r *Record
	for _, rec := range m.records {
		if rec.CANNodeID == nodeID {
			r = rec
			break
		}
	}
	if r == nil {
		return uint8(StatusNotFound), fmt.Errorf("node: no record for CAN node id %d", nodeID)
	}
	var err error
	if enable {
		err = m.opd.enableLocked(r, false)
	} else {
		err = m.opd.disableLocked(r)
	}
	if err != nil {
		return uint8(r.Status), err
	}
	return uint8(r.Status), nil
}

// Status implements EDL NODE_STATUS.
func (m *Manager) Status(nodeID uint8) (uint8, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if rec.CANNodeID == nodeID {
			return uint8(rec.Status), nil
		}
	}
	return uint8(StatusNotFound), fmt.Errorf("node: no record for CAN node id %d", nodeID)
}

// StatusByName returns a node's status, the "OD-reflected field" other
// services read it through conceptually.
func (m *Manager) StatusByName(name string) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, err := m.byName(name)
	if err != nil {
		return StatusNotFound, err
	}
	return r.Status, nil
}

// CountByStatus returns how many known nodes currently report status s —
// backs NODE_MANAGER_NODES_DEAD / NODE_MANAGER_NODES_ON. Counts the status
// literally named by the caller.
func (m *Manager) CountByStatus(s Status) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.records {
		if r.Status == s {
			n++
		}
	}
	return n
}

// OnHeartbeat records a CANopen NMT heartbeat against the node with the
// given CAN node id (wired from pkg/canbus.Bus.OnHeartbeat).
func (m *Manager) OnHeartbeat(nodeID uint8, state byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.CANNodeID == nodeID {
			r.LastHeartbeat = time.Now()
			r.HeartbeatState = state
			return
		}
	}
}

// OnEmergency records a CANopen EMCY frame against the node with the
// given CAN node id, bounded per record.
func (m *Manager) OnEmergency(nodeID uint8, code uint16, reg byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.CANNodeID == nodeID {
			r.pushEmcy(EmcyEvent{Code: code, Register: reg, At: time.Now()})
			return
		}
	}
}
