package node

import (
	"testing"
	"time"

	"oresat.org/c3/pkg/hw"
)

func newTestManager(t *testing.T) (*Manager, *hw.MockDriver, *Record) {
	t.Helper()
	drv := hw.NewMockDriver()
	opd := NewPowerDomain(drv)
	rec := &Record{Name: "battery_1", OPDAddr: 0x18, Class: ProcNone, AlwaysOn: true}
	m := NewManager([]*Record{rec}, opd)
	if err := opd.EnableBus(); err != nil {
		t.Fatalf("enable_bus: %v", err)
	}
	return m, drv, rec
}

func TestNodeEnableDisableIdempotent(t *testing.T) {
	m, _, rec := newTestManager(t)
	if err := m.opd.Probe(rec, false); err != nil {
		t.Fatalf("probe: %v", err)
	}

	if err := m.opd.Enable(rec, false); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if err := m.opd.Enable(rec, false); err != nil {
		t.Fatalf("enable (again): %v", err)
	}
	if rec.Status != StatusOn {
		t.Fatalf("status after double enable: got %v want ON", rec.Status)
	}

	if err := m.opd.Disable(rec); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if err := m.opd.Disable(rec); err != nil {
		t.Fatalf("disable (again): %v", err)
	}
	if rec.Status != StatusOff {
		t.Fatalf("status after double disable: got %v want OFF", rec.Status)
	}
}

func TestNodeHealthNotFoundToOn(t *testing.T) {
	m, drv, rec := newTestManager(t)
	// healthy node: not-fault input reads high
	drv.SeedReg(opdBusNum, uint16(rec.OPDAddr), regInput, 1<<pinNotFault)
	if rec.Status != StatusNotFound {
		t.Fatalf("initial status: got %v want NOT_FOUND", rec.Status)
	}

	// probe succeeds -> OFF
	if err := m.opd.Probe(rec, false); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if rec.Status != StatusOff {
		t.Fatalf("status after probe: got %v want OFF", rec.Status)
	}

	// always_on drives enable
	m.Tick(false)
	if rec.Status != StatusOn && rec.Status != StatusBoot {
		t.Fatalf("status after always_on tick: got %v want ON or BOOT", rec.Status)
	}

	// a heartbeat arrives within the boot window
	rec.LastHeartbeat = time.Now()
	m.Tick(false)
	if rec.Status != StatusOn {
		t.Fatalf("status after heartbeat: got %v want ON", rec.Status)
	}
}
