package node

import "time"

const probeSweepInterval = 10 * time.Second

// nodeElectricalState is what the expander reports for one node, read
// fresh each tick.
type nodeElectricalState struct {
	fault      bool
	disabled   bool
	notFound   bool
}

func (p *PowerDomain) readElectricalState(r *Record) nodeElectricalState {
	if r.OPDAddr == 0 {
		return nodeElectricalState{}
	}
	notFault, err := p.readBit(r.OPDAddr, regInput, pinNotFault)
	if err != nil {
		return nodeElectricalState{notFound: true}
	}
	enabled, err := p.readBit(r.OPDAddr, regOutput, pinEnable)
	if err != nil {
		return nodeElectricalState{notFound: true}
	}
	return nodeElectricalState{fault: !notFault, disabled: !enabled}
}

// Tick evaluates the per-node health FSM once for every known node
//"), then runs the
// reactive policy.
func (m *Manager) Tick(flightMode bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for _, r := range m.records {
		m.evaluateHealth(r, now, flightMode)
	}
	m.reactivePolicy(now)
}

func (m *Manager) evaluateHealth(r *Record, now time.Time, flightMode bool) {
	if !m.opd.busEnabled {
		r.Status = StatusNotFound
		return
	}
	if m.opd.busDead {
		r.Status = StatusDead
		return
	}
	if r.Status == StatusDead {
		if now.After(r.LastHeartbeat.Add(resetTimeout)) {
			r.Status = StatusOn // re-probe will confirm this on the next tick
		}
		return
	}
	if r.ResetCount >= maxCOResets {
		r.Status = StatusDead
		return
	}

	es := m.opd.readElectricalState(r)
	switch {
	case es.notFound:
		r.Status = StatusNotFound
		return
	case es.fault:
		r.Status = StatusError
		return
	case es.disabled:
		r.Status = StatusOff
		return
	}

	heartbeatStale := now.Sub(r.LastHeartbeat) > resetTimeout
	withinBoot := now.Sub(r.LastEnable) < r.Class.BootTimeout()

	switch {
	case withinBoot && heartbeatStale:
		r.Status = StatusBoot
	case withinBoot && !heartbeatStale:
		r.Status = StatusOn
	case !withinBoot && flightMode && heartbeatStale:
		r.Status = StatusError
	default:
		// Past the boot window with a fresh heartbeat (or, outside flight
		// mode, a stale one — ground testing is lenient about supervision
		// here since nothing enforces a boot deadline off-flight).
		r.Status = StatusOn
	}
}

func (m *Manager) reactivePolicy(now time.Time) {
	sweep := now.Sub(m.lastProbeSweep) >= probeSweepInterval
	if sweep {
		m.lastProbeSweep = now
	}

	for _, r := range m.records {
		if sweep && r.Status == StatusNotFound && r.OPDAddr != 0 {
			_ = m.opd.Probe(r, false)
		}
		if r.AlwaysOn && r.Status == StatusOff {
			_ = m.opd.enableLocked(r, false)
		}
		if r.Status == StatusDead {
			if en, _ := m.opd.readBit(r.OPDAddr, regOutput, pinEnable); en {
				_ = m.opd.disableLocked(r)
			}
		}
		switch r.Status {
		case StatusError:
			_ = m.opd.Reset(r, 1)
			r.LastEnable = now
		case StatusOn, StatusOff:
			r.ResetCount = 0
		}
	}
}
