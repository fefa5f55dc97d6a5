// Package state implements the mission state machine: the 10Hz tick that
// transitions among PRE_DEPLOY, DEPLOY, STANDBY, BEACON, and EDL, fires
// antenna deployment, and drives persistence of the declared entry set.
package state

import (
	"log"
	"os"
	"time"

	"oresat.org/c3/pkg/fram"
	"oresat.org/c3/pkg/od"
	"oresat.org/c3/pkg/registry"
)

const tickInterval = 100 * time.Millisecond // 10Hz

// Deployer fires one antenna element for the given pulse width.
type Deployer interface {
	FireMonopole(pulseWidth time.Duration) error
	FireHelical(pulseWidth time.Duration) error
}

// WatchdogStopper tells the watchdog-petter collaborator to stop sending
// PET datagrams.
type WatchdogStopper interface {
	Stop() error
}

// Service runs the mission state machine.
type Service struct {
	dict   *od.Dictionary
	store  *fram.Store
	deploy Deployer
	wd     WatchdogStopper
	logger *log.Logger

	bootMono time.Time
	tick     uint64
	stopCh   chan struct{}
	resetCh  chan registry.ResetKind
}

// New constructs a state Service. bootMono anchors every monotonic-time
// comparison (pre-attempt timeout, reset timeout) to this process's start.
func New(dict *od.Dictionary, store *fram.Store, deploy Deployer, wd WatchdogStopper, logger *log.Logger) *Service {
	return &Service{
		dict:     dict,
		store:    store,
		deploy:   deploy,
		wd:       wd,
		logger:   logger,
		bootMono: time.Now(),
		stopCh:   make(chan struct{}),
		resetCh:  make(chan registry.ResetKind, 1),
	}
}

// Stop signals Run to exit at its next tick.
func (s *Service) Stop() { close(s.stopCh) }

// Reset is the registry.Dispatcher Reset collaborator: queues a system-
// reset decision for the main loop to observe and act on.
func (s *Service) Reset(kind registry.ResetKind) {
	select {
	case s.resetCh <- kind:
	default:
	}
}

// Resets exposes the queued reset-kind channel for the main loop's select.
func (s *Service) Resets() <-chan registry.ResetKind { return s.resetCh }

// Run ticks the state machine at 10Hz until Stop is called.
func (s *Service) Run() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick++
			s.onTick()
		}
	}
}

// Shutdown persists the current state unless the mission is still in
// PRE_DEPLOY, matching the tick-time persistence gate.
func (s *Service) Shutdown() error {
	if s.dict.Read(od.STATUS).AsInt64() == od.StatusPreDeploy {
		return nil
	}
	return s.store.Persist()
}

// ClearState wipes the persistent entry set (preserving the crypto keys)
// and resets the real-time clock to 0, per the C3_FACTORY_RESET semantics.
func (s *Service) ClearState(setRTC func(time.Time) error) error {
	if err := s.store.Clear(); err != nil {
		return err
	}
	if setRTC == nil {
		return nil
	}
	return setRTC(time.Unix(0, 0))
}

func (s *Service) onTick() {
	now := time.Now()
	mono := now.Sub(s.bootMono)

	status := s.dict.Read(od.STATUS).AsInt64()
	flightMode := s.dict.Read(od.FLIGHT_MODE).AsBool()

	hasTxTimedOut := mono > 0 && s.hasTxTimedOut(now)
	hasEdlTimedOut := s.hasEdlTimedOut(now)
	isBatGood := s.isBatLvlGood()
	hasResetTimedOut := s.hasResetTimedOut(mono, flightMode)

	next := s.transition(status, now, mono, hasTxTimedOut, hasEdlTimedOut, isBatGood, hasResetTimedOut)

	if next != status {
		if err := s.dict.Write(od.STATUS, od.U8(uint8(next))); err != nil {
			s.logf("write status %d: %v", next, err)
		}
	}

	if s.tick%10 == 0 && next != od.StatusPreDeploy {
		if err := s.store.Persist(); err != nil {
			s.logf("persist: %v", err)
		}
	}
}

func (s *Service) hasTxTimedOut(now time.Time) bool {
	timeout := time.Duration(s.dict.Read(od.TX_CONTROL_TIMEOUT).AsInt64()) * time.Second
	last := time.Unix(int64(s.dict.Read(od.TX_CONTROL_LAST_ENABLE_TIMESTAMP).AsU32()), 0)
	return now.Sub(last) > timeout
}

func (s *Service) hasEdlTimedOut(now time.Time) bool {
	timeout := time.Duration(s.dict.Read(od.EDL_TIMEOUT).AsInt64()) * time.Second
	last := time.Unix(int64(s.dict.Read(od.EDL_LAST_TIMESTAMP).AsU32()), 0)
	return now.Sub(last) < timeout
}

func (s *Service) isBatLvlGood() bool {
	v1 := s.dict.Read(od.BATTERY_1_PACK_1_VBATT).AsU16()
	v2 := s.dict.Read(od.BATTERY_1_PACK_2_VBATT).AsU16()
	return v1 > 6500 && v2 > 6500
}

func (s *Service) hasResetTimedOut(mono time.Duration, flightMode bool) bool {
	timeout := time.Duration(s.dict.Read(od.RESET_TIMEOUT).AsInt64()) * time.Second
	return mono > timeout && flightMode && os.Geteuid() == 0
}

func (s *Service) transition(status int64, now time.Time, mono time.Duration, hasTxTimedOut, hasEdlTimedOut, isBatGood, hasResetTimedOut bool) int64 {
	switch status {
	case od.StatusPreDeploy:
		preAttemptTimeout := time.Duration(s.dict.Read(od.PRE_ATTEMPT_TIMEOUT).AsInt64()) * time.Second
		if mono < preAttemptTimeout {
			_ = s.dict.Write(od.TX_CONTROL_ENABLE, od.Bool(true))
			return od.StatusPreDeploy
		}
		return od.StatusDeploy

	case od.StatusDeploy:
		return s.tickDeploy(now, isBatGood)

	case od.StatusStandby:
		switch {
		case hasEdlTimedOut:
			return od.StatusEDL
		case hasResetTimedOut:
			s.triggerReset()
			return od.StatusStandby
		case !hasTxTimedOut && isBatGood:
			return od.StatusBeacon
		default:
			return od.StatusStandby
		}

	case od.StatusBeacon:
		switch {
		case hasEdlTimedOut:
			return od.StatusEDL
		case hasResetTimedOut:
			s.triggerReset()
			return od.StatusBeacon
		case hasTxTimedOut || !isBatGood:
			return od.StatusStandby
		default:
			return od.StatusBeacon
		}

	case od.StatusEDL:
		switch {
		case !hasEdlTimedOut && !hasTxTimedOut && isBatGood:
			return od.StatusBeacon
		case !hasEdlTimedOut && (hasTxTimedOut || !isBatGood):
			return od.StatusStandby
		default:
			return od.StatusEDL
		}

	default:
		s.logf("invalid status %d, forcing PRE_DEPLOY", status)
		return od.StatusPreDeploy
	}
}

func (s *Service) tickDeploy(now time.Time, isBatGood bool) int64 {
	deployed := s.dict.Read(od.DEPLOYED).AsBool()
	attempts := s.dict.Read(od.DEPLOY_ATTEMPTS).AsU8()
	maxAttempts := s.dict.Read(od.DEPLOY_MAX_ATTEMPTS).AsU8()
	reattemptTimeout := time.Duration(s.dict.Read(od.DEPLOY_REATTEMPT_TIMEOUT).AsInt64()) * time.Second
	lastAttempt := time.Unix(int64(s.dict.Read(od.DEPLOY_LAST_ATTEMPT_TIMESTAMP).AsU32()), 0)

	switch {
	case !deployed && attempts < maxAttempts && isBatGood && now.Sub(lastAttempt) > reattemptTimeout:
		s.fireDeployment()
		return od.StatusDeploy
	case deployed || attempts >= maxAttempts:
		_ = s.dict.Write(od.DEPLOYED, od.Bool(true))
		return od.StatusStandby
	default:
		return od.StatusDeploy
	}
}

func (s *Service) fireDeployment() {
	pulse := time.Duration(s.dict.Read(od.ANTENNAS_PULSE_WIDTH_MS).AsInt64()) * time.Millisecond
	delay := time.Duration(s.dict.Read(od.ANTENNAS_DELAY_MS).AsInt64()) * time.Millisecond

	if s.deploy != nil {
		if err := s.deploy.FireMonopole(pulse); err != nil {
			s.logf("monopole deploy: %v", err)
		} else {
			_ = s.dict.Write(od.ANTENNAS_MONOPOLE_FIRED, od.Bool(true))
		}
		time.Sleep(delay)
		if err := s.deploy.FireHelical(pulse); err != nil {
			s.logf("helical deploy: %v", err)
		} else {
			_ = s.dict.Write(od.ANTENNAS_HELICAL_FIRED, od.Bool(true))
		}
	}

	attempts := s.dict.Read(od.DEPLOY_ATTEMPTS).AsU8()
	_ = s.dict.Write(od.DEPLOY_ATTEMPTS, od.U8(attempts+1))
	_ = s.dict.Write(od.DEPLOY_LAST_ATTEMPT_TIMESTAMP, od.U32(uint32(time.Now().Unix())))
}

func (s *Service) triggerReset() {
	if s.wd != nil {
		if err := s.wd.Stop(); err == nil {
			return
		}
	}
	_ = s.dict.Write(od.HARD_RESET_FLAG, od.Bool(true))
}

func (s *Service) logf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Printf("[state] "+format, args...)
	}
}
