package state

import (
	"testing"
	"time"

	"oresat.org/c3/pkg/fram"
	"oresat.org/c3/pkg/hw"
	"oresat.org/c3/pkg/od"
)

func newTestStore(dict *od.Dictionary) *fram.Store {
	drv := hw.NewMockDriver()
	f := fram.New(drv, 1, fram.Addr)
	return fram.NewStore(f, dict)
}

type fakeDeployer struct {
	monopoleFired, helicalFired bool
}

func (f *fakeDeployer) FireMonopole(time.Duration) error { f.monopoleFired = true; return nil }
func (f *fakeDeployer) FireHelical(time.Duration) error  { f.helicalFired = true; return nil }

type fakeWatchdog struct{ stopped bool }

func (f *fakeWatchdog) Stop() error { f.stopped = true; return nil }

func TestPreDeployHoldsUntilAttemptTimeoutElapses(t *testing.T) {
	dict := od.NewC3Dictionary()
	store := newTestStore(dict)
	svc := New(dict, store, &fakeDeployer{}, &fakeWatchdog{}, nil)

	next := svc.transition(od.StatusPreDeploy, time.Now(), 0, false, false, true, false)
	if next != od.StatusPreDeploy {
		t.Fatalf("expected to hold in PRE_DEPLOY at mono=0, got %d", next)
	}
	if !dict.Read(od.TX_CONTROL_ENABLE).AsBool() {
		t.Fatalf("expected TX_CONTROL_ENABLE set while holding in PRE_DEPLOY")
	}

	preAttemptTimeout := time.Duration(dict.Read(od.PRE_ATTEMPT_TIMEOUT).AsInt64()) * time.Second
	next = svc.transition(od.StatusPreDeploy, time.Now(), preAttemptTimeout+time.Second, false, false, true, false)
	if next != od.StatusDeploy {
		t.Fatalf("expected transition to DEPLOY after pre-attempt timeout, got %d", next)
	}
}

func TestDeployFiresAntennasThenGoesStandbyAfterDeployed(t *testing.T) {
	dict := od.NewC3Dictionary()
	store := newTestStore(dict)
	deployer := &fakeDeployer{}
	svc := New(dict, store, deployer, &fakeWatchdog{}, nil)

	next := svc.transition(od.StatusDeploy, time.Now(), time.Hour, false, false, true, false)
	if next != od.StatusDeploy {
		t.Fatalf("expected to remain in DEPLOY immediately after firing, got %d", next)
	}
	if !deployer.monopoleFired || !deployer.helicalFired {
		t.Fatalf("expected both antenna elements fired, monopole=%v helical=%v", deployer.monopoleFired, deployer.helicalFired)
	}
	if dict.Read(od.DEPLOY_ATTEMPTS).AsU8() != 1 {
		t.Fatalf("expected DEPLOY_ATTEMPTS incremented to 1, got %d", dict.Read(od.DEPLOY_ATTEMPTS).AsU8())
	}

	_ = dict.Write(od.DEPLOYED, od.Bool(true))
	next = svc.transition(od.StatusDeploy, time.Now(), time.Hour, false, false, true, false)
	if next != od.StatusStandby {
		t.Fatalf("expected STANDBY once DEPLOYED is true, got %d", next)
	}
}

func TestStandbyToBeaconRequiresGoodBatteryAndNoTxTimeout(t *testing.T) {
	dict := od.NewC3Dictionary()
	store := newTestStore(dict)
	svc := New(dict, store, &fakeDeployer{}, &fakeWatchdog{}, nil)

	next := svc.transition(od.StatusStandby, time.Now(), time.Hour, false, false, true, false)
	if next != od.StatusBeacon {
		t.Fatalf("expected STANDBY->BEACON with good battery and no tx timeout, got %d", next)
	}

	next = svc.transition(od.StatusStandby, time.Now(), time.Hour, true, false, true, false)
	if next != od.StatusStandby {
		t.Fatalf("expected to remain in STANDBY when tx has timed out, got %d", next)
	}

	next = svc.transition(od.StatusStandby, time.Now(), time.Hour, false, false, false, false)
	if next != od.StatusStandby {
		t.Fatalf("expected to remain in STANDBY with bad battery, got %d", next)
	}
}

func TestEdlTimeoutPreemptsStandbyAndBeacon(t *testing.T) {
	dict := od.NewC3Dictionary()
	store := newTestStore(dict)
	svc := New(dict, store, &fakeDeployer{}, &fakeWatchdog{}, nil)

	if next := svc.transition(od.StatusStandby, time.Now(), time.Hour, false, true, true, false); next != od.StatusEDL {
		t.Fatalf("expected STANDBY->EDL on recent EDL activity, got %d", next)
	}
	if next := svc.transition(od.StatusBeacon, time.Now(), time.Hour, false, true, true, false); next != od.StatusEDL {
		t.Fatalf("expected BEACON->EDL on recent EDL activity, got %d", next)
	}
}

func TestResetTimeoutTriggersWatchdogStop(t *testing.T) {
	dict := od.NewC3Dictionary()
	store := newTestStore(dict)
	wd := &fakeWatchdog{}
	svc := New(dict, store, &fakeDeployer{}, wd, nil)

	next := svc.transition(od.StatusStandby, time.Now(), time.Hour, false, false, true, true)
	if next != od.StatusStandby {
		t.Fatalf("expected to remain in STANDBY while the reset is handled, got %d", next)
	}
	if !wd.stopped {
		t.Fatalf("expected watchdog Stop() to be called on reset timeout")
	}
	if dict.Read(od.HARD_RESET_FLAG).AsBool() {
		t.Fatalf("HARD_RESET_FLAG should not be set when the watchdog stop succeeds")
	}
}

func TestTriggerResetFallsBackToHardResetFlag(t *testing.T) {
	dict := od.NewC3Dictionary()
	store := newTestStore(dict)
	svc := New(dict, store, &fakeDeployer{}, nil, nil)

	svc.triggerReset()
	if !dict.Read(od.HARD_RESET_FLAG).AsBool() {
		t.Fatalf("expected HARD_RESET_FLAG set when no watchdog collaborator is present")
	}
}

func TestClearStateResetsRTCAndClearsStore(t *testing.T) {
	dict := od.NewC3Dictionary()
	store := newTestStore(dict)
	svc := New(dict, store, &fakeDeployer{}, &fakeWatchdog{}, nil)

	_ = dict.Write(od.DEPLOY_ATTEMPTS, od.U8(2))

	var rtcSet time.Time
	err := svc.ClearState(func(t time.Time) error {
		rtcSet = t
		return nil
	})
	if err != nil {
		t.Fatalf("ClearState: %v", err)
	}
	if !rtcSet.Equal(time.Unix(0, 0)) {
		t.Fatalf("expected RTC reset to epoch, got %v", rtcSet)
	}
	if dict.Read(od.DEPLOY_ATTEMPTS).AsU8() != 0 {
		t.Fatalf("expected DEPLOY_ATTEMPTS cleared, got %d", dict.Read(od.DEPLOY_ATTEMPTS).AsU8())
	}
}
