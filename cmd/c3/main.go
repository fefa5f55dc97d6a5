package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"oresat.org/c3/pkg/beacon"
	"oresat.org/c3/pkg/canbus"
	"oresat.org/c3/pkg/diag"
	"oresat.org/c3/pkg/edl"
	"oresat.org/c3/pkg/fram"
	"oresat.org/c3/pkg/hw"
	"oresat.org/c3/pkg/node"
	"oresat.org/c3/pkg/od"
	"oresat.org/c3/pkg/radio"
	"oresat.org/c3/pkg/redis"
	"oresat.org/c3/pkg/registry"
	"oresat.org/c3/pkg/rtc"
	"oresat.org/c3/pkg/state"
	"oresat.org/c3/pkg/uart"
	"oresat.org/c3/pkg/watchdog"
)

var (
	oresatMission = flag.String("oresat", "1", "mission id: 0, 0.5, or 1")
	mockHW        = flag.Bool("mock-hw", false, "stub all hardware I/O")
	verbose       = flag.Bool("verbose", false, "request DEBUG logging (this build has no DEBUG-level output; only a notice is logged)")

	canIface    = flag.String("can-iface", "can0", "CANopen SocketCAN interface")
	uartDevice  = flag.String("uart", "/dev/ttymxc1", "shared debug UART device path")
	uartBaud    = flag.Int("uart-baud", 115200, "shared debug UART baud rate")
	redisAddr   = flag.String("redis-addr", "localhost:6379", "Redis server address")
	redisPass   = flag.String("redis-pass", "", "Redis password")
	redisDB     = flag.Int("redis-db", 0, "Redis database number")
)

// antennaDeployer pulses a GPIO line per antenna element, implementing
// state.Deployer over the shared hardware driver.
type antennaDeployer struct {
	drv hw.Driver
}

func (a *antennaDeployer) fire(gpio string, pulseWidth time.Duration) error {
	if err := a.drv.GPIOWrite(gpio, true); err != nil {
		return err
	}
	time.Sleep(pulseWidth)
	return a.drv.GPIOWrite(gpio, false)
}

func (a *antennaDeployer) FireMonopole(pulseWidth time.Duration) error {
	return a.fire("antenna_monopole", pulseWidth)
}

func (a *antennaDeployer) FireHelical(pulseWidth time.Duration) error {
	return a.fire("antenna_helical", pulseWidth)
}

// nodes is the power-domain/CANopen node table. Node ids and OPD addresses
// are assigned here and only need to be stable and unique.
func nodes() []*node.Record {
	return []*node.Record{
		{Name: "battery", CANNodeID: 0x02, OPDAddr: 0x18, Class: node.ProcMicrocontroller, AlwaysOn: true, Battery: true},
		{Name: "solar", CANNodeID: 0x03, OPDAddr: 0x19, Class: node.ProcMicrocontroller},
		{Name: "gps", CANNodeID: 0x04, OPDAddr: 0x1A, Class: node.ProcAppProcessor},
		{Name: "star_tracker", CANNodeID: 0x05, OPDAddr: 0x1B, Class: node.ProcAppProcessor},
		{Name: "dxwifi", CANNodeID: 0x06, OPDAddr: 0x1C, Class: node.ProcAppProcessor},
	}
}

func envOr(name string, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func main() {
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	logger := log.Default()
	if *verbose {
		logger.Printf("verbose logging requested (DEBUG level has no additional sinks in this build)")
	}
	logger.Printf("Starting OreSat C3 core (mission %s)", *oresatMission)

	mock := *mockHW || envOr("MOCK_HW", "") == "1"
	i2cBusNum := 1
	if v := os.Getenv("I2C_BUS_NUM"); v != "" {
		if n, err := parseIntOrDefault(v, i2cBusNum); err == nil {
			i2cBusNum = n
		}
	}
	framAddr := fram.Addr
	if v := os.Getenv("FRAM_ADDR"); v != "" {
		if n, err := parseIntOrDefault(v, int(fram.Addr)); err == nil {
			framAddr = uint16(n)
		}
	}

	var drv hw.Driver
	if mock {
		logger.Printf("mock hardware requested; all I/O is stubbed")
		drv = hw.NewMockDriver()
	} else {
		var err error
		drv, err = hw.NewRealDriver()
		if err != nil {
			logger.Fatalf("open hardware driver: %v", err)
		}
	}
	defer drv.Close()

	dict := od.NewC3Dictionary()

	framDev := fram.New(drv, i2cBusNum, framAddr)
	store := fram.NewStore(framDev, dict)
	if err := store.Restore(); err != nil {
		logger.Printf("restore persistent state: %v", err)
	}

	opd := node.NewPowerDomain(drv)
	nodeMgr := node.NewManager(nodes(), opd)

	redisClient, err := redis.New(*redisAddr, *redisPass, *redisDB)
	if err != nil {
		logger.Fatalf("connect to Redis: %v", err)
	}
	defer redisClient.Close()
	mirror := diag.New(redisClient, dict, logger)
	mirror.MirrorAll()

	wdSender, err := radio.NewSender(20001)
	if err != nil {
		logger.Fatalf("watchdog sender: %v", err)
	}
	defer wdSender.Close()
	petter := watchdog.New(wdSender, logger)
	go petter.Run()

	uartShared := uart.New(*uartDevice, *uartBaud)

	var bus registry.CANBus
	if mock {
		bus = canbus.NewMockBus()
	} else {
		realBus, err := canbus.Open(*canIface)
		if err != nil {
			logger.Fatalf("open CAN bus %s: %v", *canIface, err)
		}
		defer realBus.Close()
		realBus.OnHeartbeat(nodeMgr.OnHeartbeat)
		realBus.OnEmergency(nodeMgr.OnEmergency)
		bus = realBus
	}

	stateSvc := state.New(dict, store, &antennaDeployer{drv: drv}, petter, logger)

	disp := &registry.Dispatcher{
		Dict:  dict,
		Nodes: nodeMgr,
		Can:   bus,
		SetRTCTime: func(unixSeconds uint32) error {
			if mock {
				return nil
			}
			return rtc.Set(time.Unix(int64(unixSeconds), 0))
		},
		Reset: stateSvc.Reset,
		Logger: logger,
	}

	beaconOut, err := radio.NewSender(radio.BeaconOutPort)
	if err != nil {
		logger.Fatalf("beacon sender: %v", err)
	}
	defer beaconOut.Close()
	beaconSvc := beacon.New(dict, beaconOut, logger)
	disp.BeaconPing = func() { _ = dict.Write(od.BEACON_SEND_NOW, od.Bool(true)) }

	edlIn, err := radio.NewReceiver(radio.EDLInPort)
	if err != nil {
		logger.Fatalf("EDL receiver: %v", err)
	}
	defer edlIn.Close()
	edlOut, err := radio.NewSender(radio.EDLOutPort)
	if err != nil {
		logger.Fatalf("EDL sender: %v", err)
	}
	defer edlOut.Close()
	edlSvc := edl.New(dict, disp, edlIn, edlOut, nil, logger)

	dict.AddWriteCallback(od.NODE_MANAGER_UART_ROUTE, func(v od.Value) error {
		name := v.AsString()
		if name == "" {
			return uartShared.Unroute()
		}
		return uartShared.Route(name)
	})

	go nodeHealthLoop(nodeMgr, dict)
	go stateSvc.Run()
	go beaconSvc.Run()
	go edlSvc.Run()
	go mirror.WatchCommands(edlSvc.InjectFrame)

	logger.Printf("OreSat C3 core running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Printf("signal received, shutting down")
	case kind := <-stateSvc.Resets():
		logger.Printf("reset requested: %v", kind)
		if kind == registry.ResetFactory {
			err := stateSvc.ClearState(func(time.Time) error { return rtc.SetZero() })
			if err != nil {
				logger.Printf("clear state: %v", err)
			}
		}
	}

	stateSvc.Stop()
	beaconSvc.Stop()
	edlSvc.Stop()
	mirror.Stop()
	_ = petter.Stop()
	if err := stateSvc.Shutdown(); err != nil {
		logger.Printf("final persist: %v", err)
	}
	logger.Printf("shutdown complete")
}

func nodeHealthLoop(mgr *node.Manager, dict *od.Dictionary) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		mgr.Tick(dict.Read(od.FLIGHT_MODE).AsBool())
		_ = dict.Write(od.NODE_MANAGER_NODES_ON, od.U8(uint8(mgr.CountByStatus(node.StatusOn))))
		_ = dict.Write(od.NODE_MANAGER_NODES_DEAD, od.U8(uint8(mgr.CountByStatus(node.StatusDead))))
	}
}

func parseIntOrDefault(s string, fallback int) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback, err
	}
	return n, nil
}
