package od

// Entry names. These are the "code-generated OD enum" Design Notes calls
// for: compile-time known keys, O(1) lookup, no reflection over field
// names. Index allocation loosely follows CANopen convention (0x3000+ for
// manufacturer-specific objects) purely as a grouping scheme; nothing in
// this package depends on index ordering.
const (
	// Mission state machine.
	STATUS                          = "STATUS"
	FLIGHT_MODE                     = "FLIGHT_MODE"
	TX_CONTROL_ENABLE                = "TX_CONTROL_ENABLE"
	TX_CONTROL_LAST_ENABLE_TIMESTAMP = "TX_CONTROL_LAST_ENABLE_TIMESTAMP"
	TX_CONTROL_TIMEOUT               = "TX_CONTROL_TIMEOUT"
	EDL_LAST_TIMESTAMP               = "EDL_LAST_TIMESTAMP"
	EDL_TIMEOUT                      = "EDL_TIMEOUT"
	RESET_TIMEOUT                    = "RESET_TIMEOUT"
	PRE_ATTEMPT_TIMEOUT               = "PRE_ATTEMPT_TIMEOUT"
	DEPLOY_MAX_ATTEMPTS               = "DEPLOY_MAX_ATTEMPTS"
	DEPLOY_REATTEMPT_TIMEOUT          = "DEPLOY_REATTEMPT_TIMEOUT"
	DEPLOY_ATTEMPTS                   = "DEPLOY_ATTEMPTS"
	DEPLOY_LAST_ATTEMPT_TIMESTAMP     = "DEPLOY_LAST_ATTEMPT_TIMESTAMP"
	DEPLOYED                          = "DEPLOYED"
	HARD_RESET_FLAG                   = "HARD_RESET_FLAG"

	// Battery.
	BATTERY_1_PACK_1_VBATT = "BATTERY_1_PACK_1_VBATT"
	BATTERY_1_PACK_2_VBATT = "BATTERY_1_PACK_2_VBATT"

	// Antennas.
	ANTENNAS_PULSE_WIDTH_MS = "ANTENNAS_PULSE_WIDTH_MS"
	ANTENNAS_DELAY_MS       = "ANTENNAS_DELAY_MS"
	ANTENNAS_MONOPOLE_FIRED = "ANTENNAS_MONOPOLE_FIRED"
	ANTENNAS_HELICAL_FIRED  = "ANTENNAS_HELICAL_FIRED"

	// Beacon.
	BEACON_DELAY          = "BEACON_DELAY"
	BEACON_LAST_TIMESTAMP = "BEACON_LAST_TIMESTAMP"
	BEACON_SEND_NOW       = "BEACON_SEND_NOW"
	BEACON_SRC_CALLSIGN   = "BEACON_SRC_CALLSIGN"
	BEACON_DEST_CALLSIGN  = "BEACON_DEST_CALLSIGN"
	BEACON_SRC_SSID       = "BEACON_SRC_SSID"
	BEACON_DEST_SSID      = "BEACON_DEST_SSID"

	// EDL.
	EDL_SEQUENCE_COUNT  = "EDL_SEQUENCE_COUNT" // persisted, mod 2^32
	EDL_REJECTED_COUNT  = "EDL_REJECTED_COUNT"
	EDL_ACTIVE_KEY_INDEX = "EDL_ACTIVE_KEY_INDEX"
	EDL_KEY_0           = "EDL_KEY_0"
	EDL_KEY_1           = "EDL_KEY_1"
	EDL_KEY_2           = "EDL_KEY_2"
	EDL_KEY_3           = "EDL_KEY_3"

	// Node manager.
	NODE_MANAGER_OPD_SYSENABLE   = "NODE_MANAGER_OPD_SYSENABLE"
	NODE_MANAGER_NODES_DEAD      = "NODE_MANAGER_NODES_DEAD"
	NODE_MANAGER_NODES_ON        = "NODE_MANAGER_NODES_ON"
	NODE_MANAGER_UART_ROUTE      = "NODE_MANAGER_UART_ROUTE"

	// RTC.
	RTC_LAST_SET_TIMESTAMP = "RTC_LAST_SET_TIMESTAMP"

	// Hardware identity.
	HW_VERSION = "HW_VERSION"
	HW_ID      = "HW_ID"
)

// MissionState enumerated labels.
const (
	StatusPreDeploy int64 = iota
	StatusDeploy
	StatusStandby
	StatusBeacon
	StatusEDL
)

func missionStateLabels() map[int64]string {
	return map[int64]string{
		StatusPreDeploy: "PRE_DEPLOY",
		StatusDeploy:    "DEPLOY",
		StatusStandby:   "STANDBY",
		StatusBeacon:    "BEACON",
		StatusEDL:       "EDL",
	}
}

// BeaconBodyNames is the ordered, fixed telemetry field list the beacon
// serializes into its body. Order here is load-bearing: it defines the
// wire layout.
var BeaconBodyNames = []string{
	STATUS,
	FLIGHT_MODE,
	BATTERY_1_PACK_1_VBATT,
	BATTERY_1_PACK_2_VBATT,
	DEPLOYED,
	DEPLOY_ATTEMPTS,
	EDL_SEQUENCE_COUNT,
	EDL_REJECTED_COUNT,
	NODE_MANAGER_NODES_ON,
	NODE_MANAGER_NODES_DEAD,
	BEACON_LAST_TIMESTAMP,
}

// PersistentEntryNames is the ordered, fixed set of entries reflected to
// non-volatile storage. Order
// defines the position-based F-RAM layout; changing it changes the wire
// format of every existing persisted image.
var PersistentEntryNames = []string{
	STATUS,
	FLIGHT_MODE,
	DEPLOYED,
	DEPLOY_ATTEMPTS,
	DEPLOY_LAST_ATTEMPT_TIMESTAMP,
	EDL_SEQUENCE_COUNT,
	EDL_REJECTED_COUNT,
	EDL_ACTIVE_KEY_INDEX,
	EDL_KEY_0,
	EDL_KEY_1,
	EDL_KEY_2,
	EDL_KEY_3,
	TX_CONTROL_TIMEOUT,
	EDL_TIMEOUT,
	RESET_TIMEOUT,
}

// CryptoKeyNames lists the four EDL MAC keys that clear_state must
// preserve across a factory reset.
var CryptoKeyNames = []string{EDL_KEY_0, EDL_KEY_1, EDL_KEY_2, EDL_KEY_3}

// NewC3Dictionary builds the fixed Object Dictionary for one C3 process,
// with defaults chosen for an unconfigured, just-flashed unit.
func NewC3Dictionary() *Dictionary {
	entries := []*Entry{
		NewEntry(0x3000, 0, STATUS, TypeU8, U8(uint8(StatusPreDeploy))).WithEnum(missionStateLabels()),
		NewEntry(0x3000, 1, FLIGHT_MODE, TypeU8, Bool(false)),
		NewEntry(0x3000, 2, HARD_RESET_FLAG, TypeU8, Bool(false)),

		NewEntry(0x3001, 0, TX_CONTROL_ENABLE, TypeU8, Bool(false)),
		NewEntry(0x3001, 1, TX_CONTROL_LAST_ENABLE_TIMESTAMP, TypeU32, U32(0)),
		NewEntry(0x3001, 2, TX_CONTROL_TIMEOUT, TypeU32, U32(15*60)),

		NewEntry(0x3002, 0, EDL_LAST_TIMESTAMP, TypeU32, U32(0)),
		NewEntry(0x3002, 1, EDL_TIMEOUT, TypeU32, U32(120)),

		NewEntry(0x3003, 0, RESET_TIMEOUT, TypeU32, U32(60*60*24)),

		NewEntry(0x3004, 0, PRE_ATTEMPT_TIMEOUT, TypeU32, U32(45*60)),
		NewEntry(0x3004, 1, DEPLOY_MAX_ATTEMPTS, TypeU8, U8(3)),
		NewEntry(0x3004, 2, DEPLOY_REATTEMPT_TIMEOUT, TypeU32, U32(15*60)),
		NewEntry(0x3004, 3, DEPLOY_ATTEMPTS, TypeU8, U8(0)),
		NewEntry(0x3004, 4, DEPLOY_LAST_ATTEMPT_TIMESTAMP, TypeU32, U32(0)),
		NewEntry(0x3004, 5, DEPLOYED, TypeU8, Bool(false)),

		NewEntry(0x3005, 0, BATTERY_1_PACK_1_VBATT, TypeU16, U16(7400)),
		NewEntry(0x3005, 1, BATTERY_1_PACK_2_VBATT, TypeU16, U16(7400)),

		NewEntry(0x3006, 0, ANTENNAS_PULSE_WIDTH_MS, TypeU16, U16(500)),
		NewEntry(0x3006, 1, ANTENNAS_DELAY_MS, TypeU16, U16(1000)),
		NewEntry(0x3006, 2, ANTENNAS_MONOPOLE_FIRED, TypeU8, Bool(false)),
		NewEntry(0x3006, 3, ANTENNAS_HELICAL_FIRED, TypeU8, Bool(false)),

		NewEntry(0x3010, 0, BEACON_DELAY, TypeU32, U32(10)),
		NewEntry(0x3010, 1, BEACON_LAST_TIMESTAMP, TypeU32, U32(0)),
		NewEntry(0x3010, 2, BEACON_SEND_NOW, TypeU8, Bool(false)),
		NewEntry(0x3010, 3, BEACON_SRC_CALLSIGN, TypeVisString, Str("ORESAT")).WithSize(6),
		NewEntry(0x3010, 4, BEACON_DEST_CALLSIGN, TypeVisString, Str("ORESAT")).WithSize(6),
		NewEntry(0x3010, 5, BEACON_SRC_SSID, TypeU8, U8(0)),
		NewEntry(0x3010, 6, BEACON_DEST_SSID, TypeU8, U8(0)),

		NewEntry(0x3020, 0, EDL_SEQUENCE_COUNT, TypeU32, U32(0)),
		NewEntry(0x3020, 1, EDL_REJECTED_COUNT, TypeU32, U32(0)),
		NewEntry(0x3020, 2, EDL_ACTIVE_KEY_INDEX, TypeU8, U8(0)),
		NewEntry(0x3020, 3, EDL_KEY_0, TypeBytes, Bytes(make([]byte, 32))).WithSize(34),
		NewEntry(0x3020, 4, EDL_KEY_1, TypeBytes, Bytes(make([]byte, 32))).WithSize(34),
		NewEntry(0x3020, 5, EDL_KEY_2, TypeBytes, Bytes(make([]byte, 32))).WithSize(34),
		NewEntry(0x3020, 6, EDL_KEY_3, TypeBytes, Bytes(make([]byte, 32))).WithSize(34),

		NewEntry(0x3030, 0, NODE_MANAGER_OPD_SYSENABLE, TypeU8, Bool(false)),
		NewEntry(0x3030, 1, NODE_MANAGER_NODES_DEAD, TypeU8, U8(0)),
		NewEntry(0x3030, 2, NODE_MANAGER_NODES_ON, TypeU8, U8(0)),
		NewEntry(0x3030, 3, NODE_MANAGER_UART_ROUTE, TypeVisString, Str("")).WithSize(16),

		NewEntry(0x3040, 0, RTC_LAST_SET_TIMESTAMP, TypeU32, U32(0)),

		NewEntry(0x3050, 0, HW_VERSION, TypeVisString, Str("")).WithSize(4),
		NewEntry(0x3050, 1, HW_ID, TypeU8, U8(0)),
	}
	return NewDictionary(entries)
}
