// Package registry implements the EDL command descriptor table and
// dispatch algorithm: command id -> (request schema, response schema,
// handler).
package registry

import (
	"fmt"
	"log"

	"oresat.org/c3/pkg/od"
)

// Command ids. Values are assigned here for 0..255 uniqueness; the codes
// themselves carry no other meaning.
const (
	CmdTxControl      = 0x01
	CmdC3SoftReset    = 0x02
	CmdC3HardReset    = 0x03
	CmdC3FactoryReset = 0x04
	CmdNodeEnable     = 0x05
	CmdNodeStatus     = 0x06
	CmdSDOWrite       = 0x07
	CmdSDORead        = 0x08
	CmdSync           = 0x09
	CmdOPDSysEnable   = 0x0A
	CmdOPDScan        = 0x0B
	CmdOPDProbe       = 0x0C
	CmdOPDEnable      = 0x0D
	CmdOPDReset       = 0x0E
	CmdOPDStatus      = 0x0F
	CmdRTCSetTime     = 0x10
	CmdTimeSync       = 0x11
	CmdBeaconPing     = 0x12
	CmdPing           = 0x13
	CmdRXTest         = 0x14
)

// SDOAbortNoSuchNode is returned by SDO_READ/SDO_WRITE when targeting a
// node id this node manager does not relay to.
const SDOAbortNoSuchNode uint32 = 0x06090011

// ResetKind names the system-reset codes surfaced as top-level exit
// decisions.
type ResetKind int

const (
	ResetSoft ResetKind = iota
	ResetHard
	ResetFactory
)

// NodeManager is the subset of the power-domain node manager the registry
// dispatches into.
type NodeManager interface {
	Enable(nodeID uint8, enable bool) (status uint8, err error)
	Status(nodeID uint8) (status uint8, err error)
	OPDSysEnable(enable bool) error
	OPDScan() (found uint8, err error)
	OPDProbe(addr uint8) (ok bool, err error)
	OPDEnable(addr uint8, enable bool) (status uint8, err error)
	OPDReset(addr uint8) (status uint8, err error)
	OPDStatus(addr uint8) (status uint8, err error)
}

// CANBus is the subset of CANopen transport the registry dispatches SDO
// and SYNC commands into.
type CANBus interface {
	SDOWrite(nodeID uint8, index uint16, subindex uint8, data []byte) (size uint32, err error)
	SDORead(nodeID uint8, index uint16, subindex uint8) (size uint32, data []byte, err error)
	Sync() error
}

// AbortError carries an abort code for commands whose response schema has
// one.
type AbortError struct {
	Code uint32
}

func (e *AbortError) Error() string { return fmt.Sprintf("abort code %#08x", e.Code) }

// Handler consumes a decoded request tuple and returns a response tuple.
// A non-nil *AbortError is only meaningful for descriptors whose
// HasAbortResponse is true; any other error is logged and otherwise
// swallowed.
type Handler func(d *Dispatcher, dict *od.Dictionary, req []od.Value) ([]od.Value, error)

// Descriptor is one EDL command's full shape.
type Descriptor struct {
	ID               byte
	Name             string
	Request          Schema
	Response         Schema
	HasAbortResponse bool // SDO_READ/SDO_WRITE: errors become an abort code, not silence
	Handler          Handler
}

// Dispatcher holds the collaborators command handlers call into. It owns
// no resources itself — each field is a capability lent by the owning
// service (node manager, CAN transport, RTC, state service), matching the
// Design Notes "global singletons -> passed as context" pattern.
type Dispatcher struct {
	Dict       *od.Dictionary
	Nodes      NodeManager
	Can        CANBus
	SetRTCTime func(unixSeconds uint32) error
	TimeSync   func() error
	Reset      func(kind ResetKind)
	BeaconPing func()
	Logger     *log.Logger
}

// table is the command id -> descriptor map. Built once at package init;
// it is read-only thereafter (Design Notes: "reflection/getattr over OD
// names -> code-generated OD enum", generalized here to commands).
var table = buildTable()

// Lookup returns the descriptor for id, or false if unknown.
func Lookup(id byte) (*Descriptor, bool) {
	d, ok := table[id]
	return d, ok
}

// abortValues builds the abort-path response tuple for a descriptor's
// declared Response schema. SDO_WRITE's response is a lone U32 and
// carries the code directly; SDO_READ's is a (size, code, data) triple,
// so size and data are zeroed and the code goes in the middle field.
func abortValues(schema Schema, code uint32) []od.Value {
	if len(schema) == 1 {
		return []od.Value{od.U32(code)}
	}
	vals := make([]od.Value, len(schema))
	for i, t := range schema {
		if t == od.TypeBytes {
			vals[i] = od.Bytes(nil)
		} else {
			vals[i] = od.U32(0)
		}
	}
	if len(vals) >= 2 {
		vals[1] = od.U32(code)
	}
	return vals
}

// Dispatch implements the dispatch algorithm
// against an already-authenticated payload (the codec layer has already
// verified CRC and MAC). Returns the encoded response bytes and whether a
// response should be emitted at all.
func (d *Dispatcher) Dispatch(payload []byte) (resp []byte, hasResp bool, err error) {
	if len(payload) < 1 {
		return nil, false, fmt.Errorf("registry: empty payload")
	}
	id := payload[0]
	desc, ok := table[id]
	if !ok {
		return nil, false, fmt.Errorf("registry: unknown command %#02x", id)
	}

	req, err := decodeSchema(desc.Request, payload[1:])
	if err != nil {
		return nil, false, err
	}

	respValues, herr := desc.Handler(d, d.Dict, req)
	if herr != nil {
		if d.Logger != nil {
			d.Logger.Printf("[registry] handler %s error: %v", desc.Name, herr)
		}
		if !desc.HasAbortResponse {
			return nil, false, nil
		}
		code := SDOAbortNoSuchNode
		if ae, ok := herr.(*AbortError); ok {
			code = ae.Code
		}
		respValues = abortValues(desc.Response, code)
	}

	if len(desc.Response) == 0 {
		return nil, false, nil
	}
	out, err := encodeSchema(desc.Response, respValues)
	if err != nil {
		return nil, false, err
	}
	return append([]byte{id}, out...), true, nil
}
