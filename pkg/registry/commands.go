package registry

import (
	"fmt"
	"time"

	"oresat.org/c3/pkg/od"
)

func buildTable() map[byte]*Descriptor {
	descs := []*Descriptor{
		{
			ID:      CmdTxControl,
			Name:    "TX_CONTROL",
			Request: Schema{od.TypeU8},
			Response: Schema{od.TypeU8},
			Handler: handleTxControl,
		},
		{
			ID:       CmdC3SoftReset,
			Name:     "C3_SOFT_RESET",
			Request:  Schema{},
			Response: Schema{},
			Handler:  handleReset(ResetSoft),
		},
		{
			ID:       CmdC3HardReset,
			Name:     "C3_HARD_RESET",
			Request:  Schema{},
			Response: Schema{},
			Handler:  handleReset(ResetHard),
		},
		{
			ID:       CmdC3FactoryReset,
			Name:     "C3_FACTORY_RESET",
			Request:  Schema{},
			Response: Schema{},
			Handler:  handleReset(ResetFactory),
		},
		{
			ID:       CmdNodeEnable,
			Name:     "NODE_ENABLE",
			Request:  Schema{od.TypeU8, od.TypeU8},
			Response: Schema{od.TypeU8},
			Handler:  handleNodeEnable,
		},
		{
			ID:       CmdNodeStatus,
			Name:     "NODE_STATUS",
			Request:  Schema{od.TypeU8},
			Response: Schema{od.TypeU8},
			Handler:  handleNodeStatus,
		},
		{
			ID:               CmdSDOWrite,
			Name:             "SDO_WRITE",
			Request:          Schema{od.TypeU8, od.TypeU16, od.TypeU8, od.TypeU32, od.TypeBytes},
			Response:         Schema{od.TypeU32},
			HasAbortResponse: true,
			Handler:          handleSDOWrite,
		},
		{
			ID:               CmdSDORead,
			Name:             "SDO_READ",
			Request:          Schema{od.TypeU8, od.TypeU16, od.TypeU8},
			Response:         Schema{od.TypeU32, od.TypeU32, od.TypeBytes},
			HasAbortResponse: true,
			Handler:          handleSDORead,
		},
		{
			ID:       CmdSync,
			Name:     "SYNC",
			Request:  Schema{},
			Response: Schema{od.TypeU8},
			Handler:  handleSync,
		},
		{
			ID:       CmdOPDSysEnable,
			Name:     "OPD_SYSENABLE",
			Request:  Schema{od.TypeU8},
			Response: Schema{od.TypeU8},
			Handler:  handleOPDSysEnable,
		},
		{
			ID:       CmdOPDScan,
			Name:     "OPD_SCAN",
			Request:  Schema{},
			Response: Schema{od.TypeU8},
			Handler:  handleOPDScan,
		},
		{
			ID:       CmdOPDProbe,
			Name:     "OPD_PROBE",
			Request:  Schema{od.TypeU8},
			Response: Schema{od.TypeU8},
			Handler:  handleOPDProbe,
		},
		{
			ID:       CmdOPDEnable,
			Name:     "OPD_ENABLE",
			Request:  Schema{od.TypeU8, od.TypeU8},
			Response: Schema{od.TypeU8},
			Handler:  handleOPDEnable,
		},
		{
			ID:       CmdOPDReset,
			Name:     "OPD_RESET",
			Request:  Schema{od.TypeU8},
			Response: Schema{od.TypeU8},
			Handler:  handleOPDReset,
		},
		{
			ID:       CmdOPDStatus,
			Name:     "OPD_STATUS",
			Request:  Schema{od.TypeU8},
			Response: Schema{od.TypeU8},
			Handler:  handleOPDStatus,
		},
		{
			ID:       CmdRTCSetTime,
			Name:     "RTC_SET_TIME",
			Request:  Schema{od.TypeU32},
			Response: Schema{od.TypeU8},
			Handler:  handleRTCSetTime,
		},
		{
			ID:       CmdTimeSync,
			Name:     "TIME_SYNC",
			Request:  Schema{},
			Response: Schema{od.TypeU8},
			Handler:  handleTimeSync,
		},
		{
			ID:       CmdBeaconPing,
			Name:     "BEACON_PING",
			Request:  Schema{},
			Response: Schema{},
			Handler:  handleBeaconPing,
		},
		{
			ID:       CmdPing,
			Name:     "PING",
			Request:  Schema{od.TypeU32},
			Response: Schema{od.TypeU32},
			Handler:  handlePing,
		},
		{
			ID:       CmdRXTest,
			Name:     "RX_TEST",
			Request:  Schema{},
			Response: Schema{},
			Handler:  func(d *Dispatcher, dict *od.Dictionary, req []od.Value) ([]od.Value, error) { return nil, nil },
		},
	}

	t := make(map[byte]*Descriptor, len(descs))
	for _, desc := range descs {
		t[desc.ID] = desc
	}
	return t
}

func handleTxControl(d *Dispatcher, dict *od.Dictionary, req []od.Value) ([]od.Value, error) {
	enable := req[0].AsBool()
	if err := dict.Write(od.TX_CONTROL_ENABLE, od.Bool(enable)); err != nil {
		return nil, err
	}
	if enable {
		_ = dict.Write(od.TX_CONTROL_LAST_ENABLE_TIMESTAMP, od.U32(uint32(time.Now().Unix())))
	}
	return []od.Value{od.Bool(enable)}, nil
}

func handleReset(kind ResetKind) Handler {
	return func(d *Dispatcher, dict *od.Dictionary, req []od.Value) ([]od.Value, error) {
		if d.Reset != nil {
			d.Reset(kind)
		}
		return nil, nil
	}
}

func handleNodeEnable(d *Dispatcher, dict *od.Dictionary, req []od.Value) ([]od.Value, error) {
	status, err := d.Nodes.Enable(req[0].AsU8(), req[1].AsBool())
	if err != nil {
		return nil, err
	}
	return []od.Value{od.U8(status)}, nil
}

func handleNodeStatus(d *Dispatcher, dict *od.Dictionary, req []od.Value) ([]od.Value, error) {
	status, err := d.Nodes.Status(req[0].AsU8())
	if err != nil {
		return nil, err
	}
	return []od.Value{od.U8(status)}, nil
}

func handleSDOWrite(d *Dispatcher, dict *od.Dictionary, req []od.Value) ([]od.Value, error) {
	nodeID, index, subindex := req[0].AsU8(), req[1].AsU16(), req[2].AsU8()
	buf := req[4].AsBytes()
	size, err := d.Can.SDOWrite(nodeID, index, subindex, buf)
	if err != nil {
		return nil, &AbortError{Code: SDOAbortNoSuchNode}
	}
	return []od.Value{od.U32(size)}, nil
}

func handleSDORead(d *Dispatcher, dict *od.Dictionary, req []od.Value) ([]od.Value, error) {
	nodeID, index, subindex := req[0].AsU8(), req[1].AsU16(), req[2].AsU8()
	size, buf, err := d.Can.SDORead(nodeID, index, subindex)
	if err != nil {
		return nil, &AbortError{Code: SDOAbortNoSuchNode}
	}
	return []od.Value{od.U32(size), od.U32(0), od.Bytes(buf)}, nil
}

func handleSync(d *Dispatcher, dict *od.Dictionary, req []od.Value) ([]od.Value, error) {
	if err := d.Can.Sync(); err != nil {
		return nil, err
	}
	return []od.Value{od.Bool(true)}, nil
}

func handleOPDSysEnable(d *Dispatcher, dict *od.Dictionary, req []od.Value) ([]od.Value, error) {
	enable := req[0].AsBool()
	if err := d.Nodes.OPDSysEnable(enable); err != nil {
		return nil, err
	}
	_ = dict.Write(od.NODE_MANAGER_OPD_SYSENABLE, od.Bool(enable))
	return []od.Value{od.Bool(enable)}, nil
}

func handleOPDScan(d *Dispatcher, dict *od.Dictionary, req []od.Value) ([]od.Value, error) {
	found, err := d.Nodes.OPDScan()
	if err != nil {
		return nil, err
	}
	return []od.Value{od.U8(found)}, nil
}

func handleOPDProbe(d *Dispatcher, dict *od.Dictionary, req []od.Value) ([]od.Value, error) {
	ok, err := d.Nodes.OPDProbe(req[0].AsU8())
	if err != nil {
		return nil, err
	}
	return []od.Value{od.Bool(ok)}, nil
}

func handleOPDEnable(d *Dispatcher, dict *od.Dictionary, req []od.Value) ([]od.Value, error) {
	status, err := d.Nodes.OPDEnable(req[0].AsU8(), req[1].AsBool())
	if err != nil {
		return nil, err
	}
	return []od.Value{od.U8(status)}, nil
}

func handleOPDReset(d *Dispatcher, dict *od.Dictionary, req []od.Value) ([]od.Value, error) {
	status, err := d.Nodes.OPDReset(req[0].AsU8())
	if err != nil {
		return nil, err
	}
	return []od.Value{od.U8(status)}, nil
}

func handleOPDStatus(d *Dispatcher, dict *od.Dictionary, req []od.Value) ([]od.Value, error) {
	status, err := d.Nodes.OPDStatus(req[0].AsU8())
	if err != nil {
		return nil, err
	}
	return []od.Value{od.U8(status)}, nil
}

func handleRTCSetTime(d *Dispatcher, dict *od.Dictionary, req []od.Value) ([]od.Value, error) {
	if d.SetRTCTime == nil {
		return nil, fmt.Errorf("registry: no RTC collaborator configured")
	}
	if err := d.SetRTCTime(req[0].AsU32()); err != nil {
		return nil, err
	}
	_ = dict.Write(od.RTC_LAST_SET_TIMESTAMP, req[0])
	return []od.Value{od.Bool(true)}, nil
}

func handleTimeSync(d *Dispatcher, dict *od.Dictionary, req []od.Value) ([]od.Value, error) {
	if d.TimeSync == nil {
		return []od.Value{od.Bool(false)}, nil
	}
	if err := d.TimeSync(); err != nil {
		return nil, err
	}
	return []od.Value{od.Bool(true)}, nil
}

func handleBeaconPing(d *Dispatcher, dict *od.Dictionary, req []od.Value) ([]od.Value, error) {
	if d.BeaconPing != nil {
		d.BeaconPing()
	}
	return nil, nil
}

func handlePing(d *Dispatcher, dict *od.Dictionary, req []od.Value) ([]od.Value, error) {
	return []od.Value{req[0]}, nil
}
