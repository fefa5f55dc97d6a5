// Package canbus implements the CANopen SYNC, SDO, heartbeat, and
// emergency-message transport the node manager and EDL command registry
// dispatch into.
package canbus

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/brutella/can"
)

const (
	// CANopen function-code bits occupying the high nibble of an 11-bit
	// COB-ID, per the pack's gocanopen reference files.
	funcSYNC      = 0x080
	funcEmergency = 0x080 // EMCY is 0x080 + node id; the bare 0x080 COB-ID is SYNC (handleFrame tells them apart).
	funcNMTHB     = 0x700
	funcSDOTx     = 0x580 // server -> client (response)
	funcSDORx     = 0x600 // client -> server (request)
)

// Bus wraps a github.com/brutella/can bus connection with the C3-specific
// SYNC/SDO/heartbeat/EMCY shapes this module needs.
type Bus struct {
	bus *can.Bus

	mu        sync.Mutex
	sdoPend   map[uint8]chan can.Frame
	heartbeat func(nodeID uint8, state byte)
	emergency func(nodeID uint8, code uint16, reg byte)
}

// Open binds to the named SocketCAN interface (e.g. "can0") and starts
// receiving in the background, matching brutella/can's
// Bus.ConnectAndPublish lifecycle.
func Open(iface string) (*Bus, error) {
	raw, err := can.NewBusForInterfaceWithName(iface)
	if err != nil {
		return nil, fmt.Errorf("canbus: open %s: %w", iface, err)
	}
	b := &Bus{bus: raw, sdoPend: make(map[uint8]chan can.Frame)}
	raw.Subscribe(frameHandler(b.handleFrame))
	go func() {
		_ = raw.ConnectAndPublish()
	}()
	return b, nil
}

// frameHandler adapts a plain func(can.Frame) to brutella/can's Handler
// interface, the same "Handle(frame can.Frame)" shape the pack's
// gocanopen emergency-message code implements directly on a struct.
type frameHandler func(can.Frame)

func (f frameHandler) Handle(frame can.Frame) { f(frame) }

// OnHeartbeat registers the callback invoked on every NMT heartbeat frame.
func (b *Bus) OnHeartbeat(cb func(nodeID uint8, state byte)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.heartbeat = cb
}

// OnEmergency registers the callback invoked on every EMCY frame.
func (b *Bus) OnEmergency(cb func(nodeID uint8, code uint16, reg byte)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.emergency = cb
}

func (b *Bus) handleFrame(frame can.Frame) {
	id := frame.ID
	switch {
	case id&0x780 == funcNMTHB && frame.Length >= 1:
		nodeID := uint8(id & 0x7F)
		b.mu.Lock()
		cb := b.heartbeat
		b.mu.Unlock()
		if cb != nil {
			cb(nodeID, frame.Data[0])
		}
	case id&0x780 == 0x080 && id != 0x080 && frame.Length >= 4:
		nodeID := uint8(id & 0x7F)
		code := binary.LittleEndian.Uint16(frame.Data[0:2])
		reg := frame.Data[2]
		b.mu.Lock()
		cb := b.emergency
		b.mu.Unlock()
		if cb != nil {
			cb(nodeID, code, reg)
		}
	case id&0x780 == funcSDOTx:
		nodeID := uint8(id & 0x7F)
		b.mu.Lock()
		ch := b.sdoPend[nodeID]
		b.mu.Unlock()
		if ch != nil {
			select {
			case ch <- frame:
			default:
			}
		}
	}
}

// Sync broadcasts a SYNC frame (COB-ID 0x080, no data).
func (b *Bus) Sync() error {
	return b.bus.Publish(can.Frame{ID: funcSYNC, Length: 0})
}

// sdoAbortErr is returned when the server replies with an SDO abort
// segment (command specifier 0x80).
type sdoAbortErr struct{ code uint32 }

func (e *sdoAbortErr) Error() string { return fmt.Sprintf("canbus: SDO abort %#08x", e.code) }

// SDOWrite performs an expedited SDO download (client -> server write) of
// up to 4 bytes, returning the number of bytes accepted. Segmented
// download is not implemented: a buffer longer than 4 bytes returns an
// error without sending anything.
func (b *Bus) SDOWrite(nodeID uint8, index uint16, subindex uint8, data []byte) (uint32, error) {
	if len(data) > 4 {
		return 0, fmt.Errorf("canbus: segmented SDO download not implemented, got %d bytes", len(data))
	}
	req := can.Frame{ID: funcSDORx + uint32(nodeID), Length: 8}
	// Expedited download, command specifier 0x23 | ((4-n)<<2), n=len(data).
	req.Data[0] = 0x23 | byte((4-len(data))<<2)
	binary.LittleEndian.PutUint16(req.Data[1:3], index)
	req.Data[3] = subindex
	copy(req.Data[4:], data)

	resp, err := b.sdoRoundTrip(nodeID, req)
	if err != nil {
		return 0, err
	}
	if resp.Data[0] == 0x80 {
		return 0, &sdoAbortErr{code: binary.LittleEndian.Uint32(resp.Data[4:8])}
	}
	return uint32(len(data)), nil
}

// SDORead performs an expedited SDO upload (server -> client read).
func (b *Bus) SDORead(nodeID uint8, index uint16, subindex uint8) (uint32, []byte, error) {
	req := can.Frame{ID: funcSDORx + uint32(nodeID), Length: 8}
	req.Data[0] = 0x40 // upload initiate
	binary.LittleEndian.PutUint16(req.Data[1:3], index)
	req.Data[3] = subindex

	resp, err := b.sdoRoundTrip(nodeID, req)
	if err != nil {
		return 0, nil, err
	}
	if resp.Data[0] == 0x80 {
		return 0, nil, &sdoAbortErr{code: binary.LittleEndian.Uint32(resp.Data[4:8])}
	}
	n := 4 - ((resp.Data[0] >> 2) & 0x3)
	return uint32(n), resp.Data[4 : 4+n], nil
}

func (b *Bus) sdoRoundTrip(nodeID uint8, req can.Frame) (can.Frame, error) {
	ch := make(chan can.Frame, 1)
	b.mu.Lock()
	b.sdoPend[nodeID] = ch
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.sdoPend, nodeID)
		b.mu.Unlock()
	}()

	if err := b.bus.Publish(req); err != nil {
		return can.Frame{}, fmt.Errorf("canbus: publish SDO request: %w", err)
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-time.After(time.Second):
		return can.Frame{}, fmt.Errorf("canbus: SDO request to node %d timed out", nodeID)
	}
}

// Close releases the underlying SocketCAN bus.
func (b *Bus) Close() error {
	return b.bus.Disconnect()
}
