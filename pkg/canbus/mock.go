package canbus

import "fmt"

// MockBus stands in for Bus under --mock-hw, when there is no SocketCAN
// interface to open. SDOWrite/SDORead always abort with ErrNoSuchNode,
// since a mock bus has no nodes behind it; Sync is a no-op.
type MockBus struct{}

// NewMockBus constructs a MockBus.
func NewMockBus() *MockBus { return &MockBus{} }

// ErrNoSuchNode is the error every mock SDO operation fails with.
var ErrNoSuchNode = fmt.Errorf("canbus: mock bus has no nodes")

func (*MockBus) Sync() error { return nil }

func (*MockBus) SDOWrite(nodeID uint8, index uint16, subindex uint8, data []byte) (uint32, error) {
	return 0, ErrNoSuchNode
}

func (*MockBus) SDORead(nodeID uint8, index uint16, subindex uint8) (uint32, []byte, error) {
	return 0, nil, ErrNoSuchNode
}

func (*MockBus) OnHeartbeat(cb func(nodeID uint8, state byte))        {}
func (*MockBus) OnEmergency(cb func(nodeID uint8, code uint16, reg byte)) {}

func (*MockBus) Close() error { return nil }
