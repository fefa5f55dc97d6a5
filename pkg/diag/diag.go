// Package diag mirrors the Object Dictionary into Redis for ground-support
// tooling: every entry write is reflected into an HSet-keyed hash and
// published as "name:value" on the hash key's channel, and a BRPOP-driven queue lets an
// external tool inject EDL command bytes as if they arrived over the air.
package diag

import (
	"encoding/hex"
	"log"
	"time"

	"oresat.org/c3/pkg/od"
	"oresat.org/c3/pkg/redis"
)

const (
	odHashKey   = "c3.od"
	commandList = "c3.edl.inject"
	brpopWait   = 1 * time.Second
)

// Mirror wires an od.Dictionary's writes into Redis and exposes an
// injected-command queue for ground-support tooling.
type Mirror struct {
	client *redis.Client
	dict   *od.Dictionary
	logger *log.Logger
	stopCh chan struct{}
}

// New constructs a Mirror. Call MirrorAll once during startup to attach the
// write callbacks before the dictionary starts taking traffic.
func New(client *redis.Client, dict *od.Dictionary, logger *log.Logger) *Mirror {
	return &Mirror{client: client, dict: dict, logger: logger, stopCh: make(chan struct{})}
}

// MirrorAll wires every dictionary entry's write callback to publish into
// Redis.
func (m *Mirror) MirrorAll() {
	for _, e := range m.dict.Entries() {
		m.mirrorEntry(e.Name)
	}
}

func (m *Mirror) mirrorEntry(name string) {
	m.dict.AddWriteCallback(name, func(v od.Value) error {
		raw, err := od.Encode(v, m.dict.ByName(name).EncodedSize())
		if err != nil {
			return err
		}
		return m.client.WriteAndPublishString(odHashKey, name, hex.EncodeToString(raw))
	})
}

// Stop signals WatchCommands to exit at its next poll.
func (m *Mirror) Stop() { close(m.stopCh) }

// WatchCommands blocks on the injected-command queue, handing each
// hex-encoded EDL command frame to handle, until Stop is called.
func (m *Mirror) WatchCommands(handle func(frame []byte)) {
	for {
		select {
		case <-m.stopCh:
			return
		default:
		}

		result, err := m.client.BRPop(brpopWait, commandList)
		if err != nil {
			m.logf("BRPOP %s: %v", commandList, err)
			continue
		}
		if result == nil {
			continue
		}

		frame, err := hex.DecodeString(result[1])
		if err != nil {
			m.logf("decode injected frame: %v", err)
			continue
		}
		handle(frame)
	}
}

func (m *Mirror) logf(format string, args ...interface{}) {
	if m.logger != nil {
		m.logger.Printf("[diag] "+format, args...)
	}
}
