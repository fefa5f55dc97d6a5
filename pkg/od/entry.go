package od

import (
	"fmt"
	"sync"
)

// WriteCallback is invoked synchronously, on the writing goroutine, after a
// successful write and after the entry's mutex has been released. A
// callback that writes the same entry again re-enters that entry's
// callback chain with the new value.
type WriteCallback func(Value) error

// Entry is one Object Dictionary key: an (index, subindex) pair with a
// declared type, an optional enumerated label set, and an optional write
// callback. All entry state is guarded by its own mutex so that concurrent
// services reading/writing distinct entries never contend with each
// other; each entry's read/write is atomic with respect to other
// reads/writes of that same entry.
type Entry struct {
	Index       uint16
	Subindex    uint8
	Name        string
	Type        DataType
	Size        int // declared encoded size; 0 means "use DataType.FixedSize()"
	EnumLabels  map[int64]string

	mu      sync.RWMutex
	value   Value
	writeCB WriteCallback
}

// NewEntry constructs an entry with its default value already set.
func NewEntry(index uint16, subindex uint8, name string, typ DataType, def Value) *Entry {
	return &Entry{
		Index:    index,
		Subindex: subindex,
		Name:     name,
		Type:     typ,
		value:    def,
	}
}

// WithSize declares the fixed buffer size for VisString/Bytes entries.
func (e *Entry) WithSize(n int) *Entry {
	e.Size = n
	return e
}

// WithEnum declares the valid integer label set for an enumerated entry.
// Writes of a value outside this set are rejected.
func (e *Entry) WithEnum(labels map[int64]string) *Entry {
	e.EnumLabels = labels
	return e
}

// EncodedSize returns the entry's wire size.
func (e *Entry) EncodedSize() int {
	if n := e.Type.FixedSize(); n > 0 {
		return n
	}
	if e.Size > 0 {
		return e.Size
	}
	// Variable-length types with no declared size: measure the current
	// value's encoding (used only for non-persistent, ad hoc entries).
	raw, err := Encode(e.value, 0)
	if err != nil {
		return 0
	}
	return len(raw)
}

// Read returns the current value.
func (e *Entry) Read() Value {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.value
}

// Write validates and stores v, then invokes the write callback (if any)
// outside the entry's lock.
func (e *Entry) Write(v Value) error {
	if v.Type() != e.Type {
		return fmt.Errorf("od: entry %s: type mismatch: got %v want %v", e.Name, v.Type(), e.Type)
	}
	if e.EnumLabels != nil {
		if _, ok := e.EnumLabels[v.AsInt64()]; !ok {
			return fmt.Errorf("od: entry %s: value %d not in enumerated label set", e.Name, v.AsInt64())
		}
	}

	e.mu.Lock()
	e.value = v
	cb := e.writeCB
	e.mu.Unlock()

	if cb != nil {
		return cb(v)
	}
	return nil
}

// SetWriteCallback registers the side-effect callback for this entry,
// replacing any previously registered one.
func (e *Entry) SetWriteCallback(cb WriteCallback) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.writeCB = cb
}

// AddWriteCallback chains cb after any previously registered callback, so
// multiple independent subscribers (the ground-support mirror, the beacon
// scheduler, the UART router, ...) can all observe writes to the same
// entry regardless of registration order.
func (e *Entry) AddWriteCallback(cb WriteCallback) {
	e.mu.Lock()
	prev := e.writeCB
	e.mu.Unlock()

	if prev == nil {
		e.SetWriteCallback(cb)
		return
	}
	e.SetWriteCallback(func(v Value) error {
		if err := prev(v); err != nil {
			return err
		}
		return cb(v)
	})
}

// Encode serializes the current value to its wire representation.
func (e *Entry) Encode() ([]byte, error) {
	return Encode(e.Read(), e.EncodedSize())
}

// DecodeInto parses raw per the entry's declared type and writes the result
// into the entry directly, bypassing the write callback. Used by
// persistence restore: an undecodable/invalid value falls back to the
// entry's declared default rather than failing restore outright.
func (e *Entry) DecodeInto(raw []byte) error {
	v, err := Decode(e.Type, raw)
	if err != nil {
		return err
	}
	if e.EnumLabels != nil {
		if _, ok := e.EnumLabels[v.AsInt64()]; !ok {
			return fmt.Errorf("od: entry %s: decoded value %d not a valid label", e.Name, v.AsInt64())
		}
	}
	e.mu.Lock()
	e.value = v
	e.mu.Unlock()
	return nil
}
