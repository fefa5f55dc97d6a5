package od

import "fmt"

type key struct {
	index    uint16
	subindex uint8
}

// Dictionary is the Object Dictionary: the process-wide, typed key→value
// store through which every C3 service communicates. It is the sole
// shared mutable surface, built once at startup from a fixed entry list
// and never growing at runtime — lookups are O(1) by (index, subindex)
// or by name.
type Dictionary struct {
	byKey  map[key]*Entry
	byName map[string]*Entry
}

// NewDictionary builds a Dictionary from a fixed set of entries. Panics on
// a duplicate index/subindex or name, since that is a construction-time
// programming error, not a runtime condition any caller can recover from.
func NewDictionary(entries []*Entry) *Dictionary {
	d := &Dictionary{
		byKey:  make(map[key]*Entry, len(entries)),
		byName: make(map[string]*Entry, len(entries)),
	}
	for _, e := range entries {
		k := key{e.Index, e.Subindex}
		if _, dup := d.byKey[k]; dup {
			panic(fmt.Sprintf("od: duplicate entry key %04x:%02x (%s)", e.Index, e.Subindex, e.Name))
		}
		if _, dup := d.byName[e.Name]; dup {
			panic(fmt.Sprintf("od: duplicate entry name %s", e.Name))
		}
		d.byKey[k] = e
		d.byName[e.Name] = e
	}
	return d
}

// Get looks up an entry by index/subindex.
func (d *Dictionary) Get(index uint16, subindex uint8) (*Entry, bool) {
	e, ok := d.byKey[key{index, subindex}]
	return e, ok
}

// ByName looks up an entry by its symbolic name. Panics on an unknown name:
// every name referenced anywhere in the codebase is expected to be a
// compile-time-known constant from entries.go, so a miss here is a
// programming error, not a runtime condition.
func (d *Dictionary) ByName(name string) *Entry {
	e, ok := d.byName[name]
	if !ok {
		panic(fmt.Sprintf("od: unknown entry name %s", name))
	}
	return e
}

// Read is sugar for ByName(name).Read().
func (d *Dictionary) Read(name string) Value {
	return d.ByName(name).Read()
}

// Write is sugar for ByName(name).Write(v).
func (d *Dictionary) Write(name string, v Value) error {
	return d.ByName(name).Write(v)
}

// AddWriteCallback registers cb on the named entry, chaining it after any
// callback already registered there rather than replacing it.
func (d *Dictionary) AddWriteCallback(name string, cb WriteCallback) {
	d.ByName(name).AddWriteCallback(cb)
}

// Entries returns every entry, unordered (used by the ground-support
// mirror). The persistence layer and the beacon body assembler iterate
// their declared, ordered subsets instead — see PersistentEntryNames /
// BeaconBodyNames in entries.go.
func (d *Dictionary) Entries() map[key]*Entry {
	return d.byKey
}
