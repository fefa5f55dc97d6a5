package fram

import (
	"oresat.org/c3/pkg/od"
)

// Store reflects od.PersistentEntryNames into the F-RAM at position-defined
// offsets: offset = sum of prior encoded sizes, no framing.
type Store struct {
	fram *FRAM
	dict *od.Dictionary
}

// NewStore binds a Store to a FRAM device and the dictionary whose entries
// it reflects.
func NewStore(f *FRAM, dict *od.Dictionary) *Store {
	return &Store{fram: f, dict: dict}
}

func (s *Store) layout() (entries []*od.Entry, offsets []int, total int) {
	entries = make([]*od.Entry, 0, len(od.PersistentEntryNames))
	offsets = make([]int, 0, len(od.PersistentEntryNames))
	off := 0
	for _, name := range od.PersistentEntryNames {
		e := s.dict.ByName(name)
		offsets = append(offsets, off)
		entries = append(entries, e)
		off += e.EncodedSize()
	}
	return entries, offsets, off
}

// Restore iterates the persistent entry set in order, decoding each entry
// from its cumulative offset and writing the result into the OD. An entry
// that fails to decode as a valid label falls back to its current
// (default) value rather than aborting the whole restore.
func (s *Store) Restore() error {
	entries, offsets, total := s.layout()
	raw, err := s.fram.Read(0, total)
	if err != nil {
		return err
	}
	for i, e := range entries {
		off := offsets[i]
		size := e.EncodedSize()
		if err := e.DecodeInto(raw[off : off+size]); err != nil {
			// Leave the entry at its constructed default; this is the
			// declared fallback for corrupt/empty storage, not a fatal
			// restore error.
			continue
		}
	}
	return nil
}

// Persist iterates the persistent entry set in the same order and writes
// every entry's current encoding back to the F-RAM.
func (s *Store) Persist() error {
	entries, _, total := s.layout()
	buf := make([]byte, 0, total)
	for _, e := range entries {
		raw, err := e.Encode()
		if err != nil {
			return err
		}
		buf = append(buf, raw...)
	}
	return s.fram.Write(0, buf)
}

// Clear zeroes the persisted region but preserves the four EDL crypto
// keys, then lets the caller (the state service) reset the RTC to 0.
func (s *Store) Clear() error {
	isKey := make(map[string]bool, len(od.CryptoKeyNames))
	for _, name := range od.CryptoKeyNames {
		isKey[name] = true
	}

	for _, name := range od.PersistentEntryNames {
		if isKey[name] {
			// Left untouched: the crypto keys must survive a clear
			// exactly as-is.
			continue
		}
		e := s.dict.ByName(name)
		zero, err := od.Decode(e.Type, make([]byte, e.EncodedSize()))
		if err != nil {
			return err
		}
		if err := e.DecodeInto(mustEncode(zero, e.EncodedSize())); err != nil {
			return err
		}
	}

	return s.Persist()
}

func mustEncode(v od.Value, size int) []byte {
	raw, err := od.Encode(v, size)
	if err != nil {
		// Every value here was itself produced by od.Decode/a live entry
		// read, so re-encoding it cannot fail; a failure would mean the
		// entry table and the codec have drifted out of sync.
		panic(err)
	}
	return raw
}
