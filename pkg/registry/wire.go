package registry

import (
	"encoding/binary"
	"fmt"

	"oresat.org/c3/pkg/od"
)

// Schema is an ordered, typed field list for a command's request or
// response payload. Only the last field may be TypeBytes, and when it
// is, it consumes the remainder of the buffer rather than a declared
// fixed size — the wire equivalent of a trailing variable-length buffer.
type Schema []od.DataType

// ErrBadRequest is returned by decodeSchema on a size or field-type
// mismatch.
var ErrBadRequest = fmt.Errorf("registry: request decode failed")

func encodeSchema(schema Schema, values []od.Value) ([]byte, error) {
	if len(values) != len(schema) {
		return nil, fmt.Errorf("%w: %d values for %d-field schema", ErrBadRequest, len(values), len(schema))
	}
	var out []byte
	for i, t := range schema {
		v := values[i]
		if v.Type() != t {
			return nil, fmt.Errorf("%w: field %d type mismatch: got %v want %v", ErrBadRequest, i, v.Type(), t)
		}
		switch t {
		case od.TypeBytes:
			if i != len(schema)-1 {
				return nil, fmt.Errorf("%w: bytes field must be last", ErrBadRequest)
			}
			out = append(out, v.AsBytes()...)
		default:
			raw, err := od.Encode(v, 0)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
			}
			out = append(out, raw...)
		}
	}
	return out, nil
}

func decodeSchema(schema Schema, raw []byte) ([]od.Value, error) {
	out := make([]od.Value, 0, len(schema))
	off := 0
	for i, t := range schema {
		if t == od.TypeBytes {
			if i != len(schema)-1 {
				return nil, fmt.Errorf("%w: bytes field must be last", ErrBadRequest)
			}
			out = append(out, od.Bytes(raw[off:]))
			off = len(raw)
			continue
		}
		n := t.FixedSize()
		if off+n > len(raw) {
			return nil, fmt.Errorf("%w: short buffer decoding field %d (%v)", ErrBadRequest, i, t)
		}
		v, err := decodeFixed(t, raw[off:off+n])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		out = append(out, v)
		off += n
	}
	if off != len(raw) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrBadRequest, len(raw)-off)
	}
	return out, nil
}

// decodeFixed decodes one fixed-width integer scalar. It duplicates
// od.Decode's integer cases rather than reusing it directly because od.Decode's
// TypeBytes branch is CBOR-wrapped for OD storage, which the raw command
// wire format never is — the shared fixed-width cases are small enough
// that factoring them out would cost more indirection than it saves.
func decodeFixed(t od.DataType, raw []byte) (od.Value, error) {
	switch t {
	case od.TypeU8:
		return od.U8(raw[0]), nil
	case od.TypeI8:
		return od.I8(int8(raw[0])), nil
	case od.TypeU16:
		return od.U16(binary.LittleEndian.Uint16(raw)), nil
	case od.TypeI16:
		return od.I16(int16(binary.LittleEndian.Uint16(raw))), nil
	case od.TypeU32:
		return od.U32(binary.LittleEndian.Uint32(raw)), nil
	case od.TypeI32:
		return od.I32(int32(binary.LittleEndian.Uint32(raw))), nil
	case od.TypeU64:
		return od.U64(binary.LittleEndian.Uint64(raw)), nil
	case od.TypeI64:
		return od.I64(int64(binary.LittleEndian.Uint64(raw))), nil
	default:
		return od.Value{}, fmt.Errorf("unsupported schema field type %v", t)
	}
}
