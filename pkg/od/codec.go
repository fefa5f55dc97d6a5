package od

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/fxamacker/cbor/v2"
)

// ErrCodec is returned by Encode/Decode on a type/size mismatch.
type ErrCodec struct {
	msg string
}

func (e *ErrCodec) Error() string { return e.msg }

func codecErrf(format string, args ...interface{}) error {
	return &ErrCodec{msg: fmt.Sprintf(format, args...)}
}

// Encode serializes v to its wire representation. size is the declared
// buffer length for TypeVisString and TypeBytes entries; it is ignored for
// fixed-width types. Encode/Decode round-trip for every supported type
//) == v.
func Encode(v Value, size int) ([]byte, error) {
	switch v.typ {
	case TypeU8:
		return []byte{v.AsU8()}, nil
	case TypeI8:
		return []byte{byte(v.AsI8())}, nil
	case TypeU16:
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, v.AsU16())
		return b, nil
	case TypeI16:
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, uint16(v.AsI16()))
		return b, nil
	case TypeU32:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, v.AsU32())
		return b, nil
	case TypeI32:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(v.AsI32()))
		return b, nil
	case TypeF32:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, math.Float32bits(v.AsF32()))
		return b, nil
	case TypeU64:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, v.AsU64())
		return b, nil
	case TypeI64:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, uint64(v.AsI64()))
		return b, nil
	case TypeF64:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, math.Float64bits(v.AsF64()))
		return b, nil
	case TypeVisString:
		raw := []byte(v.AsString())
		if size <= 0 {
			size = len(raw)
		}
		if len(raw) > size {
			return nil, codecErrf("string value too long for declared size %d: %d", size, len(raw))
		}
		buf := make([]byte, size)
		copy(buf, raw)
		return buf, nil
	case TypeBytes:
		// CBOR-wrap the opaque buffer for heterogeneous wire payloads.
		raw, err := cbor.Marshal(v.AsBytes())
		if err != nil {
			return nil, codecErrf("cbor encode: %v", err)
		}
		if size > 0 && len(raw) > size {
			return nil, codecErrf("bytes value too long for declared size %d: %d", size, len(raw))
		}
		if size > 0 {
			buf := make([]byte, size)
			copy(buf, raw)
			return buf, nil
		}
		return raw, nil
	default:
		return nil, codecErrf("unknown data type %v", v.typ)
	}
}

// Decode parses raw into a Value of the given type.
func Decode(t DataType, raw []byte) (Value, error) {
	need := t.FixedSize()
	switch t {
	case TypeU8:
		if len(raw) < need {
			return Value{}, codecErrf("u8: short buffer")
		}
		return U8(raw[0]), nil
	case TypeI8:
		if len(raw) < need {
			return Value{}, codecErrf("i8: short buffer")
		}
		return I8(int8(raw[0])), nil
	case TypeU16:
		if len(raw) < need {
			return Value{}, codecErrf("u16: short buffer")
		}
		return U16(binary.LittleEndian.Uint16(raw)), nil
	case TypeI16:
		if len(raw) < need {
			return Value{}, codecErrf("i16: short buffer")
		}
		return I16(int16(binary.LittleEndian.Uint16(raw))), nil
	case TypeU32:
		if len(raw) < need {
			return Value{}, codecErrf("u32: short buffer")
		}
		return U32(binary.LittleEndian.Uint32(raw)), nil
	case TypeI32:
		if len(raw) < need {
			return Value{}, codecErrf("i32: short buffer")
		}
		return I32(int32(binary.LittleEndian.Uint32(raw))), nil
	case TypeF32:
		if len(raw) < need {
			return Value{}, codecErrf("f32: short buffer")
		}
		return F32(math.Float32frombits(binary.LittleEndian.Uint32(raw))), nil
	case TypeU64:
		if len(raw) < need {
			return Value{}, codecErrf("u64: short buffer")
		}
		return U64(binary.LittleEndian.Uint64(raw)), nil
	case TypeI64:
		if len(raw) < need {
			return Value{}, codecErrf("i64: short buffer")
		}
		return I64(int64(binary.LittleEndian.Uint64(raw))), nil
	case TypeF64:
		if len(raw) < need {
			return Value{}, codecErrf("f64: short buffer")
		}
		return F64(math.Float64frombits(binary.LittleEndian.Uint64(raw))), nil
	case TypeVisString:
		end := len(raw)
		for end > 0 && raw[end-1] == 0 {
			end--
		}
		return Str(string(raw[:end])), nil
	case TypeBytes:
		var b []byte
		// A CBOR byte string is self-delimiting, so decoding from a
		// Decoder (rather than Unmarshal) correctly ignores any zero
		// padding appended after it to fill a declared fixed buffer size.
		if err := cbor.NewDecoder(bytes.NewReader(raw)).Decode(&b); err != nil {
			return Value{}, codecErrf("cbor decode: %v", err)
		}
		return Bytes(b), nil
	default:
		return Value{}, codecErrf("unknown data type %v", t)
	}
}
