// Package od implements the Object Dictionary: the flat, typed key-value
// store that is the sole shared mutable surface between C3 services.
package od

import "fmt"

// DataType is the declared type of an Object Dictionary entry. Every entry
// picks exactly one of these; there is no dynamic retyping at runtime.
type DataType uint8

const (
	TypeU8 DataType = iota
	TypeU16
	TypeU32
	TypeU64
	TypeI8
	TypeI16
	TypeI32
	TypeI64
	TypeF32
	TypeF64
	TypeVisString
	TypeBytes
)

func (t DataType) String() string {
	switch t {
	case TypeU8:
		return "u8"
	case TypeU16:
		return "u16"
	case TypeU32:
		return "u32"
	case TypeU64:
		return "u64"
	case TypeI8:
		return "i8"
	case TypeI16:
		return "i16"
	case TypeI32:
		return "i32"
	case TypeI64:
		return "i64"
	case TypeF32:
		return "f32"
	case TypeF64:
		return "f64"
	case TypeVisString:
		return "string"
	case TypeBytes:
		return "bytes"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// FixedSize returns the wire size in bytes for types whose encoding has a
// fixed width independent of content. VisString and Bytes return 0: their
// size is a per-entry declaration, not a property of the type.
func (t DataType) FixedSize() int {
	switch t {
	case TypeU8, TypeI8:
		return 1
	case TypeU16, TypeI16:
		return 2
	case TypeU32, TypeI32, TypeF32:
		return 4
	case TypeU64, TypeI64, TypeF64:
		return 8
	default:
		return 0
	}
}

// Value is a typed tagged union holding exactly one OD value, in place
// of dynamically-typed OD entries and command payloads.
type Value struct {
	typ DataType
	u   uint64
	i   int64
	f   float64
	s   string
	b   []byte
}

func (v Value) Type() DataType { return v.typ }

func U8(n uint8) Value   { return Value{typ: TypeU8, u: uint64(n)} }
func U16(n uint16) Value { return Value{typ: TypeU16, u: uint64(n)} }
func U32(n uint32) Value { return Value{typ: TypeU32, u: uint64(n)} }
func U64(n uint64) Value { return Value{typ: TypeU64, u: n} }
func I8(n int8) Value    { return Value{typ: TypeI8, i: int64(n)} }
func I16(n int16) Value  { return Value{typ: TypeI16, i: int64(n)} }
func I32(n int32) Value  { return Value{typ: TypeI32, i: int64(n)} }
func I64(n int64) Value  { return Value{typ: TypeI64, i: n} }
func F32(n float32) Value {
	return Value{typ: TypeF32, f: float64(n)}
}
func F64(n float64) Value { return Value{typ: TypeF64, f: n} }
func Str(s string) Value  { return Value{typ: TypeVisString, s: s} }
func Bytes(b []byte) Value {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Value{typ: TypeBytes, b: cp}
}

// Bool is sugar over U8: the OD has no dedicated boolean type, matching the
// wire-level commands that encode booleans as a single byte.
func Bool(b bool) Value {
	if b {
		return U8(1)
	}
	return U8(0)
}

func (v Value) AsBool() bool { return v.u != 0 }
func (v Value) AsU8() uint8  { return uint8(v.u) }
func (v Value) AsU16() uint16 { return uint16(v.u) }
func (v Value) AsU32() uint32 { return uint32(v.u) }
func (v Value) AsU64() uint64 { return v.u }
func (v Value) AsI8() int8   { return int8(v.i) }
func (v Value) AsI16() int16 { return int16(v.i) }
func (v Value) AsI32() int32 { return int32(v.i) }
func (v Value) AsI64() int64 { return v.i }
func (v Value) AsF32() float32 { return float32(v.f) }
func (v Value) AsF64() float64 { return v.f }
func (v Value) AsString() string { return v.s }
func (v Value) AsBytes() []byte {
	cp := make([]byte, len(v.b))
	copy(cp, v.b)
	return cp
}

// AsInt64 widens any integer-typed value to int64, for callers (e.g. the
// state machine's enumerated STATUS checks) that want to compare across the
// signed/unsigned integer family without a type switch at each call site.
func (v Value) AsInt64() int64 {
	switch v.typ {
	case TypeI8, TypeI16, TypeI32, TypeI64:
		return v.i
	default:
		return int64(v.u)
	}
}
