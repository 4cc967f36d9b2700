package strictenc

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/x448/float16"
)

// Kind tags the dynamic Value variants.
type Kind uint8

const (
	KindUnit Kind = iota
	KindBool
	KindUint
	KindInt
	KindU128
	KindI128
	KindF16
	KindF32
	KindF64
	KindText
	KindBytes
	KindList
	KindMap
	KindRecord
	KindVariant
)

var kindNames = [...]string{
	KindUnit:    "unit",
	KindBool:    "bool",
	KindUint:    "uint",
	KindInt:     "int",
	KindU128:    "u128",
	KindI128:    "i128",
	KindF16:     "f16",
	KindF32:     "f32",
	KindF64:     "f64",
	KindText:    "text",
	KindBytes:   "bytes",
	KindList:    "list",
	KindMap:     "map",
	KindRecord:  "record",
	KindVariant: "variant",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is a typed value whose shape is given by a description rather than
// a Go type. Lists, sets and arrays keep their elements in Items; tuples
// and structs keep their fields in Items in declaration order; maps keep
// Entries; enums and unions use Variant, Tag and Payload.
type Value struct {
	Kind Kind

	Bool bool
	Uint uint64
	Int  int64
	U128 Uint128
	I128 Int128
	F16  float16.Float16
	F32  float32
	F64  float64
	Text string
	// Bytes holds a byte list.
	Bytes []byte

	Items   []Value
	Entries []Entry[Value, Value]

	// Variant names the alternative; when empty, Tag selects it.
	Variant string
	Tag     uint8
	Payload *Value
}

func UnitValue() Value                 { return Value{Kind: KindUnit} }
func BoolValue(b bool) Value           { return Value{Kind: KindBool, Bool: b} }
func UintValue(u uint64) Value         { return Value{Kind: KindUint, Uint: u} }
func IntValue(i int64) Value           { return Value{Kind: KindInt, Int: i} }
func U128Value(u Uint128) Value        { return Value{Kind: KindU128, U128: u} }
func I128Value(i Int128) Value         { return Value{Kind: KindI128, I128: i} }
func F16Value(f float16.Float16) Value { return Value{Kind: KindF16, F16: f} }
func F32Value(f float32) Value         { return Value{Kind: KindF32, F32: f} }
func F64Value(f float64) Value         { return Value{Kind: KindF64, F64: f} }
func TextValue(s string) Value         { return Value{Kind: KindText, Text: s} }
func BytesValue(b []byte) Value        { return Value{Kind: KindBytes, Bytes: b} }
func ListValue(items ...Value) Value   { return Value{Kind: KindList, Items: items} }
func RecordValue(fields ...Value) Value {
	return Value{Kind: KindRecord, Items: fields}
}

func MapValue(entries ...Entry[Value, Value]) Value {
	return Value{Kind: KindMap, Entries: entries}
}

// Pair builds one map entry.
func Pair(k, v Value) Entry[Value, Value] { return Entry[Value, Value]{Key: k, Value: v} }

// EnumValue selects an enum variant by name.
func EnumValue(name string) Value { return Value{Kind: KindVariant, Variant: name} }

// VariantValue selects a union variant by name with its payload.
func VariantValue(name string, payload Value) Value {
	return Value{Kind: KindVariant, Variant: name, Payload: &payload}
}

// None and Some build values of an Option type.
func None() Value           { return EnumValue("none") }
func Some(v Value) Value    { return VariantValue("some", v) }
func (v Value) IsNone() bool { return v.Kind == KindVariant && v.Variant == "none" }

// Equal compares structurally. Floats compare by bit pattern, so a NaN
// equals itself and 0.0 differs from -0.0. Sets and maps compare in the
// order listed; use Canonical to compare values built in another order.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindUnit:
		return true
	case KindBool:
		return v.Bool == o.Bool
	case KindUint:
		return v.Uint == o.Uint
	case KindInt:
		return v.Int == o.Int
	case KindU128:
		return v.U128 == o.U128
	case KindI128:
		return v.I128 == o.I128
	case KindF16:
		return v.F16.Bits() == o.F16.Bits()
	case KindF32:
		return f32bits(v.F32) == f32bits(o.F32)
	case KindF64:
		return f64bits(v.F64) == f64bits(o.F64)
	case KindText:
		return v.Text == o.Text
	case KindBytes:
		return bytes.Equal(v.Bytes, o.Bytes)
	case KindList, KindRecord:
		if len(v.Items) != len(o.Items) {
			return false
		}
		for i := range v.Items {
			if !v.Items[i].Equal(o.Items[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.Entries) != len(o.Entries) {
			return false
		}
		for i := range v.Entries {
			if !v.Entries[i].Key.Equal(o.Entries[i].Key) || !v.Entries[i].Value.Equal(o.Entries[i].Value) {
				return false
			}
		}
		return true
	case KindVariant:
		// Decoded variants carry both name and tag; built ones often
		// only the name.
		if v.Variant != "" && o.Variant != "" {
			if v.Variant != o.Variant {
				return false
			}
		} else if v.Tag != o.Tag {
			return false
		}
		return v.payload().Equal(o.payload())
	}
	return false
}

// payload treats a missing payload as unit.
func (v Value) payload() Value {
	if v.Payload == nil {
		return UnitValue()
	}
	return *v.Payload
}

func (v Value) String() string {
	var b strings.Builder
	v.write(&b)
	return b.String()
}

func (v Value) write(b *strings.Builder) {
	switch v.Kind {
	case KindUnit:
		b.WriteString("()")
	case KindBool:
		fmt.Fprint(b, v.Bool)
	case KindUint:
		fmt.Fprint(b, v.Uint)
	case KindInt:
		fmt.Fprint(b, v.Int)
	case KindU128:
		b.WriteString(v.U128.String())
	case KindI128:
		b.WriteString(v.I128.String())
	case KindF16:
		fmt.Fprint(b, v.F16.Float32())
	case KindF32:
		fmt.Fprint(b, v.F32)
	case KindF64:
		fmt.Fprint(b, v.F64)
	case KindText:
		fmt.Fprintf(b, "%q", v.Text)
	case KindBytes:
		fmt.Fprintf(b, "0x%x", v.Bytes)
	case KindList, KindRecord:
		lb, rb := byte('['), byte(']')
		if v.Kind == KindRecord {
			lb, rb = '{', '}'
		}
		b.WriteByte(lb)
		for i, it := range v.Items {
			if i > 0 {
				b.WriteString(", ")
			}
			it.write(b)
		}
		b.WriteByte(rb)
	case KindMap:
		b.WriteByte('{')
		for i, e := range v.Entries {
			if i > 0 {
				b.WriteString(", ")
			}
			e.Key.write(b)
			b.WriteString(": ")
			e.Value.write(b)
		}
		b.WriteByte('}')
	case KindVariant:
		if v.Variant != "" {
			b.WriteString(v.Variant)
		} else {
			fmt.Fprintf(b, "#%d", v.Tag)
		}
		if v.Payload != nil && v.Payload.Kind != KindUnit {
			b.WriteByte('(')
			v.Payload.write(b)
			b.WriteByte(')')
		}
	default:
		b.WriteString(v.Kind.String())
	}
}
