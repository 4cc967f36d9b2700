package strictenc

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"

	"github.com/x448/float16"
)

// Primitive identifies a fixed-width scalar inside a type description. The
// two high bits carry the class (unsigned 0x00, signed 0x40, float 0xC0) and
// the low five bits the width in bytes. Unit (0x00) and Byte (0x40) are the
// two zero-width codes given a meaning of their own.
type Primitive uint8

const (
	Unit Primitive = 0x00
	Byte Primitive = 0x40

	U8   Primitive = 0x01
	U16  Primitive = 0x02
	U24  Primitive = 0x03
	U32  Primitive = 0x04
	U64  Primitive = 0x08
	U128 Primitive = 0x10

	I8   Primitive = 0x41
	I16  Primitive = 0x42
	I32  Primitive = 0x44
	I64  Primitive = 0x48
	I128 Primitive = 0x50

	F16 Primitive = 0xC2
	F32 Primitive = 0xC4
	F64 Primitive = 0xC8
)

const (
	clsMask     = 0xC0
	clsUnsigned = 0x00
	clsSigned   = 0x40
	clsFloat    = 0xC0
)

func (p Primitive) valid() bool {
	switch p {
	case Unit, Byte, U8, U16, U24, U32, U64, U128, I8, I16, I32, I64, I128, F16, F32, F64:
		return true
	}
	return false
}

// Size is the encoded width in bytes.
func (p Primitive) Size() int {
	switch p {
	case Unit:
		return 0
	case Byte:
		return 1
	}
	return int(p & 0x1F)
}

func (p Primitive) Signed() bool { return p != Byte && p&clsMask == clsSigned }
func (p Primitive) Float() bool  { return p&clsMask == clsFloat }

func (p Primitive) String() string {
	switch p {
	case Unit:
		return "()"
	case Byte:
		return "Byte"
	}
	var c byte
	switch p & clsMask {
	case clsUnsigned:
		c = 'U'
	case clsSigned:
		c = 'I'
	case clsFloat:
		c = 'F'
	default:
		return fmt.Sprintf("Primitive(%#02x)", uint8(p))
	}
	return fmt.Sprintf("%c%d", c, p.Size()*8)
}

// Uint128 is an unsigned 128-bit integer split into 64-bit halves.
type Uint128 struct {
	Lo, Hi uint64
}

// Int128 is a two's-complement signed 128-bit integer.
type Int128 struct {
	Lo uint64
	Hi int64
}

// Int128From64 sign-extends v.
func Int128From64(v int64) Int128 { return Int128{Lo: uint64(v), Hi: v >> 63} }

var two64 = new(big.Int).Lsh(big.NewInt(1), 64)

// Big converts to a math/big integer.
func (u Uint128) Big() *big.Int {
	b := new(big.Int).SetUint64(u.Hi)
	b.Lsh(b, 64)
	return b.Or(b, new(big.Int).SetUint64(u.Lo))
}

func (u Uint128) String() string { return u.Big().String() }

// Big converts to a math/big integer.
func (i Int128) Big() *big.Int {
	b := big.NewInt(i.Hi)
	b.Mul(b, two64)
	return b.Add(b, new(big.Int).SetUint64(i.Lo))
}

func (i Int128) String() string { return i.Big().String() }

var (
	maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	maxInt128  = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	minInt128  = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
)

// Uint128FromBig converts b, reporting false when it does not fit.
func Uint128FromBig(b *big.Int) (Uint128, bool) {
	if b.Sign() < 0 || b.Cmp(maxUint128) > 0 {
		return Uint128{}, false
	}
	lo := new(big.Int).And(b, new(big.Int).SetUint64(math.MaxUint64))
	hi := new(big.Int).Rsh(b, 64)
	return Uint128{Lo: lo.Uint64(), Hi: hi.Uint64()}, true
}

// Int128FromBig converts b, reporting false when it does not fit.
func Int128FromBig(b *big.Int) (Int128, bool) {
	if b.Cmp(minInt128) < 0 || b.Cmp(maxInt128) > 0 {
		return Int128{}, false
	}
	// two's complement over 128 bits
	u := new(big.Int).Set(b)
	if u.Sign() < 0 {
		u.Add(u, new(big.Int).Lsh(big.NewInt(1), 128))
	}
	v, _ := Uint128FromBig(u)
	return Int128{Lo: v.Lo, Hi: int64(v.Hi)}, true
}

// Integers and float bit patterns are little-endian everywhere.
var le = binary.LittleEndian

func (w *Writer) WriteU8(v uint8) error { return w.WriteRaw([]byte{v}) }

func (w *Writer) WriteU16(v uint16) error {
	var b [2]byte
	le.PutUint16(b[:], v)
	return w.WriteRaw(b[:])
}

func (w *Writer) WriteU24(v uint32) error {
	if v > 0xFFFFFF {
		return &MismatchError{Want: "U24", Got: fmt.Sprintf("%d", v)}
	}
	return w.WriteRaw([]byte{byte(v), byte(v >> 8), byte(v >> 16)})
}

func (w *Writer) WriteU32(v uint32) error {
	var b [4]byte
	le.PutUint32(b[:], v)
	return w.WriteRaw(b[:])
}

func (w *Writer) WriteU64(v uint64) error {
	var b [8]byte
	le.PutUint64(b[:], v)
	return w.WriteRaw(b[:])
}

func (w *Writer) WriteU128(v Uint128) error {
	var b [16]byte
	le.PutUint64(b[:8], v.Lo)
	le.PutUint64(b[8:], v.Hi)
	return w.WriteRaw(b[:])
}

func (w *Writer) WriteI8(v int8) error   { return w.WriteU8(uint8(v)) }
func (w *Writer) WriteI16(v int16) error { return w.WriteU16(uint16(v)) }
func (w *Writer) WriteI32(v int32) error { return w.WriteU32(uint32(v)) }
func (w *Writer) WriteI64(v int64) error { return w.WriteU64(uint64(v)) }

func (w *Writer) WriteI128(v Int128) error {
	return w.WriteU128(Uint128{Lo: v.Lo, Hi: uint64(v.Hi)})
}

// WriteBool writes 0x01 for true and 0x00 for false.
func (w *Writer) WriteBool(v bool) error {
	if v {
		return w.WriteU8(1)
	}
	return w.WriteU8(0)
}

// Floats are written as their IEEE-754 bits; NaN payloads survive.
func (w *Writer) WriteF16(v float16.Float16) error { return w.WriteU16(v.Bits()) }
func (w *Writer) WriteF32(v float32) error         { return w.WriteU32(math.Float32bits(v)) }
func (w *Writer) WriteF64(v float64) error         { return w.WriteU64(math.Float64bits(v)) }

func (r *Reader) ReadU8() (uint8, error) {
	b, err := r.ReadRaw(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ReadU16() (uint16, error) {
	b, err := r.ReadRaw(2)
	if err != nil {
		return 0, err
	}
	return le.Uint16(b), nil
}

func (r *Reader) ReadU24() (uint32, error) {
	b, err := r.ReadRaw(3)
	if err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16, nil
}

func (r *Reader) ReadU32() (uint32, error) {
	b, err := r.ReadRaw(4)
	if err != nil {
		return 0, err
	}
	return le.Uint32(b), nil
}

func (r *Reader) ReadU64() (uint64, error) {
	b, err := r.ReadRaw(8)
	if err != nil {
		return 0, err
	}
	return le.Uint64(b), nil
}

func (r *Reader) ReadU128() (Uint128, error) {
	b, err := r.ReadRaw(16)
	if err != nil {
		return Uint128{}, err
	}
	return Uint128{Lo: le.Uint64(b[:8]), Hi: le.Uint64(b[8:])}, nil
}

func (r *Reader) ReadI8() (int8, error) {
	v, err := r.ReadU8()
	return int8(v), err
}

func (r *Reader) ReadI16() (int16, error) {
	v, err := r.ReadU16()
	return int16(v), err
}

func (r *Reader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

func (r *Reader) ReadI64() (int64, error) {
	v, err := r.ReadU64()
	return int64(v), err
}

func (r *Reader) ReadI128() (Int128, error) {
	v, err := r.ReadU128()
	return Int128{Lo: v.Lo, Hi: int64(v.Hi)}, err
}

// ReadBool accepts only 0x00 and 0x01.
func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadU8()
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, fmt.Errorf("%w: byte %#02x", ErrInvalidBool, v)
}

func (r *Reader) ReadF16() (float16.Float16, error) {
	v, err := r.ReadU16()
	return float16.Frombits(v), err
}

func (r *Reader) ReadF32() (float32, error) {
	v, err := r.ReadU32()
	return math.Float32frombits(v), err
}

func (r *Reader) ReadF64() (float64, error) {
	v, err := r.ReadU64()
	return math.Float64frombits(v), err
}
