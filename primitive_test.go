package strictenc

import (
	"bytes"
	"errors"
	"math"
	"math/big"
	"testing"

	"github.com/x448/float16"
)

func TestPrimitiveLayoutLittleEndian(t *testing.T) {
	w := NewBufferWriter(0)
	_ = w.WriteU16(0x0102)
	_ = w.WriteU24(0x030405)
	_ = w.WriteI32(-2)
	_ = w.WriteU128(Uint128{Lo: 1, Hi: 2})
	want := []byte{
		0x02, 0x01,
		0x05, 0x04, 0x03,
		0xFE, 0xFF, 0xFF, 0xFF,
		1, 0, 0, 0, 0, 0, 0, 0, 2, 0, 0, 0, 0, 0, 0, 0,
	}
	if !bytes.Equal(w.Bytes(), want) {
		t.Fatalf("got % x\nwant % x", w.Bytes(), want)
	}

	r := NewReader(w.Bytes(), 0)
	if v, _ := r.ReadU16(); v != 0x0102 {
		t.Fatalf("u16 %#x", v)
	}
	if v, _ := r.ReadU24(); v != 0x030405 {
		t.Fatalf("u24 %#x", v)
	}
	if v, _ := r.ReadI32(); v != -2 {
		t.Fatalf("i32 %d", v)
	}
	if v, _ := r.ReadU128(); v != (Uint128{Lo: 1, Hi: 2}) {
		t.Fatalf("u128 %+v", v)
	}
	if r.Remaining() != 0 {
		t.Fatalf("remaining %d", r.Remaining())
	}
}

func TestU24Overflow(t *testing.T) {
	w := NewBufferWriter(0)
	if err := w.WriteU24(1 << 24); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
	if w.Count() != 0 {
		t.Fatalf("nothing should be written")
	}
}

func TestBoolStrict(t *testing.T) {
	for _, b := range []byte{0, 1} {
		v, err := NewReader([]byte{b}, 0).ReadBool()
		if err != nil || v != (b == 1) {
			t.Fatalf("byte %d: v=%v err=%v", b, v, err)
		}
	}
	if _, err := NewReader([]byte{2}, 0).ReadBool(); !errors.Is(err, ErrInvalidBool) {
		t.Fatalf("expected ErrInvalidBool, got %v", err)
	}
}

func TestFloatBitsPreserved(t *testing.T) {
	nan32 := math.Float32frombits(0x7FC00001)
	nan64 := math.Float64frombits(0x7FF8000000000abc)
	h := float16.Frombits(0x7E01)

	w := NewBufferWriter(0)
	_ = w.WriteF16(h)
	_ = w.WriteF32(nan32)
	_ = w.WriteF64(nan64)
	_ = w.WriteF64(math.Copysign(0, -1))

	r := NewReader(w.Bytes(), 0)
	if v, _ := r.ReadF16(); v.Bits() != 0x7E01 {
		t.Fatalf("f16 bits %#x", v.Bits())
	}
	if v, _ := r.ReadF32(); math.Float32bits(v) != 0x7FC00001 {
		t.Fatalf("f32 bits %#x", math.Float32bits(v))
	}
	if v, _ := r.ReadF64(); math.Float64bits(v) != 0x7FF8000000000abc {
		t.Fatalf("f64 bits %#x", math.Float64bits(v))
	}
	if v, _ := r.ReadF64(); !math.Signbit(v) {
		t.Fatalf("negative zero lost its sign")
	}
}

func TestPrimitiveTruncated(t *testing.T) {
	r := NewReader([]byte{1, 2, 3}, 0)
	if _, err := r.ReadU32(); !errors.Is(err, ErrUnexpectedEOF) {
		t.Fatalf("expected ErrUnexpectedEOF, got %v", err)
	}
	if r.Offset() != 0 {
		t.Fatalf("partial primitive read")
	}
}

func TestInt128Big(t *testing.T) {
	cases := []string{
		"0", "1", "-1",
		"170141183460469231731687303715884105727",
		"-170141183460469231731687303715884105728",
		"-18446744073709551616",
	}
	for _, s := range cases {
		b, _ := new(big.Int).SetString(s, 10)
		v, ok := Int128FromBig(b)
		if !ok {
			t.Fatalf("%s should fit", s)
		}
		if v.String() != s {
			t.Fatalf("%s round-tripped to %s", s, v.String())
		}
	}
	over, _ := new(big.Int).SetString("170141183460469231731687303715884105728", 10)
	if _, ok := Int128FromBig(over); ok {
		t.Fatalf("2^127 should not fit")
	}
	if Int128From64(-5).String() != "-5" {
		t.Fatalf("Int128From64(-5) = %s", Int128From64(-5))
	}
}

func TestUint128Big(t *testing.T) {
	top, _ := new(big.Int).SetString("340282366920938463463374607431768211455", 10)
	v, ok := Uint128FromBig(top)
	if !ok || v != (Uint128{Lo: math.MaxUint64, Hi: math.MaxUint64}) {
		t.Fatalf("max: %+v ok=%v", v, ok)
	}
	if _, ok := Uint128FromBig(big.NewInt(-1)); ok {
		t.Fatalf("negative should not fit")
	}
	if _, ok := Uint128FromBig(new(big.Int).Add(top, big.NewInt(1))); ok {
		t.Fatalf("2^128 should not fit")
	}
}

func TestPrimitiveMeta(t *testing.T) {
	cases := []struct {
		p      Primitive
		size   int
		signed bool
		float  bool
		name   string
	}{
		{Unit, 0, false, false, "()"},
		{Byte, 1, false, false, "Byte"},
		{U24, 3, false, false, "U24"},
		{I128, 16, true, false, "I128"},
		{F16, 2, false, true, "F16"},
		{F64, 8, false, true, "F64"},
	}
	for _, tc := range cases {
		if tc.p.Size() != tc.size || tc.p.Signed() != tc.signed || tc.p.Float() != tc.float || tc.p.String() != tc.name {
			t.Fatalf("%s: size=%d signed=%v float=%v", tc.p, tc.p.Size(), tc.p.Signed(), tc.p.Float())
		}
	}
	if Primitive(0x05).valid() {
		t.Fatalf("0x05 is not a primitive")
	}
}
