package strictenc

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestTypeDescriptionRoundTrip(t *testing.T) {
	tys := []*Ty{
		Prim(F16),
		Text(MustSizing(1, 64)),
		Bytes(SizingU32),
		Array(Prim(Byte), 32),
		Set(Prim(U16), MustSizing(0, 1000)),
		Map(Text(SizingU8), List(Prim(I128), SizingU8), SizingU16),
		Tuple(Prim(U8), Bool()),
		Struct(F("a", Prim(U8)), F("b", Ref("Other"))),
		Union(V("none", 0, nil), V("one", 3, Prim(U24)), V("two", 9, Tuple(Prim(U8), Prim(U8)))),
		Enum(V("x", 0, nil), V("y", 255, nil)),
	}
	for _, ty := range tys {
		w := NewBufferWriter(0)
		if err := EncodeType(w, ty); err != nil {
			t.Fatalf("EncodeType(%s): %v", ty, err)
		}
		r := NewReader(w.Bytes(), 0)
		back, err := DecodeType(r)
		if err != nil {
			t.Fatalf("DecodeType(%s): %v", ty, err)
		}
		if r.Remaining() != 0 {
			t.Fatalf("%s: %d bytes left", ty, r.Remaining())
		}
		if back.String() != ty.String() {
			t.Fatalf("round trip: %s != %s", back, ty)
		}
		lib := NewLibrary("x").MustDeclare("Other", Prim(U8))
		if mustID(t, back, lib) != mustID(t, ty, lib) {
			t.Fatalf("%s: identifier changed across serialization", ty)
		}
	}
}

func TestTypeDescriptionRejects(t *testing.T) {
	if err := EncodeType(NewBufferWriter(0), Struct()); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("encode malformed: %v", err)
	}
	if _, err := DecodeType(NewReader([]byte{42}, 0)); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("unknown class: %v", err)
	}
	// An enum carrying two variants with the same tag.
	w := NewBufferWriter(0)
	_ = w.WriteU8(uint8(ClassEnum))
	_ = w.WriteU16(2)
	_ = WriteText(w, "a", identSizing)
	_ = w.WriteU8(0)
	_ = WriteText(w, "b", identSizing)
	_ = w.WriteU8(0)
	if _, err := DecodeType(NewReader(w.Bytes(), 0)); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("duplicate tag: %v", err)
	}
	deep := bytes.Repeat([]byte{uint8(ClassList)}, MaxDepth+10)
	if _, err := DecodeType(NewReader(deep, 0)); !errors.Is(err, ErrReadLimit) {
		t.Fatalf("deep nesting: %v", err)
	}
	good := NewBufferWriter(0)
	_ = EncodeType(good, Map(Prim(U8), Text(SizingU8), SizingU8))
	b := good.Bytes()
	for cut := 1; cut <= len(b); cut++ {
		if _, err := DecodeType(NewReader(b[:len(b)-cut], 0)); !errors.Is(err, ErrUnexpectedEOF) {
			t.Fatalf("cut %d: %v", cut, err)
		}
	}
}

func TestDeclsRoundTrip(t *testing.T) {
	lib := NewLibrary("net").
		MustDeclare("Addr", Array(Prim(Byte), 16)).
		MustDeclare("Peer", Struct(F("addr", Ref("Addr")), F("port", Prim(U16)))).
		MustDeclare("Mesh", Struct(F("peers", Set(Ref("Peer"), SizingU8)), F("next", Option(Ref("Mesh")))))

	w := NewBufferWriter(0)
	if err := EncodeDecls(w, lib, nil); err != nil {
		t.Fatalf("EncodeDecls: %v", err)
	}
	r := NewReader(w.Bytes(), 0)
	back, err := DecodeDecls(r)
	if err != nil {
		t.Fatalf("DecodeDecls: %v", err)
	}
	if r.Remaining() != 0 {
		t.Fatalf("%d bytes left", r.Remaining())
	}
	if back.Name() != "net" || strings.Join(back.Names(), ",") != "Addr,Peer,Mesh" {
		t.Fatalf("decoded %q %v", back.Name(), back.Names())
	}
	for _, n := range lib.Names() {
		if back.MustID(n) != lib.MustID(n) {
			t.Fatalf("%s identifier changed", n)
		}
	}

	// A subset that leaves a reference dangling does not decode.
	w = NewBufferWriter(0)
	if err := EncodeDecls(w, lib, []string{"Peer"}); err != nil {
		t.Fatalf("EncodeDecls subset: %v", err)
	}
	if _, err := DecodeDecls(NewReader(w.Bytes(), 0)); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("dangling ref: %v", err)
	}
	if err := EncodeDecls(NewBufferWriter(0), lib, []string{"Nope"}); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("undeclared name: %v", err)
	}
}
