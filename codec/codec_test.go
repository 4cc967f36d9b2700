package codec

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/unkn0wn-root/strictenc"
)

func shop() *strictenc.Library {
	return strictenc.NewLibrary("shop").
		MustDeclare("Color", strictenc.Enum(
			strictenc.V("red", 0, nil),
			strictenc.V("green", 1, nil),
			strictenc.V("blue", 7, nil),
		)).
		MustDeclare("Shape", strictenc.Union(
			strictenc.V("none", 0, nil),
			strictenc.V("circle", 1, strictenc.Prim(strictenc.F32)),
			strictenc.V("rect", 2, strictenc.Tuple(strictenc.Prim(strictenc.U16), strictenc.Prim(strictenc.U16))),
		)).
		MustDeclare("Item", strictenc.Struct(
			strictenc.F("id", strictenc.Prim(strictenc.U32)),
			strictenc.F("name", strictenc.Text(strictenc.MustSizing(1, 32))),
			strictenc.F("price", strictenc.Prim(strictenc.I64)),
			strictenc.F("serial", strictenc.Prim(strictenc.U128)),
			strictenc.F("digest", strictenc.Array(strictenc.Prim(strictenc.Byte), 4)),
			strictenc.F("blob", strictenc.Bytes(strictenc.SizingU8)),
			strictenc.F("tags", strictenc.Set(strictenc.Text(strictenc.SizingU8), strictenc.SizingU8)),
			strictenc.F("stock", strictenc.Map(strictenc.Text(strictenc.SizingU8), strictenc.Prim(strictenc.U16), strictenc.SizingU8)),
			strictenc.F("color", strictenc.Ref("Color")),
			strictenc.F("shape", strictenc.Ref("Shape")),
			strictenc.F("fresh", strictenc.Bool()),
			strictenc.F("note", strictenc.Option(strictenc.Text(strictenc.SizingU8))),
			strictenc.F("ratio", strictenc.Prim(strictenc.F64)),
			strictenc.F("nothing", strictenc.Prim(strictenc.Unit)),
		))
}

func item(shape strictenc.Value, note strictenc.Value) strictenc.Value {
	return strictenc.RecordValue(
		strictenc.UintValue(42),
		strictenc.TextValue("pen"),
		strictenc.IntValue(-150),
		strictenc.U128Value(strictenc.Uint128{Lo: 7, Hi: 1}),
		strictenc.BytesValue([]byte{0xDE, 0xAD, 0xBE, 0xEF}),
		strictenc.BytesValue([]byte("ink")),
		strictenc.ListValue(strictenc.TextValue("a"), strictenc.TextValue("b")),
		strictenc.MapValue(
			strictenc.Pair(strictenc.TextValue("north"), strictenc.UintValue(3)),
			strictenc.Pair(strictenc.TextValue("south"), strictenc.UintValue(0)),
		),
		strictenc.EnumValue("blue"),
		shape,
		strictenc.BoolValue(true),
		note,
		strictenc.F64Value(0.25),
		strictenc.UnitValue(),
	)
}

func strict(t *testing.T, lib *strictenc.Library, v strictenc.Value) []byte {
	t.Helper()
	w := strictenc.NewBufferWriter(0)
	if err := strictenc.EncodeValue(w, strictenc.Ref("Item"), v, lib); err != nil {
		t.Fatalf("EncodeValue: %v", err)
	}
	return w.Bytes()
}

func adapters(t *testing.T, lib *strictenc.Library) map[string]Codec[strictenc.Value] {
	t.Helper()
	j, err := NewJSON(lib, "Item")
	if err != nil {
		t.Fatalf("NewJSON: %v", err)
	}
	c, err := NewCBOR(lib, "Item")
	if err != nil {
		t.Fatalf("NewCBOR: %v", err)
	}
	m, err := NewMsgpack(lib, "Item")
	if err != nil {
		t.Fatalf("NewMsgpack: %v", err)
	}
	p, err := NewProto(lib, "Item")
	if err != nil {
		t.Fatalf("NewProto: %v", err)
	}
	return map[string]Codec[strictenc.Value]{"json": j, "cbor": c, "msgpack": m, "proto": p}
}

func TestAdaptersRoundTrip(t *testing.T) {
	lib := shop()
	values := []strictenc.Value{
		item(strictenc.VariantValue("circle", strictenc.F32Value(1.5)), strictenc.Some(strictenc.TextValue("fragile"))),
		item(strictenc.VariantValue("rect", strictenc.RecordValue(strictenc.UintValue(2), strictenc.UintValue(3))), strictenc.None()),
		item(strictenc.EnumValue("none"), strictenc.None()),
	}
	for name, c := range adapters(t, lib) {
		for i, v := range values {
			b, err := c.Encode(v)
			if err != nil {
				t.Fatalf("%s[%d] Encode: %v", name, i, err)
			}
			back, err := c.Decode(b)
			if err != nil {
				t.Fatalf("%s[%d] Decode: %v", name, i, err)
			}
			if !back.Equal(v) {
				t.Fatalf("%s[%d] round trip:\n%s\n%s", name, i, back, v)
			}
			if !bytes.Equal(strict(t, lib, back), strict(t, lib, v)) {
				t.Fatalf("%s[%d] strict bytes changed", name, i)
			}
			again, err := c.Encode(back)
			if err != nil || !bytes.Equal(again, b) {
				t.Fatalf("%s[%d] re-encode differs: %v", name, i, err)
			}
		}
	}
}

func TestAdaptersRejectOutOfBounds(t *testing.T) {
	lib := shop()
	long := item(strictenc.EnumValue("none"), strictenc.None())
	long.Items[1] = strictenc.TextValue(strings.Repeat("x", 33))
	for name, c := range adapters(t, lib) {
		if _, err := c.Encode(long); !errors.Is(err, strictenc.ErrConfinement) {
			t.Fatalf("%s: expected ErrConfinement, got %v", name, err)
		}
	}

	// A document can parse and still break a bound.
	j, _ := NewJSON(lib, "Item")
	ok, err := j.Encode(item(strictenc.EnumValue("none"), strictenc.None()))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	bad := bytes.Replace(ok, []byte(`"name":"pen"`), []byte(`"name":""`), 1)
	if _, err := j.Decode(bad); !errors.Is(err, strictenc.ErrConfinement) {
		t.Fatalf("empty name: expected ErrConfinement, got %v", err)
	}
}

func TestJSONDocumentShape(t *testing.T) {
	lib := shop()
	j, err := NewJSON(lib, "Item")
	if err != nil {
		t.Fatalf("NewJSON: %v", err)
	}
	if j.ID() != lib.MustID("Item") {
		t.Fatalf("bound to %s", j.ID())
	}
	b, err := j.Encode(item(strictenc.VariantValue("circle", strictenc.F32Value(1.5)), strictenc.None()))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	for _, part := range []string{
		`"color":"blue"`,
		`"shape":{"circle":1.5}`,
		`"note":"none"`,
		`"fresh":true`,
		`"serial":"18446744073709551623"`,
		`"stock":[["north",3],["south",0]]`,
		`"nothing":null`,
	} {
		if !bytes.Contains(b, []byte(part)) {
			t.Fatalf("%s missing %s", b, part)
		}
	}

	j.Indent = "  "
	pretty, err := j.Encode(item(strictenc.EnumValue("none"), strictenc.None()))
	if err != nil || !bytes.Contains(pretty, []byte("\n  ")) {
		t.Fatalf("indent: %v\n%s", err, pretty)
	}
}

func TestJSONDecodeRejects(t *testing.T) {
	lib := shop()
	j, _ := NewJSON(lib, "Item")
	ok, err := j.Encode(item(strictenc.EnumValue("none"), strictenc.None()))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	cases := []struct {
		name string
		doc  []byte
		want error
	}{
		{"trailing", append(append([]byte{}, ok...), []byte(" {}")...), strictenc.ErrTrailingData},
		{"unknown enum", bytes.Replace(ok, []byte(`"blue"`), []byte(`"pink"`), 1), strictenc.ErrTypeMismatch},
		{"missing member", bytes.Replace(ok, []byte(`"fresh":true,`), nil, 1), strictenc.ErrTypeMismatch},
		{"wrong kind", bytes.Replace(ok, []byte(`"id":42`), []byte(`"id":"x"`), 1), strictenc.ErrTypeMismatch},
		{"negative uint", bytes.Replace(ok, []byte(`"id":42`), []byte(`"id":-1`), 1), strictenc.ErrTypeMismatch},
		{"short array", bytes.Replace(ok, []byte(`"digest":"3q2+7w=="`), []byte(`"digest":"3q2+"`), 1), strictenc.ErrConfinement},
	}
	for _, tc := range cases {
		if bytes.Equal(tc.doc, ok) {
			t.Fatalf("%s: fixture did not change the document: %s", tc.name, ok)
		}
		if _, err := j.Decode(tc.doc); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
	if _, err := j.Decode([]byte(`{`)); err == nil {
		t.Fatalf("malformed JSON should fail")
	}
}

func TestJSONRejectsNaN(t *testing.T) {
	lib := shop()
	j, _ := NewJSON(lib, "Item")
	v := item(strictenc.EnumValue("none"), strictenc.None())
	v.Items[12] = strictenc.F64Value(math.NaN())
	if _, err := j.Encode(v); err == nil {
		t.Fatalf("NaN has no JSON form")
	}
}

func TestMsgpackTrailingData(t *testing.T) {
	lib := shop()
	m, _ := NewMsgpack(lib, "Item")
	b, err := m.Encode(item(strictenc.EnumValue("none"), strictenc.None()))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := m.Decode(append(b, 0xC0)); !errors.Is(err, strictenc.ErrTrailingData) {
		t.Fatalf("expected ErrTrailingData, got %v", err)
	}
}

func TestCBORDeterministic(t *testing.T) {
	lib := shop()
	c1, _ := NewCBOR(lib, "Item")
	c2, _ := NewCBOR(lib, "Item")
	v := item(strictenc.VariantValue("circle", strictenc.F32Value(1.5)), strictenc.None())
	a, err := c1.Encode(v)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	b, err := c2.Encode(v)
	if err != nil || !bytes.Equal(a, b) {
		t.Fatalf("CBOR output differs between codecs: %v", err)
	}
	if _, err := c1.Decode(a[:len(a)-1]); err == nil {
		t.Fatalf("truncated CBOR should fail")
	}
}

func TestProtoLargeIntegersAsStrings(t *testing.T) {
	lib := strictenc.NewLibrary("n").MustDeclare("Big", strictenc.Struct(
		strictenc.F("small", strictenc.Prim(strictenc.U64)),
		strictenc.F("large", strictenc.Prim(strictenc.U64)),
		strictenc.F("neg", strictenc.Prim(strictenc.I64)),
	))
	p, err := NewProto(lib, "Big")
	if err != nil {
		t.Fatalf("NewProto: %v", err)
	}
	v := strictenc.RecordValue(
		strictenc.UintValue(7),
		strictenc.UintValue(1<<60),
		strictenc.IntValue(math.MinInt64),
	)
	m, err := p.Message(v)
	if err != nil {
		t.Fatalf("Message: %v", err)
	}
	fields := m.GetStructValue().GetFields()
	if fields["small"].GetNumberValue() != 7 {
		t.Fatalf("small = %v", fields["small"])
	}
	if fields["large"].GetStringValue() != "1152921504606846976" {
		t.Fatalf("large = %v", fields["large"])
	}
	if fields["neg"].GetStringValue() != "-9223372036854775808" {
		t.Fatalf("neg = %v", fields["neg"])
	}
	back, err := p.FromMessage(m)
	if err != nil || !back.Equal(v) {
		t.Fatalf("FromMessage: %s %v", back, err)
	}
	if _, err := p.Decode([]byte{0xFF}); err == nil {
		t.Fatalf("garbage should not decode")
	}
}

func TestLimit(t *testing.T) {
	lib := shop()
	j, _ := NewJSON(lib, "Item")
	v := item(strictenc.EnumValue("none"), strictenc.None())
	b, err := j.Encode(v)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	lim := Limit[strictenc.Value]{Inner: j, MaxDecode: len(b) - 1}
	if _, err := lim.Decode(b); !errors.Is(err, strictenc.ErrReadLimit) {
		t.Fatalf("expected ErrReadLimit, got %v", err)
	}
	lim.MaxDecode = len(b)
	if back, err := lim.Decode(b); err != nil || !back.Equal(v) {
		t.Fatalf("Decode at the limit: %v", err)
	}
	lim.MaxDecode = 0
	if _, err := lim.Decode(b); err != nil {
		t.Fatalf("disabled limit: %v", err)
	}
	if out, err := lim.Encode(v); err != nil || !bytes.Equal(out, b) {
		t.Fatalf("Encode is forwarded: %v", err)
	}

	// The strict codec satisfies the same interface.
	sc, err := strictenc.ValueCodec(lib, "Item", strictenc.Options{})
	if err != nil {
		t.Fatalf("ValueCodec: %v", err)
	}
	var _ Codec[strictenc.Value] = sc
	sl := Limit[strictenc.Value]{Inner: sc, MaxDecode: 4}
	if _, err := sl.Decode(strict(t, lib, v)); !errors.Is(err, strictenc.ErrReadLimit) {
		t.Fatalf("strict behind limit: %v", err)
	}
}

func TestBindRejects(t *testing.T) {
	if _, err := NewJSON(nil, "Item"); err == nil {
		t.Fatalf("nil library should fail")
	}
	if _, err := NewCBOR(shop(), "Nope"); !errors.Is(err, strictenc.ErrInvalidType) {
		t.Fatalf("unknown name: %v", err)
	}
}
