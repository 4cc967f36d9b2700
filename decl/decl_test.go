package decl

import (
	"errors"
	"strings"
	"testing"

	se "github.com/unkn0wn-root/strictenc"
)

const shop = `
library: shop
types:
  Color:
    enum: {red: 0, green: 1, blue: 2}
  Tree:
    struct:
      label: {text: 255}
      children: {list: {of: Tree, max: 255}}
  Shape:
    union:
      empty: 0
      circle: {tag: 1, type: f32}
      poly: {tag: 2, type: {list: {of: {tuple: [f32, f32]}, min: 3, max: 255}}}
  Inventory:
    struct:
      counts: {map: {key: {text: {min: 1, max: 64}}, value: u32, max: 65535}}
      tags: {set: {of: u16, max: 16}}
      digest: {array: {of: byte, len: 32}}
      note: {option: {text: 1024}}
      blob: {bytes: {min: 0, max: 4294967295}}
      flag: bool
      color: {ref: Color}
`

func TestParseMatchesProgrammaticLibrary(t *testing.T) {
	lib, err := Parse([]byte(shop))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if lib.Name() != "shop" {
		t.Fatalf("library name %q", lib.Name())
	}
	if got := strings.Join(lib.Names(), ","); got != "Color,Tree,Shape,Inventory" {
		t.Fatalf("declaration order %s", got)
	}

	want := se.NewLibrary("shop").
		MustDeclare("Color", se.Enum(se.V("red", 0, nil), se.V("green", 1, nil), se.V("blue", 2, nil))).
		MustDeclare("Tree", se.Struct(
			se.F("label", se.Text(se.SizingU8)),
			se.F("children", se.List(se.Ref("Tree"), se.SizingU8)),
		)).
		MustDeclare("Shape", se.Union(
			se.V("empty", 0, nil),
			se.V("circle", 1, se.Prim(se.F32)),
			se.V("poly", 2, se.List(se.Tuple(se.Prim(se.F32), se.Prim(se.F32)), se.MustSizing(3, 255))),
		)).
		MustDeclare("Inventory", se.Struct(
			se.F("counts", se.Map(se.Text(se.MustSizing(1, 64)), se.Prim(se.U32), se.SizingU16)),
			se.F("tags", se.Set(se.Prim(se.U16), se.MustSizing(0, 16))),
			se.F("digest", se.Array(se.Prim(se.Byte), 32)),
			se.F("note", se.Option(se.Text(se.MustSizing(0, 1024)))),
			se.F("blob", se.Bytes(se.SizingU32)),
			se.F("flag", se.Bool()),
			se.F("color", se.Ref("Color")),
		))

	for _, n := range want.Names() {
		if lib.MustID(n) != want.MustID(n) {
			t.Fatalf("%s: parsed id %s, built id %s", n, lib.MustID(n), want.MustID(n))
		}
	}
}

func TestParseRText(t *testing.T) {
	lib, err := Parse([]byte(`
library: ids
types:
  Ticker: {rtext: {charset: alpha_caps, min: 1, max: 8}}
  Handle: {rtext: {first: alpha_small, charset: alpha_num_lodash, max: 32}}
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := se.NewLibrary("ids").
		MustDeclare("Ticker", se.RText(se.AlphaCaps, se.MustSizing(1, 8))).
		MustDeclare("Handle", se.RTextFirst(se.AlphaSmall, se.AlphaNumLodash, se.MustSizing(0, 32)))
	for _, n := range want.Names() {
		if lib.MustID(n) != want.MustID(n) {
			t.Fatalf("%s: parsed id %s, built id %s", n, lib.MustID(n), want.MustID(n))
		}
	}
}

func TestLoadReader(t *testing.T) {
	lib, err := Load(strings.NewReader("library: x\ntypes:\n  A: u8\n  B: {tuple: [A, i128]}\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := lib.Resolve("B"); !ok {
		t.Fatalf("B not declared")
	}
}

func TestFieldOrderMatters(t *testing.T) {
	a, err := Parse([]byte("types:\n  P: {struct: {x: u8, y: u16}}\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	b, err := Parse([]byte("types:\n  P: {struct: {y: u16, x: u8}}\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if a.MustID("P") == b.MustID("P") {
		t.Fatalf("field order should change the identifier")
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name, doc, want string
	}{
		{"unknown form", "types:\n  A: {blob: 3}\n", "unknown type form"},
		{"two keys", "types:\n  A: {text: 3, bytes: 3}\n", "exactly one key"},
		{"missing max", "types:\n  A: {list: {of: u8}}\n", "missing max"},
		{"min over max", "types:\n  A: {text: {min: 5, max: 2}}\n", "exceeds"},
		{"tag overflow", "types:\n  A: {enum: {a: 256}}\n", "exceeds"},
		{"unexpected key", "types:\n  A: {list: {of: u8, max: 3, len: 2}}\n", "unexpected key"},
		{"bad name", "types:\n  A: {list: {of: \"not a name\", max: 3}}\n", "neither a primitive"},
		{"no types", "library: x\n", "missing types"},
		{"array needs len", "types:\n  A: {array: {of: u8}}\n", "needs len"},
		{"unknown charset", "types:\n  A: {rtext: {charset: emoji, max: 8}}\n", "unknown charset"},
		{"rtext needs charset", "types:\n  A: {rtext: {first: alpha, max: 8}}\n", "missing charset"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !errors.Is(err, se.ErrInvalidType) {
				t.Fatalf("expected ErrInvalidType, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestParseRejectsUnresolvedAndUninhabited(t *testing.T) {
	if _, err := Parse([]byte("types:\n  A: {list: {of: Missing, max: 3}}\n")); !errors.Is(err, se.ErrInvalidType) {
		t.Fatalf("unresolved ref: %v", err)
	}
	if _, err := Parse([]byte("types:\n  A: {struct: {self: A}}\n")); !errors.Is(err, se.ErrInvalidType) {
		t.Fatalf("uninhabited: %v", err)
	}
}

func TestParseBadTypeNameLocated(t *testing.T) {
	_, err := Parse([]byte("types:\n  A: u8\n  9bad: u16\n"))
	var de *Error
	if !errors.As(err, &de) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if de.Line != 3 {
		t.Fatalf("line %d, want 3", de.Line)
	}
}

func TestParseInvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("types: [unclosed")); err == nil {
		t.Fatalf("expected YAML error")
	}
}
