// Package decl loads type declarations written in YAML into a validated
// library.
//
// A document names the library and lists its types in order:
//
//	library: shop
//	types:
//	  Color:
//	    enum: {red: 0, green: 1, blue: 2}
//	  Tree:
//	    struct:
//	      label: {text: 255}
//	      children: {list: {of: Tree, max: 255}}
//	  Shape:
//	    union:
//	      empty: 0
//	      circle: {tag: 1, type: f32}
//	      poly: {tag: 2, type: {list: {of: {tuple: [f32, f32]}, min: 3, max: 255}}}
//
// A type is either a scalar (a primitive such as u8, i64, f16, byte, unit,
// bool, or the name of another declared type) or a mapping with exactly one
// of the keys text, rtext, bytes, list, set, map, array, option, tuple,
// struct, enum, union or ref. Bounds are a bare max or a {min, max} mapping.
// Restricted text names its alphabet, and optionally a different one for
// the first character:
//
//	ticker: {rtext: {charset: alpha_caps, min: 1, max: 8}}
//	handle: {rtext: {first: alpha_small, charset: alpha_num_lodash, max: 32}} Mapping
// order is significant: struct fields and declarations keep the order they
// are written in.
package decl

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/unkn0wn-root/strictenc"
	"gopkg.in/yaml.v3"
)

// Error locates a problem in the source document. It matches
// strictenc.ErrInvalidType with errors.Is.
type Error struct {
	Line, Column int
	Msg          string
}

func (e *Error) Error() string {
	return fmt.Sprintf("decl: line %d col %d: %s", e.Line, e.Column, e.Msg)
}

func (e *Error) Unwrap() error { return strictenc.ErrInvalidType }

func errAt(n *yaml.Node, format string, args ...any) error {
	return &Error{Line: n.Line, Column: n.Column, Msg: fmt.Sprintf(format, args...)}
}

var prims = map[string]strictenc.Primitive{
	"unit": strictenc.Unit, "byte": strictenc.Byte,
	"u8": strictenc.U8, "u16": strictenc.U16, "u24": strictenc.U24, "u32": strictenc.U32,
	"u64": strictenc.U64, "u128": strictenc.U128,
	"i8": strictenc.I8, "i16": strictenc.I16, "i32": strictenc.I32, "i64": strictenc.I64,
	"i128": strictenc.I128,
	"f16": strictenc.F16, "f32": strictenc.F32, "f64": strictenc.F64,
}

// Load reads a whole document from r and parses it.
func Load(r io.Reader) (*strictenc.Library, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decl: read: %w", err)
	}
	return Parse(data)
}

// Parse builds a library from one YAML document. Every declaration is
// checked and the library as a whole is validated before it is returned.
func Parse(data []byte) (*strictenc.Library, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decl: invalid YAML: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 {
		return nil, &Error{Line: 1, Column: 1, Msg: "empty document"}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, errAt(root, "document must be a mapping")
	}

	var name string
	var types *yaml.Node
	for i := 0; i+1 < len(root.Content); i += 2 {
		k, v := root.Content[i], root.Content[i+1]
		switch k.Value {
		case "library":
			if v.Kind != yaml.ScalarNode {
				return nil, errAt(v, "library must be a string")
			}
			name = v.Value
		case "types":
			types = v
		default:
			return nil, errAt(k, "unknown key %q", k.Value)
		}
	}
	if types == nil {
		return nil, errAt(root, "missing types")
	}
	if types.Kind != yaml.MappingNode {
		return nil, errAt(types, "types must be a mapping")
	}

	lib := strictenc.NewLibrary(name)
	for i := 0; i+1 < len(types.Content); i += 2 {
		k, v := types.Content[i], types.Content[i+1]
		ty, err := parseTy(v, 0)
		if err != nil {
			return nil, err
		}
		if err := lib.Declare(k.Value, ty); err != nil {
			return nil, errAt(k, "%v", err)
		}
	}
	if err := lib.Validate(); err != nil {
		return nil, err
	}
	return lib, nil
}

func parseTy(n *yaml.Node, depth int) (*strictenc.Ty, error) {
	if depth > strictenc.MaxDepth {
		return nil, errAt(n, "nested deeper than %d", strictenc.MaxDepth)
	}
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Value == "bool" {
			return strictenc.Bool(), nil
		}
		if p, ok := prims[n.Value]; ok {
			return strictenc.Prim(p), nil
		}
		if !strictenc.ValidIdent(n.Value) {
			return nil, errAt(n, "%q is neither a primitive nor a type name", n.Value)
		}
		return strictenc.Ref(n.Value), nil
	case yaml.MappingNode:
	case yaml.AliasNode:
		return parseTy(n.Alias, depth+1)
	default:
		return nil, errAt(n, "type must be a name or a mapping")
	}
	if len(n.Content) != 2 {
		return nil, errAt(n, "type mapping must have exactly one key")
	}
	k, v := n.Content[0], n.Content[1]
	sub := func(n *yaml.Node) (*strictenc.Ty, error) { return parseTy(n, depth+1) }

	switch k.Value {
	case "ref":
		if v.Kind != yaml.ScalarNode {
			return nil, errAt(v, "ref must name a type")
		}
		return strictenc.Ref(v.Value), nil
	case "text":
		s, err := parseSizing(v)
		if err != nil {
			return nil, err
		}
		return strictenc.Text(s), nil
	case "rtext":
		f, err := fields(v, "charset", "first", "min", "max")
		if err != nil {
			return nil, err
		}
		cs, ok, err := charsetOf(f, "charset")
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errAt(v, "missing charset")
		}
		first, ok, err := charsetOf(f, "first")
		if err != nil {
			return nil, err
		}
		if !ok {
			first = cs
		}
		s, err := sizingOf(v, f)
		if err != nil {
			return nil, err
		}
		return strictenc.RTextFirst(first, cs, s), nil
	case "bytes":
		s, err := parseSizing(v)
		if err != nil {
			return nil, err
		}
		return strictenc.Bytes(s), nil
	case "option":
		t, err := sub(v)
		if err != nil {
			return nil, err
		}
		return strictenc.Option(t), nil
	case "list", "set":
		f, err := fields(v, "of", "min", "max")
		if err != nil {
			return nil, err
		}
		elem, err := required(v, f, "of", sub)
		if err != nil {
			return nil, err
		}
		s, err := sizingOf(v, f)
		if err != nil {
			return nil, err
		}
		if k.Value == "set" {
			return strictenc.Set(elem, s), nil
		}
		return strictenc.List(elem, s), nil
	case "map":
		f, err := fields(v, "key", "value", "min", "max")
		if err != nil {
			return nil, err
		}
		key, err := required(v, f, "key", sub)
		if err != nil {
			return nil, err
		}
		val, err := required(v, f, "value", sub)
		if err != nil {
			return nil, err
		}
		s, err := sizingOf(v, f)
		if err != nil {
			return nil, err
		}
		return strictenc.Map(key, val, s), nil
	case "array":
		f, err := fields(v, "of", "len")
		if err != nil {
			return nil, err
		}
		elem, err := required(v, f, "of", sub)
		if err != nil {
			return nil, err
		}
		ln, ok := f["len"]
		if !ok {
			return nil, errAt(v, "array needs len")
		}
		count, err := uintOf(ln, strictenc.MaxArrayLen)
		if err != nil {
			return nil, err
		}
		return strictenc.Array(elem, uint16(count)), nil
	case "tuple":
		if v.Kind != yaml.SequenceNode {
			return nil, errAt(v, "tuple must be a sequence")
		}
		tys := make([]*strictenc.Ty, 0, len(v.Content))
		for _, e := range v.Content {
			t, err := sub(e)
			if err != nil {
				return nil, err
			}
			tys = append(tys, t)
		}
		return strictenc.Tuple(tys...), nil
	case "struct":
		if v.Kind != yaml.MappingNode {
			return nil, errAt(v, "struct must be a mapping of fields")
		}
		fs := make([]strictenc.Field, 0, len(v.Content)/2)
		for i := 0; i+1 < len(v.Content); i += 2 {
			t, err := sub(v.Content[i+1])
			if err != nil {
				return nil, err
			}
			fs = append(fs, strictenc.F(v.Content[i].Value, t))
		}
		return strictenc.Struct(fs...), nil
	case "enum":
		if v.Kind != yaml.MappingNode {
			return nil, errAt(v, "enum must map names to tags")
		}
		vs := make([]strictenc.Variant, 0, len(v.Content)/2)
		for i := 0; i+1 < len(v.Content); i += 2 {
			tag, err := uintOf(v.Content[i+1], math.MaxUint8)
			if err != nil {
				return nil, err
			}
			vs = append(vs, strictenc.V(v.Content[i].Value, uint8(tag), nil))
		}
		return strictenc.Enum(vs...), nil
	case "union":
		if v.Kind != yaml.MappingNode {
			return nil, errAt(v, "union must map names to variants")
		}
		vs := make([]strictenc.Variant, 0, len(v.Content)/2)
		for i := 0; i+1 < len(v.Content); i += 2 {
			vr, err := parseVariant(v.Content[i].Value, v.Content[i+1], sub)
			if err != nil {
				return nil, err
			}
			vs = append(vs, vr)
		}
		return strictenc.Union(vs...), nil
	}
	return nil, errAt(k, "unknown type form %q", k.Value)
}

// parseVariant accepts a bare tag (unit payload) or {tag, type}.
func parseVariant(name string, n *yaml.Node, sub func(*yaml.Node) (*strictenc.Ty, error)) (strictenc.Variant, error) {
	if n.Kind == yaml.ScalarNode {
		tag, err := uintOf(n, math.MaxUint8)
		if err != nil {
			return strictenc.Variant{}, err
		}
		return strictenc.V(name, uint8(tag), nil), nil
	}
	f, err := fields(n, "tag", "type")
	if err != nil {
		return strictenc.Variant{}, err
	}
	tn, ok := f["tag"]
	if !ok {
		return strictenc.Variant{}, errAt(n, "variant %s needs tag", name)
	}
	tag, err := uintOf(tn, math.MaxUint8)
	if err != nil {
		return strictenc.Variant{}, err
	}
	var ty *strictenc.Ty
	if tn, ok := f["type"]; ok {
		if ty, err = sub(tn); err != nil {
			return strictenc.Variant{}, err
		}
	}
	return strictenc.V(name, uint8(tag), ty), nil
}

func fields(n *yaml.Node, allowed ...string) (map[string]*yaml.Node, error) {
	if n.Kind != yaml.MappingNode {
		return nil, errAt(n, "expected a mapping")
	}
	out := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k := n.Content[i]
		ok := false
		for _, a := range allowed {
			if k.Value == a {
				ok = true
				break
			}
		}
		if !ok {
			return nil, errAt(k, "unexpected key %q", k.Value)
		}
		if _, dup := out[k.Value]; dup {
			return nil, errAt(k, "duplicate key %q", k.Value)
		}
		out[k.Value] = n.Content[i+1]
	}
	return out, nil
}

func required(parent *yaml.Node, f map[string]*yaml.Node, key string, sub func(*yaml.Node) (*strictenc.Ty, error)) (*strictenc.Ty, error) {
	n, ok := f[key]
	if !ok {
		return nil, errAt(parent, "missing %s", key)
	}
	return sub(n)
}

func charsetOf(f map[string]*yaml.Node, key string) (strictenc.Charset, bool, error) {
	n, ok := f[key]
	if !ok {
		return 0, false, nil
	}
	cs, ok := strictenc.ParseCharset(n.Value)
	if n.Kind != yaml.ScalarNode || !ok {
		return 0, false, errAt(n, "unknown charset %q", n.Value)
	}
	return cs, true, nil
}

// parseSizing accepts a bare max or {min, max}.
func parseSizing(n *yaml.Node) (strictenc.Sizing, error) {
	if n.Kind == yaml.ScalarNode {
		hi, err := uintOf(n, math.MaxUint64)
		if err != nil {
			return strictenc.Sizing{}, err
		}
		return strictenc.Sizing{Max: hi}, nil
	}
	f, err := fields(n, "min", "max")
	if err != nil {
		return strictenc.Sizing{}, err
	}
	return sizingOf(n, f)
}

func sizingOf(n *yaml.Node, f map[string]*yaml.Node) (strictenc.Sizing, error) {
	var s strictenc.Sizing
	mx, ok := f["max"]
	if !ok {
		return s, errAt(n, "missing max")
	}
	var err error
	if s.Max, err = uintOf(mx, math.MaxUint64); err != nil {
		return s, err
	}
	if mn, ok := f["min"]; ok {
		if s.Min, err = uintOf(mn, math.MaxUint64); err != nil {
			return s, err
		}
	}
	if _, err := strictenc.NewSizing(s.Min, s.Max); err != nil {
		var de *strictenc.DescError
		if errors.As(err, &de) {
			return s, errAt(n, "%s", de.Reason)
		}
		return s, errAt(n, "%v", err)
	}
	return s, nil
}

func uintOf(n *yaml.Node, max uint64) (uint64, error) {
	if n.Kind != yaml.ScalarNode {
		return 0, errAt(n, "expected an integer")
	}
	v, err := strconv.ParseUint(n.Value, 0, 64)
	if err != nil {
		return 0, errAt(n, "%q is not an unsigned integer", n.Value)
	}
	if v > max {
		return 0, errAt(n, "%d exceeds %d", v, max)
	}
	return v, nil
}
