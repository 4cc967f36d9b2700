package codec

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"

	"github.com/x448/float16"

	"github.com/unkn0wn-root/strictenc"
)

// schema binds an adapter to one declared type. Values are rendered to a
// plain tree of nil, bool, numbers, strings, []byte, []any and
// map[string]any, which every general-purpose format can carry, and rebuilt
// from such a tree with the description as the guide.
//
// Tree layout:
//
//	unit            nil
//	integers        number (128-bit: decimal string)
//	text            string
//	bytes           []byte
//	list/set/array  [elem, ...]
//	map             [[key, value], ...]
//	tuple           [field, ...]
//	struct          {"field": value, ...}
//	enum            "variant" (Bool: true/false)
//	union           "variant" without payload, {"variant": payload} with one
type schema struct {
	lib  *strictenc.Library
	name string
	root *strictenc.Ty
	id   strictenc.TypeID
}

func bind(lib *strictenc.Library, name string) (schema, error) {
	if lib == nil {
		return schema{}, fmt.Errorf("codec: library is required")
	}
	id, err := lib.ID(name)
	if err != nil {
		return schema{}, err
	}
	return schema{lib: lib, name: name, root: strictenc.Ref(name), id: id}, nil
}

// ID is the identifier of the bound type.
func (s schema) ID() strictenc.TypeID { return s.id }

// check runs the strict encoder over v without keeping the bytes, so a
// document that parsed but breaks a bound or tag is still rejected.
func (s schema) check(v strictenc.Value) error {
	return strictenc.EncodeValue(strictenc.NewCounter(0), s.root, v, s.lib)
}

func (s schema) resolve(t *strictenc.Ty) (*strictenc.Ty, error) {
	for t.Class == strictenc.ClassRef {
		next, ok := s.lib.Resolve(t.Name)
		if !ok {
			return nil, &strictenc.MismatchError{Want: t.Name, Got: "unresolved reference"}
		}
		t = next
	}
	return t, nil
}

func mismatch(path string, t *strictenc.Ty, got any) error {
	desc := fmt.Sprintf("%T", got)
	if k, ok := got.(strictenc.Kind); ok {
		desc = k.String()
	}
	return &strictenc.MismatchError{Path: path, Want: t.String(), Got: desc}
}

func sub(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func at(path string, i int) string { return path + "[" + strconv.Itoa(i) + "]" }

func isByte(t *strictenc.Ty) bool {
	return t.Class == strictenc.ClassPrimitive && t.Prim == strictenc.Byte
}

func isBool(t *strictenc.Ty) bool {
	return t.Class == strictenc.ClassEnum && len(t.Variants) == 2 &&
		t.Variants[0].Name == "false" && t.Variants[0].Tag == 0 &&
		t.Variants[1].Name == "true" && t.Variants[1].Tag == 1
}

func findVariant(t *strictenc.Ty, v strictenc.Value) (strictenc.Variant, bool) {
	for _, vr := range t.Variants {
		if (v.Variant != "" && vr.Name == v.Variant) || (v.Variant == "" && vr.Tag == v.Tag) {
			return vr, true
		}
	}
	return strictenc.Variant{}, false
}

func toTree(s schema, t *strictenc.Ty, v strictenc.Value, path string) (any, error) {
	t, err := s.resolve(t)
	if err != nil {
		return nil, err
	}
	switch t.Class {
	case strictenc.ClassPrimitive:
		return primToTree(t, v, path)

	case strictenc.ClassUnicode, strictenc.ClassRText:
		if v.Kind != strictenc.KindText {
			return nil, mismatch(path, t, v.Kind)
		}
		return v.Text, nil

	case strictenc.ClassArray, strictenc.ClassList, strictenc.ClassSet:
		if isByte(t.Elem) && v.Kind == strictenc.KindBytes {
			return v.Bytes, nil
		}
		if v.Kind != strictenc.KindList {
			return nil, mismatch(path, t, v.Kind)
		}
		out := make([]any, len(v.Items))
		for i, it := range v.Items {
			if out[i], err = toTree(s, t.Elem, it, at(path, i)); err != nil {
				return nil, err
			}
		}
		return out, nil

	case strictenc.ClassMap:
		if v.Kind != strictenc.KindMap {
			return nil, mismatch(path, t, v.Kind)
		}
		out := make([]any, len(v.Entries))
		for i, e := range v.Entries {
			k, err := toTree(s, t.Key, e.Key, at(path, i)+"{key}")
			if err != nil {
				return nil, err
			}
			val, err := toTree(s, t.Elem, e.Value, at(path, i))
			if err != nil {
				return nil, err
			}
			out[i] = []any{k, val}
		}
		return out, nil

	case strictenc.ClassTuple, strictenc.ClassStruct:
		if v.Kind != strictenc.KindRecord || len(v.Items) != len(t.Fields) {
			return nil, mismatch(path, t, v.Kind)
		}
		if t.Class == strictenc.ClassTuple {
			out := make([]any, len(t.Fields))
			for i, f := range t.Fields {
				if out[i], err = toTree(s, f.Ty, v.Items[i], at(path, i)); err != nil {
					return nil, err
				}
			}
			return out, nil
		}
		out := make(map[string]any, len(t.Fields))
		for i, f := range t.Fields {
			fv, err := toTree(s, f.Ty, v.Items[i], sub(path, f.Name))
			if err != nil {
				return nil, err
			}
			out[f.Name] = fv
		}
		return out, nil

	case strictenc.ClassEnum:
		if isBool(t) && v.Kind == strictenc.KindBool {
			return v.Bool, nil
		}
		vr, ok := findVariant(t, v)
		if v.Kind != strictenc.KindVariant || !ok {
			return nil, mismatch(path, t, v.Kind)
		}
		return vr.Name, nil

	case strictenc.ClassUnion:
		vr, ok := findVariant(t, v)
		if v.Kind != strictenc.KindVariant || !ok {
			return nil, mismatch(path, t, v.Kind)
		}
		if vr.Ty == nil {
			return vr.Name, nil
		}
		if v.Payload == nil {
			return nil, &strictenc.MismatchError{Path: path, Want: vr.Name + " payload"}
		}
		pv, err := toTree(s, vr.Ty, *v.Payload, sub(path, vr.Name))
		if err != nil {
			return nil, err
		}
		return map[string]any{vr.Name: pv}, nil
	}
	return nil, mismatch(path, t, v.Kind)
}

func primToTree(t *strictenc.Ty, v strictenc.Value, path string) (any, error) {
	switch {
	case t.Prim == strictenc.Unit:
		return nil, nil
	case v.Kind == strictenc.KindUint:
		return v.Uint, nil
	case v.Kind == strictenc.KindInt:
		return v.Int, nil
	case v.Kind == strictenc.KindU128:
		return v.U128.String(), nil
	case v.Kind == strictenc.KindI128:
		return v.I128.String(), nil
	case v.Kind == strictenc.KindF16:
		return v.F16.Float32(), nil
	case v.Kind == strictenc.KindF32:
		return v.F32, nil
	case v.Kind == strictenc.KindF64:
		return v.F64, nil
	}
	return nil, mismatch(path, t, v.Kind)
}

func fromTree(s schema, t *strictenc.Ty, x any, path string) (strictenc.Value, error) {
	t, err := s.resolve(t)
	if err != nil {
		return strictenc.Value{}, err
	}
	switch t.Class {
	case strictenc.ClassPrimitive:
		return primFromTree(t, x, path)

	case strictenc.ClassUnicode, strictenc.ClassRText:
		str, ok := x.(string)
		if !ok {
			return strictenc.Value{}, mismatch(path, t, x)
		}
		return strictenc.TextValue(str), nil

	case strictenc.ClassArray, strictenc.ClassList, strictenc.ClassSet:
		if isByte(t.Elem) && t.Class != strictenc.ClassSet {
			b, err := asBytes(x)
			if err != nil {
				return strictenc.Value{}, &strictenc.MismatchError{Path: path, Want: t.String(), Got: err.Error()}
			}
			return strictenc.BytesValue(b), nil
		}
		arr, ok := x.([]any)
		if !ok {
			return strictenc.Value{}, mismatch(path, t, x)
		}
		items := make([]strictenc.Value, len(arr))
		for i, el := range arr {
			if items[i], err = fromTree(s, t.Elem, el, at(path, i)); err != nil {
				return strictenc.Value{}, err
			}
		}
		return strictenc.ListValue(items...), nil

	case strictenc.ClassMap:
		arr, ok := x.([]any)
		if !ok {
			return strictenc.Value{}, mismatch(path, t, x)
		}
		entries := make([]strictenc.Entry[strictenc.Value, strictenc.Value], len(arr))
		for i, el := range arr {
			pair, ok := el.([]any)
			if !ok || len(pair) != 2 {
				return strictenc.Value{}, &strictenc.MismatchError{Path: at(path, i), Want: "[key, value]", Got: fmt.Sprintf("%T", el)}
			}
			k, err := fromTree(s, t.Key, pair[0], at(path, i)+"{key}")
			if err != nil {
				return strictenc.Value{}, err
			}
			val, err := fromTree(s, t.Elem, pair[1], at(path, i))
			if err != nil {
				return strictenc.Value{}, err
			}
			entries[i] = strictenc.Pair(k, val)
		}
		return strictenc.MapValue(entries...), nil

	case strictenc.ClassTuple:
		arr, ok := x.([]any)
		if !ok || len(arr) != len(t.Fields) {
			return strictenc.Value{}, mismatch(path, t, x)
		}
		items := make([]strictenc.Value, len(arr))
		for i, f := range t.Fields {
			if items[i], err = fromTree(s, f.Ty, arr[i], at(path, i)); err != nil {
				return strictenc.Value{}, err
			}
		}
		return strictenc.RecordValue(items...), nil

	case strictenc.ClassStruct:
		obj, ok := asObject(x)
		if !ok {
			return strictenc.Value{}, mismatch(path, t, x)
		}
		if len(obj) != len(t.Fields) {
			return strictenc.Value{}, &strictenc.MismatchError{Path: path, Want: t.String(), Got: fmt.Sprintf("object with %d members", len(obj))}
		}
		items := make([]strictenc.Value, len(t.Fields))
		for i, f := range t.Fields {
			fx, present := obj[f.Name]
			if !present {
				return strictenc.Value{}, &strictenc.MismatchError{Path: sub(path, f.Name), Want: f.Ty.String(), Got: "missing"}
			}
			if items[i], err = fromTree(s, f.Ty, fx, sub(path, f.Name)); err != nil {
				return strictenc.Value{}, err
			}
		}
		return strictenc.RecordValue(items...), nil

	case strictenc.ClassEnum:
		if b, ok := x.(bool); ok && isBool(t) {
			return strictenc.BoolValue(b), nil
		}
		name, ok := x.(string)
		if !ok {
			return strictenc.Value{}, mismatch(path, t, x)
		}
		for _, vr := range t.Variants {
			if vr.Name == name {
				return strictenc.Value{Kind: strictenc.KindVariant, Variant: vr.Name, Tag: vr.Tag}, nil
			}
		}
		return strictenc.Value{}, &strictenc.MismatchError{Path: path, Want: t.String(), Got: strconv.Quote(name)}

	case strictenc.ClassUnion:
		var (
			name    string
			payload any
			hasPay  bool
		)
		if str, ok := x.(string); ok {
			name = str
		} else if obj, ok := asObject(x); ok && len(obj) == 1 {
			for k, v := range obj {
				name, payload, hasPay = k, v, true
			}
		} else {
			return strictenc.Value{}, mismatch(path, t, x)
		}
		for _, vr := range t.Variants {
			if vr.Name != name {
				continue
			}
			out := strictenc.Value{Kind: strictenc.KindVariant, Variant: vr.Name, Tag: vr.Tag}
			pv := strictenc.UnitValue()
			if vr.Ty != nil {
				if !hasPay {
					return strictenc.Value{}, &strictenc.MismatchError{Path: sub(path, name), Want: vr.Ty.String(), Got: "missing"}
				}
				if pv, err = fromTree(s, vr.Ty, payload, sub(path, name)); err != nil {
					return strictenc.Value{}, err
				}
			} else if hasPay && payload != nil {
				return strictenc.Value{}, &strictenc.MismatchError{Path: sub(path, name), Want: "no payload", Got: fmt.Sprintf("%T", payload)}
			}
			out.Payload = &pv
			return out, nil
		}
		return strictenc.Value{}, &strictenc.MismatchError{Path: path, Want: t.String(), Got: strconv.Quote(name)}
	}
	return strictenc.Value{}, mismatch(path, t, x)
}

func primFromTree(t *strictenc.Ty, x any, path string) (strictenc.Value, error) {
	bad := func() (strictenc.Value, error) {
		return strictenc.Value{}, &strictenc.MismatchError{Path: path, Want: t.Prim.String(), Got: fmt.Sprintf("%v", x)}
	}
	p := t.Prim
	switch {
	case p == strictenc.Unit:
		if x != nil {
			return bad()
		}
		return strictenc.UnitValue(), nil
	case p == strictenc.U128:
		b, ok := asBig(x)
		if !ok {
			return bad()
		}
		u, ok := strictenc.Uint128FromBig(b)
		if !ok {
			return bad()
		}
		return strictenc.U128Value(u), nil
	case p == strictenc.I128:
		b, ok := asBig(x)
		if !ok {
			return bad()
		}
		i, ok := strictenc.Int128FromBig(b)
		if !ok {
			return bad()
		}
		return strictenc.I128Value(i), nil
	case p.Float():
		f, ok := asFloat(x)
		if !ok {
			return bad()
		}
		switch p {
		case strictenc.F16:
			return strictenc.F16Value(float16.Fromfloat32(float32(f))), nil
		case strictenc.F32:
			return strictenc.F32Value(float32(f)), nil
		}
		return strictenc.F64Value(f), nil
	case p.Signed():
		i, ok := asInt(x)
		if !ok {
			return bad()
		}
		return strictenc.IntValue(i), nil
	}
	u, ok := asUint(x)
	if !ok {
		return bad()
	}
	return strictenc.UintValue(u), nil
}

// asObject accepts the map shapes the decoders produce for objects.
func asObject(x any) (map[string]any, bool) {
	switch m := x.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, v := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = v
		}
		return out, true
	}
	return nil, false
}

// asBytes accepts native byte strings and base64 text, which is how JSON
// and structpb carry bytes.
func asBytes(x any) ([]byte, error) {
	switch b := x.(type) {
	case []byte:
		return b, nil
	case string:
		return base64.StdEncoding.DecodeString(b)
	}
	return nil, fmt.Errorf("%T is not bytes", x)
}

func asBig(x any) (*big.Int, bool) {
	switch n := x.(type) {
	case string:
		return new(big.Int).SetString(n, 10)
	case json.Number:
		return new(big.Int).SetString(n.String(), 10)
	}
	if u, ok := asUint(x); ok {
		return new(big.Int).SetUint64(u), true
	}
	if i, ok := asInt(x); ok {
		return big.NewInt(i), true
	}
	return nil, false
}

func asUint(x any) (uint64, bool) {
	switch n := x.(type) {
	case uint64:
		return n, true
	case uint32:
		return uint64(n), true
	case uint16:
		return uint64(n), true
	case uint8:
		return uint64(n), true
	case uint:
		return uint64(n), true
	case int64, int32, int16, int8, int:
		i, _ := asInt(n)
		return uint64(i), i >= 0
	case float64:
		if n < 0 || n != math.Trunc(n) || n >= math.MaxUint64 {
			return 0, false
		}
		return uint64(n), true
	case json.Number:
		u, err := strconv.ParseUint(n.String(), 10, 64)
		return u, err == nil
	case string:
		u, err := strconv.ParseUint(n, 10, 64)
		return u, err == nil
	}
	return 0, false
}

func asInt(x any) (int64, bool) {
	switch n := x.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int16:
		return int64(n), true
	case int8:
		return int64(n), true
	case int:
		return int64(n), true
	case uint64:
		return int64(n), n <= math.MaxInt64
	case uint32, uint16, uint8, uint:
		u, _ := asUint(n)
		return int64(u), true
	case float64:
		if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := strconv.ParseInt(n.String(), 10, 64)
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}

func asFloat(x any) (float64, bool) {
	switch n := x.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	if i, ok := asInt(x); ok {
		return float64(i), true
	}
	if u, ok := asUint(x); ok {
		return float64(u), true
	}
	return 0, false
}
