package strictenc

import (
	"fmt"
	"math"
	"strconv"
)

// MaxDepth bounds how deeply values and descriptions may nest while being
// encoded or decoded, so recursive types fed adversarial input fail with an
// error instead of exhausting the stack.
const MaxDepth = 512

func f32bits(f float32) uint32 { return math.Float32bits(f) }
func f64bits(f float64) uint64 { return math.Float64bits(f) }

// EncodeValue writes v as described by ty. Refs are resolved through res.
// A value whose shape does not fit the description fails with a
// *MismatchError before the offending node writes anything.
//
// Set elements and map entries are written in canonical order whatever
// order v lists them in, so decoding the bytes gives back Canonical(v),
// which is Equal to v only when v was already in that order.
func EncodeValue(w *Writer, ty *Ty, v Value, res Resolver) error {
	c := &valueCodec{res: res}
	return c.encode(w, ty, v, "", 0)
}

// Canonical returns v with every set and map below it in canonical order,
// the form DecodeValue produces. It fails where EncodeValue would.
func Canonical(ty *Ty, v Value, res Resolver) (Value, error) {
	w := NewBufferWriter(0)
	if err := EncodeValue(w, ty, v, res); err != nil {
		return Value{}, err
	}
	return DecodeValue(NewReader(w.Bytes(), 0), ty, res)
}

// DecodeValue reads one value described by ty.
func DecodeValue(r *Reader, ty *Ty, res Resolver) (Value, error) {
	c := &valueCodec{res: res}
	return c.decode(r, ty, "", 0)
}

type valueCodec struct {
	res Resolver
}

func (c *valueCodec) resolve(name, path string) (*Ty, error) {
	if c.res != nil {
		if t, ok := c.res.Resolve(name); ok {
			return t, nil
		}
	}
	return nil, &MismatchError{Path: path, Want: name, Got: "unresolved reference"}
}

func mismatch(path string, t *Ty, v Value) error {
	return &MismatchError{Path: path, Want: t.String(), Got: v.Kind.String()}
}

func field(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func index(path string, i int) string { return path + "[" + strconv.Itoa(i) + "]" }

func isByte(t *Ty) bool { return t.Class == ClassPrimitive && t.Prim == Byte }

func (c *valueCodec) encode(w *Writer, t *Ty, v Value, path string, depth int) error {
	if depth > MaxDepth {
		return fmt.Errorf("%w: nesting deeper than %d at %s", ErrWriteLimit, MaxDepth, path)
	}
	depth++
	switch t.Class {
	case ClassPrimitive:
		return encodePrim(w, t, v, path)

	case ClassUnicode:
		if v.Kind != KindText {
			return mismatch(path, t, v)
		}
		return WriteText(w, v.Text, t.Sizing)

	case ClassRText:
		if v.Kind != KindText {
			return mismatch(path, t, v)
		}
		return WriteRText(w, v.Text, t.First, t.Charset, t.Sizing)

	case ClassArray:
		n := int(t.Len)
		if isByte(t.Elem) && v.Kind == KindBytes {
			if len(v.Bytes) != n {
				return &ConfinementError{Len: uint64(len(v.Bytes)), Min: uint64(n), Max: uint64(n)}
			}
			return w.WriteRaw(v.Bytes)
		}
		if v.Kind != KindList {
			return mismatch(path, t, v)
		}
		i := 0
		return WriteArray(w, v.Items, n, func(w *Writer, it Value) error {
			defer func() { i++ }()
			return c.encode(w, t.Elem, it, index(path, i), depth)
		})

	case ClassList:
		if isByte(t.Elem) && v.Kind == KindBytes {
			return WriteBytes(w, v.Bytes, t.Sizing)
		}
		if v.Kind != KindList {
			return mismatch(path, t, v)
		}
		i := 0
		return WriteList(w, v.Items, t.Sizing, func(w *Writer, it Value) error {
			defer func() { i++ }()
			return c.encode(w, t.Elem, it, index(path, i), depth)
		})

	case ClassSet:
		if v.Kind != KindList {
			return mismatch(path, t, v)
		}
		i := 0
		return WriteSet(w, v.Items, t.Sizing, func(w *Writer, it Value) error {
			defer func() { i++ }()
			return c.encode(w, t.Elem, it, index(path, i), depth)
		})

	case ClassMap:
		if v.Kind != KindMap {
			return mismatch(path, t, v)
		}
		return WriteMap(w, v.Entries, t.Sizing,
			func(w *Writer, k Value) error { return c.encode(w, t.Key, k, path+"{key}", depth) },
			func(w *Writer, e Value) error { return c.encode(w, t.Elem, e, path+"{value}", depth) })

	case ClassTuple, ClassStruct:
		if v.Kind != KindRecord {
			return mismatch(path, t, v)
		}
		if len(v.Items) != len(t.Fields) {
			return &MismatchError{Path: path, Want: t.String(), Got: fmt.Sprintf("record of %d fields", len(v.Items))}
		}
		for i, f := range t.Fields {
			p := index(path, i)
			if f.Name != "" {
				p = field(path, f.Name)
			}
			if err := c.encode(w, f.Ty, v.Items[i], p, depth); err != nil {
				return err
			}
		}
		return nil

	case ClassEnum:
		if t.isBool() && v.Kind == KindBool {
			return w.WriteBool(v.Bool)
		}
		vr, err := c.pick(t, v, path)
		if err != nil {
			return err
		}
		if v.Payload != nil && v.Payload.Kind != KindUnit {
			return &MismatchError{Path: path, Want: "enum variant " + vr.Name, Got: "payload"}
		}
		return WriteTag(w, vr.Tag)

	case ClassUnion:
		vr, err := c.pick(t, v, path)
		if err != nil {
			return err
		}
		if err := WriteTag(w, vr.Tag); err != nil {
			return err
		}
		return c.encode(w, vr.payload(), v.payload(), field(path, vr.Name), depth)

	case ClassRef:
		target, err := c.resolve(t.Name, path)
		if err != nil {
			return err
		}
		return c.encode(w, target, v, path, depth)
	}
	return descErr("", "unknown class %d", uint8(t.Class))
}

// pick finds the declared variant a value selects, by name when it has one
// and by tag otherwise.
func (c *valueCodec) pick(t *Ty, v Value, path string) (Variant, error) {
	if v.Kind != KindVariant {
		return Variant{}, mismatch(path, t, v)
	}
	var (
		vr Variant
		ok bool
	)
	if v.Variant != "" {
		vr, ok = t.variantNamed(v.Variant)
	} else {
		vr, ok = t.variant(v.Tag)
	}
	if !ok {
		return Variant{}, &MismatchError{Path: path, Want: t.String(), Got: "variant " + v.String()}
	}
	return vr, nil
}

func encodePrim(w *Writer, t *Ty, v Value, path string) error {
	switch t.Prim {
	case Unit:
		if v.Kind != KindUnit {
			return mismatch(path, t, v)
		}
		return nil
	case Byte, U8, U16, U24, U32, U64:
		if v.Kind != KindUint {
			return mismatch(path, t, v)
		}
		bits := t.Prim.Size() * 8
		if bits < 64 && v.Uint>>bits != 0 {
			return &MismatchError{Path: path, Want: t.Prim.String(), Got: strconv.FormatUint(v.Uint, 10)}
		}
		switch t.Prim {
		case Byte, U8:
			return w.WriteU8(uint8(v.Uint))
		case U16:
			return w.WriteU16(uint16(v.Uint))
		case U24:
			return w.WriteU24(uint32(v.Uint))
		case U32:
			return w.WriteU32(uint32(v.Uint))
		}
		return w.WriteU64(v.Uint)
	case I8, I16, I32, I64:
		if v.Kind != KindInt {
			return mismatch(path, t, v)
		}
		bits := t.Prim.Size() * 8
		if bits < 64 {
			lo, hi := -int64(1)<<(bits-1), int64(1)<<(bits-1)-1
			if v.Int < lo || v.Int > hi {
				return &MismatchError{Path: path, Want: t.Prim.String(), Got: strconv.FormatInt(v.Int, 10)}
			}
		}
		switch t.Prim {
		case I8:
			return w.WriteI8(int8(v.Int))
		case I16:
			return w.WriteI16(int16(v.Int))
		case I32:
			return w.WriteI32(int32(v.Int))
		}
		return w.WriteI64(v.Int)
	case U128:
		if v.Kind != KindU128 {
			return mismatch(path, t, v)
		}
		return w.WriteU128(v.U128)
	case I128:
		if v.Kind != KindI128 {
			return mismatch(path, t, v)
		}
		return w.WriteI128(v.I128)
	case F16:
		if v.Kind != KindF16 {
			return mismatch(path, t, v)
		}
		return w.WriteF16(v.F16)
	case F32:
		if v.Kind != KindF32 {
			return mismatch(path, t, v)
		}
		return w.WriteF32(v.F32)
	case F64:
		if v.Kind != KindF64 {
			return mismatch(path, t, v)
		}
		return w.WriteF64(v.F64)
	}
	return descErr("", "unknown primitive %#02x", uint8(t.Prim))
}

func (c *valueCodec) decode(r *Reader, t *Ty, path string, depth int) (Value, error) {
	if depth > MaxDepth {
		return Value{}, fmt.Errorf("%w: nesting deeper than %d at %s", ErrReadLimit, MaxDepth, path)
	}
	depth++
	switch t.Class {
	case ClassPrimitive:
		return decodePrim(r, t)

	case ClassUnicode:
		s, err := ReadText(r, t.Sizing)
		if err != nil {
			return Value{}, err
		}
		return TextValue(s), nil

	case ClassRText:
		s, err := ReadRText(r, t.First, t.Charset, t.Sizing)
		if err != nil {
			return Value{}, err
		}
		return TextValue(s), nil

	case ClassArray:
		if isByte(t.Elem) {
			p, err := r.ReadRaw(int(t.Len))
			if err != nil {
				return Value{}, err
			}
			return BytesValue(append([]byte(nil), p...)), nil
		}
		i := 0
		items, err := ReadArray(r, int(t.Len), func(r *Reader) (Value, error) {
			defer func() { i++ }()
			return c.decode(r, t.Elem, index(path, i), depth)
		})
		if err != nil {
			return Value{}, err
		}
		return ListValue(items...), nil

	case ClassList:
		if isByte(t.Elem) {
			b, err := ReadBytes(r, t.Sizing)
			if err != nil {
				return Value{}, err
			}
			return BytesValue(b), nil
		}
		i := 0
		items, err := ReadList(r, t.Sizing, func(r *Reader) (Value, error) {
			defer func() { i++ }()
			return c.decode(r, t.Elem, index(path, i), depth)
		})
		if err != nil {
			return Value{}, err
		}
		return ListValue(items...), nil

	case ClassSet:
		i := 0
		items, err := ReadSet(r, t.Sizing, func(r *Reader) (Value, error) {
			defer func() { i++ }()
			return c.decode(r, t.Elem, index(path, i), depth)
		})
		if err != nil {
			return Value{}, err
		}
		return ListValue(items...), nil

	case ClassMap:
		entries, err := ReadMap(r, t.Sizing,
			func(r *Reader) (Value, error) { return c.decode(r, t.Key, path+"{key}", depth) },
			func(r *Reader) (Value, error) { return c.decode(r, t.Elem, path+"{value}", depth) })
		if err != nil {
			return Value{}, err
		}
		return MapValue(entries...), nil

	case ClassTuple, ClassStruct:
		items := make([]Value, len(t.Fields))
		for i, f := range t.Fields {
			p := index(path, i)
			if f.Name != "" {
				p = field(path, f.Name)
			}
			fv, err := c.decode(r, f.Ty, p, depth)
			if err != nil {
				return Value{}, err
			}
			items[i] = fv
		}
		return RecordValue(items...), nil

	case ClassEnum:
		if t.isBool() {
			b, err := r.ReadBool()
			if err != nil {
				return Value{}, err
			}
			return BoolValue(b), nil
		}
		vr, err := c.readVariant(r, t, path)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindVariant, Variant: vr.Name, Tag: vr.Tag}, nil

	case ClassUnion:
		vr, err := c.readVariant(r, t, path)
		if err != nil {
			return Value{}, err
		}
		pv, err := c.decode(r, vr.payload(), field(path, vr.Name), depth)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindVariant, Variant: vr.Name, Tag: vr.Tag, Payload: &pv}, nil

	case ClassRef:
		target, err := c.resolve(t.Name, path)
		if err != nil {
			return Value{}, err
		}
		return c.decode(r, target, path, depth)
	}
	return Value{}, descErr("", "unknown class %d", uint8(t.Class))
}

func (c *valueCodec) readVariant(r *Reader, t *Ty, path string) (Variant, error) {
	tag, err := r.ReadU8()
	if err != nil {
		return Variant{}, err
	}
	vr, ok := t.variant(tag)
	if !ok {
		name := path
		if name == "" {
			name = t.String()
		}
		return Variant{}, &VariantError{Type: name, Tag: tag}
	}
	return vr, nil
}

func decodePrim(r *Reader, t *Ty) (Value, error) {
	var (
		v   Value
		err error
	)
	switch t.Prim {
	case Unit:
		return UnitValue(), nil
	case Byte, U8:
		var x uint8
		x, err = r.ReadU8()
		v = UintValue(uint64(x))
	case U16:
		var x uint16
		x, err = r.ReadU16()
		v = UintValue(uint64(x))
	case U24:
		var x uint32
		x, err = r.ReadU24()
		v = UintValue(uint64(x))
	case U32:
		var x uint32
		x, err = r.ReadU32()
		v = UintValue(uint64(x))
	case U64:
		var x uint64
		x, err = r.ReadU64()
		v = UintValue(x)
	case U128:
		var x Uint128
		x, err = r.ReadU128()
		v = U128Value(x)
	case I8:
		var x int8
		x, err = r.ReadI8()
		v = IntValue(int64(x))
	case I16:
		var x int16
		x, err = r.ReadI16()
		v = IntValue(int64(x))
	case I32:
		var x int32
		x, err = r.ReadI32()
		v = IntValue(int64(x))
	case I64:
		var x int64
		x, err = r.ReadI64()
		v = IntValue(x)
	case I128:
		var x Int128
		x, err = r.ReadI128()
		v = I128Value(x)
	case F16:
		v.Kind = KindF16
		v.F16, err = r.ReadF16()
	case F32:
		v.Kind = KindF32
		v.F32, err = r.ReadF32()
	case F64:
		v.Kind = KindF64
		v.F64, err = r.ReadF64()
	default:
		return Value{}, descErr("", "unknown primitive %#02x", uint8(t.Prim))
	}
	if err != nil {
		return Value{}, err
	}
	return v, nil
}
