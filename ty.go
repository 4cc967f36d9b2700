package strictenc

import (
	"fmt"
	"strings"
)

// Class is the kind of a description node. The numeric values are part of
// the type identifier and of serialized descriptions.
type Class uint8

const (
	ClassPrimitive Class = 0
	ClassUnicode   Class = 1
	ClassEnum      Class = 2
	ClassUnion     Class = 3
	ClassTuple     Class = 4
	ClassStruct    Class = 5
	ClassArray     Class = 6
	ClassList      Class = 7
	ClassSet       Class = 8
	ClassMap       Class = 9
	ClassRef       Class = 10
	ClassRText     Class = 11
)

func (c Class) String() string {
	switch c {
	case ClassPrimitive:
		return "primitive"
	case ClassUnicode:
		return "unicode"
	case ClassEnum:
		return "enum"
	case ClassUnion:
		return "union"
	case ClassTuple:
		return "tuple"
	case ClassStruct:
		return "struct"
	case ClassArray:
		return "array"
	case ClassList:
		return "list"
	case ClassSet:
		return "set"
	case ClassMap:
		return "map"
	case ClassRef:
		return "ref"
	case ClassRText:
		return "rtext"
	}
	return fmt.Sprintf("class(%d)", uint8(c))
}

// Structural limits of a description.
const (
	MaxFields   = 255
	MaxVariants = 256
	MaxArrayLen = 0xFFFF
	MaxIdentLen = 100
)

// Ty is a structural type description: the static field and variant tables
// a code generator (or a YAML declaration) hands to the codec. Which fields
// are meaningful depends on Class.
type Ty struct {
	Class Class

	Prim     Primitive // ClassPrimitive
	Sizing   Sizing    // ClassUnicode, ClassRText, ClassList, ClassSet, ClassMap
	First    Charset   // ClassRText: first character
	Charset  Charset   // ClassRText: every other character
	Len      uint16    // ClassArray
	Key      *Ty       // ClassMap
	Elem     *Ty       // ClassArray, ClassList, ClassSet, ClassMap
	Fields   []Field   // ClassTuple (unnamed), ClassStruct
	Variants []Variant // ClassEnum, ClassUnion
	Name     string    // ClassRef: a type declared in the resolving library
}

// Field is one member of a product type. Tuple fields have no name.
type Field struct {
	Name string
	Ty   *Ty
}

// Variant is one alternative of a sum type. Enum variants carry no payload.
type Variant struct {
	Name string
	Tag  uint8
	Ty   *Ty
}

func Prim(p Primitive) *Ty { return &Ty{Class: ClassPrimitive, Prim: p} }

// Text is UTF-8 text whose byte length lies in s.
func Text(s Sizing) *Ty { return &Ty{Class: ClassUnicode, Sizing: s} }

// RText is ASCII text drawn from cs whose length lies in s.
func RText(cs Charset, s Sizing) *Ty { return RTextFirst(cs, cs, s) }

// RTextFirst is RText with a separate charset for the first character, as
// in identifiers that start with a letter.
func RTextFirst(first, rest Charset, s Sizing) *Ty {
	return &Ty{Class: ClassRText, First: first, Charset: rest, Sizing: s}
}

// Bytes is a list of raw bytes.
func Bytes(s Sizing) *Ty { return List(Prim(Byte), s) }

func Array(elem *Ty, n uint16) *Ty { return &Ty{Class: ClassArray, Elem: elem, Len: n} }

func List(elem *Ty, s Sizing) *Ty { return &Ty{Class: ClassList, Elem: elem, Sizing: s} }
func Set(elem *Ty, s Sizing) *Ty  { return &Ty{Class: ClassSet, Elem: elem, Sizing: s} }

func Map(key, value *Ty, s Sizing) *Ty {
	return &Ty{Class: ClassMap, Key: key, Elem: value, Sizing: s}
}

func Tuple(tys ...*Ty) *Ty {
	fs := make([]Field, len(tys))
	for i, t := range tys {
		fs[i] = Field{Ty: t}
	}
	return &Ty{Class: ClassTuple, Fields: fs}
}

func Struct(fields ...Field) *Ty { return &Ty{Class: ClassStruct, Fields: fields} }

// F names a struct field.
func F(name string, ty *Ty) Field { return Field{Name: name, Ty: ty} }

func Enum(variants ...Variant) *Ty { return &Ty{Class: ClassEnum, Variants: variants} }

func Union(variants ...Variant) *Ty { return &Ty{Class: ClassUnion, Variants: variants} }

// V declares a variant; ty is nil for enum variants and for union variants
// without payload.
func V(name string, tag uint8, ty *Ty) Variant { return Variant{Name: name, Tag: tag, Ty: ty} }

// Option is the union {none: 0, some(ty): 1}.
func Option(ty *Ty) *Ty {
	return Union(V("none", tagNone, nil), V("some", tagSome, ty))
}

// Ref points at a type declared by name in the resolving library. It is the
// only way to express recursion.
func Ref(name string) *Ty { return &Ty{Class: ClassRef, Name: name} }

// Bool is the enum {false: 0, true: 1}; it encodes exactly like WriteBool.
func Bool() *Ty { return Enum(V("false", 0, nil), V("true", 1, nil)) }

func (t *Ty) isBool() bool {
	return t.Class == ClassEnum && len(t.Variants) == 2 &&
		t.Variants[0] == Variant{Name: "false", Tag: 0} &&
		t.Variants[1] == Variant{Name: "true", Tag: 1}
}

// payload returns a union variant's payload type, unit when absent.
func (v Variant) payload() *Ty {
	if v.Ty == nil {
		return Prim(Unit)
	}
	return v.Ty
}

func (t *Ty) variant(tag uint8) (Variant, bool) {
	for _, v := range t.Variants {
		if v.Tag == tag {
			return v, true
		}
	}
	return Variant{}, false
}

func (t *Ty) variantNamed(name string) (Variant, bool) {
	for _, v := range t.Variants {
		if v.Name == name {
			return v, true
		}
	}
	return Variant{}, false
}

func (t *Ty) table() VariantTable {
	tags := make([]uint8, len(t.Variants))
	for i, v := range t.Variants {
		tags[i] = v.Tag
	}
	return NewVariantTable("", tags...)
}

// Clone returns a deep copy.
func (t *Ty) Clone() *Ty {
	if t == nil {
		return nil
	}
	c := *t
	c.Key = t.Key.Clone()
	c.Elem = t.Elem.Clone()
	if t.Fields != nil {
		c.Fields = make([]Field, len(t.Fields))
		for i, f := range t.Fields {
			c.Fields[i] = Field{Name: f.Name, Ty: f.Ty.Clone()}
		}
	}
	if t.Variants != nil {
		c.Variants = make([]Variant, len(t.Variants))
		for i, v := range t.Variants {
			c.Variants[i] = Variant{Name: v.Name, Tag: v.Tag, Ty: v.Ty.Clone()}
		}
	}
	return &c
}

func (t *Ty) String() string {
	var b strings.Builder
	t.write(&b)
	return b.String()
}

func (t *Ty) write(b *strings.Builder) {
	if t == nil {
		b.WriteString("<nil>")
		return
	}
	switch t.Class {
	case ClassPrimitive:
		b.WriteString(t.Prim.String())
	case ClassUnicode:
		fmt.Fprintf(b, "Text<%s>", t.Sizing)
	case ClassRText:
		if t.First != t.Charset {
			fmt.Fprintf(b, "RText<%s+%s, %s>", t.First, t.Charset, t.Sizing)
		} else {
			fmt.Fprintf(b, "RText<%s, %s>", t.Charset, t.Sizing)
		}
	case ClassArray:
		b.WriteByte('[')
		t.Elem.write(b)
		fmt.Fprintf(b, "; %d]", t.Len)
	case ClassList, ClassSet:
		if t.Class == ClassList {
			b.WriteString("List<")
		} else {
			b.WriteString("Set<")
		}
		t.Elem.write(b)
		fmt.Fprintf(b, ", %s>", t.Sizing)
	case ClassMap:
		b.WriteString("Map<")
		t.Key.write(b)
		b.WriteString(", ")
		t.Elem.write(b)
		fmt.Fprintf(b, ", %s>", t.Sizing)
	case ClassTuple:
		b.WriteByte('(')
		for i, f := range t.Fields {
			if i > 0 {
				b.WriteString(", ")
			}
			f.Ty.write(b)
		}
		b.WriteByte(')')
	case ClassStruct:
		b.WriteByte('{')
		for i, f := range t.Fields {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(f.Name)
			b.WriteString(": ")
			f.Ty.write(b)
		}
		b.WriteByte('}')
	case ClassEnum, ClassUnion:
		for i, v := range t.Variants {
			if i > 0 {
				b.WriteString(" | ")
			}
			fmt.Fprintf(b, "%s:%d", v.Name, v.Tag)
			if t.Class == ClassUnion && v.Ty != nil {
				b.WriteByte('(')
				v.Ty.write(b)
				b.WriteByte(')')
			}
		}
	case ClassRef:
		b.WriteString(t.Name)
	default:
		b.WriteString(t.Class.String())
	}
}

// ValidIdent reports whether s may name a type, field or variant: ASCII,
// 1 to 100 characters, a letter or '_' first, then letters, digits or '_'.
func ValidIdent(s string) bool {
	if len(s) == 0 || len(s) > MaxIdentLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_', 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		case '0' <= c && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// validate checks one description tree in isolation. Ref targets are
// checked by the library once every name is known.
func (t *Ty) validate(name string) error {
	return t.check(name, make(map[*Ty]bool))
}

// check walks the tree keeping the nodes of the current path in onPath, so
// a node that contains itself is reported instead of recursing forever.
// Shared subtrees are fine.
func (t *Ty) check(name string, onPath map[*Ty]bool) error {
	if t == nil {
		return descErr(name, "nil node")
	}
	if onPath[t] {
		return descErr(name, "cyclic description without Ref indirection")
	}
	onPath[t] = true
	defer delete(onPath, t)

	switch t.Class {
	case ClassPrimitive:
		if !t.Prim.valid() {
			return descErr(name, "unknown primitive %#02x", uint8(t.Prim))
		}
	case ClassUnicode:
		return t.Sizing.validate()
	case ClassRText:
		if !t.First.valid() || !t.Charset.valid() {
			return descErr(name, "unknown charset %d/%d", uint8(t.First), uint8(t.Charset))
		}
		return t.Sizing.validate()
	case ClassArray:
		if t.Elem == nil {
			return descErr(name, "array without element type")
		}
		if err := t.Elem.check(name, onPath); err != nil {
			return err
		}
	case ClassList, ClassSet:
		if err := t.Sizing.validate(); err != nil {
			return err
		}
		if t.Elem == nil {
			return descErr(name, "%s without element type", t.Class)
		}
		if err := t.Elem.check(name, onPath); err != nil {
			return err
		}
	case ClassMap:
		if err := t.Sizing.validate(); err != nil {
			return err
		}
		if t.Key == nil || t.Elem == nil {
			return descErr(name, "map without key or value type")
		}
		if err := t.Key.check(name, onPath); err != nil {
			return err
		}
		if err := t.Elem.check(name, onPath); err != nil {
			return err
		}
	case ClassTuple, ClassStruct:
		if len(t.Fields) == 0 {
			return descErr(name, "%s without fields", t.Class)
		}
		if len(t.Fields) > MaxFields {
			return descErr(name, "%d fields, at most %d allowed", len(t.Fields), MaxFields)
		}
		seen := make(map[string]struct{}, len(t.Fields))
		for i, f := range t.Fields {
			if t.Class == ClassStruct {
				if !ValidIdent(f.Name) {
					return descErr(name, "invalid field name %q", f.Name)
				}
				if _, dup := seen[f.Name]; dup {
					return descErr(name, "field %q declared twice", f.Name)
				}
				seen[f.Name] = struct{}{}
			} else if f.Name != "" {
				return descErr(name, "tuple field %d is named", i)
			}
			if err := f.Ty.check(name, onPath); err != nil {
				return err
			}
		}
	case ClassEnum, ClassUnion:
		if len(t.Variants) == 0 {
			return descErr(name, "%s without variants", t.Class)
		}
		if len(t.Variants) > MaxVariants {
			return descErr(name, "%d variants, at most %d allowed", len(t.Variants), MaxVariants)
		}
		names := make(map[string]struct{}, len(t.Variants))
		var tags [MaxVariants]bool
		for _, v := range t.Variants {
			if !ValidIdent(v.Name) {
				return descErr(name, "invalid variant name %q", v.Name)
			}
			if _, dup := names[v.Name]; dup {
				return descErr(name, "variant %q declared twice", v.Name)
			}
			names[v.Name] = struct{}{}
			if tags[v.Tag] {
				return descErr(name, "tag %d assigned twice", v.Tag)
			}
			tags[v.Tag] = true
			if t.Class == ClassEnum && v.Ty != nil {
				return descErr(name, "enum variant %q has a payload", v.Name)
			}
			if v.Ty != nil {
				if err := v.Ty.check(name, onPath); err != nil {
					return err
				}
			}
		}
	case ClassRef:
		if !ValidIdent(t.Name) {
			return descErr(name, "invalid reference %q", t.Name)
		}
	default:
		return descErr(name, "unknown class %d", uint8(t.Class))
	}
	if e := t.emptyElem(nil); e != nil {
		return descErr(name, "%s of zero-width %s", t.Class, e)
	}
	return nil
}

// emptyElem returns the element (or map key) type of a sequence when its
// values encode to no bytes; a length prefix over such elements would stand
// for work no input bytes pay for. Refs are followed only when res is set.
func (t *Ty) emptyElem(res Resolver) *Ty {
	var e *Ty
	switch t.Class {
	case ClassArray:
		if t.Len > 0 {
			e = t.Elem
		}
	case ClassList, ClassSet:
		e = t.Elem
	case ClassMap:
		e = t.Key
	}
	if e != nil && e.zeroWidth(res, make(map[string]bool)) {
		return e
	}
	return nil
}

// zeroWidth reports whether every value of t encodes to zero bytes.
func (t *Ty) zeroWidth(res Resolver, seen map[string]bool) bool {
	switch t.Class {
	case ClassPrimitive:
		return t.Prim == Unit
	case ClassArray:
		return t.Len == 0 || t.Elem.zeroWidth(res, seen)
	case ClassTuple, ClassStruct:
		for _, f := range t.Fields {
			if !f.Ty.zeroWidth(res, seen) {
				return false
			}
		}
		return true
	case ClassRef:
		if res == nil || seen[t.Name] {
			return false
		}
		target, ok := res.Resolve(t.Name)
		if !ok {
			return false
		}
		seen[t.Name] = true
		defer delete(seen, t.Name)
		return target.zeroWidth(res, seen)
	}
	return false
}

// each calls fn for t and every node below it, stopping at Refs.
func (t *Ty) each(fn func(*Ty)) {
	if t == nil {
		return
	}
	fn(t)
	switch t.Class {
	case ClassArray, ClassList, ClassSet:
		t.Elem.each(fn)
	case ClassMap:
		t.Key.each(fn)
		t.Elem.each(fn)
	case ClassTuple, ClassStruct:
		for _, f := range t.Fields {
			f.Ty.each(fn)
		}
	case ClassUnion:
		for _, v := range t.Variants {
			v.Ty.each(fn)
		}
	}
}



// refs calls fn for every Ref target reachable without crossing into
// another declaration.
func (t *Ty) refs(fn func(string)) {
	if t == nil {
		return
	}
	switch t.Class {
	case ClassRef:
		fn(t.Name)
	case ClassArray, ClassList, ClassSet:
		t.Elem.refs(fn)
	case ClassMap:
		t.Key.refs(fn)
		t.Elem.refs(fn)
	case ClassTuple, ClassStruct:
		for _, f := range t.Fields {
			f.Ty.refs(fn)
		}
	case ClassUnion:
		for _, v := range t.Variants {
			v.Ty.refs(fn)
		}
	}
}

// inhabited reports whether t admits a finite value given which declared
// names are known to be inhabited.
func (t *Ty) inhabited(known map[string]bool) bool {
	switch t.Class {
	case ClassRef:
		return known[t.Name]
	case ClassArray:
		return t.Len == 0 || t.Elem.inhabited(known)
	case ClassList, ClassSet:
		return t.Sizing.Min == 0 || t.Elem.inhabited(known)
	case ClassMap:
		return t.Sizing.Min == 0 || (t.Key.inhabited(known) && t.Elem.inhabited(known))
	case ClassTuple, ClassStruct:
		for _, f := range t.Fields {
			if !f.Ty.inhabited(known) {
				return false
			}
		}
		return true
	case ClassUnion:
		for _, v := range t.Variants {
			if v.payload().inhabited(known) {
				return true
			}
		}
		return false
	}
	return true
}
