package strictenc

import "fmt"

// Bounds used when a description itself is serialized.
var (
	fieldsSizing   = Sizing{Min: 1, Max: MaxFields}
	variantsSizing = Sizing{Min: 1, Max: MaxVariants}
	declsSizing    = SizingU16
	libNameSizing  = SizingU8
)

// EncodeType writes a description with the strict codec itself, so it can
// be stored or sent ahead of the data it describes.
func EncodeType(w *Writer, ty *Ty) error {
	if err := ty.validate(""); err != nil {
		return err
	}
	return encodeTy(w, ty)
}

func writeSizing(w *Writer, s Sizing) error {
	if err := w.WriteU64(s.Min); err != nil {
		return err
	}
	return w.WriteU64(s.Max)
}

func encodeTy(w *Writer, t *Ty) error {
	if err := w.WriteU8(uint8(t.Class)); err != nil {
		return err
	}
	switch t.Class {
	case ClassPrimitive:
		return w.WriteU8(uint8(t.Prim))
	case ClassUnicode:
		return writeSizing(w, t.Sizing)
	case ClassRText:
		if err := w.WriteU8(uint8(t.First)); err != nil {
			return err
		}
		if err := w.WriteU8(uint8(t.Charset)); err != nil {
			return err
		}
		return writeSizing(w, t.Sizing)
	case ClassArray:
		if err := encodeTy(w, t.Elem); err != nil {
			return err
		}
		return w.WriteU16(t.Len)
	case ClassList, ClassSet:
		if err := encodeTy(w, t.Elem); err != nil {
			return err
		}
		return writeSizing(w, t.Sizing)
	case ClassMap:
		if err := encodeTy(w, t.Key); err != nil {
			return err
		}
		if err := encodeTy(w, t.Elem); err != nil {
			return err
		}
		return writeSizing(w, t.Sizing)
	case ClassTuple:
		return WriteList(w, t.Fields, fieldsSizing, func(w *Writer, f Field) error {
			return encodeTy(w, f.Ty)
		})
	case ClassStruct:
		return WriteList(w, t.Fields, fieldsSizing, func(w *Writer, f Field) error {
			if err := WriteText(w, f.Name, identSizing); err != nil {
				return err
			}
			return encodeTy(w, f.Ty)
		})
	case ClassEnum, ClassUnion:
		return WriteList(w, t.Variants, variantsSizing, func(w *Writer, v Variant) error {
			if err := WriteText(w, v.Name, identSizing); err != nil {
				return err
			}
			if err := WriteTag(w, v.Tag); err != nil {
				return err
			}
			if t.Class == ClassEnum {
				return nil
			}
			if v.Ty == nil {
				return WriteTag(w, tagNone)
			}
			if err := WriteTag(w, tagSome); err != nil {
				return err
			}
			return encodeTy(w, v.Ty)
		})
	case ClassRef:
		return WriteText(w, t.Name, identSizing)
	}
	return descErr("", "unknown class %d", uint8(t.Class))
}

// DecodeType reads a description written by EncodeType and validates it.
func DecodeType(r *Reader) (*Ty, error) {
	t, err := decodeTy(r, 0)
	if err != nil {
		return nil, err
	}
	if err := t.validate(""); err != nil {
		return nil, err
	}
	return t, nil
}

func readSizing(r *Reader) (Sizing, error) {
	lo, err := r.ReadU64()
	if err != nil {
		return Sizing{}, err
	}
	hi, err := r.ReadU64()
	if err != nil {
		return Sizing{}, err
	}
	return NewSizing(lo, hi)
}

func decodeTy(r *Reader, depth int) (*Ty, error) {
	if depth > MaxDepth {
		return nil, fmt.Errorf("%w: description nested deeper than %d", ErrReadLimit, MaxDepth)
	}
	sub := func(r *Reader) (*Ty, error) { return decodeTy(r, depth+1) }

	code, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	t := &Ty{Class: Class(code)}
	switch t.Class {
	case ClassPrimitive:
		p, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		t.Prim = Primitive(p)
	case ClassUnicode:
		if t.Sizing, err = readSizing(r); err != nil {
			return nil, err
		}
	case ClassRText:
		first, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		rest, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		t.First, t.Charset = Charset(first), Charset(rest)
		if t.Sizing, err = readSizing(r); err != nil {
			return nil, err
		}
	case ClassArray:
		if t.Elem, err = sub(r); err != nil {
			return nil, err
		}
		if t.Len, err = r.ReadU16(); err != nil {
			return nil, err
		}
	case ClassList, ClassSet:
		if t.Elem, err = sub(r); err != nil {
			return nil, err
		}
		if t.Sizing, err = readSizing(r); err != nil {
			return nil, err
		}
	case ClassMap:
		if t.Key, err = sub(r); err != nil {
			return nil, err
		}
		if t.Elem, err = sub(r); err != nil {
			return nil, err
		}
		if t.Sizing, err = readSizing(r); err != nil {
			return nil, err
		}
	case ClassTuple:
		t.Fields, err = ReadList(r, fieldsSizing, func(r *Reader) (Field, error) {
			ft, err := sub(r)
			return Field{Ty: ft}, err
		})
		if err != nil {
			return nil, err
		}
	case ClassStruct:
		t.Fields, err = ReadList(r, fieldsSizing, func(r *Reader) (Field, error) {
			name, err := ReadText(r, identSizing)
			if err != nil {
				return Field{}, err
			}
			ft, err := sub(r)
			return Field{Name: name, Ty: ft}, err
		})
		if err != nil {
			return nil, err
		}
	case ClassEnum, ClassUnion:
		t.Variants, err = ReadList(r, variantsSizing, func(r *Reader) (Variant, error) {
			name, err := ReadText(r, identSizing)
			if err != nil {
				return Variant{}, err
			}
			tag, err := r.ReadU8()
			if err != nil {
				return Variant{}, err
			}
			v := Variant{Name: name, Tag: tag}
			if t.Class == ClassUnion {
				p, err := ReadOption(r, sub)
				if err != nil {
					return Variant{}, err
				}
				if p != nil {
					v.Ty = *p
				}
			}
			return v, nil
		})
		if err != nil {
			return nil, err
		}
	case ClassRef:
		if t.Name, err = ReadText(r, identSizing); err != nil {
			return nil, err
		}
	default:
		return nil, descErr("", "unknown class %d", code)
	}
	return t, nil
}

type decl struct {
	name string
	ty   *Ty
}

// EncodeDecls writes the library name followed by the named declarations,
// all of them when names is empty.
func EncodeDecls(w *Writer, lib *Library, names []string) error {
	if len(names) == 0 {
		names = lib.Names()
	}
	ds := make([]decl, 0, len(names))
	for _, n := range names {
		t, ok := lib.Resolve(n)
		if !ok {
			return descErr(n, "not declared")
		}
		ds = append(ds, decl{name: n, ty: t})
	}
	if err := WriteText(w, lib.Name(), libNameSizing); err != nil {
		return err
	}
	return WriteList(w, ds, declsSizing, func(w *Writer, d decl) error {
		if err := WriteText(w, d.name, identSizing); err != nil {
			return err
		}
		return encodeTy(w, d.ty)
	})
}

// DecodeDecls rebuilds a library from EncodeDecls output. Every Ref must
// resolve inside the decoded set.
func DecodeDecls(r *Reader) (*Library, error) {
	libName, err := ReadText(r, libNameSizing)
	if err != nil {
		return nil, err
	}
	ds, err := ReadList(r, declsSizing, func(r *Reader) (decl, error) {
		name, err := ReadText(r, identSizing)
		if err != nil {
			return decl{}, err
		}
		t, err := decodeTy(r, 0)
		return decl{name: name, ty: t}, err
	})
	if err != nil {
		return nil, err
	}
	lib := NewLibrary(libName)
	for _, d := range ds {
		if err := lib.Declare(d.name, d.ty); err != nil {
			return nil, err
		}
	}
	if err := lib.Validate(); err != nil {
		return nil, err
	}
	return lib, nil
}
