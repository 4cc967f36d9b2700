package strictenc

// Encoder is implemented by types with a static, hand or build-time written
// layout. StrictEncode writes the fields in declaration order with no
// separators and no padding.
type Encoder interface {
	StrictEncode(w *Writer) error
}

// Decoder reads what the matching Encoder wrote, in the same order. A
// failure on any field must leave the receiver unusable to the caller,
// which never sees a partially decoded value.
type Decoder interface {
	StrictDecode(r *Reader) error
}

// WriteTag writes a sum type's variant tag. The payload, if any, follows.
func WriteTag(w *Writer, tag uint8) error { return w.WriteU8(tag) }

// VariantTable is the set of tags declared by one sum type.
type VariantTable struct {
	name string
	tags [4]uint64
}

// NewVariantTable records the declared tags; name labels errors.
func NewVariantTable(name string, tags ...uint8) VariantTable {
	t := VariantTable{name: name}
	for _, tag := range tags {
		t.tags[tag>>6] |= 1 << (tag & 63)
	}
	return t
}

// Has reports whether tag was declared.
func (t VariantTable) Has(tag uint8) bool { return t.tags[tag>>6]&(1<<(tag&63)) != 0 }

// ReadTag reads a tag and rejects one that was never declared. Nothing past
// the tag is consumed in that case.
func (t VariantTable) ReadTag(r *Reader) (uint8, error) {
	tag, err := r.ReadU8()
	if err != nil {
		return 0, err
	}
	if !t.Has(tag) {
		return 0, &VariantError{Type: t.name, Tag: tag}
	}
	return tag, nil
}
