package strictenc

import (
	"bytes"
	"fmt"
	"sort"
	"unicode/utf8"
)

// EncodeFunc writes one value of T.
type EncodeFunc[T any] func(w *Writer, v T) error

// DecodeFunc reads one value of T.
type DecodeFunc[T any] func(r *Reader) (T, error)

// Entry is one key/value pair of a confined map.
type Entry[K, V any] struct {
	Key   K
	Value V
}

// WriteBytes writes b behind a length prefix sized for s.
func WriteBytes(w *Writer, b []byte, s Sizing) error {
	if err := w.writeLen(len(b), s); err != nil {
		return err
	}
	return w.WriteRaw(b)
}

// ReadBytes returns a copy that does not alias the input.
func ReadBytes(r *Reader, s Sizing) ([]byte, error) {
	n, err := r.readLen(s)
	if err != nil {
		return nil, err
	}
	p, err := r.ReadRaw(n)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), p...), nil
}

// WriteText writes UTF-8 text; s bounds its length in bytes.
func WriteText(w *Writer, text string, s Sizing) error {
	if !utf8.ValidString(text) {
		return fmt.Errorf("%w: %q", ErrInvalidText, text)
	}
	if err := w.writeLen(len(text), s); err != nil {
		return err
	}
	return w.WriteRaw([]byte(text))
}

// ReadText reads text written by WriteText and rejects invalid UTF-8.
func ReadText(r *Reader, s Sizing) (string, error) {
	n, err := r.readLen(s)
	if err != nil {
		return "", err
	}
	p, err := r.ReadRaw(n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(p) {
		return "", fmt.Errorf("%w: at offset %d", ErrInvalidText, r.Offset()-n)
	}
	return string(p), nil
}

// WriteList writes the element count followed by every element in order.
// Elements must encode to at least one byte each.
func WriteList[T any](w *Writer, items []T, s Sizing, enc EncodeFunc[T]) error {
	if err := w.writeLen(len(items), s); err != nil {
		return err
	}
	for _, it := range items {
		start := w.Count()
		if err := enc(w, it); err != nil {
			return err
		}
		if w.Count() == start {
			return errZeroWidth
		}
	}
	return nil
}

// ReadList reads a list written by WriteList. The count is checked against
// s before any element is read, and every element must consume input, so
// the work done is bounded by the bytes available.
func ReadList[T any](r *Reader, s Sizing, dec DecodeFunc[T]) ([]T, error) {
	n, err := r.readLen(s)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, capHint(n, r.Remaining()))
	for i := 0; i < n; i++ {
		start := r.Offset()
		v, err := dec(r)
		if err != nil {
			return nil, err
		}
		if r.Offset() == start {
			return nil, errZeroWidth
		}
		out = append(out, v)
	}
	return out, nil
}

var errZeroWidth = fmt.Errorf("%w: sequence element of zero width", ErrInvalidType)

// WriteArray writes exactly n elements and no prefix.
func WriteArray[T any](w *Writer, items []T, n int, enc EncodeFunc[T]) error {
	if len(items) != n {
		return &ConfinementError{Len: uint64(len(items)), Min: uint64(n), Max: uint64(n)}
	}
	for _, it := range items {
		start := w.Count()
		if err := enc(w, it); err != nil {
			return err
		}
		if w.Count() == start {
			return errZeroWidth
		}
	}
	return nil
}

// ReadArray reads exactly n elements; like ReadList, each must consume
// input.
func ReadArray[T any](r *Reader, n int, dec DecodeFunc[T]) ([]T, error) {
	out := make([]T, 0, capHint(n, r.Remaining()))
	for i := 0; i < n; i++ {
		start := r.Offset()
		v, err := dec(r)
		if err != nil {
			return nil, err
		}
		if r.Offset() == start {
			return nil, errZeroWidth
		}
		out = append(out, v)
	}
	return out, nil
}

// encoded is one element rendered on its own so the set can be ordered by
// its canonical bytes.
type encoded struct {
	key []byte
	all []byte
}

// subWriter renders a single element against the budget w has left. It
// starts counting where w stands, so limit checks agree with w's own.
func subWriter(w *Writer) *Writer {
	b := new(bytes.Buffer)
	return &Writer{sink: b, buf: b, count: w.count, limit: w.limit}
}

// writeSorted writes pre-encoded elements in ascending key order. Two equal
// keys are one value written twice and are rejected.
func writeSorted(w *Writer, items []encoded, s Sizing) error {
	sort.Slice(items, func(i, j int) bool { return bytes.Compare(items[i].key, items[j].key) < 0 })
	for i := 1; i < len(items); i++ {
		if bytes.Equal(items[i-1].key, items[i].key) {
			return fmt.Errorf("%w: element %x repeated", ErrDuplicateKey, items[i].key)
		}
	}
	if err := w.writeLen(len(items), s); err != nil {
		return err
	}
	for _, it := range items {
		if err := w.WriteRaw(it.all); err != nil {
			return err
		}
	}
	return nil
}

// checkOrder enforces strictly ascending canonical order on decode.
func checkOrder(prev, cur []byte) error {
	switch c := bytes.Compare(prev, cur); {
	case c == 0:
		return fmt.Errorf("%w: element %x repeated", ErrDuplicateKey, cur)
	case c > 0:
		return fmt.Errorf("%w: %x after %x", ErrUnsortedKeys, cur, prev)
	}
	return nil
}

// WriteSet writes items in ascending order of their encodings. The input
// order does not matter; a value present twice is an error.
func WriteSet[T any](w *Writer, items []T, s Sizing, enc EncodeFunc[T]) error {
	if err := s.Check(uint64(len(items))); err != nil {
		return err
	}
	rendered := make([]encoded, 0, len(items))
	for _, it := range items {
		sw := subWriter(w)
		if err := enc(sw, it); err != nil {
			return err
		}
		b := sw.Bytes()
		rendered = append(rendered, encoded{key: b, all: b})
	}
	return writeSorted(w, rendered, s)
}

// ReadSet returns the elements in canonical order.
func ReadSet[T any](r *Reader, s Sizing, dec DecodeFunc[T]) ([]T, error) {
	n, err := r.readLen(s)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, capHint(n, r.Remaining()))
	var prev []byte
	for i := 0; i < n; i++ {
		start := r.Offset()
		v, err := dec(r)
		if err != nil {
			return nil, err
		}
		cur := r.consumed(start)
		if i > 0 {
			if err := checkOrder(prev, cur); err != nil {
				return nil, err
			}
		}
		prev = cur
		out = append(out, v)
	}
	return out, nil
}

// WriteMap writes entries in ascending order of their key encodings.
func WriteMap[K, V any](w *Writer, entries []Entry[K, V], s Sizing, encK EncodeFunc[K], encV EncodeFunc[V]) error {
	if err := s.Check(uint64(len(entries))); err != nil {
		return err
	}
	rendered := make([]encoded, 0, len(entries))
	for _, e := range entries {
		sw := subWriter(w)
		if err := encK(sw, e.Key); err != nil {
			return err
		}
		klen := sw.Count() - w.Count()
		if err := encV(sw, e.Value); err != nil {
			return err
		}
		b := sw.Bytes()
		rendered = append(rendered, encoded{key: b[:klen], all: b})
	}
	return writeSorted(w, rendered, s)
}

// ReadMap returns the entries in canonical key order.
func ReadMap[K, V any](r *Reader, s Sizing, decK DecodeFunc[K], decV DecodeFunc[V]) ([]Entry[K, V], error) {
	n, err := r.readLen(s)
	if err != nil {
		return nil, err
	}
	out := make([]Entry[K, V], 0, capHint(n, r.Remaining()))
	var prev []byte
	for i := 0; i < n; i++ {
		start := r.Offset()
		k, err := decK(r)
		if err != nil {
			return nil, err
		}
		cur := r.consumed(start)
		if i > 0 {
			if err := checkOrder(prev, cur); err != nil {
				return nil, err
			}
		}
		prev = cur
		v, err := decV(r)
		if err != nil {
			return nil, err
		}
		out = append(out, Entry[K, V]{Key: k, Value: v})
	}
	return out, nil
}

// Option tags.
const (
	tagNone uint8 = 0
	tagSome uint8 = 1
)

var optionTable = NewVariantTable("Option", tagNone, tagSome)

// WriteOption writes nil as the none variant and anything else as some.
func WriteOption[T any](w *Writer, v *T, enc EncodeFunc[T]) error {
	if v == nil {
		return WriteTag(w, tagNone)
	}
	if err := WriteTag(w, tagSome); err != nil {
		return err
	}
	return enc(w, *v)
}

// ReadOption returns nil for the none variant.
func ReadOption[T any](r *Reader, dec DecodeFunc[T]) (*T, error) {
	tag, err := optionTable.ReadTag(r)
	if err != nil {
		return nil, err
	}
	if tag == tagNone {
		return nil, nil
	}
	v, err := dec(r)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
