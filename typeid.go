package strictenc

import (
	"encoding/hex"
	"fmt"
	"math"
	"sort"

	"github.com/zeebo/blake3"
)

// TypeID is the 32-byte structural identifier of a type. Two types are
// interchangeable on the wire exactly when their identifiers are equal.
type TypeID [32]byte

func (id TypeID) String() string { return hex.EncodeToString(id[:]) }

func (id TypeID) IsZero() bool { return id == TypeID{} }

// ParseTypeID parses the 64-character hex form produced by String.
func ParseTypeID(s string) (TypeID, error) {
	var id TypeID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("strictenc: parsing type id: %w", err)
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("strictenc: type id is %d bytes, want %d", len(b), len(id))
	}
	copy(id[:], b)
	return id, nil
}

// Resolver looks up declared types by name. *Library is the usual one.
type Resolver interface {
	Resolve(name string) (*Ty, bool)
}

// typeIDKey is the BLAKE3 keyed-mode key: the ASCII domain name, zero
// padded to 32 bytes. Changing it changes every identifier.
var typeIDKey = [32]byte{
	's', 't', 'r', 'i', 'c', 't', 'e', 'n', 'c', '.', 't', 'y', 'p', 'e', 'i', 'd',
}

// Node codes that are not description classes.
const (
	idNamed   = 0x80 // a declared name wrapping its body
	idBackRef = 0x81 // a reference to a type still being identified
)

var identSizing = Sizing{Min: 1, Max: MaxIdentLen}

// noBack marks a subtree that refers to nothing on the identification stack.
const noBack = math.MaxInt

// idState carries one identifier computation. The stack holds the names
// being identified; a Ref to one of them is written as its distance from
// the top instead of being expanded again.
type idState struct {
	res   Resolver
	stack []string
	// memo holds identifiers of named types computed from an empty stack,
	// or from a stack their expansion never referred into.
	memo map[string]TypeID
}

// ComputeID identifies an anonymous description. Refs inside it are
// resolved through res, which may be nil when there are none.
func ComputeID(ty *Ty, res Resolver) (TypeID, error) {
	if err := ty.validate(""); err != nil {
		return TypeID{}, err
	}
	if res != nil {
		var empty *Ty
		ty.each(func(t *Ty) {
			if empty == nil {
				empty = t.emptyElem(res)
			}
		})
		if empty != nil {
			return TypeID{}, descErr("", "sequence of zero-width %s", empty)
		}
	}
	s := &idState{res: res, memo: make(map[string]TypeID)}
	id, _, err := s.node(ty)
	return id, err
}

func hashNode(b []byte) TypeID {
	h, err := blake3.NewKeyed(typeIDKey[:])
	if err != nil {
		panic("strictenc: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	h.Write(b)
	var id TypeID
	copy(id[:], h.Sum(nil))
	return id
}

// idWriter keeps the first error so the description writers stay linear.
type idWriter struct {
	w   *Writer
	err error
}

func (iw *idWriter) do(err error) {
	if iw.err == nil {
		iw.err = err
	}
}

func (iw *idWriter) u8(v uint8)       { iw.do(iw.w.WriteU8(v)) }
func (iw *idWriter) u16(v uint16)     { iw.do(iw.w.WriteU16(v)) }
func (iw *idWriter) id(v TypeID)      { iw.do(iw.w.WriteRaw(v[:])) }
func (iw *idWriter) ident(s string)   { iw.do(WriteText(iw.w, s, identSizing)) }
func (iw *idWriter) sizing(s Sizing)  { iw.do(iw.w.WriteU64(s.Min)); iw.do(iw.w.WriteU64(s.Max)) }
func (iw *idWriter) sum() (TypeID, error) {
	if iw.err != nil {
		return TypeID{}, iw.err
	}
	return hashNode(iw.w.Bytes()), nil
}

func (s *idState) named(name string) (TypeID, int, error) {
	for i := len(s.stack) - 1; i >= 0; i-- {
		if s.stack[i] == name {
			iw := &idWriter{w: NewBufferWriter(0)}
			iw.u8(idBackRef)
			iw.u16(uint16(len(s.stack) - 1 - i))
			id, err := iw.sum()
			return id, i, err
		}
	}
	if id, ok := s.memo[name]; ok && !s.reachesStack(name) {
		return id, noBack, nil
	}
	if s.res == nil {
		return TypeID{}, noBack, descErr(name, "unresolved reference")
	}
	ty, ok := s.res.Resolve(name)
	if !ok {
		return TypeID{}, noBack, descErr(name, "unresolved reference")
	}

	s.stack = append(s.stack, name)
	body, open, err := s.node(ty)
	s.stack = s.stack[:len(s.stack)-1]
	if err != nil {
		return TypeID{}, noBack, err
	}

	iw := &idWriter{w: NewBufferWriter(0)}
	iw.u8(idNamed)
	iw.ident(name)
	iw.id(body)
	id, err := iw.sum()
	if err != nil {
		return TypeID{}, noBack, err
	}
	if open >= len(s.stack) {
		s.memo[name] = id
		return id, noBack, nil
	}
	return id, open, nil
}

// reachesStack reports whether any name on the stack is reachable from
// name. A memoised identifier was computed with nothing below it, so it only
// stands in for an expansion that would not refer back into the stack.
func (s *idState) reachesStack(name string) bool {
	if len(s.stack) == 0 {
		return false
	}
	on := make(map[string]bool, len(s.stack))
	for _, n := range s.stack {
		on[n] = true
	}
	seen := map[string]bool{name: true}
	queue := []string{name}
	found := false
	for len(queue) > 0 && !found {
		ty, ok := s.res.Resolve(queue[0])
		queue = queue[1:]
		if !ok {
			continue
		}
		ty.refs(func(target string) {
			if on[target] {
				found = true
			}
			if !seen[target] {
				seen[target] = true
				queue = append(queue, target)
			}
		})
	}
	return found
}

// node writes t's class, its own parameters and the identifiers of its
// children, then hashes that. It also returns the lowest stack index the
// subtree refers back to.
func (s *idState) node(t *Ty) (TypeID, int, error) {
	if t.Class == ClassRef {
		return s.named(t.Name)
	}

	open := noBack
	var ferr error
	child := func(c *Ty) TypeID {
		if ferr != nil {
			return TypeID{}
		}
		id, o, err := s.node(c)
		if err != nil {
			ferr = err
		}
		open = min(open, o)
		return id
	}

	iw := &idWriter{w: NewBufferWriter(0)}
	iw.u8(uint8(t.Class))
	switch t.Class {
	case ClassPrimitive:
		iw.u8(uint8(t.Prim))
	case ClassUnicode:
		iw.sizing(t.Sizing)
	case ClassRText:
		iw.u8(uint8(t.First))
		iw.u8(uint8(t.Charset))
		iw.sizing(t.Sizing)
	case ClassArray:
		iw.id(child(t.Elem))
		iw.u16(t.Len)
	case ClassList, ClassSet:
		iw.id(child(t.Elem))
		iw.sizing(t.Sizing)
	case ClassMap:
		iw.id(child(t.Key))
		iw.id(child(t.Elem))
		iw.sizing(t.Sizing)
	case ClassTuple:
		iw.u8(uint8(len(t.Fields)))
		for _, f := range t.Fields {
			iw.id(child(f.Ty))
		}
	case ClassStruct:
		iw.u8(uint8(len(t.Fields)))
		for _, f := range t.Fields {
			iw.ident(f.Name)
			iw.id(child(f.Ty))
		}
	case ClassEnum, ClassUnion:
		// Declaration order of variants is not observable on the wire.
		vs := append([]Variant(nil), t.Variants...)
		sort.Slice(vs, func(i, j int) bool { return vs[i].Tag < vs[j].Tag })
		iw.u16(uint16(len(vs)))
		for _, v := range vs {
			iw.ident(v.Name)
			iw.u8(v.Tag)
			if t.Class == ClassUnion {
				iw.id(child(v.payload()))
			}
		}
	default:
		return TypeID{}, noBack, descErr("", "unknown class %d", uint8(t.Class))
	}
	if ferr != nil {
		return TypeID{}, noBack, ferr
	}
	id, err := iw.sum()
	return id, open, err
}
