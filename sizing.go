package strictenc

import (
	"fmt"
	"math"
)

// MaxLen is the largest element count any container may declare.
const MaxLen = math.MaxUint64

// Sizing is the inclusive [Min, Max] element-count bound attached to every
// variable-length container. The width of the length prefix is a function
// of Max alone, so it is part of the type and never depends on the data.
type Sizing struct {
	Min uint64
	Max uint64
}

// Commonly used bounds: everything a 1, 2 or 4 byte prefix can express.
var (
	SizingU8  = Sizing{Min: 0, Max: math.MaxUint8}
	SizingU16 = Sizing{Min: 0, Max: math.MaxUint16}
	SizingU32 = Sizing{Min: 0, Max: math.MaxUint32}
)

// NewSizing builds a bound, rejecting min > max with ErrInvalidType.
func NewSizing(min, max uint64) (Sizing, error) {
	s := Sizing{Min: min, Max: max}
	if err := s.validate(); err != nil {
		return Sizing{}, err
	}
	return s, nil
}

// MustSizing is NewSizing for package-level bound tables.
func MustSizing(min, max uint64) Sizing {
	s, err := NewSizing(min, max)
	if err != nil {
		panic(err)
	}
	return s
}

func (s Sizing) validate() error {
	if s.Min > s.Max {
		return descErr("", "sizing min %d exceeds max %d", s.Min, s.Max)
	}
	return nil
}

// Check reports whether a container of n elements fits the bound.
func (s Sizing) Check(n uint64) error {
	if n < s.Min || n > s.Max {
		return &ConfinementError{Len: n, Min: s.Min, Max: s.Max}
	}
	return nil
}

// PrefixWidth is the byte width of the length prefix: the smallest of 1, 2,
// 4 or 8 able to hold Max.
func (s Sizing) PrefixWidth() int {
	switch {
	case s.Max <= math.MaxUint8:
		return 1
	case s.Max <= math.MaxUint16:
		return 2
	case s.Max <= math.MaxUint32:
		return 4
	default:
		return 8
	}
}

func (s Sizing) String() string {
	if s.Max == MaxLen {
		return fmt.Sprintf("%d..", s.Min)
	}
	return fmt.Sprintf("%d..%d", s.Min, s.Max)
}

// writeLen checks n against s and writes the prefix.
func (w *Writer) writeLen(n int, s Sizing) error {
	if err := s.Check(uint64(n)); err != nil {
		return err
	}
	switch s.PrefixWidth() {
	case 1:
		return w.WriteU8(uint8(n))
	case 2:
		return w.WriteU16(uint16(n))
	case 4:
		return w.WriteU32(uint32(n))
	default:
		return w.WriteU64(uint64(n))
	}
}

// readLen reads a prefix and rejects it before any element is touched when
// it falls outside s.
func (r *Reader) readLen(s Sizing) (int, error) {
	var (
		n   uint64
		err error
	)
	switch s.PrefixWidth() {
	case 1:
		var v uint8
		v, err = r.ReadU8()
		n = uint64(v)
	case 2:
		var v uint16
		v, err = r.ReadU16()
		n = uint64(v)
	case 4:
		var v uint32
		v, err = r.ReadU32()
		n = uint64(v)
	default:
		n, err = r.ReadU64()
	}
	if err != nil {
		return 0, err
	}
	if err := s.Check(n); err != nil {
		return 0, err
	}
	if n > math.MaxInt {
		return 0, fmt.Errorf("%w: length %d not addressable", ErrReadLimit, n)
	}
	return int(n), nil
}

// capHint bounds a slice preallocation by what the input could possibly
// hold, so a large declared count cannot force a large allocation.
func capHint(n, remaining int) int {
	if n > remaining {
		return remaining
	}
	return n
}
