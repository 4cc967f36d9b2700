package strictenc

import "slices"

// Confined is a list whose length stays inside its bound for its whole
// life: construction and every length-changing mutation are checked, and a
// rejected mutation leaves the list untouched.
type Confined[T any] struct {
	items []T
	bound Sizing
}

// NewConfined copies items into a new confined list.
func NewConfined[T any](items []T, s Sizing) (*Confined[T], error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	if err := s.Check(uint64(len(items))); err != nil {
		return nil, err
	}
	return &Confined[T]{items: slices.Clone(items), bound: s}, nil
}

func (c *Confined[T]) Len() int      { return len(c.items) }
func (c *Confined[T]) Bound() Sizing { return c.bound }
func (c *Confined[T]) At(i int) T    { return c.items[i] }

// Items returns a copy of the elements.
func (c *Confined[T]) Items() []T { return slices.Clone(c.items) }

// Push appends v unless that would exceed the bound.
func (c *Confined[T]) Push(v T) error {
	if err := c.bound.Check(uint64(len(c.items)) + 1); err != nil {
		return err
	}
	c.items = append(c.items, v)
	return nil
}

// Extend appends all of vs or none of them.
func (c *Confined[T]) Extend(vs ...T) error {
	if err := c.bound.Check(uint64(len(c.items) + len(vs))); err != nil {
		return err
	}
	c.items = append(c.items, vs...)
	return nil
}

// Pop removes and returns the last element.
func (c *Confined[T]) Pop() (T, error) {
	var zero T
	if len(c.items) == 0 {
		return zero, &ConfinementError{Len: 0, Min: c.bound.Min, Max: c.bound.Max}
	}
	if err := c.bound.Check(uint64(len(c.items)) - 1); err != nil {
		return zero, err
	}
	v := c.items[len(c.items)-1]
	c.items[len(c.items)-1] = zero
	c.items = c.items[:len(c.items)-1]
	return v, nil
}

// Set replaces element i. It panics when i is out of range, like indexing.
func (c *Confined[T]) Set(i int, v T) { c.items[i] = v }

// Encode writes the list with its own bound.
func (c *Confined[T]) Encode(w *Writer, enc EncodeFunc[T]) error {
	return WriteList(w, c.items, c.bound, enc)
}

// ReadConfined reads a list and keeps its bound for later mutation.
func ReadConfined[T any](r *Reader, s Sizing, dec DecodeFunc[T]) (*Confined[T], error) {
	items, err := ReadList(r, s, dec)
	if err != nil {
		return nil, err
	}
	return &Confined[T]{items: items, bound: s}, nil
}
