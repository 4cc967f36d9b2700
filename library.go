package strictenc

import (
	"fmt"
	"slices"
	"sync"
)

// Library is a caller-owned table of named type descriptions. It resolves
// Refs during encoding and identification and memoises identifiers once
// computed. Declaring is not meant to race with use, but any number of
// goroutines may resolve and identify concurrently.
type Library struct {
	name string

	mu    sync.RWMutex
	order []string
	types map[string]*Ty
	ids   map[string]TypeID
}

// NewLibrary returns an empty library. The name only labels the library in
// serialized declarations; it takes no part in identifiers.
func NewLibrary(name string) *Library {
	return &Library{
		name:  name,
		types: make(map[string]*Ty),
		ids:   make(map[string]TypeID),
	}
}

func (l *Library) Name() string { return l.name }

// Declare adds a named description. The description is copied, checked in
// isolation, and rejected with ErrInvalidType when malformed. Refs may point
// at names declared later; Validate checks them once all are in.
func (l *Library) Declare(name string, ty *Ty) error {
	if !ValidIdent(name) {
		return descErr(name, "invalid type name")
	}
	if err := ty.validate(name); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, dup := l.types[name]; dup {
		return descErr(name, "declared twice")
	}
	l.types[name] = ty.Clone()
	l.order = append(l.order, name)
	return nil
}

// MustDeclare is Declare for static tables; it panics on error.
func (l *Library) MustDeclare(name string, ty *Ty) *Library {
	if err := l.Declare(name, ty); err != nil {
		panic(err)
	}
	return l
}

// Resolve returns the description declared under name. Callers must not
// modify it.
func (l *Library) Resolve(name string) (*Ty, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.types[name]
	return t, ok
}

// Names lists declared names in declaration order.
func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.order)
}

// Validate checks every Ref resolves, that no sequence holds elements that
// encode to nothing, and that no type is recursive in a way that admits no
// finite value, such as a struct containing itself.
func (l *Library) Validate() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.validateLocked(l.order)
}

func (l *Library) validateLocked(names []string) error {
	for _, n := range names {
		var missing string
		l.types[n].refs(func(target string) {
			if _, ok := l.types[target]; !ok && missing == "" {
				missing = target
			}
		})
		if missing != "" {
			return descErr(n, "reference to undeclared type %q", missing)
		}
	}
	view := lockedView{l}
	for _, n := range names {
		var empty *Ty
		l.types[n].each(func(t *Ty) {
			if empty == nil {
				empty = t.emptyElem(view)
			}
		})
		if empty != nil {
			return descErr(n, "sequence of zero-width %s", empty)
		}
	}
	// Least fixpoint: a name is inhabited once its body is, given the
	// names already known to be.
	known := make(map[string]bool, len(l.types))
	for changed := true; changed; {
		changed = false
		for _, n := range names {
			if !known[n] && l.types[n].inhabited(known) {
				known[n] = true
				changed = true
			}
		}
	}
	for _, n := range names {
		if !known[n] {
			return descErr(n, "recursive without indirection: no finite value exists")
		}
	}
	return nil
}

// Closure lists name and every declared type it reaches, in declaration
// order.
func (l *Library) Closure(name string) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.closureLocked(name)
}

func (l *Library) closureLocked(name string) ([]string, error) {
	if _, ok := l.types[name]; !ok {
		return nil, descErr(name, "not declared")
	}
	reach := map[string]bool{name: true}
	queue := []string{name}
	var missing string
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		l.types[n].refs(func(target string) {
			if reach[target] {
				return
			}
			if _, ok := l.types[target]; !ok {
				if missing == "" {
					missing = target
				}
				return
			}
			reach[target] = true
			queue = append(queue, target)
		})
	}
	if missing != "" {
		return nil, descErr(name, "reference to undeclared type %q", missing)
	}
	out := make([]string, 0, len(reach))
	for _, n := range l.order {
		if reach[n] {
			out = append(out, n)
		}
	}
	return out, nil
}

// ID returns the identifier of a declared type. The type's closure is
// validated on first use; the result is memoised.
func (l *Library) ID(name string) (TypeID, error) {
	l.mu.RLock()
	id, ok := l.ids[name]
	l.mu.RUnlock()
	if ok {
		return id, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if id, ok := l.ids[name]; ok {
		return id, nil
	}
	names, err := l.closureLocked(name)
	if err != nil {
		return TypeID{}, err
	}
	if err := l.validateLocked(names); err != nil {
		return TypeID{}, err
	}
	s := &idState{res: lockedView{l}, memo: l.ids}
	id, _, err = s.named(name)
	if err != nil {
		return TypeID{}, err
	}
	return id, nil
}

// MustID is ID for types known to be well formed.
func (l *Library) MustID(name string) TypeID {
	id, err := l.ID(name)
	if err != nil {
		panic(fmt.Sprintf("strictenc: %v", err))
	}
	return id
}

// lockedView resolves without taking the lock its caller already holds.
type lockedView struct{ l *Library }

func (v lockedView) Resolve(name string) (*Ty, bool) {
	t, ok := v.l.types[name]
	return t, ok
}
