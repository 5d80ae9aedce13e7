package qual

import "fmt"

// QualifierHierarchy groups one or more independent qualifier lattices.
// Every hierarchy is identified by its top qualifier.
type QualifierHierarchy interface {
	// TopAnnotations returns the top qualifier of every hierarchy, in a stable order
	TopAnnotations() []Qualifier
	// TopAnnotation returns the top of the hierarchy q belongs to
	TopAnnotation(q Qualifier) (Qualifier, bool)
	BottomAnnotation(top Qualifier) Qualifier
	// DefaultAnnotation is the qualifier assumed for a type use that carries none in the hierarchy of top
	DefaultAnnotation(top Qualifier) Qualifier

	// IsSubtype reports whether sub <: super. Qualifiers of different hierarchies are never related.
	IsSubtype(sub, super Qualifier) bool
	// LeastUpperBound joins two qualifiers of the same hierarchy
	LeastUpperBound(a, b Qualifier) Qualifier
	// LeastUpperBounds joins two sets hierarchy by hierarchy.
	// A hierarchy missing from one of the sets takes that hierarchy's default qualifier.
	LeastUpperBounds(a, b Set) Set
	// GreatestLowerBound meets two qualifiers of the same hierarchy. ok is false when the meet is undefined.
	GreatestLowerBound(a, b Qualifier) (glb Qualifier, ok bool)
	FindAnnotationInHierarchy(s Set, top Qualifier) (Qualifier, bool)
}

// Hierarchy is the QualifierHierarchy made of a fixed list of Lattice values
type Hierarchy struct {
	lattices []*Lattice
	byTop    map[Qualifier]*Lattice
	owner    map[Qualifier]*Lattice
}

var _ QualifierHierarchy = (*Hierarchy)(nil)

func NewHierarchy(lattices ...*Lattice) (*Hierarchy, error) {
	h := &Hierarchy{
		lattices: lattices,
		byTop:    make(map[Qualifier]*Lattice, len(lattices)),
		owner:    make(map[Qualifier]*Lattice),
	}
	for _, l := range lattices {
		h.byTop[l.Top()] = l
		for _, q := range l.members {
			if other, ok := h.owner[q]; ok {
				return nil, fmt.Errorf("qualifier %v is declared in both %s and %s", q, other.Name(), l.Name())
			}
			h.owner[q] = l
		}
	}
	return h, nil
}

func (h *Hierarchy) Lattices() []*Lattice {
	return h.lattices
}

// Lattice returns the lattice q belongs to
func (h *Hierarchy) Lattice(q Qualifier) (*Lattice, bool) {
	l, ok := h.owner[q]
	return l, ok
}

func (h *Hierarchy) TopAnnotations() []Qualifier {
	tops := make([]Qualifier, 0, len(h.lattices))
	for _, l := range h.lattices {
		tops = append(tops, l.Top())
	}
	return tops
}

func (h *Hierarchy) TopAnnotation(q Qualifier) (Qualifier, bool) {
	l, ok := h.owner[q]
	if !ok {
		return "", false
	}
	return l.Top(), true
}

func (h *Hierarchy) BottomAnnotation(top Qualifier) Qualifier {
	return h.byTop[top].Bottom()
}

func (h *Hierarchy) DefaultAnnotation(top Qualifier) Qualifier {
	return h.byTop[top].Default()
}

func (h *Hierarchy) IsSubtype(sub, super Qualifier) bool {
	l, ok := h.owner[sub]
	return ok && l.IsSubtype(sub, super)
}

// LeastUpperBound returns the empty Qualifier when a and b are not in the same hierarchy
func (h *Hierarchy) LeastUpperBound(a, b Qualifier) Qualifier {
	l, ok := h.owner[a]
	if !ok {
		return ""
	}
	j, _ := l.Join(a, b)
	return j
}

func (h *Hierarchy) LeastUpperBounds(a, b Set) Set {
	lubs := EmptySet()
	for _, l := range h.lattices {
		top := l.Top()
		qa, okA := a.Get(top)
		qb, okB := b.Get(top)
		if !okA && !okB {
			continue
		}
		if !okA {
			qa = l.Default()
		}
		if !okB {
			qb = l.Default()
		}
		if j, ok := l.Join(qa, qb); ok {
			lubs = lubs.With(top, j)
		}
	}
	return lubs
}

func (h *Hierarchy) GreatestLowerBound(a, b Qualifier) (Qualifier, bool) {
	l, ok := h.owner[a]
	if !ok {
		return "", false
	}
	return l.Meet(a, b)
}

func (h *Hierarchy) FindAnnotationInHierarchy(s Set, top Qualifier) (Qualifier, bool) {
	return s.Get(top)
}
