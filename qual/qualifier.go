// Package qual models type qualifiers and the lattices ("hierarchies") they are drawn from.
package qual

import (
	"github.com/benbjohnson/immutable"
	"iter"
	"strings"
)

// Qualifier is a named marker attached to a type use, such as Nullable.
// Qualifier names are unique across every hierarchy of a QualifierHierarchy.
type Qualifier string

func (q Qualifier) String() string {
	return "@" + string(q)
}

type qualifierComparer struct{}

func (qualifierComparer) Compare(a, b Qualifier) int {
	return strings.Compare(string(a), string(b))
}

// Set holds at most one qualifier per hierarchy, keyed by the top qualifier of that hierarchy.
//
// Set is persistent: With and Without return a new Set and leave the receiver untouched,
// which lets annotated types share their qualifier sets freely.
// The zero value is an empty Set.
type Set struct {
	m *immutable.SortedMap[Qualifier, Qualifier]
}

func EmptySet() Set {
	return Set{}
}

// NewSet builds a Set from qualifiers of h, failing if a qualifier is unknown to h or if
// two qualifiers belong to the same hierarchy
func NewSet(h QualifierHierarchy, qs ...Qualifier) (Set, error) {
	s := EmptySet()
	for _, q := range qs {
		top, ok := h.TopAnnotation(q)
		if !ok {
			return Set{}, &UnknownQualifierError{Qualifier: q}
		}
		if existing, ok := s.Get(top); ok {
			return Set{}, &DuplicateHierarchyError{First: existing, Second: q}
		}
		s = s.With(top, q)
	}
	return s, nil
}

// MustSet is like NewSet but panics on error. It is meant for tests and static tables.
func MustSet(h QualifierHierarchy, qs ...Qualifier) Set {
	s, err := NewSet(h, qs...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s Set) With(top, q Qualifier) Set {
	m := s.m
	if m == nil {
		m = immutable.NewSortedMap[Qualifier, Qualifier](qualifierComparer{})
	}
	return Set{m: m.Set(top, q)}
}

func (s Set) Without(top Qualifier) Set {
	if s.m == nil {
		return s
	}
	return Set{m: s.m.Delete(top)}
}

// Merge returns s with every hierarchy present in over replaced by over's qualifier
func (s Set) Merge(over Set) Set {
	merged := s
	for top, q := range over.All() {
		merged = merged.With(top, q)
	}
	return merged
}

func (s Set) Get(top Qualifier) (Qualifier, bool) {
	if s.m == nil {
		return "", false
	}
	return s.m.Get(top)
}

func (s Set) Len() int {
	if s.m == nil {
		return 0
	}
	return s.m.Len()
}

// All iterates over (top, qualifier) pairs in ascending order of top
func (s Set) All() iter.Seq2[Qualifier, Qualifier] {
	return func(yield func(Qualifier, Qualifier) bool) {
		if s.m == nil {
			return
		}
		itr := s.m.Iterator()
		for !itr.Done() {
			top, q, _ := itr.Next()
			if !yield(top, q) {
				return
			}
		}
	}
}

func (s Set) Qualifiers() []Qualifier {
	qs := make([]Qualifier, 0, s.Len())
	for _, q := range s.All() {
		qs = append(qs, q)
	}
	return qs
}

func (s Set) Equal(other Set) bool {
	if s.Len() != other.Len() {
		return false
	}
	for top, q := range s.All() {
		if otherQ, ok := other.Get(top); !ok || otherQ != q {
			return false
		}
	}
	return true
}

// String renders the set as space-separated annotations, e.g. "@NonNull @Untainted"
func (s Set) String() string {
	sb := strings.Builder{}
	for _, q := range s.All() {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(q.String())
	}
	return sb.String()
}
