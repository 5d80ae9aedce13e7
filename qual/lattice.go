package qual

import (
	"fmt"
	"github.com/cottand/qlub/util"
	"github.com/hashicorp/go-set/v3"
	"slices"
)

// Lattice is a single finite qualifier hierarchy: a partial order with a unique top,
// a unique bottom and a unique least upper bound for every pair of qualifiers.
//
// A Lattice is immutable once built and safe for concurrent use.
type Lattice struct {
	name    string
	top     Qualifier
	bottom  Qualifier
	dflt    Qualifier
	members []Qualifier
	// ancestors is reflexive: every qualifier is its own ancestor
	ancestors map[Qualifier]*set.Set[Qualifier]
	joins     map[util.Pair[Qualifier, Qualifier]]Qualifier
}

// NewLattice builds a Lattice out of direct supertype edges: supertypes[q] lists the qualifiers
// directly above q. Qualifiers only mentioned as supertypes are members too.
//
// The default qualifier (used for unannotated type uses) is the top qualifier.
func NewLattice(name string, supertypes map[Qualifier][]Qualifier) (*Lattice, error) {
	memberSet := set.New[Qualifier](len(supertypes))
	for q, supers := range supertypes {
		memberSet.Insert(q)
		for _, super := range supers {
			memberSet.Insert(super)
		}
	}
	if memberSet.Size() == 0 {
		return nil, &MalformedLatticeError{Lattice: name, Reason: "no qualifiers"}
	}
	l := &Lattice{
		name:      name,
		members:   util.SortedSlice(memberSet),
		ancestors: make(map[Qualifier]*set.Set[Qualifier], memberSet.Size()),
		joins:     make(map[util.Pair[Qualifier, Qualifier]]Qualifier),
	}
	for _, q := range l.members {
		l.ancestors[q] = closure(q, supertypes)
	}
	if err := l.validate(); err != nil {
		return nil, err
	}
	l.dflt = l.top
	return l, nil
}

// closure walks supertype edges depth-first from q
func closure(q Qualifier, supertypes map[Qualifier][]Qualifier) *set.Set[Qualifier] {
	seen := set.From([]Qualifier{q})
	stack := util.Stack[Qualifier]{}
	stack.Push(q)
	for next, ok := stack.Pop(); ok; next, ok = stack.Pop() {
		for _, super := range supertypes[next] {
			if seen.Insert(super) {
				stack.Push(super)
			}
		}
	}
	return seen
}

func (l *Lattice) validate() error {
	for _, a := range l.members {
		for _, b := range l.members {
			if a != b && l.IsSubtype(a, b) && l.IsSubtype(b, a) {
				return &MalformedLatticeError{Lattice: l.name, Reason: fmt.Sprintf("cycle between %v and %v", a, b)}
			}
		}
	}
	var tops, bottoms []Qualifier
	for _, q := range l.members {
		if l.ancestors[q].Size() == 1 {
			tops = append(tops, q)
		}
		if l.ancestors[q].Size() == len(l.members) {
			bottoms = append(bottoms, q)
		}
	}
	if len(tops) != 1 {
		return &MalformedLatticeError{Lattice: l.name, Reason: fmt.Sprintf("expected exactly one top qualifier, found %v", tops)}
	}
	if len(bottoms) != 1 {
		return &MalformedLatticeError{Lattice: l.name, Reason: "expected exactly one bottom qualifier"}
	}
	l.top, l.bottom = tops[0], bottoms[0]

	for i, a := range l.members {
		for _, b := range l.members[i:] {
			var candidates []Qualifier
			for _, q := range l.members {
				if l.IsSubtype(a, q) && l.IsSubtype(b, q) {
					candidates = append(candidates, q)
				}
			}
			minimal := l.minimal(candidates)
			if len(minimal) != 1 {
				return &MalformedLatticeError{
					Lattice: l.name,
					Reason:  fmt.Sprintf("%v and %v have no unique least upper bound (candidates %v)", a, b, minimal),
				}
			}
			l.joins[util.NewPair(a, b)] = minimal[0]
			l.joins[util.NewPair(b, a)] = minimal[0]
		}
	}
	return nil
}

// minimal keeps the candidates that have no other candidate below them
func (l *Lattice) minimal(candidates []Qualifier) []Qualifier {
	var minimal []Qualifier
	for _, c := range candidates {
		if !slices.ContainsFunc(candidates, func(d Qualifier) bool { return d != c && l.IsSubtype(d, c) }) {
			minimal = append(minimal, c)
		}
	}
	slices.Sort(minimal)
	return minimal
}

// maximal keeps the candidates that have no other candidate above them
func (l *Lattice) maximal(candidates []Qualifier) []Qualifier {
	var maximal []Qualifier
	for _, c := range candidates {
		if !slices.ContainsFunc(candidates, func(d Qualifier) bool { return d != c && l.IsSubtype(c, d) }) {
			maximal = append(maximal, c)
		}
	}
	slices.Sort(maximal)
	return maximal
}

func (l *Lattice) Name() string         { return l.name }
func (l *Lattice) Top() Qualifier       { return l.top }
func (l *Lattice) Bottom() Qualifier    { return l.bottom }
func (l *Lattice) Default() Qualifier   { return l.dflt }
func (l *Lattice) Members() []Qualifier { return slices.Clone(l.members) }

func (l *Lattice) Contains(q Qualifier) bool {
	_, ok := l.ancestors[q]
	return ok
}

// WithDefault returns a copy of l whose default qualifier is q
func (l *Lattice) WithDefault(q Qualifier) (*Lattice, error) {
	if !l.Contains(q) {
		return nil, &UnknownQualifierError{Qualifier: q}
	}
	copied := *l
	copied.dflt = q
	return &copied, nil
}

// IsSubtype reports whether sub is below or equal to super
func (l *Lattice) IsSubtype(sub, super Qualifier) bool {
	ancestors, ok := l.ancestors[sub]
	return ok && ancestors.Contains(super)
}

func (l *Lattice) Join(a, b Qualifier) (Qualifier, bool) {
	j, ok := l.joins[util.NewPair(a, b)]
	return j, ok
}

// Meet returns the greatest lower bound of a and b, if there is a unique one
func (l *Lattice) Meet(a, b Qualifier) (Qualifier, bool) {
	if !l.Contains(a) || !l.Contains(b) {
		return "", false
	}
	var lower []Qualifier
	for _, q := range l.members {
		if l.IsSubtype(q, a) && l.IsSubtype(q, b) {
			lower = append(lower, q)
		}
	}
	maximal := l.maximal(lower)
	if len(maximal) != 1 {
		return "", false
	}
	return maximal[0], true
}

// Edges returns the reflexive-transitive supertype relation as a map, mostly useful for printing
func (l *Lattice) Edges() map[Qualifier][]Qualifier {
	edges := make(map[Qualifier][]Qualifier, len(l.members))
	for q, ancestors := range l.ancestors {
		edges[q] = util.SortedSlice(ancestors)
	}
	return edges
}
