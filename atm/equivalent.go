package atm

import "github.com/cottand/qlub/util"

// Equivalent reports whether a and b have the same shape and the same qualifiers at every
// position, following type variable bounds. Node identity is ignored.
func Equivalent(a, b Node) bool {
	return equivalent(a, b, make(map[util.Pair[NodeID, NodeID]]bool))
}

func equivalent(a, b Node, assumed map[util.Pair[NodeID, NodeID]]bool) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() || !a.Primary().Equal(b.Primary()) {
		return false
	}
	allEquivalent := func(as, bs []Node) bool {
		if len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !equivalent(as[i], bs[i], assumed) {
				return false
			}
		}
		return true
	}
	switch a := a.(type) {
	case *Null:
		return true
	case *Primitive:
		return a.Name == b.(*Primitive).Name
	case *Array:
		return equivalent(a.Component, b.(*Array).Component, assumed)
	case *Declared:
		b := b.(*Declared)
		return a.Name == b.Name && a.WasRaw == b.WasRaw && allEquivalent(a.TypeArgs, b.TypeArgs)
	case *TypeVar:
		b := b.(*TypeVar)
		if a.Decl != b.Decl {
			return false
		}
		key := util.NewPair(a.ID(), b.ID())
		if assumed[key] {
			return true
		}
		assumed[key] = true
		return equivalent(a.Upper, b.Upper, assumed) && equivalent(a.Lower, b.Lower, assumed)
	case *Wildcard:
		b := b.(*Wildcard)
		return equivalent(a.Extends, b.Extends, assumed) && equivalent(a.Super, b.Super, assumed)
	case *Intersection:
		return allEquivalent(a.Bounds, b.(*Intersection).Bounds)
	case *Union:
		return allEquivalent(a.Alternatives, b.(*Union).Alternatives)
	}
	return false
}
