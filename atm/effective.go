package atm

import "github.com/cottand/qlub/qual"

// EffectiveAnnotationInHierarchy returns the qualifier that bounds n from above in the
// hierarchy of top. For type variables and wildcards without a primary qualifier this is
// the qualifier of their (transitive) upper bound.
func EffectiveAnnotationInHierarchy(n Node, top qual.Qualifier) (qual.Qualifier, bool) {
	seen := make(map[NodeID]bool)
	for n != nil && !seen[n.ID()] {
		if q, ok := n.Primary().Get(top); ok {
			return q, true
		}
		seen[n.ID()] = true
		switch t := n.(type) {
		case *TypeVar:
			n = t.Upper
		case *Wildcard:
			n = t.Extends
		case *Intersection:
			if len(t.Bounds) == 0 {
				return "", false
			}
			n = t.Bounds[0]
		default:
			return "", false
		}
	}
	return "", false
}

// EffectiveLowerBoundAnnotations returns, for every hierarchy of h, the qualifier that bounds
// n from below: the primary qualifier if there is one, otherwise that of the (transitive)
// lower bound, otherwise the bottom of the hierarchy.
func EffectiveLowerBoundAnnotations(h qual.QualifierHierarchy, n Node) qual.Set {
	lowers := qual.EmptySet()
	for _, top := range h.TopAnnotations() {
		lower, ok := effectiveLowerBound(n, top)
		if !ok {
			lower = h.BottomAnnotation(top)
		}
		lowers = lowers.With(top, lower)
	}
	return lowers
}

func effectiveLowerBound(n Node, top qual.Qualifier) (qual.Qualifier, bool) {
	seen := make(map[NodeID]bool)
	for n != nil && !seen[n.ID()] {
		if q, ok := n.Primary().Get(top); ok {
			return q, true
		}
		seen[n.ID()] = true
		switch t := n.(type) {
		case *TypeVar:
			n = t.Lower
		case *Wildcard:
			n = t.Super
		default:
			return "", false
		}
	}
	return "", false
}
