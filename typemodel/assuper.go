package typemodel

import (
	"github.com/cottand/qlub/atm"
	"github.com/cottand/qlub/qual"
	"github.com/hashicorp/go-set/v3"
	"github.com/pkg/errors"
	"slices"
)

// ConversionError reports that a type cannot be viewed as the requested supertype
type ConversionError struct {
	From   atm.Node
	Target atm.Shape
	Reason string
}

func (e *ConversionError) Error() string {
	return "cannot view " + e.From.String() + " as " + e.Target.String() + ": " + e.Reason
}

var widening = map[string][]string{
	"byte":  {"short", "int", "long", "float", "double"},
	"short": {"int", "long", "float", "double"},
	"char":  {"int", "long", "float", "double"},
	"int":   {"long", "float", "double"},
	"long":  {"float", "double"},
	"float": {"double"},
}

// AsSuper re-expresses n in terms of target, a supertype of n's shape (or a raw use of
// one), keeping n's primary qualifiers and projecting its type arguments through the
// supertype chain. n is returned unchanged when it already has target's class.
//
// Type arguments are not converted: callers convert each argument against the
// corresponding argument of target themselves.
func (m *Model) AsSuper(n atm.Node, target atm.Shape) (atm.Node, error) {
	if n.Kind() == atm.KindNull {
		return n, nil
	}
	switch target := target.(type) {
	case *atm.WildcardShape:
		return m.asSuperWildcard(n, target)
	case *atm.TypeVarShape:
		if tv, ok := n.(*atm.TypeVar); ok && tv.Decl == target {
			return n, nil
		}
		return nil, &ConversionError{From: n, Target: target, Reason: "not the same type variable"}
	}

	switch n := n.(type) {
	case *atm.TypeVar:
		return m.asSuperThroughBound(n, n.Upper, target)
	case *atm.Wildcard:
		return m.asSuperThroughBound(n, n.Extends, target)
	case *atm.Primitive:
		t, ok := target.(*atm.PrimitiveShape)
		if !ok {
			return nil, &ConversionError{From: n, Target: target, Reason: "boxing is not supported"}
		}
		if t.Name == n.Name {
			return n, nil
		}
		if slices.Contains(widening[n.Name], t.Name) {
			return atm.NewPrimitive(t.Name, n.Quals), nil
		}
		return nil, &ConversionError{From: n, Target: target, Reason: "not a widening primitive conversion"}
	case *atm.Array:
		switch t := target.(type) {
		case *atm.ArrayShape:
			component, err := m.AsSuper(n.Component, t.Component)
			if err != nil {
				return nil, err
			}
			if component == n.Component {
				return n, nil
			}
			return atm.NewArray(component, n.Quals), nil
		case *atm.DeclaredShape:
			if t.Name != objectClass {
				return nil, &ConversionError{From: n, Target: target, Reason: "arrays only extend Object"}
			}
			return atm.NewDeclared(objectClass, nil, false, n.Quals), nil
		}
	case *atm.Declared:
		switch t := target.(type) {
		case *atm.DeclaredShape:
			return m.asSuperDeclared(n, t)
		case *atm.IntersectionShape:
			bounds := make([]atm.Node, 0, len(t.Bounds))
			for _, bound := range t.Bounds {
				b, err := m.AsSuper(n, bound)
				if err != nil {
					return nil, err
				}
				bounds = append(bounds, b)
			}
			return atm.NewIntersection(bounds, n.Quals), nil
		}
	case *atm.Intersection:
		if target.Kind() == atm.KindIntersection {
			return n, nil
		}
		for _, bound := range n.Bounds {
			if converted, err := m.AsSuper(bound, target); err == nil {
				return atm.WithPrimary(converted, converted.Primary().Merge(n.Quals)), nil
			}
		}
		return nil, &ConversionError{From: n, Target: target, Reason: "no bound is a subtype of the target"}
	case *atm.Union:
		if target.Kind() == atm.KindUnion {
			return n, nil
		}
		if len(n.Alternatives) == 0 {
			return nil, &ConversionError{From: n, Target: target, Reason: "empty union"}
		}
		converted, err := m.AsSuper(n.Alternatives[0], target)
		if err != nil {
			return nil, err
		}
		return atm.WithPrimary(converted, converted.Primary().Merge(n.Quals)), nil
	}
	return nil, &ConversionError{From: n, Target: target, Reason: "unrelated kinds " + n.Kind().String() + " and " + target.Kind().String()}
}

// asSuperThroughBound views a type variable or wildcard through its upper bound.
// A primary qualifier on the variable itself overrides the bound's.
func (m *Model) asSuperThroughBound(n, bound atm.Node, target atm.Shape) (atm.Node, error) {
	if bound == nil {
		return nil, &ConversionError{From: n, Target: target, Reason: "unresolved bound"}
	}
	converted, err := m.AsSuper(bound, target)
	if err != nil {
		return nil, err
	}
	if n.Primary().Len() == 0 {
		return converted, nil
	}
	return atm.WithPrimary(converted, converted.Primary().Merge(n.Primary())), nil
}

func (m *Model) asSuperDeclared(n *atm.Declared, target *atm.DeclaredShape) (atm.Node, error) {
	if n.Name == target.Name {
		return n, nil
	}
	path, ok := m.superPath(n.Name, target.Name)
	if !ok {
		return nil, &ConversionError{From: n, Target: target, Reason: n.Name + " does not extend " + target.Name}
	}
	var current atm.Node = n
	for _, super := range path {
		cur := current.(*atm.Declared)
		class := m.classes[cur.Name]
		superClass := m.classes[super.Name]
		if cur.WasRaw || len(cur.TypeArgs) != len(class.Params) {
			// supertypes of a raw type are erased
			if superClass.IsGeneric() {
				current = m.rawNode(superClass, super.Quals)
			} else {
				current = atm.NewDeclared(super.Name, nil, false, super.Quals)
			}
			continue
		}
		mapping := make(map[*atm.TypeVarShape]atm.Node, len(class.Params))
		for i, param := range class.Params {
			mapping[param.Decl] = cur.TypeArgs[i]
		}
		current = substitute(super, mapping)
	}
	return atm.WithPrimary(current, current.Primary().Merge(n.Quals)), nil
}

// superPath finds the shortest chain of declared supertypes leading from class `from` to class `to`
func (m *Model) superPath(from, to string) ([]*atm.Declared, bool) {
	type hop struct {
		prev  string
		super *atm.Declared
	}
	visited := map[string]hop{from: {}}
	queue := []string{from}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if name == to {
			var path []*atm.Declared
			for name != from {
				h := visited[name]
				path = append(path, h.super)
				name = h.prev
			}
			slices.Reverse(path)
			return path, true
		}
		class, ok := m.classes[name]
		if !ok {
			continue
		}
		for _, super := range class.Supers {
			if _, seen := visited[super.Name]; seen {
				continue
			}
			visited[super.Name] = hop{prev: name, super: super}
			queue = append(queue, super.Name)
		}
	}
	return nil, false
}

// ancestors returns every class name reachable through supertypes from name, including name itself
func (m *Model) ancestors(name string) *set.Set[string] {
	found := set.From([]string{name})
	queue := []string{name}
	for len(queue) > 0 {
		class, ok := m.classes[queue[0]]
		queue = queue[1:]
		if !ok {
			continue
		}
		for _, super := range class.Supers {
			if found.Insert(super.Name) {
				queue = append(queue, super.Name)
			}
		}
	}
	return found
}

// substitute replaces uses of the type variables in mapping. A qualifier written on a
// replaced use overrides the corresponding qualifier of the replacement.
func substitute(n atm.Node, mapping map[*atm.TypeVarShape]atm.Node) atm.Node {
	substituteAll := func(nodes []atm.Node) []atm.Node {
		substituted := make([]atm.Node, 0, len(nodes))
		for _, node := range nodes {
			substituted = append(substituted, substitute(node, mapping))
		}
		return substituted
	}
	switch n := n.(type) {
	case *atm.TypeVar:
		replacement, ok := mapping[n.Decl]
		if !ok {
			return n
		}
		if n.Primary().Len() > 0 {
			return atm.WithPrimary(replacement, replacement.Primary().Merge(n.Primary()))
		}
		return replacement
	case *atm.Declared:
		return atm.NewDeclared(n.Name, substituteAll(n.TypeArgs), n.WasRaw, n.Quals)
	case *atm.Array:
		return atm.NewArray(substitute(n.Component, mapping), n.Quals)
	case *atm.Wildcard:
		return atm.NewWildcard(substitute(n.Extends, mapping), substitute(n.Super, mapping), n.Quals)
	case *atm.Intersection:
		return atm.NewIntersection(substituteAll(n.Bounds), n.Quals)
	case *atm.Union:
		return atm.NewUnion(substituteAll(n.Alternatives), n.Quals)
	}
	return n
}

// asSuperWildcard views n as a type argument contained in the wildcard target.
// A concrete type argument X is contained in "? extends X super X"; the lower bound
// of an extends-only target collapses to null carrying X's qualifiers.
func (m *Model) asSuperWildcard(n atm.Node, target *atm.WildcardShape) (atm.Node, error) {
	var extendsSrc, superSrc atm.Node = n, n
	quals := qual.EmptySet()
	switch n := n.(type) {
	case *atm.Wildcard:
		extendsSrc, superSrc, quals = n.Extends, n.Super, n.Quals
	case *atm.TypeVar:
		if n.IsCaptured() {
			extendsSrc, superSrc, quals = n.Upper, n.Lower, n.Quals
		}
	}

	extends, err := m.AsSuper(extendsSrc, target.Extends)
	if err != nil {
		return nil, errors.Wrap(err, "in wildcard upper bound")
	}
	var super atm.Node
	switch {
	case target.Super.Kind() == atm.KindNull:
		if superSrc.Kind() == atm.KindNull {
			super = superSrc
		} else {
			super = atm.NewNull(atm.EffectiveLowerBoundAnnotations(m.quals, superSrc))
		}
	case superSrc.Kind() == atm.KindNull:
		super = superSrc
	default:
		super, err = m.AsSuper(superSrc, target.Super)
		if err != nil {
			// X contained in "? super Y" needs Y <: X: keep Y's shape with X's qualifiers
			created, createErr := m.CreateType(target.Super)
			if createErr != nil {
				return nil, errors.Wrap(createErr, "in wildcard lower bound")
			}
			super = atm.WithPrimary(created, superSrc.Primary())
		}
	}
	return atm.NewWildcard(extends, super, quals), nil
}
