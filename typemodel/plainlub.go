package typemodel

import (
	"github.com/cottand/qlub/atm"
	"github.com/hashicorp/go-set/v3"
	"github.com/pkg/errors"
	"slices"
)

// maxArgDepth bounds how deep PlainLeastUpperBound descends into type arguments.
// Past it, differing arguments become unbounded wildcards, which keeps the lub of
// F-bounded classes (Integer and String are both Comparable of themselves) finite.
const maxArgDepth = 3

var numericOrder = []string{"byte", "short", "char", "int", "long", "float", "double"}

// PlainLeastUpperBound computes the least upper bound of two unqualified types.
//
// Classes are joined through their erased common ancestors: a single minimal ancestor is
// parameterised by projecting both inputs onto it, several give an intersection. Type
// arguments that differ are replaced by "? extends" the lub of their upper bounds.
func (m *Model) PlainLeastUpperBound(a, b atm.Shape) (atm.Shape, error) {
	s, err := m.plainLub(a, b, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "lub of %v and %v", a, b)
	}
	return s, nil
}

func (m *Model) plainLub(a, b atm.Shape, depth int) (atm.Shape, error) {
	if a == nil || b == nil {
		return nil, errors.New("missing shape")
	}
	if atm.SameShape(a, b) {
		return a, nil
	}
	if a.Kind() == atm.KindNull {
		return b, nil
	}
	if b.Kind() == atm.KindNull {
		return a, nil
	}
	object := &atm.DeclaredShape{Name: objectClass}

	switch t := a.(type) {
	case *atm.TypeVarShape:
		return m.plainLub(m.upperOf(t), b, depth)
	case *atm.WildcardShape:
		return m.plainLub(t.Extends, b, depth)
	}
	switch t := b.(type) {
	case *atm.TypeVarShape:
		return m.plainLub(a, m.upperOf(t), depth)
	case *atm.WildcardShape:
		return m.plainLub(a, t.Extends, depth)
	}

	switch a := a.(type) {
	case *atm.PrimitiveShape:
		b, ok := b.(*atm.PrimitiveShape)
		if !ok {
			return nil, errors.Errorf("no least upper bound of primitive %v and %v", a, b)
		}
		return widenPrimitives(a, b)
	case *atm.ArrayShape:
		b, ok := b.(*atm.ArrayShape)
		if !ok {
			return object, nil
		}
		if a.Component.Kind() == atm.KindPrimitive || b.Component.Kind() == atm.KindPrimitive {
			// int[] and long[] are unrelated
			return object, nil
		}
		component, err := m.plainLub(a.Component, b.Component, depth)
		if err != nil {
			return nil, err
		}
		return &atm.ArrayShape{Component: component}, nil
	case *atm.DeclaredShape:
		switch b := b.(type) {
		case *atm.DeclaredShape:
			return m.plainLubDeclared(a, b, depth)
		case *atm.IntersectionShape, *atm.UnionShape:
			return m.plainLub(b, a, depth)
		case *atm.PrimitiveShape:
			return nil, errors.Errorf("no least upper bound of %v and primitive %v", a, b)
		default:
			return object, nil
		}
	case *atm.IntersectionShape:
		if len(a.Bounds) == 0 {
			return object, nil
		}
		return m.plainLub(a.Bounds[0], b, depth)
	case *atm.UnionShape:
		if len(a.Alternatives) == 0 {
			return object, nil
		}
		acc := b
		for _, alt := range a.Alternatives {
			var err error
			if acc, err = m.plainLub(alt, acc, depth); err != nil {
				return nil, err
			}
		}
		return acc, nil
	}
	return nil, errors.Errorf("no least upper bound of %v and %v", a, b)
}

func (m *Model) upperOf(t *atm.TypeVarShape) atm.Shape {
	if t.Upper == nil {
		return &atm.DeclaredShape{Name: objectClass}
	}
	return t.Upper
}

func widenPrimitives(a, b *atm.PrimitiveShape) (atm.Shape, error) {
	if a.Name == b.Name {
		return a, nil
	}
	if slices.Contains(widening[a.Name], b.Name) {
		return b, nil
	}
	if slices.Contains(widening[b.Name], a.Name) {
		return a, nil
	}
	for _, candidate := range numericOrder {
		if slices.Contains(widening[a.Name], candidate) && slices.Contains(widening[b.Name], candidate) {
			return &atm.PrimitiveShape{Name: candidate}, nil
		}
	}
	return nil, errors.Errorf("no least upper bound of primitives %v and %v", a, b)
}

func (m *Model) plainLubDeclared(a, b *atm.DeclaredShape, depth int) (atm.Shape, error) {
	if a.Name == b.Name {
		return m.plainLubSameClass(a, b, depth)
	}
	candidates := m.minimalCommonAncestors(a.Name, b.Name)
	lubs := make([]atm.Shape, 0, len(candidates))
	for _, candidate := range candidates {
		superA, err := m.superShape(a, candidate)
		if err != nil {
			return nil, err
		}
		superB, err := m.superShape(b, candidate)
		if err != nil {
			return nil, err
		}
		lub, err := m.plainLubSameClass(superA, superB, depth)
		if err != nil {
			return nil, err
		}
		lubs = append(lubs, lub)
	}
	if len(lubs) == 1 {
		return lubs[0], nil
	}
	return &atm.IntersectionShape{Bounds: lubs}, nil
}

func (m *Model) plainLubSameClass(a, b *atm.DeclaredShape, depth int) (atm.Shape, error) {
	class, ok := m.classes[a.Name]
	if !ok {
		return nil, errors.Errorf("unknown class %s", a.Name)
	}
	if a.Raw || b.Raw || len(a.Args) != len(b.Args) {
		return &atm.DeclaredShape{Name: a.Name, Raw: class.IsGeneric()}, nil
	}
	args := make([]atm.Shape, 0, len(a.Args))
	for i := range a.Args {
		if atm.SameShape(a.Args[i], b.Args[i]) {
			args = append(args, a.Args[i])
			continue
		}
		var extends atm.Shape = &atm.DeclaredShape{Name: objectClass}
		if depth < maxArgDepth {
			var err error
			extends, err = m.plainLub(argUpper(a.Args[i]), argUpper(b.Args[i]), depth+1)
			if err != nil {
				return nil, err
			}
		}
		args = append(args, &atm.WildcardShape{Extends: extends, Super: &atm.NullShape{}})
	}
	return &atm.DeclaredShape{Name: a.Name, Args: args}, nil
}

// argUpper is the upper bound of a type argument. "? super X" is bounded by Object only.
func argUpper(arg atm.Shape) atm.Shape {
	w, ok := arg.(*atm.WildcardShape)
	if !ok {
		return arg
	}
	if w.Super != nil && w.Super.Kind() != atm.KindNull {
		return &atm.DeclaredShape{Name: objectClass}
	}
	return w.Extends
}

// minimalCommonAncestors returns the common ancestors of both classes that are not a
// proper ancestor of another common ancestor, in name order
func (m *Model) minimalCommonAncestors(a, b string) []string {
	ofA, ofB := m.ancestors(a), m.ancestors(b)
	common := set.New[string](ofA.Size())
	for name := range ofA.Items() {
		if ofB.Contains(name) {
			common.Insert(name)
		}
	}
	minimal := make([]string, 0, common.Size())
	for name := range common.Items() {
		dominated := false
		for other := range common.Items() {
			if other != name && m.ancestors(other).Contains(name) {
				dominated = true
				break
			}
		}
		if !dominated {
			minimal = append(minimal, name)
		}
	}
	slices.Sort(minimal)
	return minimal
}

// superShape projects a onto its ancestor class target, substituting type arguments along the way
func (m *Model) superShape(a *atm.DeclaredShape, target string) (*atm.DeclaredShape, error) {
	if a.Name == target {
		return a, nil
	}
	path, ok := m.superPath(a.Name, target)
	if !ok {
		return nil, errors.Errorf("%s does not extend %s", a.Name, target)
	}
	current := a
	for _, super := range path {
		class := m.classes[current.Name]
		superClass := m.classes[super.Name]
		if current.Raw || len(current.Args) != len(class.Params) {
			current = &atm.DeclaredShape{Name: super.Name, Raw: superClass.IsGeneric()}
			continue
		}
		mapping := make(map[*atm.TypeVarShape]atm.Shape, len(class.Params))
		for i, param := range class.Params {
			mapping[param.Decl] = current.Args[i]
		}
		current = substituteShape(super.Shape(), mapping).(*atm.DeclaredShape)
	}
	return current, nil
}

func substituteShape(s atm.Shape, mapping map[*atm.TypeVarShape]atm.Shape) atm.Shape {
	substituteAll := func(shapes []atm.Shape) []atm.Shape {
		substituted := make([]atm.Shape, 0, len(shapes))
		for _, shape := range shapes {
			substituted = append(substituted, substituteShape(shape, mapping))
		}
		return substituted
	}
	switch s := s.(type) {
	case *atm.TypeVarShape:
		if replacement, ok := mapping[s]; ok {
			return replacement
		}
		return s
	case *atm.DeclaredShape:
		return &atm.DeclaredShape{Name: s.Name, Args: substituteAll(s.Args), Raw: s.Raw}
	case *atm.ArrayShape:
		return &atm.ArrayShape{Component: substituteShape(s.Component, mapping)}
	case *atm.WildcardShape:
		return &atm.WildcardShape{Extends: substituteShape(s.Extends, mapping), Super: substituteShape(s.Super, mapping)}
	case *atm.IntersectionShape:
		return &atm.IntersectionShape{Bounds: substituteAll(s.Bounds)}
	case *atm.UnionShape:
		return &atm.UnionShape{Alternatives: substituteAll(s.Alternatives)}
	}
	return s
}
