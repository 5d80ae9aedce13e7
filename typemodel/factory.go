package typemodel

import (
	"github.com/cottand/qlub/atm"
	"github.com/cottand/qlub/qual"
	"github.com/pkg/errors"
)

// CreateType builds an annotated type of shape s that carries no primary qualifiers.
// Known type variables map to their canonical use, which keeps the declared bounds.
func (m *Model) CreateType(s atm.Shape) (atm.Node, error) {
	return m.createType(s, make(map[*atm.TypeVarShape]*atm.TypeVar))
}

func (m *Model) createType(s atm.Shape, vars map[*atm.TypeVarShape]*atm.TypeVar) (atm.Node, error) {
	none := qual.EmptySet()
	createAll := func(shapes []atm.Shape) ([]atm.Node, error) {
		nodes := make([]atm.Node, 0, len(shapes))
		for _, shape := range shapes {
			n, err := m.createType(shape, vars)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, n)
		}
		return nodes, nil
	}

	switch s := s.(type) {
	case *atm.NullShape:
		return atm.NewNull(none), nil
	case *atm.PrimitiveShape:
		if !isPrimitive(s.Name) {
			return nil, errors.Errorf("unknown primitive type %s", s.Name)
		}
		return atm.NewPrimitive(s.Name, none), nil
	case *atm.ArrayShape:
		component, err := m.createType(s.Component, vars)
		if err != nil {
			return nil, err
		}
		return atm.NewArray(component, none), nil
	case *atm.DeclaredShape:
		class, ok := m.classes[s.Name]
		if !ok {
			return nil, errors.Errorf("unknown class %s", s.Name)
		}
		if s.Raw && len(s.Args) == 0 && class.IsGeneric() {
			return m.rawNode(class, none), nil
		}
		if !s.Raw && len(s.Args) != len(class.Params) {
			return nil, errors.Errorf("class %s takes %d type arguments, found %d", s.Name, len(class.Params), len(s.Args))
		}
		args, err := createAll(s.Args)
		if err != nil {
			return nil, err
		}
		return atm.NewDeclared(s.Name, args, s.Raw, none), nil
	case *atm.TypeVarShape:
		if canonical, ok := m.canonical[s]; ok {
			return canonical, nil
		}
		if tv, ok := vars[s]; ok {
			return tv, nil
		}
		tv := atm.NewTypeVar(s, none)
		vars[s] = tv
		upper, err := m.createType(s.Upper, vars)
		if err != nil {
			return nil, err
		}
		lower, err := m.createType(s.Lower, vars)
		if err != nil {
			return nil, err
		}
		tv.Upper, tv.Lower = upper, lower
		return tv, nil
	case *atm.WildcardShape:
		extends, err := m.createType(s.Extends, vars)
		if err != nil {
			return nil, err
		}
		super, err := m.createType(s.Super, vars)
		if err != nil {
			return nil, err
		}
		return atm.NewWildcard(extends, super, none), nil
	case *atm.IntersectionShape:
		bounds, err := createAll(s.Bounds)
		if err != nil {
			return nil, err
		}
		return atm.NewIntersection(bounds, none), nil
	case *atm.UnionShape:
		alternatives, err := createAll(s.Alternatives)
		if err != nil {
			return nil, err
		}
		return atm.NewUnion(alternatives, none), nil
	case nil:
		return nil, errors.New("cannot create a type without a shape")
	}
	return nil, errors.Errorf("unexpected shape %T", s)
}

// rawNode is a use of a generic class without type arguments. Its type arguments are the
// erasures of the class' type parameters, with default qualifiers.
func (m *Model) rawNode(class *Class, quals qual.Set) *atm.Declared {
	args := make([]atm.Node, 0, len(class.Params))
	for _, param := range class.Params {
		args = append(args, m.erasedNode(param.Decl.Upper))
	}
	return atm.NewDeclared(class.Name, args, true, quals)
}

// erasedNode is the erasure of s with default qualifiers. Generic classes become raw uses
// without type arguments, so this never recurses into a class' own parameters.
func (m *Model) erasedNode(s atm.Shape) atm.Node {
	quals := m.defaults(qual.EmptySet())
	switch erased := m.erasure(s).(type) {
	case *atm.DeclaredShape:
		return atm.NewDeclared(erased.Name, nil, erased.Raw, quals)
	case *atm.ArrayShape:
		return atm.NewArray(m.erasedNode(erased.Component), quals)
	case *atm.PrimitiveShape:
		return atm.NewPrimitive(erased.Name, quals)
	default:
		return atm.NewDeclared(objectClass, nil, false, quals)
	}
}

// erasure removes type arguments and replaces type variables by the erasure of their upper bound
func (m *Model) erasure(s atm.Shape) atm.Shape {
	seen := make(map[*atm.TypeVarShape]bool)
	for {
		switch t := s.(type) {
		case nil:
			return &atm.DeclaredShape{Name: objectClass}
		case *atm.DeclaredShape:
			class, ok := m.classes[t.Name]
			return &atm.DeclaredShape{Name: t.Name, Raw: ok && class.IsGeneric()}
		case *atm.TypeVarShape:
			if seen[t] {
				return &atm.DeclaredShape{Name: objectClass}
			}
			seen[t] = true
			s = t.Upper
		case *atm.WildcardShape:
			s = t.Extends
		case *atm.IntersectionShape:
			if len(t.Bounds) == 0 {
				return &atm.DeclaredShape{Name: objectClass}
			}
			s = t.Bounds[0]
		case *atm.UnionShape:
			return &atm.DeclaredShape{Name: objectClass}
		case *atm.ArrayShape:
			return &atm.ArrayShape{Component: m.erasure(t.Component)}
		default:
			return s
		}
	}
}
