// Package atm defines annotated type trees: the unqualified shape of a type together with
// the qualifiers attached to each of its positions.
package atm

import (
	"strings"
)

type Kind uint8

const (
	KindNull Kind = iota
	KindPrimitive
	KindArray
	KindDeclared
	KindTypeVar
	KindWildcard
	KindIntersection
	KindUnion
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "NULL"
	case KindPrimitive:
		return "PRIMITIVE"
	case KindArray:
		return "ARRAY"
	case KindDeclared:
		return "DECLARED"
	case KindTypeVar:
		return "TYPEVAR"
	case KindWildcard:
		return "WILDCARD"
	case KindIntersection:
		return "INTERSECTION"
	case KindUnion:
		return "UNION"
	default:
		return "UNKNOWN"
	}
}

// Shape is an underlying, unqualified type
type Shape interface {
	Kind() Kind
	String() string
	isShape()
}

var (
	_ Shape = (*NullShape)(nil)
	_ Shape = (*PrimitiveShape)(nil)
	_ Shape = (*ArrayShape)(nil)
	_ Shape = (*DeclaredShape)(nil)
	_ Shape = (*TypeVarShape)(nil)
	_ Shape = (*WildcardShape)(nil)
	_ Shape = (*IntersectionShape)(nil)
	_ Shape = (*UnionShape)(nil)
)

type NullShape struct{}

type PrimitiveShape struct {
	Name string
}

type ArrayShape struct {
	Component Shape
}

// DeclaredShape is a use of a class or interface.
// Raw marks a generic class used without type arguments; Args then holds erased arguments, if any.
type DeclaredShape struct {
	Name string
	Args []Shape
	Raw  bool
}

// TypeVarShape is the declaration of a type variable. Type variables are compared by identity,
// and their bounds may mention the variable itself.
type TypeVarShape struct {
	Name     string
	Upper    Shape
	Lower    Shape
	Captured bool
}

type WildcardShape struct {
	Extends Shape
	Super   Shape
}

type IntersectionShape struct {
	Bounds []Shape
}

type UnionShape struct {
	Alternatives []Shape
}

func (*NullShape) isShape()         {}
func (*PrimitiveShape) isShape()    {}
func (*ArrayShape) isShape()        {}
func (*DeclaredShape) isShape()     {}
func (*TypeVarShape) isShape()      {}
func (*WildcardShape) isShape()     {}
func (*IntersectionShape) isShape() {}
func (*UnionShape) isShape()        {}

func (*NullShape) Kind() Kind         { return KindNull }
func (*PrimitiveShape) Kind() Kind    { return KindPrimitive }
func (*ArrayShape) Kind() Kind        { return KindArray }
func (*DeclaredShape) Kind() Kind     { return KindDeclared }
func (*TypeVarShape) Kind() Kind      { return KindTypeVar }
func (*WildcardShape) Kind() Kind     { return KindWildcard }
func (*IntersectionShape) Kind() Kind { return KindIntersection }
func (*UnionShape) Kind() Kind        { return KindUnion }

func (*NullShape) String() string        { return "null" }
func (s *PrimitiveShape) String() string { return s.Name }
func (s *ArrayShape) String() string     { return s.Component.String() + "[]" }
func (s *TypeVarShape) String() string   { return s.Name }

func (s *DeclaredShape) String() string {
	if len(s.Args) == 0 {
		return s.Name
	}
	return s.Name + "<" + joinShapes(s.Args, ", ") + ">"
}

func (s *WildcardShape) String() string {
	if _, isNull := s.Super.(*NullShape); !isNull {
		return "? super " + s.Super.String()
	}
	return "? extends " + s.Extends.String()
}

func (s *IntersectionShape) String() string { return joinShapes(s.Bounds, " & ") }
func (s *UnionShape) String() string        { return joinShapes(s.Alternatives, " | ") }

func joinShapes(shapes []Shape, sep string) string {
	strs := make([]string, 0, len(shapes))
	for _, s := range shapes {
		strs = append(strs, s.String())
	}
	return strings.Join(strs, sep)
}

// SameShape reports whether a and b denote the same underlying type.
// Type variables are equal only to themselves, so SameShape always terminates.
func SameShape(a, b Shape) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch a := a.(type) {
	case *NullShape:
		return true
	case *PrimitiveShape:
		return a.Name == b.(*PrimitiveShape).Name
	case *ArrayShape:
		return SameShape(a.Component, b.(*ArrayShape).Component)
	case *DeclaredShape:
		b := b.(*DeclaredShape)
		return a.Name == b.Name && a.Raw == b.Raw && sameShapes(a.Args, b.Args)
	case *TypeVarShape:
		return a == b.(*TypeVarShape)
	case *WildcardShape:
		b := b.(*WildcardShape)
		return SameShape(a.Extends, b.Extends) && SameShape(a.Super, b.Super)
	case *IntersectionShape:
		return sameShapes(a.Bounds, b.(*IntersectionShape).Bounds)
	case *UnionShape:
		return sameShapes(a.Alternatives, b.(*UnionShape).Alternatives)
	}
	return false
}

func sameShapes(as, bs []Shape) bool {
	if len(as) != len(bs) {
		return false
	}
	for i := range as {
		if !SameShape(as[i], bs[i]) {
			return false
		}
	}
	return true
}
