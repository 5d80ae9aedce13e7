package atm

import (
	"fmt"
	"github.com/cottand/qlub/qual"
	"sync/atomic"
)

// NodeID identifies a Node for as long as the process lives. IDs are never reused.
type NodeID uint64

var lastID atomic.Uint64

func nextID() NodeID {
	return NodeID(lastID.Add(1))
}

// Node is an annotated type: a Shape plus the primary qualifiers of the outermost position,
// with nested positions (components, type arguments, bounds) being Nodes themselves.
//
// Nodes are treated as immutable once built and may be shared between trees.
// Node graphs can be cyclic through the bounds of a TypeVar.
type Node interface {
	ID() NodeID
	Kind() Kind
	Shape() Shape
	// Primary returns the qualifiers written on this position (at most one per hierarchy)
	Primary() qual.Set
	fmt.Stringer
	base() *Base
}

var (
	_ Node = (*Null)(nil)
	_ Node = (*Primitive)(nil)
	_ Node = (*Array)(nil)
	_ Node = (*Declared)(nil)
	_ Node = (*TypeVar)(nil)
	_ Node = (*Wildcard)(nil)
	_ Node = (*Intersection)(nil)
	_ Node = (*Union)(nil)
)

type Base struct {
	id    NodeID
	Quals qual.Set
}

func newBase(quals qual.Set) Base {
	return Base{id: nextID(), Quals: quals}
}

func (b *Base) ID() NodeID        { return b.id }
func (b *Base) Primary() qual.Set { return b.Quals }
func (b *Base) base() *Base       { return b }

// Null is the bottom type, the type of the null literal
type Null struct {
	Base
}

type Primitive struct {
	Base
	Name string
}

type Array struct {
	Base
	Component Node
}

type Declared struct {
	Base
	Name     string
	TypeArgs []Node
	// WasRaw marks a use of a generic class without explicit type arguments
	WasRaw bool
}

// TypeVar is a use of a type variable. Captured type variables (Decl.Captured) stand
// for the unknown type behind a wildcard after capture conversion.
type TypeVar struct {
	Base
	Decl  *TypeVarShape
	Upper Node
	Lower Node
}

type Wildcard struct {
	Base
	Extends Node
	Super   Node
}

type Intersection struct {
	Base
	Bounds []Node
}

type Union struct {
	Base
	Alternatives []Node
}

func NewNull(quals qual.Set) *Null {
	return &Null{Base: newBase(quals)}
}

func NewPrimitive(name string, quals qual.Set) *Primitive {
	return &Primitive{Base: newBase(quals), Name: name}
}

func NewArray(component Node, quals qual.Set) *Array {
	return &Array{Base: newBase(quals), Component: component}
}

func NewDeclared(name string, args []Node, wasRaw bool, quals qual.Set) *Declared {
	return &Declared{Base: newBase(quals), Name: name, TypeArgs: args, WasRaw: wasRaw}
}

// NewTypeVar returns a TypeVar without bounds. Callers set Upper and Lower afterwards,
// which is how self-referential bounds are tied back to the variable.
func NewTypeVar(decl *TypeVarShape, quals qual.Set) *TypeVar {
	return &TypeVar{Base: newBase(quals), Decl: decl}
}

func NewWildcard(extends, super Node, quals qual.Set) *Wildcard {
	return &Wildcard{Base: newBase(quals), Extends: extends, Super: super}
}

func NewIntersection(bounds []Node, quals qual.Set) *Intersection {
	return &Intersection{Base: newBase(quals), Bounds: bounds}
}

func NewUnion(alternatives []Node, quals qual.Set) *Union {
	return &Union{Base: newBase(quals), Alternatives: alternatives}
}

func (*Null) Kind() Kind         { return KindNull }
func (*Primitive) Kind() Kind    { return KindPrimitive }
func (*Array) Kind() Kind        { return KindArray }
func (*Declared) Kind() Kind     { return KindDeclared }
func (*TypeVar) Kind() Kind      { return KindTypeVar }
func (*Wildcard) Kind() Kind     { return KindWildcard }
func (*Intersection) Kind() Kind { return KindIntersection }
func (*Union) Kind() Kind        { return KindUnion }

func (t *TypeVar) IsCaptured() bool { return t.Decl.Captured }

func (*Null) Shape() Shape        { return &NullShape{} }
func (t *Primitive) Shape() Shape { return &PrimitiveShape{Name: t.Name} }
func (t *Array) Shape() Shape     { return &ArrayShape{Component: t.Component.Shape()} }
func (t *TypeVar) Shape() Shape   { return t.Decl }

func (t *Declared) Shape() Shape {
	return &DeclaredShape{Name: t.Name, Args: shapesOf(t.TypeArgs), Raw: t.WasRaw}
}

func (t *Wildcard) Shape() Shape {
	return &WildcardShape{Extends: t.Extends.Shape(), Super: t.Super.Shape()}
}

func (t *Intersection) Shape() Shape {
	return &IntersectionShape{Bounds: shapesOf(t.Bounds)}
}

func (t *Union) Shape() Shape {
	return &UnionShape{Alternatives: shapesOf(t.Alternatives)}
}

func shapesOf(nodes []Node) []Shape {
	shapes := make([]Shape, 0, len(nodes))
	for _, n := range nodes {
		shapes = append(shapes, n.Shape())
	}
	return shapes
}

// WithPrimary returns a shallow copy of n, with a fresh NodeID, whose primary qualifiers are quals.
// Nested nodes are shared with n.
func WithPrimary(n Node, quals qual.Set) Node {
	b := newBase(quals)
	switch n := n.(type) {
	case *Null:
		c := *n
		c.Base = b
		return &c
	case *Primitive:
		c := *n
		c.Base = b
		return &c
	case *Array:
		c := *n
		c.Base = b
		return &c
	case *Declared:
		c := *n
		c.Base = b
		return &c
	case *TypeVar:
		c := *n
		c.Base = b
		return &c
	case *Wildcard:
		c := *n
		c.Base = b
		return &c
	case *Intersection:
		c := *n
		c.Base = b
		return &c
	case *Union:
		c := *n
		c.Base = b
		return &c
	}
	panic(fmt.Sprintf("unexpected node %T", n))
}

// ReplaceAnnotation is WithPrimary with a single hierarchy changed
func ReplaceAnnotation(n Node, top, q qual.Qualifier) Node {
	return WithPrimary(n, n.Primary().With(top, q))
}

// DeepCopy copies every node reachable from n, preserving sharing and cycles
func DeepCopy(n Node) Node {
	return deepCopy(n, make(map[NodeID]Node))
}

// DeepCopyWithPrimary is DeepCopy, except that the copy of n carries quals.
// References to n from inside its own bounds resolve to the new root.
func DeepCopyWithPrimary(n Node, quals qual.Set) Node {
	c := deepCopy(n, make(map[NodeID]Node))
	c.base().Quals = quals
	return c
}

func deepCopy(n Node, copied map[NodeID]Node) Node {
	if n == nil {
		return nil
	}
	if c, ok := copied[n.ID()]; ok {
		return c
	}
	copyAll := func(nodes []Node) []Node {
		cs := make([]Node, 0, len(nodes))
		for _, node := range nodes {
			cs = append(cs, deepCopy(node, copied))
		}
		return cs
	}
	var c Node
	switch n := n.(type) {
	case *Null:
		c = NewNull(n.Quals)
	case *Primitive:
		c = NewPrimitive(n.Name, n.Quals)
	case *Array:
		c = NewArray(deepCopy(n.Component, copied), n.Quals)
	case *Declared:
		c = NewDeclared(n.Name, copyAll(n.TypeArgs), n.WasRaw, n.Quals)
	case *TypeVar:
		tv := NewTypeVar(n.Decl, n.Quals)
		// registered before the bounds so self-references resolve to the copy
		copied[n.ID()] = tv
		tv.Upper = deepCopy(n.Upper, copied)
		tv.Lower = deepCopy(n.Lower, copied)
		c = tv
	case *Wildcard:
		c = NewWildcard(deepCopy(n.Extends, copied), deepCopy(n.Super, copied), n.Quals)
	case *Intersection:
		c = NewIntersection(copyAll(n.Bounds), n.Quals)
	case *Union:
		c = NewUnion(copyAll(n.Alternatives), n.Quals)
	default:
		panic(fmt.Sprintf("unexpected node %T", n))
	}
	copied[n.ID()] = c
	return c
}
