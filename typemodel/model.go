// Package typemodel is a small host type model: a class table with generic classes and
// type variable declarations, an annotated type parser, and the services the least upper
// bound computation relies on (type creation, as-super conversion, plain least upper bound).
package typemodel

import (
	"fmt"
	"github.com/cottand/qlub/atm"
	"github.com/cottand/qlub/internal/log"
	"github.com/cottand/qlub/qual"
	"github.com/pkg/errors"
	"slices"
	"strings"
)

var logger = log.DefaultLogger.With("section", "typemodel")

const objectClass = "Object"

var primitives = []string{"boolean", "byte", "short", "char", "int", "long", "float", "double"}

// Class is a declared class or interface
type Class struct {
	Name string
	// Params are the canonical uses of the class' type parameters
	Params []*atm.TypeVar
	// Supers are the direct supertypes, written in terms of Params
	Supers []*atm.Declared
}

func (c *Class) IsGeneric() bool {
	return len(c.Params) > 0
}

// Model holds class and type variable declarations. It is not safe for concurrent
// modification, but once populated its read-only services (Parse, CreateType, AsSuper,
// PlainLeastUpperBound) may be used concurrently.
type Model struct {
	quals   qual.QualifierHierarchy
	classes map[string]*Class
	// order keeps declaration order for deterministic output
	order    []string
	typeVars map[string]*atm.TypeVar
	// canonical maps every known declaration to its unannotated use
	canonical map[*atm.TypeVarShape]*atm.TypeVar
}

// New returns a Model whose only class is Object
func New(quals qual.QualifierHierarchy) *Model {
	m := &Model{
		quals:     quals,
		classes:   make(map[string]*Class),
		typeVars:  make(map[string]*atm.TypeVar),
		canonical: make(map[*atm.TypeVarShape]*atm.TypeVar),
	}
	m.classes[objectClass] = &Class{Name: objectClass}
	m.order = append(m.order, objectClass)
	return m
}

func (m *Model) Qualifiers() qual.QualifierHierarchy {
	return m.quals
}

func (m *Model) Class(name string) (*Class, bool) {
	c, ok := m.classes[name]
	return c, ok
}

func (m *Model) Classes() []*Class {
	classes := make([]*Class, 0, len(m.order))
	for _, name := range m.order {
		classes = append(classes, m.classes[name])
	}
	return classes
}

func isPrimitive(name string) bool {
	return slices.Contains(primitives, name)
}

// AddClass declares a class. Each param is either a name ("E") or a bounded
// declaration ("E extends Comparable<E>"). Supertypes may mention the params and the
// class itself. A class declared without supertypes extends Object.
func (m *Model) AddClass(name string, params []string, supers ...string) (err error) {
	if _, exists := m.classes[name]; exists || isPrimitive(name) || name == "null" {
		return errors.Errorf("type %s is already declared", name)
	}
	class := &Class{Name: name}
	m.classes[name] = class
	m.order = append(m.order, name)
	defer func() {
		if err != nil {
			delete(m.classes, name)
			m.order = m.order[:len(m.order)-1]
		}
	}()

	scope := make(map[string]*atm.TypeVar, len(params))
	bounds := make([]string, len(params))
	for i, param := range params {
		paramName, bound, _ := strings.Cut(param, " extends ")
		paramName = strings.TrimSpace(paramName)
		if _, dup := scope[paramName]; dup {
			return errors.Errorf("duplicate type parameter %s in class %s", paramName, name)
		}
		tv := m.newCanonicalTypeVar(paramName, false)
		scope[paramName] = tv
		class.Params = append(class.Params, tv)
		bounds[i] = strings.TrimSpace(bound)
	}
	p := newParser(m, scope)
	for i, tv := range class.Params {
		if err := p.declareBounds(tv, bounds[i], ""); err != nil {
			return errors.Wrapf(err, "in type parameter %s of class %s", tv.Decl.Name, name)
		}
	}

	if len(supers) == 0 {
		supers = []string{objectClass}
	}
	for _, super := range supers {
		node, err := p.parse(super)
		if err != nil {
			return errors.Wrapf(err, "in supertype of class %s", name)
		}
		declared, ok := node.(*atm.Declared)
		if !ok {
			return errors.Errorf("supertype %s of class %s is not a class type", super, name)
		}
		class.Supers = append(class.Supers, declared)
	}
	if err := p.finish(); err != nil {
		return errors.Wrapf(err, "in class %s", name)
	}
	logger.Debug("declared class", "name", name, "params", len(params), "supers", supers)
	return nil
}

// DeclareTypeVar declares a type variable usable in every type parsed by the model.
// Empty bounds default to Object and null. Bounds may mention the variable itself.
func (m *Model) DeclareTypeVar(name, upper, lower string, captured bool) (err error) {
	if _, exists := m.typeVars[name]; exists {
		return errors.Errorf("type variable %s is already declared", name)
	}
	tv := m.newCanonicalTypeVar(name, captured)
	m.typeVars[name] = tv
	defer func() {
		if err != nil {
			delete(m.typeVars, name)
		}
	}()
	p := newParser(m, nil)
	if err := p.declareBounds(tv, upper, lower); err != nil {
		return errors.Wrapf(err, "in bounds of type variable %s", name)
	}
	if err := p.finish(); err != nil {
		return errors.Wrapf(err, "in bounds of type variable %s", name)
	}
	return nil
}

// TypeVar returns the canonical (unannotated) use of a declared type variable
func (m *Model) TypeVar(name string) (*atm.TypeVar, bool) {
	tv, ok := m.typeVars[name]
	return tv, ok
}

func (m *Model) newCanonicalTypeVar(name string, captured bool) *atm.TypeVar {
	decl := &atm.TypeVarShape{Name: name, Captured: captured}
	tv := atm.NewTypeVar(decl, qual.EmptySet())
	m.canonical[decl] = tv
	return tv
}

// Parse parses an annotated type, e.g. "@Nullable List<? extends @NonNull Number>".
// Positions left unannotated take the default qualifier of each hierarchy, except type
// variables and wildcards, whose qualifiers come from their bounds, and null, which
// defaults to the bottom qualifier.
func (m *Model) Parse(src string) (atm.Node, error) {
	p := newParser(m, nil)
	node, err := p.parse(src)
	if err != nil {
		return nil, err
	}
	if err := p.finish(); err != nil {
		return nil, err
	}
	return node, nil
}

func (m *Model) MustParse(src string) atm.Node {
	n, err := m.Parse(src)
	if err != nil {
		panic(fmt.Sprintf("parse %q: %v", src, err))
	}
	return n
}

// ParseShape parses src and discards its qualifiers
func (m *Model) ParseShape(src string) (atm.Shape, error) {
	n, err := m.Parse(src)
	if err != nil {
		return nil, err
	}
	return n.Shape(), nil
}

// defaults returns quals completed with the default qualifier of every hierarchy it lacks
func (m *Model) defaults(quals qual.Set) qual.Set {
	for _, top := range m.quals.TopAnnotations() {
		if _, ok := quals.Get(top); !ok {
			quals = quals.With(top, m.quals.DefaultAnnotation(top))
		}
	}
	return quals
}

// bottoms returns quals completed with the bottom qualifier of every hierarchy it lacks
func (m *Model) bottoms(quals qual.Set) qual.Set {
	for _, top := range m.quals.TopAnnotations() {
		if _, ok := quals.Get(top); !ok {
			quals = quals.With(top, m.quals.BottomAnnotation(top))
		}
	}
	return quals
}
