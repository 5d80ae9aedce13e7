// Package lub computes the least upper bound of two annotated types: a type of a given
// target shape whose qualifiers, at every position, are the join of the qualifiers the two
// inputs carry at that position.
package lub

import (
	"github.com/cottand/qlub/atm"
	"github.com/cottand/qlub/internal/log"
	"github.com/cottand/qlub/qual"
	"github.com/cottand/qlub/util"
	"github.com/pkg/errors"
	"log/slog"
)

var logger = log.DefaultLogger.With("section", "lub")

const defaultDepthLimit = 250

// TypeModel provides the unqualified type operations the join relies on
type TypeModel interface {
	// AsSuper re-expresses n so that its shape is target, a supertype of n's shape
	AsSuper(n atm.Node, target atm.Shape) (atm.Node, error)
	// PlainLeastUpperBound is the least upper bound of two shapes, ignoring qualifiers
	PlainLeastUpperBound(a, b atm.Shape) (atm.Shape, error)
}

// Settings tunes a Lubber, the zero value uses the defaults
type Settings struct {
	// DepthLimit caps the recursion depth of a single LeastUpperBound call.
	// Zero means the default of 250.
	DepthLimit int
	// Logger defaults to the lub section of the package logger
	Logger *slog.Logger
}

// Lubber computes least upper bounds. It holds no per-call state, so it is safe for
// concurrent use as long as its TypeModel and QualifierHierarchy are.
type Lubber struct {
	model      TypeModel
	quals      qual.QualifierHierarchy
	depthLimit int
	logger     *slog.Logger
}

// New returns a Lubber joining qualifiers of quals over the shapes of model
func New(model TypeModel, quals qual.QualifierHierarchy, settings Settings) *Lubber {
	l := &Lubber{
		model:      model,
		quals:      quals,
		depthLimit: settings.DepthLimit,
		logger:     settings.Logger,
	}
	if l.depthLimit <= 0 {
		l.depthLimit = defaultDepthLimit
	}
	if l.logger == nil {
		l.logger = logger
	}
	return l
}

// LeastUpperBound returns the least upper bound of type1 and type2 whose shape is target.
// target must be a supertype of (or convertible from) the shapes of both inputs, typically
// the plain least upper bound of their shapes.
//
// The inputs are never modified. The result may share nodes with them.
func (l *Lubber) LeastUpperBound(type1, type2 atm.Node, target atm.Shape) (atm.Node, error) {
	if type1 == nil || type2 == nil || target == nil {
		return nil, errors.New("least upper bound needs two types and a target shape")
	}
	v := l.newVisitor()
	l.logger.Debug("least upper bound", "type1", nodeValue{type1}, "type2", nodeValue{type2}, "target", target)

	if null, ok := type1.(*atm.Null); ok {
		return v.lubWithNull(null, type2, target)
	}
	if null, ok := type2.(*atm.Null); ok {
		return v.lubWithNull(null, type1, target)
	}
	type1AsLub, err := v.asSuper(type1, target)
	if err != nil {
		return nil, err
	}
	type2AsLub, err := v.asSuper(type2, target)
	if err != nil {
		return nil, err
	}
	return v.visit(type1AsLub, type2AsLub, target)
}

// visitor holds the state of a single LeastUpperBound call
type visitor struct {
	*Lubber
	// history maps pairs of type variables being combined to the result under construction
	history map[util.Pair[atm.NodeID, atm.NodeID]]*atm.TypeVar
	depth   int
}

func (l *Lubber) newVisitor() *visitor {
	return &visitor{
		Lubber:  l,
		history: make(map[util.Pair[atm.NodeID, atm.NodeID]]*atm.TypeVar),
	}
}

func (v *visitor) asSuper(n atm.Node, target atm.Shape) (atm.Node, error) {
	converted, err := v.model.AsSuper(n, target)
	if err != nil {
		return nil, newFailure(NewConversionFailed{Type: n.String(), Target: target.String(), From: err})
	}
	return converted, nil
}

// lubWithNull joins the null type with other.
//
// For a type variable or wildcard T with effective bounds @L (lower) and @U (upper), per hierarchy:
//
//	@L <: @U <: @N            lub(@N null, T) = @N T
//	@L <: @N <: @U, @N != @L  lub(@N null, T) = @U T
//	@N <: @L <: @U            lub(@N null, T) = T
func (v *visitor) lubWithNull(null *atm.Null, other atm.Node, target atm.Shape) (atm.Node, error) {
	otherAsLub, err := v.asSuper(other, target)
	if err != nil {
		return nil, err
	}
	quals := otherAsLub.Primary()

	if k := otherAsLub.Kind(); k != atm.KindTypeVar && k != atm.KindWildcard {
		for top, nullQ := range null.Primary().All() {
			otherQ, ok := v.quals.FindAnnotationInHierarchy(otherAsLub.Primary(), top)
			if !ok {
				otherQ = v.quals.DefaultAnnotation(top)
			}
			quals = quals.With(top, v.quals.LeastUpperBound(nullQ, otherQ))
		}
		return atm.DeepCopyWithPrimary(otherAsLub, quals), nil
	}

	for top, lower := range atm.EffectiveLowerBoundAnnotations(v.quals, otherAsLub).All() {
		nullQ, ok := v.quals.FindAnnotationInHierarchy(null.Primary(), top)
		if !ok {
			nullQ = v.quals.BottomAnnotation(top)
		}
		upper, ok := atm.EffectiveAnnotationInHierarchy(otherAsLub, top)
		if !ok {
			upper = top
		}
		switch {
		case v.quals.IsSubtype(upper, nullQ):
			quals = quals.With(top, nullQ)
		case v.quals.IsSubtype(lower, nullQ) && !v.quals.IsSubtype(nullQ, lower):
			quals = quals.With(top, upper)
		}
	}
	return atm.DeepCopyWithPrimary(otherAsLub, quals), nil
}

// visit combines two nodes of the same kind into a node of shape target
func (v *visitor) visit(type1, type2 atm.Node, target atm.Shape) (atm.Node, error) {
	v.depth++
	defer func() { v.depth-- }()
	if v.depth > v.depthLimit {
		return nil, newFailure(NewDepthExceeded{Limit: v.depthLimit, Type1: type1.String(), Type2: type2.String()})
	}
	v.logger.Debug("visit", "type1", nodeValue{type1}, "type2", nodeValue{type2}, "target", target, "depth", v.depth)

	if type1.Kind() != type2.Kind() {
		return nil, v.unexpected(type1, type2, target)
	}
	if target == nil || target.Kind() != type1.Kind() {
		return nil, v.castFailure(type1, target, "")
	}

	switch t1 := type1.(type) {
	case *atm.Null:
		return atm.NewNull(v.joinPrimaries(type1, type2)), nil
	case *atm.Primitive:
		t2, target := type2.(*atm.Primitive), target.(*atm.PrimitiveShape)
		if t1.Name != t2.Name || t1.Name != target.Name {
			return nil, v.castFailure(type1, target, "different primitive types "+t1.Name+" and "+t2.Name)
		}
		return atm.NewPrimitive(target.Name, v.joinPrimaries(type1, type2)), nil
	case *atm.Array:
		t2, target := type2.(*atm.Array), target.(*atm.ArrayShape)
		component, err := v.visit(t1.Component, t2.Component, target.Component)
		if err != nil {
			return nil, err
		}
		return atm.NewArray(component, v.joinPrimaries(type1, type2)), nil
	case *atm.Declared:
		return v.visitDeclared(t1, type2.(*atm.Declared), target.(*atm.DeclaredShape))
	case *atm.TypeVar:
		return v.visitTypeVar(t1, type2.(*atm.TypeVar), target.(*atm.TypeVarShape))
	case *atm.Wildcard:
		return v.visitWildcard(t1, type2.(*atm.Wildcard), target.(*atm.WildcardShape))
	case *atm.Intersection:
		t2, target := type2.(*atm.Intersection), target.(*atm.IntersectionShape)
		bounds, err := v.visitAll("intersection bound", type1, type2, t1.Bounds, t2.Bounds, target.Bounds)
		if err != nil {
			return nil, err
		}
		return atm.NewIntersection(bounds, v.joinPrimaries(type1, type2)), nil
	case *atm.Union:
		t2, target := type2.(*atm.Union), target.(*atm.UnionShape)
		alternatives, err := v.visitAll("union alternative", type1, type2, t1.Alternatives, t2.Alternatives, target.Alternatives)
		if err != nil {
			return nil, err
		}
		return atm.NewUnion(alternatives, v.joinPrimaries(type1, type2)), nil
	}
	return nil, v.unexpected(type1, type2, target)
}

// visitAll combines nodes positionally
func (v *visitor) visitAll(of string, type1, type2 atm.Node, nodes1, nodes2 []atm.Node, targets []atm.Shape) ([]atm.Node, error) {
	if len(nodes1) != len(nodes2) {
		return nil, newFailure(NewArityMismatch{Of: of, Type1: type1.String(), Type2: type2.String(), Len1: len(nodes1), Len2: len(nodes2)})
	}
	if len(nodes1) != len(targets) {
		return nil, newFailure(NewArityMismatch{Of: of, Type1: type1.String(), Type2: "the target", Len1: len(nodes1), Len2: len(targets)})
	}
	combined := make([]atm.Node, 0, len(nodes1))
	for i := range nodes1 {
		c, err := v.visit(nodes1[i], nodes2[i], targets[i])
		if err != nil {
			return nil, err
		}
		combined = append(combined, c)
	}
	return combined, nil
}

func (v *visitor) visitDeclared(type1, type2 *atm.Declared, target *atm.DeclaredShape) (atm.Node, error) {
	if type1.Name != type2.Name || type1.Name != target.Name {
		return nil, v.castFailure(type1, target, "different classes "+type1.Name+" and "+type2.Name)
	}
	if len(type1.TypeArgs) != len(type2.TypeArgs) {
		return nil, newFailure(NewArityMismatch{Of: "type argument", Type1: type1.String(), Type2: type2.String(), Len1: len(type1.TypeArgs), Len2: len(type2.TypeArgs)})
	}
	if !target.Raw && len(target.Args) != len(type1.TypeArgs) {
		return nil, newFailure(NewArityMismatch{Of: "type argument", Type1: type1.String(), Type2: target.String(), Len1: len(type1.TypeArgs), Len2: len(target.Args)})
	}

	args := make([]atm.Node, 0, len(type1.TypeArgs))
	for i := range type1.TypeArgs {
		arg1, arg2 := type1.TypeArgs[i], type2.TypeArgs[i]
		var argTarget atm.Shape
		if target.Raw {
			// a raw target has lost its arguments, recover them from the inputs
			recovered, err := v.model.PlainLeastUpperBound(arg1.Shape(), arg2.Shape())
			if err != nil {
				return nil, errors.Wrapf(err, "recovering type argument %d of raw %s", i, target.Name)
			}
			argTarget = recovered
		} else {
			argTarget = target.Args[i]
		}
		arg, err := v.visitTypeArgument(arg1, arg2, argTarget)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return atm.NewDeclared(target.Name, args, target.Raw, v.joinPrimaries(type1, type2)), nil
}

// visitTypeArgument combines two type arguments. Wildcards and captured type variables
// get the glb of the inputs' lower bound qualifiers on their lower bound: the lub of
// List<? super @A X> and List<? super @B X> must accept what both accept.
func (v *visitor) visitTypeArgument(arg1, arg2 atm.Node, target atm.Shape) (atm.Node, error) {
	arg1AsLub, err := v.asSuper(arg1, target)
	if err != nil {
		return nil, err
	}
	arg2AsLub, err := v.asSuper(arg2, target)
	if err != nil {
		return nil, err
	}

	switch target := target.(type) {
	case *atm.WildcardShape:
		w1, ok1 := arg1AsLub.(*atm.Wildcard)
		w2, ok2 := arg2AsLub.(*atm.Wildcard)
		if !ok1 || !ok2 {
			return nil, v.unexpected(arg1AsLub, arg2AsLub, target)
		}
		upper, lower, err := v.lubWildcardBounds(w1.Super, w1.Extends, w2.Super, w2.Extends, target.Super, target.Extends)
		if err != nil {
			return nil, err
		}
		return atm.NewWildcard(upper, lower, v.equalPrimaries(w1, w2)), nil

	case *atm.TypeVarShape:
		if !target.Captured {
			break
		}
		tv1, ok1 := arg1AsLub.(*atm.TypeVar)
		tv2, ok2 := arg2AsLub.(*atm.TypeVar)
		if !ok1 || !ok2 {
			return nil, v.unexpected(arg1AsLub, arg2AsLub, target)
		}
		if tv1.Upper == nil || tv1.Lower == nil || tv2.Upper == nil || tv2.Lower == nil {
			return nil, v.castFailure(tv1, target, "unresolved bounds")
		}
		key := util.NewPair(tv1.ID(), tv2.ID())
		if inProgress, ok := v.history[key]; ok {
			return inProgress, nil
		}
		result := atm.NewTypeVar(target, v.equalPrimaries(tv1, tv2))
		v.history[key] = result
		upper, lower, err := v.lubWildcardBounds(
			tv1.Lower, tv1.Upper, tv2.Lower, tv2.Upper,
			boundShape(target.Lower, tv1.Lower), boundShape(target.Upper, tv1.Upper),
		)
		if err != nil {
			return nil, err
		}
		result.Upper, result.Lower = upper, lower
		return result, nil
	}
	return v.visit(arg1AsLub, arg2AsLub, target)
}

func (v *visitor) lubWildcardBounds(lower1, upper1, lower2, upper2 atm.Node, lowerTarget, upperTarget atm.Shape) (upper, lower atm.Node, err error) {
	upper, err = v.visit(upper1, upper2, upperTarget)
	if err != nil {
		return nil, nil, err
	}
	lower, err = v.visit(lower1, lower2, lowerTarget)
	if err != nil {
		return nil, nil, err
	}
	quals := lower.Primary()
	for _, top := range v.quals.TopAnnotations() {
		q1, ok1 := v.quals.FindAnnotationInHierarchy(lower1.Primary(), top)
		q2, ok2 := v.quals.FindAnnotationInHierarchy(lower2.Primary(), top)
		if !ok1 || !ok2 {
			continue
		}
		// no glb, no override
		if glb, ok := v.quals.GreatestLowerBound(q1, q2); ok {
			quals = quals.With(top, glb)
		}
	}
	if !quals.Equal(lower.Primary()) {
		lower = atm.WithPrimary(lower, quals)
	}
	return upper, lower, nil
}

// visitTypeVar combines two uses of the same type variable. A pair that is already being
// combined further up yields the result under construction, which closes the cycle.
func (v *visitor) visitTypeVar(type1, type2 *atm.TypeVar, target *atm.TypeVarShape) (atm.Node, error) {
	if type1.Decl != type2.Decl || type1.Decl != target {
		return nil, v.castFailure(type1, target, "different type variables "+type1.Decl.Name+" and "+type2.Decl.Name)
	}
	key := util.NewPair(type1.ID(), type2.ID())
	if inProgress, ok := v.history[key]; ok {
		v.logger.Debug("revisiting type variables", "type1", nodeValue{type1}, "type2", nodeValue{type2})
		return inProgress, nil
	}
	if type1.Upper == nil || type1.Lower == nil || type2.Upper == nil || type2.Lower == nil {
		return nil, v.castFailure(type1, target, "unresolved bounds")
	}

	result := atm.NewTypeVar(target, v.boundedPrimary(type1, type2))
	v.history[key] = result
	upper, err := v.visit(type1.Upper, type2.Upper, boundShape(target.Upper, type1.Upper))
	if err != nil {
		return nil, err
	}
	lower, err := v.visit(type1.Lower, type2.Lower, boundShape(target.Lower, type1.Lower))
	if err != nil {
		return nil, err
	}
	result.Upper, result.Lower = upper, lower
	return result, nil
}

func (v *visitor) visitWildcard(type1, type2 *atm.Wildcard, target *atm.WildcardShape) (atm.Node, error) {
	extends, err := v.visit(type1.Extends, type2.Extends, target.Extends)
	if err != nil {
		return nil, err
	}
	super, err := v.visit(type1.Super, type2.Super, target.Super)
	if err != nil {
		return nil, err
	}
	return atm.NewWildcard(extends, super, v.boundedPrimary(type1, type2)), nil
}

// boundedPrimary computes the primary qualifiers of the lub of two type variables or
// wildcards. In each hierarchy where neither input's range lies within the other's, the
// result is promoted to the join of both effective upper bounds.
func (v *visitor) boundedPrimary(type1, type2 atm.Node) qual.Set {
	quals := v.equalPrimaries(type1, type2)
	lowers2 := atm.EffectiveLowerBoundAnnotations(v.quals, type2)
	for top, lower1 := range atm.EffectiveLowerBoundAnnotations(v.quals, type1).All() {
		lower2, ok := v.quals.FindAnnotationInHierarchy(lowers2, top)
		if !ok {
			continue
		}
		upper1, ok1 := atm.EffectiveAnnotationInHierarchy(type1, top)
		upper2, ok2 := atm.EffectiveAnnotationInHierarchy(type2, top)
		if !ok1 || !ok2 {
			continue
		}
		h := v.quals
		if h.IsSubtype(upper1, upper2) && h.IsSubtype(upper2, upper1) && h.IsSubtype(lower1, lower2) && h.IsSubtype(lower2, lower1) {
			continue
		}
		if !h.IsSubtype(upper2, lower1) && !h.IsSubtype(upper1, lower2) {
			quals = quals.With(top, h.LeastUpperBound(upper1, upper2))
		}
	}
	return quals
}

// joinPrimaries is the join of the primary qualifiers of both types, hierarchy by hierarchy.
// A hierarchy missing from one of them counts as its default qualifier.
func (v *visitor) joinPrimaries(type1, type2 atm.Node) qual.Set {
	return v.quals.LeastUpperBounds(type1.Primary(), type2.Primary())
}

// equalPrimaries keeps the primary qualifiers both types agree on
func (v *visitor) equalPrimaries(type1, type2 atm.Node) qual.Set {
	quals := qual.EmptySet()
	for top, q := range type1.Primary().All() {
		if q2, ok := v.quals.FindAnnotationInHierarchy(type2.Primary(), top); ok && q2 == q {
			quals = quals.With(top, q)
		}
	}
	return quals
}

func boundShape(declared atm.Shape, bound atm.Node) atm.Shape {
	if declared != nil {
		return declared
	}
	return bound.Shape()
}

func (v *visitor) castFailure(n atm.Node, target atm.Shape, reason string) error {
	found := "no shape"
	if target != nil {
		found = target.Kind().String() + " " + target.String()
	}
	return newFailure(NewShapeMismatch{
		Found:    found,
		Required: n.Kind().String() + " " + n.String(),
		Reason:   reason,
	})
}

func (v *visitor) unexpected(type1, type2 atm.Node, target atm.Shape) error {
	lub := "<nil>"
	if target != nil {
		lub = target.String()
	}
	return newFailure(NewUnexpectedCombination{
		Kind1:  type1.Kind(),
		Kind2:  type2.Kind(),
		Type1:  type1.String(),
		Type2:  type2.String(),
		Target: lub,
	})
}

// nodeValue renders a node only when the log record is actually written
type nodeValue struct {
	n atm.Node
}

func (v nodeValue) LogValue() slog.Value {
	return slog.StringValue(v.n.String())
}
