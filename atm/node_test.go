package atm

import (
	"github.com/cottand/qlub/qual"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func testHierarchy(t *testing.T) *qual.Hierarchy {
	chain, err := qual.NewLattice("chain", map[qual.Qualifier][]qual.Qualifier{
		"Mid": {"Top"},
		"Bot": {"Mid"},
	})
	require.NoError(t, err)
	h, err := qual.NewHierarchy(chain)
	require.NoError(t, err)
	return h
}

// comparableT builds T extends @Top Comparable<T> super @Bot null, where the type argument is T itself
func comparableT(h qual.QualifierHierarchy) *TypeVar {
	decl := &TypeVarShape{Name: "T"}
	t := NewTypeVar(decl, qual.EmptySet())
	upper := NewDeclared("Comparable", []Node{t}, false, qual.MustSet(h, "Top"))
	t.Upper = upper
	t.Lower = NewNull(qual.MustSet(h, "Bot"))
	decl.Upper = upper.Shape()
	decl.Lower = t.Lower.Shape()
	return t
}

func TestPrint(t *testing.T) {
	h := testHierarchy(t)
	str := NewDeclared("String", nil, false, qual.MustSet(h, "Mid"))

	testCases := []struct {
		name     string
		node     Node
		expected string
	}{
		{"declared", NewDeclared("List", []Node{str}, false, qual.MustSet(h, "Top")), "@Top List<@Mid String>"},
		{"array", NewArray(str, qual.MustSet(h, "Bot")), "@Mid String @Bot []"},
		{"unqualified array", NewArray(NewPrimitive("int", qual.EmptySet()), qual.EmptySet()), "int[]"},
		{"wildcard", NewWildcard(str, NewNull(qual.MustSet(h, "Bot")), qual.EmptySet()), "? extends @Mid String super @Bot null"},
		{"type variable", comparableT(h), "T extends @Top Comparable<T> super @Bot null"},
		{"intersection", NewIntersection([]Node{str, str}, qual.EmptySet()), "(@Mid String & @Mid String)"},
		{"union", NewUnion([]Node{str, str}, qual.MustSet(h, "Top")), "@Top (@Mid String | @Mid String)"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.node.String())
		})
	}
}

func TestDeepCopyPreservesCycles(t *testing.T) {
	h := testHierarchy(t)
	original := comparableT(h)

	copied, ok := DeepCopy(original).(*TypeVar)
	require.True(t, ok)
	assert.NotEqual(t, original.ID(), copied.ID())
	assert.Same(t, original.Decl, copied.Decl)

	upper := copied.Upper.(*Declared)
	assert.NotSame(t, original.Upper, upper)
	assert.Same(t, copied, upper.TypeArgs[0], "the self reference must point at the copy")
	assert.True(t, Equivalent(original, copied))
}

func TestWithPrimary(t *testing.T) {
	h := testHierarchy(t)
	str := NewDeclared("String", nil, false, qual.MustSet(h, "Mid"))
	list := NewDeclared("List", []Node{str}, false, qual.MustSet(h, "Top"))

	replaced := ReplaceAnnotation(list, "Top", "Bot").(*Declared)
	assert.Equal(t, "@Top List<@Mid String>", list.String())
	assert.Equal(t, "@Bot List<@Mid String>", replaced.String())
	assert.NotEqual(t, list.ID(), replaced.ID())
	assert.Same(t, str, replaced.TypeArgs[0])
	assert.False(t, Equivalent(list, replaced))
}

func TestEffectiveAnnotations(t *testing.T) {
	h := testHierarchy(t)
	tv := comparableT(h)

	upper, ok := EffectiveAnnotationInHierarchy(tv, "Top")
	assert.True(t, ok)
	assert.Equal(t, qual.Qualifier("Top"), upper)
	assert.Equal(t, "@Bot", EffectiveLowerBoundAnnotations(h, tv).String())

	annotated := WithPrimary(tv, qual.MustSet(h, "Mid"))
	upper, _ = EffectiveAnnotationInHierarchy(annotated, "Top")
	assert.Equal(t, qual.Qualifier("Mid"), upper)
	assert.Equal(t, "@Mid", EffectiveLowerBoundAnnotations(h, annotated).String())

	// without any qualifier on the lower bound chain the bottom is assumed
	unbounded := NewWildcard(NewDeclared("Object", nil, false, qual.EmptySet()), NewNull(qual.EmptySet()), qual.EmptySet())
	assert.Equal(t, "@Bot", EffectiveLowerBoundAnnotations(h, unbounded).String())
	_, ok = EffectiveAnnotationInHierarchy(unbounded, "Top")
	assert.False(t, ok)
}

func TestSameShape(t *testing.T) {
	h := testHierarchy(t)
	tv := comparableT(h)
	other := comparableT(h)

	listOf := func(args ...Shape) Shape { return &DeclaredShape{Name: "List", Args: args} }
	str := &DeclaredShape{Name: "String"}

	assert.True(t, SameShape(listOf(str), listOf(&DeclaredShape{Name: "String"})))
	assert.False(t, SameShape(listOf(str), listOf()))
	assert.False(t, SameShape(listOf(str), &DeclaredShape{Name: "List", Args: []Shape{str}, Raw: true}))
	assert.True(t, SameShape(tv.Shape(), tv.Shape()))
	assert.False(t, SameShape(tv.Shape(), other.Shape()), "type variables are compared by declaration")
	assert.True(t, SameShape(&ArrayShape{Component: str}, &ArrayShape{Component: str}))
	assert.False(t, SameShape(&NullShape{}, str))
	assert.Equal(t, "List<String>", listOf(str).String())
	assert.Equal(t, "? extends String", (&WildcardShape{Extends: str, Super: &NullShape{}}).String())
}
