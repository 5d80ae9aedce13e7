package lub

import (
	"fmt"
	"github.com/cottand/qlub/atm"
	"github.com/cottand/qlub/qual"
	"github.com/cottand/qlub/typemodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"strings"
	"sync"
	"testing"
)

func nullness(t *testing.T) *qual.Hierarchy {
	lattice, err := qual.NewLattice("nullness", map[qual.Qualifier][]qual.Qualifier{"NonNull": {"Nullable"}})
	require.NoError(t, err)
	h, err := qual.NewHierarchy(lattice)
	require.NoError(t, err)
	return h
}

func declareClasses(t *testing.T, m *typemodel.Model) {
	require.NoError(t, m.AddClass("Comparable", []string{"T"}))
	require.NoError(t, m.AddClass("Serializable", nil))
	require.NoError(t, m.AddClass("Number", nil, "Serializable"))
	require.NoError(t, m.AddClass("Integer", nil, "Number", "Comparable<Integer>"))
	require.NoError(t, m.AddClass("String", nil, "Comparable<String>", "Serializable"))
	require.NoError(t, m.AddClass("List", []string{"E"}))
	require.NoError(t, m.AddClass("ArrayList", []string{"E"}, "List<E>"))
}

func testModel(t *testing.T) *typemodel.Model {
	m := typemodel.New(nullness(t))
	declareClasses(t, m)
	require.NoError(t, m.DeclareTypeVar("T", "Number", "", false))
	require.NoError(t, m.DeclareTypeVar("C", "Comparable<C>", "", false))
	require.NoError(t, m.DeclareTypeVar("CAP", "Number", "", true))
	return m
}

type fixture struct {
	m *typemodel.Model
	l *Lubber
}

func newFixture(t *testing.T) fixture {
	m := testModel(t)
	return fixture{m: m, l: New(m, m.Qualifiers(), Settings{})}
}

func (f fixture) lub(t *testing.T, a, b, target string) (atm.Node, error) {
	t.Helper()
	targetShape, err := f.m.ParseShape(target)
	require.NoError(t, err)
	return f.l.LeastUpperBound(f.m.MustParse(a), f.m.MustParse(b), targetShape)
}

func (f fixture) mustLub(t *testing.T, a, b, target string) atm.Node {
	t.Helper()
	n, err := f.lub(t, a, b, target)
	if err != nil {
		require.FailNow(t, "unexpected failure", FormatWithCode(err))
	}
	return n
}

func TestLeastUpperBound(t *testing.T) {
	f := newFixture(t)

	testCases := []struct {
		name     string
		a, b     string
		target   string
		expected string
	}{
		{"declared", "@NonNull String", "@Nullable String", "String", "@Nullable String"},
		{"equal qualifiers", "@NonNull String", "@NonNull String", "String", "@NonNull String"},
		{"primitive widening", "@NonNull int", "@NonNull long", "long", "@NonNull long"},
		{"primitive", "@NonNull int", "@Nullable int", "int", "@Nullable int"},
		{"array", "@NonNull String @NonNull []", "@Nullable String @NonNull []", "String[]", "@Nullable String @NonNull []"},
		{"type argument", "@NonNull List<@NonNull String>", "@NonNull List<@Nullable String>", "List<String>", "@NonNull List<@Nullable String>"},
		{
			"supertype with wildcard argument",
			"@NonNull ArrayList<@NonNull Integer>", "@NonNull List<@NonNull Number>", "List<? extends Number>",
			"@NonNull List<? extends @NonNull Number super @NonNull null>",
		},
		{"different classes", "@NonNull Integer", "@Nullable Number", "Number", "@Nullable Number"},
		{
			"intersection",
			"(@NonNull Integer & @NonNull Serializable)", "(@Nullable Integer & @NonNull Serializable)", "Integer & Serializable",
			"@Nullable (@Nullable Integer & @NonNull Serializable)",
		},
		{
			"union",
			"(@NonNull Integer | @NonNull String)", "(@NonNull Integer | @Nullable String)", "Integer | String",
			"@Nullable (@NonNull Integer | @Nullable String)",
		},
		{"annotated type variables", "@NonNull T", "@Nullable T", "T", "T extends @Nullable Number super @Nullable null"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, f.mustLub(t, tc.a, tc.b, tc.target).String())
		})
	}
}

func TestCommutative(t *testing.T) {
	f := newFixture(t)

	for _, tc := range []struct{ a, b, target string }{
		{"@NonNull String", "@Nullable String", "String"},
		{"null", "@NonNull String", "String"},
		{"@Nullable null", "@NonNull String", "String"},
		{"@NonNull ArrayList<@NonNull Integer>", "@Nullable List<@Nullable Number>", "List<? extends Number>"},
		{"List<? super @NonNull Integer>", "List<? super @Nullable Integer>", "List<? super Integer>"},
		{"@NonNull T", "T", "T"},
		{"@Nullable T", "null", "T"},
		{"C", "@NonNull C", "C"},
		{"List<@NonNull CAP>", "List<@Nullable CAP>", "List<CAP>"},
		{"@NonNull List", "@NonNull List<@Nullable String>", "List"},
	} {
		t.Run(tc.a+" and "+tc.b, func(t *testing.T) {
			ab := f.mustLub(t, tc.a, tc.b, tc.target)
			ba := f.mustLub(t, tc.b, tc.a, tc.target)
			assert.True(t, atm.Equivalent(ab, ba), "%v is not %v", ab, ba)
			assert.Equal(t, ab.String(), ba.String())
		})
	}
}

func TestIdempotent(t *testing.T) {
	f := newFixture(t)

	for _, src := range []string{
		"@NonNull String",
		"@Nullable int",
		"@NonNull Integer @Nullable []",
		"@NonNull List<? extends @NonNull Number>",
		"@Nullable List<? super @NonNull Integer>",
		"T",
		"@NonNull T",
		"C",
		"@NonNull (@NonNull Integer & @Nullable Serializable)",
	} {
		t.Run(src, func(t *testing.T) {
			n := f.m.MustParse(src)
			res, err := f.l.LeastUpperBound(n, n, n.Shape())
			require.NoError(t, err, FormatWithCode(err))
			assert.True(t, atm.Equivalent(n, res), "%v is not %v", res, n)
			assert.Equal(t, n.String(), res.String())
		})
	}
}

// chainModel has the lattice Top > Mid > Bot, V ranging from Bot to Top and W fixed at Mid
func chainModel(t *testing.T) (*typemodel.Model, *qual.Hierarchy) {
	t.Helper()
	chain, err := qual.NewLattice("chain", map[qual.Qualifier][]qual.Qualifier{
		"Mid": {"Top"},
		"Bot": {"Mid"},
	})
	require.NoError(t, err)
	h, err := qual.NewHierarchy(chain)
	require.NoError(t, err)
	m := typemodel.New(h)
	require.NoError(t, m.DeclareTypeVar("V", "@Top Object", "@Bot null", false))
	require.NoError(t, m.DeclareTypeVar("W", "@Mid Object", "@Mid null", false))
	return m, h
}

func TestBoundedPrimary(t *testing.T) {
	m, h := chainModel(t)
	l := New(m, h, Settings{})

	testCases := []struct {
		name     string
		a, b     string
		expected string
	}{
		{"ranges not comparable", "V", "@Mid V", "@Top V extends @Top Object super @Mid null"},
		{"ranges ordered", "@Bot V", "@Top V", "V extends @Top Object super @Top null"},
		{"same ranges", "@Mid V", "@Mid V", "@Mid V extends @Mid Object super @Mid null"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a, b := m.MustParse(tc.a), m.MustParse(tc.b)
			res, err := l.LeastUpperBound(a, b, a.Shape())
			require.NoError(t, err, FormatWithCode(err))
			assert.Equal(t, tc.expected, res.String())

			flipped, err := l.LeastUpperBound(b, a, a.Shape())
			require.NoError(t, err, FormatWithCode(err))
			assert.Equal(t, tc.expected, flipped.String())
		})
	}
}

func TestBottomType(t *testing.T) {
	f := newFixture(t)

	t.Run("declared", func(t *testing.T) {
		assert.Equal(t, "@Nullable String", f.mustLub(t, "@NonNull null", "@Nullable String", "String").String())
		assert.Equal(t, "@Nullable String", f.mustLub(t, "@Nullable null", "@NonNull String", "String").String())
		assert.Equal(t, "@NonNull String", f.mustLub(t, "@NonNull String", "@NonNull null", "String").String())
	})

	t.Run("result is a copy", func(t *testing.T) {
		other := f.m.MustParse("@NonNull List<@NonNull String>")
		res, err := f.l.LeastUpperBound(atm.NewNull(qual.MustSet(f.m.Qualifiers(), "NonNull")), other, other.Shape())
		require.NoError(t, err)
		assert.True(t, atm.Equivalent(other, res))
		assert.NotSame(t, other.(*atm.Declared).TypeArgs[0], res.(*atm.Declared).TypeArgs[0])
	})

	t.Run("both null", func(t *testing.T) {
		assert.Equal(t, "@Nullable null", f.mustLub(t, "@NonNull null", "@Nullable null", "null").String())
	})

	m, h := chainModel(t)
	l := New(m, h, Settings{})
	tv, _ := m.TypeVar("V")
	tw, _ := m.TypeVar("W")

	testCases := []struct {
		name     string
		null     qual.Qualifier
		typeVar  *atm.TypeVar
		expected string
	}{
		{"upper below null", "Top", tv, "@Top V extends @Top Object super @Bot null"},
		{"null strictly inside the range", "Mid", tv, "@Top V extends @Top Object super @Bot null"},
		{"null at the lower bound", "Bot", tv, "V extends @Top Object super @Bot null"},
		{"null below the lower bound", "Bot", tw, "W extends @Mid Object super @Mid null"},
		{"null equal to a point range", "Mid", tw, "@Mid W extends @Mid Object super @Mid null"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			null := atm.NewNull(qual.MustSet(h, tc.null))
			res, err := l.LeastUpperBound(null, tc.typeVar, tc.typeVar.Decl)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, res.String())

			flipped, err := l.LeastUpperBound(tc.typeVar, null, tc.typeVar.Decl)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, flipped.String())
		})
	}
}

func TestCycles(t *testing.T) {
	f := newFixture(t)

	t.Run("same variable", func(t *testing.T) {
		res := f.mustLub(t, "C", "C", "C")
		tv, ok := res.(*atm.TypeVar)
		require.True(t, ok)
		assert.Equal(t, "C extends @Nullable Comparable<C> super @NonNull null", tv.String())
		assert.Same(t, tv, tv.Upper.(*atm.Declared).TypeArgs[0], "the bound refers back to the result")
	})

	t.Run("different uses", func(t *testing.T) {
		res := f.mustLub(t, "C", "@NonNull C", "C")
		tv, ok := res.(*atm.TypeVar)
		require.True(t, ok)
		assert.Equal(t, "C extends @Nullable Comparable<C> super @NonNull null", tv.String())
		inner, ok := tv.Upper.(*atm.Declared).TypeArgs[0].(*atm.TypeVar)
		require.True(t, ok)
		assert.Same(t, inner, inner.Upper.(*atm.Declared).TypeArgs[0])
	})

	t.Run("inputs untouched", func(t *testing.T) {
		c, _ := f.m.TypeVar("C")
		before := c.String()
		_ = f.mustLub(t, "C", "@NonNull C", "C")
		assert.Equal(t, before, c.String())
		assert.Same(t, c, c.Upper.(*atm.Declared).TypeArgs[0])
	})
}

func TestWildcardArguments(t *testing.T) {
	f := newFixture(t)

	t.Run("upper bounds join, lower bounds meet", func(t *testing.T) {
		res := f.mustLub(t, "List<? super @NonNull Integer>", "List<? super @Nullable Integer>", "List<? super Integer>")
		assert.Equal(t, "@Nullable List<? extends @Nullable Object super @NonNull Integer>", res.String())

		res = f.mustLub(t, "List<? extends @NonNull Number>", "List<? extends @Nullable Number>", "List<? extends Number>")
		assert.Equal(t, "@Nullable List<? extends @Nullable Number super @NonNull null>", res.String())
	})

	t.Run("concrete arguments against a wildcard", func(t *testing.T) {
		res := f.mustLub(t, "List<@NonNull Integer>", "List<@Nullable Number>", "List<? extends Number>")
		assert.Equal(t, "@Nullable List<? extends @Nullable Number super @NonNull null>", res.String())
	})

	t.Run("captured type variable", func(t *testing.T) {
		res := f.mustLub(t, "List<@NonNull CAP>", "List<@Nullable CAP>", "List<CAP>")
		arg, ok := res.(*atm.Declared).TypeArgs[0].(*atm.TypeVar)
		require.True(t, ok)
		assert.Equal(t, "CAP extends @Nullable Number super @NonNull null", arg.String())
	})

	t.Run("undefined glb leaves the lower bound alone", func(t *testing.T) {
		l := New(f.m, noMeets{f.m.Qualifiers().(*qual.Hierarchy)}, Settings{})
		target, err := f.m.ParseShape("List<? super Integer>")
		require.NoError(t, err)
		res, err := l.LeastUpperBound(f.m.MustParse("List<? super @NonNull Integer>"), f.m.MustParse("List<? super @Nullable Integer>"), target)
		require.NoError(t, err)
		assert.Equal(t, "@Nullable List<? extends @Nullable Object super @Nullable Integer>", res.String())
	})
}

// noMeets is a hierarchy where no two qualifiers have a greatest lower bound
type noMeets struct {
	*qual.Hierarchy
}

func (noMeets) GreatestLowerBound(qual.Qualifier, qual.Qualifier) (qual.Qualifier, bool) {
	return "", false
}

func TestRawTarget(t *testing.T) {
	f := newFixture(t)

	t.Run("arguments recovered from the inputs", func(t *testing.T) {
		res := f.mustLub(t, "@NonNull ArrayList<@NonNull Integer>", "@NonNull List<@NonNull Number>", "List")
		declared, ok := res.(*atm.Declared)
		require.True(t, ok)
		assert.True(t, declared.WasRaw)
		assert.Equal(t, "@NonNull List<@NonNull Number>", res.String())
	})

	t.Run("raw inputs", func(t *testing.T) {
		res := f.mustLub(t, "@NonNull List", "@Nullable List", "List")
		assert.True(t, res.(*atm.Declared).WasRaw)
		assert.Equal(t, "@Nullable List<@Nullable Object>", res.String())
	})

	t.Run("raw and parameterised", func(t *testing.T) {
		res := f.mustLub(t, "@NonNull List", "@NonNull List<@NonNull String>", "List")
		assert.Equal(t, "@NonNull List<@Nullable Object>", res.String())
	})
}

// identityModel performs no conversions, exposing the combiners to arbitrary inputs
type identityModel struct{}

func (identityModel) AsSuper(n atm.Node, _ atm.Shape) (atm.Node, error) { return n, nil }
func (identityModel) PlainLeastUpperBound(a, _ atm.Shape) (atm.Shape, error) {
	return a, nil
}

func TestFailures(t *testing.T) {
	f := newFixture(t)
	h := f.m.Qualifiers()
	nonNull := qual.MustSet(h, "NonNull")
	str := func() atm.Node { return atm.NewDeclared("String", nil, false, nonNull) }
	raw := New(identityModel{}, h, Settings{})

	testCases := []struct {
		name   string
		run    func() (atm.Node, error)
		code   ErrCode
		substr string
	}{
		{
			"type argument count",
			func() (atm.Node, error) {
				a := atm.NewDeclared("List", []atm.Node{str()}, false, nonNull)
				b := atm.NewDeclared("List", []atm.Node{str(), str()}, false, nonNull)
				return raw.LeastUpperBound(a, b, a.Shape())
			},
			ArityMismatch, "type argument count differs",
		},
		{
			"intersection length",
			func() (atm.Node, error) {
				a := atm.NewIntersection([]atm.Node{str()}, nonNull)
				b := atm.NewIntersection([]atm.Node{str(), str()}, nonNull)
				return raw.LeastUpperBound(a, b, b.Shape())
			},
			ArityMismatch, "intersection bound count differs",
		},
		{
			"union length",
			func() (atm.Node, error) {
				a := atm.NewUnion([]atm.Node{str(), str()}, nonNull)
				b := atm.NewUnion([]atm.Node{str()}, nonNull)
				return raw.LeastUpperBound(a, b, a.Shape())
			},
			ArityMismatch, "union alternative count differs",
		},
		{
			"different kinds",
			func() (atm.Node, error) {
				return raw.LeastUpperBound(str(), atm.NewPrimitive("int", nonNull), &atm.PrimitiveShape{Name: "int"})
			},
			UnexpectedCombination, "unexpected combination: type1: DECLARED type2: PRIMITIVE",
		},
		{
			"target of another kind",
			func() (atm.Node, error) {
				return raw.LeastUpperBound(str(), str(), &atm.PrimitiveShape{Name: "int"})
			},
			ShapeMismatch, "found PRIMITIVE int, required DECLARED @NonNull String",
		},
		{
			"different classes",
			func() (atm.Node, error) {
				return raw.LeastUpperBound(str(), atm.NewDeclared("Integer", nil, false, nonNull), &atm.DeclaredShape{Name: "String"})
			},
			ShapeMismatch, "different classes String and Integer",
		},
		{
			"not a supertype",
			func() (atm.Node, error) { return f.lub(t, "@NonNull String", "@NonNull Integer", "Integer") },
			ConversionFailed, "does not extend Integer",
		},
		{
			"extends against super",
			func() (atm.Node, error) {
				return f.lub(t, "List<? super @NonNull Integer>", "List<? extends @NonNull Integer>", "List<? super Integer>")
			},
			UnexpectedCombination, "type1: DECLARED type2: NULL",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := tc.run()
			require.Error(t, err)
			assert.Nil(t, res)
			assert.Equal(t, tc.code, CodeOf(err))
			assert.Contains(t, err.Error(), tc.substr)
			assert.True(t, strings.HasPrefix(FormatWithCode(err), fmt.Sprintf("(E%03d) ", tc.code)), FormatWithCode(err))
			assert.Contains(t, fmt.Sprintf("%+v", err), "lub.go:", "failures carry a stack trace")
		})
	}
}

func TestDepthLimit(t *testing.T) {
	f := newFixture(t)
	a := f.m.MustParse("List<List<@NonNull String>>")
	b := f.m.MustParse("List<List<@Nullable String>>")

	shallow := New(f.m, f.m.Qualifiers(), Settings{DepthLimit: 2})
	_, err := shallow.LeastUpperBound(a, b, a.Shape())
	require.Error(t, err)
	assert.Equal(t, DepthExceeded, CodeOf(err))
	assert.Contains(t, err.Error(), "exceeded max depth limit of 2")

	deep := New(f.m, f.m.Qualifiers(), Settings{DepthLimit: 3})
	res, err := deep.LeastUpperBound(a, b, a.Shape())
	require.NoError(t, err)
	assert.Equal(t, "@Nullable List<@Nullable List<@Nullable String>>", res.String())
}

func TestReentrant(t *testing.T) {
	f := newFixture(t)
	c, _ := f.m.TypeVar("C")

	first, err := f.l.LeastUpperBound(c, c, c.Decl)
	require.NoError(t, err)
	second, err := f.l.LeastUpperBound(c, c, c.Decl)
	require.NoError(t, err)
	assert.NotSame(t, first, second, "a previous call must not leak its results")
	assert.True(t, atm.Equivalent(first, second))

	a := f.m.MustParse("@NonNull ArrayList<@NonNull Integer>")
	b := f.m.MustParse("@Nullable List<@NonNull Number>")
	target, err := f.m.ParseShape("List<? extends Number>")
	require.NoError(t, err)
	expected, err := f.l.LeastUpperBound(a, b, target)
	require.NoError(t, err)

	wg := sync.WaitGroup{}
	results := make([]atm.Node, 16)
	errs := make([]error, 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = f.l.LeastUpperBound(a, b, target)
		}()
	}
	wg.Wait()
	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, expected.String(), results[i].String())
	}
}

func TestFormatWithCode(t *testing.T) {
	assert.Equal(t, "", FormatWithCode(nil))
	assert.Equal(t, "plain", FormatWithCode(fmt.Errorf("plain")))
	assert.Equal(t, "(E004) exceeded max depth limit of 1 while combining a and b",
		FormatWithCode(newFailure(NewDepthExceeded{Limit: 1, Type1: "a", Type2: "b"})))
	assert.Equal(t, None, CodeOf(nil))
}
