package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnoswap-labs/witness/internal/egraph"
	"github.com/gnoswap-labs/witness/internal/sexpr"
)

// fusedMap builds (map f (map g x)) and merges it with its fused form.
func fusedMap(t *testing.T) (*egraph.EGraph, egraph.ClassID) {
	t.Helper()
	g := egraph.New(nil)
	root := g.AddExpr(sexpr.MustParse("(map f (map g x))"))
	fused := g.AddExpr(sexpr.MustParse("(map (compose f g) x)"))
	require.True(t, g.Union(root, fused))
	g.Rebuild()
	return g, root
}

func TestAstSize(t *testing.T) {
	tests := []struct {
		input string
		cost  float64
	}{
		{input: "x", cost: 1},
		{input: "(f x)", cost: 2},
		{input: "(+ (f x) (f x))", cost: 5},
		{input: "(seq (map f x) (filter p x))", cost: 7},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			g := egraph.New(nil)
			root := g.AddExpr(sexpr.MustParse(tt.input))

			cost, e, ok := New(g, AstSize{}).FindBest(root)
			require.True(t, ok)
			assert.Equal(t, tt.cost, cost)
			assert.Equal(t, tt.input, e.String())
		})
	}
}

func TestEqualCostPrefersLaterNode(t *testing.T) {
	g, root := fusedMap(t)

	cost, e, ok := New(g, AstSize{}).FindBest(root)
	require.True(t, ok)
	assert.Equal(t, 5.0, cost)
	assert.Equal(t, "(map (compose f g) x)", e.String())
}

func TestSelfLoopExtractsFiniteTerm(t *testing.T) {
	g := egraph.New(nil)
	ids := g.AddExprPositions(sexpr.MustParse("(normalize (normalize x))"))
	g.Union(ids[2], ids[1])
	g.Rebuild()

	x := New(g, AstSize{})
	cost, e, ok := x.FindBest(ids[2])
	require.True(t, ok)
	assert.Equal(t, 2.0, cost)
	assert.Equal(t, "(normalize x)", e.String())
	assert.LessOrEqual(t, x.passes, g.NumClasses()+1)
}

func TestNegativeCycleTerminates(t *testing.T) {
	g := egraph.New(nil)
	ids := g.AddExprPositions(sexpr.MustParse("(normalize (normalize x))"))
	g.Union(ids[2], ids[1])
	g.Rebuild()

	// ache sum 0.2 with lambda 20 makes every trip around the loop cheaper
	x := New(g, AcheBiased{Graph: g, Lambda: 20})
	_, e, ok := x.FindBest(ids[2])
	require.True(t, ok)
	assert.Equal(t, "(normalize x)", e.String())
	assert.Equal(t, g.NumClasses()+1, x.passes)

	w, ok := x.best[g.Find(ids[2])]
	require.True(t, ok)
	assert.Equal(t, []egraph.ClassID{g.Find(ids[2])}, w.Children, "witness itself loops")
}

func TestNegativeCycleCostMatchesExpression(t *testing.T) {
	tests := []struct {
		name string
		src  string
		pos  int
	}{
		{"alone", "(normalize (normalize x))", 2},
		{"inside a wide term", "(seq (normalize (normalize x)) a b c d e f g h i j k l m n o p)", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := egraph.New(nil)
			ids := g.AddExprPositions(sexpr.MustParse(tt.src))
			g.Union(ids[tt.pos], ids[tt.pos-1])
			g.Rebuild()

			// (normalize x) is 2 nodes, x has no ache, normalize's class sums to 0.2
			cost, e, ok := New(g, AcheBiased{Graph: g, Lambda: 8}).FindBest(ids[tt.pos])
			require.True(t, ok)
			assert.Equal(t, "(normalize x)", e.String())
			assert.InDelta(t, 0.4, cost, 1e-9)
		})
	}
}

func TestAcheBiased(t *testing.T) {
	t.Run("single class", func(t *testing.T) {
		g := egraph.New(nil)
		root := g.AddExpr(sexpr.MustParse("(map f x)"))

		cost, _, ok := New(g, AcheBiased{Graph: g, Lambda: 1}).FindBest(root)
		require.True(t, ok)
		assert.InDelta(t, 2.4, cost, 1e-9)
	})

	t.Run("zero lambda matches size", func(t *testing.T) {
		g, root := fusedMap(t)
		size, _, _ := New(g, AstSize{}).FindBest(root)
		biased, _, _ := New(g, AcheBiased{Graph: g, Lambda: 0}).FindBest(root)
		assert.Equal(t, size, biased)
	})

	t.Run("favors high ache class", func(t *testing.T) {
		g, root := fusedMap(t)
		cost, e, ok := New(g, AcheBiased{Graph: g, Lambda: 0.6}).FindBest(root)
		require.True(t, ok)
		assert.InDelta(t, 3.8, cost, 1e-9)
		assert.Equal(t, "(map (compose f g) x)", e.String())
	})
}

func TestCostFunc(t *testing.T) {
	g, root := fusedMap(t)
	noCompose := CostFunc(func(n egraph.ENode, costs func(egraph.ClassID) float64) float64 {
		c := AstSize{}.Cost(n, costs)
		if n.Op == "compose" {
			c += 100
		}
		return c
	})

	cost, e, ok := New(g, noCompose).FindBest(root)
	require.True(t, ok)
	assert.Equal(t, 5.0, cost)
	assert.Equal(t, "(map f (map g x))", e.String())
}

func TestExtractionDeterministic(t *testing.T) {
	g := egraph.New(nil)
	root := g.AddExpr(sexpr.MustParse("(+ (* a b) (* b a))"))
	left := g.AddExpr(sexpr.MustParse("(* a b)"))
	right := g.AddExpr(sexpr.MustParse("(* b a)"))
	g.Union(left, right)
	g.Rebuild()

	_, first, ok := New(g, AstSize{}).FindBest(root)
	require.True(t, ok)
	for range 5 {
		x := New(g, AstSize{})
		_, again, _ := x.FindBest(root)
		assert.Equal(t, first.String(), again.String())
		_, twice, _ := x.FindBest(root)
		assert.Equal(t, first.String(), twice.String())
	}
	assert.Equal(t, "(+ (* b a) (* b a))", first.String())
}
