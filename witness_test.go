package witness

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gnoswap-labs/witness/internal/egraph"
	"github.com/gnoswap-labs/witness/internal/rewrite"
	"github.com/gnoswap-labs/witness/internal/saturate"
	"github.com/gnoswap-labs/witness/internal/sexpr"
)

func TestOptimizeExamples(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      string
		rewrite   string
		wantIters int
	}{
		{
			name:      "map fusion",
			input:     "(map f (map g x))",
			want:      "(map (compose f g) x)",
			rewrite:   "map-fusion",
			wantIters: 2,
		},
		{
			name:      "filter fusion",
			input:     "(filter p (filter q x))",
			want:      "(filter (and p q) x)",
			rewrite:   "filter-fusion",
			wantIters: 2,
		},
		{
			name:      "normalize idempotence",
			input:     "(normalize (normalize x))",
			want:      "(normalize x)",
			rewrite:   "normalize-idem",
			wantIters: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := OptimizeSource(zaptest.NewLogger(t), tt.input, nil, DefaultParams())
			require.NoError(t, err)

			assert.Equal(t, saturate.Converged, res.State)
			assert.Equal(t, tt.wantIters, res.Iterations)
			assert.Equal(t, "size", res.Best().Name)
			assert.Equal(t, tt.want, res.Best().Expr)

			require.Len(t, res.Trace, 1)
			assert.Equal(t, tt.rewrite, res.Trace[0].Rewrite)
			assert.Equal(t, 1, res.Trace[0].Iter)
			assert.Equal(t, tt.input, res.Trace[0].Before)
		})
	}
}

func TestOptimizeIterationCap(t *testing.T) {
	params := DefaultParams()
	params.MaxIterations = 1

	res, err := OptimizeSource(nil, "(map f (map g (map h x)))", nil, params)
	require.NoError(t, err)
	assert.Equal(t, saturate.IterationCapReached, res.State)
	assert.Equal(t, 1, res.Iterations)
	assert.NotEmpty(t, res.Candidates, "results are still produced")
}

func TestOptimizeCoverage(t *testing.T) {
	input := "(seq (map f (map g x)) (+ a b))"
	res, err := OptimizeSource(nil, input, nil, DefaultParams())
	require.NoError(t, err)

	live := make(map[egraph.ClassID]bool)
	for _, n := range res.Graph.Nodes {
		live[n.ID] = true
	}
	for _, c := range res.Candidates {
		require.Len(t, c.Coverage, res.Input.Len())
		for _, cov := range c.Coverage {
			assert.True(t, live[cov.EClass], "position %d resolves to a live class", cov.AST)
		}
	}
	assert.Equal(t, res.Classes, len(res.Graph.Nodes))
}

func TestOptimizeCandidatesUnique(t *testing.T) {
	params := DefaultParams()
	params.Candidates = 6

	res, err := OptimizeSource(nil, "(seq (glyph (map f (map g x))) (filter p (filter q y)))", nil, params)
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, c := range res.Candidates {
		assert.False(t, seen[c.Expr], c.Expr)
		seen[c.Expr] = true
	}
	assert.Equal(t, len(res.Candidates) < params.Candidates, res.Exhausted)
}

func TestOptimizeErrors(t *testing.T) {
	t.Run("malformed input", func(t *testing.T) {
		_, err := OptimizeSource(nil, "(map f", nil, DefaultParams())
		assert.ErrorIs(t, err, ErrInvalidInput)
		var syntaxErr *sexpr.SyntaxError
		assert.ErrorAs(t, err, &syntaxErr)
	})

	t.Run("empty expression", func(t *testing.T) {
		_, err := Optimize(nil, &sexpr.Expr{}, nil, DefaultParams())
		assert.ErrorIs(t, err, ErrInvalidInput)
		_, err = Optimize(nil, nil, nil, DefaultParams())
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("invalid params", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(*Params)
		}{
			{"zero iterations", func(p *Params) { p.MaxIterations = 0 }},
			{"negative lambda", func(p *Params) { p.Lambda = -0.1 }},
			{"zero candidates", func(p *Params) { p.Candidates = 0 }},
			{"negative attempts", func(p *Params) { p.MaxAttempts = -1 }},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				params := DefaultParams()
				tt.mutate(&params)
				_, err := OptimizeSource(nil, "(f x)", nil, params)
				assert.ErrorIs(t, err, ErrInvalidParams)
			})
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := OptimizeFile(nil, filepath.Join(t.TempDir(), "absent.wl"), nil, DefaultParams())
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestOptimizeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.wl")
	require.NoError(t, os.WriteFile(path, []byte("; fused pipeline\n(map f\n  (map g x))\n"), 0o644))

	var rounds int
	res, err := OptimizeFile(nil, path, nil, DefaultParams(), func(saturate.IterationStats) { rounds++ })
	require.NoError(t, err)
	assert.Equal(t, res.Iterations, rounds)
	assert.Equal(t, "(map (compose f g) x)", res.Best().Expr)
}

func TestOptimizeCustomRules(t *testing.T) {
	rules := []*rewrite.Rule{rewrite.MustNewRule("glyph-drop", "(glyph ?x)", "?x")}

	res, err := OptimizeSource(nil, "(glyph (glyph a))", rules, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, "a", res.Best().Expr)

	res, err = OptimizeSource(nil, "(map f (map g x))", []*rewrite.Rule{}, DefaultParams())
	require.NoError(t, err)
	assert.Empty(t, res.Trace, "an empty rule set rewrites nothing")
	assert.Equal(t, saturate.Converged, res.State)
	assert.Equal(t, 1, res.Iterations)
}

func TestResultDocuments(t *testing.T) {
	res, err := OptimizeSource(nil, "(map f (map g x))", nil, DefaultParams())
	require.NoError(t, err)

	docs, err := res.Documents()
	require.NoError(t, err)

	var trace []map[string]any
	require.NoError(t, json.Unmarshal(docs.Trace.Body, &trace))
	require.Len(t, trace, 1)
	assert.Equal(t, "map-fusion", trace[0]["rewrite"])

	var nbest []map[string]any
	require.NoError(t, json.Unmarshal(docs.NBest.Body, &nbest))
	require.NotEmpty(t, nbest)
	assert.Equal(t, "(map (compose f g) x)", nbest[0]["expr"])

	var graph map[string][]map[string]any
	require.NoError(t, json.Unmarshal(docs.Graph.Body, &graph))
	assert.Len(t, graph["nodes"], res.Classes)
}

func TestRunIDsDiffer(t *testing.T) {
	a, err := OptimizeSource(nil, "(f x)", nil, DefaultParams())
	require.NoError(t, err)
	b, err := OptimizeSource(nil, "(f x)", nil, DefaultParams())
	require.NoError(t, err)
	assert.NotEqual(t, a.RunID, b.RunID)
}
