// Package candidate extracts several distinct representatives of the same
// class by sweeping the ache weight of the extraction cost.
package candidate

import (
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/gnoswap-labs/witness/internal/egraph"
	"github.com/gnoswap-labs/witness/internal/extract"
	"github.com/gnoswap-labs/witness/internal/sexpr"
)

// ErrInconsistent reports a graph that lost track of an expression it was
// built from.
var ErrInconsistent = errors.New("inconsistent e-graph")

// DefaultMaxAttempts bounds the number of weights tried.
const DefaultMaxAttempts = 32

// lambdaStep is the relative increase of the weight per attempt.
const lambdaStep = 0.4

// Coverage maps one position of the input expression to its class.
type Coverage struct {
	AST    int            `json:"ast"`
	EClass egraph.ClassID `json:"eclass"`
}

type Candidate struct {
	Name     string     `json:"name"`
	Lambda   float64    `json:"lambda"`
	Cost     float64    `json:"cost"`
	Expr     string     `json:"expr"`
	Coverage []Coverage `json:"coverage"`
}

// Set is the result of Generate. Exhausted is set when fewer candidates
// than requested were found within the attempt budget.
type Set struct {
	Candidates []Candidate
	Attempts   int
	Exhausted  bool
}

type Options struct {
	Count       int
	Lambda      float64
	MaxAttempts int
	Logger      *zap.Logger
}

// LambdaAt returns the weight of attempt i.
func LambdaAt(base float64, i int) float64 {
	return base * (1 + float64(i)*lambdaStep)
}

// CoverageOf resolves every position of e to the class its subtree lives
// in, by replaying e through the hashcons table of g.
func CoverageOf(g *egraph.EGraph, e *sexpr.Expr) ([]Coverage, error) {
	classOf := make([]egraph.ClassID, e.Len())
	out := make([]Coverage, 0, e.Len())
	for i, node := range e.Nodes {
		n := egraph.ENode{Op: node.Op}
		for _, c := range node.Children {
			n.Children = append(n.Children, classOf[c])
		}
		id, ok := g.Lookup(n)
		if !ok {
			return nil, fmt.Errorf("%w: no class for position %d %s", ErrInconsistent, i, e.StringAt(i))
		}
		classOf[i] = id
		out = append(out, Coverage{AST: i, EClass: id})
	}
	return out, nil
}

// Generate extracts up to opts.Count distinct expressions for root. The
// first one minimizes size; the rest minimize the ache-biased cost at
// growing weights. input is the expression the graph was built from and
// determines the coverage of every candidate.
func Generate(g *egraph.EGraph, root egraph.ClassID, input *sexpr.Expr, opts Options) (Set, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	count := max(opts.Count, 1)
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}

	coverage, err := CoverageOf(g, input)
	if err != nil {
		return Set{}, err
	}

	var set Set
	seen := make(map[string]bool)
	add := func(name string, lambda float64, x *extract.Extractor) error {
		cost, e, ok := x.FindBest(root)
		if !ok {
			return fmt.Errorf("%w: class %v has no finite cost", ErrInconsistent, root)
		}
		s := e.String()
		if seen[s] {
			return nil
		}
		seen[s] = true
		set.Candidates = append(set.Candidates, Candidate{
			Name:     name,
			Lambda:   lambda,
			Cost:     cost,
			Expr:     s,
			Coverage: slices.Clone(coverage),
		})
		return nil
	}

	if err := add("size", 0, extract.New(g, extract.AstSize{})); err != nil {
		return Set{}, err
	}
	for i := 0; len(set.Candidates) < count && i < attempts; i++ {
		lambda := LambdaAt(opts.Lambda, i)
		x := extract.New(g, extract.AcheBiased{Graph: g, Lambda: lambda})
		if err := add(fmt.Sprintf("lambda_%d", i), lambda, x); err != nil {
			return Set{}, err
		}
		set.Attempts++
	}

	if len(set.Candidates) < count {
		set.Exhausted = true
		logger.Warn("candidate search exhausted",
			zap.Int("want", count),
			zap.Int("found", len(set.Candidates)),
			zap.Int("attempts", set.Attempts),
		)
	}
	return set, nil
}
