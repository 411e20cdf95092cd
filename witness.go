// Package witness optimizes symbolic expressions by equality saturation.
//
// An input expression is loaded into an e-graph, rewrite rules are
// applied until nothing new is found or the iteration cap is reached, and
// several distinct equivalent expressions are extracted under size and
// ache-biased costs. The outcome is rendered as three JSON documents: the
// final graph, the rewrite trace and the candidate list.
package witness

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gnoswap-labs/witness/internal/candidate"
	"github.com/gnoswap-labs/witness/internal/egraph"
	"github.com/gnoswap-labs/witness/internal/export"
	"github.com/gnoswap-labs/witness/internal/rewrite"
	"github.com/gnoswap-labs/witness/internal/saturate"
	"github.com/gnoswap-labs/witness/internal/sexpr"
)

var (
	ErrInvalidInput  = errors.New("invalid input expression")
	ErrInvalidParams = errors.New("invalid parameters")
)

// Result is the frozen outcome of one run.
type Result struct {
	RunID      uuid.UUID
	Input      *sexpr.Expr
	State      saturate.State
	Iterations int
	Applied    int
	Classes    int
	Nodes      int
	Graph      export.Graph
	Trace      []saturate.Event
	Candidates []candidate.Candidate
	// Exhausted is set when fewer candidates than requested exist.
	Exhausted bool
}

// Best returns the first candidate, which always minimizes size.
func (r *Result) Best() candidate.Candidate {
	return r.Candidates[0]
}

// Documents renders the graph, trace and candidate documents.
func (r *Result) Documents() (export.Documents, error) {
	return export.Render(r.Graph, r.Trace, r.Candidates)
}

// Optimize runs the whole pipeline over expr. A nil rule set selects the
// built-in rules. Hooks observe every saturation round.
func Optimize(logger *zap.Logger, expr *sexpr.Expr, rules []*rewrite.Rule, params Params, hooks ...saturate.Hook) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if expr == nil || expr.Len() == 0 {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidInput)
	}
	if rules == nil {
		rules = rewrite.DefaultRules()
	}

	runID := uuid.New()
	logger = logger.With(zap.String("run_id", runID.String()))
	logger.Debug("optimizing",
		zap.String("input", expr.String()),
		zap.Int("rules", len(rules)),
		zap.Int("max_iterations", params.MaxIterations),
		zap.Float64("lambda", params.Lambda),
	)

	g := egraph.New(nil)
	root := g.AddExpr(expr)

	opts := []saturate.Option{saturate.WithLogger(logger)}
	for _, h := range hooks {
		opts = append(opts, saturate.WithHook(h))
	}
	report := saturate.NewRunner(g, rules, params.MaxIterations, opts...).Run()

	set, err := candidate.Generate(g, root, expr, candidate.Options{
		Count:       params.Candidates,
		Lambda:      params.Lambda,
		MaxAttempts: params.MaxAttempts,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("candidate generation failed", zap.Error(err))
		return nil, err
	}

	return &Result{
		RunID:      runID,
		Input:      expr,
		State:      report.State,
		Iterations: report.Iterations,
		Applied:    report.Applied,
		Classes:    g.NumClasses(),
		Nodes:      g.NumNodes(),
		Graph:      export.ExportGraph(g),
		Trace:      report.Trace,
		Candidates: set.Candidates,
		Exhausted:  set.Exhausted,
	}, nil
}

// OptimizeSource parses src and optimizes it.
func OptimizeSource(logger *zap.Logger, src string, rules []*rewrite.Rule, params Params, hooks ...saturate.Hook) (*Result, error) {
	expr, err := sexpr.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return Optimize(logger, expr, rules, params, hooks...)
}

// OptimizeFile reads and optimizes the expression stored at path.
func OptimizeFile(logger *zap.Logger, path string, rules []*rewrite.Rule, params Params, hooks ...saturate.Hook) (*Result, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	res, err := OptimizeSource(logger, string(src), rules, params, hooks...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return res, nil
}
