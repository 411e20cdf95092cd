// Package saturate drives rewrite rules over an e-graph round by round
// until nothing new is discovered or an iteration cap is hit, keeping a
// trace of every rewrite that changed the graph.
package saturate

import (
	"time"

	"go.uber.org/zap"

	"github.com/gnoswap-labs/witness/internal/egraph"
	"github.com/gnoswap-labs/witness/internal/extract"
	"github.com/gnoswap-labs/witness/internal/rewrite"
)

// Merged is the after_expr of an event whose class was merged into
// another class by the same rule application.
const Merged = "<merged>"

// Event records one rule changing one class during one round.
type Event struct {
	Iter    int            `json:"iter"`
	Rewrite string         `json:"rewrite"`
	EClass  egraph.ClassID `json:"eclass"`
	Before  string         `json:"before_expr"`
	After   string         `json:"after_expr"`
	LHS     []string       `json:"lhs_inst"`
	RHS     []string       `json:"rhs_inst"`
}

// RuleStats summarizes one rule within one round.
type RuleStats struct {
	Rule     string
	Matches  int
	Applied  int
	Duration time.Duration
}

// IterationStats summarizes one round.
type IterationStats struct {
	Iter     int
	Applied  int
	Classes  int
	Nodes    int
	Rules    []RuleStats
	Duration time.Duration
}

// Hook observes every finished round.
type Hook func(IterationStats)

// Report is the outcome of a run.
type Report struct {
	State      State
	Iterations int
	// Applied counts unions over all rounds.
	Applied int
	Trace   []Event
	Rounds  []IterationStats
}

type Runner struct {
	graph   *egraph.EGraph
	rules   []*rewrite.Rule
	maxIter int
	logger  *zap.Logger
	hooks   []Hook
	state   State
}

type Option func(*Runner)

func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithHook(h Hook) Option {
	return func(r *Runner) {
		if h != nil {
			r.hooks = append(r.hooks, h)
		}
	}
}

// NewRunner prepares a run of rules, in the given order, over g. A cap
// below one is treated as one.
func NewRunner(g *egraph.EGraph, rules []*rewrite.Rule, maxIter int, opts ...Option) *Runner {
	r := &Runner{
		graph:   g,
		rules:   rules,
		maxIter: max(maxIter, 1),
		logger:  zap.NewNop(),
		state:   Running,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the current state of the runner.
func (r *Runner) State() State {
	return r.state
}

// Graph returns the graph being saturated.
func (r *Runner) Graph() *egraph.EGraph {
	return r.graph
}

// Run executes rounds until the graph converges or the cap is reached. A
// runner runs once; later calls return an empty report with the final
// state.
func (r *Runner) Run() Report {
	report := Report{State: r.state}
	if r.state.Terminal() {
		return report
	}
	r.graph.Rebuild()

	for iter := 1; !r.state.Terminal(); iter++ {
		stats, trace := r.round(iter)
		report.Iterations = iter
		report.Applied += stats.Applied
		report.Trace = append(report.Trace, trace...)
		report.Rounds = append(report.Rounds, stats)
		for _, h := range r.hooks {
			h(stats)
		}

		switch {
		case stats.Applied == 0:
			r.state = Converged
		case iter >= r.maxIter:
			r.state = IterationCapReached
		}
	}
	report.State = r.state

	r.logger.Info("saturation finished",
		zap.Stringer("state", r.state),
		zap.Int("iterations", report.Iterations),
		zap.Int("applied", report.Applied),
		zap.Int("classes", r.graph.NumClasses()),
		zap.Int("nodes", r.graph.NumNodes()),
	)
	return report
}

func (r *Runner) round(iter int) (IterationStats, []Event) {
	start := time.Now()
	stats := IterationStats{Iter: iter}
	snap := newSnapshot(r.graph.Clone())
	var trace []Event

	for _, rule := range r.rules {
		ruleStart := time.Now()
		matches := rule.Search(r.graph)
		rs := RuleStats{Rule: rule.Name(), Matches: len(matches)}
		if len(matches) == 0 {
			rs.Duration = time.Since(ruleStart)
			stats.Rules = append(stats.Rules, rs)
			continue
		}

		// render against the state this rule matched
		show := snap.renderer(r.graph)
		pending := make(map[egraph.ClassID]Event, len(matches))
		for _, m := range matches {
			ev := Event{
				Iter:    iter,
				Rewrite: rule.Name(),
				EClass:  m.Class,
				Before:  show(m.Class),
			}
			for _, s := range m.Substs {
				ev.LHS = append(ev.LHS, rule.LHS().Render(s, show))
				ev.RHS = append(ev.RHS, rule.RHS().Render(s, show))
			}
			pending[m.Class] = ev
		}

		applied, touched := rule.Apply(r.graph, matches)
		r.graph.Rebuild()
		rs.Applied = applied
		rs.Duration = time.Since(ruleStart)
		stats.Applied += applied
		stats.Rules = append(stats.Rules, rs)

		var after *extract.Extractor
		for _, id := range touched {
			ev := pending[id]
			if r.graph.Find(id) != id {
				ev.After = Merged
			} else {
				if after == nil {
					after = extract.New(r.graph, extract.AstSize{})
				}
				ev.After = render(after, id)
			}
			trace = append(trace, ev)
		}

		r.logger.Debug("rule applied",
			zap.Int("iter", iter),
			zap.String("rule", rule.Name()),
			zap.Int("matches", len(matches)),
			zap.Int("applied", applied),
		)
	}

	stats.Classes = r.graph.NumClasses()
	stats.Nodes = r.graph.NumNodes()
	stats.Duration = time.Since(start)
	return stats, trace
}

// snapshot renders classes as they were at the start of a round. Classes
// created later in the round are rendered from the live graph.
type snapshot struct {
	graph *egraph.EGraph
	x     *extract.Extractor
}

func newSnapshot(g *egraph.EGraph) *snapshot {
	return &snapshot{graph: g}
}

func (s *snapshot) renderer(live *egraph.EGraph) func(egraph.ClassID) string {
	var liveX *extract.Extractor
	return func(id egraph.ClassID) string {
		if int(id) < s.graph.NumIDs() {
			if s.x == nil {
				s.x = extract.New(s.graph, extract.AstSize{})
			}
			return render(s.x, id)
		}
		if liveX == nil {
			liveX = extract.New(live, extract.AstSize{})
		}
		return render(liveX, id)
	}
}

func render(x *extract.Extractor, id egraph.ClassID) string {
	_, e, ok := x.FindBest(id)
	if !ok {
		return ""
	}
	return e.String()
}
