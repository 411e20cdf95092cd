// Package rewrite searches rewrite rules against an e-graph and applies
// them as new equalities.
package rewrite

import (
	"fmt"
	"slices"

	"github.com/gnoswap-labs/witness/internal/egraph"
)

// Rule is an immutable named rewrite from a left-hand pattern to a
// right-hand template over the same variables.
type Rule struct {
	name string
	lhs  *Pattern
	rhs  *Pattern
}

// NewRule parses both sides of a rule. Every variable of the right-hand
// side must be bound by the left-hand side.
func NewRule(name, lhs, rhs string) (*Rule, error) {
	if name == "" {
		return nil, fmt.Errorf("rule name is required")
	}
	l, err := ParsePattern(lhs)
	if err != nil {
		return nil, fmt.Errorf("rule %s: pattern: %w", name, err)
	}
	r, err := ParsePattern(rhs)
	if err != nil {
		return nil, fmt.Errorf("rule %s: replacement: %w", name, err)
	}
	bound := l.Vars()
	for _, v := range r.Vars() {
		if !slices.Contains(bound, v) {
			return nil, fmt.Errorf("rule %s: variable ?%s is not bound by the pattern", name, v)
		}
	}
	return &Rule{name: name, lhs: l, rhs: r}, nil
}

// MustNewRule is like NewRule but panics on error.
func MustNewRule(name, lhs, rhs string) *Rule {
	r, err := NewRule(name, lhs, rhs)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Rule) Name() string  { return r.name }
func (r *Rule) LHS() *Pattern { return r.lhs }
func (r *Rule) RHS() *Pattern { return r.rhs }

func (r *Rule) String() string {
	return fmt.Sprintf("%s: %s => %s", r.name, r.lhs, r.rhs)
}

// Search matches the left-hand side against every live class of g. The
// graph should be clean; the result reflects g exactly as it is now and
// stays valid while other rules are applied.
func (r *Rule) Search(g *egraph.EGraph) []Match {
	var matches []Match
	for _, class := range g.Classes() {
		substs := matchClass(g, r.lhs, class.ID, Subst{})
		if len(substs) == 0 {
			continue
		}
		matches = append(matches, Match{Class: class.ID, Substs: dedupe(substs)})
	}
	return matches
}

func matchClass(g *egraph.EGraph, p *Pattern, id egraph.ClassID, s Subst) []Subst {
	id = g.Find(id)
	if p.IsVar() {
		if bound, ok := s.Get(p.Var); ok {
			if g.Find(bound) != id {
				return nil
			}
			return []Subst{s}
		}
		return []Subst{s.With(p.Var, id)}
	}

	var out []Subst
	for _, n := range g.Class(id).Nodes {
		if n.Op != p.Op || len(n.Children) != len(p.Children) {
			continue
		}
		substs := []Subst{s}
		for i, child := range p.Children {
			var next []Subst
			for _, cur := range substs {
				next = append(next, matchClass(g, child, n.Children[i], cur)...)
			}
			substs = next
			if len(substs) == 0 {
				break
			}
		}
		out = append(out, substs...)
	}
	return out
}

func dedupe(substs []Subst) []Subst {
	seen := make(map[string]bool, len(substs))
	out := substs[:0]
	for _, s := range substs {
		key := s.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

// Apply instantiates the right-hand side for every substitution and
// unions it with the matched class. It returns how many unions merged two
// distinct classes, and the matched classes that took part in one, in
// match order. The graph is rebuilt before each instantiation that follows
// a merge, so the hashcons table never misses a node that already exists
// under a merged child. The caller must Rebuild afterwards.
func (r *Rule) Apply(g *egraph.EGraph, matches []Match) (int, []egraph.ClassID) {
	applied := 0
	var touched []egraph.ClassID
	for _, m := range matches {
		hit := false
		for _, s := range m.Substs {
			if !g.IsClean() {
				g.Rebuild()
			}
			id := Instantiate(g, r.rhs, s)
			if g.Union(m.Class, id) {
				applied++
				hit = true
			}
		}
		if hit {
			touched = append(touched, m.Class)
		}
	}
	return applied, touched
}

// Instantiate adds p to g with its variables replaced by the classes bound
// in s, and returns the class of the root. An unbound variable is a
// contract violation and panics.
func Instantiate(g *egraph.EGraph, p *Pattern, s Subst) egraph.ClassID {
	if p.IsVar() {
		id, ok := s.Get(p.Var)
		if !ok {
			panic(fmt.Sprintf("rewrite: unbound variable ?%s", p.Var))
		}
		return id
	}
	n := egraph.ENode{Op: p.Op}
	if len(p.Children) > 0 {
		n.Children = make([]egraph.ClassID, len(p.Children))
		for i, c := range p.Children {
			n.Children[i] = Instantiate(g, c, s)
		}
	}
	return g.Add(n)
}
