// Package extract picks a minimal-cost representative expression for an
// equivalence class.
//
// Costs are found by relaxation: every pass reprices every node of every
// class from the current child costs and keeps a class cost only when it
// strictly improves. Classes can reach themselves, so the number of passes
// is bounded by the number of classes plus one. Once costs settle, each
// class picks its cheapest node as witness; among nodes of equal cost the
// most recently inserted one wins, which prefers rewritten forms over the
// input's own shape.
package extract

import (
	"math"

	"github.com/gnoswap-labs/witness/internal/egraph"
	"github.com/gnoswap-labs/witness/internal/sexpr"
)

// Extractor holds the costs and witnesses computed for one graph under one
// cost function. The graph must not change while the extractor is in use.
type Extractor struct {
	g    *egraph.EGraph
	cf   CostFunction
	cost map[egraph.ClassID]float64
	best map[egraph.ClassID]egraph.ENode

	// fallback is an AstSize extractor used when a witness would loop
	fallback *Extractor
	passes   int
}

// New computes costs and witnesses for every class of g.
func New(g *egraph.EGraph, cf CostFunction) *Extractor {
	x := &Extractor{
		g:    g,
		cf:   cf,
		cost: make(map[egraph.ClassID]float64, g.NumClasses()),
		best: make(map[egraph.ClassID]egraph.ENode, g.NumClasses()),
	}
	x.relax()
	return x
}

func (x *Extractor) childCost(id egraph.ClassID) float64 {
	return x.cost[x.g.Find(id)]
}

func (x *Extractor) nodeCost(n egraph.ENode) (float64, bool) {
	for _, c := range n.Children {
		if _, ok := x.cost[x.g.Find(c)]; !ok {
			return 0, false
		}
	}
	c := x.cf.Cost(n, x.childCost)
	if math.IsNaN(c) {
		return 0, false
	}
	return c, true
}

func (x *Extractor) relax() {
	classes := x.g.Classes()
	for x.passes <= len(classes) {
		x.passes++
		changed := false
		for _, class := range classes {
			for _, n := range class.Nodes {
				c, ok := x.nodeCost(n)
				if !ok {
					continue
				}
				if old, seen := x.cost[class.ID]; !seen || c < old {
					x.cost[class.ID] = c
					changed = true
				}
			}
		}
		if !changed {
			break
		}
	}

	for _, class := range classes {
		pick, pickCost := -1, 0.0
		for i, n := range class.Nodes {
			c, ok := x.nodeCost(n)
			if !ok {
				continue
			}
			if pick < 0 || c <= pickCost {
				pick, pickCost = i, c
			}
		}
		if pick >= 0 {
			x.best[class.ID] = class.Nodes[pick]
		}
	}
}

// FindBest returns the expression the witnesses of id spell out and its
// cost, priced bottom-up over the expression itself. It reports false if
// the class has no finite cost, which cannot happen for classes built from
// finite expressions.
func (x *Extractor) FindBest(id egraph.ClassID) (float64, *sexpr.Expr, bool) {
	root := x.g.Find(id)
	if _, ok := x.cost[root]; !ok {
		return 0, nil, false
	}
	e := &sexpr.Expr{}
	_, cost := x.build(e, root, make(map[egraph.ClassID]bool))
	return cost, e, true
}

// build appends the subtree of id to e and returns its position and cost.
// A witness that leads back into a class on the current path is replaced
// by the AstSize witness of the class, whose subtree is then built from
// AstSize witnesses alone.
func (x *Extractor) build(e *sexpr.Expr, id egraph.ClassID, path map[egraph.ClassID]bool) (int, float64) {
	id = x.g.Find(id)
	n := x.best[id]
	for _, c := range n.Children {
		if c = x.g.Find(c); c == id || path[c] {
			return x.sizeFallback().buildAcyclic(e, id, x.cf)
		}
	}

	path[id] = true
	defer delete(path, id)

	node := sexpr.Node{Op: n.Op}
	costs := make(map[egraph.ClassID]float64, len(n.Children))
	for _, c := range n.Children {
		pos, cost := x.build(e, c, path)
		node.Children = append(node.Children, pos)
		costs[x.g.Find(c)] = cost
	}
	return e.Add(node), x.price(x.cf, n, costs)
}

// buildAcyclic follows witnesses without a path check, pricing the result
// with cf. Only valid for strictly positive costs, where a witness's
// children are always cheaper than the class itself.
func (x *Extractor) buildAcyclic(e *sexpr.Expr, id egraph.ClassID, cf CostFunction) (int, float64) {
	n := x.best[x.g.Find(id)]
	node := sexpr.Node{Op: n.Op}
	costs := make(map[egraph.ClassID]float64, len(n.Children))
	for _, c := range n.Children {
		pos, cost := x.buildAcyclic(e, c, cf)
		node.Children = append(node.Children, pos)
		costs[x.g.Find(c)] = cost
	}
	return e.Add(node), x.price(cf, n, costs)
}

// price applies cf to n with the costs of the subtrees emitted for its
// children. Children of one node that share a class share a subtree.
func (x *Extractor) price(cf CostFunction, n egraph.ENode, costs map[egraph.ClassID]float64) float64 {
	return cf.Cost(n, func(c egraph.ClassID) float64 {
		return costs[x.g.Find(c)]
	})
}

func (x *Extractor) sizeFallback() *Extractor {
	if x.fallback == nil {
		if _, ok := x.cf.(AstSize); ok {
			x.fallback = x
		} else {
			x.fallback = New(x.g, AstSize{})
		}
	}
	return x.fallback
}
