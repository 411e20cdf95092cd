package extract

import "github.com/gnoswap-labs/witness/internal/egraph"

// CostFunction prices a node given the already computed cost of each of
// its children classes. Costs must be monotone in the children's costs.
type CostFunction interface {
	Cost(n egraph.ENode, costs func(egraph.ClassID) float64) float64
}

// CostFunc adapts a plain function to CostFunction.
type CostFunc func(n egraph.ENode, costs func(egraph.ClassID) float64) float64

func (f CostFunc) Cost(n egraph.ENode, costs func(egraph.ClassID) float64) float64 {
	return f(n, costs)
}

// AstSize counts nodes.
type AstSize struct{}

func (AstSize) Cost(n egraph.ENode, costs func(egraph.ClassID) float64) float64 {
	size := 1.0
	for _, c := range n.Children {
		size += costs(c)
	}
	return size
}

// AcheBiased is the size of a node's subtree minus Lambda times the ache
// sum of the class that owns the node. Larger Lambda favors
// representatives drawn from high-ache classes.
type AcheBiased struct {
	Graph  *egraph.EGraph
	Lambda float64
}

func (a AcheBiased) Cost(n egraph.ENode, costs func(egraph.ClassID) float64) float64 {
	size := AstSize{}.Cost(n, costs)
	id, ok := a.Graph.Lookup(n)
	if !ok {
		return size
	}
	return size - a.Lambda*a.Graph.Class(id).Data.Sum()
}
