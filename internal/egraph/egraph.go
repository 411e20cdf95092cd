// Package egraph implements an e-graph: a hashconsed set of expression
// nodes partitioned into equivalence classes by a union-find.
//
// Classes live in an arena addressed by ClassID. Merging a class redirects
// its union-find entry and moves its nodes into the surviving class; the
// arena slot of the merged-away class is cleared. Congruence (equal
// operators over equal children live in the same class) only holds after
// Rebuild.
package egraph

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/gnoswap-labs/witness/internal/analysis/ache"
	"github.com/gnoswap-labs/witness/internal/sexpr"
)

// EGraph is not safe for concurrent use.
type EGraph struct {
	analysis ache.Analysis

	unionFind []ClassID
	classes   []*EClass
	memo      map[string]ClassID

	// parents of merged classes whose hashcons keys must be refreshed
	pending []parentRef
	// parents whose analysis data must be recomputed
	analysisPending []parentRef

	nextSeq uint64
	clean   bool
}

// New creates an empty e-graph. A nil analysis selects the default ache
// profile.
func New(analysis ache.Analysis) *EGraph {
	if analysis == nil {
		analysis = ache.DefaultProfile()
	}
	return &EGraph{
		analysis: analysis,
		memo:     make(map[string]ClassID),
		clean:    true,
	}
}

// Find returns the canonical id of the class containing id, compressing
// the path it walks. It panics if id was never allocated.
func (g *EGraph) Find(id ClassID) ClassID {
	if int(id) >= len(g.unionFind) {
		panic(fmt.Sprintf("egraph: unknown class id %d", id))
	}
	root := id
	for g.unionFind[root] != root {
		root = g.unionFind[root]
	}
	for id != root {
		parent := g.unionFind[id]
		g.unionFind[id] = root
		id = parent
	}
	return root
}

// Canonicalize returns a copy of n with every child resolved by Find.
func (g *EGraph) Canonicalize(n ENode) ENode {
	out := ENode{Op: n.Op}
	if len(n.Children) > 0 {
		out.Children = make([]ClassID, len(n.Children))
		for i, c := range n.Children {
			out.Children[i] = g.Find(c)
		}
	}
	return out
}

// Add inserts n and returns the id of its class. If an equal canonical
// node already exists its class is returned instead.
func (g *EGraph) Add(n ENode) ClassID {
	n = g.Canonicalize(n)
	key := n.key()
	if id, ok := g.memo[key]; ok {
		return g.Find(id)
	}

	id := ClassID(len(g.unionFind))
	g.unionFind = append(g.unionFind, id)

	childData := make([]ache.Vector, len(n.Children))
	for i, c := range n.Children {
		childData[i] = g.classes[c].Data
	}
	class := &EClass{
		ID:    id,
		Nodes: []ENode{n},
		Data:  g.analysis.Make(n.Op, childData),
		seqs:  []uint64{g.nextSeq},
	}
	g.nextSeq++
	g.classes = append(g.classes, class)

	for _, c := range n.Children {
		child := g.classes[c]
		child.parents = append(child.parents, parentRef{node: n, class: id})
	}
	g.memo[key] = id
	return id
}

// AddExpr inserts every subtree of e bottom-up and returns the class of
// the root.
func (g *EGraph) AddExpr(e *sexpr.Expr) ClassID {
	ids := g.AddExprPositions(e)
	return ids[len(ids)-1]
}

// AddExprPositions inserts e and returns, for every position of e, the
// class its subtree was inserted into.
func (g *EGraph) AddExprPositions(e *sexpr.Expr) []ClassID {
	if e.Len() == 0 {
		panic("egraph: empty expression")
	}
	ids := make([]ClassID, e.Len())
	for i, node := range e.Nodes {
		n := ENode{Op: node.Op}
		if len(node.Children) > 0 {
			n.Children = make([]ClassID, len(node.Children))
			for j, c := range node.Children {
				n.Children[j] = ids[c]
			}
		}
		ids[i] = g.Add(n)
	}
	return ids
}

// Lookup returns the class holding n, if any.
func (g *EGraph) Lookup(n ENode) (ClassID, bool) {
	for _, c := range n.Children {
		if int(c) >= len(g.unionFind) {
			return 0, false
		}
	}
	id, ok := g.memo[g.Canonicalize(n).key()]
	if !ok {
		return 0, false
	}
	return g.Find(id), true
}

// Union merges the classes of a and b and reports whether they were
// distinct. The class with more parents survives; on a tie the smaller id
// does. Call Rebuild afterwards to restore congruence.
func (g *EGraph) Union(a, b ClassID) bool {
	ra, rb := g.Find(a), g.Find(b)
	if ra == rb {
		return false
	}
	ca, cb := g.classes[ra], g.classes[rb]
	if len(ca.parents) < len(cb.parents) || (len(ca.parents) == len(cb.parents) && rb < ra) {
		ra, rb = rb, ra
		ca, cb = cb, ca
	}

	g.unionFind[rb] = ra
	g.pending = append(g.pending, cb.parents...)

	before := cb.Data
	if g.analysis.Merge(&ca.Data, cb.Data) {
		g.analysisPending = append(g.analysisPending, ca.parents...)
	}
	if !before.Equal(ca.Data) {
		g.analysisPending = append(g.analysisPending, cb.parents...)
	}

	ca.Nodes = append(ca.Nodes, cb.Nodes...)
	ca.seqs = append(ca.seqs, cb.seqs...)
	ca.parents = append(ca.parents, cb.parents...)
	g.classes[rb] = nil
	g.clean = false
	return true
}

// Rebuild restores congruence after a batch of unions: parents of merged
// classes are recanonicalized and any two classes found to own the same
// canonical node are merged, until a fixpoint. Analysis data is repaired
// along parent edges whenever a merge changed it. Rebuild returns the
// number of merges it performed.
func (g *EGraph) Rebuild() int {
	if g.clean && len(g.pending) == 0 && len(g.analysisPending) == 0 {
		return 0
	}
	merges := 0
	for len(g.pending) > 0 || len(g.analysisPending) > 0 {
		for len(g.pending) > 0 {
			p := g.pending[len(g.pending)-1]
			g.pending = g.pending[:len(g.pending)-1]

			key := g.Canonicalize(p.node).key()
			if old, ok := g.memo[key]; ok && g.Union(old, p.class) {
				merges++
			}
			g.memo[key] = p.class
		}

		for len(g.analysisPending) > 0 {
			p := g.analysisPending[len(g.analysisPending)-1]
			g.analysisPending = g.analysisPending[:len(g.analysisPending)-1]

			n := g.Canonicalize(p.node)
			childData := make([]ache.Vector, len(n.Children))
			for i, c := range n.Children {
				childData[i] = g.classes[c].Data
			}
			class := g.classes[g.Find(p.class)]
			if g.analysis.Merge(&class.Data, g.analysis.Make(n.Op, childData)) {
				g.analysisPending = append(g.analysisPending, class.parents...)
			}
		}
	}
	g.rebuildClasses()
	g.clean = true
	return merges
}

// rebuildClasses canonicalizes and deduplicates the nodes and parent lists
// of every live class, keeping nodes in insertion order, then rebuilds the
// hashcons table from scratch so that it holds canonical keys only.
func (g *EGraph) rebuildClasses() {
	memo := make(map[string]ClassID, len(g.memo))
	for _, class := range g.classes {
		if class == nil {
			continue
		}

		order := make([]int, len(class.Nodes))
		for i := range order {
			order[i] = i
		}
		slices.SortStableFunc(order, func(a, b int) int {
			return cmp.Compare(class.seqs[a], class.seqs[b])
		})

		nodes := make([]ENode, 0, len(class.Nodes))
		seqs := make([]uint64, 0, len(class.Nodes))
		seen := make(map[string]bool, len(class.Nodes))
		for _, i := range order {
			n := g.Canonicalize(class.Nodes[i])
			key := n.key()
			if seen[key] {
				continue
			}
			seen[key] = true
			nodes = append(nodes, n)
			seqs = append(seqs, class.seqs[i])
			memo[key] = class.ID
		}
		class.Nodes = nodes
		class.seqs = seqs

		parents := make([]parentRef, 0, len(class.parents))
		seenParent := make(map[string]bool, len(class.parents))
		for _, p := range class.parents {
			n := g.Canonicalize(p.node)
			owner := g.Find(p.class)
			key := n.key() + "\x01" + owner.String()
			if seenParent[key] {
				continue
			}
			seenParent[key] = true
			parents = append(parents, parentRef{node: n, class: owner})
		}
		class.parents = parents
	}
	g.memo = memo
}

// IsClean reports whether no union happened since the last Rebuild.
func (g *EGraph) IsClean() bool {
	return g.clean
}

// Class returns the canonical class containing id.
func (g *EGraph) Class(id ClassID) *EClass {
	return g.classes[g.Find(id)]
}

// Classes returns every live class in ascending id order.
func (g *EGraph) Classes() []*EClass {
	out := make([]*EClass, 0, len(g.classes))
	for _, c := range g.classes {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}

// NumClasses returns the number of live classes.
func (g *EGraph) NumClasses() int {
	n := 0
	for _, c := range g.classes {
		if c != nil {
			n++
		}
	}
	return n
}

// NumNodes returns the total number of member nodes over live classes.
func (g *EGraph) NumNodes() int {
	n := 0
	for _, c := range g.classes {
		if c != nil {
			n += len(c.Nodes)
		}
	}
	return n
}

// NumIDs returns how many class ids were ever allocated.
func (g *EGraph) NumIDs() int {
	return len(g.unionFind)
}

// Clone returns a deep copy that shares no mutable state with g.
func (g *EGraph) Clone() *EGraph {
	out := &EGraph{
		analysis:        g.analysis,
		unionFind:       slices.Clone(g.unionFind),
		classes:         make([]*EClass, len(g.classes)),
		memo:            maps.Clone(g.memo),
		pending:         slices.Clone(g.pending),
		analysisPending: slices.Clone(g.analysisPending),
		nextSeq:         g.nextSeq,
		clean:           g.clean,
	}
	for i, c := range g.classes {
		if c == nil {
			continue
		}
		out.classes[i] = &EClass{
			ID:      c.ID,
			Nodes:   slices.Clone(c.Nodes),
			Data:    c.Data.Clone(),
			seqs:    slices.Clone(c.seqs),
			parents: slices.Clone(c.parents),
		}
	}
	return out
}
