package egraph

import (
	"slices"
	"strconv"
	"strings"

	"github.com/gnoswap-labs/witness/internal/analysis/ache"
)

// ClassID identifies an equivalence class. An id may be stale after a
// merge; Find resolves it to the canonical id.
type ClassID uint32

func (id ClassID) String() string {
	return "c" + strconv.FormatUint(uint64(id), 10)
}

// ENode is an operator applied to equivalence classes.
type ENode struct {
	Op       string
	Children []ClassID
}

// Leaf returns a childless node.
func Leaf(op string) ENode {
	return ENode{Op: op}
}

// IsLeaf reports whether the node has no children.
func (n ENode) IsLeaf() bool {
	return len(n.Children) == 0
}

// String returns the operator symbol, which is how nodes are labelled in
// exported graphs.
func (n ENode) String() string {
	return n.Op
}

// key is the hashcons key of the node. Callers canonicalize first.
func (n ENode) key() string {
	var sb strings.Builder
	sb.Grow(len(n.Op) + 4*len(n.Children))
	sb.WriteString(n.Op)
	for _, c := range n.Children {
		sb.WriteByte(0)
		sb.WriteString(strconv.FormatUint(uint64(c), 10))
	}
	return sb.String()
}

// Equal reports structural equality of two nodes.
func (n ENode) Equal(o ENode) bool {
	return n.Op == o.Op && slices.Equal(n.Children, o.Children)
}

// EClass is a set of nodes known to be equal, plus their joined analysis
// data. Nodes are kept in insertion order. Classes returned by the graph
// must not be modified.
type EClass struct {
	ID    ClassID
	Nodes []ENode
	Data  ache.Vector

	// seqs[i] is the insertion order of Nodes[i].
	seqs    []uint64
	parents []parentRef
}

type parentRef struct {
	node  ENode
	class ClassID
}

// Len returns the number of member nodes.
func (c *EClass) Len() int {
	return len(c.Nodes)
}
