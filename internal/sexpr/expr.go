// Package sexpr reads and prints the prefix expression language accepted
// by the optimizer, e.g. `(map f (map g x))`.
//
// A parsed expression is stored flat: every position holds an operator and
// the positions of its children, which always precede it. The root is the
// last position.
package sexpr

import (
	"strings"
)

// Node is one operator application inside an Expr.
type Node struct {
	Op       string
	Children []int
}

// IsLeaf reports whether the node has no children.
func (n Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Expr is an expression tree in postorder.
type Expr struct {
	Nodes []Node
}

// Add appends a node and returns its position. Children must reference
// positions already present in the expression.
func (e *Expr) Add(n Node) int {
	for _, c := range n.Children {
		if c < 0 || c >= len(e.Nodes) {
			panic("sexpr: child position out of range")
		}
	}
	e.Nodes = append(e.Nodes, n)
	return len(e.Nodes) - 1
}

// Root returns the position of the root node, or -1 for an empty expression.
func (e *Expr) Root() int {
	return len(e.Nodes) - 1
}

// Len returns the number of positions.
func (e *Expr) Len() int {
	return len(e.Nodes)
}

// String renders the expression rooted at the last position.
func (e *Expr) String() string {
	if len(e.Nodes) == 0 {
		return ""
	}
	var sb strings.Builder
	e.write(&sb, e.Root())
	return sb.String()
}

// StringAt renders the subtree rooted at position i.
func (e *Expr) StringAt(i int) string {
	var sb strings.Builder
	e.write(&sb, i)
	return sb.String()
}

func (e *Expr) write(sb *strings.Builder, i int) {
	n := e.Nodes[i]
	if n.IsLeaf() {
		sb.WriteString(n.Op)
		return
	}
	sb.WriteByte('(')
	sb.WriteString(n.Op)
	for _, c := range n.Children {
		sb.WriteByte(' ')
		e.write(sb, c)
	}
	sb.WriteByte(')')
}

// Parse reads a single expression.
func Parse(src string) (*Expr, error) {
	tokens, err := Lex(src)
	if err != nil {
		return nil, err
	}
	s, err := ParseSexp(tokens)
	if err != nil {
		return nil, err
	}
	e := &Expr{}
	if _, err := e.fromSexp(s); err != nil {
		return nil, err
	}
	return e, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// static tables.
func MustParse(src string) *Expr {
	e, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return e
}

func (e *Expr) fromSexp(s *Sexp) (int, error) {
	if s.IsAtom() {
		return e.Add(Node{Op: s.Atom}), nil
	}
	if len(s.List) == 0 {
		return 0, &SyntaxError{Line: s.Line, Col: s.Col, Msg: "empty list"}
	}
	head := s.List[0]
	if !head.IsAtom() {
		return 0, &SyntaxError{Line: head.Line, Col: head.Col, Msg: "operator must be an atom"}
	}
	children := make([]int, 0, len(s.List)-1)
	for _, arg := range s.List[1:] {
		id, err := e.fromSexp(arg)
		if err != nil {
			return 0, err
		}
		children = append(children, id)
	}
	return e.Add(Node{Op: head.Atom, Children: children}), nil
}
